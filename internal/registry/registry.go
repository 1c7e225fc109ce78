package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/eyevinn-osaas/strom-sub001/internal/config"
	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/dag"
	"github.com/eyevinn-osaas/strom-sub001/internal/fanout"
	"github.com/eyevinn-osaas/strom-sub001/internal/topology"
)

// ErrUnknownBlock is returned by Compile for unregistered block types.
var ErrUnknownBlock = errors.New("unknown block type")

// Module is the interface that all block modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Compiler turns decoded parameters into a topology.
type Compiler interface {
	// NewParams returns a pointer to a parameter struct holding defaults.
	NewParams() any
	Compile(ctx context.Context, params any) (*topology.Topology, error)
}

// Block adapts a typed compile function to Compiler.
type Block[P any] struct {
	// Defaults returns the parameter defaults. Nil means the zero value.
	Defaults func() *P
	Fn       func(ctx context.Context, params *P) (*topology.Topology, error)
}

func (b Block[P]) NewParams() any {
	if b.Defaults == nil {
		return new(P)
	}
	return b.Defaults()
}

func (b Block[P]) Compile(ctx context.Context, params any) (*topology.Topology, error) {
	p, ok := params.(*P)
	if !ok {
		return nil, fmt.Errorf("unexpected parameter type %T", params)
	}
	return b.Fn(ctx, p)
}

// Registry holds the registered block compilers for a single application
// instance.
type Registry struct {
	blocks     map[string]Compiler
	converter  config.Converter
	normalizer fanout.Normalizer
}

// New creates and initializes a new Registry instance that decodes
// parameters with conv.
func New(conv config.Converter) *Registry {
	return &Registry{
		blocks:     make(map[string]Compiler),
		converter:  conv,
		normalizer: fanout.Default,
	}
}

// RegisterBlock registers the compiler for a block type.
func (r *Registry) RegisterBlock(name string, c Compiler) {
	if _, exists := r.blocks[name]; exists {
		panic(fmt.Sprintf("block with name '%s' already registered", name))
	}
	slog.Debug("Registering block compiler.", "name", name)
	r.blocks[name] = c
}

// Lookup returns the compiler of a block type.
func (r *Registry) Lookup(name string) (Compiler, bool) {
	c, ok := r.blocks[name]
	return c, ok
}

// Types returns the registered block type names, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.blocks))
	for name := range r.blocks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate checks that every registered compiler produces a usable
// parameter struct: a pointer to a struct without duplicate parameter tags.
func (r *Registry) Validate(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var errs []error
	for _, name := range r.Types() {
		params := r.blocks[name].NewParams()
		t := reflect.TypeOf(params)
		if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
			errs = append(errs, fmt.Errorf("block '%s': parameters must be a pointer to a struct, got %T", name, params))
			continue
		}
		seen := make(map[string]string)
		for i := 0; i < t.Elem().NumField(); i++ {
			f := t.Elem().Field(i)
			tag := f.Tag.Get("param")
			if tag == "" || tag == "-" {
				continue
			}
			tagName, _, _ := strings.Cut(tag, ",")
			if prev, dup := seen[tagName]; dup {
				errs = append(errs, fmt.Errorf("block '%s': parameter %q declared by both %s and %s", name, tagName, prev, f.Name))
			}
			seen[tagName] = f.Name
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logger.Debug("Registry validation passed.", "blocks", len(r.blocks))
	return nil
}

// Compile decodes params for blockType, compiles the block and normalizes
// its fan-out. The result is acyclic and every source pad feeds one link.
func (r *Registry) Compile(ctx context.Context, blockType string, params map[string]cty.Value) (*topology.Topology, error) {
	logger := ctxlog.FromContext(ctx).With("block_type", blockType)
	ctx = ctxlog.WithLogger(ctx, logger)

	c, ok := r.blocks[blockType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBlock, blockType)
	}

	p := c.NewParams()
	if err := r.converter.DecodeParams(ctx, p, params); err != nil {
		return nil, fmt.Errorf("invalid parameters for block '%s': %w", blockType, err)
	}

	top, err := c.Compile(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to compile block '%s': %w", blockType, err)
	}

	ids := make([]string, len(top.Nodes))
	for i, n := range top.Nodes {
		ids[i] = n.ID
	}
	res := r.normalizer.Normalize(top.Links, ids...)
	top.Links = res.Links
	top.Nodes = append(top.Nodes, res.Distributors...)

	if err := CheckAcyclic(top); err != nil {
		return nil, fmt.Errorf("block '%s': %w", blockType, err)
	}
	for _, w := range top.Warnings {
		logger.Warn("Block compiled with warning.", "warning", w)
	}
	logger.Debug("Block compiled.", "nodes", len(top.Nodes), "links", len(top.Links), "dynamic_routes", len(top.DynamicRoutes))
	return top, nil
}

// CheckAcyclic rejects a topology whose links form a cycle between nodes.
func CheckAcyclic(top *topology.Topology) error {
	g := dag.New()
	for _, n := range top.Nodes {
		g.AddNode(n.ID)
	}
	for _, l := range top.Links {
		if err := g.AddEdge(l.From.Node, l.To.Node); err != nil {
			return fmt.Errorf("link %s: %w", l, err)
		}
	}
	return g.DetectCycles()
}
