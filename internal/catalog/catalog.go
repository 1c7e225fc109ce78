package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/ctyconv"
	"github.com/eyevinn-osaas/strom-sub001/internal/guard"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

//go:embed catalog.yaml
var defaultYAML []byte

// Catalog is a read-only set of element declarations keyed by kind.
type Catalog struct {
	elements map[pad.Kind]*Element
}

// Lookup returns the declaration for kind.
func (c *Catalog) Lookup(kind pad.Kind) (*Element, bool) {
	e, ok := c.elements[kind]
	return e, ok
}

// Kinds returns every declared kind in sorted order.
func (c *Catalog) Kinds() []pad.Kind {
	out := make([]pad.Kind, 0, len(c.elements))
	for k := range c.elements {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Merge returns a catalog holding c's elements overridden by other's.
func (c *Catalog) Merge(other *Catalog) *Catalog {
	merged := &Catalog{elements: make(map[pad.Kind]*Element, len(c.elements)+len(other.elements))}
	for k, e := range c.elements {
		merged.elements[k] = e
	}
	for k, e := range other.elements {
		merged.elements[k] = e
	}
	return merged
}

// Default returns the embedded catalog. It panics if the embedded data is
// invalid, which is a build defect.
func Default() *Catalog {
	c, err := Parse(context.Background(), defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded catalog is invalid: %v", err))
	}
	return c
}

// Load returns the embedded catalog, extended by the YAML file at path when
// path is not empty.
func Load(ctx context.Context, path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	defer f.Close()

	override, err := Read(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", path, err)
	}
	ctxlog.FromContext(ctx).Debug("Loaded catalog override.", "path", path, "kinds", len(override.elements))
	return c.Merge(override), nil
}

// Read parses catalog YAML from r.
func Read(ctx context.Context, r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(ctx, data)
}

type fileRoot struct {
	Elements map[string]elementYAML `yaml:"elements"`
}

type elementYAML struct {
	Role          string                             `yaml:"role"`
	Pads          []padYAML                          `yaml:"pads"`
	Properties    map[string]propertyYAML            `yaml:"properties"`
	PadProperties map[string]map[string]propertyYAML `yaml:"pad_properties"`
}

type padYAML struct {
	Name      string `yaml:"name"`
	Direction string `yaml:"direction"`
	Presence  string `yaml:"presence"`
}

type propertyYAML struct {
	Type       string `yaml:"type"`
	Default    any    `yaml:"default"`
	Mutability string `yaml:"mutability"`
}

// Parse decodes catalog YAML.
func Parse(ctx context.Context, data []byte) (*Catalog, error) {
	var root fileRoot
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid catalog yaml: %w", err)
	}

	c := &Catalog{elements: make(map[pad.Kind]*Element, len(root.Elements))}
	for kind, raw := range root.Elements {
		e, err := translateElement(ctx, pad.Kind(kind), raw)
		if err != nil {
			return nil, fmt.Errorf("element %q: %w", kind, err)
		}
		c.elements[e.Kind] = e
	}
	return c, nil
}

func translateElement(ctx context.Context, kind pad.Kind, raw elementYAML) (*Element, error) {
	e := &Element{
		Kind:          kind,
		Role:          Role(strings.ToLower(raw.Role)),
		Properties:    make(map[string]*Property, len(raw.Properties)),
		PadProperties: make(map[string]map[string]*Property, len(raw.PadProperties)),
	}
	switch e.Role {
	case RoleNone, RoleAggregator, RoleDistributor, RoleTerminator, RoleSource:
	default:
		return nil, fmt.Errorf("unknown role %q", raw.Role)
	}

	seen := make(map[string]struct{}, len(raw.Pads))
	for _, p := range raw.Pads {
		dir, err := pad.ParseDirection(p.Direction)
		if err != nil {
			return nil, fmt.Errorf("pad %q: %w", p.Name, err)
		}
		presence, err := pad.ParsePresence(p.Presence)
		if err != nil {
			return nil, fmt.Errorf("pad %q: %w", p.Name, err)
		}
		d := pad.Descriptor{NamePattern: p.Name, Direction: dir, Presence: presence}
		if presence == pad.Always && d.IsTemplate() {
			return nil, fmt.Errorf("pad %q: always pads cannot be templates", p.Name)
		}
		if presence != pad.Always && !d.IsTemplate() {
			return nil, fmt.Errorf("pad %q: %s pads must be templates", p.Name, presence)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("pad %q declared twice", p.Name)
		}
		seen[p.Name] = struct{}{}
		e.Pads = append(e.Pads, d)
	}

	for name, rp := range raw.Properties {
		p, err := translateProperty(ctx, name, rp)
		if err != nil {
			return nil, err
		}
		e.Properties[name] = p
	}
	for pattern, props := range raw.PadProperties {
		if _, ok := seen[pattern]; !ok {
			return nil, fmt.Errorf("pad properties for undeclared pad %q", pattern)
		}
		e.PadProperties[pattern] = make(map[string]*Property, len(props))
		for name, rp := range props {
			p, err := translateProperty(ctx, name, rp)
			if err != nil {
				return nil, fmt.Errorf("pad %q: %w", pattern, err)
			}
			e.PadProperties[pattern][name] = p
		}
	}
	return e, nil
}

func translateProperty(ctx context.Context, name string, raw propertyYAML) (*Property, error) {
	ty, err := ctyconv.ParseType(ctx, raw.Type)
	if err != nil {
		return nil, fmt.Errorf("property %q: %w", name, err)
	}
	m, err := guard.ParseMutability(raw.Mutability)
	if err != nil {
		return nil, fmt.Errorf("property %q: %w", name, err)
	}

	p := &Property{Name: name, Type: ty, Mutability: m, Default: cty.NullVal(ty)}
	if raw.Default != nil {
		def, err := p.Coerce(raw.Default)
		if err != nil {
			return nil, fmt.Errorf("default: %w", err)
		}
		p.Default = def
	}
	return p, nil
}
