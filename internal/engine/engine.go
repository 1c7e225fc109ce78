package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/eyevinn-osaas/strom-sub001/internal/catalog"
	"github.com/eyevinn-osaas/strom-sub001/internal/lifecycle"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

var (
	// ErrUnknownKind is returned when a node kind is not in the catalog.
	ErrUnknownKind = errors.New("unknown node kind")
	// ErrDuplicateNode is returned when a node id is already taken.
	ErrDuplicateNode = errors.New("node already exists")
	// ErrNoSuchNode is returned for operations on an absent node.
	ErrNoSuchNode = errors.New("node not found")
	// ErrNotRequestable is returned when a pad cannot be requested from a
	// template, either because it is not a Request template or because the
	// desired name does not fit it.
	ErrNotRequestable = errors.New("pad cannot be requested")
	// ErrPadExists is returned when a requested pad name is already in use.
	ErrPadExists = errors.New("pad already exists")
	// ErrIncompatible is returned when two pads cannot be connected.
	ErrIncompatible = errors.New("pads are incompatible")
	// ErrNotSynced is returned when connecting a node whose lifecycle state
	// lags the running graph.
	ErrNotSynced = errors.New("node state not synced with graph")
	// ErrNoSuchProperty is returned for undeclared properties.
	ErrNoSuchProperty = errors.New("no such property")
)

// Caps describes the format negotiated on a pad, e.g. "audio/x-raw" with
// rate and channel fields.
type Caps struct {
	MediaType string
	Fields    map[string]any
}

// String renders caps as "media/type, key=value, ..." with sorted keys.
func (c Caps) String() string {
	if len(c.Fields) == 0 {
		return c.MediaType
	}
	keys := make([]string, 0, len(c.Fields))
	for k := range c.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(c.MediaType)
	for _, k := range keys {
		fmt.Fprintf(&b, ", %s=%v", k, c.Fields[k])
	}
	return b.String()
}

// Field returns a caps field as a string.
func (c Caps) Field(name string) (string, bool) {
	v, ok := c.Fields[name]
	if !ok {
		return "", false
	}
	return fmt.Sprint(v), true
}

// PadAddedFunc observes new output pads of a node.
type PadAddedFunc func(ctx context.Context, p Pad)

// FormatFunc observes format negotiation on a pad.
type FormatFunc func(ctx context.Context, p Pad, caps Caps)

// Engine is the media execution engine.
type Engine interface {
	// CreateNode instantiates a node of a catalog kind. Construct-only
	// properties can only be set here.
	CreateNode(ctx context.Context, id string, kind pad.Kind, props map[string]cty.Value) (Node, error)
	Node(id string) (Node, bool)
	RemoveNode(ctx context.Context, id string) error
	// Connect links an output pad to an input pad.
	Connect(ctx context.Context, src, sink Pad) error
	// State is the lifecycle state of the whole pipeline.
	State() lifecycle.State
	SetState(ctx context.Context, s lifecycle.State) error
	Catalog() *catalog.Catalog
}

// PropertyHolder is implemented by nodes and pads.
type PropertyHolder interface {
	// PropertySpec returns the declared type and mutability of a property.
	PropertySpec(name string) (*catalog.Property, bool)
	Property(name string) (cty.Value, error)
	// SetProperty writes a value already authorized by the caller.
	SetProperty(ctx context.Context, name string, v cty.Value) error
}

// Node is one processing element owned by the engine.
type Node interface {
	PropertyHolder
	ID() string
	Kind() pad.Kind
	Spec() *catalog.Element
	// Pads returns every existing pad: static, requested and emitted.
	Pads() []Pad
	// StaticPad returns an existing pad by exact name.
	StaticPad(name string) (Pad, bool)
	// Templates returns the Request and Sometimes templates of the kind.
	Templates() []pad.Descriptor
	// RequestPad mints a pad from a Request template. An empty name lets
	// the engine assign the next free one.
	RequestPad(ctx context.Context, tmpl pad.Descriptor, name string) (Pad, error)
	// OnPadAdded subscribes to Sometimes pads appearing on this node.
	OnPadAdded(fn PadAddedFunc)
	State() lifecycle.State
	// SyncStateWithParent brings the node to the pipeline's state.
	SyncStateWithParent(ctx context.Context) error
}

// Pad is one connection point of a node.
type Pad interface {
	PropertyHolder
	Name() string
	Direction() pad.Direction
	Presence() pad.Presence
	Node() Node
	// Peer returns the connected pad, or nil.
	Peer() Pad
	IsLinked() bool
	// OnFormat subscribes to format negotiation on this pad.
	OnFormat(fn FormatFunc)
	// Caps returns the negotiated format, if any.
	Caps() (Caps, bool)
}

// RefOf returns the reference addressing p.
func RefOf(p Pad) pad.Ref {
	return pad.PadRef(p.Node().ID(), p.Name())
}
