package catalog

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctyconv"
	"github.com/eyevinn-osaas/strom-sub001/internal/guard"
	"github.com/eyevinn-osaas/strom-sub001/internal/pad"
)

// Role marks kinds with special meaning to the link resolver.
type Role string

const (
	RoleNone        Role = ""
	RoleAggregator  Role = "aggregator"
	RoleDistributor Role = "distributor"
	RoleTerminator  Role = "terminator"
	RoleSource      Role = "source"
)

// Property is one declared property of an element or pad.
type Property struct {
	Name       string
	Type       cty.Type
	Default    cty.Value
	Mutability guard.Mutability
}

// Coerce converts v to the declared type.
func (p *Property) Coerce(v any) (cty.Value, error) {
	val, err := ctyconv.Convert(v, p.Type)
	if err != nil {
		return cty.NilVal, fmt.Errorf("property %q: %w", p.Name, err)
	}
	return val, nil
}

// Element is the declaration of one node kind.
type Element struct {
	Kind       pad.Kind
	Role       Role
	Pads       []pad.Descriptor
	Properties map[string]*Property
	// PadProperties maps a pad name pattern to the properties of pads
	// created from it.
	PadProperties map[string]map[string]*Property
}

// IsAggregator reports whether the kind accepts unbounded request sinks.
func (e *Element) IsAggregator() bool { return e.Role == RoleAggregator }

// Property returns a node property declaration.
func (e *Element) Property(name string) (*Property, bool) {
	p, ok := e.Properties[name]
	return p, ok
}

// PadProperty returns the declaration of a property of the named pad. The
// pad may be a concrete name minted from a template.
func (e *Element) PadProperty(padName, name string) (*Property, bool) {
	for pattern, props := range e.PadProperties {
		d := pad.Descriptor{NamePattern: pattern}
		if d.Accepts(padName) {
			p, ok := props[name]
			return p, ok
		}
	}
	return nil, false
}

// StaticPads returns the Always pads in declaration order.
func (e *Element) StaticPads() []pad.Descriptor {
	return e.filter(func(d pad.Descriptor) bool { return d.Presence == pad.Always })
}

// Templates returns the Request and Sometimes templates in declaration order.
func (e *Element) Templates() []pad.Descriptor {
	return e.filter(func(d pad.Descriptor) bool { return d.Presence != pad.Always })
}

// Template returns the template whose base name equals base, e.g. "src" for
// "src_%u".
func (e *Element) Template(base string) (pad.Descriptor, bool) {
	for _, d := range e.Templates() {
		if d.BaseName() == base || d.NamePattern == base {
			return d, true
		}
	}
	return pad.Descriptor{}, false
}

// DefaultPad returns the sole Always pad in the given direction.
func (e *Element) DefaultPad(dir pad.Direction) (pad.Descriptor, bool) {
	var found []pad.Descriptor
	for _, d := range e.StaticPads() {
		if d.Direction == dir {
			found = append(found, d)
		}
	}
	if len(found) != 1 {
		return pad.Descriptor{}, false
	}
	return found[0], true
}

// PropertyNames returns the sorted node property names.
func (e *Element) PropertyNames() []string {
	names := make([]string, 0, len(e.Properties))
	for n := range e.Properties {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (e *Element) filter(keep func(pad.Descriptor) bool) []pad.Descriptor {
	var out []pad.Descriptor
	for _, d := range e.Pads {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}
