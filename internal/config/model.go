package config

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of one flow.
type Model struct {
	Name     string
	Elements []*Element
	Blocks   []*Block
	Links    []*Link
}

// Element is a single node declared directly in the flow.
type Element struct {
	Kind       string
	ID         string
	Properties map[string]cty.Value
}

// Block is an instance of a parametrized block type.
type Block struct {
	Type   string
	Name   string
	Params map[string]cty.Value
}

// Link connects two references. A reference is "node", "node.pad", or
// "block.external" where external names a pad the block exposes.
type Link struct {
	From string
	To   string
}

// Validate checks that element and block names are unique across the flow.
func (m *Model) Validate() error {
	seen := make(map[string]string)
	claim := func(name, what string) error {
		if prev, dup := seen[name]; dup {
			return fmt.Errorf("name %q used by both %s and %s", name, prev, what)
		}
		seen[name] = what
		return nil
	}
	for _, e := range m.Elements {
		if err := claim(e.ID, fmt.Sprintf("element %q", e.Kind)); err != nil {
			return err
		}
	}
	for _, b := range m.Blocks {
		if err := claim(b.Name, fmt.Sprintf("block %q", b.Type)); err != nil {
			return err
		}
	}
	for i, l := range m.Links {
		if l.From == "" || l.To == "" {
			return fmt.Errorf("link %d needs both from and to", i)
		}
	}
	return nil
}
