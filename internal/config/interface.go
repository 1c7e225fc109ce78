package config

import (
	"context"

	"github.com/zclconf/go-cty/cty"
)

// Loader is the interface for a format-specific flow loader.
type Loader interface {
	// Load reads flow definitions from the given paths, translates them into
	// the format-agnostic model, and returns a matching Converter.
	Load(ctx context.Context, paths ...string) (*Model, Converter, error)
}

// Converter is the interface for a format-specific data binding and type
// conversion implementation. It acts as the bridge between raw block
// parameters and the Go types block compilers use.
type Converter interface {
	// DecodeParams decodes block parameters into a target Go struct whose
	// fields carry `param:"name"` tags. Unknown parameters and missing
	// required ones are errors.
	DecodeParams(ctx context.Context, target any, params map[string]cty.Value) error

	// ToCtyValue converts a native Go value (like a map[string]any from a pure
	// Go caller) into its equivalent cty.Value.
	ToCtyValue(v any) (cty.Value, error)
}
