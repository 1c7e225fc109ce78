package hcl_adapter

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/ctyconv"
)

// paramTag is the struct tag naming a block parameter.
const paramTag = "param"

// Converter is the HCL-specific implementation of the config.Converter interface.
type Converter struct{}

// NewConverter creates a new HCL converter.
func NewConverter() *Converter {
	return &Converter{}
}

// ToCtyValue converts a native Go value into its corresponding cty.Value.
func (c *Converter) ToCtyValue(v any) (cty.Value, error) {
	return ctyconv.ToValue(v)
}

// DecodeParams populates the tagged fields of target from params. Fields
// keep their current value when the parameter is absent, so callers set
// defaults before decoding.
func (c *Converter) DecodeParams(ctx context.Context, target any, params map[string]cty.Value) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting parameter decoding.", "param_count", len(params))

	structVal := reflect.ValueOf(target)
	if structVal.Kind() != reflect.Ptr || structVal.IsNil() || structVal.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a non-nil pointer to a struct, got %T", target)
	}
	structVal = structVal.Elem()

	var errs []error
	known := make(map[string]struct{})
	for _, f := range taggedFields(structVal) {
		known[f.name] = struct{}{}
		val, provided := params[f.name]
		if !provided {
			if f.required {
				errs = append(errs, fmt.Errorf("missing required parameter %q", f.name))
			}
			continue
		}
		if err := c.decode(ctx, val, f.value.Addr()); err != nil {
			errs = append(errs, fmt.Errorf("failed to decode parameter '%s': %w", f.name, err))
		}
	}

	unknown := make([]string, 0)
	for name := range params {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		errs = append(errs, fmt.Errorf("unsupported parameter %q", name))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logger.Debug("Finished parameter decoding successfully.")
	return nil
}

// parseTag splits `param:"name,required"`.
func parseTag(tag string) (name string, required bool) {
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "-" {
		return "", false
	}
	for _, opt := range parts[1:] {
		if opt == "required" {
			required = true
		}
	}
	return name, required
}
