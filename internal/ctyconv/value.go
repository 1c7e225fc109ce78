package ctyconv

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ToValue converts a native Go value into a cty.Value. Generic containers
// ([]any, map[string]any) decoded from YAML or JSON become tuples and
// objects; everything else goes through gocty's implied type. A cty.Value is
// returned unchanged.
func ToValue(v any) (cty.Value, error) {
	switch t := v.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case cty.Value:
		return t, nil
	case []any:
		elems := make([]cty.Value, len(t))
		for i, e := range t {
			ev, err := ToValue(e)
			if err != nil {
				return cty.NilVal, fmt.Errorf("element %d: %w", i, err)
			}
			elems[i] = ev
		}
		return cty.TupleVal(elems), nil
	case map[string]any:
		attrs := make(map[string]cty.Value, len(t))
		for k, e := range t {
			ev, err := ToValue(e)
			if err != nil {
				return cty.NilVal, fmt.Errorf("attribute %q: %w", k, err)
			}
			attrs[k] = ev
		}
		return cty.ObjectVal(attrs), nil
	}

	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type: %w", err)
	}
	return gocty.ToCtyValue(v, ty)
}

// Convert converts v to ty, first turning a native value into a cty.Value.
func Convert(v any, ty cty.Type) (cty.Value, error) {
	val, err := ToValue(v)
	if err != nil {
		return cty.NilVal, err
	}
	out, err := convert.Convert(val, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("cannot convert %s to %s: %w", val.Type().FriendlyName(), ty.FriendlyName(), err)
	}
	return out, nil
}

// ToNative converts a known cty.Value into plain Go values: bool, string,
// int64 for integral numbers, float64 otherwise, []any and map[string]any.
// Null values become nil.
func ToNative(val cty.Value) (any, error) {
	if val.IsNull() {
		return nil, nil
	}
	if !val.IsKnown() {
		return nil, fmt.Errorf("cannot convert unknown value")
	}

	ty := val.Type()
	switch {
	case ty == cty.String:
		return val.AsString(), nil
	case ty == cty.Bool:
		return val.True(), nil
	case ty == cty.Number:
		return numberToNative(val.AsBigFloat()), nil
	case ty.IsListType() || ty.IsSetType() || ty.IsTupleType():
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			n, err := ToNative(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	case ty.IsMapType() || ty.IsObjectType():
		out := make(map[string]any, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			n, err := ToNative(ev)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported cty type %s", ty.FriendlyName())
	}
}

func numberToNative(f *big.Float) any {
	if f.IsInt() {
		if i, acc := f.Int64(); acc == big.Exact {
			return i
		}
	}
	v, _ := f.Float64()
	return v
}

// SortedKeys returns the attribute names of an object or map value in
// lexical order.
func SortedKeys(val cty.Value) []string {
	if val.IsNull() || !val.IsKnown() {
		return nil
	}
	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil
	}
	keys := make([]string, 0, val.LengthInt())
	for k := range val.AsValueMap() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
