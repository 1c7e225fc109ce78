package hcl_adapter

import (
	"context"
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctxlog"
	"github.com/eyevinn-osaas/strom-sub001/internal/ctyconv"
)

var (
	ctyValueType = reflect.TypeOf(cty.Value{})
	anyMapType   = reflect.TypeOf((map[string]any)(nil))
)

// taggedField is a settable struct field carrying a param tag.
type taggedField struct {
	name     string
	required bool
	value    reflect.Value
}

// taggedFields lists the settable, tagged fields of a struct value.
func taggedFields(structVal reflect.Value) []taggedField {
	structType := structVal.Type()
	var out []taggedField
	for i := 0; i < structType.NumField(); i++ {
		def := structType.Field(i)
		fv := structVal.Field(i)
		if !def.IsExported() || !fv.CanSet() {
			continue
		}
		name, required := parseTag(def.Tag.Get(paramTag))
		if name == "" {
			continue
		}
		out = append(out, taggedField{name: name, required: required, value: fv})
	}
	return out
}

// decode populates the value goPtr points to from val, guided by its type.
// Null values leave the target untouched so defaults survive.
func (c *Converter) decode(ctx context.Context, val cty.Value, goPtr reflect.Value) error {
	target := goPtr.Elem()
	goType := target.Type()

	if goType == ctyValueType {
		if val.IsKnown() {
			target.Set(reflect.ValueOf(val))
		}
		return nil
	}
	if !val.IsKnown() || val.IsNull() {
		return nil
	}

	switch goType.Kind() {
	case reflect.Struct:
		return c.decodeStruct(ctx, val, target)
	case reflect.Interface:
		return setNative(val, target)
	case reflect.Map:
		return c.decodeMap(ctx, val, target)
	case reflect.Slice:
		return c.decodeSlice(ctx, val, target)
	case reflect.Ptr:
		elem := reflect.New(goType.Elem())
		if err := c.decode(ctx, val, elem); err != nil {
			return err
		}
		target.Set(elem)
		return nil
	default:
		return decodePrimitive(val, goPtr)
	}
}

func (c *Converter) decodeStruct(ctx context.Context, val cty.Value, target reflect.Value) error {
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return fmt.Errorf("type mismatch: cannot decode cty value of type %s into Go struct %s", val.Type().FriendlyName(), target.Type())
	}
	attrs := val.AsValueMap()
	for _, f := range taggedFields(target) {
		attr, ok := attrs[f.name]
		if !ok {
			continue
		}
		if err := c.decode(ctx, attr, f.value.Addr()); err != nil {
			return fmt.Errorf("in attribute '%s': %w", f.name, err)
		}
	}
	return nil
}

func (c *Converter) decodeSlice(ctx context.Context, val cty.Value, target reflect.Value) error {
	ty := val.Type()
	if !ty.IsListType() && !ty.IsTupleType() && !ty.IsSetType() {
		return fmt.Errorf("type mismatch: cannot decode cty.%s into Go slice %s", ty.FriendlyName(), target.Type())
	}
	out := reflect.MakeSlice(target.Type(), val.LengthInt(), val.LengthInt())
	it := val.ElementIterator()
	for i := 0; it.Next(); i++ {
		_, elem := it.Element()
		if err := c.decode(ctx, elem, out.Index(i).Addr()); err != nil {
			return fmt.Errorf("in slice element %d: %w", i, err)
		}
	}
	target.Set(out)
	return nil
}

// decodeMap fills string-keyed maps. map[string]any takes native values,
// typed maps decode every element.
func (c *Converter) decodeMap(ctx context.Context, val cty.Value, target reflect.Value) error {
	goType := target.Type()
	if !val.Type().IsObjectType() && !val.Type().IsMapType() {
		return fmt.Errorf("type mismatch: cannot decode cty.%s into Go map %s", val.Type().FriendlyName(), goType)
	}
	if goType.Key().Kind() != reflect.String {
		return fmt.Errorf("unsupported map key type %s", goType.Key())
	}
	if goType == anyMapType {
		return setNative(val, target)
	}

	ctxlog.FromContext(ctx).Debug("Decoding typed map.", "go_type", goType.String(), "entries", val.LengthInt())
	out := reflect.MakeMapWithSize(goType, val.LengthInt())
	it := val.ElementIterator()
	for it.Next() {
		key, elem := it.Element()
		ptr := reflect.New(goType.Elem())
		if err := c.decode(ctx, elem, ptr); err != nil {
			return fmt.Errorf("failed to decode map element '%s': %w", key.AsString(), err)
		}
		out.SetMapIndex(reflect.ValueOf(key.AsString()).Convert(goType.Key()), ptr.Elem())
	}
	target.Set(out)
	return nil
}

func setNative(val cty.Value, target reflect.Value) error {
	native, err := ctyconv.ToNative(val)
	if err != nil {
		return err
	}
	if native != nil {
		target.Set(reflect.ValueOf(native))
	}
	return nil
}

func decodePrimitive(val cty.Value, goPtr reflect.Value) error {
	want, err := gocty.ImpliedType(goPtr.Elem().Interface())
	if err != nil {
		return fmt.Errorf("cannot imply cty type for %s: %w", goPtr.Elem().Type(), err)
	}
	converted, err := convert.Convert(val, want)
	if err != nil {
		return fmt.Errorf("cannot convert value of type %s to %s: %w", val.Type().FriendlyName(), want.FriendlyName(), err)
	}
	return gocty.FromCtyValue(converted, goPtr.Interface())
}
