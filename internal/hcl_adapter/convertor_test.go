package hcl_adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

type busParams struct {
	Name  string `param:"name,required"`
	Width int    `param:"width"`
}

type testParams struct {
	Inputs   []int               `param:"inputs,required"`
	Matrix   map[string][]string `param:"matrix"`
	Gain     float64             `param:"gain"`
	Enabled  []bool              `param:"enabled"`
	Bus      *busParams          `param:"bus"`
	Extra    map[string]any      `param:"extra"`
	Raw      cty.Value           `param:"raw"`
	Label    string              `param:"label"`
	internal int
}

func TestDecodeParams(t *testing.T) {
	ctx := context.Background()
	params := map[string]cty.Value{
		"inputs": cty.TupleVal([]cty.Value{cty.NumberIntVal(2), cty.StringVal("1")}),
		"matrix": cty.ObjectVal(map[string]cty.Value{
			"0:0": cty.TupleVal([]cty.Value{cty.StringVal("0:0"), cty.StringVal("0:1")}),
			"1:0": cty.TupleVal([]cty.Value{}),
		}),
		"gain":    cty.NumberFloatVal(0.5),
		"enabled": cty.TupleVal([]cty.Value{cty.True, cty.StringVal("false")}),
		"bus":     cty.ObjectVal(map[string]cty.Value{"name": cty.StringVal("aux"), "width": cty.NumberIntVal(2)}),
		"extra":   cty.ObjectVal(map[string]cty.Value{"n": cty.NumberIntVal(3)}),
		"raw":     cty.StringVal("kept"),
	}

	p := testParams{Label: "default"}
	require.NoError(t, NewConverter().DecodeParams(ctx, &p, params))

	assert.Equal(t, []int{2, 1}, p.Inputs)
	assert.Equal(t, map[string][]string{"0:0": {"0:0", "0:1"}, "1:0": {}}, p.Matrix)
	assert.Equal(t, 0.5, p.Gain)
	assert.Equal(t, []bool{true, false}, p.Enabled)
	require.NotNil(t, p.Bus)
	assert.Equal(t, busParams{Name: "aux", Width: 2}, *p.Bus)
	assert.Equal(t, map[string]any{"n": int64(3)}, p.Extra)
	assert.Equal(t, "kept", p.Raw.AsString())
	assert.Equal(t, "default", p.Label, "absent parameters keep their default")
}

func TestDecodeParamsErrors(t *testing.T) {
	testCases := []struct {
		name        string
		params      map[string]cty.Value
		errContains []string
	}{
		{
			name:        "missing required",
			params:      map[string]cty.Value{},
			errContains: []string{`missing required parameter "inputs"`},
		},
		{
			name: "unknown parameters",
			params: map[string]cty.Value{
				"inputs": cty.ListValEmpty(cty.Number),
				"zeta":   cty.True,
				"alpha":  cty.True,
			},
			errContains: []string{`unsupported parameter "alpha"`, `unsupported parameter "zeta"`},
		},
		{
			name:        "fractional int",
			params:      map[string]cty.Value{"inputs": cty.TupleVal([]cty.Value{cty.NumberFloatVal(1.5)})},
			errContains: []string{"failed to decode parameter 'inputs'", "in slice element 0"},
		},
		{
			name:        "scalar for list",
			params:      map[string]cty.Value{"inputs": cty.StringVal("2")},
			errContains: []string{"cannot decode cty.string into Go slice"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var p testParams
			err := NewConverter().DecodeParams(context.Background(), &p, tc.params)
			require.Error(t, err)
			for _, want := range tc.errContains {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestDecodeParamsRejectsNonPointer(t *testing.T) {
	err := NewConverter().DecodeParams(context.Background(), testParams{}, nil)
	assert.ErrorContains(t, err, "non-nil pointer to a struct")
}

func TestToCtyValue(t *testing.T) {
	v, err := NewConverter().ToCtyValue(map[string]any{"a": 1, "b": "x"})
	require.NoError(t, err)
	assert.True(t, v.Type().IsObjectType())
}
