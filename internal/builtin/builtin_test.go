package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldop/internal/field"
)

var (
	cell  = field.NewDimension("Cell", field.Horizontal)
	k     = field.NewDimension("K", field.Vertical)
	local = field.NewDimension("C2E", field.Local)
)

func TestApplyReductions(t *testing.T) {
	f := field.MustNew([]field.Dimension{cell, local}, []int{2, 3}, []float64{1, 2, 3, -4, -5, -6}, field.Float64)

	tests := []struct {
		name string
		want []float64
	}{
		{"neighbor_sum", []float64{6, -15}},
		{"min_over", []float64{1, -6}},
		{"max_over", []float64{3, -4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Apply(tt.name, []Arg{f, local})
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.(*field.Field).Float64s())
		})
	}
}

func TestApplyArgumentErrors(t *testing.T) {
	f := field.FromFloat64s(cell, []float64{1})

	_, err := Apply("neighbor_sum", []Arg{f})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 1 arguments")

	_, err = Apply("neighbor_sum", []Arg{f, f})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want a dimension")

	_, err = Apply("nope", nil)
	require.Error(t, err)

	_, err = Apply("neighbor_sum", []Arg{f, k})
	assert.True(t, field.IsShapeError(err))
}

func TestApplyBroadcastAndAstype(t *testing.T) {
	f := field.FromFloat64s(k, []float64{1.5, 2.5})
	v, err := Apply("broadcast", []Arg{f, cell, k})
	require.NoError(t, err)
	assert.Equal(t, []field.Dimension{cell, k}, v.(*field.Field).BroadcastDims())

	v, err = Apply("astype", []Arg{f, field.Int32})
	require.NoError(t, err)
	assert.Equal(t, field.Int32, v.(*field.Field).DType())
	assert.Equal(t, []int64{1, 2}, v.(*field.Field).Int64s())
}

func TestApplyWhereTuple(t *testing.T) {
	mask := field.MustNew([]field.Dimension{cell}, []int{2}, []float64{0, 1}, field.Bool)
	a := field.FromFloat64s(cell, []float64{1, 2})
	b := field.FromFloat64s(cell, []float64{3, 4})

	pair, err := Apply("tuple", []Arg{a, b})
	require.NoError(t, err)
	swapped, err := Apply("tuple", []Arg{b, a})
	require.NoError(t, err)

	v, err := Apply("where", []Arg{mask, pair, swapped})
	require.NoError(t, err)
	tup := v.(field.Tuple)
	assert.Equal(t, []float64{3, 2}, tup[0].(*field.Field).Float64s())
	assert.Equal(t, []float64{1, 4}, tup[1].(*field.Field).Float64s())
}

func TestCatalogTables(t *testing.T) {
	for member, name := range MathMembers {
		assert.True(t, Lookup(name), "math.%s maps to unknown built-in %s", member, name)
	}
	for _, name := range Reductions {
		lo, hi, ok := Arity(name)
		require.True(t, ok)
		assert.Equal(t, 2, lo)
		assert.Equal(t, 2, hi)
	}
	assert.Contains(t, Names(), "where")
}
