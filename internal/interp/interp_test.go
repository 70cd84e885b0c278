package interp

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/provider"
	"github.com/roach88/fieldop/internal/syntax"
	"github.com/roach88/fieldop/internal/testutil"
)

// direct runs nested calls on the same machine without the engine contract.
type direct struct{ m *Machine }

func (d *direct) CallNested(ctx context.Context, op *syntax.Operator, args []field.Value) (field.Value, error) {
	return d.m.Run(ctx, op, args)
}

func newMachine() *Machine {
	d := &direct{}
	d.m = New(d)
	return d.m
}

func define(t *testing.T, src string, extra map[string]any) *syntax.Operator {
	t.Helper()
	env := syntax.Env(testutil.MeshEnv())
	for k, v := range extra {
		env[k] = v
	}
	op, err := syntax.Define(src, env)
	require.NoError(t, err)
	return op
}

func meshScope(t *testing.T) context.Context {
	t.Helper()
	ctx, _, release, err := provider.Acquire(context.Background(), testutil.MeshOffsets())
	require.NoError(t, err)
	t.Cleanup(release)
	return ctx
}

func run(t *testing.T, op *syntax.Operator, args ...field.Value) *field.Field {
	t.Helper()
	v, err := newMachine().Run(meshScope(t), op, args)
	require.NoError(t, err)
	f, ok := v.(*field.Field)
	require.True(t, ok, "want a field, got %T", v)
	return f
}

func TestRunElementwise(t *testing.T) {
	op := define(t, `func add(a Field[Cell, float64], b Field[Cell, float64]) Field[Cell, float64] {
	return a + b
}`, nil)

	a := testutil.Ramp([]field.Dimension{testutil.Cell}, []int{15}, 1, 1, field.Float64)
	b := testutil.Ramp([]field.Dimension{testutil.Cell}, []int{15}, -1, -1, field.Float64)
	got := run(t, op, a, b)
	assert.Equal(t, make([]float64, 15), got.Float64s())
}

func TestRunNeighborSum(t *testing.T) {
	op := define(t, `func nsum(a Field[Cell, float64]) Field[Edge, float64] {
	return neighbor_sum(a(E2C), E2CDim)
}`, nil)

	got := run(t, op, testutil.Cells(1, 2, 3, 4, 5))
	assert.Equal(t, []field.Dimension{testutil.Edge}, got.Dims())
	assert.Equal(t, []float64{3, 3, 6, 9}, got.Float64s())
}

func TestRunIndexedTransform(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []float64
	}{
		{name: "subscript", body: "return a(E2C[2])", want: []float64{2, 0, 4, 5}},
		{name: "index argument", body: "return a(E2C, 1)", want: []float64{1, 3, 2, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := define(t, "func pick(a Field[Cell, float64]) Field[Edge, float64] {\n\t"+tt.body+"\n}", nil)
			got := run(t, op, testutil.Cells(1, 2, 3, 4, 5))
			assert.Equal(t, tt.want, got.Float64s())
		})
	}
}

func TestRunMaskedMaxOver(t *testing.T) {
	op := define(t, `func lo(a Field[Cell, float64]) Field[Edge, float64] {
	return max_over(a(E2C), E2CDim)
}`, nil)

	got := run(t, op, testutil.Cells(-1, -2, -3, -4, -5))
	// The boundary edge has one neighbor; its sentinel does not contribute 0.
	assert.Equal(t, []float64{-1, -3, -2, -4}, got.Float64s())
}

func TestRunUntypedConstantsKeepPeerType(t *testing.T) {
	op := define(t, `func affine(a Field[Cell, float32]) Field[Cell, float32] {
	return 2*a + 1
}`, nil)

	a := field.MustNew([]field.Dimension{testutil.Cell}, []int{2}, []float64{0.5, 1.5}, field.Float32)
	got := run(t, op, a)
	assert.Equal(t, field.Float32, got.DType())
	assert.Equal(t, []float64{2, 4}, got.Float64s())
}

func TestRunIfElse(t *testing.T) {
	op := define(t, `func flip(a Field[Cell, float64], s bool) Field[Cell, float64] {
	if s {
		a = a * 2
	} else {
		a = -a
	}
	return a
}`, nil)

	a := testutil.Cells(1, 2)
	assert.Equal(t, []float64{2, 4}, run(t, op, a, field.BoolScalar(true)).Float64s())
	assert.Equal(t, []float64{-1, -2}, run(t, op, a, field.BoolScalar(false)).Float64s())
}

func TestRunChainedScalarComparison(t *testing.T) {
	op := define(t, `func clamp(a Field[Cell, float64], lo float64, hi float64) Field[Cell, float64] {
	r := a
	if lo < 1.0 < hi {
		r = a * 2.0
	}
	return r
}`, nil)

	a := testutil.Cells(3)
	scalar := func(v float64) *field.Field { return field.Scalar(v, field.Float64) }
	assert.Equal(t, []float64{6}, run(t, op, a, scalar(0), scalar(2)).Float64s())
	assert.Equal(t, []float64{3}, run(t, op, a, scalar(1.5), scalar(2)).Float64s())
}

func TestRunAugmentedAssignment(t *testing.T) {
	op := define(t, `func bump(a Field[Cell, int64]) Field[Cell, int64] {
	b := a
	b += 2
	b++
	b *= 3
	return b
}`, nil)

	a := field.MustNew([]field.Dimension{testutil.Cell}, []int{2}, []float64{0, 1}, field.Int64)
	assert.Equal(t, []int64{9, 12}, run(t, op, a).Int64s())
}

func TestRunWhereAndMath(t *testing.T) {
	op := define(t, `func sel(a Field[Cell, float64]) Field[Cell, float64] {
	r := where(a > 2.0, a, 0.0)
	return math.Sqrt(r) * math.Pi
}`, nil)

	got := run(t, op, testutil.Cells(1, 2, 4, 9))
	assert.InDeltaSlice(t, []float64{0, 0, 2 * math.Pi, 3 * math.Pi}, got.Float64s(), 1e-12)
}

func TestRunTypeConstructor(t *testing.T) {
	op := define(t, `func trunc(a Field[Cell, float64]) Field[Cell, int32] {
	return int32(a)
}`, nil)

	got := run(t, op, testutil.Cells(1.7, -2.5))
	assert.Equal(t, field.Int32, got.DType())
	assert.Equal(t, []int64{1, -2}, got.Int64s())
}

func TestRunTuplesAndNestedCalls(t *testing.T) {
	split := define(t, `func split(a Field[Cell, float64]) (Field[Cell, float64], Field[Cell, float64]) {
	return a, -a
}`, nil)
	op := define(t, `func combine(a Field[Cell, float64]) Field[Cell, float64] {
	x, y := split(a)
	t := split(a)
	return x + y + t[1] + t[2]*0.5
}`, map[string]any{"split": split})

	got := run(t, op, testutil.Cells(2, 4))
	assert.Equal(t, []float64{1, 2}, got.Float64s())
}

func TestRunTupleResult(t *testing.T) {
	op := define(t, `func both(a Field[Cell, float64]) Tuple[Field[Cell, float64], Field[Cell, bool]] {
	return a * a, a > 1.0
}`, nil)

	v, err := newMachine().Run(meshScope(t), op, []field.Value{testutil.Cells(1, 2)})
	require.NoError(t, err)
	tup, ok := v.(field.Tuple)
	require.True(t, ok)
	require.Len(t, tup, 2)
	assert.Equal(t, []float64{1, 4}, tup[0].(*field.Field).Float64s())
	assert.Equal(t, []bool{false, true}, tup[1].(*field.Field).Bools())
}

func TestRunErrors(t *testing.T) {
	t.Run("logical operator on fields", func(t *testing.T) {
		op := define(t, `func both(a Field[Cell, float64]) Field[Cell, bool] {
	return a > 1.0 && a < 3.0
}`, nil)
		_, err := newMachine().Run(meshScope(t), op, []field.Value{testutil.Cells(1, 2)})
		require.Error(t, err)
		var te *syntax.TranslationError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, syntax.KindType, te.Kind)
		assert.Equal(t, "&&", te.Construct)
		assert.Equal(t, 2, te.Pos.Line)
	})

	t.Run("no offset provider", func(t *testing.T) {
		op := define(t, `func nsum(a Field[Cell, float64]) Field[Edge, float64] {
	return neighbor_sum(a(E2C), E2CDim)
}`, nil)
		_, err := newMachine().Run(context.Background(), op, []field.Value{testutil.Cells(1, 2, 3, 4, 5)})
		assert.True(t, field.IsDimensionMismatch(err), "got %v", err)
	})

	t.Run("result annotation mismatch", func(t *testing.T) {
		op := define(t, `func bad(a Field[Cell, float64]) Field[Cell, int64] {
	return a
}`, nil)
		_, err := newMachine().Run(meshScope(t), op, []field.Value{testutil.Cells(1)})
		var se *field.ShapeError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, field.CodeArgument, se.Code)
	})

	t.Run("argument count", func(t *testing.T) {
		op := define(t, `func id(a Field[Cell, float64]) Field[Cell, float64] {
	return a
}`, nil)
		_, err := newMachine().Run(meshScope(t), op, nil)
		assert.True(t, field.IsShapeError(err))
	})

	t.Run("shape error is located", func(t *testing.T) {
		op := define(t, `func add(a Field[Cell, float64], b Field[Cell, float64]) Field[Cell, float64] {
	return a + b
}`, nil)
		_, err := newMachine().Run(meshScope(t), op, []field.Value{testutil.Cells(1, 2), testutil.Cells(1, 2, 3)})
		assert.True(t, field.IsShapeError(err))
		assert.Contains(t, err.Error(), "operator.go:2:")
	})

	t.Run("cancelled context", func(t *testing.T) {
		op := define(t, `func id(a Field[Cell, float64]) Field[Cell, float64] {
	return a
}`, nil)
		ctx, cancel := context.WithCancel(meshScope(t))
		cancel()
		_, err := newMachine().Run(ctx, op, []field.Value{testutil.Cells(1)})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRunLaplacian(t *testing.T) {
	g := testutil.NewCartesian(8)
	op, err := syntax.Define(testutil.LaplaceSource, g.Env())
	require.NoError(t, err)

	ctx, _, release, err := provider.Acquire(context.Background(), g.Offsets())
	require.NoError(t, err)
	defer release()

	v, err := New(nil).Run(ctx, op, []field.Value{g.Full(1)})
	require.NoError(t, err)
	lap := v.(*field.Field)
	assert.ElementsMatch(t, []field.Dimension{g.I, g.J}, lap.Dims())
	assert.Equal(t, make([]float64, 36), lap.Float64s())
}
