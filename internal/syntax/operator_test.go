package syntax

import (
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldop/internal/builtin"
	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/ir"
)

var (
	cell   = field.NewDimension("Cell", field.Horizontal)
	edge   = field.NewDimension("Edge", field.Horizontal)
	k      = field.NewDimension("K", field.Vertical)
	e2cDim = field.NewDimension("E2CDim", field.Local)
	e2c    = field.MustOffset("E2C", cell, edge, e2cDim)
)

func testEnv() Env {
	return Env{
		"Cell":   cell,
		"Edge":   edge,
		"K":      k,
		"E2CDim": e2cDim,
		"E2C":    e2c,
	}
}

func TestDefineSignature(t *testing.T) {
	op, err := Define(`
func edge_sum(a Field[Cell, K, float64], s float64) (Field[Edge, K, float64], Field[Cell, K, float64]) {
	return neighbor_sum(a(E2C), E2CDim), a * s
}`, testEnv())
	require.NoError(t, err)

	assert.Equal(t, "edge_sum", op.Name)
	require.Len(t, op.Params, 2)
	assert.Equal(t, "a", op.Params[0].Name)
	assert.Equal(t, ir.FieldType{
		Dims:  []ir.Dim{{Name: "Cell", Kind: "horizontal"}, {Name: "K", Kind: "vertical"}},
		DType: "float64",
	}, op.Params[0].Type)
	assert.Equal(t, ir.ScalarType{DType: "float64"}, op.Params[1].Type)
	require.IsType(t, ir.TupleType{}, op.Result)
	assert.Len(t, op.Result.(ir.TupleType).Elems, 2)

	assert.Equal(t, CaptureOffset, op.Captures["E2C"].Kind)
	assert.Equal(t, CaptureDimension, op.Captures["E2CDim"].Kind)
	assert.Equal(t, CaptureDimension, op.Captures["Cell"].Kind)
	assert.NotEqual(t, [16]byte{}, [16]byte(op.ID))
}

func TestDefineDistinctIdentity(t *testing.T) {
	src := `func id(a Field[Cell, float64]) Field[Cell, float64] { return a }`
	a, err := Define(src, testEnv())
	require.NoError(t, err)
	b, err := Define(src, testEnv())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestDefineCaptures(t *testing.T) {
	inner, err := Define(`func inner(a Field[Cell, float64]) Field[Cell, float64] { return a }`, testEnv())
	require.NoError(t, err)

	env := testEnv()
	env["dt"] = 0.5
	env["n"] = int32(3)
	env["flag"] = true
	env["inner"] = inner
	env["nsum"] = builtin.Name("neighbor_sum")
	env["wp"] = field.Float32

	op, err := Define(`
func outer(a Field[Cell, float64]) Field[Cell, float64] {
	x := inner(a) * dt
	if flag {
		x = x + n
	}
	y := wp(x)
	return float64(y)
}`, env)
	require.NoError(t, err)

	assert.Equal(t, CaptureScalar, op.Captures["dt"].Kind)
	assert.Equal(t, field.Int32, op.Captures["n"].Scalar.DType())
	assert.Equal(t, CaptureScalar, op.Captures["flag"].Kind)
	assert.Equal(t, CaptureOperator, op.Captures["inner"].Kind)
	assert.Equal(t, CaptureType, op.Captures["wp"].Kind)
	_, captured := op.Captures["nsum"]
	assert.False(t, captured, "unreferenced env entries are not captured")
	assert.Equal(t, []*Operator{inner}, op.Deps())
}

func TestDefineCapabilityError(t *testing.T) {
	env := testEnv()
	env["table"] = []int{1, 2}
	_, err := Define(`func f(a Field[Cell, float64]) Field[Cell, float64] { return a * table }`, env)
	require.Error(t, err)
	assert.True(t, IsCapabilityError(err))

	env["arr"] = field.FromFloat64s(cell, []float64{1})
	_, err = Define(`func f(a Field[Cell, float64]) Field[Cell, float64] { return a * arr }`, env)
	assert.True(t, IsCapabilityError(err))
}

func TestDefineTranslationErrors(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		kind      TranslationErrorKind
		construct string
		line      int
	}{
		{
			name: "for loop",
			src: `func f(a Field[Cell, float64]) Field[Cell, float64] {
	for i := 0; i < 3; i++ {
		a = a + 1
	}
	return a
}`,
			kind: KindConstruct, construct: "for loop", line: 2,
		},
		{
			name: "range loop",
			src: `func f(a Field[Cell, float64]) Field[Cell, float64] {
	for range 3 {
	}
	return a
}`,
			kind: KindConstruct, construct: "range loop", line: 2,
		},
		{
			name:      "closure",
			src:       "func f(a Field[Cell, float64]) Field[Cell, float64] {\n\tg := func() int { return 1 }\n\treturn a\n}",
			kind:      KindConstruct,
			construct: "closure",
			line:      2,
		},
		{
			name:      "forbidden builtin",
			src:       "func f(a Field[Cell, float64]) Field[Cell, float64] {\n\tn := len(a)\n\treturn a\n}",
			kind:      KindConstruct,
			construct: "builtin len",
			line:      2,
		},
		{
			name:      "early return",
			src:       "func f(a Field[Cell, float64]) Field[Cell, float64] {\n\tif true {\n\t\treturn a\n\t}\n\treturn a\n}",
			kind:      KindConstruct,
			construct: "return",
			line:      3,
		},
		{
			name:      "missing return",
			src:       "func f(a Field[Cell, float64]) Field[Cell, float64] {\n\tb := a\n}",
			kind:      KindConstruct,
			construct: "return",
			line:      2,
		},
		{
			name:      "switch",
			src:       "func f(a Field[Cell, float64]) Field[Cell, float64] {\n\tswitch {\n\t}\n\treturn a\n}",
			kind:      KindConstruct,
			construct: "switch",
			line:      2,
		},
		{
			name:      "string literal",
			src:       "func f(a Field[Cell, float64]) Field[Cell, float64] {\n\tb := \"x\"\n\treturn a\n}",
			kind:      KindConstruct,
			construct: "literal",
			line:      2,
		},
		{
			name:      "undefined",
			src:       "func f(a Field[Cell, float64]) Field[Cell, float64] {\n\treturn a + missing\n}",
			kind:      KindSyntax,
			construct: "identifier",
			line:      2,
		},
		{
			name:      "unsupported annotation",
			src:       "func f(a []float64) Field[Cell, float64] {\n\treturn a\n}",
			kind:      KindAnnotation,
			construct: "annotation",
			line:      1,
		},
		{
			name:      "dimension not captured",
			src:       "func f(a Field[Vertex, float64]) Field[Cell, float64] {\n\treturn a\n}",
			kind:      KindAnnotation,
			construct: "annotation",
			line:      1,
		},
		{
			name: "parse error",
			src:  "func f(a Field[Cell, float64]) Field[Cell, float64] {\n\treturn a +\n}",
			kind: KindSyntax,
			line: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Define(tt.src, testEnv())
			require.Error(t, err)
			var te *TranslationError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.kind, te.Kind, te.Error())
			if tt.construct != "" {
				assert.Equal(t, tt.construct, te.Construct)
			}
			assert.Equal(t, tt.line, te.Pos.Line, te.Error())
		})
	}
}

func TestDefineWithPackageClause(t *testing.T) {
	op, err := DefineFile("ops.go", `package ops

import "math"

func root(a Field[Cell, float64]) Field[Cell, float64] {
	return math.Sqrt(a)
}`, testEnv())
	require.NoError(t, err)
	assert.Equal(t, "root", op.Name)

	ret := op.Decl.Body.List[0]
	pos := op.Position(ret.Pos())
	assert.Equal(t, "ops.go", pos.Filename)
	assert.Equal(t, 6, pos.Line)
}

func TestCheckValue(t *testing.T) {
	ann := ir.FieldType{Dims: []ir.Dim{DimOf(cell), DimOf(k)}, DType: "float64"}
	ok := field.MustNew([]field.Dimension{k, cell}, []int{1, 2}, []float64{1, 2}, field.Float64)
	assert.NoError(t, CheckValue(ann, ok))

	wrong := field.FromFloat64s(cell, []float64{1, 2})
	err := CheckValue(ann, wrong)
	var se *field.ShapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, field.CodeArgument, se.Code)

	assert.NoError(t, CheckValue(nil, wrong))
}

func TestConstType(t *testing.T) {
	f32 := field.Float32
	i32 := field.Int32
	b := field.Bool
	assert.Equal(t, field.Float32, ConstType(token.INT, &f32))
	assert.Equal(t, field.Int32, ConstType(token.INT, &i32))
	assert.Equal(t, field.Float64, ConstType(token.FLOAT, &i32))
	assert.Equal(t, field.Int64, ConstType(token.INT, &b))
	assert.Equal(t, field.Float64, ConstType(token.FLOAT, nil))
}
