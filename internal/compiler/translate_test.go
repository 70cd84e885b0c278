package compiler

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldop/internal/ir"
	"github.com/roach88/fieldop/internal/syntax"
	"github.com/roach88/fieldop/internal/testutil"
)

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

var (
	cellDim  = syntax.DimOf(testutil.Cell)
	edgeDim  = syntax.DimOf(testutil.Edge)
	localDim = syntax.DimOf(testutil.E2CDim)
)

func TestTranslateNeighborSum(t *testing.T) {
	op := define(t, `func nsum(a Field[Cell, float64]) Field[Edge, float64] {
	g := a(E2C)
	return neighbor_sum(g, E2CDim)
}`, nil)

	p, err := NewCache().Translate(op)
	require.NoError(t, err)

	assert.Equal(t, "nsum", p.Name)
	assert.Equal(t, []ir.Param{{Name: "a", T: ir.FieldType{Dims: []ir.Dim{cellDim}, DType: "float64"}}}, p.Params)
	assert.Equal(t, []ir.OffsetDecl{syntax.OffsetDecl(testutil.E2C)}, p.Offsets)
	require.Len(t, p.Body, 2)

	assign := p.Body[0].(*ir.Assign)
	assert.Equal(t, "g", assign.Name)
	remap := assign.Value.(*ir.Remap)
	assert.Equal(t, "E2C", remap.Offset)
	assert.Equal(t, -1, remap.Index)
	assert.Equal(t, ir.FieldType{Dims: []ir.Dim{edgeDim, localDim}, DType: "float64"}, remap.ResultType())
	assert.Equal(t, ir.Loc{Line: 2, Col: 7}, remap.Pos())

	ret := p.Body[1].(*ir.Return)
	call := ret.Value.(*ir.Call)
	assert.Equal(t, "neighbor_sum", call.Name)
	assert.Equal(t, &ir.DimRef{Meta: ir.Meta{Loc: ir.Loc{Line: 3, Col: 25}}, Dim: localDim}, call.Args[1])
	assert.Equal(t, ir.FieldType{Dims: []ir.Dim{edgeDim}, DType: "float64"}, call.ResultType())
}

func TestTranslateSubscriptsAreZeroBased(t *testing.T) {
	op := define(t, `func pick(a Field[Cell, float64]) (Field[Edge, float64], Field[Edge, float64]) {
	return a(E2C[2]), a(E2C, 1)
}`, nil)

	p, err := NewCache().Translate(op)
	require.NoError(t, err)
	tuple := p.Body[0].(*ir.Return).Value.(*ir.MakeTuple)
	assert.Equal(t, 1, tuple.Elems[0].(*ir.Remap).Index)
	assert.Equal(t, 0, tuple.Elems[1].(*ir.Remap).Index)
}

func TestTranslateConstantsTakePeerType(t *testing.T) {
	op := define(t, `func affine(a Field[Cell, float32]) Field[Cell, float32] {
	return 2*a + 1
}`, nil)

	p, err := NewCache().Translate(op)
	require.NoError(t, err)
	sum := p.Body[0].(*ir.Return).Value.(*ir.Binary)
	assert.Equal(t, "add", sum.Op)
	assert.Equal(t, ir.ScalarType{DType: "float32"}, sum.Y.ResultType())
	prod := sum.X.(*ir.Binary)
	lit := prod.X.(*ir.Literal)
	assert.Equal(t, "2", lit.Value)
	assert.Equal(t, ir.ScalarType{DType: "float32"}, lit.ResultType())
}

func TestTranslateTernaryIf(t *testing.T) {
	op := define(t, `func pick(a Field[Cell, float64], b Field[Cell, float64], s bool) Field[Cell, float64] {
	if s {
		r := a
	} else {
		r := b
	}
	return r
}`, nil)

	p, err := NewCache().Translate(op)
	require.NoError(t, err)
	require.Len(t, p.Body, 2)
	assign := p.Body[0].(*ir.Assign)
	assert.Equal(t, "r", assign.Name)
	cond, ok := assign.Value.(*ir.Cond)
	require.True(t, ok, "got %T", assign.Value)
	assert.Equal(t, "s", cond.Cond.(*ir.Sym).Name)
	assert.Equal(t, "a", cond.Then.(*ir.Sym).Name)
	assert.Equal(t, "b", cond.Else.(*ir.Sym).Name)
}

func TestTranslateGeneralIf(t *testing.T) {
	op := define(t, `func steps(a Field[Cell, float64], s bool) Field[Cell, float64] {
	r := a
	if s {
		r = r * 2.0
		r = r + 1.0
	}
	return r
}`, nil)

	p, err := NewCache().Translate(op)
	require.NoError(t, err)
	require.Len(t, p.Body, 3)
	ifs := p.Body[1].(*ir.If)
	assert.Len(t, ifs.Then, 2)
	assert.Empty(t, ifs.Else)
}

func TestTranslateDestructuring(t *testing.T) {
	split := define(t, `func split(a Field[Cell, float64]) (Field[Cell, float64], Field[Cell, float64]) {
	return a, -a
}`, nil)
	op := define(t, `func combine(a Field[Cell, float64]) Field[Cell, float64] {
	x, _ := split(a)
	return x
}`, map[string]any{"split": split})

	p, err := NewCache().Translate(op)
	require.NoError(t, err)
	require.Len(t, p.Body, 3)
	tmp := p.Body[0].(*ir.Assign)
	assert.Equal(t, "__dst1", tmp.Name)
	assert.Equal(t, "split", tmp.Value.(*ir.OpCall).Op)
	get := p.Body[1].(*ir.Assign)
	assert.Equal(t, "x", get.Name)
	assert.Equal(t, 0, get.Value.(*ir.TupleGet).Index)
	require.Contains(t, p.Deps, "split")
	assert.Equal(t, "split", p.Deps["split"].Name)
}

func TestTranslateCollectsDepOffsets(t *testing.T) {
	inner := define(t, `func inner(a Field[Cell, float64]) Field[Edge, float64] {
	return neighbor_sum(a(E2C), E2CDim)
}`, nil)
	op := define(t, `func outer(a Field[Cell, float64]) Field[Edge, float64] {
	return inner(a) * 2.0
}`, map[string]any{"inner": inner})

	p, err := NewCache().Translate(op)
	require.NoError(t, err)
	assert.Equal(t, []ir.OffsetDecl{syntax.OffsetDecl(testutil.E2C)}, p.Offsets)
}

func TestTranslateCache(t *testing.T) {
	inner := define(t, `func inner(a Field[Cell, float64]) Field[Cell, float64] {
	return a * a
}`, nil)
	op := define(t, `func outer(a Field[Cell, float64]) Field[Cell, float64] {
	return inner(a) + inner(a)
}`, map[string]any{"inner": inner})

	c := NewCache()
	p1, err := c.Translate(op)
	require.NoError(t, err)
	hits, misses := c.Stats()
	// inner is translated once and hit on its second call site.
	assert.Equal(t, 1, hits)
	assert.Equal(t, 2, misses)

	p2, err := c.Translate(op)
	require.NoError(t, err)
	assert.Same(t, p1, p2)
	p3, err := c.Translate(inner)
	require.NoError(t, err)
	assert.Same(t, p1.Deps["inner"], p3)
	hits, _ = c.Stats()
	assert.Equal(t, 3, hits)
	assert.Equal(t, 2, c.Len())

	c.Reset()
	assert.Equal(t, 0, c.Len())
}

func TestTranslateLaplacianRoundTrip(t *testing.T) {
	g := testutil.NewCartesian(8)
	op, err := syntax.Define(testutil.LaplaceSource, g.Env())
	require.NoError(t, err)

	p, err := NewCache().Translate(op)
	require.NoError(t, err)
	names := make([]string, len(p.Offsets))
	for i, o := range p.Offsets {
		names[i] = o.Name
	}
	assert.Equal(t, []string{"IC", "IM", "IP", "JC", "JM", "JP"}, names)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	var got ir.Program
	require.NoError(t, json.Unmarshal(data, &got))
	if diff := cmp.Diff(p, &got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	h1, err := ir.ProgramHash(p)
	require.NoError(t, err)
	h2, err := ir.ProgramHash(&got)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestTranslateErrors(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		construct string
		line      int
	}{
		{
			name: "logical on fields",
			src: `func f(a Field[Cell, float64]) Field[Cell, bool] {
	return a > 1.0 && a < 2.0
}`,
			construct: "&&",
			line:      2,
		},
		{
			name: "result annotation",
			src: `func f(a Field[Cell, float64]) Field[Edge, float64] {
	return a
}`,
			construct: "return",
			line:      2,
		},
		{
			name: "remap without source dimension",
			src: `func f(a Field[Edge, float64]) Field[Edge, float64] {
	return a(E2C, 1)
}`,
			construct: "indexed transform",
			line:      2,
		},
		{
			name: "non-bool mask",
			src: `func f(a Field[Cell, float64]) Field[Cell, float64] {
	return where(a, a, 0.0)
}`,
			construct: "where",
			line:      2,
		},
		{
			name: "field condition",
			src: `func f(a Field[Cell, float64]) Field[Cell, float64] {
	r := a
	if a > 0.0 {
		r = -a
	}
	return r
}`,
			construct: "if",
			line:      3,
		},
		{
			name: "reduction over non-local axis",
			src: `func f(a Field[Cell, float64]) Field[Cell, float64] {
	return neighbor_sum(a, Cell)
}`,
			construct: "neighbor_sum",
			line:      2,
		},
		{
			name: "arity",
			src: `func f(a Field[Cell, float64]) Field[Cell, float64] {
	return sqrt(a, a)
}`,
			construct: "call",
			line:      2,
		},
		{
			name: "bool arithmetic",
			src: `func f(a Field[Cell, bool]) Field[Cell, bool] {
	return a + a
}`,
			construct: "+",
			line:      2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := define(t, tt.src, nil)
			_, err := NewCache().Translate(op)
			require.Error(t, err)
			var te *syntax.TranslationError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.construct, te.Construct)
			assert.Equal(t, tt.line, te.Pos.Line)
		})
	}
}

func TestTranslateResultTypeWhenUnannotated(t *testing.T) {
	op := define(t, `func f(a Field[Cell, K, int32]) {
	return a(E2C) > 0
}`, nil)

	p, err := NewCache().Translate(op)
	require.NoError(t, err)
	want := ir.FieldType{Dims: []ir.Dim{edgeDim, localDim, syntax.DimOf(testutil.K)}, DType: "bool"}
	assert.Equal(t, want, p.Result)
	cmpNode := p.Body[0].(*ir.Return).Value.(*ir.Binary)
	assert.Equal(t, ir.ScalarType{DType: "int32"}, cmpNode.Y.ResultType())
}
