package ir

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cellDim = Dim{Name: "Cell", Kind: "horizontal"}
	edgeDim = Dim{Name: "Edge", Kind: "horizontal"}
	e2cDim  = Dim{Name: "E2CDim", Kind: "local"}
)

func sampleProgram() *Program {
	cellF := FieldType{Dims: []Dim{cellDim}, DType: "float64"}
	edgeF := FieldType{Dims: []Dim{edgeDim}, DType: "float64"}
	nb := &Remap{
		Meta:   Meta{Loc: Loc{2, 20}, T: FieldType{Dims: []Dim{edgeDim, e2cDim}, DType: "float64"}},
		X:      &Sym{Meta: Meta{Loc: Loc{2, 20}, T: cellF}, Name: "a"},
		Offset: "E2C",
		Index:  -1,
	}
	sum := &Call{
		Meta: Meta{Loc: Loc{2, 7}, T: edgeF},
		Name: "neighbor_sum",
		Args: []Expr{nb, &DimRef{Meta: Meta{Loc: Loc{2, 28}}, Dim: e2cDim}},
	}
	scaled := &Binary{
		Meta: Meta{Loc: Loc{3, 9}, T: edgeF},
		Op:   "mul",
		X:    &Sym{Meta: Meta{Loc: Loc{3, 9}, T: edgeF}, Name: "s"},
		Y:    &Literal{Meta: Meta{Loc: Loc{3, 13}, T: ScalarType{DType: "float64"}}, Value: "0.5"},
	}
	return &Program{
		Name:   "edge_sum",
		Params: []Param{{Name: "a", T: cellF}},
		Result: edgeF,
		Body: []Stmt{
			&Assign{Loc: Loc{2, 2}, Name: "s", Value: sum},
			&Return{Loc: Loc{3, 2}, Value: scaled},
		},
		Offsets: []OffsetDecl{{Name: "E2C", Source: cellDim, Targets: []Dim{edgeDim, e2cDim}}},
	}
}

func TestProgramJSONRoundTrip(t *testing.T) {
	p := sampleProgram()
	p.Deps = map[string]*Program{"inner": sampleProgram()}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var got Program
	require.NoError(t, json.Unmarshal(data, &got))
	if diff := cmp.Diff(p, &got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestProgramHashStable(t *testing.T) {
	a := MustProgramHash(sampleProgram())
	b := MustProgramHash(sampleProgram())
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	changed := sampleProgram()
	changed.Body[1].(*Return).Value.(*Binary).Y.(*Literal).Value = "0.25"
	assert.NotEqual(t, a, MustProgramHash(changed))
}

func TestProgramFromValueRejectsVersion(t *testing.T) {
	v := sampleProgram().ToValue().(Object)
	v["version"] = String("0")
	_, err := ProgramFromValue(v)
	assert.ErrorIs(t, err, ErrIRVersion)
}

func TestCheckIRVersion(t *testing.T) {
	assert.NoError(t, CheckIRVersion(IRVersion))
	assert.ErrorIs(t, CheckIRVersion(""), ErrIRVersion)
	assert.ErrorIs(t, CheckIRVersion("2"), ErrIRVersion)
}

func TestEquivalent(t *testing.T) {
	ab := FieldType{Dims: []Dim{cellDim, edgeDim}, DType: "float64"}
	ba := FieldType{Dims: []Dim{edgeDim, cellDim}, DType: "float64"}
	assert.True(t, Equivalent(ab, ba))
	assert.False(t, Equivalent(ab, FieldType{Dims: []Dim{cellDim}, DType: "float64"}))
	assert.True(t, Equivalent(ScalarType{DType: "int32"}, FieldType{DType: "int32"}))
	assert.False(t, Equivalent(TupleType{Elems: []Type{ab}}, ab))
}

func TestTypeString(t *testing.T) {
	tt := TupleType{Elems: []Type{
		FieldType{Dims: []Dim{cellDim, edgeDim}, DType: "float64"},
		ScalarType{DType: "bool"},
	}}
	assert.Equal(t, "Tuple[Field[Cell, Edge, float64], bool]", tt.String())
}
