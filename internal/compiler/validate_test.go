package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldop/internal/ir"
)

var cellF64 = ir.FieldType{Dims: []ir.Dim{{Name: "Cell", Kind: "horizontal"}}, DType: "float64"}

// validProgram is double(a) = a + a.
func validProgram() *ir.Program {
	sym := &ir.Sym{Meta: ir.Meta{Loc: ir.Loc{Line: 2, Col: 9}, T: cellF64}, Name: "a"}
	return &ir.Program{
		Name:   "double",
		Params: []ir.Param{{Name: "a", T: cellF64}},
		Result: cellF64,
		Body: []ir.Stmt{
			&ir.Return{Loc: ir.Loc{Line: 2, Col: 2}, Value: &ir.Binary{
				Meta: ir.Meta{Loc: ir.Loc{Line: 2, Col: 9}, T: cellF64},
				Op:   "add",
				X:    sym,
				Y:    sym,
			}},
		},
		Deps: map[string]*ir.Program{},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValidProgram(t *testing.T) {
	assert.Empty(t, Validate(validProgram()))
}

func TestValidateTranslatedProgram(t *testing.T) {
	inner := define(t, `func inner(a Field[Cell, float64]) Field[Edge, float64] {
	return neighbor_sum(a(E2C), E2CDim)
}`, nil)
	op := define(t, `func outer(a Field[Cell, float64], s bool) Field[Edge, float64] {
	x := inner(a)
	if s {
		x = x * 2
	}
	return x
}`, map[string]any{"inner": inner})
	p, err := NewCache().Translate(op)
	require.NoError(t, err)
	assert.Empty(t, Validate(p))
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("not a program")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
	assert.Contains(t, errs[0].Message, "string")
}

func TestValidateByValue(t *testing.T) {
	assert.Empty(t, Validate(*validProgram()))
}

func TestValidateProgramShape(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *ir.Program)
		code   string
		field  string
	}{
		{
			name:   "empty name",
			mutate: func(p *ir.Program) { p.Name = "  " },
			code:   ErrProgramNameEmpty,
			field:  "name",
		},
		{
			name:   "missing result",
			mutate: func(p *ir.Program) { p.Result = nil },
			code:   ErrMissingResult,
			field:  "result",
		},
		{
			name: "duplicate param",
			mutate: func(p *ir.Program) {
				p.Params = append(p.Params, ir.Param{Name: "a", T: cellF64})
			},
			code:  ErrDuplicateParam,
			field: "params[1].name",
		},
		{
			name: "bad dtype",
			mutate: func(p *ir.Program) {
				p.Params[0].T = ir.ScalarType{DType: "complex128"}
			},
			code:  ErrInvalidType,
			field: "params[0].type",
		},
		{
			name: "bad dim kind",
			mutate: func(p *ir.Program) {
				p.Result = ir.FieldType{Dims: []ir.Dim{{Name: "Cell", Kind: "diagonal"}}, DType: "float64"}
			},
			code:  ErrInvalidType,
			field: "result.dims[0]",
		},
		{
			name:   "empty body",
			mutate: func(p *ir.Program) { p.Body = nil },
			code:   ErrMissingReturn,
			field:  "body",
		},
		{
			name: "no terminal return",
			mutate: func(p *ir.Program) {
				ret := p.Body[0].(*ir.Return)
				p.Body = []ir.Stmt{&ir.Assign{Loc: ret.Loc, Name: "b", Value: ret.Value}}
			},
			code:  ErrMissingReturn,
			field: "body[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProgram()
			tt.mutate(p)
			errs := Validate(p)
			require.NotEmpty(t, errs)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestValidateUndefinedSymbol(t *testing.T) {
	p := validProgram()
	ret := p.Body[0].(*ir.Return)
	ret.Value.(*ir.Binary).Y = &ir.Sym{Meta: ir.Meta{Loc: ir.Loc{Line: 2, Col: 13}, T: cellF64}, Name: "b"}

	errs := Validate(p)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUndefinedSymbol, errs[0].Code)
	assert.Equal(t, "body[0].value.y", errs[0].Field)
	assert.Equal(t, 2, errs[0].Line)
	assert.Equal(t, `[E110] line 2: body[0].value.y: undefined symbol "b"`, errs[0].Error())
}

func TestValidateBranchAssignmentsStayVisible(t *testing.T) {
	p := validProgram()
	ret := p.Body[0].(*ir.Return)
	s := ir.ScalarType{DType: "bool"}
	p.Params = append(p.Params, ir.Param{Name: "s", T: s})
	p.Body = []ir.Stmt{
		&ir.If{
			Loc:  ir.Loc{Line: 2, Col: 2},
			Cond: &ir.Sym{Meta: ir.Meta{T: s}, Name: "s"},
			Then: []ir.Stmt{&ir.Assign{Name: "b", Value: ret.Value}},
		},
		&ir.Return{Value: &ir.Sym{Meta: ir.Meta{T: cellF64}, Name: "b"}},
	}
	assert.Empty(t, Validate(p))
}

func TestValidateReferences(t *testing.T) {
	p := validProgram()
	a := &ir.Sym{Meta: ir.Meta{T: cellF64}, Name: "a"}
	p.Body = []ir.Stmt{
		&ir.Assign{Loc: ir.Loc{Line: 2}, Name: "g", Value: &ir.Remap{Meta: ir.Meta{Loc: ir.Loc{Line: 2}}, X: a, Offset: "E2C", Index: -1}},
		&ir.Assign{Loc: ir.Loc{Line: 3}, Name: "h", Value: &ir.OpCall{Meta: ir.Meta{Loc: ir.Loc{Line: 3}}, Op: "inner", Args: []ir.Expr{a}}},
		&ir.Return{Loc: ir.Loc{Line: 4}, Value: a},
	}

	errs := Validate(p)
	assert.Equal(t, []string{ErrUndeclaredOffset, ErrMissingDep}, codes(errs))

	inner := validProgram()
	inner.Name = "inner"
	p.Deps["inner"] = inner
	p.Offsets = []ir.OffsetDecl{{
		Name:    "E2C",
		Source:  ir.Dim{Name: "Cell", Kind: "horizontal"},
		Targets: []ir.Dim{{Name: "Edge", Kind: "horizontal"}, {Name: "E2CDim", Kind: "local"}},
	}}
	assert.Empty(t, Validate(p))

	p.Body[1].(*ir.Assign).Value.(*ir.OpCall).Args = nil
	assert.Equal(t, []string{ErrArgumentCount}, codes(Validate(p)))
}

func TestValidateReportsDepErrorsWithPrefix(t *testing.T) {
	p := validProgram()
	inner := validProgram()
	inner.Name = ""
	p.Deps["inner"] = inner

	errs := Validate(p)
	require.Len(t, errs, 1)
	assert.Equal(t, "deps.inner.name", errs[0].Field)
	assert.Equal(t, ErrProgramNameEmpty, errs[0].Code)
}

func TestValidateRejectsCycles(t *testing.T) {
	p := validProgram()
	inner := validProgram()
	inner.Name = "inner"
	p.Deps["inner"] = inner
	inner.Deps["double"] = p

	errs := Validate(p)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDependencyCycle, errs[0].Code)
	assert.Contains(t, errs[0].Message, "double → inner → double")
}
