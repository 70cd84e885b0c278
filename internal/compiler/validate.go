package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// Program shape (E101-E109)
	ErrProgramNameEmpty = "E101" // name is required
	ErrMissingReturn    = "E102" // body must end with exactly one return
	ErrDuplicateParam   = "E103" // duplicate parameter name
	ErrInvalidType      = "E104" // unknown element type or dimension kind
	ErrMissingResult    = "E105" // result type is required

	// References (E110-E119)
	ErrUndefinedSymbol  = "E110" // symbol read before any assignment
	ErrUndeclaredOffset = "E111" // remap through an offset missing from Offsets
	ErrMissingDep       = "E112" // nested call to an operator missing from Deps
	ErrDependencyCycle  = "E113" // operator reaches itself through Deps
	ErrArgumentCount    = "E114" // nested call arity differs from the dep's params
)

// ValidationError represents a program validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a program before it is handed to a backend. Programs
// decoded from a store never went through the translator, so nothing about
// them is assumed. Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch p := v.(type) {
	case *ir.Program:
		errs := validateProgram(p, "", make(map[*ir.Program]bool))
		for _, w := range AnalyzeCycles(p) {
			errs = append(errs, ValidationError{
				Field:   "deps",
				Message: w.Message,
				Code:    ErrDependencyCycle,
			})
		}
		return errs
	case ir.Program:
		return Validate(&p)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

type programValidator struct {
	p       *ir.Program
	prefix  string
	defined map[string]bool
	errs    []ValidationError
}

func (v *programValidator) add(path string, loc ir.Loc, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   v.prefix + path,
		Message: fmt.Sprintf(format, args...),
		Code:    code,
		Line:    loc.Line,
	})
}

func validateProgram(p *ir.Program, prefix string, seen map[*ir.Program]bool) []ValidationError {
	if seen[p] {
		return nil
	}
	seen[p] = true
	v := &programValidator{p: p, prefix: prefix, defined: make(map[string]bool)}

	if strings.TrimSpace(p.Name) == "" {
		v.add("name", ir.Loc{}, ErrProgramNameEmpty, "program name is required")
	}
	if p.Result == nil {
		v.add("result", ir.Loc{}, ErrMissingResult, "result type is required")
	} else {
		v.checkType("result", p.Result)
	}

	for i, param := range p.Params {
		path := fmt.Sprintf("params[%d]", i)
		if v.defined[param.Name] {
			v.add(path+".name", ir.Loc{}, ErrDuplicateParam, "duplicate parameter name: %q", param.Name)
		}
		v.defined[param.Name] = true
		if param.T == nil {
			v.add(path+".type", ir.Loc{}, ErrInvalidType, "parameter %q has no type", param.Name)
			continue
		}
		v.checkType(path+".type", param.T)
	}

	for i, o := range p.Offsets {
		path := fmt.Sprintf("offsets[%d]", i)
		v.checkDim(path+".source", o.Source)
		for j, t := range o.Targets {
			v.checkDim(fmt.Sprintf("%s.targets[%d]", path, j), t)
		}
	}

	n := len(p.Body)
	if n == 0 {
		v.add("body", ir.Loc{}, ErrMissingReturn, "body is empty")
	} else if _, ok := p.Body[n-1].(*ir.Return); !ok {
		v.add(fmt.Sprintf("body[%d]", n-1), p.Body[n-1].Pos(), ErrMissingReturn, "body must end with a return")
	}
	v.stmts("body", p.Body, true)

	for _, name := range sortedKeys(p.Deps) {
		if p.Deps[name] == nil {
			continue
		}
		v.errs = append(v.errs, validateProgram(p.Deps[name], v.prefix+"deps."+name+".", seen)...)
	}
	return v.errs
}

func (v *programValidator) checkType(path string, t ir.Type) {
	if tt, ok := t.(ir.TupleType); ok {
		for i, e := range tt.Elems {
			v.checkType(fmt.Sprintf("%s[%d]", path, i), e)
		}
		return
	}
	dims, dtype, ok := ir.Elem(t)
	if !ok {
		v.add(path, ir.Loc{}, ErrInvalidType, "invalid type %v", t)
		return
	}
	if _, ok := field.ParseDType(dtype); !ok {
		v.add(path, ir.Loc{}, ErrInvalidType, "invalid element type %q", dtype)
	}
	for i, d := range dims {
		v.checkDim(fmt.Sprintf("%s.dims[%d]", path, i), d)
	}
}

func (v *programValidator) checkDim(path string, d ir.Dim) {
	if d.Name == "" {
		v.add(path, ir.Loc{}, ErrInvalidType, "dimension has no name")
	}
	if _, err := field.ParseDimKind(d.Kind); err != nil {
		v.add(path, ir.Loc{}, ErrInvalidType, "dimension %s: %v", d.Name, err)
	}
}

// stmts walks a statement list in order. Names assigned inside a branch
// stay defined after the if, matching the flat scope of operator bodies.
func (v *programValidator) stmts(path string, list []ir.Stmt, top bool) {
	for i, s := range list {
		sp := fmt.Sprintf("%s[%d]", path, i)
		switch x := s.(type) {
		case *ir.Assign:
			v.expr(sp+".value", x.Value)
			v.defined[x.Name] = true
		case *ir.If:
			v.expr(sp+".cond", x.Cond)
			v.stmts(sp+".then", x.Then, false)
			v.stmts(sp+".else", x.Else, false)
		case *ir.Return:
			if !top || i != len(list)-1 {
				v.add(sp, x.Loc, ErrMissingReturn, "return must be the last statement of the body")
			}
			v.expr(sp+".value", x.Value)
		default:
			v.add(sp, ir.Loc{}, ErrUnsupportedIRType, "unsupported statement %T", s)
		}
	}
}

func (v *programValidator) expr(path string, e ir.Expr) {
	switch x := e.(type) {
	case nil:
		v.add(path, ir.Loc{}, ErrUnsupportedIRType, "missing expression")
	case *ir.Sym:
		if !v.defined[x.Name] {
			v.add(path, x.Loc, ErrUndefinedSymbol, "undefined symbol %q", x.Name)
		}
	case *ir.Literal, *ir.DimRef:
	case *ir.Unary:
		v.expr(path+".x", x.X)
	case *ir.Binary:
		v.expr(path+".x", x.X)
		v.expr(path+".y", x.Y)
	case *ir.Logical:
		v.expr(path+".x", x.X)
		v.expr(path+".y", x.Y)
	case *ir.Call:
		v.exprs(path, x.Args)
	case *ir.OpCall:
		dep, ok := v.p.Deps[x.Op]
		if !ok || dep == nil {
			v.add(path, x.Loc, ErrMissingDep, "nested operator %q is not in deps", x.Op)
		} else if len(dep.Params) != len(x.Args) {
			v.add(path, x.Loc, ErrArgumentCount, "%s takes %d arguments, got %d", x.Op, len(dep.Params), len(x.Args))
		}
		v.exprs(path, x.Args)
	case *ir.Remap:
		if _, ok := v.p.Offset(x.Offset); !ok {
			v.add(path, x.Loc, ErrUndeclaredOffset, "offset %q is not declared", x.Offset)
		}
		v.expr(path+".x", x.X)
	case *ir.Convert:
		if _, ok := field.ParseDType(x.DType); !ok {
			v.add(path, x.Loc, ErrInvalidType, "invalid element type %q", x.DType)
		}
		v.expr(path+".x", x.X)
	case *ir.MakeTuple:
		v.exprs(path, x.Elems)
	case *ir.TupleGet:
		v.expr(path+".x", x.X)
	case *ir.Cond:
		v.expr(path+".cond", x.Cond)
		v.expr(path+".then", x.Then)
		v.expr(path+".else", x.Else)
	default:
		v.add(path, e.Pos(), ErrUnsupportedIRType, "unsupported expression %T", e)
	}
}

func (v *programValidator) exprs(path string, list []ir.Expr) {
	for i, e := range list {
		v.expr(fmt.Sprintf("%s.args[%d]", path, i), e)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
