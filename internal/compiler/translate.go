// Package compiler translates operators into backend-neutral IR.
//
// The translator walks the canonical AST produced by syntax.Define,
// infers a result type for every expression and rejects, with a
// syntax.TranslationError, anything that could never run: the compiled
// backend only ever sees well-typed programs.
package compiler

import (
	"fmt"
	"go/ast"
	"maps"
	"sort"

	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/ir"
	"github.com/roach88/fieldop/internal/syntax"
)

type translator struct {
	cache   *Cache
	op      *syntax.Operator
	prog    *ir.Program
	vars    map[string]ir.Type
	offsets map[string]ir.OffsetDecl
	temps   int
}

func translate(cache *Cache, op *syntax.Operator) (*ir.Program, error) {
	tr := &translator{
		cache:   cache,
		op:      op,
		prog:    &ir.Program{Name: op.Name, Deps: make(map[string]*ir.Program)},
		vars:    make(map[string]ir.Type),
		offsets: make(map[string]ir.OffsetDecl),
	}
	for _, p := range op.Params {
		tr.prog.Params = append(tr.prog.Params, ir.Param{Name: p.Name, T: p.Type})
		tr.vars[p.Name] = p.Type
	}

	list := op.Decl.Body.List
	for _, s := range list[:len(list)-1] {
		stmts, err := tr.stmt(s)
		if err != nil {
			return nil, err
		}
		tr.prog.Body = append(tr.prog.Body, stmts...)
	}
	ret, ok := list[len(list)-1].(*ast.ReturnStmt)
	if !ok {
		return nil, op.Errorf(syntax.KindConstruct, list[len(list)-1], "return", "operator %s must end with a return statement", op.Name)
	}
	r, err := tr.ret(ret)
	if err != nil {
		return nil, err
	}
	tr.prog.Body = append(tr.prog.Body, r)

	inferred := r.Value.ResultType()
	tr.prog.Result = inferred
	if op.Result != nil {
		if !ir.Equivalent(op.Result, inferred) {
			return nil, op.Errorf(syntax.KindType, ret, "return", "returns %s, annotated %s", inferred, op.Result)
		}
		tr.prog.Result = op.Result
	}

	for _, dep := range tr.prog.Deps {
		for _, o := range dep.Offsets {
			tr.offsets[o.Name] = o
		}
	}
	for _, o := range tr.offsets {
		tr.prog.Offsets = append(tr.prog.Offsets, o)
	}
	sort.Slice(tr.prog.Offsets, func(i, j int) bool { return tr.prog.Offsets[i].Name < tr.prog.Offsets[j].Name })
	return tr.prog, nil
}

func (tr *translator) loc(n ast.Node) ir.Loc { return tr.op.Loc(n.Pos()) }

func (tr *translator) typeErr(n ast.Node, construct string, err error) error {
	if syntax.IsTranslationError(err) {
		return err
	}
	return tr.op.Errorf(syntax.KindType, n, construct, "%v", err)
}

func (tr *translator) stmts(list []ast.Stmt) ([]ir.Stmt, error) {
	var out []ir.Stmt
	for _, s := range list {
		stmts, err := tr.stmt(s)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

func (tr *translator) stmt(s ast.Stmt) ([]ir.Stmt, error) {
	switch x := s.(type) {
	case *ast.AssignStmt:
		return tr.assign(x)
	case *ast.IncDecStmt:
		tok, one := syntax.IncDec(x)
		v, err := tr.binary(x, tok, x.X, one)
		if err != nil {
			return nil, err
		}
		return tr.bind(x, x.X.(*ast.Ident).Name, v), nil
	case *ast.IfStmt:
		return tr.ifStmt(x)
	case *ast.BlockStmt:
		return tr.stmts(x.List)
	case *ast.EmptyStmt:
		return nil, nil
	default:
		return nil, tr.op.Errorf(syntax.KindConstruct, s, "statement", "unsupported statement %T", s)
	}
}

func (tr *translator) bind(n ast.Node, name string, v ir.Expr) []ir.Stmt {
	if name != "_" {
		tr.vars[name] = v.ResultType()
	}
	return []ir.Stmt{&ir.Assign{Loc: tr.loc(n), Name: name, Value: v}}
}

func (tr *translator) assign(as *ast.AssignStmt) ([]ir.Stmt, error) {
	if tok, ok := syntax.AssignOps[as.Tok]; ok {
		v, err := tr.binary(as, tok, as.Lhs[0], as.Rhs[0])
		if err != nil {
			return nil, err
		}
		return tr.bind(as, as.Lhs[0].(*ast.Ident).Name, v), nil
	}
	if len(as.Lhs) == 1 {
		v, err := tr.expr(as.Rhs[0])
		if err != nil {
			return nil, err
		}
		return tr.bind(as, as.Lhs[0].(*ast.Ident).Name, v), nil
	}
	if len(as.Rhs) != 1 {
		return nil, tr.op.Errorf(syntax.KindConstruct, as, "assignment", "unsplit tuple assignment")
	}

	// a, b := f(x) lowers to a temporary and one TupleGet per target.
	v, err := tr.expr(as.Rhs[0])
	if err != nil {
		return nil, err
	}
	tt, ok := v.ResultType().(ir.TupleType)
	if !ok || len(tt.Elems) != len(as.Lhs) {
		return nil, tr.op.Errorf(syntax.KindType, as, "assignment", "cannot unpack %s into %d targets", v.ResultType(), len(as.Lhs))
	}
	tr.temps++
	tmp := fmt.Sprintf("__dst%d", tr.temps)
	out := tr.bind(as, tmp, v)
	loc := tr.loc(as)
	for i, l := range as.Lhs {
		name := l.(*ast.Ident).Name
		if name == "_" {
			continue
		}
		get := &ir.TupleGet{
			Meta:  ir.Meta{Loc: tr.loc(l), T: tt.Elems[i]},
			X:     &ir.Sym{Meta: ir.Meta{Loc: loc, T: tt}, Name: tmp},
			Index: i,
		}
		out = append(out, tr.bind(l, name, get)...)
	}
	return out, nil
}

// ifStmt lowers if/else. When both branches are a single assignment to the
// same variable the statement lowers to a conditional expression.
func (tr *translator) ifStmt(x *ast.IfStmt) ([]ir.Stmt, error) {
	cond, err := tr.expr(x.Cond)
	if err != nil {
		return nil, err
	}
	if !isScalarBool(cond.ResultType()) {
		return nil, tr.op.Errorf(syntax.KindType, x.Cond, "if", "condition must be a scalar bool, got %s; use where for fields", cond.ResultType())
	}

	before := maps.Clone(tr.vars)
	then, err := tr.stmts(x.Body.List)
	if err != nil {
		return nil, err
	}
	thenVars := tr.vars
	tr.vars = maps.Clone(before)
	var els []ir.Stmt
	if x.Else != nil {
		if els, err = tr.stmt(x.Else); err != nil {
			return nil, err
		}
	}
	elseVars := tr.vars

	merged := maps.Clone(elseVars)
	for name, t := range thenVars {
		if et, ok := elseVars[name]; ok && !ir.Equivalent(t, et) {
			return nil, tr.op.Errorf(syntax.KindType, x, "if", "%s is %s in one branch and %s in the other", name, t, et)
		}
		merged[name] = t
	}
	tr.vars = merged

	if len(then) == 1 && len(els) == 1 {
		a, aok := then[0].(*ir.Assign)
		b, bok := els[0].(*ir.Assign)
		if aok && bok && a.Name == b.Name && a.Name != "_" {
			return []ir.Stmt{&ir.Assign{
				Loc:  tr.loc(x),
				Name: a.Name,
				Value: &ir.Cond{
					Meta: ir.Meta{Loc: tr.loc(x), T: a.Value.ResultType()},
					Cond: cond,
					Then: a.Value,
					Else: b.Value,
				},
			}}, nil
		}
	}
	return []ir.Stmt{&ir.If{Loc: tr.loc(x), Cond: cond, Then: then, Else: els}}, nil
}

func (tr *translator) ret(r *ast.ReturnStmt) (*ir.Return, error) {
	vals := make([]ir.Expr, len(r.Results))
	for i, e := range r.Results {
		v, err := tr.expr(e)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	if len(vals) == 1 {
		return &ir.Return{Loc: tr.loc(r), Value: vals[0]}, nil
	}
	tt := ir.TupleType{Elems: make([]ir.Type, len(vals))}
	for i, v := range vals {
		tt.Elems[i] = v.ResultType()
	}
	return &ir.Return{Loc: tr.loc(r), Value: &ir.MakeTuple{Meta: ir.Meta{Loc: tr.loc(r), T: tt}, Elems: vals}}, nil
}

func peerOf(t ir.Type) *field.DType {
	if _, dt, ok := elem(t); ok {
		return &dt
	}
	return nil
}
