// Package interp is the embedded backend: it evaluates an operator's
// canonical AST directly over in-memory fields.
//
// Offsets resolve through the registry of the call's context, built-ins go
// through builtin.Apply, and nested operator calls go back through a Caller
// so that the execution wrapper enforces the nested-call contract.
package interp

import (
	"context"
	"fmt"
	"go/ast"

	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/syntax"
)

// Caller runs a nested operator call on behalf of the interpreter.
type Caller interface {
	CallNested(ctx context.Context, op *syntax.Operator, args []field.Value) (field.Value, error)
}

// Machine interprets operators.
type Machine struct {
	caller Caller
}

// New returns a Machine. caller may be nil when operators have no nested
// calls.
func New(caller Caller) *Machine {
	return &Machine{caller: caller}
}

// value is anything an expression can evaluate to: a field.Value, a
// field.Dimension, a field.Offset, a field.DType, a *syntax.Operator or a
// builtinRef.
type value any

// builtinRef is a callable built-in.
type builtinRef string

// frame is the variable scope of one operator invocation. Operators have a
// single flat scope: a name assigned inside an if branch is visible after
// it.
type frame struct {
	ctx  context.Context
	m    *Machine
	op   *syntax.Operator
	vars map[string]value
}

// Run evaluates op over args.
func (m *Machine) Run(ctx context.Context, op *syntax.Operator, args []field.Value) (field.Value, error) {
	if len(args) != len(op.Params) {
		return nil, &field.ShapeError{
			Code:    field.CodeArgument,
			Message: fmt.Sprintf("%s takes %d arguments, got %d", op.Name, len(op.Params), len(args)),
		}
	}
	fr := &frame{ctx: ctx, m: m, op: op, vars: make(map[string]value, len(args))}
	for i, p := range op.Params {
		fr.vars[p.Name] = args[i]
	}
	v, err := fr.block(op.Decl.Body.List)
	if err != nil {
		return nil, err
	}
	if err := syntax.CheckValue(op.Result, v); err != nil {
		return nil, fmt.Errorf("%s: result: %w", op.Name, err)
	}
	return v, nil
}

// block executes statements until the terminal return.
func (fr *frame) block(list []ast.Stmt) (field.Value, error) {
	for _, s := range list {
		if err := fr.ctx.Err(); err != nil {
			return nil, err
		}
		if ret, ok := s.(*ast.ReturnStmt); ok {
			return fr.ret(ret)
		}
		if err := fr.stmt(s); err != nil {
			return nil, err
		}
	}
	return nil, fr.op.Errorf(syntax.KindConstruct, fr.op.Decl.Body, "return", "operator %s did not return", fr.op.Name)
}

func (fr *frame) stmt(s ast.Stmt) error {
	switch x := s.(type) {
	case *ast.AssignStmt:
		return fr.assign(x)
	case *ast.IncDecStmt:
		tok, one := syntax.IncDec(x)
		v, err := fr.binary(x, tok, x.X, one)
		if err != nil {
			return err
		}
		return fr.set(x.X.(*ast.Ident), v)
	case *ast.IfStmt:
		cond, err := fr.scalarBool(x.Cond, "if")
		if err != nil {
			return err
		}
		if cond {
			return fr.stmts(x.Body.List)
		}
		if x.Else != nil {
			return fr.stmt(x.Else)
		}
		return nil
	case *ast.BlockStmt:
		return fr.stmts(x.List)
	case *ast.EmptyStmt:
		return nil
	default:
		return fr.op.Errorf(syntax.KindConstruct, s, "statement", "unsupported statement %T", s)
	}
}

func (fr *frame) stmts(list []ast.Stmt) error {
	for _, s := range list {
		if err := fr.ctx.Err(); err != nil {
			return err
		}
		if err := fr.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (fr *frame) assign(as *ast.AssignStmt) error {
	if tok, ok := syntax.AssignOps[as.Tok]; ok {
		v, err := fr.binary(as, tok, as.Lhs[0], as.Rhs[0])
		if err != nil {
			return err
		}
		return fr.set(as.Lhs[0].(*ast.Ident), v)
	}
	if len(as.Lhs) == 1 {
		v, err := fr.eval(as.Rhs[0])
		if err != nil {
			return err
		}
		return fr.set(as.Lhs[0].(*ast.Ident), v)
	}
	if len(as.Rhs) != 1 {
		return fr.op.Errorf(syntax.KindConstruct, as, "assignment", "unsplit tuple assignment")
	}
	v, err := fr.eval(as.Rhs[0])
	if err != nil {
		return err
	}
	tup, ok := v.(field.Tuple)
	if !ok || len(tup) != len(as.Lhs) {
		return fr.op.Errorf(syntax.KindType, as, "assignment", "cannot unpack %s into %d targets", describe(v), len(as.Lhs))
	}
	for i, l := range as.Lhs {
		if err := fr.set(l.(*ast.Ident), tup[i]); err != nil {
			return err
		}
	}
	return nil
}

func (fr *frame) set(id *ast.Ident, v value) error {
	if _, ok := v.(field.Value); !ok {
		return fr.op.Errorf(syntax.KindType, id, "assignment", "cannot assign %s to %s", describe(v), id.Name)
	}
	if id.Name == "_" {
		return nil
	}
	fr.vars[id.Name] = v
	return nil
}

func (fr *frame) ret(r *ast.ReturnStmt) (field.Value, error) {
	vals := make(field.Tuple, len(r.Results))
	for i, e := range r.Results {
		v, err := fr.fieldValue(e)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	if len(vals) == 1 {
		return vals[0], nil
	}
	return vals, nil
}

// fieldValue evaluates e and requires a field or tuple.
func (fr *frame) fieldValue(e ast.Expr) (field.Value, error) {
	v, err := fr.eval(e)
	if err != nil {
		return nil, err
	}
	fv, ok := v.(field.Value)
	if !ok {
		return nil, fr.op.Errorf(syntax.KindType, e, "expression", "want a field, got %s", describe(v))
	}
	return fv, nil
}

func (fr *frame) scalarBool(e ast.Expr, construct string) (bool, error) {
	v, err := fr.eval(e)
	if err != nil {
		return false, err
	}
	f, ok := v.(*field.Field)
	if !ok || !f.IsScalar() || f.DType() != field.Bool {
		return false, fr.op.Errorf(syntax.KindType, e, construct, "condition must be a scalar bool, got %s; use where for fields", describe(v))
	}
	s, _ := f.ScalarValue()
	return s != 0, nil
}

// wrap locates a runtime error at node, keeping it errors.As-matchable.
func (fr *frame) wrap(node ast.Node, err error) error {
	if syntax.IsTranslationError(err) {
		return err
	}
	return fmt.Errorf("%s: %w", fr.op.Position(node.Pos()), err)
}

func describe(v value) string {
	switch x := v.(type) {
	case *field.Field:
		return "field " + x.String()
	case field.Tuple:
		return fmt.Sprintf("tuple of %d", len(x))
	case field.Dimension:
		return "dimension " + x.Name
	case field.Offset:
		return "offset " + x.Name
	case field.DType:
		return "type " + x.String()
	case *syntax.Operator:
		return "operator " + x.Name
	case builtinRef:
		return "built-in " + string(x)
	default:
		return fmt.Sprintf("%T", v)
	}
}
