package interp

import (
	"fmt"
	"go/ast"
	"go/token"

	"github.com/roach88/fieldop/internal/builtin"
	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/ir"
	"github.com/roach88/fieldop/internal/provider"
	"github.com/roach88/fieldop/internal/syntax"
)

func (fr *frame) eval(e ast.Expr) (value, error) {
	if k := syntax.ConstKind(e); k != token.ILLEGAL {
		return fr.constant(e, k, nil)
	}
	switch x := e.(type) {
	case *ast.ParenExpr:
		return fr.eval(x.X)
	case *ast.Ident:
		return fr.ident(x)
	case *ast.BinaryExpr:
		if x.Op == token.LAND || x.Op == token.LOR {
			return fr.logical(x)
		}
		return fr.binary(x, x.Op, x.X, x.Y)
	case *ast.UnaryExpr:
		return fr.unary(x)
	case *ast.CallExpr:
		return fr.call(x)
	case *ast.SelectorExpr:
		return fr.selector(x)
	case *ast.IndexExpr:
		return fr.index(x)
	default:
		return nil, fr.op.Errorf(syntax.KindConstruct, e, "expression", "unsupported expression %T", e)
	}
}

// constant evaluates an untyped constant next to a peer of type peer.
func (fr *frame) constant(e ast.Expr, kind token.Token, peer *field.DType) (value, error) {
	v, err := syntax.ConstValue(e)
	if err != nil {
		return nil, fr.op.Errorf(syntax.KindSyntax, e, "literal", "%v", err)
	}
	return field.Scalar(v, syntax.ConstType(kind, peer)), nil
}

func (fr *frame) evalWithPeer(e ast.Expr, peer *field.DType) (value, error) {
	if k := syntax.ConstKind(e); k != token.ILLEGAL {
		return fr.constant(e, k, peer)
	}
	return fr.eval(e)
}

func dtypeOf(v value) *field.DType {
	if f, ok := v.(*field.Field); ok {
		t := f.DType()
		return &t
	}
	return nil
}

// pair evaluates the operands of a binary operation, left first unless only
// the left one is an untyped constant.
func (fr *frame) pair(x, y ast.Expr) (value, value, error) {
	if syntax.ConstKind(x) != token.ILLEGAL && syntax.ConstKind(y) == token.ILLEGAL {
		b, err := fr.eval(y)
		if err != nil {
			return nil, nil, err
		}
		a, err := fr.evalWithPeer(x, dtypeOf(b))
		return a, b, err
	}
	a, err := fr.eval(x)
	if err != nil {
		return nil, nil, err
	}
	b, err := fr.evalWithPeer(y, dtypeOf(a))
	return a, b, err
}

func (fr *frame) asField(node ast.Node, construct string, v value) (*field.Field, error) {
	f, ok := v.(*field.Field)
	if !ok {
		return nil, fr.op.Errorf(syntax.KindType, node, construct, "want a field, got %s", describe(v))
	}
	return f, nil
}

func (fr *frame) binary(node ast.Node, tok token.Token, x, y ast.Expr) (value, error) {
	name, ok := syntax.BinaryOps[tok]
	if !ok {
		return nil, fr.op.Errorf(syntax.KindConstruct, node, "operator", "%s is not supported", tok)
	}
	a, b, err := fr.pair(x, y)
	if err != nil {
		return nil, err
	}
	fa, err := fr.asField(x, tok.String(), a)
	if err != nil {
		return nil, err
	}
	fb, err := fr.asField(y, tok.String(), b)
	if err != nil {
		return nil, err
	}
	r, err := field.Binary(name, fa, fb)
	if err != nil {
		return nil, fr.wrap(node, err)
	}
	return r, nil
}

func (fr *frame) unary(x *ast.UnaryExpr) (value, error) {
	v, err := fr.eval(x.X)
	if err != nil {
		return nil, err
	}
	f, err := fr.asField(x, x.Op.String(), v)
	if err != nil {
		return nil, err
	}
	if x.Op == token.ADD {
		return f, nil
	}
	r, err := field.Unary(syntax.UnaryOps[x.Op], f)
	if err != nil {
		return nil, fr.wrap(x, err)
	}
	return r, nil
}

// logical evaluates && and || with short-circuiting. Both operands must be
// scalar bools; masks combine with & and |.
func (fr *frame) logical(x *ast.BinaryExpr) (value, error) {
	a, err := fr.scalarBool(x.X, x.Op.String())
	if err != nil {
		return nil, err
	}
	if (x.Op == token.LAND && !a) || (x.Op == token.LOR && a) {
		return field.BoolScalar(a), nil
	}
	b, err := fr.scalarBool(x.Y, x.Op.String())
	if err != nil {
		return nil, err
	}
	return field.BoolScalar(b), nil
}

func (fr *frame) ident(id *ast.Ident) (value, error) {
	if v, ok := fr.vars[id.Name]; ok {
		return v, nil
	}
	if c, ok := fr.op.Capture(id.Name); ok {
		return captureValue(c), nil
	}
	switch id.Name {
	case "true":
		return field.BoolScalar(true), nil
	case "false":
		return field.BoolScalar(false), nil
	}
	if builtin.Lookup(id.Name) {
		return builtinRef(id.Name), nil
	}
	if t, ok := field.ParseDType(id.Name); ok {
		return t, nil
	}
	return nil, fr.op.Errorf(syntax.KindSyntax, id, "identifier", "undefined: %s", id.Name)
}

func captureValue(c syntax.Capture) value {
	switch c.Kind {
	case syntax.CaptureDimension:
		return c.Dim
	case syntax.CaptureOffset:
		return c.Offset
	case syntax.CaptureScalar:
		return c.Scalar
	case syntax.CaptureOperator:
		return c.Operator
	case syntax.CaptureBuiltin:
		return builtinRef(c.Builtin)
	default:
		return c.DType
	}
}

func (fr *frame) selector(x *ast.SelectorExpr) (value, error) {
	if name, ok := builtin.MathMembers[x.Sel.Name]; ok {
		return builtinRef(name), nil
	}
	if v, ok := builtin.MathConsts[x.Sel.Name]; ok {
		return field.Scalar(v, field.Float64), nil
	}
	return nil, fr.op.Errorf(syntax.KindSyntax, x, "selector", "math.%s is not supported", x.Sel.Name)
}

func (fr *frame) index(x *ast.IndexExpr) (value, error) {
	v, err := fr.eval(x.X)
	if err != nil {
		return nil, err
	}
	tup, ok := v.(field.Tuple)
	if !ok {
		return nil, fr.op.Errorf(syntax.KindType, x, "subscript", "cannot subscript %s", describe(v))
	}
	i, err := fr.op.Subscript(x.Index)
	if err != nil {
		return nil, err
	}
	if i >= len(tup) {
		return nil, fr.op.Errorf(syntax.KindType, x.Index, "subscript", "subscript %d out of range for tuple of %d", i+1, len(tup))
	}
	return tup[i], nil
}

func (fr *frame) call(call *ast.CallExpr) (value, error) {
	callee, err := fr.eval(call.Fun)
	if err != nil {
		return nil, err
	}
	switch c := callee.(type) {
	case *field.Field:
		return fr.remap(call, c)
	case builtinRef:
		return fr.builtin(call, string(c))
	case field.DType:
		return fr.convert(call, c)
	case *syntax.Operator:
		return fr.nested(call, c)
	default:
		return nil, fr.op.Errorf(syntax.KindType, call.Fun, "call", "cannot call %s", describe(callee))
	}
}

// remap applies an indexed transform f(Off), f(Off, i) or f(Off[i]).
func (fr *frame) remap(call *ast.CallExpr, f *field.Field) (value, error) {
	offExpr, index, err := fr.op.RemapArgs(call)
	if err != nil {
		return nil, err
	}
	ov, err := fr.eval(offExpr)
	if err != nil {
		return nil, err
	}
	off, ok := ov.(field.Offset)
	if !ok {
		return nil, fr.op.Errorf(syntax.KindType, offExpr, "indexed transform", "want an offset, got %s", describe(ov))
	}
	conn, err := provider.Resolve(fr.ctx, off)
	if err != nil {
		return nil, fr.wrap(call, err)
	}
	r, err := field.Remap(f, off, conn, index)
	if err != nil {
		return nil, fr.wrap(call, err)
	}
	return r, nil
}

// builtin evaluates a built-in call. Non-constant arguments are evaluated
// first, in order; untyped constants then take the type of their first
// typed peer argument.
func (fr *frame) builtin(call *ast.CallExpr, name string) (value, error) {
	args := make([]builtin.Arg, len(call.Args))
	for i, a := range call.Args {
		if syntax.ConstKind(a) != token.ILLEGAL {
			continue
		}
		v, err := fr.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	peers := syntax.ConstPeers[name]
	for i, a := range call.Args {
		kind := syntax.ConstKind(a)
		if kind == token.ILLEGAL {
			continue
		}
		var peer *field.DType
		for _, p := range peers {
			if p != i && p < len(args) {
				if t := dtypeOf(args[p]); t != nil {
					peer = t
					break
				}
			}
		}
		v, err := fr.constant(a, kind, peer)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	r, err := builtin.Apply(name, args)
	if err != nil {
		return nil, fr.wrap(call, err)
	}
	return r, nil
}

// convert applies a type constructor: float32(x).
func (fr *frame) convert(call *ast.CallExpr, t field.DType) (value, error) {
	if len(call.Args) != 1 {
		return nil, fr.op.Errorf(syntax.KindConstruct, call, "conversion", "%s takes one argument, got %d", t, len(call.Args))
	}
	v, err := fr.evalWithPeer(call.Args[0], &t)
	if err != nil {
		return nil, err
	}
	r, err := builtin.Apply("astype", []builtin.Arg{v, t})
	if err != nil {
		return nil, fr.wrap(call, err)
	}
	return r, nil
}

// nested calls another operator through the Caller. Constant arguments
// take the element type of the parameter they bind to.
func (fr *frame) nested(call *ast.CallExpr, callee *syntax.Operator) (value, error) {
	if fr.m.caller == nil {
		return nil, fr.wrap(call, fmt.Errorf("call %s: nested operator calls are not enabled", callee.Name))
	}
	args := make([]field.Value, len(call.Args))
	for i, a := range call.Args {
		var peer *field.DType
		if i < len(callee.Params) {
			if _, dt, ok := ir.Elem(callee.Params[i].Type); ok {
				if t, err := syntax.DTypeFrom(dt); err == nil {
					peer = &t
				}
			}
		}
		v, err := fr.evalWithPeer(a, peer)
		if err != nil {
			return nil, err
		}
		fv, ok := v.(field.Value)
		if !ok {
			return nil, fr.op.Errorf(syntax.KindType, a, "call", "argument %d of %s: want a field, got %s", i+1, callee.Name, describe(v))
		}
		args[i] = fv
	}
	r, err := fr.m.caller.CallNested(fr.ctx, callee, args)
	if err != nil {
		return nil, fr.wrap(call, fmt.Errorf("call %s: %w", callee.Name, err))
	}
	return r, nil
}
