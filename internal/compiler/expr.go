package compiler

import (
	"fmt"
	"go/ast"
	"go/token"
	"strconv"

	"github.com/roach88/fieldop/internal/builtin"
	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/ir"
	"github.com/roach88/fieldop/internal/syntax"
)

func (tr *translator) meta(n ast.Node, t ir.Type) ir.Meta {
	return ir.Meta{Loc: tr.loc(n), T: t}
}

func (tr *translator) expr(e ast.Expr) (ir.Expr, error) {
	if k := syntax.ConstKind(e); k != token.ILLEGAL {
		return tr.constant(e, k, nil)
	}
	switch x := e.(type) {
	case *ast.ParenExpr:
		return tr.expr(x.X)
	case *ast.Ident:
		return tr.ident(x)
	case *ast.BinaryExpr:
		if x.Op == token.LAND || x.Op == token.LOR {
			return tr.logical(x)
		}
		return tr.binary(x, x.Op, x.X, x.Y)
	case *ast.UnaryExpr:
		return tr.unary(x)
	case *ast.CallExpr:
		return tr.call(x)
	case *ast.SelectorExpr:
		if v, ok := builtin.MathConsts[x.Sel.Name]; ok {
			return tr.literal(x, v, field.Float64), nil
		}
		if _, ok := builtin.MathMembers[x.Sel.Name]; ok {
			return nil, tr.op.Errorf(syntax.KindType, x, "selector", "math.%s is a function, not a value", x.Sel.Name)
		}
		return nil, tr.op.Errorf(syntax.KindSyntax, x, "selector", "math.%s is not supported", x.Sel.Name)
	case *ast.IndexExpr:
		return tr.tupleGet(x)
	default:
		return nil, tr.op.Errorf(syntax.KindConstruct, e, "expression", "unsupported expression %T", e)
	}
}

func (tr *translator) literal(n ast.Node, v float64, dt field.DType) *ir.Literal {
	text := strconv.FormatFloat(v, 'g', -1, 64)
	if dt == field.Bool {
		text = strconv.FormatBool(v != 0)
	}
	return &ir.Literal{Meta: tr.meta(n, ir.ScalarType{DType: dt.String()}), Value: text}
}

// constant lowers an untyped constant next to a peer of type peer.
func (tr *translator) constant(e ast.Expr, kind token.Token, peer *field.DType) (ir.Expr, error) {
	v, err := syntax.ConstValue(e)
	if err != nil {
		return nil, tr.op.Errorf(syntax.KindSyntax, e, "literal", "%v", err)
	}
	return tr.literal(e, v, syntax.ConstType(kind, peer)), nil
}

func (tr *translator) exprWithPeer(e ast.Expr, peer *field.DType) (ir.Expr, error) {
	if k := syntax.ConstKind(e); k != token.ILLEGAL {
		return tr.constant(e, k, peer)
	}
	return tr.expr(e)
}

// pair lowers binary operands in the same order the interpreter evaluates
// them, so untyped constants get the same types on both backends.
func (tr *translator) pair(x, y ast.Expr) (ir.Expr, ir.Expr, error) {
	if syntax.ConstKind(x) != token.ILLEGAL && syntax.ConstKind(y) == token.ILLEGAL {
		b, err := tr.expr(y)
		if err != nil {
			return nil, nil, err
		}
		a, err := tr.exprWithPeer(x, peerOf(b.ResultType()))
		return a, b, err
	}
	a, err := tr.expr(x)
	if err != nil {
		return nil, nil, err
	}
	b, err := tr.exprWithPeer(y, peerOf(a.ResultType()))
	return a, b, err
}

func (tr *translator) ident(id *ast.Ident) (ir.Expr, error) {
	if t, ok := tr.vars[id.Name]; ok {
		return &ir.Sym{Meta: tr.meta(id, t), Name: id.Name}, nil
	}
	if c, ok := tr.op.Capture(id.Name); ok {
		if c.Kind == syntax.CaptureScalar {
			v, _ := c.Scalar.ScalarValue()
			return tr.literal(id, v, c.Scalar.DType()), nil
		}
		return nil, tr.op.Errorf(syntax.KindType, id, "identifier", "%s %s cannot be used as a value", c.Kind, id.Name)
	}
	switch id.Name {
	case "true":
		return tr.literal(id, 1, field.Bool), nil
	case "false":
		return tr.literal(id, 0, field.Bool), nil
	}
	if builtin.Lookup(id.Name) {
		return nil, tr.op.Errorf(syntax.KindType, id, "identifier", "built-in %s cannot be used as a value", id.Name)
	}
	if _, ok := field.ParseDType(id.Name); ok {
		return nil, tr.op.Errorf(syntax.KindType, id, "identifier", "type %s cannot be used as a value", id.Name)
	}
	return nil, tr.op.Errorf(syntax.KindSyntax, id, "identifier", "undefined: %s", id.Name)
}

func (tr *translator) binary(node ast.Node, tok token.Token, x, y ast.Expr) (ir.Expr, error) {
	name, ok := syntax.BinaryOps[tok]
	if !ok {
		return nil, tr.op.Errorf(syntax.KindConstruct, node, "operator", "%s is not supported", tok)
	}
	a, b, err := tr.pair(x, y)
	if err != nil {
		return nil, err
	}
	t, err := binaryType(name, a.ResultType(), b.ResultType())
	if err != nil {
		return nil, tr.typeErr(node, tok.String(), err)
	}
	return &ir.Binary{Meta: tr.meta(node, t), Op: name, X: a, Y: b}, nil
}

func (tr *translator) unary(x *ast.UnaryExpr) (ir.Expr, error) {
	v, err := tr.expr(x.X)
	if err != nil {
		return nil, err
	}
	if x.Op == token.ADD {
		if _, _, ok := elem(v.ResultType()); !ok {
			return nil, tr.op.Errorf(syntax.KindType, x, "+", "want a field, got %s", v.ResultType())
		}
		return v, nil
	}
	name := syntax.UnaryOps[x.Op]
	t, err := unaryType(name, v.ResultType())
	if err != nil {
		return nil, tr.typeErr(x, x.Op.String(), err)
	}
	return &ir.Unary{Meta: tr.meta(x, t), Op: name, X: v}, nil
}

func (tr *translator) logical(x *ast.BinaryExpr) (ir.Expr, error) {
	a, err := tr.expr(x.X)
	if err != nil {
		return nil, err
	}
	if !isScalarBool(a.ResultType()) {
		return nil, tr.op.Errorf(syntax.KindType, x.X, x.Op.String(), "condition must be a scalar bool, got %s; use where for fields", a.ResultType())
	}
	b, err := tr.expr(x.Y)
	if err != nil {
		return nil, err
	}
	if !isScalarBool(b.ResultType()) {
		return nil, tr.op.Errorf(syntax.KindType, x.Y, x.Op.String(), "condition must be a scalar bool, got %s; use where for fields", b.ResultType())
	}
	op := "and"
	if x.Op == token.LOR {
		op = "or"
	}
	return &ir.Logical{Meta: tr.meta(x, ir.ScalarType{DType: field.Bool.String()}), Op: op, X: a, Y: b}, nil
}

func (tr *translator) tupleGet(x *ast.IndexExpr) (ir.Expr, error) {
	v, err := tr.expr(x.X)
	if err != nil {
		return nil, err
	}
	tt, ok := v.ResultType().(ir.TupleType)
	if !ok {
		return nil, tr.op.Errorf(syntax.KindType, x, "subscript", "cannot subscript %s", v.ResultType())
	}
	i, err := tr.op.Subscript(x.Index)
	if err != nil {
		return nil, err
	}
	if i >= len(tt.Elems) {
		return nil, tr.op.Errorf(syntax.KindType, x.Index, "subscript", "subscript %d out of range for tuple of %d", i+1, len(tt.Elems))
	}
	return &ir.TupleGet{Meta: tr.meta(x, tt.Elems[i]), X: v, Index: i}, nil
}

func (tr *translator) call(call *ast.CallExpr) (ir.Expr, error) {
	switch fun := call.Fun.(type) {
	case *ast.Ident:
		if _, ok := tr.vars[fun.Name]; ok {
			break
		}
		if c, ok := tr.op.Capture(fun.Name); ok {
			switch c.Kind {
			case syntax.CaptureOperator:
				return tr.opCall(call, fun.Name, c.Operator)
			case syntax.CaptureBuiltin:
				return tr.builtinCall(call, c.Builtin)
			case syntax.CaptureType:
				return tr.convert(call, c.DType)
			case syntax.CaptureScalar:
			default:
				return nil, tr.op.Errorf(syntax.KindType, fun, "call", "cannot call %s %s", c.Kind, fun.Name)
			}
			break
		}
		if builtin.Lookup(fun.Name) {
			return tr.builtinCall(call, fun.Name)
		}
		if t, ok := field.ParseDType(fun.Name); ok {
			return tr.convert(call, t)
		}
	case *ast.SelectorExpr:
		if name, ok := builtin.MathMembers[fun.Sel.Name]; ok {
			return tr.builtinCall(call, name)
		}
		return nil, tr.op.Errorf(syntax.KindSyntax, fun, "selector", "math.%s is not supported", fun.Sel.Name)
	}
	x, err := tr.expr(call.Fun)
	if err != nil {
		return nil, err
	}
	return tr.remap(call, x)
}

// remap lowers the indexed transform x(Off), x(Off, i) or x(Off[i]).
func (tr *translator) remap(call *ast.CallExpr, x ir.Expr) (ir.Expr, error) {
	if _, ok := x.ResultType().(ir.FieldType); !ok {
		return nil, tr.op.Errorf(syntax.KindType, call.Fun, "call", "cannot call %s", x.ResultType())
	}
	offExpr, index, err := tr.op.RemapArgs(call)
	if err != nil {
		return nil, err
	}
	off, err := tr.offset(offExpr)
	if err != nil {
		return nil, err
	}
	t, err := remapType(x.ResultType(), off, index < 0)
	if err != nil {
		return nil, tr.typeErr(call, "indexed transform", err)
	}
	tr.offsets[off.Name] = syntax.OffsetDecl(off)
	return &ir.Remap{Meta: tr.meta(call, t), X: x, Offset: off.Name, Index: index}, nil
}

func (tr *translator) offset(e ast.Expr) (field.Offset, error) {
	if id, ok := e.(*ast.Ident); ok {
		if _, shadowed := tr.vars[id.Name]; !shadowed {
			if c, ok := tr.op.Capture(id.Name); ok && c.Kind == syntax.CaptureOffset {
				return c.Offset, nil
			}
		}
	}
	return field.Offset{}, tr.op.Errorf(syntax.KindType, e, "indexed transform", "want an offset, got %s", exprString(e))
}

// dim resolves a dimension argument.
func (tr *translator) dim(e ast.Expr) (field.Dimension, bool) {
	id, ok := e.(*ast.Ident)
	if !ok {
		return field.Dimension{}, false
	}
	if _, shadowed := tr.vars[id.Name]; shadowed {
		return field.Dimension{}, false
	}
	c, ok := tr.op.Capture(id.Name)
	if !ok || c.Kind != syntax.CaptureDimension {
		return field.Dimension{}, false
	}
	return c.Dim, true
}

// typeArg resolves a type-constructor argument (astype's second argument).
func (tr *translator) typeArg(e ast.Expr) (field.DType, bool) {
	id, ok := e.(*ast.Ident)
	if !ok {
		return 0, false
	}
	if _, shadowed := tr.vars[id.Name]; shadowed {
		return 0, false
	}
	if c, ok := tr.op.Capture(id.Name); ok {
		return c.DType, c.Kind == syntax.CaptureType
	}
	return field.ParseDType(id.Name)
}

// arg lowers a built-in argument; dimensions become DimRefs.
func (tr *translator) arg(e ast.Expr) (ir.Expr, error) {
	if d, ok := tr.dim(e); ok {
		return &ir.DimRef{Meta: tr.meta(e, nil), Dim: syntax.DimOf(d)}, nil
	}
	return tr.expr(e)
}

// builtinCall lowers a built-in call. Non-constant arguments are lowered
// first, then untyped constants take the type of their first typed peer,
// as in the interpreter.
func (tr *translator) builtinCall(call *ast.CallExpr, name string) (ir.Expr, error) {
	lo, hi, _ := builtin.Arity(name)
	if n := len(call.Args); n < lo || (hi >= 0 && n > hi) {
		return nil, tr.op.Errorf(syntax.KindConstruct, call, "call", "%s takes %s arguments, got %d", name, arityText(lo, hi), n)
	}
	if name == "astype" {
		t, ok := tr.typeArg(call.Args[1])
		if !ok {
			return nil, tr.op.Errorf(syntax.KindType, call.Args[1], "call", "astype: want a type, got %s", exprString(call.Args[1]))
		}
		return tr.convertExpr(call, call.Args[0], t)
	}

	args := make([]ir.Expr, len(call.Args))
	for i, a := range call.Args {
		if syntax.ConstKind(a) != token.ILLEGAL {
			continue
		}
		v, err := tr.arg(a)
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
			if p != i && p < len(args) && args[p] != nil {
				if t := peerOf(args[p].ResultType()); t != nil {
					peer = t
					break
				}
			}
		}
		v, err := tr.constant(a, kind, peer)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	t, err := tr.builtinType(call, name, args)
	if err != nil {
		return nil, tr.typeErr(call, name, err)
	}
	return &ir.Call{Meta: tr.meta(call, t), Name: name, Args: args}, nil
}

func arityText(lo, hi int) string {
	switch {
	case hi < 0:
		return fmt.Sprintf("at least %d", lo)
	case lo == hi:
		return strconv.Itoa(lo)
	default:
		return fmt.Sprintf("%d to %d", lo, hi)
	}
}

func dimArg(name string, args []ir.Expr, i int) (field.Dimension, error) {
	ref, ok := args[i].(*ir.DimRef)
	if !ok {
		return field.Dimension{}, fmt.Errorf("%s: argument %d must be a dimension", name, i+1)
	}
	return syntax.DimFrom(ref.Dim)
}

func valueArg(name string, args []ir.Expr, i int) (ir.Type, error) {
	if _, ok := args[i].(*ir.DimRef); ok {
		return nil, fmt.Errorf("%s: argument %d must be a field, got a dimension", name, i+1)
	}
	return args[i].ResultType(), nil
}

func (tr *translator) builtinType(call *ast.CallExpr, name string, args []ir.Expr) (ir.Type, error) {
	values := make([]ir.Type, len(args))
	for i := range args {
		switch {
		case (name == "neighbor_sum" || name == "min_over" || name == "max_over") && i == 1,
			name == "broadcast" && i > 0:
			continue
		}
		t, err := valueArg(name, args, i)
		if err != nil {
			return nil, err
		}
		values[i] = t
	}

	switch name {
	case "neighbor_sum", "min_over", "max_over":
		axis, err := dimArg(name, args, 1)
		if err != nil {
			return nil, err
		}
		return reduceType(name, values[0], axis)
	case "where":
		return whereType(values[0], values[1], values[2])
	case "broadcast":
		xd, xt, ok := elem(values[0])
		if !ok {
			return nil, fmt.Errorf("broadcast: cannot broadcast %s", values[0])
		}
		target := make([]ir.Dim, 0, len(args)-1)
		for i := 1; i < len(args); i++ {
			d, err := dimArg(name, args, i)
			if err != nil {
				return nil, err
			}
			target = append(target, syntax.DimOf(d))
		}
		if !containsOrdered(target, xd) {
			return nil, fmt.Errorf("broadcast: cannot broadcast %s to %v", values[0], dimNamesOf(target))
		}
		return makeType(xd, xt), nil
	case "tuple":
		return ir.TupleType{Elems: values}, nil
	case "pow", "min", "max":
		return binaryType(name, values[0], values[1])
	default:
		return unaryType(name, values[0])
	}
}

func containsOrdered(super, sub []ir.Dim) bool {
	j := 0
	for _, d := range super {
		if j < len(sub) && sub[j] == d {
			j++
		}
	}
	return j == len(sub)
}

func dimNamesOf(dims []ir.Dim) []string {
	out := make([]string, len(dims))
	for i, d := range dims {
		out[i] = d.Name
	}
	return out
}

// convert lowers a type constructor call: float32(x).
func (tr *translator) convert(call *ast.CallExpr, t field.DType) (ir.Expr, error) {
	if len(call.Args) != 1 {
		return nil, tr.op.Errorf(syntax.KindConstruct, call, "conversion", "%s takes one argument, got %d", t, len(call.Args))
	}
	return tr.convertExpr(call, call.Args[0], t)
}

func (tr *translator) convertExpr(call *ast.CallExpr, a ast.Expr, t field.DType) (ir.Expr, error) {
	v, err := tr.exprWithPeer(a, &t)
	if err != nil {
		return nil, err
	}
	dims, _, ok := elem(v.ResultType())
	if !ok {
		return nil, tr.op.Errorf(syntax.KindType, a, "conversion", "cannot convert %s to %s", v.ResultType(), t)
	}
	return &ir.Convert{Meta: tr.meta(call, makeType(dims, t)), X: v, DType: t.String()}, nil
}

// opCall lowers a nested operator call. The callee is translated once,
// through the cache, and referenced by name from Deps.
func (tr *translator) opCall(call *ast.CallExpr, name string, callee *syntax.Operator) (ir.Expr, error) {
	dep, err := tr.cache.Translate(callee)
	if err != nil {
		return nil, fmt.Errorf("%s: nested operator %s: %w", tr.op.Position(call.Pos()), name, err)
	}
	if len(call.Args) != len(dep.Params) {
		return nil, tr.op.Errorf(syntax.KindType, call, "call", "%s takes %d arguments, got %d", name, len(dep.Params), len(call.Args))
	}
	args := make([]ir.Expr, len(call.Args))
	for i, a := range call.Args {
		v, err := tr.exprWithPeer(a, peerOf(dep.Params[i].T))
		if err != nil {
			return nil, err
		}
		if !ir.Equivalent(dep.Params[i].T, v.ResultType()) {
			return nil, tr.op.Errorf(syntax.KindType, a, "call", "argument %d of %s: %s does not match %s", i+1, name, v.ResultType(), dep.Params[i].T)
		}
		args[i] = v
	}
	tr.prog.Deps[name] = dep
	return &ir.OpCall{Meta: tr.meta(call, dep.Result), Op: name, Args: args}, nil
}

func exprString(e ast.Expr) string {
	if id, ok := e.(*ast.Ident); ok {
		return id.Name
	}
	return fmt.Sprintf("%T", e)
}
