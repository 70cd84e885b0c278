package syntax

import (
	"go/ast"
	"go/token"
	"strconv"
)

// BinaryOps maps Go binary operator tokens to elementwise field operators.
// && and || are scalar-only and handled by the backends directly.
var BinaryOps = map[token.Token]string{
	token.ADD: "add",
	token.SUB: "sub",
	token.MUL: "mul",
	token.QUO: "div",
	token.REM: "mod",
	token.LSS: "lt",
	token.LEQ: "le",
	token.GTR: "gt",
	token.GEQ: "ge",
	token.EQL: "eq",
	token.NEQ: "ne",
	token.AND: "and",
	token.OR:  "or",
	token.XOR: "xor",
}

// UnaryOps maps Go unary operator tokens to elementwise field operators.
// Unary + is the identity.
var UnaryOps = map[token.Token]string{
	token.SUB: "neg",
	token.NOT: "not",
}

// AssignOps maps augmented assignment tokens to the binary operator they
// apply: x += y is x = x + y.
var AssignOps = map[token.Token]token.Token{
	token.ADD_ASSIGN: token.ADD,
	token.SUB_ASSIGN: token.SUB,
	token.MUL_ASSIGN: token.MUL,
	token.QUO_ASSIGN: token.QUO,
	token.REM_ASSIGN: token.REM,
	token.AND_ASSIGN: token.AND,
	token.OR_ASSIGN:  token.OR,
	token.XOR_ASSIGN: token.XOR,
}

// IncDec returns the binary operator and the literal operand x++ and x--
// stand for.
func IncDec(s *ast.IncDecStmt) (token.Token, *ast.BasicLit) {
	one := &ast.BasicLit{ValuePos: s.TokPos, Kind: token.INT, Value: "1"}
	if s.Tok == token.DEC {
		return token.SUB, one
	}
	return token.ADD, one
}

// Subscript returns the 0-based position named by a 1-based subscript
// literal: t[1] is the first element.
func (op *Operator) Subscript(e ast.Expr) (int, error) {
	lit, ok := e.(*ast.BasicLit)
	if !ok || lit.Kind != token.INT {
		return 0, op.Errorf(KindConstruct, e, "subscript", "subscripts must be integer literals")
	}
	n, err := strconv.ParseInt(lit.Value, 0, 64)
	if err != nil || n < 1 {
		return 0, op.Errorf(KindConstruct, e, "subscript", "subscript %s out of range; subscripts start at 1", lit.Value)
	}
	return int(n - 1), nil
}

// RemapArgs splits the arguments of an indexed transform f(Off), f(Off, i)
// or f(Off[i]) into the offset expression and the 0-based neighbor index,
// -1 when the whole neighbor row is gathered.
func (op *Operator) RemapArgs(call *ast.CallExpr) (ast.Expr, int, error) {
	switch len(call.Args) {
	case 1:
		if ix, ok := call.Args[0].(*ast.IndexExpr); ok {
			i, err := op.Subscript(ix.Index)
			return ix.X, i, err
		}
		return call.Args[0], -1, nil
	case 2:
		if _, ok := call.Args[0].(*ast.IndexExpr); ok {
			return nil, 0, op.Errorf(KindConstruct, call, "indexed transform", "neighbor index given twice")
		}
		if ConstKind(call.Args[1]) != token.INT {
			return nil, 0, op.Errorf(KindConstruct, call.Args[1], "indexed transform", "neighbor index must be an integer literal")
		}
		lit, ok := unparen(call.Args[1]).(*ast.BasicLit)
		if !ok {
			return nil, 0, op.Errorf(KindConstruct, call.Args[1], "indexed transform", "neighbor index must be a positive integer literal")
		}
		i, err := op.Subscript(lit)
		return call.Args[0], i, err
	default:
		return nil, 0, op.Errorf(KindConstruct, call, "indexed transform", "want f(offset) or f(offset, index), got %d arguments", len(call.Args))
	}
}

func unparen(e ast.Expr) ast.Expr {
	for {
		p, ok := e.(*ast.ParenExpr)
		if !ok {
			return e
		}
		e = p.X
	}
}
