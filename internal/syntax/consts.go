package syntax

import (
	"fmt"
	"go/ast"
	"go/token"
	"strconv"

	"github.com/roach88/fieldop/internal/field"
)

// Untyped numeric constants take their element type from the operand they
// are combined with, as in Go: 2*x keeps x's type. A constant with no typed
// peer defaults to int64 or float64.

// ConstKind reports token.INT or token.FLOAT when e is an untyped numeric
// constant (a literal, possibly signed or parenthesized), token.ILLEGAL
// otherwise.
func ConstKind(e ast.Expr) token.Token {
	switch x := e.(type) {
	case *ast.BasicLit:
		if x.Kind == token.INT || x.Kind == token.FLOAT {
			return x.Kind
		}
	case *ast.ParenExpr:
		return ConstKind(x.X)
	case *ast.UnaryExpr:
		if x.Op == token.SUB || x.Op == token.ADD {
			return ConstKind(x.X)
		}
	}
	return token.ILLEGAL
}

// ConstValue evaluates an untyped numeric constant.
func ConstValue(e ast.Expr) (float64, error) {
	switch x := e.(type) {
	case *ast.BasicLit:
		v, err := strconv.ParseFloat(x.Value, 64)
		if err != nil {
			if i, ierr := strconv.ParseInt(x.Value, 0, 64); ierr == nil {
				return float64(i), nil
			}
			return 0, fmt.Errorf("invalid constant %s: %w", x.Value, err)
		}
		return v, nil
	case *ast.ParenExpr:
		return ConstValue(x.X)
	case *ast.UnaryExpr:
		v, err := ConstValue(x.X)
		if x.Op == token.SUB {
			v = -v
		}
		return v, err
	}
	return 0, fmt.Errorf("%T is not a constant", e)
}

// ConstType returns the element type an untyped constant of kind takes next
// to a peer of type peer (nil when there is no typed peer).
func ConstType(kind token.Token, peer *field.DType) field.DType {
	def := field.Int64
	if kind == token.FLOAT {
		def = field.Float64
	}
	if peer == nil || *peer == field.Bool {
		return def
	}
	if kind == token.INT || peer.IsFloat() {
		return *peer
	}
	return def
}

// ConstPeers lists, for the built-ins whose arguments are combined
// elementwise, which argument positions are peers of each other.
var ConstPeers = map[string][]int{
	"where": {1, 2},
	"min":   {0, 1},
	"max":   {0, 1},
	"pow":   {0, 1},
}
