package syntax

import (
	"go/ast"
	"go/token"
	"strconv"
	"strings"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/roach88/fieldop/internal/builtin"
)

// Pass is a canonicalization pass over an operator declaration. Every pass
// is idempotent.
type Pass struct {
	Name  string
	Apply func(fn *ast.FuncDecl, env Env)
}

// Passes run in this fixed order.
var Passes = []Pass{
	{Name: "split-tuple-assign", Apply: SplitTupleAssign},
	{Name: "expand-chained-comparisons", Apply: ExpandChainedComparisons},
	{Name: "left-associate", Apply: LeftAssociate},
}

// Canonicalize runs Passes over fn in order.
func Canonicalize(fn *ast.FuncDecl, env Env) {
	for _, p := range Passes {
		p.Apply(fn, env)
	}
}

const tempPrefix = "__tup"

// SplitTupleAssign rewrites a, b = x, y into
//
//	__tup1 := x
//	__tup2 := y
//	a = __tup1
//	b = __tup2
//
// so that every right-hand side is evaluated before any target is written.
// Destructuring a single tuple-valued expression (a, b := f(x)) is left
// alone.
func SplitTupleAssign(fn *ast.FuncDecl, _ Env) {
	next := maxTemp(fn.Body) + 1
	astutil.Apply(fn.Body, func(c *astutil.Cursor) bool {
		as, ok := c.Node().(*ast.AssignStmt)
		if !ok || len(as.Lhs) < 2 || len(as.Lhs) != len(as.Rhs) {
			return true
		}
		temps := make([]*ast.Ident, len(as.Rhs))
		for i, rhs := range as.Rhs {
			temps[i] = ast.NewIdent(tempPrefix + strconv.Itoa(next))
			temps[i].NamePos = rhs.Pos()
			next++
			c.InsertBefore(&ast.AssignStmt{
				Lhs:    []ast.Expr{temps[i]},
				TokPos: as.TokPos,
				Tok:    token.DEFINE,
				Rhs:    []ast.Expr{rhs},
			})
		}
		var assigns []ast.Stmt
		for i, lhs := range as.Lhs {
			if id, ok := lhs.(*ast.Ident); ok && id.Name == "_" {
				continue
			}
			ref := ast.NewIdent(temps[i].Name)
			ref.NamePos = lhs.Pos()
			assigns = append(assigns, &ast.AssignStmt{
				Lhs:    []ast.Expr{lhs},
				TokPos: as.TokPos,
				Tok:    as.Tok,
				Rhs:    []ast.Expr{ref},
			})
		}
		if len(assigns) == 0 {
			c.Delete()
			return false
		}
		for _, s := range assigns[:len(assigns)-1] {
			c.InsertBefore(s)
		}
		c.Replace(assigns[len(assigns)-1])
		return false
	}, nil)
}

func maxTemp(body *ast.BlockStmt) int {
	n := 0
	ast.Inspect(body, func(node ast.Node) bool {
		if id, ok := node.(*ast.Ident); ok && strings.HasPrefix(id.Name, tempPrefix) {
			if v, err := strconv.Atoi(id.Name[len(tempPrefix):]); err == nil && v > n {
				n = v
			}
		}
		return true
	})
	return n
}

func isComparison(op token.Token) bool {
	switch op {
	case token.LSS, token.LEQ, token.GTR, token.GEQ, token.EQL, token.NEQ:
		return true
	}
	return false
}

// ExpandChainedComparisons rewrites a < b <= c into a < b && b <= c,
// evaluated left to right with short-circuiting. The parser reads the chain
// as (a < b) <= c; an explicitly parenthesized comparison is not a chain.
func ExpandChainedComparisons(fn *ast.FuncDecl, _ Env) {
	var pre func(c *astutil.Cursor) bool
	pre = func(c *astutil.Cursor) bool {
		be, ok := c.Node().(*ast.BinaryExpr)
		if !ok || !isComparison(be.Op) {
			return true
		}
		inner, ok := be.X.(*ast.BinaryExpr)
		if !ok || !isComparison(inner.Op) {
			return true
		}
		operands, ops, positions := flattenChain(be)
		var conj ast.Expr
		for i, op := range ops {
			pair := &ast.BinaryExpr{X: operands[i], OpPos: positions[i], Op: op, Y: operands[i+1]}
			if conj == nil {
				conj = pair
				continue
			}
			conj = &ast.BinaryExpr{X: conj, OpPos: positions[i], Op: token.LAND, Y: pair}
		}
		c.Replace(conj)
		for _, o := range operands {
			astutil.Apply(o, pre, nil)
		}
		return false
	}
	astutil.Apply(fn.Body, pre, nil)
}

func flattenChain(be *ast.BinaryExpr) ([]ast.Expr, []token.Token, []token.Pos) {
	if inner, ok := be.X.(*ast.BinaryExpr); ok && isComparison(inner.Op) {
		operands, ops, positions := flattenChain(inner)
		return append(operands, be.Y), append(ops, be.Op), append(positions, be.OpPos)
	}
	return []ast.Expr{be.X, be.Y}, []token.Token{be.Op}, []token.Pos{be.OpPos}
}

// LeftAssociate rewrites the n-ary arithmetic built-ins into binary nests:
// add(a, b, c) becomes (a + b) + c, mul likewise with *, and
// min(a, b, c) becomes min(min(a, b), c). Names rebound by the environment
// or by the body are left alone.
func LeftAssociate(fn *ast.FuncDecl, env Env) {
	shadowed := assignedNames(fn.Body)
	for _, f := range fn.Type.Params.List {
		for _, n := range f.Names {
			shadowed[n.Name] = true
		}
	}
	astutil.Apply(fn.Body, nil, func(c *astutil.Cursor) bool {
		call, ok := c.Node().(*ast.CallExpr)
		if !ok {
			return true
		}
		id, ok := call.Fun.(*ast.Ident)
		if !ok || shadowed[id.Name] || call.Ellipsis.IsValid() {
			return true
		}
		if _, ok := env[id.Name]; ok {
			return true
		}
		op, ok := builtin.Variadic[id.Name]
		if !ok || len(call.Args) == 0 {
			return true
		}
		if len(call.Args) == 1 {
			c.Replace(call.Args[0])
			return true
		}
		switch op {
		case "+", "*":
			tok := token.ADD
			if op == "*" {
				tok = token.MUL
			}
			var acc ast.Expr = call.Args[0]
			for _, a := range call.Args[1:] {
				acc = &ast.BinaryExpr{X: acc, OpPos: call.Lparen, Op: tok, Y: a}
			}
			c.Replace(&ast.ParenExpr{Lparen: call.Pos(), X: acc, Rparen: call.Rparen})
		default:
			if len(call.Args) == 2 {
				return true
			}
			acc := call.Args[0]
			for _, a := range call.Args[1:] {
				fun := ast.NewIdent(id.Name)
				fun.NamePos = id.NamePos
				acc = &ast.CallExpr{Fun: fun, Lparen: call.Lparen, Args: []ast.Expr{acc, a}, Rparen: call.Rparen}
			}
			c.Replace(acc)
		}
		return true
	})
}
