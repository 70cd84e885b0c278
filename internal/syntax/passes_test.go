package syntax

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseFunc(t *testing.T, src string) *ast.FuncDecl {
	t.Helper()
	file, err := parser.ParseFile(token.NewFileSet(), "p.go", "package p\n"+src, 0)
	require.NoError(t, err)
	return file.Decls[0].(*ast.FuncDecl)
}

// render prints the statements of fn, one per line, without positions.
func render(fn *ast.FuncDecl) string {
	var lines []string
	var walk func(list []ast.Stmt, indent string)
	walk = func(list []ast.Stmt, indent string) {
		for _, s := range list {
			switch x := s.(type) {
			case *ast.AssignStmt:
				lhs := make([]string, len(x.Lhs))
				for i, e := range x.Lhs {
					lhs[i] = types.ExprString(e)
				}
				rhs := make([]string, len(x.Rhs))
				for i, e := range x.Rhs {
					rhs[i] = types.ExprString(e)
				}
				lines = append(lines, indent+strings.Join(lhs, ", ")+" "+x.Tok.String()+" "+strings.Join(rhs, ", "))
			case *ast.ReturnStmt:
				res := make([]string, len(x.Results))
				for i, e := range x.Results {
					res[i] = types.ExprString(e)
				}
				lines = append(lines, indent+"return "+strings.Join(res, ", "))
			case *ast.IfStmt:
				lines = append(lines, indent+"if "+types.ExprString(x.Cond))
				walk(x.Body.List, indent+"  ")
			}
		}
	}
	walk(fn.Body.List, "")
	return strings.Join(lines, "\n")
}

func TestSplitTupleAssign(t *testing.T) {
	fn := parseFunc(t, `func f(a, b T) T {
	a, b = b, a
	x, _, y := a+1, a+2, b
	return x
}`)
	SplitTupleAssign(fn, nil)

	assert.Equal(t, strings.Join([]string{
		"__tup1 := b",
		"__tup2 := a",
		"a = __tup1",
		"b = __tup2",
		"__tup3 := a + 1",
		"__tup4 := a + 2",
		"__tup5 := b",
		"x := __tup3",
		"y := __tup5",
		"return x",
	}, "\n"), render(fn))
}

func TestSplitTupleAssignNested(t *testing.T) {
	fn := parseFunc(t, `func f(a, b T) T {
	if c {
		a, b = b, a
	}
	return a
}`)
	SplitTupleAssign(fn, nil)
	assert.Equal(t, "if c\n  __tup1 := b\n  __tup2 := a\n  a = __tup1\n  b = __tup2\nreturn a", render(fn))
}

func TestSplitTupleAssignKeepsDestructuring(t *testing.T) {
	fn := parseFunc(t, `func f(a T) T {
	x, y := g(a)
	return x
}`)
	SplitTupleAssign(fn, nil)
	assert.Equal(t, "x, y := g(a)\nreturn x", render(fn))
}

func TestPassesIdempotent(t *testing.T) {
	src := `func f(a, b, c T) T {
	a, b = b, a
	m := a < b <= c
	s := add(a, b, c)
	p := mul(a, b)
	lo := min(a, b, c, 1)
	if a < b < c {
		a, c = c, a
	}
	return max(s, p, lo)
}`
	for _, p := range Passes {
		t.Run(p.Name, func(t *testing.T) {
			fn := parseFunc(t, src)
			p.Apply(fn, nil)
			once := render(fn)
			p.Apply(fn, nil)
			assert.Equal(t, once, render(fn))
		})
	}

	fn := parseFunc(t, src)
	Canonicalize(fn, nil)
	once := render(fn)
	Canonicalize(fn, nil)
	assert.Equal(t, once, render(fn))
}

func TestExpandChainedComparisons(t *testing.T) {
	fn := parseFunc(t, `func f(a, b, c, d T) T {
	x := a < b <= c
	y := a < b < c < d
	z := (a < b) == c
	w := g(a < b > c)
	return x
}`)
	ExpandChainedComparisons(fn, nil)
	assert.Equal(t, strings.Join([]string{
		"x := a < b && b <= c",
		"y := a < b && b < c && c < d",
		"z := (a < b) == c",
		"w := g(a < b && b > c)",
		"return x",
	}, "\n"), render(fn))
}

func TestLeftAssociate(t *testing.T) {
	fn := parseFunc(t, `func f(a, b, c T) T {
	s := add(a, b, c)
	p := 2 * mul(a, b, c)
	lo := min(a, b, c)
	hi := max(a, b)
	one := add(a)
	return s
}`)
	LeftAssociate(fn, nil)
	assert.Equal(t, strings.Join([]string{
		"s := (a + b + c)",
		"p := 2 * (a * b * c)",
		"lo := min(min(a, b), c)",
		"hi := max(a, b)",
		"one := a",
		"return s",
	}, "\n"), render(fn))
}

func TestLeftAssociateRespectsShadowing(t *testing.T) {
	fn := parseFunc(t, `func f(a, b, c T) T {
	s := add(a, b, c)
	return s
}`)
	LeftAssociate(fn, Env{"add": 1})
	assert.Equal(t, "s := add(a, b, c)\nreturn s", render(fn))
}
