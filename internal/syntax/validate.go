package syntax

import (
	"go/ast"
	"go/token"
)

// forbiddenCalls are Go built-ins outside the operator language.
var forbiddenCalls = map[string]bool{
	"append": true, "cap": true, "clear": true, "close": true, "complex": true,
	"copy": true, "delete": true, "imag": true, "len": true, "make": true,
	"new": true, "panic": true, "print": true, "println": true, "real": true,
	"recover": true,
}

var allowedAssign = map[token.Token]bool{
	token.DEFINE: true, token.ASSIGN: true,
	token.ADD_ASSIGN: true, token.SUB_ASSIGN: true,
	token.MUL_ASSIGN: true, token.QUO_ASSIGN: true, token.REM_ASSIGN: true,
	token.AND_ASSIGN: true, token.OR_ASSIGN: true, token.XOR_ASSIGN: true,
}

var allowedBinary = map[token.Token]bool{
	token.ADD: true, token.SUB: true, token.MUL: true, token.QUO: true, token.REM: true,
	token.LSS: true, token.LEQ: true, token.GTR: true, token.GEQ: true,
	token.EQL: true, token.NEQ: true,
	token.AND: true, token.OR: true, token.XOR: true,
	token.LAND: true, token.LOR: true,
}

// validate rejects everything outside the operator language. The body is
// assignments, if/else chains and one terminal return.
func (d *definer) validate(fn *ast.FuncDecl) error {
	list := fn.Body.List
	if len(list) == 0 {
		return d.errorf(KindConstruct, fn.Body, "return", "operator %s must end with a return statement", fn.Name.Name)
	}
	last, ok := list[len(list)-1].(*ast.ReturnStmt)
	if !ok {
		return d.errorf(KindConstruct, list[len(list)-1], "return", "operator %s must end with a return statement", fn.Name.Name)
	}
	if len(last.Results) == 0 {
		return d.errorf(KindConstruct, last, "return", "return must produce a value")
	}
	if err := d.checkStmts(list[:len(list)-1]); err != nil {
		return err
	}
	for _, r := range last.Results {
		if err := d.checkExpr(r); err != nil {
			return err
		}
	}
	return nil
}

func (d *definer) checkStmts(list []ast.Stmt) error {
	for _, s := range list {
		if err := d.checkStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (d *definer) checkStmt(s ast.Stmt) error {
	switch x := s.(type) {
	case *ast.AssignStmt:
		if !allowedAssign[x.Tok] {
			return d.errorf(KindConstruct, x, "assignment", "operator %s is not supported", x.Tok)
		}
		if len(x.Lhs) > 1 && x.Tok != token.DEFINE && x.Tok != token.ASSIGN {
			return d.errorf(KindConstruct, x, "assignment", "augmented assignment needs a single target")
		}
		for _, l := range x.Lhs {
			if _, ok := l.(*ast.Ident); !ok {
				return d.errorf(KindConstruct, l, "assignment", "only plain variables can be assigned")
			}
		}
		if len(x.Rhs) != 1 && len(x.Rhs) != len(x.Lhs) {
			return d.errorf(KindConstruct, x, "assignment", "%d targets for %d values", len(x.Lhs), len(x.Rhs))
		}
		for _, r := range x.Rhs {
			if err := d.checkExpr(r); err != nil {
				return err
			}
		}
		return nil
	case *ast.IncDecStmt:
		if _, ok := x.X.(*ast.Ident); !ok {
			return d.errorf(KindConstruct, x, "assignment", "only plain variables can be incremented")
		}
		return nil
	case *ast.IfStmt:
		if x.Init != nil {
			return d.errorf(KindConstruct, x.Init, "if", "if statements cannot have an init statement")
		}
		if err := d.checkExpr(x.Cond); err != nil {
			return err
		}
		if err := d.checkStmts(x.Body.List); err != nil {
			return err
		}
		if x.Else != nil {
			return d.checkStmt(x.Else)
		}
		return nil
	case *ast.BlockStmt:
		// Only reachable as an else branch.
		return d.checkStmts(x.List)
	case *ast.EmptyStmt:
		return nil
	case *ast.ReturnStmt:
		return d.errorf(KindConstruct, x, "return", "return must be the last statement of the operator")
	case *ast.ForStmt:
		return d.errorf(KindConstruct, x, "for loop", "loops are not supported")
	case *ast.RangeStmt:
		return d.errorf(KindConstruct, x, "range loop", "loops are not supported")
	case *ast.SwitchStmt, *ast.TypeSwitchStmt:
		return d.errorf(KindConstruct, x, "switch", "use if/else instead")
	case *ast.SelectStmt:
		return d.errorf(KindConstruct, x, "select", "channels are not supported")
	case *ast.GoStmt:
		return d.errorf(KindConstruct, x, "go", "goroutines are not supported")
	case *ast.DeferStmt:
		return d.errorf(KindConstruct, x, "defer", "defer is not supported")
	case *ast.BranchStmt:
		return d.errorf(KindConstruct, x, x.Tok.String(), "branch statements are not supported")
	case *ast.LabeledStmt:
		return d.errorf(KindConstruct, x, "label", "labels are not supported")
	case *ast.DeclStmt:
		return d.errorf(KindConstruct, x, "declaration", "use := instead of var/const/type declarations")
	case *ast.ExprStmt:
		return d.errorf(KindConstruct, x, "expression statement", "the value of %s is discarded", d.text(x.X))
	case *ast.SendStmt:
		return d.errorf(KindConstruct, x, "send", "channels are not supported")
	default:
		return d.errorf(KindConstruct, s, "statement", "unsupported statement %T", s)
	}
}

func (d *definer) checkExpr(e ast.Expr) error {
	var err error
	ast.Inspect(e, func(n ast.Node) bool {
		if err != nil {
			return false
		}
		err = d.checkNode(n)
		return err == nil
	})
	return err
}

func (d *definer) checkNode(n ast.Node) error {
	switch x := n.(type) {
	case nil, *ast.Ident, *ast.ParenExpr:
		return nil
	case *ast.BasicLit:
		if x.Kind != token.INT && x.Kind != token.FLOAT {
			return d.errorf(KindConstruct, x, "literal", "%s literals are not supported", x.Kind)
		}
	case *ast.BinaryExpr:
		if !allowedBinary[x.Op] {
			return d.errorf(KindConstruct, x, "operator", "%s is not supported", x.Op)
		}
	case *ast.UnaryExpr:
		if x.Op != token.SUB && x.Op != token.ADD && x.Op != token.NOT {
			return d.errorf(KindConstruct, x, "operator", "unary %s is not supported", x.Op)
		}
	case *ast.CallExpr:
		if x.Ellipsis.IsValid() {
			return d.errorf(KindConstruct, x, "call", "variadic calls are not supported")
		}
		switch fun := x.Fun.(type) {
		case *ast.Ident:
			if _, ok := d.env[fun.Name]; !ok && forbiddenCalls[fun.Name] {
				return d.errorf(KindConstruct, fun, "builtin "+fun.Name, "%s is not available in operators", fun.Name)
			}
		case *ast.SelectorExpr, *ast.CallExpr, *ast.ParenExpr, *ast.IndexExpr:
		default:
			return d.errorf(KindConstruct, x.Fun, "call", "cannot call %s", d.text(x.Fun))
		}
	case *ast.SelectorExpr:
		if id, ok := x.X.(*ast.Ident); !ok || id.Name != "math" {
			return d.errorf(KindConstruct, x, "selector", "only math.F selectors are supported, got %s", d.text(x))
		}
	case *ast.IndexExpr:
		lit, ok := x.Index.(*ast.BasicLit)
		if !ok || lit.Kind != token.INT {
			return d.errorf(KindConstruct, x.Index, "subscript", "subscripts must be integer literals")
		}
	case *ast.FuncLit:
		return d.errorf(KindConstruct, x, "closure", "function literals are not supported")
	case *ast.CompositeLit:
		return d.errorf(KindConstruct, x, "composite literal", "composite literals are not supported")
	case *ast.SliceExpr:
		return d.errorf(KindConstruct, x, "slice", "slicing is not supported")
	case *ast.StarExpr:
		return d.errorf(KindConstruct, x, "pointer", "pointers are not supported")
	case *ast.TypeAssertExpr:
		return d.errorf(KindConstruct, x, "type assertion", "type assertions are not supported")
	case *ast.IndexListExpr:
		return d.errorf(KindConstruct, x, "generic instantiation", "type arguments are not supported")
	case *ast.KeyValueExpr:
		return d.errorf(KindConstruct, x, "key-value", "keyed arguments are not supported")
	default:
		return d.errorf(KindConstruct, n, "expression", "unsupported expression %T", n)
	}
	return nil
}
