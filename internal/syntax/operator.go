// Package syntax defines field operators from source.
//
// An operator is a Go function declaration whose parameters are annotated
// with field, scalar or tuple types:
//
//	func lap(f Field[I, J, float64]) Field[I, J, float64] {
//		c := f(IC)(JC)
//		return -4*c + f(IM)(JC) + f(IP)(JC) + f(IC)(JM) + f(IC)(JP)
//	}
//
// Define parses the source, checks it against the operator language,
// classifies the free variables it captures from an Env and runs the
// canonicalization passes. Both backends consume the resulting Operator:
// the embedded interpreter walks its canonical AST, the translator lowers
// it to IR.
package syntax

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/fieldop/internal/builtin"
	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/ir"
)

// Env binds the free variables an operator body may capture: dimensions,
// offsets, scalar constants, nested operators, built-ins (builtin.Name) and
// type constructors (field.DType).
type Env map[string]any

// CaptureKind classifies a captured variable.
type CaptureKind int

const (
	CaptureDimension CaptureKind = iota + 1
	CaptureOffset
	CaptureScalar
	CaptureOperator
	CaptureBuiltin
	CaptureType
)

var captureKindNames = map[CaptureKind]string{
	CaptureDimension: "dimension",
	CaptureOffset:    "offset",
	CaptureScalar:    "scalar",
	CaptureOperator:  "operator",
	CaptureBuiltin:   "builtin",
	CaptureType:      "type",
}

func (k CaptureKind) String() string {
	if s, ok := captureKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("CaptureKind(%d)", int(k))
}

// Capture is a classified free variable. Exactly one payload field is set,
// according to Kind.
type Capture struct {
	Name     string
	Kind     CaptureKind
	Dim      field.Dimension
	Offset   field.Offset
	Scalar   *field.Field
	Operator *Operator
	Builtin  string
	DType    field.DType
}

// Param is a positional operator parameter.
type Param struct {
	Name string
	Type ir.Type
}

// Operator is a defined field operator. It is immutable after Define.
type Operator struct {
	// ID is the operator identity; the translation cache is keyed by it.
	ID uuid.UUID

	Name   string
	Source string
	Params []Param
	// Result is the declared result type, or nil when unannotated.
	Result ir.Type
	// Decl is the canonical declaration, after the passes.
	Decl     *ast.FuncDecl
	Captures map[string]Capture

	fset       *token.FileSet
	lineOffset int
}

// Capture returns the capture bound to name.
func (op *Operator) Capture(name string) (Capture, bool) {
	c, ok := op.Captures[name]
	return c, ok
}

// Position returns the source position of pos, in the coordinates of the
// source handed to Define.
func (op *Operator) Position(pos token.Pos) token.Position {
	return adjust(op.fset.Position(pos), op.lineOffset)
}

// Loc returns the IR location of pos.
func (op *Operator) Loc(pos token.Pos) ir.Loc {
	p := op.Position(pos)
	return ir.Loc{Line: p.Line, Col: p.Column}
}

// Errorf builds a TranslationError located at node.
func (op *Operator) Errorf(kind TranslationErrorKind, node ast.Node, construct, format string, args ...any) *TranslationError {
	return &TranslationError{
		Kind:      kind,
		Construct: construct,
		Message:   fmt.Sprintf(format, args...),
		Pos:       op.Position(node.Pos()),
	}
}

// Deps returns the nested operators the body captures, sorted by name.
func (op *Operator) Deps() []*Operator {
	var names []string
	for name, c := range op.Captures {
		if c.Kind == CaptureOperator {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]*Operator, len(names))
	for i, n := range names {
		out[i] = op.Captures[n].Operator
	}
	return out
}

func (op *Operator) String() string {
	return fmt.Sprintf("operator %s(%d params) %s", op.Name, len(op.Params), op.ID)
}

// Define parses and checks an operator. src holds one function
// declaration; a package clause and imports are optional.
func Define(src string, env Env) (*Operator, error) {
	return DefineFile("operator.go", src, env)
}

// DefineFile is like Define but reports positions against filename.
func DefineFile(filename, src string, env Env) (*Operator, error) {
	d := &definer{fset: token.NewFileSet(), env: env, captures: make(map[string]Capture)}
	text := src
	if !strings.HasPrefix(strings.TrimLeft(src, " \t\r\n"), "package ") {
		text = "package fieldop\n" + src
		d.lineOffset = 1
	}
	d.src = text

	file, err := parser.ParseFile(d.fset, filename, text, parser.SkipObjectResolution)
	if err != nil {
		return nil, d.syntaxError(err)
	}

	var fn *ast.FuncDecl
	for _, decl := range file.Decls {
		switch x := decl.(type) {
		case *ast.FuncDecl:
			if fn != nil {
				return nil, d.errorf(KindConstruct, x, "declaration", "exactly one operator per definition, found %s and %s", fn.Name.Name, x.Name.Name)
			}
			fn = x
		case *ast.GenDecl:
			if x.Tok != token.IMPORT {
				return nil, d.errorf(KindConstruct, x, "declaration", "top-level %s declarations are not allowed", x.Tok)
			}
		}
	}
	if fn == nil {
		return nil, &TranslationError{Kind: KindSyntax, Message: "no function declaration found", Pos: token.Position{Filename: filename}}
	}
	if fn.Recv != nil {
		return nil, d.errorf(KindConstruct, fn.Recv, "method", "operators cannot have receivers")
	}
	if fn.Type.TypeParams != nil {
		return nil, d.errorf(KindConstruct, fn.Type.TypeParams, "type parameters", "operators cannot be generic")
	}
	if fn.Body == nil {
		return nil, d.errorf(KindConstruct, fn, "declaration", "operator %s has no body", fn.Name.Name)
	}

	op := &Operator{
		ID:         uuid.Must(uuid.NewV7()),
		Name:       fn.Name.Name,
		Source:     src,
		Decl:       fn,
		fset:       d.fset,
		lineOffset: d.lineOffset,
	}
	if op.Params, err = d.params(fn); err != nil {
		return nil, err
	}
	if op.Result, err = d.result(fn); err != nil {
		return nil, err
	}

	Canonicalize(fn, env)

	if err := d.validate(fn); err != nil {
		return nil, err
	}
	if err := d.collectCaptures(fn, op.Params); err != nil {
		return nil, err
	}
	op.Captures = d.captures
	return op, nil
}

// definer carries the state of one Define call.
type definer struct {
	fset       *token.FileSet
	src        string
	lineOffset int
	env        Env
	captures   map[string]Capture
}

func adjust(p token.Position, lineOffset int) token.Position {
	if p.IsValid() {
		p.Line -= lineOffset
	}
	return p
}

func (d *definer) errorf(kind TranslationErrorKind, node ast.Node, construct, format string, args ...any) *TranslationError {
	return &TranslationError{
		Kind:      kind,
		Construct: construct,
		Message:   fmt.Sprintf(format, args...),
		Pos:       adjust(d.fset.Position(node.Pos()), d.lineOffset),
	}
}

func (d *definer) syntaxError(err error) error {
	var list scanner.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		return &TranslationError{Kind: KindSyntax, Message: list[0].Msg, Pos: adjust(list[0].Pos, d.lineOffset)}
	}
	return &TranslationError{Kind: KindSyntax, Message: err.Error()}
}

// text returns the source text of n.
func (d *definer) text(n ast.Node) string {
	start := d.fset.Position(n.Pos()).Offset
	end := d.fset.Position(n.End()).Offset
	if start < 0 || end > len(d.src) || start > end {
		return fmt.Sprintf("%T", n)
	}
	return d.src[start:end]
}

func (d *definer) capture(name string, c Capture) {
	d.captures[name] = c
}

func (d *definer) params(fn *ast.FuncDecl) ([]Param, error) {
	var out []Param
	seen := make(map[string]bool)
	for _, f := range fn.Type.Params.List {
		if _, ok := f.Type.(*ast.Ellipsis); ok {
			return nil, d.errorf(KindAnnotation, f.Type, "annotation", "variadic parameters are not supported")
		}
		if len(f.Names) == 0 {
			return nil, d.errorf(KindAnnotation, f, "annotation", "parameters must be named")
		}
		t, err := d.parseAnnotation(f.Type)
		if err != nil {
			return nil, err
		}
		for _, n := range f.Names {
			if n.Name == "_" || seen[n.Name] {
				return nil, d.errorf(KindConstruct, n, "parameter", "invalid or duplicate parameter name %q", n.Name)
			}
			seen[n.Name] = true
			out = append(out, Param{Name: n.Name, Type: t})
		}
	}
	return out, nil
}

func (d *definer) result(fn *ast.FuncDecl) (ir.Type, error) {
	res := fn.Type.Results
	if res == nil || len(res.List) == 0 {
		return nil, nil
	}
	var elems []ir.Type
	for _, f := range res.List {
		if len(f.Names) > 0 {
			return nil, d.errorf(KindConstruct, f, "named result", "results cannot be named")
		}
		t, err := d.parseAnnotation(f.Type)
		if err != nil {
			return nil, err
		}
		elems = append(elems, t)
	}
	if len(elems) == 1 {
		return elems[0], nil
	}
	return ir.TupleType{Elems: elems}, nil
}

// classify maps a captured Go value to its capture kind.
func classify(name string, v any) (Capture, error) {
	c := Capture{Name: name}
	switch x := v.(type) {
	case field.Dimension:
		c.Kind, c.Dim = CaptureDimension, x
	case field.Offset:
		c.Kind, c.Offset = CaptureOffset, x
	case *Operator:
		if x == nil {
			return c, &CapabilityError{Name: name, GoType: "*syntax.Operator", Message: "nil operator"}
		}
		c.Kind, c.Operator = CaptureOperator, x
	case builtin.Name:
		if !builtin.Lookup(string(x)) {
			return c, &CapabilityError{Name: name, GoType: "builtin.Name", Message: fmt.Sprintf("unknown built-in %q", x)}
		}
		c.Kind, c.Builtin = CaptureBuiltin, string(x)
	case field.DType:
		c.Kind, c.DType = CaptureType, x
	case float64:
		c.Kind, c.Scalar = CaptureScalar, field.Scalar(x, field.Float64)
	case float32:
		c.Kind, c.Scalar = CaptureScalar, field.Scalar(float64(x), field.Float32)
	case int:
		c.Kind, c.Scalar = CaptureScalar, field.Scalar(float64(x), field.Int64)
	case int64:
		c.Kind, c.Scalar = CaptureScalar, field.Scalar(float64(x), field.Int64)
	case int32:
		c.Kind, c.Scalar = CaptureScalar, field.Scalar(float64(x), field.Int32)
	case bool:
		c.Kind, c.Scalar = CaptureScalar, field.BoolScalar(x)
	default:
		return c, &CapabilityError{
			Name:    name,
			GoType:  fmt.Sprintf("%T", v),
			Message: "only dimensions, offsets, scalar constants, operators, built-ins and type constructors can be captured",
		}
	}
	return c, nil
}

// collectCaptures resolves every free identifier of the body.
func (d *definer) collectCaptures(fn *ast.FuncDecl, params []Param) error {
	bound := make(map[string]bool)
	for _, p := range params {
		bound[p.Name] = true
	}
	for name := range assignedNames(fn.Body) {
		bound[name] = true
	}

	var err error
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		if err != nil {
			return false
		}
		switch x := n.(type) {
		case *ast.SelectorExpr:
			// validate admits only math.F selectors; the selector names a
			// built-in, not a variable.
			return false
		case *ast.Ident:
			err = d.resolve(x, bound)
		}
		return true
	})
	return err
}

func (d *definer) resolve(id *ast.Ident, bound map[string]bool) error {
	name := id.Name
	if bound[name] || name == "_" {
		return nil
	}
	if _, done := d.captures[name]; done {
		return nil
	}
	if v, ok := d.env[name]; ok {
		c, err := classify(name, v)
		if err != nil {
			return err
		}
		d.capture(name, c)
		return nil
	}
	switch {
	case name == "true" || name == "false" || name == "math":
		return nil
	case builtin.Lookup(name):
		return nil
	}
	if _, ok := field.ParseDType(name); ok {
		return nil
	}
	return d.errorf(KindSyntax, id, "identifier", "undefined: %s", name)
}

// assignedNames returns every identifier assigned anywhere in body.
func assignedNames(body *ast.BlockStmt) map[string]bool {
	out := make(map[string]bool)
	ast.Inspect(body, func(n ast.Node) bool {
		switch x := n.(type) {
		case *ast.AssignStmt:
			for _, l := range x.Lhs {
				if id, ok := l.(*ast.Ident); ok {
					out[id.Name] = true
				}
			}
		case *ast.IncDecStmt:
			if id, ok := x.X.(*ast.Ident); ok {
				out[id.Name] = true
			}
		}
		return true
	})
	return out
}
