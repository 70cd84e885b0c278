package field

import (
	"fmt"
	"math"
)

// binaryKind groups binary operators by their typing rule.
type binaryKind int

const (
	arithmetic binaryKind = iota
	comparison
	logical
)

type binaryOp struct {
	kind binaryKind
	fn   func(x, y float64, t DType) float64
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var binaryOps = map[string]binaryOp{
	"add": {arithmetic, func(x, y float64, _ DType) float64 { return x + y }},
	"sub": {arithmetic, func(x, y float64, _ DType) float64 { return x - y }},
	"mul": {arithmetic, func(x, y float64, _ DType) float64 { return x * y }},
	"div": {arithmetic, func(x, y float64, t DType) float64 {
		if t.IsInt() {
			if y == 0 {
				return 0
			}
			return math.Trunc(x / y)
		}
		return x / y
	}},
	"mod": {arithmetic, func(x, y float64, t DType) float64 {
		if t.IsInt() && y == 0 {
			return 0
		}
		return math.Mod(x, y)
	}},
	"pow": {arithmetic, func(x, y float64, _ DType) float64 { return math.Pow(x, y) }},
	"min": {arithmetic, func(x, y float64, _ DType) float64 { return math.Min(x, y) }},
	"max": {arithmetic, func(x, y float64, _ DType) float64 { return math.Max(x, y) }},

	"lt": {comparison, func(x, y float64, _ DType) float64 { return b2f(x < y) }},
	"le": {comparison, func(x, y float64, _ DType) float64 { return b2f(x <= y) }},
	"gt": {comparison, func(x, y float64, _ DType) float64 { return b2f(x > y) }},
	"ge": {comparison, func(x, y float64, _ DType) float64 { return b2f(x >= y) }},
	"eq": {comparison, func(x, y float64, _ DType) float64 { return b2f(x == y) }},
	"ne": {comparison, func(x, y float64, _ DType) float64 { return b2f(x != y) }},

	"and": {logical, func(x, y float64, _ DType) float64 { return b2f(x != 0 && y != 0) }},
	"or":  {logical, func(x, y float64, _ DType) float64 { return b2f(x != 0 || y != 0) }},
	"xor": {logical, func(x, y float64, _ DType) float64 { return b2f((x != 0) != (y != 0)) }},
}

type unaryOp struct {
	// toFloat promotes integer operands to float64 (transcendental functions).
	toFloat bool
	// boolOnly restricts the operand to bool.
	boolOnly bool
	fn       func(x float64) float64
}

var unaryOps = map[string]unaryOp{
	"neg":   {fn: func(x float64) float64 { return -x }},
	"not":   {boolOnly: true, fn: func(x float64) float64 { return b2f(x == 0) }},
	"abs":   {fn: math.Abs},
	"sqrt":  {toFloat: true, fn: math.Sqrt},
	"exp":   {toFloat: true, fn: math.Exp},
	"log":   {toFloat: true, fn: math.Log},
	"sin":   {toFloat: true, fn: math.Sin},
	"cos":   {toFloat: true, fn: math.Cos},
	"tan":   {toFloat: true, fn: math.Tan},
	"tanh":  {toFloat: true, fn: math.Tanh},
	"floor": {toFloat: true, fn: math.Floor},
	"ceil":  {toFloat: true, fn: math.Ceil},
}

// IsBinaryOp reports whether name is a known elementwise binary operator.
func IsBinaryOp(name string) bool {
	_, ok := binaryOps[name]
	return ok
}

// IsUnaryOp reports whether name is a known elementwise unary operator.
func IsUnaryOp(name string) bool {
	_, ok := unaryOps[name]
	return ok
}

// BinaryResultType returns the result element type of op over a and b.
func BinaryResultType(op string, a, b DType) (DType, error) {
	bop, ok := binaryOps[op]
	if !ok {
		return 0, fmt.Errorf("unknown binary operator %q", op)
	}
	switch bop.kind {
	case comparison:
		if (a == Bool) != (b == Bool) && op != "eq" && op != "ne" {
			return 0, shapeErrorf(CodeDType, "%s: cannot compare %s with %s", op, a, b)
		}
		return Bool, nil
	case logical:
		if a != Bool || b != Bool {
			return 0, shapeErrorf(CodeDType, "%s: mask operands must be bool, got %s and %s", op, a, b)
		}
		return Bool, nil
	default:
		if a == Bool || b == Bool {
			return 0, shapeErrorf(CodeDType, "%s: arithmetic on bool operands", op)
		}
		return Promote(a, b), nil
	}
}

// UnaryResultType returns the result element type of op over a.
func UnaryResultType(op string, a DType) (DType, error) {
	uop, ok := unaryOps[op]
	if !ok {
		return 0, fmt.Errorf("unknown unary operator %q", op)
	}
	switch {
	case uop.boolOnly && a != Bool:
		return 0, shapeErrorf(CodeDType, "%s: operand must be bool, got %s", op, a)
	case !uop.boolOnly && a == Bool:
		return 0, shapeErrorf(CodeDType, "%s: operand must be numeric, got bool", op)
	case uop.toFloat && a.IsInt():
		return Float64, nil
	}
	return a, nil
}

// Binary applies an elementwise binary operator with broadcasting.
func Binary(op string, a, b *Field) (*Field, error) {
	dtype, err := BinaryResultType(op, a.dtype, b.dtype)
	if err != nil {
		return nil, err
	}
	opType := Promote(a.dtype, b.dtype)
	fn := binaryOps[op].fn
	return mapN(dtype, []*Field{a, b}, func(v []float64) float64 {
		return fn(v[0], v[1], opType)
	})
}

// Unary applies an elementwise unary operator.
func Unary(op string, a *Field) (*Field, error) {
	dtype, err := UnaryResultType(op, a.dtype)
	if err != nil {
		return nil, err
	}
	fn := unaryOps[op].fn
	return mapN(dtype, []*Field{a}, func(v []float64) float64 { return fn(v[0]) })
}

// Add, Sub, Mul and Div are shorthands for the common arithmetic operators.
func Add(a, b *Field) (*Field, error) { return Binary("add", a, b) }
func Sub(a, b *Field) (*Field, error) { return Binary("sub", a, b) }
func Mul(a, b *Field) (*Field, error) { return Binary("mul", a, b) }
func Div(a, b *Field) (*Field, error) { return Binary("div", a, b) }
