// Package builtin is the catalog of field built-ins shared by the embedded
// interpreter and the compiled kernel backend. Both backends evaluate
// built-in calls through Apply, which keeps their results identical.
package builtin

import (
	"fmt"
	"math"
	"sort"

	"github.com/roach88/fieldop/internal/field"
)

// Name refers to a built-in by its catalog name. Capturing a Name in an
// operator environment makes the built-in callable under another
// identifier.
type Name string

// Arg is one evaluated argument: a field.Value, a field.Dimension (axis or
// broadcast target) or a field.DType (conversion target).
type Arg any

type spec struct {
	minArgs int
	maxArgs int // -1 for variadic
	fn      func(args []Arg) (field.Value, error)
}

var catalog = map[string]spec{
	"neighbor_sum": {2, 2, reduction("neighbor_sum")},
	"min_over":     {2, 2, reduction("min_over")},
	"max_over":     {2, 2, reduction("max_over")},
	"where":        {3, 3, where},
	"broadcast":    {2, -1, broadcast},
	"astype":       {2, 2, astype},
	"tuple":        {1, -1, tuple},
	"pow":          {2, 2, binary("pow")},
	"min":          {2, 2, binary("min")},
	"max":          {2, 2, binary("max")},
	"abs":          {1, 1, unary("abs")},
	"sqrt":         {1, 1, unary("sqrt")},
	"exp":          {1, 1, unary("exp")},
	"log":          {1, 1, unary("log")},
	"sin":          {1, 1, unary("sin")},
	"cos":          {1, 1, unary("cos")},
	"tan":          {1, 1, unary("tan")},
	"tanh":         {1, 1, unary("tanh")},
	"floor":        {1, 1, unary("floor")},
	"ceil":         {1, 1, unary("ceil")},
}

// Reductions name the neighbor reductions, whose second argument is a
// LOCAL dimension.
var Reductions = []string{"neighbor_sum", "min_over", "max_over"}

// Variadic names the n-ary arithmetic built-ins the canonicalization passes
// left-associate into binary operations. They never reach Apply.
var Variadic = map[string]string{
	"add": "+",
	"mul": "*",
	"min": "min",
	"max": "max",
}

// MathMembers maps math package selectors to built-ins, so that
// math.Sqrt(x) applies sqrt elementwise.
var MathMembers = map[string]string{
	"Abs":   "abs",
	"Sqrt":  "sqrt",
	"Exp":   "exp",
	"Log":   "log",
	"Sin":   "sin",
	"Cos":   "cos",
	"Tan":   "tan",
	"Tanh":  "tanh",
	"Floor": "floor",
	"Ceil":  "ceil",
	"Pow":   "pow",
	"Min":   "min",
	"Max":   "max",
}

// MathConsts are the math package constants an operator may reference;
// they evaluate to float64 scalars.
var MathConsts = map[string]float64{
	"Pi":    math.Pi,
	"E":     math.E,
	"Sqrt2": math.Sqrt2,
	"Ln2":   math.Ln2,
	"Ln10":  math.Ln10,
}

// Lookup reports whether name is a built-in.
func Lookup(name string) bool {
	_, ok := catalog[name]
	return ok
}

// Names returns every built-in name in sorted order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for n := range catalog {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Arity returns the accepted argument count range of name; max is -1 for
// variadic built-ins.
func Arity(name string) (lo, hi int, ok bool) {
	s, ok := catalog[name]
	return s.minArgs, s.maxArgs, ok
}

// Apply evaluates built-in name over args.
func Apply(name string, args []Arg) (field.Value, error) {
	s, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("unknown built-in %q", name)
	}
	if len(args) < s.minArgs || (s.maxArgs >= 0 && len(args) > s.maxArgs) {
		return nil, fmt.Errorf("%s: got %d arguments", name, len(args))
	}
	v, err := s.fn(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func fieldArg(args []Arg, i int) (*field.Field, error) {
	f, ok := args[i].(*field.Field)
	if !ok {
		return nil, fmt.Errorf("argument %d: want a field, got %s", i+1, describe(args[i]))
	}
	return f, nil
}

func valueArg(args []Arg, i int) (field.Value, error) {
	v, ok := args[i].(field.Value)
	if !ok {
		return nil, fmt.Errorf("argument %d: want a field or tuple, got %s", i+1, describe(args[i]))
	}
	return v, nil
}

func dimArg(args []Arg, i int) (field.Dimension, error) {
	d, ok := args[i].(field.Dimension)
	if !ok {
		return field.Dimension{}, fmt.Errorf("argument %d: want a dimension, got %s", i+1, describe(args[i]))
	}
	return d, nil
}

func describe(a Arg) string {
	switch v := a.(type) {
	case *field.Field:
		return "field " + v.String()
	case field.Tuple:
		return fmt.Sprintf("tuple of %d", len(v))
	case field.Dimension:
		return "dimension " + v.Name
	case field.DType:
		return "type " + v.String()
	default:
		return fmt.Sprintf("%T", a)
	}
}

func reduction(name string) func([]Arg) (field.Value, error) {
	return func(args []Arg) (field.Value, error) {
		f, err := fieldArg(args, 0)
		if err != nil {
			return nil, err
		}
		axis, err := dimArg(args, 1)
		if err != nil {
			return nil, err
		}
		return field.ReduceOver(name, f, axis)
	}
}

func where(args []Arg) (field.Value, error) {
	mask, err := fieldArg(args, 0)
	if err != nil {
		return nil, err
	}
	a, err := valueArg(args, 1)
	if err != nil {
		return nil, err
	}
	b, err := valueArg(args, 2)
	if err != nil {
		return nil, err
	}
	return field.WhereValue(mask, a, b)
}

func broadcast(args []Arg) (field.Value, error) {
	f, err := fieldArg(args, 0)
	if err != nil {
		return nil, err
	}
	dims := make([]field.Dimension, 0, len(args)-1)
	for i := 1; i < len(args); i++ {
		d, err := dimArg(args, i)
		if err != nil {
			return nil, err
		}
		dims = append(dims, d)
	}
	return field.Broadcast(f, dims)
}

func astype(args []Arg) (field.Value, error) {
	f, err := fieldArg(args, 0)
	if err != nil {
		return nil, err
	}
	t, ok := args[1].(field.DType)
	if !ok {
		return nil, fmt.Errorf("argument 2: want a type, got %s", describe(args[1]))
	}
	return field.Astype(f, t), nil
}

func tuple(args []Arg) (field.Value, error) {
	out := make(field.Tuple, len(args))
	for i := range args {
		v, err := valueArg(args, i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func binary(op string) func([]Arg) (field.Value, error) {
	return func(args []Arg) (field.Value, error) {
		a, err := fieldArg(args, 0)
		if err != nil {
			return nil, err
		}
		b, err := fieldArg(args, 1)
		if err != nil {
			return nil, err
		}
		return field.Binary(op, a, b)
	}
}

func unary(op string) func([]Arg) (field.Value, error) {
	return func(args []Arg) (field.Value, error) {
		a, err := fieldArg(args, 0)
		if err != nil {
			return nil, err
		}
		return field.Unary(op, a)
	}
}
