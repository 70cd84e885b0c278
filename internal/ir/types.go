package ir

import (
	"fmt"
	"strings"
)

// Loc is a source position inside the operator definition.
type Loc struct {
	Line int
	Col  int
}

func (l Loc) String() string { return fmt.Sprintf("%d:%d", l.Line, l.Col) }

// Dim references a dimension by name and kind ("horizontal", "vertical"
// or "local").
type Dim struct {
	Name string
	Kind string
}

// Type describes the value an expression or parameter produces.
// Implementations: FieldType, ScalarType, TupleType.
type Type interface {
	isType()
	String() string
}

// FieldType is a dimension-tagged array type.
type FieldType struct {
	Dims  []Dim
	DType string
}

func (FieldType) isType() {}

func (t FieldType) String() string {
	parts := make([]string, 0, len(t.Dims)+1)
	for _, d := range t.Dims {
		parts = append(parts, d.Name)
	}
	parts = append(parts, t.DType)
	return "Field[" + strings.Join(parts, ", ") + "]"
}

// ScalarType is a 0-d value.
type ScalarType struct {
	DType string
}

func (ScalarType) isType() {}

func (t ScalarType) String() string { return t.DType }

// TupleType groups several values.
type TupleType struct {
	Elems []Type
}

func (TupleType) isType() {}

func (t TupleType) String() string {
	parts := make([]string, len(t.Elems))
	for i, e := range t.Elems {
		parts[i] = e.String()
	}
	return "Tuple[" + strings.Join(parts, ", ") + "]"
}

// Elem splits a field or scalar type into its dims and element type.
// It reports false for tuples and nil.
func Elem(t Type) ([]Dim, string, bool) {
	switch v := t.(type) {
	case FieldType:
		return v.Dims, v.DType, true
	case ScalarType:
		return nil, v.DType, true
	default:
		return nil, "", false
	}
}

// Equivalent reports whether a and b describe the same values. Field dims
// compare as sets because the dims order of a result depends on operand
// order; a scalar is equivalent to a field with no dims.
func Equivalent(a, b Type) bool {
	if ta, ok := a.(TupleType); ok {
		tb, ok := b.(TupleType)
		if !ok || len(ta.Elems) != len(tb.Elems) {
			return false
		}
		for i := range ta.Elems {
			if !Equivalent(ta.Elems[i], tb.Elems[i]) {
				return false
			}
		}
		return true
	}
	da, ea, okA := Elem(a)
	db, eb, okB := Elem(b)
	if !okA || !okB || ea != eb || len(da) != len(db) {
		return false
	}
	for _, d := range da {
		found := false
		for _, e := range db {
			if d == e {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
