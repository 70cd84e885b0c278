package compiler

import (
	"fmt"

	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/ir"
	"github.com/roach88/fieldop/internal/syntax"
)

// Static result-type inference. Dims are tracked as sets in order of first
// appearance, mirroring the broadcasting rules of package field; sizes are
// only known at call time.

func elem(t ir.Type) ([]ir.Dim, field.DType, bool) {
	dims, dt, ok := ir.Elem(t)
	if !ok {
		return nil, 0, false
	}
	d, ok := field.ParseDType(dt)
	return dims, d, ok
}

func makeType(dims []ir.Dim, dtype field.DType) ir.Type {
	if len(dims) == 0 {
		return ir.ScalarType{DType: dtype.String()}
	}
	return ir.FieldType{Dims: dims, DType: dtype.String()}
}

func unionDims(groups ...[]ir.Dim) []ir.Dim {
	var out []ir.Dim
	for _, g := range groups {
		for _, d := range g {
			if indexDim(out, d) < 0 {
				out = append(out, d)
			}
		}
	}
	return out
}

func indexDim(dims []ir.Dim, d ir.Dim) int {
	for i, x := range dims {
		if x == d {
			return i
		}
	}
	return -1
}

func without(dims []ir.Dim, d ir.Dim) []ir.Dim {
	var out []ir.Dim
	for _, x := range dims {
		if x != d {
			out = append(out, x)
		}
	}
	return out
}

func binaryType(op string, x, y ir.Type) (ir.Type, error) {
	xd, xt, ok := elem(x)
	if !ok {
		return nil, fmt.Errorf("%s: left operand is %s, not a field", op, x)
	}
	yd, yt, ok := elem(y)
	if !ok {
		return nil, fmt.Errorf("%s: right operand is %s, not a field", op, y)
	}
	dt, err := field.BinaryResultType(op, xt, yt)
	if err != nil {
		return nil, err
	}
	return makeType(unionDims(xd, yd), dt), nil
}

func unaryType(op string, x ir.Type) (ir.Type, error) {
	xd, xt, ok := elem(x)
	if !ok {
		return nil, fmt.Errorf("%s: operand is %s, not a field", op, x)
	}
	dt, err := field.UnaryResultType(op, xt)
	if err != nil {
		return nil, err
	}
	return makeType(xd, dt), nil
}

func isScalarBool(t ir.Type) bool {
	s, ok := t.(ir.ScalarType)
	return ok && s.DType == field.Bool.String()
}

// remapType is the type of x(o) or x(o, i).
func remapType(x ir.Type, o field.Offset, whole bool) (ir.Type, error) {
	xd, xt, ok := elem(x)
	if !ok {
		return nil, fmt.Errorf("offset %s: cannot remap %s", o.Name, x)
	}
	src := syntax.DimOf(o.Source)
	if indexDim(xd, src) < 0 {
		return nil, &field.DimensionMismatch{
			Offset:  o.Name,
			Message: fmt.Sprintf("%s does not contain source dimension %s", x, o.Source),
		}
	}
	rest := without(xd, src)
	local, hasLocal := o.LocalDim()
	dims := []ir.Dim{syntax.DimOf(o.Target())}
	if whole && hasLocal {
		dims = append(dims, syntax.DimOf(local))
	}
	for _, d := range dims {
		if indexDim(rest, d) >= 0 {
			return nil, fmt.Errorf("offset %s: target %s already present in %s", o.Name, d.Name, x)
		}
	}
	return makeType(append(dims, rest...), xt), nil
}

// reduceType is the type of a neighbor reduction over axis.
func reduceType(name string, x ir.Type, axis field.Dimension) (ir.Type, error) {
	xd, xt, ok := elem(x)
	if !ok {
		return nil, fmt.Errorf("%s: cannot reduce %s", name, x)
	}
	if !axis.IsLocal() {
		return nil, fmt.Errorf("%s: axis %s is not a LOCAL dimension", name, axis)
	}
	ax := syntax.DimOf(axis)
	if indexDim(xd, ax) < 0 {
		return nil, fmt.Errorf("%s: %s has no axis %s", name, x, axis)
	}
	dt := xt
	if name == "neighbor_sum" && xt == field.Bool {
		dt = field.Int64
	}
	return makeType(without(xd, ax), dt), nil
}

// whereType is the type of where(mask, a, b); tuple branches unroll
// elementwise.
func whereType(mask, a, b ir.Type) (ir.Type, error) {
	md, mt, ok := elem(mask)
	if !ok || mt != field.Bool {
		return nil, fmt.Errorf("mask must be a bool field, got %s", mask)
	}
	ta, aTuple := a.(ir.TupleType)
	tb, bTuple := b.(ir.TupleType)
	if aTuple || bTuple {
		if !aTuple || !bTuple || len(ta.Elems) != len(tb.Elems) {
			return nil, fmt.Errorf("branches %s and %s do not have the same structure", a, b)
		}
		out := ir.TupleType{Elems: make([]ir.Type, len(ta.Elems))}
		for i := range ta.Elems {
			t, err := whereType(mask, ta.Elems[i], tb.Elems[i])
			if err != nil {
				return nil, err
			}
			out.Elems[i] = t
		}
		return out, nil
	}
	ad, at, ok := elem(a)
	if !ok {
		return nil, fmt.Errorf("branch %s is not a field", a)
	}
	bd, bt, ok := elem(b)
	if !ok {
		return nil, fmt.Errorf("branch %s is not a field", b)
	}
	if (at == field.Bool) != (bt == field.Bool) {
		return nil, fmt.Errorf("branches %s and %s mix bool and numeric", a, b)
	}
	return makeType(unionDims(md, ad, bd), field.Promote(at, bt)), nil
}

