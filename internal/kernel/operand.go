package kernel

import (
	"fmt"

	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/ir"
	"github.com/roach88/fieldop/internal/syntax"
)

// Operand is a field flattened into plain buffers. Nothing in an Operand
// aliases the field it was built from, so a kernel can never write
// through to caller memory.
type Operand struct {
	Dims          []ir.Dim  `json:"dims"`
	Shape         []int     `json:"shape"`
	DType         string    `json:"dtype"`
	Data          []float64 `json:"data"`
	Missing       []bool    `json:"missing,omitempty"`
	BroadcastDims []ir.Dim  `json:"broadcast_dims,omitempty"`
}

// FromField copies f into an operand.
func FromField(f *field.Field) Operand {
	op := Operand{
		Dims:    dimsOf(f.Dims()),
		Shape:   f.Shape(),
		DType:   f.DType().String(),
		Data:    f.Float64s(),
		Missing: f.MissingMask(),
	}
	if bd := f.BroadcastDims(); len(bd) != len(op.Dims) {
		op.BroadcastDims = dimsOf(bd)
	}
	return op
}

// Field rebuilds the field o was marshaled from.
func (o Operand) Field() (*field.Field, error) {
	dims, err := dimsFrom(o.Dims)
	if err != nil {
		return nil, err
	}
	dt, err := syntax.DTypeFrom(o.DType)
	if err != nil {
		return nil, err
	}
	f, err := field.NewMasked(dims, o.Shape, o.Data, dt, o.Missing)
	if err != nil {
		return nil, err
	}
	if len(o.BroadcastDims) == 0 {
		return f, nil
	}
	bd, err := dimsFrom(o.BroadcastDims)
	if err != nil {
		return nil, err
	}
	return field.Broadcast(f, bd)
}

// Marshal flattens v depth-first: a tuple contributes its elements in
// order, recursively.
func Marshal(v field.Value) []Operand {
	switch x := v.(type) {
	case *field.Field:
		return []Operand{FromField(x)}
	case field.Tuple:
		var out []Operand
		for _, e := range x {
			out = append(out, Marshal(e)...)
		}
		return out
	default:
		return nil
	}
}

// MarshalAll flattens a list of values into one operand list.
func MarshalAll(vals []field.Value) []Operand {
	var out []Operand
	for _, v := range vals {
		out = append(out, Marshal(v)...)
	}
	return out
}

// Unmarshal rebuilds one value of type t from the front of ops and returns
// the operands left over. A nil t reads a single field.
func Unmarshal(ops []Operand, t ir.Type) (field.Value, []Operand, error) {
	if tt, ok := t.(ir.TupleType); ok {
		tup := make(field.Tuple, len(tt.Elems))
		for i, et := range tt.Elems {
			var err error
			if tup[i], ops, err = Unmarshal(ops, et); err != nil {
				return nil, nil, err
			}
		}
		return tup, ops, nil
	}
	if len(ops) == 0 {
		return nil, nil, &field.ShapeError{
			Code:    field.CodeTuple,
			Message: fmt.Sprintf("ran out of operands reading %v", t),
		}
	}
	f, err := ops[0].Field()
	if err != nil {
		return nil, nil, err
	}
	return f, ops[1:], nil
}

// UnmarshalAll rebuilds one value per type and requires every operand to
// be consumed.
func UnmarshalAll(ops []Operand, types []ir.Type) ([]field.Value, error) {
	vals := make([]field.Value, len(types))
	for i, t := range types {
		var err error
		if vals[i], ops, err = Unmarshal(ops, t); err != nil {
			return nil, fmt.Errorf("operand %d: %w", i, err)
		}
	}
	if len(ops) != 0 {
		return nil, &field.ShapeError{
			Code:    field.CodeArgument,
			Message: fmt.Sprintf("%d operands left over", len(ops)),
		}
	}
	return vals, nil
}

func dimsOf(dims []field.Dimension) []ir.Dim {
	out := make([]ir.Dim, len(dims))
	for i, d := range dims {
		out[i] = syntax.DimOf(d)
	}
	return out
}

func dimsFrom(dims []ir.Dim) ([]field.Dimension, error) {
	out := make([]field.Dimension, len(dims))
	for i, d := range dims {
		fd, err := syntax.DimFrom(d)
		if err != nil {
			return nil, err
		}
		out[i] = fd
	}
	return out, nil
}
