package field

import (
	"fmt"
	"math"
	"strings"
)

// Value is either a *Field or a Tuple of values.
type Value interface {
	isValue()
}

// Tuple is an ordered group of values (operators may return several fields).
type Tuple []Value

func (Tuple) isValue() {}

// Field is a dimension-tagged N-d array.
//
// Storage is row-major over dims. Values are held as float64 and normalized
// to dtype by every operation (bools are 0/1, integers are truncated).
type Field struct {
	dims    []Dimension
	shape   []int
	data    []float64
	dtype   DType
	bdims   []Dimension
	missing []bool // nil unless produced by a remap over sentinel entries
}

func (*Field) isValue() {}

// New builds a field, copying data. len(dims) must equal len(shape) and the
// product of shape must equal len(data). A field with no dims is a scalar
// and holds exactly one value.
func New(dims []Dimension, shape []int, data []float64, dtype DType) (*Field, error) {
	if len(dims) != len(shape) {
		return nil, shapeErrorf(CodeRank, "%d dims %s for rank-%d data", len(dims), dimNames(dims), len(shape))
	}
	seen := make(map[Dimension]bool, len(dims))
	for i, d := range dims {
		if seen[d] {
			return nil, shapeErrorf(CodeDims, "dimension %s appears twice", d)
		}
		seen[d] = true
		if shape[i] < 0 {
			return nil, shapeErrorf(CodeSize, "negative size %d for dimension %s", shape[i], d)
		}
	}
	if n := product(shape); n != len(data) {
		return nil, shapeErrorf(CodeSize, "shape %v holds %d values, got %d", shape, n, len(data))
	}
	buf := make([]float64, len(data))
	for i, v := range data {
		buf[i] = dtype.normalize(v)
	}
	return newField(dims, shape, buf, dtype), nil
}

// MustNew is like New but panics on error.
func MustNew(dims []Dimension, shape []int, data []float64, dtype DType) *Field {
	f, err := New(dims, shape, data, dtype)
	if err != nil {
		panic(err)
	}
	return f
}

// NewMasked is like New but also restores a missing mask (one entry per
// element, nil for none).
func NewMasked(dims []Dimension, shape []int, data []float64, dtype DType, missing []bool) (*Field, error) {
	f, err := New(dims, shape, data, dtype)
	if err != nil {
		return nil, err
	}
	if missing != nil {
		if len(missing) != len(data) {
			return nil, shapeErrorf(CodeSize, "missing mask has %d entries for %d values", len(missing), len(data))
		}
		f.missing = append([]bool(nil), missing...)
	}
	return f, nil
}

// newField takes ownership of data; dims and shape are copied.
func newField(dims []Dimension, shape []int, data []float64, dtype DType) *Field {
	d := append([]Dimension(nil), dims...)
	return &Field{
		dims:  d,
		shape: append([]int(nil), shape...),
		data:  data,
		dtype: dtype,
		bdims: d,
	}
}

// FromFloat64s builds a 1-d float64 field.
func FromFloat64s(dim Dimension, data []float64) *Field {
	return MustNew([]Dimension{dim}, []int{len(data)}, data, Float64)
}

// Zeros returns a field filled with zeros.
func Zeros(dims []Dimension, shape []int, dtype DType) (*Field, error) {
	return Full(dims, shape, 0, dtype)
}

// Full returns a field filled with v.
func Full(dims []Dimension, shape []int, v float64, dtype DType) (*Field, error) {
	if len(dims) != len(shape) {
		return nil, shapeErrorf(CodeRank, "%d dims %s for rank-%d shape", len(dims), dimNames(dims), len(shape))
	}
	data := make([]float64, product(shape))
	v = dtype.normalize(v)
	for i := range data {
		data[i] = v
	}
	return New(dims, shape, data, dtype)
}

// Scalar returns a 0-d field.
func Scalar(v float64, dtype DType) *Field {
	return newField(nil, nil, []float64{dtype.normalize(v)}, dtype)
}

// BoolScalar returns a 0-d bool field.
func BoolScalar(b bool) *Field {
	if b {
		return Scalar(1, Bool)
	}
	return Scalar(0, Bool)
}

// Dims returns the field's dimensions in storage order.
func (f *Field) Dims() []Dimension { return append([]Dimension(nil), f.dims...) }

// Shape returns the size of each dimension.
func (f *Field) Shape() []int { return append([]int(nil), f.shape...) }

// DType returns the element type.
func (f *Field) DType() DType { return f.dtype }

// BroadcastDims returns the dimensions the field is viewed over in
// elementwise operations. It is a superset of Dims.
func (f *Field) BroadcastDims() []Dimension { return append([]Dimension(nil), f.bdims...) }

// IsScalar reports whether f has no dimensions.
func (f *Field) IsScalar() bool { return len(f.dims) == 0 }

// Len returns the number of elements.
func (f *Field) Len() int { return len(f.data) }

// Size returns the extent of dim in f.
func (f *Field) Size(dim Dimension) (int, bool) {
	i := indexOf(f.dims, dim)
	if i < 0 {
		return 0, false
	}
	return f.shape[i], true
}

// HasDim reports whether dim is one of f's dims.
func (f *Field) HasDim(dim Dimension) bool { return indexOf(f.dims, dim) >= 0 }

// At returns the element at the given coordinates (one per dim).
func (f *Field) At(coords ...int) float64 {
	return f.data[f.offset(coords)]
}

// Missing reports whether the element at coords came from a sentinel entry.
func (f *Field) Missing(coords ...int) bool {
	if f.missing == nil {
		return false
	}
	return f.missing[f.offset(coords)]
}

// HasMissing reports whether any element is masked.
func (f *Field) HasMissing() bool {
	for _, m := range f.missing {
		if m {
			return true
		}
	}
	return false
}

// MissingMask returns a copy of the missing mask, or nil when no element
// is masked.
func (f *Field) MissingMask() []bool {
	if !f.HasMissing() {
		return nil
	}
	return append([]bool(nil), f.missing...)
}

// Float64s returns a copy of the data in row-major order.
func (f *Field) Float64s() []float64 { return append([]float64(nil), f.data...) }

// Int64s returns the data converted to int64. Values at or beyond the int64
// range saturate, so the min/max reduction identities read back as
// math.MaxInt64 and math.MinInt64.
func (f *Field) Int64s() []int64 {
	out := make([]int64, len(f.data))
	for i, v := range f.data {
		out[i] = toInt64(v)
	}
	return out
}

func toInt64(v float64) int64 {
	switch {
	case v >= 0x1p63:
		return math.MaxInt64
	case v <= -0x1p63:
		return math.MinInt64
	default:
		return int64(v)
	}
}

// Bools returns the data converted to bool.
func (f *Field) Bools() []bool {
	out := make([]bool, len(f.data))
	for i, v := range f.data {
		out[i] = v != 0
	}
	return out
}

// ScalarValue returns the single value of a 0-d field.
func (f *Field) ScalarValue() (float64, error) {
	if !f.IsScalar() {
		return 0, shapeErrorf(CodeRank, "expected a scalar, got dims %s", dimNames(f.dims))
	}
	return f.data[0], nil
}

// Clone returns a deep copy of f.
func (f *Field) Clone() *Field {
	c := newField(f.dims, f.shape, append([]float64(nil), f.data...), f.dtype)
	c.bdims = append([]Dimension(nil), f.bdims...)
	if f.missing != nil {
		c.missing = append([]bool(nil), f.missing...)
	}
	return c
}

func (f *Field) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Field%s[%s]", dimNames(f.dims), f.dtype)
	if len(f.data) <= 16 {
		fmt.Fprintf(&b, "%v", f.data)
	} else {
		fmt.Fprintf(&b, "%v...", f.data[:16])
	}
	return b.String()
}

func (f *Field) offset(coords []int) int {
	if len(coords) != len(f.dims) {
		panic(fmt.Sprintf("field: %d coordinates for %d dims", len(coords), len(f.dims)))
	}
	strides := rowMajorStrides(f.shape)
	off := 0
	for i, c := range coords {
		if c < 0 || c >= f.shape[i] {
			panic(fmt.Sprintf("field: coordinate %d out of range [0,%d) for %s", c, f.shape[i], f.dims[i]))
		}
		off += c * strides[i]
	}
	return off
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

func rowMajorStrides(shape []int) []int {
	strides := make([]int, len(shape))
	s := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= shape[i]
	}
	return strides
}
