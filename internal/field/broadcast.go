package field

import "slices"

// stridesIn returns, for each of dims, the stride of that dimension in f.
// Dimensions f does not carry get stride 0, which broadcasts f along them.
func (f *Field) stridesIn(dims []Dimension) []int {
	own := rowMajorStrides(f.shape)
	out := make([]int, len(dims))
	for i, d := range dims {
		if j := indexOf(f.dims, d); j >= 0 {
			out[i] = own[j]
		}
	}
	return out
}

// walk visits every element of shape in row-major order, maintaining one
// running offset per strides entry.
func walk(shape []int, strides [][]int, base []int, fn func(i int, offs []int)) {
	n := product(shape)
	if n == 0 {
		return
	}
	coord := make([]int, len(shape))
	offs := make([]int, len(strides))
	copy(offs, base)
	for i := 0; i < n; i++ {
		fn(i, offs)
		for d := len(shape) - 1; d >= 0; d-- {
			coord[d]++
			for k := range strides {
				offs[k] += strides[k][d]
			}
			if coord[d] < shape[d] {
				break
			}
			for k := range strides {
				offs[k] -= strides[k][d] * shape[d]
			}
			coord[d] = 0
		}
	}
}

// union computes the broadcast frame of a group of operands. Every operand's
// dims must lie in the union of their broadcast dims. The result dims are
// the operands' sized dims in order of first appearance, the same order the
// compiler infers statically; the result broadcast dims are those dims
// followed by the remaining broadcast-only dims.
func union(fields ...*Field) (dims []Dimension, shape []int, bdims []Dimension, err error) {
	sizes := make(map[Dimension]int)
	var frame []Dimension
	for _, f := range fields {
		for i, d := range f.dims {
			if s, ok := sizes[d]; ok {
				if s != f.shape[i] {
					return nil, nil, nil, shapeErrorf(CodeSize, "dimension %s has size %d and %d", d, s, f.shape[i])
				}
				continue
			}
			sizes[d] = f.shape[i]
			dims = append(dims, d)
			shape = append(shape, f.shape[i])
		}
		for _, d := range f.bdims {
			if indexOf(frame, d) < 0 {
				frame = append(frame, d)
			}
		}
	}
	for _, f := range fields {
		for _, d := range f.dims {
			if indexOf(frame, d) < 0 {
				return nil, nil, nil, shapeErrorf(CodeDims, "dims %s not contained in broadcast dims %s", dimNames(f.dims), dimNames(frame))
			}
		}
	}
	bdims = append(bdims, dims...)
	for _, d := range frame {
		if indexOf(bdims, d) < 0 {
			bdims = append(bdims, d)
		}
	}
	return dims, shape, bdims, nil
}

// mapN applies fn elementwise over the broadcast frame of fields. The result
// is masked wherever any operand is masked.
func mapN(dtype DType, fields []*Field, fn func(vals []float64) float64) (*Field, error) {
	return mapMasked(dtype, fields, fn, anyMissing)
}

// anyMissing masks a result element when any operand element is masked.
func anyMissing(_ []float64, missing []bool) bool {
	for _, m := range missing {
		if m {
			return true
		}
	}
	return false
}

// mapMasked is mapN with the result mask decided by maskFn from the operand
// values and their masks.
func mapMasked(dtype DType, fields []*Field, fn func(vals []float64) float64, maskFn func(vals []float64, missing []bool) bool) (*Field, error) {
	dims, shape, bdims, err := union(fields...)
	if err != nil {
		return nil, err
	}
	strides := make([][]int, len(fields))
	masked := false
	for k, f := range fields {
		strides[k] = f.stridesIn(dims)
		if f.missing != nil {
			masked = true
		}
	}
	data := make([]float64, product(shape))
	var missing []bool
	if masked {
		missing = make([]bool, len(data))
	}
	vals := make([]float64, len(fields))
	ms := make([]bool, len(fields))
	walk(shape, strides, nil, func(i int, offs []int) {
		for k, f := range fields {
			vals[k] = f.data[offs[k]]
			ms[k] = f.missing != nil && f.missing[offs[k]]
		}
		if masked {
			missing[i] = maskFn(vals, ms)
		}
		data[i] = dtype.normalize(fn(vals))
	})
	if masked && !slices.Contains(missing, true) {
		missing = nil
	}
	out := newField(dims, shape, data, dtype)
	out.bdims = bdims
	out.missing = missing
	return out, nil
}

// Broadcast reinterprets f against dims without copying data. f's dims must
// appear in dims in the same relative order.
func Broadcast(f *Field, dims []Dimension) (*Field, error) {
	if !containsOrdered(dims, f.dims) {
		return nil, shapeErrorf(CodeDims, "cannot broadcast %s to %s", dimNames(f.dims), dimNames(dims))
	}
	out := *f
	out.bdims = append([]Dimension(nil), dims...)
	return &out, nil
}

// Astype converts f to dtype.
func Astype(f *Field, dtype DType) *Field {
	data := make([]float64, len(f.data))
	for i, v := range f.data {
		data[i] = dtype.normalize(v)
	}
	out := newField(f.dims, f.shape, data, dtype)
	out.bdims = append([]Dimension(nil), f.bdims...)
	if f.missing != nil {
		out.missing = append([]bool(nil), f.missing...)
	}
	return out
}
