package field

// NeighborSum sums every entry of f over the LOCAL axis, including the
// values held in missing slots. A sentinel slot straight out of Remap holds
// the additive identity; after an elementwise op it holds whatever the op
// made of that identity.
func NeighborSum(f *Field, axis Dimension) (*Field, error) {
	dtype := f.dtype
	if dtype == Bool {
		dtype = Int64
	}
	return reduce(f, axis, dtype, 0, false, func(acc, v float64) float64 { return acc + v })
}

// MinOver takes the minimum over the LOCAL axis, skipping missing entries.
// A row with no present entry yields the type's min identity (+Inf for floats).
func MinOver(f *Field, axis Dimension) (*Field, error) {
	return reduce(f, axis, f.dtype, f.dtype.minIdentity(), true, func(acc, v float64) float64 {
		if v < acc {
			return v
		}
		return acc
	})
}

// MaxOver takes the maximum over the LOCAL axis, skipping missing entries.
// A row with no present entry yields the type's max identity (-Inf for floats).
func MaxOver(f *Field, axis Dimension) (*Field, error) {
	return reduce(f, axis, f.dtype, f.dtype.maxIdentity(), true, func(acc, v float64) float64 {
		if v > acc {
			return v
		}
		return acc
	})
}

// ReduceOver dispatches a reduction by name.
func ReduceOver(name string, f *Field, axis Dimension) (*Field, error) {
	switch name {
	case "neighbor_sum":
		return NeighborSum(f, axis)
	case "min_over":
		return MinOver(f, axis)
	case "max_over":
		return MaxOver(f, axis)
	default:
		return nil, shapeErrorf(CodeReduction, "unknown reduction %q", name)
	}
}

func reduce(f *Field, axis Dimension, dtype DType, init float64, masked bool, fn func(acc, v float64) float64) (*Field, error) {
	if !axis.IsLocal() {
		return nil, shapeErrorf(CodeReduction, "reduction axis %s is %s, want local", axis, axis.Kind)
	}
	ax := indexOf(f.dims, axis)
	if ax < 0 {
		return nil, shapeErrorf(CodeReduction, "reduction axis %s not in %s", axis, dimNames(f.dims))
	}
	var dims []Dimension
	var shape []int
	for i, d := range f.dims {
		if i != ax {
			dims = append(dims, d)
			shape = append(shape, f.shape[i])
		}
	}
	axStride := rowMajorStrides(f.shape)[ax]
	axSize := f.shape[ax]
	data := make([]float64, product(shape))
	walk(shape, [][]int{f.stridesIn(dims)}, nil, func(i int, offs []int) {
		acc := init
		for k := 0; k < axSize; k++ {
			off := offs[0] + k*axStride
			if masked && f.missing != nil && f.missing[off] {
				continue
			}
			acc = fn(acc, f.data[off])
		}
		data[i] = dtype.normalize(acc)
	})
	out := newField(dims, shape, data, dtype)
	for _, d := range f.bdims {
		if d != axis && indexOf(dims, d) < 0 {
			out.bdims = append(out.bdims, d)
		}
	}
	return out, nil
}
