package field

import "fmt"

// Range is a half-open index interval [Start, End).
type Range struct {
	Start int
	End   int
}

// Domain restricts materialization to a sub-box of the output, per dimension.
// Dimensions not listed cover the whole extent of the output.
type Domain map[Dimension]Range

// MaterializeInto copies src element-wise into out, broadcasting src along
// any out dimension it lacks. This is the only operation that mutates a
// field; the engine calls it at the end of an outer call.
func MaterializeInto(out, src *Field, domain Domain) error {
	for _, d := range src.dims {
		if !out.HasDim(d) {
			return shapeErrorf(CodeDims, "result dims %s not contained in out dims %s", dimNames(src.dims), dimNames(out.dims))
		}
	}
	for d := range domain {
		if !out.HasDim(d) {
			return shapeErrorf(CodeDims, "domain dimension %s not in out dims %s", d, dimNames(out.dims))
		}
	}
	region := make([]int, len(out.dims))
	base := 0
	outStrides := rowMajorStrides(out.shape)
	for i, d := range out.dims {
		r := Range{Start: 0, End: out.shape[i]}
		if dr, ok := domain[d]; ok {
			r = dr
		}
		if r.Start < 0 || r.End > out.shape[i] || r.Start > r.End {
			return shapeErrorf(CodeSize, "domain %s=[%d,%d) outside [0,%d)", d, r.Start, r.End, out.shape[i])
		}
		region[i] = r.End - r.Start
		base += r.Start * outStrides[i]
		if s, ok := src.Size(d); ok && s != region[i] {
			return shapeErrorf(CodeSize, "result %s has size %d, out region has %d", d, s, region[i])
		}
	}
	walk(region, [][]int{outStrides, src.stridesIn(out.dims)}, []int{base, 0}, func(_ int, offs []int) {
		out.data[offs[0]] = out.dtype.normalize(src.data[offs[1]])
	})
	return nil
}

// MaterializeValue materializes a field or tuple into a matching out value.
func MaterializeValue(out, src Value, domain Domain) error {
	switch o := out.(type) {
	case *Field:
		s, ok := src.(*Field)
		if !ok {
			return shapeErrorf(CodeTuple, "out is a field but the result is %T", src)
		}
		return MaterializeInto(o, s, domain)
	case Tuple:
		s, ok := src.(Tuple)
		if !ok || len(s) != len(o) {
			return shapeErrorf(CodeTuple, "out tuple of %d does not match result %s", len(o), describe(src))
		}
		for i := range o {
			if err := MaterializeValue(o[i], s[i], domain); err != nil {
				return fmt.Errorf("out[%d]: %w", i, err)
			}
		}
		return nil
	default:
		return shapeErrorf(CodeTuple, "unsupported out value %T", out)
	}
}

func describe(v Value) string {
	if t, ok := v.(Tuple); ok {
		return fmt.Sprintf("tuple of %d", len(t))
	}
	return "a field"
}
