package field

import "fmt"

// Remap is the indexed transform f(o) / f(o, index).
//
// For every row of c (one per element of o's first target) it gathers f at
// the referenced source elements. With index < 0 the whole row is gathered
// and the result dims are (target, local, rest...); with index >= 0 only that
// column (0-based) is gathered and the local axis is dropped. rest is f's
// dims without o.Source, in order.
//
// Sentinel entries produce 0 (false for bool) and are marked missing.
func Remap(f *Field, o Offset, c *Connectivity, index int) (*Field, error) {
	if err := c.Compatible(o); err != nil {
		return nil, err
	}
	srcAxis := indexOf(f.dims, o.Source)
	if srcAxis < 0 {
		return nil, &DimensionMismatch{
			Offset:  o.Name,
			Message: fmt.Sprintf("field dims %s do not contain source dimension %s", dimNames(f.dims), o.Source),
		}
	}
	local, hasLocal := o.LocalDim()
	if index < 0 && !hasLocal {
		if c.MaxNeighbors != 1 {
			return nil, &DimensionMismatch{
				Offset:  o.Name,
				Message: fmt.Sprintf("offset has no LOCAL target but connectivity has %d columns; select one with an index", c.MaxNeighbors),
			}
		}
		index = 0
	}
	if index >= c.MaxNeighbors {
		return nil, &DimensionMismatch{
			Offset:  o.Name,
			Message: fmt.Sprintf("neighbor index %d out of range for %d columns", index, c.MaxNeighbors),
		}
	}

	var rest []Dimension
	var restShape []int
	for i, d := range f.dims {
		if i == srcAxis {
			continue
		}
		rest = append(rest, d)
		restShape = append(restShape, f.shape[i])
	}
	for _, t := range o.Targets {
		if indexOf(rest, t) >= 0 {
			return nil, shapeErrorf(CodeDims, "offset %s: target %s already present in %s", o.Name, t, dimNames(f.dims))
		}
	}

	cols := []int{index}
	dims := []Dimension{o.Target()}
	shape := []int{c.Rows()}
	if index < 0 {
		cols = make([]int, c.MaxNeighbors)
		for k := range cols {
			cols[k] = k
		}
		dims = append(dims, local)
		shape = append(shape, c.MaxNeighbors)
	}
	dims = append(dims, rest...)
	shape = append(shape, restShape...)

	srcSize := f.shape[srcAxis]
	srcStride := rowMajorStrides(f.shape)[srcAxis]
	restStrides := [][]int{f.stridesIn(rest)}
	restN := product(restShape)

	data := make([]float64, c.Rows()*len(cols)*restN)
	missing := make([]bool, len(data))
	anyMissing := false
	for r, row := range c.Table {
		for j, k := range cols {
			base := (r*len(cols) + j) * restN
			nbr := row[k]
			if IsSentinel(nbr) {
				for i := 0; i < restN; i++ {
					missing[base+i] = true
				}
				anyMissing = true
				continue
			}
			if nbr < 1 || nbr > srcSize {
				return nil, shapeErrorf(CodeBounds, "offset %s: connectivity entry [%d][%d]=%d outside 1..%d", o.Name, r, k, nbr, srcSize)
			}
			start := (nbr - 1) * srcStride
			walk(restShape, restStrides, []int{start}, func(i int, offs []int) {
				data[base+i] = f.data[offs[0]]
				if f.missing != nil && f.missing[offs[0]] {
					missing[base+i] = true
					anyMissing = true
				}
			})
		}
	}
	out := newField(dims, shape, data, f.dtype)
	if anyMissing {
		out.missing = missing
	}
	return out, nil
}
