package field

// Where selects a where mask is true and b elsewhere. The result dims are
// the union of the three operands' broadcast dims. An element is missing
// only if the branch it was taken from is missing there.
func Where(mask, a, b *Field) (*Field, error) {
	if mask.dtype != Bool {
		return nil, shapeErrorf(CodeDType, "where: mask must be bool, got %s", mask.dtype)
	}
	if (a.dtype == Bool) != (b.dtype == Bool) {
		return nil, shapeErrorf(CodeDType, "where: branches %s and %s do not agree", a.dtype, b.dtype)
	}
	return mapMasked(Promote(a.dtype, b.dtype), []*Field{mask, a, b}, func(v []float64) float64 {
		if v[0] != 0 {
			return v[1]
		}
		return v[2]
	}, func(v []float64, missing []bool) bool {
		if v[0] != 0 {
			return missing[1]
		}
		return missing[2]
	})
}

// WhereValue applies Where structurally over tuples:
// where(m, (a1, a2), (b1, b2)) == (where(m, a1, b1), where(m, a2, b2)).
func WhereValue(mask *Field, a, b Value) (Value, error) {
	ta, aTuple := a.(Tuple)
	tb, bTuple := b.(Tuple)
	switch {
	case aTuple && bTuple:
		if len(ta) != len(tb) {
			return nil, shapeErrorf(CodeTuple, "where: tuple branches have %d and %d elements", len(ta), len(tb))
		}
		out := make(Tuple, len(ta))
		for i := range ta {
			v, err := WhereValue(mask, ta[i], tb[i])
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case aTuple || bTuple:
		return nil, shapeErrorf(CodeTuple, "where: cannot mix a tuple and a field branch")
	}
	return Where(mask, a.(*Field), b.(*Field))
}
