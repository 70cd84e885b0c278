package field

import "fmt"

// IsSentinel reports whether a connectivity entry marks "no neighbor".
func IsSentinel(v int) bool { return v == 0 || v == -1 }

// Connectivity is a concrete adjacency table realizing an Offset on a mesh.
//
// Row r lists, for element r of Target, the 1-based indices of its neighbors
// in Source. Entries equal to 0 or -1 mean "no neighbor".
type Connectivity struct {
	Table        [][]int
	Source       Dimension
	Target       Dimension
	MaxNeighbors int
}

// NewConnectivity validates that table is rectangular with maxNeighbors columns.
func NewConnectivity(table [][]int, source, target Dimension, maxNeighbors int) (*Connectivity, error) {
	if maxNeighbors < 1 {
		return nil, shapeErrorf(CodeSize, "connectivity %s->%s: max neighbors must be positive, got %d", source, target, maxNeighbors)
	}
	rows := make([][]int, len(table))
	for r, row := range table {
		if len(row) != maxNeighbors {
			return nil, shapeErrorf(CodeSize, "connectivity %s->%s: row %d has %d entries, want %d",
				source, target, r, len(row), maxNeighbors)
		}
		rows[r] = append([]int(nil), row...)
	}
	return &Connectivity{Table: rows, Source: source, Target: target, MaxNeighbors: maxNeighbors}, nil
}

// MustConnectivity is like NewConnectivity but panics on error.
func MustConnectivity(table [][]int, source, target Dimension, maxNeighbors int) *Connectivity {
	c, err := NewConnectivity(table, source, target, maxNeighbors)
	if err != nil {
		panic(err)
	}
	return c
}

// Rows returns the number of target elements.
func (c *Connectivity) Rows() int { return len(c.Table) }

// Validate checks every non-sentinel entry against the source dimension size.
func (c *Connectivity) Validate(sourceSize int) error {
	for r, row := range c.Table {
		for k, v := range row {
			if IsSentinel(v) {
				continue
			}
			if v < 1 || v > sourceSize {
				return shapeErrorf(CodeBounds, "connectivity %s->%s: entry [%d][%d]=%d outside 1..%d",
					c.Source, c.Target, r, k, v, sourceSize)
			}
		}
	}
	return nil
}

// Compatible checks that c can realize o.
func (c *Connectivity) Compatible(o Offset) error {
	if c.Source != o.Source || c.Target != o.Target() {
		return &DimensionMismatch{
			Offset: o.Name,
			Message: fmt.Sprintf("connectivity declares %s->%s, offset declares %s->%s",
				c.Source, c.Target, o.Source, o.Target()),
		}
	}
	return nil
}
