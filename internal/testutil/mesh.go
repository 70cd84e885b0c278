// Package testutil provides shared fixtures for tests: a small unstructured
// mesh, a Cartesian stencil grid, ramp fields and deterministic clocks and
// run IDs.
package testutil

import (
	"fmt"

	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/provider"
)

// Dimensions of the unstructured mesh fixture.
var (
	Cell   = field.NewDimension("Cell", field.Horizontal)
	Edge   = field.NewDimension("Edge", field.Horizontal)
	K      = field.NewDimension("K", field.Vertical)
	E2CDim = field.NewDimension("E2CDim", field.Local)

	// E2C gathers the two cells of every edge.
	E2C = field.MustOffset("E2C", Cell, Edge, E2CDim)
)

// Mesh sizes.
const (
	NumCells = 5
	NumEdges = 4
)

// E2CTable lists the 1-based cells of each edge. Edge 2 is a boundary edge
// with one neighbor.
var E2CTable = [][]int{{1, 2}, {3, -1}, {2, 4}, {4, 5}}

// E2CConnectivity returns a fresh connectivity realizing E2C.
func E2CConnectivity() *field.Connectivity {
	return field.MustConnectivity(E2CTable, Cell, Edge, 2)
}

// MeshOffsets is the offset provider of the mesh fixture.
func MeshOffsets() provider.Offsets {
	return provider.Offsets{"E2C": E2CConnectivity()}
}

// MeshEnv binds the mesh dimensions and offsets for operator definitions.
func MeshEnv() map[string]any {
	return map[string]any{
		"Cell":   Cell,
		"Edge":   Edge,
		"K":      K,
		"E2CDim": E2CDim,
		"E2C":    E2C,
	}
}

// Ramp returns a field whose row-major elements are start, start+step, ...
func Ramp(dims []field.Dimension, shape []int, start, step float64, dtype field.DType) *field.Field {
	n := 1
	for _, s := range shape {
		n *= s
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = start + float64(i)*step
	}
	return field.MustNew(dims, shape, data, dtype)
}

// Cells returns a float64 field over Cell.
func Cells(values ...float64) *field.Field {
	return field.FromFloat64s(Cell, values)
}

// Cartesian is an N×N structured grid. Its stencil offsets shift I and J by
// -1, 0 and +1 over the interior [1, N-1) of each axis.
type Cartesian struct {
	N    int
	I, J field.Dimension

	IC, IM, IP field.Offset
	JC, JM, JP field.Offset
}

// NewCartesian returns an n×n grid; n must be at least 3.
func NewCartesian(n int) *Cartesian {
	if n < 3 {
		panic(fmt.Sprintf("testutil: cartesian grid needs n >= 3, got %d", n))
	}
	i := field.NewDimension("I", field.Horizontal)
	j := field.NewDimension("J", field.Horizontal)
	return &Cartesian{
		N: n, I: i, J: j,
		IC: field.MustOffset("IC", i, i),
		IM: field.MustOffset("IM", i, i),
		IP: field.MustOffset("IP", i, i),
		JC: field.MustOffset("JC", j, j),
		JM: field.MustOffset("JM", j, j),
		JP: field.MustOffset("JP", j, j),
	}
}

// shift maps interior element r (grid index r+1) to the 1-based index of
// grid element r+1+delta.
func (c *Cartesian) shift(dim field.Dimension, delta int) *field.Connectivity {
	table := make([][]int, c.N-2)
	for r := range table {
		table[r] = []int{r + 2 + delta}
	}
	return field.MustConnectivity(table, dim, dim, 1)
}

// Offsets is the offset provider of the grid.
func (c *Cartesian) Offsets() provider.Offsets {
	return provider.Offsets{
		"IC": c.shift(c.I, 0),
		"IM": c.shift(c.I, -1),
		"IP": c.shift(c.I, 1),
		"JC": c.shift(c.J, 0),
		"JM": c.shift(c.J, -1),
		"JP": c.shift(c.J, 1),
	}
}

// Env binds the grid dimensions and offsets for operator definitions.
func (c *Cartesian) Env() map[string]any {
	return map[string]any{
		"I": c.I, "J": c.J,
		"IC": c.IC, "IM": c.IM, "IP": c.IP,
		"JC": c.JC, "JM": c.JM, "JP": c.JP,
	}
}

// Interior is the domain of grid points with four neighbors.
func (c *Cartesian) Interior() field.Domain {
	return field.Domain{
		c.I: {Start: 1, End: c.N - 1},
		c.J: {Start: 1, End: c.N - 1},
	}
}

// Full returns an N×N field over (I, J) holding v everywhere.
func (c *Cartesian) Full(v float64) *field.Field {
	f, err := field.Full([]field.Dimension{c.I, c.J}, []int{c.N, c.N}, v, field.Float64)
	if err != nil {
		panic(err)
	}
	return f
}

// LaplaceSource is the 5-point Laplacian stencil over the grid interior.
const LaplaceSource = `
func laplace(f Field[I, J, float64]) Field[I, J, float64] {
	c := f(IC)(JC)
	return -4*c + f(IM)(JC) + f(IP)(JC) + f(IC)(JM) + f(IC)(JP)
}`
