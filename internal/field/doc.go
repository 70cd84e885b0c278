// Package field implements the data model shared by every backend: dimension
// tags, offsets, connectivity tables, and dimension-tagged arrays (fields).
//
// Fields are immutable values. Every built-in in this package returns a new
// Field; the only mutating entry point is MaterializeInto, which the engine
// calls once at the end of an outer call to write the caller-owned output.
//
// Broadcasting is by dimension identity, not by position: two operands are
// aligned on the dimensions they share, and a dimension missing from one
// operand is broadcast (stride 0) across the other. Axis order still matters
// for storage layout (row-major over Dims()).
//
// The indexed transform (Remap) gathers values through a Connectivity. Sentinel
// entries (0 or -1) produce the additive identity and are recorded in the
// field's missing mask. MinOver and MaxOver skip masked entries; NeighborSum
// adds whatever value the slot holds.
package field
