// Package manifest loads CUE manifests that describe a mesh and the
// operator runs to execute on it.
//
// A manifest directory holds one CUE package with these top-level
// sections, all optional:
//
//	dimension:    name -> {kind}
//	offset:       name -> {source, targets}
//	connectivity: offset name -> {table, max_neighbors, source_size?}
//	constant:     name -> number | bool
//	field:        name -> {dims, shape, dtype, data | fill | ramp}
//	operator:     name -> {source | file}
//	run:          name -> {operator, args, out, backend?, domain?, offsets?}
//
// The loaded value is unified with the embedded #Manifest schema before
// anything is decoded, so structural mistakes carry CUE positions.
// Operators see every dimension, offset, constant and other operator of
// the manifest as captured names; operator sources may call each other in
// any order as long as the calls are acyclic.
package manifest
