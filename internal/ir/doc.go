// Package ir defines the backend-neutral intermediate representation of a
// field operator.
//
// A Program is a typed tree of statements and expressions produced by the
// translator in internal/compiler and consumed by kernel backends. The
// package imports nothing internal, so the IR stays the bottom layer of the
// compiled path and can be handed to an out-of-process backend as JSON.
//
// Key design constraints:
//   - Every node records its source location (Loc).
//   - Dimensions and element types are plain strings; the IR does not
//     depend on the runtime field representation.
//   - Programs serialize through the sealed Value tree, whose canonical
//     form (RFC 8785 key order, NFC strings, no floats) is hashed to give
//     the kernel identity. Float literals are carried as decimal strings.
package ir
