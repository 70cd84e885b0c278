// Package engine is the execution wrapper around field operators.
//
// Every operator call goes through Runtime.Call, which decides from the
// call's context whether it is an outer or a nested call:
//
// Outer call:
// No offset-provider scope is active. The caller must pass an out value,
// may pass an offset provider, and the call acquires a fresh registry
// scope that lives until the call returns. The result is materialized
// into out.
//
// Nested call:
// The context already carries a scope (the call was issued from inside
// another operator). Passing out or an offset provider is a contract
// violation; the result is returned as a value.
//
// The registry scope is released on every exit path, including a panic
// inside a built-in, which is recovered into an error after teardown.
//
// BACKENDS:
//
// Embedded interprets the operator's canonical AST (package interp).
// Compiled translates the operator to IR once per operator identity,
// compiles it through a kernel.Pipeline once per program hash and invokes
// the kernel on marshaled operands.
//
// Each outer call gets a run ID and a sequence number from the call
// clock. Both appear in the call's log records and, when a run log is
// configured, in its run row.
package engine
