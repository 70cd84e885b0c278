// Package kernel is the compiled-kernel contract: a Backend turns an IR
// program into a Handle once and then invokes it on marshaled operands.
//
// Local is the in-process implementation. It lowers the IR into a tree of
// Go closures over the field built-ins, so a kernel shares no state with
// the interpreter and sees only what the program and its operands carry.
// Pipeline sits in front of a Backend and memoizes compilation by program
// hash, optionally persisting every program it compiles.
package kernel

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/fieldop/internal/ir"
	"github.com/roach88/fieldop/internal/provider"
)

// Handle identifies a compiled kernel within the backend that produced it.
type Handle struct {
	Hash string
	Name string
}

func (h Handle) String() string {
	short := h.Hash
	if len(short) > 12 {
		short = short[:12]
	}
	return fmt.Sprintf("%s@%s", h.Name, short)
}

// Backend compiles and runs kernels.
type Backend interface {
	// Compile prepares p for invocation. Compiling the same program twice
	// yields the same handle.
	Compile(ctx context.Context, p *ir.Program) (Handle, error)

	// Invoke runs a compiled kernel. operands hold the flattened
	// parameters in order; the result is the flattened return value.
	Invoke(ctx context.Context, h Handle, operands []Operand, offsets provider.Offsets) ([]Operand, error)
}

// ErrUnknownHandle is returned by Invoke for a handle the backend never
// compiled.
var ErrUnknownHandle = errors.New("unknown kernel handle")
