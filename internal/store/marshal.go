package store

import (
	"fmt"

	"github.com/roach88/fieldop/internal/ir"
)

// marshalProgram converts a program to canonical JSON TEXT for storage.
// Canonical JSON keeps the stored text stable, so the row hashes the same
// way the program does.
func marshalProgram(p *ir.Program) (string, error) {
	data, err := ir.MarshalCanonical(p.ToValue())
	if err != nil {
		return "", fmt.Errorf("marshal program: %w", err)
	}
	return string(data), nil
}

// unmarshalProgram parses canonical JSON TEXT back into a program.
func unmarshalProgram(data string) (*ir.Program, error) {
	v, err := ir.ParseValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal program: %w", err)
	}
	p, err := ir.ProgramFromValue(v)
	if err != nil {
		return nil, fmt.Errorf("unmarshal program: %w", err)
	}
	return p, nil
}
