package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/fieldop/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestProgram returns scale(a) = a * factor.
func createTestProgram(name, factor string) *ir.Program {
	cell := ir.FieldType{Dims: []ir.Dim{{Name: "Cell", Kind: "horizontal"}}, DType: "float64"}
	return &ir.Program{
		Name:   name,
		Params: []ir.Param{{Name: "a", T: cell}},
		Result: cell,
		Body: []ir.Stmt{
			&ir.Return{Loc: ir.Loc{Line: 2, Col: 2}, Value: &ir.Binary{
				Meta: ir.Meta{Loc: ir.Loc{Line: 2, Col: 9}, T: cell},
				Op:   "mul",
				X:    &ir.Sym{Meta: ir.Meta{Loc: ir.Loc{Line: 2, Col: 9}, T: cell}, Name: "a"},
				Y:    &ir.Literal{Meta: ir.Meta{Loc: ir.Loc{Line: 2, Col: 13}, T: ir.ScalarType{DType: "float64"}}, Value: factor},
			}},
		},
		Offsets: []ir.OffsetDecl{},
		Deps:    map[string]*ir.Program{},
	}
}

// createTestRun creates a run with minimal required fields.
func createTestRun(runID, operator, status string) Run {
	return Run{
		RunID:          runID,
		Operator:       operator,
		Backend:        "embedded",
		Status:         status,
		DurationMicros: 10,
	}
}
