package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/fieldop/internal/ir"
)

// GoldenDir is where RunWithGolden keeps its fixtures, relative to the
// test's package directory.
const GoldenDir = "testdata/golden"

// Snapshot captures the observable outcome of a scenario on its first
// backend. Other backends are checked against the first with the
// backends_agree assertion, so one snapshot covers all of them.
type Snapshot struct {
	Scenario string         `json:"scenario"`
	Backend  string         `json:"backend"`
	Steps    []StepSnapshot `json:"steps"`
}

// StepSnapshot is the recorded outcome of one step.
type StepSnapshot struct {
	Run      string   `json:"run"`
	Operator string   `json:"operator"`
	Status   string   `json:"status"`
	Error    string   `json:"error,omitempty"`
	Outputs  []Output `json:"outputs,omitempty"`
}

// NewSnapshot builds the snapshot of result.
func NewSnapshot(result *Result) Snapshot {
	snap := Snapshot{Scenario: result.Scenario, Steps: []StepSnapshot{}}
	if len(result.Backends) == 0 {
		return snap
	}
	snap.Backend = result.Backends[0]
	for _, ev := range result.BackendTrace(snap.Backend) {
		snap.Steps = append(snap.Steps, StepSnapshot{
			Run:      ev.Run,
			Operator: ev.Operator,
			Status:   ev.Status,
			Error:    ev.Error,
			Outputs:  ev.Outputs,
		})
	}
	return snap
}

// MarshalSnapshot renders a snapshot the way golden files store it:
// two-space indented JSON without a trailing newline.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// CompareGolden compares a snapshot against the golden file at path. With
// update set the file is rewritten instead.
func CompareGolden(path string, s Snapshot, update bool) error {
	data, err := MarshalSnapshot(s)
	if err != nil {
		return err
	}
	if update {
		return os.WriteFile(path, data, 0o644)
	}
	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(bytes.ReplaceAll(want, []byte("\r\n"), []byte("\n")), data) {
		return fmt.Errorf("snapshot of %s does not match %s", s.Scenario, path)
	}
	return nil
}

func newGoldie(t *testing.T, dir string) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check Pass; an error is returned only
// if the scenario could not be executed.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()
	data, err := MarshalSnapshot(NewSnapshot(result))
	if err != nil {
		t.Fatal(err)
	}
	newGoldie(t, GoldenDir).Assert(t, name, data)
}

// AssertGoldenIR compares the canonical JSON of a translated program
// against {dir}/{name}.golden.
func AssertGoldenIR(t *testing.T, dir, name string, p *ir.Program) {
	t.Helper()
	data, err := ir.MarshalCanonical(p.ToValue())
	if err != nil {
		t.Fatalf("marshal program: %v", err)
	}
	newGoldie(t, dir).Assert(t, name, data)
}
