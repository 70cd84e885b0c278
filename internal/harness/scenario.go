package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fieldop/internal/engine"
)

// DefaultTolerance is the absolute tolerance for float comparisons when a
// scenario does not set one.
const DefaultTolerance = 1e-6

// Scenario defines a conformance scenario: a sequence of manifest runs
// executed on one or more backends, with per-step expectations and
// assertions over the resulting trace and run log.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Manifest is the manifest directory. Relative paths are resolved
	// against the scenario file's directory by LoadScenario.
	Manifest string `yaml:"manifest"`

	// Backends lists the backends every step runs on. Default: embedded
	// and compiled.
	Backends []string `yaml:"backends,omitempty"`

	// Tolerance is the absolute tolerance for float outputs.
	// Default: DefaultTolerance.
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Steps are executed in order, each as one outer call.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and run log.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step executes one manifest run.
type Step struct {
	// Run names a run of the manifest.
	Run string `yaml:"run"`

	// Expect, if set, is checked on every backend.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step. At most one of Data,
// Tuple and Error may be set.
type Expect struct {
	// Data is the expected row-major data of a single-field result.
	Data []float64 `yaml:"data,omitempty"`

	// Tuple is the expected data of each element of a tuple result.
	Tuple [][]float64 `yaml:"tuple,omitempty"`

	// Missing lists flat indices expected to be missing. Checked only for
	// single-field results.
	Missing []int `yaml:"missing,omitempty"`

	// Error is a substring the step's error must contain.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the run log.
type Assertion struct {
	// Type specifies the assertion type:
	//   - "backends_agree": every step has the same status and, within
	//     tolerance, the same outputs on every backend
	//   - "trace_order": runs appear in this order on every backend
	//   - "trace_count": operator appears exactly Count times on every backend
	//   - "run_log": the run log of every backend holds exactly Count rows for
	//     Operator, restricted to Status when set
	Type string `yaml:"type"`

	// Operator is the operator name (trace_count, run_log).
	Operator string `yaml:"operator,omitempty"`

	// Runs is the expected run order (trace_order).
	Runs []string `yaml:"runs,omitempty"`

	// Status filters run-log rows (run_log).
	Status string `yaml:"status,omitempty"`

	// Count is the expected number of occurrences (trace_count, run_log).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertBackendsAgree = "backends_agree"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertRunLog        = "run_log"
)

// LoadScenario reads and parses a scenario YAML file. The manifest path is
// resolved against the file's directory. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Manifest != "" && !filepath.IsAbs(s.Manifest) {
		s.Manifest = filepath.Join(filepath.Dir(path), s.Manifest)
	}
	if _, err := os.Stat(s.Manifest); err != nil {
		return nil, fmt.Errorf("invalid scenario: manifest not found: %s", s.Manifest)
	}
	return s, nil
}

// ParseScenario parses scenario YAML. The manifest path is returned as
// written.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(s.Backends) == 0 {
		s.Backends = []string{string(engine.Embedded), string(engine.Compiled)}
	}
	if s.Tolerance == 0 {
		s.Tolerance = DefaultTolerance
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Manifest == "" {
		return fmt.Errorf("manifest is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Tolerance < 0 {
		return fmt.Errorf("tolerance must be non-negative")
	}

	seen := make(map[string]bool)
	for i, b := range s.Backends {
		if _, err := engine.ParseBackend(b); err != nil {
			return fmt.Errorf("backends[%d]: %w", i, err)
		}
		if seen[b] {
			return fmt.Errorf("backends[%d]: duplicate backend %q", i, b)
		}
		seen[b] = true
	}

	for i, step := range s.Steps {
		if step.Run == "" {
			return fmt.Errorf("steps[%d]: run is required", i)
		}
		if e := step.Expect; e != nil {
			set := 0
			for _, ok := range []bool{e.Data != nil, e.Tuple != nil, e.Error != ""} {
				if ok {
					set++
				}
			}
			if set > 1 {
				return fmt.Errorf("steps[%d].expect: data, tuple and error are mutually exclusive", i)
			}
			if e.Missing != nil && e.Data == nil {
				return fmt.Errorf("steps[%d].expect: missing requires data", i)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertBackendsAgree:
	case AssertTraceOrder:
		if len(a.Runs) == 0 {
			return fmt.Errorf("assertions[%d]: runs list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Operator == "" {
			return fmt.Errorf("assertions[%d]: operator is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertRunLog:
		if a.Operator == "" {
			return fmt.Errorf("assertions[%d]: operator is required for run_log", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for run_log", index)
		}
		if a.Status != "" && a.Status != StatusOK && a.Status != StatusFailed {
			return fmt.Errorf("assertions[%d]: unknown status %q", index, a.Status)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
