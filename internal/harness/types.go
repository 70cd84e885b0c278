package harness

import (
	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/store"
)

// Status values recorded in a TraceEvent.
const (
	StatusOK     = store.StatusOK
	StatusFailed = store.StatusFailed
)

// Output is one result field of a step, flattened for comparison and
// snapshots.
type Output struct {
	Dims    []string  `json:"dims"`
	Shape   []int     `json:"shape"`
	DType   string    `json:"dtype"`
	Data    []float64 `json:"data"`
	Missing []int     `json:"missing,omitempty"` // flat indices of missing elements
}

// TraceEvent records one step executed on one backend.
type TraceEvent struct {
	Backend  string   `json:"backend"`
	Step     int      `json:"step"` // 1-based
	Run      string   `json:"run"`
	Operator string   `json:"operator"`
	Status   string   `json:"status"`
	Error    string   `json:"error,omitempty"`
	Outputs  []Output `json:"outputs,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	Scenario string `json:"scenario"`

	// Path is the scenario file, when the scenario was loaded by RunSuite.
	Path string `json:"path,omitempty"`

	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Backends lists the backends in scenario order.
	Backends []string `json:"backends"`

	// Trace holds the steps of every backend: grouped by backend in the
	// order of Backends, then by step.
	Trace []TraceEvent `json:"trace"`

	// Runs is the run log each backend's runtime wrote, keyed by backend.
	Runs map[string][]store.Run `json:"runs,omitempty"`

	// Errors contains step expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Trace:    []TraceEvent{},
		Runs:     make(map[string][]store.Run),
		Errors:   []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// BackendTrace returns the events of one backend in step order.
func (r *Result) BackendTrace(backend string) []TraceEvent {
	var events []TraceEvent
	for _, e := range r.Trace {
		if e.Backend == backend {
			events = append(events, e)
		}
	}
	return events
}

// OutputsOf flattens a step result into its fields, in tuple order.
func OutputsOf(v field.Value) []Output {
	switch r := v.(type) {
	case *field.Field:
		return []Output{outputOf(r)}
	case field.Tuple:
		var outs []Output
		for _, e := range r {
			outs = append(outs, OutputsOf(e)...)
		}
		return outs
	}
	return nil
}

func outputOf(f *field.Field) Output {
	dims := f.Dims()
	o := Output{
		Dims:  make([]string, len(dims)),
		Shape: f.Shape(),
		DType: f.DType().String(),
		Data:  f.Float64s(),
	}
	for i, d := range dims {
		o.Dims[i] = d.Name
	}
	if o.Shape == nil {
		o.Shape = []int{}
	}
	for i, m := range f.MissingMask() {
		if m {
			o.Missing = append(o.Missing, i)
		}
	}
	return o
}
