package harness

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"go.uber.org/multierr"
)

// AssertionError is returned when an assertion fails.
// It includes the trace of the offending backend for context.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Backend  string       // Backend the failure was observed on, if any
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Backend != "" {
		fmt.Fprintf(&buf, " (%s)", e.Backend)
	}
	buf.WriteByte('\n')
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", ev.Step, ev.Run, ev.Operator, ev.Status)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failures, one error per failed assertion and backend.
func EvaluateAssertions(result *Result, assertions []Assertion, tol float64) []error {
	var err error
	for _, a := range assertions {
		switch a.Type {
		case AssertBackendsAgree:
			err = multierr.Append(err, assertBackendsAgree(result, tol))
		case AssertTraceOrder:
			for _, b := range result.Backends {
				err = multierr.Append(err, assertTraceOrder(b, result.BackendTrace(b), a))
			}
		case AssertTraceCount:
			for _, b := range result.Backends {
				err = multierr.Append(err, assertTraceCount(b, result.BackendTrace(b), a))
			}
		case AssertRunLog:
			for _, b := range result.Backends {
				err = multierr.Append(err, assertRunLog(b, result, a))
			}
		default:
			err = multierr.Append(err, fmt.Errorf("unknown assertion type: %s", a.Type))
		}
	}
	return multierr.Errors(err)
}

// assertBackendsAgree compares every backend against the first.
func assertBackendsAgree(result *Result, tol float64) error {
	if len(result.Backends) < 2 {
		return nil
	}
	ref := result.Backends[0]
	want := result.BackendTrace(ref)
	var err error
	for _, b := range result.Backends[1:] {
		got := result.BackendTrace(b)
		for i := range want {
			if e := compareEvents(want[i], got[i], tol); e != nil {
				err = multierr.Append(err, &AssertionError{
					Type:     AssertBackendsAgree,
					Backend:  b,
					Expected: fmt.Sprintf("step %d (%s) as on %s", i+1, want[i].Run, ref),
					Actual:   e.Error(),
					Trace:    got,
				})
			}
		}
	}
	return err
}

func compareEvents(want, got TraceEvent, tol float64) error {
	if want.Status != got.Status {
		return fmt.Errorf("status %s, want %s (%s)", got.Status, want.Status, firstNonEmpty(got.Error, want.Error))
	}
	if len(want.Outputs) != len(got.Outputs) {
		return fmt.Errorf("%d outputs, want %d", len(got.Outputs), len(want.Outputs))
	}
	for i := range want.Outputs {
		w, g := want.Outputs[i], got.Outputs[i]
		if !slices.Equal(w.Dims, g.Dims) || !slices.Equal(w.Shape, g.Shape) || w.DType != g.DType {
			return fmt.Errorf("output %d: %s%v %v, want %s%v %v", i, g.DType, g.Dims, g.Shape, w.DType, w.Dims, w.Shape)
		}
		if !slices.Equal(w.Missing, g.Missing) {
			return fmt.Errorf("output %d: missing %v, want %v", i, g.Missing, w.Missing)
		}
		if err := compareData(g, w.Data, tol); err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
	}
	return nil
}

// compareData compares an output against expected data. Float outputs are
// compared within tol, integer and bool outputs exactly. Missing elements
// are not compared.
func compareData(o Output, want []float64, tol float64) error {
	if len(o.Data) != len(want) {
		return fmt.Errorf("expected %d elements, got %d", len(want), len(o.Data))
	}
	if !strings.HasPrefix(o.DType, "float") {
		tol = 0
	}
	for i := range want {
		if slices.Contains(o.Missing, i) {
			continue
		}
		if math.Abs(o.Data[i]-want[i]) > tol {
			return fmt.Errorf("element %d: expected %v, got %v", i, want[i], o.Data[i])
		}
	}
	return nil
}

// assertTraceOrder checks that runs appear in the given order.
// Runs need not be consecutive.
func assertTraceOrder(backend string, trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for _, ev := range trace {
		if positions[ev.Run] == 0 {
			positions[ev.Run] = ev.Step
		}
	}

	for _, run := range a.Runs {
		if positions[run] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Backend:  backend,
				Expected: fmt.Sprintf("all runs present: %v", a.Runs),
				Actual:   fmt.Sprintf("missing run: %s", run),
				Trace:    trace,
			}
		}
	}
	for i := 1; i < len(a.Runs); i++ {
		prev, curr := a.Runs[i-1], a.Runs[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Backend:  backend,
				Expected: fmt.Sprintf("runs in order: %v", a.Runs),
				Actual: fmt.Sprintf("%s (step %d) should be before %s (step %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the operator was called exactly Count times.
func assertTraceCount(backend string, trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Operator == a.Operator {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Backend:  backend,
			Expected: fmt.Sprintf("%d calls of %s", a.Count, a.Operator),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertRunLog counts the run-log rows of an operator.
func assertRunLog(backend string, result *Result, a Assertion) error {
	count := 0
	for _, r := range result.Runs[backend] {
		if r.Operator == a.Operator && (a.Status == "" || r.Status == a.Status) {
			count++
		}
	}
	if count != a.Count {
		what := "rows"
		if a.Status != "" {
			what = a.Status + " rows"
		}
		return &AssertionError{
			Type:     AssertRunLog,
			Backend:  backend,
			Expected: fmt.Sprintf("%d %s for %s", a.Count, what, a.Operator),
			Actual:   fmt.Sprintf("%d %s", count, what),
		}
	}
	return nil
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
