package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldop/internal/store"
)

func edgeOutput(data ...float64) Output {
	return Output{Dims: []string{"Edge"}, Shape: []int{len(data)}, DType: "float64", Data: data}
}

func testResult() *Result {
	r := NewResult("t")
	r.Backends = []string{"embedded", "compiled"}
	for _, b := range r.Backends {
		r.Trace = append(r.Trace,
			TraceEvent{Backend: b, Step: 1, Run: "sum_a", Operator: "nsum", Status: StatusOK, Outputs: []Output{edgeOutput(3, 3, 6, 9)}},
			TraceEvent{Backend: b, Step: 2, Run: "unbound", Operator: "nsum", Status: StatusFailed, Error: "no connectivity"},
			TraceEvent{Backend: b, Step: 3, Run: "hi_neg", Operator: "hi", Status: StatusOK, Outputs: []Output{edgeOutput(-1, -3, -2, -4)}},
		)
		r.Runs[b] = []store.Run{
			{Seq: 1, Operator: "nsum", Status: store.StatusOK},
			{Seq: 2, Operator: "nsum", Status: store.StatusFailed},
			{Seq: 3, Operator: "hi", Status: store.StatusOK},
		}
	}
	return r
}

func TestEvaluateAssertionsPass(t *testing.T) {
	errs := EvaluateAssertions(testResult(), []Assertion{
		{Type: AssertBackendsAgree},
		{Type: AssertTraceOrder, Runs: []string{"sum_a", "hi_neg"}},
		{Type: AssertTraceCount, Operator: "nsum", Count: 2},
		{Type: AssertTraceCount, Operator: "laplace", Count: 0},
		{Type: AssertRunLog, Operator: "nsum", Count: 2},
		{Type: AssertRunLog, Operator: "nsum", Status: StatusFailed, Count: 1},
	}, DefaultTolerance)
	assert.Empty(t, errs)
}

func TestBackendsAgree(t *testing.T) {
	t.Run("within tolerance", func(t *testing.T) {
		r := testResult()
		r.Trace[3].Outputs[0].Data[0] = 3 + 1e-9
		assert.Empty(t, EvaluateAssertions(r, []Assertion{{Type: AssertBackendsAgree}}, 1e-6))
	})

	t.Run("data differs", func(t *testing.T) {
		r := testResult()
		r.Trace[5].Outputs[0].Data[2] = -2.5
		errs := EvaluateAssertions(r, []Assertion{{Type: AssertBackendsAgree}}, 1e-6)
		require.Len(t, errs, 1)

		var ae *AssertionError
		require.ErrorAs(t, errs[0], &ae)
		assert.Equal(t, "compiled", ae.Backend)
		assert.Contains(t, ae.Expected, "step 3 (hi_neg) as on embedded")
		assert.Contains(t, ae.Actual, "element 2: expected -2, got -2.5")
	})

	t.Run("integers compare exactly", func(t *testing.T) {
		r := testResult()
		for i := range r.Trace {
			for j := range r.Trace[i].Outputs {
				r.Trace[i].Outputs[j].DType = "int64"
			}
		}
		r.Trace[3].Outputs[0].Data[0] = 3 + 1e-9
		assert.Len(t, EvaluateAssertions(r, []Assertion{{Type: AssertBackendsAgree}}, 1e-6), 1)
	})

	t.Run("status differs", func(t *testing.T) {
		r := testResult()
		r.Trace[4].Status = StatusOK
		errs := EvaluateAssertions(r, []Assertion{{Type: AssertBackendsAgree}}, 1e-6)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "status ok, want failed")
	})

	t.Run("missing differs", func(t *testing.T) {
		r := testResult()
		r.Trace[3].Outputs[0].Missing = []int{1}
		errs := EvaluateAssertions(r, []Assertion{{Type: AssertBackendsAgree}}, 1e-6)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "missing [1], want []")
	})

	t.Run("shape differs", func(t *testing.T) {
		r := testResult()
		r.Trace[3].Outputs[0].Dims = []string{"Cell"}
		errs := EvaluateAssertions(r, []Assertion{{Type: AssertBackendsAgree}}, 1e-6)
		require.Len(t, errs, 1)
		assert.Contains(t, errs[0].Error(), "float64[Cell] [4], want float64[Edge] [4]")
	})
}

func TestTraceOrder(t *testing.T) {
	errs := EvaluateAssertions(testResult(), []Assertion{
		{Type: AssertTraceOrder, Runs: []string{"hi_neg", "sum_a"}},
	}, DefaultTolerance)
	require.Len(t, errs, 2, "one per backend")
	assert.Contains(t, errs[0].Error(), "hi_neg (step 3) should be before sum_a (step 1)")
	assert.Contains(t, errs[0].Error(), "Assertion failed: trace_order (embedded)")

	errs = EvaluateAssertions(testResult(), []Assertion{
		{Type: AssertTraceOrder, Runs: []string{"sum_a", "split_a"}},
	}, DefaultTolerance)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[1].Error(), "missing run: split_a")
}

func TestTraceCount(t *testing.T) {
	errs := EvaluateAssertions(testResult(), []Assertion{
		{Type: AssertTraceCount, Operator: "hi", Count: 2},
	}, DefaultTolerance)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "Expected: 2 calls of hi")
	assert.Contains(t, errs[0].Error(), "Actual: 1 calls")
	assert.Contains(t, errs[0].Error(), "[3] hi_neg hi ok")
}

func TestRunLog(t *testing.T) {
	r := testResult()
	r.Runs["compiled"] = r.Runs["compiled"][:1]
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertRunLog, Operator: "nsum", Status: StatusFailed, Count: 1},
	}, DefaultTolerance)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "run_log (compiled)")
	assert.Contains(t, errs[0].Error(), "Actual: 0 failed rows")
}

func TestUnknownAssertion(t *testing.T) {
	errs := EvaluateAssertions(testResult(), []Assertion{{Type: "final_state"}}, DefaultTolerance)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "unknown assertion type: final_state")
}

func TestCompareData(t *testing.T) {
	o := edgeOutput(1, 2, 3)
	assert.NoError(t, compareData(o, []float64{1, 2, 3}, 0))
	assert.ErrorContains(t, compareData(o, []float64{1, 2}, 0), "expected 2 elements, got 3")

	o.Missing = []int{1}
	o.Data[1] = 42
	assert.NoError(t, compareData(o, []float64{1, 2, 3}, 0), "missing elements are not compared")
}
