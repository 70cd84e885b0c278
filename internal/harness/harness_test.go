package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRunEdges(t *testing.T) {
	result, err := Run(context.Background(), loadScenario(t, "edges"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, []string{"embedded", "compiled"}, result.Backends)
	require.Len(t, result.Trace, 6)
	for i, ev := range result.Trace[:3] {
		assert.Equal(t, "embedded", ev.Backend)
		assert.Equal(t, i+1, ev.Step)
	}
	assert.Equal(t, "compiled", result.Trace[3].Backend)

	split := result.Trace[2]
	assert.Equal(t, "split", split.Operator)
	require.Len(t, split.Outputs, 2)
	assert.Equal(t, []string{"Cell"}, split.Outputs[1].Dims)
	assert.Equal(t, []float64{-1, -2, -3, -4, -5}, split.Outputs[1].Data)
}

func TestRunRecordsRunLogPerBackend(t *testing.T) {
	result, err := Run(context.Background(), loadScenario(t, "edges"))
	require.NoError(t, err)

	for _, b := range result.Backends {
		runs := result.Runs[b]
		require.Len(t, runs, 3, b)
		assert.Equal(t, b+"-000001", runs[0].RunID)
		assert.Equal(t, int64(1), runs[0].Seq)
		assert.Equal(t, "nsum", runs[0].Operator)
		assert.Equal(t, b, runs[0].Backend)
		assert.Equal(t, int64(1000), runs[0].DurationMicros, "stepping clock advances 1ms per reading")
	}
	assert.Empty(t, result.Runs["embedded"][0].KernelHash)
	assert.Len(t, result.Runs["compiled"][0].KernelHash, 64)
}

func TestRunUnbound(t *testing.T) {
	result, err := Run(context.Background(), loadScenario(t, "unbound"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	for _, b := range result.Backends {
		ev := result.BackendTrace(b)[0]
		assert.Equal(t, StatusFailed, ev.Status)
		assert.Contains(t, ev.Error, "dimension mismatch for offset E2C")
		assert.Empty(t, ev.Outputs)
	}
}

func TestRunGrid(t *testing.T) {
	result, err := Run(context.Background(), loadScenario(t, "grid"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	flat := result.BackendTrace("compiled")[0]
	require.Len(t, flat.Outputs, 1)
	assert.Equal(t, []int{6, 6}, flat.Outputs[0].Shape)
}

func TestRunReportsFailedExpectations(t *testing.T) {
	s := loadScenario(t, "edges")
	s.Steps[0].Expect.Data = []float64{3, 3, 6, 10}
	s.Steps[1].Expect = &Expect{Error: "boom"}
	s.Assertions = nil

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4, "two steps on two backends: %v", result.Errors)
	assert.Contains(t, result.Errors[0], "step 1 (sum_a) on embedded: element 3: expected 10, got 9")
	assert.Contains(t, result.Errors[2], `step 2 (hi_neg) on embedded: expected error containing "boom", call succeeded`)
}

func TestRunSingleBackend(t *testing.T) {
	s := loadScenario(t, "edges")
	s.Backends = []string{"compiled"}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.Trace, 3)
	assert.NotContains(t, result.Runs, "embedded")
}

func TestRunErrors(t *testing.T) {
	t.Run("bad manifest", func(t *testing.T) {
		s := loadScenario(t, "edges")
		s.Manifest = t.TempDir()
		_, err := Run(context.Background(), s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load manifest")
	})

	t.Run("unknown run", func(t *testing.T) {
		s := loadScenario(t, "edges")
		s.Steps = append(s.Steps, Step{Run: "nope"})
		_, err := Run(context.Background(), s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `steps[3]: manifest has no run "nope"`)
	})
}
