package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscover(t *testing.T) {
	files, err := Discover("testdata/scenarios", "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "scenarios", "edges.yaml"),
		filepath.Join("testdata", "scenarios", "grid.yaml"),
		filepath.Join("testdata", "scenarios", "unbound.yaml"),
	}, files)

	files, err = Discover("testdata/scenarios", "e*")
	require.NoError(t, err)
	assert.Len(t, files, 1)

	_, err = Discover("testdata/scenarios", "[")
	assert.ErrorContains(t, err, "invalid filter pattern")

	_, err = Discover("testdata/nope", "")
	assert.Error(t, err)
}

func TestRunSuite(t *testing.T) {
	files, err := Discover("testdata/scenarios", "")
	require.NoError(t, err)

	suite := RunSuite(context.Background(), files)
	assert.Equal(t, 3, suite.Total)
	assert.Equal(t, 3, suite.Passed, "failures: %v", suite.Failures)
	assert.Zero(t, suite.Failed)
	assert.Len(t, suite.Results, 3)
}

func TestRunSuiteFailures(t *testing.T) {
	dir := t.TempDir()
	manifest, err := filepath.Abs("testdata/manifests/edges")
	require.NoError(t, err)

	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}
	broken := write("broken.yaml", "name: [\n")
	failing := write("failing.yaml", "name: failing\nmanifest: "+manifest+"\nsteps:\n  - run: sum_a\n    expect: {data: [0, 0, 0, 0]}\n")
	missingRun := write("missing.yaml", "name: missing\nmanifest: "+manifest+"\nsteps:\n  - run: nope\n")

	suite := RunSuite(context.Background(), []string{broken, failing, missingRun})
	assert.Equal(t, 3, suite.Total)
	assert.Zero(t, suite.Passed)
	assert.Equal(t, 3, suite.Failed)
	require.Len(t, suite.Failures, 3)
	assert.Contains(t, suite.Failures[0].Error, "failed to load scenario")
	assert.Equal(t, "failing", suite.Failures[1].Scenario)
	assert.Contains(t, suite.Failures[1].Error, "scenario assertions failed")
	assert.Contains(t, suite.Failures[2].Error, "scenario execution failed")
	assert.Len(t, suite.Results, 1, "only executed scenarios have results")
}
