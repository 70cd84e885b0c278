package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectRequiresDatabase(t *testing.T) {
	_, err := execute(t, "inspect")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "inspect requires --db")

	_, err = execute(t, "inspect", "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not found")
}

func TestInspectAfterRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "fieldop.db")
	_, err := execute(t, "run", meshDir, "--db", db)
	require.Error(t, err, "unbound fails")

	out, err := execute(t, "inspect", "--db", db, "--runs", "--operator", "nsum")
	require.NoError(t, err)
	assert.Contains(t, out, "Runs:    3 (1 failed)")
	assert.Contains(t, out, "OPERATOR")
	assert.Contains(t, out, "Runs (2):")
	assert.Contains(t, out, "nsum embedded failed")

	out, err = execute(t, "inspect", "--db", db, "--kernels", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   InspectResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 3, resp.Data.Summary.Runs)
	assert.Equal(t, 1, resp.Data.Summary.Failed)
	require.Len(t, resp.Data.Summary.Operators, 2)
	assert.Equal(t, "doubled", resp.Data.Summary.Operators[0].Operator)
	assert.Equal(t, "nsum", resp.Data.Summary.Operators[1].Operator)
	assert.Equal(t, 2, resp.Data.Summary.Operators[1].Runs)

	// Only twice_a ran compiled.
	require.Len(t, resp.Data.Kernels, 1)
	assert.Equal(t, "doubled", resp.Data.Kernels[0].Name)
	assert.Empty(t, resp.Data.Runs)
}

func TestInspectWhere(t *testing.T) {
	db := filepath.Join(t.TempDir(), "fieldop.db")
	_, err := execute(t, "run", meshDir, "--db", db)
	require.Error(t, err, "unbound fails")

	out, err := execute(t, "inspect", "--db", db, "--where", "status=failed", "--format", "json")
	require.NoError(t, err)
	var resp struct {
		Data InspectResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Runs, 1)
	assert.Equal(t, "nsum", resp.Data.Runs[0].Operator)

	out, err = execute(t, "inspect", "--db", db, "--where", "backend=compiled", "--where", "seq>=1")
	require.NoError(t, err)
	assert.Contains(t, out, "Runs (1):")
	assert.Contains(t, out, "doubled compiled ok")

	out, err = execute(t, "inspect", "--db", db, "--where", "program=x")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeQuery+"]")
	assert.Contains(t, out, "unknown column")
}
