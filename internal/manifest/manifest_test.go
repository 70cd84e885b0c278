package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/syntax"
)

func TestLoadMesh(t *testing.T) {
	m, err := Load("testdata/mesh", LoadModeFailFast)
	require.NoError(t, err)

	assert.Equal(t, 2, m.FileCount)
	assert.Len(t, m.Dimensions, 3)
	assert.Equal(t, field.Local, m.Dimensions["E2CDim"].Kind)

	e2c := m.Offsets["E2C"]
	assert.Equal(t, m.Dimensions["Cell"], e2c.Source)
	assert.Equal(t, m.Dimensions["Edge"], e2c.Target())

	conn := m.Connectivities["E2C"]
	require.NotNil(t, conn)
	assert.Equal(t, [][]int{{1, 2}, {3, -1}, {2, 4}, {4, 5}}, conn.Table)
	assert.NoError(t, conn.Compatible(e2c))

	assert.Equal(t, 2.0, m.Constants["scale"])
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, m.Fields["a"].Float64s())
	assert.Equal(t, []float64{-1, -2, -3, -4, -5}, m.Fields["neg"].Float64s())

	require.Len(t, m.Operators, 4)
	doubled := m.Operators["doubled"]
	capture, ok := doubled.Capture("nsum")
	require.True(t, ok)
	assert.Equal(t, syntax.CaptureOperator, capture.Kind)
	assert.Same(t, m.Operators["nsum"], capture.Operator)

	names := make([]string, len(m.Runs))
	for i, r := range m.Runs {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"hi_neg", "split_a", "sum_a", "twice_a"}, names)
}

func TestLoadRuns(t *testing.T) {
	m, err := Load("testdata/mesh", LoadModeFailFast)
	require.NoError(t, err)

	r, ok := m.Run("twice_a")
	require.True(t, ok)
	assert.Equal(t, "compiled", r.Backend)
	require.Len(t, r.Args, 2)
	scalar := r.Args[1].(*field.Field)
	assert.True(t, scalar.IsScalar())
	assert.Equal(t, []float64{2}, scalar.Float64s())
	assert.Contains(t, r.Offsets, "E2C")

	out := r.NewOut().(*field.Field)
	assert.Equal(t, []field.Dimension{m.Dimensions["Edge"]}, out.Dims())
	assert.Equal(t, field.Float64, out.DType())
	assert.Equal(t, make([]float64, 4), out.Float64s())
	assert.NotSame(t, out, r.NewOut(), "every call gets a fresh out")

	split, ok := m.Run("split_a")
	require.True(t, ok)
	tup, ok := split.NewOut().(field.Tuple)
	require.True(t, ok)
	assert.Len(t, tup, 2)

	_, ok = m.Run("missing")
	assert.False(t, ok)
}

func TestLoadGridWithOperatorFile(t *testing.T) {
	m, err := Load("testdata/grid", LoadModeFailFast)
	require.NoError(t, err)

	op := m.Operators["laplace"]
	require.NotNil(t, op)
	assert.Equal(t, "laplace", op.Name)
	assert.Len(t, m.Connectivities, 6)

	r, ok := m.Run("laplace_interior")
	require.True(t, ok)
	i, j := m.Dimensions["I"], m.Dimensions["J"]
	assert.Equal(t, field.Domain{i: {Start: 1, End: 7}, j: {Start: 1, End: 7}}, r.Domain)

	out := r.NewOut().(*field.Field)
	assert.Equal(t, []int{8, 8}, out.Shape())
	assert.Equal(t, 1.0, out.At(0, 0))
}

func TestLoadCollectsAllErrors(t *testing.T) {
	_, err := Load("testdata/bad", LoadModeCollectAll)
	require.Error(t, err)

	errs := Errors(err)
	require.Len(t, errs, 4)
	codes := make([]string, len(errs))
	for i, e := range errs {
		var le *LoadError
		require.ErrorAs(t, e, &le)
		codes[i] = le.Code
	}
	assert.Equal(t, []string{ErrCodeOffset, ErrCodeUndefined, ErrCodeField, ErrCodeOperator}, codes)
	assert.Contains(t, errs[3].Error(), "operator cycle: ping → pong → ping")
	assert.Contains(t, errs[1].Error(), `undefined dimension "Vertex"`)
}

func TestLoadFailFast(t *testing.T) {
	_, err := Load("testdata/bad", LoadModeFailFast)
	require.Error(t, err)
	require.Len(t, Errors(err), 1)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, ErrCodeOffset, le.Code)
	assert.Equal(t, "offset.C2C", le.Path)
	assert.True(t, le.Pos.IsValid())
}

func TestLoadDirectoryErrors(t *testing.T) {
	tests := []struct {
		name string
		dir  func(t *testing.T) string
		code string
	}{
		{
			name: "missing",
			dir:  func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") },
			code: ErrCodeNotFound,
		},
		{
			name: "file",
			dir: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "x.cue")
				require.NoError(t, os.WriteFile(p, []byte("package x\n"), 0o644))
				return p
			},
			code: ErrCodeNotFound,
		},
		{
			name: "empty",
			dir:  func(t *testing.T) string { return t.TempDir() },
			code: ErrCodeNoFiles,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.dir(t), LoadModeCollectAll)
			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.code, le.Code)
		})
	}
}

func TestLoadSource(t *testing.T) {
	t.Run("schema violation", func(t *testing.T) {
		_, err := LoadSource("m.cue", `
dimension: Cell: kind: "diagonal"
`, LoadModeCollectAll)
		require.Error(t, err)
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, ErrCodeBuildFailed, le.Code)
	})

	t.Run("unknown section", func(t *testing.T) {
		_, err := LoadSource("m.cue", `mesh: {}`, LoadModeFailFast)
		assert.True(t, IsLoadError(err))
	})

	t.Run("operator file without directory", func(t *testing.T) {
		_, err := LoadSource("m.cue", `operator: f: file: "f.go"`, LoadModeFailFast)
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, ErrCodeOperator, le.Code)
	})

	t.Run("operator name mismatch", func(t *testing.T) {
		_, err := LoadSource("m.cue", `
dimension: Cell: kind: "horizontal"
operator: f: source: "func g(a Field[Cell, float64]) Field[Cell, float64] { return a }"
`, LoadModeFailFast)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "func is named g")
	})

	t.Run("translation error keeps Go position", func(t *testing.T) {
		_, err := LoadSource("m.cue", `
dimension: Cell: kind: "horizontal"
operator: f: source: """
	func f(a Field[Cell, float64]) Field[Cell, float64] {
		for {
		}
		return a
	}
	"""
`, LoadModeFailFast)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "f.go:2:")
	})

	t.Run("run arity", func(t *testing.T) {
		_, err := LoadSource("m.cue", `
dimension: Cell: kind: "horizontal"
field: a: {dims: ["Cell"], shape: [1]}
operator: id: source: "func id(a Field[Cell, float64]) Field[Cell, float64] { return a }"
run: r: {operator: "id", args: ["a", "a"], out: {dims: ["Cell"], shape: [1]}}
`, LoadModeFailFast)
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, ErrCodeRun, le.Code)
	})

	t.Run("data fill and ramp exclusive", func(t *testing.T) {
		_, err := LoadSource("m.cue", `
dimension: Cell: kind: "horizontal"
field: a: {dims: ["Cell"], shape: [2], data: [1, 2], fill: 3}
`, LoadModeFailFast)
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, ErrCodeField, le.Code)
	})
}

func TestLoadErrorUnwrapsTranslationError(t *testing.T) {
	_, err := LoadSource("m.cue", `
dimension: Cell: kind: "horizontal"
operator: f: source: "func f(a Field[Cell, float64]) Field[Cell, float64] { return print(a) }"
`, LoadModeFailFast)
	require.Error(t, err)
	assert.True(t, syntax.IsTranslationError(err), "got %v", err)
}
