package kernel

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/store"
	"github.com/roach88/fieldop/internal/testutil"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "kernels.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPipelineMemoizesByHash(t *testing.T) {
	s := openStore(t)
	pl := NewPipeline(NewLocal(), WithStore(s))
	ctx := context.Background()

	// Two translations of the same source are distinct programs with one hash.
	h1, err := pl.Compile(ctx, translate(t, nsumSource, nil))
	require.NoError(t, err)
	h2, err := pl.Compile(ctx, translate(t, nsumSource, nil))
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, pl.Compiles())

	kernels, err := s.ReadAllKernels(ctx)
	require.NoError(t, err)
	require.Len(t, kernels, 1)
	assert.Equal(t, h1.Hash, kernels[0].Hash)
	assert.Equal(t, "nsum", kernels[0].Name)
}

func TestPipelineLoad(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	h, err := NewPipeline(NewLocal(), WithStore(s)).Compile(ctx, translate(t, nsumSource, nil))
	require.NoError(t, err)

	// A fresh backend recompiles from the stored IR alone.
	fresh := NewPipeline(NewLocal(), WithStore(s))
	prog, loaded, err := fresh.Load(ctx, h.Hash)
	require.NoError(t, err)
	assert.Equal(t, h, loaded)

	outs, err := fresh.Invoke(ctx, loaded, MarshalAll([]field.Value{testutil.Cells(1, 2, 3, 4, 5)}), testutil.MeshOffsets())
	require.NoError(t, err)
	v, _, err := Unmarshal(outs, prog.Result)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 3, 6, 9}, v.(*field.Field).Float64s())

	_, _, err = fresh.Load(ctx, "0000")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, _, err = NewPipeline(NewLocal()).Load(ctx, h.Hash)
	assert.ErrorContains(t, err, "no store configured")
}

func TestPipelineRejectsInvalidPrograms(t *testing.T) {
	pl := NewPipeline(NewLocal())
	p := translate(t, nsumSource, nil)
	p.Name = ""
	_, err := pl.Compile(context.Background(), p)
	require.Error(t, err)
	assert.Zero(t, pl.Compiles())
}
