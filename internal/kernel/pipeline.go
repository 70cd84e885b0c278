package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/fieldop/internal/ir"
	"github.com/roach88/fieldop/internal/provider"
)

// ArtifactStore persists compiled programs by hash. *store.Store
// implements it.
type ArtifactStore interface {
	WriteKernel(ctx context.Context, p *ir.Program) (hash string, err error)
	ReadKernel(ctx context.Context, hash string) (*ir.Program, error)
}

// Pipeline memoizes Backend.Compile by program hash and records every
// compiled program in an optional ArtifactStore.
//
// Thread-safety: All methods are safe for concurrent use.
type Pipeline struct {
	backend Backend
	store   ArtifactStore
	logger  *slog.Logger

	mu       sync.Mutex
	handles  map[string]Handle
	compiles int
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithStore persists compiled programs to s.
func WithStore(s ArtifactStore) PipelineOption {
	return func(p *Pipeline) { p.store = s }
}

// WithLogger sets the pipeline logger. The default is slog.Default().
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline returns a pipeline in front of b.
func NewPipeline(b Backend, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{backend: b, handles: make(map[string]Handle), logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Compile returns the handle for prog, compiling it on first use.
func (pl *Pipeline) Compile(ctx context.Context, prog *ir.Program) (Handle, error) {
	if err := Check(prog); err != nil {
		return Handle{}, err
	}
	hash, err := ir.ProgramHash(prog)
	if err != nil {
		return Handle{}, err
	}

	pl.mu.Lock()
	h, ok := pl.handles[hash]
	pl.mu.Unlock()
	if ok {
		pl.logger.Debug("kernel cache hit", "kernel", h.String())
		return h, nil
	}

	h, err = pl.backend.Compile(ctx, prog)
	if err != nil {
		return Handle{}, err
	}
	if pl.store != nil {
		if _, err := pl.store.WriteKernel(ctx, prog); err != nil {
			return Handle{}, fmt.Errorf("persist kernel %s: %w", h, err)
		}
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()
	if prev, ok := pl.handles[hash]; ok {
		return prev, nil
	}
	pl.handles[hash] = h
	pl.compiles++
	pl.logger.Debug("kernel compiled", "kernel", h.String(), "persisted", pl.store != nil)
	return h, nil
}

// Load compiles the program stored under hash.
func (pl *Pipeline) Load(ctx context.Context, hash string) (*ir.Program, Handle, error) {
	if pl.store == nil {
		return nil, Handle{}, fmt.Errorf("load kernel %s: no store configured", hash)
	}
	prog, err := pl.store.ReadKernel(ctx, hash)
	if err != nil {
		return nil, Handle{}, fmt.Errorf("load kernel %s: %w", hash, err)
	}
	h, err := pl.Compile(ctx, prog)
	if err != nil {
		return nil, Handle{}, err
	}
	return prog, h, nil
}

// Invoke runs h on the backend.
func (pl *Pipeline) Invoke(ctx context.Context, h Handle, operands []Operand, offsets provider.Offsets) ([]Operand, error) {
	return pl.backend.Invoke(ctx, h, operands, offsets)
}

// Compiles returns how many programs reached Backend.Compile.
func (pl *Pipeline) Compiles() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.compiles
}
