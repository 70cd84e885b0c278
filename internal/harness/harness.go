package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/fieldop/internal/compiler"
	"github.com/roach88/fieldop/internal/engine"
	"github.com/roach88/fieldop/internal/kernel"
	"github.com/roach88/fieldop/internal/manifest"
	"github.com/roach88/fieldop/internal/store"
	"github.com/roach88/fieldop/internal/testutil"
)

// Option configures Run.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger every backend runtime logs to. By default
// runtime logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// harness executes the steps of one scenario on one backend.
//
// Every backend gets its own runtime, translation cache, kernel pipeline
// and in-memory store, so backends run concurrently without sharing state.
// Run IDs and the call clock are deterministic.
type harness struct {
	backend string
	rt      *engine.Runtime
	store   *store.Store
}

func newHarness(backend string, logger *slog.Logger) (*harness, error) {
	st, err := store.OpenMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	b, err := engine.ParseBackend(backend)
	if err != nil {
		st.Close()
		return nil, err
	}
	rt, err := engine.New(engine.Config{
		Backend:  b,
		Logger:   logger,
		Pipeline: kernel.NewPipeline(kernel.NewLocal(), kernel.WithStore(st), kernel.WithLogger(logger)),
		Cache:    compiler.NewCache(),
		Runs:     st,
		IDs:      testutil.NewSequentialIDs(backend),
		Now:      testutil.NewStepClock(0).Now,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	return &harness{backend: backend, rt: rt, store: st}, nil
}

// Run executes a scenario and returns the result.
//
// The manifest is loaded once and shared: manifest fields and connectivities
// are read-only, and every step gets a fresh out. Each backend runs its
// steps sequentially, backends run concurrently. An error is returned only
// when the scenario cannot be executed at all; step and assertion failures
// are reported in the Result.
func Run(ctx context.Context, s *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	m, err := manifest.Load(s.Manifest, manifest.LoadModeCollectAll)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	runs := make([]*manifest.Run, len(s.Steps))
	for i, step := range s.Steps {
		r, ok := m.Run(step.Run)
		if !ok {
			return nil, fmt.Errorf("steps[%d]: manifest has no run %q", i, step.Run)
		}
		runs[i] = r
	}

	traces := make([][]TraceEvent, len(s.Backends))
	logs := make([][]store.Run, len(s.Backends))
	g, gctx := errgroup.WithContext(ctx)
	for bi, backend := range s.Backends {
		g.Go(func() error {
			h, err := newHarness(backend, o.logger.With("backend", backend))
			if err != nil {
				return fmt.Errorf("backend %s: %w", backend, err)
			}
			defer h.store.Close()

			traces[bi] = make([]TraceEvent, len(runs))
			for i, r := range runs {
				traces[bi][i] = h.execute(gctx, i+1, r)
			}
			logs[bi], err = h.store.ReadRuns(gctx, "")
			if err != nil {
				return fmt.Errorf("backend %s: %w", backend, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := NewResult(s.Name)
	result.Backends = append([]string(nil), s.Backends...)
	for bi, backend := range s.Backends {
		result.Trace = append(result.Trace, traces[bi]...)
		result.Runs[backend] = logs[bi]
	}

	for i, step := range s.Steps {
		if step.Expect == nil {
			continue
		}
		for _, backend := range s.Backends {
			ev := result.BackendTrace(backend)[i]
			if err := checkExpect(ev, step.Expect, s.Tolerance); err != nil {
				result.AddError(fmt.Sprintf("step %d (%s) on %s: %v", i+1, step.Run, backend, err))
			}
		}
	}
	for _, err := range EvaluateAssertions(result, s.Assertions, s.Tolerance) {
		result.AddError(err.Error())
	}
	return result, nil
}

// execute performs one outer call for r. The backend of the harness
// overrides any backend the manifest run names.
func (h *harness) execute(ctx context.Context, step int, r *manifest.Run) TraceEvent {
	ev := TraceEvent{
		Backend:  h.backend,
		Step:     step,
		Run:      r.Name,
		Operator: r.Operator.Name,
		Status:   StatusOK,
	}
	v, err := h.rt.Call(ctx, r.Operator, r.Args,
		engine.WithOut(r.NewOut()),
		engine.WithOffsetProvider(r.Offsets),
		engine.WithDomain(r.Domain),
	)
	if err != nil {
		ev.Status = StatusFailed
		ev.Error = err.Error()
		return ev
	}
	ev.Outputs = OutputsOf(v)
	return ev
}

// checkExpect compares one trace event against a step expectation.
func checkExpect(ev TraceEvent, e *Expect, tol float64) error {
	if e.Error != "" {
		if ev.Status != StatusFailed {
			return fmt.Errorf("expected error containing %q, call succeeded", e.Error)
		}
		if !strings.Contains(ev.Error, e.Error) {
			return fmt.Errorf("expected error containing %q, got %q", e.Error, ev.Error)
		}
		return nil
	}
	if ev.Status != StatusOK {
		return fmt.Errorf("unexpected error: %s", ev.Error)
	}

	switch {
	case e.Data != nil:
		if len(ev.Outputs) != 1 {
			return fmt.Errorf("expected a single field, got %d outputs", len(ev.Outputs))
		}
		if err := compareData(ev.Outputs[0], e.Data, tol); err != nil {
			return err
		}
		if e.Missing != nil && !slices.Equal(ev.Outputs[0].Missing, e.Missing) {
			return fmt.Errorf("missing: expected %v, got %v", e.Missing, ev.Outputs[0].Missing)
		}
	case e.Tuple != nil:
		if len(ev.Outputs) != len(e.Tuple) {
			return fmt.Errorf("expected %d outputs, got %d", len(e.Tuple), len(ev.Outputs))
		}
		for i, data := range e.Tuple {
			if err := compareData(ev.Outputs[i], data, tol); err != nil {
				return fmt.Errorf("output %d: %w", i, err)
			}
		}
	}
	return nil
}
