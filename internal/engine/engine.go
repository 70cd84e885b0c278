package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/fieldop/internal/compiler"
	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/interp"
	"github.com/roach88/fieldop/internal/kernel"
	"github.com/roach88/fieldop/internal/provider"
	"github.com/roach88/fieldop/internal/store"
	"github.com/roach88/fieldop/internal/syntax"
)

// Backend selects how an operator body is executed.
type Backend string

const (
	// Embedded interprets the canonical AST directly.
	Embedded Backend = "embedded"

	// Compiled translates to IR and runs a compiled kernel.
	Compiled Backend = "compiled"
)

// ParseBackend maps a backend name to a Backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case Embedded, Compiled:
		return b, nil
	default:
		return "", &ContractError{
			Code:    ErrCodeUnknownBackend,
			Message: fmt.Sprintf("unknown backend %q (want %q or %q)", s, Embedded, Compiled),
		}
	}
}

// RunLog records outer calls. *store.Store implements it.
type RunLog interface {
	WriteRun(ctx context.Context, r store.Run) (int64, error)
}

// Config configures a Runtime. Every field is optional.
type Config struct {
	// Backend is used when a call does not pass WithBackend. Default: Embedded.
	Backend Backend

	// Logger receives call records. Default: slog.Default().
	Logger *slog.Logger

	// Pipeline compiles kernels for the compiled backend.
	// Default: a pipeline over kernel.NewLocal().
	Pipeline *kernel.Pipeline

	// Cache memoizes translations. Default: compiler.DefaultCache.
	Cache *compiler.Cache

	// Runs, when set, receives one row per outer call.
	Runs RunLog

	// IDs generates run IDs. Default: UUIDv7Generator.
	IDs RunIDGenerator

	// Clock numbers outer calls. Default: NewClock().
	Clock *Clock

	// Now measures call durations. Default: time.Now.
	Now func() time.Time
}

// Runtime executes operators.
//
// Thread-safety: A Runtime is safe for concurrent use. Concurrent outer
// calls on different contexts get independent registry scopes.
type Runtime struct {
	backend  Backend
	logger   *slog.Logger
	pipeline *kernel.Pipeline
	cache    *compiler.Cache
	runs     RunLog
	ids      RunIDGenerator
	clock    *Clock
	now      func() time.Time
	machine  *interp.Machine
}

// New returns a Runtime for cfg.
func New(cfg Config) (*Runtime, error) {
	r := &Runtime{
		backend:  cfg.Backend,
		logger:   cfg.Logger,
		pipeline: cfg.Pipeline,
		cache:    cfg.Cache,
		runs:     cfg.Runs,
		ids:      cfg.IDs,
		clock:    cfg.Clock,
		now:      cfg.Now,
	}
	if r.backend == "" {
		r.backend = Embedded
	}
	if _, err := ParseBackend(string(r.backend)); err != nil {
		return nil, err
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.pipeline == nil {
		r.pipeline = kernel.NewPipeline(kernel.NewLocal(), kernel.WithLogger(r.logger))
	}
	if r.cache == nil {
		r.cache = compiler.DefaultCache
	}
	if r.ids == nil {
		r.ids = UUIDv7Generator{}
	}
	if r.clock == nil {
		r.clock = NewClock()
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.machine = interp.New(r)
	return r, nil
}

// Backend returns the default backend.
func (r *Runtime) Backend() Backend { return r.backend }

// CallOption configures a single call.
type CallOption func(*callOptions)

type callOptions struct {
	backend Backend
	out     field.Value
	offsets provider.Offsets
	domain  field.Domain
}

// WithBackend overrides the runtime's default backend for one call.
func WithBackend(b Backend) CallOption {
	return func(o *callOptions) { o.backend = b }
}

// WithOut sets the value an outer call materializes its result into: a
// *field.Field or a field.Tuple of them matching the result structure.
func WithOut(out field.Value) CallOption {
	return func(o *callOptions) { o.out = out }
}

// WithOffsetProvider sets the connectivities an outer call installs in its
// registry scope.
func WithOffsetProvider(offsets provider.Offsets) CallOption {
	return func(o *callOptions) { o.offsets = offsets }
}

// WithDomain restricts materialization to a sub-box of out.
func WithDomain(d field.Domain) CallOption {
	return func(o *callOptions) { o.domain = d }
}

// Call runs op over args. Whether the call is outer or nested is decided by
// ctx: a context without an offset-provider scope starts an outer call.
//
// An outer call writes its result into the WithOut value and also returns
// it. A nested call only returns it.
func (r *Runtime) Call(ctx context.Context, op *syntax.Operator, args []field.Value, opts ...CallOption) (field.Value, error) {
	o := callOptions{backend: r.backend}
	for _, opt := range opts {
		opt(&o)
	}
	if op == nil {
		return nil, &ContractError{Code: ErrCodeNoOperator, Message: "nil operator"}
	}
	if _, err := ParseBackend(string(o.backend)); err != nil {
		ce := err.(*ContractError)
		ce.Operator = op.Name
		return nil, ce
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if provider.Active(ctx) {
		return r.nested(ctx, op, args, o)
	}
	return r.outer(ctx, op, args, o)
}

// CallNested implements interp.Caller: operator calls made from inside an
// interpreted body run embedded within the caller's scope.
func (r *Runtime) CallNested(ctx context.Context, op *syntax.Operator, args []field.Value) (field.Value, error) {
	return r.Call(ctx, op, args, WithBackend(Embedded))
}

func (r *Runtime) nested(ctx context.Context, op *syntax.Operator, args []field.Value, o callOptions) (field.Value, error) {
	if o.out != nil || o.domain != nil {
		return nil, &ContractError{
			Code:     ErrCodeNestedOut,
			Operator: op.Name,
			Message:  "nested calls return their result and must not be given out or a domain",
		}
	}
	if o.offsets != nil {
		return nil, &ContractError{
			Code:     ErrCodeNestedProvider,
			Operator: op.Name,
			Message:  "nested calls use the outer call's offset provider",
		}
	}
	var kernelHash string
	return r.dispatch(ctx, op, args, o.backend, &kernelHash)
}

func (r *Runtime) outer(ctx context.Context, op *syntax.Operator, args []field.Value, o callOptions) (res field.Value, err error) {
	if o.out == nil {
		return nil, &ContractError{
			Code:     ErrCodeMissingOut,
			Operator: op.Name,
			Message:  "outer calls must be given out",
		}
	}
	if err := checkOut(o.out); err != nil {
		return nil, &ContractError{Code: ErrCodeInvalidOut, Operator: op.Name, Message: err.Error()}
	}

	ctx, _, release, err := provider.Acquire(ctx, o.offsets)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op.Name, err)
	}

	runID := r.ids.Generate()
	seq := r.clock.Next()
	start := r.now()
	var kernelHash string
	defer func() {
		release()
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("%s: %w: %v", op.Name, ErrOperatorPanic, p)
		}
		err = r.finish(ctx, op, o.backend, runID, seq, kernelHash, r.now().Sub(start), err)
		if err != nil {
			res = nil
		}
	}()

	res, err = r.dispatch(ctx, op, args, o.backend, &kernelHash)
	if err != nil {
		return nil, err
	}
	if err := field.MaterializeValue(o.out, res, o.domain); err != nil {
		return nil, fmt.Errorf("%s: out: %w", op.Name, err)
	}
	return res, nil
}

// finish logs an outer call and appends it to the run log. It returns the
// call's error, or the run log's if only that failed.
func (r *Runtime) finish(ctx context.Context, op *syntax.Operator, backend Backend, runID string, seq int64, kernelHash string, d time.Duration, callErr error) error {
	attrs := []any{"run", runID, "seq", seq, "operator", op.Name, "backend", string(backend), "duration", d}
	if kernelHash != "" {
		attrs = append(attrs, "kernel", kernelHash)
	}
	row := store.Run{
		RunID:          runID,
		Operator:       op.Name,
		Backend:        string(backend),
		KernelHash:     kernelHash,
		Status:         store.StatusOK,
		DurationMicros: d.Microseconds(),
	}
	if callErr != nil {
		row.Status = store.StatusFailed
		row.Error = callErr.Error()
		r.logger.Error("operator call failed", append(attrs, "error", callErr)...)
	} else {
		r.logger.Info("operator call", attrs...)
	}

	if r.runs == nil {
		return callErr
	}
	// A cancelled call is still recorded.
	if _, err := r.runs.WriteRun(context.WithoutCancel(ctx), row); err != nil {
		r.logger.Error("failed to record run", "run", runID, "error", err)
		if callErr == nil {
			return fmt.Errorf("record run %s: %w", runID, err)
		}
	}
	return callErr
}

// dispatch runs op on backend. Compiled runs store the kernel hash in
// kernelHash as soon as it is known, so a panicking kernel is still
// attributed.
func (r *Runtime) dispatch(ctx context.Context, op *syntax.Operator, args []field.Value, backend Backend, kernelHash *string) (field.Value, error) {
	if err := checkArgs(op, args); err != nil {
		return nil, err
	}
	if backend == Compiled {
		return r.compiled(ctx, op, args, kernelHash)
	}
	r.logger.Debug("interpreting operator", "operator", op.Name)
	return r.machine.Run(ctx, op, args)
}

func (r *Runtime) compiled(ctx context.Context, op *syntax.Operator, args []field.Value, kernelHash *string) (field.Value, error) {
	prog, err := r.cache.Translate(op)
	if err != nil {
		return nil, err
	}
	h, err := r.pipeline.Compile(ctx, prog)
	if err != nil {
		return nil, err
	}
	*kernelHash = h.Hash
	r.logger.Debug("invoking kernel", "operator", op.Name, "kernel", h.String())

	outs, err := r.pipeline.Invoke(ctx, h, kernel.MarshalAll(args), provider.FromContext(ctx).Snapshot())
	if err != nil {
		return nil, err
	}
	v, rest, err := kernel.Unmarshal(outs, prog.Result)
	if err != nil {
		return nil, fmt.Errorf("%s: result: %w", op.Name, err)
	}
	if len(rest) != 0 {
		return nil, &field.ShapeError{
			Code:    field.CodeTuple,
			Message: fmt.Sprintf("%s: kernel returned %d extra operands", op.Name, len(rest)),
		}
	}
	return v, nil
}

// Compile translates op and compiles its kernel without running it.
func (r *Runtime) Compile(ctx context.Context, op *syntax.Operator) (kernel.Handle, error) {
	prog, err := r.cache.Translate(op)
	if err != nil {
		return kernel.Handle{}, err
	}
	return r.pipeline.Compile(ctx, prog)
}

func checkArgs(op *syntax.Operator, args []field.Value) error {
	if len(args) != len(op.Params) {
		return &field.ShapeError{
			Code:    field.CodeArgument,
			Message: fmt.Sprintf("%s takes %d arguments, got %d", op.Name, len(op.Params), len(args)),
		}
	}
	for i, p := range op.Params {
		if err := syntax.CheckValue(p.Type, args[i]); err != nil {
			return fmt.Errorf("%s: argument %s: %w", op.Name, p.Name, err)
		}
	}
	return nil
}

func checkOut(v field.Value) error {
	switch o := v.(type) {
	case *field.Field:
		if o == nil {
			return errors.New("out is a nil field")
		}
		return nil
	case field.Tuple:
		for i, e := range o {
			if err := checkOut(e); err != nil {
				return fmt.Errorf("out[%d]: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("out must be a field or a tuple of fields, got %T", v)
	}
}
