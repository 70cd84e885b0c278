package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"go.uber.org/multierr"

	"github.com/roach88/fieldop/internal/builtin"
	"github.com/roach88/fieldop/internal/compiler"
	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/ir"
	"github.com/roach88/fieldop/internal/provider"
	"github.com/roach88/fieldop/internal/syntax"
)

// Local is the in-process Backend.
//
// Thread-safety: All methods are safe for concurrent use. A compiled
// kernel is immutable and may run on many goroutines at once.
type Local struct {
	mu      sync.RWMutex
	kernels map[string]*program
}

// NewLocal returns an empty Local backend.
func NewLocal() *Local {
	return &Local{kernels: make(map[string]*program)}
}

// Check runs compiler.Validate over p and combines every finding into one
// error. It must pass before p is hashed: a cyclic program has no finite
// encoding.
func Check(p *ir.Program) error {
	verrs := compiler.Validate(p)
	if len(verrs) == 0 {
		return nil
	}
	errs := make([]error, len(verrs))
	for i, e := range verrs {
		errs[i] = e
	}
	return fmt.Errorf("kernel %s: invalid program: %w", p.Name, multierr.Combine(errs...))
}

// Compile validates p and lowers it, with all of its deps, to closures.
func (l *Local) Compile(ctx context.Context, p *ir.Program) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	if err := Check(p); err != nil {
		return Handle{}, err
	}
	hash, err := ir.ProgramHash(p)
	if err != nil {
		return Handle{}, err
	}
	h := Handle{Hash: hash, Name: p.Name}

	l.mu.RLock()
	_, ok := l.kernels[hash]
	l.mu.RUnlock()
	if ok {
		return h, nil
	}

	k, err := lower(p, make(map[*ir.Program]*program))
	if err != nil {
		return Handle{}, fmt.Errorf("kernel %s: %w", p.Name, err)
	}

	l.mu.Lock()
	l.kernels[hash] = k
	l.mu.Unlock()
	slog.Debug("kernel compiled", "kernel", h.String(), "deps", len(p.Deps))
	return h, nil
}

// Invoke runs a kernel compiled by l. The offsets are installed into a
// registry private to this invocation.
func (l *Local) Invoke(ctx context.Context, h Handle, operands []Operand, offsets provider.Offsets) ([]Operand, error) {
	l.mu.RLock()
	k, ok := l.kernels[h.Hash]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}

	types := make([]ir.Type, len(k.params))
	for i, p := range k.params {
		types[i] = p.T
	}
	args, err := UnmarshalAll(operands, types)
	if err != nil {
		return nil, fmt.Errorf("kernel %s: %w", k.name, err)
	}

	reg := provider.NewRegistry()
	defer reg.Clear()
	for name, c := range offsets {
		if err := reg.Install(name, c); err != nil {
			return nil, err
		}
	}

	v, err := k.run(ctx, reg, args)
	if err != nil {
		return nil, err
	}
	return Marshal(v), nil
}

// Len returns the number of compiled kernels.
func (l *Local) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.kernels)
}

// program is a lowered ir.Program.
type program struct {
	name    string
	params  []ir.Param
	result  ir.Type
	body    []stmtFn
	offsets map[string]field.Offset
	deps    map[string]*program
}

// env is the state of one kernel invocation: a flat variable scope and
// the registry the remaps resolve against.
type env struct {
	ctx  context.Context
	reg  *provider.Registry
	vars map[string]field.Value
}

type (
	exprFn func(e *env) (field.Value, error)
	argFn  func(e *env) (builtin.Arg, error)
	// stmtFn reports done once the program returned.
	stmtFn func(e *env) (ret field.Value, done bool, err error)
)

func (k *program) run(ctx context.Context, reg *provider.Registry, args []field.Value) (field.Value, error) {
	if len(args) != len(k.params) {
		return nil, &field.ShapeError{
			Code:    field.CodeArgument,
			Message: fmt.Sprintf("%s takes %d arguments, got %d", k.name, len(k.params), len(args)),
		}
	}
	e := &env{ctx: ctx, reg: reg, vars: make(map[string]field.Value, len(args))}
	for i, p := range k.params {
		if err := syntax.CheckValue(p.T, args[i]); err != nil {
			return nil, fmt.Errorf("%s: argument %s: %w", k.name, p.Name, err)
		}
		e.vars[p.Name] = args[i]
	}
	v, done, err := runStmts(e, k.body)
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, fmt.Errorf("%s: kernel did not return", k.name)
	}
	if err := syntax.CheckValue(k.result, v); err != nil {
		return nil, fmt.Errorf("%s: result: %w", k.name, err)
	}
	return v, nil
}

func runStmts(e *env, list []stmtFn) (field.Value, bool, error) {
	for _, s := range list {
		if err := e.ctx.Err(); err != nil {
			return nil, false, err
		}
		v, done, err := s(e)
		if err != nil || done {
			return v, done, err
		}
	}
	return nil, false, nil
}

// lower builds the closure tree for p. Programs shared between several
// callers are lowered once.
func lower(p *ir.Program, seen map[*ir.Program]*program) (*program, error) {
	if k, ok := seen[p]; ok {
		return k, nil
	}
	k := &program{
		name:    p.Name,
		params:  p.Params,
		result:  p.Result,
		offsets: make(map[string]field.Offset, len(p.Offsets)),
		deps:    make(map[string]*program, len(p.Deps)),
	}
	seen[p] = k
	for _, d := range p.Offsets {
		o, err := syntax.OffsetFrom(d)
		if err != nil {
			return nil, fmt.Errorf("offset %s: %w", d.Name, err)
		}
		k.offsets[d.Name] = o
	}
	for name, dep := range p.Deps {
		dk, err := lower(dep, seen)
		if err != nil {
			return nil, fmt.Errorf("dep %s: %w", name, err)
		}
		k.deps[name] = dk
	}
	body, err := k.stmts(p.Body)
	if err != nil {
		return nil, err
	}
	k.body = body
	return k, nil
}

// located prefixes err with the kernel name and source position.
func (k *program) located(loc ir.Loc, err error) error {
	return fmt.Errorf("%s:%s: %w", k.name, loc, err)
}

func (k *program) stmts(list []ir.Stmt) ([]stmtFn, error) {
	out := make([]stmtFn, len(list))
	for i, s := range list {
		fn, err := k.stmt(s)
		if err != nil {
			return nil, err
		}
		out[i] = fn
	}
	return out, nil
}

func (k *program) stmt(s ir.Stmt) (stmtFn, error) {
	switch x := s.(type) {
	case *ir.Assign:
		val, err := k.expr(x.Value)
		if err != nil {
			return nil, err
		}
		name := x.Name
		return func(e *env) (field.Value, bool, error) {
			v, err := val(e)
			if err != nil {
				return nil, false, err
			}
			if name != "_" {
				e.vars[name] = v
			}
			return nil, false, nil
		}, nil
	case *ir.If:
		cond, err := k.expr(x.Cond)
		if err != nil {
			return nil, err
		}
		then, err := k.stmts(x.Then)
		if err != nil {
			return nil, err
		}
		els, err := k.stmts(x.Else)
		if err != nil {
			return nil, err
		}
		loc := x.Loc
		return func(e *env) (field.Value, bool, error) {
			c, err := k.scalarBool(e, cond, loc)
			if err != nil {
				return nil, false, err
			}
			if c {
				return runStmts(e, then)
			}
			return runStmts(e, els)
		}, nil
	case *ir.Return:
		val, err := k.expr(x.Value)
		if err != nil {
			return nil, err
		}
		return func(e *env) (field.Value, bool, error) {
			v, err := val(e)
			return v, err == nil, err
		}, nil
	default:
		return nil, fmt.Errorf("unsupported statement %T", s)
	}
}

func (k *program) scalarBool(e *env, cond exprFn, loc ir.Loc) (bool, error) {
	v, err := cond(e)
	if err != nil {
		return false, err
	}
	f, ok := v.(*field.Field)
	if !ok || !f.IsScalar() || f.DType() != field.Bool {
		return false, k.located(loc, fmt.Errorf("condition must be a scalar bool"))
	}
	s, _ := f.ScalarValue()
	return s != 0, nil
}

func (k *program) exprs(list []ir.Expr) ([]exprFn, error) {
	out := make([]exprFn, len(list))
	for i, x := range list {
		fn, err := k.expr(x)
		if err != nil {
			return nil, err
		}
		out[i] = fn
	}
	return out, nil
}

func evalAll(e *env, fns []exprFn) ([]field.Value, error) {
	vals := make([]field.Value, len(fns))
	for i, fn := range fns {
		v, err := fn(e)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func asField(v field.Value) (*field.Field, error) {
	f, ok := v.(*field.Field)
	if !ok {
		return nil, &field.ShapeError{Code: field.CodeTuple, Message: "want a field, got a tuple"}
	}
	return f, nil
}

func (k *program) expr(x ir.Expr) (exprFn, error) {
	switch n := x.(type) {
	case *ir.Sym:
		name, loc := n.Name, n.Loc
		return func(e *env) (field.Value, error) {
			v, ok := e.vars[name]
			if !ok {
				return nil, k.located(loc, fmt.Errorf("undefined symbol %q", name))
			}
			return v, nil
		}, nil
	case *ir.Literal:
		return k.literal(n)
	case *ir.Unary:
		arg, err := k.expr(n.X)
		if err != nil {
			return nil, err
		}
		return func(e *env) (field.Value, error) {
			v, err := arg(e)
			if err != nil {
				return nil, err
			}
			f, err := asField(v)
			if err != nil {
				return nil, k.located(n.Loc, err)
			}
			r, err := field.Unary(n.Op, f)
			if err != nil {
				return nil, k.located(n.Loc, err)
			}
			return r, nil
		}, nil
	case *ir.Binary:
		lhs, err := k.expr(n.X)
		if err != nil {
			return nil, err
		}
		rhs, err := k.expr(n.Y)
		if err != nil {
			return nil, err
		}
		return func(e *env) (field.Value, error) {
			vals, err := evalAll(e, []exprFn{lhs, rhs})
			if err != nil {
				return nil, err
			}
			r, err := binary(n.Op, vals[0], vals[1])
			if err != nil {
				return nil, k.located(n.Loc, err)
			}
			return r, nil
		}, nil
	case *ir.Logical:
		return k.logical(n)
	case *ir.Call:
		return k.call(n)
	case *ir.OpCall:
		return k.opCall(n)
	case *ir.Remap:
		return k.remap(n)
	case *ir.Convert:
		arg, err := k.expr(n.X)
		if err != nil {
			return nil, err
		}
		dt, err := syntax.DTypeFrom(n.DType)
		if err != nil {
			return nil, k.located(n.Loc, err)
		}
		return func(e *env) (field.Value, error) {
			v, err := arg(e)
			if err != nil {
				return nil, err
			}
			r, err := builtin.Apply("astype", []builtin.Arg{v, dt})
			if err != nil {
				return nil, k.located(n.Loc, err)
			}
			return r, nil
		}, nil
	case *ir.MakeTuple:
		elems, err := k.exprs(n.Elems)
		if err != nil {
			return nil, err
		}
		return func(e *env) (field.Value, error) {
			vals, err := evalAll(e, elems)
			if err != nil {
				return nil, err
			}
			return field.Tuple(vals), nil
		}, nil
	case *ir.TupleGet:
		arg, err := k.expr(n.X)
		if err != nil {
			return nil, err
		}
		return func(e *env) (field.Value, error) {
			v, err := arg(e)
			if err != nil {
				return nil, err
			}
			t, ok := v.(field.Tuple)
			if !ok || n.Index < 0 || n.Index >= len(t) {
				return nil, k.located(n.Loc, &field.ShapeError{
					Code:    field.CodeTuple,
					Message: fmt.Sprintf("no element %d", n.Index),
				})
			}
			return t[n.Index], nil
		}, nil
	case *ir.Cond:
		cond, err := k.expr(n.Cond)
		if err != nil {
			return nil, err
		}
		then, err := k.expr(n.Then)
		if err != nil {
			return nil, err
		}
		els, err := k.expr(n.Else)
		if err != nil {
			return nil, err
		}
		return func(e *env) (field.Value, error) {
			c, err := k.scalarBool(e, cond, n.Loc)
			if err != nil {
				return nil, err
			}
			if c {
				return then(e)
			}
			return els(e)
		}, nil
	case *ir.DimRef:
		return nil, fmt.Errorf("%s: dimension %s used as a value", n.Loc, n.Dim.Name)
	default:
		return nil, fmt.Errorf("unsupported expression %T", x)
	}
}

func binary(op string, x, y field.Value) (*field.Field, error) {
	a, err := asField(x)
	if err != nil {
		return nil, err
	}
	b, err := asField(y)
	if err != nil {
		return nil, err
	}
	return field.Binary(op, a, b)
}

func (k *program) literal(n *ir.Literal) (exprFn, error) {
	_, name, ok := ir.Elem(n.T)
	if !ok {
		return nil, fmt.Errorf("%s: literal of type %v", n.Loc, n.T)
	}
	dt, err := syntax.DTypeFrom(name)
	if err != nil {
		return nil, err
	}
	var v float64
	if dt == field.Bool {
		b, err := strconv.ParseBool(n.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n.Loc, err)
		}
		if b {
			v = 1
		}
	} else if v, err = strconv.ParseFloat(n.Value, 64); err != nil {
		return nil, fmt.Errorf("%s: %w", n.Loc, err)
	}
	f := field.Scalar(v, dt)
	return func(*env) (field.Value, error) { return f, nil }, nil
}

func (k *program) logical(n *ir.Logical) (exprFn, error) {
	lhs, err := k.expr(n.X)
	if err != nil {
		return nil, err
	}
	rhs, err := k.expr(n.Y)
	if err != nil {
		return nil, err
	}
	return func(e *env) (field.Value, error) {
		a, err := k.scalarBool(e, lhs, n.Loc)
		if err != nil {
			return nil, err
		}
		if (n.Op == "and" && !a) || (n.Op == "or" && a) {
			return field.BoolScalar(a), nil
		}
		b, err := k.scalarBool(e, rhs, n.Loc)
		if err != nil {
			return nil, err
		}
		return field.BoolScalar(b), nil
	}, nil
}

func (k *program) call(n *ir.Call) (exprFn, error) {
	args := make([]argFn, len(n.Args))
	for i, a := range n.Args {
		if d, ok := a.(*ir.DimRef); ok {
			dim, err := syntax.DimFrom(d.Dim)
			if err != nil {
				return nil, k.located(d.Loc, err)
			}
			args[i] = func(*env) (builtin.Arg, error) { return dim, nil }
			continue
		}
		fn, err := k.expr(a)
		if err != nil {
			return nil, err
		}
		args[i] = func(e *env) (builtin.Arg, error) { return fn(e) }
	}
	return func(e *env) (field.Value, error) {
		vals := make([]builtin.Arg, len(args))
		for i, a := range args {
			v, err := a(e)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		r, err := builtin.Apply(n.Name, vals)
		if err != nil {
			return nil, k.located(n.Loc, err)
		}
		return r, nil
	}, nil
}

func (k *program) opCall(n *ir.OpCall) (exprFn, error) {
	dep, ok := k.deps[n.Op]
	if !ok {
		return nil, fmt.Errorf("%s: nested operator %q is not in deps", n.Loc, n.Op)
	}
	args, err := k.exprs(n.Args)
	if err != nil {
		return nil, err
	}
	return func(e *env) (field.Value, error) {
		vals, err := evalAll(e, args)
		if err != nil {
			return nil, err
		}
		r, err := dep.run(e.ctx, e.reg, vals)
		if err != nil {
			return nil, k.located(n.Loc, err)
		}
		return r, nil
	}, nil
}

func (k *program) remap(n *ir.Remap) (exprFn, error) {
	off, ok := k.offsets[n.Offset]
	if !ok {
		return nil, fmt.Errorf("%s: offset %q is not declared", n.Loc, n.Offset)
	}
	arg, err := k.expr(n.X)
	if err != nil {
		return nil, err
	}
	return func(e *env) (field.Value, error) {
		v, err := arg(e)
		if err != nil {
			return nil, err
		}
		f, err := asField(v)
		if err != nil {
			return nil, k.located(n.Loc, err)
		}
		conn, ok := e.reg.Lookup(off.Name)
		if !ok {
			return nil, k.located(n.Loc, &field.DimensionMismatch{
				Offset:  off.Name,
				Message: fmt.Sprintf("no connectivity bound (have %v)", e.reg.Names()),
			})
		}
		if err := conn.Compatible(off); err != nil {
			return nil, k.located(n.Loc, err)
		}
		r, err := field.Remap(f, off, conn, n.Index)
		if err != nil {
			return nil, k.located(n.Loc, err)
		}
		return r, nil
	}, nil
}
