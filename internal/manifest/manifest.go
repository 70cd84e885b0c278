package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"go.uber.org/multierr"

	"github.com/roach88/fieldop/internal/field"
	"github.com/roach88/fieldop/internal/provider"
	"github.com/roach88/fieldop/internal/syntax"
)

//go:embed schema.cue
var schemaSource string

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Manifest is a loaded manifest. Fields and connectivities are shared by
// every run and must be treated as read-only.
type Manifest struct {
	Dimensions     map[string]field.Dimension
	Offsets        map[string]field.Offset
	Connectivities provider.Offsets
	Constants      map[string]any // float64, int64 or bool
	Fields         map[string]*field.Field
	Operators      map[string]*syntax.Operator

	// Runs are sorted by name.
	Runs []*Run

	// FileCount is the number of CUE files loaded.
	FileCount int
}

// Run is one operator call described by a manifest.
type Run struct {
	Name     string
	Operator *syntax.Operator
	Args     []field.Value
	Backend  string // empty means the runtime default
	Domain   field.Domain
	Offsets  provider.Offsets

	out   []*field.Field
	tuple bool
}

// NewOut returns a fresh out value for the run: zero-initialized unless the
// manifest gave data, a fill or a ramp.
func (r *Run) NewOut() field.Value {
	if !r.tuple {
		return r.out[0].Clone()
	}
	t := make(field.Tuple, len(r.out))
	for i, f := range r.out {
		t[i] = f.Clone()
	}
	return t
}

// Run returns the run called name.
func (m *Manifest) Run(name string) (*Run, bool) {
	for _, r := range m.Runs {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// Env returns the names an operator definition can capture.
func (m *Manifest) Env() syntax.Env {
	env := make(syntax.Env, len(m.Dimensions)+len(m.Offsets)+len(m.Constants)+len(m.Operators))
	for n, d := range m.Dimensions {
		env[n] = d
	}
	for n, o := range m.Offsets {
		env[n] = o
	}
	for n, c := range m.Constants {
		env[n] = c
	}
	for n, op := range m.Operators {
		env[n] = op
	}
	return env
}

// Load loads the CUE package in dir.
//
// In LoadModeFailFast the first problem is returned. In LoadModeCollectAll
// every independent problem is collected; use Errors to split them. The
// returned manifest is nil whenever err is non-nil.
func Load(dir string, mode LoadMode) (*Manifest, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("manifest directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing manifest directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	if inst := instances[0]; inst.Err != nil {
		return nil, cueError(ErrCodeLoadFailed, inst.Err)
	}

	cctx := cuecontext.New()
	value := cctx.BuildInstance(instances[0])
	if err := value.Err(); err != nil {
		return nil, cueError(ErrCodeBuildFailed, err)
	}

	m, err := decode(cctx, value, dir, mode)
	if err != nil {
		return nil, err
	}
	m.FileCount = len(files)
	return m, nil
}

// LoadSource loads a manifest from CUE source text. Operators may not use
// file references, which are relative to a manifest directory.
func LoadSource(filename, src string, mode LoadMode) (*Manifest, error) {
	cctx := cuecontext.New()
	value := cctx.CompileString(src, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, cueError(ErrCodeBuildFailed, err)
	}
	m, err := decode(cctx, value, "", mode)
	if err != nil {
		return nil, err
	}
	m.FileCount = 1
	return m, nil
}

// loader decodes the sections of one manifest value.
type loader struct {
	m    *Manifest
	dir  string
	mode LoadMode
	errs error
}

func (l *loader) fail(err error) {
	l.errs = multierr.Append(l.errs, err)
}

// stopped reports whether loading must stop.
func (l *loader) stopped() bool {
	return l.errs != nil && l.mode == LoadModeFailFast
}

func decode(cctx *cue.Context, value cue.Value, dir string, mode LoadMode) (*Manifest, error) {
	schema := cctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Manifest"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("manifest schema: %w", err)
	}
	value = schema.Unify(value)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, cueError(ErrCodeBuildFailed, err)
	}

	l := &loader{
		dir:  dir,
		mode: mode,
		m: &Manifest{
			Dimensions:     make(map[string]field.Dimension),
			Offsets:        make(map[string]field.Offset),
			Connectivities: make(provider.Offsets),
			Constants:      make(map[string]any),
			Fields:         make(map[string]*field.Field),
			Operators:      make(map[string]*syntax.Operator),
		},
	}
	sections := []struct {
		name string
		fn   func(name string, v cue.Value)
	}{
		{"dimension", l.dimension},
		{"offset", l.offset},
		{"connectivity", l.connectivity},
		{"constant", l.constant},
		{"field", l.field},
	}
	for _, s := range sections {
		l.each(value, s.name, s.fn)
		if l.stopped() {
			return nil, l.errs
		}
	}
	l.operators(value)
	if l.stopped() {
		return nil, l.errs
	}
	l.each(value, "run", l.run)
	if l.errs != nil {
		return nil, l.errs
	}
	sort.Slice(l.m.Runs, func(i, j int) bool { return l.m.Runs[i].Name < l.m.Runs[j].Name })
	return l.m, nil
}

// each calls fn for every entry of a top-level section, in label order.
func (l *loader) each(value cue.Value, section string, fn func(name string, v cue.Value)) {
	sv := value.LookupPath(cue.ParsePath(section))
	if !sv.Exists() {
		return
	}
	iter, err := sv.Fields()
	if err != nil {
		l.fail(cueError(ErrCodeGeneric, err))
		return
	}
	type entry struct {
		name string
		v    cue.Value
	}
	var entries []entry
	for iter.Next() {
		entries = append(entries, entry{iter.Label(), iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	for _, e := range entries {
		fn(e.name, e.v)
		if l.stopped() {
			return
		}
	}
}

// errorf builds a LoadError positioned at v.
func errorf(code string, v cue.Value, format string, args ...any) *LoadError {
	return &LoadError{
		Code:    code,
		Path:    v.Path().String(),
		Message: fmt.Sprintf(format, args...),
		Pos:     v.Pos(),
	}
}

func (l *loader) dimension(name string, v cue.Value) {
	var spec dimensionSpec
	if err := v.Decode(&spec); err != nil {
		l.fail(cueError(ErrCodeDimension, err))
		return
	}
	kind, err := field.ParseDimKind(spec.Kind)
	if err != nil {
		l.fail(errorf(ErrCodeDimension, v, "%v", err))
		return
	}
	l.m.Dimensions[name] = field.NewDimension(name, kind)
}

func (l *loader) dim(v cue.Value, name string) (field.Dimension, bool) {
	d, ok := l.m.Dimensions[name]
	if !ok {
		l.fail(errorf(ErrCodeUndefined, v, "undefined dimension %q", name))
	}
	return d, ok
}

func (l *loader) offset(name string, v cue.Value) {
	var spec offsetSpec
	if err := v.Decode(&spec); err != nil {
		l.fail(cueError(ErrCodeOffset, err))
		return
	}
	source, ok := l.dim(v, spec.Source)
	if !ok {
		return
	}
	targets := make([]field.Dimension, len(spec.Targets))
	for i, t := range spec.Targets {
		if targets[i], ok = l.dim(v, t); !ok {
			return
		}
	}
	o, err := field.NewOffset(name, source, targets...)
	if err != nil {
		l.fail(errorf(ErrCodeOffset, v, "%v", err))
		return
	}
	l.m.Offsets[name] = o
}

func (l *loader) connectivity(name string, v cue.Value) {
	var spec connectivitySpec
	if err := v.Decode(&spec); err != nil {
		l.fail(cueError(ErrCodeConnectivity, err))
		return
	}
	o, ok := l.m.Offsets[name]
	if !ok {
		l.fail(errorf(ErrCodeUndefined, v, "connectivity for undefined offset %q", name))
		return
	}
	c, err := field.NewConnectivity(spec.Table, o.Source, o.Target(), spec.MaxNeighbors)
	if err == nil && spec.SourceSize != nil {
		err = c.Validate(*spec.SourceSize)
	}
	if err != nil {
		l.fail(errorf(ErrCodeConnectivity, v, "%v", err))
		return
	}
	l.m.Connectivities[name] = c
}

func (l *loader) constant(name string, v cue.Value) {
	var (
		c   any
		err error
	)
	switch v.Kind() {
	case cue.BoolKind:
		c, err = v.Bool()
	case cue.IntKind:
		c, err = v.Int64()
	default:
		c, err = v.Float64()
	}
	if err != nil {
		l.fail(cueError(ErrCodeGeneric, err))
		return
	}
	l.m.Constants[name] = c
}

func (l *loader) field(name string, v cue.Value) {
	f, ok := l.buildField(v)
	if ok {
		l.m.Fields[name] = f
	}
}

func (l *loader) buildField(v cue.Value) (*field.Field, bool) {
	var spec fieldSpec
	if err := v.Decode(&spec); err != nil {
		l.fail(cueError(ErrCodeField, err))
		return nil, false
	}
	dims := make([]field.Dimension, len(spec.Dims))
	for i, n := range spec.Dims {
		var ok bool
		if dims[i], ok = l.dim(v, n); !ok {
			return nil, false
		}
	}
	f, err := spec.build(dims)
	if err != nil {
		l.fail(errorf(ErrCodeField, v, "%v", err))
		return nil, false
	}
	return f, true
}

func (l *loader) run(name string, v cue.Value) {
	var spec runSpec
	if err := v.Decode(&spec); err != nil {
		l.fail(cueError(ErrCodeRun, err))
		return
	}
	r := &Run{Name: name, Backend: spec.Backend}

	var ok bool
	if r.Operator, ok = l.m.Operators[spec.Operator]; !ok {
		l.fail(errorf(ErrCodeUndefined, v, "undefined operator %q", spec.Operator))
		return
	}
	if len(spec.Args) != len(r.Operator.Params) {
		l.fail(errorf(ErrCodeRun, v, "operator %s takes %d arguments, run passes %d", spec.Operator, len(r.Operator.Params), len(spec.Args)))
		return
	}
	for _, a := range spec.Args {
		arg, ok := l.arg(a)
		if !ok {
			l.fail(errorf(ErrCodeUndefined, v, "undefined field or constant %q", a))
			return
		}
		r.Args = append(r.Args, arg)
	}

	out := v.LookupPath(cue.ParsePath("out"))
	if out.IncompleteKind() == cue.ListKind {
		r.tuple = true
		iter, err := out.List()
		if err != nil {
			l.fail(cueError(ErrCodeRun, err))
			return
		}
		for iter.Next() {
			f, ok := l.buildField(iter.Value())
			if !ok {
				return
			}
			r.out = append(r.out, f)
		}
	} else {
		f, ok := l.buildField(out)
		if !ok {
			return
		}
		r.out = []*field.Field{f}
	}

	if len(spec.Domain) > 0 {
		r.Domain = make(field.Domain, len(spec.Domain))
		for n, bounds := range spec.Domain {
			d, ok := l.dim(v, n)
			if !ok {
				return
			}
			if len(bounds) != 2 {
				l.fail(errorf(ErrCodeRun, v, "domain %s: want [start, end], got %v", n, bounds))
				return
			}
			r.Domain[d] = field.Range{Start: bounds[0], End: bounds[1]}
		}
	}

	if spec.Offsets == nil {
		r.Offsets = make(provider.Offsets, len(l.m.Connectivities))
		for n, c := range l.m.Connectivities {
			r.Offsets[n] = c
		}
	} else {
		r.Offsets = make(provider.Offsets, len(spec.Offsets))
		for _, n := range spec.Offsets {
			c, ok := l.m.Connectivities[n]
			if !ok {
				l.fail(errorf(ErrCodeUndefined, v, "no connectivity for offset %q", n))
				return
			}
			r.Offsets[n] = c
		}
	}
	l.m.Runs = append(l.m.Runs, r)
}

// arg resolves a run argument: a field, or a constant passed as a scalar.
func (l *loader) arg(name string) (field.Value, bool) {
	if f, ok := l.m.Fields[name]; ok {
		return f, true
	}
	switch c := l.m.Constants[name].(type) {
	case float64:
		return field.Scalar(c, field.Float64), true
	case int64:
		return field.Scalar(float64(c), field.Int64), true
	case bool:
		return field.BoolScalar(c), true
	}
	return nil, false
}
