package manifest

import (
	"go/scanner"
	gotoken "go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/fieldop/internal/syntax"
)

// pendingOperator is an operator entry read but not yet defined.
type pendingOperator struct {
	name     string
	filename string
	src      string
	v        cue.Value
	calls    []string // other manifest operators the source mentions
}

// operators defines every operator entry. An operator is defined after the
// operators it mentions, so that they can be captured.
func (l *loader) operators(value cue.Value) {
	pending := make(map[string]*pendingOperator)
	l.each(value, "operator", func(name string, v cue.Value) {
		var spec operatorSpec
		if err := v.Decode(&spec); err != nil {
			l.fail(cueError(ErrCodeOperator, err))
			return
		}
		p := &pendingOperator{name: name, v: v}
		switch {
		case spec.Source != "" && spec.File != "":
			l.fail(errorf(ErrCodeOperator, v, "source and file are mutually exclusive"))
			return
		case spec.Source != "":
			p.filename, p.src = name+".go", spec.Source
		case spec.File != "":
			if l.dir == "" {
				l.fail(errorf(ErrCodeOperator, v, "file %q: no manifest directory to resolve it against", spec.File))
				return
			}
			p.filename = filepath.Join(l.dir, spec.File)
			data, err := os.ReadFile(p.filename)
			if err != nil {
				l.fail(errorf(ErrCodeOperator, v, "%v", err))
				return
			}
			p.src = string(data)
		default:
			l.fail(errorf(ErrCodeOperator, v, "one of source or file is required"))
			return
		}
		pending[name] = p
	})
	if l.stopped() {
		return
	}

	for _, p := range pending {
		for id := range identifiers(p.src) {
			if _, ok := pending[id]; ok {
				p.calls = append(p.calls, id)
			}
		}
		sort.Strings(p.calls)
	}

	names := make([]string, 0, len(pending))
	for n := range pending {
		names = append(names, n)
	}
	sort.Strings(names)

	state := make(map[string]int) // 1 visiting, 2 done
	var visit func(name string, path []string) bool
	visit = func(name string, path []string) bool {
		switch state[name] {
		case 1:
			p := pending[name]
			cycle := append(append([]string(nil), path[indexOf(path, name):]...), name)
			l.fail(errorf(ErrCodeOperator, p.v, "operator cycle: %s", strings.Join(cycle, " → ")))
			return false
		case 2:
			_, ok := l.m.Operators[name]
			return ok
		}
		state[name] = 1
		p := pending[name]
		ok := true
		for _, c := range p.calls {
			if c == name {
				// A func mentioning its own name is a recursive call.
				l.fail(errorf(ErrCodeOperator, p.v, "operator cycle: %s → %s", name, name))
				ok = false
				break
			}
			if !visit(c, append(path, name)) {
				ok = false
				break
			}
		}
		state[name] = 2
		if ok {
			ok = l.define(p)
		}
		return ok
	}
	for _, n := range names {
		if state[n] == 0 {
			visit(n, nil)
		}
		if l.stopped() {
			return
		}
	}
}

func (l *loader) define(p *pendingOperator) bool {
	op, err := syntax.DefineFile(p.filename, p.src, l.m.Env())
	if err != nil {
		l.fail(&LoadError{Code: ErrCodeOperator, Path: p.v.Path().String(), Message: err.Error(), Pos: p.v.Pos(), Err: err})
		return false
	}
	if op.Name != p.name {
		l.fail(errorf(ErrCodeOperator, p.v, "func is named %s, manifest entry is %s", op.Name, p.name))
		return false
	}
	l.m.Operators[p.name] = op
	return true
}

// identifiers returns the identifiers appearing in Go source text, except
// for declared func names. A source that does not scan cleanly still
// yields what was scanned; Define reports the syntax error.
func identifiers(src string) map[string]bool {
	fset := gotoken.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))
	var s scanner.Scanner
	s.Init(file, []byte(src), nil, 0)

	ids := make(map[string]bool)
	prev := gotoken.ILLEGAL
	for {
		_, tok, lit := s.Scan()
		if tok == gotoken.EOF {
			return ids
		}
		if tok == gotoken.IDENT && prev != gotoken.FUNC {
			ids[lit] = true
		}
		prev = tok
	}
}

func indexOf(path []string, name string) int {
	for i, p := range path {
		if p == name {
			return i
		}
	}
	return 0
}
