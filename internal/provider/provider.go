// Package provider holds the offset-provider registry: the name to
// Connectivity table that indexed transforms resolve offsets through.
//
// A registry lives for exactly one outer operator call. The engine acquires
// a scope at outer-call entry, which stores a fresh Registry in the call's
// context.Context, and releases it on every exit path. Nested calls see the
// registry through the context they are handed; independent outer calls on
// different contexts never share one.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/fieldop/internal/field"
)

// Offsets maps offset names to the connectivities that realize them. It is
// what callers pass as the offset provider of an outer call.
type Offsets map[string]*field.Connectivity

// ErrScopeActive is returned by Acquire when ctx already carries a scope.
var ErrScopeActive = errors.New("offset-provider scope already active")

// ErrReleased is returned when installing into a released registry.
var ErrReleased = errors.New("offset-provider registry released")

// Registry is the connectivity table of one outer call.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*field.Connectivity
	released bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*field.Connectivity)}
}

// Install registers c under name, replacing any previous entry.
func (r *Registry) Install(name string, c *field.Connectivity) error {
	if c == nil {
		return fmt.Errorf("offset %q: nil connectivity", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	r.conns[name] = c
	return nil
}

// Lookup returns the connectivity registered under name.
func (r *Registry) Lookup(name string) (*field.Connectivity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[name]
	return c, ok
}

// Len returns the number of registered offsets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Names returns the registered offset names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.conns))
	for n := range r.conns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the table for marshaling to a kernel backend.
func (r *Registry) Snapshot() Offsets {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(Offsets, len(r.conns))
	for n, c := range r.conns {
		out[n] = c
	}
	return out
}

// Clear empties the registry and rejects further installs.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.conns)
	r.released = true
}

// key is an unexported type to prevent collisions with context keys from
// other packages.
type key struct{}

var registryKey = key{}

// FromContext returns the registry of the active scope, or nil outside an
// outer call.
func FromContext(ctx context.Context) *Registry {
	r, _ := ctx.Value(registryKey).(*Registry)
	return r
}

// Active reports whether ctx is inside an outer call.
func Active(ctx context.Context) bool {
	return FromContext(ctx) != nil
}

// Acquire opens a scope: it returns a context carrying a new registry
// populated from offsets, and a release function that clears it. Release
// is idempotent and must be deferred by the caller.
func Acquire(ctx context.Context, offsets Offsets) (context.Context, *Registry, func(), error) {
	if Active(ctx) {
		return ctx, nil, func() {}, ErrScopeActive
	}
	reg := NewRegistry()
	var once sync.Once
	release := func() { once.Do(reg.Clear) }
	for _, name := range sortedNames(offsets) {
		if err := reg.Install(name, offsets[name]); err != nil {
			release()
			return ctx, nil, func() {}, err
		}
	}
	return context.WithValue(ctx, registryKey, reg), reg, release, nil
}

// Resolve returns the connectivity registered for o in the scope of ctx,
// checking that it realizes o.
func Resolve(ctx context.Context, o field.Offset) (*field.Connectivity, error) {
	reg := FromContext(ctx)
	if reg == nil {
		return nil, &field.DimensionMismatch{Offset: o.Name, Message: "no offset provider in scope"}
	}
	c, ok := reg.Lookup(o.Name)
	if !ok {
		return nil, &field.DimensionMismatch{
			Offset:  o.Name,
			Message: fmt.Sprintf("no connectivity registered (have %v)", reg.Names()),
		}
	}
	if err := c.Compatible(o); err != nil {
		return nil, err
	}
	return c, nil
}

func sortedNames(offsets Offsets) []string {
	names := make([]string, 0, len(offsets))
	for n := range offsets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
