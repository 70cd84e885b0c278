package compiler

import (
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/fieldop/internal/ir"
	"github.com/roach88/fieldop/internal/syntax"
)

// Cache memoizes translations by operator identity. Translated programs are
// shared between callers and must not be modified.
//
// Thread-safety: All methods are safe for concurrent use. Two goroutines
// missing on the same operator may both translate it; the first result
// stored wins.
type Cache struct {
	mu     sync.Mutex
	progs  map[uuid.UUID]*ir.Program
	hits   int
	misses int
}

// DefaultCache is the process-wide translation cache.
var DefaultCache = NewCache()

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{progs: make(map[uuid.UUID]*ir.Program)}
}

// Translate returns the IR of op, translating it on first use. Nested
// operators are translated through the same cache.
func (c *Cache) Translate(op *syntax.Operator) (*ir.Program, error) {
	c.mu.Lock()
	if p, ok := c.progs[op.ID]; ok {
		c.hits++
		c.mu.Unlock()
		return p, nil
	}
	c.misses++
	c.mu.Unlock()

	p, err := translate(c, op)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.progs[op.ID]; ok {
		return prev, nil
	}
	c.progs[op.ID] = p
	return p, nil
}

// Stats returns the number of cache hits and misses so far.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len returns the number of cached programs.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.progs)
}

// Reset drops every cached program and zeroes the counters.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.progs)
	c.hits, c.misses = 0, 0
}

// Translate lowers op to IR through DefaultCache.
func Translate(op *syntax.Operator) (*ir.Program, error) {
	return DefaultCache.Translate(op)
}
