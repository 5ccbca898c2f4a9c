// Package view holds the latest view snapshot and notifies observers when it
// changes.
package view

import (
	"sync"
	"sync/atomic"
)

// Cell is a shared slot holding the most recent view. Readers never block
// writers: Load returns whatever snapshot was stored last. Store replaces the
// snapshot and then calls every subscriber, in subscription order, on the
// storing goroutine.
type Cell[V any] struct {
	current atomic.Pointer[V]

	mu     sync.Mutex
	nextID uint64
	subs   []subscriber[V]
}

type subscriber[V any] struct {
	id uint64
	fn func(V)
}

// NewCell returns a cell holding initial.
func NewCell[V any](initial V) *Cell[V] {
	c := &Cell[V]{}
	c.current.Store(&initial)
	return c
}

// Load returns the current snapshot. A cell created with new(Cell[V]) returns
// the zero V until the first Store.
func (c *Cell[V]) Load() V {
	if p := c.current.Load(); p != nil {
		return *p
	}
	var zero V
	return zero
}

// Store swaps in v and notifies subscribers synchronously. Subscribers must
// not call Subscribe or the returned cancel function from inside fn.
func (c *Cell[V]) Store(v V) {
	c.current.Store(&v)

	c.mu.Lock()
	subs := make([]subscriber[V], len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Subscribe registers fn to be called after every Store. The returned
// function removes the subscription; calling it more than once is harmless.
func (c *Cell[V]) Subscribe(fn func(V)) (cancel func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscriber[V]{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, s := range c.subs {
				if s.id == id {
					c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
					return
				}
			}
		})
	}
}
