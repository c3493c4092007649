// Package events provides an ordered, failure-isolating event dispatcher.
//
// A Dispatcher maps an event kind to the handlers registered for it. Emit
// invokes them one at a time in registration order, waiting for each to
// return before calling the next. A handler that returns an error or panics
// is logged and skipped; the remaining handlers still run and Emit never
// reports the failure to its caller.
//
// Registering the same handler twice runs it twice per emission.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/rileyhilliard/connmon/internal/logger"
)

// Handler processes one event. A handler may block; the dispatcher waits for it.
type Handler[E any] func(ctx context.Context, ev E) error

// Dispatcher is a registry of handlers keyed by event kind.
// It is safe for concurrent Register and Emit calls.
type Dispatcher[K comparable, E any] struct {
	name     string
	log      logger.Logger
	mu       sync.RWMutex
	handlers map[K][]Handler[E]
}

// NewDispatcher creates an empty dispatcher. name tags log output so the
// lifecycle and consumer registries can be told apart.
func NewDispatcher[K comparable, E any](name string, log logger.Logger) *Dispatcher[K, E] {
	return &Dispatcher[K, E]{
		name:     name,
		log:      logger.OrDefault(log),
		handlers: make(map[K][]Handler[E]),
	}
}

// Register appends h to the handlers for kind. Nil handlers are ignored.
func (d *Dispatcher[K, E]) Register(kind K, h Handler[E]) {
	if h == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], h)
}

// Count returns how many handlers are registered for kind.
func (d *Dispatcher[K, E]) Count(kind K) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[kind])
}

// Emit delivers ev to every handler registered for kind, in order, and
// returns how many of them failed.
func (d *Dispatcher[K, E]) Emit(ctx context.Context, kind K, ev E) int {
	d.mu.RLock()
	hs := make([]Handler[E], len(d.handlers[kind]))
	copy(hs, d.handlers[kind])
	d.mu.RUnlock()

	failed := 0
	for i, h := range hs {
		if err := d.invoke(ctx, h, ev); err != nil {
			failed++
			d.log.Error("%s: handler %d for %v failed: %v", d.name, i, kind, err)
		}
	}
	return failed
}

func (d *Dispatcher[K, E]) invoke(ctx context.Context, h Handler[E], ev E) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, ev)
}
