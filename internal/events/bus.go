// Package events provides a small prioritized event bus.
package events

import (
	"context"
	"sort"
	"sync"
)

// DefaultPriority is used when a listener is registered without priority.
const DefaultPriority = 1000

// Listener handles an emitted event. Returning an error stops propagation and
// is returned from Emit.
type Listener func(ctx context.Context, data any) error

type registration struct {
	id       uint64
	priority int
	once     bool
	fn       Listener
}

// Bus dispatches events to listeners in descending priority order; listeners
// with equal priority run in registration order. Listeners run sequentially
// on the emitting goroutine.
type Bus struct {
	mu        sync.Mutex
	seq       uint64
	listeners map[string][]registration
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[string][]registration)}
}

// On registers fn for event. An optional priority overrides DefaultPriority.
// The returned function removes the listener.
func (b *Bus) On(event string, fn Listener, priority ...int) func() {
	return b.add(event, fn, false, priority)
}

// Once registers fn to run at most once.
func (b *Bus) Once(event string, fn Listener, priority ...int) func() {
	return b.add(event, fn, true, priority)
}

func (b *Bus) add(event string, fn Listener, once bool, priority []int) func() {
	p := DefaultPriority
	if len(priority) > 0 {
		p = priority[0]
	}
	b.mu.Lock()
	b.seq++
	reg := registration{id: b.seq, priority: p, once: once, fn: fn}
	regs := append(b.listeners[event], reg)
	sort.SliceStable(regs, func(i, j int) bool { return regs[i].priority > regs[j].priority })
	b.listeners[event] = regs
	b.mu.Unlock()
	return func() { _ = b.remove(event, reg.id) }
}

// remove drops the registration with id and reports whether it was still
// registered.
func (b *Bus) remove(event string, id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	regs := b.listeners[event]
	for i, reg := range regs {
		if reg.id == id {
			b.listeners[event] = append(regs[:i:i], regs[i+1:]...)
			return true
		}
	}
	return false
}

// Emit invokes the listeners of event with data.
func (b *Bus) Emit(ctx context.Context, event string, data any) error {
	b.mu.Lock()
	regs := append([]registration(nil), b.listeners[event]...)
	b.mu.Unlock()

	for _, reg := range regs {
		// a once listener runs only for the Emit that unregisters it
		if reg.once && !b.remove(event, reg.id) {
			continue
		}
		if err := reg.fn(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of listeners registered for event.
func (b *Bus) Count(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[event])
}
