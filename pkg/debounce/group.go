package debounce

import (
	"sync"
	"time"
)

// Group runs an independent debouncer per key. Entries disappear once fired.
type Group[K comparable, T any] struct {
	delay time.Duration
	fn    func(K, T)
	merge func(prev, next T) T
	after TimerFunc

	mu      sync.Mutex
	entries map[K]*groupEntry[T]
	stopped bool
	running sync.WaitGroup
}

type groupEntry[T any] struct {
	timer   Timer
	payload T
	gen     uint64
}

// NewGroup creates a keyed debouncer. merge, when non-nil, combines the
// pending payload with a new one; otherwise the newest payload wins.
func NewGroup[K comparable, T any](delay time.Duration, fn func(K, T), merge func(prev, next T) T, opts ...Option) *Group[K, T] {
	c := newConfig(opts)
	return &Group[K, T]{
		delay:   delay,
		fn:      fn,
		merge:   merge,
		after:   c.after,
		entries: make(map[K]*groupEntry[T]),
	}
}

// Add schedules v under key. It returns false once the group is stopped.
func (g *Group[K, T]) Add(key K, v T) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return false
	}

	e, ok := g.entries[key]
	if ok {
		e.timer.Stop()
		if g.merge != nil {
			v = g.merge(e.payload, v)
		}
	} else {
		e = &groupEntry[T]{}
		g.entries[key] = e
	}
	e.payload = v
	e.gen++
	gen := e.gen
	e.timer = g.after(g.delay, func() { g.fire(key, gen) })
	return true
}

// Len returns the number of keys with a pending payload.
func (g *Group[K, T]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

// Stop drops every pending payload and waits up to timeout for running
// callbacks. It reports whether they all finished in time.
func (g *Group[K, T]) Stop(timeout time.Duration) bool {
	g.mu.Lock()
	g.stopped = true
	for k, e := range g.entries {
		e.timer.Stop()
		delete(g.entries, k)
	}
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (g *Group[K, T]) fire(key K, gen uint64) {
	g.mu.Lock()
	e, ok := g.entries[key]
	if !ok || e.gen != gen || g.stopped {
		g.mu.Unlock()
		return
	}
	delete(g.entries, key)
	g.running.Add(1)
	g.mu.Unlock()

	defer g.running.Done()
	g.fn(key, e.payload)
}
