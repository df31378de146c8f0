package debounce

import (
	"sync"
	"time"
)

type config struct {
	after TimerFunc
}

// Option configures a Debouncer or a Group.
type Option func(*config)

// WithTimerFunc replaces time.AfterFunc, typically with ManualClock.AfterFunc.
func WithTimerFunc(fn TimerFunc) Option {
	return func(c *config) {
		if fn != nil {
			c.after = fn
		}
	}
}

func newConfig(opts []Option) config {
	c := config{after: realAfter}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Debouncer delays calls to fn until delay has passed without a new Schedule.
// It never inspects what fn does; errors belong to fn.
type Debouncer[T any] struct {
	delay time.Duration
	fn    func(T)
	after TimerFunc

	mu      sync.Mutex
	timer   Timer
	payload T
	pending bool
	gen     uint64
	stopped bool
	running sync.WaitGroup
}

// New creates a Debouncer that calls fn with the last scheduled payload.
func New[T any](delay time.Duration, fn func(T), opts ...Option) *Debouncer[T] {
	c := newConfig(opts)
	return &Debouncer[T]{
		delay: delay,
		fn:    fn,
		after: c.after,
	}
}

// Delay returns the configured quiet period.
func (d *Debouncer[T]) Delay() time.Duration {
	return d.delay
}

// Schedule records v as the pending payload and restarts the delay.
// It is a no-op after Stop.
func (d *Debouncer[T]) Schedule(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.payload = v
	d.pending = true
	d.timer = d.after(d.delay, func() { d.fire(gen) })
}

// Cancel drops the pending payload without calling fn.
// It reports whether a payload was pending.
func (d *Debouncer[T]) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clearLocked()
}

// Flush runs fn immediately on the calling goroutine with the pending
// payload, if any. It reports whether fn ran.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if !d.pending || d.stopped {
		d.mu.Unlock()
		return false
	}
	v := d.payload
	d.clearLocked()
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	d.fn(v)
	return true
}

// Pending reports whether a payload is waiting for its timer.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop cancels the pending payload, refuses further schedules and waits
// for a callback that is already running. It must not be called from fn.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	d.clearLocked()
	d.stopped = true
	d.mu.Unlock()

	d.running.Wait()
}

func (d *Debouncer[T]) clearLocked() bool {
	was := d.pending
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	var zero T
	d.payload = zero
	d.pending = false
	// A timer that already fired but has not taken the lock yet sees a new
	// generation and drops itself.
	d.gen++
	return was
}

func (d *Debouncer[T]) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.pending || d.stopped {
		d.mu.Unlock()
		return
	}
	v := d.payload
	var zero T
	d.payload = zero
	d.pending = false
	d.timer = nil
	d.running.Add(1)
	d.mu.Unlock()

	defer d.running.Done()
	d.fn(v)
}
