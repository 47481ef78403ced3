package search

import (
	"sync"
	"time"
)

// DefaultQuietPeriod is the idle time after the last input before a query fires
const DefaultQuietPeriod = 150 * time.Millisecond

// Debouncer calls fire with the latest value once no new value has arrived for the
// quiet period. A newer Trigger supersedes the pending one.
type Debouncer[V any] struct {
	quiet time.Duration
	fire  func(V)

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64
	pending    V
	hasPending bool
	stopped    bool
}

// NewDebouncer creates a debouncer. A non-positive quiet period uses DefaultQuietPeriod.
func NewDebouncer[V any](quiet time.Duration, fire func(V)) *Debouncer[V] {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Debouncer[V]{quiet: quiet, fire: fire}
}

// Trigger records value and restarts the quiet period
func (d *Debouncer[V]) Trigger(value V) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.generation++
	d.pending = value
	d.hasPending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.generation
	d.timer = time.AfterFunc(d.quiet, func() { d.expire(gen) })
}

// expire fires only if no Trigger happened after the timer for gen was armed.
// A timer that already started running when Stop was called lands here with an old gen.
func (d *Debouncer[V]) expire(gen uint64) {
	d.mu.Lock()
	if gen != d.generation || !d.hasPending || d.stopped {
		d.mu.Unlock()
		return
	}
	value := d.pending
	d.hasPending = false
	var zero V
	d.pending = zero
	d.mu.Unlock()

	d.fire(value)
}

// Flush fires the pending value immediately, if any
func (d *Debouncer[V]) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.generation++
	gen := d.generation
	d.mu.Unlock()
	d.expire(gen)
}

// Pending reports whether a value is waiting for the quiet period to end
func (d *Debouncer[V]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasPending
}

// Stop drops any pending value. Later Triggers are ignored.
func (d *Debouncer[V]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.hasPending = false
	if d.timer != nil {
		d.timer.Stop()
	}
}
