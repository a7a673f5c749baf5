// Package debounce provides a value that settles only after it stops changing.
package debounce

import (
	"sync"
	"time"
)

// Value holds a debounced value. Set restarts the quiet period; the value
// settles, and onSettle fires, only once delay has elapsed with no further Set.
type Value[T any] struct {
	delay    time.Duration
	onSettle func(T)

	mu         sync.Mutex
	settled    T
	pending    T
	hasPending bool
	timer      *time.Timer
	gen        uint64
	stopped    bool
}

// New creates a debounced value. onSettle may be nil.
func New[T any](initial T, delay time.Duration, onSettle func(T)) *Value[T] {
	return &Value[T]{
		delay:    delay,
		onSettle: onSettle,
		settled:  initial,
	}
}

// Set records v as the pending value and restarts the delay.
func (d *Value[T]) Set(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.pending = v
	d.hasPending = true
	d.gen++
	gen := d.gen

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Value returns the last settled value.
func (d *Value[T]) Value() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settled
}

// Pending reports whether a value is waiting to settle.
func (d *Value[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hasPending
}

// Flush settles the pending value immediately, if any.
func (d *Value[T]) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	v, ok := d.settleLocked()
	d.mu.Unlock()

	if ok && d.onSettle != nil {
		d.onSettle(v)
	}
}

// Stop drops any pending value. Further Set calls are ignored.
func (d *Value[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.hasPending = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Value[T]) fire(gen uint64) {
	d.mu.Lock()
	// A later Set, Flush or Stop superseded this timer.
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	v, ok := d.settleLocked()
	d.mu.Unlock()

	if ok && d.onSettle != nil {
		d.onSettle(v)
	}
}

func (d *Value[T]) settleLocked() (T, bool) {
	if !d.hasPending {
		var zero T
		return zero, false
	}
	d.settled = d.pending
	d.hasPending = false
	var zero T
	d.pending = zero
	return d.settled, true
}
