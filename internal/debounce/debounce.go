// Package debounce schedules cancellable deferred actions where a newer
// action replaces any older one that has not fired yet.
package debounce

import (
	"sync"
	"time"
)

// Timer is a pending deferred call.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d on its own goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock is the wall-clock scheduler.
var RealClock Scheduler = realClock{}

// Debouncer keeps a single slot for the most recently scheduled action.
type Debouncer struct {
	mu      sync.Mutex
	sched   Scheduler
	pending Timer
	gen     uint64
}

// New returns a Debouncer on sched, or on the wall clock when sched is nil.
func New(sched Scheduler) *Debouncer {
	if sched == nil {
		sched = RealClock
	}
	return &Debouncer{sched: sched}
}

// Schedule runs fn after delay, cancelling the previously scheduled action
// if it has not fired.
func (d *Debouncer) Schedule(delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != nil {
		d.pending.Stop()
	}
	d.gen++
	gen := d.gen
	d.pending = d.sched.AfterFunc(delay, func() {
		d.mu.Lock()
		// a timer that already fired may still be waiting on the lock
		if gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.pending = nil
		d.mu.Unlock()
		fn()
	})
}

// Cancel drops the pending action, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
	d.gen++
}

// Pending reports whether an action is scheduled and has not fired.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Step is one stage of a delayed sequence.
type Step struct {
	Delay time.Duration
	Fn    func()
}

// Chain runs steps one after another, each after its own delay measured from
// the previous step. A chain cannot be cancelled once started.
func Chain(sched Scheduler, steps ...Step) {
	if len(steps) == 0 {
		return
	}
	if sched == nil {
		sched = RealClock
	}
	first, rest := steps[0], steps[1:]
	sched.AfterFunc(first.Delay, func() {
		if first.Fn != nil {
			first.Fn()
		}
		Chain(sched, rest...)
	})
}
