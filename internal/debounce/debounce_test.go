package debounce

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScheduleReplacesPending(t *testing.T) {
	clock := NewManualClock()
	d := New(clock)

	var fired []string
	d.Schedule(50*time.Millisecond, func() { fired = append(fired, "first") })
	clock.Advance(10 * time.Millisecond)
	d.Schedule(50*time.Millisecond, func() { fired = append(fired, "second") })

	clock.Advance(45 * time.Millisecond)
	if len(fired) != 0 {
		t.Fatalf("nothing should fire yet, got %v", fired)
	}
	clock.Advance(10 * time.Millisecond)
	if len(fired) != 1 || fired[0] != "second" {
		t.Fatalf("expected only second to fire, got %v", fired)
	}
	if d.Pending() {
		t.Fatalf("debouncer should be idle after firing")
	}
}

func TestCancel(t *testing.T) {
	clock := NewManualClock()
	d := New(clock)
	called := false
	d.Schedule(time.Millisecond, func() { called = true })
	if !d.Pending() {
		t.Fatalf("expected pending action")
	}
	d.Cancel()
	clock.Advance(time.Second)
	if called {
		t.Fatalf("cancelled action fired")
	}
	if clock.Pending() != 0 {
		t.Fatalf("expected no live timers, got %d", clock.Pending())
	}
}

func TestChainRunsInOrder(t *testing.T) {
	clock := NewManualClock()
	var order []int
	Chain(clock,
		Step{Delay: 200 * time.Millisecond, Fn: func() { order = append(order, 1) }},
		Step{Delay: 5 * time.Millisecond, Fn: func() { order = append(order, 2) }},
		Step{Delay: 50 * time.Millisecond, Fn: func() { order = append(order, 3) }},
	)
	clock.Advance(200 * time.Millisecond)
	if len(order) != 1 {
		t.Fatalf("after 200ms got %v", order)
	}
	clock.Advance(5 * time.Millisecond)
	if len(order) != 2 {
		t.Fatalf("after 205ms got %v", order)
	}
	clock.Advance(50 * time.Millisecond)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestRealClockDebounce(t *testing.T) {
	d := New(nil)
	var n int32
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		d.Schedule(20*time.Millisecond, func() {
			atomic.AddInt32(&n, 1)
			close(done)
		})
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("debounced action never fired")
	}
	time.Sleep(40 * time.Millisecond)
	if got := atomic.LoadInt32(&n); got != 1 {
		t.Fatalf("expected exactly one call, got %d", got)
	}
}
