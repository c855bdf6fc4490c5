package events

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublishFanOut(t *testing.T) {
	h := NewHub(4)
	a, cancelA := h.Subscribe()
	b, cancelB := h.Subscribe()
	defer cancelA()
	defer cancelB()

	h.Publish(Event{Type: "labels", Data: 1996})
	for _, ch := range []<-chan Event{a, b} {
		e := <-ch
		if e.Type != "labels" || e.Data != 1996 {
			t.Fatalf("unexpected event %+v", e)
		}
	}
}

func TestSlowSubscriberDrops(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(Event{Type: "first"})
	h.Publish(Event{Type: "second"})

	if e := <-ch; e.Type != "first" {
		t.Fatalf("expected first event, got %q", e.Type)
	}
	select {
	case e := <-ch:
		t.Fatalf("expected second event to be dropped, got %q", e.Type)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(1)
	var counts []int
	h.OnSubscriberCount(func(n int) { counts = append(counts, n) })

	ch, cancel := h.Subscribe()
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
	if h.Len() != 0 {
		t.Fatalf("expected no subscribers, got %d", h.Len())
	}
	if len(counts) != 2 || counts[0] != 1 || counts[1] != 0 {
		t.Fatalf("unexpected subscriber counts %v", counts)
	}
}

func TestCloseEndsSubscriptions(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe()
	h.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after hub close")
	}
	cancel()

	late, _ := h.Subscribe()
	if _, ok := <-late; ok {
		t.Fatalf("late subscription should be closed")
	}
}
