package cache

import (
	"errors"
	"testing"
	"time"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[string, int](2, 0)
	c.Set("Hvalba", 1)
	c.Set("Klaksvík", 2)
	if _, ok := c.Get("Hvalba"); !ok {
		t.Fatal("Hvalba should be cached")
	}
	c.Set("Tórshavn", 3)

	if _, ok := c.Get("Klaksvík"); ok {
		t.Error("Klaksvík should have been evicted")
	}
	for _, k := range []string{"Hvalba", "Tórshavn"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
	if s := c.Stats(); s.Size != 2 || s.Hits != 3 || s.Misses != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRU[string, int](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.Set("b", 2)
	now = now.Add(30 * time.Second)
	c.Set("b", 3)
	now = now.Add(45 * time.Second)

	if got := c.CleanExpired(); got != 1 {
		t.Fatalf("CleanExpired = %d, want 1", got)
	}
	if v, ok := c.Get("b"); !ok || v != 3 {
		t.Fatalf("Get(b) = %d, %v", v, ok)
	}
	now = now.Add(time.Hour)
	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have expired")
	}
}

func TestGetOrLoad(t *testing.T) {
	c := NewLRU[string, []int](4, 0)
	calls := 0
	load := func() ([]int, error) {
		calls++
		return []int{1996, 1997}, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad("Hvalba", load)
		if err != nil || len(v) != 2 {
			t.Fatalf("GetOrLoad = %v, %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrLoad("Vágur", func() ([]int, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected loader error, got %v", err)
	}
	if _, ok := c.Get("Vágur"); ok {
		t.Fatal("failed loads must not be cached")
	}

	c.Purge()
	if s := c.Stats(); s.Size != 0 {
		t.Fatalf("size after purge = %d", s.Size)
	}
}
