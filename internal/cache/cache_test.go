package cache

import (
	"testing"
	"time"
)

func TestLRUCache_GetSetEvict(t *testing.T) {
	c := NewLRUCache[int64, string](2, time.Minute)

	c.Set(1, "a")
	c.Set(2, "b")
	if _, ok := c.Get(1); !ok {
		t.Fatal("expected hit for 1")
	}
	c.Set(3, "c") // evicts 2, the least recently used

	if _, ok := c.Get(2); ok {
		t.Error("2 should have been evicted")
	}
	if v, ok := c.Get(3); !ok || v != "c" {
		t.Errorf("Get(3) = %q, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}

	c.Set(3, "c2")
	if v, _ := c.Get(3); v != "c2" {
		t.Errorf("overwrite failed, got %q", v)
	}
	c.Delete(3)
	if _, ok := c.Get(3); ok {
		t.Error("3 should be deleted")
	}

	hits, misses := c.Stats()
	if hits != 3 || misses != 2 {
		t.Errorf("Stats() = %d hits, %d misses", hits, misses)
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	c := NewLRUCache[string, int](10, time.Minute)
	clock := time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	c.Set("a", 1)
	c.Set("b", 2)
	clock = clock.Add(30 * time.Second)
	c.Set("b", 3)

	clock = clock.Add(45 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("a should have expired")
	}
	if n := c.CleanExpired(); n != 0 {
		t.Errorf("CleanExpired() = %d, want 0 (a already dropped by Get)", n)
	}
	clock = clock.Add(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired() = %d, want 1", n)
	}
}

func TestManager(t *testing.T) {
	t.Run("stop without start returns", func(t *testing.T) {
		m := NewManager()
		m.Stop()
		m.Stop()
	})

	t.Run("sweeps registered caches", func(t *testing.T) {
		clock := time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)
		short := NewLRUCache[int, int](4, time.Second)
		short.now = func() time.Time { return clock }
		long := NewLRUCache[string, int](4, time.Hour)
		long.now = func() time.Time { return clock }

		short.Set(1, 1)
		short.Set(2, 2)
		long.Set("a", 1)
		clock = clock.Add(time.Minute)

		m := NewManager()
		m.Register(short)
		m.Register(long)
		if removed, live := m.sweep(); removed != 2 || live != 1 {
			t.Fatalf("sweep() = %d removed, %d live; want 2, 1", removed, live)
		}
		if short.Size() != 0 || long.Size() != 1 {
			t.Errorf("sizes after sweep = %d, %d", short.Size(), long.Size())
		}
		m.StartCleanup(time.Hour)
		m.StartCleanup(time.Hour)
		m.Stop()
	})
}
