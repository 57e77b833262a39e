package cache

import (
	"strconv"
	"sync"
	"testing"
)

func TestGetSet(t *testing.T) {
	c := New[string, int](10)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) reported a hit")
	}
	c.Set("a", 1)
	c.Set("a", 2)
	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Errorf("Get(a) = %d, %v, want 2, true", v, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Capacity != 10 {
		t.Errorf("Stats() = %+v, want 1 hit, 1 miss, capacity 10", s)
	}
}

func TestGetOrCreate(t *testing.T) {
	c := New[string, int](0)
	calls := 0
	create := func() int {
		calls++
		return 7
	}

	if v := c.GetOrCreate("k", create); v != 7 {
		t.Errorf("GetOrCreate() = %d, want 7", v)
	}
	if v := c.GetOrCreate("k", create); v != 7 {
		t.Errorf("GetOrCreate() = %d, want 7", v)
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}
}

func TestDeleteAndClear(t *testing.T) {
	c := New[int, string](0)
	c.Set(1, "one")
	c.Set(2, "two")

	if !c.Delete(1) {
		t.Error("Delete(1) = false, want true")
	}
	if c.Delete(1) {
		t.Error("second Delete(1) = true, want false")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", c.Len())
	}
}

// TestEvictsLeastRecentlyUsed tests that entries touched recently survive
// eviction.
func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int, int](4)
	for i := range 4 {
		c.Set(i, i)
	}
	c.Get(0)
	c.Set(4, 4)

	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	for _, k := range []int{0, 4} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("key %d evicted", k)
		}
	}
	if got := c.Stats().Evicted; got != 2 {
		t.Errorf("Evicted = %d, want 2", got)
	}
}

func TestConcurrentGetOrCreate(t *testing.T) {
	c := New[string, *int](0)
	var wg sync.WaitGroup
	results := make([]*int, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.GetOrCreate("shared", func() *int {
				v := i
				return &v
			})
		}()
	}
	wg.Wait()

	for i, r := range results {
		if r != results[0] {
			t.Fatalf("result %d = %p, want %p", i, r, results[0])
		}
	}
	for i := range 100 {
		c.Set(strconv.Itoa(i), nil)
	}
	if c.Len() != 101 {
		t.Errorf("Len() = %d, want 101 with no limit", c.Len())
	}
}
