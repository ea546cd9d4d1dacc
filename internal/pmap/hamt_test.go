package pmap

import (
	"strconv"
	"testing"
)

func hashInt(k int) uint32 { return uint32(k * 2654435761) }

func TestPutGetRemove(t *testing.T) {
	m := Empty[int, string](hashInt)
	const n = 1000
	for i := 0; i < n; i++ {
		m = m.Put(i, strconv.Itoa(i))
	}
	if m.Len() != n {
		t.Fatalf("Len = %d, want %d", m.Len(), n)
	}
	for i := 0; i < n; i++ {
		v, ok := m.Get(i)
		if !ok || v != strconv.Itoa(i) {
			t.Fatalf("Get(%d) = %q, %v", i, v, ok)
		}
	}
	for i := 0; i < n; i += 2 {
		m = m.Remove(i)
	}
	if m.Len() != n/2 {
		t.Fatalf("Len after removals = %d, want %d", m.Len(), n/2)
	}
	if _, ok := m.Get(0); ok {
		t.Errorf("removed key still present")
	}
	if _, ok := m.Get(1); !ok {
		t.Errorf("surviving key missing")
	}
}

func TestPersistence(t *testing.T) {
	base := Empty[int, int](hashInt).Put(1, 10).Put(2, 20)
	derived := base.Put(1, 99).Remove(2)

	if v, _ := base.Get(1); v != 10 {
		t.Errorf("base mutated by derived Put: %d", v)
	}
	if _, ok := base.Get(2); !ok {
		t.Errorf("base mutated by derived Remove")
	}
	if v, _ := derived.Get(1); v != 99 {
		t.Errorf("derived lost its own Put: %d", v)
	}
}

func TestCollisions(t *testing.T) {
	// A constant hash forces every key into one collision bucket.
	m := Empty[int, int](func(int) uint32 { return 42 })
	for i := 0; i < 64; i++ {
		m = m.Put(i, i*i)
	}
	for i := 0; i < 64; i++ {
		if v, ok := m.Get(i); !ok || v != i*i {
			t.Fatalf("collision bucket lost key %d", i)
		}
	}
	m = m.Remove(13)
	if _, ok := m.Get(13); ok {
		t.Errorf("Remove failed in collision bucket")
	}
	if v, ok := m.Get(14); !ok || v != 196 {
		t.Errorf("Remove disturbed sibling key")
	}
}

func TestForEachVisitsAll(t *testing.T) {
	m := Empty[int, bool](hashInt)
	for i := 0; i < 100; i++ {
		m = m.Put(i, true)
	}
	seen := map[int]bool{}
	m.ForEach(func(k int, _ bool) { seen[k] = true })
	if len(seen) != 100 {
		t.Errorf("ForEach visited %d keys, want 100", len(seen))
	}
}
