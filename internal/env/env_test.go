package env

import "testing"

func TestSetIdGetId(t *testing.T) {
	e := New().SetId("x", 5)
	if a, ok := e.GetId("x"); !ok || a != 5 {
		t.Fatalf("GetId(x) = %v, %v; want 5, true", a, ok)
	}
	if _, ok := e.GetId("y"); ok {
		t.Errorf("GetId(y) should miss")
	}
}

func TestMergeAddrOnlyNonNegative(t *testing.T) {
	other := New().SetId("builtin", -1).SetId("pub", 3)
	merged := New().MergeAddr(other)
	if _, ok := merged.GetId("builtin"); ok {
		t.Errorf("negative addresses must not transfer via MergeAddr")
	}
	if a, ok := merged.GetId("pub"); !ok || a != 3 {
		t.Errorf("non-negative addresses must transfer via MergeAddr, got %v, %v", a, ok)
	}
}

func TestAddOffsetLeavesBuiltinsAlone(t *testing.T) {
	e := New().SetId("x", 2).SetId("builtin", -1)
	shifted := e.AddOffset(10)
	if a, _ := shifted.GetId("x"); a != 12 {
		t.Errorf("AddOffset should shift non-negative address, got %v", a)
	}
	if a, _ := shifted.GetId("builtin"); a != -1 {
		t.Errorf("AddOffset must not move builtin addresses, got %v", a)
	}
}

func TestFilter(t *testing.T) {
	e := New().SetId("a", 1).SetId("b", 2).SetId("c", 3)
	f := e.Filter(func(name string, addr Address) bool { return addr != 2 })
	if f.Len() != 2 {
		t.Errorf("Filter should drop one binding, len = %d", f.Len())
	}
	if _, ok := f.GetId("b"); ok {
		t.Errorf("b should have been filtered out")
	}
}
