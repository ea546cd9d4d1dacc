package heap

import (
	"testing"

	"github.com/pytea-go/symexec/internal/env"
	"github.com/pytea-go/symexec/internal/value"
)

func TestMallocSetValGetVal(t *testing.T) {
	h := New()
	addr, h := h.Malloc()
	if v, ok := h.GetVal(addr); !ok || v != (value.Undef{}) {
		t.Fatalf("fresh malloc should hold Undef, got %v", v)
	}
	h = h.SetVal(addr, value.Int{Sym: nil})
	if _, ok := h.GetVal(addr); !ok {
		t.Fatalf("expected value at %d", addr)
	}
}

func TestAddOffsetInverse(t *testing.T) {
	h := New()
	a1, h := h.Malloc()
	h = h.SetVal(a1, value.None{})
	a2, h := h.AllocNew(value.Addr{A: a1})

	offset := h.AddOffset(100)
	back := offset.AddOffset(-100)

	if _, ok := back.GetVal(a1); !ok {
		t.Errorf("address %d should survive offset/un-offset round trip", a1)
	}
	if _, ok := back.GetVal(a2); !ok {
		t.Errorf("address %d should survive offset/un-offset round trip", a2)
	}
	v, _ := back.GetVal(a2)
	if addrVal, ok := v.(value.Addr); !ok || addrVal.A != a1 {
		t.Errorf("nested Addr should also round trip, got %v", v)
	}
}

func TestRunGCFreesUnreachable(t *testing.T) {
	h := New()
	keep, h := h.Malloc()
	h = h.SetVal(keep, value.None{})
	drop, h := h.Malloc()
	h = h.SetVal(drop, value.None{})

	e := env.New().SetId("x", keep)
	h = h.RunGC(e, value.None{})

	if _, ok := h.GetVal(keep); !ok {
		t.Errorf("reachable address %d should survive GC", keep)
	}
	if _, ok := h.GetVal(drop); ok {
		t.Errorf("unreachable address %d should be freed", drop)
	}
}

func TestResolveChainTerminates(t *testing.T) {
	h := New()
	a1, h := h.AllocNew(value.Int{})
	a2, h := h.AllocNew(value.Addr{A: a1})
	a3, h := h.AllocNew(value.Addr{A: a2})

	v, ok := h.ResolveChain(a3)
	if !ok {
		t.Fatalf("chain through two Addrs should resolve")
	}
	if _, isAddr := v.(value.Addr); isAddr {
		t.Errorf("ResolveChain must end on a non-Addr value, got %v", v)
	}
	if _, ok := h.ResolveChain(9999); ok {
		t.Errorf("dangling address must not resolve")
	}
}

func TestMergeRelocatedHeaps(t *testing.T) {
	parent := New()
	pa, parent := parent.AllocNew(value.None{})

	child := New()
	ca, child := child.AllocNew(value.None{})

	delta := parent.NextID()
	merged := parent.Merge(child.AddOffset(delta))

	if _, ok := merged.GetVal(pa); !ok {
		t.Errorf("parent cell lost in merge")
	}
	if _, ok := merged.GetVal(env.Address(int64(ca) + delta)); !ok {
		t.Errorf("relocated child cell missing from merge")
	}
	next, h2 := merged.Malloc()
	if _, ok := h2.GetVal(next); !ok || int64(next) <= delta {
		t.Errorf("allocation counter must advance past both heaps, got %d", next)
	}
}

func TestBuiltinAddressesImmuneToOffset(t *testing.T) {
	h := New()
	builtin := env.Address(-1)
	h = h.Install(builtin, value.None{})
	offset := h.AddOffset(50)
	if _, ok := offset.GetVal(builtin); !ok {
		t.Errorf("builtin address %d must not move under AddOffset", builtin)
	}
}
