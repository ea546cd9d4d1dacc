// Package heap implements the persistent Addr -> Value store. The same
// 32-way trie backs internal/env's Env; Heap and Env share the generic
// implementation in internal/pmap but never share an instance.
package heap

import (
	"github.com/pytea-go/symexec/internal/env"
	"github.com/pytea-go/symexec/internal/pmap"
	"github.com/pytea-go/symexec/internal/value"
)

func hashAddress(a env.Address) uint32 {
	u := uint64(a)
	u ^= u >> 33
	u *= 0xff51afd7ed558ccd
	u ^= u >> 33
	return uint32(u)
}

// Heap is a persistent mapping from Address to Value plus a
// monotonically increasing allocation counter for fresh positive
// addresses.
type Heap struct {
	m      *pmap.Map[env.Address, value.Value]
	nextID int64
}

// New returns an empty Heap whose first malloc'd address is 1.
func New() Heap {
	return Heap{m: pmap.Empty[env.Address, value.Value](hashAddress), nextID: 1}
}

// GetVal returns the value stored at addr, if any.
func (h Heap) GetVal(addr env.Address) (value.Value, bool) {
	if h.m == nil {
		return nil, false
	}
	return h.m.Get(addr)
}

// Malloc installs an Undef at a fresh positive address and returns it
// alongside the updated Heap.
func (h Heap) Malloc() (env.Address, Heap) {
	addr := env.Address(h.nextID)
	base := h.m
	if base == nil {
		base = pmap.Empty[env.Address, value.Value](hashAddress)
	}
	newHeap := Heap{m: base.Put(addr, value.Undef{}), nextID: h.nextID + 1}
	return addr, newHeap
}

// AllocNew combines Malloc and SetVal.
func (h Heap) AllocNew(v value.Value) (env.Address, Heap) {
	addr, h2 := h.Malloc()
	return addr, h2.SetVal(addr, v)
}

// SetVal replaces the value at an existing address. It fails silently
// when addr is absent; callers that must assert use MustSetVal.
func (h Heap) SetVal(addr env.Address, v value.Value) Heap {
	if h.m == nil {
		return h
	}
	if _, ok := h.m.Get(addr); !ok {
		return h
	}
	return Heap{m: h.m.Put(addr, v), nextID: h.nextID}
}

// Install places v at addr unconditionally, allocated or not. It is
// meant for seeding pre-allocated builtin (negative) addresses before
// analysis starts, not for ordinary path execution.
func (h Heap) Install(addr env.Address, v value.Value) Heap {
	base := h.m
	if base == nil {
		base = pmap.Empty[env.Address, value.Value](hashAddress)
	}
	return Heap{m: base.Put(addr, v), nextID: h.nextID}
}

// MustSetVal is SetVal but panics if addr is not already allocated,
// for call sites where a HeapMiss indicates an implementation bug.
func (h Heap) MustSetVal(addr env.Address, v value.Value) Heap {
	if _, ok := h.GetVal(addr); !ok {
		panic("heap: SetVal on unallocated address")
	}
	return Heap{m: h.m.Put(addr, v), nextID: h.nextID}
}

// AddOffset offsets every non-negative address, and every address
// appearing inside reachable values, by delta. Builtin (negative)
// addresses are left untouched, matching Address.IsBuiltin's contract.
func (h Heap) AddOffset(delta int64) Heap {
	base := pmap.Empty[env.Address, value.Value](hashAddress)
	h.ForEach(func(a env.Address, v value.Value) {
		newAddr := a
		if !a.IsBuiltin() {
			newAddr = env.Address(int64(a) + delta)
		}
		base = base.Put(newAddr, offsetValue(v, delta))
	})
	return Heap{m: base, nextID: h.nextID + delta}
}

func offsetValue(v value.Value, delta int64) value.Value {
	switch x := v.(type) {
	case value.Addr:
		if x.A.IsBuiltin() {
			return x
		}
		return value.Addr{A: env.Address(int64(x.A) + delta)}
	case value.Object:
		out := x.Clone()
		for k, av := range out.Attrs {
			out.Attrs[k] = offsetValue(av, delta)
		}
		for k, av := range out.Indices {
			out.Indices[k] = offsetValue(av, delta)
		}
		for k, av := range out.KeyValues {
			out.KeyValues[k] = offsetValue(av, delta)
		}
		if !x.Addr.IsBuiltin() {
			out.Addr = env.Address(int64(x.Addr) + delta)
		}
		return out
	case value.Func:
		out := x
		out.CapturedEnv = x.CapturedEnv.AddOffset(delta)
		return out
	default:
		return v
	}
}

// NextID returns the address the next Malloc will hand out. Importers
// use it as the offset delta when relocating a child module's heap into
// a parent heap.
func (h Heap) NextID() int64 { return h.nextID }

// Merge installs every cell of other into h. Addresses are taken as-is;
// the caller is expected to have run AddOffset on other first so the two
// address spaces do not collide. The allocation counter advances past
// both heaps' counters.
func (h Heap) Merge(other Heap) Heap {
	base := h.m
	if base == nil {
		base = pmap.Empty[env.Address, value.Value](hashAddress)
	}
	other.ForEach(func(a env.Address, v value.Value) {
		base = base.Put(a, v)
	})
	next := h.nextID
	if other.nextID > next {
		next = other.nextID
	}
	return Heap{m: base, nextID: next}
}

// ForEach visits every (address, value) pair. Order is unspecified.
func (h Heap) ForEach(fn func(env.Address, value.Value)) {
	if h.m == nil {
		return
	}
	h.m.ForEach(fn)
}

// RunGC performs a mark-sweep reachability pass rooted at every address
// in rootEnv and in retVal (when it is an Addr), transitively through
// Object attrs/indices/keyValues and Func.CapturedEnv, and returns a
// Heap with unreachable cells freed.
func (h Heap) RunGC(rootEnv env.Env, retVal value.Value) Heap {
	reachable := map[env.Address]bool{}
	var markAddr func(a env.Address)
	var markValue func(v value.Value)

	markValue = func(v value.Value) {
		switch x := v.(type) {
		case value.Addr:
			markAddr(x.A)
		case value.Object:
			for _, av := range x.Attrs {
				markValue(av)
			}
			for _, av := range x.Indices {
				markValue(av)
			}
			for _, av := range x.KeyValues {
				markValue(av)
			}
		case value.Func:
			x.CapturedEnv.ForEach(func(_ string, a env.Address) { markAddr(a) })
		}
	}

	markAddr = func(a env.Address) {
		if a.IsBuiltin() || reachable[a] {
			return
		}
		reachable[a] = true
		if v, ok := h.GetVal(a); ok {
			markValue(v)
		}
	}

	rootEnv.ForEach(func(_ string, a env.Address) { markAddr(a) })
	markValue(retVal)

	base := pmap.Empty[env.Address, value.Value](hashAddress)
	h.ForEach(func(a env.Address, v value.Value) {
		if a.IsBuiltin() || reachable[a] {
			base = base.Put(a, v)
		}
	})
	return Heap{m: base, nextID: h.nextID}
}

// ResolveChain follows Addr-to-Addr indirection until it reaches a
// non-Addr value (or discovers the chain does not terminate in the
// Heap, reporting a HeapMiss-shaped failure). Chains must be finite per
// the no-Addr-cycles invariant; this caps the walk defensively.
func (h Heap) ResolveChain(addr env.Address) (value.Value, bool) {
	const maxChain = 1 << 16
	for i := 0; i < maxChain; i++ {
		v, ok := h.GetVal(addr)
		if !ok {
			return nil, false
		}
		a, isAddr := v.(value.Addr)
		if !isAddr {
			return v, true
		}
		addr = a.A
	}
	return nil, false
}
