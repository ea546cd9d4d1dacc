// Package env defines heap addresses and the persistent name environment.
// Env binds identifiers to addresses; it never holds values directly, so
// it has no dependency on the value package, keeping Env => Heap a
// one-way edge (see internal/heap).
package env

import (
	"hash/fnv"

	"github.com/pytea-go/symexec/internal/pmap"
)

// Address identifies a cell in a Heap. Negative addresses are reserved
// for pre-allocated built-ins; they are immune to offsetting.
type Address int64

// IsBuiltin reports whether a is a pre-allocated built-in address.
func (a Address) IsBuiltin() bool { return a < 0 }

func hashString(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// Env is a persistent mapping from identifier to Address, backed by the
// same HAMT as Heap. Insertion order is not kept: iteration follows the
// trie's hash order.
type Env struct {
	m *pmap.Map[string, Address]
}

// New returns an empty Env.
func New() Env {
	return Env{m: pmap.Empty[string, Address](hashString)}
}

// GetId looks up name, reporting whether it is bound.
func (e Env) GetId(name string) (Address, bool) {
	if e.m == nil {
		return 0, false
	}
	return e.m.Get(name)
}

// SetId returns a new Env with name bound to addr.
func (e Env) SetId(name string, addr Address) Env {
	base := e.m
	if base == nil {
		base = pmap.Empty[string, Address](hashString)
	}
	return Env{m: base.Put(name, addr)}
}

// Len reports the number of bindings.
func (e Env) Len() int { return e.m.Len() }

// ForEach visits every binding. Iteration order is unspecified.
func (e Env) ForEach(fn func(name string, addr Address)) {
	if e.m == nil {
		return
	}
	e.m.ForEach(fn)
}

// MergeAddr pulls bindings from other into e, transferring only
// addresses >= 0 (builtin addresses stay resolved against the callee's
// own prelude, never the importer's).
func (e Env) MergeAddr(other Env) Env {
	result := e
	other.ForEach(func(name string, addr Address) {
		if addr >= 0 {
			result = result.SetId(name, addr)
		}
	})
	return result
}

// AddOffset rewrites every non-negative address by +delta.
func (e Env) AddOffset(delta int64) Env {
	base := pmap.Empty[string, Address](hashString)
	e.ForEach(func(name string, addr Address) {
		if addr >= 0 {
			addr = Address(int64(addr) + delta)
		}
		base = base.Put(name, addr)
	})
	return Env{m: base}
}

// Filter returns a new Env keeping only bindings for which keep returns true.
func (e Env) Filter(keep func(name string, addr Address) bool) Env {
	base := pmap.Empty[string, Address](hashString)
	e.ForEach(func(name string, addr Address) {
		if keep(name, addr) {
			base = base.Put(name, addr)
		}
	})
	return Env{m: base}
}
