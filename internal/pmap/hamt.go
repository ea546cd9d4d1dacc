// Package pmap implements a persistent (immutable, structurally shared)
// hash array mapped trie, generic over any comparable key. It is the
// storage primitive behind both the Environment (name -> Addr) and the
// Heap (Addr -> Value): path forking clones both on every split, so
// cloning has to be O(log n) structural sharing, not an O(n) copy.
package pmap

// HashFunc computes a 32-bit hash for a key. Callers supply one per key
// type (string keys hash their bytes, integer keys hash their bits).
type HashFunc[K comparable] func(K) uint32

const (
	bits = 5
	size = 1 << bits // 32
	mask = size - 1
)

// Map is an immutable map from K to V.
type Map[K comparable, V any] struct {
	root  *node[K, V]
	count int
	hash  HashFunc[K]
}

type node[K comparable, V any] struct {
	bitmap uint32
	slots  []any // entry[K,V] or *node[K,V]
}

type entry[K comparable, V any] struct {
	hash  uint32
	key   K
	value V
}

// Empty returns an empty Map using the given hash function.
func Empty[K comparable, V any](hash HashFunc[K]) *Map[K, V] {
	return &Map[K, V]{hash: hash}
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	if m == nil {
		return 0
	}
	return m.count
}

// Get returns the value for key and whether it was present.
func (m *Map[K, V]) Get(key K) (V, bool) {
	var zero V
	if m == nil || m.root == nil {
		return zero, false
	}
	return m.root.get(m.hash(key), key, 0)
}

// Put returns a new Map with key bound to value.
func (m *Map[K, V]) Put(key K, value V) *Map[K, V] {
	h := m.hash(key)
	var newRoot *node[K, V]
	var added bool
	if m.root == nil {
		newRoot, added = (&node[K, V]{}).put(h, key, value, 0)
	} else {
		newRoot, added = m.root.put(h, key, value, 0)
	}
	newCount := m.count
	if added {
		newCount++
	}
	return &Map[K, V]{root: newRoot, count: newCount, hash: m.hash}
}

// Remove returns a new Map without key.
func (m *Map[K, V]) Remove(key K) *Map[K, V] {
	if m == nil || m.root == nil {
		return m
	}
	newRoot, removed := m.root.remove(m.hash(key), key, 0)
	if !removed {
		return m
	}
	return &Map[K, V]{root: newRoot, count: m.count - 1, hash: m.hash}
}

// ForEach visits every key/value pair. Iteration order is unspecified.
func (m *Map[K, V]) ForEach(fn func(K, V)) {
	if m == nil || m.root == nil {
		return
	}
	m.root.forEach(fn)
}

// Keys returns all keys. Order is unspecified.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.Len())
	m.ForEach(func(k K, _ V) { keys = append(keys, k) })
	return keys
}

func (n *node[K, V]) get(hash uint32, key K, shift uint) (V, bool) {
	var zero V
	if shift >= 32 {
		for _, s := range n.slots {
			if e, ok := s.(entry[K, V]); ok && e.key == key {
				return e.value, true
			}
		}
		return zero, false
	}
	idx := (hash >> shift) & mask
	bit := uint32(1) << idx
	if n.bitmap&bit == 0 {
		return zero, false
	}
	pos := popcount(n.bitmap & (bit - 1))
	switch v := n.slots[pos].(type) {
	case entry[K, V]:
		if v.hash == hash && v.key == key {
			return v.value, true
		}
		return zero, false
	case *node[K, V]:
		return v.get(hash, key, shift+bits)
	}
	return zero, false
}

func (n *node[K, V]) put(hash uint32, key K, value V, shift uint) (*node[K, V], bool) {
	if shift >= 32 {
		newNode := &node[K, V]{bitmap: n.bitmap, slots: append([]any(nil), n.slots...)}
		for i, s := range newNode.slots {
			if e, ok := s.(entry[K, V]); ok && e.key == key {
				newNode.slots[i] = entry[K, V]{hash: hash, key: key, value: value}
				return newNode, false
			}
		}
		newNode.slots = append(newNode.slots, entry[K, V]{hash: hash, key: key, value: value})
		return newNode, true
	}

	idx := (hash >> shift) & mask
	bit := uint32(1) << idx
	newNode := &node[K, V]{bitmap: n.bitmap, slots: append([]any(nil), n.slots...)}

	if n.bitmap&bit == 0 {
		newNode.bitmap |= bit
		pos := popcount(newNode.bitmap & (bit - 1))
		newNode.slots = append(newNode.slots, nil)
		copy(newNode.slots[pos+1:], newNode.slots[pos:])
		newNode.slots[pos] = entry[K, V]{hash: hash, key: key, value: value}
		return newNode, true
	}

	pos := popcount(n.bitmap & (bit - 1))
	switch existing := newNode.slots[pos].(type) {
	case entry[K, V]:
		if existing.hash == hash && existing.key == key {
			newNode.slots[pos] = entry[K, V]{hash: hash, key: key, value: value}
			return newNode, false
		}
		child := &node[K, V]{}
		child, a1 := child.put(existing.hash, existing.key, existing.value, shift+bits)
		child, a2 := child.put(hash, key, value, shift+bits)
		newNode.slots[pos] = child
		return newNode, a1 || a2
	case *node[K, V]:
		newChild, added := existing.put(hash, key, value, shift+bits)
		newNode.slots[pos] = newChild
		return newNode, added
	}
	return newNode, false
}

func (n *node[K, V]) remove(hash uint32, key K, shift uint) (*node[K, V], bool) {
	if shift >= 32 {
		for i, s := range n.slots {
			if e, ok := s.(entry[K, V]); ok && e.key == key {
				newNode := &node[K, V]{bitmap: n.bitmap, slots: removeAt(n.slots, i)}
				return newNode, true
			}
		}
		return n, false
	}
	idx := (hash >> shift) & mask
	bit := uint32(1) << idx
	if n.bitmap&bit == 0 {
		return n, false
	}
	pos := popcount(n.bitmap & (bit - 1))
	switch existing := n.slots[pos].(type) {
	case entry[K, V]:
		if existing.hash != hash || existing.key != key {
			return n, false
		}
		return &node[K, V]{bitmap: n.bitmap &^ bit, slots: removeAt(n.slots, pos)}, true
	case *node[K, V]:
		newChild, removed := existing.remove(hash, key, shift+bits)
		if !removed {
			return n, false
		}
		if len(newChild.slots) == 0 {
			return &node[K, V]{bitmap: n.bitmap &^ bit, slots: removeAt(n.slots, pos)}, true
		}
		if len(newChild.slots) == 1 {
			if e, ok := newChild.slots[0].(entry[K, V]); ok {
				newNode := &node[K, V]{bitmap: n.bitmap, slots: append([]any(nil), n.slots...)}
				newNode.slots[pos] = e
				return newNode, true
			}
		}
		newNode := &node[K, V]{bitmap: n.bitmap, slots: append([]any(nil), n.slots...)}
		newNode.slots[pos] = newChild
		return newNode, true
	}
	return n, false
}

func (n *node[K, V]) forEach(fn func(K, V)) {
	for _, s := range n.slots {
		switch v := s.(type) {
		case entry[K, V]:
			fn(v.key, v.value)
		case *node[K, V]:
			v.forEach(fn)
		}
	}
}

func removeAt(slots []any, i int) []any {
	out := make([]any, 0, len(slots)-1)
	out = append(out, slots[:i]...)
	out = append(out, slots[i+1:]...)
	return out
}

func popcount(x uint32) int {
	x = x - ((x >> 1) & 0x55555555)
	x = (x & 0x33333333) + ((x >> 2) & 0x33333333)
	x = (x + (x >> 4)) & 0x0f0f0f0f
	x = x + (x >> 8)
	x = x + (x >> 16)
	return int(x & 0x3f)
}
