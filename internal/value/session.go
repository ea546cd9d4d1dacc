package value

import (
	"github.com/pytea-go/symexec/internal/env"
	"github.com/pytea-go/symexec/internal/symexpr"
)

// IDAllocator is the per-session Object/Func id counter, threaded
// explicitly rather than held in a package-level variable so that
// concurrent analyses never interfere.
type IDAllocator struct {
	next int64
}

// NewIDAllocator returns an allocator whose first id is 1.
func NewIDAllocator() *IDAllocator { return &IDAllocator{next: 1} }

// Next returns a fresh, monotonically increasing id.
func (a *IDAllocator) Next() int64 {
	id := a.next
	a.next++
	return id
}

// NewSize builds the Size subvariant: an Object whose shape field is
// set, whose __mro__ names the tuple class, and whose $length always
// equals the rank of its shape.
func NewSize(ids *IDAllocator, addr env.Address, shape symexpr.Shape) Object {
	rank := symexpr.Rank(shape)
	return Object{
		ID:   ids.Next(),
		Addr: addr,
		Attrs: map[string]Value{
			AttrMRO:    String{Sym: symexpr.ConstStr("tuple")},
			AttrLength: Int{Sym: rank},
		},
		Indices:   map[int64]Value{},
		KeyValues: map[string]Value{},
		Shape:     shape,
	}
}
