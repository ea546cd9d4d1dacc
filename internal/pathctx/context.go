// Package pathctx implements Context and ContextSet: the single-path
// state record and the multi-path collection the interpreter threads
// every statement and expression through. The fork-and-join algebra is
// built from small structs and pointer-receiver methods that return a
// new value; there are no mutexes because paths never share mutable
// state once they fork.
package pathctx

import (
	"github.com/pytea-go/symexec/internal/constraints"
	"github.com/pytea-go/symexec/internal/env"
	"github.com/pytea-go/symexec/internal/heap"
	"github.com/pytea-go/symexec/internal/value"
)

// Flag is the continuation signal a statement leaves on the Context it
// produced: Run (fall through to the next statement), Cnt/Brk (unwind
// to the nearest enclosing loop), or Returned (unwind to the nearest
// enclosing call, with RetVal already set).
type Flag int

const (
	FlagRun Flag = iota
	FlagCnt
	FlagBrk
	FlagReturned
)

func (f Flag) String() string {
	switch f {
	case FlagRun:
		return "Run"
	case FlagCnt:
		return "Cnt"
	case FlagBrk:
		return "Brk"
	case FlagReturned:
		return "Returned"
	default:
		return "?"
	}
}

// Context is one hypothesised execution: its bindings, its heap, its
// accumulated path condition, and everything needed to resume or
// report on it. Every transition returns a new Context; nothing here
// is mutated in place.
type Context struct {
	Env         env.Env
	Heap        heap.Heap
	ImportEnv   env.Env
	RetVal      value.Value
	Constraints *constraints.Set
	Log         []value.Error
	RelPath     string
	Flag        Flag
	Failed      bool
}

// New returns the initial Context for a fresh analysis session.
func New() *Context {
	return &Context{
		Env:         env.New(),
		Heap:        heap.New(),
		ImportEnv:   env.New(),
		RetVal:      value.None{},
		Constraints: constraints.New(),
		Flag:        FlagRun,
	}
}

func (c *Context) clone() *Context {
	cp := *c
	return &cp
}

// WithEnv, WithHeap, ... return a modified copy; the receiver is
// never changed.
func (c *Context) WithEnv(e env.Env) *Context { cp := c.clone(); cp.Env = e; return cp }
func (c *Context) WithHeap(h heap.Heap) *Context { cp := c.clone(); cp.Heap = h; return cp }
func (c *Context) WithImportEnv(e env.Env) *Context { cp := c.clone(); cp.ImportEnv = e; return cp }
func (c *Context) WithConstraints(cs *constraints.Set) *Context { cp := c.clone(); cp.Constraints = cs; return cp }
func (c *Context) WithRelPath(p string) *Context { cp := c.clone(); cp.RelPath = p; return cp }
func (c *Context) WithFlag(f Flag) *Context { cp := c.clone(); cp.Flag = f; return cp }

// SetRetVal records v as the Context's current return value, which
// doubles as the temporary slot evaluation stages hand values through.
func (c *Context) SetRetVal(v value.Value) *Context { cp := c.clone(); cp.RetVal = v; return cp }

// Returned marks the context as having produced v via an explicit
// Return statement, unwinding to the enclosing call.
func (c *Context) Returned(v value.Value) *Context {
	cp := c.clone()
	cp.RetVal = v
	cp.Flag = FlagReturned
	return cp
}

// AddDiag appends a diagnostic to the path log in evaluation order.
func (c *Context) AddDiag(e value.Error) *Context {
	cp := c.clone()
	cp.Log = append(append([]value.Error{}, c.Log...), e)
	return cp
}

// MarkFailed flags the Context as belonging in a ContextSet's failed
// bucket once the current Require/IfThenElse call returns.
func (c *Context) MarkFailed() *Context { cp := c.clone(); cp.Failed = true; return cp }

// Malloc/AllocNew/SetVal are thin Heap-threading conveniences so callers
// don't have to unpack and repack Context.Heap by hand at every step.
func (c *Context) Malloc() (env.Address, *Context) {
	addr, h := c.Heap.Malloc()
	return addr, c.WithHeap(h)
}

func (c *Context) AllocNew(v value.Value) (env.Address, *Context) {
	addr, h := c.Heap.AllocNew(v)
	return addr, c.WithHeap(h)
}

func (c *Context) SetVal(addr env.Address, v value.Value) *Context {
	return c.WithHeap(c.Heap.SetVal(addr, v))
}

// GC runs a reachability sweep rooted at Env and RetVal; callers
// invoke it at import/merge boundaries, not on every step.
func (c *Context) GC() *Context {
	return c.WithHeap(c.Heap.RunGC(c.Env, c.RetVal))
}
