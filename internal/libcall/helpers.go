package libcall

import (
	"fmt"
	"strings"

	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

// errVal builds the Error retVal a handler leaves on a path when its
// arguments are outside the supported envelope. The path continues; the
// interpreter moves it to the failed set at the next join.
func errVal(reason value.Reason, msg string, sp *symexpr.Span) value.Error {
	return value.Error{Severity: value.SeverityError, Reason: reason, Message: msg, Source: sp}
}

func typeErr(s *Session, inv *Invocation, msg string) *pathctx.ContextSet {
	return s.Single(inv.Ctx.SetRetVal(errVal(value.ReasonTypeMismatch, inv.Name+": "+msg, inv.Span)))
}

// unsupported keeps the path alive with a warning and a fresh symbolic
// return value of the sort the caller most plausibly expected: tensor
// namespaces get a fresh symbolic Size, math gets a fresh Float, anything
// else a fresh Int.
func unsupported(s *Session, inv *Invocation, msg string) *pathctx.ContextSet {
	ctx := inv.Ctx.AddDiag(value.Error{
		Severity: value.SeverityWarning,
		Reason:   value.ReasonUnsupported,
		Message:  msg,
		Source:   inv.Span,
	})
	ns := inv.Name
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[:i]
	}
	switch ns {
	case "torch", "numpy", "PIL", "shape":
		rank := symexpr.SymbolNum(s.Syms.FreshNum("rank_" + sanitize(inv.Name)))
		sh := symexpr.SymbolShape(s.Syms.FreshShape("sh_"+sanitize(inv.Name), rank))
		ctx, v := newSize(s, ctx, sh)
		return s.Single(ctx.SetRetVal(v))
	case "math":
		n := symexpr.SymbolNum(s.Syms.FreshNum("f_" + sanitize(inv.Name)))
		return s.Single(ctx.SetRetVal(value.Float{Sym: n}))
	default:
		n := symexpr.SymbolNum(s.Syms.FreshNum("v_" + sanitize(inv.Name)))
		return s.Single(ctx.SetRetVal(value.Int{Sym: n}))
	}
}

func sanitize(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

// newSize allocates a Size object reflecting shape and returns its Addr
// value alongside the grown context.
func newSize(s *Session, ctx *pathctx.Context, shape symexpr.Shape) (*pathctx.Context, value.Value) {
	addr, ctx2 := ctx.Malloc()
	obj := value.NewSize(s.IDs, addr, symexpr.NormalizeShape(shape))
	return ctx2.SetVal(addr, obj), value.Addr{A: addr}
}

// returnSize is the common tail of a tensor handler: allocate the result
// Size and leave its address as the RetVal.
func returnSize(s *Session, ctx *pathctx.Context, shape symexpr.Shape) *pathctx.ContextSet {
	ctx2, v := newSize(s, ctx, shape)
	return s.Single(ctx2.SetRetVal(v))
}

// derefObject resolves v to an Object, following Addr indirection
// through the context's heap.
func derefObject(ctx *pathctx.Context, v value.Value) (value.Object, bool) {
	switch x := v.(type) {
	case value.Object:
		return x, true
	case value.Addr:
		resolved, ok := ctx.Heap.ResolveChain(x.A)
		if !ok {
			return value.Object{}, false
		}
		obj, ok := resolved.(value.Object)
		return obj, ok
	default:
		return value.Object{}, false
	}
}

// shapeOf coerces a parameter value to a Shape: a Size object yields its
// shape directly; a tuple/list of integers yields a ShapeConst.
func shapeOf(ctx *pathctx.Context, v value.Value) (symexpr.Shape, bool) {
	obj, ok := derefObject(ctx, v)
	if !ok {
		return nil, false
	}
	if obj.IsSize() {
		return obj.Shape, true
	}
	dims, ok := dimsFromSequence(ctx, obj)
	if !ok {
		return nil, false
	}
	return symexpr.ConstShape(dims...), true
}

// dimsFromSequence reads a tuple/list object's indexed elements as Num
// dims, in index order, using $length to bound the walk.
func dimsFromSequence(ctx *pathctx.Context, obj value.Object) ([]symexpr.Num, bool) {
	n, ok := concreteLength(obj)
	if !ok {
		return nil, false
	}
	dims := make([]symexpr.Num, n)
	for i := int64(0); i < n; i++ {
		ev, ok := obj.Indices[i]
		if !ok {
			return nil, false
		}
		d, ok := numOf(ctx, ev)
		if !ok {
			return nil, false
		}
		dims[i] = d
	}
	return dims, true
}

// concreteLength reads a concrete $length off an object.
func concreteLength(obj value.Object) (int64, bool) {
	lv, ok := obj.Attrs[value.AttrLength]
	if !ok {
		return 0, false
	}
	iv, ok := lv.(value.Int)
	if !ok {
		return 0, false
	}
	return symexpr.AsConstInt(iv.Sym)
}

// numOf extracts the Num payload of an Int/Float/Bool value, following
// Addr indirection first. Bools coerce 0/1 only when concrete.
func numOf(ctx *pathctx.Context, v value.Value) (symexpr.Num, bool) {
	if a, ok := v.(value.Addr); ok {
		resolved, ok := ctx.Heap.ResolveChain(a.A)
		if !ok {
			return nil, false
		}
		v = resolved
	}
	switch x := v.(type) {
	case value.Int:
		return x.Sym, true
	case value.Float:
		return x.Sym, true
	case value.Bool:
		if c, ok := x.Sym.(symexpr.BoolConst); ok {
			if c.Value {
				return symexpr.ConstInt(1), true
			}
			return symexpr.ConstInt(0), true
		}
		return nil, false
	default:
		return nil, false
	}
}

// intConstOf extracts a concrete integer from a parameter value.
func intConstOf(ctx *pathctx.Context, v value.Value) (int64, bool) {
	n, ok := numOf(ctx, v)
	if !ok {
		return 0, false
	}
	return symexpr.AsConstInt(n)
}

// isNone reports whether a parameter value is Python None (following
// Addr indirection).
func isNone(ctx *pathctx.Context, v value.Value) bool {
	if a, ok := v.(value.Addr); ok {
		if resolved, ok := ctx.Heap.ResolveChain(a.A); ok {
			v = resolved
		}
	}
	_, ok := v.(value.None)
	return ok
}

// pairOf coerces a parameter to a (h, w) pair: a tuple of two numbers,
// or a single number duplicated, the way torch accepts stride/padding.
func pairOf(ctx *pathctx.Context, v value.Value) (symexpr.Num, symexpr.Num, bool) {
	if n, ok := numOf(ctx, v); ok {
		return n, n, true
	}
	obj, ok := derefObject(ctx, v)
	if !ok {
		return nil, nil, false
	}
	dims, ok := dimsFromSequence(ctx, obj)
	if !ok || len(dims) != 2 {
		return nil, nil, false
	}
	return dims[0], dims[1], true
}

// sequenceElems collects an object's indexed elements 0..$length-1.
func sequenceElems(obj value.Object) ([]value.Value, bool) {
	n, ok := concreteLength(obj)
	if !ok {
		return nil, false
	}
	out := make([]value.Value, n)
	for i := int64(0); i < n; i++ {
		ev, ok := obj.Indices[i]
		if !ok {
			return nil, false
		}
		out[i] = ev
	}
	return out, true
}

// newSequence allocates a tuple/list/dict-shaped object: indexed
// elements, a $length attribute, and the class name under __mro__.
func newSequence(s *Session, ctx *pathctx.Context, elems []value.Value, class string) (*pathctx.Context, value.Value) {
	addr, ctx2 := ctx.Malloc()
	obj := value.Object{
		ID:        s.IDs.Next(),
		Addr:      addr,
		Attrs:     map[string]value.Value{},
		Indices:   map[int64]value.Value{},
		KeyValues: map[string]value.Value{},
	}
	for i, e := range elems {
		obj.Indices[int64(i)] = e
	}
	obj.Attrs[value.AttrMRO] = value.String{Sym: symexpr.ConstStr(class)}
	obj.Attrs[value.AttrLength] = value.Int{Sym: symexpr.ConstInt(int64(len(elems)))}
	return ctx2.SetVal(addr, obj), value.Addr{A: addr}
}

// normalizeAxis applies the negative-index rule (index < 0 ? index+rank
// : index) for a concrete axis against a concrete rank.
func normalizeAxis(axis, rank int64) int64 {
	if axis < 0 {
		return axis + rank
	}
	return axis
}

// normalizeAxisNum is the symbolic form of normalizeAxis; it folds when
// the axis is concrete and otherwise leaves the conditional to the
// constraint set by building the shifted expression only for known-sign
// constants.
func normalizeAxisNum(axis symexpr.Num, rank symexpr.Num) symexpr.Num {
	if k, ok := symexpr.AsConstInt(axis); ok && k < 0 {
		return symexpr.NormalizeNum(symexpr.Bop(symexpr.Add, axis, rank))
	}
	return axis
}

// rankObligation builds the "rank(x) = r" obligation used throughout the
// tensor handlers.
func rankObligation(sh symexpr.Shape, r int64) symexpr.Bool {
	return symexpr.Eq(symexpr.Rank(sh), symexpr.ConstInt(r))
}

// dim indexes a shape, pre-normalised.
func dim(sh symexpr.Shape, i int64) symexpr.Num {
	return symexpr.NormalizeNum(symexpr.Index(sh, symexpr.ConstInt(i)))
}

// fmtDims renders a short human-readable description of a shape for
// obligation messages.
func fmtDims(sh symexpr.Shape) string {
	return fmt.Sprintf("%s", sh)
}
