package libcall

import (
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

// registerShape installs the handlers that operate directly on Size
// objects, performing absolute-index normalisation before delegating to
// the Shape constructors.
func registerShape(r *Registry) {
	r.Register("shape.index", handleShapeIndex)
	r.Register("shape.slice", handleShapeSlice)
	r.Register("shape.repeat", handleShapeRepeat)
	r.Register("shape.setShape", handleShapeSetShape)
	r.Register("shape.extractShape", handleShapeExtract)
	r.Register("shape.rank", handleShapeRank)
	r.Register("shape.numel", handleShapeNumel)
	r.Register("shape.concat", handleShapeConcat)
	r.Register("shape.broadcast", handleShapeBroadcast)
}

func handleShapeIndex(s *Session, inv *Invocation) *pathctx.ContextSet {
	sv, ok := inv.Value("size")
	if !ok {
		return typeErr(s, inv, "missing size")
	}
	sh, ok := shapeOf(inv.Ctx, sv)
	if !ok {
		return typeErr(s, inv, "size is not a Size")
	}
	iv, ok := inv.Value("index")
	if !ok {
		return typeErr(s, inv, "missing index")
	}
	idx, ok := numOf(inv.Ctx, iv)
	if !ok {
		return typeErr(s, inv, "index must be an integer")
	}
	rank := symexpr.Rank(sh)
	idx = normalizeAxisNum(idx, rank)
	return s.Single(inv.Ctx).
		Require([]symexpr.Bool{
			symexpr.Lte(symexpr.ConstInt(0), idx),
			symexpr.Lt(idx, rank),
		}, "shape index out of range", inv.Span).
		Return(value.Int{Sym: symexpr.NormalizeNum(symexpr.Index(sh, idx))})
}

func handleShapeSlice(s *Session, inv *Invocation) *pathctx.ContextSet {
	sv, ok := inv.Value("size")
	if !ok {
		return typeErr(s, inv, "missing size")
	}
	sh, ok := shapeOf(inv.Ctx, sv)
	if !ok {
		return typeErr(s, inv, "size is not a Size")
	}
	rank := symexpr.Rank(sh)
	var start, end symexpr.Num
	if v, ok := inv.Value("start"); ok && !isNone(inv.Ctx, v) {
		n, ok := numOf(inv.Ctx, v)
		if !ok {
			return typeErr(s, inv, "start must be an integer")
		}
		start = normalizeAxisNum(n, rank)
	}
	if v, ok := inv.Value("end"); ok && !isNone(inv.Ctx, v) {
		n, ok := numOf(inv.Ctx, v)
		if !ok {
			return typeErr(s, inv, "end must be an integer")
		}
		end = normalizeAxisNum(n, rank)
	}
	return returnSize(s, inv.Ctx, symexpr.SliceShape(sh, start, end))
}

// handleShapeRepeat is Python tuple repetition on a Size: (a,b) * 2 ->
// (a,b,a,b). Only a concrete repeat count is supported.
func handleShapeRepeat(s *Session, inv *Invocation) *pathctx.ContextSet {
	sv, ok := inv.Value("size")
	if !ok {
		return typeErr(s, inv, "missing size")
	}
	sh, ok := shapeOf(inv.Ctx, sv)
	if !ok {
		return typeErr(s, inv, "size is not a Size")
	}
	tv, ok := inv.Value("times")
	if !ok {
		return typeErr(s, inv, "missing times")
	}
	times, ok := intConstOf(inv.Ctx, tv)
	if !ok {
		return unsupported(s, inv, "shape.repeat with a symbolic count")
	}
	if times <= 0 {
		return returnSize(s, inv.Ctx, symexpr.ConstShape())
	}
	out := sh
	for i := int64(1); i < times; i++ {
		out = symexpr.ConcatShape(out, sh)
	}
	return returnSize(s, inv.Ctx, out)
}

// handleShapeSetShape installs a shape on an existing object, promoting
// it to the Size subvariant in place ($length tracks the new rank).
func handleShapeSetShape(s *Session, inv *Invocation) *pathctx.ContextSet {
	ov, ok := inv.Value("obj")
	if !ok {
		return typeErr(s, inv, "missing obj")
	}
	obj, ok := derefObject(inv.Ctx, ov)
	if !ok {
		return typeErr(s, inv, "obj is not an object")
	}
	sv, ok := inv.Value("size")
	if !ok {
		return typeErr(s, inv, "missing size")
	}
	sh, ok := shapeOf(inv.Ctx, sv)
	if !ok {
		return typeErr(s, inv, "size is not a Size")
	}
	updated := obj.Clone()
	updated.Shape = symexpr.NormalizeShape(sh)
	updated.Attrs[value.AttrLength] = value.Int{Sym: symexpr.Rank(updated.Shape)}
	updated.Attrs[value.AttrMRO] = value.String{Sym: symexpr.ConstStr("tuple")}
	ctx := inv.Ctx.SetVal(obj.Addr, updated)
	return s.Single(ctx.SetRetVal(value.Addr{A: obj.Addr}))
}

// handleShapeExtract infers a shape from a nested list-of-lists of
// numbers, inspecting only the first element of each nested container.
func handleShapeExtract(s *Session, inv *Invocation) *pathctx.ContextSet {
	ov, ok := inv.Value("obj")
	if !ok {
		return typeErr(s, inv, "missing obj")
	}
	sh, ok := extractShape(inv.Ctx, ov, 0)
	if !ok {
		return typeErr(s, inv, "cannot infer a shape from obj")
	}
	return returnSize(s, inv.Ctx, sh)
}

const maxExtractDepth = 16

func extractShape(ctx *pathctx.Context, v value.Value, depth int) (symexpr.Shape, bool) {
	if depth > maxExtractDepth {
		return nil, false
	}
	if _, ok := numOf(ctx, v); ok {
		return symexpr.ConstShape(), true
	}
	obj, ok := derefObject(ctx, v)
	if !ok {
		return nil, false
	}
	if obj.IsSize() {
		return obj.Shape, true
	}
	n, ok := concreteLength(obj)
	if !ok {
		return nil, false
	}
	if n == 0 {
		return symexpr.ConstShape(symexpr.ConstInt(0)), true
	}
	head, ok := obj.Indices[0]
	if !ok {
		return nil, false
	}
	inner, ok := extractShape(ctx, head, depth+1)
	if !ok {
		return nil, false
	}
	return symexpr.NormalizeShape(
		symexpr.ConcatShape(symexpr.ConstShape(symexpr.ConstInt(n)), inner),
	), true
}

func handleShapeRank(s *Session, inv *Invocation) *pathctx.ContextSet {
	sv, ok := inv.Value("size")
	if !ok {
		return typeErr(s, inv, "missing size")
	}
	sh, ok := shapeOf(inv.Ctx, sv)
	if !ok {
		return typeErr(s, inv, "size is not a Size")
	}
	return s.Single(inv.Ctx.SetRetVal(value.Int{Sym: symexpr.Rank(sh)}))
}

func handleShapeNumel(s *Session, inv *Invocation) *pathctx.ContextSet {
	sv, ok := inv.Value("size")
	if !ok {
		return typeErr(s, inv, "missing size")
	}
	sh, ok := shapeOf(inv.Ctx, sv)
	if !ok {
		return typeErr(s, inv, "size is not a Size")
	}
	return s.Single(inv.Ctx.SetRetVal(value.Int{Sym: symexpr.NormalizeNum(symexpr.Numel(sh))}))
}

func handleShapeConcat(s *Session, inv *Invocation) *pathctx.ContextSet {
	lv, lok := inv.Value("left")
	rv, rok := inv.Value("right")
	if !lok || !rok {
		return typeErr(s, inv, "missing left/right")
	}
	l, ok := shapeOf(inv.Ctx, lv)
	if !ok {
		return typeErr(s, inv, "left is not a Size")
	}
	r, ok := shapeOf(inv.Ctx, rv)
	if !ok {
		return typeErr(s, inv, "right is not a Size")
	}
	return returnSize(s, inv.Ctx, symexpr.ConcatShape(l, r))
}

func handleShapeBroadcast(s *Session, inv *Invocation) *pathctx.ContextSet {
	lv, lok := inv.Value("left")
	rv, rok := inv.Value("right")
	if !lok || !rok {
		return typeErr(s, inv, "missing left/right")
	}
	l, ok := shapeOf(inv.Ctx, lv)
	if !ok {
		return typeErr(s, inv, "left is not a Size")
	}
	r, ok := shapeOf(inv.Ctx, rv)
	if !ok {
		return typeErr(s, inv, "right is not a Size")
	}
	return broadcastResult(s, inv, l, r)
}

// broadcastResult emits the broadcastability obligation for l and r and
// returns the broadcast Size; both-constant shapes fold eagerly so the
// (2) vs (3) mismatch fails with a concrete message.
func broadcastResult(s *Session, inv *Invocation, l, r symexpr.Shape) *pathctx.ContextSet {
	lc, lok := symexpr.NormalizeShape(l).(symexpr.ShapeConst)
	rc, rok := symexpr.NormalizeShape(r).(symexpr.ShapeConst)
	if lok && rok {
		out, err := symexpr.BroadcastConst(lc, rc)
		if err != nil {
			return s.Single(inv.Ctx).
				RequireOne(symexpr.ConstBool(false),
					"shapes "+fmtDims(lc)+" and "+fmtDims(rc)+" are not broadcastable: "+err.Error(),
					inv.Span)
		}
		return returnSize(s, inv.Ctx, out)
	}
	return s.Single(inv.Ctx).
		Require(broadcastObligations(l, r),
			"shapes "+fmtDims(l)+" and "+fmtDims(r)+" must be broadcastable", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, symexpr.Broadcast(l, r))
		})
}

// broadcastObligations builds the per-axis "equal or one side is 1"
// obligations for the aligned suffix when both ranks are concrete, and a
// single equal-shapes obligation otherwise (the conservative fallback a
// range oracle can still discharge when the shapes are identical).
func broadcastObligations(l, r symexpr.Shape) []symexpr.Bool {
	lr, lok := symexpr.AsConstInt(symexpr.Rank(l))
	rr, rok := symexpr.AsConstInt(symexpr.Rank(r))
	if !lok || !rok {
		return []symexpr.Bool{symexpr.Eq(l, r)}
	}
	n := lr
	if rr > n {
		n = rr
	}
	var out []symexpr.Bool
	for i := int64(0); i < n; i++ {
		li := lr - n + i
		ri := rr - n + i
		if li < 0 || ri < 0 {
			continue
		}
		ld := dim(l, li)
		rd := dim(r, ri)
		out = append(out, symexpr.Or(
			symexpr.Eq(ld, rd),
			symexpr.Or(
				symexpr.Eq(ld, symexpr.ConstInt(1)),
				symexpr.Eq(rd, symexpr.ConstInt(1)),
			),
		))
	}
	return out
}
