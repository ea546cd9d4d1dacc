package libcall

import (
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
)

// registerPIL installs the image namespace: an opened image is a
// symbolic (H, W, C) array whose extents are fresh symbols until a
// resize or crop pins them.
func registerPIL(r *Registry) {
	r.Register("PIL.open", handlePILOpen)
	r.Register("PIL.resize", handlePILResize)
	r.Register("PIL.crop", handlePILCrop)
	r.Register("PIL.to_tensor", handlePILToTensor)
}

func handlePILOpen(s *Session, inv *Invocation) *pathctx.ContextSet {
	h := symexpr.SymbolNum(s.Syms.FreshNum("img_h"))
	w := symexpr.SymbolNum(s.Syms.FreshNum("img_w"))
	c := symexpr.SymbolNum(s.Syms.FreshNum("img_c"))
	ctx := inv.Ctx.WithConstraints(inv.Ctx.Constraints.
		Guarantee(symexpr.Lte(symexpr.ConstInt(1), h)).
		Guarantee(symexpr.Lte(symexpr.ConstInt(1), w)).
		Guarantee(symexpr.Lte(symexpr.ConstInt(1), c)).
		Guarantee(symexpr.Lte(c, symexpr.ConstInt(4))))
	return returnSize(s, ctx, symexpr.ConstShape(h, w, c))
}

// handlePILResize pins the spatial extents; PIL sizes are (W, H), the
// array layout keeps (H, W, C).
func handlePILResize(s *Session, inv *Invocation) *pathctx.ContextSet {
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	v, ok := inv.Value("size")
	if !ok {
		return typeErr(s, inv, "missing size")
	}
	w, h, ok := pairOf(inv.Ctx, v)
	if !ok {
		return typeErr(s, inv, "size must be a (width, height) pair")
	}
	return s.Single(inv.Ctx).
		RequireOne(rankObligation(sh, 3), "resize expects an (H, W, C) image", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, symexpr.ConstShape(h, w, dim(sh, 2)))
		})
}

// handlePILCrop takes a (left, upper, right, lower) box.
func handlePILCrop(s *Session, inv *Invocation) *pathctx.ContextSet {
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	bv, ok := inv.Value("box")
	if !ok {
		return typeErr(s, inv, "missing box")
	}
	obj, ok := derefObject(inv.Ctx, bv)
	if !ok {
		return typeErr(s, inv, "box must be a 4-tuple")
	}
	box, ok := dimsFromSequence(inv.Ctx, obj)
	if !ok || len(box) != 4 {
		return typeErr(s, inv, "box must be a 4-tuple")
	}
	left, upper, right, lower := box[0], box[1], box[2], box[3]
	h := symexpr.NormalizeNum(symexpr.Bop(symexpr.Sub, lower, upper))
	w := symexpr.NormalizeNum(symexpr.Bop(symexpr.Sub, right, left))
	return s.Single(inv.Ctx).
		Require([]symexpr.Bool{
			rankObligation(sh, 3),
			symexpr.Lte(symexpr.ConstInt(0), w),
			symexpr.Lte(symexpr.ConstInt(0), h),
		}, "crop box extents must be non-negative and the input an (H, W, C) image", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, symexpr.ConstShape(h, w, dim(sh, 2)))
		})
}

// handlePILToTensor converts (H, W, C) to torch's (C, H, W).
func handlePILToTensor(s *Session, inv *Invocation) *pathctx.ContextSet {
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	return s.Single(inv.Ctx).
		RequireOne(rankObligation(sh, 3), "to_tensor expects an (H, W, C) image", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx,
				symexpr.ConstShape(dim(sh, 2), dim(sh, 0), dim(sh, 1)))
		})
}
