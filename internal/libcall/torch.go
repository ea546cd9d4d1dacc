package libcall

import (
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

// registerTorch installs the tensor-plumbing half of the torch
// namespace: creation, elementwise broadcasting, matmul and friends,
// and the view/permute/cat family of pure shape rewrites.
func registerTorch(r *Registry) {
	for _, name := range []string{
		"torch.tensor", "torch.zeros", "torch.ones", "torch.rand",
		"torch.randn", "torch.empty", "torch.full",
	} {
		r.Register(name, handleCreate)
	}
	for _, name := range []string{
		"torch.relu", "torch.sigmoid", "torch.tanh", "torch.softmax",
		"torch.log_softmax", "torch.dropout", "torch.clone",
		"torch.detach", "torch.contiguous", "torch.to", "torch.cpu",
		"torch.cuda", "torch.float", "torch.double", "torch.long",
		"torch.exp", "torch.log", "torch.neg", "torch.sqrt",
	} {
		r.Register(name, handleIdentity)
	}
	for _, name := range []string{
		"torch.add", "torch.sub", "torch.mul", "torch.div",
		"torch.pow", "torch.floor_divide", "torch.remainder",
		"torch.minimum", "torch.maximum",
	} {
		r.Register(name, handleElementwise)
	}
	r.Register("torch.matmul", handleMatmul)
	r.Register("torch.mm", handleMM)
	r.Register("torch.bmm", handleBMM)
	r.Register("torch.view", handleView)
	r.Register("torch.reshape", handleView)
	r.Register("torch.flatten", handleFlatten)
	r.Register("torch.transpose", handleTranspose)
	r.Register("torch.t", handleT)
	r.Register("torch.permute", handlePermute)
	r.Register("torch.squeeze", handleSqueeze)
	r.Register("torch.unsqueeze", handleUnsqueeze)
	r.Register("torch.cat", handleCat)
	r.Register("torch.stack", handleStack)
	r.Register("torch.expand", handleExpand)
	r.Register("torch.repeat", handleRepeat)
	r.Register("torch.narrow", handleNarrow)
	for _, name := range []string{
		"torch.sum", "torch.mean", "torch.prod", "torch.amax",
		"torch.amin", "torch.argmax", "torch.argmin", "torch.norm",
	} {
		r.Register(name, handleReduce)
	}
	r.Register("torch.topk", handleTopk)
	r.Register("torch.size", handleSize)
	r.Register("torch.item", handleItem)
	r.Register("torch.len", handleLen)
}

func inputShape(s *Session, inv *Invocation) (symexpr.Shape, *pathctx.ContextSet) {
	v, ok := inv.Value("input")
	if !ok {
		return nil, typeErr(s, inv, "missing input")
	}
	sh, ok := shapeOf(inv.Ctx, v)
	if !ok {
		return nil, typeErr(s, inv, "input is not a tensor")
	}
	return sh, nil
}

// handleCreate covers torch.zeros/ones/rand/...: a size tuple (or an
// existing Size) in, a fresh Size out. torch.tensor with nested-list
// data routes through the same extraction as shape.extractShape.
func handleCreate(s *Session, inv *Invocation) *pathctx.ContextSet {
	if v, ok := inv.Value("size"); ok {
		sh, ok := shapeOf(inv.Ctx, v)
		if !ok {
			return typeErr(s, inv, "size must be a tuple of integers")
		}
		return returnSize(s, inv.Ctx, sh)
	}
	if v, ok := inv.Value("data"); ok {
		sh, ok := extractShape(inv.Ctx, v, 0)
		if !ok {
			return typeErr(s, inv, "cannot infer a shape from data")
		}
		return returnSize(s, inv.Ctx, sh)
	}
	return typeErr(s, inv, "missing size")
}

func handleIdentity(s *Session, inv *Invocation) *pathctx.ContextSet {
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	return returnSize(s, inv.Ctx, sh)
}

func handleElementwise(s *Session, inv *Invocation) *pathctx.ContextSet {
	lv, ok := inv.Value("input")
	if !ok {
		return typeErr(s, inv, "missing input")
	}
	rv, ok := inv.Value("other")
	if !ok {
		return typeErr(s, inv, "missing other")
	}
	l, lok := shapeOf(inv.Ctx, lv)
	// A scalar operand broadcasts trivially: keep the tensor side.
	if _, isNum := numOf(inv.Ctx, rv); isNum {
		if !lok {
			return typeErr(s, inv, "input is not a tensor")
		}
		return returnSize(s, inv.Ctx, l)
	}
	r, rok := shapeOf(inv.Ctx, rv)
	if !lok && rok {
		return returnSize(s, inv.Ctx, r)
	}
	if !lok || !rok {
		return typeErr(s, inv, "operands are not tensors")
	}
	return broadcastResult(s, inv, l, r)
}

// handleMatmul implements torch.matmul's rank-dependent contract:
// 1-D/2-D operands follow the vector/matrix rules, higher ranks batch
// with right-aligned broadcast on the leading dims. Every case records
// the inner-dimension obligation; all but the 1-D by 1-D dot product
// also record the "at least one row/col" precondition on symbolic dims.
func handleMatmul(s *Session, inv *Invocation) *pathctx.ContextSet {
	lv, _ := inv.Value("input")
	rv, _ := inv.Value("other")
	l, lok := shapeOf(inv.Ctx, lv)
	r, rok := shapeOf(inv.Ctx, rv)
	if !lok || !rok {
		return typeErr(s, inv, "operands are not tensors")
	}
	lr, lrOK := symexpr.AsConstInt(symexpr.Rank(l))
	rr, rrOK := symexpr.AsConstInt(symexpr.Rank(r))
	if !lrOK || !rrOK {
		return unsupported(s, inv, "matmul with symbolic-rank operands")
	}
	if lr == 0 || rr == 0 {
		return s.Single(inv.Ctx).RequireOne(symexpr.ConstBool(false),
			"matmul does not accept rank-0 operands", inv.Span)
	}

	inner := symexpr.Eq(dim(l, lr-1), dim(r, maxI64(rr-2, 0)))
	switch {
	case lr == 1 && rr == 1:
		return s.Single(inv.Ctx).
			RequireOne(inner, "matmul inner dimensions must agree", inv.Span).
			Return(value.Float{Sym: symexpr.SymbolNum(s.Syms.FreshNum("dot"))})
	case lr == 1 && rr == 2:
		return matmulObligations(s, inv, l, r, inner,
			symexpr.SliceShape(r, symexpr.ConstInt(1), nil))
	case lr == 2 && rr == 1:
		return matmulObligations(s, inv, l, r, inner,
			symexpr.SliceShape(l, nil, symexpr.ConstInt(1)))
	case lr == 2 && rr == 2:
		return matmulObligations(s, inv, l, r, inner,
			symexpr.ConstShape(dim(l, 0), dim(r, 1)))
	default:
		// Batched: broadcast the leading dims, keep (n, m) from the two
		// trailing matrix dims (a rank-1 side is promoted first).
		lm, rm := promoteToMatrix(l, lr), promoteToMatrix(r, rr)
		lBatch := symexpr.SliceShape(lm, nil, symexpr.Bop(symexpr.Sub, symexpr.Rank(lm), symexpr.ConstInt(2)))
		rBatch := symexpr.SliceShape(rm, nil, symexpr.Bop(symexpr.Sub, symexpr.Rank(rm), symexpr.ConstInt(2)))
		batch := symexpr.Broadcast(lBatch, rBatch)
		lmr, _ := symexpr.AsConstInt(symexpr.Rank(lm))
		rmr, _ := symexpr.AsConstInt(symexpr.Rank(rm))
		out := symexpr.ConcatShape(batch, symexpr.ConstShape(dim(lm, lmr-2), dim(rm, rmr-1)))
		inner = symexpr.Eq(dim(lm, lmr-1), dim(rm, rmr-2))
		return matmulObligations(s, inv, l, r, inner, out)
	}
}

// matmulObligations requires the inner-dim equation plus >= 1 on every
// symbolic dim of both operands (matmul's precondition on empty
// tensors), then returns the result Size.
func matmulObligations(s *Session, inv *Invocation, l, r symexpr.Shape, inner symexpr.Bool, out symexpr.Shape) *pathctx.ContextSet {
	obligations := []symexpr.Bool{inner}
	obligations = append(obligations, positiveDims(l)...)
	obligations = append(obligations, positiveDims(r)...)
	return s.Single(inv.Ctx).
		Require(obligations, "matmul inner dimensions must agree", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, out)
		})
}

// positiveDims yields "d >= 1" for each symbolic dim of a concrete-rank
// shape; concrete dims are checked eagerly by normalisation instead.
func positiveDims(sh symexpr.Shape) []symexpr.Bool {
	rank, ok := symexpr.AsConstInt(symexpr.Rank(sh))
	if !ok {
		return nil
	}
	var out []symexpr.Bool
	for i := int64(0); i < rank; i++ {
		d := dim(sh, i)
		if _, isConst := symexpr.AsConstInt(d); isConst {
			continue
		}
		out = append(out, symexpr.Lte(symexpr.ConstInt(1), d))
	}
	return out
}

func promoteToMatrix(sh symexpr.Shape, rank int64) symexpr.Shape {
	if rank == 1 {
		return symexpr.ConcatShape(symexpr.ConstShape(symexpr.ConstInt(1)), sh)
	}
	return sh
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func handleMM(s *Session, inv *Invocation) *pathctx.ContextSet {
	lv, _ := inv.Value("input")
	rv, _ := inv.Value("other")
	l, lok := shapeOf(inv.Ctx, lv)
	r, rok := shapeOf(inv.Ctx, rv)
	if !lok || !rok {
		return typeErr(s, inv, "operands are not tensors")
	}
	return s.Single(inv.Ctx).
		Require([]symexpr.Bool{
			rankObligation(l, 2),
			rankObligation(r, 2),
			symexpr.Eq(dim(l, 1), dim(r, 0)),
		}, "mm requires 2-D operands with matching inner dimensions", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, symexpr.ConstShape(dim(l, 0), dim(r, 1)))
		})
}

func handleBMM(s *Session, inv *Invocation) *pathctx.ContextSet {
	lv, _ := inv.Value("input")
	rv, _ := inv.Value("other")
	l, lok := shapeOf(inv.Ctx, lv)
	r, rok := shapeOf(inv.Ctx, rv)
	if !lok || !rok {
		return typeErr(s, inv, "operands are not tensors")
	}
	return s.Single(inv.Ctx).
		Require([]symexpr.Bool{
			rankObligation(l, 3),
			rankObligation(r, 3),
			symexpr.Eq(dim(l, 0), dim(r, 0)),
			symexpr.Eq(dim(l, 2), dim(r, 1)),
		}, "bmm requires 3-D operands with matching batch and inner dimensions", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, symexpr.ConstShape(dim(l, 0), dim(l, 1), dim(r, 2)))
		})
}

// handleView implements view/reshape: the target is a constant-rank
// tuple that may contain one -1 wildcard; the wildcard dim is
// numel(input) / product(explicit dims), with the divisibility
// obligation recorded.
func handleView(s *Session, inv *Invocation) *pathctx.ContextSet {
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	tv, ok := inv.Value("size")
	if !ok {
		return typeErr(s, inv, "missing size")
	}
	target, ok := shapeOf(inv.Ctx, tv)
	if !ok {
		return typeErr(s, inv, "size must be a tuple of integers")
	}
	tc, ok := symexpr.NormalizeShape(target).(symexpr.ShapeConst)
	if !ok {
		return unsupported(s, inv, "view with a symbolic-rank target")
	}

	wildcard := int64(-1)
	known := symexpr.Num(symexpr.ConstInt(1))
	for i, d := range tc.Dims {
		if k, isConst := symexpr.AsConstInt(d); isConst && k == -1 {
			if wildcard >= 0 {
				return typeErr(s, inv, "view accepts at most one -1 wildcard")
			}
			wildcard = int64(i)
			continue
		}
		known = symexpr.Bop(symexpr.Mul, known, d)
	}
	known = symexpr.NormalizeNum(known)
	numel := symexpr.NormalizeNum(symexpr.Numel(sh))

	if wildcard < 0 {
		return s.Single(inv.Ctx).
			RequireOne(symexpr.Eq(numel, known),
				"view target must preserve the element count", inv.Span).
			FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
				return returnSize(s, ctx, tc)
			})
	}

	filled := symexpr.NormalizeNum(symexpr.Bop(symexpr.TrueDiv, numel, known))
	dims := append([]symexpr.Num(nil), tc.Dims...)
	dims[wildcard] = filled
	return s.Single(inv.Ctx).
		Require([]symexpr.Bool{
			symexpr.Lte(symexpr.ConstInt(1), known),
			symexpr.Eq(symexpr.Bop(symexpr.Mod, numel, known), symexpr.ConstInt(0)),
		}, "view wildcard must divide the element count", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, symexpr.ConstShape(dims...))
		})
}

func handleFlatten(s *Session, inv *Invocation) *pathctx.ContextSet {
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	rank, ok := symexpr.AsConstInt(symexpr.Rank(sh))
	if !ok {
		return unsupported(s, inv, "flatten with a symbolic-rank input")
	}
	start := int64(0)
	if v, ok := inv.Value("start_dim"); ok {
		if k, isConst := intConstOf(inv.Ctx, v); isConst {
			start = normalizeAxis(k, rank)
		}
	}
	end := rank - 1
	if v, ok := inv.Value("end_dim"); ok {
		if k, isConst := intConstOf(inv.Ctx, v); isConst {
			end = normalizeAxis(k, rank)
		}
	}
	if start < 0 || end >= rank || start > end {
		return typeErr(s, inv, "flatten dims out of range")
	}
	mid := symexpr.Numel(symexpr.SliceShape(sh, symexpr.ConstInt(start), symexpr.ConstInt(end+1)))
	out := symexpr.ConcatShape(
		symexpr.SliceShape(sh, nil, symexpr.ConstInt(start)),
		symexpr.ConcatShape(
			symexpr.ConstShape(symexpr.NormalizeNum(mid)),
			symexpr.SliceShape(sh, symexpr.ConstInt(end+1), nil),
		),
	)
	return returnSize(s, inv.Ctx, out)
}

func handleTranspose(s *Session, inv *Invocation) *pathctx.ContextSet {
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	rank, ok := symexpr.AsConstInt(symexpr.Rank(sh))
	if !ok {
		return unsupported(s, inv, "transpose with a symbolic-rank input")
	}
	d0v, _ := inv.Value("dim0")
	d1v, _ := inv.Value("dim1")
	d0, ok0 := intConstOf(inv.Ctx, d0v)
	d1, ok1 := intConstOf(inv.Ctx, d1v)
	if !ok0 || !ok1 {
		return unsupported(s, inv, "transpose with symbolic dims")
	}
	d0, d1 = normalizeAxis(d0, rank), normalizeAxis(d1, rank)
	if d0 < 0 || d0 >= rank || d1 < 0 || d1 >= rank {
		return typeErr(s, inv, "transpose dims out of range")
	}
	out := symexpr.SetDim(symexpr.SetDim(sh, symexpr.ConstInt(d0), dim(sh, d1)),
		symexpr.ConstInt(d1), dim(sh, d0))
	return returnSize(s, inv.Ctx, out)
}

func handleT(s *Session, inv *Invocation) *pathctx.ContextSet {
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	rank, ok := symexpr.AsConstInt(symexpr.Rank(sh))
	if !ok {
		return unsupported(s, inv, "t() with a symbolic-rank input")
	}
	if rank < 2 {
		return returnSize(s, inv.Ctx, sh)
	}
	if rank > 2 {
		return s.Single(inv.Ctx).RequireOne(symexpr.ConstBool(false),
			"t() expects a tensor of rank <= 2", inv.Span)
	}
	return returnSize(s, inv.Ctx, symexpr.ConstShape(dim(sh, 1), dim(sh, 0)))
}

func handlePermute(s *Session, inv *Invocation) *pathctx.ContextSet {
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	rank, ok := symexpr.AsConstInt(symexpr.Rank(sh))
	if !ok {
		return unsupported(s, inv, "permute with a symbolic-rank input")
	}
	dv, ok := inv.Value("dims")
	if !ok {
		return typeErr(s, inv, "missing dims")
	}
	obj, ok := derefObject(inv.Ctx, dv)
	if !ok {
		return typeErr(s, inv, "dims must be a tuple")
	}
	order, ok := dimsFromSequence(inv.Ctx, obj)
	if !ok {
		return typeErr(s, inv, "dims must be a tuple of integers")
	}
	if int64(len(order)) != rank {
		return s.Single(inv.Ctx).RequireOne(symexpr.ConstBool(false),
			"permute order must name every dimension exactly once", inv.Span)
	}
	seen := map[int64]bool{}
	dims := make([]symexpr.Num, len(order))
	for i, o := range order {
		k, isConst := symexpr.AsConstInt(o)
		if !isConst {
			return unsupported(s, inv, "permute with symbolic dims")
		}
		k = normalizeAxis(k, rank)
		if k < 0 || k >= rank || seen[k] {
			return s.Single(inv.Ctx).RequireOne(symexpr.ConstBool(false),
				"permute order must name every dimension exactly once", inv.Span)
		}
		seen[k] = true
		dims[i] = dim(sh, k)
	}
	return returnSize(s, inv.Ctx, symexpr.ConstShape(dims...))
}

// handleSqueeze forks on whether the named dim is 1 when that cannot be
// decided statically: the then-branch drops the dim, the else-branch
// keeps the shape unchanged, each carrying its literal.
func handleSqueeze(s *Session, inv *Invocation) *pathctx.ContextSet {
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	rank, ok := symexpr.AsConstInt(symexpr.Rank(sh))
	if !ok {
		return unsupported(s, inv, "squeeze with a symbolic-rank input")
	}
	dv, hasDim := inv.Value("dim")
	if !hasDim || isNone(inv.Ctx, dv) {
		// Squeeze-all needs every dim concrete to know the result rank.
		dims := make([]symexpr.Num, 0, rank)
		for i := int64(0); i < rank; i++ {
			d := dim(sh, i)
			k, isConst := symexpr.AsConstInt(d)
			if !isConst {
				return unsupported(s, inv, "squeeze-all with symbolic dims")
			}
			if k != 1 {
				dims = append(dims, d)
			}
		}
		return returnSize(s, inv.Ctx, symexpr.ConstShape(dims...))
	}
	k, isConst := intConstOf(inv.Ctx, dv)
	if !isConst {
		return unsupported(s, inv, "squeeze with a symbolic dim")
	}
	k = normalizeAxis(k, rank)
	if k < 0 || k >= rank {
		return typeErr(s, inv, "squeeze dim out of range")
	}
	dropped := symexpr.ConcatShape(
		symexpr.SliceShape(sh, nil, symexpr.ConstInt(k)),
		symexpr.SliceShape(sh, symexpr.ConstInt(k+1), nil),
	)
	cond := symexpr.Eq(dim(sh, k), symexpr.ConstInt(1))
	thenSet, elseSet := s.Single(inv.Ctx).IfThenElse(cond, inv.Span)
	thenSet = thenSet.FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
		return returnSize(s, ctx, dropped)
	})
	elseSet = elseSet.FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
		return returnSize(s, ctx, sh)
	})
	return thenSet.Join(elseSet)
}

func handleUnsqueeze(s *Session, inv *Invocation) *pathctx.ContextSet {
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	rank, ok := symexpr.AsConstInt(symexpr.Rank(sh))
	if !ok {
		return unsupported(s, inv, "unsqueeze with a symbolic-rank input")
	}
	dv, _ := inv.Value("dim")
	k, isConst := intConstOf(inv.Ctx, dv)
	if !isConst {
		return unsupported(s, inv, "unsqueeze with a symbolic dim")
	}
	if k < 0 {
		k += rank + 1
	}
	if k < 0 || k > rank {
		return s.Single(inv.Ctx).RequireOne(symexpr.ConstBool(false),
			"unsqueeze dim out of range", inv.Span)
	}
	out := symexpr.ConcatShape(
		symexpr.SliceShape(sh, nil, symexpr.ConstInt(k)),
		symexpr.ConcatShape(
			symexpr.ConstShape(symexpr.ConstInt(1)),
			symexpr.SliceShape(sh, symexpr.ConstInt(k), nil),
		),
	)
	return returnSize(s, inv.Ctx, out)
}

func catShapes(s *Session, inv *Invocation) ([]symexpr.Shape, *pathctx.ContextSet) {
	tv, ok := inv.Value("tensors")
	if !ok {
		return nil, typeErr(s, inv, "missing tensors")
	}
	obj, ok := derefObject(inv.Ctx, tv)
	if !ok {
		return nil, typeErr(s, inv, "tensors must be a sequence")
	}
	elems, ok := sequenceElems(obj)
	if !ok || len(elems) == 0 {
		return nil, typeErr(s, inv, "tensors must be a non-empty sequence")
	}
	shapes := make([]symexpr.Shape, len(elems))
	for i, e := range elems {
		sh, ok := shapeOf(inv.Ctx, e)
		if !ok {
			return nil, typeErr(s, inv, "tensors must contain only tensors")
		}
		shapes[i] = sh
	}
	return shapes, nil
}

func handleCat(s *Session, inv *Invocation) *pathctx.ContextSet {
	shapes, fail := catShapes(s, inv)
	if fail != nil {
		return fail
	}
	d := int64(0)
	if dv, ok := inv.Value("dim"); ok {
		if k, isConst := intConstOf(inv.Ctx, dv); isConst {
			d = k
		}
	}
	rank, ok := symexpr.AsConstInt(symexpr.Rank(shapes[0]))
	if !ok {
		return unsupported(s, inv, "cat with a symbolic-rank input")
	}
	d = normalizeAxis(d, rank)
	if d < 0 || d >= rank {
		return typeErr(s, inv, "cat dim out of range")
	}
	var obligations []symexpr.Bool
	total := dim(shapes[0], d)
	for _, sh := range shapes[1:] {
		obligations = append(obligations, rankObligation(sh, rank))
		for i := int64(0); i < rank; i++ {
			if i == d {
				continue
			}
			obligations = append(obligations, symexpr.Eq(dim(shapes[0], i), dim(sh, i)))
		}
		total = symexpr.Bop(symexpr.Add, total, dim(sh, d))
	}
	out := symexpr.SetDim(shapes[0], symexpr.ConstInt(d), symexpr.NormalizeNum(total))
	return s.Single(inv.Ctx).
		Require(obligations, "cat operands must agree on every non-cat dimension", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, out)
		})
}

func handleStack(s *Session, inv *Invocation) *pathctx.ContextSet {
	shapes, fail := catShapes(s, inv)
	if fail != nil {
		return fail
	}
	d := int64(0)
	if dv, ok := inv.Value("dim"); ok {
		if k, isConst := intConstOf(inv.Ctx, dv); isConst {
			d = k
		}
	}
	rank, ok := symexpr.AsConstInt(symexpr.Rank(shapes[0]))
	if !ok {
		return unsupported(s, inv, "stack with a symbolic-rank input")
	}
	if d < 0 {
		d += rank + 1
	}
	if d < 0 || d > rank {
		return typeErr(s, inv, "stack dim out of range")
	}
	var obligations []symexpr.Bool
	for _, sh := range shapes[1:] {
		obligations = append(obligations, symexpr.Eq(shapes[0], sh))
	}
	out := symexpr.ConcatShape(
		symexpr.SliceShape(shapes[0], nil, symexpr.ConstInt(d)),
		symexpr.ConcatShape(
			symexpr.ConstShape(symexpr.ConstInt(int64(len(shapes)))),
			symexpr.SliceShape(shapes[0], symexpr.ConstInt(d), nil),
		),
	)
	return s.Single(inv.Ctx).
		Require(obligations, "stack operands must have identical shapes", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, out)
		})
}

// handleExpand: every target dim equals the input dim, or the input dim
// is 1, or the target entry is -1 (keep).
func handleExpand(s *Session, inv *Invocation) *pathctx.ContextSet {
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	tv, ok := inv.Value("size")
	if !ok {
		return typeErr(s, inv, "missing size")
	}
	target, ok := shapeOf(inv.Ctx, tv)
	if !ok {
		return typeErr(s, inv, "size must be a tuple of integers")
	}
	tc, ok := symexpr.NormalizeShape(target).(symexpr.ShapeConst)
	if !ok {
		return unsupported(s, inv, "expand with a symbolic-rank target")
	}
	rank, ok := symexpr.AsConstInt(symexpr.Rank(sh))
	if !ok {
		return unsupported(s, inv, "expand with a symbolic-rank input")
	}
	n := int64(tc.Rank)
	if n < rank {
		return s.Single(inv.Ctx).RequireOne(symexpr.ConstBool(false),
			"expand target rank must be >= input rank", inv.Span)
	}
	var obligations []symexpr.Bool
	dims := make([]symexpr.Num, n)
	for i := int64(0); i < n; i++ {
		td := tc.Dims[i]
		si := rank - n + i
		if si < 0 {
			dims[i] = td
			continue
		}
		sd := dim(sh, si)
		if k, isConst := symexpr.AsConstInt(td); isConst && k == -1 {
			dims[i] = sd
			continue
		}
		obligations = append(obligations, symexpr.Or(
			symexpr.Eq(sd, td),
			symexpr.Eq(sd, symexpr.ConstInt(1)),
		))
		dims[i] = td
	}
	return s.Single(inv.Ctx).
		Require(obligations, "expand target must match or broadcast every input dimension", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, symexpr.ConstShape(dims...))
		})
}

// handleRepeat: tile the input; the sizes tuple must be at least as long
// as the input rank, and each output dim is sizes[i] * aligned input dim.
func handleRepeat(s *Session, inv *Invocation) *pathctx.ContextSet {
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	tv, ok := inv.Value("size")
	if !ok {
		return typeErr(s, inv, "missing size")
	}
	target, ok := shapeOf(inv.Ctx, tv)
	if !ok {
		return typeErr(s, inv, "size must be a tuple of integers")
	}
	tc, ok := symexpr.NormalizeShape(target).(symexpr.ShapeConst)
	if !ok {
		return unsupported(s, inv, "repeat with a symbolic-rank multiplier")
	}
	rank, ok := symexpr.AsConstInt(symexpr.Rank(sh))
	if !ok {
		return unsupported(s, inv, "repeat with a symbolic-rank input")
	}
	n := int64(tc.Rank)
	if n < rank {
		return s.Single(inv.Ctx).RequireOne(symexpr.ConstBool(false),
			"repeat needs at least as many multipliers as input dimensions", inv.Span)
	}
	dims := make([]symexpr.Num, n)
	for i := int64(0); i < n; i++ {
		si := rank - n + i
		if si < 0 {
			dims[i] = tc.Dims[i]
			continue
		}
		dims[i] = symexpr.NormalizeNum(symexpr.Bop(symexpr.Mul, tc.Dims[i], dim(sh, si)))
	}
	return returnSize(s, inv.Ctx, symexpr.ConstShape(dims...))
}

func handleNarrow(s *Session, inv *Invocation) *pathctx.ContextSet {
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	rank := symexpr.Rank(sh)
	dv, _ := inv.Value("dim")
	d, ok := numOf(inv.Ctx, dv)
	if !ok {
		return typeErr(s, inv, "dim must be an integer")
	}
	d = normalizeAxisNum(d, rank)
	startV, _ := inv.Value("start")
	start, ok := numOf(inv.Ctx, startV)
	if !ok {
		return typeErr(s, inv, "start must be an integer")
	}
	lenV, _ := inv.Value("length")
	length, ok := numOf(inv.Ctx, lenV)
	if !ok {
		return typeErr(s, inv, "length must be an integer")
	}
	cur := symexpr.NormalizeNum(symexpr.Index(sh, d))
	return s.Single(inv.Ctx).
		Require([]symexpr.Bool{
			symexpr.Lte(symexpr.ConstInt(0), start),
			symexpr.Lte(symexpr.Bop(symexpr.Add, start, length), cur),
		}, "narrow window must fit inside the dimension", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, symexpr.SetDim(sh, d, length))
		})
}

// handleReduce covers sum/mean/prod/amax/amin/argmax/argmin/norm: no dim
// collapses to a scalar, a concrete dim is removed (or kept as 1 under
// keepdim).
func handleReduce(s *Session, inv *Invocation) *pathctx.ContextSet {
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	dv, hasDim := inv.Value("dim")
	if !hasDim || isNone(inv.Ctx, dv) {
		return returnSize(s, inv.Ctx, symexpr.ConstShape())
	}
	rank, ok := symexpr.AsConstInt(symexpr.Rank(sh))
	if !ok {
		return unsupported(s, inv, "reduce over a symbolic-rank input")
	}
	k, isConst := intConstOf(inv.Ctx, dv)
	if !isConst {
		return unsupported(s, inv, "reduce with a symbolic dim")
	}
	k = normalizeAxis(k, rank)
	if k < 0 || k >= rank {
		return s.Single(inv.Ctx).RequireOne(symexpr.ConstBool(false),
			"reduce dim out of range", inv.Span)
	}
	keep := false
	if kv, ok := inv.Value("keepdim"); ok {
		if bv, ok := kv.(value.Bool); ok {
			if c, ok := bv.Sym.(symexpr.BoolConst); ok {
				keep = c.Value
			}
		}
	}
	if keep {
		return returnSize(s, inv.Ctx, symexpr.SetDim(sh, symexpr.ConstInt(k), symexpr.ConstInt(1)))
	}
	out := symexpr.ConcatShape(
		symexpr.SliceShape(sh, nil, symexpr.ConstInt(k)),
		symexpr.SliceShape(sh, symexpr.ConstInt(k+1), nil),
	)
	return returnSize(s, inv.Ctx, out)
}

// handleTopk returns a (values, indices) tuple of two Sizes with the
// selected dim narrowed to k.
func handleTopk(s *Session, inv *Invocation) *pathctx.ContextSet {
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	kv, ok := inv.Value("k")
	if !ok {
		return typeErr(s, inv, "missing k")
	}
	k, ok := numOf(inv.Ctx, kv)
	if !ok {
		return typeErr(s, inv, "k must be an integer")
	}
	rank := symexpr.Rank(sh)
	d := symexpr.Num(symexpr.Bop(symexpr.Sub, rank, symexpr.ConstInt(1)))
	if dv, hasDim := inv.Value("dim"); hasDim && !isNone(inv.Ctx, dv) {
		n, ok := numOf(inv.Ctx, dv)
		if !ok {
			return typeErr(s, inv, "dim must be an integer")
		}
		d = normalizeAxisNum(n, rank)
	}
	d = symexpr.NormalizeNum(d)
	cur := symexpr.NormalizeNum(symexpr.Index(sh, d))
	out := symexpr.SetDim(sh, d, k)
	return s.Single(inv.Ctx).
		RequireOne(symexpr.Lte(k, cur), "topk k must not exceed the selected dimension", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			ctx1, values := newSize(s, ctx, out)
			ctx2, indices := newSize(s, ctx1, out)
			ctx3, tuple := newSequence(s, ctx2, []value.Value{values, indices}, "tuple")
			return s.Single(ctx3.SetRetVal(tuple))
		})
}

// handleSize returns the Size reflection of a tensor, or one dim as an
// Int when a dim parameter is supplied.
func handleSize(s *Session, inv *Invocation) *pathctx.ContextSet {
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	if dv, ok := inv.Value("dim"); ok && !isNone(inv.Ctx, dv) {
		n, ok := numOf(inv.Ctx, dv)
		if !ok {
			return typeErr(s, inv, "dim must be an integer")
		}
		rank := symexpr.Rank(sh)
		n = normalizeAxisNum(n, rank)
		return s.Single(inv.Ctx).
			Require([]symexpr.Bool{
				symexpr.Lte(symexpr.ConstInt(0), n),
				symexpr.Lt(n, rank),
			}, "size dim out of range", inv.Span).
			Return(value.Int{Sym: symexpr.NormalizeNum(symexpr.Index(sh, n))})
	}
	return returnSize(s, inv.Ctx, sh)
}

// handleItem models tensor.item(): a scalar pulled out of a tensor is a
// fresh symbolic Float the analysis cannot evaluate numerically.
func handleItem(s *Session, inv *Invocation) *pathctx.ContextSet {
	if _, fail := inputShape(s, inv); fail != nil {
		return fail
	}
	return s.Single(inv.Ctx.SetRetVal(
		value.Float{Sym: symexpr.SymbolNum(s.Syms.FreshNum("item"))}))
}

// handleLen is len() on a tensor: its first dimension.
func handleLen(s *Session, inv *Invocation) *pathctx.ContextSet {
	sh, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	return s.Single(inv.Ctx).
		RequireOne(symexpr.Lte(symexpr.ConstInt(1), symexpr.Rank(sh)),
			"len() of a rank-0 tensor", inv.Span).
		Return(value.Int{Sym: dim(sh, 0)})
}
