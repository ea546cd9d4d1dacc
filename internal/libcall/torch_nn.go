package libcall

import (
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
)

// registerTorchNN installs the layer-level contracts: convolution,
// pooling, normalisation, linear/embedding, and the loss heads.
func registerTorchNN(r *Registry) {
	r.Register("torch.conv2d", handleConv2d)
	r.Register("torch.conv_transpose2d", handleConvTranspose2d)
	r.Register("torch.maxpool2d", handlePool2d)
	r.Register("torch.avgpool2d", handlePool2d)
	r.Register("torch.adaptive_avg_pool2d", handleAdaptivePool2d)
	r.Register("torch.batch_norm", handleBatchNorm)
	r.Register("torch.layer_norm", handleLayerNorm)
	r.Register("torch.linear", handleLinear)
	r.Register("torch.embedding", handleEmbedding)
	r.Register("torch.cross_entropy", handleCrossEntropy)
	r.Register("torch.nll_loss", handleCrossEntropy)
	r.Register("torch.mse_loss", handleMSELoss)
}

// convSpatial is the closed form for one convolution output extent:
// floor((in + 2*pad - dilation*(kernel-1) - 1) / stride) + 1.
func convSpatial(in, pad, dilation, kernel, stride symexpr.Num) symexpr.Num {
	numer := symexpr.Bop(symexpr.Sub,
		symexpr.Bop(symexpr.Sub,
			symexpr.Bop(symexpr.Add, in, symexpr.Bop(symexpr.Mul, symexpr.ConstInt(2), pad)),
			symexpr.Bop(symexpr.Mul, dilation, symexpr.Bop(symexpr.Sub, kernel, symexpr.ConstInt(1)))),
		symexpr.ConstInt(1))
	return symexpr.NormalizeNum(symexpr.Bop(symexpr.Add,
		symexpr.Bop(symexpr.FloorDiv, numer, stride),
		symexpr.ConstInt(1)))
}

func convPair(s *Session, inv *Invocation, name string, def int64) (symexpr.Num, symexpr.Num, *pathctx.ContextSet) {
	v, ok := inv.Value(name)
	if !ok || isNone(inv.Ctx, v) {
		d := symexpr.ConstInt(def)
		return d, d, nil
	}
	h, w, ok := pairOf(inv.Ctx, v)
	if !ok {
		return nil, nil, typeErr(s, inv, name+" must be an int or a pair of ints")
	}
	return h, w, nil
}

func handleConv2d(s *Session, inv *Invocation) *pathctx.ContextSet {
	in, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	wv, ok := inv.Value("weight")
	if !ok {
		return typeErr(s, inv, "missing weight")
	}
	w, ok := shapeOf(inv.Ctx, wv)
	if !ok {
		return typeErr(s, inv, "weight is not a tensor")
	}
	strideH, strideW, fail := convPair(s, inv, "stride", 1)
	if fail != nil {
		return fail
	}
	padH, padW, fail := convPair(s, inv, "padding", 0)
	if fail != nil {
		return fail
	}
	dilH, dilW, fail := convPair(s, inv, "dilation", 1)
	if fail != nil {
		return fail
	}
	groups := symexpr.Num(symexpr.ConstInt(1))
	if gv, ok := inv.Value("groups"); ok && !isNone(inv.Ctx, gv) {
		g, ok := numOf(inv.Ctx, gv)
		if !ok {
			return typeErr(s, inv, "groups must be an integer")
		}
		groups = g
	}

	outC := dim(w, 0)
	obligations := []symexpr.Bool{
		rankObligation(in, 4),
		rankObligation(w, 4),
		symexpr.Eq(dim(in, 1), symexpr.NormalizeNum(symexpr.Bop(symexpr.Mul, dim(w, 1), groups))),
		symexpr.Eq(symexpr.Bop(symexpr.Mod, dim(in, 1), groups), symexpr.ConstInt(0)),
		symexpr.Eq(symexpr.Bop(symexpr.Mod, outC, groups), symexpr.ConstInt(0)),
	}
	if bv, ok := inv.Value("bias"); ok && !isNone(inv.Ctx, bv) {
		b, ok := shapeOf(inv.Ctx, bv)
		if !ok {
			return typeErr(s, inv, "bias is not a tensor")
		}
		obligations = append(obligations,
			rankObligation(b, 1),
			symexpr.Or(
				symexpr.Eq(dim(b, 0), outC),
				symexpr.Eq(dim(b, 0), symexpr.ConstInt(-1)),
			),
		)
	}

	outH := convSpatial(dim(in, 2), padH, dilH, dim(w, 2), strideH)
	outW := convSpatial(dim(in, 3), padW, dilW, dim(w, 3), strideW)
	obligations = append(obligations,
		symexpr.Lte(symexpr.ConstInt(0), outH),
		symexpr.Lte(symexpr.ConstInt(0), outW),
	)

	return s.Single(inv.Ctx).
		Require(obligations,
			"conv2d expects NCHW input and OIHW weight with compatible channels and a non-negative output size",
			inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, symexpr.ConstShape(dim(in, 0), outC, outH, outW))
		})
}

func handleConvTranspose2d(s *Session, inv *Invocation) *pathctx.ContextSet {
	in, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	wv, ok := inv.Value("weight")
	if !ok {
		return typeErr(s, inv, "missing weight")
	}
	w, ok := shapeOf(inv.Ctx, wv)
	if !ok {
		return typeErr(s, inv, "weight is not a tensor")
	}
	strideH, strideW, fail := convPair(s, inv, "stride", 1)
	if fail != nil {
		return fail
	}
	padH, padW, fail := convPair(s, inv, "padding", 0)
	if fail != nil {
		return fail
	}
	dilH, dilW, fail := convPair(s, inv, "dilation", 1)
	if fail != nil {
		return fail
	}
	outPadH, outPadW, fail := convPair(s, inv, "output_padding", 0)
	if fail != nil {
		return fail
	}

	// (in-1)*stride - 2*pad + dilation*(kernel-1) + output_padding + 1
	transSpatial := func(in, stride, pad, dil, kernel, outPad symexpr.Num) symexpr.Num {
		return symexpr.NormalizeNum(symexpr.Bop(symexpr.Add,
			symexpr.Bop(symexpr.Add,
				symexpr.Bop(symexpr.Add,
					symexpr.Bop(symexpr.Sub,
						symexpr.Bop(symexpr.Mul, symexpr.Bop(symexpr.Sub, in, symexpr.ConstInt(1)), stride),
						symexpr.Bop(symexpr.Mul, symexpr.ConstInt(2), pad)),
					symexpr.Bop(symexpr.Mul, dil, symexpr.Bop(symexpr.Sub, kernel, symexpr.ConstInt(1)))),
				outPad),
			symexpr.ConstInt(1)))
	}
	outH := transSpatial(dim(in, 2), strideH, padH, dilH, dim(w, 2), outPadH)
	outW := transSpatial(dim(in, 3), strideW, padW, dilW, dim(w, 3), outPadW)

	return s.Single(inv.Ctx).
		Require([]symexpr.Bool{
			rankObligation(in, 4),
			rankObligation(w, 4),
			symexpr.Eq(dim(in, 1), dim(w, 0)),
			symexpr.Lte(symexpr.ConstInt(0), outH),
			symexpr.Lte(symexpr.ConstInt(0), outW),
		}, "conv_transpose2d expects NCHW input with weight in-channels matching input channels",
			inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, symexpr.ConstShape(dim(in, 0), dim(w, 1), outH, outW))
		})
}

func handlePool2d(s *Session, inv *Invocation) *pathctx.ContextSet {
	in, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	kH, kW, fail := convPair(s, inv, "kernel_size", 1)
	if fail != nil {
		return fail
	}
	strideH, strideW := kH, kW
	if sv, ok := inv.Value("stride"); ok && !isNone(inv.Ctx, sv) {
		strideH, strideW, fail = convPair(s, inv, "stride", 1)
		if fail != nil {
			return fail
		}
	}
	padH, padW, fail := convPair(s, inv, "padding", 0)
	if fail != nil {
		return fail
	}
	dilH, dilW, fail := convPair(s, inv, "dilation", 1)
	if fail != nil {
		return fail
	}

	outH := convSpatial(dim(in, 2), padH, dilH, kH, strideH)
	outW := convSpatial(dim(in, 3), padW, dilW, kW, strideW)
	return s.Single(inv.Ctx).
		Require([]symexpr.Bool{
			rankObligation(in, 4),
			symexpr.Lte(symexpr.ConstInt(0), outH),
			symexpr.Lte(symexpr.ConstInt(0), outW),
		}, "pool2d expects NCHW input and a window no larger than the padded input", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, symexpr.ConstShape(dim(in, 0), dim(in, 1), outH, outW))
		})
}

func handleAdaptivePool2d(s *Session, inv *Invocation) *pathctx.ContextSet {
	in, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	outH, outW, fail := convPair(s, inv, "output_size", 1)
	if fail != nil {
		return fail
	}
	return s.Single(inv.Ctx).
		RequireOne(rankObligation(in, 4), "adaptive_avg_pool2d expects NCHW input", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, symexpr.ConstShape(dim(in, 0), dim(in, 1), outH, outW))
		})
}

func handleBatchNorm(s *Session, inv *Invocation) *pathctx.ContextSet {
	in, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	obligations := []symexpr.Bool{
		symexpr.Lte(symexpr.ConstInt(2), symexpr.Rank(in)),
	}
	if nv, ok := inv.Value("num_features"); ok && !isNone(inv.Ctx, nv) {
		n, ok := numOf(inv.Ctx, nv)
		if !ok {
			return typeErr(s, inv, "num_features must be an integer")
		}
		obligations = append(obligations, symexpr.Eq(dim(in, 1), n))
	}
	return s.Single(inv.Ctx).
		Require(obligations, "batch_norm channel count must match num_features", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, in)
		})
}

// handleLayerNorm checks the trailing dims against normalized_shape.
func handleLayerNorm(s *Session, inv *Invocation) *pathctx.ContextSet {
	in, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	nv, ok := inv.Value("normalized_shape")
	if !ok {
		return typeErr(s, inv, "missing normalized_shape")
	}
	norm, ok := shapeOf(inv.Ctx, nv)
	if !ok {
		return typeErr(s, inv, "normalized_shape must be a tuple of integers")
	}
	nRank, ok := symexpr.AsConstInt(symexpr.Rank(norm))
	if !ok {
		return unsupported(s, inv, "layer_norm with a symbolic normalized_shape rank")
	}
	tail := symexpr.SliceShape(in,
		symexpr.Bop(symexpr.Sub, symexpr.Rank(in), symexpr.ConstInt(nRank)), nil)
	return s.Single(inv.Ctx).
		Require([]symexpr.Bool{
			symexpr.Lte(symexpr.ConstInt(nRank), symexpr.Rank(in)),
			symexpr.Eq(symexpr.NormalizeShape(tail), symexpr.NormalizeShape(norm)),
		}, "layer_norm normalized_shape must match the trailing input dimensions", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, in)
		})
}

// handleLinear: (..., in_features) x (out_features, in_features) ->
// (..., out_features), with the optional rank-1 bias matching out.
func handleLinear(s *Session, inv *Invocation) *pathctx.ContextSet {
	in, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	wv, ok := inv.Value("weight")
	if !ok {
		return typeErr(s, inv, "missing weight")
	}
	w, ok := shapeOf(inv.Ctx, wv)
	if !ok {
		return typeErr(s, inv, "weight is not a tensor")
	}
	rank := symexpr.Rank(in)
	last := symexpr.NormalizeNum(symexpr.Bop(symexpr.Sub, rank, symexpr.ConstInt(1)))
	inFeat := symexpr.NormalizeNum(symexpr.Index(in, last))
	obligations := []symexpr.Bool{
		symexpr.Lte(symexpr.ConstInt(1), rank),
		rankObligation(w, 2),
		symexpr.Eq(inFeat, dim(w, 1)),
	}
	if bv, ok := inv.Value("bias"); ok && !isNone(inv.Ctx, bv) {
		b, ok := shapeOf(inv.Ctx, bv)
		if !ok {
			return typeErr(s, inv, "bias is not a tensor")
		}
		obligations = append(obligations,
			rankObligation(b, 1),
			symexpr.Eq(dim(b, 0), dim(w, 0)),
		)
	}
	return s.Single(inv.Ctx).
		Require(obligations, "linear input features must match weight in-features", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, symexpr.SetDim(in, last, dim(w, 0)))
		})
}

// handleEmbedding: integer indices of any shape pick rows of the
// (num_embeddings, embedding_dim) table; the result appends the dim.
func handleEmbedding(s *Session, inv *Invocation) *pathctx.ContextSet {
	in, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	wv, ok := inv.Value("weight")
	if !ok {
		return typeErr(s, inv, "missing weight")
	}
	w, ok := shapeOf(inv.Ctx, wv)
	if !ok {
		return typeErr(s, inv, "weight is not a tensor")
	}
	return s.Single(inv.Ctx).
		RequireOne(rankObligation(w, 2), "embedding weight must be 2-D", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx,
				symexpr.ConcatShape(in, symexpr.ConstShape(dim(w, 1))))
		})
}

// handleCrossEntropy covers cross_entropy and nll_loss: input (N, C,
// d...) against target (N, d...), reduced to a scalar.
func handleCrossEntropy(s *Session, inv *Invocation) *pathctx.ContextSet {
	in, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	tv, ok := inv.Value("target")
	if !ok {
		return typeErr(s, inv, "missing target")
	}
	target, ok := shapeOf(inv.Ctx, tv)
	if !ok {
		return typeErr(s, inv, "target is not a tensor")
	}
	inRank := symexpr.Rank(in)
	obligations := []symexpr.Bool{
		symexpr.Lte(symexpr.ConstInt(2), inRank),
		symexpr.Eq(symexpr.Rank(target),
			symexpr.NormalizeNum(symexpr.Bop(symexpr.Sub, inRank, symexpr.ConstInt(1)))),
		symexpr.Eq(dim(in, 0), dim(target, 0)),
	}
	return s.Single(inv.Ctx).
		Require(obligations, "cross_entropy target shape must be the input shape without the class dimension", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, symexpr.ConstShape())
		})
}

func handleMSELoss(s *Session, inv *Invocation) *pathctx.ContextSet {
	in, fail := inputShape(s, inv)
	if fail != nil {
		return fail
	}
	tv, ok := inv.Value("target")
	if !ok {
		return typeErr(s, inv, "missing target")
	}
	target, ok := shapeOf(inv.Ctx, tv)
	if !ok {
		return typeErr(s, inv, "target is not a tensor")
	}
	return s.Single(inv.Ctx).
		Require(broadcastObligations(in, target),
			"mse_loss operands must be broadcastable", inv.Span).
		FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
			return returnSize(s, ctx, symexpr.ConstShape())
		})
}
