package libcall

import (
	"strings"
	"testing"

	"github.com/pytea-go/symexec/internal/config"
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

func testSession() *Session {
	return &Session{
		Syms: symexpr.NewFactory(),
		IDs:  value.NewIDAllocator(),
		Opts: config.Default(),
	}
}

func sizeParam(t *testing.T, s *Session, ctx *pathctx.Context, dims ...int64) (*pathctx.Context, value.Value) {
	t.Helper()
	ds := make([]symexpr.Num, len(dims))
	for i, d := range dims {
		ds[i] = symexpr.ConstInt(d)
	}
	return newSize(s, ctx, symexpr.ConstShape(ds...))
}

func intTuple(s *Session, ctx *pathctx.Context, vals ...int64) (*pathctx.Context, value.Value) {
	elems := make([]value.Value, len(vals))
	for i, v := range vals {
		elems[i] = value.Int{Sym: symexpr.ConstInt(v)}
	}
	return newSequence(s, ctx, elems, "tuple")
}

func retShape(t *testing.T, ctx *pathctx.Context) symexpr.ShapeConst {
	t.Helper()
	obj, ok := derefObject(ctx, ctx.RetVal)
	if !ok || !obj.IsSize() {
		t.Fatalf("RetVal is not a Size: %v", ctx.RetVal)
	}
	sc, ok := symexpr.NormalizeShape(obj.Shape).(symexpr.ShapeConst)
	if !ok {
		t.Fatalf("result shape is not constant: %s", obj.Shape)
	}
	return sc
}

func wantDims(t *testing.T, sc symexpr.ShapeConst, dims ...int64) {
	t.Helper()
	if sc.Rank != len(dims) {
		t.Fatalf("rank = %d, want %d (%s)", sc.Rank, len(dims), sc)
	}
	for i, d := range dims {
		got, ok := symexpr.AsConstInt(sc.Dims[i])
		if !ok || got != d {
			t.Errorf("dim %d = %s, want %d", i, sc.Dims[i], d)
		}
	}
}

func TestConv2dThenView(t *testing.T) {
	s := testSession()
	ctx := pathctx.New()
	ctx, x := sizeParam(t, s, ctx, 4, 3, 32, 32)
	ctx, w := sizeParam(t, s, ctx, 6, 3, 5, 5)
	ctx, stride := intTuple(s, ctx, 1, 1)
	ctx, padding := intTuple(s, ctx, 0, 0)
	ctx, dilation := intTuple(s, ctx, 1, 1)

	out := handleConv2d(s, &Invocation{
		Ctx:  ctx,
		Name: "torch.conv2d",
		Params: []Param{
			{Name: "input", Val: x},
			{Name: "weight", Val: w},
			{Name: "bias", Val: value.None{}},
			{Name: "stride", Val: stride},
			{Name: "padding", Val: padding},
			{Name: "dilation", Val: dilation},
			{Name: "groups", Val: value.Int{Sym: symexpr.ConstInt(1)}},
		},
	})
	if len(out.Live) != 1 || len(out.Failed) != 0 {
		t.Fatalf("conv2d: live=%d failed=%d", len(out.Live), len(out.Failed))
	}
	y := out.Live[0]
	wantDims(t, retShape(t, y), 4, 6, 28, 28)

	ctx2, target := intTuple(s, y, 4, -1)
	view := handleView(s, &Invocation{
		Ctx:  ctx2,
		Name: "torch.view",
		Params: []Param{
			{Name: "input", Val: y.RetVal},
			{Name: "size", Val: target},
		},
	})
	if len(view.Live) != 1 || len(view.Failed) != 0 {
		t.Fatalf("view: live=%d failed=%d", len(view.Live), len(view.Failed))
	}
	wantDims(t, retShape(t, view.Live[0]), 4, 6*28*28)
	if len(view.Live[0].Constraints.Conj) != 0 {
		t.Errorf("no obligations should be outstanding, got %v", view.Live[0].Constraints.Conj)
	}
}

func TestConv2dRankZeroFails(t *testing.T) {
	s := testSession()
	ctx := pathctx.New()
	ctx, x := sizeParam(t, s, ctx) // rank 0
	ctx, w := sizeParam(t, s, ctx, 6, 3, 5, 5)
	out := handleConv2d(s, &Invocation{
		Ctx:  ctx,
		Name: "torch.conv2d",
		Params: []Param{
			{Name: "input", Val: x},
			{Name: "weight", Val: w},
		},
	})
	if len(out.Failed) != 1 || len(out.Live) != 0 {
		t.Fatalf("rank-0 conv2d must fail: live=%d failed=%d", len(out.Live), len(out.Failed))
	}
	diag := out.Failed[0].Log
	if len(diag) == 0 || diag[0].Reason != value.ReasonObligationViolated {
		t.Errorf("expected an ObligationViolated diagnostic, got %v", diag)
	}
}

func TestMatmulSymbolicBatch(t *testing.T) {
	s := testSession()
	ctx := pathctx.New()
	n := symexpr.SymbolNum(s.Syms.FreshNum("N"))
	ctx, x := newSize(s, ctx, symexpr.ConstShape(n, symexpr.ConstInt(10)))
	ctx, w := sizeParam(t, s, ctx, 10, 4)

	out := handleMatmul(s, &Invocation{
		Ctx:  ctx,
		Name: "torch.matmul",
		Params: []Param{
			{Name: "input", Val: x},
			{Name: "other", Val: w},
		},
	})
	if len(out.Live) != 1 || len(out.Failed) != 0 {
		t.Fatalf("matmul: live=%d failed=%d", len(out.Live), len(out.Failed))
	}
	res := out.Live[0]
	sc := retShape(t, res)
	if sc.Rank != 2 {
		t.Fatalf("result rank = %d, want 2", sc.Rank)
	}
	if d1, ok := symexpr.AsConstInt(sc.Dims[1]); !ok || d1 != 4 {
		t.Errorf("result dim 1 = %s, want 4", sc.Dims[1])
	}
	if !res.Constraints.Contains(symexpr.Lte(symexpr.ConstInt(1), n)) {
		t.Errorf("matmul should record N >= 1, conjunction: %v", res.Constraints.Conj)
	}
}

func TestElementwiseBroadcastMismatch(t *testing.T) {
	s := testSession()
	ctx := pathctx.New()
	ctx, a := sizeParam(t, s, ctx, 2, 3)
	ctx, b := sizeParam(t, s, ctx, 4, 3)
	out := handleElementwise(s, &Invocation{
		Ctx:  ctx,
		Name: "torch.add",
		Params: []Param{
			{Name: "input", Val: a},
			{Name: "other", Val: b},
		},
	})
	if len(out.Failed) != 1 || len(out.Live) != 0 {
		t.Fatalf("mismatched broadcast must fail: live=%d failed=%d", len(out.Live), len(out.Failed))
	}
	msg := out.Failed[0].Log[0].Message
	if !strings.Contains(msg, "broadcast") {
		t.Errorf("failure message should mention broadcastability, got %q", msg)
	}
}

func TestBroadcastBoundary(t *testing.T) {
	s := testSession()
	ctx := pathctx.New()
	ctx, a := sizeParam(t, s, ctx, 3)
	ctx, b := sizeParam(t, s, ctx, 1, 3)
	out := handleElementwise(s, &Invocation{
		Ctx:    ctx,
		Name:   "torch.add",
		Params: []Param{{Name: "input", Val: a}, {Name: "other", Val: b}},
	})
	if len(out.Live) != 1 {
		t.Fatalf("(3)+(1,3) must broadcast, failed=%d", len(out.Failed))
	}
	wantDims(t, retShape(t, out.Live[0]), 1, 3)
}

func TestSqueezeForksOnSymbolicDim(t *testing.T) {
	s := testSession()
	ctx := pathctx.New()
	n := symexpr.SymbolNum(s.Syms.FreshNum("d"))
	ctx, x := newSize(s, ctx, symexpr.ConstShape(n, symexpr.ConstInt(5)))
	out := handleSqueeze(s, &Invocation{
		Ctx:  ctx,
		Name: "torch.squeeze",
		Params: []Param{
			{Name: "input", Val: x},
			{Name: "dim", Val: value.Int{Sym: symexpr.ConstInt(0)}},
		},
	})
	if len(out.Live) != 2 {
		t.Fatalf("squeeze on an unknown dim should fork, live=%d", len(out.Live))
	}
}

func TestViewWildcardIndivisibleFails(t *testing.T) {
	s := testSession()
	ctx := pathctx.New()
	ctx, x := sizeParam(t, s, ctx, 7)
	ctx, target := intTuple(s, ctx, 2, -1)
	out := handleView(s, &Invocation{
		Ctx:    ctx,
		Name:   "torch.view",
		Params: []Param{{Name: "input", Val: x}, {Name: "size", Val: target}},
	})
	if len(out.Failed) != 1 {
		t.Fatalf("7 elements cannot view to (2,-1): live=%d failed=%d", len(out.Live), len(out.Failed))
	}
}

func TestHandlerIdempotentOnOwnOutput(t *testing.T) {
	s := testSession()
	ctx := pathctx.New()
	ctx, x := sizeParam(t, s, ctx, 2, 3)
	first := handleIdentity(s, &Invocation{
		Ctx:    ctx,
		Name:   "torch.relu",
		Params: []Param{{Name: "input", Val: x}},
	})
	second := handleIdentity(s, &Invocation{
		Ctx:    first.Live[0],
		Name:   "torch.relu",
		Params: []Param{{Name: "input", Val: first.Live[0].RetVal}},
	})
	if len(second.Live) != 1 {
		t.Fatalf("re-running on own output must stay live")
	}
	if got, want := len(second.Live[0].Constraints.Conj), len(first.Live[0].Constraints.Conj); got != want {
		t.Errorf("re-run added obligations: %d -> %d", want, got)
	}
}

func TestDispatchUnknownHandlerWarns(t *testing.T) {
	s := testSession()
	r := NewRegistry()
	out := r.Dispatch(s, &Invocation{Ctx: pathctx.New(), Name: "torch.nonexistent"})
	if len(out.Live) != 1 {
		t.Fatalf("unknown handler must keep the path alive")
	}
	c := out.Live[0]
	if len(c.Log) == 0 || c.Log[0].Reason != value.ReasonUnsupported {
		t.Errorf("expected an Unsupported warning, got %v", c.Log)
	}
	if obj, ok := derefObject(c, c.RetVal); !ok || !obj.IsSize() {
		t.Errorf("torch.* fallback should be a fresh symbolic Size, got %v", c.RetVal)
	}
}
