package libcall

import (
	"testing"

	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

func TestShapeIndexNormalisesNegative(t *testing.T) {
	s := testSession()
	ctx := pathctx.New()
	ctx, size := sizeParam(t, s, ctx, 3, 4, 5)
	out := handleShapeIndex(s, &Invocation{
		Ctx:  ctx,
		Name: "shape.index",
		Params: []Param{
			{Name: "size", Val: size},
			{Name: "index", Val: value.Int{Sym: symexpr.ConstInt(-1)}},
		},
	})
	if len(out.Live) != 1 || len(out.Failed) != 0 {
		t.Fatalf("live=%d failed=%d", len(out.Live), len(out.Failed))
	}
	iv, ok := out.Live[0].RetVal.(value.Int)
	if !ok {
		t.Fatalf("RetVal is not an Int: %v", out.Live[0].RetVal)
	}
	if got, ok := symexpr.AsConstInt(iv.Sym); !ok || got != 5 {
		t.Errorf("size[-1] = %s, want 5", iv.Sym)
	}
}

func TestShapeIndexOutOfRangeFails(t *testing.T) {
	s := testSession()
	ctx := pathctx.New()
	ctx, size := sizeParam(t, s, ctx, 3)
	out := handleShapeIndex(s, &Invocation{
		Ctx:  ctx,
		Name: "shape.index",
		Params: []Param{
			{Name: "size", Val: size},
			{Name: "index", Val: value.Int{Sym: symexpr.ConstInt(4)}},
		},
	})
	if len(out.Failed) != 1 {
		t.Fatalf("index 4 into rank 1 must fail, live=%d", len(out.Live))
	}
}

func TestShapeRepeat(t *testing.T) {
	s := testSession()
	ctx := pathctx.New()
	ctx, size := sizeParam(t, s, ctx, 2, 3)
	out := handleShapeRepeat(s, &Invocation{
		Ctx:  ctx,
		Name: "shape.repeat",
		Params: []Param{
			{Name: "size", Val: size},
			{Name: "times", Val: value.Int{Sym: symexpr.ConstInt(2)}},
		},
	})
	if len(out.Live) != 1 {
		t.Fatalf("repeat failed: %d failed", len(out.Failed))
	}
	wantDims(t, retShape(t, out.Live[0]), 2, 3, 2, 3)
}

func TestShapeSliceCollapses(t *testing.T) {
	s := testSession()
	ctx := pathctx.New()
	ctx, size := sizeParam(t, s, ctx, 4, 5, 6)
	out := handleShapeSlice(s, &Invocation{
		Ctx:  ctx,
		Name: "shape.slice",
		Params: []Param{
			{Name: "size", Val: size},
			{Name: "start", Val: value.Int{Sym: symexpr.ConstInt(1)}},
			{Name: "end", Val: value.Int{Sym: symexpr.ConstInt(3)}},
		},
	})
	wantDims(t, retShape(t, out.Live[0]), 5, 6)
}

func TestExtractShapeNestedLists(t *testing.T) {
	s := testSession()
	ctx := pathctx.New()
	one := value.Int{Sym: symexpr.ConstInt(1)}
	ctx, inner1 := newSequence(s, ctx, []value.Value{one, one, one}, "list")
	ctx, inner2 := newSequence(s, ctx, []value.Value{one, one, one}, "list")
	ctx, outer := newSequence(s, ctx, []value.Value{inner1, inner2}, "list")
	out := handleShapeExtract(s, &Invocation{
		Ctx:    ctx,
		Name:   "shape.extractShape",
		Params: []Param{{Name: "obj", Val: outer}},
	})
	if len(out.Live) != 1 {
		t.Fatalf("extractShape failed")
	}
	wantDims(t, retShape(t, out.Live[0]), 2, 3)
}

func TestSetShapePromotesObject(t *testing.T) {
	s := testSession()
	ctx := pathctx.New()
	ctx, obj := newSequence(s, ctx, nil, "object")
	ctx, size := sizeParam(t, s, ctx, 7, 8)
	out := handleShapeSetShape(s, &Invocation{
		Ctx:  ctx,
		Name: "shape.setShape",
		Params: []Param{
			{Name: "obj", Val: obj},
			{Name: "size", Val: size},
		},
	})
	if len(out.Live) != 1 {
		t.Fatalf("setShape failed")
	}
	res, ok := derefObject(out.Live[0], out.Live[0].RetVal)
	if !ok || !res.IsSize() {
		t.Fatalf("setShape result is not a Size")
	}
	lv := res.Attrs[value.AttrLength].(value.Int)
	if n, ok := symexpr.AsConstInt(lv.Sym); !ok || n != 2 {
		t.Errorf("$length = %s, want 2 (rank of the installed shape)", lv.Sym)
	}
}

func TestGuardBroadcastableMismatch(t *testing.T) {
	s := testSession()
	ctx := pathctx.New()
	ctx, a := sizeParam(t, s, ctx, 2)
	ctx, b := sizeParam(t, s, ctx, 3)
	out := handleGuardBroadcastable(s, &Invocation{
		Ctx:    ctx,
		Name:   "guard.require_broadcastable",
		Params: []Param{{Name: "left", Val: a}, {Name: "right", Val: b}},
	})
	if len(out.Failed) != 1 {
		t.Fatalf("(2) vs (3) must fail broadcastability, live=%d", len(out.Live))
	}
}

func TestArgparseInjection(t *testing.T) {
	s := testSession()
	s.Args = stubArgs{"lr": "0.1"}
	ctx := pathctx.New()
	out := handleInjectArgument(s, &Invocation{
		Ctx:  ctx,
		Name: "argparse.inject_argument",
		Params: []Param{
			{Name: "name", Val: value.String{Sym: symexpr.ConstStr("--lr")}},
			{Name: "type", Val: value.String{Sym: symexpr.ConstStr("float")}},
		},
	})
	fv, ok := out.Live[0].RetVal.(value.Float)
	if !ok {
		t.Fatalf("RetVal is not a Float: %v", out.Live[0].RetVal)
	}
	c, ok := symexpr.NormalizeNum(fv.Sym).(symexpr.NumConst)
	if !ok || c.Value.FloatString(1) != "0.1" {
		t.Errorf("injected lr = %s, want 0.1", fv.Sym)
	}

	// No ArgSource hit: a fresh symbol named arg_lr.
	s2 := testSession()
	out2 := handleInjectArgument(s2, &Invocation{
		Ctx:  pathctx.New(),
		Name: "argparse.inject_argument",
		Params: []Param{
			{Name: "name", Val: value.String{Sym: symexpr.ConstStr("--lr")}},
			{Name: "type", Val: value.String{Sym: symexpr.ConstStr("float")}},
		},
	})
	fv2, ok := out2.Live[0].RetVal.(value.Float)
	if !ok {
		t.Fatalf("RetVal is not a Float: %v", out2.Live[0].RetVal)
	}
	sym, ok := fv2.Sym.(symexpr.NumSymbol)
	if !ok || sym.Sym.Name != "arg_lr" {
		t.Errorf("missing value should yield a fresh symbol named arg_lr, got %s", fv2.Sym)
	}
}

type stubArgs map[string]any

func (a stubArgs) Get(name string) (any, bool) {
	v, ok := a[name]
	return v, ok
}
