package symexpr

import "testing"

func TestRankTable(t *testing.T) {
	f := NewFactory()

	c4 := ConstShape(ConstInt(1), ConstInt(3), ConstInt(32), ConstInt(32))
	if r, ok := AsConstInt(Rank(c4)); !ok || r != 4 {
		t.Errorf("Rank(Const4) = %v, want 4", r)
	}

	sym := SymbolShape(f.FreshShape("x", SymbolNum(f.FreshNum("r"))))
	rank := Rank(sym)
	if _, ok := AsConstInt(rank); ok {
		t.Errorf("Rank(symbolic shape) should stay symbolic, got %s", rank)
	}

	sl := SliceShape(c4, ConstInt(0), ConstInt(4))
	if norm := NormalizeShape(sl); !shapeEqualConst(norm, c4) {
		t.Errorf("Slice(s,0,rank(s)) should collapse to s, got %s", norm)
	}

	cc := ConcatShape(ConstShape(ConstInt(1)), ConstShape(ConstInt(2), ConstInt(3)))
	if r, ok := AsConstInt(Rank(cc)); !ok || r != 3 {
		t.Errorf("Rank(Concat) = %v, want 3", r)
	}

	bc := Broadcast(ConstShape(ConstInt(3)), ConstShape(ConstInt(1), ConstInt(3)))
	if r, ok := AsConstInt(Rank(bc)); !ok || r != 2 {
		t.Errorf("Rank(Broadcast) = %v, want 2", r)
	}
}

func TestIndexNormalizesConstDim(t *testing.T) {
	s := ConstShape(ConstInt(4), ConstInt(3), ConstInt(32), ConstInt(32))
	idx := Index(s, ConstInt(2))
	got := NormalizeNum(idx)
	if v, ok := got.(NumConst); !ok || v.Value.Num().Int64() != 32 {
		t.Errorf("Index(s,2) = %s, want 32", got)
	}
}

func TestSliceFusion(t *testing.T) {
	s := SymbolShape(NewFactory().FreshShape("x", ConstInt(6)))
	outer := SliceShape(SliceShape(s, ConstInt(1), ConstInt(5)), ConstInt(1), ConstInt(2))
	got := NormalizeShape(outer)
	fused, ok := got.(ShapeSlice)
	if !ok {
		t.Fatalf("expected fused ShapeSlice, got %T", got)
	}
	if start, ok := AsConstInt(fused.Start); !ok || start != 2 {
		t.Errorf("fused start = %v, want 2", start)
	}
	if end, ok := AsConstInt(fused.End); !ok || end != 3 {
		t.Errorf("fused end = %v, want 3", end)
	}
}

func shapeEqualConst(a, b Shape) bool {
	ac, aok := a.(ShapeConst)
	bc, bok := b.(ShapeConst)
	if !aok || !bok || ac.Rank != bc.Rank {
		return false
	}
	for i := range ac.Dims {
		av, aok := AsConstInt(ac.Dims[i])
		bv, bok := AsConstInt(bc.Dims[i])
		if !aok || !bok || av != bv {
			return false
		}
	}
	return true
}
