package symexpr

import "testing"

func TestNumelOfConstFolds(t *testing.T) {
	s := ConstShape(ConstInt(4), ConstInt(6), ConstInt(28), ConstInt(28))
	got := NormalizeNum(Numel(s))
	if n, ok := AsConstInt(got); !ok || n != 4*6*28*28 {
		t.Errorf("numel = %s, want %d", got, 4*6*28*28)
	}
}

func TestConstantFoldingArith(t *testing.T) {
	cases := []struct {
		in   Num
		want int64
	}{
		{Bop(Add, ConstInt(2), ConstInt(3)), 5},
		{Bop(FloorDiv, ConstInt(27), ConstInt(4)), 6},
		{Bop(FloorDiv, ConstInt(-7), ConstInt(2)), -4},
		{Bop(Mod, ConstInt(7), ConstInt(3)), 1},
		{Uop(Neg, ConstInt(4)), -4},
		{Uop(Floor, Bop(TrueDiv, ConstInt(7), ConstInt(2))), 3},
		{Uop(Ceil, Bop(TrueDiv, ConstInt(7), ConstInt(2))), 4},
		{Max(ConstInt(1), ConstInt(9), ConstInt(4)), 9},
		{Min(ConstInt(1), ConstInt(9), ConstInt(4)), 1},
	}
	for _, c := range cases {
		got := NormalizeNum(c.in)
		if n, ok := AsConstInt(got); !ok || n != c.want {
			t.Errorf("normalize(%s) = %s, want %d", c.in, got, c.want)
		}
	}
}

func TestFloorDivByZeroStaysSymbolic(t *testing.T) {
	got := NormalizeNum(Bop(FloorDiv, ConstInt(5), ConstInt(0)))
	if _, ok := got.(NumConst); ok {
		t.Errorf("division by zero must not fold, got %s", got)
	}
}

func TestEqSameExpressionFolds(t *testing.T) {
	f := NewFactory()
	n := SymbolNum(f.FreshNum("n"))
	b := NormalizeBool(Eq(n, n))
	if c, ok := b.(BoolConst); !ok || !c.Value {
		t.Errorf("Eq(n, n) should fold to true, got %s", b)
	}
	b2 := NormalizeBool(Neq(n, n))
	if c, ok := b2.(BoolConst); !ok || c.Value {
		t.Errorf("Neq(n, n) should fold to false, got %s", b2)
	}
}

func TestShapeEqByConstDims(t *testing.T) {
	a := ConstShape(ConstInt(2), ConstInt(3))
	b := ConstShape(ConstInt(2), ConstInt(3))
	c := ConstShape(ConstInt(3), ConstInt(2))
	if v, ok := NormalizeBool(Eq(a, b)).(BoolConst); !ok || !v.Value {
		t.Errorf("(2,3) == (2,3) should fold true")
	}
	if v, ok := NormalizeBool(Eq(a, c)).(BoolConst); !ok || v.Value {
		t.Errorf("(2,3) == (3,2) should fold false")
	}
}

func TestBoolConnectiveFolding(t *testing.T) {
	f := NewFactory()
	p := SymbolBool(f.FreshBool("p"))
	if got := NormalizeBool(And(ConstBool(true), p)); !EqualExp(got, Bool(p)) {
		t.Errorf("true && p should reduce to p, got %s", got)
	}
	if got := NormalizeBool(Or(p, ConstBool(false))); !EqualExp(got, Bool(p)) {
		t.Errorf("p || false should reduce to p, got %s", got)
	}
	if got := NormalizeBool(Not(Not(p))); !EqualExp(got, Bool(p)) {
		t.Errorf("!!p should reduce to p, got %s", got)
	}
}

func TestStrSliceAndConcat(t *testing.T) {
	s := ConstStr("hello world")
	sliced := NormalizeStr(SliceStr(s, ConstInt(0), ConstInt(5)))
	if c, ok := sliced.(StrConst); !ok || c.Value != "hello" {
		t.Errorf("slice = %s, want \"hello\"", sliced)
	}
	cat := NormalizeStr(ConcatStr(ConstStr("a"), ConstStr("b")))
	if c, ok := cat.(StrConst); !ok || c.Value != "ab" {
		t.Errorf("concat = %s, want \"ab\"", cat)
	}
}

func TestSingleVarProbe(t *testing.T) {
	f := NewFactory()
	n := SymbolNum(f.FreshNum("n"))
	m := SymbolNum(f.FreshNum("m"))

	if p := HasSingleVarNum(ConstInt(3)); p.Kind != NoFreeVar {
		t.Errorf("constant should probe NoFreeVar")
	}
	if p := HasSingleVarNum(Bop(Add, n, n)); p.Kind != OneVar || p.Sym.ID != n.Sym.ID {
		t.Errorf("n+n should probe OneVar(n)")
	}
	if p := HasSingleVarNum(Bop(Add, n, m)); p.Kind != MultiVar {
		t.Errorf("n+m should probe MultiVar")
	}
}

func TestSetFoldsOnConstShape(t *testing.T) {
	s := ConstShape(ConstInt(2), ConstInt(3), ConstInt(4))
	got := NormalizeShape(SetDim(s, ConstInt(1), ConstInt(9)))
	sc, ok := got.(ShapeConst)
	if !ok {
		t.Fatalf("Set on a const shape should fold, got %T", got)
	}
	if d, _ := AsConstInt(sc.Dims[1]); d != 9 {
		t.Errorf("dim 1 = %s, want 9", sc.Dims[1])
	}
}

func TestConcatConstShapes(t *testing.T) {
	got := NormalizeShape(ConcatShape(ConstShape(ConstInt(1)), ConstShape(ConstInt(2))))
	sc, ok := got.(ShapeConst)
	if !ok || sc.Rank != 2 {
		t.Fatalf("concat of consts should fold, got %s", got)
	}
	empty := NormalizeShape(ConcatShape(ConstShape(), ConstShape(ConstInt(5))))
	if sc, ok := empty.(ShapeConst); !ok || sc.Rank != 1 {
		t.Errorf("concat with the empty shape should collapse, got %s", empty)
	}
}
