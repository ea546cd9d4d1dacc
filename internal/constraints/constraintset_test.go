package constraints

import (
	"math/big"
	"testing"

	"github.com/pytea-go/symexec/internal/symexpr"
)

func TestAddTightensRanges(t *testing.T) {
	f := symexpr.NewFactory()
	n := symexpr.SymbolNum(f.FreshNum("n"))

	s := New().
		Add(symexpr.Lte(symexpr.ConstInt(1), n)).
		Add(symexpr.Lt(n, symexpr.ConstInt(10)))

	rng := s.GetSymbolRange(n.Sym.ID)
	if !rng.HasLow() || rng.Low.Cmp(big.NewRat(1, 1)) != 0 || rng.LowOpen {
		t.Errorf("low bound = %v (open=%v), want closed 1", rng.Low, rng.LowOpen)
	}
	if !rng.HasHigh() || rng.High.Cmp(big.NewRat(10, 1)) != 0 || !rng.HighOpen {
		t.Errorf("high bound = %v (open=%v), want open 10", rng.High, rng.HighOpen)
	}
}

func TestIsValidFromRanges(t *testing.T) {
	f := symexpr.NewFactory()
	n := symexpr.SymbolNum(f.FreshNum("n"))
	s := New().Add(symexpr.Lte(symexpr.ConstInt(5), n))

	if !s.IsValid(symexpr.Lte(symexpr.ConstInt(1), n)) {
		t.Errorf("5 <= n should entail 1 <= n")
	}
	if s.IsValid(symexpr.Lt(n, symexpr.ConstInt(3))) {
		t.Errorf("5 <= n must not entail n < 3")
	}
}

// Property 5: isValid(c) and isValid(!c) never hold together on a
// consistent set.
func TestValidAndNegationExclusive(t *testing.T) {
	f := symexpr.NewFactory()
	n := symexpr.SymbolNum(f.FreshNum("n"))
	s := New().Add(symexpr.Lte(symexpr.ConstInt(0), n))

	queries := []symexpr.Bool{
		symexpr.Lt(n, symexpr.ConstInt(5)),
		symexpr.Lte(symexpr.ConstInt(0), n),
		symexpr.Eq(n, symexpr.ConstInt(3)),
		symexpr.ConstBool(true),
	}
	for _, q := range queries {
		if s.IsValid(q) && s.IsValid(symexpr.Not(q)) {
			t.Errorf("both %s and its negation report valid", q)
		}
	}
}

func TestContainsAfterNormalisation(t *testing.T) {
	f := symexpr.NewFactory()
	n := symexpr.SymbolNum(f.FreshNum("n"))
	// 1+1 <= n normalises to 2 <= n.
	s := New().Add(symexpr.Lte(symexpr.Bop(symexpr.Add, symexpr.ConstInt(1), symexpr.ConstInt(1)), n))
	if !s.Contains(symexpr.Lte(symexpr.ConstInt(2), n)) {
		t.Errorf("contains should see through normalisation")
	}
}

func TestGuaranteeAndPersistence(t *testing.T) {
	f := symexpr.NewFactory()
	n := symexpr.SymbolNum(f.FreshNum("n"))
	base := New()
	grown := base.Guarantee(symexpr.Lte(symexpr.ConstInt(0), n))
	if len(base.Conj) != 0 {
		t.Errorf("Add/Guarantee must not mutate the receiver")
	}
	if len(grown.Conj) != 1 {
		t.Errorf("guaranteed constraint missing from the copy")
	}
}

func TestEqPinsRange(t *testing.T) {
	f := symexpr.NewFactory()
	n := symexpr.SymbolNum(f.FreshNum("n"))
	s := New().Add(symexpr.Eq(n, symexpr.ConstInt(7)))
	rng := s.GetSymbolRange(n.Sym.ID)
	if !rng.HasLow() || !rng.HasHigh() || rng.Low.Cmp(rng.High) != 0 {
		t.Fatalf("equality should pin the range, got %+v", rng)
	}
	if rng.Low.Cmp(big.NewRat(7, 1)) != 0 {
		t.Errorf("pinned value = %v, want 7", rng.Low)
	}
}

func TestRangeOracleThreeValued(t *testing.T) {
	f := symexpr.NewFactory()
	n := symexpr.SymbolNum(f.FreshNum("n"))
	conj := []symexpr.Bool{symexpr.Lte(symexpr.ConstInt(0), n)}

	var o RangeOracle
	if v := o.Entails(conj, symexpr.Lte(symexpr.ConstInt(-1), n)); v != Valid {
		t.Errorf("0 <= n entails -1 <= n, got %v", v)
	}
	if v := o.Entails(conj, symexpr.Lt(n, symexpr.ConstInt(100))); v != Unknown {
		t.Errorf("unbounded-above query should be Unknown, got %v", v)
	}
	if v := o.Entails(nil, symexpr.ConstBool(false)); v != Invalid {
		t.Errorf("false is Invalid, got %v", v)
	}
}

func TestRangeEmpty(t *testing.T) {
	r := Unbounded().
		TightenLow(big.NewRat(5, 1), false).
		TightenHigh(big.NewRat(3, 1), false)
	if !r.Empty() {
		t.Errorf("[5, 3] should be empty")
	}
	half := Unbounded().TightenLow(big.NewRat(2, 1), true).TightenHigh(big.NewRat(2, 1), false)
	if !half.Empty() {
		t.Errorf("(2, 2] should be empty")
	}
}

// Exactness: FloorDiv/Mod predicates stay rational, never float.
func TestRationalExactness(t *testing.T) {
	third := big.NewRat(1, 3)
	r := Unbounded().TightenLow(third, false)
	if r.Low.Cmp(big.NewRat(1, 3)) != 0 {
		t.Errorf("range arithmetic must keep 1/3 exact, got %v", r.Low)
	}
}
