package constraints

import (
	"math/big"

	"github.com/pytea-go/symexec/internal/symexpr"
)

// Set holds the conjunction of Bool expressions forming one path's
// condition, plus a cached per-symbol range map kept in step with it.
type Set struct {
	Conj   []symexpr.Bool
	Ranges map[int64]Range
	Oracle SolverOracle
}

// New returns an empty Set backed by the default RangeOracle.
func New() *Set {
	return &Set{Ranges: map[int64]Range{}, Oracle: RangeOracle{}}
}

// WithOracle returns a copy of s backed by a different SolverOracle
// (e.g. a real SMT-backed implementation).
func (s *Set) WithOracle(o SolverOracle) *Set {
	clone := s.clone()
	clone.Oracle = o
	return clone
}

func (s *Set) clone() *Set {
	conj := make([]symexpr.Bool, len(s.Conj))
	copy(conj, s.Conj)
	ranges := make(map[int64]Range, len(s.Ranges))
	for k, v := range s.Ranges {
		ranges[k] = v
	}
	return &Set{Conj: conj, Ranges: ranges, Oracle: s.Oracle}
}

// Add appends c (after normalisation) to the conjunction and tightens
// the range cache via simple forward propagation. It returns a new Set;
// the receiver is unmodified.
func (s *Set) Add(c symexpr.Bool) *Set {
	norm := symexpr.NormalizeBool(c)
	clone := s.clone()
	clone.Conj = append(clone.Conj, norm)
	applyBoolToRanges(clone.Ranges, norm)
	return clone
}

// Guarantee adds c without recording it as an obligation the caller
// must justify; used when the analyser introduces its own assumption.
// Mechanically identical to Add; the distinction is at the call site.
func (s *Set) Guarantee(c symexpr.Bool) *Set {
	return s.Add(c)
}

// Contains reports whether c (after normalisation) already appears
// syntactically in the conjunction.
func (s *Set) Contains(c symexpr.Bool) bool {
	norm := symexpr.NormalizeBool(c).String()
	for _, existing := range s.Conj {
		if existing.String() == norm {
			return true
		}
	}
	return false
}

// PrimeRanges asks the oracle for ranges of the given symbols over the
// current conjunction and folds them into the cache, returning the
// tightened copy. Callers use it before range-driven decisions (loop
// unrolling, single-variable short-circuits) so the cache reflects
// facts the cheap forward propagation missed.
func (s *Set) PrimeRanges(symbols []int64) *Set {
	oracle := s.Oracle
	if oracle == nil {
		oracle = RangeOracle{}
	}
	fetched := oracle.Ranges(s.Conj, symbols)
	if len(fetched) == 0 {
		return s
	}
	clone := s.clone()
	for id, r := range fetched {
		cur := clone.Ranges[id]
		if r.HasLow() {
			cur = cur.TightenLow(r.Low, r.LowOpen)
		}
		if r.HasHigh() {
			cur = cur.TightenHigh(r.High, r.HighOpen)
		}
		clone.Ranges[id] = cur
	}
	return clone
}

// GetSymbolRange returns the cached interval for a symbol id.
func (s *Set) GetSymbolRange(symID int64) Range {
	if r, ok := s.Ranges[symID]; ok {
		return r
	}
	return Unbounded()
}

// IsValid is the cheap decision procedure: true when
// (i) c reduces to Const(true), (ii) c's only free variables have
// ranges making it trivially true, or (iii) c already appears in the
// conjunction; otherwise it delegates to the SolverOracle.
func (s *Set) IsValid(c symexpr.Bool) bool {
	norm := symexpr.NormalizeBool(c)
	if b, ok := norm.(symexpr.BoolConst); ok {
		return b.Value
	}
	if s.Contains(norm) {
		return true
	}
	if entailsFromRanges(s.Ranges, norm) == Valid {
		return true
	}
	oracle := s.Oracle
	if oracle == nil {
		oracle = RangeOracle{}
	}
	return oracle.Entails(s.Conj, norm) == Valid
}

// applyBoolToRanges tightens ranges in place using forward propagation
// over Lt/Lte/Eq forms whose other side is a constant, and recurses
// through And (the only form that safely distributes over range
// tightening; Or/Not are left to the oracle).
func applyBoolToRanges(ranges map[int64]Range, b symexpr.Bool) {
	switch v := b.(type) {
	case symexpr.BoolAnd:
		applyBoolToRanges(ranges, v.L)
		applyBoolToRanges(ranges, v.R)
	case symexpr.BoolLt:
		tightenFromCompare(ranges, v.L, v.R, true)
	case symexpr.BoolLte:
		tightenFromCompare(ranges, v.L, v.R, false)
	case symexpr.BoolEq:
		tightenFromEq(ranges, v.L, v.R)
	}
}

func tightenFromCompare(ranges map[int64]Range, l, r symexpr.Num, strict bool) {
	if sym, ok := l.(symexpr.NumSymbol); ok {
		if c, ok := r.(symexpr.NumConst); ok {
			ranges[sym.Sym.ID] = ranges[sym.Sym.ID].TightenHigh(c.Value, strict)
		}
	}
	if sym, ok := r.(symexpr.NumSymbol); ok {
		if c, ok := l.(symexpr.NumConst); ok {
			ranges[sym.Sym.ID] = ranges[sym.Sym.ID].TightenLow(c.Value, strict)
		}
	}
}

func tightenFromEq(ranges map[int64]Range, l, r symexpr.SymExp) {
	sym, symOK := l.(symexpr.NumSymbol)
	c, constOK := r.(symexpr.NumConst)
	if !symOK || !constOK {
		sym, symOK = r.(symexpr.NumSymbol)
		c, constOK = l.(symexpr.NumConst)
	}
	if symOK && constOK {
		v := new(big.Rat).Set(c.Value)
		rng := ranges[sym.Sym.ID]
		rng = rng.TightenLow(v, false)
		rng = rng.TightenHigh(v, false)
		ranges[sym.Sym.ID] = rng
	}
}
