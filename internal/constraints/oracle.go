package constraints

import "github.com/pytea-go/symexec/internal/symexpr"

// Verdict is the three-valued answer a SolverOracle gives to an
// entailment query.
type Verdict int

const (
	Unknown Verdict = iota
	Valid
	Invalid
)

// SolverOracle decides entailment of a Bool query given a conjunction
// of Bool premises. A timeout (or any oracle that cannot decide) must
// report Unknown rather than guessing; Unknown flows into the
// keep-both-branches arm of ifThenElse.
type SolverOracle interface {
	Entails(conjunction []symexpr.Bool, query symexpr.Bool) Verdict
	Ranges(conjunction []symexpr.Bool, symbols []int64) map[int64]Range
}

// RangeOracle is the default, always-available SolverOracle. It decides
// only range-derivable entailments over exact rational bounds; anything
// it cannot reduce to a single-symbol range comparison reports Unknown.
// A real SMT-backed oracle satisfies the same interface.
type RangeOracle struct{}

func (RangeOracle) Entails(conjunction []symexpr.Bool, query symexpr.Bool) Verdict {
	ranges := rangesFromConjunction(conjunction)
	return entailsFromRanges(ranges, query)
}

func (RangeOracle) Ranges(conjunction []symexpr.Bool, symbols []int64) map[int64]Range {
	all := rangesFromConjunction(conjunction)
	if symbols == nil {
		return all
	}
	out := make(map[int64]Range, len(symbols))
	for _, s := range symbols {
		if r, ok := all[s]; ok {
			out[s] = r
		}
	}
	return out
}

func rangesFromConjunction(conjunction []symexpr.Bool) map[int64]Range {
	ranges := map[int64]Range{}
	for _, c := range conjunction {
		applyBoolToRanges(ranges, symexpr.NormalizeBool(c))
	}
	return ranges
}

func entailsFromRanges(ranges map[int64]Range, query symexpr.Bool) Verdict {
	q := symexpr.NormalizeBool(query)
	switch b := q.(type) {
	case symexpr.BoolConst:
		if b.Value {
			return Valid
		}
		return Invalid
	case symexpr.BoolLt:
		return compareFromRanges(ranges, b.L, b.R, true)
	case symexpr.BoolLte:
		return compareFromRanges(ranges, b.L, b.R, false)
	case symexpr.BoolNot:
		switch entailsFromRanges(ranges, b.X) {
		case Valid:
			return Invalid
		case Invalid:
			return Valid
		default:
			return Unknown
		}
	case symexpr.BoolAnd:
		l := entailsFromRanges(ranges, b.L)
		r := entailsFromRanges(ranges, b.R)
		if l == Valid && r == Valid {
			return Valid
		}
		if l == Invalid || r == Invalid {
			return Invalid
		}
		return Unknown
	case symexpr.BoolOr:
		l := entailsFromRanges(ranges, b.L)
		r := entailsFromRanges(ranges, b.R)
		if l == Valid || r == Valid {
			return Valid
		}
		if l == Invalid && r == Invalid {
			return Invalid
		}
		return Unknown
	default:
		return Unknown
	}
}

// compareFromRanges decides sym-vs-const (or const-vs-sym) comparisons
// using the cached range of whichever side is a single symbol.
func compareFromRanges(ranges map[int64]Range, l, r symexpr.Num, strict bool) Verdict {
	ls, lIsSym := l.(symexpr.NumSymbol)
	rs, rIsSym := r.(symexpr.NumSymbol)
	lc, lIsConst := l.(symexpr.NumConst)
	rc, rIsConst := r.(symexpr.NumConst)

	switch {
	case lIsSym && rIsConst:
		rng, ok := ranges[ls.Sym.ID]
		if !ok || !rng.HasHigh() {
			return Unknown
		}
		cmp := rng.High.Cmp(rc.Value)
		if cmp < 0 || (cmp == 0 && (!strict || rng.HighOpen)) {
			return Valid
		}
		return Unknown
	case rIsSym && lIsConst:
		rng, ok := ranges[rs.Sym.ID]
		if !ok || !rng.HasLow() {
			return Unknown
		}
		cmp := lc.Value.Cmp(rng.Low)
		if cmp < 0 || (cmp == 0 && (!strict || rng.LowOpen)) {
			return Valid
		}
		return Unknown
	case lIsConst && rIsConst:
		cmp := lc.Value.Cmp(rc.Value)
		if strict && cmp < 0 {
			return Valid
		}
		if !strict && cmp <= 0 {
			return Valid
		}
		return Invalid
	default:
		return Unknown
	}
}
