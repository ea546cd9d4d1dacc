// Package constraints holds the per-path conjunction of Bool
// obligations plus a cached per-symbol range map used for cheap
// entailment decisions before any solver back-end is consulted. Range
// arithmetic is exact, built on *big.Rat: predicates over FloorDiv and
// Mod lose soundness under floating point.
package constraints

import "math/big"

// Range is a cached interval for one symbol: Low/High are nil when
// unbounded on that side; *Open flags mark strict inequalities.
type Range struct {
	Low, High           *big.Rat
	LowOpen, HighOpen   bool
}

// Unbounded is the range with no known constraints.
func Unbounded() Range { return Range{} }

// HasLow reports whether r has a known lower bound.
func (r Range) HasLow() bool { return r.Low != nil }

// HasHigh reports whether r has a known upper bound.
func (r Range) HasHigh() bool { return r.High != nil }

// Contains reports whether v satisfies r.
func (r Range) Contains(v *big.Rat) bool {
	if r.Low != nil {
		cmp := v.Cmp(r.Low)
		if cmp < 0 || (cmp == 0 && r.LowOpen) {
			return false
		}
	}
	if r.High != nil {
		cmp := v.Cmp(r.High)
		if cmp > 0 || (cmp == 0 && r.HighOpen) {
			return false
		}
	}
	return true
}

// Empty reports whether the interval is provably inconsistent (no
// rational number can satisfy both bounds).
func (r Range) Empty() bool {
	if r.Low == nil || r.High == nil {
		return false
	}
	cmp := r.Low.Cmp(r.High)
	if cmp > 0 {
		return true
	}
	if cmp == 0 && (r.LowOpen || r.HighOpen) {
		return true
	}
	return false
}

// TightenLow returns r with its lower bound raised to v (open per
// strict), keeping the tighter of the two bounds.
func (r Range) TightenLow(v *big.Rat, open bool) Range {
	if r.Low == nil || v.Cmp(r.Low) > 0 || (v.Cmp(r.Low) == 0 && open && !r.LowOpen) {
		r.Low = new(big.Rat).Set(v)
		r.LowOpen = open
	}
	return r
}

// TightenHigh returns r with its upper bound lowered to v.
func (r Range) TightenHigh(v *big.Rat, open bool) Range {
	if r.High == nil || v.Cmp(r.High) < 0 || (v.Cmp(r.High) == 0 && open && !r.HighOpen) {
		r.High = new(big.Rat).Set(v)
		r.HighOpen = open
	}
	return r
}
