package symexpr

import "fmt"

// BroadcastConst computes the broadcast of two constant-rank, constant-dim
// shapes following the right-aligned rule: the result rank is
// max(rank(l), rank(r)); each output dim is either 1 or equals the non-1
// input dim at the aligned position. It returns an error when neither
// shape has a 1 at a position where the two concrete dims disagree
// (e.g. broadcasting (2) against (3)).
//
// Symbolic dims are left as Max(l,r)-style obligations for the constraint
// set to resolve; BroadcastConst only folds pairs that are both constant.
func BroadcastConst(l, r ShapeConst) (ShapeConst, error) {
	n := l.Rank
	if r.Rank > n {
		n = r.Rank
	}
	dims := make([]Num, n)
	for i := 0; i < n; i++ {
		li := l.Rank - n + i
		ri := r.Rank - n + i
		var ld, rd Num
		if li >= 0 {
			ld = l.Dims[li]
		}
		if ri >= 0 {
			rd = r.Dims[ri]
		}
		d, err := broadcastDim(ld, rd)
		if err != nil {
			return ShapeConst{}, fmt.Errorf("axis %d: %w", i, err)
		}
		dims[i] = d
	}
	return ConstShape(dims...), nil
}

func broadcastDim(l, r Num) (Num, error) {
	if l == nil {
		return r, nil
	}
	if r == nil {
		return l, nil
	}
	lc, lok := AsConstInt(l)
	rc, rok := AsConstInt(r)
	if !lok || !rok {
		// Symbolic: defer to the constraint set via an obligation that
		// one of the two equals the other or equals 1; the shape itself
		// is reported as the broadcast of the two symbolic dims.
		return Max(l, r), nil
	}
	switch {
	case lc == rc:
		return ConstInt(lc), nil
	case lc == 1:
		return ConstInt(rc), nil
	case rc == 1:
		return ConstInt(lc), nil
	default:
		return nil, fmt.Errorf("dims %d and %d are not broadcastable", lc, rc)
	}
}
