package symexpr

// EqualExp reports structural equality of two expressions from any
// sort: same node kinds, constants equal by value, symbols equal by id.
// It is the decision the normaliser uses to fold Eq(x, x) to true
// without consulting a constraint store.
func EqualExp(l, r SymExp) bool {
	switch lv := l.(type) {
	case NumConst:
		rv, ok := r.(NumConst)
		return ok && lv.Value.Cmp(rv.Value) == 0
	case NumSymbol:
		rv, ok := r.(NumSymbol)
		return ok && lv.Sym.ID == rv.Sym.ID
	case NumBop:
		rv, ok := r.(NumBop)
		return ok && lv.Op == rv.Op && EqualExp(lv.L, rv.L) && EqualExp(lv.R, rv.R)
	case NumUop:
		rv, ok := r.(NumUop)
		return ok && lv.Op == rv.Op && EqualExp(lv.X, rv.X)
	case NumIndex:
		rv, ok := r.(NumIndex)
		return ok && EqualExp(lv.S, rv.S) && EqualExp(lv.I, rv.I)
	case NumMax:
		rv, ok := r.(NumMax)
		return ok && equalNumLists(lv.Xs, rv.Xs)
	case NumMin:
		rv, ok := r.(NumMin)
		return ok && equalNumLists(lv.Xs, rv.Xs)
	case NumNumel:
		rv, ok := r.(NumNumel)
		return ok && EqualExp(lv.S, rv.S)
	case BoolConst:
		rv, ok := r.(BoolConst)
		return ok && lv.Value == rv.Value
	case BoolSymbol:
		rv, ok := r.(BoolSymbol)
		return ok && lv.Sym.ID == rv.Sym.ID
	case BoolEq:
		rv, ok := r.(BoolEq)
		return ok && EqualExp(lv.L, rv.L) && EqualExp(lv.R, rv.R)
	case BoolNeq:
		rv, ok := r.(BoolNeq)
		return ok && EqualExp(lv.L, rv.L) && EqualExp(lv.R, rv.R)
	case BoolLt:
		rv, ok := r.(BoolLt)
		return ok && EqualExp(lv.L, rv.L) && EqualExp(lv.R, rv.R)
	case BoolLte:
		rv, ok := r.(BoolLte)
		return ok && EqualExp(lv.L, rv.L) && EqualExp(lv.R, rv.R)
	case BoolNot:
		rv, ok := r.(BoolNot)
		return ok && EqualExp(lv.X, rv.X)
	case BoolAnd:
		rv, ok := r.(BoolAnd)
		return ok && EqualExp(lv.L, rv.L) && EqualExp(lv.R, rv.R)
	case BoolOr:
		rv, ok := r.(BoolOr)
		return ok && EqualExp(lv.L, rv.L) && EqualExp(lv.R, rv.R)
	case StrConst:
		rv, ok := r.(StrConst)
		return ok && lv.Value == rv.Value
	case StrSymbol:
		rv, ok := r.(StrSymbol)
		return ok && lv.Sym.ID == rv.Sym.ID
	case StrSlice:
		rv, ok := r.(StrSlice)
		return ok && EqualExp(lv.S, rv.S) && equalOptNum(lv.Start, rv.Start) && equalOptNum(lv.End, rv.End)
	case StrConcat:
		rv, ok := r.(StrConcat)
		return ok && EqualExp(lv.L, rv.L) && EqualExp(lv.R, rv.R)
	case ShapeConst:
		rv, ok := r.(ShapeConst)
		if !ok || lv.Rank != rv.Rank {
			return false
		}
		for i := range lv.Dims {
			if !EqualExp(lv.Dims[i], rv.Dims[i]) {
				return false
			}
		}
		return true
	case ShapeSymbol:
		rv, ok := r.(ShapeSymbol)
		return ok && lv.Sym.ID == rv.Sym.ID
	case ShapeSet:
		rv, ok := r.(ShapeSet)
		return ok && EqualExp(lv.Base, rv.Base) && EqualExp(lv.Axis, rv.Axis) && EqualExp(lv.Dim, rv.Dim)
	case ShapeSlice:
		rv, ok := r.(ShapeSlice)
		return ok && EqualExp(lv.Base, rv.Base) && equalOptNum(lv.Start, rv.Start) && equalOptNum(lv.End, rv.End)
	case ShapeConcat:
		rv, ok := r.(ShapeConcat)
		return ok && EqualExp(lv.L, rv.L) && EqualExp(lv.R, rv.R)
	case ShapeBroadcast:
		rv, ok := r.(ShapeBroadcast)
		return ok && EqualExp(lv.L, rv.L) && EqualExp(lv.R, rv.R)
	default:
		return false
	}
}

func equalNumLists(l, r []Num) bool {
	if len(l) != len(r) {
		return false
	}
	for i := range l {
		if !EqualExp(l[i], r[i]) {
			return false
		}
	}
	return true
}

func equalOptNum(l, r Num) bool {
	if l == nil || r == nil {
		return l == nil && r == nil
	}
	return EqualExp(l, r)
}
