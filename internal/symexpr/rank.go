package symexpr

// Rank computes rank(s) per the table in the component design: a concrete
// int when derivable, otherwise a Num expression built from the operand
// ranks. The result is always run through NormalizeNum before it is
// returned, so e.g. Rank(Slice(Const(4,_), Const(0), Const(4))) comes back
// as NumConst(4) rather than an unreduced (4-0) expression.
func Rank(s Shape) Num {
	return NormalizeNum(rankRaw(s))
}

func rankRaw(s Shape) Num {
	switch v := s.(type) {
	case ShapeConst:
		return ConstInt(int64(v.Rank))
	case ShapeSymbol:
		if v.Sym.ShapeRank != nil {
			return v.Sym.ShapeRank
		}
		return SymbolNum(v.Sym)
	case ShapeSet:
		return rankRaw(v.Base)
	case ShapeSlice:
		start := v.Start
		if start == nil {
			start = ConstInt(0)
		}
		end := v.End
		if end == nil {
			end = rankRaw(v.Base)
		}
		return Max(ConstInt(0), Bop(Sub, end, start))
	case ShapeConcat:
		return Bop(Add, rankRaw(v.L), rankRaw(v.R))
	case ShapeBroadcast:
		return Max(rankRaw(v.L), rankRaw(v.R))
	default:
		return ConstInt(0)
	}
}

// AsConstInt returns the concrete integer value of a Num expression after
// normalisation, or ok=false if it is not a constant.
func AsConstInt(n Num) (int64, bool) {
	norm := NormalizeNum(n)
	c, ok := norm.(NumConst)
	if !ok || !c.Value.IsInt() {
		return 0, false
	}
	return c.Value.Num().Int64(), true
}
