package symexpr

import "math/big"

// NormalizeNum performs structural simplification on a Num tree: constant
// folding on arithmetic, Index(Const(_,dims), Const k) reduction, and
// Numel(Const(_,dims)) expansion to the product of the dims. It never
// mutates its argument; it always returns a (possibly identical) new tree.
func NormalizeNum(n Num) Num {
	switch v := n.(type) {
	case NumConst, NumSymbol:
		return v
	case NumBop:
		l, r := NormalizeNum(v.L), NormalizeNum(v.R)
		if lc, lok := l.(NumConst); lok {
			if rc, rok := r.(NumConst); rok {
				if folded, ok := foldBop(v.Op, lc.Value, rc.Value); ok {
					return ConstRat(folded)
				}
			}
		}
		return NumBop{base: v.base, Op: v.Op, L: l, R: r}
	case NumUop:
		x := NormalizeNum(v.X)
		if c, ok := x.(NumConst); ok {
			if folded, ok := foldUop(v.Op, c.Value); ok {
				return ConstRat(folded)
			}
		}
		return NumUop{base: v.base, Op: v.Op, X: x}
	case NumIndex:
		s := NormalizeShape(v.S)
		i := NormalizeNum(v.I)
		if sc, ok := s.(ShapeConst); ok {
			if k, ok := AsConstInt(i); ok && k >= 0 && k < int64(sc.Rank) {
				return NormalizeNum(sc.Dims[k])
			}
		}
		return NumIndex{base: v.base, S: s, I: i}
	case NumMax:
		return foldMaxMin(v.Xs, v.base, true)
	case NumMin:
		return foldMaxMin(v.Xs, v.base, false)
	case NumNumel:
		s := NormalizeShape(v.S)
		if sc, ok := s.(ShapeConst); ok {
			prod := Num(ConstInt(1))
			for _, d := range sc.Dims {
				prod = Bop(Mul, prod, d)
			}
			return NormalizeNum(prod)
		}
		return NumNumel{base: v.base, S: s}
	default:
		return n
	}
}

func foldMaxMin(xs []Num, sp base, isMax bool) Num {
	norm := make([]Num, len(xs))
	for i, x := range xs {
		norm[i] = NormalizeNum(x)
	}
	if len(norm) == 1 {
		return norm[0]
	}
	allConst := true
	var best *big.Rat
	for _, x := range norm {
		c, ok := x.(NumConst)
		if !ok {
			allConst = false
			break
		}
		if best == nil || (isMax && c.Value.Cmp(best) > 0) || (!isMax && c.Value.Cmp(best) < 0) {
			best = c.Value
		}
	}
	if allConst {
		return ConstRat(best)
	}
	if isMax {
		return NumMax{base: sp, Xs: norm}
	}
	return NumMin{base: sp, Xs: norm}
}

func foldBop(op BopOp, l, r *big.Rat) (*big.Rat, bool) {
	out := new(big.Rat)
	switch op {
	case Add:
		out.Add(l, r)
	case Sub:
		out.Sub(l, r)
	case Mul:
		out.Mul(l, r)
	case TrueDiv:
		if r.Sign() == 0 {
			return nil, false
		}
		out.Quo(l, r)
	case FloorDiv:
		if r.Sign() == 0 || !l.IsInt() || !r.IsInt() {
			return nil, false
		}
		li, ri := l.Num(), r.Num()
		q := new(big.Int)
		m := new(big.Int)
		q.DivMod(li, ri, m)
		out.SetInt(q)
	case Mod:
		if r.Sign() == 0 || !l.IsInt() || !r.IsInt() {
			return nil, false
		}
		li, ri := l.Num(), r.Num()
		m := new(big.Int).Mod(li, ri)
		out.SetInt(m)
	default:
		return nil, false
	}
	return out, true
}

func foldUop(op UopOp, x *big.Rat) (*big.Rat, bool) {
	out := new(big.Rat)
	switch op {
	case Neg:
		out.Neg(x)
	case Abs:
		out.Abs(x)
	case Floor:
		if !x.IsInt() {
			q := new(big.Int).Quo(x.Num(), x.Denom())
			if x.Sign() < 0 {
				q.Sub(q, big.NewInt(1))
			}
			out.SetInt(q)
		} else {
			out.Set(x)
		}
	case Ceil:
		if !x.IsInt() {
			q := new(big.Int).Quo(x.Num(), x.Denom())
			if x.Sign() > 0 {
				q.Add(q, big.NewInt(1))
			}
			out.SetInt(q)
		} else {
			out.Set(x)
		}
	default:
		return nil, false
	}
	return out, true
}

// NormalizeBool performs structural simplification on a Bool tree.
func NormalizeBool(b Bool) Bool {
	switch v := b.(type) {
	case BoolConst, BoolSymbol:
		return v
	case BoolEq:
		return normalizeEqNeq(v.L, v.R, v.base, true)
	case BoolNeq:
		return normalizeEqNeq(v.L, v.R, v.base, false)
	case BoolLt:
		l, r := NormalizeNum(v.L), NormalizeNum(v.R)
		if lc, lok := l.(NumConst); lok {
			if rc, rok := r.(NumConst); rok {
				return ConstBool(lc.Value.Cmp(rc.Value) < 0)
			}
		}
		return BoolLt{base: v.base, L: l, R: r}
	case BoolLte:
		l, r := NormalizeNum(v.L), NormalizeNum(v.R)
		if lc, lok := l.(NumConst); lok {
			if rc, rok := r.(NumConst); rok {
				return ConstBool(lc.Value.Cmp(rc.Value) <= 0)
			}
		}
		return BoolLte{base: v.base, L: l, R: r}
	case BoolNot:
		x := NormalizeBool(v.X)
		if c, ok := x.(BoolConst); ok {
			return ConstBool(!c.Value)
		}
		if inner, ok := x.(BoolNot); ok {
			return inner.X
		}
		return BoolNot{base: v.base, X: x}
	case BoolAnd:
		l, r := NormalizeBool(v.L), NormalizeBool(v.R)
		if lc, ok := l.(BoolConst); ok {
			if !lc.Value {
				return ConstBool(false)
			}
			return r
		}
		if rc, ok := r.(BoolConst); ok {
			if !rc.Value {
				return ConstBool(false)
			}
			return l
		}
		return BoolAnd{base: v.base, L: l, R: r}
	case BoolOr:
		l, r := NormalizeBool(v.L), NormalizeBool(v.R)
		if lc, ok := l.(BoolConst); ok {
			if lc.Value {
				return ConstBool(true)
			}
			return r
		}
		if rc, ok := r.(BoolConst); ok {
			if rc.Value {
				return ConstBool(true)
			}
			return l
		}
		return BoolOr{base: v.base, L: l, R: r}
	default:
		return b
	}
}

func normalizeEqNeq(l, r SymExp, sp base, isEq bool) Bool {
	// Normalize each side if it belongs to a recognized sort.
	nl, nr := normalizeSymExp(l), normalizeSymExp(r)
	if equalConst, ok := constEqual(nl, nr); ok {
		if isEq {
			return ConstBool(equalConst)
		}
		return ConstBool(!equalConst)
	}
	if EqualExp(nl, nr) {
		return ConstBool(isEq)
	}
	if isEq {
		return BoolEq{base: sp, L: nl, R: nr}
	}
	return BoolNeq{base: sp, L: nl, R: nr}
}

func normalizeSymExp(e SymExp) SymExp {
	switch v := e.(type) {
	case Num:
		return NormalizeNum(v)
	case Bool:
		return NormalizeBool(v)
	case Str:
		return NormalizeStr(v)
	case Shape:
		return NormalizeShape(v)
	default:
		return e
	}
}

// constEqual decides concrete equality when both sides normalise to
// constants of the same sort; ok is false when at least one side is
// symbolic (no decision can be made without the constraint store).
func constEqual(l, r SymExp) (equal bool, ok bool) {
	switch lv := l.(type) {
	case NumConst:
		if rv, ok2 := r.(NumConst); ok2 {
			return lv.Value.Cmp(rv.Value) == 0, true
		}
	case BoolConst:
		if rv, ok2 := r.(BoolConst); ok2 {
			return lv.Value == rv.Value, true
		}
	case StrConst:
		if rv, ok2 := r.(StrConst); ok2 {
			return lv.Value == rv.Value, true
		}
	case ShapeConst:
		rv, ok2 := r.(ShapeConst)
		if !ok2 || !allConstDims(lv) || !allConstDims(rv) {
			break
		}
		if lv.Rank != rv.Rank {
			return false, true
		}
		for i := range lv.Dims {
			li, _ := AsConstInt(lv.Dims[i])
			ri, _ := AsConstInt(rv.Dims[i])
			if li != ri {
				return false, true
			}
		}
		return true, true
	}
	return false, false
}

func allConstDims(s ShapeConst) bool {
	for _, d := range s.Dims {
		if _, ok := AsConstInt(d); !ok {
			return false
		}
	}
	return true
}

// NormalizeStr performs structural simplification on a Str tree.
func NormalizeStr(s Str) Str {
	switch v := s.(type) {
	case StrConst, StrSymbol:
		return v
	case StrSlice:
		inner := NormalizeStr(v.S)
		start, end := v.Start, v.End
		if start != nil {
			start = NormalizeNum(start)
		}
		if end != nil {
			end = NormalizeNum(end)
		}
		if sc, ok := inner.(StrConst); ok {
			if st, stOk := normBound(start, 0); stOk {
				if en, enOk := normBound(end, int64(len(sc.Value))); enOk {
					if st < 0 {
						st = 0
					}
					if en > int64(len(sc.Value)) {
						en = int64(len(sc.Value))
					}
					if en < st {
						en = st
					}
					return ConstStr(sc.Value[st:en])
				}
			}
		}
		return StrSlice{base: v.base, S: inner, Start: start, End: end}
	case StrConcat:
		l, r := NormalizeStr(v.L), NormalizeStr(v.R)
		if lc, ok := l.(StrConst); ok {
			if rc, ok := r.(StrConst); ok {
				return ConstStr(lc.Value + rc.Value)
			}
		}
		return StrConcat{base: v.base, L: l, R: r}
	default:
		return s
	}
}

func normBound(n Num, def int64) (int64, bool) {
	if n == nil {
		return def, true
	}
	return AsConstInt(n)
}

// NormalizeShape performs structural simplification on a Shape tree,
// including the collapses named in the component design: Slice(s,0,rank(s))
// collapses to s, Concat(Const(0,[]), x) and its mirror collapse to x,
// and nested Slice fuses. A Broadcast node only has its two operands
// normalised: it is never pushed under Concat and never folded, even
// when both operands are constant shapes.
func NormalizeShape(s Shape) Shape {
	switch v := s.(type) {
	case ShapeConst:
		dims := make([]Num, len(v.Dims))
		for i, d := range v.Dims {
			dims[i] = NormalizeNum(d)
		}
		return ShapeConst{base: v.base, Rank: v.Rank, Dims: dims}
	case ShapeSymbol:
		return v
	case ShapeSet:
		base_ := NormalizeShape(v.Base)
		axis := NormalizeNum(v.Axis)
		dim := NormalizeNum(v.Dim)
		if sc, ok := base_.(ShapeConst); ok {
			if k, ok := AsConstInt(axis); ok && k >= 0 && k < int64(sc.Rank) {
				dims := append([]Num(nil), sc.Dims...)
				dims[k] = dim
				return ShapeConst{Rank: sc.Rank, Dims: dims}
			}
		}
		return ShapeSet{base: v.base, Base: base_, Axis: axis, Dim: dim}
	case ShapeSlice:
		return normalizeShapeSlice(v)
	case ShapeConcat:
		l, r := NormalizeShape(v.L), NormalizeShape(v.R)
		if lc, ok := l.(ShapeConst); ok && lc.Rank == 0 {
			return r
		}
		if rc, ok := r.(ShapeConst); ok && rc.Rank == 0 {
			return l
		}
		if lc, ok := l.(ShapeConst); ok {
			if rc, ok := r.(ShapeConst); ok {
				dims := append(append([]Num(nil), lc.Dims...), rc.Dims...)
				return ConstShape(dims...)
			}
		}
		return ShapeConcat{base: v.base, L: l, R: r}
	case ShapeBroadcast:
		l, r := NormalizeShape(v.L), NormalizeShape(v.R)
		return ShapeBroadcast{base: v.base, L: l, R: r}
	default:
		return s
	}
}

func normalizeShapeSlice(v ShapeSlice) Shape {
	base_ := NormalizeShape(v.Base)
	start, end := v.Start, v.End
	if start != nil {
		start = NormalizeNum(start)
	}
	if end != nil {
		end = NormalizeNum(end)
	}

	// Fuse nested Slice: Slice(Slice(s,a,b), c, d) = Slice(s, a+c, a+min(d, b-a))
	if inner, ok := base_.(ShapeSlice); ok {
		a := defaultNum(inner.Start, ConstInt(0))
		b := defaultNum(inner.End, Rank(inner.Base))
		c := defaultNum(start, ConstInt(0))
		d := defaultNum(end, Bop(Sub, b, a))
		newStart := NormalizeNum(Bop(Add, a, c))
		newEnd := NormalizeNum(Bop(Add, a, Min(d, Bop(Sub, b, a))))
		return normalizeShapeSlice(ShapeSlice{base: v.base, Base: inner.Base, Start: newStart, End: newEnd})
	}

	rank := Rank(base_)
	effStart := defaultNum(start, ConstInt(0))
	effEnd := defaultNum(end, rank)

	// Collapse Slice(s, 0, rank(s)) -> s
	if s0, ok := AsConstInt(effStart); ok && s0 == 0 {
		if rc, ok1 := AsConstInt(rank); ok1 {
			if ec, ok2 := AsConstInt(effEnd); ok2 && ec == rc {
				return base_
			}
		}
	}

	if sc, ok := base_.(ShapeConst); ok {
		if st, stOk := AsConstInt(effStart); stOk {
			if en, enOk := AsConstInt(effEnd); enOk {
				if st < 0 {
					st = 0
				}
				if en > int64(sc.Rank) {
					en = int64(sc.Rank)
				}
				if en < st {
					en = st
				}
				return ConstShape(sc.Dims[st:en]...)
			}
		}
	}
	return ShapeSlice{base: v.base, Base: base_, Start: start, End: end}
}

func defaultNum(n Num, def Num) Num {
	if n == nil {
		return def
	}
	return n
}
