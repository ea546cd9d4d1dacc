package interp

import (
	"github.com/pytea-go/symexec/internal/ir"
	"github.com/pytea-go/symexec/internal/libcall"
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

// elementwiseByOp maps an arithmetic operator on two tensor operands to
// the torch handler implementing its broadcast contract.
var elementwiseByOp = map[ir.BinOpKind]string{
	ir.OpAdd:      "torch.add",
	ir.OpSub:      "torch.sub",
	ir.OpMul:      "torch.mul",
	ir.OpTrueDiv:  "torch.div",
	ir.OpFloorDiv: "torch.floor_divide",
	ir.OpMod:      "torch.remainder",
}

func (it *Interpreter) evalBinOp(ctx *pathctx.Context, e *ir.BinOp) *pathctx.ContextSet {
	if e.Op == ir.OpAnd || e.Op == ir.OpOr {
		return it.evalBoolOp(ctx, e)
	}
	return it.eval(ctx, e.L).FlatMap(func(c *pathctx.Context) *pathctx.ContextSet {
		if isFatal(c.RetVal) {
			return it.single(c)
		}
		lv := c.RetVal
		return it.eval(c, e.R).FlatMap(func(c2 *pathctx.Context) *pathctx.ContextSet {
			if isFatal(c2.RetVal) {
				return it.single(c2)
			}
			return it.applyBinOp(c2, e.Op, lv, c2.RetVal, e.Span())
		})
	})
}

// evalBoolOp implements Python and/or: a concretely-decided left
// operand short-circuits, a symbolic one evaluates the right operand
// and combines the two truth conditions.
func (it *Interpreter) evalBoolOp(ctx *pathctx.Context, e *ir.BinOp) *pathctx.ContextSet {
	return it.eval(ctx, e.L).FlatMap(func(c *pathctx.Context) *pathctx.ContextSet {
		if isFatal(c.RetVal) {
			return it.single(c)
		}
		lv := c.RetVal
		tr := it.truthiness(c, lv, e.L.Span())
		if tr.err != nil {
			return it.single(c.SetRetVal(*tr.err))
		}
		if tr.known {
			if (e.Op == ir.OpAnd) != tr.val {
				// and with a false left / or with a true left: keep left.
				return it.single(c.SetRetVal(lv))
			}
			return it.eval(c, e.R)
		}
		return it.eval(c, e.R).FlatMap(func(c2 *pathctx.Context) *pathctx.ContextSet {
			if isFatal(c2.RetVal) {
				return it.single(c2)
			}
			rt := it.truthiness(c2, c2.RetVal, e.R.Span())
			if rt.err != nil {
				return it.single(c2.SetRetVal(*rt.err))
			}
			rsym := rt.sym
			if rt.known {
				rsym = symexpr.ConstBool(rt.val)
			}
			var combined symexpr.Bool
			if e.Op == ir.OpAnd {
				combined = symexpr.And(tr.sym, rsym)
			} else {
				combined = symexpr.Or(tr.sym, rsym)
			}
			return it.single(c2.SetRetVal(value.Bool{Sym: symexpr.NormalizeBool(combined)}))
		})
	})
}

func (it *Interpreter) applyBinOp(c *pathctx.Context, op ir.BinOpKind, lv, rv value.Value, sp *symexpr.Span) *pathctx.ContextSet {
	switch op {
	case ir.OpIs, ir.OpIsNot:
		return it.identityOp(c, op, lv, rv, sp)
	case ir.OpIn, ir.OpNotIn:
		return it.containsOp(c, op, lv, rv, sp)
	}

	l, r := deref(c, lv), deref(c, rv)

	// Two tensor operands: the elementwise broadcast contract.
	lo, lIsObj := l.(value.Object)
	ro, rIsObj := r.(value.Object)
	if name, arith := elementwiseByOp[op]; arith {
		if (lIsObj && lo.IsSize()) || (rIsObj && ro.IsSize()) {
			inv := &libcall.Invocation{
				Ctx:  c,
				Name: name,
				Params: []libcall.Param{
					{Name: "input", Val: lv},
					{Name: "other", Val: rv},
				},
				Span: sp,
			}
			return it.reg.Dispatch(it.sess, inv)
		}
	}

	// Primitive element types follow the Bool <= Int <= Float ladder.
	if out, ok := it.primitiveOp(op, l, r); ok {
		return it.single(c.SetRetVal(out))
	}

	// Object operands dispatch __op__ then the mirrored __rop__.
	if lIsObj || rIsObj {
		return it.dunderOp(c, op, lv, rv, sp)
	}

	// Remaining cross-sort comparisons (None == x, str == int, ...).
	switch op {
	case ir.OpEq:
		return it.single(c.SetRetVal(value.Bool{Sym: symexpr.ConstBool(crossEqual(l, r))}))
	case ir.OpNeq:
		return it.single(c.SetRetVal(value.Bool{Sym: symexpr.ConstBool(!crossEqual(l, r))}))
	}
	return it.errSet(c, value.ReasonTypeMismatch, "unsupported operand types for "+string(op), sp)
}

// crossEqual decides == between values of different sorts: only two
// Nones compare equal.
func crossEqual(l, r value.Value) bool {
	_, ln := l.(value.None)
	_, rn := r.(value.None)
	return ln && rn
}

// primitiveOp applies op to two primitive payloads, reporting ok=false
// when either operand is not primitive (so the caller can fall back to
// the dunder protocol).
func (it *Interpreter) primitiveOp(op ir.BinOpKind, l, r value.Value) (value.Value, bool) {
	if ls, ok := l.(value.String); ok {
		if rs, ok := r.(value.String); ok {
			return stringOp(op, ls, rs)
		}
		return nil, false
	}

	ln, lFloat, lok := numericPayload(l)
	rn, rFloat, rok := numericPayload(r)
	if !lok || !rok {
		return nil, false
	}
	isFloat := lFloat || rFloat

	switch op {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpTrueDiv, ir.OpFloorDiv, ir.OpMod:
		bop := map[ir.BinOpKind]symexpr.BopOp{
			ir.OpAdd: symexpr.Add, ir.OpSub: symexpr.Sub, ir.OpMul: symexpr.Mul,
			ir.OpTrueDiv: symexpr.TrueDiv, ir.OpFloorDiv: symexpr.FloorDiv, ir.OpMod: symexpr.Mod,
		}[op]
		out := symexpr.NormalizeNum(symexpr.Bop(bop, ln, rn))
		if op == ir.OpTrueDiv || isFloat {
			return value.Float{Sym: out}, true
		}
		return value.Int{Sym: out}, true
	case ir.OpLt:
		return value.Bool{Sym: symexpr.NormalizeBool(symexpr.Lt(ln, rn))}, true
	case ir.OpLte:
		return value.Bool{Sym: symexpr.NormalizeBool(symexpr.Lte(ln, rn))}, true
	case ir.OpGt:
		return value.Bool{Sym: symexpr.NormalizeBool(symexpr.Lt(rn, ln))}, true
	case ir.OpGte:
		return value.Bool{Sym: symexpr.NormalizeBool(symexpr.Lte(rn, ln))}, true
	case ir.OpEq:
		return value.Bool{Sym: symexpr.NormalizeBool(symexpr.Eq(ln, rn))}, true
	case ir.OpNeq:
		return value.Bool{Sym: symexpr.NormalizeBool(symexpr.Neq(ln, rn))}, true
	default:
		return nil, false
	}
}

// numericPayload extracts the Num behind an Int/Float/Bool value.
func numericPayload(v value.Value) (n symexpr.Num, isFloat, ok bool) {
	switch x := v.(type) {
	case value.Int:
		return x.Sym, false, true
	case value.Float:
		return x.Sym, true, true
	case value.Bool:
		if c, isConst := x.Sym.(symexpr.BoolConst); isConst {
			if c.Value {
				return symexpr.ConstInt(1), false, true
			}
			return symexpr.ConstInt(0), false, true
		}
		return nil, false, false
	default:
		return nil, false, false
	}
}

func stringOp(op ir.BinOpKind, l, r value.String) (value.Value, bool) {
	switch op {
	case ir.OpAdd:
		return value.String{Sym: symexpr.NormalizeStr(symexpr.ConcatStr(l.Sym, r.Sym))}, true
	case ir.OpEq:
		return value.Bool{Sym: symexpr.NormalizeBool(symexpr.Eq(l.Sym, r.Sym))}, true
	case ir.OpNeq:
		return value.Bool{Sym: symexpr.NormalizeBool(symexpr.Neq(l.Sym, r.Sym))}, true
	default:
		return nil, false
	}
}

// dunderOp tries left __op__, then right __rop__; a NotImpl result from
// the first defers to the second.
func (it *Interpreter) dunderOp(c *pathctx.Context, op ir.BinOpKind, lv, rv value.Value, sp *symexpr.Span) *pathctx.ContextSet {
	// Two Sizes compare structurally by shape.
	if op == ir.OpEq || op == ir.OpNeq {
		lo, lok := derefObject(c, lv)
		ro, rok := derefObject(c, rv)
		if lok && rok && lo.IsSize() && ro.IsSize() {
			var b symexpr.Bool
			if op == ir.OpEq {
				b = symexpr.Eq(lo.Shape, ro.Shape)
			} else {
				b = symexpr.Neq(lo.Shape, ro.Shape)
			}
			return it.single(c.SetRetVal(value.Bool{Sym: symexpr.NormalizeBool(b)}))
		}
	}

	fwd := value.OpAttrName(string(op), false)
	rev := value.OpAttrName(string(op), true)
	if fwd == "" {
		return it.errSet(c, value.ReasonTypeMismatch, "unsupported operand types for "+string(op), sp)
	}

	tryCall := func(recv, arg value.Value, attr string) (*pathctx.ContextSet, bool) {
		obj, ok := derefObject(c, recv)
		if !ok {
			return nil, false
		}
		m, ok := obj.Attrs[attr]
		if !ok {
			return nil, false
		}
		return it.callValue(c, m, []value.Value{recv, arg}, nil, sp), true
	}

	if out, ok := tryCall(lv, rv, fwd); ok {
		return out.FlatMap(func(c2 *pathctx.Context) *pathctx.ContextSet {
			if _, notImpl := deref(c2, c2.RetVal).(value.NotImpl); !notImpl {
				return it.single(c2)
			}
			if out2, ok := tryCall(rv, lv, rev); ok {
				return out2
			}
			return it.errSet(c2, value.ReasonTypeMismatch, "unsupported operand types for "+string(op), sp)
		})
	}
	if out, ok := tryCall(rv, lv, rev); ok {
		return out
	}

	// Address identity as the == / != fallback, Python object semantics.
	if op == ir.OpEq || op == ir.OpNeq {
		return it.identityOp(c, map[ir.BinOpKind]ir.BinOpKind{ir.OpEq: ir.OpIs, ir.OpNeq: ir.OpIsNot}[op], lv, rv, sp)
	}
	return it.errSet(c, value.ReasonTypeMismatch, "unsupported operand types for "+string(op), sp)
}

// identityOp compares by address. For primitive payloads the lowering
// treats is/is not as ==/!=, matching the source's small-int behaviour.
func (it *Interpreter) identityOp(c *pathctx.Context, op ir.BinOpKind, lv, rv value.Value, sp *symexpr.Span) *pathctx.ContextSet {
	isOp := op == ir.OpIs

	la, lok := lv.(value.Addr)
	ra, rok := rv.(value.Addr)
	if lok && rok {
		same := la.A == ra.A
		return it.single(c.SetRetVal(value.Bool{Sym: symexpr.ConstBool(same == isOp)}))
	}
	if lok != rok {
		return it.single(c.SetRetVal(value.Bool{Sym: symexpr.ConstBool(!isOp)}))
	}

	l, r := deref(c, lv), deref(c, rv)
	if _, ln := l.(value.None); ln {
		_, rn := r.(value.None)
		return it.single(c.SetRetVal(value.Bool{Sym: symexpr.ConstBool(rn == isOp)}))
	}
	eqOp := ir.OpEq
	if !isOp {
		eqOp = ir.OpNeq
	}
	if out, ok := it.primitiveOp(eqOp, l, r); ok {
		return it.single(c.SetRetVal(out))
	}
	return it.single(c.SetRetVal(value.Bool{Sym: symexpr.ConstBool(!isOp)}))
}

// containsOp implements in/not in: __contains__ when present, else an
// equality sweep over a concrete-length container. NotIn negates the
// __contains__ result.
func (it *Interpreter) containsOp(c *pathctx.Context, op ir.BinOpKind, needle, hay value.Value, sp *symexpr.Span) *pathctx.ContextSet {
	negate := op == ir.OpNotIn
	obj, ok := derefObject(c, hay)
	if !ok {
		return it.errSet(c, value.ReasonTypeMismatch, "argument of in is not a container", sp)
	}
	if m, ok := obj.Attrs[value.AttrContains]; ok {
		out := it.callValue(c, m, []value.Value{hay, needle}, nil, sp)
		if !negate {
			return out
		}
		return out.FlatMap(func(c2 *pathctx.Context) *pathctx.ContextSet {
			tr := it.truthiness(c2, c2.RetVal, sp)
			switch {
			case tr.err != nil:
				return it.single(c2.SetRetVal(*tr.err))
			case tr.known:
				return it.single(c2.SetRetVal(value.Bool{Sym: symexpr.ConstBool(!tr.val)}))
			default:
				return it.single(c2.SetRetVal(value.Bool{Sym: symexpr.NormalizeBool(symexpr.Not(tr.sym))}))
			}
		})
	}

	n, ok := concreteLen(obj)
	if !ok {
		return it.errSet(c, value.ReasonUnsupported, "membership test on a container without a concrete length", sp)
	}
	nn, _, numOK := numericPayload(deref(c, needle))
	if !numOK {
		return it.errSet(c, value.ReasonUnsupported, "membership test with a non-numeric needle", sp)
	}
	found := symexpr.Bool(symexpr.ConstBool(false))
	for i := int64(0); i < n; i++ {
		ev, ok := obj.Indices[i]
		if !ok {
			continue
		}
		en, _, eok := numericPayload(deref(c, ev))
		if !eok {
			continue
		}
		found = symexpr.Or(found, symexpr.Eq(nn, en))
	}
	if negate {
		found = symexpr.Not(found)
	}
	return it.single(c.SetRetVal(value.Bool{Sym: symexpr.NormalizeBool(found)}))
}
