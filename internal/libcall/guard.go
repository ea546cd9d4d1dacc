package libcall

import (
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

// registerGuard installs the guard namespace: explicit obligations
// emitted from user pylib code.
func registerGuard(r *Registry) {
	r.Register("guard.require_eq", guardCompare(func(l, r symexpr.Num) symexpr.Bool { return symexpr.Eq(l, r) }, "values must be equal"))
	r.Register("guard.require_neq", guardCompare(func(l, r symexpr.Num) symexpr.Bool { return symexpr.Neq(l, r) }, "values must differ"))
	r.Register("guard.require_lt", guardCompare(func(l, r symexpr.Num) symexpr.Bool { return symexpr.Lt(l, r) }, "left must be less than right"))
	r.Register("guard.require_lte", guardCompare(func(l, r symexpr.Num) symexpr.Bool { return symexpr.Lte(l, r) }, "left must be at most right"))
	r.Register("guard.require_shape_eq", handleGuardShapeEq)
	r.Register("guard.require_broadcastable", handleGuardBroadcastable)
}

func guardCompare(mk func(l, r symexpr.Num) symexpr.Bool, defMsg string) Handler {
	return func(s *Session, inv *Invocation) *pathctx.ContextSet {
		lv, lok := inv.Value("left")
		rv, rok := inv.Value("right")
		if !lok || !rok {
			return typeErr(s, inv, "missing left/right")
		}
		l, ok := numOf(inv.Ctx, lv)
		if !ok {
			return typeErr(s, inv, "left must be numeric")
		}
		r, ok := numOf(inv.Ctx, rv)
		if !ok {
			return typeErr(s, inv, "right must be numeric")
		}
		msg := defMsg
		if mv, ok := inv.Value("msg"); ok {
			if sv, ok := mv.(value.String); ok {
				if c, ok := sv.Sym.(symexpr.StrConst); ok {
					msg = c.Value
				}
			}
		}
		return s.Single(inv.Ctx).RequireOne(mk(l, r), msg, inv.Span).Return(value.None{})
	}
}

func handleGuardShapeEq(s *Session, inv *Invocation) *pathctx.ContextSet {
	lv, lok := inv.Value("left")
	rv, rok := inv.Value("right")
	if !lok || !rok {
		return typeErr(s, inv, "missing left/right")
	}
	l, ok := shapeOf(inv.Ctx, lv)
	if !ok {
		return typeErr(s, inv, "left is not a Size")
	}
	r, ok := shapeOf(inv.Ctx, rv)
	if !ok {
		return typeErr(s, inv, "right is not a Size")
	}
	return s.Single(inv.Ctx).
		RequireOne(symexpr.Eq(symexpr.NormalizeShape(l), symexpr.NormalizeShape(r)),
			"shapes "+fmtDims(l)+" and "+fmtDims(r)+" must be equal", inv.Span).
		Return(value.None{})
}

func handleGuardBroadcastable(s *Session, inv *Invocation) *pathctx.ContextSet {
	lv, lok := inv.Value("left")
	rv, rok := inv.Value("right")
	if !lok || !rok {
		return typeErr(s, inv, "missing left/right")
	}
	l, ok := shapeOf(inv.Ctx, lv)
	if !ok {
		return typeErr(s, inv, "left is not a Size")
	}
	r, ok := shapeOf(inv.Ctx, rv)
	if !ok {
		return typeErr(s, inv, "right is not a Size")
	}
	lc, lok2 := symexpr.NormalizeShape(l).(symexpr.ShapeConst)
	rc, rok2 := symexpr.NormalizeShape(r).(symexpr.ShapeConst)
	if lok2 && rok2 {
		if _, err := symexpr.BroadcastConst(lc, rc); err != nil {
			return s.Single(inv.Ctx).RequireOne(symexpr.ConstBool(false),
				"shapes "+fmtDims(lc)+" and "+fmtDims(rc)+" are not broadcastable: "+err.Error(),
				inv.Span)
		}
		return s.Single(inv.Ctx.SetRetVal(value.None{}))
	}
	return s.Single(inv.Ctx).
		Require(broadcastObligations(l, r),
			"shapes "+fmtDims(l)+" and "+fmtDims(r)+" must be broadcastable", inv.Span).
		Return(value.None{})
}
