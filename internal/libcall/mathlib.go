package libcall

import (
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

// registerMath installs the math namespace over the Num algebra.
func registerMath(r *Registry) {
	r.Register("math.floor", mathUop(symexpr.Floor))
	r.Register("math.ceil", mathUop(symexpr.Ceil))
	r.Register("math.fabs", mathUop(symexpr.Abs))
	r.Register("math.sqrt", handleMathSqrt)
	r.Register("math.pow", handleMathPow)
	r.Register("math.min", handleMathMin)
	r.Register("math.max", handleMathMax)
}

func mathArg(s *Session, inv *Invocation) (symexpr.Num, *pathctx.ContextSet) {
	v, ok := inv.Value("x")
	if !ok {
		return nil, typeErr(s, inv, "missing x")
	}
	n, ok := numOf(inv.Ctx, v)
	if !ok {
		return nil, typeErr(s, inv, "x must be numeric")
	}
	return n, nil
}

func mathUop(op symexpr.UopOp) Handler {
	return func(s *Session, inv *Invocation) *pathctx.ContextSet {
		n, fail := mathArg(s, inv)
		if fail != nil {
			return fail
		}
		out := symexpr.NormalizeNum(symexpr.Uop(op, n))
		if op == symexpr.Floor || op == symexpr.Ceil {
			return s.Single(inv.Ctx.SetRetVal(value.Int{Sym: out}))
		}
		return s.Single(inv.Ctx.SetRetVal(value.Float{Sym: out}))
	}
}

// handleMathSqrt introduces a fresh symbol y with y >= 0 and y*y = x as
// guaranteed facts (no square-root operator exists in the Num algebra).
func handleMathSqrt(s *Session, inv *Invocation) *pathctx.ContextSet {
	n, fail := mathArg(s, inv)
	if fail != nil {
		return fail
	}
	y := symexpr.SymbolNum(s.Syms.FreshNum("sqrt"))
	ctx := inv.Ctx
	return s.Single(ctx).
		RequireOne(symexpr.Lte(symexpr.ConstInt(0), n), "sqrt argument must be non-negative", inv.Span).
		Map(func(c *pathctx.Context) *pathctx.Context {
			return c.WithConstraints(c.Constraints.
				Guarantee(symexpr.Lte(symexpr.ConstInt(0), y)).
				Guarantee(symexpr.Eq(symexpr.Bop(symexpr.Mul, y, y), n)))
		}).
		Return(value.Float{Sym: y})
}

// handleMathPow folds small constant integer exponents into repeated
// multiplication; anything else is a fresh symbol.
func handleMathPow(s *Session, inv *Invocation) *pathctx.ContextSet {
	xv, xok := inv.Value("x")
	yv, yok := inv.Value("y")
	if !xok || !yok {
		return typeErr(s, inv, "missing x/y")
	}
	x, ok := numOf(inv.Ctx, xv)
	if !ok {
		return typeErr(s, inv, "x must be numeric")
	}
	exp, isConst := intConstOf(inv.Ctx, yv)
	if !isConst || exp < 0 || exp > 16 {
		return s.Single(inv.Ctx.SetRetVal(
			value.Float{Sym: symexpr.SymbolNum(s.Syms.FreshNum("pow"))}))
	}
	out := symexpr.Num(symexpr.ConstInt(1))
	for i := int64(0); i < exp; i++ {
		out = symexpr.Bop(symexpr.Mul, out, x)
	}
	return s.Single(inv.Ctx.SetRetVal(value.Float{Sym: symexpr.NormalizeNum(out)}))
}

func mathVariadic(s *Session, inv *Invocation, isMax bool) *pathctx.ContextSet {
	if len(inv.Params) == 0 {
		return typeErr(s, inv, "needs at least one argument")
	}
	xs := make([]symexpr.Num, 0, len(inv.Params))
	for _, p := range inv.Params {
		n, ok := numOf(inv.Ctx, p.Val)
		if !ok {
			return typeErr(s, inv, "arguments must be numeric")
		}
		xs = append(xs, n)
	}
	var out symexpr.Num
	if isMax {
		out = symexpr.NormalizeNum(symexpr.Max(xs...))
	} else {
		out = symexpr.NormalizeNum(symexpr.Min(xs...))
	}
	return s.Single(inv.Ctx.SetRetVal(value.Float{Sym: out}))
}

func handleMathMin(s *Session, inv *Invocation) *pathctx.ContextSet {
	return mathVariadic(s, inv, false)
}

func handleMathMax(s *Session, inv *Invocation) *pathctx.ContextSet {
	return mathVariadic(s, inv, true)
}
