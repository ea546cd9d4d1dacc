package interp

import (
	"github.com/pytea-go/symexec/internal/constraints"
	"github.com/pytea-go/symexec/internal/ir"
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

// execBlock sequences statements: only contexts whose flag is Run see
// the next statement; Cnt/Brk/Returned contexts ride along untouched
// until the enclosing loop or call unwinds them.
func (it *Interpreter) execBlock(cs *pathctx.ContextSet, b *ir.Block) *pathctx.ContextSet {
	for _, st := range b.Stmts {
		if it.cancelledNow() {
			return cs
		}
		run, halted := splitRunnable(cs)
		if len(run.Live) == 0 {
			return cs
		}
		cs = it.siphonErrors(it.execStmt(run, st)).Join(halted)
	}
	return cs
}

// splitRunnable separates FlagRun contexts from unwinding ones. The
// failed bucket stays with the runnable half so it is threaded exactly
// once.
func splitRunnable(cs *pathctx.ContextSet) (run, halted *pathctx.ContextSet) {
	var running, stopped []*pathctx.Context
	for _, c := range cs.Live {
		if c.Flag == pathctx.FlagRun {
			running = append(running, c)
		} else {
			stopped = append(stopped, c)
		}
	}
	run = &pathctx.ContextSet{Live: running, Failed: cs.Failed, PathCap: cs.PathCap}
	halted = &pathctx.ContextSet{Live: stopped, PathCap: cs.PathCap}
	return run, halted
}

func (it *Interpreter) execStmt(cs *pathctx.ContextSet, s ir.Stmt) *pathctx.ContextSet {
	switch st := s.(type) {
	case *ir.Block:
		return it.execBlock(cs, st)
	case *ir.ExprStmt:
		return it.evalSet(cs, st.X)
	case *ir.Let:
		return it.execLet(cs, st)
	case *ir.FunDef:
		return it.execFunDef(cs, st)
	case *ir.If:
		return it.execIf(cs, st)
	case *ir.ForIn:
		return it.execForIn(cs, st)
	case *ir.Return:
		return it.execReturn(cs, st)
	case *ir.Break:
		return cs.Map(func(c *pathctx.Context) *pathctx.Context { return c.WithFlag(pathctx.FlagBrk) })
	case *ir.Continue:
		return cs.Map(func(c *pathctx.Context) *pathctx.Context { return c.WithFlag(pathctx.FlagCnt) })
	case *ir.Assert:
		return it.execAssert(cs, st)
	default:
		return cs.Map(func(c *pathctx.Context) *pathctx.Context {
			return c.SetRetVal(value.Error{
				Severity: value.SeverityError,
				Reason:   value.ReasonUnsupported,
				Message:  "unknown statement node",
				Source:   s.Span(),
			})
		})
	}
}

// execLet evaluates the initialiser (Undef when absent) and binds the
// name: a fresh cell the first time, write-through afterwards
// (Python-style function-scope assignment, so closures that captured
// the address observe the rebind).
func (it *Interpreter) execLet(cs *pathctx.ContextSet, st *ir.Let) *pathctx.ContextSet {
	var out *pathctx.ContextSet
	if st.Value == nil {
		out = cs.Return(value.Undef{})
	} else {
		out = it.siphonErrors(it.evalSet(cs, st.Value))
	}
	return out.Map(func(c *pathctx.Context) *pathctx.Context {
		return bindName(c, st.Name, c.RetVal)
	})
}

// bindName implements the rebind-in-place rule shared by Let and FunDef.
func bindName(c *pathctx.Context, name string, v value.Value) *pathctx.Context {
	if addr, ok := c.Env.GetId(name); ok && !addr.IsBuiltin() {
		return c.SetVal(addr, v)
	}
	addr, c2 := c.AllocNew(v)
	return c2.WithEnv(c2.Env.SetId(name, addr))
}

// execFunDef evaluates default expressions at definition time, then
// installs the Func. The captured environment includes the function's
// own binding so recursion resolves.
func (it *Interpreter) execFunDef(cs *pathctx.ContextSet, st *ir.FunDef) *pathctx.ContextSet {
	names := make([]string, 0, len(st.Defaults))
	exprs := make([]ir.Expr, 0, len(st.Defaults))
	for _, p := range st.Params {
		if e, ok := st.Defaults[p]; ok {
			names = append(names, p)
			exprs = append(exprs, e)
		}
	}
	return cs.FlatMap(func(c *pathctx.Context) *pathctx.ContextSet {
		done, evaled := it.evalArgs(c, exprs)
		out := pathctx.Empty(cs.PathCap)
		for _, ac := range evaled {
			defaults := make(map[string]value.Value, len(names))
			for i, n := range names {
				defaults[n] = ac.vals[i]
			}
			ctx := ac.ctx
			// Bind the name first so CapturedEnv sees it.
			cell, bound := ctx.Env.GetId(st.Name)
			if !bound || cell.IsBuiltin() {
				cell, ctx = ctx.AllocNew(value.Undef{})
				ctx = ctx.WithEnv(ctx.Env.SetId(st.Name, cell))
			}
			fn := value.Func{
				ID:           it.ids.Next(),
				Name:         st.Name,
				Params:       st.Params,
				Defaults:     defaults,
				Body:         st.Body,
				CapturedEnv:  ctx.Env,
				HasClosure:   true,
				VarargsName:  st.VarargsName,
				KwargsName:   st.KwargsName,
				KeyOnlyCount: st.KeyOnlyCount,
			}
			ctx = ctx.SetVal(cell, fn).SetRetVal(value.None{})
			out = out.Join(pathctx.Singleton(ctx, cs.PathCap))
		}
		return out.Join(done)
	})
}

// execIf classifies the condition per context: a concrete truth picks
// one arm, a symbolic Bool forks the path via IfThenElse.
func (it *Interpreter) execIf(cs *pathctx.ContextSet, st *ir.If) *pathctx.ContextSet {
	condSet := it.siphonErrors(it.evalSet(cs, st.Cond))

	thenSet := pathctx.Empty(cs.PathCap)
	elseSet := pathctx.Empty(cs.PathCap)
	failed := condSet.Failed
	for _, ctx := range condSet.Live {
		tr := it.truthiness(ctx, ctx.RetVal, st.Cond.Span())
		switch {
		case tr.err != nil:
			failed = append(failed, ctx.AddDiag(*tr.err).MarkFailed())
		case tr.known:
			if tr.val {
				thenSet = thenSet.Join(pathctx.Singleton(ctx, cs.PathCap))
			} else {
				elseSet = elseSet.Join(pathctx.Singleton(ctx, cs.PathCap))
			}
		default:
			t, e := pathctx.Singleton(ctx, cs.PathCap).IfThenElse(tr.sym, st.Span())
			thenSet = thenSet.Join(t)
			elseSet = elseSet.Join(e)
		}
	}

	if len(thenSet.Live) > 0 {
		thenSet = it.execBlock(thenSet, st.Then)
	}
	if st.Else != nil && len(elseSet.Live) > 0 {
		elseSet = it.execBlock(elseSet, st.Else)
	}
	out := thenSet.Join(elseSet)
	out = &pathctx.ContextSet{Live: out.Live, Failed: append(out.Failed, failed...), PathCap: cs.PathCap}
	return out
}

func (it *Interpreter) execReturn(cs *pathctx.ContextSet, st *ir.Return) *pathctx.ContextSet {
	if st.X == nil {
		return cs.Map(func(c *pathctx.Context) *pathctx.Context { return c.Returned(value.None{}) })
	}
	out := it.siphonErrors(it.evalSet(cs, st.X))
	return out.Map(func(c *pathctx.Context) *pathctx.Context { return c.Returned(c.RetVal) })
}

// execAssert lowers a Python assert into an obligation; ignoreAssert
// skips evaluation entirely.
func (it *Interpreter) execAssert(cs *pathctx.ContextSet, st *ir.Assert) *pathctx.ContextSet {
	if it.opts.IgnoreAssert {
		return cs.Return(value.None{})
	}
	condSet := it.siphonErrors(it.evalSet(cs, st.Test))
	msg := "assertion failed"
	if st.Msg != "" {
		msg = st.Msg
	}
	out := pathctx.Empty(cs.PathCap)
	failed := condSet.Failed
	for _, ctx := range condSet.Live {
		tr := it.truthiness(ctx, ctx.RetVal, st.Span())
		switch {
		case tr.err != nil:
			failed = append(failed, ctx.AddDiag(*tr.err).MarkFailed())
		case tr.known && tr.val:
			out = out.Join(pathctx.Singleton(ctx.SetRetVal(value.None{}), cs.PathCap))
		case tr.known && !tr.val:
			failed = append(failed, ctx.AddDiag(value.Error{
				Severity: value.SeverityError,
				Reason:   value.ReasonObligationViolated,
				Message:  msg,
				Source:   st.Span(),
			}).MarkFailed())
		default:
			out = out.Join(it.single(ctx).
				RequireOne(tr.sym, msg, st.Span()).
				Return(value.None{}))
		}
	}
	return &pathctx.ContextSet{Live: out.Live, Failed: append(out.Failed, failed...), PathCap: cs.PathCap}
}

// execForIn implements bounded iteration: a concrete $length unrolls
// the body; a symbolic length with a pinned range unrolls over that
// constant; anything wider runs the body once under a fresh bounded
// index with a warning.
func (it *Interpreter) execForIn(cs *pathctx.ContextSet, st *ir.ForIn) *pathctx.ContextSet {
	iterSet := it.siphonErrors(it.evalSet(cs, st.Iter))

	out := pathctx.Empty(cs.PathCap)
	for _, ctx := range iterSet.Live {
		out = out.Join(it.runLoop(ctx, st))
	}
	return &pathctx.ContextSet{Live: out.Live, Failed: append(out.Failed, iterSet.Failed...), PathCap: cs.PathCap}
}

func (it *Interpreter) runLoop(ctx *pathctx.Context, st *ir.ForIn) *pathctx.ContextSet {
	iterable := ctx.RetVal
	obj, ok := derefObject(ctx, iterable)
	if !ok {
		return it.errSet(ctx, value.ReasonTypeMismatch, "for-in target is not iterable", st.Span())
	}
	length, ok := loopLength(obj)
	if !ok {
		return it.errSet(ctx, value.ReasonTypeMismatch, "for-in target has no known length", st.Span())
	}

	if n, isConst := symexpr.AsConstInt(length); isConst {
		return it.unrollLoop(ctx, st, obj, n)
	}

	// A symbolic length pinned to one value by its range unrolls too;
	// prime the cache from the oracle first so entailed bounds count.
	ids := make([]int64, 0, 4)
	for id := range symexpr.UsedSymbolsNum(length) {
		ids = append(ids, id)
	}
	primed := ctx.Constraints.PrimeRanges(ids)
	if n, pinned := pinnedLength(primed, length); pinned {
		return it.unrollLoop(ctx, st, obj, n)
	}

	// Unbounded: one symbolic pass with 0 <= i < length, flagged.
	ctx = ctx.AddDiag(value.Error{
		Severity: value.SeverityWarning,
		Reason:   value.ReasonUnsupported,
		Message:  "loop bound is symbolic: running the body once over a fresh bounded index",
		Source:   st.Span(),
	})
	idx := symexpr.SymbolNum(it.syms.FreshNum("loop$" + st.Target))
	ctx = ctx.WithConstraints(ctx.Constraints.
		Guarantee(symexpr.Lte(symexpr.ConstInt(0), idx)).
		Guarantee(symexpr.Lt(idx, length)))
	elem := it.symbolicElement(ctx, obj, idx, st.Target)
	ctx = bindName(ctx, st.Target, elem)
	body := it.execBlock(pathctx.Singleton(ctx, it.opts.PathCap), st.Body)
	return joinLoopArms(body)
}

// unrollLoop runs the body n times, rejoining break/continue arms each
// iteration; contexts that break leave the loop immediately.
func (it *Interpreter) unrollLoop(ctx *pathctx.Context, st *ir.ForIn, obj value.Object, n int64) *pathctx.ContextSet {
	live := pathctx.Singleton(ctx, it.opts.PathCap)
	done := pathctx.Empty(it.opts.PathCap)
	for i := int64(0); i < n; i++ {
		if it.cancelledNow() || len(live.Live) == 0 {
			break
		}
		idx := i
		bound := live.Map(func(c *pathctx.Context) *pathctx.Context {
			elem, errV := it.elementAt(c, obj, idx, st.Span())
			if errV != nil {
				return c.SetRetVal(*errV)
			}
			return bindName(c, st.Target, elem)
		})
		bound = it.siphonErrors(bound)
		after := it.execBlock(bound, st.Body)

		var next, exited []*pathctx.Context
		for _, c := range after.Live {
			switch c.Flag {
			case pathctx.FlagBrk:
				exited = append(exited, c.WithFlag(pathctx.FlagRun))
			case pathctx.FlagCnt:
				next = append(next, c.WithFlag(pathctx.FlagRun))
			case pathctx.FlagReturned:
				exited = append(exited, c)
			default:
				next = append(next, c)
			}
		}
		done = done.Join(&pathctx.ContextSet{Live: exited, Failed: after.Failed, PathCap: it.opts.PathCap})
		live = &pathctx.ContextSet{Live: next, PathCap: it.opts.PathCap}
	}
	return live.Join(done)
}

// joinLoopArms rejoins break/continue flags after the single symbolic
// pass of an unbounded loop.
func joinLoopArms(cs *pathctx.ContextSet) *pathctx.ContextSet {
	out := make([]*pathctx.Context, 0, len(cs.Live))
	for _, c := range cs.Live {
		if c.Flag == pathctx.FlagBrk || c.Flag == pathctx.FlagCnt {
			c = c.WithFlag(pathctx.FlagRun)
		}
		out = append(out, c)
	}
	return &pathctx.ContextSet{Live: out, Failed: cs.Failed, PathCap: cs.PathCap}
}

// loopLength extracts the iteration bound: the $length attribute (a
// Size's rank lands there too), or the count of numeric indices.
func loopLength(obj value.Object) (symexpr.Num, bool) {
	if lv, ok := obj.Attrs[value.AttrLength]; ok {
		if iv, ok := lv.(value.Int); ok {
			return iv.Sym, true
		}
	}
	if len(obj.Indices) > 0 {
		return symexpr.ConstInt(int64(len(obj.Indices))), true
	}
	return nil, false
}

// pinnedLength reports whether the range cache pins a symbolic length
// to a single small constant.
func pinnedLength(set *constraints.Set, length symexpr.Num) (int64, bool) {
	const unrollCap = 64
	probe := symexpr.HasSingleVarNum(length)
	if probe.Kind != symexpr.OneVar {
		return 0, false
	}
	rng := set.GetSymbolRange(probe.Sym.ID)
	if !rng.HasLow() || !rng.HasHigh() || rng.Low.Cmp(rng.High) != 0 || !rng.Low.IsInt() {
		return 0, false
	}
	n := rng.Low.Num().Int64()
	if n < 0 || n > unrollCap {
		return 0, false
	}
	// The length may be an expression over the pinned symbol; fold it.
	folded := symexpr.NormalizeNum(substNum(length, probe.Sym.ID, symexpr.ConstInt(n)))
	k, ok := symexpr.AsConstInt(folded)
	return k, ok
}

// elementAt resolves iteration element i: positional indices first,
// then a Size's dims; anything else is a type error on that path.
func (it *Interpreter) elementAt(c *pathctx.Context, obj value.Object, i int64, sp *symexpr.Span) (value.Value, *value.Error) {
	if v, ok := obj.Indices[i]; ok {
		return v, nil
	}
	if obj.IsSize() {
		return value.Int{Sym: symexpr.NormalizeNum(symexpr.Index(obj.Shape, symexpr.ConstInt(i)))}, nil
	}
	e := value.Error{
		Severity: value.SeverityError,
		Reason:   value.ReasonTypeMismatch,
		Message:  "iterable has no element at a required position",
		Source:   sp,
	}
	return nil, &e
}

// symbolicElement yields the loop variable for the single symbolic
// pass: a Size indexes its shape, anything else gets a fresh symbol.
func (it *Interpreter) symbolicElement(c *pathctx.Context, obj value.Object, idx symexpr.Num, target string) value.Value {
	if obj.IsSize() {
		return value.Int{Sym: symexpr.Index(obj.Shape, idx)}
	}
	return value.Int{Sym: symexpr.SymbolNum(it.syms.FreshNum("elem$" + target))}
}

func (it *Interpreter) errSet(ctx *pathctx.Context, reason value.Reason, msg string, sp *symexpr.Span) *pathctx.ContextSet {
	return pathctx.Singleton(ctx.SetRetVal(value.Error{
		Severity: value.SeverityError,
		Reason:   reason,
		Message:  msg,
		Source:   sp,
	}), it.opts.PathCap)
}
