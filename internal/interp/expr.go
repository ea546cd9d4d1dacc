package interp

import (
	"sort"

	"github.com/pytea-go/symexec/internal/ir"
	"github.com/pytea-go/symexec/internal/libcall"
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

// evalSet evaluates e over every live context, leaving the value in
// each resulting context's RetVal. Contexts already carrying a fatal
// Error short-circuit untouched.
func (it *Interpreter) evalSet(cs *pathctx.ContextSet, e ir.Expr) *pathctx.ContextSet {
	return cs.FlatMap(func(ctx *pathctx.Context) *pathctx.ContextSet {
		if isFatal(ctx.RetVal) {
			return pathctx.Singleton(ctx, cs.PathCap)
		}
		return it.eval(ctx, e)
	})
}

func (it *Interpreter) eval(ctx *pathctx.Context, e ir.Expr) *pathctx.ContextSet {
	switch ex := e.(type) {
	case *ir.Literal:
		return it.single(ctx.SetRetVal(literalValue(ex)))
	case *ir.Name:
		return it.evalName(ctx, ex)
	case *ir.Attribute:
		return it.evalAttribute(ctx, ex)
	case *ir.Subscript:
		return it.evalSubscript(ctx, ex)
	case *ir.BinOp:
		return it.evalBinOp(ctx, ex)
	case *ir.UnaryOp:
		return it.evalUnaryOp(ctx, ex)
	case *ir.TupleLit:
		return it.evalSequenceLit(ctx, ex.Elems, "tuple")
	case *ir.ListLit:
		return it.evalSequenceLit(ctx, ex.Elems, "list")
	case *ir.DictLit:
		return it.evalDictLit(ctx, ex)
	case *ir.Call:
		return it.evalCall(ctx, ex)
	case *ir.LibCall:
		return it.evalLibCall(ctx, ex)
	default:
		return it.errSet(ctx, value.ReasonUnsupported, "unknown expression node", e.Span())
	}
}

func (it *Interpreter) single(ctx *pathctx.Context) *pathctx.ContextSet {
	out := pathctx.Singleton(ctx, it.opts.PathCap)
	out.KeepValid = !it.opts.ImmediateConstraintCheck
	return out
}

func literalValue(l *ir.Literal) value.Value {
	switch l.Kind {
	case ir.LitNone:
		return value.None{}
	case ir.LitBool:
		return value.Bool{Sym: symexpr.ConstBool(l.Value.(bool))}
	case ir.LitInt:
		return value.Int{Sym: symexpr.ConstInt(l.Value.(int64))}
	case ir.LitFloat:
		return value.Float{Sym: symexpr.ConstFloat(l.Value.(float64))}
	case ir.LitString:
		return value.String{Sym: symexpr.ConstStr(l.Value.(string))}
	default:
		return value.Undef{}
	}
}

func (it *Interpreter) evalName(ctx *pathctx.Context, e *ir.Name) *pathctx.ContextSet {
	addr, ok := ctx.Env.GetId(e.Ident)
	if !ok {
		if addr, ok = ctx.ImportEnv.GetId(e.Ident); !ok {
			return it.errSet(ctx, value.ReasonUnboundName, "name "+e.Ident+" is not defined", e.Span())
		}
	}
	v, ok := ctx.Heap.GetVal(addr)
	if !ok {
		return it.errSet(ctx, value.ReasonHeapMiss, "dangling address for "+e.Ident, e.Span())
	}
	// Objects are referred to by address so identity survives copies.
	if o, isObj := v.(value.Object); isObj {
		return it.single(ctx.SetRetVal(value.Addr{A: o.Addr}))
	}
	return it.single(ctx.SetRetVal(v))
}

// derefObject resolves a value to an Object through the heap.
func derefObject(ctx *pathctx.Context, v value.Value) (value.Object, bool) {
	switch x := v.(type) {
	case value.Object:
		return x, true
	case value.Addr:
		resolved, ok := ctx.Heap.ResolveChain(x.A)
		if !ok {
			return value.Object{}, false
		}
		obj, ok := resolved.(value.Object)
		return obj, ok
	default:
		return value.Object{}, false
	}
}

// deref resolves Addr indirection to the underlying value, leaving
// non-Addr values untouched.
func deref(ctx *pathctx.Context, v value.Value) value.Value {
	if a, ok := v.(value.Addr); ok {
		if resolved, ok := ctx.Heap.ResolveChain(a.A); ok {
			return resolved
		}
	}
	return v
}

func (it *Interpreter) evalAttribute(ctx *pathctx.Context, e *ir.Attribute) *pathctx.ContextSet {
	return it.eval(ctx, e.X).FlatMap(func(c *pathctx.Context) *pathctx.ContextSet {
		if isFatal(c.RetVal) {
			return it.single(c)
		}
		recv := c.RetVal
		obj, ok := derefObject(c, recv)
		if !ok {
			return it.errSet(c, value.ReasonTypeMismatch, "attribute access on a non-object value", e.Span())
		}
		if av, ok := obj.Attrs[e.Attr]; ok {
			if fn, isFunc := deref(c, av).(value.Func); isFunc {
				c2, bound := it.bindMethod(c, fn, recv)
				return it.single(c2.SetRetVal(bound))
			}
			res := av
			// Addr attributes resolving to primitives (module globals)
			// collapse to the value; object targets keep the address.
			if a, isAddr := res.(value.Addr); isAddr {
				if resolved, ok := c.Heap.ResolveChain(a.A); ok {
					if _, isObj := resolved.(value.Object); !isObj {
						res = resolved
					}
				}
			}
			return it.single(c.SetRetVal(res))
		}
		if ga, ok := obj.Attrs[value.AttrGetAttr]; ok {
			return it.callValue(c, ga,
				[]value.Value{recv, value.String{Sym: symexpr.ConstStr(e.Attr)}}, nil, e.Span())
		}
		return it.errSet(c, value.ReasonUnboundName, "object has no attribute "+e.Attr, e.Span())
	})
}

// bindMethod wraps a Func attribute into a heap-allocated bound method
// so a later call receives the receiver as its first argument.
func (it *Interpreter) bindMethod(c *pathctx.Context, fn value.Func, recv value.Value) (*pathctx.Context, value.Value) {
	addr, c2 := c.Malloc()
	obj := value.Object{
		ID:   it.ids.Next(),
		Addr: addr,
		Attrs: map[string]value.Value{
			"$func":       fn,
			"$self":       recv,
			value.AttrMRO: value.String{Sym: symexpr.ConstStr("boundmethod")},
		},
		Indices:   map[int64]value.Value{},
		KeyValues: map[string]value.Value{},
	}
	return c2.SetVal(addr, obj), value.Addr{A: addr}
}

func (it *Interpreter) evalSubscript(ctx *pathctx.Context, e *ir.Subscript) *pathctx.ContextSet {
	return it.eval(ctx, e.X).FlatMap(func(c *pathctx.Context) *pathctx.ContextSet {
		if isFatal(c.RetVal) {
			return it.single(c)
		}
		recv := c.RetVal
		return it.eval(c, e.Index).FlatMap(func(c2 *pathctx.Context) *pathctx.ContextSet {
			if isFatal(c2.RetVal) {
				return it.single(c2)
			}
			return it.subscript(c2, recv, c2.RetVal, e.Span())
		})
	})
}

func (it *Interpreter) subscript(c *pathctx.Context, recv, idx value.Value, sp *symexpr.Span) *pathctx.ContextSet {
	obj, ok := derefObject(c, recv)
	if !ok {
		return it.errSet(c, value.ReasonTypeMismatch, "subscript on a non-object value", sp)
	}
	if gi, ok := obj.Attrs[value.AttrGetItem]; ok {
		return it.callValue(c, gi, []value.Value{recv, idx}, nil, sp)
	}
	switch iv := deref(c, idx).(type) {
	case value.Int:
		k, isConst := symexpr.AsConstInt(iv.Sym)
		if obj.IsSize() {
			rank := symexpr.Rank(obj.Shape)
			n := iv.Sym
			if isConst && k < 0 {
				n = symexpr.NormalizeNum(symexpr.Bop(symexpr.Add, iv.Sym, rank))
			}
			return it.single(c).
				Require([]symexpr.Bool{
					symexpr.Lte(symexpr.ConstInt(0), n),
					symexpr.Lt(n, rank),
				}, "index out of range for size", sp).
				Return(value.Int{Sym: symexpr.NormalizeNum(symexpr.Index(obj.Shape, n))})
		}
		if !isConst {
			return it.errSet(c, value.ReasonUnsupported, "symbolic index into a container", sp)
		}
		if n, ok := concreteLen(obj); ok && k < 0 {
			k += n
		}
		if ev, ok := obj.Indices[k]; ok {
			return it.single(c.SetRetVal(ev))
		}
		return it.errSet(c, value.ReasonTypeMismatch, "index out of range", sp)
	case value.String:
		kc, ok := iv.Sym.(symexpr.StrConst)
		if !ok {
			return it.errSet(c, value.ReasonUnsupported, "symbolic string key", sp)
		}
		if ev, ok := obj.KeyValues[kc.Value]; ok {
			return it.single(c.SetRetVal(ev))
		}
		return it.errSet(c, value.ReasonTypeMismatch, "key "+kc.Value+" not found", sp)
	default:
		return it.errSet(c, value.ReasonTypeMismatch, "unsupported subscript index", sp)
	}
}

func concreteLen(obj value.Object) (int64, bool) {
	lv, ok := obj.Attrs[value.AttrLength]
	if !ok {
		return 0, false
	}
	iv, ok := lv.(value.Int)
	if !ok {
		return 0, false
	}
	return symexpr.AsConstInt(iv.Sym)
}

func (it *Interpreter) evalUnaryOp(ctx *pathctx.Context, e *ir.UnaryOp) *pathctx.ContextSet {
	return it.eval(ctx, e.X).FlatMap(func(c *pathctx.Context) *pathctx.ContextSet {
		if isFatal(c.RetVal) {
			return it.single(c)
		}
		switch e.Op {
		case ir.UnaryNeg:
			switch v := deref(c, c.RetVal).(type) {
			case value.Int:
				return it.single(c.SetRetVal(value.Int{Sym: symexpr.NormalizeNum(symexpr.Uop(symexpr.Neg, v.Sym))}))
			case value.Float:
				return it.single(c.SetRetVal(value.Float{Sym: symexpr.NormalizeNum(symexpr.Uop(symexpr.Neg, v.Sym))}))
			default:
				return it.errSet(c, value.ReasonTypeMismatch, "unary minus on a non-number", e.Span())
			}
		case ir.UnaryNot:
			tr := it.truthiness(c, c.RetVal, e.Span())
			switch {
			case tr.err != nil:
				return it.single(c.SetRetVal(*tr.err))
			case tr.known:
				return it.single(c.SetRetVal(value.Bool{Sym: symexpr.ConstBool(!tr.val)}))
			default:
				return it.single(c.SetRetVal(value.Bool{Sym: symexpr.NormalizeBool(symexpr.Not(tr.sym))}))
			}
		default:
			return it.errSet(c, value.ReasonUnsupported, "unknown unary operator", e.Span())
		}
	})
}

// argCtx threads one context plus the values accumulated so far while a
// parameter list evaluates left to right.
type argCtx struct {
	ctx  *pathctx.Context
	vals []value.Value
}

// evalArgs evaluates exprs in order for one starting context. Contexts
// whose sub-expression produced a fatal Error stop evaluating and are
// returned in done with the Error as their RetVal (the short-circuit
// rule); the rest come back with the collected values.
func (it *Interpreter) evalArgs(ctx *pathctx.Context, exprs []ir.Expr) (done *pathctx.ContextSet, evaled []argCtx) {
	done = pathctx.Empty(it.opts.PathCap)
	pend := []argCtx{{ctx: ctx}}
	for _, e := range exprs {
		var next []argCtx
		for _, ac := range pend {
			sub := it.eval(ac.ctx, e)
			done = done.Join(&pathctx.ContextSet{Failed: sub.Failed, PathCap: it.opts.PathCap})
			for _, c := range sub.Live {
				if isFatal(c.RetVal) {
					done = done.Join(pathctx.Singleton(c, it.opts.PathCap))
					continue
				}
				vals := make([]value.Value, len(ac.vals)+1)
				copy(vals, ac.vals)
				vals[len(ac.vals)] = c.RetVal
				next = append(next, argCtx{ctx: c, vals: vals})
			}
		}
		pend = next
	}
	return done, pend
}

func (it *Interpreter) evalSequenceLit(ctx *pathctx.Context, elems []ir.Expr, class string) *pathctx.ContextSet {
	done, evaled := it.evalArgs(ctx, elems)
	out := done
	for _, ac := range evaled {
		addr, c := ac.ctx.Malloc()
		obj := value.Object{
			ID:   it.ids.Next(),
			Addr: addr,
			Attrs: map[string]value.Value{
				value.AttrMRO:    value.String{Sym: symexpr.ConstStr(class)},
				value.AttrLength: value.Int{Sym: symexpr.ConstInt(int64(len(ac.vals)))},
			},
			Indices:   map[int64]value.Value{},
			KeyValues: map[string]value.Value{},
		}
		for i, v := range ac.vals {
			obj.Indices[int64(i)] = v
		}
		c = c.SetVal(addr, obj)
		out = out.Join(it.single(c.SetRetVal(value.Addr{A: addr})))
	}
	return out
}

func (it *Interpreter) evalDictLit(ctx *pathctx.Context, e *ir.DictLit) *pathctx.ContextSet {
	exprs := make([]ir.Expr, 0, len(e.Keys)*2)
	for i := range e.Keys {
		exprs = append(exprs, e.Keys[i], e.Values[i])
	}
	done, evaled := it.evalArgs(ctx, exprs)
	out := done
	for _, ac := range evaled {
		addr, c := ac.ctx.Malloc()
		obj := value.Object{
			ID:   it.ids.Next(),
			Addr: addr,
			Attrs: map[string]value.Value{
				value.AttrMRO:    value.String{Sym: symexpr.ConstStr("dict")},
				value.AttrLength: value.Int{Sym: symexpr.ConstInt(int64(len(e.Keys)))},
			},
			Indices:   map[int64]value.Value{},
			KeyValues: map[string]value.Value{},
		}
		bad := false
		for i := 0; i+1 < len(ac.vals); i += 2 {
			kv, ok := deref(c, ac.vals[i]).(value.String)
			if !ok {
				bad = true
				break
			}
			kc, ok := kv.Sym.(symexpr.StrConst)
			if !ok {
				bad = true
				break
			}
			obj.KeyValues[kc.Value] = ac.vals[i+1]
		}
		if bad {
			out = out.Join(it.errSet(ac.ctx, value.ReasonUnsupported, "dict literal requires concrete string keys", e.Span()))
			continue
		}
		c = c.SetVal(addr, obj)
		out = out.Join(it.single(c.SetRetVal(value.Addr{A: addr})))
	}
	return out
}

func (it *Interpreter) evalCall(ctx *pathctx.Context, e *ir.Call) *pathctx.ContextSet {
	return it.eval(ctx, e.Fn).FlatMap(func(c *pathctx.Context) *pathctx.ContextSet {
		if isFatal(c.RetVal) {
			return it.single(c)
		}
		fnVal := c.RetVal
		done, evaled := it.evalArgs(c, e.Args)
		out := done

		kwNames := sortedKeys(e.Kwargs)
		for _, ac := range evaled {
			kwDone, kwEvaled := it.evalArgs(ac.ctx, kwargExprs(e.Kwargs, kwNames))
			out = out.Join(kwDone)
			for _, kc := range kwEvaled {
				kwargs := make(map[string]value.Value, len(kwNames))
				for i, n := range kwNames {
					kwargs[n] = kc.vals[i]
				}
				out = out.Join(it.callValue(kc.ctx, fnVal, ac.vals, kwargs, e.Span()))
			}
		}
		return out
	})
}

func kwargExprs(m map[string]ir.Expr, names []string) []ir.Expr {
	out := make([]ir.Expr, len(names))
	for i, n := range names {
		out[i] = m[n]
	}
	return out
}

func (it *Interpreter) evalLibCall(ctx *pathctx.Context, e *ir.LibCall) *pathctx.ContextSet {
	exprs := make([]ir.Expr, len(e.Params))
	for i, p := range e.Params {
		exprs[i] = p.Expr
	}
	done, evaled := it.evalArgs(ctx, exprs)
	out := done
	for _, ac := range evaled {
		params := make([]libcall.Param, len(e.Params))
		for i, p := range e.Params {
			params[i] = libcall.Param{Name: p.Name, Val: ac.vals[i]}
		}
		inv := &libcall.Invocation{Ctx: ac.ctx, Name: e.Type, Params: params, Span: e.Span()}
		out = out.Join(it.reg.Dispatch(it.sess, inv))
	}
	return out
}

// truth is the three-way classification of a value's truthiness.
type truth struct {
	known bool
	val   bool
	sym   symexpr.Bool
	err   *value.Error
}

// truthiness classifies v exactly as Python does for concrete values;
// symbolic payloads yield the Bool expression the path splits on.
func (it *Interpreter) truthiness(c *pathctx.Context, v value.Value, sp *symexpr.Span) truth {
	switch x := deref(c, v).(type) {
	case value.Bool:
		if bc, ok := x.Sym.(symexpr.BoolConst); ok {
			return truth{known: true, val: bc.Value}
		}
		return truth{sym: x.Sym}
	case value.Int:
		if k, ok := symexpr.AsConstInt(x.Sym); ok {
			return truth{known: true, val: k != 0}
		}
		return truth{sym: symexpr.Not(symexpr.Eq(x.Sym, symexpr.ConstInt(0)))}
	case value.Float:
		if nc, ok := symexpr.NormalizeNum(x.Sym).(symexpr.NumConst); ok {
			return truth{known: true, val: nc.Value.Sign() != 0}
		}
		return truth{sym: symexpr.Not(symexpr.Eq(x.Sym, symexpr.ConstInt(0)))}
	case value.String:
		if sc, ok := x.Sym.(symexpr.StrConst); ok {
			return truth{known: true, val: sc.Value != ""}
		}
		return truth{sym: symexpr.Not(symexpr.Eq(x.Sym, symexpr.ConstStr("")))}
	case value.None:
		return truth{known: true, val: false}
	case value.Object:
		if n, ok := concreteLen(x); ok {
			return truth{known: true, val: n != 0}
		}
		if lv, ok := x.Attrs[value.AttrLength]; ok {
			if iv, ok := lv.(value.Int); ok {
				return truth{sym: symexpr.Not(symexpr.Eq(iv.Sym, symexpr.ConstInt(0)))}
			}
		}
		return truth{known: true, val: true}
	case value.Func:
		return truth{known: true, val: true}
	case value.Error:
		e := x
		return truth{err: &e}
	default:
		e := value.Error{
			Severity: value.SeverityError,
			Reason:   value.ReasonTypeMismatch,
			Message:  "value has no truthiness",
			Source:   sp,
		}
		return truth{err: &e}
	}
}

// substNum replaces one symbol with a constant inside a Num tree; used
// to fold a pinned loop bound.
func substNum(n symexpr.Num, symID int64, repl symexpr.Num) symexpr.Num {
	switch v := n.(type) {
	case symexpr.NumSymbol:
		if v.Sym.ID == symID {
			return repl
		}
		return v
	case symexpr.NumBop:
		return symexpr.Bop(v.Op, substNum(v.L, symID, repl), substNum(v.R, symID, repl))
	case symexpr.NumUop:
		return symexpr.Uop(v.Op, substNum(v.X, symID, repl))
	case symexpr.NumMax:
		xs := make([]symexpr.Num, len(v.Xs))
		for i, x := range v.Xs {
			xs[i] = substNum(x, symID, repl)
		}
		return symexpr.Max(xs...)
	case symexpr.NumMin:
		xs := make([]symexpr.Num, len(v.Xs))
		for i, x := range v.Xs {
			xs[i] = substNum(x, symID, repl)
		}
		return symexpr.Min(xs...)
	default:
		return n
	}
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
