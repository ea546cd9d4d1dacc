package libcall

import (
	"fmt"

	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

// registerStructural installs the handlers that implement Python
// semantics the lowered language cannot express directly: imports,
// list/dict construction, attribute fallback, raise, and the analyser's
// own escape hatches (DEBUG, explicit).
func registerStructural(r *Registry) {
	r.Register("import", handleImport)
	r.Register("objectClass", handleObjectClass)
	r.Register("genList", handleGenList)
	r.Register("genDict", handleGenDict)
	r.Register("getAttr", handleGetAttr)
	r.Register("super", handleSuper)
	r.Register("setDefault", handleSetDefault)
	r.Register("callKV", handleCallKV)
	r.Register("exportGlobal", handleExportGlobal)
	r.Register("raise", handleRaise)
	r.Register("DEBUG", handleDebug)
	r.Register("explicit", handleExplicit)
}

func handleImport(s *Session, inv *Invocation) *pathctx.ContextSet {
	v, ok := inv.Value("qualPath")
	if !ok {
		return typeErr(s, inv, "missing qualPath")
	}
	sv, ok := v.(value.String)
	if !ok {
		return typeErr(s, inv, "qualPath must be a string")
	}
	path, ok := sv.Sym.(symexpr.StrConst)
	if !ok {
		return typeErr(s, inv, "qualPath must be a concrete string")
	}
	if s.Import == nil {
		return unsupported(s, inv, "no module loader wired for import of "+path.Value)
	}
	return s.Import(inv.Ctx, path.Value, inv.Span)
}

// handleObjectClass allocates a fresh class-like Object carrying its
// name; instances produced by calling it are modelled by the interpreter.
func handleObjectClass(s *Session, inv *Invocation) *pathctx.ContextSet {
	name := "object"
	if v, ok := inv.Value("name"); ok {
		if sv, ok := v.(value.String); ok {
			if c, ok := sv.Sym.(symexpr.StrConst); ok {
				name = c.Value
			}
		}
	}
	addr, ctx := inv.Ctx.Malloc()
	obj := value.Object{
		ID:   s.IDs.Next(),
		Addr: addr,
		Attrs: map[string]value.Value{
			value.AttrMRO: value.String{Sym: symexpr.ConstStr(name)},
		},
		Indices:   map[int64]value.Value{},
		KeyValues: map[string]value.Value{},
	}
	return s.Single(ctx.SetVal(addr, obj).SetRetVal(value.Addr{A: addr}))
}

func handleGenList(s *Session, inv *Invocation) *pathctx.ContextSet {
	elems := make([]value.Value, len(inv.Params))
	for i, p := range inv.Params {
		elems[i] = p.Val
	}
	ctx, v := newSequence(s, inv.Ctx, elems, "list")
	return s.Single(ctx.SetRetVal(v))
}

// handleGenDict consumes params in (key, value) pairs. String-constant
// keys land in keyValues; anything else degrades to a warning since a
// symbolic key cannot address a map slot.
func handleGenDict(s *Session, inv *Invocation) *pathctx.ContextSet {
	if len(inv.Params)%2 != 0 {
		return typeErr(s, inv, "genDict requires an even number of params")
	}
	addr, ctx := inv.Ctx.Malloc()
	obj := value.Object{
		ID:   s.IDs.Next(),
		Addr: addr,
		Attrs: map[string]value.Value{
			value.AttrMRO:    value.String{Sym: symexpr.ConstStr("dict")},
			value.AttrLength: value.Int{Sym: symexpr.ConstInt(int64(len(inv.Params) / 2))},
		},
		Indices:   map[int64]value.Value{},
		KeyValues: map[string]value.Value{},
	}
	for i := 0; i+1 < len(inv.Params); i += 2 {
		kv := inv.Params[i].Val
		sv, ok := kv.(value.String)
		if !ok {
			return unsupported(s, inv, "genDict: non-string key")
		}
		kc, ok := sv.Sym.(symexpr.StrConst)
		if !ok {
			return unsupported(s, inv, "genDict: symbolic string key")
		}
		obj.KeyValues[kc.Value] = inv.Params[i+1].Val
	}
	return s.Single(ctx.SetVal(addr, obj).SetRetVal(value.Addr{A: addr}))
}

// handleGetAttr resolves obj.name the same way the interpreter's
// Attribute expression does: attrs first, then a __getattr__ call.
func handleGetAttr(s *Session, inv *Invocation) *pathctx.ContextSet {
	ov, ok := inv.Value("obj")
	if !ok {
		return typeErr(s, inv, "missing obj")
	}
	nv, ok := inv.Value("name")
	if !ok {
		return typeErr(s, inv, "missing name")
	}
	sv, ok := nv.(value.String)
	if !ok {
		return typeErr(s, inv, "name must be a string")
	}
	nc, ok := sv.Sym.(symexpr.StrConst)
	if !ok {
		return typeErr(s, inv, "name must be a concrete string")
	}
	obj, ok := derefObject(inv.Ctx, ov)
	if !ok {
		return typeErr(s, inv, "obj is not an object")
	}
	if av, ok := obj.Attrs[nc.Value]; ok {
		return s.Single(inv.Ctx.SetRetVal(av))
	}
	if ga, ok := obj.Attrs[value.AttrGetAttr]; ok && s.Call != nil {
		return s.Call(inv.Ctx, ga, []value.Value{ov, nv}, nil, inv.Span)
	}
	return s.Single(inv.Ctx.SetRetVal(errVal(value.ReasonUnboundName,
		fmt.Sprintf("object has no attribute %q", nc.Value), inv.Span)))
}

// handleSuper returns the receiver's $super binding, installed by the
// class-construction lowering; absent a recorded parent the path keeps
// going with a warning.
func handleSuper(s *Session, inv *Invocation) *pathctx.ContextSet {
	ov, ok := inv.Value("obj")
	if !ok {
		return typeErr(s, inv, "missing obj")
	}
	obj, ok := derefObject(inv.Ctx, ov)
	if !ok {
		return typeErr(s, inv, "obj is not an object")
	}
	if sup, ok := obj.Attrs["$super"]; ok {
		return s.Single(inv.Ctx.SetRetVal(sup))
	}
	return unsupported(s, inv, "super: receiver has no recorded parent class")
}

// handleSetDefault is dict.setdefault: store value under key only when
// the key is absent, returning the value now present.
func handleSetDefault(s *Session, inv *Invocation) *pathctx.ContextSet {
	ov, _ := inv.Value("obj")
	kv, _ := inv.Value("key")
	dv, _ := inv.Value("value")
	obj, ok := derefObject(inv.Ctx, ov)
	if !ok {
		return typeErr(s, inv, "obj is not an object")
	}
	sv, ok := kv.(value.String)
	if !ok {
		return typeErr(s, inv, "key must be a string")
	}
	kc, ok := sv.Sym.(symexpr.StrConst)
	if !ok {
		return typeErr(s, inv, "key must be a concrete string")
	}
	if existing, ok := obj.KeyValues[kc.Value]; ok {
		return s.Single(inv.Ctx.SetRetVal(existing))
	}
	updated := obj.Clone()
	updated.KeyValues[kc.Value] = dv
	ctx := inv.Ctx.SetVal(obj.Addr, updated)
	return s.Single(ctx.SetRetVal(dv))
}

// handleCallKV invokes a bound callable with a tuple of positionals and
// a dict of keywords, routing through the interpreter's CallFn.
func handleCallKV(s *Session, inv *Invocation) *pathctx.ContextSet {
	fv, ok := inv.Value("func")
	if !ok {
		return typeErr(s, inv, "missing func")
	}
	var args []value.Value
	if av, ok := inv.Value("args"); ok && !isNone(inv.Ctx, av) {
		obj, ok := derefObject(inv.Ctx, av)
		if !ok {
			return typeErr(s, inv, "args must be a tuple")
		}
		elems, ok := sequenceElems(obj)
		if !ok {
			return typeErr(s, inv, "args tuple has no concrete length")
		}
		args = elems
	}
	kwargs := map[string]value.Value{}
	if kv, ok := inv.Value("kwargs"); ok && !isNone(inv.Ctx, kv) {
		obj, ok := derefObject(inv.Ctx, kv)
		if !ok {
			return typeErr(s, inv, "kwargs must be a dict")
		}
		for k, v := range obj.KeyValues {
			kwargs[k] = v
		}
	}
	if s.Call == nil {
		return unsupported(s, inv, "callKV: no call entry wired")
	}
	fn := fv
	if obj, ok := derefObject(inv.Ctx, fv); ok {
		if f, ok2 := obj.Attrs["$func"]; ok2 {
			fn = f
		}
	}
	return s.Call(inv.Ctx, fn, args, kwargs, inv.Span)
}

// handleExportGlobal records a top-level binding in the session's debug
// export log and mirrors it into the context's import environment so a
// parent module's wildcard import can re-expose it.
func handleExportGlobal(s *Session, inv *Invocation) *pathctx.ContextSet {
	nv, ok := inv.Value("name")
	if !ok {
		return typeErr(s, inv, "missing name")
	}
	sv, ok := nv.(value.String)
	if !ok {
		return typeErr(s, inv, "name must be a string")
	}
	nc, ok := sv.Sym.(symexpr.StrConst)
	if !ok {
		return typeErr(s, inv, "name must be a concrete string")
	}
	s.ExportLog = append(s.ExportLog, nc.Value)
	ctx := inv.Ctx
	if addr, bound := ctx.Env.GetId(nc.Value); bound {
		ctx = ctx.WithImportEnv(ctx.ImportEnv.SetId(nc.Value, addr))
	}
	return s.Single(ctx.SetRetVal(value.None{}))
}

// handleRaise models a Python raise by constructing an Error value and
// leaving it as the RetVal; propagation uses the same short-circuit rule
// as every other Error (no host-language exceptions).
func handleRaise(s *Session, inv *Invocation) *pathctx.ContextSet {
	msg := "exception raised"
	if v, ok := inv.Value("value"); ok {
		if sv, ok := v.(value.String); ok {
			if c, ok := sv.Sym.(symexpr.StrConst); ok {
				msg = c.Value
			}
		} else if obj, ok := derefObject(inv.Ctx, v); ok {
			if mv, ok := obj.Attrs["message"]; ok {
				if sv, ok := mv.(value.String); ok {
					if c, ok := sv.Sym.(symexpr.StrConst); ok {
						msg = c.Value
					}
				}
			}
		}
	}
	return s.Single(inv.Ctx.SetRetVal(errVal(value.ReasonUserRaise, msg, inv.Span)))
}

// handleDebug emits a log-severity trace of its argument.
func handleDebug(s *Session, inv *Invocation) *pathctx.ContextSet {
	msg := ""
	if v, ok := inv.Value("value"); ok {
		msg = v.String()
	}
	ctx := inv.Ctx.AddDiag(value.Error{
		Severity: value.SeverityLog,
		Reason:   value.ReasonUserRaise,
		Message:  "DEBUG: " + msg,
		Source:   inv.Span,
	})
	return s.Single(ctx.SetRetVal(value.None{}))
}

// handleExplicit adds a user-level obligation from pylib code: the cond
// parameter must be a Bool value; msg is the human-readable diagnostic.
func handleExplicit(s *Session, inv *Invocation) *pathctx.ContextSet {
	cv, ok := inv.Value("cond")
	if !ok {
		return typeErr(s, inv, "missing cond")
	}
	bv, ok := cv.(value.Bool)
	if !ok {
		return typeErr(s, inv, "cond must be a bool")
	}
	msg := "explicit constraint violated"
	if mv, ok := inv.Value("msg"); ok {
		if sv, ok := mv.(value.String); ok {
			if c, ok := sv.Sym.(symexpr.StrConst); ok {
				msg = c.Value
			}
		}
	}
	return s.Single(inv.Ctx).RequireOne(bv.Sym, msg, inv.Span).Return(value.None{})
}
