package interp

import (
	"sort"
	"strconv"

	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

// callValue applies any callable value: a user Func, a native builtin
// (a Func with a nil body), or a bound method object. This is also the
// CallFn the libcall session routes through.
func (it *Interpreter) callValue(ctx *pathctx.Context, fnVal value.Value, args []value.Value, kwargs map[string]value.Value, sp *symexpr.Span) *pathctx.ContextSet {
	fn := deref(ctx, fnVal)

	if obj, ok := fn.(value.Object); ok {
		if f, bound := obj.Attrs["$func"]; bound {
			self, hasSelf := obj.Attrs["$self"]
			if hasSelf {
				args = append([]value.Value{self}, args...)
			}
			return it.callValue(ctx, f, args, kwargs, sp)
		}
		// A class-like object called as a constructor: clone it into a
		// fresh instance and run __init__ when present.
		return it.construct(ctx, obj, args, kwargs, sp)
	}

	f, ok := fn.(value.Func)
	if !ok {
		return it.errSet(ctx, value.ReasonTypeMismatch, "value is not callable", sp)
	}
	if f.Body == nil {
		return it.callNative(ctx, f, args, sp)
	}
	return it.callFunc(ctx, f, args, kwargs, sp)
}

// callFunc binds arguments per the calling convention: defaults first,
// then positionals, overflow positionals into a varargs tuple, unknown
// keywords into a kwargs dict; then runs the body. A body that falls
// off the end produces None.
func (it *Interpreter) callFunc(ctx *pathctx.Context, f value.Func, args []value.Value, kwargs map[string]value.Value, sp *symexpr.Span) *pathctx.ContextSet {
	callerEnv := ctx.Env
	env := f.CapturedEnv
	c := ctx

	bind := func(name string, v value.Value) {
		a, c2 := c.AllocNew(v)
		c = c2
		env = env.SetId(name, a)
	}

	// Callee cell so the body can refer to itself by name.
	if f.Name != "" {
		bind(f.Name, f)
	}

	params := map[string]bool{}
	for _, p := range f.Params {
		params[p] = true
	}

	// Defaults first, sorted for deterministic heap layout.
	defNames := make([]string, 0, len(f.Defaults))
	for n := range f.Defaults {
		defNames = append(defNames, n)
	}
	sort.Strings(defNames)
	boundTo := map[string]bool{}
	for _, n := range defNames {
		if params[n] {
			bind(n, f.Defaults[n])
			boundTo[n] = true
		}
	}

	nPos := len(f.Params) - f.KeyOnlyCount
	if nPos < 0 {
		nPos = 0
	}
	var overflow []value.Value
	for i, a := range args {
		if i < nPos {
			bind(f.Params[i], a)
			boundTo[f.Params[i]] = true
			continue
		}
		overflow = append(overflow, a)
	}
	if len(overflow) > 0 && f.VarargsName == "" {
		return it.errSet(ctx, value.ReasonTypeMismatch,
			f.Name+"() takes "+strconv.Itoa(nPos)+" positional arguments but more were given", sp)
	}
	if f.VarargsName != "" {
		var tupleVal value.Value
		c, tupleVal = it.allocSequence(c, overflow, "tuple")
		env = env.SetId(f.VarargsName, tupleVal.(value.Addr).A)
	}

	extra := map[string]value.Value{}
	for _, k := range sortedKeys(kwargs) {
		v := kwargs[k]
		if params[k] {
			bind(k, v)
			boundTo[k] = true
			continue
		}
		extra[k] = v
	}
	if len(extra) > 0 && f.KwargsName == "" {
		return it.errSet(ctx, value.ReasonTypeMismatch,
			f.Name+"() got an unexpected keyword argument", sp)
	}
	if f.KwargsName != "" {
		var dictVal value.Value
		c, dictVal = it.allocDict(c, extra)
		env = env.SetId(f.KwargsName, dictVal.(value.Addr).A)
	}

	// Parameters that received neither argument nor default hold Undef;
	// touching one later reports the type error at use site.
	for _, p := range f.Params {
		if !boundTo[p] {
			bind(p, value.Undef{})
		}
	}

	entry := c.WithEnv(env).SetRetVal(value.None{})
	out := it.execBlock(pathctx.Singleton(entry, it.opts.PathCap), f.Body)
	return out.Map(func(rc *pathctx.Context) *pathctx.Context {
		v := value.Value(value.None{})
		if rc.Flag == pathctx.FlagReturned {
			v = rc.RetVal
		}
		return rc.WithEnv(callerEnv).WithFlag(pathctx.FlagRun).SetRetVal(v)
	})
}

// construct models calling a class object: a shallow instance clone
// with $super pointing at the class, then __init__ when present.
func (it *Interpreter) construct(ctx *pathctx.Context, class value.Object, args []value.Value, kwargs map[string]value.Value, sp *symexpr.Span) *pathctx.ContextSet {
	addr, c := ctx.Malloc()
	inst := class.Clone()
	inst.ID = it.ids.Next()
	inst.Addr = addr
	inst.Attrs["$super"] = value.Addr{A: class.Addr}
	c = c.SetVal(addr, inst)
	self := value.Addr{A: addr}

	if init, ok := inst.Attrs["__init__"]; ok {
		return it.callValue(c, init, append([]value.Value{self}, args...), kwargs, sp).
			Return(self)
	}
	return it.single(c.SetRetVal(self))
}

func (it *Interpreter) allocSequence(c *pathctx.Context, elems []value.Value, class string) (*pathctx.Context, value.Value) {
	addr, c2 := c.Malloc()
	obj := value.Object{
		ID:   it.ids.Next(),
		Addr: addr,
		Attrs: map[string]value.Value{
			value.AttrMRO:    value.String{Sym: symexpr.ConstStr(class)},
			value.AttrLength: value.Int{Sym: symexpr.ConstInt(int64(len(elems)))},
		},
		Indices:   map[int64]value.Value{},
		KeyValues: map[string]value.Value{},
	}
	for i, e := range elems {
		obj.Indices[int64(i)] = e
	}
	return c2.SetVal(addr, obj), value.Addr{A: addr}
}

func (it *Interpreter) allocDict(c *pathctx.Context, kv map[string]value.Value) (*pathctx.Context, value.Value) {
	addr, c2 := c.Malloc()
	obj := value.Object{
		ID:   it.ids.Next(),
		Addr: addr,
		Attrs: map[string]value.Value{
			value.AttrMRO:    value.String{Sym: symexpr.ConstStr("dict")},
			value.AttrLength: value.Int{Sym: symexpr.ConstInt(int64(len(kv)))},
		},
		Indices:   map[int64]value.Value{},
		KeyValues: map[string]value.Value{},
	}
	for k, v := range kv {
		obj.KeyValues[k] = v
	}
	return c2.SetVal(addr, obj), value.Addr{A: addr}
}
