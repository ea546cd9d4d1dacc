package interp

import (
	"strings"

	"github.com/pytea-go/symexec/internal/env"
	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

// builtinAddrs pins each native builtin to a reserved negative address,
// immune to offsetting, so imported modules resolve them against their
// own prelude rather than the importer's heap.
var builtinAddrs = map[string]env.Address{
	"print": -1,
	"len":   -2,
	"range": -3,
	"abs":   -4,
	"max":   -5,
	"min":   -6,
	"int":   -7,
	"float": -8,
	"str":   -9,
	"bool":  -10,
}

// seedBuiltins installs the native builtins; their Func bodies are nil,
// which callValue routes to callNative.
func (it *Interpreter) seedBuiltins(ctx *pathctx.Context) *pathctx.Context {
	e := ctx.Env
	h := ctx.Heap
	for name, addr := range builtinAddrs {
		h = h.Install(addr, value.Func{ID: it.ids.Next(), Name: name})
		e = e.SetId(name, addr)
	}
	return ctx.WithEnv(e).WithHeap(h)
}

func (it *Interpreter) callNative(ctx *pathctx.Context, f value.Func, args []value.Value, sp *symexpr.Span) *pathctx.ContextSet {
	switch f.Name {
	case "print":
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = deref(ctx, a).String()
		}
		return it.single(ctx.AddDiag(value.Error{
			Severity: value.SeverityLog,
			Reason:   value.ReasonUserRaise,
			Message:  strings.Join(parts, " "),
			Source:   sp,
		}).SetRetVal(value.None{}))
	case "len":
		return it.nativeLen(ctx, args, sp)
	case "range":
		return it.nativeRange(ctx, args, sp)
	case "abs":
		if len(args) != 1 {
			return it.errSet(ctx, value.ReasonTypeMismatch, "abs() takes exactly one argument", sp)
		}
		switch v := deref(ctx, args[0]).(type) {
		case value.Int:
			return it.single(ctx.SetRetVal(value.Int{Sym: symexpr.NormalizeNum(symexpr.Uop(symexpr.Abs, v.Sym))}))
		case value.Float:
			return it.single(ctx.SetRetVal(value.Float{Sym: symexpr.NormalizeNum(symexpr.Uop(symexpr.Abs, v.Sym))}))
		default:
			return it.errSet(ctx, value.ReasonTypeMismatch, "abs() argument must be a number", sp)
		}
	case "max", "min":
		return it.nativeMaxMin(ctx, f.Name == "max", args, sp)
	case "int", "float", "str", "bool":
		return it.nativeConvert(ctx, f.Name, args, sp)
	default:
		return it.errSet(ctx, value.ReasonUnsupported, "unknown builtin "+f.Name, sp)
	}
}

func (it *Interpreter) nativeLen(ctx *pathctx.Context, args []value.Value, sp *symexpr.Span) *pathctx.ContextSet {
	if len(args) != 1 {
		return it.errSet(ctx, value.ReasonTypeMismatch, "len() takes exactly one argument", sp)
	}
	switch v := deref(ctx, args[0]).(type) {
	case value.Object:
		if lv, ok := v.Attrs[value.AttrLength]; ok {
			return it.single(ctx.SetRetVal(lv))
		}
		if m, ok := v.Attrs[value.AttrLen]; ok {
			return it.callValue(ctx, m, []value.Value{args[0]}, nil, sp)
		}
		return it.errSet(ctx, value.ReasonTypeMismatch, "object has no len()", sp)
	case value.String:
		if c, ok := v.Sym.(symexpr.StrConst); ok {
			return it.single(ctx.SetRetVal(value.Int{Sym: symexpr.ConstInt(int64(len(c.Value)))}))
		}
		return it.single(ctx.SetRetVal(value.Int{Sym: symexpr.SymbolNum(it.syms.FreshNum("strlen"))}))
	default:
		return it.errSet(ctx, value.ReasonTypeMismatch, "object has no len()", sp)
	}
}

// nativeRange materialises range(n) (or range(lo, hi)) as a list-like
// object. A concrete bound fills the indices; a symbolic one leaves
// only $length so the loop machinery takes the bounded-symbolic path.
func (it *Interpreter) nativeRange(ctx *pathctx.Context, args []value.Value, sp *symexpr.Span) *pathctx.ContextSet {
	var lo, hi symexpr.Num
	switch len(args) {
	case 1:
		lo = symexpr.ConstInt(0)
		n, ok := numPayloadOf(ctx, args[0])
		if !ok {
			return it.errSet(ctx, value.ReasonTypeMismatch, "range() bound must be an integer", sp)
		}
		hi = n
	case 2:
		l, lok := numPayloadOf(ctx, args[0])
		h, hok := numPayloadOf(ctx, args[1])
		if !lok || !hok {
			return it.errSet(ctx, value.ReasonTypeMismatch, "range() bounds must be integers", sp)
		}
		lo, hi = l, h
	default:
		return it.errSet(ctx, value.ReasonTypeMismatch, "range() takes one or two arguments", sp)
	}

	length := symexpr.NormalizeNum(symexpr.Max(symexpr.ConstInt(0), symexpr.Bop(symexpr.Sub, hi, lo)))
	addr, c := ctx.Malloc()
	obj := value.Object{
		ID:   it.ids.Next(),
		Addr: addr,
		Attrs: map[string]value.Value{
			value.AttrMRO:    value.String{Sym: symexpr.ConstStr("range")},
			value.AttrLength: value.Int{Sym: length},
		},
		Indices:   map[int64]value.Value{},
		KeyValues: map[string]value.Value{},
	}
	if n, ok := symexpr.AsConstInt(length); ok {
		loC, _ := symexpr.AsConstInt(lo)
		for i := int64(0); i < n; i++ {
			obj.Indices[i] = value.Int{Sym: symexpr.ConstInt(loC + i)}
		}
	}
	c = c.SetVal(addr, obj)
	return it.single(c.SetRetVal(value.Addr{A: addr}))
}

func (it *Interpreter) nativeMaxMin(ctx *pathctx.Context, isMax bool, args []value.Value, sp *symexpr.Span) *pathctx.ContextSet {
	if len(args) == 0 {
		return it.errSet(ctx, value.ReasonTypeMismatch, "max()/min() need at least one argument", sp)
	}
	xs := make([]symexpr.Num, 0, len(args))
	isFloat := false
	for _, a := range args {
		switch v := deref(ctx, a).(type) {
		case value.Int:
			xs = append(xs, v.Sym)
		case value.Float:
			xs = append(xs, v.Sym)
			isFloat = true
		default:
			return it.errSet(ctx, value.ReasonTypeMismatch, "max()/min() arguments must be numbers", sp)
		}
	}
	var out symexpr.Num
	if isMax {
		out = symexpr.NormalizeNum(symexpr.Max(xs...))
	} else {
		out = symexpr.NormalizeNum(symexpr.Min(xs...))
	}
	if isFloat {
		return it.single(ctx.SetRetVal(value.Float{Sym: out}))
	}
	return it.single(ctx.SetRetVal(value.Int{Sym: out}))
}

func (it *Interpreter) nativeConvert(ctx *pathctx.Context, target string, args []value.Value, sp *symexpr.Span) *pathctx.ContextSet {
	if len(args) != 1 {
		return it.errSet(ctx, value.ReasonTypeMismatch, target+"() takes exactly one argument", sp)
	}
	v := deref(ctx, args[0])
	switch target {
	case "int":
		if n, ok := numPayloadOf(ctx, args[0]); ok {
			return it.single(ctx.SetRetVal(value.Int{Sym: symexpr.NormalizeNum(symexpr.Uop(symexpr.Floor, n))}))
		}
	case "float":
		if n, ok := numPayloadOf(ctx, args[0]); ok {
			return it.single(ctx.SetRetVal(value.Float{Sym: n}))
		}
	case "bool":
		tr := it.truthiness(ctx, args[0], sp)
		switch {
		case tr.err != nil:
			return it.single(ctx.SetRetVal(*tr.err))
		case tr.known:
			return it.single(ctx.SetRetVal(value.Bool{Sym: symexpr.ConstBool(tr.val)}))
		default:
			return it.single(ctx.SetRetVal(value.Bool{Sym: tr.sym}))
		}
	case "str":
		return it.single(ctx.SetRetVal(value.String{Sym: symexpr.ConstStr(v.String())}))
	}
	return it.errSet(ctx, value.ReasonTypeMismatch, target+"() argument is unsupported", sp)
}

func numPayloadOf(ctx *pathctx.Context, v value.Value) (symexpr.Num, bool) {
	switch x := deref(ctx, v).(type) {
	case value.Int:
		return x.Sym, true
	case value.Float:
		return x.Sym, true
	case value.Bool:
		if c, ok := x.Sym.(symexpr.BoolConst); ok {
			if c.Value {
				return symexpr.ConstInt(1), true
			}
			return symexpr.ConstInt(0), true
		}
	}
	return nil, false
}
