package libcall

import (
	"strconv"
	"strings"

	"github.com/pytea-go/symexec/internal/pathctx"
	"github.com/pytea-go/symexec/internal/symexpr"
	"github.com/pytea-go/symexec/internal/value"
)

func registerArgparse(r *Registry) {
	r.Register("argparse.inject_argument", handleInjectArgument)
	r.Register("argparse.set_subcommand", handleSetSubcommand)
}

// handleInjectArgument seeds the value of one CLI-declared Python flag.
// An ArgSource hit is coerced to the declared type; a miss falls back to
// the declared default, and absent both the variable becomes a fresh
// symbol named arg_<flag> of the declared sort.
func handleInjectArgument(s *Session, inv *Invocation) *pathctx.ContextSet {
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
	flag := strings.TrimLeft(nc.Value, "-")

	declType := "str"
	if tv, ok := inv.Value("type"); ok {
		if tsv, ok := tv.(value.String); ok {
			if tc, ok := tsv.Sym.(symexpr.StrConst); ok {
				declType = tc.Value
			}
		}
	}

	if raw, ok := argLookup(s.Args, flag, nc.Value); ok {
		v, err := coerceArg(raw, declType)
		if err != "" {
			return typeErr(s, inv, "--"+flag+": "+err)
		}
		return s.Single(inv.Ctx.SetRetVal(v))
	}

	if dv, ok := inv.Value("default"); ok && !isNone(inv.Ctx, dv) {
		return s.Single(inv.Ctx.SetRetVal(dv))
	}

	symName := "arg_" + flag
	switch declType {
	case "int":
		return s.Single(inv.Ctx.SetRetVal(value.Int{Sym: symexpr.SymbolNum(s.Syms.FreshNum(symName))}))
	case "float":
		return s.Single(inv.Ctx.SetRetVal(value.Float{Sym: symexpr.SymbolNum(s.Syms.FreshNum(symName))}))
	case "bool":
		return s.Single(inv.Ctx.SetRetVal(value.Bool{Sym: symexpr.SymbolBool(s.Syms.FreshBool(symName))}))
	default:
		return s.Single(inv.Ctx.SetRetVal(value.String{Sym: symexpr.SymbolStr(s.Syms.FreshString(symName))}))
	}
}

func argLookup(src ArgSource, flag, raw string) (any, bool) {
	if src == nil {
		return nil, false
	}
	if v, ok := src.Get(flag); ok && v != nil {
		return v, true
	}
	if v, ok := src.Get(raw); ok && v != nil {
		return v, true
	}
	return nil, false
}

// coerceArg converts an ArgSource payload (bool|int|float|string) to a
// Value of the declared argparse type. String payloads re-parse the way
// argparse itself would.
func coerceArg(raw any, declType string) (value.Value, string) {
	switch declType {
	case "int":
		switch x := raw.(type) {
		case int:
			return value.Int{Sym: symexpr.ConstInt(int64(x))}, ""
		case int64:
			return value.Int{Sym: symexpr.ConstInt(x)}, ""
		case float64:
			return value.Int{Sym: symexpr.ConstInt(int64(x))}, ""
		case string:
			n, err := strconv.ParseInt(x, 10, 64)
			if err != nil {
				return nil, "invalid int value " + strconv.Quote(x)
			}
			return value.Int{Sym: symexpr.ConstInt(n)}, ""
		}
	case "float":
		switch x := raw.(type) {
		case int:
			return value.Float{Sym: symexpr.ConstInt(int64(x))}, ""
		case int64:
			return value.Float{Sym: symexpr.ConstInt(x)}, ""
		case float64:
			return value.Float{Sym: symexpr.ConstFloat(x)}, ""
		case string:
			f, err := strconv.ParseFloat(x, 64)
			if err != nil {
				return nil, "invalid float value " + strconv.Quote(x)
			}
			return value.Float{Sym: symexpr.ConstFloat(f)}, ""
		}
	case "bool":
		switch x := raw.(type) {
		case bool:
			return value.Bool{Sym: symexpr.ConstBool(x)}, ""
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return nil, "invalid bool value " + strconv.Quote(x)
			}
			return value.Bool{Sym: symexpr.ConstBool(b)}, ""
		}
	default:
		switch x := raw.(type) {
		case string:
			return value.String{Sym: symexpr.ConstStr(x)}, ""
		case bool:
			return value.Bool{Sym: symexpr.ConstBool(x)}, ""
		case int:
			return value.String{Sym: symexpr.ConstStr(strconv.Itoa(x))}, ""
		case float64:
			return value.String{Sym: symexpr.ConstStr(strconv.FormatFloat(x, 'g', -1, 64))}, ""
		}
	}
	return nil, "unsupported argument payload"
}

// handleSetSubcommand returns the configured python subcommand string.
func handleSetSubcommand(s *Session, inv *Invocation) *pathctx.ContextSet {
	sub := ""
	if s.Opts != nil {
		sub = s.Opts.PythonSubcommand
	}
	return s.Single(inv.Ctx.SetRetVal(value.String{Sym: symexpr.ConstStr(sub)}))
}
