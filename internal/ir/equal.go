package ir

// Equal reports structural equality of two IR nodes, ignoring spans.
// It backs the round-trip law: print then re-parse must yield an Equal
// tree.
func Equal(a, b Node) bool {
	switch av := a.(type) {
	case *Block:
		bv, ok := b.(*Block)
		if !ok || len(av.Stmts) != len(bv.Stmts) {
			return false
		}
		for i := range av.Stmts {
			if !Equal(av.Stmts[i], bv.Stmts[i]) {
				return false
			}
		}
		return true
	case *If:
		bv, ok := b.(*If)
		if !ok || !Equal(av.Cond, bv.Cond) || !Equal(av.Then, bv.Then) {
			return false
		}
		if (av.Else == nil) != (bv.Else == nil) {
			return false
		}
		return av.Else == nil || Equal(av.Else, bv.Else)
	case *ForIn:
		bv, ok := b.(*ForIn)
		return ok && av.Target == bv.Target && Equal(av.Iter, bv.Iter) && Equal(av.Body, bv.Body)
	case *Let:
		bv, ok := b.(*Let)
		if !ok || av.Name != bv.Name {
			return false
		}
		if (av.Value == nil) != (bv.Value == nil) {
			return false
		}
		return av.Value == nil || Equal(av.Value, bv.Value)
	case *FunDef:
		bv, ok := b.(*FunDef)
		if !ok || av.Name != bv.Name || av.VarargsName != bv.VarargsName ||
			av.KwargsName != bv.KwargsName || av.KeyOnlyCount != bv.KeyOnlyCount ||
			len(av.Params) != len(bv.Params) || len(av.Defaults) != len(bv.Defaults) {
			return false
		}
		for i := range av.Params {
			if av.Params[i] != bv.Params[i] {
				return false
			}
		}
		for n, e := range av.Defaults {
			other, ok := bv.Defaults[n]
			if !ok || !Equal(e, other) {
				return false
			}
		}
		return Equal(av.Body, bv.Body)
	case *ExprStmt:
		bv, ok := b.(*ExprStmt)
		return ok && Equal(av.X, bv.X)
	case *Return:
		bv, ok := b.(*Return)
		if !ok || (av.X == nil) != (bv.X == nil) {
			return false
		}
		return av.X == nil || Equal(av.X, bv.X)
	case *Break:
		_, ok := b.(*Break)
		return ok
	case *Continue:
		_, ok := b.(*Continue)
		return ok
	case *Assert:
		bv, ok := b.(*Assert)
		return ok && av.Msg == bv.Msg && Equal(av.Test, bv.Test)

	case *Literal:
		bv, ok := b.(*Literal)
		return ok && av.Kind == bv.Kind && av.Value == bv.Value
	case *Name:
		bv, ok := b.(*Name)
		return ok && av.Ident == bv.Ident
	case *Attribute:
		bv, ok := b.(*Attribute)
		return ok && av.Attr == bv.Attr && Equal(av.X, bv.X)
	case *Subscript:
		bv, ok := b.(*Subscript)
		return ok && Equal(av.X, bv.X) && Equal(av.Index, bv.Index)
	case *BinOp:
		bv, ok := b.(*BinOp)
		return ok && av.Op == bv.Op && Equal(av.L, bv.L) && Equal(av.R, bv.R)
	case *UnaryOp:
		bv, ok := b.(*UnaryOp)
		return ok && av.Op == bv.Op && Equal(av.X, bv.X)
	case *TupleLit:
		bv, ok := b.(*TupleLit)
		return ok && equalExprs(av.Elems, bv.Elems)
	case *ListLit:
		bv, ok := b.(*ListLit)
		return ok && equalExprs(av.Elems, bv.Elems)
	case *DictLit:
		bv, ok := b.(*DictLit)
		return ok && equalExprs(av.Keys, bv.Keys) && equalExprs(av.Values, bv.Values)
	case *Call:
		bv, ok := b.(*Call)
		if !ok || !Equal(av.Fn, bv.Fn) || !equalExprs(av.Args, bv.Args) || len(av.Kwargs) != len(bv.Kwargs) {
			return false
		}
		for n, e := range av.Kwargs {
			other, ok := bv.Kwargs[n]
			if !ok || !Equal(e, other) {
				return false
			}
		}
		return true
	case *LibCall:
		bv, ok := b.(*LibCall)
		if !ok || av.Type != bv.Type || len(av.Params) != len(bv.Params) {
			return false
		}
		for i := range av.Params {
			if av.Params[i].Name != bv.Params[i].Name || !Equal(av.Params[i].Expr, bv.Params[i].Expr) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func equalExprs(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
