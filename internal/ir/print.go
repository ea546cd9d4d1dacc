package ir

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Print renders a tree in the canonical s-expression form the stub
// parser reads back. Printing then re-parsing yields a structurally
// equal tree (spans aside), which is the round-trip law the report's
// extractIR output relies on.
func Print(n Node) string {
	var b strings.Builder
	printNode(&b, n, 0)
	return b.String()
}

func indent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("  ")
	}
}

func printNode(b *strings.Builder, n Node, depth int) {
	switch v := n.(type) {
	case *Block:
		b.WriteString("(block")
		for _, s := range v.Stmts {
			b.WriteString("\n")
			indent(b, depth+1)
			printNode(b, s, depth+1)
		}
		b.WriteString(")")
	case *If:
		b.WriteString("(if ")
		printNode(b, v.Cond, depth)
		b.WriteString("\n")
		indent(b, depth+1)
		printNode(b, v.Then, depth+1)
		if v.Else != nil {
			b.WriteString("\n")
			indent(b, depth+1)
			printNode(b, v.Else, depth+1)
		}
		b.WriteString(")")
	case *ForIn:
		fmt.Fprintf(b, "(for %s ", v.Target)
		printNode(b, v.Iter, depth)
		b.WriteString("\n")
		indent(b, depth+1)
		printNode(b, v.Body, depth+1)
		b.WriteString(")")
	case *Let:
		fmt.Fprintf(b, "(let %s", v.Name)
		if v.Value != nil {
			b.WriteString(" ")
			printNode(b, v.Value, depth)
		}
		b.WriteString(")")
	case *FunDef:
		fmt.Fprintf(b, "(fundef %s (", v.Name)
		b.WriteString(strings.Join(v.Params, " "))
		b.WriteString(") (")
		names := make([]string, 0, len(v.Defaults))
		for n := range v.Defaults {
			names = append(names, n)
		}
		sort.Strings(names)
		for i, n := range names {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(b, "(%s ", n)
			printNode(b, v.Defaults[n], depth)
			b.WriteString(")")
		}
		fmt.Fprintf(b, ") %s %s %d\n", orUnderscore(v.VarargsName), orUnderscore(v.KwargsName), v.KeyOnlyCount)
		indent(b, depth+1)
		printNode(b, v.Body, depth+1)
		b.WriteString(")")
	case *ExprStmt:
		b.WriteString("(expr ")
		printNode(b, v.X, depth)
		b.WriteString(")")
	case *Return:
		b.WriteString("(return")
		if v.X != nil {
			b.WriteString(" ")
			printNode(b, v.X, depth)
		}
		b.WriteString(")")
	case *Break:
		b.WriteString("(break)")
	case *Continue:
		b.WriteString("(continue)")
	case *Assert:
		b.WriteString("(assert ")
		printNode(b, v.Test, depth)
		if v.Msg != "" {
			b.WriteString(" ")
			b.WriteString(strconv.Quote(v.Msg))
		}
		b.WriteString(")")

	case *Literal:
		printLiteral(b, v)
	case *Name:
		fmt.Fprintf(b, "(name %s)", v.Ident)
	case *Attribute:
		b.WriteString("(attr ")
		printNode(b, v.X, depth)
		fmt.Fprintf(b, " %s)", v.Attr)
	case *Subscript:
		b.WriteString("(sub ")
		printNode(b, v.X, depth)
		b.WriteString(" ")
		printNode(b, v.Index, depth)
		b.WriteString(")")
	case *BinOp:
		fmt.Fprintf(b, "(bin %s ", strconv.Quote(string(v.Op)))
		printNode(b, v.L, depth)
		b.WriteString(" ")
		printNode(b, v.R, depth)
		b.WriteString(")")
	case *UnaryOp:
		fmt.Fprintf(b, "(un %s ", strconv.Quote(string(v.Op)))
		printNode(b, v.X, depth)
		b.WriteString(")")
	case *TupleLit:
		printSeq(b, "tuple", v.Elems, depth)
	case *ListLit:
		printSeq(b, "list", v.Elems, depth)
	case *DictLit:
		b.WriteString("(dict")
		for i := range v.Keys {
			b.WriteString(" (")
			printNode(b, v.Keys[i], depth)
			b.WriteString(" ")
			printNode(b, v.Values[i], depth)
			b.WriteString(")")
		}
		b.WriteString(")")
	case *Call:
		b.WriteString("(call ")
		printNode(b, v.Fn, depth)
		b.WriteString(" (")
		for i, a := range v.Args {
			if i > 0 {
				b.WriteString(" ")
			}
			printNode(b, a, depth)
		}
		b.WriteString(") (")
		names := make([]string, 0, len(v.Kwargs))
		for n := range v.Kwargs {
			names = append(names, n)
		}
		sort.Strings(names)
		for i, n := range names {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(b, "(%s ", n)
			printNode(b, v.Kwargs[n], depth)
			b.WriteString(")")
		}
		b.WriteString("))")
	case *LibCall:
		fmt.Fprintf(b, "(libcall %s (", strconv.Quote(v.Type))
		for i, p := range v.Params {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(b, "(%s ", p.Name)
			printNode(b, p.Expr, depth)
			b.WriteString(")")
		}
		b.WriteString("))")
	default:
		b.WriteString("(?)")
	}
}

func printSeq(b *strings.Builder, tag string, elems []Expr, depth int) {
	b.WriteString("(" + tag)
	for _, e := range elems {
		b.WriteString(" ")
		printNode(b, e, depth)
	}
	b.WriteString(")")
}

func printLiteral(b *strings.Builder, v *Literal) {
	switch v.Kind {
	case LitNone:
		b.WriteString("(none)")
	case LitBool:
		if v.Value.(bool) {
			b.WriteString("(bool true)")
		} else {
			b.WriteString("(bool false)")
		}
	case LitInt:
		fmt.Fprintf(b, "(int %d)", v.Value.(int64))
	case LitFloat:
		fmt.Fprintf(b, "(float %s)", strconv.FormatFloat(v.Value.(float64), 'g', -1, 64))
	case LitString:
		fmt.Fprintf(b, "(str %s)", strconv.Quote(v.Value.(string)))
	}
}

func orUnderscore(s string) string {
	if s == "" {
		return "_"
	}
	return s
}
