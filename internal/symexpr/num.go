package symexpr

import (
	"fmt"
	"math/big"
	"strings"
)

// BopOp is a binary numeric operator.
type BopOp int

const (
	Add BopOp = iota
	Sub
	Mul
	TrueDiv
	FloorDiv
	Mod
)

func (op BopOp) String() string {
	switch op {
	case Add:
		return "+"
	case Sub:
		return "-"
	case Mul:
		return "*"
	case TrueDiv:
		return "/"
	case FloorDiv:
		return "//"
	case Mod:
		return "%"
	default:
		return "?"
	}
}

// UopOp is a unary numeric operator.
type UopOp int

const (
	Neg UopOp = iota
	Floor
	Ceil
	Abs
)

func (op UopOp) String() string {
	switch op {
	case Neg:
		return "-"
	case Floor:
		return "floor"
	case Ceil:
		return "ceil"
	case Abs:
		return "abs"
	default:
		return "?"
	}
}

// Num is a node of the numeric sort. Builders only assemble nodes; they
// never simplify (that is the normaliser's job, see normalize.go).
type Num interface {
	numNode()
	Span() *Span
	String() string
}

type base struct{ span *Span }

func (b base) Span() *Span { return b.span }

// NumConst is an exact rational constant.
type NumConst struct {
	base
	Value *big.Rat
}

func (NumConst) numNode() {}
func (n NumConst) String() string {
	if n.Value.IsInt() {
		return n.Value.RatString()
	}
	return n.Value.RatString()
}

// ConstInt builds a NumConst from an int64.
func ConstInt(v int64) NumConst { return NumConst{Value: big.NewRat(v, 1)} }

// ConstRat builds a NumConst from an arbitrary rational.
func ConstRat(v *big.Rat) NumConst { return NumConst{Value: v} }

// ConstFloat builds a NumConst from a float64, keeping the exact binary
// rational (never a rounded decimal; range arithmetic stays exact).
func ConstFloat(v float64) NumConst {
	r := new(big.Rat)
	if r.SetFloat64(v) == nil {
		r.SetInt64(0)
	}
	return NumConst{Value: r}
}

// NumSymbol is a free numeric variable.
type NumSymbol struct {
	base
	Sym *Symbol
}

func (NumSymbol) numNode() {}
func (n NumSymbol) String() string { return n.Sym.String() }

// SymbolNum wraps a Num-sorted Symbol as a Num node.
func SymbolNum(sym *Symbol) NumSymbol { return NumSymbol{Sym: sym} }

// NumBop is a binary numeric operation.
type NumBop struct {
	base
	Op   BopOp
	L, R Num
}

func (NumBop) numNode() {}
func (n NumBop) String() string {
	return fmt.Sprintf("(%s %s %s)", n.L, n.Op, n.R)
}

func Bop(op BopOp, l, r Num) NumBop { return NumBop{Op: op, L: l, R: r} }

// NumUop is a unary numeric operation.
type NumUop struct {
	base
	Op UopOp
	X  Num
}

func (NumUop) numNode() {}
func (n NumUop) String() string {
	if n.Op == Neg {
		return fmt.Sprintf("(-%s)", n.X)
	}
	return fmt.Sprintf("%s(%s)", n.Op, n.X)
}

func Uop(op UopOp, x Num) NumUop { return NumUop{Op: op, X: x} }

// NumIndex reads dimension i (0-based) out of a Shape.
type NumIndex struct {
	base
	S Shape
	I Num
}

func (NumIndex) numNode() {}
func (n NumIndex) String() string { return fmt.Sprintf("%s[%s]", n.S, n.I) }

func Index(s Shape, i Num) NumIndex { return NumIndex{S: s, I: i} }

// NumMax is the maximum of a non-empty list of Num expressions.
type NumMax struct {
	base
	Xs []Num
}

func (NumMax) numNode() {}
func (n NumMax) String() string { return "max(" + joinNums(n.Xs) + ")" }

func Max(xs ...Num) NumMax { return NumMax{Xs: xs} }

// NumMin is the minimum of a non-empty list of Num expressions.
type NumMin struct {
	base
	Xs []Num
}

func (NumMin) numNode() {}
func (n NumMin) String() string { return "min(" + joinNums(n.Xs) + ")" }

func Min(xs ...Num) NumMin { return NumMin{Xs: xs} }

// NumNumel is the element count of a Shape (the product of its dims).
type NumNumel struct {
	base
	S Shape
}

func (NumNumel) numNode() {}
func (n NumNumel) String() string { return fmt.Sprintf("numel(%s)", n.S) }

func Numel(s Shape) NumNumel { return NumNumel{S: s} }

func joinNums(xs []Num) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = x.String()
	}
	return strings.Join(parts, ", ")
}

// WithSpan returns a copy of a Num node carrying the given source span.
// Every constructor above returns a span-less node; callers that have a
// source location attach it with WithSpan so diagnostics can point back
// into the original program.
func WithSpan(n Num, sp *Span) Num {
	switch v := n.(type) {
	case NumConst:
		v.span = sp
		return v
	case NumSymbol:
		v.span = sp
		return v
	case NumBop:
		v.span = sp
		return v
	case NumUop:
		v.span = sp
		return v
	case NumIndex:
		v.span = sp
		return v
	case NumMax:
		v.span = sp
		return v
	case NumMin:
		v.span = sp
		return v
	case NumNumel:
		v.span = sp
		return v
	default:
		return n
	}
}
