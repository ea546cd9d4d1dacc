package symexpr

import "fmt"

// Bool is a node of the boolean sort.
type Bool interface {
	boolNode()
	Span() *Span
	String() string
}

// BoolConst is a concrete true/false.
type BoolConst struct {
	base
	Value bool
}

func (BoolConst) boolNode() {}
func (b BoolConst) String() string {
	if b.Value {
		return "true"
	}
	return "false"
}

func ConstBool(v bool) BoolConst { return BoolConst{Value: v} }

// BoolSymbol is a free boolean variable.
type BoolSymbol struct {
	base
	Sym *Symbol
}

func (BoolSymbol) boolNode()        {}
func (b BoolSymbol) String() string { return b.Sym.String() }

func SymbolBool(sym *Symbol) BoolSymbol { return BoolSymbol{Sym: sym} }

// SymExp is any node from any of the four sorts; Eq/Neq compare across the
// whole algebra (e.g. two Shapes, two Strings), not just Nums.
type SymExp interface {
	fmt.Stringer
}

// BoolEq / BoolNeq compare two same-sorted expressions for (in)equality.
type BoolEq struct {
	base
	L, R SymExp
}

func (BoolEq) boolNode() {}
func (b BoolEq) String() string { return fmt.Sprintf("(%s == %s)", b.L, b.R) }

func Eq(l, r SymExp) BoolEq { return BoolEq{L: l, R: r} }

type BoolNeq struct {
	base
	L, R SymExp
}

func (BoolNeq) boolNode() {}
func (b BoolNeq) String() string { return fmt.Sprintf("(%s != %s)", b.L, b.R) }

func Neq(l, r SymExp) BoolNeq { return BoolNeq{L: l, R: r} }

// BoolLt / BoolLte are numeric ordering predicates.
type BoolLt struct {
	base
	L, R Num
}

func (BoolLt) boolNode() {}
func (b BoolLt) String() string { return fmt.Sprintf("(%s < %s)", b.L, b.R) }

func Lt(l, r Num) BoolLt { return BoolLt{L: l, R: r} }

type BoolLte struct {
	base
	L, R Num
}

func (BoolLte) boolNode() {}
func (b BoolLte) String() string { return fmt.Sprintf("(%s <= %s)", b.L, b.R) }

func Lte(l, r Num) BoolLte { return BoolLte{L: l, R: r} }

// BoolNot negates a Bool expression.
type BoolNot struct {
	base
	X Bool
}

func (BoolNot) boolNode() {}
func (b BoolNot) String() string { return fmt.Sprintf("!%s", b.X) }

func Not(x Bool) BoolNot { return BoolNot{X: x} }

// BoolAnd / BoolOr are boolean connectives.
type BoolAnd struct {
	base
	L, R Bool
}

func (BoolAnd) boolNode() {}
func (b BoolAnd) String() string { return fmt.Sprintf("(%s && %s)", b.L, b.R) }

func And(l, r Bool) BoolAnd { return BoolAnd{L: l, R: r} }

type BoolOr struct {
	base
	L, R Bool
}

func (BoolOr) boolNode() {}
func (b BoolOr) String() string { return fmt.Sprintf("(%s || %s)", b.L, b.R) }

func Or(l, r Bool) BoolOr { return BoolOr{L: l, R: r} }
