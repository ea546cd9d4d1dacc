package ir

import "github.com/pytea-go/symexec/internal/symexpr"

// LitKind tags the primitive kind of a Literal node.
type LitKind int

const (
	LitNone LitKind = iota
	LitBool
	LitInt
	LitFloat
	LitString
)

// Literal is a source-level constant. Value holds a bool/int64/float64/
// string matching Kind, or nil for LitNone.
type Literal struct {
	base
	Kind  LitKind
	Value any
}

func NewLiteral(sp *symexpr.Span, kind LitKind, value any) *Literal {
	return &Literal{base: base{sp}, Kind: kind, Value: value}
}
func (e *Literal) exprNode()        {}
func (e *Literal) Accept(v Visitor) { v.VisitLiteral(e) }

// Name is an identifier reference, resolved through Env at evaluation time.
type Name struct {
	base
	Ident string
}

func NewName(sp *symexpr.Span, ident string) *Name {
	return &Name{base: base{sp}, Ident: ident}
}
func (e *Name) exprNode()        {}
func (e *Name) Accept(v Visitor) { v.VisitName(e) }

// Attribute is a.Attr; resolved against attrs first, then __getattr__.
type Attribute struct {
	base
	X    Expr
	Attr string
}

func NewAttribute(sp *symexpr.Span, x Expr, attr string) *Attribute {
	return &Attribute{base: base{sp}, X: x, Attr: attr}
}
func (e *Attribute) exprNode()        {}
func (e *Attribute) Accept(v Visitor) { v.VisitAttribute(e) }

// Subscript is a[Index]; resolved against __getitem__, then numeric
// indices, then string keyValues.
type Subscript struct {
	base
	X     Expr
	Index Expr
}

func NewSubscript(sp *symexpr.Span, x, index Expr) *Subscript {
	return &Subscript{base: base{sp}, X: x, Index: index}
}
func (e *Subscript) exprNode()        {}
func (e *Subscript) Accept(v Visitor) { v.VisitSubscript(e) }

// BinOpKind names a Python binary operator lowered into the IL.
type BinOpKind string

const (
	OpAdd      BinOpKind = "+"
	OpSub      BinOpKind = "-"
	OpMul      BinOpKind = "*"
	OpTrueDiv  BinOpKind = "/"
	OpFloorDiv BinOpKind = "//"
	OpMod      BinOpKind = "%"
	OpEq       BinOpKind = "=="
	OpNeq      BinOpKind = "!="
	OpLt       BinOpKind = "<"
	OpLte      BinOpKind = "<="
	OpGt       BinOpKind = ">"
	OpGte      BinOpKind = ">="
	OpAnd      BinOpKind = "and"
	OpOr       BinOpKind = "or"
	OpIs       BinOpKind = "is"
	OpIsNot    BinOpKind = "is not"
	OpIn       BinOpKind = "in"
	OpNotIn    BinOpKind = "not in"
)

type BinOp struct {
	base
	Op   BinOpKind
	L, R Expr
}

func NewBinOp(sp *symexpr.Span, op BinOpKind, l, r Expr) *BinOp {
	return &BinOp{base: base{sp}, Op: op, L: l, R: r}
}
func (e *BinOp) exprNode()        {}
func (e *BinOp) Accept(v Visitor) { v.VisitBinOp(e) }

// UnaryOpKind names a Python unary operator.
type UnaryOpKind string

const (
	UnaryNeg UnaryOpKind = "-"
	UnaryNot UnaryOpKind = "not"
)

type UnaryOp struct {
	base
	Op UnaryOpKind
	X  Expr
}

func NewUnaryOp(sp *symexpr.Span, op UnaryOpKind, x Expr) *UnaryOp {
	return &UnaryOp{base: base{sp}, Op: op, X: x}
}
func (e *UnaryOp) exprNode()        {}
func (e *UnaryOp) Accept(v Visitor) { v.VisitUnaryOp(e) }

// TupleLit allocates a fresh Object with numeric indices 0..n-1.
type TupleLit struct {
	base
	Elems []Expr
}

func NewTupleLit(sp *symexpr.Span, elems ...Expr) *TupleLit {
	return &TupleLit{base: base{sp}, Elems: elems}
}
func (e *TupleLit) exprNode()        {}
func (e *TupleLit) Accept(v Visitor) { v.VisitTupleLit(e) }

// ListLit is evaluated directly into a fresh list Object; it carries the
// same element list as TupleLit but is mutable at the Python level.
type ListLit struct {
	base
	Elems []Expr
}

func NewListLit(sp *symexpr.Span, elems ...Expr) *ListLit {
	return &ListLit{base: base{sp}, Elems: elems}
}
func (e *ListLit) exprNode()        {}
func (e *ListLit) Accept(v Visitor) { v.VisitListLit(e) }

// DictLit is evaluated directly into a fresh dict Object.
type DictLit struct {
	base
	Keys   []Expr
	Values []Expr
}

func NewDictLit(sp *symexpr.Span, keys, values []Expr) *DictLit {
	return &DictLit{base: base{sp}, Keys: keys, Values: values}
}
func (e *DictLit) exprNode()        {}
func (e *DictLit) Accept(v Visitor) { v.VisitDictLit(e) }

// Call invokes Fn with positional Args and keyword Kwargs.
type Call struct {
	base
	Fn     Expr
	Args   []Expr
	Kwargs map[string]Expr
}

func NewCall(sp *symexpr.Span, fn Expr, args []Expr, kwargs map[string]Expr) *Call {
	return &Call{base: base{sp}, Fn: fn, Args: args, Kwargs: kwargs}
}
func (e *Call) exprNode()        {}
func (e *Call) Accept(v Visitor) { v.VisitCall(e) }

// LibCall is the single universal library-call form: it routes by Type
// to a registered handler in internal/libcall, carrying named params in
// declaration order (order matters for positional-only handlers).
type LibCall struct {
	base
	Type   string
	Params []LibParam
}

// LibParam is one (name, value) pair of a LibCall.
type LibParam struct {
	Name string
	Expr Expr
}

func NewLibCall(sp *symexpr.Span, typ string, params ...LibParam) *LibCall {
	return &LibCall{base: base{sp}, Type: typ, Params: params}
}
func (e *LibCall) exprNode()        {}
func (e *LibCall) Accept(v Visitor) { v.VisitLibCall(e) }

// Param looks up a named parameter, reporting whether it was supplied.
func (e *LibCall) Param(name string) (Expr, bool) {
	for _, p := range e.Params {
		if p.Name == name {
			return p.Expr, true
		}
	}
	return nil, false
}
