package ir

import "github.com/pytea-go/symexec/internal/symexpr"

// Block sequences statements; it is the body of a module, function, or
// control-flow arm. Sequencing propagates only while each element
// yields Run (see the interpreter's continuation flag).
type Block struct {
	base
	Stmts []Stmt
}

func NewBlock(sp *symexpr.Span, stmts ...Stmt) *Block {
	return &Block{base: base{sp}, Stmts: stmts}
}
func (b *Block) stmtNode()      {}
func (b *Block) Accept(v Visitor) { v.VisitBlock(b) }

// If is the conditional statement. A symbolic condition forks the
// ContextSet via ifThenElse; a concrete one selects Then or Else.
type If struct {
	base
	Cond Expr
	Then *Block
	Else *Block // nil when there is no else clause
}

func NewIf(sp *symexpr.Span, cond Expr, then, els *Block) *If {
	return &If{base: base{sp}, Cond: cond, Then: then, Else: els}
}
func (s *If) stmtNode()        {}
func (s *If) Accept(v Visitor) { v.VisitIf(s) }

// ForIn iterates Target over Iter's elements. Only bounded iteration is
// supported by the interpreter (a known integer length, or a symbolic one
// whose range pins it to a single value); any other length runs the body
// once with a warning.
type ForIn struct {
	base
	Target string
	Iter   Expr
	Body   *Block
}

func NewForIn(sp *symexpr.Span, target string, iter Expr, body *Block) *ForIn {
	return &ForIn{base: base{sp}, Target: target, Iter: iter, Body: body}
}
func (s *ForIn) stmtNode()        {}
func (s *ForIn) Accept(v Visitor) { v.VisitForIn(s) }

// Let binds Name to the value of Value (or to Undef when Value is nil)
// for the remainder of the enclosing block.
type Let struct {
	base
	Name  string
	Value Expr // nil means bind Undef
}

func NewLet(sp *symexpr.Span, name string, value Expr) *Let {
	return &Let{base: base{sp}, Name: name, Value: value}
}
func (s *Let) stmtNode()        {}
func (s *Let) Accept(v Visitor) { v.VisitLet(s) }

// FunDef installs a function value bound to Name in the current
// environment, Python-style rebind-in-place if Name was already bound.
type FunDef struct {
	base
	Name         string
	Params       []string
	Defaults     map[string]Expr
	VarargsName  string // "" when absent
	KwargsName   string // "" when absent
	KeyOnlyCount int
	Body         *Block
}

func NewFunDef(sp *symexpr.Span, name string, params []string, defaults map[string]Expr, varargs, kwargs string, keyOnlyCount int, body *Block) *FunDef {
	return &FunDef{
		base: base{sp}, Name: name, Params: params, Defaults: defaults,
		VarargsName: varargs, KwargsName: kwargs, KeyOnlyCount: keyOnlyCount, Body: body,
	}
}
func (s *FunDef) stmtNode()        {}
func (s *FunDef) Accept(v Visitor) { v.VisitFunDef(s) }

// ExprStmt evaluates an expression purely for its side effects.
type ExprStmt struct {
	base
	X Expr
}

func NewExprStmt(sp *symexpr.Span, x Expr) *ExprStmt {
	return &ExprStmt{base: base{sp}, X: x}
}
func (s *ExprStmt) stmtNode()        {}
func (s *ExprStmt) Accept(v Visitor) { v.VisitExprStmt(s) }

// Return yields X (or None, when X is nil) as the enclosing call's result.
type Return struct {
	base
	X Expr
}

func NewReturn(sp *symexpr.Span, x Expr) *Return {
	return &Return{base: base{sp}, X: x}
}
func (s *Return) stmtNode()        {}
func (s *Return) Accept(v Visitor) { v.VisitReturn(s) }

// Break and Continue carry the Brk/Cnt continuation flags out of the
// enclosing loop body.
type Break struct{ base }

func NewBreak(sp *symexpr.Span) *Break { return &Break{base{sp}} }
func (s *Break) stmtNode()             {}
func (s *Break) Accept(v Visitor)      { v.VisitBreak(s) }

type Continue struct{ base }

func NewContinue(sp *symexpr.Span) *Continue { return &Continue{base{sp}} }
func (s *Continue) stmtNode()                {}
func (s *Continue) Accept(v Visitor)         { v.VisitContinue(s) }

// Assert lowers a Python assert statement: Test becomes a path
// obligation (skipped wholesale under the ignoreAssert option). Msg is
// the optional literal message.
type Assert struct {
	base
	Test Expr
	Msg  string
}

func NewAssert(sp *symexpr.Span, test Expr, msg string) *Assert {
	return &Assert{base: base{sp}, Test: test, Msg: msg}
}
func (s *Assert) stmtNode()        {}
func (s *Assert) Accept(v Visitor) { v.VisitAssert(s) }
