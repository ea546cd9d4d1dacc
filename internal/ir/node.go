// Package ir defines the intermediate-language node set that a Parser
// lowers Python source into. Nodes are plain syntax: no symbolic value
// lives here, only literals, names and structure, matching the
// source-language's own tree (a Visitor-shaped Node/Accept split),
// adapted from a compiler AST to an interpreter IL.
package ir

import "github.com/pytea-go/symexec/internal/symexpr"

// Node is the base interface implemented by every IR node.
type Node interface {
	Span() *symexpr.Span
	Accept(v Visitor)
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

type base struct {
	span *symexpr.Span
}

func (b base) Span() *symexpr.Span { return b.span }

// Visitor dispatches over every concrete node type. Callers that only
// care about a subset embed Visitor and override the methods they need.
type Visitor interface {
	VisitBlock(*Block)
	VisitIf(*If)
	VisitForIn(*ForIn)
	VisitLet(*Let)
	VisitFunDef(*FunDef)
	VisitExprStmt(*ExprStmt)
	VisitReturn(*Return)
	VisitBreak(*Break)
	VisitContinue(*Continue)
	VisitAssert(*Assert)

	VisitLiteral(*Literal)
	VisitName(*Name)
	VisitAttribute(*Attribute)
	VisitSubscript(*Subscript)
	VisitBinOp(*BinOp)
	VisitUnaryOp(*UnaryOp)
	VisitTupleLit(*TupleLit)
	VisitListLit(*ListLit)
	VisitDictLit(*DictLit)
	VisitCall(*Call)
	VisitLibCall(*LibCall)
}
