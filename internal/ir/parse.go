package ir

import (
	"fmt"
	"strconv"
	"unicode"

	"github.com/pytea-go/symexec/internal/symexpr"
)

// SExprParser reads the canonical s-expression form back into IR trees.
// It is the stub behind the Parser collaborator interface: real
// deployments lower Python source elsewhere and feed the result in;
// tests and the CLI use this to run programs written directly in the
// serialised IL.
type SExprParser struct{}

// ParseModule parses one module body. Every node carries a span over
// the given fileID covering the byte range its s-expression occupies.
func (SExprParser) ParseModule(text string, fileID string) (*Block, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, fileID: fileID}
	node, err := p.readSexp()
	if err != nil {
		return nil, err
	}
	if !p.atEOF() {
		return nil, fmt.Errorf("%s: trailing input after module body", fileID)
	}
	stmt, err := buildStmt(node)
	if err != nil {
		return nil, err
	}
	block, ok := stmt.(*Block)
	if !ok {
		return nil, fmt.Errorf("%s: module body must be a (block ...)", fileID)
	}
	return block, nil
}

type token struct {
	kind  byte // '(' ')' 'a' atom, 's' string
	text  string
	start int
	end   int
}

func lex(text string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == '(' || c == ')':
			toks = append(toks, token{kind: c, start: i, end: i + 1})
			i++
		case c == '"':
			j := i + 1
			for j < len(text) {
				if text[j] == '\\' {
					j += 2
					continue
				}
				if text[j] == '"' {
					break
				}
				j++
			}
			if j >= len(text) {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			raw := text[i : j+1]
			s, err := strconv.Unquote(raw)
			if err != nil {
				return nil, fmt.Errorf("bad string literal at offset %d: %w", i, err)
			}
			toks = append(toks, token{kind: 's', text: s, start: i, end: j + 1})
			i = j + 1
		case c == ';':
			for i < len(text) && text[i] != '\n' {
				i++
			}
		case unicode.IsSpace(rune(c)):
			i++
		default:
			j := i
			for j < len(text) && text[j] != '(' && text[j] != ')' && text[j] != '"' &&
				!unicode.IsSpace(rune(text[j])) {
				j++
			}
			toks = append(toks, token{kind: 'a', text: text[i:j], start: i, end: j})
			i = j
		}
	}
	return toks, nil
}

// sexp is the neutral tree between the lexer and the IR builder.
type sexp struct {
	atom   string
	isStr  bool
	isAtom bool
	list   []*sexp
	span   *symexpr.Span
}

type parser struct {
	toks   []token
	pos    int
	fileID string
}

func (p *parser) atEOF() bool { return p.pos >= len(p.toks) }

func (p *parser) readSexp() (*sexp, error) {
	if p.atEOF() {
		return nil, fmt.Errorf("%s: unexpected end of input", p.fileID)
	}
	t := p.toks[p.pos]
	switch t.kind {
	case 'a':
		p.pos++
		return &sexp{atom: t.text, isAtom: true, span: p.span(t.start, t.end)}, nil
	case 's':
		p.pos++
		return &sexp{atom: t.text, isStr: true, span: p.span(t.start, t.end)}, nil
	case '(':
		p.pos++
		out := &sexp{}
		start := t.start
		for {
			if p.atEOF() {
				return nil, fmt.Errorf("%s: unclosed list at offset %d", p.fileID, start)
			}
			if p.toks[p.pos].kind == ')' {
				out.span = p.span(start, p.toks[p.pos].end)
				p.pos++
				return out, nil
			}
			child, err := p.readSexp()
			if err != nil {
				return nil, err
			}
			out.list = append(out.list, child)
		}
	default:
		return nil, fmt.Errorf("%s: unexpected ) at offset %d", p.fileID, t.start)
	}
}

func (p *parser) span(start, end int) *symexpr.Span {
	return &symexpr.Span{FileID: p.fileID, Start: start, End: end}
}

func (s *sexp) head() string {
	if len(s.list) > 0 && s.list[0].isAtom {
		return s.list[0].atom
	}
	return ""
}

func (s *sexp) args() []*sexp {
	if len(s.list) == 0 {
		return nil
	}
	return s.list[1:]
}

func errAt(s *sexp, format string, a ...any) error {
	loc := ""
	if s.span != nil {
		loc = fmt.Sprintf("%s:%d: ", s.span.FileID, s.span.Start)
	}
	return fmt.Errorf(loc+format, a...)
}

func buildStmt(s *sexp) (Stmt, error) {
	switch s.head() {
	case "block":
		stmts := make([]Stmt, 0, len(s.args()))
		for _, c := range s.args() {
			st, err := buildStmt(c)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, st)
		}
		return &Block{base: base{s.span}, Stmts: stmts}, nil
	case "if":
		a := s.args()
		if len(a) != 2 && len(a) != 3 {
			return nil, errAt(s, "if needs a condition and one or two blocks")
		}
		cond, err := buildExpr(a[0])
		if err != nil {
			return nil, err
		}
		then, err := buildBlock(a[1])
		if err != nil {
			return nil, err
		}
		var els *Block
		if len(a) == 3 {
			if els, err = buildBlock(a[2]); err != nil {
				return nil, err
			}
		}
		return &If{base: base{s.span}, Cond: cond, Then: then, Else: els}, nil
	case "for":
		a := s.args()
		if len(a) != 3 || !a[0].isAtom {
			return nil, errAt(s, "for needs a target name, an iterable and a block")
		}
		iter, err := buildExpr(a[1])
		if err != nil {
			return nil, err
		}
		body, err := buildBlock(a[2])
		if err != nil {
			return nil, err
		}
		return &ForIn{base: base{s.span}, Target: a[0].atom, Iter: iter, Body: body}, nil
	case "let":
		a := s.args()
		if len(a) != 1 && len(a) != 2 {
			return nil, errAt(s, "let needs a name and an optional initialiser")
		}
		if !a[0].isAtom {
			return nil, errAt(s, "let target must be a name")
		}
		var init Expr
		if len(a) == 2 {
			var err error
			if init, err = buildExpr(a[1]); err != nil {
				return nil, err
			}
		}
		return &Let{base: base{s.span}, Name: a[0].atom, Value: init}, nil
	case "fundef":
		return buildFunDef(s)
	case "expr":
		a := s.args()
		if len(a) != 1 {
			return nil, errAt(s, "expr needs exactly one expression")
		}
		x, err := buildExpr(a[0])
		if err != nil {
			return nil, err
		}
		return &ExprStmt{base: base{s.span}, X: x}, nil
	case "return":
		a := s.args()
		if len(a) > 1 {
			return nil, errAt(s, "return takes at most one expression")
		}
		var x Expr
		if len(a) == 1 {
			var err error
			if x, err = buildExpr(a[0]); err != nil {
				return nil, err
			}
		}
		return &Return{base: base{s.span}, X: x}, nil
	case "break":
		return &Break{base{s.span}}, nil
	case "continue":
		return &Continue{base{s.span}}, nil
	case "assert":
		a := s.args()
		if len(a) != 1 && len(a) != 2 {
			return nil, errAt(s, "assert needs a test and an optional message")
		}
		test, err := buildExpr(a[0])
		if err != nil {
			return nil, err
		}
		msg := ""
		if len(a) == 2 {
			if !a[1].isStr {
				return nil, errAt(s, "assert message must be a string literal")
			}
			msg = a[1].atom
		}
		return &Assert{base: base{s.span}, Test: test, Msg: msg}, nil
	default:
		return nil, errAt(s, "unknown statement form %q", s.head())
	}
}

func buildBlock(s *sexp) (*Block, error) {
	st, err := buildStmt(s)
	if err != nil {
		return nil, err
	}
	b, ok := st.(*Block)
	if !ok {
		return nil, errAt(s, "expected a (block ...)")
	}
	return b, nil
}

func buildFunDef(s *sexp) (Stmt, error) {
	a := s.args()
	if len(a) != 7 || !a[0].isAtom {
		return nil, errAt(s, "fundef needs name, params, defaults, varargs, kwargs, keyonly and a body")
	}
	name := a[0].atom
	var params []string
	for _, p := range a[1].list {
		if !p.isAtom {
			return nil, errAt(s, "fundef params must be names")
		}
		params = append(params, p.atom)
	}
	defaults := map[string]Expr{}
	for _, d := range a[2].list {
		if len(d.list) != 2 || !d.list[0].isAtom {
			return nil, errAt(s, "fundef default must be (name expr)")
		}
		e, err := buildExpr(d.list[1])
		if err != nil {
			return nil, err
		}
		defaults[d.list[0].atom] = e
	}
	varargs, err := optName(s, a[3])
	if err != nil {
		return nil, err
	}
	kwargs, err := optName(s, a[4])
	if err != nil {
		return nil, err
	}
	if !a[5].isAtom {
		return nil, errAt(s, "fundef keyonly count must be an integer")
	}
	keyOnly, err := strconv.Atoi(a[5].atom)
	if err != nil {
		return nil, errAt(s, "fundef keyonly count must be an integer")
	}
	body, err := buildBlock(a[6])
	if err != nil {
		return nil, err
	}
	return &FunDef{
		base: base{s.span}, Name: name, Params: params, Defaults: defaults,
		VarargsName: varargs, KwargsName: kwargs, KeyOnlyCount: keyOnly, Body: body,
	}, nil
}

func optName(parent *sexp, s *sexp) (string, error) {
	if !s.isAtom {
		return "", errAt(parent, "expected a name or _")
	}
	if s.atom == "_" {
		return "", nil
	}
	return s.atom, nil
}

func buildExpr(s *sexp) (Expr, error) {
	switch s.head() {
	case "none":
		return &Literal{base: base{s.span}, Kind: LitNone}, nil
	case "bool":
		a := s.args()
		if len(a) != 1 || !a[0].isAtom {
			return nil, errAt(s, "bool needs true or false")
		}
		return &Literal{base: base{s.span}, Kind: LitBool, Value: a[0].atom == "true"}, nil
	case "int":
		a := s.args()
		if len(a) != 1 || !a[0].isAtom {
			return nil, errAt(s, "int needs one integer")
		}
		n, err := strconv.ParseInt(a[0].atom, 10, 64)
		if err != nil {
			return nil, errAt(s, "bad integer %q", a[0].atom)
		}
		return &Literal{base: base{s.span}, Kind: LitInt, Value: n}, nil
	case "float":
		a := s.args()
		if len(a) != 1 || !a[0].isAtom {
			return nil, errAt(s, "float needs one number")
		}
		f, err := strconv.ParseFloat(a[0].atom, 64)
		if err != nil {
			return nil, errAt(s, "bad float %q", a[0].atom)
		}
		return &Literal{base: base{s.span}, Kind: LitFloat, Value: f}, nil
	case "str":
		a := s.args()
		if len(a) != 1 || !a[0].isStr {
			return nil, errAt(s, "str needs one string literal")
		}
		return &Literal{base: base{s.span}, Kind: LitString, Value: a[0].atom}, nil
	case "name":
		a := s.args()
		if len(a) != 1 || !a[0].isAtom {
			return nil, errAt(s, "name needs one identifier")
		}
		return &Name{base: base{s.span}, Ident: a[0].atom}, nil
	case "attr":
		a := s.args()
		if len(a) != 2 || !a[1].isAtom {
			return nil, errAt(s, "attr needs an expression and a name")
		}
		x, err := buildExpr(a[0])
		if err != nil {
			return nil, err
		}
		return &Attribute{base: base{s.span}, X: x, Attr: a[1].atom}, nil
	case "sub":
		a := s.args()
		if len(a) != 2 {
			return nil, errAt(s, "sub needs an expression and an index")
		}
		x, err := buildExpr(a[0])
		if err != nil {
			return nil, err
		}
		idx, err := buildExpr(a[1])
		if err != nil {
			return nil, err
		}
		return &Subscript{base: base{s.span}, X: x, Index: idx}, nil
	case "bin":
		a := s.args()
		if len(a) != 3 || !a[0].isStr {
			return nil, errAt(s, "bin needs an operator string and two operands")
		}
		l, err := buildExpr(a[1])
		if err != nil {
			return nil, err
		}
		r, err := buildExpr(a[2])
		if err != nil {
			return nil, err
		}
		return &BinOp{base: base{s.span}, Op: BinOpKind(a[0].atom), L: l, R: r}, nil
	case "un":
		a := s.args()
		if len(a) != 2 || !a[0].isStr {
			return nil, errAt(s, "un needs an operator string and one operand")
		}
		x, err := buildExpr(a[1])
		if err != nil {
			return nil, err
		}
		return &UnaryOp{base: base{s.span}, Op: UnaryOpKind(a[0].atom), X: x}, nil
	case "tuple", "list":
		elems := make([]Expr, 0, len(s.args()))
		for _, c := range s.args() {
			e, err := buildExpr(c)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		if s.head() == "tuple" {
			return &TupleLit{base: base{s.span}, Elems: elems}, nil
		}
		return &ListLit{base: base{s.span}, Elems: elems}, nil
	case "dict":
		var keys, values []Expr
		for _, c := range s.args() {
			if len(c.list) != 2 {
				return nil, errAt(s, "dict entries must be (key value)")
			}
			k, err := buildExpr(c.list[0])
			if err != nil {
				return nil, err
			}
			v, err := buildExpr(c.list[1])
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
			values = append(values, v)
		}
		return &DictLit{base: base{s.span}, Keys: keys, Values: values}, nil
	case "call":
		a := s.args()
		if len(a) != 3 {
			return nil, errAt(s, "call needs a callee, an args list and a kwargs list")
		}
		fn, err := buildExpr(a[0])
		if err != nil {
			return nil, err
		}
		var args []Expr
		for _, c := range a[1].list {
			e, err := buildExpr(c)
			if err != nil {
				return nil, err
			}
			args = append(args, e)
		}
		kwargs := map[string]Expr{}
		for _, c := range a[2].list {
			if len(c.list) != 2 || !c.list[0].isAtom {
				return nil, errAt(s, "call kwarg must be (name expr)")
			}
			e, err := buildExpr(c.list[1])
			if err != nil {
				return nil, err
			}
			kwargs[c.list[0].atom] = e
		}
		return &Call{base: base{s.span}, Fn: fn, Args: args, Kwargs: kwargs}, nil
	case "libcall":
		a := s.args()
		if len(a) != 2 || !a[0].isStr {
			return nil, errAt(s, "libcall needs a type string and a params list")
		}
		var params []LibParam
		for _, c := range a[1].list {
			if len(c.list) != 2 || !c.list[0].isAtom {
				return nil, errAt(s, "libcall param must be (name expr)")
			}
			e, err := buildExpr(c.list[1])
			if err != nil {
				return nil, err
			}
			params = append(params, LibParam{Name: c.list[0].atom, Expr: e})
		}
		return &LibCall{base: base{s.span}, Type: a[0].atom, Params: params}, nil
	default:
		return nil, errAt(s, "unknown expression form %q", s.head())
	}
}
