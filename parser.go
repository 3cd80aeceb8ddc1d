// parser.go — recursive-descent parser for Buddy Script.
//
// OVERVIEW
// --------
// The parser consumes the token stream produced by the lexer (comments
// filtered up front) and builds a typed AST rooted at *Program. Statements
// are parsed by recursive descent; expressions by precedence climbing,
// lowest to highest:
//
//	assignment → ternary → pipeline → or → and → equality → comparison
//	→ additive → multiplicative → power (right-assoc) → unary → postfix
//	→ primary
//
// Statement termination is pragmatic automatic-semicolon-insertion: a
// statement ends on ';', a NEWLINE, end of input, or when the lookahead is
// '}' or 'else'. Newlines are skipped only where an expression must
// syntactically continue (after an infix/prefix operator, a comma, an
// opening bracket, '=>', '|>'), so `1 +\n2` continues while `1\n+2` is two
// statements — the second of which fails to parse.
//
// BOUNDED EXECUTION
// -----------------
// Two guard families protect the host process from adversarial input:
//
//   - a recursion-depth ceiling (default 500) charged on every statement
//     and primary-expression entry, raising *RecursionLimitError;
//   - iteration bounds (1e3..1e5 per construct) on every variable-length
//     parse loop, raising *LoopTimeoutError.
//
// Guard errors are never caught by synchronize(); they abort the parse.
// Ordinary *ParseErrors raised while parsing a top-level or block-level
// statement are caught by synchronize(), which skips to the next statement
// boundary so the rest of the program still parses (best-effort
// diagnostics). Parse returns the partial Program together with the first
// recorded ParseError.
//
// String interpolation re-lexes and re-parses each `${...}` span with a
// freshly constructed lexer/parser pair; no cursor or counter is shared.
package buddyscript

import (
	"fmt"
	"strconv"
	"strings"
)

// maxParseDepth is the recursion ceiling for nested constructs.
const maxParseDepth = 500

// Iteration bounds for variable-length parse loops.
const (
	guardSmall  = 1000   // params, catch clauses, pipeline chains
	guardMedium = 10000  // call args, class bodies, postfix chains, interpolation parts
	guardLarge  = 100000 // statement lists, array/dict elements, binary chains
)

// Parser holds the cursor state for one top-level parse. Nested
// interpolation parses construct independent Parser instances.
type Parser struct {
	toks  []Token
	i     int
	depth int

	errs []error
}

// NewParser builds a parser over a token sequence. Comment tokens are
// filtered here so the grammar never sees them.
func NewParser(tokens []Token) *Parser {
	filtered := make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Kind == COMMENT {
			continue
		}
		filtered = append(filtered, t)
	}
	return &Parser{toks: filtered}
}

// Parse parses a complete token sequence into a Program. On syntax errors
// it recovers at statement boundaries and returns the partial Program along
// with the first error; guard violations abort immediately.
func Parse(tokens []Token) (*Program, error) {
	return NewParser(tokens).Program()
}

// ParseSource tokenizes and parses src in one step.
func ParseSource(src string) (*Program, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	return Parse(toks)
}

// Program runs the top-level statement loop.
func (p *Parser) Program() (*Program, error) {
	prog := &Program{Line: 1}
	guard := p.loopGuard("program", guardLarge)

	p.skipNewlines()
	for !p.atEnd() {
		if err := guard(); err != nil {
			return prog, err
		}
		st, err := p.parseDeclaration()
		if err != nil {
			if isGuardError(err) || IsIncomplete(err) {
				return prog, err
			}
			p.errs = append(p.errs, err)
			p.synchronize()
			p.skipNewlines()
			continue
		}
		if st != nil {
			prog.Stmts = append(prog.Stmts, st)
		}
		p.skipNewlines()
	}
	if len(p.errs) > 0 {
		return prog, p.errs[0]
	}
	return prog, nil
}

// Errors returns every ParseError recorded during recovery.
func (p *Parser) Errors() []error { return p.errs }

// ─────────────────────────── token basics ───────────────────────────

func (p *Parser) atEnd() bool {
	return p.i >= len(p.toks) || p.toks[p.i].Kind == EOF
}

func (p *Parser) peek() Token {
	if p.i >= len(p.toks) {
		if len(p.toks) == 0 {
			return Token{Kind: EOF, Line: 1}
		}
		last := p.toks[len(p.toks)-1]
		return Token{Kind: EOF, Line: last.Line, Col: last.Col}
	}
	return p.toks[p.i]
}

func (p *Parser) peekN(n int) Token {
	if p.i+n >= len(p.toks) {
		return Token{Kind: EOF}
	}
	return p.toks[p.i+n]
}

func (p *Parser) prev() Token { return p.toks[p.i-1] }

func (p *Parser) advance() Token {
	t := p.peek()
	if !p.atEnd() {
		p.i++
	}
	return t
}

func (p *Parser) check(tt TokenType) bool { return p.peek().Kind == tt }

func (p *Parser) match(tts ...TokenType) bool {
	for _, tt := range tts {
		if p.check(tt) {
			p.i++
			return true
		}
	}
	return false
}

func (p *Parser) need(tt TokenType, msg string) (Token, error) {
	if p.check(tt) {
		return p.advance(), nil
	}
	g := p.peek()
	pe := &ParseError{Line: g.Line, Col: g.Col, Msg: msg}
	if g.Kind == EOF {
		pe.Incomplete = true
	}
	return Token{}, pe
}

func (p *Parser) errAt(t Token, format string, args ...any) error {
	return &ParseError{Line: t.Line, Col: t.Col, Msg: fmt.Sprintf(format, args...)}
}

// skipNewlines eats NEWLINE and stray SEMI tokens between statements.
func (p *Parser) skipNewlines() {
	for p.check(NEWLINE) || p.check(SEMI) {
		p.i++
	}
}

// skipLineBreaks eats NEWLINEs only; used where an expression must continue.
func (p *Parser) skipLineBreaks() {
	for p.check(NEWLINE) {
		p.i++
	}
}

// ─────────────────────────── guards ───────────────────────────

func (p *Parser) enter(ctx string) error {
	p.depth++
	if p.depth > maxParseDepth {
		return &RecursionLimitError{Line: p.peek().Line, Context: ctx, Limit: maxParseDepth}
	}
	return nil
}

func (p *Parser) leave() { p.depth-- }

// loopGuard returns a step function that errors once the iteration bound
// for the named construct is exceeded.
func (p *Parser) loopGuard(ctx string, limit int) func() error {
	n := 0
	return func() error {
		n++
		if n > limit {
			return &LoopTimeoutError{Line: p.peek().Line, Context: ctx, Limit: limit}
		}
		return nil
	}
}

// synchronize advances past tokens until a statement boundary (';' or
// newline) or a token that can start a statement, so parsing can resume
// after a recorded error.
func (p *Parser) synchronize() {
	for !p.atEnd() {
		switch p.peek().Kind {
		case SEMI, NEWLINE:
			p.i++
			return
		case IF, FOR, WHILE, LET, CONST, VAR, FUNC, CLASS, RETURN,
			TRY, THROW, IMPORT, EXPORT, TEST, BREAK, CONTINUE:
			return
		}
		p.i++
	}
}

// ─────────────────────────── statements ───────────────────────────

// parseDeclaration dispatches declarations vs. control statements vs. bare
// expression statements. Every entry is charged against the depth ceiling.
func (p *Parser) parseDeclaration() (Stmt, error) {
	if err := p.enter("statement"); err != nil {
		return nil, err
	}
	defer p.leave()

	switch p.peek().Kind {
	case FUNC:
		return p.parseFunctionDecl(false)
	case ASYNC:
		if p.peekN(1).Kind == FUNC {
			p.advance() // async
			return p.parseFunctionDecl(true)
		}
		return p.parseExpressionStmt()
	case CLASS:
		return p.parseClassDecl()
	case LET, CONST, VAR:
		return p.parseVarDecl()
	case IMPORT:
		return p.parseImport()
	case EXPORT:
		return p.parseExport()
	case TEST:
		return p.parseTestDecl()
	default:
		return p.parseStatement()
	}
}

func (p *Parser) parseStatement() (Stmt, error) {
	switch p.peek().Kind {
	case IF:
		return p.parseIf()
	case WHILE:
		return p.parseWhile()
	case FOR:
		return p.parseFor()
	case RETURN:
		return p.parseReturn()
	case BREAK:
		t := p.advance()
		if err := p.endStatement(); err != nil {
			return nil, err
		}
		return &Break{Line: t.Line}, nil
	case CONTINUE:
		t := p.advance()
		if err := p.endStatement(); err != nil {
			return nil, err
		}
		return &Continue{Line: t.Line}, nil
	case TRY:
		return p.parseTry()
	case THROW:
		t := p.advance()
		v, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.endStatement(); err != nil {
			return nil, err
		}
		return &Throw{Line: t.Line, Value: v}, nil
	case ASSERT:
		return p.parseAssert()
	case LBRACE:
		return p.parseBlock()
	default:
		return p.parseExpressionStmt()
	}
}

// endStatement consumes a statement terminator: ';', a newline, end of
// input, or implicit termination before '}' / 'else'.
func (p *Parser) endStatement() error {
	switch p.peek().Kind {
	case SEMI, NEWLINE:
		p.i++
		return nil
	case EOF, RBRACE, ELSE:
		return nil
	}
	g := p.peek()
	return p.errAt(g, "unexpected token %s (expected end of statement)", g.Kind)
}

func (p *Parser) parseExpressionStmt() (Stmt, error) {
	t := p.peek()
	x, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.endStatement(); err != nil {
		return nil, err
	}
	return &ExpressionStmt{Line: t.Line, X: x}, nil
}

func (p *Parser) parseBlock() (*Block, error) {
	open, err := p.need(LBRACE, "expected '{'")
	if err != nil {
		return nil, err
	}
	blk := &Block{Line: open.Line}
	guard := p.loopGuard("block", guardLarge)

	p.skipNewlines()
	for !p.check(RBRACE) && !p.atEnd() {
		if err := guard(); err != nil {
			return nil, err
		}
		st, err := p.parseDeclaration()
		if err != nil {
			if isGuardError(err) || IsIncomplete(err) {
				return nil, err
			}
			p.errs = append(p.errs, err)
			p.synchronize()
			p.skipNewlines()
			continue
		}
		blk.Stmts = append(blk.Stmts, st)
		p.skipNewlines()
	}
	if _, err := p.need(RBRACE, "expected '}'"); err != nil {
		return nil, err
	}
	return blk, nil
}

func (p *Parser) parseFunctionDecl(async bool) (Stmt, error) {
	t := p.advance() // func
	name, err := p.need(IDENT, "expected function name")
	if err != nil {
		return nil, err
	}
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	p.skipLineBreaks()
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FunctionDecl{Line: t.Line, Name: name.Text, Params: params, Body: body, Async: async}, nil
}

// parseParamList parses "(a, b = expr, c: type)" after a function name or
// at the head of a parenthesized lambda.
func (p *Parser) parseParamList() ([]Param, error) {
	if _, err := p.need(LPAREN, "expected '(' before parameters"); err != nil {
		return nil, err
	}
	var params []Param
	guard := p.loopGuard("parameter list", guardSmall)

	p.skipLineBreaks()
	for !p.check(RPAREN) {
		if err := guard(); err != nil {
			return nil, err
		}
		name, err := p.need(IDENT, "expected parameter name")
		if err != nil {
			return nil, err
		}
		param := Param{Name: name.Text}
		if p.match(COLON) {
			ty, err := p.need(IDENT, "expected type annotation after ':'")
			if err != nil {
				return nil, err
			}
			param.TypeAnnot = ty.Text
		}
		if p.match(ASSIGN) {
			p.skipLineBreaks()
			def, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			param.Default = def
		}
		params = append(params, param)
		if !p.match(COMMA) {
			break
		}
		p.skipLineBreaks()
	}
	p.skipLineBreaks()
	if _, err := p.need(RPAREN, "expected ')' after parameters"); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *Parser) parseClassDecl() (Stmt, error) {
	t := p.advance() // class
	name, err := p.need(IDENT, "expected class name")
	if err != nil {
		return nil, err
	}
	decl := &ClassDecl{Line: t.Line, Name: name.Text}
	if p.match(EXTENDS) {
		base, err := p.need(IDENT, "expected base class name after 'extends'")
		if err != nil {
			return nil, err
		}
		decl.Base = base.Text
	}
	p.skipLineBreaks()
	if _, err := p.need(LBRACE, "expected '{' before class body"); err != nil {
		return nil, err
	}
	guard := p.loopGuard("class body", guardMedium)

	p.skipNewlines()
	for !p.check(RBRACE) && !p.atEnd() {
		if err := guard(); err != nil {
			return nil, err
		}
		switch p.peek().Kind {
		case FUNC:
			m, err := p.parseFunctionDecl(false)
			if err != nil {
				return nil, err
			}
			decl.Methods = append(decl.Methods, m.(*FunctionDecl))
		case ASYNC:
			if p.peekN(1).Kind != FUNC {
				return nil, p.errAt(p.peek(), "expected 'func' after 'async' in class body")
			}
			p.advance()
			m, err := p.parseFunctionDecl(true)
			if err != nil {
				return nil, err
			}
			decl.Methods = append(decl.Methods, m.(*FunctionDecl))
		case LET, CONST, VAR:
			f, err := p.parseVarDecl()
			if err != nil {
				return nil, err
			}
			decl.Fields = append(decl.Fields, f.(*VarDecl))
		case IDENT:
			// Shorthand method: name(params) { ... }
			m, err := p.parseShorthandMethod()
			if err != nil {
				return nil, err
			}
			decl.Methods = append(decl.Methods, m)
		default:
			return nil, p.errAt(p.peek(), "unexpected token %s in class body", p.peek().Kind)
		}
		p.skipNewlines()
	}
	if _, err := p.need(RBRACE, "expected '}' after class body"); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseShorthandMethod() (*FunctionDecl, error) {
	name := p.advance()
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	p.skipLineBreaks()
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FunctionDecl{Line: name.Line, Name: name.Text, Params: params, Body: body}, nil
}

func (p *Parser) parseVarDecl() (Stmt, error) {
	t := p.advance()
	kind := DeclLet
	switch t.Kind {
	case CONST:
		kind = DeclConst
	case VAR:
		kind = DeclVar
	}
	name, err := p.need(IDENT, "expected variable name")
	if err != nil {
		return nil, err
	}
	decl := &VarDecl{Line: t.Line, Decl: kind, Name: name.Text}
	if p.match(ASSIGN) {
		p.skipLineBreaks()
		init, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		decl.Init = init
	} else if kind == DeclConst {
		return nil, p.errAt(t, "const declaration requires an initializer")
	}
	if err := p.endStatement(); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseImport() (Stmt, error) {
	t := p.advance() // import
	// import "path" as name
	if p.check(STRING) {
		path := p.advance()
		if _, err := p.need(AS, "expected 'as' after import path"); err != nil {
			return nil, err
		}
		name, err := p.need(IDENT, "expected module name after 'as'")
		if err != nil {
			return nil, err
		}
		if err := p.endStatement(); err != nil {
			return nil, err
		}
		return &Import{Line: t.Line, Name: name.Text, Path: unescapeDollars(path.Text)}, nil
	}
	// import name from "path"
	name, err := p.need(IDENT, "expected module name after 'import'")
	if err != nil {
		return nil, err
	}
	if _, err := p.need(FROM, "expected 'from' after module name"); err != nil {
		return nil, err
	}
	path, err := p.need(STRING, "expected import path string")
	if err != nil {
		return nil, err
	}
	if err := p.endStatement(); err != nil {
		return nil, err
	}
	return &Import{Line: t.Line, Name: name.Text, Path: unescapeDollars(path.Text)}, nil
}

func (p *Parser) parseExport() (Stmt, error) {
	t := p.advance() // export
	var inner Stmt
	var err error
	switch p.peek().Kind {
	case FUNC:
		inner, err = p.parseFunctionDecl(false)
	case ASYNC:
		if p.peekN(1).Kind != FUNC {
			return nil, p.errAt(p.peek(), "expected 'func' after 'async'")
		}
		p.advance()
		inner, err = p.parseFunctionDecl(true)
	case CLASS:
		inner, err = p.parseClassDecl()
	case LET, CONST, VAR:
		inner, err = p.parseVarDecl()
	default:
		return nil, p.errAt(p.peek(), "expected declaration after 'export'")
	}
	if err != nil {
		return nil, err
	}
	return &Export{Line: t.Line, Decl: inner}, nil
}

func (p *Parser) parseTestDecl() (Stmt, error) {
	t := p.advance() // test
	name, err := p.need(STRING, "expected test name string")
	if err != nil {
		return nil, err
	}
	p.skipLineBreaks()
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &TestDecl{Line: t.Line, Name: unescapeDollars(name.Text), Body: body}, nil
}

func (p *Parser) parseAssert() (Stmt, error) {
	t := p.advance() // assert
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	st := &Assert{Line: t.Line, Cond: cond}
	if p.match(COMMA) {
		p.skipLineBreaks()
		msg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		st.Message = msg
	}
	if err := p.endStatement(); err != nil {
		return nil, err
	}
	return st, nil
}

func (p *Parser) parseIf() (Stmt, error) {
	t := p.advance() // if
	paren := p.match(LPAREN)
	if paren {
		p.skipLineBreaks()
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if paren {
		p.skipLineBreaks()
		if _, err := p.need(RPAREN, "expected ')' after if condition"); err != nil {
			return nil, err
		}
	}
	p.skipLineBreaks()
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	node := &If{Line: t.Line, Cond: cond, Then: then}
	// `else` may sit on the line after '}'.
	save := p.i
	p.skipNewlines()
	if p.match(ELSE) {
		p.skipLineBreaks()
		if p.check(IF) {
			els, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			node.Else = els
		} else {
			els, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			node.Else = els
		}
	} else {
		p.i = save
	}
	return node, nil
}

func (p *Parser) parseWhile() (Stmt, error) {
	t := p.advance() // while
	paren := p.match(LPAREN)
	if paren {
		p.skipLineBreaks()
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if paren {
		p.skipLineBreaks()
		if _, err := p.need(RPAREN, "expected ')' after while condition"); err != nil {
			return nil, err
		}
	}
	p.skipLineBreaks()
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &While{Line: t.Line, Cond: cond, Body: body}, nil
}

// parseFor handles both `for x in expr { }` and the C-style
// `for (init; cond; post) { }` form.
func (p *Parser) parseFor() (Stmt, error) {
	t := p.advance() // for

	// Bare for-in: `for x in ...`
	if p.check(IDENT) && p.peekN(1).Kind == IN {
		name := p.advance()
		p.advance() // in
		iter, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		p.skipLineBreaks()
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &For{Line: t.Line, Name: name.Text, Iter: iter, Body: body}, nil
	}

	if _, err := p.need(LPAREN, "expected '(' or 'x in ...' after 'for'"); err != nil {
		return nil, err
	}
	p.skipLineBreaks()

	// Parenthesized for-in: `for (x in expr)`
	if p.check(IDENT) && p.peekN(1).Kind == IN {
		name := p.advance()
		p.advance() // in
		iter, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		p.skipLineBreaks()
		if _, err := p.need(RPAREN, "expected ')' after for-in header"); err != nil {
			return nil, err
		}
		p.skipLineBreaks()
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &For{Line: t.Line, Name: name.Text, Iter: iter, Body: body}, nil
	}

	node := &ForCStyle{Line: t.Line}
	// init
	if !p.check(SEMI) {
		if p.check(LET) || p.check(CONST) || p.check(VAR) {
			kw := p.advance()
			kind := DeclLet
			switch kw.Kind {
			case CONST:
				kind = DeclConst
			case VAR:
				kind = DeclVar
			}
			name, err := p.need(IDENT, "expected variable name")
			if err != nil {
				return nil, err
			}
			decl := &VarDecl{Line: kw.Line, Decl: kind, Name: name.Text}
			if p.match(ASSIGN) {
				p.skipLineBreaks()
				init, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				decl.Init = init
			}
			node.Init = decl
		} else {
			x, xerr := p.parseExpression()
			if xerr != nil {
				return nil, xerr
			}
			node.Init = &ExpressionStmt{Line: x.Pos(), X: x}
		}
	}
	if _, err := p.need(SEMI, "expected ';' after for initializer"); err != nil {
		return nil, err
	}
	p.skipLineBreaks()
	// cond
	if !p.check(SEMI) {
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		node.Cond = cond
	}
	if _, err := p.need(SEMI, "expected ';' after for condition"); err != nil {
		return nil, err
	}
	p.skipLineBreaks()
	// post
	if !p.check(RPAREN) {
		post, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		node.Post = &ExpressionStmt{Line: post.Pos(), X: post}
	}
	p.skipLineBreaks()
	if _, err := p.need(RPAREN, "expected ')' after for header"); err != nil {
		return nil, err
	}
	p.skipLineBreaks()
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	node.Body = body
	return node, nil
}

func (p *Parser) parseReturn() (Stmt, error) {
	t := p.advance() // return
	node := &Return{Line: t.Line}
	switch p.peek().Kind {
	case SEMI, NEWLINE, EOF, RBRACE, ELSE:
		// bare return
	default:
		v, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		node.Value = v
	}
	if err := p.endStatement(); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *Parser) parseTry() (Stmt, error) {
	t := p.advance() // try
	p.skipLineBreaks()
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	node := &Try{Line: t.Line, Body: body}
	guard := p.loopGuard("catch clauses", guardSmall)

	for {
		save := p.i
		p.skipNewlines()
		if !p.check(CATCH) {
			p.i = save
			break
		}
		if err := guard(); err != nil {
			return nil, err
		}
		ct := p.advance() // catch
		clause := &CatchClause{Line: ct.Line}
		if p.match(LPAREN) {
			name, err := p.need(IDENT, "expected catch binding name")
			if err != nil {
				return nil, err
			}
			clause.Binding = name.Text
			if p.match(COLON) {
				ty, err := p.need(IDENT, "expected type filter after ':'")
				if err != nil {
					return nil, err
				}
				clause.TypeFilter = ty.Text
			}
			if _, err := p.need(RPAREN, "expected ')' after catch binding"); err != nil {
				return nil, err
			}
		}
		p.skipLineBreaks()
		cb, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		clause.Body = cb
		node.Catches = append(node.Catches, clause)
	}

	save := p.i
	p.skipNewlines()
	if p.match(FINALLY) {
		p.skipLineBreaks()
		fb, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		node.Finally = fb
	} else {
		p.i = save
	}

	if len(node.Catches) == 0 && node.Finally == nil {
		return nil, p.errAt(t, "try requires at least one catch or finally clause")
	}
	return node, nil
}

// ─────────────────────────── expressions ───────────────────────────

// parseExpression is the precedence-climbing entry: assignment level.
func (p *Parser) parseExpression() (Expr, error) {
	left, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	switch p.peek().Kind {
	case ASSIGN, PLUS_ASSIGN, MINUS_ASSIGN, STAR_ASSIGN, SLASH_ASSIGN:
		op := p.advance()
		if !isAssignTarget(left) {
			return nil, p.errAt(op, "invalid assignment target")
		}
		p.skipLineBreaks()
		value, err := p.parseExpression() // right-assoc
		if err != nil {
			return nil, err
		}
		return &Assignment{Line: op.Line, Op: op.Text, Target: left, Value: value}, nil
	}
	return left, nil
}

func isAssignTarget(e Expr) bool {
	switch e.(type) {
	case *Identifier, *Member, *Index:
		return true
	}
	return false
}

func (p *Parser) parseTernary() (Expr, error) {
	cond, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	if !p.match(QUESTION) {
		return cond, nil
	}
	q := p.prev()
	p.skipLineBreaks()
	then, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if _, err := p.need(COLON, "expected ':' in ternary expression"); err != nil {
		return nil, err
	}
	p.skipLineBreaks()
	els, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return &Ternary{Line: q.Line, Cond: cond, Then: then, Else: els}, nil
}

// parsePipeline rewrites `a |> f` into a call with `a` unshifted as the
// first positional argument. The target must already be a call or a bare
// identifier; anything else is a parse error.
func (p *Parser) parsePipeline() (Expr, error) {
	left, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	guard := p.loopGuard("pipeline chain", guardSmall)
	for p.check(PIPE) {
		if err := guard(); err != nil {
			return nil, err
		}
		op := p.advance()
		p.skipLineBreaks()
		target, err := p.parseLogicalOr()
		if err != nil {
			return nil, err
		}
		switch tgt := target.(type) {
		case *Call:
			tgt.Args = append([]Expr{left}, tgt.Args...)
			left = tgt
		case *Identifier:
			left = &Call{Line: op.Line, Callee: tgt, Args: []Expr{left}}
		default:
			return nil, p.errAt(op, "invalid pipeline target")
		}
	}
	return left, nil
}

// binaryLevel parses a left-associative chain of the given operator kinds
// over the next-higher precedence level.
func (p *Parser) binaryLevel(ctx string, next func() (Expr, error), kinds ...TokenType) (Expr, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	guard := p.loopGuard(ctx, guardLarge)
	for {
		matched := false
		for _, k := range kinds {
			if p.check(k) {
				matched = true
				break
			}
		}
		if !matched {
			return left, nil
		}
		if err := guard(); err != nil {
			return nil, err
		}
		op := p.advance()
		p.skipLineBreaks()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &Binary{Line: op.Line, Op: op.Text, Left: left, Right: right}
	}
}

func (p *Parser) parseLogicalOr() (Expr, error) {
	return p.binaryLevel("logical-or chain", p.parseLogicalAnd, OR)
}

func (p *Parser) parseLogicalAnd() (Expr, error) {
	return p.binaryLevel("logical-and chain", p.parseEquality, AND)
}

func (p *Parser) parseEquality() (Expr, error) {
	return p.binaryLevel("equality chain", p.parseComparison, EQ, NEQ)
}

func (p *Parser) parseComparison() (Expr, error) {
	return p.binaryLevel("comparison chain", p.parseAdditive, LESS, LESS_EQ, GREATER, GREATER_EQ)
}

func (p *Parser) parseAdditive() (Expr, error) {
	return p.binaryLevel("additive chain", p.parseMultiplicative, PLUS, MINUS)
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	return p.binaryLevel("multiplicative chain", p.parsePower, STAR, SLASH, PERCENT)
}

// parsePower is right-associative: 2 ** 3 ** 2 == 2 ** (3 ** 2).
func (p *Parser) parsePower() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.check(POWER) {
		op := p.advance()
		p.skipLineBreaks()
		right, err := p.parsePower()
		if err != nil {
			return nil, err
		}
		return &Binary{Line: op.Line, Op: "**", Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	switch p.peek().Kind {
	case BANG, MINUS:
		op := p.advance()
		p.skipLineBreaks()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Line: op.Line, Op: op.Text, Operand: operand}, nil
	case AWAIT:
		op := p.advance()
		p.skipLineBreaks()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Await{Line: op.Line, Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix chains calls, indexing and member access left to right.
func (p *Parser) parsePostfix() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	guard := p.loopGuard("postfix chain", guardMedium)
	for {
		if err := guard(); err != nil {
			return nil, err
		}
		switch p.peek().Kind {
		case LPAREN:
			call, err := p.parseCallArgs(left)
			if err != nil {
				return nil, err
			}
			left = call
		case LBRACKET:
			open := p.advance()
			p.skipLineBreaks()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			p.skipLineBreaks()
			if _, err := p.need(RBRACKET, "expected ']' after index"); err != nil {
				return nil, err
			}
			left = &Index{Line: open.Line, Obj: left, Index: idx}
		case DOT:
			dot := p.advance()
			name, err := p.need(IDENT, "expected property name after '.'")
			if err != nil {
				return nil, err
			}
			left = &Member{Line: dot.Line, Obj: left, Name: name.Text}
		default:
			return left, nil
		}
	}
}

// parseCallArgs parses "(...)" after a callee. An identifier immediately
// followed by ':' is consumed as a named argument and stored apart from the
// positional list.
func (p *Parser) parseCallArgs(callee Expr) (*Call, error) {
	open := p.advance() // '('
	call := &Call{Line: open.Line, Callee: callee}
	guard := p.loopGuard("call arguments", guardMedium)

	p.skipLineBreaks()
	for !p.check(RPAREN) {
		if err := guard(); err != nil {
			return nil, err
		}
		if p.check(IDENT) && p.peekN(1).Kind == COLON {
			name := p.advance()
			p.advance() // ':'
			p.skipLineBreaks()
			v, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			call.Named = append(call.Named, NamedArg{Name: name.Text, Value: v})
		} else {
			v, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, v)
		}
		if !p.match(COMMA) {
			break
		}
		p.skipLineBreaks()
	}
	p.skipLineBreaks()
	if _, err := p.need(RPAREN, "expected ')' after arguments"); err != nil {
		return nil, err
	}
	return call, nil
}

// parsePrimary handles literals, identifiers, grouping, array/object
// literals and lambdas. Charged against the depth ceiling so pathological
// nesting ("((((…") trips the recursion guard, not the Go stack.
func (p *Parser) parsePrimary() (Expr, error) {
	if err := p.enter("expression"); err != nil {
		return nil, err
	}
	defer p.leave()

	t := p.peek()
	switch t.Kind {
	case NUMBER:
		p.advance()
		f, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return nil, p.errAt(t, "invalid number literal %q", t.Text)
		}
		return &Literal{Line: t.Line, Value: NumberValue(f)}, nil

	case STRING:
		p.advance()
		return p.splitInterpolation(t)

	case BOOLEAN:
		p.advance()
		return &Literal{Line: t.Line, Value: BoolValue(t.Text == "true")}, nil

	case NULL:
		p.advance()
		return &Literal{Line: t.Line, Value: NullValue()}, nil

	case IDENT:
		// Single-parameter lambda: `x => ...`
		if p.peekN(1).Kind == ARROW {
			return p.parseLambdaFrom([]Param{{Name: t.Text}}, false)
		}
		p.advance()
		return &Identifier{Line: t.Line, Name: t.Text}, nil

	case ASYNC:
		// async lambda: `async (a, b) => ...` or `async x => ...`
		if p.peekN(1).Kind == IDENT && p.peekN(2).Kind == ARROW {
			p.advance()
			name := p.peek()
			return p.parseLambdaFrom([]Param{{Name: name.Text}}, true)
		}
		if p.peekN(1).Kind == LPAREN {
			save := p.i
			p.advance()
			if lam, ok, err := p.tryParenLambda(true); err != nil {
				return nil, err
			} else if ok {
				return lam, nil
			}
			p.i = save
		}
		return nil, p.errAt(t, "unexpected token 'async'")

	case LPAREN:
		// Speculative lambda parse with cursor rollback: "(a, b) => ..." is
		// indistinguishable from a grouped expression until the arrow.
		if lam, ok, err := p.tryParenLambda(false); err != nil {
			return nil, err
		} else if ok {
			return lam, nil
		}
		p.advance() // '('
		p.skipLineBreaks()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		p.skipLineBreaks()
		if _, err := p.need(RPAREN, "expected ')'"); err != nil {
			return nil, err
		}
		return inner, nil

	case LBRACKET:
		return p.parseArrayLiteral()

	case LBRACE:
		return p.parseDictLiteral()

	case FUNC:
		// Anonymous function expression: `func (a) { ... }`.
		return p.parseFunctionExpr(false)

	case NEW:
		// `new Point(1, 2)` is sugar for calling the class value directly;
		// `new Point` constructs with no arguments.
		p.advance()
		target, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		if _, ok := target.(*Call); ok {
			return target, nil
		}
		return &Call{Line: t.Line, Callee: target}, nil

	case EOF:
		return nil, &ParseError{Line: t.Line, Col: t.Col, Msg: "unexpected end of input", Incomplete: true}
	}
	return nil, p.errAt(t, "unexpected token %s", t.Kind)
}

func (p *Parser) parseFunctionExpr(async bool) (Expr, error) {
	t := p.advance() // func
	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	p.skipLineBreaks()
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &Lambda{Line: t.Line, Params: params, BlockBody: body, Async: async}, nil
}

// tryParenLambda speculatively parses "(a, b) =>" starting at '('. On any
// failure the cursor is restored and (nil, false, nil) returned so the
// caller can re-parse the tokens as a grouped expression.
func (p *Parser) tryParenLambda(async bool) (Expr, bool, error) {
	save := p.i
	open := p.advance() // '('
	var params []Param
	guard := p.loopGuard("lambda parameters", guardSmall)

	p.skipLineBreaks()
	for !p.check(RPAREN) {
		if err := guard(); err != nil {
			return nil, false, err
		}
		if !p.check(IDENT) {
			p.i = save
			return nil, false, nil
		}
		name := p.advance()
		param := Param{Name: name.Text}
		if p.match(COLON) {
			if !p.check(IDENT) {
				p.i = save
				return nil, false, nil
			}
			param.TypeAnnot = p.advance().Text
		}
		if p.match(ASSIGN) {
			p.skipLineBreaks()
			def, err := p.parseTernary()
			if err != nil {
				p.i = save
				return nil, false, nil
			}
			param.Default = def
		}
		params = append(params, param)
		if !p.match(COMMA) {
			break
		}
		p.skipLineBreaks()
	}
	p.skipLineBreaks()
	if !p.match(RPAREN) || !p.check(ARROW) {
		p.i = save
		return nil, false, nil
	}
	_ = open
	lam, err := p.parseLambdaTail(params, async, open.Line)
	if err != nil {
		return nil, false, err
	}
	return lam, true, nil
}

// parseLambdaFrom handles the unparenthesized single-parameter form; the
// parameter token and arrow are still in the stream.
func (p *Parser) parseLambdaFrom(params []Param, async bool) (Expr, error) {
	name := p.advance() // parameter identifier
	return p.parseLambdaTail(params, async, name.Line)
}

// parseLambdaTail consumes "=>" and the lambda body (expression or block).
func (p *Parser) parseLambdaTail(params []Param, async bool, line int) (Expr, error) {
	if _, err := p.need(ARROW, "expected '=>'"); err != nil {
		return nil, err
	}
	p.skipLineBreaks()
	if p.check(LBRACE) {
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &Lambda{Line: line, Params: params, BlockBody: body, Async: async}, nil
	}
	body, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return &Lambda{Line: line, Params: params, Body: body, Async: async}, nil
}

func (p *Parser) parseArrayLiteral() (Expr, error) {
	open := p.advance() // '['
	arr := &Array{Line: open.Line}
	guard := p.loopGuard("array literal", guardLarge)

	p.skipLineBreaks()
	for !p.check(RBRACKET) {
		if err := guard(); err != nil {
			return nil, err
		}
		el, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		arr.Elements = append(arr.Elements, el)
		if !p.match(COMMA) {
			break
		}
		p.skipLineBreaks()
	}
	p.skipLineBreaks()
	if _, err := p.need(RBRACKET, "expected ']' after array elements"); err != nil {
		return nil, err
	}
	return arr, nil
}

func (p *Parser) parseDictLiteral() (Expr, error) {
	open := p.advance() // '{'
	dict := &Dict{Line: open.Line}
	guard := p.loopGuard("object literal", guardLarge)

	p.skipNewlines()
	for !p.check(RBRACE) {
		if err := guard(); err != nil {
			return nil, err
		}
		var key string
		switch p.peek().Kind {
		case IDENT:
			key = p.advance().Text
		case STRING:
			key = unescapeDollars(p.advance().Text)
		default:
			return nil, p.errAt(p.peek(), "expected object key")
		}
		if _, err := p.need(COLON, "expected ':' after object key"); err != nil {
			return nil, err
		}
		p.skipLineBreaks()
		v, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		dict.Entries = append(dict.Entries, DictEntry{Key: key, Value: v})
		if !p.match(COMMA) {
			break
		}
		p.skipNewlines()
	}
	p.skipNewlines()
	if _, err := p.need(RBRACE, "expected '}' after object entries"); err != nil {
		return nil, err
	}
	return dict, nil
}

// ─────────────────────── string interpolation ───────────────────────

// splitInterpolation splits a STRING token into alternating literal parts
// and sub-expression ASTs. Each `${...}` span is lexed and parsed with a
// fresh parser instance, recursively supporting nested interpolation.
// A string with no `${` stays a plain Literal.
func (p *Parser) splitInterpolation(tok Token) (Expr, error) {
	text := tok.Text
	if !strings.Contains(text, "${") {
		return &Literal{Line: tok.Line, Value: StringValue(unescapeDollars(text))}, nil
	}

	node := &Interpolation{Line: tok.Line}
	guard := p.loopGuard("string interpolation", guardMedium)
	var lit strings.Builder

	for i := 0; i < len(text); {
		if err := guard(); err != nil {
			return nil, err
		}
		if text[i] == '$' && i+1 < len(text) && text[i+1] == '{' {
			span, end, ok := interpolationSpan(text, i+1)
			if !ok {
				return nil, &ParseError{Line: tok.Line, Col: tok.Col, Msg: "unterminated interpolation"}
			}
			if lit.Len() > 0 {
				node.Parts = append(node.Parts, &Literal{Line: tok.Line, Value: StringValue(lit.String())})
				lit.Reset()
			}
			sub, err := parseInterpolatedExpr(span, tok.Line)
			if err != nil {
				return nil, err
			}
			node.Parts = append(node.Parts, sub)
			i = end
			continue
		}
		if text[i] == escapedDollar {
			lit.WriteByte('$')
			i++
			continue
		}
		lit.WriteByte(text[i])
		i++
	}
	if lit.Len() > 0 {
		node.Parts = append(node.Parts, &Literal{Line: tok.Line, Value: StringValue(lit.String())})
	}
	return node, nil
}

// unescapeDollars restores `\$` escapes once a STRING token's text no
// longer needs to distinguish them from interpolation openers.
func unescapeDollars(s string) string {
	return strings.ReplaceAll(s, string(escapedDollar), "$")
}

// interpolationSpan returns the expression text inside "{...}" starting at
// the '{' index, the index just past the closing '}', and whether a
// balanced closer was found. Quoted substrings are skipped when balancing.
func interpolationSpan(text string, open int) (string, int, bool) {
	depth := 0
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[open+1 : i], i + 1, true
			}
		case '"', '\'':
			del := text[i]
			i++
			for i < len(text) && text[i] != del {
				if text[i] == '\\' {
					i++
				}
				i++
			}
		}
	}
	return "", 0, false
}

// parseInterpolatedExpr parses one embedded expression with an independent
// lexer/parser pair. The enclosing string's line is added so diagnostics
// still point into the original source.
func parseInterpolatedExpr(src string, baseLine int) (Expr, error) {
	toks, err := Tokenize(src)
	if err != nil {
		le, ok := err.(*LexError)
		if ok {
			return nil, &LexError{Line: baseLine, Col: le.Col, Msg: le.Msg + " (in interpolation)"}
		}
		return nil, err
	}
	sub := NewParser(toks)
	x, err := sub.parseExpression()
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			return nil, &ParseError{Line: baseLine, Col: pe.Col, Msg: pe.Msg + " (in interpolation)"}
		}
		return nil, err
	}
	sub.skipNewlines()
	if !sub.atEnd() {
		g := sub.peek()
		return nil, &ParseError{Line: baseLine, Col: g.Col, Msg: "unexpected trailing tokens in interpolation"}
	}
	shiftLines(x, baseLine-1)
	return x, nil
}

// shiftLines offsets an embedded expression's line numbers to the enclosing
// string literal's line. Interpolation spans never contain raw newlines, so
// a single offset is exact.
func shiftLines(e Expr, delta int) {
	if delta == 0 || e == nil {
		return
	}
	switch n := e.(type) {
	case *Literal:
		n.Line += delta
	case *Identifier:
		n.Line += delta
	case *Binary:
		n.Line += delta
		shiftLines(n.Left, delta)
		shiftLines(n.Right, delta)
	case *Unary:
		n.Line += delta
		shiftLines(n.Operand, delta)
	case *Assignment:
		n.Line += delta
		shiftLines(n.Target, delta)
		shiftLines(n.Value, delta)
	case *Call:
		n.Line += delta
		shiftLines(n.Callee, delta)
		for _, a := range n.Args {
			shiftLines(a, delta)
		}
		for _, a := range n.Named {
			shiftLines(a.Value, delta)
		}
	case *Member:
		n.Line += delta
		shiftLines(n.Obj, delta)
	case *Index:
		n.Line += delta
		shiftLines(n.Obj, delta)
		shiftLines(n.Index, delta)
	case *Array:
		n.Line += delta
		for _, el := range n.Elements {
			shiftLines(el, delta)
		}
	case *Dict:
		n.Line += delta
		for _, en := range n.Entries {
			shiftLines(en.Value, delta)
		}
	case *Lambda:
		n.Line += delta
		for _, p := range n.Params {
			shiftLines(p.Default, delta)
		}
		shiftLines(n.Body, delta)
		shiftBlock(n.BlockBody, delta)
	case *Interpolation:
		n.Line += delta
		for _, part := range n.Parts {
			shiftLines(part, delta)
		}
	case *Ternary:
		n.Line += delta
		shiftLines(n.Cond, delta)
		shiftLines(n.Then, delta)
		shiftLines(n.Else, delta)
	case *Await:
		n.Line += delta
		shiftLines(n.Operand, delta)
	}
}

func shiftBlock(b *Block, delta int) {
	if b == nil {
		return
	}
	b.Line += delta
	for _, st := range b.Stmts {
		shiftStmt(st, delta)
	}
}

// shiftStmt offsets statements reachable from a block-bodied lambda that
// was parsed inside an interpolation span.
func shiftStmt(s Stmt, delta int) {
	if s == nil {
		return
	}
	switch n := s.(type) {
	case *ExpressionStmt:
		n.Line += delta
		shiftLines(n.X, delta)
	case *VarDecl:
		n.Line += delta
		shiftLines(n.Init, delta)
	case *FunctionDecl:
		n.Line += delta
		for _, p := range n.Params {
			shiftLines(p.Default, delta)
		}
		shiftBlock(n.Body, delta)
	case *ClassDecl:
		n.Line += delta
		for _, f := range n.Fields {
			shiftStmt(f, delta)
		}
		for _, m := range n.Methods {
			shiftStmt(m, delta)
		}
	case *If:
		n.Line += delta
		shiftLines(n.Cond, delta)
		shiftBlock(n.Then, delta)
		shiftStmt(n.Else, delta)
	case *While:
		n.Line += delta
		shiftLines(n.Cond, delta)
		shiftBlock(n.Body, delta)
	case *For:
		n.Line += delta
		shiftLines(n.Iter, delta)
		shiftBlock(n.Body, delta)
	case *ForCStyle:
		n.Line += delta
		shiftStmt(n.Init, delta)
		shiftLines(n.Cond, delta)
		shiftStmt(n.Post, delta)
		shiftBlock(n.Body, delta)
	case *Return:
		n.Line += delta
		shiftLines(n.Value, delta)
	case *Break:
		n.Line += delta
	case *Continue:
		n.Line += delta
	case *Try:
		n.Line += delta
		shiftBlock(n.Body, delta)
		for _, c := range n.Catches {
			c.Line += delta
			shiftBlock(c.Body, delta)
		}
		shiftBlock(n.Finally, delta)
	case *Throw:
		n.Line += delta
		shiftLines(n.Value, delta)
	case *Assert:
		n.Line += delta
		shiftLines(n.Cond, delta)
		shiftLines(n.Message, delta)
	case *Import:
		n.Line += delta
	case *Export:
		n.Line += delta
		shiftStmt(n.Decl, delta)
	case *TestDecl:
		n.Line += delta
		shiftBlock(n.Body, delta)
	case *Block:
		shiftBlock(n, delta)
	}
}
