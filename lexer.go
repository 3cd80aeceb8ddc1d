// lexer.go — tokenizer for Buddy Script.
//
// The lexer converts UTF-8 source text into a flat token sequence. Two
// texture decisions matter downstream:
//
//   - NEWLINE is a real token. The parser uses it for implicit statement
//     termination, so the lexer never discards line breaks.
//   - COMMENT is a real token too. The parser filters comments before
//     parsing, but tools (formatters, the REPL) can see them.
//
// String literals decode escape sequences but keep `${...}` interpolation
// spans verbatim in the token text; the parser re-lexes those spans with a
// fresh lexer instance.
package buddyscript

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TokenType represents the kind of token.
type TokenType int

const (
	// Special
	EOF TokenType = iota
	ILLEGAL
	NEWLINE
	COMMENT

	// Punctuation
	LPAREN   // "("
	RPAREN   // ")"
	LBRACE   // "{"
	RBRACE   // "}"
	LBRACKET // "["
	RBRACKET // "]"
	COMMA    // ","
	COLON    // ":"
	SEMI     // ";"
	DOT      // "."
	QUESTION // "?"

	// Operators
	PLUS         // "+"
	MINUS        // "-"
	STAR         // "*"
	SLASH        // "/"
	PERCENT      // "%"
	POWER        // "**"
	ASSIGN       // "="
	PLUS_ASSIGN  // "+="
	MINUS_ASSIGN // "-="
	STAR_ASSIGN  // "*="
	SLASH_ASSIGN // "/="
	EQ           // "=="
	NEQ          // "!="
	LESS         // "<"
	LESS_EQ      // "<="
	GREATER      // ">"
	GREATER_EQ   // ">="
	AND          // "&&"
	OR           // "||"
	BANG         // "!"
	ARROW        // "=>"
	PIPE         // "|>"

	// Literals & identifiers
	IDENT
	NUMBER
	STRING
	BOOLEAN
	NULL

	// Keywords
	FUNC
	ASYNC
	CLASS
	LET
	CONST
	VAR
	IF
	ELSE
	WHILE
	FOR
	IN
	RETURN
	BREAK
	CONTINUE
	TRY
	CATCH
	FINALLY
	THROW
	IMPORT
	EXPORT
	FROM
	AS
	TEST
	ASSERT
	AWAIT
	NEW
	EXTENDS
)

// Token is a lexical token with 1-based line and 0-based column.
// Text holds the decoded value for STRING (interpolation spans verbatim),
// the raw lexeme for everything else.
type Token struct {
	Kind TokenType
	Text string
	Line int
	Col  int
}

var keywords = map[string]TokenType{
	"func":     FUNC,
	"function": FUNC, // long-form alias, identical semantics
	"async":    ASYNC,
	"class":    CLASS,
	"let":      LET,
	"const":    CONST,
	"var":      VAR,
	"if":       IF,
	"else":     ELSE,
	"while":    WHILE,
	"for":      FOR,
	"in":       IN,
	"return":   RETURN,
	"break":    BREAK,
	"continue": CONTINUE,
	"try":      TRY,
	"catch":    CATCH,
	"finally":  FINALLY,
	"throw":    THROW,
	"import":   IMPORT,
	"export":   EXPORT,
	"from":     FROM,
	"as":       AS,
	"test":     TEST,
	"assert":   ASSERT,
	"await":    AWAIT,
	"new":      NEW,
	"extends":  EXTENDS,
	"true":     BOOLEAN,
	"false":    BOOLEAN,
	"null":     NULL,
}

// escapedDollar marks a `\$` escape inside STRING token text so that
// interpolation splitting can tell it apart from a '$' that opens a
// `${...}` span. The parser restores it to a plain '$'.
const escapedDollar = '\x01'

// Lexer scans a Buddy Script source string into tokens.
type Lexer struct {
	src    string
	start  int // start index of current token
	cur    int // current index
	line   int // 1-based
	col    int // 0-based column within line
	tokens []Token

	// precise token start position
	tokStartLine int
	tokStartCol  int
}

// NewLexer creates a new lexer for the given source.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src, line: 1}
}

// Tokenize scans the whole source in one shot.
func Tokenize(src string) ([]Token, error) {
	return NewLexer(src).Scan()
}

func (l *Lexer) isAtEnd() bool { return l.cur >= len(l.src) }

func (l *Lexer) peek() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	return l.src[l.cur], true
}

func (l *Lexer) peekN(n int) (byte, bool) {
	idx := l.cur + n
	if idx >= len(l.src) {
		return 0, false
	}
	return l.src[idx], true
}

func (l *Lexer) advance() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	ch := l.src[l.cur]
	l.cur++
	if ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return ch, true
}

func (l *Lexer) addToken(tt TokenType, text string) Token {
	tok := Token{
		Kind: tt,
		Text: text,
		Line: l.tokStartLine,
		Col:  l.tokStartCol,
	}
	l.tokens = append(l.tokens, tok)
	l.start = l.cur
	return tok
}

func (l *Lexer) lexeme() string { return l.src[l.start:l.cur] }

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' }
func isAlphaNum(b byte) bool {
	return isAlpha(b) || isDigit(b)
}

func (l *Lexer) err(msg string) error {
	return &LexError{Line: l.line, Col: l.col, Msg: msg}
}

func (l *Lexer) errAt(line, col int, msg string) error {
	return &LexError{Line: line, Col: col, Msg: msg}
}

// skipBlanks eats spaces, tabs and carriage returns. Newlines are tokens and
// are never skipped here.
func (l *Lexer) skipBlanks() {
	for !l.isAtEnd() {
		ch, _ := l.peek()
		if ch == ' ' || ch == '\t' || ch == '\r' {
			l.advance()
			l.start = l.cur
			continue
		}
		return
	}
}

// scanString decodes a quoted literal. Escapes are decoded; a `${`
// introduces an interpolation span copied verbatim (including the closing
// brace) so the parser can re-lex it later. Nested braces and nested string
// quotes inside the span are honored when looking for the matching `}`.
func (l *Lexer) scanString() (string, error) {
	del := l.src[l.start]
	startLine, startCol := l.tokStartLine, l.tokStartCol
	l.advance() // consume the delimiter

	var out strings.Builder
	for !l.isAtEnd() {
		ch, _ := l.advance()
		if ch == del {
			return out.String(), nil
		}
		if ch == '\n' {
			return "", l.errAt(startLine, startCol, "unterminated string literal")
		}
		if ch == '\\' {
			esc, ok := l.advance()
			if !ok {
				return "", l.errAt(startLine, startCol, "unterminated string literal")
			}
			switch esc {
			case '"':
				out.WriteByte('"')
			case '\'':
				out.WriteByte('\'')
			case '\\':
				out.WriteByte('\\')
			case 'n':
				out.WriteByte('\n')
			case 'r':
				out.WriteByte('\r')
			case 't':
				out.WriteByte('\t')
			case '0':
				out.WriteByte(0)
			case '$':
				out.WriteByte(escapedDollar)
			default:
				return "", l.err(fmt.Sprintf("invalid escape sequence: \\%c", esc))
			}
			continue
		}
		if ch == '$' {
			if b, ok := l.peek(); ok && b == '{' {
				span, err := l.copyInterpolationSpan(startLine, startCol)
				if err != nil {
					return "", err
				}
				out.WriteByte('$')
				out.WriteString(span)
				continue
			}
		}
		out.WriteByte(ch)
	}
	return "", l.errAt(startLine, startCol, "unterminated string literal")
}

// copyInterpolationSpan copies "{...}" verbatim, balancing braces and
// skipping over quoted substrings so a nested string may contain braces.
// The caller has already consumed the '$'.
func (l *Lexer) copyInterpolationSpan(startLine, startCol int) (string, error) {
	var out strings.Builder
	l.advance() // '{'
	out.WriteByte('{')
	depth := 1
	for !l.isAtEnd() {
		ch, _ := l.advance()
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				out.WriteByte('}')
				return out.String(), nil
			}
		case '"', '\'':
			out.WriteByte(ch)
			if err := l.copyQuoted(&out, ch, startLine, startCol); err != nil {
				return "", err
			}
			continue
		}
		out.WriteByte(ch)
	}
	return "", l.errAt(startLine, startCol, "unterminated interpolation")
}

// copyQuoted copies a quoted substring verbatim (escapes included) up to and
// including the closing quote.
func (l *Lexer) copyQuoted(out *strings.Builder, del byte, startLine, startCol int) error {
	for !l.isAtEnd() {
		ch, _ := l.advance()
		out.WriteByte(ch)
		if ch == '\\' {
			if esc, ok := l.advance(); ok {
				out.WriteByte(esc)
			}
			continue
		}
		if ch == del {
			return nil
		}
	}
	return l.errAt(startLine, startCol, "unterminated interpolation")
}

// scanNumber parses an integer or float lexeme: digits, optional fraction,
// optional exponent. The parser converts the text with strconv.
func (l *Lexer) scanNumber() {
	for {
		b, ok := l.peek()
		if !ok || !isDigit(b) {
			break
		}
		l.advance()
	}
	if b, ok := l.peek(); ok && b == '.' {
		if b2, ok2 := l.peekN(1); ok2 && isDigit(b2) {
			l.advance() // '.'
			for {
				b, ok := l.peek()
				if !ok || !isDigit(b) {
					break
				}
				l.advance()
			}
		}
	}
	if b, ok := l.peek(); ok && (b == 'e' || b == 'E') {
		save := l.cur
		l.advance()
		if b2, ok := l.peek(); ok && (b2 == '+' || b2 == '-') {
			l.advance()
		}
		if b3, ok := l.peek(); ok && isDigit(b3) {
			for {
				b4, ok := l.peek()
				if !ok || !isDigit(b4) {
					break
				}
				l.advance()
			}
		} else {
			l.cur = save
		}
	}
}

func (l *Lexer) scanIdentifier() string {
	for {
		b, ok := l.peek()
		if !ok || !isAlphaNum(b) {
			break
		}
		l.advance()
	}
	return l.lexeme()
}

// scanLineComment eats "//" to end of line (newline not consumed).
func (l *Lexer) scanLineComment() string {
	for {
		b, ok := l.peek()
		if !ok || b == '\n' {
			return l.lexeme()
		}
		l.advance()
	}
}

// scanBlockComment eats "/* ... */", newlines included.
func (l *Lexer) scanBlockComment() (string, error) {
	startLine, startCol := l.tokStartLine, l.tokStartCol
	for !l.isAtEnd() {
		ch, _ := l.advance()
		if ch == '*' {
			if b, ok := l.peek(); ok && b == '/' {
				l.advance()
				return l.lexeme(), nil
			}
		}
	}
	return "", l.errAt(startLine, startCol, "unterminated block comment")
}

// match consumes the next byte when it equals b.
func (l *Lexer) match(b byte) bool {
	if nb, ok := l.peek(); ok && nb == b {
		l.advance()
		return true
	}
	return false
}

func (l *Lexer) scanToken() (Token, error) {
	l.skipBlanks()
	l.tokStartLine = l.line
	l.tokStartCol = l.col
	l.start = l.cur

	if l.isAtEnd() {
		return l.addToken(EOF, ""), nil
	}

	ch, _ := l.advance()

	switch ch {
	case '\n':
		return l.addToken(NEWLINE, "\n"), nil
	case '(':
		return l.addToken(LPAREN, "("), nil
	case ')':
		return l.addToken(RPAREN, ")"), nil
	case '{':
		return l.addToken(LBRACE, "{"), nil
	case '}':
		return l.addToken(RBRACE, "}"), nil
	case '[':
		return l.addToken(LBRACKET, "["), nil
	case ']':
		return l.addToken(RBRACKET, "]"), nil
	case ',':
		return l.addToken(COMMA, ","), nil
	case ':':
		return l.addToken(COLON, ":"), nil
	case ';':
		return l.addToken(SEMI, ";"), nil
	case '?':
		return l.addToken(QUESTION, "?"), nil
	case '+':
		if l.match('=') {
			return l.addToken(PLUS_ASSIGN, "+="), nil
		}
		return l.addToken(PLUS, "+"), nil
	case '-':
		if l.match('=') {
			return l.addToken(MINUS_ASSIGN, "-="), nil
		}
		return l.addToken(MINUS, "-"), nil
	case '*':
		if l.match('*') {
			return l.addToken(POWER, "**"), nil
		}
		if l.match('=') {
			return l.addToken(STAR_ASSIGN, "*="), nil
		}
		return l.addToken(STAR, "*"), nil
	case '/':
		if b, ok := l.peek(); ok && b == '/' {
			text := l.scanLineComment()
			return l.addToken(COMMENT, text), nil
		}
		if b, ok := l.peek(); ok && b == '*' {
			l.advance()
			text, err := l.scanBlockComment()
			if err != nil {
				return Token{}, err
			}
			return l.addToken(COMMENT, text), nil
		}
		if l.match('=') {
			return l.addToken(SLASH_ASSIGN, "/="), nil
		}
		return l.addToken(SLASH, "/"), nil
	case '%':
		return l.addToken(PERCENT, "%"), nil
	case '=':
		if l.match('=') {
			return l.addToken(EQ, "=="), nil
		}
		if l.match('>') {
			return l.addToken(ARROW, "=>"), nil
		}
		return l.addToken(ASSIGN, "="), nil
	case '!':
		if l.match('=') {
			return l.addToken(NEQ, "!="), nil
		}
		return l.addToken(BANG, "!"), nil
	case '<':
		if l.match('=') {
			return l.addToken(LESS_EQ, "<="), nil
		}
		return l.addToken(LESS, "<"), nil
	case '>':
		if l.match('=') {
			return l.addToken(GREATER_EQ, ">="), nil
		}
		return l.addToken(GREATER, ">"), nil
	case '&':
		if l.match('&') {
			return l.addToken(AND, "&&"), nil
		}
		return Token{}, l.err("unexpected character: '&' (did you mean '&&'?)")
	case '|':
		if l.match('|') {
			return l.addToken(OR, "||"), nil
		}
		if l.match('>') {
			return l.addToken(PIPE, "|>"), nil
		}
		return Token{}, l.err("unexpected character: '|' (did you mean '||' or '|>'?)")
	case '.':
		return l.addToken(DOT, "."), nil
	}

	if ch == '"' || ch == '\'' {
		l.cur = l.start
		l.col = l.tokStartCol
		l.line = l.tokStartLine
		text, err := l.scanString()
		if err != nil {
			return Token{}, err
		}
		return l.addToken(STRING, text), nil
	}

	if isDigit(ch) {
		l.scanNumber()
		return l.addToken(NUMBER, l.lexeme()), nil
	}

	if isAlpha(ch) {
		lex := l.scanIdentifier()
		if tt, ok := keywords[lex]; ok {
			return l.addToken(tt, lex), nil
		}
		return l.addToken(IDENT, lex), nil
	}

	if ch < ' ' {
		return Token{}, l.err(fmt.Sprintf("unsupported control character 0x%02x", ch))
	}
	if ch >= utf8.RuneSelf {
		l.cur--
		r, size := utf8.DecodeRuneInString(l.src[l.cur:])
		l.cur += size
		if r == utf8.RuneError && size == 1 {
			return Token{}, l.err("invalid UTF-8 in source")
		}
		return Token{}, l.err(fmt.Sprintf("unexpected character: %q", r))
	}
	return Token{}, l.err(fmt.Sprintf("unexpected character: %q", ch))
}

// Scan tokenizes the entire source and returns tokens (EOF included).
func (l *Lexer) Scan() ([]Token, error) {
	for {
		tok, err := l.scanToken()
		if err != nil {
			return nil, err
		}
		if tok.Kind == EOF {
			return l.tokens, nil
		}
	}
}

// String names a token type for diagnostics.
func (tt TokenType) String() string {
	if s, ok := tokenNames[tt]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(tt))
}

var tokenNames = map[TokenType]string{
	EOF: "end of input", ILLEGAL: "illegal", NEWLINE: "newline", COMMENT: "comment",
	LPAREN: "'('", RPAREN: "')'", LBRACE: "'{'", RBRACE: "'}'",
	LBRACKET: "'['", RBRACKET: "']'", COMMA: "','", COLON: "':'", SEMI: "';'",
	DOT: "'.'", QUESTION: "'?'",
	PLUS: "'+'", MINUS: "'-'", STAR: "'*'", SLASH: "'/'", PERCENT: "'%'",
	POWER: "'**'", ASSIGN: "'='", PLUS_ASSIGN: "'+='", MINUS_ASSIGN: "'-='",
	STAR_ASSIGN: "'*='", SLASH_ASSIGN: "'/='", EQ: "'=='", NEQ: "'!='",
	LESS: "'<'", LESS_EQ: "'<='", GREATER: "'>'", GREATER_EQ: "'>='",
	AND: "'&&'", OR: "'||'", BANG: "'!'", ARROW: "'=>'", PIPE: "'|>'",
	IDENT: "identifier", NUMBER: "number", STRING: "string",
	BOOLEAN: "boolean", NULL: "'null'",
	FUNC: "'func'", ASYNC: "'async'", CLASS: "'class'", LET: "'let'",
	CONST: "'const'", VAR: "'var'", IF: "'if'", ELSE: "'else'",
	WHILE: "'while'", FOR: "'for'", IN: "'in'", RETURN: "'return'",
	BREAK: "'break'", CONTINUE: "'continue'", TRY: "'try'", CATCH: "'catch'",
	FINALLY: "'finally'", THROW: "'throw'", IMPORT: "'import'",
	EXPORT: "'export'", FROM: "'from'", AS: "'as'", TEST: "'test'",
	ASSERT: "'assert'", AWAIT: "'await'", NEW: "'new'", EXTENDS: "'extends'",
}
