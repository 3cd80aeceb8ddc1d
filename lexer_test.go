package buddyscript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTokenize(t *testing.T, src string) []Token {
	t.Helper()
	toks, err := Tokenize(src)
	require.NoError(t, err)
	return toks
}

// kindsOf drops NEWLINE/COMMENT/EOF noise for shape assertions.
func kindsOf(toks []Token) []TokenType {
	var out []TokenType
	for _, tok := range toks {
		switch tok.Kind {
		case NEWLINE, COMMENT, EOF:
			continue
		}
		out = append(out, tok.Kind)
	}
	return out
}

func TestTokenizeBasics(t *testing.T) {
	toks := mustTokenize(t, `let x = 41 + 1.5`)
	assert.Equal(t, []TokenType{LET, IDENT, ASSIGN, NUMBER, PLUS, NUMBER}, kindsOf(toks))
}

func TestTokenizeOperators(t *testing.T) {
	cases := []struct {
		src  string
		want TokenType
	}{
		{"+=", PLUS_ASSIGN},
		{"-=", MINUS_ASSIGN},
		{"*=", STAR_ASSIGN},
		{"/=", SLASH_ASSIGN},
		{"==", EQ},
		{"!=", NEQ},
		{"<=", LESS_EQ},
		{">=", GREATER_EQ},
		{"&&", AND},
		{"||", OR},
		{"**", POWER},
		{"=>", ARROW},
		{"|>", PIPE},
	}
	for _, tc := range cases {
		toks := mustTokenize(t, tc.src)
		require.NotEmpty(t, toks, tc.src)
		assert.Equal(t, tc.want, toks[0].Kind, tc.src)
	}
}

func TestTokenizeKeywordsAndAliases(t *testing.T) {
	toks := mustTokenize(t, "func function async class let const var test assert await")
	assert.Equal(t, []TokenType{FUNC, FUNC, ASYNC, CLASS, LET, CONST, VAR, TEST, ASSERT, AWAIT}, kindsOf(toks))

	toks = mustTokenize(t, "true false null")
	assert.Equal(t, []TokenType{BOOLEAN, BOOLEAN, NULL}, kindsOf(toks))
}

func TestTokenizeNewlinesAreTokens(t *testing.T) {
	toks := mustTokenize(t, "a\nb")
	require.Len(t, toks, 4) // a, NEWLINE, b, EOF
	assert.Equal(t, NEWLINE, toks[1].Kind)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[2].Line)
}

func TestTokenizeComments(t *testing.T) {
	toks := mustTokenize(t, "a // trailing\n/* block\nstill */ b")
	assert.Equal(t, []TokenType{IDENT, IDENT}, kindsOf(toks))

	// A block comment still advances line tracking for what follows.
	var b Token
	for _, tok := range toks {
		if tok.Kind == IDENT && tok.Text == "b" {
			b = tok
		}
	}
	assert.Equal(t, 3, b.Line)
}

func TestTokenizeStringEscapes(t *testing.T) {
	toks := mustTokenize(t, `"a\n\t\"q\"\\"`)
	require.Equal(t, STRING, toks[0].Kind)
	assert.Equal(t, "a\n\t\"q\"\\", toks[0].Text)
}

func TestTokenizeInterpolationKeptVerbatim(t *testing.T) {
	// The ${...} span survives untouched in the token text; splitting
	// happens in the parser.
	toks := mustTokenize(t, `"a${1 + 1}b"`)
	require.Equal(t, STRING, toks[0].Kind)
	assert.Equal(t, "a${1 + 1}b", toks[0].Text)

	// Nested braces inside the span stay balanced.
	toks = mustTokenize(t, `"x${ {a: 1} }y"`)
	assert.Equal(t, "x${ {a: 1} }y", toks[0].Text)
}

func TestTokenizeEscapedDollarMarked(t *testing.T) {
	// An escaped dollar must stay distinguishable from a real span
	// opener until interpolation splitting has run.
	toks := mustTokenize(t, `"\${x}"`)
	require.Equal(t, STRING, toks[0].Kind)
	assert.Equal(t, string(escapedDollar)+"{x}", toks[0].Text)

	// Escaped dollar next to a live span.
	toks = mustTokenize(t, `"\$${x}"`)
	assert.Equal(t, string(escapedDollar)+"${x}", toks[0].Text)
}

func TestTokenizeErrors(t *testing.T) {
	cases := []struct {
		src     string
		wantMsg string
	}{
		{`"unterminated`, "unterminated string"},
		{"/* open", "unterminated block comment"},
		{"a & b", "'&'"},
		{"a | b", "'|'"},
	}
	for _, tc := range cases {
		_, err := Tokenize(tc.src)
		require.Error(t, err, tc.src)
		var lex *LexError
		require.ErrorAs(t, err, &lex, tc.src)
		assert.True(t, strings.Contains(err.Error(), tc.wantMsg), "%s: %v", tc.src, err)
	}
}

func TestTokenizeLineAndColumnTracking(t *testing.T) {
	toks := mustTokenize(t, "let a = 1\n  let b = 2")
	var second Token
	for _, tok := range toks {
		if tok.Kind == LET && tok.Line == 2 {
			second = tok
		}
	}
	require.Equal(t, LET, second.Kind)
	assert.Equal(t, 2, second.Col)
}
