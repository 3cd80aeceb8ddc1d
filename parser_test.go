package buddyscript

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	prog, err := ParseSource(src)
	require.NoError(t, err)
	return prog
}

// firstExpr unwraps the first statement as an expression statement.
func firstExpr(t *testing.T, src string) Expr {
	t.Helper()
	prog := mustParse(t, src)
	require.NotEmpty(t, prog.Stmts)
	es, ok := prog.Stmts[0].(*ExpressionStmt)
	require.True(t, ok, "statement is %s, not an expression", prog.Stmts[0].Kind())
	return es.X
}

func TestParseDeterministic(t *testing.T) {
	src := `
func fib(n) {
	if n < 2 { return n }
	return fib(n - 1) + fib(n - 2)
}
let xs = map(range(10), x => fib(x))
print("${xs}")
`
	a := mustParse(t, src)
	b := mustParse(t, src)
	assert.True(t, reflect.DeepEqual(a, b), "repeated parses differ")
}

func TestPrecedenceMultiplyInsideAdd(t *testing.T) {
	add, ok := firstExpr(t, "1 + 2 * 3").(*Binary)
	require.True(t, ok)
	assert.Equal(t, "+", add.Op)
	mul, ok := add.Right.(*Binary)
	require.True(t, ok, "right operand of + is %s", add.Right.Kind())
	assert.Equal(t, "*", mul.Op)
}

func TestPowerRightAssociative(t *testing.T) {
	pow, ok := firstExpr(t, "2 ** 3 ** 2").(*Binary)
	require.True(t, ok)
	assert.Equal(t, "**", pow.Op)
	_, leftIsLit := pow.Left.(*Literal)
	assert.True(t, leftIsLit, "2 ** (3 ** 2) expected, got nesting on the left")
	inner, ok := pow.Right.(*Binary)
	require.True(t, ok)
	assert.Equal(t, "**", inner.Op)
}

func TestTernaryBindsAboveAssignment(t *testing.T) {
	prog := mustParse(t, "let x = true ? 1 : 2")
	decl, ok := prog.Stmts[0].(*VarDecl)
	require.True(t, ok)
	_, isTernary := decl.Init.(*Ternary)
	assert.True(t, isTernary)
}

func TestPipelineRewrite(t *testing.T) {
	// Bare identifier target becomes a call with the piped value.
	call, ok := firstExpr(t, "5 |> double").(*Call)
	require.True(t, ok)
	callee, ok := call.Callee.(*Identifier)
	require.True(t, ok)
	assert.Equal(t, "double", callee.Name)
	require.Len(t, call.Args, 1)
	lit, ok := call.Args[0].(*Literal)
	require.True(t, ok)
	assert.Equal(t, 5.0, lit.Value.Number())

	// Existing call target gets the piped value unshifted.
	call, ok = firstExpr(t, `xs |> join(", ")`).(*Call)
	require.True(t, ok)
	require.Len(t, call.Args, 2)
	_, ok = call.Args[0].(*Identifier)
	assert.True(t, ok, "piped value should be the first argument")

	// Chains associate left to right.
	call, ok = firstExpr(t, "x |> f |> g").(*Call)
	require.True(t, ok)
	callee, ok = call.Callee.(*Identifier)
	require.True(t, ok)
	assert.Equal(t, "g", callee.Name)

	_, err := ParseSource("5 |> 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pipeline target")

	// A bare member access is not a call target; it must be invoked.
	_, err = ParseSource("x |> obj.f")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pipeline target")

	// Invoked member works: the member call gains x as first argument.
	call, ok = firstExpr(t, "x |> obj.f()").(*Call)
	require.True(t, ok)
	_, ok = call.Callee.(*Member)
	require.True(t, ok)
	require.Len(t, call.Args, 1)
}

func TestRecursionGuardOnDeepNesting(t *testing.T) {
	src := strings.Repeat("(", 600)
	_, err := ParseSource(src)
	require.Error(t, err)
	var limit *RecursionLimitError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, maxParseDepth, limit.Limit)
}

func TestLoopGuardOnAdversarialClassBody(t *testing.T) {
	var b strings.Builder
	b.WriteString("class Huge {\n")
	for i := 0; i <= guardMedium; i++ {
		b.WriteString("let f = 1\n")
	}
	b.WriteString("}\n")
	_, err := ParseSource(b.String())
	require.Error(t, err)
	var timeout *LoopTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Contains(t, timeout.Context, "class body")
}

func TestSynchronizeRecoversFollowingStatements(t *testing.T) {
	prog, err := ParseSource("let = 5\nlet ok = 1\nlet also = 2")
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	// Recovery still yields the statements after the bad one.
	require.NotNil(t, prog)
	assert.Len(t, prog.Stmts, 2)
}

func TestInterpolationSplitsIntoParts(t *testing.T) {
	interp, ok := firstExpr(t, `"a${1+1}b"`).(*Interpolation)
	require.True(t, ok)
	require.Len(t, interp.Parts, 3)

	lead, ok := interp.Parts[0].(*Literal)
	require.True(t, ok)
	assert.Equal(t, "a", lead.Value.Str())

	mid, ok := interp.Parts[1].(*Binary)
	require.True(t, ok)
	assert.Equal(t, "+", mid.Op)

	tail, ok := interp.Parts[2].(*Literal)
	require.True(t, ok)
	assert.Equal(t, "b", tail.Value.Str())
}

func TestInterpolationShiftsLambdaBlockLines(t *testing.T) {
	// A block-bodied lambda inside a span must report the enclosing
	// string's line, not line 1 of the sub-parse.
	prog, err := ParseSource("let a = 1\nlet b = 2\nlet s = \"${f(() => { throw 1 })}\"")
	require.NoError(t, err)
	require.Len(t, prog.Stmts, 3)

	decl := prog.Stmts[2].(*VarDecl)
	interp, ok := decl.Init.(*Interpolation)
	require.True(t, ok)
	call := interp.Parts[0].(*Call)
	lam := call.Args[0].(*Lambda)
	require.NotNil(t, lam.BlockBody)
	assert.Equal(t, 3, lam.Line)
	thr := lam.BlockBody.Stmts[0].(*Throw)
	assert.Equal(t, 3, thr.Line)
}

func TestInterpolationErrorsMentionContext(t *testing.T) {
	_, err := ParseSource(`"x${1 +}y"`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interpolation")
}

func TestPlainStringStaysLiteral(t *testing.T) {
	lit, ok := firstExpr(t, `"hello"`).(*Literal)
	require.True(t, ok)
	assert.Equal(t, "hello", lit.Value.Str())
}

func TestNamedArguments(t *testing.T) {
	call, ok := firstExpr(t, "f(x: 1, 2)").(*Call)
	require.True(t, ok)
	require.Len(t, call.Named, 1)
	assert.Equal(t, "x", call.Named[0].Name)
	require.Len(t, call.Args, 1)
	lit, ok := call.Args[0].(*Literal)
	require.True(t, ok)
	assert.Equal(t, 2.0, lit.Value.Number())
}

func TestLambdaForms(t *testing.T) {
	lam, ok := firstExpr(t, "x => x + 1").(*Lambda)
	require.True(t, ok)
	require.Len(t, lam.Params, 1)
	assert.Equal(t, "x", lam.Params[0].Name)
	assert.NotNil(t, lam.Body)

	lam, ok = firstExpr(t, "(a, b) => a * b").(*Lambda)
	require.True(t, ok)
	assert.Len(t, lam.Params, 2)

	lam, ok = firstExpr(t, "(a, b) => { return a }").(*Lambda)
	require.True(t, ok)
	assert.NotNil(t, lam.BlockBody)

	lam, ok = firstExpr(t, "async x => x").(*Lambda)
	require.True(t, ok)
	assert.True(t, lam.Async)

	// Grouping is not a lambda.
	_, ok = firstExpr(t, "(x)").(*Identifier)
	assert.True(t, ok)

	_, ok = firstExpr(t, "(1 + 2) * 3").(*Binary)
	assert.True(t, ok)
}

func TestStatementTermination(t *testing.T) {
	assert.Len(t, mustParse(t, "let a = 1\nlet b = 2").Stmts, 2)
	assert.Len(t, mustParse(t, "let a = 1; let b = 2").Stmts, 2)

	// A trailing operator continues across the newline.
	prog := mustParse(t, "let a = 1 +\n2")
	require.Len(t, prog.Stmts, 1)
	decl := prog.Stmts[0].(*VarDecl)
	_, isBinary := decl.Init.(*Binary)
	assert.True(t, isBinary)

	// A newline between expressions separates statements.
	assert.Len(t, mustParse(t, "a\nb").Stmts, 2)

	// `}` and `else` close a statement without a terminator.
	mustParse(t, "if x { y } else { z }")
	mustParse(t, "func f() { return 1 }")
}

func TestIncompleteInputFlagged(t *testing.T) {
	for _, src := range []string{
		"func f() {",
		"let x = ",
		"if a {",
		"[1, 2,",
	} {
		_, err := ParseSource(src)
		require.Error(t, err, src)
		assert.True(t, IsIncomplete(err), "%s should read as incomplete: %v", src, err)
	}
	_, err := ParseSource("let = 5")
	require.Error(t, err)
	assert.False(t, IsIncomplete(err))
}

func TestInvalidAssignmentTarget(t *testing.T) {
	_, err := ParseSource("1 = 2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid assignment target")
}

func TestForVariants(t *testing.T) {
	prog := mustParse(t, "for x in xs { print(x) }")
	_, ok := prog.Stmts[0].(*For)
	assert.True(t, ok)

	prog = mustParse(t, "for (x in xs) { print(x) }")
	_, ok = prog.Stmts[0].(*For)
	assert.True(t, ok)

	prog = mustParse(t, "for (let i = 0; i < 10; i += 1) { print(i) }")
	loop, ok := prog.Stmts[0].(*ForCStyle)
	require.True(t, ok)
	assert.NotNil(t, loop.Init)
	assert.NotNil(t, loop.Cond)
	assert.NotNil(t, loop.Post)
}

func TestTryCatchShapes(t *testing.T) {
	prog := mustParse(t, `
try {
	risky()
} catch (e: RuntimeError) {
	print(e)
} catch (e) {
	print(e)
} finally {
	cleanup()
}
`)
	try, ok := prog.Stmts[0].(*Try)
	require.True(t, ok)
	require.Len(t, try.Catches, 2)
	assert.Equal(t, "RuntimeError", try.Catches[0].TypeFilter)
	assert.Equal(t, "", try.Catches[1].TypeFilter)
	assert.NotNil(t, try.Finally)

	_, err := ParseSource("try { x() }")
	require.Error(t, err, "try needs a catch or finally")
}

func TestClassDecl(t *testing.T) {
	prog := mustParse(t, `
class Point extends Base {
	let x = 0
	let y = 0
	func init(x, y) {
		this.x = x
		this.y = y
	}
	func norm() {
		return math.sqrt(this.x ** 2 + this.y ** 2)
	}
}
`)
	cls, ok := prog.Stmts[0].(*ClassDecl)
	require.True(t, ok)
	assert.Equal(t, "Point", cls.Name)
	assert.Equal(t, "Base", cls.Base)
	assert.Len(t, cls.Fields, 2)
	assert.Len(t, cls.Methods, 2)
}

func TestNewSugar(t *testing.T) {
	call, ok := firstExpr(t, "new Point(1, 2)").(*Call)
	require.True(t, ok)
	assert.Len(t, call.Args, 2)

	call, ok = firstExpr(t, "new Point").(*Call)
	require.True(t, ok)
	assert.Empty(t, call.Args)
}

func TestImportForms(t *testing.T) {
	prog := mustParse(t, `import "lib/util.bs" as util`)
	imp, ok := prog.Stmts[0].(*Import)
	require.True(t, ok)
	assert.Equal(t, "util", imp.Name)
	assert.Equal(t, "lib/util.bs", imp.Path)

	prog = mustParse(t, `import util from "lib/util.bs"`)
	imp, ok = prog.Stmts[0].(*Import)
	require.True(t, ok)
	assert.Equal(t, "util", imp.Name)
}

func TestTestAndAssertDecls(t *testing.T) {
	prog := mustParse(t, `
test "addition works" {
	assert 1 + 1 == 2, "math is broken"
}
`)
	td, ok := prog.Stmts[0].(*TestDecl)
	require.True(t, ok)
	assert.Equal(t, "addition works", td.Name)
	a, ok := td.Body.Stmts[0].(*Assert)
	require.True(t, ok)
	assert.NotNil(t, a.Message)
}

func TestParameterDefaultsAndAnnotations(t *testing.T) {
	prog := mustParse(t, "func greet(name: String, punct = \"!\") { return name + punct }")
	fn, ok := prog.Stmts[0].(*FunctionDecl)
	require.True(t, ok)
	require.Len(t, fn.Params, 2)
	assert.Equal(t, "String", fn.Params[0].TypeAnnot)
	assert.NotNil(t, fn.Params[1].Default)
}
