package buddyscript

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runScript parses and runs src, returning the last expression value and
// everything printed to stdout.
func runScript(t *testing.T, src string, opts Options) (Value, string, error) {
	t.Helper()
	var out bytes.Buffer
	opts.Stdout = &out
	if opts.Stderr == nil {
		opts.Stderr = &out
	}
	if opts.Workdir == "" {
		opts.Workdir = t.TempDir()
	}
	prog, err := ParseSource(src)
	require.NoError(t, err)
	v, rerr := New(StandardRegistry(), opts).Run(context.Background(), prog)
	return v, out.String(), rerr
}

func evalValue(t *testing.T, src string) Value {
	t.Helper()
	v, _, err := runScript(t, src, Options{})
	require.NoError(t, err)
	return v
}

func evalNumber(t *testing.T, src string) float64 {
	t.Helper()
	v := evalValue(t, src)
	require.Equal(t, TagNumber, v.Tag, "got %s", v.Display())
	return v.Number()
}

func TestArithmetic(t *testing.T) {
	assert.Equal(t, 7.0, evalNumber(t, "1 + 2 * 3"))
	assert.Equal(t, 512.0, evalNumber(t, "2 ** 3 ** 2"))
	assert.Equal(t, 1.0, evalNumber(t, "10 % 3"))
	assert.Equal(t, 2.5, evalNumber(t, "5 / 2"))
	assert.Equal(t, -4.0, evalNumber(t, "-(2 + 2)"))
}

func TestStringConcatAndInterpolation(t *testing.T) {
	v := evalValue(t, `"a" + 1`)
	assert.Equal(t, "a1", v.Str())

	v = evalValue(t, `"a${1+1}b"`)
	assert.Equal(t, "a2b", v.Str())

	v = evalValue(t, `let name = "world"
"hello ${name}!"`)
	assert.Equal(t, "hello world!", v.Str())

	// Nested interpolation.
	v = evalValue(t, `let x = 2
"${"${x * x}"}"`)
	assert.Equal(t, "4", v.Str())

	// An escaped dollar suppresses interpolation.
	v = evalValue(t, `let x = 1
"\${x}"`)
	assert.Equal(t, "${x}", v.Str())

	v = evalValue(t, `let x = 1
"\$${x}"`)
	assert.Equal(t, "$1", v.Str())

	v = evalValue(t, `"price: \$5"`)
	assert.Equal(t, "price: $5", v.Str())
}

func TestTernaryAndLogical(t *testing.T) {
	assert.Equal(t, 1.0, evalNumber(t, "let x = true ? 1 : 2\nx"))
	// && and || yield the deciding operand and short-circuit.
	assert.Equal(t, "fallback", evalValue(t, `null || "fallback"`).Str())
	assert.Equal(t, TagNull, evalValue(t, `null && boom()`).Tag)
	assert.Equal(t, 2.0, evalNumber(t, "1 && 2"))
}

func TestScopingRules(t *testing.T) {
	assert.Equal(t, 1.0, evalNumber(t, `
let x = 1
{
	let x = 2
}
x`))

	_, _, err := runScript(t, "y = 5", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'y' is not defined")

	_, _, err = runScript(t, "const c = 1\nc = 2", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot assign to constant 'c'")

	_, perr := ParseSource("const c")
	require.Error(t, perr, "const needs an initializer")
	assert.Contains(t, perr.Error(), "initializer")
}

func TestFunctionsAndClosures(t *testing.T) {
	assert.Equal(t, 8.0, evalNumber(t, `
func fib(n) {
	if n < 2 { return n }
	return fib(n - 1) + fib(n - 2)
}
fib(6)`))

	assert.Equal(t, 3.0, evalNumber(t, `
func counter() {
	let n = 0
	return () => {
		n += 1
		return n
	}
}
let tick = counter()
tick()
tick()
tick()`))
}

func TestParameterBindingOrder(t *testing.T) {
	// Positional first, then named overrides, then defaults.
	src := `
func mk(a, b = 10, c = 20) {
	return a + b + c
}
`
	assert.Equal(t, 31.0, evalNumber(t, src+"mk(1)"))
	assert.Equal(t, 23.0, evalNumber(t, src+"mk(1, 2)"))
	assert.Equal(t, 16.0, evalNumber(t, src+"mk(1, c: 5)"))
	assert.Equal(t, 9.0, evalNumber(t, src+"mk(b: 3, a: 1, c: 5)"))

	_, _, err := runScript(t, src+"mk(1, nope: 2)", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown named argument 'nope'")
}

func TestPipelineEvaluation(t *testing.T) {
	assert.Equal(t, 10.0, evalNumber(t, `
func double(x) { return x * 2 }
5 |> double`))

	assert.Equal(t, "1, 2, 3", evalValue(t, `[1, 2, 3] |> join(", ")`).Str())

	_, _, err := runScript(t, "5 |> nosuch", Options{})
	require.Error(t, err)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Msg, "'nosuch' is not defined")
}

func TestLoops(t *testing.T) {
	assert.Equal(t, 45.0, evalNumber(t, `
let sum = 0
for x in range(10) { sum += x }
sum`))

	assert.Equal(t, 10.0, evalNumber(t, `
let sum = 0
for (let i = 0; i < 5; i += 1) { sum += i }
sum`))

	assert.Equal(t, 6.0, evalNumber(t, `
let sum = 0
let i = 0
while true {
	i += 1
	if i > 3 { break }
	sum += i
}
sum`))

	assert.Equal(t, 12.0, evalNumber(t, `
let sum = 0
for x in [1, 2, 3, 4, 5] {
	if x == 3 { continue }
	sum += x
}
sum`))

	// Iterating an object yields keys in insertion order.
	assert.Equal(t, "a,b,c", evalValue(t, `
let o = {a: 1, b: 2, c: 3}
let ks = []
for k in o { push(ks, k) }
join(ks, ",")`).Str())
}

func TestThrowCatchFilters(t *testing.T) {
	// Untyped catch takes anything; typed catch filters on the type tag.
	assert.Equal(t, "caught number", evalValue(t, `
let got = ""
try {
	throw 42
} catch (e: string) {
	got = "caught string"
} catch (e: number) {
	got = "caught " + typeof(e)
}
got`).Str())

	// Thrown objects with a type entry match that tag.
	assert.Equal(t, "NotFound", evalValue(t, `
let got = ""
try {
	throw {type: "NotFound", message: "missing"}
} catch (e: NotFound) {
	got = e.type
}
got`).Str())

	// Host runtime errors bind {type, message, line}.
	v := evalValue(t, `
let got = null
try {
	nosuch()
} catch (e: RuntimeError) {
	got = e
}
got`)
	require.Equal(t, TagObject, v.Tag)
	typ, _ := v.Object().Get("type")
	assert.Equal(t, "RuntimeError", typ.Str())
	line, _ := v.Object().Get("line")
	assert.Equal(t, 4.0, line.Number())

	// No matching clause rethrows.
	_, _, err := runScript(t, `
try {
	throw "boom"
} catch (e: number) {
}`, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestFinallyRunsExactlyOnce(t *testing.T) {
	assert.Equal(t, 1.0, evalNumber(t, `
let effects = 0
try {
	throw 1
} catch (e) {
} finally {
	effects += 1
}
effects`))

	// Finally runs on the return path too, once, without eating the value.
	assert.Equal(t, "7:1", evalValue(t, `
let effects = 0
func f() {
	try {
		return 7
	} finally {
		effects += 1
	}
}
"${f()}:${effects}"`).Str())

	// And on break out of a loop inside try.
	assert.Equal(t, 1.0, evalNumber(t, `
let effects = 0
while true {
	try {
		break
	} finally {
		effects += 1
	}
}
effects`))
}

func TestControlSignalsAreNotCatchable(t *testing.T) {
	// A catch-all clause must not see return.
	assert.Equal(t, 5.0, evalNumber(t, `
func f() {
	try {
		return 5
	} catch (e) {
		return -1
	}
}
f()`))

	_, _, err := runScript(t, "return 1", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'return' outside of a function")

	_, _, err = runScript(t, "break", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'break' outside of a loop")
}

func TestAsyncAwait(t *testing.T) {
	assert.Equal(t, "future", evalValue(t, `
async func f() { return 1 }
typeof(f())`).Str())

	assert.Equal(t, 3.0, evalNumber(t, `
async func f() { return 1 }
async func g() { return 2 }
await f() + await g()`))

	// A rejection surfaces at the await site and is catchable there.
	assert.Equal(t, "boom", evalValue(t, `
async func bad() { throw "boom" }
let fut = bad()
let got = ""
try {
	await fut
} catch (e) {
	got = e
}
got`).Str())

	// Await of a settled non-future value is the value itself.
	assert.Equal(t, 9.0, evalNumber(t, "await 9"))
}

func TestClasses(t *testing.T) {
	assert.Equal(t, 5.0, evalNumber(t, `
class Point {
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
let p = new Point(3, 4)
p.norm()`))

	assert.Equal(t, "woof", evalValue(t, `
class Animal {
	func speak() { return "..." }
}
class Dog extends Animal {
	func speak() { return "woof" }
}
let d = new Dog()
d.speak()`).Str())
}

func TestRuntimeRecursionLimit(t *testing.T) {
	_, _, err := runScript(t, `
func loop() { return loop() }
loop()`, Options{})
	require.Error(t, err)
	var limit *RecursionLimitError
	require.ErrorAs(t, err, &limit)

	// The limit is not catchable from script code.
	_, _, err = runScript(t, `
func loop() { return loop() }
try {
	loop()
} catch (e) {
}`, Options{})
	require.Error(t, err)
	require.ErrorAs(t, err, &limit)
}

func TestTimeoutAbortsRun(t *testing.T) {
	start := time.Now()
	_, _, err := runScript(t, "while true {}", Options{TimeoutMs: 50})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCancellationNotCatchable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	prog, err := ParseSource(`
try {
	let x = 1
} catch (e) {
}`)
	require.NoError(t, err)
	_, rerr := New(StandardRegistry(), Options{Workdir: t.TempDir()}).Run(ctx, prog)
	require.Error(t, rerr)
	assert.Contains(t, rerr.Error(), "cancelled")
}

func TestCapabilityGating(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{`file.read("x")`, "file operations disabled"},
		{`bash.run("true")`, "bash operations disabled"},
		{`ai.ask("hi")`, "ai operations disabled"},
	}
	for _, tc := range cases {
		_, _, err := runScript(t, tc.src, Options{})
		require.Error(t, err, tc.src)
		assert.Contains(t, err.Error(), tc.want)
	}
}

func TestDryRunDescribesWithoutActing(t *testing.T) {
	dir := t.TempDir()
	_, out, err := runScript(t, `file.write("a.txt", "hello")`, Options{
		Workdir:       dir,
		EnableFileOps: true,
		DryRun:        true,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "[dry-run]")
	_, serr := os.Stat(filepath.Join(dir, "a.txt"))
	assert.True(t, os.IsNotExist(serr), "dry run must not create the file")
}

func TestModuleImport(t *testing.T) {
	dir := t.TempDir()
	util := `
export func double(x) { return x * 2 }
export const answer = 21
let private = "hidden"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.bs"), []byte(util), 0o644))

	v, _, err := runScript(t, `
import "util.bs" as util
util.double(util.answer)`, Options{Workdir: dir})
	require.NoError(t, err)
	assert.Equal(t, 42.0, v.Number())

	// Unexported names stay private.
	v, _, err = runScript(t, `
import "util.bs" as util
util.private`, Options{Workdir: dir})
	require.NoError(t, err)
	assert.Equal(t, TagNull, v.Tag)
}

func TestModuleCycleDetected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bs"),
		[]byte(`import "b.bs" as b`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.bs"),
		[]byte(`import "a.bs" as a`), 0o644))

	_, _, err := runScript(t, `import "a.bs" as a`, Options{Workdir: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular import")
}

func TestRunTests(t *testing.T) {
	prog, err := ParseSource(`
func add(a, b) { return a + b }

test "add works" {
	assert add(1, 2) == 3
}
test "add is broken" {
	assert add(1, 2) == 4, "expected 4"
}
`)
	require.NoError(t, err)
	results, err := New(StandardRegistry(), Options{Workdir: t.TempDir()}).
		RunTests(context.Background(), prog)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Passed)
	assert.False(t, results[1].Passed)
	assert.Contains(t, results[1].Err.Error(), "expected 4")
}

func TestReplPersistence(t *testing.T) {
	interp := New(StandardRegistry(), Options{Workdir: t.TempDir(), Stdout: &bytes.Buffer{}})
	_, err := interp.EvalSource(context.Background(), "let x = 10")
	require.NoError(t, err)
	v, err := interp.EvalSource(context.Background(), "x * 2")
	require.NoError(t, err)
	assert.Equal(t, 20.0, v.Number())
}

func TestUncaughtThrowCarriesValue(t *testing.T) {
	_, _, err := runScript(t, `throw {type: "Custom", message: "nope"}`, Options{})
	require.Error(t, err)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	require.NotNil(t, re.Value)
	assert.Equal(t, TagObject, re.Value.Tag)
	assert.True(t, strings.Contains(re.Msg, "uncaught error"))
}
