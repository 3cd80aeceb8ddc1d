package buddyscript

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAI struct{}

func (stubAI) Ask(_ context.Context, prompt string) (string, error) {
	return "echo: " + prompt, nil
}

func (stubAI) Chat(_ context.Context, messages []ChatMessage) (string, error) {
	return fmt.Sprintf("chat(%d)", len(messages)), nil
}

func (stubAI) Complete(_ context.Context, prompt string, _ int) (string, error) {
	return prompt, nil
}

func evalString(t *testing.T, src string) string {
	t.Helper()
	v := evalValue(t, src)
	require.Equal(t, TagString, v.Tag, "got %s", v.Display())
	return v.Str()
}

func TestCoreBuiltins(t *testing.T) {
	assert.Equal(t, "number", evalString(t, "typeof(1)"))
	assert.Equal(t, "array", evalString(t, "typeof([])"))
	assert.Equal(t, "function", evalString(t, "typeof(x => x)"))
	assert.Equal(t, "null", evalString(t, "typeof(null)"))

	assert.Equal(t, 3.0, evalNumber(t, `len("abc")`))
	assert.Equal(t, 2.0, evalNumber(t, "len([1, 2])"))
	assert.Equal(t, 1.0, evalNumber(t, "len({a: 1})"))

	assert.Equal(t, "42", evalString(t, "str(42)"))
	assert.Equal(t, "1.5", evalString(t, "str(1.5)"))
	assert.Equal(t, "[1, \"a\"]", evalString(t, `str([1, "a"])`))

	assert.Equal(t, 42.0, evalNumber(t, `num("42")`))
	assert.Equal(t, 1.0, evalNumber(t, "num(true)"))
	_, _, err := runScript(t, `num("nope")`, Options{})
	require.Error(t, err)

	// int truncates toward zero.
	assert.Equal(t, 3.0, evalNumber(t, "int(3.9)"))
	assert.Equal(t, -3.0, evalNumber(t, "int(-3.9)"))

	assert.Equal(t, BoolValue(false), evalValue(t, `bool("")`))
	assert.Equal(t, BoolValue(true), evalValue(t, `bool("x")`))
	assert.Equal(t, BoolValue(false), evalValue(t, "bool(0)"))
}

func TestPrintOutput(t *testing.T) {
	_, out, err := runScript(t, `println("a", 1, [2])`, Options{})
	require.NoError(t, err)
	assert.Equal(t, "a 1 [2]\n", out)

	_, out, err = runScript(t, `console.warn("careful")`, Options{})
	require.NoError(t, err)
	assert.Contains(t, out, "[warn] careful")
}

func TestCollectionBuiltins(t *testing.T) {
	assert.Equal(t, "0,1,2", evalString(t, `join(range(3), ",")`))
	assert.Equal(t, "5,7,9", evalString(t, `join(range(5, 10, 2), ",")`))
	assert.Equal(t, "3,2,1", evalString(t, `join(range(3, 0, -1), ",")`))

	assert.Equal(t, "a,b", evalString(t, `join(keys({a: 1, b: 2}), ",")`))
	assert.Equal(t, "1,2", evalString(t, `join(values({a: 1, b: 2}), ",")`))
	assert.Equal(t, "a=1", evalString(t, `
let e = entries({a: 1})[0]
"${e[0]}=${e[1]}"`))

	// push mutates through every binding; pop returns the last element.
	assert.Equal(t, "3:2", evalString(t, `
let xs = [1, 2]
let same = xs
push(same, 3)
"${len(xs)}:${pop(xs) - 1}"`))

	assert.Equal(t, "a|b|c", evalString(t, `join(split("a,b,c", ","), "|")`))
	assert.Equal(t, "2,3", evalString(t, `join(slice([1, 2, 3, 4], 1, 3), ",")`))
	assert.Equal(t, "cd", evalString(t, `slice("abcd", -2)`))

	assert.Equal(t, "2,4,6", evalString(t, `join(map([1, 2, 3], x => x * 2), ",")`))
	assert.Equal(t, "2,4", evalString(t, `join(filter([1, 2, 3, 4], x => x % 2 == 0), ",")`))
	assert.Equal(t, 3.0, evalNumber(t, `find([1, 3, 5], x => x > 2)`))
	assert.Equal(t, TagNull, evalValue(t, `find([1], x => x > 9)`).Tag)

	assert.Equal(t, BoolValue(true), evalValue(t, `includes([1, 2], 2)`))
	assert.Equal(t, BoolValue(true), evalValue(t, `includes("hello", "ell")`))

	// Async callbacks are awaited element by element, in order.
	assert.Equal(t, "2,4", evalString(t, `
async func dbl(x) { return x * 2 }
join(map([1, 2], x => await dbl(x)), ",")`))
}

func TestStringBuiltins(t *testing.T) {
	assert.Equal(t, "abc", evalString(t, `trim("  abc  ")`))
	assert.Equal(t, "abc", evalString(t, `lower("ABC")`))
	assert.Equal(t, "ABC", evalString(t, `upper("abc")`))
	assert.Equal(t, "xbcb", evalString(t, `replace("abcb", "a", "x")`))
	assert.Equal(t, "xbcx", evalString(t, `replaceAll("abca", "a", "x")`))
	assert.Equal(t, BoolValue(true), evalValue(t, `startsWith("hello", "he")`))
	assert.Equal(t, BoolValue(true), evalValue(t, `endsWith("hello", "lo")`))
	assert.Equal(t, BoolValue(false), evalValue(t, `contains("hello", "xyz")`))

	assert.Equal(t, "v1.2:1:2", evalString(t, `
let m = match("v1.2", "v(\\d+)\\.(\\d+)")
"${m[0]}:${m[1]}:${m[2]}"`))
	assert.Equal(t, TagNull, evalValue(t, `match("abc", "\\d+")`).Tag)

	_, _, err := runScript(t, `match("x", "(")`, Options{})
	require.Error(t, err)
}

func TestMathBuiltins(t *testing.T) {
	assert.Equal(t, 2.0, evalNumber(t, "math.abs(-2)"))
	assert.Equal(t, 1.0, evalNumber(t, "math.floor(1.9)"))
	assert.Equal(t, 2.0, evalNumber(t, "math.ceil(1.1)"))
	assert.Equal(t, 2.0, evalNumber(t, "math.round(1.5)"))
	assert.Equal(t, 3.0, evalNumber(t, "math.sqrt(9)"))
	assert.Equal(t, 8.0, evalNumber(t, "math.pow(2, 3)"))
	assert.Equal(t, 1.0, evalNumber(t, "math.min(1, 2)"))
	assert.Equal(t, 2.0, evalNumber(t, "math.max(1, 2)"))
	r := evalNumber(t, "math.random()")
	assert.GreaterOrEqual(t, r, 0.0)
	assert.Less(t, r, 1.0)
}

func TestTimeBuiltins(t *testing.T) {
	assert.Positive(t, evalNumber(t, "now()"))
	assert.Equal(t, BoolValue(true), evalValue(t, "time() > 0 && now() > 0"))
	// sleep(0) completes immediately.
	evalValue(t, "sleep(0)")
}

func TestJSONBuiltins(t *testing.T) {
	assert.Equal(t, 2.0, evalNumber(t, `json.parse("[1, 2]")[1]`))
	assert.Equal(t, "x", evalString(t, `json.parse("{\"k\": \"x\"}").k`))
	assert.Equal(t, TagNull, evalValue(t, `json.parse("null")`).Tag)

	assert.Equal(t, `{"b":1,"a":2}`, evalString(t, `json.stringify({b: 1, a: 2})`))
	assert.Equal(t, `[1,"x",null]`, evalString(t, `json.stringify([1, "x", null])`))

	// Key order survives a parse/stringify round trip.
	assert.Equal(t, `{"z":1,"a":2}`, evalString(t, `json.stringify(json.parse("{\"z\":1,\"a\":2}"))`))

	assert.Equal(t, "{\n  \"a\": 1\n}", evalString(t, `json.stringify({a: 1}, 2)`))
}

func TestEnvBuiltins(t *testing.T) {
	t.Setenv("BUDDY_TEST_VAR", "hello")
	assert.Equal(t, "hello", evalString(t, `env.get("BUDDY_TEST_VAR")`))
	assert.Equal(t, TagNull, evalValue(t, `env.get("BUDDY_TEST_MISSING_VAR")`).Tag)
	assert.Equal(t, "fb", evalString(t, `env.get("BUDDY_TEST_MISSING_VAR", "fb")`))

	v := evalValue(t, `env.all()`)
	require.Equal(t, TagObject, v.Tag)
	got, ok := v.Object().Get("BUDDY_TEST_VAR")
	require.True(t, ok)
	assert.Equal(t, "hello", got.Str())
}

func TestFileBuiltins(t *testing.T) {
	dir := t.TempDir()
	opts := Options{Workdir: dir, EnableFileOps: true}

	_, _, err := runScript(t, `
file.write("a.txt", "hello")
file.append("a.txt", " world")
file.mkdir("sub")
file.copy("a.txt", "sub/b.txt")
`, opts)
	require.NoError(t, err)

	v, _, err := runScript(t, `file.read("a.txt")`, opts)
	require.NoError(t, err)
	assert.Equal(t, "hello world", v.Str())

	v, _, err = runScript(t, `file.exists("sub/b.txt")`, opts)
	require.NoError(t, err)
	assert.Equal(t, BoolValue(true), v)

	v, _, err = runScript(t, `file.stat("a.txt").size`, opts)
	require.NoError(t, err)
	assert.Equal(t, 11.0, v.Number())

	v, _, err = runScript(t, `join(file.glob("*.txt"), ",")`, opts)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", v.Str())

	_, _, err = runScript(t, `
file.move("a.txt", "c.txt")
file.delete("c.txt")
`, opts)
	require.NoError(t, err)
	_, serr := os.Stat(filepath.Join(dir, "c.txt"))
	assert.True(t, os.IsNotExist(serr))
}

func TestBashBuiltins(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}
	opts := Options{Workdir: t.TempDir(), EnableBash: true}

	v, _, err := runScript(t, `bash.run("echo hi").stdout`, opts)
	require.NoError(t, err)
	assert.Equal(t, "hi", v.Str())

	v, _, err = runScript(t, `bash.run("exit 3").code`, opts)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v.Number())

	v, out, err := runScript(t, `bash.exec("echo streamed")`, opts)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.Number())
	assert.Contains(t, out, "streamed")
}

func TestAIBuiltinsUseClient(t *testing.T) {
	opts := Options{Workdir: t.TempDir(), EnableAI: true, AI: stubAI{}}
	v, _, err := runScript(t, `ai.ask("ping")`, opts)
	require.NoError(t, err)
	assert.Equal(t, "echo: ping", v.Str())

	v, _, err = runScript(t, `ai.chat([{role: "user", content: "hey"}])`, opts)
	require.NoError(t, err)
	assert.Equal(t, "chat(1)", v.Str())

	// Enabled but unconfigured is a runtime error, not a panic.
	_, _, err = runScript(t, `ai.ask("ping")`, Options{EnableAI: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no AI client configured")
}
