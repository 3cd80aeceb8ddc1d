// interpreter.go — the public evaluation surface.
//
// A run is (Program, Registry, Options) -> (Value, error). Each Interpreter
// owns its environment root and module cache; nothing is shared between
// concurrently running scripts. Execution is single-threaded and
// cooperative: async functions evaluate eagerly and settle into futures,
// `await` merely unwraps them. Cancellation and the TimeoutMs option are
// checked at every statement boundary and builtin call.
package buddyscript

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// Call-stack ceiling. Exceeding it raises RecursionLimitError, which is
// never catchable from script code.
const maxCallDepth = 500

// ChatMessage is one turn of an ai.chat conversation.
type ChatMessage struct {
	Role    string
	Content string
}

// AIClient is the host hook behind the ai.* builtins. Leave it nil and the
// ai namespace fails at call time even when EnableAI is set.
type AIClient interface {
	Ask(ctx context.Context, prompt string) (string, error)
	Chat(ctx context.Context, messages []ChatMessage) (string, error)
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Options configures one evaluation run.
type Options struct {
	Workdir       string // base for file.* paths and import resolution
	DryRun        bool   // describe side effects instead of performing them
	EnableFileOps bool
	EnableBash    bool
	EnableAI      bool
	Verbose       bool
	TimeoutMs     int // 0 means no deadline

	Stdout io.Writer // defaults to os.Stdout
	Stderr io.Writer // defaults to os.Stderr
	AI     AIClient
}

// Interpreter walks a parsed Program against a builtin registry.
type Interpreter struct {
	opts    Options
	reg     *Registry
	globals *Env
	ctx     context.Context

	callDepth  int
	modules    map[string]*moduleRecord
	loading    map[string]bool
	moduleDirs []string // directory stack for nested import resolution

	exports *MapObject // non-nil while executing a module body
	replEnv *Env       // persistent scope for EvalSource
}

// New builds an interpreter with the registry installed as constants in a
// fresh global environment.
func New(reg *Registry, opts Options) *Interpreter {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Workdir == "" {
		if wd, err := os.Getwd(); err == nil {
			opts.Workdir = wd
		} else {
			opts.Workdir = "."
		}
	}
	if reg == nil {
		reg = NewRegistry()
	}
	globals := NewEnv(nil)
	reg.installInto(globals)
	return &Interpreter{
		opts:    opts,
		reg:     reg,
		globals: globals,
		ctx:     context.Background(),
		modules: map[string]*moduleRecord{},
		loading: map[string]bool{},
	}
}

// Run is the package-level convenience entry: parse callers use
// ParseSource, then hand the program here.
func Run(program *Program, reg *Registry, opts Options) (Value, error) {
	return New(reg, opts).Run(context.Background(), program)
}

// Run evaluates the program top to bottom and returns the value of the
// last expression statement (null if none). Uncaught thrown values and
// runtime errors come back as error.
func (i *Interpreter) Run(ctx context.Context, program *Program) (Value, error) {
	if i.opts.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(i.opts.TimeoutMs)*time.Millisecond)
		defer cancel()
	}
	i.ctx = ctx

	env := NewEnv(i.globals)
	last := NullValue()
	for _, s := range program.Stmts {
		if _, ok := s.(*TestDecl); ok {
			continue // test blocks only run under RunTests
		}
		v, err := i.execStmtValue(s, env)
		if err != nil {
			return NullValue(), i.finishError(err)
		}
		last = v
	}
	return last, nil
}

// Globals exposes the run's root environment, for REPL hosts that keep
// state across inputs.
func (i *Interpreter) Globals() *Env { return i.globals }

// EvalSource parses and runs src against a scope that persists across
// calls, so REPL inputs see earlier definitions.
func (i *Interpreter) EvalSource(ctx context.Context, src string) (Value, error) {
	program, err := ParseSource(src)
	if err != nil {
		return NullValue(), err
	}
	i.ctx = ctx
	if i.replEnv == nil {
		i.replEnv = NewEnv(i.globals)
	}
	last := NullValue()
	for _, s := range program.Stmts {
		v, serr := i.execStmtValue(s, i.replEnv)
		if serr != nil {
			return NullValue(), i.finishError(serr)
		}
		last = v
	}
	return last, nil
}

// finishError converts internal signals into user-facing errors at the
// run boundary.
func (i *Interpreter) finishError(err error) error {
	switch e := err.(type) {
	case *returnSignal:
		return rtErrf(e.line, "'return' outside of a function")
	case *breakSignal:
		return rtErrf(e.line, "'break' outside of a loop")
	case *continueSignal:
		return rtErrf(e.line, "'continue' outside of a loop")
	case *thrownError:
		re := rtErrf(e.line, "uncaught error: %s", e.value.Display())
		v := e.value
		re.Value = &v
		return re
	}
	return err
}

/* ===========================
   Control signals
   =========================== */

// Non-local exits travel as errors but are never observable as catchable
// script exceptions.

type returnSignal struct {
	value Value
	line  int
}

func (s *returnSignal) Error() string { return "return" }

type breakSignal struct{ line int }

func (s *breakSignal) Error() string { return "break" }

type continueSignal struct{ line int }

func (s *continueSignal) Error() string { return "continue" }

// thrownError carries a script-level thrown value toward the nearest
// matching catch clause.
type thrownError struct {
	value Value
	line  int
}

func (t *thrownError) Error() string { return "uncaught: " + t.value.Display() }

// isCatchable reports whether a catch clause may intercept err. Control
// signals, guard violations and cancellation always pass through.
func (i *Interpreter) isCatchable(err error) bool {
	if i.ctx.Err() != nil {
		return false
	}
	switch err.(type) {
	case *thrownError, *RuntimeError:
		return true
	}
	return false
}

// thrownBinding is the value bound by `catch (e)`: the thrown value
// itself, or a {type, message, line} object for host runtime errors.
func thrownBinding(err error) Value {
	switch e := err.(type) {
	case *thrownError:
		return e.value
	case *RuntimeError:
		obj := NewMapObject()
		obj.Set("type", StringValue("RuntimeError"))
		obj.Set("message", StringValue(e.Msg))
		obj.Set("line", NumberValue(float64(e.Line)))
		if e.Builtin != "" {
			obj.Set("builtin", StringValue(e.Builtin))
		}
		return ObjectValue(obj)
	}
	return NullValue()
}

// thrownTypeTag is what a typed catch clause filters on.
func thrownTypeTag(err error) string {
	switch e := err.(type) {
	case *RuntimeError:
		return "RuntimeError"
	case *thrownError:
		if e.value.Tag == TagObject {
			if t, ok := e.value.Object().Get("type"); ok && t.Tag == TagString {
				return t.Str()
			}
		}
		return e.value.TypeName()
	}
	return ""
}

/* ===========================
   Cancellation and capabilities
   =========================== */

// checkCancelled enforces the external cancellation/timeout signal.
func (i *Interpreter) checkCancelled(line int) error {
	if err := i.ctx.Err(); err != nil {
		if err == context.DeadlineExceeded {
			return rtErrf(line, "execution timed out after %dms", i.opts.TimeoutMs)
		}
		return rtErrf(line, "execution cancelled")
	}
	return nil
}

// checkCapability gates a builtin behind its host enable flag.
func (i *Interpreter) checkCapability(capability string, line int) error {
	var enabled bool
	switch capability {
	case "":
		return nil
	case "file":
		enabled = i.opts.EnableFileOps
	case "bash":
		enabled = i.opts.EnableBash
	case "ai":
		enabled = i.opts.EnableAI
	}
	if !enabled {
		return rtErrf(line, "%s operations disabled", capability)
	}
	return nil
}

// dryRunNote reports a side effect that was suppressed by DryRun.
func (i *Interpreter) dryRunNote(format string, args ...any) {
	fmt.Fprintf(i.opts.Stdout, "[dry-run] "+format+"\n", args...)
}

// verbosef logs host-side detail when Verbose is set.
func (i *Interpreter) verbosef(format string, args ...any) {
	if i.opts.Verbose {
		fmt.Fprintf(i.opts.Stderr, format+"\n", args...)
	}
}

/* ===========================
   Calls
   =========================== */

// callFunction applies a script function or builtin. Binding order for
// script functions: positional, then named overrides, then defaults;
// still-unbound parameters become null.
func (i *Interpreter) callFunction(fn *Function, args []Value, named map[string]Value, line int) (Value, error) {
	if i.callDepth >= maxCallDepth {
		return Value{}, &RecursionLimitError{Line: line, Context: "call stack", Limit: maxCallDepth}
	}
	i.callDepth++
	defer func() { i.callDepth-- }()

	if fn.Builtin != nil {
		return i.callBuiltin(fn, args, named, line)
	}

	env := NewEnv(fn.Env)
	if fn.BoundSelf != nil {
		env.ForceDefine("this", *fn.BoundSelf, false)
	}
	for idx, p := range fn.Params {
		var v Value
		bound := false
		if idx < len(args) {
			v, bound = args[idx], true
		}
		if nv, ok := named[p.Name]; ok {
			v, bound = nv, true
		}
		if !bound && p.Default != nil {
			dv, err := i.evalExpr(p.Default, env)
			if err != nil {
				return Value{}, err
			}
			v, bound = dv, true
		}
		if !bound {
			v = NullValue()
		}
		env.ForceDefine(p.Name, v, true)
	}
	for name := range named {
		if !hasParam(fn.Params, name) {
			return Value{}, rtErrf(line, "unknown named argument '%s'", name)
		}
	}

	if fn.Async {
		v, err := i.invokeBody(fn, env, line)
		if err != nil {
			if !i.isCatchable(err) {
				return Value{}, err
			}
			return FutureValue(&Future{Err: err}), nil
		}
		return FutureValue(&Future{Value: v}), nil
	}
	return i.invokeBody(fn, env, line)
}

func (i *Interpreter) invokeBody(fn *Function, env *Env, line int) (Value, error) {
	if fn.Expr != nil {
		return i.evalExpr(fn.Expr, env)
	}
	if fn.Body == nil {
		return NullValue(), nil
	}
	err := i.execStmts(fn.Body.Stmts, env)
	if err != nil {
		if ret, ok := err.(*returnSignal); ok {
			return ret.value, nil
		}
		return Value{}, err
	}
	return NullValue(), nil
}

func (i *Interpreter) callBuiltin(fn *Function, args []Value, named map[string]Value, line int) (Value, error) {
	if err := i.checkCancelled(line); err != nil {
		return Value{}, err
	}
	if err := i.checkCapability(fn.Capability, line); err != nil {
		return Value{}, err
	}
	if len(named) > 0 {
		// Resolve named arguments onto the declared parameter positions.
		merged := append([]Value{}, args...)
		for name, v := range named {
			pos := -1
			for pi, pn := range fn.BuiltinArg {
				if pn == name {
					pos = pi
					break
				}
			}
			if pos < 0 {
				return Value{}, rtErrf(line, "unknown named argument '%s' for %s", name, fn.Name)
			}
			for len(merged) <= pos {
				merged = append(merged, NullValue())
			}
			merged[pos] = v
		}
		args = merged
	}
	call := &BuiltinCall{Interp: i, Name: fn.Name, Args: args, Line: line}
	v, err := fn.Builtin(call)
	if err != nil {
		if re, ok := err.(*RuntimeError); ok {
			if re.Line == 0 {
				re.Line = line
			}
			if re.Builtin == "" {
				re.Builtin = fn.Name
			}
			return Value{}, re
		}
		if i.isCatchable(err) || i.ctx.Err() == nil {
			return Value{}, &RuntimeError{Line: line, Msg: err.Error(), Builtin: fn.Name}
		}
		return Value{}, err
	}
	return v, nil
}

// awaitValue settles a future; a rejection re-raises at the await site.
func (i *Interpreter) awaitValue(v Value, line int) (Value, error) {
	if v.Tag != TagFuture {
		return v, nil
	}
	f := v.Data.(*Future)
	if f.Err != nil {
		if te, ok := f.Err.(*thrownError); ok {
			return Value{}, &thrownError{value: te.value, line: line}
		}
		return Value{}, f.Err
	}
	return f.Value, nil
}

func hasParam(params []Param, name string) bool {
	for _, p := range params {
		if p.Name == name {
			return true
		}
	}
	return false
}

/* ===========================
   Script test blocks
   =========================== */

// TestResult is the outcome of one `test "name" { ... }` block.
type TestResult struct {
	Name   string
	Passed bool
	Err    error
}

// RunTests executes every non-test statement first (shared fixtures),
// then each test block in its own child scope. A failed assertion or
// uncaught error fails that test only.
func (i *Interpreter) RunTests(ctx context.Context, program *Program) ([]TestResult, error) {
	if i.opts.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(i.opts.TimeoutMs)*time.Millisecond)
		defer cancel()
	}
	i.ctx = ctx

	env := NewEnv(i.globals)
	var tests []*TestDecl
	for _, s := range program.Stmts {
		if t, ok := s.(*TestDecl); ok {
			tests = append(tests, t)
			continue
		}
		if err := i.execStmt(s, env); err != nil {
			return nil, i.finishError(err)
		}
	}

	results := make([]TestResult, 0, len(tests))
	for _, t := range tests {
		terr := i.execStmts(t.Body.Stmts, NewEnv(env))
		if terr != nil {
			if !i.isCatchable(terr) {
				if _, ok := terr.(*thrownError); !ok {
					return results, i.finishError(terr)
				}
			}
			results = append(results, TestResult{Name: t.Name, Err: i.finishError(terr)})
			continue
		}
		results = append(results, TestResult{Name: t.Name, Passed: true})
	}
	return results, nil
}
