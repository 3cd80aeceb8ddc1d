// errors.go — diagnostic taxonomy and caret-snippet rendering.
//
// Five error kinds cross the package boundary:
//
//   - *LexError            — bad input at the character level; fatal to the parse.
//   - *ParseError          — syntax mistakes; recoverable at statement level.
//   - *RecursionLimitError — parser depth guard tripped; always fatal.
//   - *LoopTimeoutError    — parser iteration guard tripped; always fatal.
//   - *RuntimeError        — evaluation failures, including uncaught `throw`.
//
// All carry a 1-based source line. WrapErrorWithSource turns any of them
// into a readable snippet with one line of context and a caret under the
// offending column:
//
//	PARSE ERROR at 3:12: unexpected token ')'
//
//	   2 | let x = (1 + 2
//	   3 |              )
//	       |            ^
//	   4 | }
package buddyscript

import (
	"fmt"
	"strings"
)

// LexError reports an invalid character-level construct (unterminated
// string/interpolation, bad escape, disallowed character).
type LexError struct {
	Line int
	Col  int
	Msg  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("LEXICAL ERROR at %d:%d: %s", e.Line, e.Col+1, e.Msg)
}

// ParseError reports a syntax mistake. The parser recovers from these at
// declaration boundaries via synchronize().
type ParseError struct {
	Line int
	Col  int
	Msg  string

	// Incomplete marks errors caused purely by running out of input while a
	// construct is open. REPLs use it to show a continuation prompt.
	Incomplete bool
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("PARSE ERROR at %d:%d: %s", e.Line, e.Col+1, e.Msg)
}

// IsIncomplete reports whether err is a ParseError caused by truncated input.
func IsIncomplete(err error) bool {
	pe, ok := err.(*ParseError)
	return ok && pe.Incomplete
}

// RecursionLimitError signals that the parser's depth ceiling was exceeded.
// Never recovered: it means the bounded-execution contract was violated,
// not that the program merely has a syntax mistake.
type RecursionLimitError struct {
	Line    int
	Context string
	Limit   int
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("RECURSION LIMIT at line %d: %s exceeded depth %d", e.Line, e.Context, e.Limit)
}

// LoopTimeoutError signals that an internal parse loop exceeded its
// iteration bound. Never recovered.
type LoopTimeoutError struct {
	Line    int
	Context string
	Limit   int
}

func (e *LoopTimeoutError) Error() string {
	return fmt.Sprintf("LOOP TIMEOUT at line %d: %s exceeded %d iterations", e.Line, e.Context, e.Limit)
}

// isGuardError reports whether err must abort the whole parse immediately.
func isGuardError(err error) bool {
	switch err.(type) {
	case *RecursionLimitError, *LoopTimeoutError:
		return true
	}
	return false
}

// RuntimeError represents an execution-time failure with a 1-based line.
// Value carries the script-level thrown value when the error originated
// from a `throw` statement (nil otherwise). Builtin names a capability
// entry when the failure happened inside one.
type RuntimeError struct {
	Line    int
	Msg     string
	Value   *Value
	Builtin string
}

func (e *RuntimeError) Error() string {
	if e.Builtin != "" {
		return fmt.Sprintf("RUNTIME ERROR at line %d: %s: %s", e.Line, e.Builtin, e.Msg)
	}
	return fmt.Sprintf("RUNTIME ERROR at line %d: %s", e.Line, e.Msg)
}

func rtErrf(line int, format string, args ...any) *RuntimeError {
	return &RuntimeError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

/* ===========================
   Snippet rendering
   =========================== */

// WrapErrorWithSource returns an error augmented with a caret-annotated
// snippet of the provided source. It recognizes the package's diagnostic
// types and leaves other errors untouched.
func WrapErrorWithSource(err error, src string) error {
	return WrapErrorWithName(err, "", src)
}

// WrapErrorWithName is WrapErrorWithSource with a source label ("in <name>").
func WrapErrorWithName(err error, srcName, src string) error {
	switch e := err.(type) {
	case *LexError:
		return fmt.Errorf("%s", snippet(src, "LEXICAL ERROR", srcName, e.Line, e.Col+1, e.Msg))
	case *ParseError:
		return fmt.Errorf("%s", snippet(src, "PARSE ERROR", srcName, e.Line, e.Col+1, e.Msg))
	case *RecursionLimitError:
		msg := fmt.Sprintf("%s exceeded depth limit %d", e.Context, e.Limit)
		return fmt.Errorf("%s", snippet(src, "RECURSION LIMIT", srcName, e.Line, 1, msg))
	case *LoopTimeoutError:
		msg := fmt.Sprintf("%s exceeded iteration limit %d", e.Context, e.Limit)
		return fmt.Errorf("%s", snippet(src, "LOOP TIMEOUT", srcName, e.Line, 1, msg))
	case *RuntimeError:
		msg := e.Msg
		if e.Builtin != "" {
			msg = e.Builtin + ": " + msg
		}
		return fmt.Errorf("%s", snippet(src, "RUNTIME ERROR", srcName, e.Line, 1, msg))
	default:
		return err
	}
}

// snippet builds a Python-like excerpt with a header and a caret. It shows
// at most one previous and one next line. Coordinates are 1-based and
// clamped to the source bounds.
func snippet(src, header, name string, line, col int, msg string) string {
	lines := strings.Split(src, "\n")
	if line < 1 {
		line = 1
	}
	if col < 1 {
		col = 1
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	if line > len(lines) {
		line = len(lines)
	}
	lineTxt := lines[line-1]

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "%s in %s at %d:%d: %s\n\n", header, name, line, col, msg)
	} else {
		fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", header, line, col, msg)
	}
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lineTxt)
	caretPad := col - 1
	if caretPad > len(lineTxt) {
		caretPad = len(lineTxt)
	}
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", caretPad))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}
