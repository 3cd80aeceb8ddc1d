// value.go — the runtime value model and lexical environments.
//
// Value is a tagged sum covering the closed script-level variant set:
// null, bool, number (always float64), string, arrays, ordered objects and
// functions. Two host-side kinds extend it: futures (produced by async
// functions, consumed by `await`) and classes. The conversion helpers at
// the bottom are total — they mirror the str/num/bool/int/float builtins,
// so no builtin ever needs a dynamic any.
package buddyscript

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ValueTag enumerates all runtime kinds a Value may hold.
type ValueTag int

const (
	TagNull     ValueTag = iota // no payload
	TagBool                     // bool
	TagNumber                   // float64
	TagString                   // string
	TagArray                    // *ArrayObject
	TagObject                   // *MapObject (ordered)
	TagFunction                 // *Function
	TagFuture                   // *Future
	TagClass                    // *Class
)

// Value is the universal runtime carrier used by the evaluator.
type Value struct {
	Tag  ValueTag
	Data any
}

// ArrayObject boxes the element slice so arrays have reference semantics
// (push/pop observed through every binding).
type ArrayObject struct {
	Elems []Value
}

// MapObject is an ordered string-keyed map: insertion order is iteration
// order, matching object-literal source order.
type MapObject struct {
	Entries map[string]Value
	Keys    []string
}

// NewMapObject returns an empty ordered map.
func NewMapObject() *MapObject {
	return &MapObject{Entries: map[string]Value{}}
}

// Set inserts or updates a key, appending to Keys on first insert.
func (m *MapObject) Set(key string, v Value) {
	if _, ok := m.Entries[key]; !ok {
		m.Keys = append(m.Keys, key)
	}
	m.Entries[key] = v
}

// Get retrieves a key's value.
func (m *MapObject) Get(key string) (Value, bool) {
	v, ok := m.Entries[key]
	return v, ok
}

// Delete removes a key, keeping Keys consistent.
func (m *MapObject) Delete(key string) {
	if _, ok := m.Entries[key]; !ok {
		return
	}
	delete(m.Entries, key)
	for i, k := range m.Keys {
		if k == key {
			m.Keys = append(m.Keys[:i], m.Keys[i+1:]...)
			break
		}
	}
}

// BuiltinImpl is the host-side implementation of a registered capability.
// Args are bound positionally after named-argument resolution; the call
// object gives access to the interpreter for re-entrant calls (map/filter).
type BuiltinImpl func(call *BuiltinCall) (Value, error)

// Function is a closure over its defining environment, or a host builtin
// when Builtin is non-nil. Lambdas carry Expr, declared functions Body.
type Function struct {
	Name   string
	Params []Param
	Body   *Block
	Expr   Expr
	Env    *Env
	Async  bool

	Builtin    BuiltinImpl
	BuiltinArg []string // declared parameter names for named-arg binding
	Capability string   // "" for ungated builtins

	BoundSelf *Value // receiver for class methods
}

// Future is the settled outcome of an async function call. Evaluation is
// eager and single-threaded: the body has already run by the time the
// future exists; `await` merely unwraps it.
type Future struct {
	Value Value
	Err   error
}

// Class carries an optional base class and the ordered member set.
type Class struct {
	Name    string
	Base    *Class
	Methods map[string]*Function
	Fields  []*VarDecl
	Env     *Env
}

// Constructors.

func NullValue() Value            { return Value{Tag: TagNull} }
func BoolValue(b bool) Value      { return Value{Tag: TagBool, Data: b} }
func NumberValue(f float64) Value { return Value{Tag: TagNumber, Data: f} }
func StringValue(s string) Value  { return Value{Tag: TagString, Data: s} }

func ArrayValue(elems []Value) Value {
	return Value{Tag: TagArray, Data: &ArrayObject{Elems: elems}}
}

func ObjectValue(m *MapObject) Value {
	if m == nil {
		m = NewMapObject()
	}
	return Value{Tag: TagObject, Data: m}
}

func FunctionValue(f *Function) Value { return Value{Tag: TagFunction, Data: f} }
func FutureValue(f *Future) Value     { return Value{Tag: TagFuture, Data: f} }
func ClassValue(c *Class) Value       { return Value{Tag: TagClass, Data: c} }

// Accessors with the tag already checked by the caller.

func (v Value) Bool() bool          { return v.Data.(bool) }
func (v Value) Number() float64     { return v.Data.(float64) }
func (v Value) Str() string         { return v.Data.(string) }
func (v Value) Array() *ArrayObject { return v.Data.(*ArrayObject) }
func (v Value) Object() *MapObject  { return v.Data.(*MapObject) }
func (v Value) Func() *Function     { return v.Data.(*Function) }

// TypeName is the script-visible type tag (`typeof`, catch filters).
func (v Value) TypeName() string {
	switch v.Tag {
	case TagNull:
		return "null"
	case TagBool:
		return "bool"
	case TagNumber:
		return "number"
	case TagString:
		return "string"
	case TagArray:
		return "array"
	case TagObject:
		return "object"
	case TagFunction:
		return "function"
	case TagFuture:
		return "future"
	case TagClass:
		return "class"
	}
	return "unknown"
}

// Truthy implements the language's truthiness: null and false are falsy,
// 0 and "" are falsy, everything else is truthy.
func (v Value) Truthy() bool {
	switch v.Tag {
	case TagNull:
		return false
	case TagBool:
		return v.Bool()
	case TagNumber:
		return v.Number() != 0
	case TagString:
		return v.Str() != ""
	default:
		return true
	}
}

// formatNumber prints integral floats without a decimal point.
func formatNumber(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Display renders a value the way print and string interpolation show it:
// strings bare, composites in literal-ish notation.
func (v Value) Display() string {
	switch v.Tag {
	case TagNull:
		return "null"
	case TagBool:
		return strconv.FormatBool(v.Bool())
	case TagNumber:
		return formatNumber(v.Number())
	case TagString:
		return v.Str()
	case TagArray:
		var b strings.Builder
		b.WriteByte('[')
		for i, el := range v.Array().Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(el.Inspect())
		}
		b.WriteByte(']')
		return b.String()
	case TagObject:
		m := v.Object()
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range m.Keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(m.Entries[k].Inspect())
		}
		b.WriteByte('}')
		return b.String()
	case TagFunction:
		f := v.Func()
		if f.Builtin != nil {
			return fmt.Sprintf("<builtin %s>", f.Name)
		}
		if f.Name != "" {
			return fmt.Sprintf("<func %s>", f.Name)
		}
		return "<func>"
	case TagFuture:
		return "<future>"
	case TagClass:
		return fmt.Sprintf("<class %s>", v.Data.(*Class).Name)
	}
	return "<unknown>"
}

// Inspect is Display with strings quoted (used inside composites).
func (v Value) Inspect() string {
	if v.Tag == TagString {
		return strconv.Quote(v.Str())
	}
	return v.Display()
}

// Equal is structural equality: numbers by value, strings by content,
// arrays/objects element-wise, functions by identity.
func (a Value) Equal(b Value) bool {
	if a.Tag != b.Tag {
		return false
	}
	switch a.Tag {
	case TagNull:
		return true
	case TagBool:
		return a.Bool() == b.Bool()
	case TagNumber:
		return a.Number() == b.Number()
	case TagString:
		return a.Str() == b.Str()
	case TagArray:
		ax, bx := a.Array().Elems, b.Array().Elems
		if len(ax) != len(bx) {
			return false
		}
		for i := range ax {
			if !ax[i].Equal(bx[i]) {
				return false
			}
		}
		return true
	case TagObject:
		am, bm := a.Object(), b.Object()
		if len(am.Entries) != len(bm.Entries) {
			return false
		}
		for k, av := range am.Entries {
			bv, ok := bm.Entries[k]
			if !ok || !av.Equal(bv) {
				return false
			}
		}
		return true
	default:
		return a.Data == b.Data
	}
}

/* ===========================
   Total conversions (str/num/bool/int/float)
   =========================== */

// ToStringValue mirrors the `str` builtin.
func ToStringValue(v Value) string { return v.Display() }

// ToNumber mirrors `num`/`float`. Fails on non-numeric strings and
// non-scalar values.
func ToNumber(v Value) (float64, error) {
	switch v.Tag {
	case TagNumber:
		return v.Number(), nil
	case TagBool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	case TagNull:
		return 0, nil
	case TagString:
		s := strings.TrimSpace(v.Str())
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to number", v.Str())
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot convert %s to number", v.TypeName())
}

// ToInt truncates toward zero after ToNumber.
func ToInt(v Value) (float64, error) {
	f, err := ToNumber(v)
	if err != nil {
		return 0, err
	}
	return math.Trunc(f), nil
}

// ToBool mirrors the `bool` builtin (truthiness).
func ToBool(v Value) bool { return v.Truthy() }

/* ===========================
   Environments
   =========================== */

type binding struct {
	value   Value
	mutable bool
}

// Env is a lexical environment frame with a parent link. Lookups walk
// parent-ward until the script root; `const` bindings are write-once.
type Env struct {
	parent *Env
	table  map[string]binding
}

// NewEnv creates a new frame with the given parent (which may be nil).
func NewEnv(parent *Env) *Env {
	return &Env{parent: parent, table: map[string]binding{}}
}

// Define binds name in the current frame, shadowing any outer binding.
// Redeclaring a name in the same frame is an error.
func (e *Env) Define(name string, v Value, mutable bool) error {
	if _, ok := e.table[name]; ok {
		return fmt.Errorf("'%s' is already declared in this scope", name)
	}
	e.table[name] = binding{value: v, mutable: mutable}
	return nil
}

// ForceDefine overwrites unconditionally; used by the REPL and by the host
// when installing builtins.
func (e *Env) ForceDefine(name string, v Value, mutable bool) {
	e.table[name] = binding{value: v, mutable: mutable}
}

// Assign updates the nearest existing binding. Assignment to an undeclared
// name or to a const binding is an error.
func (e *Env) Assign(name string, v Value) error {
	if b, ok := e.table[name]; ok {
		if !b.mutable {
			return fmt.Errorf("cannot assign to constant '%s'", name)
		}
		e.table[name] = binding{value: v, mutable: true}
		return nil
	}
	if e.parent != nil {
		return e.parent.Assign(name, v)
	}
	return fmt.Errorf("'%s' is not defined", name)
}

// Get retrieves the nearest visible binding for name.
func (e *Env) Get(name string) (Value, bool) {
	if b, ok := e.table[name]; ok {
		return b.value, true
	}
	if e.parent != nil {
		return e.parent.Get(name)
	}
	return Value{}, false
}

// Names lists every binding visible from this frame, sorted; used by the
// REPL completer.
func (e *Env) Names() []string {
	seen := map[string]bool{}
	var out []string
	for env := e; env != nil; env = env.parent {
		for k := range env.table {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}
