// registry.go — the native builtin registry.
//
// Each interpreter run owns its own Registry: hosts embed the language by
// constructing one, registering (or omitting) capabilities, and handing it
// to Run. Nothing here is package-global, so two interpreters with
// different capability sets can coexist in one process.
package buddyscript

import "fmt"

// BuiltinCall is the invocation record handed to a BuiltinImpl. Args are
// positional after named-argument binding; Interp allows re-entrant script
// calls (map/filter callbacks) and gives access to Options for gating.
type BuiltinCall struct {
	Interp *Interpreter
	Name   string
	Args   []Value
	Line   int
}

// Errf builds a RuntimeError positioned at the call site and attributed to
// this builtin.
func (c *BuiltinCall) Errf(format string, args ...any) error {
	return &RuntimeError{Line: c.Line, Msg: fmt.Sprintf(format, args...), Builtin: c.Name}
}

// Arg returns the i-th argument, or null past the end (trailing defaults).
func (c *BuiltinCall) Arg(i int) Value {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return NullValue()
}

// WantArgs enforces an arity range; max < 0 means unbounded.
func (c *BuiltinCall) WantArgs(min, max int) error {
	n := len(c.Args)
	if n < min {
		return c.Errf("%s expects at least %d argument(s), got %d", c.Name, min, n)
	}
	if max >= 0 && n > max {
		return c.Errf("%s expects at most %d argument(s), got %d", c.Name, max, n)
	}
	return nil
}

// StringArg extracts a string argument or errors with the parameter name.
func (c *BuiltinCall) StringArg(i int, what string) (string, error) {
	v := c.Arg(i)
	if v.Tag != TagString {
		return "", c.Errf("%s: %s must be a string, got %s", c.Name, what, v.TypeName())
	}
	return v.Str(), nil
}

// NumberArg extracts a numeric argument or errors with the parameter name.
func (c *BuiltinCall) NumberArg(i int, what string) (float64, error) {
	v := c.Arg(i)
	if v.Tag != TagNumber {
		return 0, c.Errf("%s: %s must be a number, got %s", c.Name, what, v.TypeName())
	}
	return v.Number(), nil
}

// IntArg extracts an integral numeric argument.
func (c *BuiltinCall) IntArg(i int, what string) (int, error) {
	f, err := c.NumberArg(i, what)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// FuncArg extracts a callable argument (script function or builtin).
func (c *BuiltinCall) FuncArg(i int, what string) (*Function, error) {
	v := c.Arg(i)
	if v.Tag != TagFunction {
		return nil, c.Errf("%s: %s must be a function, got %s", c.Name, what, v.TypeName())
	}
	return v.Func(), nil
}

// ArrayArg extracts an array argument.
func (c *BuiltinCall) ArrayArg(i int, what string) (*ArrayObject, error) {
	v := c.Arg(i)
	if v.Tag != TagArray {
		return nil, c.Errf("%s: %s must be an array, got %s", c.Name, what, v.TypeName())
	}
	return v.Array(), nil
}

// CallCallback invokes a script function (or builtin) with the given
// positional arguments, used by collection builtins. Callbacks run
// sequentially, and async callbacks are awaited before the next element.
func (c *BuiltinCall) CallCallback(fn *Function, args ...Value) (Value, error) {
	v, err := c.Interp.callFunction(fn, args, nil, c.Line)
	if err != nil {
		return Value{}, err
	}
	if v.Tag == TagFuture {
		return c.Interp.awaitValue(v, c.Line)
	}
	return v, nil
}

// Registry holds the root-level native bindings installed into every run's
// global environment: plain functions (print, len) and namespace objects
// (math, file, bash, ai, env, json, console).
type Registry struct {
	names map[string]Value
	order []string
}

// NewRegistry returns an empty registry. StandardRegistry in runtime.go
// populates the full standard surface.
func NewRegistry() *Registry {
	return &Registry{names: map[string]Value{}}
}

// RegisterNative installs a root-level builtin function. params are the
// declared parameter names, used to resolve named call arguments;
// capability is "" for ungated builtins, or one of "file", "bash", "ai".
func (r *Registry) RegisterNative(name string, params []string, capability string, impl BuiltinImpl) {
	r.bind(name, FunctionValue(&Function{
		Name:       name,
		Builtin:    impl,
		BuiltinArg: params,
		Capability: capability,
	}))
}

// RegisterNamespace installs an object whose entries are builtins, e.g.
// math.floor or file.read. Iteration order follows the entries slice.
func (r *Registry) RegisterNamespace(name string, entries []NamespaceEntry) {
	obj := NewMapObject()
	for _, e := range entries {
		obj.Set(e.Name, FunctionValue(&Function{
			Name:       name + "." + e.Name,
			Builtin:    e.Impl,
			BuiltinArg: e.Params,
			Capability: e.Capability,
		}))
	}
	r.bind(name, ObjectValue(obj))
}

// RegisterValue installs an arbitrary root-level constant (e.g. version).
func (r *Registry) RegisterValue(name string, v Value) {
	r.bind(name, v)
}

// NamespaceEntry describes one member of a namespace object.
type NamespaceEntry struct {
	Name       string
	Params     []string
	Capability string
	Impl       BuiltinImpl
}

func (r *Registry) bind(name string, v Value) {
	if _, ok := r.names[name]; !ok {
		r.order = append(r.order, name)
	}
	r.names[name] = v
}

// installInto defines every registered name as a constant in env.
func (r *Registry) installInto(env *Env) {
	for _, name := range r.order {
		env.ForceDefine(name, r.names[name], false)
	}
}

// Lookup returns a registered root binding, for hosts that want to call
// builtins directly.
func (r *Registry) Lookup(name string) (Value, bool) {
	v, ok := r.names[name]
	return v, ok
}
