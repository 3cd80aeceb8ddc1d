// builtin_core.go — printing, type inspection and the total conversions.
package buddyscript

import (
	"fmt"
	"strings"
)

func registerCoreBuiltins(r *Registry) {
	r.RegisterNative("print", []string{"value"}, "", func(c *BuiltinCall) (Value, error) {
		fmt.Fprint(c.Interp.opts.Stdout, displayAll(c.Args))
		return NullValue(), nil
	})

	r.RegisterNative("println", []string{"value"}, "", func(c *BuiltinCall) (Value, error) {
		fmt.Fprintln(c.Interp.opts.Stdout, displayAll(c.Args))
		return NullValue(), nil
	})

	r.RegisterNative("typeof", []string{"value"}, "", func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(1, 1); err != nil {
			return Value{}, err
		}
		return StringValue(c.Arg(0).TypeName()), nil
	})

	r.RegisterNative("len", []string{"value"}, "", func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(1, 1); err != nil {
			return Value{}, err
		}
		v := c.Arg(0)
		switch v.Tag {
		case TagString:
			return NumberValue(float64(len([]rune(v.Str())))), nil
		case TagArray:
			return NumberValue(float64(len(v.Array().Elems))), nil
		case TagObject:
			return NumberValue(float64(len(v.Object().Keys))), nil
		}
		return Value{}, c.Errf("len: cannot measure %s", v.TypeName())
	})

	r.RegisterNative("str", []string{"value"}, "", func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(1, 1); err != nil {
			return Value{}, err
		}
		return StringValue(ToStringValue(c.Arg(0))), nil
	})

	r.RegisterNative("num", []string{"value"}, "", func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(1, 1); err != nil {
			return Value{}, err
		}
		f, err := ToNumber(c.Arg(0))
		if err != nil {
			return Value{}, c.Errf("%s", err)
		}
		return NumberValue(f), nil
	})

	r.RegisterNative("bool", []string{"value"}, "", func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(1, 1); err != nil {
			return Value{}, err
		}
		return BoolValue(ToBool(c.Arg(0))), nil
	})

	// int truncates toward zero; float is num under another name.
	r.RegisterNative("int", []string{"value"}, "", func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(1, 1); err != nil {
			return Value{}, err
		}
		f, err := ToInt(c.Arg(0))
		if err != nil {
			return Value{}, c.Errf("%s", err)
		}
		return NumberValue(f), nil
	})

	r.RegisterNative("float", []string{"value"}, "", func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(1, 1); err != nil {
			return Value{}, err
		}
		f, err := ToNumber(c.Arg(0))
		if err != nil {
			return Value{}, c.Errf("%s", err)
		}
		return NumberValue(f), nil
	})

	consoleWrite := func(stream string) BuiltinImpl {
		return func(c *BuiltinCall) (Value, error) {
			out := c.Interp.opts.Stdout
			if stream == "warn" || stream == "error" {
				out = c.Interp.opts.Stderr
			}
			if stream == "log" || stream == "info" {
				fmt.Fprintln(out, displayAll(c.Args))
			} else {
				fmt.Fprintf(out, "[%s] %s\n", stream, displayAll(c.Args))
			}
			return NullValue(), nil
		}
	}
	r.RegisterNamespace("console", []NamespaceEntry{
		{Name: "log", Params: []string{"value"}, Impl: consoleWrite("log")},
		{Name: "info", Params: []string{"value"}, Impl: consoleWrite("info")},
		{Name: "warn", Params: []string{"value"}, Impl: consoleWrite("warn")},
		{Name: "error", Params: []string{"value"}, Impl: consoleWrite("error")},
	})
}

// displayAll joins arguments the way print shows them, space separated.
func displayAll(args []Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Display()
	}
	return strings.Join(parts, " ")
}
