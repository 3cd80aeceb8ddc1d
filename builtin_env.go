// builtin_env.go — the env namespace (process environment).
package buddyscript

import (
	"os"
	"strings"
)

func registerEnvBuiltins(r *Registry) {
	r.RegisterNamespace("env", []NamespaceEntry{
		{Name: "get", Params: []string{"name", "default"}, Impl: envGet},
		{Name: "set", Params: []string{"name", "value"}, Impl: envSet},
		{Name: "all", Impl: envAll},
	})
}

func envGet(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(1, 2); err != nil {
		return Value{}, err
	}
	name, err := c.StringArg(0, "name")
	if err != nil {
		return Value{}, err
	}
	if v, ok := os.LookupEnv(name); ok {
		return StringValue(v), nil
	}
	if len(c.Args) == 2 {
		return c.Arg(1), nil
	}
	return NullValue(), nil
}

func envSet(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(2, 2); err != nil {
		return Value{}, err
	}
	name, err := c.StringArg(0, "name")
	if err != nil {
		return Value{}, err
	}
	value, err := c.StringArg(1, "value")
	if err != nil {
		return Value{}, err
	}
	if c.Interp.opts.DryRun {
		c.Interp.dryRunNote("would set %s=%s", name, value)
		return NullValue(), nil
	}
	if serr := os.Setenv(name, value); serr != nil {
		return Value{}, c.Errf("env.set: %s", serr)
	}
	return NullValue(), nil
}

func envAll(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(0, 0); err != nil {
		return Value{}, err
	}
	obj := NewMapObject()
	for _, kv := range os.Environ() {
		if eq := strings.IndexByte(kv, '='); eq > 0 {
			obj.Set(kv[:eq], StringValue(kv[eq+1:]))
		}
	}
	return ObjectValue(obj), nil
}
