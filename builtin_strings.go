// builtin_strings.go — string builtins, including regexp match.
package buddyscript

import (
	"regexp"
	"strings"
)

func registerStringBuiltins(r *Registry) {
	unary := func(name string, f func(string) string) {
		r.RegisterNative(name, []string{"string"}, "", func(c *BuiltinCall) (Value, error) {
			if err := c.WantArgs(1, 1); err != nil {
				return Value{}, err
			}
			s, err := c.StringArg(0, "string")
			if err != nil {
				return Value{}, err
			}
			return StringValue(f(s)), nil
		})
	}
	unary("trim", strings.TrimSpace)
	unary("lower", strings.ToLower)
	unary("upper", strings.ToUpper)

	r.RegisterNative("replace", []string{"string", "old", "new"}, "", func(c *BuiltinCall) (Value, error) {
		s, old, repl, err := threeStrings(c)
		if err != nil {
			return Value{}, err
		}
		return StringValue(strings.Replace(s, old, repl, 1)), nil
	})

	r.RegisterNative("replaceAll", []string{"string", "old", "new"}, "", func(c *BuiltinCall) (Value, error) {
		s, old, repl, err := threeStrings(c)
		if err != nil {
			return Value{}, err
		}
		return StringValue(strings.ReplaceAll(s, old, repl)), nil
	})

	binaryBool := func(name string, f func(s, sub string) bool) {
		r.RegisterNative(name, []string{"string", "substring"}, "", func(c *BuiltinCall) (Value, error) {
			if err := c.WantArgs(2, 2); err != nil {
				return Value{}, err
			}
			s, err := c.StringArg(0, "string")
			if err != nil {
				return Value{}, err
			}
			sub, err := c.StringArg(1, "substring")
			if err != nil {
				return Value{}, err
			}
			return BoolValue(f(s, sub)), nil
		})
	}
	binaryBool("startsWith", strings.HasPrefix)
	binaryBool("endsWith", strings.HasSuffix)
	binaryBool("contains", strings.Contains)

	// match returns the full match followed by capture groups, or null
	// when the pattern does not match.
	r.RegisterNative("match", []string{"string", "pattern"}, "", func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(2, 2); err != nil {
			return Value{}, err
		}
		s, err := c.StringArg(0, "string")
		if err != nil {
			return Value{}, err
		}
		pattern, err := c.StringArg(1, "pattern")
		if err != nil {
			return Value{}, err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Value{}, c.Errf("match: invalid pattern: %s", err)
		}
		groups := re.FindStringSubmatch(s)
		if groups == nil {
			return NullValue(), nil
		}
		out := make([]Value, len(groups))
		for idx, g := range groups {
			out[idx] = StringValue(g)
		}
		return ArrayValue(out), nil
	})
}

func threeStrings(c *BuiltinCall) (string, string, string, error) {
	if err := c.WantArgs(3, 3); err != nil {
		return "", "", "", err
	}
	s, err := c.StringArg(0, "string")
	if err != nil {
		return "", "", "", err
	}
	old, err := c.StringArg(1, "old")
	if err != nil {
		return "", "", "", err
	}
	repl, err := c.StringArg(2, "new")
	if err != nil {
		return "", "", "", err
	}
	return s, old, repl, nil
}
