// builtin_collections.go — array and object builtins.
//
// The higher-order ones (map/filter/find) run their callback sequentially
// and await each result before touching the next element, so async
// callbacks behave like synchronous ones.
package buddyscript

import "strings"

func registerCollectionBuiltins(r *Registry) {
	r.RegisterNative("range", []string{"start", "end", "step"}, "", func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(1, 3); err != nil {
			return Value{}, err
		}
		start, end, step := 0.0, 0.0, 1.0
		var err error
		if len(c.Args) == 1 {
			end, err = c.NumberArg(0, "end")
		} else {
			if start, err = c.NumberArg(0, "start"); err == nil {
				end, err = c.NumberArg(1, "end")
			}
			if err == nil && len(c.Args) == 3 {
				step, err = c.NumberArg(2, "step")
			}
		}
		if err != nil {
			return Value{}, err
		}
		if step == 0 {
			return Value{}, c.Errf("range: step must not be zero")
		}
		var out []Value
		if step > 0 {
			for v := start; v < end; v += step {
				out = append(out, NumberValue(v))
			}
		} else {
			for v := start; v > end; v += step {
				out = append(out, NumberValue(v))
			}
		}
		return ArrayValue(out), nil
	})

	r.RegisterNative("keys", []string{"object"}, "", func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(1, 1); err != nil {
			return Value{}, err
		}
		v := c.Arg(0)
		if v.Tag != TagObject {
			return Value{}, c.Errf("keys: expected an object, got %s", v.TypeName())
		}
		m := v.Object()
		out := make([]Value, len(m.Keys))
		for idx, k := range m.Keys {
			out[idx] = StringValue(k)
		}
		return ArrayValue(out), nil
	})

	r.RegisterNative("values", []string{"object"}, "", func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(1, 1); err != nil {
			return Value{}, err
		}
		v := c.Arg(0)
		if v.Tag != TagObject {
			return Value{}, c.Errf("values: expected an object, got %s", v.TypeName())
		}
		m := v.Object()
		out := make([]Value, len(m.Keys))
		for idx, k := range m.Keys {
			out[idx] = m.Entries[k]
		}
		return ArrayValue(out), nil
	})

	r.RegisterNative("entries", []string{"object"}, "", func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(1, 1); err != nil {
			return Value{}, err
		}
		v := c.Arg(0)
		if v.Tag != TagObject {
			return Value{}, c.Errf("entries: expected an object, got %s", v.TypeName())
		}
		m := v.Object()
		out := make([]Value, len(m.Keys))
		for idx, k := range m.Keys {
			out[idx] = ArrayValue([]Value{StringValue(k), m.Entries[k]})
		}
		return ArrayValue(out), nil
	})

	r.RegisterNative("push", []string{"array", "value"}, "", func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(2, -1); err != nil {
			return Value{}, err
		}
		arr, err := c.ArrayArg(0, "array")
		if err != nil {
			return Value{}, err
		}
		arr.Elems = append(arr.Elems, c.Args[1:]...)
		return NumberValue(float64(len(arr.Elems))), nil
	})

	r.RegisterNative("pop", []string{"array"}, "", func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(1, 1); err != nil {
			return Value{}, err
		}
		arr, err := c.ArrayArg(0, "array")
		if err != nil {
			return Value{}, err
		}
		if len(arr.Elems) == 0 {
			return NullValue(), nil
		}
		last := arr.Elems[len(arr.Elems)-1]
		arr.Elems = arr.Elems[:len(arr.Elems)-1]
		return last, nil
	})

	r.RegisterNative("join", []string{"array", "separator"}, "", func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(1, 2); err != nil {
			return Value{}, err
		}
		arr, err := c.ArrayArg(0, "array")
		if err != nil {
			return Value{}, err
		}
		sep := ","
		if len(c.Args) == 2 {
			if sep, err = c.StringArg(1, "separator"); err != nil {
				return Value{}, err
			}
		}
		parts := make([]string, len(arr.Elems))
		for idx, el := range arr.Elems {
			parts[idx] = el.Display()
		}
		return StringValue(strings.Join(parts, sep)), nil
	})

	r.RegisterNative("split", []string{"string", "separator"}, "", func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(2, 2); err != nil {
			return Value{}, err
		}
		s, err := c.StringArg(0, "string")
		if err != nil {
			return Value{}, err
		}
		sep, err := c.StringArg(1, "separator")
		if err != nil {
			return Value{}, err
		}
		var parts []string
		if sep == "" {
			for _, r := range s {
				parts = append(parts, string(r))
			}
		} else {
			parts = strings.Split(s, sep)
		}
		out := make([]Value, len(parts))
		for idx, p := range parts {
			out[idx] = StringValue(p)
		}
		return ArrayValue(out), nil
	})

	r.RegisterNative("slice", []string{"value", "start", "end"}, "", func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(2, 3); err != nil {
			return Value{}, err
		}
		v := c.Arg(0)
		start, err := c.IntArg(1, "start")
		if err != nil {
			return Value{}, err
		}
		switch v.Tag {
		case TagArray:
			elems := v.Array().Elems
			lo, hi := clampSlice(start, sliceEnd(c, 2, len(elems)), len(elems))
			return ArrayValue(append([]Value{}, elems[lo:hi]...)), nil
		case TagString:
			runes := []rune(v.Str())
			lo, hi := clampSlice(start, sliceEnd(c, 2, len(runes)), len(runes))
			return StringValue(string(runes[lo:hi])), nil
		}
		return Value{}, c.Errf("slice: expected an array or string, got %s", v.TypeName())
	})

	r.RegisterNative("map", []string{"array", "callback"}, "", func(c *BuiltinCall) (Value, error) {
		arr, fn, err := arrayAndCallback(c)
		if err != nil {
			return Value{}, err
		}
		out := make([]Value, len(arr.Elems))
		for idx, el := range arr.Elems {
			v, err := c.CallCallback(fn, el, NumberValue(float64(idx)))
			if err != nil {
				return Value{}, err
			}
			out[idx] = v
		}
		return ArrayValue(out), nil
	})

	r.RegisterNative("filter", []string{"array", "callback"}, "", func(c *BuiltinCall) (Value, error) {
		arr, fn, err := arrayAndCallback(c)
		if err != nil {
			return Value{}, err
		}
		var out []Value
		for idx, el := range arr.Elems {
			keep, err := c.CallCallback(fn, el, NumberValue(float64(idx)))
			if err != nil {
				return Value{}, err
			}
			if keep.Truthy() {
				out = append(out, el)
			}
		}
		return ArrayValue(out), nil
	})

	r.RegisterNative("find", []string{"array", "callback"}, "", func(c *BuiltinCall) (Value, error) {
		arr, fn, err := arrayAndCallback(c)
		if err != nil {
			return Value{}, err
		}
		for idx, el := range arr.Elems {
			hit, err := c.CallCallback(fn, el, NumberValue(float64(idx)))
			if err != nil {
				return Value{}, err
			}
			if hit.Truthy() {
				return el, nil
			}
		}
		return NullValue(), nil
	})

	r.RegisterNative("includes", []string{"haystack", "needle"}, "", func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(2, 2); err != nil {
			return Value{}, err
		}
		v, needle := c.Arg(0), c.Arg(1)
		switch v.Tag {
		case TagArray:
			for _, el := range v.Array().Elems {
				if el.Equal(needle) {
					return BoolValue(true), nil
				}
			}
			return BoolValue(false), nil
		case TagString:
			if needle.Tag != TagString {
				return Value{}, c.Errf("includes: needle must be a string, got %s", needle.TypeName())
			}
			return BoolValue(strings.Contains(v.Str(), needle.Str())), nil
		}
		return Value{}, c.Errf("includes: expected an array or string, got %s", v.TypeName())
	})
}

func arrayAndCallback(c *BuiltinCall) (*ArrayObject, *Function, error) {
	if err := c.WantArgs(2, 2); err != nil {
		return nil, nil, err
	}
	arr, err := c.ArrayArg(0, "array")
	if err != nil {
		return nil, nil, err
	}
	fn, err := c.FuncArg(1, "callback")
	if err != nil {
		return nil, nil, err
	}
	return arr, fn, nil
}

func sliceEnd(c *BuiltinCall, idx, length int) int {
	if idx < len(c.Args) {
		if n, err := c.IntArg(idx, "end"); err == nil {
			return n
		}
	}
	return length
}

func clampSlice(lo, hi, length int) (int, int) {
	if lo < 0 {
		lo += length
	}
	if hi < 0 {
		hi += length
	}
	if lo < 0 {
		lo = 0
	}
	if hi > length {
		hi = length
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}
