// builtin_math_time.go — the math namespace and the clock builtins.
package buddyscript

import (
	"math"
	"math/rand"
	"time"
)

func registerMathBuiltins(r *Registry) {
	num1 := func(f func(float64) float64) BuiltinImpl {
		return func(c *BuiltinCall) (Value, error) {
			if err := c.WantArgs(1, 1); err != nil {
				return Value{}, err
			}
			x, err := c.NumberArg(0, "x")
			if err != nil {
				return Value{}, err
			}
			return NumberValue(f(x)), nil
		}
	}
	num2 := func(f func(a, b float64) float64) BuiltinImpl {
		return func(c *BuiltinCall) (Value, error) {
			if err := c.WantArgs(2, 2); err != nil {
				return Value{}, err
			}
			a, err := c.NumberArg(0, "a")
			if err != nil {
				return Value{}, err
			}
			b, err := c.NumberArg(1, "b")
			if err != nil {
				return Value{}, err
			}
			return NumberValue(f(a, b)), nil
		}
	}

	r.RegisterNamespace("math", []NamespaceEntry{
		{Name: "abs", Params: []string{"x"}, Impl: num1(math.Abs)},
		{Name: "floor", Params: []string{"x"}, Impl: num1(math.Floor)},
		{Name: "ceil", Params: []string{"x"}, Impl: num1(math.Ceil)},
		{Name: "round", Params: []string{"x"}, Impl: num1(math.Round)},
		{Name: "sqrt", Params: []string{"x"}, Impl: num1(math.Sqrt)},
		{Name: "pow", Params: []string{"base", "exp"}, Impl: num2(math.Pow)},
		{Name: "min", Params: []string{"a", "b"}, Impl: num2(math.Min)},
		{Name: "max", Params: []string{"a", "b"}, Impl: num2(math.Max)},
		{Name: "random", Impl: func(c *BuiltinCall) (Value, error) {
			if err := c.WantArgs(0, 0); err != nil {
				return Value{}, err
			}
			return NumberValue(rand.Float64()), nil
		}},
	})
}

func registerTimeBuiltins(r *Registry) {
	// time and now both report Unix milliseconds; now reads better in
	// scripts that treat it as a timestamp, time in ones that measure.
	millis := func(c *BuiltinCall) (Value, error) {
		if err := c.WantArgs(0, 0); err != nil {
			return Value{}, err
		}
		return NumberValue(float64(time.Now().UnixMilli())), nil
	}
	r.RegisterNative("time", nil, "", millis)
	r.RegisterNative("now", nil, "", millis)

	// sleep(ms) honors cancellation: a context abort wakes it early and
	// surfaces as the run's cancellation error.
	r.RegisterNative("sleep", []string{"ms"}, "", func(c *BuiltinCall) (Value, error) {
		ms, err := c.NumberArg(0, "ms")
		if err != nil {
			return Value{}, err
		}
		if ms < 0 {
			ms = 0
		}
		timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
		defer timer.Stop()
		select {
		case <-timer.C:
			return NullValue(), nil
		case <-c.Interp.ctx.Done():
			return Value{}, c.Interp.checkCancelled(c.Line)
		}
	})
}
