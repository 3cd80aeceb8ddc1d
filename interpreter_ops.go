// interpreter_ops.go — expression evaluation and operator semantics.
package buddyscript

import (
	"math"
	"strings"
)

func (i *Interpreter) evalExpr(e Expr, env *Env) (Value, error) {
	switch ex := e.(type) {
	case *Literal:
		return ex.Value, nil

	case *Identifier:
		v, ok := env.Get(ex.Name)
		if !ok {
			return Value{}, rtErrf(ex.Line, "'%s' is not defined", ex.Name)
		}
		return v, nil

	case *Binary:
		return i.evalBinary(ex, env)

	case *Unary:
		return i.evalUnary(ex, env)

	case *Assignment:
		return i.evalAssignment(ex, env)

	case *Call:
		return i.evalCall(ex, env)

	case *Member:
		return i.evalMember(ex, env)

	case *Index:
		return i.evalIndex(ex, env)

	case *Array:
		elems := make([]Value, len(ex.Elements))
		for idx, el := range ex.Elements {
			v, err := i.evalExpr(el, env)
			if err != nil {
				return Value{}, err
			}
			elems[idx] = v
		}
		return ArrayValue(elems), nil

	case *Dict:
		obj := NewMapObject()
		for _, entry := range ex.Entries {
			v, err := i.evalExpr(entry.Value, env)
			if err != nil {
				return Value{}, err
			}
			obj.Set(entry.Key, v)
		}
		return ObjectValue(obj), nil

	case *Lambda:
		return FunctionValue(&Function{
			Params: ex.Params,
			Expr:   ex.Body,
			Body:   ex.BlockBody,
			Env:    env,
			Async:  ex.Async,
		}), nil

	case *Interpolation:
		var b strings.Builder
		for _, part := range ex.Parts {
			v, err := i.evalExpr(part, env)
			if err != nil {
				return Value{}, err
			}
			b.WriteString(v.Display())
		}
		return StringValue(b.String()), nil

	case *Ternary:
		cond, err := i.evalExpr(ex.Cond, env)
		if err != nil {
			return Value{}, err
		}
		if cond.Truthy() {
			return i.evalExpr(ex.Then, env)
		}
		return i.evalExpr(ex.Else, env)

	case *Await:
		v, err := i.evalExpr(ex.Operand, env)
		if err != nil {
			return Value{}, err
		}
		return i.awaitValue(v, ex.Line)
	}
	return Value{}, rtErrf(e.Pos(), "cannot evaluate %s expression", e.Kind())
}

/* ===========================
   Operators
   =========================== */

func (i *Interpreter) evalBinary(ex *Binary, env *Env) (Value, error) {
	// Logical operators short-circuit and yield the deciding operand.
	if ex.Op == "&&" || ex.Op == "||" {
		left, err := i.evalExpr(ex.Left, env)
		if err != nil {
			return Value{}, err
		}
		if ex.Op == "&&" {
			if !left.Truthy() {
				return left, nil
			}
		} else if left.Truthy() {
			return left, nil
		}
		return i.evalExpr(ex.Right, env)
	}

	left, err := i.evalExpr(ex.Left, env)
	if err != nil {
		return Value{}, err
	}
	right, err := i.evalExpr(ex.Right, env)
	if err != nil {
		return Value{}, err
	}
	return binaryOp(ex.Op, left, right, ex.Line)
}

// binaryOp applies a non-logical binary operator. Numbers follow float64
// semantics throughout (division by zero yields an infinity, not an
// error). `+` concatenates when either side is a string.
func binaryOp(op string, left, right Value, line int) (Value, error) {
	switch op {
	case "+":
		if left.Tag == TagString || right.Tag == TagString {
			return StringValue(left.Display() + right.Display()), nil
		}
		if left.Tag == TagArray && right.Tag == TagArray {
			out := append([]Value{}, left.Array().Elems...)
			out = append(out, right.Array().Elems...)
			return ArrayValue(out), nil
		}
		return numericOp(op, left, right, line)
	case "-", "*", "/", "%", "**":
		return numericOp(op, left, right, line)
	case "==":
		return BoolValue(left.Equal(right)), nil
	case "!=":
		return BoolValue(!left.Equal(right)), nil
	case "<", "<=", ">", ">=":
		return compareOp(op, left, right, line)
	}
	return Value{}, rtErrf(line, "unknown operator '%s'", op)
}

func numericOp(op string, left, right Value, line int) (Value, error) {
	if left.Tag != TagNumber || right.Tag != TagNumber {
		return Value{}, rtErrf(line, "operator '%s' needs numbers, got %s and %s",
			op, left.TypeName(), right.TypeName())
	}
	a, b := left.Number(), right.Number()
	switch op {
	case "+":
		return NumberValue(a + b), nil
	case "-":
		return NumberValue(a - b), nil
	case "*":
		return NumberValue(a * b), nil
	case "/":
		return NumberValue(a / b), nil
	case "%":
		return NumberValue(math.Mod(a, b)), nil
	case "**":
		return NumberValue(math.Pow(a, b)), nil
	}
	return Value{}, rtErrf(line, "unknown operator '%s'", op)
}

func compareOp(op string, left, right Value, line int) (Value, error) {
	var cmp int
	switch {
	case left.Tag == TagNumber && right.Tag == TagNumber:
		a, b := left.Number(), right.Number()
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		}
	case left.Tag == TagString && right.Tag == TagString:
		cmp = strings.Compare(left.Str(), right.Str())
	default:
		return Value{}, rtErrf(line, "cannot compare %s with %s", left.TypeName(), right.TypeName())
	}
	switch op {
	case "<":
		return BoolValue(cmp < 0), nil
	case "<=":
		return BoolValue(cmp <= 0), nil
	case ">":
		return BoolValue(cmp > 0), nil
	}
	return BoolValue(cmp >= 0), nil
}

func (i *Interpreter) evalUnary(ex *Unary, env *Env) (Value, error) {
	v, err := i.evalExpr(ex.Operand, env)
	if err != nil {
		return Value{}, err
	}
	switch ex.Op {
	case "!":
		return BoolValue(!v.Truthy()), nil
	case "-":
		if v.Tag != TagNumber {
			return Value{}, rtErrf(ex.Line, "cannot negate %s", v.TypeName())
		}
		return NumberValue(-v.Number()), nil
	}
	return Value{}, rtErrf(ex.Line, "unknown unary operator '%s'", ex.Op)
}

/* ===========================
   Assignment
   =========================== */

func (i *Interpreter) evalAssignment(ex *Assignment, env *Env) (Value, error) {
	value, err := i.evalExpr(ex.Value, env)
	if err != nil {
		return Value{}, err
	}
	if ex.Op != "=" {
		// Compound assignment reads the target first.
		current, err := i.evalExpr(ex.Target, env)
		if err != nil {
			return Value{}, err
		}
		value, err = binaryOp(strings.TrimSuffix(ex.Op, "="), current, value, ex.Line)
		if err != nil {
			return Value{}, err
		}
	}

	switch target := ex.Target.(type) {
	case *Identifier:
		if err := env.Assign(target.Name, value); err != nil {
			return Value{}, rtErrf(ex.Line, "%s", err)
		}
		return value, nil

	case *Member:
		obj, err := i.evalExpr(target.Obj, env)
		if err != nil {
			return Value{}, err
		}
		if obj.Tag != TagObject {
			return Value{}, rtErrf(ex.Line, "cannot set property '%s' on %s", target.Name, obj.TypeName())
		}
		obj.Object().Set(target.Name, value)
		return value, nil

	case *Index:
		obj, err := i.evalExpr(target.Obj, env)
		if err != nil {
			return Value{}, err
		}
		key, err := i.evalExpr(target.Index, env)
		if err != nil {
			return Value{}, err
		}
		return value, setIndexed(obj, key, value, ex.Line)
	}
	return Value{}, rtErrf(ex.Line, "invalid assignment target")
}

func setIndexed(obj, key, value Value, line int) error {
	switch obj.Tag {
	case TagArray:
		if key.Tag != TagNumber {
			return rtErrf(line, "array index must be a number, got %s", key.TypeName())
		}
		arr := obj.Array()
		idx := int(key.Number())
		if idx < 0 || idx >= len(arr.Elems) {
			return rtErrf(line, "array index %d out of range (length %d)", idx, len(arr.Elems))
		}
		arr.Elems[idx] = value
		return nil
	case TagObject:
		if key.Tag != TagString {
			return rtErrf(line, "object key must be a string, got %s", key.TypeName())
		}
		obj.Object().Set(key.Str(), value)
		return nil
	}
	return rtErrf(line, "cannot index-assign into %s", obj.TypeName())
}

/* ===========================
   Calls, member access, indexing
   =========================== */

func (i *Interpreter) evalCall(ex *Call, env *Env) (Value, error) {
	callee, err := i.evalExpr(ex.Callee, env)
	if err != nil {
		return Value{}, err
	}

	args := make([]Value, len(ex.Args))
	for idx, a := range ex.Args {
		v, err := i.evalExpr(a, env)
		if err != nil {
			return Value{}, err
		}
		args[idx] = v
	}
	var named map[string]Value
	if len(ex.Named) > 0 {
		named = make(map[string]Value, len(ex.Named))
		for _, na := range ex.Named {
			v, err := i.evalExpr(na.Value, env)
			if err != nil {
				return Value{}, err
			}
			named[na.Name] = v
		}
	}

	switch callee.Tag {
	case TagFunction:
		return i.callFunction(callee.Func(), args, named, ex.Line)
	case TagClass:
		return i.instantiate(callee.Data.(*Class), args, named, ex.Line)
	}
	return Value{}, rtErrf(ex.Line, "%s is not callable", callee.TypeName())
}

// evalMember reads a property. Missing object properties yield null so
// scripts can probe optional config shapes without try blocks; access on
// null is still an error.
func (i *Interpreter) evalMember(ex *Member, env *Env) (Value, error) {
	obj, err := i.evalExpr(ex.Obj, env)
	if err != nil {
		return Value{}, err
	}
	switch obj.Tag {
	case TagObject:
		if v, ok := obj.Object().Get(ex.Name); ok {
			return v, nil
		}
		return NullValue(), nil
	case TagArray:
		if ex.Name == "length" {
			return NumberValue(float64(len(obj.Array().Elems))), nil
		}
	case TagString:
		if ex.Name == "length" {
			return NumberValue(float64(len([]rune(obj.Str())))), nil
		}
	case TagNull:
		return Value{}, rtErrf(ex.Line, "cannot read property '%s' of null", ex.Name)
	}
	return Value{}, rtErrf(ex.Line, "%s has no property '%s'", obj.TypeName(), ex.Name)
}

func (i *Interpreter) evalIndex(ex *Index, env *Env) (Value, error) {
	obj, err := i.evalExpr(ex.Obj, env)
	if err != nil {
		return Value{}, err
	}
	key, err := i.evalExpr(ex.Index, env)
	if err != nil {
		return Value{}, err
	}
	switch obj.Tag {
	case TagArray:
		if key.Tag != TagNumber {
			return Value{}, rtErrf(ex.Line, "array index must be a number, got %s", key.TypeName())
		}
		arr := obj.Array().Elems
		idx := int(key.Number())
		if idx < 0 || idx >= len(arr) {
			return Value{}, rtErrf(ex.Line, "array index %d out of range (length %d)", idx, len(arr))
		}
		return arr[idx], nil
	case TagString:
		if key.Tag != TagNumber {
			return Value{}, rtErrf(ex.Line, "string index must be a number, got %s", key.TypeName())
		}
		runes := []rune(obj.Str())
		idx := int(key.Number())
		if idx < 0 || idx >= len(runes) {
			return Value{}, rtErrf(ex.Line, "string index %d out of range (length %d)", idx, len(runes))
		}
		return StringValue(string(runes[idx])), nil
	case TagObject:
		if key.Tag != TagString {
			return Value{}, rtErrf(ex.Line, "object key must be a string, got %s", key.TypeName())
		}
		if v, ok := obj.Object().Get(key.Str()); ok {
			return v, nil
		}
		return NullValue(), nil
	}
	return Value{}, rtErrf(ex.Line, "cannot index into %s", obj.TypeName())
}
