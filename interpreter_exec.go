// interpreter_exec.go — statement execution.
//
// Statements execute via error returns: nil for normal completion, a
// control signal (return/break/continue), a thrown value, or a host
// RuntimeError. The cancellation signal is checked before every statement.
package buddyscript

import "fmt"

func (i *Interpreter) execStmts(stmts []Stmt, env *Env) error {
	for _, s := range stmts {
		if err := i.execStmt(s, env); err != nil {
			return err
		}
	}
	return nil
}

// execStmtValue is execStmt that also surfaces the value of an expression
// statement; used for the program's final result and by the REPL.
func (i *Interpreter) execStmtValue(s Stmt, env *Env) (Value, error) {
	if es, ok := s.(*ExpressionStmt); ok {
		if err := i.checkCancelled(es.Line); err != nil {
			return Value{}, err
		}
		return i.evalExpr(es.X, env)
	}
	return NullValue(), i.execStmt(s, env)
}

func (i *Interpreter) execStmt(s Stmt, env *Env) error {
	if err := i.checkCancelled(s.Pos()); err != nil {
		return err
	}

	switch st := s.(type) {
	case *VarDecl:
		return i.execVarDecl(st, env)

	case *FunctionDecl:
		fn := &Function{
			Name:   st.Name,
			Params: st.Params,
			Body:   st.Body,
			Env:    env,
			Async:  st.Async,
		}
		if err := env.Define(st.Name, FunctionValue(fn), false); err != nil {
			return rtErrf(st.Line, "%s", err)
		}
		return nil

	case *ClassDecl:
		return i.execClassDecl(st, env)

	case *If:
		cond, err := i.evalExpr(st.Cond, env)
		if err != nil {
			return err
		}
		if cond.Truthy() {
			return i.execBlockIn(st.Then, env)
		}
		if st.Else != nil {
			return i.execStmt(st.Else, env)
		}
		return nil

	case *While:
		return i.execWhile(st, env)

	case *For:
		return i.execForIn(st, env)

	case *ForCStyle:
		return i.execForC(st, env)

	case *Return:
		v := NullValue()
		if st.Value != nil {
			rv, err := i.evalExpr(st.Value, env)
			if err != nil {
				return err
			}
			v = rv
		}
		return &returnSignal{value: v, line: st.Line}

	case *Break:
		return &breakSignal{line: st.Line}

	case *Continue:
		return &continueSignal{line: st.Line}

	case *Try:
		return i.execTry(st, env)

	case *Throw:
		v, err := i.evalExpr(st.Value, env)
		if err != nil {
			return err
		}
		return &thrownError{value: v, line: st.Line}

	case *Import:
		return i.execImport(st, env)

	case *Export:
		return i.execExport(st, env)

	case *TestDecl:
		// Test blocks are inert outside RunTests.
		return nil

	case *Assert:
		return i.execAssert(st, env)

	case *Block:
		return i.execBlockIn(st, env)

	case *ExpressionStmt:
		_, err := i.evalExpr(st.X, env)
		return err
	}
	return rtErrf(s.Pos(), "cannot execute %s statement", s.Kind())
}

// execBlockIn runs a block in a fresh child scope.
func (i *Interpreter) execBlockIn(b *Block, env *Env) error {
	return i.execStmts(b.Stmts, NewEnv(env))
}

func (i *Interpreter) execVarDecl(st *VarDecl, env *Env) error {
	v := NullValue()
	if st.Init != nil {
		iv, err := i.evalExpr(st.Init, env)
		if err != nil {
			return err
		}
		v = iv
	}
	if err := env.Define(st.Name, v, st.Decl != DeclConst); err != nil {
		return rtErrf(st.Line, "%s", err)
	}
	return nil
}

func (i *Interpreter) execClassDecl(st *ClassDecl, env *Env) error {
	cls := &Class{
		Name:    st.Name,
		Methods: map[string]*Function{},
		Fields:  st.Fields,
		Env:     env,
	}
	if st.Base != "" {
		bv, ok := env.Get(st.Base)
		if !ok {
			return rtErrf(st.Line, "unknown base class '%s'", st.Base)
		}
		if bv.Tag != TagClass {
			return rtErrf(st.Line, "'%s' is not a class", st.Base)
		}
		cls.Base = bv.Data.(*Class)
	}
	for _, m := range st.Methods {
		cls.Methods[m.Name] = &Function{
			Name:   st.Name + "." + m.Name,
			Params: m.Params,
			Body:   m.Body,
			Env:    env,
			Async:  m.Async,
		}
	}
	if err := env.Define(st.Name, ClassValue(cls), false); err != nil {
		return rtErrf(st.Line, "%s", err)
	}
	return nil
}

// instantiate builds an instance object: base-class fields and methods
// first, then this class's, then the `init` method with the call
// arguments.
func (i *Interpreter) instantiate(cls *Class, args []Value, named map[string]Value, line int) (Value, error) {
	obj := NewMapObject()
	instance := ObjectValue(obj)
	if err := i.populateInstance(cls, obj, &instance, line); err != nil {
		return Value{}, err
	}
	if initV, ok := obj.Get("init"); ok && initV.Tag == TagFunction {
		if _, err := i.callFunction(initV.Func(), args, named, line); err != nil {
			return Value{}, err
		}
	} else if len(args) > 0 || len(named) > 0 {
		return Value{}, rtErrf(line, "class %s has no init method but was called with arguments", cls.Name)
	}
	return instance, nil
}

func (i *Interpreter) populateInstance(cls *Class, obj *MapObject, self *Value, line int) error {
	if cls.Base != nil {
		if err := i.populateInstance(cls.Base, obj, self, line); err != nil {
			return err
		}
	}
	fieldEnv := NewEnv(cls.Env)
	fieldEnv.ForceDefine("this", *self, false)
	for _, f := range cls.Fields {
		v := NullValue()
		if f.Init != nil {
			fv, err := i.evalExpr(f.Init, fieldEnv)
			if err != nil {
				return err
			}
			v = fv
		}
		obj.Set(f.Name, v)
	}
	for name, m := range cls.Methods {
		bound := *m
		bound.BoundSelf = self
		obj.Set(name, FunctionValue(&bound))
	}
	_ = line
	return nil
}

func (i *Interpreter) execWhile(st *While, env *Env) error {
	for {
		if err := i.checkCancelled(st.Line); err != nil {
			return err
		}
		cond, err := i.evalExpr(st.Cond, env)
		if err != nil {
			return err
		}
		if !cond.Truthy() {
			return nil
		}
		if err := i.execBlockIn(st.Body, env); err != nil {
			if _, ok := err.(*breakSignal); ok {
				return nil
			}
			if _, ok := err.(*continueSignal); ok {
				continue
			}
			return err
		}
	}
}

func (i *Interpreter) execForIn(st *For, env *Env) error {
	iter, err := i.evalExpr(st.Iter, env)
	if err != nil {
		return err
	}
	items, err := iterationItems(iter, st.Line)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := i.checkCancelled(st.Line); err != nil {
			return err
		}
		loopEnv := NewEnv(env)
		loopEnv.ForceDefine(st.Name, item, true)
		if err := i.execStmts(st.Body.Stmts, loopEnv); err != nil {
			if _, ok := err.(*breakSignal); ok {
				return nil
			}
			if _, ok := err.(*continueSignal); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// iterationItems enumerates a for-in subject: array elements, string
// characters, or object keys in insertion order.
func iterationItems(v Value, line int) ([]Value, error) {
	switch v.Tag {
	case TagArray:
		return v.Array().Elems, nil
	case TagString:
		runes := []rune(v.Str())
		items := make([]Value, len(runes))
		for idx, r := range runes {
			items[idx] = StringValue(string(r))
		}
		return items, nil
	case TagObject:
		m := v.Object()
		items := make([]Value, len(m.Keys))
		for idx, k := range m.Keys {
			items[idx] = StringValue(k)
		}
		return items, nil
	}
	return nil, rtErrf(line, "cannot iterate over %s", v.TypeName())
}

func (i *Interpreter) execForC(st *ForCStyle, env *Env) error {
	loopEnv := NewEnv(env)
	if st.Init != nil {
		if err := i.execStmt(st.Init, loopEnv); err != nil {
			return err
		}
	}
	for {
		if err := i.checkCancelled(st.Line); err != nil {
			return err
		}
		if st.Cond != nil {
			cond, err := i.evalExpr(st.Cond, loopEnv)
			if err != nil {
				return err
			}
			if !cond.Truthy() {
				return nil
			}
		}
		if err := i.execBlockIn(st.Body, loopEnv); err != nil {
			if _, ok := err.(*breakSignal); ok {
				return nil
			}
			if _, ok := err.(*continueSignal); ok {
				// fall through to the post step
			} else {
				return err
			}
		}
		if st.Post != nil {
			if err := i.execStmt(st.Post, loopEnv); err != nil {
				return err
			}
		}
	}
}

// execTry: catch clauses match in declaration order; an untyped clause
// matches anything catchable, a typed one matches on the thrown value's
// type tag. The finally block runs exactly once on every exit path, and
// its own abnormal outcome supersedes the pending one.
func (i *Interpreter) execTry(st *Try, env *Env) error {
	err := i.execBlockIn(st.Body, env)
	if err != nil && i.isCatchable(err) {
		tag := thrownTypeTag(err)
		for _, c := range st.Catches {
			if c.TypeFilter != "" && c.TypeFilter != tag {
				continue
			}
			catchEnv := NewEnv(env)
			if c.Binding != "" {
				catchEnv.ForceDefine(c.Binding, thrownBinding(err), true)
			}
			err = i.execStmts(c.Body.Stmts, catchEnv)
			break
		}
	}
	if st.Finally != nil {
		if ferr := i.execBlockIn(st.Finally, env); ferr != nil {
			return ferr
		}
	}
	return err
}

func (i *Interpreter) execAssert(st *Assert, env *Env) error {
	cond, err := i.evalExpr(st.Cond, env)
	if err != nil {
		return err
	}
	if cond.Truthy() {
		return nil
	}
	msg := "assertion failed"
	if st.Message != nil {
		mv, err := i.evalExpr(st.Message, env)
		if err != nil {
			return err
		}
		msg = fmt.Sprintf("assertion failed: %s", mv.Display())
	}
	return rtErrf(st.Line, "%s", msg)
}
