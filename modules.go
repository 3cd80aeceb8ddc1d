// modules.go — script module loading.
//
// `import "util.bs" as util` (or `import util from "util.bs"`) loads a
// script file, runs it once in its own scope, and binds an object of its
// exported names. Modules are cached per interpreter by absolute path;
// a load cycle is detected and reported rather than recursed into.
package buddyscript

import (
	"os"
	"path/filepath"
)

type moduleRecord struct {
	exports Value
}

func (i *Interpreter) execImport(st *Import, env *Env) error {
	path, err := i.resolveModulePath(st.Path, st.Line)
	if err != nil {
		return err
	}
	rec, ok := i.modules[path]
	if !ok {
		if i.loading[path] {
			return rtErrf(st.Line, "circular import of %q", st.Path)
		}
		rec, err = i.loadModule(path, st.Line)
		if err != nil {
			return err
		}
	}
	if err := env.Define(st.Name, rec.exports, false); err != nil {
		return rtErrf(st.Line, "%s", err)
	}
	return nil
}

// resolveModulePath anchors a relative import at the importing module's
// directory, falling back to the run's workdir at top level, and tries
// the .bs then .fcs extension when none is given.
func (i *Interpreter) resolveModulePath(spec string, line int) (string, error) {
	base := i.opts.Workdir
	if n := len(i.moduleDirs); n > 0 {
		base = i.moduleDirs[n-1]
	}
	path := spec
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	candidates := []string{path}
	if filepath.Ext(path) == "" {
		candidates = []string{path + ".bs", path + ".fcs"}
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return filepath.Abs(c)
		}
	}
	return "", rtErrf(line, "module %q not found", spec)
}

func (i *Interpreter) loadModule(path string, line int) (*moduleRecord, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, rtErrf(line, "cannot read module %q: %s", path, err)
	}
	program, err := ParseSource(string(src))
	if err != nil {
		return nil, rtErrf(line, "in module %q: %s", filepath.Base(path), err)
	}

	i.loading[path] = true
	i.moduleDirs = append(i.moduleDirs, filepath.Dir(path))
	prevExports := i.exports
	i.exports = NewMapObject()
	defer func() {
		i.exports = prevExports
		i.moduleDirs = i.moduleDirs[:len(i.moduleDirs)-1]
		delete(i.loading, path)
	}()

	moduleEnv := NewEnv(i.globals)
	if err := i.execStmts(program.Stmts, moduleEnv); err != nil {
		return nil, i.finishError(err)
	}

	rec := &moduleRecord{exports: ObjectValue(i.exports)}
	i.modules[path] = rec
	return rec, nil
}

// execExport runs the wrapped declaration, then records the declared name
// in the current module's export set. Exporting at top level of a plain
// run is allowed and inert.
func (i *Interpreter) execExport(st *Export, env *Env) error {
	if err := i.execStmt(st.Decl, env); err != nil {
		return err
	}
	if i.exports == nil {
		return nil
	}
	name := exportedName(st.Decl)
	if name == "" {
		return rtErrf(st.Line, "export needs a named declaration")
	}
	v, ok := env.Get(name)
	if !ok {
		return rtErrf(st.Line, "exported name '%s' is not defined", name)
	}
	i.exports.Set(name, v)
	return nil
}

func exportedName(s Stmt) string {
	switch d := s.(type) {
	case *FunctionDecl:
		return d.Name
	case *ClassDecl:
		return d.Name
	case *VarDecl:
		return d.Name
	}
	return ""
}
