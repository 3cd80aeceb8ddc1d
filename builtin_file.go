// builtin_file.go — the file namespace.
//
// Every entry is gated behind EnableFileOps. Relative paths resolve
// against Options.Workdir. Mutating entries honor DryRun by describing
// the intended effect and doing nothing.
package buddyscript

import (
	"io"
	"os"
	"path/filepath"
	"sort"
)

func registerFileBuiltins(r *Registry) {
	r.RegisterNamespace("file", []NamespaceEntry{
		{Name: "read", Params: []string{"path"}, Capability: "file", Impl: fileRead},
		{Name: "write", Params: []string{"path", "content"}, Capability: "file", Impl: fileWrite},
		{Name: "append", Params: []string{"path", "content"}, Capability: "file", Impl: fileAppend},
		{Name: "exists", Params: []string{"path"}, Capability: "file", Impl: fileExists},
		{Name: "delete", Params: []string{"path"}, Capability: "file", Impl: fileDelete},
		{Name: "copy", Params: []string{"from", "to"}, Capability: "file", Impl: fileCopy},
		{Name: "move", Params: []string{"from", "to"}, Capability: "file", Impl: fileMove},
		{Name: "list", Params: []string{"path"}, Capability: "file", Impl: fileList},
		{Name: "mkdir", Params: []string{"path"}, Capability: "file", Impl: fileMkdir},
		{Name: "stat", Params: []string{"path"}, Capability: "file", Impl: fileStat},
		{Name: "glob", Params: []string{"pattern"}, Capability: "file", Impl: fileGlob},
	})
}

// hostPath resolves a script path against the run's workdir.
func hostPath(c *BuiltinCall, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Interp.opts.Workdir, p)
}

func pathArg(c *BuiltinCall, idx int, what string) (string, error) {
	p, err := c.StringArg(idx, what)
	if err != nil {
		return "", err
	}
	return hostPath(c, p), nil
}

func fileRead(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(1, 1); err != nil {
		return Value{}, err
	}
	path, err := pathArg(c, 0, "path")
	if err != nil {
		return Value{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Value{}, c.Errf("file.read: %s", err)
	}
	return StringValue(string(data)), nil
}

func fileWrite(c *BuiltinCall) (Value, error) {
	return writeContent(c, false)
}

func fileAppend(c *BuiltinCall) (Value, error) {
	return writeContent(c, true)
}

func writeContent(c *BuiltinCall, appending bool) (Value, error) {
	if err := c.WantArgs(2, 2); err != nil {
		return Value{}, err
	}
	path, err := pathArg(c, 0, "path")
	if err != nil {
		return Value{}, err
	}
	content, err := c.StringArg(1, "content")
	if err != nil {
		return Value{}, err
	}
	verb := "write"
	if appending {
		verb = "append"
	}
	if c.Interp.opts.DryRun {
		c.Interp.dryRunNote("would %s %d bytes to %s", verb, len(content), path)
		return BoolValue(true), nil
	}
	if appending {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return Value{}, c.Errf("file.append: %s", err)
		}
		defer f.Close()
		if _, err := f.WriteString(content); err != nil {
			return Value{}, c.Errf("file.append: %s", err)
		}
		return BoolValue(true), nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return Value{}, c.Errf("file.write: %s", err)
	}
	return BoolValue(true), nil
}

func fileExists(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(1, 1); err != nil {
		return Value{}, err
	}
	path, err := pathArg(c, 0, "path")
	if err != nil {
		return Value{}, err
	}
	_, serr := os.Stat(path)
	return BoolValue(serr == nil), nil
}

func fileDelete(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(1, 1); err != nil {
		return Value{}, err
	}
	path, err := pathArg(c, 0, "path")
	if err != nil {
		return Value{}, err
	}
	if c.Interp.opts.DryRun {
		c.Interp.dryRunNote("would delete %s", path)
		return BoolValue(true), nil
	}
	if err := os.Remove(path); err != nil {
		return Value{}, c.Errf("file.delete: %s", err)
	}
	return BoolValue(true), nil
}

func fileCopy(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(2, 2); err != nil {
		return Value{}, err
	}
	from, err := pathArg(c, 0, "from")
	if err != nil {
		return Value{}, err
	}
	to, err := pathArg(c, 1, "to")
	if err != nil {
		return Value{}, err
	}
	if c.Interp.opts.DryRun {
		c.Interp.dryRunNote("would copy %s to %s", from, to)
		return BoolValue(true), nil
	}
	src, err := os.Open(from)
	if err != nil {
		return Value{}, c.Errf("file.copy: %s", err)
	}
	defer src.Close()
	dst, err := os.Create(to)
	if err != nil {
		return Value{}, c.Errf("file.copy: %s", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return Value{}, c.Errf("file.copy: %s", err)
	}
	return BoolValue(true), nil
}

func fileMove(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(2, 2); err != nil {
		return Value{}, err
	}
	from, err := pathArg(c, 0, "from")
	if err != nil {
		return Value{}, err
	}
	to, err := pathArg(c, 1, "to")
	if err != nil {
		return Value{}, err
	}
	if c.Interp.opts.DryRun {
		c.Interp.dryRunNote("would move %s to %s", from, to)
		return BoolValue(true), nil
	}
	if err := os.Rename(from, to); err != nil {
		return Value{}, c.Errf("file.move: %s", err)
	}
	return BoolValue(true), nil
}

func fileList(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(0, 1); err != nil {
		return Value{}, err
	}
	path := c.Interp.opts.Workdir
	if len(c.Args) == 1 {
		var err error
		if path, err = pathArg(c, 0, "path"); err != nil {
			return Value{}, err
		}
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return Value{}, c.Errf("file.list: %s", err)
	}
	out := make([]Value, len(entries))
	for idx, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		out[idx] = StringValue(name)
	}
	return ArrayValue(out), nil
}

func fileMkdir(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(1, 1); err != nil {
		return Value{}, err
	}
	path, err := pathArg(c, 0, "path")
	if err != nil {
		return Value{}, err
	}
	if c.Interp.opts.DryRun {
		c.Interp.dryRunNote("would create directory %s", path)
		return BoolValue(true), nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return Value{}, c.Errf("file.mkdir: %s", err)
	}
	return BoolValue(true), nil
}

func fileStat(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(1, 1); err != nil {
		return Value{}, err
	}
	path, err := pathArg(c, 0, "path")
	if err != nil {
		return Value{}, err
	}
	st, serr := os.Stat(path)
	if serr != nil {
		return Value{}, c.Errf("file.stat: %s", serr)
	}
	obj := NewMapObject()
	obj.Set("name", StringValue(st.Name()))
	obj.Set("size", NumberValue(float64(st.Size())))
	obj.Set("isDir", BoolValue(st.IsDir()))
	obj.Set("modified", NumberValue(float64(st.ModTime().UnixMilli())))
	return ObjectValue(obj), nil
}

func fileGlob(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(1, 1); err != nil {
		return Value{}, err
	}
	pattern, err := c.StringArg(0, "pattern")
	if err != nil {
		return Value{}, err
	}
	matches, gerr := filepath.Glob(hostPath(c, pattern))
	if gerr != nil {
		return Value{}, c.Errf("file.glob: %s", gerr)
	}
	sort.Strings(matches)
	wd := c.Interp.opts.Workdir
	out := make([]Value, len(matches))
	for idx, m := range matches {
		if rel, rerr := filepath.Rel(wd, m); rerr == nil {
			m = rel
		}
		out[idx] = StringValue(m)
	}
	return ArrayValue(out), nil
}
