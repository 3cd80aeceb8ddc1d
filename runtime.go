// runtime.go — the standard registry and file-level entry points.
package buddyscript

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Version reported by the CLI and the `version` global.
const Version = "0.4.0"

// ScriptExt is the canonical source extension; LegacyExt is accepted as
// an alias with identical grammar.
const (
	ScriptExt = ".bs"
	LegacyExt = ".fcs"
)

// IsScriptPath reports whether path carries a recognized extension.
func IsScriptPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ScriptExt || ext == LegacyExt
}

// StandardRegistry builds a registry with the full builtin surface.
// Capability-gated namespaces are always present; whether they may run is
// decided per call from Options.
func StandardRegistry() *Registry {
	r := NewRegistry()
	registerCoreBuiltins(r)
	registerCollectionBuiltins(r)
	registerStringBuiltins(r)
	registerMathBuiltins(r)
	registerTimeBuiltins(r)
	registerFileBuiltins(r)
	registerBashBuiltins(r)
	registerAIBuiltins(r)
	registerEnvBuiltins(r)
	registerJSONBuiltins(r)
	r.RegisterValue("version", StringValue(Version))
	return r
}

// RunSource parses and runs src against the standard registry. Errors are
// annotated with a caret snippet of the offending source line.
func RunSource(ctx context.Context, src string, opts Options) (Value, error) {
	program, err := ParseSource(src)
	if err != nil {
		return NullValue(), WrapErrorWithSource(err, src)
	}
	v, err := New(StandardRegistry(), opts).Run(ctx, program)
	if err != nil {
		return NullValue(), WrapErrorWithSource(err, src)
	}
	return v, nil
}

// RunFile reads, parses and runs a script file. When opts.Workdir is
// unset it defaults to the script's directory, so relative file.* paths
// and imports resolve next to the script.
func RunFile(ctx context.Context, path string, opts Options) (Value, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return NullValue(), err
	}
	if opts.Workdir == "" {
		if abs, aerr := filepath.Abs(path); aerr == nil {
			opts.Workdir = filepath.Dir(abs)
		}
	}
	program, perr := ParseSource(string(src))
	if perr != nil {
		return NullValue(), WrapErrorWithName(perr, filepath.Base(path), string(src))
	}
	v, rerr := New(StandardRegistry(), opts).Run(ctx, program)
	if rerr != nil {
		return NullValue(), WrapErrorWithName(rerr, filepath.Base(path), string(src))
	}
	return v, nil
}

// TestFile runs the test blocks of a script file.
func TestFile(ctx context.Context, path string, opts Options) ([]TestResult, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if opts.Workdir == "" {
		if abs, aerr := filepath.Abs(path); aerr == nil {
			opts.Workdir = filepath.Dir(abs)
		}
	}
	program, perr := ParseSource(string(src))
	if perr != nil {
		return nil, WrapErrorWithName(perr, filepath.Base(path), string(src))
	}
	results, terr := New(StandardRegistry(), opts).RunTests(ctx, program)
	if terr != nil {
		return results, WrapErrorWithName(terr, filepath.Base(path), string(src))
	}
	return results, nil
}
