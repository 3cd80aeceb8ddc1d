// builtin_exec.go — the bash namespace.
//
// Commands run through `sh -c` in the run's workdir, inherit the run's
// cancellation context, and are gated behind EnableBash. DryRun prints the
// command instead of running it.
package buddyscript

import (
	"bytes"
	"os/exec"
	"strings"
)

func registerBashBuiltins(r *Registry) {
	r.RegisterNamespace("bash", []NamespaceEntry{
		{Name: "run", Params: []string{"command"}, Capability: "bash", Impl: bashRun},
		{Name: "exec", Params: []string{"command"}, Capability: "bash", Impl: bashExec},
		{Name: "spawn", Params: []string{"command"}, Capability: "bash", Impl: bashSpawn},
	})
}

func shellCommand(c *BuiltinCall) (string, *exec.Cmd, error) {
	command, err := c.StringArg(0, "command")
	if err != nil {
		return "", nil, err
	}
	cmd := exec.CommandContext(c.Interp.ctx, "sh", "-c", command)
	cmd.Dir = c.Interp.opts.Workdir
	return command, cmd, nil
}

// bash.run captures output: returns {stdout, stderr, code}.
func bashRun(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(1, 1); err != nil {
		return Value{}, err
	}
	command, cmd, err := shellCommand(c)
	if err != nil {
		return Value{}, err
	}
	if c.Interp.opts.DryRun {
		c.Interp.dryRunNote("would run: %s", command)
		return commandResult("", "", 0), nil
	}
	c.Interp.verbosef("bash.run: %s", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	code := 0
	if rerr := cmd.Run(); rerr != nil {
		ee, ok := rerr.(*exec.ExitError)
		if !ok {
			return Value{}, c.Errf("bash.run: %s", rerr)
		}
		code = ee.ExitCode()
	}
	return commandResult(stdout.String(), stderr.String(), code), nil
}

// bash.exec streams output to the run's stdout/stderr and returns the
// exit code.
func bashExec(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(1, 1); err != nil {
		return Value{}, err
	}
	command, cmd, err := shellCommand(c)
	if err != nil {
		return Value{}, err
	}
	if c.Interp.opts.DryRun {
		c.Interp.dryRunNote("would exec: %s", command)
		return NumberValue(0), nil
	}
	c.Interp.verbosef("bash.exec: %s", command)
	cmd.Stdout = c.Interp.opts.Stdout
	cmd.Stderr = c.Interp.opts.Stderr
	if rerr := cmd.Run(); rerr != nil {
		ee, ok := rerr.(*exec.ExitError)
		if !ok {
			return Value{}, c.Errf("bash.exec: %s", rerr)
		}
		return NumberValue(float64(ee.ExitCode())), nil
	}
	return NumberValue(0), nil
}

// bash.spawn starts the command without waiting and returns its pid. The
// process is not tied to the run's lifetime.
func bashSpawn(c *BuiltinCall) (Value, error) {
	if err := c.WantArgs(1, 1); err != nil {
		return Value{}, err
	}
	command, err := c.StringArg(0, "command")
	if err != nil {
		return Value{}, err
	}
	if c.Interp.opts.DryRun {
		c.Interp.dryRunNote("would spawn: %s", command)
		return NumberValue(0), nil
	}
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = c.Interp.opts.Workdir
	if serr := cmd.Start(); serr != nil {
		return Value{}, c.Errf("bash.spawn: %s", serr)
	}
	pid := cmd.Process.Pid
	go cmd.Wait() // reap on exit
	return NumberValue(float64(pid)), nil
}

func commandResult(stdout, stderr string, code int) Value {
	obj := NewMapObject()
	obj.Set("stdout", StringValue(strings.TrimRight(stdout, "\n")))
	obj.Set("stderr", StringValue(strings.TrimRight(stderr, "\n")))
	obj.Set("code", NumberValue(float64(code)))
	return ObjectValue(obj)
}
