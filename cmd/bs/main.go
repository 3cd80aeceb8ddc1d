// Command bs runs Buddy Script files and hosts the interactive REPL.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
	"github.com/urfave/cli/v2"

	buddyscript "github.com/phuetz/buddyscript"
)

const (
	historyFile = ".buddyscript_history"
	promptMain  = "bs> "
	promptCont  = "... "
)

var (
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	bannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
)

func main() {
	app := &cli.App{
		Name:    "bs",
		Usage:   "run Buddy Script files (.bs, .fcs)",
		Version: buddyscript.Version,
		Flags:   runFlags(),
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "run a script file",
				ArgsUsage: "<script>",
				Flags:     runFlags(),
				Action:    cmdRun,
			},
			{
				Name:   "repl",
				Usage:  "start an interactive session",
				Flags:  runFlags(),
				Action: cmdRepl,
			},
			{
				Name:      "test",
				Usage:     "run the test blocks of one or more script files",
				ArgsUsage: "<script>...",
				Flags:     runFlags(),
				Action:    cmdTest,
			},
		},
		// `bs script.bs` works without the run subcommand.
		Action: func(c *cli.Context) error {
			if c.Args().Len() == 0 {
				return cmdRepl(c)
			}
			return cmdRun(c)
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render(err.Error()))
		os.Exit(1)
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "dry-run", Usage: "describe side effects without performing them"},
		&cli.BoolFlag{Name: "allow-file", Usage: "enable the file.* builtins"},
		&cli.BoolFlag{Name: "allow-bash", Usage: "enable the bash.* builtins"},
		&cli.BoolFlag{Name: "allow-ai", Usage: "enable the ai.* builtins"},
		&cli.BoolFlag{Name: "allow-all", Usage: "enable every capability"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log host-side detail"},
		&cli.StringFlag{Name: "workdir", Usage: "base directory for file paths and imports"},
		&cli.IntFlag{Name: "timeout", Usage: "abort the run after this many milliseconds"},
	}
}

// buildOptions merges .buddyscript.yaml defaults with the flags; a flag
// set on the command line wins over the file.
func buildOptions(c *cli.Context, scriptDir string) buddyscript.Options {
	var opts buddyscript.Options
	if path := buddyscript.FindConfig(scriptDir); path != "" {
		if cfg, err := buddyscript.LoadConfig(path); err == nil {
			opts = cfg.Apply(opts)
		} else {
			fmt.Fprintln(os.Stderr, mutedStyle.Render(fmt.Sprintf("ignoring %s: %v", path, err)))
		}
	}
	if c.IsSet("dry-run") {
		opts.DryRun = c.Bool("dry-run")
	}
	if c.IsSet("allow-file") {
		opts.EnableFileOps = c.Bool("allow-file")
	}
	if c.IsSet("allow-bash") {
		opts.EnableBash = c.Bool("allow-bash")
	}
	if c.IsSet("allow-ai") {
		opts.EnableAI = c.Bool("allow-ai")
	}
	if c.Bool("allow-all") {
		opts.EnableFileOps = true
		opts.EnableBash = true
		opts.EnableAI = true
	}
	if c.IsSet("verbose") {
		opts.Verbose = c.Bool("verbose")
	}
	if c.IsSet("timeout") {
		opts.TimeoutMs = c.Int("timeout")
	}
	if c.IsSet("workdir") {
		opts.Workdir = c.String("workdir")
	}
	return opts
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func cmdRun(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return cli.Exit("usage: bs run <script>", 2)
	}
	path := c.Args().First()
	if !buddyscript.IsScriptPath(path) {
		return cli.Exit(fmt.Sprintf("%s: expected a %s or %s file", path, buddyscript.ScriptExt, buddyscript.LegacyExt), 2)
	}
	ctx, cancel := signalContext()
	defer cancel()

	opts := buildOptions(c, filepath.Dir(path))
	if _, err := buddyscript.RunFile(ctx, path, opts); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render(err.Error()))
		return cli.Exit("", 1)
	}
	return nil
}

func cmdTest(c *cli.Context) error {
	if c.Args().Len() == 0 {
		return cli.Exit("usage: bs test <script>...", 2)
	}
	ctx, cancel := signalContext()
	defer cancel()

	passed, failed := 0, 0
	for _, path := range c.Args().Slice() {
		results, err := buddyscript.TestFile(ctx, path, buildOptions(c, filepath.Dir(path)))
		if err != nil {
			fmt.Fprintln(os.Stderr, errStyle.Render(err.Error()))
			failed++
			continue
		}
		for _, res := range results {
			if res.Passed {
				passed++
				fmt.Printf("%s %s\n", passStyle.Render("PASS"), res.Name)
			} else {
				failed++
				fmt.Printf("%s %s\n", failStyle.Render("FAIL"), res.Name)
				fmt.Println(mutedStyle.Render("     " + res.Err.Error()))
			}
		}
	}
	fmt.Println(mutedStyle.Render(fmt.Sprintf("%d passed, %d failed", passed, failed)))
	if failed > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

func cmdRepl(c *cli.Context) error {
	fmt.Println(bannerStyle.Render(fmt.Sprintf("Buddy Script %s", buddyscript.Version)))
	fmt.Println(mutedStyle.Render("Ctrl+D exits. Type :quit to exit."))

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	wd, _ := os.Getwd()
	opts := buildOptions(c, wd)
	interp := buddyscript.New(buddyscript.StandardRegistry(), opts)

	ln.SetCompleter(func(line string) []string {
		prefix := line
		if idx := strings.LastIndexAny(line, " \t([{,"); idx >= 0 {
			prefix = line[idx+1:]
		}
		var out []string
		for _, name := range interp.Globals().Names() {
			if strings.HasPrefix(name, prefix) {
				out = append(out, line[:len(line)-len(prefix)]+name)
			}
		}
		return out
	})

	for {
		code, ok := readInput(ln)
		if !ok {
			fmt.Println()
			return nil
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			if trimmed == ":quit" {
				return nil
			}
			fmt.Println(mutedStyle.Render("unknown command. Type :quit to exit."))
			continue
		}

		v, err := interp.EvalSource(context.Background(), code)
		if err != nil {
			fmt.Fprintln(os.Stderr, errStyle.Render(buddyscript.WrapErrorWithSource(err, code).Error()))
			continue
		}
		if v.Tag != buddyscript.TagNull {
			fmt.Println(valueStyle.Render(v.Display()))
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
	}
}

// readInput keeps prompting with a continuation prompt while the parser
// reports the buffered source as incomplete (open block, dangling
// operator), so multi-line constructs paste naturally.
func readInput(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if _, perr := buddyscript.ParseSource(src); perr != nil && buddyscript.IsIncomplete(perr) {
			continue
		}
		return src, true
	}
}
