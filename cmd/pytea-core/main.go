// Command pytea-core is the minimal CLI driver: it wires the stub
// s-expression Parser, a command-line ArgSource and the default range
// oracle around the interpreter, runs one analysis, and prints the
// per-path report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/pytea-go/symexec/internal/config"
	"github.com/pytea-go/symexec/internal/diagnostics"
	"github.com/pytea-go/symexec/internal/interp"
	"github.com/pytea-go/symexec/internal/ir"
	"github.com/pytea-go/symexec/internal/report"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pytea-core:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to pytea.yaml (default: search upward from the cwd)")
		entryPath  = flag.String("entry", "", "entry module file, overrides the configured entry_path")
		logLevel   = flag.String("log-level", "", "none | result-only | reduced | full (overrides the config)")
		jsonOut    = flag.Bool("json", false, "emit the JSON report instead of the human-readable one")
	)
	flag.Parse()

	opts, err := loadOptions(*configPath)
	if err != nil {
		return err
	}
	if *entryPath != "" {
		opts.EntryPath = *entryPath
	}
	if *logLevel != "" {
		opts.LogLevel = config.LogLevel(*logLevel)
	}
	if opts.EntryPath == "" {
		return fmt.Errorf("no entry module: pass -entry or set entry_path in pytea.yaml")
	}

	text, err := os.ReadFile(opts.EntryPath)
	if err != nil {
		return fmt.Errorf("reading entry module: %w", err)
	}
	var parser ir.SExprParser
	program, err := parser.ParseModule(string(text), opts.EntryPath)
	if err != nil {
		return fmt.Errorf("lowering entry module: %w", err)
	}

	if opts.ExtractIR {
		dump := opts.EntryPath + ".ir"
		if err := os.WriteFile(dump, []byte(report.IRDump(printable{program})), 0o644); err != nil {
			return fmt.Errorf("writing IR dump: %w", err)
		}
		fmt.Fprintln(os.Stderr, "wrote", dump)
	}

	goCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	started := time.Now()
	it := interp.New(opts, cmdArgs(opts.PythonCmdArgs), &fileLoader{root: opts.PyteaLibPath, parser: parser})
	result := it.Run(goCtx, program)
	elapsed := time.Since(started)

	if result.Cancelled {
		fmt.Fprintln(os.Stderr, "analysis cancelled; reporting the paths explored so far")
	}

	if *jsonOut {
		rep := report.Build("", result.Set.Live, result.Set.Failed, opts.LogLevel)
		data, err := rep.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	out := diagnostics.Render(result.Set.Live, result.Set.Failed, opts.LogLevel)
	fmt.Print(colorize(out))
	fmt.Printf("explored %s paths in %s\n",
		humanize.Comma(int64(len(result.Set.Live)+len(result.Set.Failed))),
		elapsed.Round(time.Millisecond))
	return nil
}

func loadOptions(path string) (*config.Options, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if path, err = config.FindConfig(cwd); err != nil {
			return nil, err
		}
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// printable adapts an IR node to the fmt.Stringer the report package
// dumps.
type printable struct{ node ir.Node }

func (p printable) String() string { return ir.Print(p.node) }

// cmdArgs is the ArgSource over pythonCmdArgs: "--name=value",
// "--name value" and bare "--flag" (true) forms.
type cmdArgs []string

func (a cmdArgs) Get(name string) (any, bool) {
	want := strings.TrimLeft(name, "-")
	for i := 0; i < len(a); i++ {
		arg := a[i]
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		body := strings.TrimPrefix(arg, "--")
		if eq := strings.IndexByte(body, '='); eq >= 0 {
			if body[:eq] == want {
				return body[eq+1:], true
			}
			continue
		}
		if body != want {
			continue
		}
		if i+1 < len(a) && !strings.HasPrefix(a[i+1], "--") {
			return a[i+1], true
		}
		return true, true
	}
	return nil, false
}

// fileLoader resolves dotted import paths under the configured library
// root, loading "pkg.mod" from <root>/pkg/mod.il.
type fileLoader struct {
	root   string
	parser ir.SExprParser
}

func (l *fileLoader) LoadModule(qualPath string) (*ir.Block, error) {
	if l.root == "" {
		return nil, fmt.Errorf("pytea_lib_path is not configured")
	}
	rel := filepath.Join(strings.Split(qualPath, ".")...) + ".il"
	full := filepath.Join(l.root, rel)
	text, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	return l.parser.ParseModule(string(text), full)
}

// colorize tints severity labels when stdout is a terminal, the same
// gate the terminal builtins in the wider toolchain use.
func colorize(s string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return s
	}
	r := strings.NewReplacer(
		"[error]", "\x1b[31m[error]\x1b[0m",
		"[warning]", "\x1b[33m[warning]\x1b[0m",
		"[log]", "\x1b[36m[log]\x1b[0m",
		": failure", ": \x1b[31mfailure\x1b[0m",
		": warning", ": \x1b[33mwarning\x1b[0m",
		": success", ": \x1b[32msuccess\x1b[0m",
	)
	return r.Replace(s)
}
