// Package config holds the process-wide options that govern one analysis
// session: library roots, the entry module, CLI-argument seeding, logging
// verbosity, and the knobs that change interpreter behavior at the margins
// (assert handling, path-cap policy, IR extraction).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LogLevel controls how much diagnostic detail a report keeps.
type LogLevel string

const (
	LogNone       LogLevel = "none"
	LogResultOnly LogLevel = "result-only"
	LogReduced    LogLevel = "reduced"
	LogFull       LogLevel = "full"
)

// DefaultPathCap bounds the number of live paths kept before the
// ContextSet structurally joins them (see internal/pathctx).
const DefaultPathCap = 256

// Options is the process-wide configuration, set once before a run.
type Options struct {
	PyteaLibPath             string   `yaml:"pytea_lib_path"`
	EntryPath                string   `yaml:"entry_path"`
	PythonCmdArgs             []string `yaml:"python_cmd_args"`
	PythonSubcommand          string   `yaml:"python_subcommand"`
	LogLevel                  LogLevel `yaml:"log_level"`
	ImmediateConstraintCheck  bool     `yaml:"immediate_constraint_check"`
	IgnoreAssert              bool     `yaml:"ignore_assert"`
	ExtractIR                 bool     `yaml:"extract_ir"`
	PathCap                   int      `yaml:"path_cap"`
}

// Default returns the zero-value-safe default configuration.
func Default() *Options {
	return &Options{
		LogLevel: LogReduced,
		PathCap:  DefaultPathCap,
	}
}

// setDefaults fills in fields a YAML document left zero.
func (o *Options) setDefaults() {
	if o.LogLevel == "" {
		o.LogLevel = LogReduced
	}
	if o.PathCap <= 0 {
		o.PathCap = DefaultPathCap
	}
}

func (o *Options) validate(path string) error {
	switch o.LogLevel {
	case LogNone, LogResultOnly, LogReduced, LogFull:
	default:
		return fmt.Errorf("%s: invalid log_level %q", path, o.LogLevel)
	}
	if o.PathCap < 1 {
		return fmt.Errorf("%s: path_cap must be >= 1", path)
	}
	return nil
}

// ParseOptions parses a pytea.yaml document from bytes. path is used only
// for error messages.
func ParseOptions(data []byte, path string) (*Options, error) {
	opts := Default()
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	opts.setDefaults()
	if err := opts.validate(path); err != nil {
		return nil, err
	}
	return opts, nil
}

// Load reads and parses a pytea.yaml configuration file.
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseOptions(data, path)
}

// FindConfig searches dir and its parents for pytea.yaml/pytea.yml, the
// same search-upward convention the host ecosystem uses for its own
// project configuration files.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range []string{"pytea.yaml", "pytea.yml"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
