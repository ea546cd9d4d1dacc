package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseOptions(t *testing.T) {
	doc := []byte(`
entry_path: model.il
pytea_lib_path: ./pylib
log_level: full
path_cap: 64
python_cmd_args: ["--lr=0.1", "--epochs", "10"]
ignore_assert: true
`)
	opts, err := ParseOptions(doc, "pytea.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if opts.EntryPath != "model.il" || opts.LogLevel != LogFull || opts.PathCap != 64 {
		t.Errorf("parsed options wrong: %+v", opts)
	}
	if len(opts.PythonCmdArgs) != 3 || opts.PythonCmdArgs[0] != "--lr=0.1" {
		t.Errorf("python_cmd_args wrong: %v", opts.PythonCmdArgs)
	}
	if !opts.IgnoreAssert {
		t.Errorf("ignore_assert should parse as true")
	}
}

func TestParseOptionsDefaults(t *testing.T) {
	opts, err := ParseOptions([]byte("entry_path: m.il\n"), "pytea.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if opts.LogLevel != LogReduced {
		t.Errorf("default log level = %s, want reduced", opts.LogLevel)
	}
	if opts.PathCap != DefaultPathCap {
		t.Errorf("default path cap = %d, want %d", opts.PathCap, DefaultPathCap)
	}
}

func TestParseOptionsRejectsBadLevel(t *testing.T) {
	if _, err := ParseOptions([]byte("log_level: loud\n"), "pytea.yaml"); err == nil {
		t.Errorf("invalid log_level must be rejected")
	}
}

func TestFindConfigSearchesUpward(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := filepath.Join(root, "pytea.yaml")
	if err := os.WriteFile(cfg, []byte("entry_path: m.il\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	found, err := FindConfig(nested)
	if err != nil {
		t.Fatal(err)
	}
	if found != cfg {
		t.Errorf("FindConfig = %q, want %q", found, cfg)
	}
}
