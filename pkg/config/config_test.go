package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func newFlags() *pflag.FlagSet {
	f := pflag.NewFlagSet("flowc", pflag.ContinueOnError)
	f.String("flow", "", "")
	f.String("out", "", "")
	f.Bool("run", false, "")
	f.String("python", "python3", "")
	f.Int("port", 8080, "")
	f.Bool("web", false, "")
	f.CountP("verbose", "v", "")
	f.Bool("json-logs", false, "")
	return f
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Port)
	}
	if cfg.Python != "python3" {
		t.Errorf("Expected python3, got %s", cfg.Python)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected the server to default to loopback, got %s", cfg.Host)
	}
	if cfg.Run || cfg.Watch || cfg.WebMode || cfg.JSONLogs {
		t.Errorf("Expected all modes off, got %+v", cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flowc.toml")
	content := "flow = \"from-file.json\"\nport = 7000\npython = \"/usr/bin/python3.12\"\nverbosity = \"debug\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FLOWC_PORT", "9090")
	t.Setenv("FLOWC_JSON_LOGS", "true")

	flags := newFlags()
	if err := flags.Parse([]string{"--flow", "from-flag.json", "-vv"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(flags, path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Flow != "from-flag.json" {
		t.Errorf("Expected the flag to win, got %s", cfg.Flow)
	}
	if cfg.Port != 9090 {
		t.Errorf("Expected env to beat the file, got %d", cfg.Port)
	}
	if cfg.Python != "/usr/bin/python3.12" {
		t.Errorf("Expected the file to beat an unset flag's default, got %s", cfg.Python)
	}
	if cfg.Verbosity != "debug" {
		t.Errorf("Expected verbosity from file, got %s", cfg.Verbosity)
	}
	if cfg.VerboseCnt != 2 {
		t.Errorf("Expected verbose count 2, got %d", cfg.VerboseCnt)
	}
	if !cfg.JSONLogs {
		t.Error("Expected json-logs from env")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(nil, filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Expected an error for a missing explicit config file")
	}
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowc.toml")
	if err := os.WriteFile(path, []byte("port = = 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(nil, path); err == nil {
		t.Error("Expected a parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"compile", Config{Flow: "a.json", Port: 8080}, false},
		{"web without flow", Config{WebMode: true, Port: 8080}, false},
		{"no flow", Config{Port: 8080}, true},
		{"bad port", Config{Flow: "a.json", Port: 0}, true},
		{"run without python", Config{Flow: "a.json", Port: 8080, Run: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
