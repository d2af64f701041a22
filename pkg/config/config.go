package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultFile is the optional config file read from the working directory
const DefaultFile = "flowc.toml"

// EnvPrefix prefixes environment overrides, e.g. FLOWC_PORT=9090
const EnvPrefix = "FLOWC_"

// Config holds all configuration for the application
type Config struct {
	Flow       string `koanf:"flow"`    // flow file to compile
	Out        string `koanf:"out"`     // script destination, stdout when empty
	Run        bool   `koanf:"run"`     // execute the script after compiling
	Python     string `koanf:"python"`  // interpreter used by --run
	Install    bool   `koanf:"install"` // pip install imported packages before running
	Figures    string `koanf:"figures"` // directory for figures written by --run
	Watch      bool   `koanf:"watch"`
	WebMode    bool   `koanf:"web"`
	Host       string `koanf:"host"` // interface the web server listens on
	Port       int    `koanf:"port"`
	Verbosity  string `koanf:"verbosity"`
	VerboseCnt int    `koanf:"verbose"`
	JSONLogs   bool   `koanf:"json-logs"`
}

// Defaults returns the built-in configuration values
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"flow":      "",
		"out":       "",
		"run":       false,
		"python":    "python3",
		"install":   false,
		"figures":   "",
		"watch":     false,
		"web":       false,
		"host":      "127.0.0.1",
		"port":      8080,
		"verbosity": "",
		"verbose":   0,
		"json-logs": false,
	}
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
// An empty path reads DefaultFile when it exists.
func Load(f *pflag.FlagSet, path string) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(makeMapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config File (optional unless named explicitly)
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	// 3. Environment Variables
	// FLOWC_JSON_LOGS maps to json-logs
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// Unmarshal into struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks combinations of settings that cannot work together
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if !c.WebMode && c.Flow == "" {
		return errors.New("no flow file given")
	}
	if c.Run && c.Python == "" {
		return errors.New("--run needs a python interpreter")
	}
	return nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
