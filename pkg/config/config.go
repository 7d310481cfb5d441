// Package config loads interpreter settings from a YAML file.
//
// Example fsl.yaml:
//
//	log_level: info
//	encoding: shift_jis
//	max_call_depth: 500
//	timeout: 10s
//	strict: false
//	print_zero: false
//	entry: init
//	scripts:
//	  - main.fsl
//	  - extra.fsl
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zurustar/fsl/pkg/logger"
)

// Defaults.
const (
	DefaultLogLevel     = "warn"
	DefaultEncoding     = "utf-8"
	DefaultMaxCallDepth = 1000
	DefaultEntry        = "init"
)

// Config holds the interpreter settings.
type Config struct {
	LogLevel     string        `yaml:"log_level"`
	Encoding     string        `yaml:"encoding"`
	MaxCallDepth int           `yaml:"max_call_depth"`
	Timeout      time.Duration `yaml:"timeout"`
	Strict       bool          `yaml:"strict"`
	PrintZero    bool          `yaml:"print_zero"`
	Entry        string        `yaml:"entry"`
	Scripts      []string      `yaml:"scripts"`

	// Path is the file the config was loaded from, empty for defaults.
	Path string `yaml:"-"`
}

// ValidationError aggregates config validation failures.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "config: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("config validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n  - ")
		b.WriteString(issue)
	}
	return b.String()
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:     DefaultLogLevel,
		Encoding:     DefaultEncoding,
		MaxCallDepth: DefaultMaxCallDepth,
		Entry:        DefaultEntry,
	}
}

// Load reads a config file. Fields missing from the file keep their defaults.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Decode parses YAML from r on top of the defaults and validates the result.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings and reports every problem at once.
func (c *Config) Validate() error {
	var issues []string

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		issues = append(issues, fmt.Sprintf("log_level %q must be debug, info, warn, or error", c.LogLevel))
	}
	if c.MaxCallDepth < 1 {
		issues = append(issues, fmt.Sprintf("max_call_depth must be positive, got %d", c.MaxCallDepth))
	}
	if c.Timeout < 0 {
		issues = append(issues, fmt.Sprintf("timeout must be non-negative, got %s", c.Timeout))
	}
	if strings.TrimSpace(c.Entry) == "" {
		issues = append(issues, "entry must not be empty")
	}
	if strings.TrimSpace(c.Encoding) == "" {
		issues = append(issues, "encoding must not be empty")
	}
	for i, s := range c.Scripts {
		if strings.TrimSpace(s) == "" {
			issues = append(issues, fmt.Sprintf("scripts[%d] is empty", i))
		}
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// ScriptPaths returns the configured scripts, relative paths resolved
// against the directory of the config file.
func (c *Config) ScriptPaths() []string {
	paths := make([]string, 0, len(c.Scripts))
	base := ""
	if c.Path != "" {
		base = filepath.Dir(c.Path)
	}
	for _, s := range c.Scripts {
		if base != "" && !filepath.IsAbs(s) {
			s = filepath.Join(base, s)
		}
		paths = append(paths, s)
	}
	return paths
}
