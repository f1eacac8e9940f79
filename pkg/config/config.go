// Package config loads scanner configuration from built-in defaults, an
// optional JSON file, SMELLY_* environment variables and explicit
// overrides, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/report"
)

// FileName is the project configuration file looked up in the project root.
const FileName = ".smelly.json"

// EnvPrefix prefixes environment overrides, e.g. SMELLY_MAX_PARAMETERS.
const EnvPrefix = "SMELLY_"

// Config keys.
const (
	KeyMaxParameters       = "maxParameters"
	KeyComplexityThreshold = "complexityThreshold"
	KeyEnabledRules        = "enabledRules"
	KeySeverityThreshold   = "severityThreshold"
	KeyConcurrency         = "concurrency"
	KeyFormat              = "format"
	KeyMaxFileSize         = "maxFileSize"
	KeyStorePath           = "storePath"
)

// DefaultStorePath is the findings history database, relative to the
// project root.
var DefaultStorePath = filepath.Join(".smelly", "findings.db")

// Config is the resolved scanner configuration.
type Config struct {
	MaxParameters       int      `koanf:"maxParameters" json:"maxParameters"`
	ComplexityThreshold int      `koanf:"complexityThreshold" json:"complexityThreshold"`
	EnabledRules        []string `koanf:"enabledRules" json:"enabledRules"`
	SeverityThreshold   string   `koanf:"severityThreshold" json:"severityThreshold"`
	Concurrency         int      `koanf:"concurrency" json:"concurrency"`
	Format              string   `koanf:"format" json:"format"`
	MaxFileSize         int64    `koanf:"maxFileSize" json:"maxFileSize"`
	StorePath           string   `koanf:"storePath" json:"storePath"`

	// Source is the configuration file that was loaded, if any.
	Source string `koanf:"-" json:"-"`
}

// ConfigError reports an invalid configuration value. It is fatal before any
// scanning starts.
type ConfigError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Msg
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Defaults returns the built-in configuration values.
func Defaults() map[string]any {
	return map[string]any{
		KeyMaxParameters:       findings.DefaultMaxParameters,
		KeyComplexityThreshold: findings.DefaultComplexityThreshold,
		KeyEnabledRules:        []string{},
		KeySeverityThreshold:   findings.DefaultSeverityThreshold,
		KeyConcurrency:         findings.DefaultConcurrency,
		KeyFormat:              findings.DefaultFormat,
		KeyMaxFileSize:         findings.DefaultMaxFileSize,
		KeyStorePath:           DefaultStorePath,
	}
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ProjectRoot is searched for .smelly.json. Defaults to the working
	// directory.
	ProjectRoot string
	// File is an explicit configuration file. It must exist.
	File string
	// Environ supplies environment variables. Defaults to os.Environ.
	Environ func() []string
	// Overrides are applied last, typically from command-line flags.
	Overrides map[string]any
}

// Load resolves the configuration. The result is not validated against the
// rule catalog; call Validate for that.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	path := opts.File
	if path == "" {
		root := opts.ProjectRoot
		if root == "" {
			root = "."
		}
		candidate := filepath.Join(root, FileName)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("config file %s: %v", path, err), Err: err}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return nil, &ConfigError{Msg: fmt.Sprintf("parse %s: %v", path, err), Err: err}
		}
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ
	}
	envProvider := env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		EnvironFunc:   environ,
		TransformFunc: transformEnv,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("load overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, &ConfigError{Msg: err.Error(), Err: err}
	}
	cfg.Source = path
	cfg.EnabledRules = normaliseList(cfg.EnabledRules)
	return &cfg, nil
}

// transformEnv maps SMELLY_MAX_PARAMETERS=7 to maxParameters=7 and splits
// list values on commas.
func transformEnv(key, value string) (string, any) {
	key = camelCase(strings.TrimPrefix(key, EnvPrefix))
	if key == KeyEnabledRules {
		return key, normaliseList(strings.Split(value, ","))
	}
	return key, value
}

func camelCase(s string) string {
	parts := strings.Split(strings.ToLower(s), "_")
	var b strings.Builder
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i > 0 {
			r := []rune(p)
			r[0] = unicode.ToUpper(r[0])
			p = string(r)
		}
		b.WriteString(p)
	}
	return b.String()
}

func normaliseList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks value ranges and that every enabled rule id is known. The
// severity threshold and format are normalised in place.
func (c *Config) Validate(knownRules []string) error {
	if c.MaxParameters < 1 {
		return &ConfigError{Field: KeyMaxParameters, Msg: fmt.Sprintf("must be >= 1, got %d", c.MaxParameters)}
	}
	if c.ComplexityThreshold < 1 {
		return &ConfigError{Field: KeyComplexityThreshold, Msg: fmt.Sprintf("must be >= 1, got %d", c.ComplexityThreshold)}
	}
	if c.Concurrency < 1 {
		return &ConfigError{Field: KeyConcurrency, Msg: fmt.Sprintf("must be >= 1, got %d", c.Concurrency)}
	}
	if c.MaxFileSize < 1 {
		return &ConfigError{Field: KeyMaxFileSize, Msg: fmt.Sprintf("must be >= 1, got %d", c.MaxFileSize)}
	}

	sev, err := findings.ParseSeverity(c.SeverityThreshold)
	if err != nil {
		return &ConfigError{Field: KeySeverityThreshold, Msg: err.Error(), Err: err}
	}
	c.SeverityThreshold = sev

	c.Format = strings.ToLower(c.Format)
	if !slices.Contains(report.Formats, c.Format) {
		return &ConfigError{
			Field: KeyFormat,
			Msg:   fmt.Sprintf("unknown format %q (want %s)", c.Format, strings.Join(report.Formats, ", ")),
		}
	}

	var unknown []string
	for _, id := range c.EnabledRules {
		if !slices.Contains(knownRules, id) {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return &ConfigError{Field: KeyEnabledRules, Msg: "unknown rule ids: " + strings.Join(unknown, ", ")}
	}
	return nil
}

// IsConfigError reports whether err is, or wraps, a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
