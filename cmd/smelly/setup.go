package main

import (
	"path/filepath"
	"strings"

	"github.com/jmylchreest/smelly/pkg/config"
	"github.com/jmylchreest/smelly/pkg/rules"
	"github.com/jmylchreest/smelly/pkg/scanner"
	"github.com/jmylchreest/smelly/pkg/store"
)

// configFlags are accepted by every command that builds a scanner.
var configFlags = []string{
	"--config=", "--format=", "--threshold=", "--rules=",
	"--max-params=", "--complexity=", "--concurrency=",
}

// intConfigFlags maps integer flags to the config keys they override.
var intConfigFlags = []struct{ flag, key string }{
	{"--max-params=", config.KeyMaxParameters},
	{"--complexity=", config.KeyComplexityThreshold},
	{"--concurrency=", config.KeyConcurrency},
}

// app is a validated configuration with the scanner built from it.
type app struct {
	root     string
	cfg      *config.Config
	registry *rules.Registry
	scanner  *scanner.Scanner
}

// configOverrides turns command-line flags into config overrides.
func configOverrides(args []string) (map[string]any, error) {
	o := make(map[string]any)
	if v := parseFlag(args, "--format="); v != "" {
		o[config.KeyFormat] = v
	}
	if v := parseFlag(args, "--threshold="); v != "" {
		o[config.KeySeverityThreshold] = v
	}
	if v := parseFlag(args, "--rules="); v != "" {
		o[config.KeyEnabledRules] = strings.Split(v, ",")
	}
	for _, f := range intConfigFlags {
		if parseFlag(args, f.flag) == "" {
			continue
		}
		n, err := intFlag(args, f.flag, 0)
		if err != nil {
			return nil, err
		}
		o[f.key] = n
	}
	return o, nil
}

// setup loads and validates the configuration and builds the scanner. A
// quiet app discards scanner logs.
func (c *cli) setup(args []string, quiet bool) (*app, error) {
	overrides, err := configOverrides(args)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(config.LoadOptions{
		ProjectRoot: c.root,
		File:        parseFlag(args, "--config="),
		Overrides:   overrides,
	})
	if err != nil {
		return nil, err
	}

	opts := rules.DefaultOptions()
	opts.MaxParameters = cfg.MaxParameters
	opts.ComplexityThreshold = cfg.ComplexityThreshold
	reg := rules.Builtin(opts)
	if err := cfg.Validate(reg.IDs()); err != nil {
		return nil, err
	}
	engine, err := reg.Engine(cfg.EnabledRules)
	if err != nil {
		return nil, &config.ConfigError{Field: config.KeyEnabledRules, Msg: err.Error(), Err: err}
	}

	scanOpts := []scanner.Option{
		scanner.WithThreshold(cfg.SeverityThreshold),
		scanner.WithConcurrency(cfg.Concurrency),
		scanner.WithMaxFileSize(cfg.MaxFileSize),
	}
	if quiet {
		scanOpts = append(scanOpts, scanner.WithLogger(nil))
	}
	return &app{
		root:     c.root,
		cfg:      cfg,
		registry: reg,
		scanner:  scanner.New(engine, scanOpts...),
	}, nil
}

// storePath resolves the configured findings database against the project
// root.
func (a *app) storePath() string {
	if filepath.IsAbs(a.cfg.StorePath) {
		return a.cfg.StorePath
	}
	return filepath.Join(a.root, a.cfg.StorePath)
}

func (a *app) openStore() (*store.Store, error) {
	return store.Open(a.storePath())
}
