package config

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap/zapcore"

	"github.com/cognicore/faultdx/pkg/faultdx"
	"github.com/cognicore/faultdx/pkg/faultdx/inference"
	"github.com/cognicore/faultdx/pkg/faultdx/inference/simple"
	"github.com/cognicore/faultdx/pkg/faultdx/internalerr"
	"github.com/cognicore/faultdx/pkg/faultdx/rulebase"
)

// Loader loads the configuration file and constructs components.
// Explicit paths override the ones named in the file.
type Loader struct {
	ConfigPath  string
	RulesPath   string
	JournalPath string
}

// Components holds all loaded configuration components
type Components struct {
	RuleBase    *inference.RuleBase
	Engine      simple.Config
	Policy      faultdx.SymptomPolicy
	JournalPath string
	Workers     int
	LogLevel    zapcore.Level
}

// Load reads the configuration and returns initialized components
func (l *Loader) Load() (*Components, error) {
	cfg := &Config{}
	baseDir := ""

	if l.ConfigPath != "" {
		loaded, err := Load(l.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		baseDir = filepath.Dir(l.ConfigPath)
	}

	comp := &Components{
		Engine: simple.Config{
			PassFactor:    cfg.Engine.PassFactor,
			MaxProofDepth: cfg.Engine.MaxProofDepth,
		},
		Workers:     cfg.Workers,
		JournalPath: resolve(baseDir, cfg.Journal),
		LogLevel:    zapcore.InfoLevel,
	}
	if l.JournalPath != "" {
		comp.JournalPath = l.JournalPath
	}

	policy, err := faultdx.ParseSymptomPolicy(cfg.UnknownSymptoms)
	if err != nil {
		return nil, err
	}
	comp.Policy = policy

	if cfg.LogLevel != "" {
		lvl, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("%w: log_level: %v", internalerr.ErrInvalidConfig, err)
		}
		comp.LogLevel = lvl
	}

	// Load rules
	rulesPath := resolve(baseDir, cfg.Rules)
	if l.RulesPath != "" {
		rulesPath = l.RulesPath
	}
	if rulesPath != "" {
		rb, err := rulebase.Load(rulesPath)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		comp.RuleBase = rb
	} else {
		comp.RuleBase = rulebase.Default()
	}

	return comp, nil
}

// Options builds Diagnoser options from the components. Journal and logger
// are left to the caller.
func (c *Components) Options() faultdx.Options {
	return faultdx.Options{
		RuleBase:        c.RuleBase,
		Engine:          c.Engine,
		UnknownSymptoms: c.Policy,
		Workers:         c.Workers,
	}
}

// resolve makes a config-relative path absolute against the config directory
func resolve(baseDir, path string) string {
	if path == "" || baseDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
