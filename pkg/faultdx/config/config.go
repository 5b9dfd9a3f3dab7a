package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/faultdx/pkg/faultdx"
	"github.com/cognicore/faultdx/pkg/faultdx/internalerr"
)

// Config represents the faultdx configuration file
type Config struct {
	Rules           string `yaml:"rules"` // rule base file; empty selects the built-in rules
	Engine          Engine `yaml:"engine"`
	UnknownSymptoms string `yaml:"unknown_symptoms"`
	Journal         string `yaml:"journal"` // SQLite path; empty disables the journal
	Workers         int    `yaml:"workers"`
	LogLevel        string `yaml:"log_level"`
}

// Engine holds the inference bounds
type Engine struct {
	PassFactor    int `yaml:"pass_factor"`
	MaxProofDepth int `yaml:"max_proof_depth"`
}

// Load loads the configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidConfig, err)
	}
	if cfg.Workers < 0 || cfg.Engine.PassFactor < 0 || cfg.Engine.MaxProofDepth < 0 {
		return nil, fmt.Errorf("%w: negative bound", internalerr.ErrInvalidConfig)
	}

	return &cfg, nil
}

// CaseFile is a batch of diagnosis requests
type CaseFile struct {
	Cases []faultdx.Case `yaml:"cases"`
}

// LoadCases loads batch cases from a YAML file
func LoadCases(path string) ([]faultdx.Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cf CaseFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrInvalidInput, err)
	}
	for i, c := range cf.Cases {
		switch c.Mode {
		case "", faultdx.Forward, faultdx.Backward:
		default:
			return nil, fmt.Errorf("%w: case %d: unknown mode %q", internalerr.ErrInvalidInput, i, c.Mode)
		}
	}

	return cf.Cases, nil
}
