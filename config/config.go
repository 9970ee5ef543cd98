// Package config provides configuration loading for cpg-enrich.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidDepth is returned when eog.max_depth is negative.
	ErrInvalidDepth = errors.New("eog.max_depth must not be negative")
	// ErrInvalidParallelism is returned when frontend.parallelism is below one.
	ErrInvalidParallelism = errors.New("frontend.parallelism must be at least 1")
	// ErrInvalidLanguage is returned for languages without a frontend.
	ErrInvalidLanguage = errors.New("unsupported frontend language")
)

// KnownLanguages lists the frontend names accepted in frontend.languages.
var KnownLanguages = []string{"java", "c", "go"}

// Config is the complete cpg-enrich configuration.
type Config struct {
	Inference InferenceConfig `yaml:"inference"`
	EOG       EOGConfig       `yaml:"eog"`
	Frontend  FrontendConfig  `yaml:"frontend"`
	Output    OutputConfig    `yaml:"output"`
}

// InferenceConfig switches the synthesis of missing declarations.
type InferenceConfig struct {
	// Records allows inferring records for unresolved object types.
	Records bool `yaml:"records"`
	// Functions allows inferring functions and methods for unresolved calls.
	Functions bool `yaml:"functions"`
	// Fields allows inferring fields for unresolved member accesses.
	Fields bool `yaml:"fields"`
}

// EOGConfig configures the evaluation order graph passes.
type EOGConfig struct {
	// PruneUnreachable removes edges of nodes no root reaches.
	PruneUnreachable bool `yaml:"prune_unreachable"`
	// CheckInvariant runs the edge mirror check after building.
	CheckInvariant bool `yaml:"check_invariant"`
	// MaxDepth bounds the builder's recursion (0 = unbounded).
	MaxDepth int `yaml:"max_depth"`
}

// FrontendConfig configures source discovery and parsing.
type FrontendConfig struct {
	Languages   []string `yaml:"languages"`
	SkipTests   bool     `yaml:"skip_tests"`
	Parallelism int      `yaml:"parallelism"`
}

// OutputConfig configures the export.
type OutputConfig struct {
	// Validate runs the validation queries after writing the database.
	Validate bool `yaml:"validate"`
	// MetricsFile receives the pass counters in Prometheus text format.
	MetricsFile string `yaml:"metrics_file"`
}

// DefaultConfig returns a Config with inference and pruning enabled.
func DefaultConfig() *Config {
	return &Config{
		Inference: InferenceConfig{
			Records:   true,
			Functions: true,
			Fields:    true,
		},
		EOG: EOGConfig{
			PruneUnreachable: true,
			CheckInvariant:   false,
			MaxDepth:         4096,
		},
		Frontend: FrontendConfig{
			Languages:   []string{"java", "c", "go"},
			SkipTests:   true,
			Parallelism: 8,
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.EOG.MaxDepth < 0 {
		return ErrInvalidDepth
	}
	if c.Frontend.Parallelism < 1 {
		return ErrInvalidParallelism
	}
	for _, l := range c.Frontend.Languages {
		if !slices.Contains(KnownLanguages, l) {
			return fmt.Errorf("%w: %q", ErrInvalidLanguage, l)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return config, nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Merge merges other into c. Non-zero values of other take precedence;
// switches can only be turned on, use the CLI flags to turn them off.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	c.Inference.Records = c.Inference.Records || other.Inference.Records
	c.Inference.Functions = c.Inference.Functions || other.Inference.Functions
	c.Inference.Fields = c.Inference.Fields || other.Inference.Fields

	c.EOG.PruneUnreachable = c.EOG.PruneUnreachable || other.EOG.PruneUnreachable
	c.EOG.CheckInvariant = c.EOG.CheckInvariant || other.EOG.CheckInvariant
	if other.EOG.MaxDepth != 0 {
		c.EOG.MaxDepth = other.EOG.MaxDepth
	}

	if len(other.Frontend.Languages) > 0 {
		c.Frontend.Languages = slices.Clone(other.Frontend.Languages)
	}
	c.Frontend.SkipTests = c.Frontend.SkipTests || other.Frontend.SkipTests
	if other.Frontend.Parallelism != 0 {
		c.Frontend.Parallelism = other.Frontend.Parallelism
	}

	c.Output.Validate = c.Output.Validate || other.Output.Validate
	if other.Output.MetricsFile != "" {
		c.Output.MetricsFile = other.Output.MetricsFile
	}
}
