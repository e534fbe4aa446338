package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/panbanda/pydeadcode/pkg/analyzer/deadcode"
)

// Config holds all configuration options for pydeadcode.
type Config struct {
	// Analysis settings
	Analysis AnalysisConfig `koanf:"analysis" toml:"analysis"`

	// Confidence model
	Heuristics HeuristicsConfig `koanf:"heuristics" toml:"heuristics"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`
}

// AnalysisConfig controls a run.
type AnalysisConfig struct {
	MinConfidence int    `koanf:"min_confidence" toml:"min_confidence"`
	Sort          string `koanf:"sort" toml:"sort"`
	Workers       int    `koanf:"workers" toml:"workers"`             // 0 = 2x NumCPU
	MaxFileSize   int64  `koanf:"max_file_size" toml:"max_file_size"` // bytes, 0 = unlimited
}

// HeuristicsConfig mirrors deadcode.Heuristics.
type HeuristicsConfig struct {
	BaseConfidence               int      `koanf:"base_confidence" toml:"base_confidence"`
	MagicNamePenalty             int      `koanf:"magic_name_penalty" toml:"magic_name_penalty"`
	ExportCap                    int      `koanf:"export_cap" toml:"export_cap"`
	RegistrationDecoratorPenalty int      `koanf:"registration_decorator_penalty" toml:"registration_decorator_penalty"`
	DynamicStringPenalty         int      `koanf:"dynamic_string_penalty" toml:"dynamic_string_penalty"`
	TestConventionPenalty        int      `koanf:"test_convention_penalty" toml:"test_convention_penalty"`
	ExternalBasePenalty          int      `koanf:"external_base_penalty" toml:"external_base_penalty"`
	RegistrationDecorators       []string `koanf:"registration_decorators" toml:"registration_decorators"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns"` // gitignore syntax
	Globs     []string `koanf:"globs" toml:"globs"`
	Dirs      []string `koanf:"dirs" toml:"dirs"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format"` // text, json, markdown, table, toon, yaml
	Color  bool   `koanf:"color" toml:"color"`
}

// Formats lists the accepted output formats.
var Formats = []string{"text", "json", "markdown", "table", "toon", "yaml"}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	h := deadcode.DefaultHeuristics()
	return &Config{
		Analysis: AnalysisConfig{
			MinConfidence: 0,
			Sort:          string(deadcode.SortByLocation),
		},
		Heuristics: HeuristicsConfig{
			BaseConfidence:               h.BaseConfidence,
			MagicNamePenalty:             h.MagicNamePenalty,
			ExportCap:                    h.ExportCap,
			RegistrationDecoratorPenalty: h.RegistrationDecoratorPenalty,
			DynamicStringPenalty:         h.DynamicStringPenalty,
			TestConventionPenalty:        h.TestConventionPenalty,
			ExternalBasePenalty:          h.ExternalBasePenalty,
			RegistrationDecorators:       h.RegistrationDecorators,
		},
		Exclude: ExcludeConfig{
			Dirs: []string{
				".git",
				"__pycache__",
				".venv",
				"venv",
				".tox",
				".nox",
				".mypy_cache",
				".pytest_cache",
				"node_modules",
				"site-packages",
				"build",
				"dist",
			},
			Gitignore: true,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s = %v: %s", e.Field, e.Value, e.Reason)
}

// Validate checks every value before any file is touched.
func (c *Config) Validate() error {
	if c.Analysis.MinConfidence < 0 || c.Analysis.MinConfidence > 100 {
		return &ConfigError{Field: "analysis.min_confidence", Value: c.Analysis.MinConfidence, Reason: "must be within 0..100"}
	}
	if _, err := deadcode.ParseSortPolicy(c.Analysis.Sort); err != nil {
		return &ConfigError{Field: "analysis.sort", Value: c.Analysis.Sort, Reason: "must be by-location or by-size"}
	}
	if c.Analysis.Workers < 0 {
		return &ConfigError{Field: "analysis.workers", Value: c.Analysis.Workers, Reason: "must not be negative"}
	}
	if c.Analysis.MaxFileSize < 0 {
		return &ConfigError{Field: "analysis.max_file_size", Value: c.Analysis.MaxFileSize, Reason: "must not be negative"}
	}
	if err := c.DeadCodeHeuristics().Validate(); err != nil {
		return &ConfigError{Field: "heuristics", Value: "", Reason: strings.TrimPrefix(err.Error(), deadcode.ErrInvalidHeuristics.Error()+": ")}
	}
	for _, g := range c.Exclude.Globs {
		if _, err := glob.Compile(g, '/'); err != nil {
			return &ConfigError{Field: "exclude.globs", Value: g, Reason: err.Error()}
		}
	}
	if !validFormat(c.Output.Format) {
		return &ConfigError{Field: "output.format", Value: c.Output.Format, Reason: "must be one of " + strings.Join(Formats, ", ")}
	}
	return nil
}

func validFormat(format string) bool {
	for _, f := range Formats {
		if f == format {
			return true
		}
	}
	return false
}

// DeadCodeHeuristics converts the [heuristics] section for the analyzer.
func (c *Config) DeadCodeHeuristics() deadcode.Heuristics {
	h := c.Heuristics
	return deadcode.Heuristics{
		BaseConfidence:               h.BaseConfidence,
		MagicNamePenalty:             h.MagicNamePenalty,
		ExportCap:                    h.ExportCap,
		RegistrationDecoratorPenalty: h.RegistrationDecoratorPenalty,
		DynamicStringPenalty:         h.DynamicStringPenalty,
		TestConventionPenalty:        h.TestConventionPenalty,
		ExternalBasePenalty:          h.ExternalBasePenalty,
		RegistrationDecorators:       append([]string(nil), h.RegistrationDecorators...),
	}
}

// Load loads configuration from a file. Values not present in the file keep
// their defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	return cfg, nil
}

// configNames are the file names searched by LoadConfig, in priority order.
var configNames = []string{
	"pydeadcode.toml",
	"pydeadcode.yaml",
	"pydeadcode.yml",
	"pydeadcode.json",
	".pydeadcode.toml",
	".pydeadcode.yaml",
	".pydeadcode.yml",
	".pydeadcode.json",
}

// searchDirs are searched in order for config files.
var searchDirs = []string{".", ".pydeadcode"}

// LoadResult is a loaded config and the file it came from. Source is empty
// when no file was found and defaults are in effect.
type LoadResult struct {
	Config *Config
	Source string
}

type loadOptions struct {
	path string
	dir  string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads exactly the given file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithDir searches relative to dir instead of the working directory.
func WithDir(dir string) LoadOption {
	return func(o *loadOptions) {
		o.dir = dir
	}
}

// LoadConfig loads and validates configuration. An explicit path must exist;
// otherwise the standard locations are searched and defaults are used when
// nothing is found.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := &loadOptions{dir: "."}
	for _, opt := range opts {
		opt(o)
	}

	source := o.path
	if source == "" {
		source = findConfig(o.dir)
	}

	cfg := DefaultConfig()
	if source != "" {
		var err error
		if cfg, err = Load(source); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		if source != "" {
			return nil, fmt.Errorf("%s: %w", source, err)
		}
		return nil, err
	}
	return &LoadResult{Config: cfg, Source: source}, nil
}

func findConfig(root string) string {
	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(root, dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}
	}
	return ""
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	result, err := LoadConfig()
	if err != nil {
		return DefaultConfig()
	}
	return result.Config
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
