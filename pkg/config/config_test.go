package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/pydeadcode/pkg/analyzer/deadcode"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	if cfg.Analysis.MinConfidence != 0 {
		t.Errorf("Analysis.MinConfidence = %d, want 0", cfg.Analysis.MinConfidence)
	}
	if cfg.Analysis.Sort != "by-location" {
		t.Errorf("Analysis.Sort = %s, want by-location", cfg.Analysis.Sort)
	}
	if cfg.Heuristics.MagicNamePenalty != 60 {
		t.Errorf("Heuristics.MagicNamePenalty = %d, want 60", cfg.Heuristics.MagicNamePenalty)
	}
	if len(cfg.Heuristics.RegistrationDecorators) == 0 {
		t.Error("Heuristics.RegistrationDecorators should have default values")
	}
	if !cfg.Exclude.Gitignore {
		t.Error("Exclude.Gitignore should be true by default")
	}
	if len(cfg.Exclude.Dirs) == 0 {
		t.Error("Exclude.Dirs should have default values")
	}
	if cfg.Output.Format != "text" {
		t.Errorf("Output.Format = %s, want text", cfg.Output.Format)
	}
	if !cfg.Output.Color {
		t.Error("Output.Color should be true by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestDefaultConfig_MatchesAnalyzerDefaults(t *testing.T) {
	assert.Equal(t, deadcode.DefaultHeuristics(), DefaultConfig().DeadCodeHeuristics())
}

func TestLoadTOML(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), "pydeadcode.toml", `
[analysis]
min_confidence = 60
sort = "by-size"
workers = 4

[heuristics]
magic_name_penalty = 70

[exclude]
globs = ["migrations/**"]

[output]
format = "json"
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Analysis.MinConfidence)
	assert.Equal(t, "by-size", cfg.Analysis.Sort)
	assert.Equal(t, 4, cfg.Analysis.Workers)
	assert.Equal(t, 70, cfg.Heuristics.MagicNamePenalty)
	assert.Equal(t, []string{"migrations/**"}, cfg.Exclude.Globs)
	assert.Equal(t, "json", cfg.Output.Format)

	// Unset values keep their defaults.
	assert.Equal(t, 10, cfg.Heuristics.ExportCap)
	assert.True(t, cfg.Exclude.Gitignore)
}

func TestLoadYAML(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), "pydeadcode.yaml", `
analysis:
  min_confidence: 80
  max_file_size: 1048576

output:
  format: markdown
  color: false
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 80, cfg.Analysis.MinConfidence)
	assert.Equal(t, int64(1048576), cfg.Analysis.MaxFileSize)
	assert.Equal(t, "markdown", cfg.Output.Format)
	assert.False(t, cfg.Output.Color)
}

func TestLoadJSON(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), "pydeadcode.json", `{
  "analysis": {
    "sort": "size"
  },
  "heuristics": {
    "dynamic_string_penalty": 45
  },
  "output": {
    "format": "yaml"
  }
}`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "size", cfg.Analysis.Sort)
	assert.Equal(t, 45, cfg.Heuristics.DynamicStringPenalty)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/pydeadcode.toml")
	if err == nil {
		t.Error("Load() should return error for non-existent file")
	}
}

func TestLoadInvalidFile(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), "pydeadcode.toml", "[analysis\ninvalid toml")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() should return error for invalid config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"negative confidence", func(c *Config) { c.Analysis.MinConfidence = -5 }, "analysis.min_confidence"},
		{"confidence above 100", func(c *Config) { c.Analysis.MinConfidence = 101 }, "analysis.min_confidence"},
		{"unknown sort", func(c *Config) { c.Analysis.Sort = "random" }, "analysis.sort"},
		{"negative workers", func(c *Config) { c.Analysis.Workers = -1 }, "analysis.workers"},
		{"negative max size", func(c *Config) { c.Analysis.MaxFileSize = -1 }, "analysis.max_file_size"},
		{"penalty out of range", func(c *Config) { c.Heuristics.ExportCap = 200 }, "heuristics"},
		{"bad decorator glob", func(c *Config) { c.Heuristics.RegistrationDecorators = []string{"[x"} }, "heuristics"},
		{"bad exclude glob", func(c *Config) { c.Exclude.Globs = []string{"[x"} }, "exclude.globs"},
		{"unknown format", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
			assert.True(t, IsConfigError(err))
		})
	}
}

func TestConfigError_Message(t *testing.T) {
	err := &ConfigError{Field: "analysis.sort", Value: "random", Reason: "must be by-location or by-size"}
	assert.Equal(t, "invalid config analysis.sort = random: must be by-location or by-size", err.Error())
}

func TestLoadConfig_Search(t *testing.T) {
	dir := t.TempDir()

	result, err := LoadConfig(WithDir(dir))
	require.NoError(t, err)
	assert.Empty(t, result.Source)
	assert.Equal(t, DefaultConfig(), result.Config)

	hidden := writeConfig(t, dir, ".pydeadcode/pydeadcode.yaml", "analysis:\n  min_confidence: 30\n")
	result, err = LoadConfig(WithDir(dir))
	require.NoError(t, err)
	assert.Equal(t, hidden, result.Source)
	assert.Equal(t, 30, result.Config.Analysis.MinConfidence)

	top := writeConfig(t, dir, ".pydeadcode.toml", "[analysis]\nmin_confidence = 40\n")
	result, err = LoadConfig(WithDir(dir))
	require.NoError(t, err)
	assert.Equal(t, top, result.Source)
	assert.Equal(t, 40, result.Config.Analysis.MinConfidence)
}

func TestLoadConfig_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "custom.toml", "[output]\nformat = \"table\"\n")

	result, err := LoadConfig(WithPath(path))
	require.NoError(t, err)
	assert.Equal(t, path, result.Source)
	assert.Equal(t, "table", result.Config.Output.Format)

	_, err = LoadConfig(WithPath(filepath.Join(dir, "missing.toml")))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "pydeadcode.toml", "[analysis]\nmin_confidence = 150\n")

	_, err := LoadConfig(WithPath(path))
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), path)
}

func TestLoadOrDefault(t *testing.T) {
	// In a directory without config files, should return defaults
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	cfg := LoadOrDefault()
	if cfg == nil {
		t.Fatal("LoadOrDefault() returned nil")
	}
	if cfg.Output.Format != "text" {
		t.Errorf("LoadOrDefault() returned non-default format: %s", cfg.Output.Format)
	}
}
