package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Inference.Records)
	assert.True(t, cfg.Inference.Functions)
	assert.True(t, cfg.Inference.Fields)
	assert.True(t, cfg.EOG.PruneUnreachable)
	assert.False(t, cfg.EOG.CheckInvariant)
	assert.Equal(t, 4096, cfg.EOG.MaxDepth)
	assert.Equal(t, 8, cfg.Frontend.Parallelism)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "valid default config", modify: func(*Config) {}},
		{name: "unbounded depth", modify: func(c *Config) { c.EOG.MaxDepth = 0 }},
		{name: "negative depth", modify: func(c *Config) { c.EOG.MaxDepth = -1 }, wantErr: ErrInvalidDepth},
		{name: "no workers", modify: func(c *Config) { c.Frontend.Parallelism = 0 }, wantErr: ErrInvalidParallelism},
		{name: "unknown language", modify: func(c *Config) { c.Frontend.Languages = []string{"cobol"} }, wantErr: ErrInvalidLanguage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpg-enrich.yaml")
	content := `
inference:
  functions: false
eog:
  check_invariant: true
  max_depth: 128
frontend:
  languages: [java]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.True(t, cfg.Inference.Records, "unset keys keep their defaults")
	assert.False(t, cfg.Inference.Functions)
	assert.True(t, cfg.EOG.CheckInvariant)
	assert.Equal(t, 128, cfg.EOG.MaxDepth)
	assert.Equal(t, []string{"java"}, cfg.Frontend.Languages)
}

func TestLoadFromFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("eog: [not, a, map"), 0644))
	_, err = LoadFromFile(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("frontend:\n  parallelism: -2\n"), 0644))
	_, err = LoadFromFile(invalid)
	assert.ErrorIs(t, err, ErrInvalidParallelism)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cfg.yaml")
	cfg := DefaultConfig()
	cfg.Output.MetricsFile = "metrics.prom"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestMerge(t *testing.T) {
	cfg := &Config{}
	cfg.Merge(&Config{
		EOG:      EOGConfig{CheckInvariant: true, MaxDepth: 10},
		Frontend: FrontendConfig{Languages: []string{"c"}, Parallelism: 2},
		Output:   OutputConfig{MetricsFile: "m.prom"},
	})
	assert.True(t, cfg.EOG.CheckInvariant)
	assert.Equal(t, 10, cfg.EOG.MaxDepth)
	assert.Equal(t, []string{"c"}, cfg.Frontend.Languages)
	assert.Equal(t, 2, cfg.Frontend.Parallelism)
	assert.Equal(t, "m.prom", cfg.Output.MetricsFile)

	cfg.Merge(nil)
	cfg.Merge(&Config{})
	assert.Equal(t, 10, cfg.EOG.MaxDepth, "zero values do not override")
}
