package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Database.Path)
	assert.Equal(t, 20, cfg.Versioning.SnapshotFrequency)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /tmp/custom.db
embedding:
  provider: ollama
  model: nomic-embed-text
chunking:
  profiles:
    technical:
      parent:
        window_size: 300
        overlap: 60
        min_chunk_size: 128
        max_chunk_size: 500
        similarity_threshold: 0.5
      child:
        window_size: 120
        overlap: 30
        min_chunk_size: 32
        max_chunk_size: 160
        similarity_threshold: 0.55
logging:
  level: debug
  development: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", cfg.Database.Path)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	require.Contains(t, cfg.Chunking.Profiles, "technical")
	assert.Equal(t, 300, cfg.Chunking.Profiles["technical"].Parent.WindowSize)
	assert.Equal(t, 0.55, cfg.Chunking.Profiles["technical"].Child.SimilarityThreshold)
	// untouched sections keep their defaults
	assert.Equal(t, 10, cfg.Versioning.PruneKeep)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\n  - not yaml"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"zero snapshot frequency", func(c *Config) { c.Versioning.SnapshotFrequency = 0 }},
		{"zero prune keep", func(c *Config) { c.Versioning.PruneKeep = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}
