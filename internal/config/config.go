package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the engine's configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Versioning VersioningConfig `yaml:"versioning"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig locates the SQLite store of record.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // openai, ollama, local; empty = auto-detect
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	CacheSize int    `yaml:"cache_size"`
}

// ChunkingConfig adds or replaces named chunking profiles. Settings are
// validated where the profile is registered, not here.
type ChunkingConfig struct {
	Profiles map[string]ProfileConfig `yaml:"profiles"`
}

// ProfileConfig pairs parent and child chunk settings for one profile.
type ProfileConfig struct {
	Parent ChunkSettings `yaml:"parent"`
	Child  ChunkSettings `yaml:"child"`
}

// ChunkSettings mirrors one chunking configuration.
type ChunkSettings struct {
	WindowSize          int     `yaml:"window_size"`
	Overlap             int     `yaml:"overlap"`
	MinChunkSize        int     `yaml:"min_chunk_size"`
	MaxChunkSize        int     `yaml:"max_chunk_size"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// VersioningConfig tunes the version log.
type VersioningConfig struct {
	// SnapshotFrequency is how often a full snapshot accompanies a delta
	// when the entity itself doesn't say.
	SnapshotFrequency int `yaml:"snapshot_frequency"`
	// PruneKeep is how many recent snapshots prune operations retain.
	PruneKeep int `yaml:"prune_keep"`
}

// LoggingConfig tunes the logger.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: defaultDatabasePath(),
		},
		Embedding: EmbeddingConfig{
			CacheSize: 10000,
		},
		Versioning: VersioningConfig{
			SnapshotFrequency: 20,
			PruneKeep:         10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "memoria.db"
	}
	return filepath.Join(home, ".memoria", "memoria.db")
}

// Load reads a YAML config file over the defaults. A missing file is not an
// error; the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Versioning.SnapshotFrequency < 1 {
		return fmt.Errorf("versioning.snapshot_frequency must be at least 1")
	}
	if c.Versioning.PruneKeep < 1 {
		return fmt.Errorf("versioning.prune_keep must be at least 1")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}
