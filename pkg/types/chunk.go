package types

import "fmt"

// ChunkLevel identifies a chunk's position in the two-level hierarchy.
type ChunkLevel string

const (
	// ChunkParent is a coarse chunk produced over the full entity text.
	ChunkParent ChunkLevel = "parent"
	// ChunkChild is a fine chunk produced within a single parent chunk.
	ChunkChild ChunkLevel = "child"
)

// Chunk is a bounded, embeddable span of an entity's text. Chunks live only
// in the vector index plus the in-memory entity association; they are
// reconstructible from the entity and are never durable on their own.
type Chunk struct {
	// Identification
	ID               string
	SourceEntityID   string
	SourceEntityType string

	// Content
	Text string

	// Token range, half-open: [StartToken, EndToken)
	StartToken int
	EndToken   int

	// Metadata
	Level     ChunkLevel
	Embedding []float32
}

// TokenCount returns the number of tokens the chunk spans.
func (c *Chunk) TokenCount() int {
	return c.EndToken - c.StartToken
}

// Validate checks the chunk's token range and level.
func (c *Chunk) Validate() error {
	if c.StartToken < 0 {
		return fmt.Errorf("%w: start token %d is negative", ErrInvalidTokenRange, c.StartToken)
	}
	if c.StartToken >= c.EndToken {
		return fmt.Errorf("%w: [%d, %d) is empty or inverted", ErrInvalidTokenRange, c.StartToken, c.EndToken)
	}
	switch c.Level {
	case ChunkParent, ChunkChild:
		return nil
	default:
		return fmt.Errorf("%w: unknown chunk level %q", ErrInvalidChunkLevel, c.Level)
	}
}

// ChunkingConfig controls segmentation and greedy merging for one chunking
// granularity. Invalid configurations are rejected at construction time, not
// at chunk time.
type ChunkingConfig struct {
	// Name identifies the config in a profile registry.
	Name string

	// WindowSize is the token width of fallback windows for unpunctuated text.
	WindowSize int

	// Overlap is the token overlap between adjacent fallback windows.
	// Must satisfy 0 < Overlap < WindowSize.
	Overlap int

	// MinChunkSize is the token size below which segments are always merged.
	MinChunkSize int

	// MaxChunkSize is the hard token ceiling; never violated.
	MaxChunkSize int

	// SimilarityThreshold in [0, 1]: cosine similarity below which a chunk
	// boundary is placed (once MinChunkSize is reached).
	SimilarityThreshold float64
}

// Validate checks all configuration invariants.
func (cfg ChunkingConfig) Validate() error {
	if cfg.WindowSize <= 0 {
		return fmt.Errorf("%w: window size %d must be positive", ErrInvalidConfig, cfg.WindowSize)
	}
	if cfg.Overlap <= 0 || cfg.Overlap >= cfg.WindowSize {
		return fmt.Errorf("%w: overlap %d must satisfy 0 < overlap < window size %d", ErrInvalidConfig, cfg.Overlap, cfg.WindowSize)
	}
	if cfg.MinChunkSize >= cfg.MaxChunkSize {
		return fmt.Errorf("%w: min chunk size %d must be less than max chunk size %d", ErrInvalidConfig, cfg.MinChunkSize, cfg.MaxChunkSize)
	}
	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity threshold %g must be in [0, 1]", ErrInvalidConfig, cfg.SimilarityThreshold)
	}
	return nil
}
