package types

// Entity is the minimal contract every persisted domain object satisfies.
// Everything else an entity can do is expressed through optional capability
// interfaces queried dynamically at runtime, so the persistence pipeline
// stays entity-type-agnostic.
type Entity interface {
	// EntityType returns a stable type tag, e.g. "note".
	EntityType() string

	// EntityUUID returns the entity's unique identifier.
	EntityUUID() string
}

// Embeddable is implemented by entities that carry a single entity-level
// embedding vector alongside their persisted state.
type Embeddable interface {
	// EmbeddingText returns the text the embedding is generated from.
	// Empty text means "no embedding", not an error.
	EmbeddingText() string

	// SetEmbedding stores the generated vector on the entity.
	SetEmbedding(vector []float32)
}

// SemanticIndexable is implemented by entities whose free text should be
// chunked and inserted into the vector index for semantic search.
type SemanticIndexable interface {
	// ChunkableText returns the raw text to chunk. Empty text yields no chunks.
	ChunkableText() string

	// ChunkingProfile names the chunking profile to use. An empty or unknown
	// name selects the default profile.
	ChunkingProfile() string
}

// Versionable is implemented by entities that keep an append-only change
// history with point-in-time reconstruction.
type Versionable interface {
	// Snapshot returns the entity's complete current state as JSON.
	Snapshot() ([]byte, error)

	// SnapshotFrequency returns how often a full snapshot is stored
	// alongside the delta. Zero selects the engine default.
	SnapshotFrequency() int
}

// AsEmbeddable reports whether the entity carries the Embeddable capability.
func AsEmbeddable(e Entity) (Embeddable, bool) {
	c, ok := e.(Embeddable)
	return c, ok
}

// AsSemanticIndexable reports whether the entity carries the
// SemanticIndexable capability.
func AsSemanticIndexable(e Entity) (SemanticIndexable, bool) {
	c, ok := e.(SemanticIndexable)
	return c, ok
}

// AsVersionable reports whether the entity carries the Versionable capability.
func AsVersionable(e Entity) (Versionable, bool) {
	c, ok := e.(Versionable)
	return c, ok
}
