// Package types provides shared type definitions for the Memoria engine.
//
// This package defines the domain types used across components: the Entity
// contract, the optional capability interfaces, chunks, and chunking
// configuration.
//
// # Entities and capabilities
//
// An entity is anything with a stable type tag and a uuid:
//
//	type Note struct{ ... }
//
//	func (n *Note) EntityType() string { return "note" }
//	func (n *Note) EntityUUID() string { return n.UUID }
//
// Cross-cutting behavior is opted into by implementing capability interfaces.
// An entity may carry any subset of them:
//
//	types.Embeddable          // entity-level embedding vector
//	types.SemanticIndexable   // chunked + inserted into the vector index
//	types.Versionable         // append-only change history
//
// The persistence pipeline queries capabilities dynamically:
//
//	if idx, ok := types.AsSemanticIndexable(entity); ok {
//	    text := idx.ChunkableText()
//	    ...
//	}
//
// # Chunks
//
// Chunk represents a token-bounded span of an entity's text, tagged with a
// parent or child level. Token ranges are half-open:
//
//	chunk := types.Chunk{StartToken: 0, EndToken: 42, Level: types.ChunkParent}
//	chunk.TokenCount() // 42
//
// Chunks are ephemeral: they exist in the vector index and the in-memory
// association only, and are rebuilt from the entity on re-indexing.
package types
