// Package repository provides the generic persistence facade for entities.
//
// A Repository[T] manages one entity type end to end: saves run the
// lifecycle chain around a storage transaction (before-save outside it, the
// in-transaction hooks inside, after-save past commit), deletes run the
// before-delete hooks inside the delete transaction, loads rehydrate
// entities from their JSON documents, and semantic search resolves
// chunk-index hits back to the entities that produced them.
//
// The repository knows nothing about any concrete entity. Capabilities such
// as embedding, chunk indexing, and versioning are applied by the handlers
// in the chain, each of which checks its own capability interface.
package repository
