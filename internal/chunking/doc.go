// Package chunking orchestrates two-level semantic indexing of entity text.
//
// For each entity carrying the SemanticIndexable capability, the service
// produces parent chunks over the full text and child chunks within each
// parent, embeds them in bounded concurrent batches, and inserts them into
// the vector index. An in-memory association maps entities to their chunk
// IDs and back, which makes deletion and search-result attribution cheap.
//
// All of this is derived data. The association and the index start empty on
// boot and are rebuilt from the store of record, so no chunk state is ever
// persisted.
package chunking
