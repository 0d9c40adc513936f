// Package vectorindex provides the chunk-level vector search index.
//
// The index is a cache, not a store of record: every chunk in it can be
// regenerated from entity text, so implementations are free to keep
// everything in memory and start empty on boot. Memory is the default
// implementation, a mutex-guarded map with linear-scan cosine search and
// a deterministic tie-break on chunk ID.
package vectorindex
