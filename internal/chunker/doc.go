// Package chunker implements text segmentation for semantic indexing.
//
// Segmentation happens in two stages. The SentenceSplitter tokenizes text on
// whitespace and cuts it into sentence segments at terminal punctuation,
// guarding against abbreviations ("Dr.", "e.g."), initials, and decimal
// numbers; sentences longer than the configured window degrade to fixed
// overlapping windows. The SemanticChunker then merges adjacent segments
// greedily, keeping a chunk growing while it is under the minimum size or
// while the next segment's embedding stays similar, and cutting hard at the
// maximum size.
//
// All token ranges are half-open [start, end) over the whitespace token
// stream, so a chunk's text can always be reassembled from the original
// input. Both stages are deterministic for a fixed input and embedding
// provider.
//
// Usage:
//
//	sc, err := chunker.NewSemanticChunker(types.ChunkParent, cfg, embedder)
//	if err != nil {
//	    return err
//	}
//	chunks, err := sc.Chunk(ctx, text)
package chunker
