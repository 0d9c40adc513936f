package chunker

import (
	"context"
	"fmt"
	"math"

	"github.com/memoriakit/memoria/pkg/types"
)

// embedBatchSize bounds how many segment texts go to the provider per call.
const embedBatchSize = 50

// Embedder is the narrow embedding dependency the chunker needs. The result
// slice is index-aligned with the input texts.
type Embedder interface {
	GenerateBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// SemanticChunker merges sentence segments into chunks greedily, guided by
// embedding similarity between the running chunk and the next segment.
//
// Merge rules, in order:
//  1. if appending the next segment would exceed MaxChunkSize, close the
//     current chunk (hard cut, always wins)
//  2. if the current chunk is below MinChunkSize, merge unconditionally
//  3. if cosine similarity to the next segment is at or above the threshold,
//     merge; otherwise close
//
// The similarity comparison uses the embedding of the most recently merged
// segment as a proxy for the whole running chunk, which avoids re-embedding
// the chunk after every merge.
type SemanticChunker struct {
	cfg      types.ChunkingConfig
	level    types.ChunkLevel
	splitter *SentenceSplitter
	embedder Embedder
}

// NewSemanticChunker validates the configuration and returns a chunker that
// tags its output with the given level.
func NewSemanticChunker(level types.ChunkLevel, cfg types.ChunkingConfig, emb Embedder) (*SemanticChunker, error) {
	if level != types.ChunkParent && level != types.ChunkChild {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidChunkLevel, level)
	}
	splitter, err := NewSentenceSplitter(cfg)
	if err != nil {
		return nil, err
	}
	if emb == nil {
		return nil, fmt.Errorf("%w: embedder is required", types.ErrInvalidConfig)
	}
	return &SemanticChunker{
		cfg:      cfg,
		level:    level,
		splitter: splitter,
		embedder: emb,
	}, nil
}

// Config returns the chunker's configuration.
func (sc *SemanticChunker) Config() types.ChunkingConfig {
	return sc.cfg
}

// Chunk segments text and merges the segments into chunks. Identity fields
// (ID, source entity) are left for the caller to fill in. Empty input yields
// an empty slice and no provider call. Given identical input and embeddings,
// the output is identical.
func (sc *SemanticChunker) Chunk(ctx context.Context, text string) ([]types.Chunk, error) {
	tokens := Tokenize(text)
	segments := sc.splitter.SplitTokens(tokens)
	if len(segments) == 0 {
		return []types.Chunk{}, nil
	}
	segments = sc.capSegments(tokens, segments)

	embeddings, err := sc.embedSegments(ctx, segments)
	if err != nil {
		return nil, fmt.Errorf("failed to embed segments: %w", err)
	}

	chunks := make([]types.Chunk, 0, len(segments))
	start := segments[0].StartToken
	end := segments[0].EndToken
	lastEmb := embeddings[0]

	closeChunk := func() {
		chunks = append(chunks, types.Chunk{
			Text:       JoinTokens(tokens, start, end),
			StartToken: start,
			EndToken:   end,
			Level:      sc.level,
		})
	}

	for i := 1; i < len(segments); i++ {
		next := segments[i]
		if next.EndToken-start > sc.cfg.MaxChunkSize {
			closeChunk()
			start, end = next.StartToken, next.EndToken
			lastEmb = embeddings[i]
			continue
		}
		if end-start < sc.cfg.MinChunkSize || cosineSimilarity(lastEmb, embeddings[i]) >= sc.cfg.SimilarityThreshold {
			end = next.EndToken
			lastEmb = embeddings[i]
			continue
		}
		closeChunk()
		start, end = next.StartToken, next.EndToken
		lastEmb = embeddings[i]
	}
	closeChunk()

	return chunks, nil
}

// capSegments hard-splits any segment wider than MaxChunkSize so that the
// ceiling holds even when the window size exceeds it.
func (sc *SemanticChunker) capSegments(tokens []string, segments []Segment) []Segment {
	for _, seg := range segments {
		if seg.TokenCount() > sc.cfg.MaxChunkSize {
			capped := make([]Segment, 0, len(segments))
			for _, s := range segments {
				for s.TokenCount() > sc.cfg.MaxChunkSize {
					cut := s.StartToken + sc.cfg.MaxChunkSize
					capped = append(capped, Segment{
						Text:       JoinTokens(tokens, s.StartToken, cut),
						StartToken: s.StartToken,
						EndToken:   cut,
					})
					s.StartToken = cut
					s.Text = JoinTokens(tokens, s.StartToken, s.EndToken)
				}
				capped = append(capped, s)
			}
			return capped
		}
	}
	return segments
}

// embedSegments fetches embeddings for every segment, batched to keep
// individual provider requests bounded.
func (sc *SemanticChunker) embedSegments(ctx context.Context, segments []Segment) ([][]float32, error) {
	embeddings := make([][]float32, 0, len(segments))
	for i := 0; i < len(segments); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(segments) {
			end = len(segments)
		}
		texts := make([]string, 0, end-i)
		for _, seg := range segments[i:end] {
			texts = append(texts, seg.Text)
		}
		batch, err := sc.embedder.GenerateBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), len(texts))
		}
		embeddings = append(embeddings, batch...)
	}
	return embeddings, nil
}

// cosineSimilarity computes cosine similarity between two vectors. Mismatched
// lengths or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
