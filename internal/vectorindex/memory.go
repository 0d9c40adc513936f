package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/memoriakit/memoria/pkg/types"
)

// Memory is an in-process Index backed by a map, with linear-scan search.
// It is safe for concurrent use. Entity counts in a single local store stay
// small enough that a scan beats maintaining an approximate-nearest-neighbor
// structure.
type Memory struct {
	mu     sync.RWMutex
	chunks map[string]types.Chunk
}

// NewMemory creates an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{
		chunks: make(map[string]types.Chunk),
	}
}

// Insert adds or replaces a chunk. The chunk must carry an ID, an embedding,
// and a valid token range.
func (m *Memory) Insert(_ context.Context, chunk types.Chunk) error {
	if chunk.ID == "" {
		return ErrMissingID
	}
	if len(chunk.Embedding) == 0 {
		return fmt.Errorf("%w: chunk %s", ErrMissingEmbedding, chunk.ID)
	}
	if err := chunk.Validate(); err != nil {
		return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[chunk.ID] = chunk
	return nil
}

// Delete removes a chunk by ID; absent IDs are ignored.
func (m *Memory) Delete(_ context.Context, chunkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, chunkID)
	return nil
}

// Search scans every chunk and returns the top limit by cosine similarity,
// ties broken by chunk ID.
func (m *Memory) Search(_ context.Context, vector []float32, limit int) ([]Result, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: query vector is empty", ErrMissingEmbedding)
	}
	if limit <= 0 {
		return []Result{}, nil
	}

	m.mu.RLock()
	results := make([]Result, 0, len(m.chunks))
	for _, chunk := range m.chunks {
		score := cosineSimilarity(vector, chunk.Embedding)
		results = append(results, Result{Chunk: chunk, Score: score})
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Size returns the number of indexed chunks.
func (m *Memory) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

// Clear removes every chunk.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = make(map[string]types.Chunk)
}

// cosineSimilarity computes cosine similarity between two vectors.
// Mismatched lengths or zero vectors score 0.
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
