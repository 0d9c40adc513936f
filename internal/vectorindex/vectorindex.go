package vectorindex

import (
	"context"
	"errors"

	"github.com/memoriakit/memoria/pkg/types"
)

// Common errors
var (
	ErrMissingID        = errors.New("chunk has no id")
	ErrMissingEmbedding = errors.New("chunk has no embedding")
)

// Result is a scored search hit.
type Result struct {
	Chunk types.Chunk
	Score float64 // cosine similarity in [-1, 1]
}

// Index stores embedded chunks and answers nearest-neighbor queries. The
// index is a rebuildable cache over entity text: losing it loses no data,
// and RebuildIndex on the repository repopulates it.
type Index interface {
	// Insert adds or replaces a chunk by ID.
	Insert(ctx context.Context, chunk types.Chunk) error

	// Delete removes a chunk by ID. Deleting an absent chunk is a no-op.
	Delete(ctx context.Context, chunkID string) error

	// Search returns up to limit chunks ranked by cosine similarity to the
	// query vector, highest first. Ties rank by chunk ID so result order is
	// stable across runs.
	Search(ctx context.Context, vector []float32, limit int) ([]Result, error)

	// Size returns the number of chunks currently indexed.
	Size() int

	// Clear removes every chunk.
	Clear()
}
