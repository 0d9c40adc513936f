package chunking

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/memoriakit/memoria/internal/chunker"
	"github.com/memoriakit/memoria/internal/embedder"
	"github.com/memoriakit/memoria/internal/vectorindex"
	"github.com/memoriakit/memoria/pkg/types"
)

const (
	// embedBatchSize bounds texts per provider request when embedding chunks.
	embedBatchSize = 50
	// maxConcurrentBatches bounds parallel embedding requests.
	maxConcurrentBatches = 4
)

// Service turns entity text into two levels of embedded chunks and keeps the
// vector index plus the chunk-entity association up to date.
//
// Chunks are derived data: IndexEntity replaces an entity's chunks wholesale,
// and a half-finished run leaves at worst a temporarily unindexed entity,
// repaired by the next IndexEntity or a rebuild.
type Service struct {
	index    vectorindex.Index
	embedder embedder.Embedder

	mu           sync.RWMutex
	profiles     map[string]Profile
	entityChunks map[string][]string // entity key -> chunk IDs
	chunkEntity  map[string]string   // chunk ID -> entity key
}

// NewService creates a chunking service with the default profile registered.
func NewService(index vectorindex.Index, emb embedder.Embedder) *Service {
	return &Service{
		index:    index,
		embedder: emb,
		profiles: map[string]Profile{
			DefaultProfileName: DefaultProfile(),
		},
		entityChunks: make(map[string][]string),
		chunkEntity:  make(map[string]string),
	}
}

// RegisterProfile adds or replaces a named chunking profile.
func (s *Service) RegisterProfile(name string, profile Profile) error {
	if name == "" {
		return fmt.Errorf("%w: profile name is empty", types.ErrInvalidConfig)
	}
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("profile %q: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[name] = profile
	return nil
}

// profile resolves a profile name, falling back to the default for empty or
// unknown names.
func (s *Service) profile(name string) Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[name]; ok {
		return p
	}
	return s.profiles[DefaultProfileName]
}

func entityKey(entityType, uuid string) string {
	return entityType + "/" + uuid
}

// IndexEntity replaces the entity's chunks in the vector index. Entities
// without the SemanticIndexable capability, or with empty chunkable text,
// end up with no chunks. Returns the number of chunks indexed.
func (s *Service) IndexEntity(ctx context.Context, entity types.Entity) (int, error) {
	// drop whatever was indexed before, also for entities that no longer
	// produce chunks
	if err := s.DeleteByEntity(ctx, entity.EntityType(), entity.EntityUUID()); err != nil {
		return 0, err
	}

	indexable, ok := types.AsSemanticIndexable(entity)
	if !ok {
		return 0, nil
	}
	text := indexable.ChunkableText()
	if text == "" {
		return 0, nil
	}

	chunks, err := s.chunkText(ctx, text, s.profile(indexable.ChunkingProfile()))
	if err != nil {
		return 0, fmt.Errorf("failed to chunk %s/%s: %w", entity.EntityType(), entity.EntityUUID(), err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	for i := range chunks {
		chunks[i].ID = uuid.New().String()
		chunks[i].SourceEntityID = entity.EntityUUID()
		chunks[i].SourceEntityType = entity.EntityType()
	}

	if err := s.embedChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to embed chunks for %s/%s: %w", entity.EntityType(), entity.EntityUUID(), err)
	}

	key := entityKey(entity.EntityType(), entity.EntityUUID())
	ids := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if err := s.index.Insert(ctx, chunk); err != nil {
			return 0, fmt.Errorf("failed to index chunk: %w", err)
		}
		ids = append(ids, chunk.ID)
	}

	s.mu.Lock()
	s.entityChunks[key] = ids
	for _, id := range ids {
		s.chunkEntity[id] = key
	}
	s.mu.Unlock()

	return len(ids), nil
}

// chunkText produces parent chunks over the full text, then child chunks
// within each parent, with child token ranges shifted to absolute positions.
func (s *Service) chunkText(ctx context.Context, text string, profile Profile) ([]types.Chunk, error) {
	parentChunker, err := chunker.NewSemanticChunker(types.ChunkParent, profile.Parent, s.embedder)
	if err != nil {
		return nil, err
	}
	childChunker, err := chunker.NewSemanticChunker(types.ChunkChild, profile.Child, s.embedder)
	if err != nil {
		return nil, err
	}

	parents, err := parentChunker.Chunk(ctx, text)
	if err != nil {
		return nil, err
	}

	chunks := make([]types.Chunk, 0, len(parents)*2)
	for _, parent := range parents {
		chunks = append(chunks, parent)

		children, err := childChunker.Chunk(ctx, parent.Text)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			child.StartToken += parent.StartToken
			child.EndToken += parent.StartToken
			chunks = append(chunks, child)
		}
	}
	return chunks, nil
}

// embedChunks fills in chunk embeddings, batched and bounded by errgroup.
func (s *Service) embedChunks(ctx context.Context, chunks []types.Chunk) error {
	vectors := make([][]float32, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBatches)
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		start, end := start, end
		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, chunk := range chunks[start:end] {
				texts = append(texts, chunk.Text)
			}
			batch, err := s.embedder.GenerateBatch(gctx, texts)
			if err != nil {
				return err
			}
			if len(batch) != len(texts) {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), len(texts))
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	return nil
}

// DeleteByEntity removes the entity's chunks from the index and the
// association. Deleting an entity with no chunks is a no-op.
func (s *Service) DeleteByEntity(ctx context.Context, entityType, uuid string) error {
	key := entityKey(entityType, uuid)

	s.mu.Lock()
	ids := s.entityChunks[key]
	delete(s.entityChunks, key)
	for _, id := range ids {
		delete(s.chunkEntity, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		if err := s.index.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete chunk %s: %w", id, err)
		}
	}
	return nil
}

// ChunksForEntity returns the IDs of the entity's indexed chunks.
func (s *Service) ChunksForEntity(entityType, uuid string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.entityChunks[entityKey(entityType, uuid)]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// EntityForChunk reverse-maps a chunk ID to its source entity.
func (s *Service) EntityForChunk(chunkID string) (entityType, uuid string, ok bool) {
	s.mu.RLock()
	key, ok := s.chunkEntity[chunkID]
	s.mu.RUnlock()
	if !ok {
		return "", "", false
	}
	entityType, uuid, _ = strings.Cut(key, "/")
	return entityType, uuid, true
}

// Search embeds the query and returns the closest chunks.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]vectorindex.Result, error) {
	if query == "" {
		return []vectorindex.Result{}, nil
	}
	vector, err := s.embedder.Generate(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return s.index.Search(ctx, vector, limit)
}

// IndexedChunks returns the number of chunks currently in the index.
func (s *Service) IndexedChunks() int {
	return s.index.Size()
}

// Reset drops every chunk and association, ahead of a full rebuild.
func (s *Service) Reset() {
	s.mu.Lock()
	s.entityChunks = make(map[string][]string)
	s.chunkEntity = make(map[string]string)
	s.mu.Unlock()
	s.index.Clear()
}
