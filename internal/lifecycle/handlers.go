package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/memoriakit/memoria/internal/chunking"
	"github.com/memoriakit/memoria/internal/embedder"
	"github.com/memoriakit/memoria/internal/storage"
	"github.com/memoriakit/memoria/internal/versions"
	"github.com/memoriakit/memoria/pkg/types"
)

// EmbeddingHandler generates an entity-level embedding before the entity is
// saved, so the vector is part of the persisted document. It runs in
// BeforeSave because embedding is a network call and must not hold the
// transaction. Entities without the Embeddable capability pass through
// untouched; embeddable entities with empty text get a nil vector.
type EmbeddingHandler[T types.Entity] struct {
	Base[T]
	embedder embedder.Embedder
}

// NewEmbeddingHandler creates the handler.
func NewEmbeddingHandler[T types.Entity](emb embedder.Embedder) *EmbeddingHandler[T] {
	return &EmbeddingHandler[T]{embedder: emb}
}

func (h *EmbeddingHandler[T]) Name() string { return "embedding" }

func (h *EmbeddingHandler[T]) BeforeSave(ctx context.Context, entity T) error {
	embeddable, ok := types.AsEmbeddable(entity)
	if !ok {
		return nil
	}
	vector, err := h.embedder.Generate(ctx, embeddable.EmbeddingText())
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}
	embeddable.SetEmbedding(vector)
	return nil
}

// VersioningHandler appends a version record inside the save transaction,
// after the entity write, so the history entry observes the final persisted
// state and commits atomically with it. Entities without the Versionable
// capability are skipped.
type VersioningHandler[T types.Entity] struct {
	Base[T]
	repo *versions.Repository
}

// NewVersioningHandler creates the handler.
func NewVersioningHandler[T types.Entity](repo *versions.Repository) *VersioningHandler[T] {
	return &VersioningHandler[T]{repo: repo}
}

func (h *VersioningHandler[T]) Name() string { return "versioning" }

func (h *VersioningHandler[T]) AfterSaveInTx(ctx context.Context, scope storage.Storage, entity T) error {
	versionable, ok := types.AsVersionable(entity)
	if !ok {
		return nil
	}
	state, err := versionable.Snapshot()
	if err != nil {
		return fmt.Errorf("failed to snapshot entity: %w", err)
	}
	_, err = h.repo.RecordChange(ctx, scope, versions.Change{
		EntityType:        entity.EntityType(),
		EntityUUID:        entity.EntityUUID(),
		State:             state,
		SnapshotFrequency: versionable.SnapshotFrequency(),
	})
	return err
}

// SemanticIndexHandler keeps the vector index in line with saved entities.
// Indexing happens after commit: a failure leaves the entity durable and
// merely unindexed until the next save or rebuild. Chunk removal on delete
// happens in BeforeDelete, since no hook runs after the row is gone.
type SemanticIndexHandler[T types.Entity] struct {
	Base[T]
	service *chunking.Service
}

// NewSemanticIndexHandler creates the handler.
func NewSemanticIndexHandler[T types.Entity](service *chunking.Service) *SemanticIndexHandler[T] {
	return &SemanticIndexHandler[T]{service: service}
}

func (h *SemanticIndexHandler[T]) Name() string { return "semantic-index" }

func (h *SemanticIndexHandler[T]) AfterSave(ctx context.Context, entity T) error {
	_, err := h.service.IndexEntity(ctx, entity)
	return err
}

func (h *SemanticIndexHandler[T]) BeforeDelete(ctx context.Context, _ storage.Storage, entity T) error {
	return h.service.DeleteByEntity(ctx, entity.EntityType(), entity.EntityUUID())
}

// DefaultChain wires the built-in handlers in their required order:
// rebuildable index effects first, the lightweight embedding next, and
// versioning last so the recorded state includes everything the earlier
// handlers contributed.
func DefaultChain[T types.Entity](logger *zap.Logger, emb embedder.Embedder, service *chunking.Service, repo *versions.Repository) *Chain[T] {
	return NewChain[T](logger,
		NewSemanticIndexHandler[T](service),
		NewEmbeddingHandler[T](emb),
		NewVersioningHandler[T](repo),
	)
}
