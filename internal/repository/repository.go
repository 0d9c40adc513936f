package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/memoriakit/memoria/internal/chunking"
	"github.com/memoriakit/memoria/internal/lifecycle"
	"github.com/memoriakit/memoria/internal/storage"
	"github.com/memoriakit/memoria/pkg/types"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = storage.ErrNotFound

// SearchResult is one entity matched by a semantic search, with the score
// and text of its best-matching chunk.
type SearchResult[T types.Entity] struct {
	Entity    T
	Score     float64
	ChunkText string
}

// Repository is the persistence facade for one entity type. Saves and
// deletes run the lifecycle chain around a storage transaction; search goes
// through the chunk index and maps hits back to entities.
type Repository[T types.Entity] struct {
	entityType string
	store      *storage.Store
	chain      *lifecycle.Chain[T]
	service    *chunking.Service
	logger     *zap.Logger
	newEntity  func() T
}

// New creates a repository. newEntity allocates a zero entity for
// unmarshaling; the entity type tag is taken from it.
func New[T types.Entity](store *storage.Store, chain *lifecycle.Chain[T], service *chunking.Service, logger *zap.Logger, newEntity func() T) *Repository[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository[T]{
		entityType: newEntity().EntityType(),
		store:      store,
		chain:      chain,
		service:    service,
		logger:     logger,
		newEntity:  newEntity,
	}
}

// EntityType returns the type tag this repository manages.
func (r *Repository[T]) EntityType() string {
	return r.entityType
}

// Save persists the entity. Before-save hooks run first, outside any
// transaction, and abort the save with nothing persisted. The in-transaction
// hooks run around the entity write and roll the whole transaction back on
// failure. After-save hooks run once the commit is durable and cannot fail
// the save.
func (r *Repository[T]) Save(ctx context.Context, entity T) error {
	if entity.EntityUUID() == "" {
		return fmt.Errorf("entity of type %s has no uuid", r.entityType)
	}
	if err := r.chain.RunBeforeSave(ctx, entity); err != nil {
		return err
	}

	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := r.chain.RunBeforeSaveInTx(ctx, tx, entity); err != nil {
		return err
	}

	document, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	if err := tx.SaveEntity(ctx, &storage.EntityRecord{
		EntityType: r.entityType,
		UUID:       entity.EntityUUID(),
		Document:   document,
	}); err != nil {
		return err
	}

	if err := r.chain.RunAfterSaveInTx(ctx, tx, entity); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	r.chain.RunAfterSave(ctx, entity)
	r.logger.Debug("entity saved",
		zap.String("entity_type", r.entityType),
		zap.String("entity_uuid", entity.EntityUUID()))
	return nil
}

// SaveAll saves each entity in turn. One entity's failure does not stop the
// attempts on later entities; the joined errors report which saves failed,
// and callers needing exact per-entity outcomes should inspect stored state
// afterwards.
func (r *Repository[T]) SaveAll(ctx context.Context, entities []T) error {
	var errs []error
	for _, entity := range entities {
		if err := r.Save(ctx, entity); err != nil {
			errs = append(errs, fmt.Errorf("save %s/%s: %w", r.entityType, entity.EntityUUID(), err))
		}
	}
	return errors.Join(errs...)
}

// FindByUUID loads one entity. Returns ErrNotFound if it does not exist.
func (r *Repository[T]) FindByUUID(ctx context.Context, uuid string) (T, error) {
	var zero T
	record, err := r.store.GetEntity(ctx, r.entityType, uuid)
	if err != nil {
		return zero, err
	}

	entity, err := r.unmarshal(record)
	if err != nil {
		return zero, err
	}
	return entity, nil
}

// FindAll loads every entity of the repository's type, ordered by uuid.
func (r *Repository[T]) FindAll(ctx context.Context) ([]T, error) {
	records, err := r.store.ListEntities(ctx, r.entityType)
	if err != nil {
		return nil, err
	}

	entities := make([]T, 0, len(records))
	for _, record := range records {
		entity, err := r.unmarshal(record)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

// Count returns the number of stored entities of this type.
func (r *Repository[T]) Count(ctx context.Context) (int, error) {
	return r.store.CountEntities(ctx, r.entityType)
}

// DeleteByUUID removes the entity. Before-delete hooks run inside the delete
// transaction and are fail-fast: any failure leaves the entity intact. There
// is no after-delete hook; cleanup needing the deleted state happens in
// before-delete with the loaded entity. Version history is kept. Returns
// ErrNotFound if the entity does not exist.
func (r *Repository[T]) DeleteByUUID(ctx context.Context, uuid string) error {
	record, err := r.store.GetEntity(ctx, r.entityType, uuid)
	if err != nil {
		return err
	}
	entity, err := r.unmarshal(record)
	if err != nil {
		return err
	}

	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := r.chain.RunBeforeDelete(ctx, tx, entity); err != nil {
		return err
	}
	if err := tx.DeleteEntity(ctx, r.entityType, uuid); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	r.logger.Debug("entity deleted",
		zap.String("entity_type", r.entityType),
		zap.String("entity_uuid", uuid))
	return nil
}

// SemanticSearch embeds the query, searches the chunk index, and returns the
// matching entities of this repository's type, best match first. Each entity
// appears once with its highest-scoring chunk. Chunks whose source entity
// has meanwhile disappeared are skipped.
func (r *Repository[T]) SemanticSearch(ctx context.Context, query string, limit int) ([]SearchResult[T], error) {
	if limit <= 0 {
		return []SearchResult[T]{}, nil
	}

	// over-fetch chunks: several may map to the same entity
	hits, err := r.service.Search(ctx, query, limit*4)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	results := make([]SearchResult[T], 0, limit)
	seen := make(map[string]bool)
	for _, hit := range hits {
		entityType, uuid, ok := r.service.EntityForChunk(hit.Chunk.ID)
		if !ok || entityType != r.entityType || seen[uuid] {
			continue
		}
		seen[uuid] = true

		entity, err := r.FindByUUID(ctx, uuid)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				r.logger.Warn("search hit for missing entity",
					zap.String("entity_type", r.entityType),
					zap.String("entity_uuid", uuid))
				continue
			}
			return nil, err
		}

		results = append(results, SearchResult[T]{
			Entity:    entity,
			Score:     hit.Score,
			ChunkText: hit.Chunk.Text,
		})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// RebuildIndex re-chunks and re-embeds every stored entity of this type,
// replacing whatever the index held for them. Returns the number of chunks
// indexed.
func (r *Repository[T]) RebuildIndex(ctx context.Context) (int, error) {
	entities, err := r.FindAll(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, entity := range entities {
		count, err := r.service.IndexEntity(ctx, entity)
		if err != nil {
			return total, fmt.Errorf("failed to index %s/%s: %w", r.entityType, entity.EntityUUID(), err)
		}
		total += count
	}
	r.logger.Info("index rebuilt",
		zap.String("entity_type", r.entityType),
		zap.Int("entities", len(entities)),
		zap.Int("chunks", total))
	return total, nil
}

func (r *Repository[T]) unmarshal(record *storage.EntityRecord) (T, error) {
	entity := r.newEntity()
	if err := json.Unmarshal(record.Document, entity); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to unmarshal %s/%s: %w", record.EntityType, record.UUID, err)
	}
	return entity, nil
}
