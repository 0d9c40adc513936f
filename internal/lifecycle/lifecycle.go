package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/memoriakit/memoria/internal/storage"
	"github.com/memoriakit/memoria/pkg/types"
)

// Handler observes and participates in an entity's persistence lifecycle
// through five hooks with distinct failure semantics.
//
// BeforeSave and BeforeDelete are fail-fast: an error aborts the operation
// with the stored state unchanged. BeforeSave runs outside any transaction,
// so it is the place for suspending work such as network calls.
//
// BeforeSaveInTx and AfterSaveInTx run inside the save transaction, around
// the entity write; an error rolls the whole transaction back. The scope
// argument is the open transaction: only synchronous writes through it, no
// suspending I/O while it is held.
//
// AfterSave runs after commit and is best-effort: errors are logged and
// swallowed, because the entity is already durable and after-save work is
// reconstructible. There is no after-delete hook; cleanup that needs the
// deleted entity's state belongs in BeforeDelete.
type Handler[T types.Entity] interface {
	// Name identifies the handler in logs.
	Name() string

	// BeforeSave runs before persistence, outside any transaction. The
	// entity is mutable here; changes become part of the saved state.
	BeforeSave(ctx context.Context, entity T) error

	// BeforeSaveInTx runs inside the save transaction, before the entity
	// document is written.
	BeforeSaveInTx(ctx context.Context, scope storage.Storage, entity T) error

	// AfterSaveInTx runs inside the save transaction, after the write, and
	// observes the final persisted state.
	AfterSaveInTx(ctx context.Context, scope storage.Storage, entity T) error

	// AfterSave runs after the save transaction commits.
	AfterSave(ctx context.Context, entity T) error

	// BeforeDelete runs inside the delete transaction, before the entity row
	// is removed.
	BeforeDelete(ctx context.Context, scope storage.Storage, entity T) error
}

// Base is a no-op Handler to embed in handlers that only care about some
// hooks.
type Base[T types.Entity] struct{}

func (Base[T]) BeforeSave(context.Context, T) error                      { return nil }
func (Base[T]) BeforeSaveInTx(context.Context, storage.Storage, T) error { return nil }
func (Base[T]) AfterSaveInTx(context.Context, storage.Storage, T) error  { return nil }
func (Base[T]) AfterSave(context.Context, T) error                       { return nil }
func (Base[T]) BeforeDelete(context.Context, storage.Storage, T) error   { return nil }

// Chain runs an ordered list of handlers through each hook.
type Chain[T types.Entity] struct {
	handlers []Handler[T]
	logger   *zap.Logger
}

// NewChain creates a chain. Handlers run in the given order on every hook.
func NewChain[T types.Entity](logger *zap.Logger, handlers ...Handler[T]) *Chain[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain[T]{handlers: handlers, logger: logger}
}

// Append adds handlers to the end of the chain.
func (c *Chain[T]) Append(handlers ...Handler[T]) {
	c.handlers = append(c.handlers, handlers...)
}

// RunBeforeSave runs every BeforeSave hook, stopping at the first error.
func (c *Chain[T]) RunBeforeSave(ctx context.Context, entity T) error {
	for _, h := range c.handlers {
		if err := h.BeforeSave(ctx, entity); err != nil {
			return fmt.Errorf("before-save hook %s: %w", h.Name(), err)
		}
	}
	return nil
}

// RunBeforeSaveInTx runs every BeforeSaveInTx hook, stopping at the first
// error.
func (c *Chain[T]) RunBeforeSaveInTx(ctx context.Context, scope storage.Storage, entity T) error {
	for _, h := range c.handlers {
		if err := h.BeforeSaveInTx(ctx, scope, entity); err != nil {
			return fmt.Errorf("before-save-in-tx hook %s: %w", h.Name(), err)
		}
	}
	return nil
}

// RunAfterSaveInTx runs every AfterSaveInTx hook, stopping at the first
// error.
func (c *Chain[T]) RunAfterSaveInTx(ctx context.Context, scope storage.Storage, entity T) error {
	for _, h := range c.handlers {
		if err := h.AfterSaveInTx(ctx, scope, entity); err != nil {
			return fmt.Errorf("after-save-in-tx hook %s: %w", h.Name(), err)
		}
	}
	return nil
}

// RunAfterSave runs every AfterSave hook; failures are logged, not returned,
// so one handler cannot block another.
func (c *Chain[T]) RunAfterSave(ctx context.Context, entity T) {
	for _, h := range c.handlers {
		if err := h.AfterSave(ctx, entity); err != nil {
			c.logger.Warn("after-save hook failed",
				zap.String("handler", h.Name()),
				zap.String("entity_type", entity.EntityType()),
				zap.String("entity_uuid", entity.EntityUUID()),
				zap.Error(err))
		}
	}
}

// RunBeforeDelete runs every BeforeDelete hook, stopping at the first error.
func (c *Chain[T]) RunBeforeDelete(ctx context.Context, scope storage.Storage, entity T) error {
	for _, h := range c.handlers {
		if err := h.BeforeDelete(ctx, scope, entity); err != nil {
			return fmt.Errorf("before-delete hook %s: %w", h.Name(), err)
		}
	}
	return nil
}
