package storage

import (
	"context"
	"time"
)

// Version record kinds
const (
	// VersionSnapshot marks a record that carries the entity's full state in
	// addition to its delta.
	VersionSnapshot = "snapshot"
	// VersionDelta marks a record that carries only the merge patch against
	// the previous version.
	VersionDelta = "delta"
)

// Storage defines the interface for persisting entities and their version
// history.
type Storage interface {
	// Entity operations
	SaveEntity(ctx context.Context, record *EntityRecord) error
	GetEntity(ctx context.Context, entityType, uuid string) (*EntityRecord, error)
	DeleteEntity(ctx context.Context, entityType, uuid string) error
	ListEntities(ctx context.Context, entityType string) ([]*EntityRecord, error)
	CountEntities(ctx context.Context, entityType string) (int, error)

	// Version operations
	InsertVersion(ctx context.Context, record *VersionRecord) error
	ListVersions(ctx context.Context, entityType, uuid string) ([]*VersionRecord, error)
	ListVersionsAtOrBefore(ctx context.Context, entityType, uuid string, version int64) ([]*VersionRecord, error)
	ListVersionsBetween(ctx context.Context, entityType, uuid string, fromVersion, toVersion int64) ([]*VersionRecord, error)
	LatestVersionNumber(ctx context.Context, entityType, uuid string) (int64, error)
	DeleteVersionsBelow(ctx context.Context, entityType, uuid string, version int64) (deletedCount int, err error)
	MarkVersionsSynced(ctx context.Context, entityType, uuid string, upToVersion int64) (markedCount int, err error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// EntityRecord is the persisted form of an entity: its identity plus the
// JSON document holding its full state.
type EntityRecord struct {
	ID         int64
	EntityType string
	UUID       string
	Document   []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// VersionRecord is one entry in an entity's append-only history. Every
// record carries the merge patch from the previous state; snapshot records
// additionally carry the full state. Version numbers start at 1 and increase
// by 1 per change. Records are never mutated after insert except for the
// Synced flag.
type VersionRecord struct {
	ID                int64
	EntityType        string
	EntityUUID        string
	Version           int64
	Kind              string
	Delta             []byte
	Snapshot          []byte
	ChangedFields     []string
	UserID            string
	ChangeDescription string
	Synced            bool
	CreatedAt         time.Time
}

// Status contains statistics about the store.
type Status struct {
	EntityCounts       map[string]int
	TotalEntities      int
	TotalVersions      int
	UnsyncedVersions   int
	DatabaseSizeMB     float64
	DatabaseAccessible bool
}
