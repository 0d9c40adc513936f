package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when inserting a version number that
	// already exists for the entity
	ErrVersionConflict = errors.New("version already exists")
)

// Store implements the Storage interface using SQLite
type Store struct {
	db     *sql.DB
	dbPath string
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewStore creates a SQLite-backed store, applying pending migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *Store) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, store: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx    *sql.Tx
	store *Store
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *Store) querier() querier {
	return s.db
}

// Entity operations

// saveEntityWithQuerier is the internal implementation that uses a querier
func (s *Store) saveEntityWithQuerier(ctx context.Context, q querier, record *EntityRecord) error {
	query := `
		INSERT INTO entities (entity_type, uuid, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity_type, uuid) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		record.EntityType, record.UUID, record.Document, now, now).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}
	record.UpdatedAt = now
	return nil
}

func (s *Store) SaveEntity(ctx context.Context, record *EntityRecord) error {
	return s.saveEntityWithQuerier(ctx, s.querier(), record)
}

// getEntityWithQuerier is the internal implementation that uses a querier
func (s *Store) getEntityWithQuerier(ctx context.Context, q querier, entityType, uuid string) (*EntityRecord, error) {
	query := `
		SELECT id, entity_type, uuid, document, created_at, updated_at
		FROM entities
		WHERE entity_type = ? AND uuid = ?
	`
	var record EntityRecord
	err := q.QueryRowContext(ctx, query, entityType, uuid).Scan(
		&record.ID, &record.EntityType, &record.UUID, &record.Document,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) GetEntity(ctx context.Context, entityType, uuid string) (*EntityRecord, error) {
	return s.getEntityWithQuerier(ctx, s.querier(), entityType, uuid)
}

// deleteEntityWithQuerier is the internal implementation that uses a querier
func (s *Store) deleteEntityWithQuerier(ctx context.Context, q querier, entityType, uuid string) error {
	result, err := q.ExecContext(ctx, "DELETE FROM entities WHERE entity_type = ? AND uuid = ?", entityType, uuid)
	if err != nil {
		return fmt.Errorf("failed to delete entity: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteEntity(ctx context.Context, entityType, uuid string) error {
	return s.deleteEntityWithQuerier(ctx, s.querier(), entityType, uuid)
}

// listEntitiesWithQuerier is the internal implementation that uses a querier
func (s *Store) listEntitiesWithQuerier(ctx context.Context, q querier, entityType string) ([]*EntityRecord, error) {
	query := `
		SELECT id, entity_type, uuid, document, created_at, updated_at
		FROM entities
		WHERE entity_type = ?
		ORDER BY uuid
	`
	rows, err := q.QueryContext(ctx, query, entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []*EntityRecord
	for rows.Next() {
		var record EntityRecord
		if err := rows.Scan(
			&record.ID, &record.EntityType, &record.UUID, &record.Document,
			&record.CreatedAt, &record.UpdatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

func (s *Store) ListEntities(ctx context.Context, entityType string) ([]*EntityRecord, error) {
	return s.listEntitiesWithQuerier(ctx, s.querier(), entityType)
}

// countEntitiesWithQuerier is the internal implementation that uses a querier
func (s *Store) countEntitiesWithQuerier(ctx context.Context, q querier, entityType string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities WHERE entity_type = ?", entityType).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	return count, nil
}

func (s *Store) CountEntities(ctx context.Context, entityType string) (int, error) {
	return s.countEntitiesWithQuerier(ctx, s.querier(), entityType)
}

// Version operations

// insertVersionWithQuerier is the internal implementation that uses a querier
func (s *Store) insertVersionWithQuerier(ctx context.Context, q querier, record *VersionRecord) error {
	if record.Kind != VersionSnapshot && record.Kind != VersionDelta {
		return fmt.Errorf("invalid version kind %q", record.Kind)
	}
	var changedFields []byte
	if len(record.ChangedFields) > 0 {
		var err error
		changedFields, err = json.Marshal(record.ChangedFields)
		if err != nil {
			return fmt.Errorf("failed to encode changed fields: %w", err)
		}
	}
	query := `
		INSERT INTO entity_versions (entity_type, entity_uuid, version, kind, delta, snapshot,
			changed_fields, user_id, change_description, synced, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		record.EntityType, record.EntityUUID, record.Version, record.Kind,
		record.Delta, record.Snapshot, changedFields,
		record.UserID, record.ChangeDescription, record.Synced, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s/%s version %d", ErrVersionConflict,
				record.EntityType, record.EntityUUID, record.Version)
		}
		return fmt.Errorf("failed to insert version: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	record.ID = id
	record.CreatedAt = now
	return nil
}

func (s *Store) InsertVersion(ctx context.Context, record *VersionRecord) error {
	return s.insertVersionWithQuerier(ctx, s.querier(), record)
}

const versionColumns = "id, entity_type, entity_uuid, version, kind, delta, snapshot, " +
	"changed_fields, user_id, change_description, synced, created_at"

// scanVersions reads version rows into records
func scanVersions(rows *sql.Rows) ([]*VersionRecord, error) {
	defer func() {
		_ = rows.Close()
	}()

	var records []*VersionRecord
	for rows.Next() {
		var record VersionRecord
		var changedFields []byte
		if err := rows.Scan(
			&record.ID, &record.EntityType, &record.EntityUUID, &record.Version,
			&record.Kind, &record.Delta, &record.Snapshot, &changedFields,
			&record.UserID, &record.ChangeDescription, &record.Synced, &record.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(changedFields) > 0 {
			if err := json.Unmarshal(changedFields, &record.ChangedFields); err != nil {
				return nil, fmt.Errorf("failed to decode changed fields: %w", err)
			}
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}

// listVersionsWithQuerier is the internal implementation that uses a querier
func (s *Store) listVersionsWithQuerier(ctx context.Context, q querier, entityType, uuid string) ([]*VersionRecord, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM entity_versions
		WHERE entity_type = ? AND entity_uuid = ?
		ORDER BY version ASC
	`
	rows, err := q.QueryContext(ctx, query, entityType, uuid)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return scanVersions(rows)
}

func (s *Store) ListVersions(ctx context.Context, entityType, uuid string) ([]*VersionRecord, error) {
	return s.listVersionsWithQuerier(ctx, s.querier(), entityType, uuid)
}

// listVersionsAtOrBeforeWithQuerier is the internal implementation that uses a querier
func (s *Store) listVersionsAtOrBeforeWithQuerier(ctx context.Context, q querier, entityType, uuid string, version int64) ([]*VersionRecord, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM entity_versions
		WHERE entity_type = ? AND entity_uuid = ? AND version <= ?
		ORDER BY version ASC
	`
	rows, err := q.QueryContext(ctx, query, entityType, uuid, version)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return scanVersions(rows)
}

func (s *Store) ListVersionsAtOrBefore(ctx context.Context, entityType, uuid string, version int64) ([]*VersionRecord, error) {
	return s.listVersionsAtOrBeforeWithQuerier(ctx, s.querier(), entityType, uuid, version)
}

// listVersionsBetweenWithQuerier is the internal implementation that uses a querier
func (s *Store) listVersionsBetweenWithQuerier(ctx context.Context, q querier, entityType, uuid string, fromVersion, toVersion int64) ([]*VersionRecord, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM entity_versions
		WHERE entity_type = ? AND entity_uuid = ? AND version >= ? AND version <= ?
		ORDER BY version ASC
	`
	rows, err := q.QueryContext(ctx, query, entityType, uuid, fromVersion, toVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return scanVersions(rows)
}

func (s *Store) ListVersionsBetween(ctx context.Context, entityType, uuid string, fromVersion, toVersion int64) ([]*VersionRecord, error) {
	return s.listVersionsBetweenWithQuerier(ctx, s.querier(), entityType, uuid, fromVersion, toVersion)
}

// latestVersionNumberWithQuerier is the internal implementation that uses a querier
func (s *Store) latestVersionNumberWithQuerier(ctx context.Context, q querier, entityType, uuid string) (int64, error) {
	var latest sql.NullInt64
	query := "SELECT MAX(version) FROM entity_versions WHERE entity_type = ? AND entity_uuid = ?"
	err := q.QueryRowContext(ctx, query, entityType, uuid).Scan(&latest)
	if err != nil {
		return 0, fmt.Errorf("failed to read latest version: %w", err)
	}
	if !latest.Valid {
		return 0, nil // no history yet
	}
	return latest.Int64, nil
}

func (s *Store) LatestVersionNumber(ctx context.Context, entityType, uuid string) (int64, error) {
	return s.latestVersionNumberWithQuerier(ctx, s.querier(), entityType, uuid)
}

// deleteVersionsBelowWithQuerier is the internal implementation that uses a querier
func (s *Store) deleteVersionsBelowWithQuerier(ctx context.Context, q querier, entityType, uuid string, version int64) (int, error) {
	result, err := q.ExecContext(ctx,
		"DELETE FROM entity_versions WHERE entity_type = ? AND entity_uuid = ? AND version < ?",
		entityType, uuid, version)
	if err != nil {
		return 0, fmt.Errorf("failed to delete versions: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rowsAffected), nil
}

func (s *Store) DeleteVersionsBelow(ctx context.Context, entityType, uuid string, version int64) (int, error) {
	return s.deleteVersionsBelowWithQuerier(ctx, s.querier(), entityType, uuid, version)
}

// markVersionsSyncedWithQuerier is the internal implementation that uses a querier
func (s *Store) markVersionsSyncedWithQuerier(ctx context.Context, q querier, entityType, uuid string, upToVersion int64) (int, error) {
	result, err := q.ExecContext(ctx,
		"UPDATE entity_versions SET synced = 1 WHERE entity_type = ? AND entity_uuid = ? AND version <= ? AND synced = 0",
		entityType, uuid, upToVersion)
	if err != nil {
		return 0, fmt.Errorf("failed to mark versions synced: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rowsAffected), nil
}

func (s *Store) MarkVersionsSynced(ctx context.Context, entityType, uuid string, upToVersion int64) (int, error) {
	return s.markVersionsSyncedWithQuerier(ctx, s.querier(), entityType, uuid, upToVersion)
}

// Status operations

// getStatusWithQuerier is the internal implementation that uses a querier
func (s *Store) getStatusWithQuerier(ctx context.Context, q querier) (*Status, error) {
	status := &Status{
		EntityCounts:       make(map[string]int),
		DatabaseAccessible: true,
	}

	rows, err := q.QueryContext(ctx, "SELECT entity_type, COUNT(*) FROM entities GROUP BY entity_type")
	if err != nil {
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	for rows.Next() {
		var entityType string
		var count int
		if err := rows.Scan(&entityType, &count); err != nil {
			return nil, err
		}
		status.EntityCounts[entityType] = count
		status.TotalEntities += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM entity_versions").Scan(&status.TotalVersions); err != nil {
		return nil, fmt.Errorf("failed to count versions: %w", err)
	}
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM entity_versions WHERE synced = 0").Scan(&status.UnsyncedVersions); err != nil {
		return nil, fmt.Errorf("failed to count unsynced versions: %w", err)
	}

	var pageCount, pageSize float64
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			status.DatabaseSizeMB = pageCount * pageSize / (1024 * 1024)
		}
	}

	return status, nil
}

func (s *Store) GetStatus(ctx context.Context) (*Status, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}

// isUniqueViolation reports whether err is a unique-constraint failure. Both
// drivers surface the SQLite error text, so string matching is the portable
// check.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "constraint failed")
}

// Transaction method delegation

func (t *sqliteTx) SaveEntity(ctx context.Context, record *EntityRecord) error {
	return t.store.saveEntityWithQuerier(ctx, t.querier(), record)
}

func (t *sqliteTx) GetEntity(ctx context.Context, entityType, uuid string) (*EntityRecord, error) {
	return t.store.getEntityWithQuerier(ctx, t.querier(), entityType, uuid)
}

func (t *sqliteTx) DeleteEntity(ctx context.Context, entityType, uuid string) error {
	return t.store.deleteEntityWithQuerier(ctx, t.querier(), entityType, uuid)
}

func (t *sqliteTx) ListEntities(ctx context.Context, entityType string) ([]*EntityRecord, error) {
	return t.store.listEntitiesWithQuerier(ctx, t.querier(), entityType)
}

func (t *sqliteTx) CountEntities(ctx context.Context, entityType string) (int, error) {
	return t.store.countEntitiesWithQuerier(ctx, t.querier(), entityType)
}

func (t *sqliteTx) InsertVersion(ctx context.Context, record *VersionRecord) error {
	return t.store.insertVersionWithQuerier(ctx, t.querier(), record)
}

func (t *sqliteTx) ListVersions(ctx context.Context, entityType, uuid string) ([]*VersionRecord, error) {
	return t.store.listVersionsWithQuerier(ctx, t.querier(), entityType, uuid)
}

func (t *sqliteTx) ListVersionsAtOrBefore(ctx context.Context, entityType, uuid string, version int64) ([]*VersionRecord, error) {
	return t.store.listVersionsAtOrBeforeWithQuerier(ctx, t.querier(), entityType, uuid, version)
}

func (t *sqliteTx) ListVersionsBetween(ctx context.Context, entityType, uuid string, fromVersion, toVersion int64) ([]*VersionRecord, error) {
	return t.store.listVersionsBetweenWithQuerier(ctx, t.querier(), entityType, uuid, fromVersion, toVersion)
}

func (t *sqliteTx) LatestVersionNumber(ctx context.Context, entityType, uuid string) (int64, error) {
	return t.store.latestVersionNumberWithQuerier(ctx, t.querier(), entityType, uuid)
}

func (t *sqliteTx) DeleteVersionsBelow(ctx context.Context, entityType, uuid string, version int64) (int, error) {
	return t.store.deleteVersionsBelowWithQuerier(ctx, t.querier(), entityType, uuid, version)
}

func (t *sqliteTx) MarkVersionsSynced(ctx context.Context, entityType, uuid string, upToVersion int64) (int, error) {
	return t.store.markVersionsSyncedWithQuerier(ctx, t.querier(), entityType, uuid, upToVersion)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return t.store.getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// The transaction does not own the connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions are not supported")
}
