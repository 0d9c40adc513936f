// Package storage persists entities and their version history in SQLite.
//
// The store of record holds two tables. The entities table keeps one row per
// live entity with its full state as a JSON document, upserted on every save.
// The entity_versions table is an append-only log of snapshots and merge
// patch deltas, one row per change, keyed by (entity_type, entity_uuid,
// version). History survives entity deletion so a deleted entity can still be
// reconstructed.
//
// Two SQLite drivers are supported via build tags: modernc.org/sqlite by
// default (pure Go, no C compiler), or mattn/go-sqlite3 with the cgo_sqlite
// tag. The database runs in WAL mode with a single writer connection.
//
// All read and write operations exist in two forms: directly on the Store,
// or on a transaction started with BeginTx. The Tx interface embeds Storage,
// so code that takes a Storage can run against either without knowing which.
//
//	store, err := storage.NewStore("memoria.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	tx, err := store.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//	// ... reads and writes on tx ...
//	return tx.Commit()
package storage
