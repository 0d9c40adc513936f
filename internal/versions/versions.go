package versions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/memoriakit/memoria/internal/storage"
)

// Common errors
var (
	// ErrHistoryCorrupt is returned when a version chain cannot be replayed:
	// no snapshot anchors the requested range, or version numbers have gaps.
	ErrHistoryCorrupt = errors.New("version history corrupt")
	// ErrVersionNotFound is returned when the requested version does not
	// exist (never written, or pruned away).
	ErrVersionNotFound = errors.New("version not found")
	// ErrInvalidRange is returned for a malformed version range.
	ErrInvalidRange = errors.New("invalid version range")
)

// DefaultSnapshotFrequency is used when an entity does not specify one.
const DefaultSnapshotFrequency = 20

// emptyState is the diff base for an entity's first version.
var emptyState = []byte("{}")

// Scope is the storage surface the repository operates on. Both *storage.Store
// and storage.Tx satisfy it, so a caller chooses whether version writes share
// a transaction with the entity write. Reading the latest version number and
// inserting the next record must happen through the same scope, or two
// concurrent writers can compute the same number.
type Scope interface {
	InsertVersion(ctx context.Context, record *storage.VersionRecord) error
	ListVersions(ctx context.Context, entityType, uuid string) ([]*storage.VersionRecord, error)
	ListVersionsAtOrBefore(ctx context.Context, entityType, uuid string, version int64) ([]*storage.VersionRecord, error)
	ListVersionsBetween(ctx context.Context, entityType, uuid string, fromVersion, toVersion int64) ([]*storage.VersionRecord, error)
	LatestVersionNumber(ctx context.Context, entityType, uuid string) (int64, error)
	DeleteVersionsBelow(ctx context.Context, entityType, uuid string, version int64) (int, error)
	MarkVersionsSynced(ctx context.Context, entityType, uuid string, upToVersion int64) (int, error)
}

// Change describes one entity mutation to be recorded.
type Change struct {
	EntityType string
	EntityUUID string

	// State is the entity's complete JSON state after the change.
	State []byte

	// SnapshotFrequency is how often a full snapshot accompanies the delta.
	// Zero or negative selects DefaultSnapshotFrequency.
	SnapshotFrequency int

	// UserID and Description attribute the change; both optional.
	UserID      string
	Description string
}

// Repository records and replays entity version history. Every change stores
// an RFC 7386 merge patch against the previous state; snapshot versions
// additionally store the full state. Replay starts at the nearest snapshot
// and applies deltas forward. The repository itself is stateless, so one
// instance serves all entity types.
type Repository struct{}

// NewRepository creates a version repository.
func NewRepository() *Repository {
	return &Repository{}
}

// RecordChange appends one version for the change. Version numbers start at
// 1 and increase by 1. The record always carries the merge patch from the
// previous state (or from the empty object for version 1) plus the changed
// top-level field names. A full snapshot is stored alongside on the first
// version, on every Nth version per the frequency, and whenever the previous
// state cannot be replayed, which re-anchors a damaged chain.
func (r *Repository) RecordChange(ctx context.Context, scope Scope, change Change) (*storage.VersionRecord, error) {
	if len(change.State) == 0 {
		return nil, fmt.Errorf("change for %s/%s has no state", change.EntityType, change.EntityUUID)
	}

	latest, err := scope.LatestVersionNumber(ctx, change.EntityType, change.EntityUUID)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest version: %w", err)
	}
	next := latest + 1

	freq := change.SnapshotFrequency
	if freq <= 0 {
		freq = DefaultSnapshotFrequency
	}

	snapshot := isSnapshotVersion(next, freq)
	base := emptyState
	if next > 1 {
		previous, err := r.reconstructAt(ctx, scope, change.EntityType, change.EntityUUID, latest)
		if err != nil {
			// The chain before us is unreadable. A fresh snapshot re-anchors
			// it instead of propagating the damage.
			snapshot = true
		} else {
			base = previous
		}
	}

	delta, err := jsonpatch.CreateMergePatch(base, change.State)
	if err != nil {
		return nil, fmt.Errorf("failed to create merge patch: %w", err)
	}

	record := &storage.VersionRecord{
		EntityType:        change.EntityType,
		EntityUUID:        change.EntityUUID,
		Version:           next,
		Kind:              storage.VersionDelta,
		Delta:             delta,
		ChangedFields:     topLevelFields(delta),
		UserID:            change.UserID,
		ChangeDescription: change.Description,
	}
	if snapshot {
		record.Kind = storage.VersionSnapshot
		record.Snapshot = change.State
	}

	if err := scope.InsertVersion(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// isSnapshotVersion reports whether version n gets a full snapshot. With
// frequency f, snapshots land on versions 1, f+1, 2f+1, ...
func isSnapshotVersion(n int64, freq int) bool {
	if freq <= 1 {
		return true
	}
	return n%int64(freq) == 1
}

// topLevelFields returns the sorted top-level keys of a merge patch.
func topLevelFields(patch []byte) []string {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(patch, &doc); err != nil || len(doc) == 0 {
		return nil
	}
	fields := make([]string, 0, len(doc))
	for field := range doc {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// GetHistory returns the entity's full retained history, oldest first. An
// entity with no history yields an empty slice.
func (r *Repository) GetHistory(ctx context.Context, scope Scope, entityType, uuid string) ([]*storage.VersionRecord, error) {
	return scope.ListVersions(ctx, entityType, uuid)
}

// GetChangesBetween returns versions in [fromVersion, toVersion], oldest
// first.
func (r *Repository) GetChangesBetween(ctx context.Context, scope Scope, entityType, uuid string, fromVersion, toVersion int64) ([]*storage.VersionRecord, error) {
	if fromVersion < 1 || toVersion < fromVersion {
		return nil, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, fromVersion, toVersion)
	}
	return scope.ListVersionsBetween(ctx, entityType, uuid, fromVersion, toVersion)
}

// Reconstruct returns the entity's JSON state at the given version. A
// version of zero or less means the latest. Requesting a version that was
// never written or has been pruned returns ErrVersionNotFound; a chain with
// gaps or without a snapshot anchor returns ErrHistoryCorrupt.
func (r *Repository) Reconstruct(ctx context.Context, scope Scope, entityType, uuid string, version int64) ([]byte, error) {
	if version <= 0 {
		latest, err := scope.LatestVersionNumber(ctx, entityType, uuid)
		if err != nil {
			return nil, fmt.Errorf("failed to read latest version: %w", err)
		}
		if latest == 0 {
			return nil, fmt.Errorf("%w: %s/%s has no history", ErrVersionNotFound, entityType, uuid)
		}
		version = latest
	}
	return r.reconstructAt(ctx, scope, entityType, uuid, version)
}

// ReconstructAtTime returns the entity's state as of the last version
// recorded at or before the target time. A target before the first version
// returns ErrVersionNotFound; at or after the latest version it returns the
// current state.
func (r *Repository) ReconstructAtTime(ctx context.Context, scope Scope, entityType, uuid string, target time.Time) ([]byte, error) {
	records, err := scope.ListVersions(ctx, entityType, uuid)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}

	var version int64
	for _, record := range records {
		if record.CreatedAt.After(target) {
			break
		}
		version = record.Version
	}
	if version == 0 {
		return nil, fmt.Errorf("%w: %s/%s has no version at or before %s",
			ErrVersionNotFound, entityType, uuid, target.Format(time.RFC3339))
	}
	return r.reconstructAt(ctx, scope, entityType, uuid, version)
}

// reconstructAt replays history up to exactly the given version.
func (r *Repository) reconstructAt(ctx context.Context, scope Scope, entityType, uuid string, version int64) ([]byte, error) {
	records, err := scope.ListVersionsAtOrBefore(ctx, entityType, uuid, version)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	if len(records) == 0 || records[len(records)-1].Version != version {
		return nil, fmt.Errorf("%w: %s/%s version %d", ErrVersionNotFound, entityType, uuid, version)
	}

	// walk back to the nearest snapshot
	start := -1
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Kind == storage.VersionSnapshot {
			start = i
			break
		}
	}
	if start == -1 {
		return nil, fmt.Errorf("%w: no snapshot at or before version %d of %s/%s",
			ErrHistoryCorrupt, version, entityType, uuid)
	}

	state := records[start].Snapshot
	for i := start + 1; i < len(records); i++ {
		if records[i].Version != records[i-1].Version+1 {
			return nil, fmt.Errorf("%w: gap between versions %d and %d of %s/%s",
				ErrHistoryCorrupt, records[i-1].Version, records[i].Version, entityType, uuid)
		}
		state, err = jsonpatch.MergePatch(state, records[i].Delta)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to apply delta %d of %s/%s: %v",
				ErrHistoryCorrupt, records[i].Version, entityType, uuid, err)
		}
	}
	return state, nil
}

// Prune deletes old versions, keeping the keepSnapshots most recent
// snapshots and every version from the oldest retained snapshot onward.
// Reconstructability of the retained range is preserved because it stays
// anchored on a snapshot. A no-op when the entity has keepSnapshots or fewer
// snapshots. Returns the number of versions deleted.
func (r *Repository) Prune(ctx context.Context, scope Scope, entityType, uuid string, keepSnapshots int) (int, error) {
	if keepSnapshots < 1 {
		return 0, fmt.Errorf("%w: keepSnapshots %d must be at least 1", ErrInvalidRange, keepSnapshots)
	}

	records, err := scope.ListVersions(ctx, entityType, uuid)
	if err != nil {
		return 0, fmt.Errorf("failed to list versions: %w", err)
	}

	var snapshots []int64
	for _, record := range records {
		if record.Kind == storage.VersionSnapshot {
			snapshots = append(snapshots, record.Version)
		}
	}
	if len(snapshots) <= keepSnapshots {
		return 0, nil
	}

	oldestRetained := snapshots[len(snapshots)-keepSnapshots]
	return scope.DeleteVersionsBelow(ctx, entityType, uuid, oldestRetained)
}

// MarkSynced flags versions up to and including upToVersion as pushed to a
// remote replica. Returns how many were newly marked.
func (r *Repository) MarkSynced(ctx context.Context, scope Scope, entityType, uuid string, upToVersion int64) (int, error) {
	return scope.MarkVersionsSynced(ctx, entityType, uuid, upToVersion)
}
