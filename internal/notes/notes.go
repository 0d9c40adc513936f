package notes

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memoriakit/memoria/internal/chunking"
	"github.com/memoriakit/memoria/internal/embedder"
	"github.com/memoriakit/memoria/internal/lifecycle"
	"github.com/memoriakit/memoria/internal/repository"
	"github.com/memoriakit/memoria/internal/storage"
	"github.com/memoriakit/memoria/internal/versions"
)

// EntityType is the type tag notes are stored under.
const EntityType = "note"

// Note is the built-in entity type: a titled piece of free text with tags.
// It opts into all three capabilities, so notes are embedded, chunk-indexed,
// and versioned.
type Note struct {
	UUID      string    `json:"uuid"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	Vector    []float32 `json:"vector,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// SnapshotEvery overrides the engine's snapshot cadence when positive.
	// Callers set it from configuration; it is not persisted.
	SnapshotEvery int `json:"-"`
}

// New creates a note with a fresh uuid and timestamps.
func New(title, content string, tags ...string) *Note {
	now := time.Now().UTC()
	return &Note{
		UUID:      uuid.New().String(),
		Title:     title,
		Content:   content,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (n *Note) EntityType() string { return EntityType }
func (n *Note) EntityUUID() string { return n.UUID }

// EmbeddingText combines title and content for the note-level vector.
func (n *Note) EmbeddingText() string {
	return strings.TrimSpace(n.Title + "\n\n" + n.Content)
}

func (n *Note) SetEmbedding(vector []float32) { n.Vector = vector }

// ChunkableText exposes the content body for semantic indexing.
func (n *Note) ChunkableText() string { return n.Content }

// ChunkingProfile selects the default profile.
func (n *Note) ChunkingProfile() string { return "" }

// Snapshot returns the note's full state for the version log. The embedding
// is included, so reconstruction restores it too.
func (n *Note) Snapshot() ([]byte, error) { return json.Marshal(n) }

// SnapshotFrequency defers to the engine default unless SnapshotEvery is set.
func (n *Note) SnapshotFrequency() int { return n.SnapshotEvery }

// Touch bumps the update timestamp.
func (n *Note) Touch() {
	n.UpdatedAt = time.Now().UTC()
}

// NewRepository wires a note repository with the default lifecycle chain.
func NewRepository(store *storage.Store, service *chunking.Service, emb embedder.Embedder, versionRepo *versions.Repository, logger *zap.Logger) *repository.Repository[*Note] {
	chain := lifecycle.DefaultChain[*Note](logger, emb, service, versionRepo)
	return repository.New(store, chain, service, logger, func() *Note { return &Note{} })
}
