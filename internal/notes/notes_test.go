package notes

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/memoriakit/memoria/internal/chunking"
	"github.com/memoriakit/memoria/internal/embedder"
	"github.com/memoriakit/memoria/internal/storage"
	"github.com/memoriakit/memoria/internal/vectorindex"
	"github.com/memoriakit/memoria/internal/versions"
)

func TestNew(t *testing.T) {
	note := New("Shopping", "Eggs and milk.", "errands")
	assert.NotEmpty(t, note.UUID)
	assert.Equal(t, "Shopping", note.Title)
	assert.Equal(t, []string{"errands"}, note.Tags)
	assert.False(t, note.CreatedAt.IsZero())
	assert.Equal(t, note.CreatedAt, note.UpdatedAt)

	other := New("Other", "")
	assert.NotEqual(t, note.UUID, other.UUID)
}

func TestCapabilities(t *testing.T) {
	note := New("Title", "Body text.")

	assert.Equal(t, "note", note.EntityType())
	assert.Equal(t, "Title\n\nBody text.", note.EmbeddingText())
	assert.Equal(t, "Body text.", note.ChunkableText())

	empty := New("", "")
	assert.Empty(t, empty.EmbeddingText())
}

func TestRepository_EndToEnd(t *testing.T) {
	store, err := storage.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)
	service := chunking.NewService(vectorindex.NewMemory(), emb)
	repo := NewRepository(store, service, emb, versions.NewRepository(), zap.NewNop())
	ctx := context.Background()

	note := New("Trip notes", "Visited the coast. The weather held up.")
	require.NoError(t, repo.Save(ctx, note))

	loaded, err := repo.FindByUUID(ctx, note.UUID)
	require.NoError(t, err)
	assert.Equal(t, note.Title, loaded.Title)
	assert.NotNil(t, loaded.Vector, "note-level embedding persisted")

	results, err := repo.SemanticSearch(ctx, "Visited the coast. The weather held up.", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, note.UUID, results[0].Entity.UUID)
}
