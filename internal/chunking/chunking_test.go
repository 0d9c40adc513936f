package chunking

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoriakit/memoria/internal/embedder"
	"github.com/memoriakit/memoria/internal/vectorindex"
	"github.com/memoriakit/memoria/pkg/types"
)

// textEntity is a minimal semantic-indexable entity for tests.
type textEntity struct {
	uuid    string
	text    string
	profile string
}

func (e *textEntity) EntityType() string      { return "text" }
func (e *textEntity) EntityUUID() string      { return e.uuid }
func (e *textEntity) ChunkableText() string   { return e.text }
func (e *textEntity) ChunkingProfile() string { return e.profile }

// plainEntity has no capabilities beyond identity.
type plainEntity struct{ uuid string }

func (e *plainEntity) EntityType() string { return "plain" }
func (e *plainEntity) EntityUUID() string { return e.uuid }

func newTestService(t *testing.T) *Service {
	t.Helper()
	emb, err := embedder.NewLocalProvider(embedder.NewCache(100))
	require.NoError(t, err)
	return NewService(vectorindex.NewMemory(), emb)
}

func TestIndexEntity_ParentAndChildChunks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entity := &textEntity{
		uuid: "e-1",
		text: "A short note about chunking. It fits in a single parent chunk.",
	}
	count, err := svc.IndexEntity(ctx, entity)
	require.NoError(t, err)
	// short text merges into one parent and one child
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, svc.IndexedChunks())

	ids := svc.ChunksForEntity("text", "e-1")
	require.Len(t, ids, 2)

	for _, id := range ids {
		entityType, uuid, ok := svc.EntityForChunk(id)
		require.True(t, ok)
		assert.Equal(t, "text", entityType)
		assert.Equal(t, "e-1", uuid)
	}
}

func TestIndexEntity_NotIndexable(t *testing.T) {
	svc := newTestService(t)

	count, err := svc.IndexEntity(context.Background(), &plainEntity{uuid: "p-1"})
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, svc.IndexedChunks())
}

func TestIndexEntity_EmptyText(t *testing.T) {
	svc := newTestService(t)

	count, err := svc.IndexEntity(context.Background(), &textEntity{uuid: "e-1"})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIndexEntity_ReindexReplacesChunks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entity := &textEntity{uuid: "e-1", text: "First version of the text."}
	_, err := svc.IndexEntity(ctx, entity)
	require.NoError(t, err)
	oldIDs := svc.ChunksForEntity("text", "e-1")
	require.NotEmpty(t, oldIDs)

	entity.text = "Second version, entirely rewritten."
	count, err := svc.IndexEntity(ctx, entity)
	require.NoError(t, err)
	assert.Equal(t, count, svc.IndexedChunks(), "no stale chunks left behind")

	for _, id := range oldIDs {
		_, _, ok := svc.EntityForChunk(id)
		assert.False(t, ok, "old chunk %s still mapped", id)
	}
}

func TestIndexEntity_TextClearedRemovesChunks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	entity := &textEntity{uuid: "e-1", text: "Some content worth indexing."}
	_, err := svc.IndexEntity(ctx, entity)
	require.NoError(t, err)
	require.NotZero(t, svc.IndexedChunks())

	entity.text = ""
	count, err := svc.IndexEntity(ctx, entity)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, svc.IndexedChunks())
}

// multiParagraphText builds several paragraphs of varied prose, well over
// 500 tokens in total.
func multiParagraphText() string {
	var b strings.Builder
	for p := 0; p < 8; p++ {
		for s := 0; s < 10; s++ {
			fmt.Fprintf(&b, "Paragraph %d sentence %d covers a slightly different topic with its own distinct wording and detail. ", p, s)
		}
		b.WriteString("\n\n")
	}
	return b.String()
}

func TestChunkText_ChildrenSmallerThanParents(t *testing.T) {
	svc := newTestService(t)

	chunks, err := svc.chunkText(context.Background(), multiParagraphText(), DefaultProfile())
	require.NoError(t, err)

	tokens := map[types.ChunkLevel]int{}
	counts := map[types.ChunkLevel]int{}
	for _, chunk := range chunks {
		tokens[chunk.Level] += chunk.TokenCount()
		counts[chunk.Level]++
	}
	require.NotZero(t, counts[types.ChunkParent])
	require.NotZero(t, counts[types.ChunkChild])

	avgParent := float64(tokens[types.ChunkParent]) / float64(counts[types.ChunkParent])
	avgChild := float64(tokens[types.ChunkChild]) / float64(counts[types.ChunkChild])
	assert.Less(t, avgChild, avgParent)
}

func TestDeleteByEntity_Idempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.IndexEntity(ctx, &textEntity{uuid: "e-1", text: "Indexed content."})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteByEntity(ctx, "text", "e-1"))
	assert.Zero(t, svc.IndexedChunks())
	assert.Empty(t, svc.ChunksForEntity("text", "e-1"))

	// again, and for an entity never indexed
	require.NoError(t, svc.DeleteByEntity(ctx, "text", "e-1"))
	require.NoError(t, svc.DeleteByEntity(ctx, "text", "ghost"))
}

func TestDeleteByEntity_LeavesOtherEntitiesAlone(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.IndexEntity(ctx, &textEntity{uuid: "e-1", text: "Content for the first entity."})
	require.NoError(t, err)
	otherCount, err := svc.IndexEntity(ctx, &textEntity{uuid: "e-2", text: "Content for the second entity."})
	require.NoError(t, err)
	otherIDs := svc.ChunksForEntity("text", "e-2")
	require.NotEmpty(t, otherIDs)

	require.NoError(t, svc.DeleteByEntity(ctx, "text", "e-1"))

	assert.Empty(t, svc.ChunksForEntity("text", "e-1"))
	assert.Equal(t, otherIDs, svc.ChunksForEntity("text", "e-2"))
	assert.Equal(t, otherCount, svc.IndexedChunks())
}

func TestSearch_FindsSourceEntity(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first := "Gardening tips for growing tomatoes in small spaces."
	second := "Notes from the quarterly planning meeting."
	_, err := svc.IndexEntity(ctx, &textEntity{uuid: "e-1", text: first})
	require.NoError(t, err)
	_, err = svc.IndexEntity(ctx, &textEntity{uuid: "e-2", text: second})
	require.NoError(t, err)

	results, err := svc.Search(ctx, first, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)

	_, uuid, ok := svc.EntityForChunk(results[0].Chunk.ID)
	require.True(t, ok)
	assert.Equal(t, "e-1", uuid)
}

func TestSearch_EmptyQuery(t *testing.T) {
	svc := newTestService(t)

	results, err := svc.Search(context.Background(), "", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRegisterProfile(t *testing.T) {
	svc := newTestService(t)

	err := svc.RegisterProfile("", DefaultProfile())
	assert.ErrorIs(t, err, types.ErrInvalidConfig)

	bad := DefaultProfile()
	bad.Child.Overlap = bad.Child.WindowSize
	err = svc.RegisterProfile("bad", bad)
	assert.ErrorIs(t, err, types.ErrInvalidConfig)

	require.NoError(t, svc.RegisterProfile("prose", DefaultProfile()))

	// unknown profile names fall back to the default
	count, err := svc.IndexEntity(context.Background(), &textEntity{
		uuid: "e-1", text: "Uses an unregistered profile name.", profile: "nonexistent",
	})
	require.NoError(t, err)
	assert.NotZero(t, count)
}

func TestReset(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.IndexEntity(ctx, &textEntity{uuid: "e-1", text: "Content."})
	require.NoError(t, err)
	require.NotZero(t, svc.IndexedChunks())

	svc.Reset()
	assert.Zero(t, svc.IndexedChunks())
	assert.Empty(t, svc.ChunksForEntity("text", "e-1"))
}
