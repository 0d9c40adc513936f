package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/memoriakit/memoria/internal/config"
	"github.com/memoriakit/memoria/internal/embedder"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Embedding.Provider = embedder.ProviderLocal

	server, err := NewServer(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = server.store.Close()
	})
	return server
}

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()

	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "tool result should be text content")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &decoded))
	return decoded
}

func TestNewServer(t *testing.T) {
	server := newTestServer(t)

	assert.NotNil(t, server.mcp, "MCP server should be initialized")
	assert.NotNil(t, server.store, "Storage should be initialized")
	assert.NotNil(t, server.notes, "Note repository should be initialized")
	assert.NotNil(t, server.versionRepo, "Version repository should be initialized")
	assert.NotNil(t, server.service, "Chunking service should be initialized")
}

func TestNewServer_RejectsBadChunkingProfile(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "test.db")
	cfg.Embedding.Provider = embedder.ProviderLocal
	cfg.Chunking.Profiles = map[string]config.ProfileConfig{
		"broken": {
			Parent: config.ChunkSettings{WindowSize: 10, Overlap: 20, MinChunkSize: 5, MaxChunkSize: 50},
			Child:  config.ChunkSettings{WindowSize: 10, Overlap: 2, MinChunkSize: 5, MaxChunkSize: 50},
		},
	}

	_, err := NewServer(cfg, zap.NewNop())
	require.Error(t, err)
}

func TestSaveAndGetNote(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	result, err := server.handleSaveNote(ctx, callTool("save_note", map[string]interface{}{
		"title":   "Trip notes",
		"content": "Visited the coast. The weather held up.",
		"tags":    []interface{}{"travel"},
	}))
	require.NoError(t, err)

	saved := resultJSON(t, result)
	assert.Equal(t, true, saved["created"])
	assert.Equal(t, float64(1), saved["version"])
	uuid, _ := saved["uuid"].(string)
	require.NotEmpty(t, uuid)

	result, err = server.handleGetNote(ctx, callTool("get_note", map[string]interface{}{
		"uuid": uuid,
	}))
	require.NoError(t, err)

	note := resultJSON(t, result)
	assert.Equal(t, "Trip notes", note["title"])
	assert.Equal(t, "Visited the coast. The weather held up.", note["content"])
}

func TestSaveNote_UpdateAppendsVersion(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	result, err := server.handleSaveNote(ctx, callTool("save_note", map[string]interface{}{
		"title":   "Draft",
		"content": "First pass.",
	}))
	require.NoError(t, err)
	uuid := resultJSON(t, result)["uuid"].(string)

	result, err = server.handleSaveNote(ctx, callTool("save_note", map[string]interface{}{
		"uuid":    uuid,
		"title":   "Draft",
		"content": "Second pass.",
	}))
	require.NoError(t, err)

	updated := resultJSON(t, result)
	assert.Equal(t, false, updated["created"])
	assert.Equal(t, float64(2), updated["version"])
}

func TestSaveNote_MissingParams(t *testing.T) {
	server := newTestServer(t)

	_, err := server.handleSaveNote(context.Background(), callTool("save_note", map[string]interface{}{
		"title": "No content",
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestGetNote_NotFound(t *testing.T) {
	server := newTestServer(t)

	_, err := server.handleGetNote(context.Background(), callTool("get_note", map[string]interface{}{
		"uuid": "no-such-note",
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeNoteNotFound, mcpErr.Code)
}

func TestDeleteNote_KeepsHistory(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	result, err := server.handleSaveNote(ctx, callTool("save_note", map[string]interface{}{
		"title":   "Short lived",
		"content": "Will be deleted.",
	}))
	require.NoError(t, err)
	uuid := resultJSON(t, result)["uuid"].(string)

	result, err = server.handleDeleteNote(ctx, callTool("delete_note", map[string]interface{}{
		"uuid": uuid,
	}))
	require.NoError(t, err)
	assert.Equal(t, true, resultJSON(t, result)["deleted"])

	// the note is gone
	_, err = server.handleGetNote(ctx, callTool("get_note", map[string]interface{}{
		"uuid": uuid,
	}))
	require.Error(t, err)

	// but its history survives and can be replayed
	result, err = server.handleReconstructNote(ctx, callTool("reconstruct_note", map[string]interface{}{
		"uuid": uuid,
	}))
	require.NoError(t, err)

	reconstructed := resultJSON(t, result)
	note, ok := reconstructed["note"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Short lived", note["title"])
}

func TestSearchMemory(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	result, err := server.handleSaveNote(ctx, callTool("save_note", map[string]interface{}{
		"title":   "Trip notes",
		"content": "Visited the coast. The weather held up.",
	}))
	require.NoError(t, err)
	uuid := resultJSON(t, result)["uuid"].(string)

	result, err = server.handleSearchMemory(ctx, callTool("search_memory", map[string]interface{}{
		"query": "Visited the coast. The weather held up.",
		"limit": float64(5),
	}))
	require.NoError(t, err)

	search := resultJSON(t, result)
	require.Equal(t, float64(1), search["count"])
	matches := search["results"].([]interface{})
	first := matches[0].(map[string]interface{})
	assert.Equal(t, uuid, first["uuid"])
	assert.Equal(t, "Trip notes", first["title"])
}

func TestSearchMemory_Validation(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	_, err := server.handleSearchMemory(ctx, callTool("search_memory", map[string]interface{}{
		"query": "",
	}))
	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeEmptyQuery, mcpErr.Code)

	_, err = server.handleSearchMemory(ctx, callTool("search_memory", map[string]interface{}{
		"query": "anything",
		"limit": float64(500),
	}))
	require.Error(t, err)
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestNoteHistoryAndReconstruct(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	result, err := server.handleSaveNote(ctx, callTool("save_note", map[string]interface{}{
		"title":   "Draft",
		"content": "Version one.",
	}))
	require.NoError(t, err)
	uuid := resultJSON(t, result)["uuid"].(string)

	_, err = server.handleSaveNote(ctx, callTool("save_note", map[string]interface{}{
		"uuid":    uuid,
		"title":   "Draft",
		"content": "Version two.",
	}))
	require.NoError(t, err)

	result, err = server.handleNoteHistory(ctx, callTool("note_history", map[string]interface{}{
		"uuid": uuid,
	}))
	require.NoError(t, err)

	history := resultJSON(t, result)
	require.Equal(t, float64(2), history["count"])
	entries := history["versions"].([]interface{})
	first := entries[0].(map[string]interface{})
	assert.Equal(t, "snapshot", first["kind"])
	assert.Equal(t, false, first["synced"])

	second := entries[1].(map[string]interface{})
	assert.Equal(t, "delta", second["kind"])
	assert.Contains(t, second["changed_fields"], "content")

	result, err = server.handleReconstructNote(ctx, callTool("reconstruct_note", map[string]interface{}{
		"uuid":    uuid,
		"version": float64(1),
	}))
	require.NoError(t, err)

	reconstructed := resultJSON(t, result)
	assert.Equal(t, float64(1), reconstructed["version"])
	note := reconstructed["note"].(map[string]interface{})
	assert.Equal(t, "Version one.", note["content"])
}

func TestNoteHistory_NoHistory(t *testing.T) {
	server := newTestServer(t)

	_, err := server.handleNoteHistory(context.Background(), callTool("note_history", map[string]interface{}{
		"uuid": "never-saved",
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeNoHistory, mcpErr.Code)
}

func TestRebuildIndexAndStatus(t *testing.T) {
	server := newTestServer(t)
	ctx := context.Background()

	_, err := server.handleSaveNote(ctx, callTool("save_note", map[string]interface{}{
		"title":   "Trip notes",
		"content": "Visited the coast. The weather held up.",
	}))
	require.NoError(t, err)

	// wipe the index, then rebuild it from storage
	server.service.Reset()
	require.Zero(t, server.service.IndexedChunks())

	result, err := server.handleRebuildIndex(ctx, callTool("rebuild_index", map[string]interface{}{}))
	require.NoError(t, err)

	rebuilt := resultJSON(t, result)
	assert.Equal(t, true, rebuilt["rebuilt"])
	assert.Equal(t, float64(1), rebuilt["notes_indexed"])
	assert.Greater(t, server.service.IndexedChunks(), 0)

	result, err = server.handleGetStatus(ctx, callTool("get_status", map[string]interface{}{}))
	require.NoError(t, err)

	status := resultJSON(t, result)
	store := status["storage"].(map[string]interface{})
	assert.Equal(t, float64(1), store["total_entities"])
	assert.Equal(t, true, store["database_accessible"])
	index := status["index"].(map[string]interface{})
	assert.Greater(t, index["chunks"].(float64), float64(0))
}
