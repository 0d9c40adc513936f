package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/memoriakit/memoria/internal/notes"
	"github.com/memoriakit/memoria/internal/repository"
	"github.com/memoriakit/memoria/internal/versions"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeNoteNotFound   = -32001 // No note with the given UUID
	ErrorCodeNoHistory      = -32002 // No version history for the given UUID
	ErrorCodeHistoryCorrupt = -32003 // Version chain cannot be replayed
	ErrorCodeEmptyQuery     = -32004 // Query parameter is empty
)

// handleSaveNote handles the save_note tool invocation
func (s *Server) handleSaveNote(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	title, ok := args["title"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "title parameter is required", map[string]interface{}{
			"param":  "title",
			"reason": "missing",
		})
	}
	content, ok := args["content"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "content parameter is required", map[string]interface{}{
			"param":  "content",
			"reason": "missing",
		})
	}
	tags := getStringSlice(args, "tags")

	uuid, _ := args["uuid"].(string)
	created := uuid == ""

	var note *notes.Note
	if created {
		note = notes.New(title, content, tags...)
	} else {
		existing, err := s.notes.FindByUUID(ctx, uuid)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newMCPError(ErrorCodeNoteNotFound, "note not found", map[string]interface{}{
				"uuid": uuid,
			})
		}
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to load note", map[string]interface{}{
				"error": err.Error(),
			})
		}
		existing.Title = title
		existing.Content = content
		if _, present := args["tags"]; present {
			existing.Tags = tags
		}
		existing.Touch()
		note = existing
	}

	note.SnapshotEvery = s.cfg.Versioning.SnapshotFrequency
	if err := s.notes.Save(ctx, note); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to save note", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// bound history growth; the retained range stays reconstructable
	if pruned, err := s.versionRepo.Prune(ctx, s.store, notes.EntityType, note.UUID, s.cfg.Versioning.PruneKeep); err != nil {
		s.logger.Warn("history prune failed", zap.String("uuid", note.UUID), zap.Error(err))
	} else if pruned > 0 {
		s.logger.Debug("pruned note history", zap.String("uuid", note.UUID), zap.Int("versions", pruned))
	}

	version, err := s.store.LatestVersionNumber(ctx, notes.EntityType, note.UUID)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read version", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"uuid":    note.UUID,
		"title":   note.Title,
		"created": created,
		"version": version,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetNote handles the get_note tool invocation
func (s *Server) handleGetNote(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uuid, errResult := requiredUUID(request)
	if errResult != nil {
		return nil, errResult
	}

	note, err := s.notes.FindByUUID(ctx, uuid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newMCPError(ErrorCodeNoteNotFound, "note not found", map[string]interface{}{
			"uuid": uuid,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load note", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(noteResponse(note))), nil
}

// handleDeleteNote handles the delete_note tool invocation
func (s *Server) handleDeleteNote(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uuid, errResult := requiredUUID(request)
	if errResult != nil {
		return nil, errResult
	}

	err := s.notes.DeleteByUUID(ctx, uuid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newMCPError(ErrorCodeNoteNotFound, "note not found", map[string]interface{}{
			"uuid": uuid,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to delete note", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"deleted": true,
		"uuid":    uuid,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchMemory handles the search_memory tool invocation
func (s *Server) handleSearchMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	results, err := s.notes.SemanticSearch(ctx, query, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	matches := make([]map[string]interface{}, 0, len(results))
	for _, result := range results {
		matches = append(matches, map[string]interface{}{
			"uuid":       result.Entity.UUID,
			"title":      result.Entity.Title,
			"tags":       result.Entity.Tags,
			"score":      result.Score,
			"chunk_text": result.ChunkText,
		})
	}

	response := map[string]interface{}{
		"query":   query,
		"count":   len(matches),
		"results": matches,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleNoteHistory handles the note_history tool invocation
func (s *Server) handleNoteHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uuid, errResult := requiredUUID(request)
	if errResult != nil {
		return nil, errResult
	}

	records, err := s.versionRepo.GetHistory(ctx, s.store, notes.EntityType, uuid)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to load history", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if len(records) == 0 {
		return nil, newMCPError(ErrorCodeNoHistory, "no history for note", map[string]interface{}{
			"uuid": uuid,
		})
	}

	history := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		entry := map[string]interface{}{
			"version":    record.Version,
			"kind":       record.Kind,
			"synced":     record.Synced,
			"created_at": record.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if len(record.ChangedFields) > 0 {
			entry["changed_fields"] = record.ChangedFields
		}
		if record.ChangeDescription != "" {
			entry["description"] = record.ChangeDescription
		}
		history = append(history, entry)
	}

	response := map[string]interface{}{
		"uuid":     uuid,
		"count":    len(history),
		"versions": history,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleReconstructNote handles the reconstruct_note tool invocation
func (s *Server) handleReconstructNote(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	uuid, ok := args["uuid"].(string)
	if !ok || uuid == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "uuid parameter is required", map[string]interface{}{
			"param":  "uuid",
			"reason": "missing or empty",
		})
	}

	version := int64(getIntDefault(args, "version", 0))
	if version <= 0 {
		latest, err := s.store.LatestVersionNumber(ctx, notes.EntityType, uuid)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to read version", map[string]interface{}{
				"error": err.Error(),
			})
		}
		if latest == 0 {
			return nil, newMCPError(ErrorCodeNoHistory, "no history for note", map[string]interface{}{
				"uuid": uuid,
			})
		}
		version = latest
	}

	state, err := s.versionRepo.Reconstruct(ctx, s.store, notes.EntityType, uuid, version)
	if errors.Is(err, versions.ErrVersionNotFound) {
		return nil, newMCPError(ErrorCodeNoHistory, "version not found", map[string]interface{}{
			"uuid":    uuid,
			"version": version,
		})
	}
	if errors.Is(err, versions.ErrHistoryCorrupt) {
		return nil, newMCPError(ErrorCodeHistoryCorrupt, "history cannot be replayed", map[string]interface{}{
			"uuid":    uuid,
			"version": version,
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "reconstruction failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	var note map[string]interface{}
	if err := json.Unmarshal(state, &note); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to decode state", map[string]interface{}{
			"error": err.Error(),
		})
	}
	delete(note, "vector")

	response := map[string]interface{}{
		"uuid":    uuid,
		"version": version,
		"note":    note,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRebuildIndex handles the rebuild_index tool invocation
func (s *Server) handleRebuildIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	count, err := s.notes.Count(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to count notes", map[string]interface{}{
			"error": err.Error(),
		})
	}

	chunks, err := s.notes.RebuildIndex(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "rebuild failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"rebuilt":        true,
		"notes_indexed":  count,
		"chunks_indexed": chunks,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.store.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"storage": map[string]interface{}{
			"entity_counts":       status.EntityCounts,
			"total_entities":      status.TotalEntities,
			"total_versions":      status.TotalVersions,
			"unsynced_versions":   status.UnsyncedVersions,
			"database_size_mb":    fmt.Sprintf("%.2f", status.DatabaseSizeMB),
			"database_accessible": status.DatabaseAccessible,
		},
		"index": map[string]interface{}{
			"chunks": s.service.IndexedChunks(),
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// requiredUUID extracts the uuid parameter common to the single-note tools
func requiredUUID(request mcp.CallToolRequest) (string, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	uuid, ok := args["uuid"].(string)
	if !ok || uuid == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "uuid parameter is required", map[string]interface{}{
			"param":  "uuid",
			"reason": "missing or empty",
		})
	}
	return uuid, nil
}

// noteResponse formats a note for tool output
func noteResponse(note *notes.Note) map[string]interface{} {
	return map[string]interface{}{
		"uuid":       note.UUID,
		"title":      note.Title,
		"content":    note.Content,
		"tags":       note.Tags,
		"created_at": note.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		"updated_at": note.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter
func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
