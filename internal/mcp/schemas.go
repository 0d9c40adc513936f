package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// saveNoteTool returns the tool definition for save_note
func saveNoteTool() mcp.Tool {
	return mcp.Tool{
		Name:        "save_note",
		Description: "Create a note or update an existing one. Saving embeds the note, records a version, and refreshes the semantic index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"uuid": map[string]interface{}{
					"type":        "string",
					"description": "UUID of an existing note to update; omit to create a new note",
				},
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Note title",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Note body text",
				},
				"tags": map[string]interface{}{
					"type":        "array",
					"description": "Free-form tags",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
			Required: []string{"title", "content"},
		},
	}
}

// getNoteTool returns the tool definition for get_note
func getNoteTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_note",
		Description: "Fetch a note by UUID",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"uuid": map[string]interface{}{
					"type":        "string",
					"description": "UUID of the note",
				},
			},
			Required: []string{"uuid"},
		},
	}
}

// deleteNoteTool returns the tool definition for delete_note
func deleteNoteTool() mcp.Tool {
	return mcp.Tool{
		Name:        "delete_note",
		Description: "Delete a note by UUID. Its version history is kept and can still be reconstructed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"uuid": map[string]interface{}{
					"type":        "string",
					"description": "UUID of the note",
				},
			},
			Required: []string{"uuid"},
		},
	}
}

// searchMemoryTool returns the tool definition for search_memory
func searchMemoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_memory",
		Description: "Semantic search over stored notes. Returns the best-matching notes with the chunk that matched",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language query",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of notes to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// noteHistoryTool returns the tool definition for note_history
func noteHistoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "note_history",
		Description: "List the version history of a note: version numbers, snapshot/delta kind, sync state, and timestamps",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"uuid": map[string]interface{}{
					"type":        "string",
					"description": "UUID of the note",
				},
			},
			Required: []string{"uuid"},
		},
	}
}

// reconstructNoteTool returns the tool definition for reconstruct_note
func reconstructNoteTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reconstruct_note",
		Description: "Reconstruct a note's state at a given version by replaying its history",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"uuid": map[string]interface{}{
					"type":        "string",
					"description": "UUID of the note",
				},
				"version": map[string]interface{}{
					"type":        "integer",
					"description": "Version to reconstruct; omit or 0 for the latest version",
					"minimum":     0,
				},
			},
			Required: []string{"uuid"},
		},
	}
}

// rebuildIndexTool returns the tool definition for rebuild_index
func rebuildIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "rebuild_index",
		Description: "Re-chunk and re-embed every stored note, replacing the semantic index",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Query storage statistics: entity counts, version counts, unsynced versions, database size, and index size",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
