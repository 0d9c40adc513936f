// Package mcp implements the Model Context Protocol (MCP) server for Memoria.
//
// The MCP server exposes the persistence engine to AI assistants as eight
// tools:
//   - save_note: Create or update a note
//   - get_note: Fetch a note by UUID
//   - delete_note: Delete a note (its version history is kept)
//   - search_memory: Semantic search over stored notes
//   - note_history: List a note's version log
//   - reconstruct_note: Replay history to a given version
//   - rebuild_index: Re-chunk and re-embed everything
//   - get_status: Storage and index statistics
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server reads protocol frames from stdin and writes responses to
// stdout; all logging goes to stderr.
//
// # Tool: save_note
//
//	Request:
//	{
//	  "name": "save_note",
//	  "arguments": {
//	    "title": "Trip notes",
//	    "content": "Visited the coast. The weather held up.",
//	    "tags": ["travel"]
//	  }
//	}
//
//	Response:
//	{
//	  "uuid": "7f8c...",
//	  "title": "Trip notes",
//	  "created": true,
//	  "version": 1
//	}
//
// Passing an existing uuid updates that note instead; each save appends a
// version (a merge-patch delta, periodically with a full snapshot) to the
// note's history.
//
// # Tool: search_memory
//
//	Request:
//	{
//	  "name": "search_memory",
//	  "arguments": {
//	    "query": "what was the weather like on the coast trip",
//	    "limit": 5
//	  }
//	}
//
//	Response:
//	{
//	  "query": "...",
//	  "count": 1,
//	  "results": [
//	    {
//	      "uuid": "7f8c...",
//	      "title": "Trip notes",
//	      "score": 0.87,
//	      "chunk_text": "Visited the coast. The weather held up."
//	    }
//	  ]
//	}
//
// Each note appears at most once, ranked by its best-matching chunk.
//
// # Tool: reconstruct_note
//
//	Request:
//	{
//	  "name": "reconstruct_note",
//	  "arguments": {"uuid": "7f8c...", "version": 3}
//	}
//
// The response carries the note's state at that version, rebuilt from the
// nearest snapshot at or below it plus the deltas in between. Omitting the
// version (or passing 0) reconstructs the latest one. Reconstruction works
// for deleted notes too, as long as their history has not been pruned.
//
// # Error Handling
//
// Tool failures are returned as MCP protocol errors with structured data:
//
//	{
//	  "code": -32001,
//	  "message": "note not found",
//	  "data": {"uuid": "7f8c..."}
//	}
//
// Codes -32602 and -32603 are the JSON-RPC standard invalid-params and
// internal errors; -32001 through -32004 are Memoria-specific.
package mcp
