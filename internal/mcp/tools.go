package mcp

import "github.com/modelcontextprotocol/go-sdk/mcp"

// Tool names exposed on /mcp.
const (
	ToolNoteList   = "note_list"
	ToolNoteView   = "note_view"
	ToolNoteCreate = "note_create"
	ToolNoteUpdate = "note_update"
	ToolNoteDelete = "note_delete"
)

func idProperty(description string) map[string]any {
	return map[string]any{
		"type":        "integer",
		"minimum":     1,
		"description": description,
	}
}

// ToolDefinitions returns the notes MCP tool definitions.
func ToolDefinitions() []*mcp.Tool {
	return []*mcp.Tool{
		{
			Name:        ToolNoteList,
			Description: "List every note in creation order. Each item carries the ID, title, a short preview of the first lines, totalLines and the creation timestamp. Use note_view to read the full content.",
			InputSchema: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{},
				"additionalProperties": false,
			},
		},
		{
			Name:        ToolNoteView,
			Description: "Read one note by its numeric ID. Returns id, title, content, createdAt and, once the note has been edited, updatedAt.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": idProperty("The ID of the note to read"),
				},
				"required":             []string{"id"},
				"additionalProperties": false,
			},
		},
		{
			Name:        ToolNoteCreate,
			Description: "Create a note. Both title and content are required and must be non-empty. Returns the stored note with its assigned ID. IDs are never reused.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "The title of the note",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "The body of the note",
					},
				},
				"required":             []string{"title", "content"},
				"additionalProperties": false,
			},
		},
		{
			Name:        ToolNoteUpdate,
			Description: "Update a note's title, content, or both. Omitted or empty fields are left unchanged, and at least one non-empty field is required. Returns the updated note.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": idProperty("The ID of the note to update"),
					"title": map[string]any{
						"type":        "string",
						"description": "New title (optional)",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "New content (optional)",
					},
				},
				"required":             []string{"id"},
				"additionalProperties": false,
			},
		},
		{
			Name:        ToolNoteDelete,
			Description: "Permanently delete a note by its ID. Returns a confirmation message, or a not_found error if the note does not exist.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": idProperty("The ID of the note to delete"),
				},
				"required":             []string{"id"},
				"additionalProperties": false,
			},
		},
	}
}
