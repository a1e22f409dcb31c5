package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const notesWorkflowPromptName = "notes_workflow"

const notesWorkflowText = `You can manage a shared in-memory list of notes.

- Call note_list to see what exists. Items show a short preview only.
- Call note_view with an id before quoting or editing a note.
- note_create needs both a non-empty title and non-empty content.
- note_update changes only the fields you pass; empty strings are ignored.
- note_delete is permanent, and deleted ids are never reused.

Notes are lost when the server restarts.`

func registerPrompts(mcpServer *mcp.Server) {
	for _, prompt := range PromptDefinitions() {
		mcpServer.AddPrompt(prompt, promptHandler)
	}
}

// PromptDefinitions returns the MCP prompt definitions.
func PromptDefinitions() []*mcp.Prompt {
	return []*mcp.Prompt{
		{
			Name:        notesWorkflowPromptName,
			Title:       "Notes workflow",
			Description: "How to list, read, create, update and delete notes with the note_* tools.",
		},
	}
}

func promptHandler(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Notes workflow",
		Messages: []*mcp.PromptMessage{
			{
				Role:    mcp.Role("user"),
				Content: &mcp.TextContent{Text: notesWorkflowText},
			},
		},
	}, nil
}
