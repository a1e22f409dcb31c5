package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kuitang/notes-api/internal/errs"
	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/obs"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// listPreviewLines is how many content lines note_list shows per note.
const listPreviewLines = 2

// Handler implements MCP tool call handling.
type Handler struct {
	notesSvc *notes.Service
}

// NewHandler creates a new MCP handler backed by the notes service.
func NewHandler(notesSvc *notes.Service) *Handler {
	return &Handler{notesSvc: notesSvc}
}

// toolErrorPayload is the JSON body of every IsError tool result.
type toolErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type noteIDArgs struct {
	ID *int64 `json:"id"`
}

type noteCreateArgs struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type noteUpdateArgs struct {
	ID      *int64  `json:"id"`
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type noteDeleteResult struct {
	ID      int64  `json:"id"`
	Deleted bool   `json:"deleted"`
	Message string `json:"message"`
}

type noteListResult struct {
	Count int                  `json:"count"`
	Items []notes.NoteListItem `json:"items"`
}

// createToolHandler returns a tool handler function for the given tool name.
func (h *Handler) createToolHandler(name string) func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, args map[string]any) (*mcp.CallToolResult, any, error) {
		result, err := h.HandleToolCall(ctx, name, args)
		return result, nil, err
	}
}

// HandleToolCall routes tool calls to appropriate handlers. Tool failures are
// reported as IsError results; the returned error is reserved for transport faults.
func (h *Handler) HandleToolCall(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	logger := obs.From(ctx)
	if h.notesSvc == nil {
		return toolErrorResult(errs.New(errs.Internal, "notes tools are unavailable")), nil
	}

	var (
		value any
		err   error
	)
	switch name {
	case ToolNoteList:
		value, err = h.handleNoteList(arguments)
	case ToolNoteView:
		value, err = h.handleNoteView(arguments)
	case ToolNoteCreate:
		value, err = h.handleNoteCreate(arguments)
	case ToolNoteUpdate:
		value, err = h.handleNoteUpdate(arguments)
	case ToolNoteDelete:
		value, err = h.handleNoteDelete(arguments)
	default:
		err = errs.Newf(errs.NotFound, "unknown tool: %s", name)
	}

	if err != nil {
		if errs.Is(err, errs.Internal) {
			logger.Error("mcp_tool_failed", "tool", name, "error", err)
		} else {
			logger.Debug("mcp_tool_rejected", "tool", name, "code", string(errs.CodeOf(err)), "error", err)
		}
		return toolErrorResult(err), nil
	}

	logger.Debug("mcp_tool_ok", "tool", name)
	return newToolResultText(marshalToolJSON(value)), nil
}

// newToolResultText creates a successful tool result with text content.
func newToolResultText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// toolErrorResult shapes err as a {code, message} IsError result.
func toolErrorResult(err error) *mcp.CallToolResult {
	payload := toolErrorPayload{
		Code:    string(errs.CodeOf(err)),
		Message: errs.MessageOf(err),
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: marshalToolJSON(payload)},
		},
		IsError: true,
	}
}

func marshalToolJSON(value any) string {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response","detail":%q}`, err.Error())
	}
	return string(data)
}

// decodeToolArgs decodes tool arguments into dst, rejecting unknown fields.
// A nil map decodes as an empty object.
func decodeToolArgs(args map[string]any, dst any) error {
	if args == nil {
		args = map[string]any{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "invalid tool arguments", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.Wrap(errs.InvalidArgument, fmt.Sprintf("invalid tool arguments: %v", err), err)
	}
	return nil
}

// classifyNotesError keeps coded errors as they are and maps known notes
// sentinels that reach here uncoded. Anything else is internal.
func classifyNotesError(err error, op string) error {
	if err == nil {
		return nil
	}
	var coded *errs.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, notes.ErrNoteNotFound):
		return errs.Wrap(errs.NotFound, err.Error(), err)
	case errors.Is(err, notes.ErrTitleContentRequired), errors.Is(err, notes.ErrNoUpdateFields):
		return errs.Wrap(errs.InvalidArgument, err.Error(), err)
	default:
		return errs.Wrap(errs.Internal, "", fmt.Errorf("%s: %w", op, err))
	}
}

func requireID(id *int64) (int64, error) {
	if id == nil {
		return 0, errs.New(errs.InvalidArgument, "id is required")
	}
	return *id, nil
}

func (h *Handler) handleNoteList(args map[string]any) (any, error) {
	var decoded struct{}
	if err := decodeToolArgs(args, &decoded); err != nil {
		return nil, err
	}
	items := h.notesSvc.ListItems(listPreviewLines)
	return noteListResult{Count: len(items), Items: items}, nil
}

func (h *Handler) handleNoteView(args map[string]any) (any, error) {
	var decoded noteIDArgs
	if err := decodeToolArgs(args, &decoded); err != nil {
		return nil, err
	}
	id, err := requireID(decoded.ID)
	if err != nil {
		return nil, err
	}
	note, err := h.notesSvc.Read(id)
	if err != nil {
		return nil, classifyNotesError(err, "read note")
	}
	return note, nil
}

func (h *Handler) handleNoteCreate(args map[string]any) (any, error) {
	var decoded noteCreateArgs
	if err := decodeToolArgs(args, &decoded); err != nil {
		return nil, err
	}
	note, err := h.notesSvc.Create(notes.CreateNoteParams{
		Title:   decoded.Title,
		Content: decoded.Content,
	})
	if err != nil {
		return nil, classifyNotesError(err, "create note")
	}
	return note, nil
}

func (h *Handler) handleNoteUpdate(args map[string]any) (any, error) {
	var decoded noteUpdateArgs
	if err := decodeToolArgs(args, &decoded); err != nil {
		return nil, err
	}
	id, err := requireID(decoded.ID)
	if err != nil {
		return nil, err
	}
	note, err := h.notesSvc.Update(id, notes.UpdateNoteParams{
		Title:   decoded.Title,
		Content: decoded.Content,
	})
	if err != nil {
		return nil, classifyNotesError(err, "update note")
	}
	return note, nil
}

func (h *Handler) handleNoteDelete(args map[string]any) (any, error) {
	var decoded noteIDArgs
	if err := decodeToolArgs(args, &decoded); err != nil {
		return nil, err
	}
	id, err := requireID(decoded.ID)
	if err != nil {
		return nil, err
	}
	if err := h.notesSvc.Delete(id); err != nil {
		return nil, classifyNotesError(err, "delete note")
	}
	return noteDeleteResult{
		ID:      id,
		Deleted: true,
		Message: fmt.Sprintf("Note with ID %d deleted successfully", id),
	}, nil
}
