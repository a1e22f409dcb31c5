package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kuitang/notes-api/internal/errs"
	"github.com/kuitang/notes-api/internal/logutil"
	"github.com/kuitang/notes-api/internal/notes"
	"github.com/kuitang/notes-api/internal/obs"
	"github.com/kuitang/notes-api/internal/urlutil"
)

// maxBodyBytes caps request bodies for create and update.
const maxBodyBytes = 1 << 20

// maxLoggedErrorChars bounds decode errors in debug logs.
const maxLoggedErrorChars = 200

// Handler wraps the notes service and provides HTTP handlers
type Handler struct {
	notesService *notes.Service
}

// NewHandler creates a new API handler with the given notes service
func NewHandler(notesService *notes.Service) *Handler {
	return &Handler{notesService: notesService}
}

// RegisterRoutes registers the notes API and the JSON 404 fallback on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("GET /api/notes", h.ListNotes)
	mux.HandleFunc("POST /api/notes", h.CreateNote)
	mux.HandleFunc("GET /api/notes/{$}", h.ListNotes)
	mux.HandleFunc("POST /api/notes/{$}", h.CreateNote)
	mux.HandleFunc("GET /api/notes/{id}", h.GetNote)
	mux.HandleFunc("PUT /api/notes/{id}", h.UpdateNote)
	mux.HandleFunc("DELETE /api/notes/{id}", h.DeleteNote)
	mux.HandleFunc("GET /api/notes/{id}/html", h.RenderNote)

	// Catch-all: also wins over 405 for known paths with an unsupported method.
	mux.HandleFunc("/", h.RouteNotFound)
}

// Health handles GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.notesService.Health())
}

// ListNotes handles GET /api/notes - returns every note in insertion order
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	result := h.notesService.List()
	writeJSON(w, http.StatusOK, ListResponse{
		Success: true,
		Count:   result.Count,
		Data:    result.Items,
	})
}

// GetNote handles GET /api/notes/{id} - returns a single note by ID
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, err := parseNoteID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	note, err := h.notesService.Read(id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DataResponse{Success: true, Data: note})
}

// CreateNote handles POST /api/notes - creates a new note
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var params notes.CreateNoteParams
	if err := decodeBody(w, r, &params); err != nil {
		writeError(w, r, err)
		return
	}

	note, err := h.notesService.Create(params)
	if err != nil {
		writeError(w, r, err)
		return
	}

	obs.From(r.Context()).Debug("note_created", "note_id", note.ID)
	w.Header().Set("Location", urlutil.Absolute(r, fmt.Sprintf("/api/notes/%d", note.ID)))
	writeJSON(w, http.StatusCreated, DataResponse{Success: true, Data: note})
}

// UpdateNote handles PUT /api/notes/{id} - patches an existing note
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, err := parseNoteID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var params notes.UpdateNoteParams
	if err := decodeBody(w, r, &params); err != nil {
		writeError(w, r, err)
		return
	}

	note, err := h.notesService.Update(id, params)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DataResponse{Success: true, Data: note})
}

// DeleteNote handles DELETE /api/notes/{id} - deletes a note
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := parseNoteID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.notesService.Delete(id); err != nil {
		writeError(w, r, err)
		return
	}

	obs.From(r.Context()).Debug("note_deleted", "note_id", id)
	writeJSON(w, http.StatusOK, MessageResponse{
		Success: true,
		Message: fmt.Sprintf("Note with ID %d deleted successfully", id),
	})
}

// RenderNote handles GET /api/notes/{id}/html - returns content rendered as sanitized HTML
func (h *Handler) RenderNote(w http.ResponseWriter, r *http.Request) {
	id, err := parseNoteID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rendered, err := h.notesService.Render(id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DataResponse{Success: true, Data: rendered})
}

// RouteNotFound answers any unmatched method or path.
func (h *Handler) RouteNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, errs.Newf(errs.NotFound, "Route %s not found", r.URL.RequestURI()))
}

// parseNoteID reads the {id} path value leniently: surrounding spaces, an
// optional sign and the leading decimal digits count, anything after them
// is ignored, so "12abc" is note 12. A segment without leading digits can
// never match a note and is reported as "Note with ID NaN not found".
func parseNoteID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.PathValue("id"))

	end := 0
	if end < len(raw) && (raw[end] == '+' || raw[end] == '-') {
		end++
	}
	digitsFrom := end
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == digitsFrom {
		return 0, notes.NotFoundError("NaN")
	}

	id, err := strconv.ParseInt(raw[:end], 10, 64)
	if err != nil {
		return 0, notes.NotFoundError(raw[:end])
	}
	return id, nil
}

// decodeBody decodes a JSON object into dst. An empty body decodes as {}.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errs.Wrap(errs.InvalidArgument, "Request body too large", err)
		}
		return errs.Wrap(errs.InvalidArgument, "Invalid JSON body", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		obs.From(r.Context()).Debug("invalid_json_body",
			"path", r.URL.Path,
			"error", logutil.TruncateForLog(err.Error(), maxLoggedErrorChars),
			"body", logutil.FormatBodyForLog(r.Header.Get("Content-Type"), body, 512),
		)
		return errs.Wrap(errs.InvalidArgument, "Invalid JSON body", err)
	}
	return nil
}
