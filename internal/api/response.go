package api

import (
	"encoding/json"
	"net/http"

	"github.com/kuitang/notes-api/internal/errs"
	"github.com/kuitang/notes-api/internal/obs"
)

// DataResponse wraps a single successful payload.
type DataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ListResponse wraps the full note collection.
type ListResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
	Data    any  `json:"data"`
}

// MessageResponse carries a confirmation message.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps err through errs and writes the error envelope.
// Internal errors are logged with their cause; clients only see the generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	if code == errs.Internal {
		obs.From(r.Context()).Error("request_failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, errs.HTTPStatus(code), ErrorResponse{Success: false, Error: errs.MessageOf(err)})
}
