package notes

import (
	"errors"
	"time"
)

// Error sentinels wrapped by the coded errors the Service returns.
var (
	// ErrNoteNotFound is returned when no note has the requested ID.
	ErrNoteNotFound = errors.New("note not found")

	// ErrTitleContentRequired is returned when a create is missing title or content.
	ErrTitleContentRequired = errors.New("title and content are required")

	// ErrNoUpdateFields is returned when an update carries neither title nor content.
	ErrNoUpdateFields = errors.New("no fields to update")
)

// Note is a single note record.
// UpdatedAt stays nil until the note is updated for the first time.
type Note struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// NoteListResult is the full collection in insertion order.
type NoteListResult struct {
	Count int    `json:"count"`
	Items []Note `json:"items"`
}

// CreateNoteParams contains parameters for creating a note
type CreateNoteParams struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// UpdateNoteParams contains parameters for updating a note.
// Both fields are optional; nil and "" are both treated as "keep the current value".
type UpdateNoteParams struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
}

// HealthStatus describes service liveness.
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
}

// RenderedNote is a note's content rendered to sanitized HTML.
type RenderedNote struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// NoteListItem represents a note in a list with preview instead of full content
type NoteListItem struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Preview    string    `json:"preview"`
	TotalLines int       `json:"totalLines"`
	CreatedAt  time.Time `json:"createdAt"`
}
