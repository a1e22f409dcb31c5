package notes

import (
	"errors"
	"fmt"
	"time"

	"github.com/kuitang/notes-api/internal/errs"
)

const (
	// ServiceName is reported by the health check.
	ServiceName = "Notes API"

	// StatusOK is the health status of a ready service.
	StatusOK = "OK"

	msgTitleContentRequired = "Title and content are required"
	msgNoUpdateFields       = "At least one field (title or content) must be provided"
)

// Service handles note CRUD operations on top of a Store
type Service struct {
	store *Store
	now   func() time.Time
}

// NewService creates a new notes service backed by store.
func NewService(store *Store) *Service {
	return &Service{store: store, now: systemClock}
}

// NotFoundError returns the coded error for a missing note. label is the ID
// as the caller supplied it, so non-numeric input is echoed back verbatim.
func NotFoundError(label string) error {
	return errs.Wrap(errs.NotFound, fmt.Sprintf("Note with ID %s not found", label), ErrNoteNotFound)
}

func notFound(id int64) error {
	return NotFoundError(fmt.Sprintf("%d", id))
}

// Health reports that the service is ready.
func (s *Service) Health() HealthStatus {
	return HealthStatus{
		Status:    StatusOK,
		Timestamp: s.now(),
		Service:   ServiceName,
	}
}

// List returns every note in insertion order.
func (s *Service) List() NoteListResult {
	items := s.store.List()
	return NoteListResult{Count: len(items), Items: items}
}

// Read retrieves a note by ID
func (s *Service) Read(id int64) (*Note, error) {
	note, ok := s.store.Get(id)
	if !ok {
		return nil, notFound(id)
	}
	return &note, nil
}

// Create validates params and stores a new note.
func (s *Service) Create(params CreateNoteParams) (*Note, error) {
	if params.Title == "" || params.Content == "" {
		return nil, errs.Wrap(errs.InvalidArgument, msgTitleContentRequired, ErrTitleContentRequired)
	}
	note := s.store.Insert(params.Title, params.Content)
	return &note, nil
}

// Update patches the title and/or content of an existing note.
// A missing note is reported before an empty patch.
func (s *Service) Update(id int64, params UpdateNoteParams) (*Note, error) {
	note, err := s.store.Patch(id, deref(params.Title), deref(params.Content))
	switch {
	case errors.Is(err, ErrNoteNotFound):
		return nil, notFound(id)
	case err != nil:
		return nil, errs.Wrap(errs.InvalidArgument, msgNoUpdateFields, err)
	}
	return &note, nil
}

// Delete removes a note by ID.
func (s *Service) Delete(id int64) error {
	if !s.store.Remove(id) {
		return notFound(id)
	}
	return nil
}

// Render returns the note's content as sanitized HTML.
func (s *Service) Render(id int64) (*RenderedNote, error) {
	note, err := s.Read(id)
	if err != nil {
		return nil, err
	}
	return &RenderedNote{
		ID:    note.ID,
		Title: note.Title,
		HTML:  RenderMarkdown(note.Content),
	}, nil
}

// ListItems returns list entries with a short preview instead of full content.
func (s *Service) ListItems(previewLines int) []NoteListItem {
	all := s.store.List()
	items := make([]NoteListItem, 0, len(all))
	for _, n := range all {
		items = append(items, NoteListItem{
			ID:         n.ID,
			Title:      n.Title,
			Preview:    ContentPreview(n.Content, previewLines),
			TotalLines: CountLines(n.Content),
			CreatedAt:  n.CreatedAt,
		})
	}
	return items
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
