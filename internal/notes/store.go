package notes

import (
	"sync"
	"time"
)

// Store is the in-memory note table.
// Every method holds the lock for the full operation, so ID assignment and
// the mutation it belongs to are never interleaved with another request.
type Store struct {
	mu     sync.RWMutex
	notes  map[int64]*Note
	order  []int64
	nextID int64
	now    func() time.Time
}

// NewStore creates an empty store. IDs start at 1.
func NewStore() *Store {
	return newStore(systemClock)
}

// NewSeededStore creates a store holding the two startup notes.
func NewSeededStore() *Store {
	s := NewStore()
	s.seed(DefaultSeed())
	return s
}

func newStore(now func() time.Time) *Store {
	return &Store{
		notes:  make(map[int64]*Note),
		nextID: 1,
		now:    now,
	}
}

// DefaultSeed returns the records the service starts with.
func DefaultSeed() []CreateNoteParams {
	return []CreateNoteParams{
		{Title: "Первая заметка", Content: "Содержание первой заметки"},
		{Title: "Вторая заметка", Content: "Содержание второй заметки"},
	}
}

func (s *Store) seed(records []CreateNoteParams) {
	for _, rec := range records {
		s.Insert(rec.Title, rec.Content)
	}
}

func systemClock() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Insert appends a new note and returns a copy of it.
func (s *Store) Insert(title, content string) Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	note := &Note{
		ID:        s.nextID,
		Title:     title,
		Content:   content,
		CreatedAt: s.now(),
	}
	s.nextID++
	s.notes[note.ID] = note
	s.order = append(s.order, note.ID)
	return cloneNote(note)
}

// Get returns a copy of the note with the given ID.
func (s *Store) Get(id int64) (Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	note, ok := s.notes[id]
	if !ok {
		return Note{}, false
	}
	return cloneNote(note), true
}

// List returns copies of all notes in insertion order. The result is never nil.
func (s *Store) List() []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Note, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneNote(s.notes[id]))
	}
	return out
}

// Patch replaces title and/or content of an existing note and stamps UpdatedAt.
// Empty values leave the stored field untouched. Existence and the empty
// patch are checked under the same write lock as the mutation, in that
// order: ErrNoteNotFound wins over ErrNoUpdateFields.
func (s *Store) Patch(id int64, title, content string) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note, ok := s.notes[id]
	if !ok {
		return Note{}, ErrNoteNotFound
	}
	if title == "" && content == "" {
		return Note{}, ErrNoUpdateFields
	}
	if title != "" {
		note.Title = title
	}
	if content != "" {
		note.Content = content
	}
	updated := s.now()
	note.UpdatedAt = &updated
	return cloneNote(note), nil
}

// Remove deletes the note with the given ID. It reports whether a note was removed.
func (s *Store) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[id]; !ok {
		return false
	}
	delete(s.notes, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of stored notes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func cloneNote(n *Note) Note {
	out := *n
	if n.UpdatedAt != nil {
		t := *n.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}
