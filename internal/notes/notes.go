// Package notes keeps the flat note list shown by the Notes tool
package notes

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"oneverse/internal/kv"
	"oneverse/internal/models"
)

type Store struct {
	mu     sync.RWMutex
	kv     *kv.Store
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
	notes  []models.Note
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(store *kv.Store, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		kv:     store,
		logger: logger.With("component", "notes"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.notes = kv.Read(store, kv.KeyNotes, []models.Note{})
	return s
}

// Create prepends a note. The title is required; content may be empty.
func (s *Store) Create(title, content string) (models.Note, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Note{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	note := models.Note{
		ID:        s.newID(),
		Title:     title,
		Content:   content,
		CreatedAt: s.now(),
	}
	s.notes = append([]models.Note{note}, s.notes...)
	s.persistLocked()
	return note, true
}

// Update replaces the title and content of an existing note. CreatedAt is
// kept from the stored note.
func (s *Store) Update(note models.Note) bool {
	note.Title = strings.TrimSpace(note.Title)
	if note.Title == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(note.ID)
	if idx < 0 {
		return false
	}
	s.notes[idx].Title = note.Title
	s.notes[idx].Content = note.Content
	s.persistLocked()
	return true
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return false
	}
	s.notes = slices.Delete(s.notes, idx, idx+1)
	s.persistLocked()
	return true
}

func (s *Store) Get(id string) (models.Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return models.Note{}, false
	}
	return s.notes[idx], true
}

// Search returns notes whose title or content contains term, ignoring case,
// newest first. An empty term matches everything.
func (s *Store) Search(term string) []models.Note {
	term = strings.ToLower(strings.TrimSpace(term))

	s.mu.RLock()
	out := make([]models.Note, 0, len(s.notes))
	for _, n := range s.notes {
		if term == "" ||
			strings.Contains(strings.ToLower(n.Title), term) ||
			strings.Contains(strings.ToLower(n.Content), term) {
			out = append(out, n)
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b models.Note) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = []models.Note{}
	s.persistLocked()
	s.logger.Info("notes cleared")
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.notes, func(n models.Note) bool { return n.ID == id })
}

func (s *Store) persistLocked() {
	s.kv.Write(kv.KeyNotes, s.notes)
}
