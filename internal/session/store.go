// Package session owns the ordered list of chat sessions and the ephemeral
// active selection. Every mutation persists the whole list through the kv
// store before returning.
package session

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"oneverse/internal/kv"
	"oneverse/internal/models"
)

type Store struct {
	mu       sync.RWMutex
	kv       *kv.Store
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
	sessions []models.Session
	activeID string
}

type Option func(*Store)

// WithClock overrides the creation timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs overrides session id generation
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// NewStore loads the persisted sessions and applies the selection policy, so
// a store always has an active session once constructed.
func NewStore(store *kv.Store, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		kv:     store,
		logger: logger.With("component", "session"),
		now:    time.Now,
		newID:  func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(s)
	}

	s.sessions = kv.Read(store, kv.KeySessions, []models.Session{})
	s.logger.Info("sessions loaded", "count", len(s.sessions))

	s.mu.Lock()
	s.ensureActiveLocked()
	s.mu.Unlock()
	return s
}

// Create prepends a fresh empty session and makes it active
func (s *Store) Create() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked().Clone()
}

func (s *Store) createLocked() models.Session {
	sess := models.Session{
		ID:        s.newID(),
		Title:     models.DefaultSessionTitle,
		Messages:  []models.Message{},
		CreatedAt: s.now(),
	}
	s.sessions = append([]models.Session{sess}, s.sessions...)
	s.activeID = sess.ID
	s.persistLocked()
	s.logger.Info("session created", "session_id", sess.ID)
	return sess
}

// Delete removes the session. Deleting the active session moves the
// selection to the first remaining session, creating one if none remain.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	s.sessions = append(s.sessions[:idx:idx], s.sessions[idx+1:]...)
	s.persistLocked()
	s.logger.Info("session deleted", "session_id", id)

	if s.activeID == id {
		s.activeID = ""
		if len(s.sessions) > 0 {
			s.activeID = s.sessions[0].ID
		}
	}
	s.ensureActiveLocked()
}

// Rename replaces the title of the matching session. Unknown ids and blank
// titles are ignored.
func (s *Store) Rename(id, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return
	}
	s.sessions[idx].Title = title
	s.persistLocked()
}

// ReplaceMessages swaps the whole message log of one session. It does
// nothing while no session is selected.
func (s *Store) ReplaceMessages(sessionID string, messages []models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID == "" {
		return
	}
	idx := s.indexLocked(sessionID)
	if idx < 0 {
		return
	}
	s.sessions[idx].Messages = models.CloneMessages(messages)
	s.persistLocked()
}

// Select makes id the active session
func (s *Store) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(id) < 0 {
		return false
	}
	s.activeID = id
	return true
}

// Deselect clears the active selection without touching stored sessions.
// It leaves the store in the no-selection state that the controller rejects
// with ErrNoActiveSession until EnsureActive or Select runs.
func (s *Store) Deselect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = ""
}

// EnsureActive applies the selection policy: create a session when there is
// none, select the first one when nothing is selected. The UI calls it before
// each submit so a send never lands without a session.
func (s *Store) EnsureActive() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureActiveLocked()
	return s.sessions[s.indexLocked(s.activeID)].Clone()
}

func (s *Store) ensureActiveLocked() {
	if len(s.sessions) == 0 {
		s.createLocked()
		return
	}
	if s.activeID == "" || s.indexLocked(s.activeID) < 0 {
		s.activeID = s.sessions[0].ID
	}
}

func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

func (s *Store) Active() (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(s.activeID)
	if idx < 0 {
		return models.Session{}, false
	}
	return s.sessions[idx].Clone(), true
}

func (s *Store) Get(id string) (models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return models.Session{}, false
	}
	return s.sessions[idx].Clone(), true
}

// List returns every session, most recently created first
func (s *Store) List() []models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Session, len(s.sessions))
	for i, sess := range s.sessions {
		out[i] = sess.Clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) indexLocked(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) persistLocked() {
	s.kv.Write(kv.KeySessions, s.sessions)
}
