// Package planner keeps the flat task list shown by the Planner tool
package planner

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"oneverse/internal/kv"
	"oneverse/internal/models"
)

type Store struct {
	mu     sync.RWMutex
	kv     *kv.Store
	logger *slog.Logger
	newID  func() string
	tasks  []models.Task
}

func NewStore(store *kv.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:     store,
		logger: logger.With("component", "planner"),
		newID:  uuid.NewString,
		tasks:  kv.Read(store, kv.KeyTasks, []models.Task{}),
	}
}

// Add prepends a new open task. Blank text is rejected.
func (s *Store) Add(text string) (models.Task, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Task{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task := models.Task{ID: s.newID(), Text: text}
	s.tasks = append([]models.Task{task}, s.tasks...)
	s.persistLocked()
	return task, true
}

func (s *Store) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks[i].Completed = !s.tasks[i].Completed
			s.persistLocked()
			return true
		}
	}
	return false
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.tasks)
	s.tasks = removeWhere(s.tasks, func(t models.Task) bool { return t.ID == id })
	if len(s.tasks) == n {
		return false
	}
	s.persistLocked()
	return true
}

// ClearCompleted drops every finished task and returns how many went
func (s *Store) ClearCompleted() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.tasks)
	s.tasks = removeWhere(s.tasks, func(t models.Task) bool { return t.Completed })
	removed := n - len(s.tasks)
	if removed > 0 {
		s.persistLocked()
		s.logger.Info("cleared completed tasks", "count", removed)
	}
	return removed
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = []models.Task{}
	s.persistLocked()
}

func (s *Store) List() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Task(nil), s.tasks...)
}

func (s *Store) Stats() (completed, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tasks {
		if t.Completed {
			completed++
		}
	}
	return completed, len(s.tasks)
}

func (s *Store) persistLocked() {
	s.kv.Write(kv.KeyTasks, s.tasks)
}

func removeWhere(tasks []models.Task, drop func(models.Task) bool) []models.Task {
	out := tasks[:0:0]
	for _, t := range tasks {
		if !drop(t) {
			out = append(out, t)
		}
	}
	return out
}
