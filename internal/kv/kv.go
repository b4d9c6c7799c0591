// Package kv is a flat, JSON-valued key-value store on top of the sqlite kv
// table. Reads fall back to a caller default and writes never fail loudly: the
// in-memory value held by the caller stays authoritative when persistence does
// not succeed.
package kv

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"oneverse/internal/db"
)

// Persisted keys
const (
	KeySessions   = "oneverse-sessions"
	KeyCredential = "oneverse-api-key"
	KeyTheme      = "oneverse-theme"
	KeySpeech     = "oneverse-tts-enabled"
	KeyTasks      = "oneverse-tasks"
	KeyNotes      = "oneverse-notes"
)

type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

func New(conn *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     conn,
		logger: logger.With("component", "kv"),
		now:    time.Now,
	}
}

// Read returns the value stored under key decoded as T. A missing key, a
// read failure or a value that does not decode yields def.
func Read[T any](s *Store, key string, def T) T {
	raw, ok, err := db.GetValue(s.db, key)
	if err != nil {
		s.logger.Warn("read failed, using default", "key", key, "error", err)
		return def
	}
	if !ok {
		return def
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		s.logger.Warn("stored value is not valid JSON, using default", "key", key, "error", err)
		return def
	}
	return v
}

// Write encodes value as JSON and persists it under key
func (s *Store) Write(key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("encode failed, value not persisted", "key", key, "error", err)
		return
	}
	if err := db.PutValue(s.db, key, string(data), s.now().Unix()); err != nil {
		s.logger.Error("write failed, value not persisted", "key", key, "error", err)
	}
}

func (s *Store) Delete(key string) {
	if err := db.DeleteValue(s.db, key); err != nil {
		s.logger.Error("delete failed", "key", key, "error", err)
	}
}
