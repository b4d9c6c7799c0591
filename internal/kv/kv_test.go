package kv

import (
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oneverse/internal/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type item struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestReadMissingKeyReturnsDefault(t *testing.T) {
	s := New(openTestDB(t), discardLogger())

	got := Read(s, "missing", []item{{Name: "default"}})
	assert.Equal(t, []item{{Name: "default"}}, got)
}

func TestWriteThenRead(t *testing.T) {
	s := New(openTestDB(t), discardLogger())

	s.Write("items", []item{{Name: "a", Count: 1}, {Name: "b", Count: 2}})
	got := Read(s, "items", []item(nil))
	assert.Equal(t, []item{{Name: "a", Count: 1}, {Name: "b", Count: 2}}, got)

	s.Write("items", []item{{Name: "c"}})
	got = Read(s, "items", []item(nil))
	assert.Equal(t, []item{{Name: "c"}}, got)
}

func TestReadCorruptValueReturnsDefault(t *testing.T) {
	conn := openTestDB(t)
	s := New(conn, discardLogger())

	require.NoError(t, db.PutValue(conn, "theme", "{not json", 0))
	assert.Equal(t, "dark", Read(s, "theme", "dark"))
}

func TestReadWrongShapeReturnsDefault(t *testing.T) {
	s := New(openTestDB(t), discardLogger())

	s.Write("flag", "yes")
	assert.False(t, Read(s, "flag", false))
}

func TestWriteFailureIsSwallowed(t *testing.T) {
	conn := openTestDB(t)
	s := New(conn, discardLogger())
	require.NoError(t, conn.Close())

	assert.NotPanics(t, func() { s.Write("k", 1) })
	assert.Equal(t, 7, Read(s, "k", 7))
}

func TestWriteUnencodableValueIsSwallowed(t *testing.T) {
	s := New(openTestDB(t), discardLogger())

	s.Write("fn", func() {})
	assert.Equal(t, "fallback", Read(s, "fn", "fallback"))
}

func TestDelete(t *testing.T) {
	conn := openTestDB(t)
	s := New(conn, discardLogger())

	s.Write(KeyCredential, "secret")
	s.Delete(KeyCredential)

	assert.Equal(t, "", Read(s, KeyCredential, ""))
	_, ok, err := db.GetValue(conn, KeyCredential)
	require.NoError(t, err)
	assert.False(t, ok)
}
