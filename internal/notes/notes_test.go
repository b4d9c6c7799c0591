package notes

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oneverse/internal/db"
	"oneverse/internal/kv"
	"oneverse/internal/models"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newKV(t *testing.T) *kv.Store {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return kv.New(conn, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// tick returns a clock that advances one minute per call
func tick() func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
}

func titles(notes []models.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Title
	}
	return out
}

func TestCreateRequiresTitle(t *testing.T) {
	s := NewStore(newKV(t), nil)

	_, ok := s.Create("  ", "body")
	assert.False(t, ok)

	n, ok := s.Create(" Groceries ", "")
	require.True(t, ok)
	assert.Equal(t, "Groceries", n.Title)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, 1, s.Len())
}

func TestSearchIsCaseInsensitiveAndNewestFirst(t *testing.T) {
	s := NewStore(newKV(t), nil, WithClock(tick()))
	s.Create("Shopping list", "eggs, MILK")
	s.Create("Standup", "talk about the release")
	s.Create("Milk prices", "compare stores")
	s.Create("Ideas", "nothing yet")

	assert.Equal(t, []string{"Milk prices", "Shopping list"}, titles(s.Search("milk")))
	assert.Equal(t, []string{"Milk prices", "Shopping list"}, titles(s.Search("MiLk")))
	assert.Equal(t, []string{"Standup"}, titles(s.Search("RELEASE")))
	assert.Empty(t, s.Search("absent"))
	assert.Equal(t, []string{"Ideas", "Milk prices", "Standup", "Shopping list"}, titles(s.Search("")))
}

func TestSearchSortsByCreatedAtNotInsertion(t *testing.T) {
	store := newKV(t)
	store.Write(kv.KeyNotes, []models.Note{
		{ID: "1", Title: "old", CreatedAt: base},
		{ID: "2", Title: "newest", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "3", Title: "middle", CreatedAt: base.Add(time.Hour)},
	})

	s := NewStore(store, nil)
	assert.Equal(t, []string{"newest", "middle", "old"}, titles(s.Search("")))
}

func TestUpdateKeepsCreatedAt(t *testing.T) {
	s := NewStore(newKV(t), nil, WithClock(tick()))
	n, _ := s.Create("Draft", "v1")

	assert.True(t, s.Update(models.Note{ID: n.ID, Title: "Final", Content: "v2", CreatedAt: base.Add(time.Hour * 99)}))
	got, ok := s.Get(n.ID)
	require.True(t, ok)
	assert.Equal(t, "Final", got.Title)
	assert.Equal(t, "v2", got.Content)
	assert.True(t, n.CreatedAt.Equal(got.CreatedAt))

	assert.False(t, s.Update(models.Note{ID: n.ID, Title: " "}))
	assert.False(t, s.Update(models.Note{ID: "missing", Title: "x"}))
}

func TestDeleteClearAndPersist(t *testing.T) {
	store := newKV(t)
	s := NewStore(store, nil, WithClock(tick()))
	a, _ := s.Create("a", "")
	b, _ := s.Create("b", "")

	assert.True(t, s.Delete(a.ID))
	assert.False(t, s.Delete(a.ID))

	reloaded := NewStore(store, nil)
	assert.Equal(t, []string{"b"}, titles(reloaded.Search("")))
	_, ok := reloaded.Get(b.ID)
	assert.True(t, ok)

	s.Clear()
	assert.Zero(t, NewStore(store, nil).Len())
}
