package app

import (
	"context"
	"database/sql"
	"io"
	"iter"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oneverse/internal/config"
	"oneverse/internal/db"
	"oneverse/internal/gateway"
	"oneverse/internal/lifecycle"
	"oneverse/internal/models"
)

type echoBackend struct{}

func (echoBackend) StreamChat(_ context.Context, _ string, _ []gateway.Turn, text string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("echo: "+text, nil)
	}
}

func (echoBackend) GenerateText(_ context.Context, _ string, prompt string) (string, error) {
	return prompt, nil
}

func (echoBackend) GenerateImage(context.Context, string, string, models.AspectRatio) (gateway.Image, error) {
	return gateway.Image{Bytes: []byte{1}}, nil
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		DBPath:         filepath.Join(dir, "oneverse.db"),
		ExportDir:      filepath.Join(dir, "exports"),
		Backend:        config.BackendGemini,
		RequestTimeout: time.Second,
		ChatModel:      "chat",
		WriterModel:    "writer",
		CodeModel:      "code",
		ImageModel:     "image",
	}
}

func openDB(t *testing.T, cfg *config.Config) *sql.DB {
	conn, err := db.Open(cfg.DBPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echoFactory(calls *int) gateway.BackendFactory {
	return func(context.Context, string) (gateway.Backend, error) {
		*calls++
		return echoBackend{}, nil
	}
}

func TestNewStartsWithActiveSession(t *testing.T) {
	cfg := testConfig(t)
	var calls int
	a := New(cfg, openDB(t, cfg), quiet(), echoFactory(&calls))

	sess, ok := a.Sessions.Active()
	require.True(t, ok)
	assert.Equal(t, models.DefaultSessionTitle, sess.Title)
	assert.True(t, a.NeedsCredential())
	assert.Equal(t, models.ToolChat, a.ActiveTool())
	assert.Equal(t, "AI Chat", a.HeaderTitle())
	assert.Zero(t, calls)
}

func TestCredentialFlow(t *testing.T) {
	cfg := testConfig(t)
	conn := openDB(t, cfg)
	var calls int
	a := New(cfg, conn, quiet(), echoFactory(&calls))

	assert.False(t, a.SubmitCredential("  "))
	assert.True(t, a.NeedsCredential())

	require.True(t, a.SubmitCredential("sk-1"))
	assert.False(t, a.NeedsCredential())

	// stored credential is picked up on the next start
	b := New(cfg, conn, quiet(), echoFactory(&calls))
	assert.False(t, b.NeedsCredential())

	b.Logout()
	assert.True(t, b.NeedsCredential())
	assert.True(t, New(cfg, conn, quiet(), echoFactory(&calls)).NeedsCredential())
}

func TestEnvironmentCredentialFallback(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIKey = "env-key"
	var calls int
	a := New(cfg, openDB(t, cfg), quiet(), echoFactory(&calls))
	assert.False(t, a.NeedsCredential())
}

func TestOfflineSubmitNeverBuildsBackend(t *testing.T) {
	cfg := testConfig(t)
	a := New(cfg, openDB(t, cfg), quiet(), func(context.Context, string) (gateway.Backend, error) {
		t.Fatal("backend built without a credential")
		return nil, nil
	})

	_, err := a.Controller.Submit(context.Background(), lifecycle.Request{Text: "hi"})
	require.NoError(t, err)

	sess, _ := a.Sessions.Active()
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, gateway.MsgNoCredential, sess.Messages[1].Text)
}

func TestHeaderTitleAndActiveToolFollowMessages(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIKey = "k"
	var calls int
	var updates int
	a := New(cfg, openDB(t, cfg), quiet(), echoFactory(&calls), lifecycle.OnUpdate(func(lifecycle.Update) {
		updates++
	}))
	ctx := context.Background()

	_, err := a.Controller.Submit(ctx, lifecycle.Request{Text: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "AI Chat", a.HeaderTitle())
	assert.Equal(t, models.ToolChat, a.ActiveTool())

	_, err = a.Controller.Submit(ctx, lifecycle.Request{Text: "sort a list", Tool: models.ToolCode, Language: "python"})
	require.NoError(t, err)
	assert.Equal(t, "AI Coder", a.HeaderTitle())
	assert.Equal(t, models.ToolCode, a.ActiveTool())

	sess, _ := a.Sessions.Active()
	require.Len(t, sess.Messages, 4)
	assert.Equal(t, "echo: hello", sess.Messages[1].Text)
	require.NotNil(t, sess.Messages[3].Code)
	assert.Equal(t, "python", sess.Messages[3].Code.Language)
	assert.Equal(t, 1, calls)
	assert.Positive(t, updates)

	a.Sessions.Create()
	assert.Equal(t, "AI Chat", a.HeaderTitle())

	a.Sessions.Deselect()
	assert.Equal(t, DefaultTitle, a.HeaderTitle())
	assert.Equal(t, models.ToolChat, a.ActiveTool())
}

func TestLegacyMessagesWithoutToolDefaultToChat(t *testing.T) {
	cfg := testConfig(t)
	var calls int
	a := New(cfg, openDB(t, cfg), quiet(), echoFactory(&calls))

	sess, _ := a.Sessions.Active()
	a.Sessions.ReplaceMessages(sess.ID, []models.Message{
		{ID: "1", Sender: models.SenderUser, Text: "hi"},
		{ID: "2", Sender: models.SenderAI, Text: "yo"},
	})
	assert.Equal(t, "AI Chat", a.HeaderTitle())
	assert.Equal(t, models.ToolChat, a.ActiveTool())
}
