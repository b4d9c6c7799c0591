package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oneverse/internal/db"
	"oneverse/internal/gateway"
	"oneverse/internal/kv"
	"oneverse/internal/models"
	"oneverse/internal/session"
)

type stubGen struct {
	frags    []string
	gate     chan struct{}
	writer   string
	code     string
	imageURI string
	imageOK  bool
	panicOn  models.Tool

	gotHistory []gateway.Turn
	gotText    string
	gotTone    models.Tone
	gotLang    string
	gotRatio   models.AspectRatio
}

func (s *stubGen) StreamChatTurn(_ context.Context, history []gateway.Turn, text string) iter.Seq[string] {
	s.gotHistory, s.gotText = history, text
	return func(yield func(string) bool) {
		if s.panicOn == models.ToolChat {
			panic("stream exploded")
		}
		for _, f := range s.frags {
			if s.gate != nil {
				<-s.gate
			}
			if !yield(f) {
				return
			}
		}
	}
}

func (s *stubGen) RewriteWithTone(_ context.Context, prompt string, tone models.Tone) string {
	if s.panicOn == models.ToolWriter {
		panic("writer exploded")
	}
	s.gotText, s.gotTone = prompt, tone
	return s.writer
}

func (s *stubGen) GenerateCode(_ context.Context, prompt, language string) string {
	if s.panicOn == models.ToolCode {
		panic("code exploded")
	}
	s.gotText, s.gotLang = prompt, language
	return s.code
}

func (s *stubGen) GenerateImage(_ context.Context, prompt string, ratio models.AspectRatio) (string, bool) {
	if s.panicOn == models.ToolImage {
		panic("image exploded")
	}
	s.gotText, s.gotRatio = prompt, ratio
	return s.imageURI, s.imageOK
}

// recordingSessions keeps a snapshot of every ReplaceMessages call
type recordingSessions struct {
	mu        sync.Mutex
	session   models.Session
	active    bool
	snapshots [][]models.Message
}

func newRecording(prior ...models.Message) *recordingSessions {
	return &recordingSessions{
		session: models.Session{ID: "s1", Title: "New Chat", Messages: prior},
		active:  true,
	}
}

func (r *recordingSessions) Active() (models.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session.Clone(), r.active
}

func (r *recordingSessions) ReplaceMessages(id string, msgs []models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id != r.session.ID {
		return
	}
	r.session.Messages = models.CloneMessages(msgs)
	r.snapshots = append(r.snapshots, models.CloneMessages(msgs))
}

func (r *recordingSessions) last() []models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.CloneMessages(r.session.Messages)
}

// replyTexts returns the AI reply text of every snapshot
func (r *recordingSessions) replyTexts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.snapshots))
	for _, snap := range r.snapshots {
		out = append(out, snap[len(snap)-1].Text)
	}
	return out
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("m%d", n)
	}
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubmitRejections(t *testing.T) {
	gen := &stubGen{}
	sessions := newRecording()
	c := New(gen, sessions, quiet())

	_, err := c.Submit(context.Background(), Request{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = c.Submit(context.Background(), Request{Text: "buy milk", Tool: models.ToolPlanner})
	assert.ErrorIs(t, err, ErrLocalTool)

	_, err = c.Submit(context.Background(), Request{Text: "note", Tool: models.ToolNotes})
	assert.ErrorIs(t, err, ErrLocalTool)

	sessions.active = false
	_, err = c.Submit(context.Background(), Request{Text: "hi"})
	assert.ErrorIs(t, err, ErrNoActiveSession)

	assert.Empty(t, sessions.snapshots)
	assert.Equal(t, Idle, c.State())
}

func TestChatStreamFoldsFragmentsInOrder(t *testing.T) {
	prior := []models.Message{
		{ID: "p1", Sender: models.SenderUser, Text: "hi"},
		{ID: "p2", Sender: models.SenderAI, Text: "hello!"},
	}
	gen := &stubGen{frags: []string{"Hel", "lo"}}
	sessions := newRecording(prior...)
	c := New(gen, sessions, quiet(), WithIDs(seqIDs()))

	res, err := c.Submit(context.Background(), Request{Text: "again"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, "m2", res.MessageID)
	assert.Equal(t, models.ToolChat, res.Tool)

	// placeholder, then one persisted state per fragment
	assert.Equal(t, []string{"", "Hel", "Hello"}, sessions.replyTexts())

	assert.Equal(t, []gateway.Turn{
		{Role: gateway.RoleUser, Text: "hi"},
		{Role: gateway.RoleModel, Text: "hello!"},
	}, gen.gotHistory)
	assert.Equal(t, "again", gen.gotText)

	final := sessions.last()
	require.Len(t, final, 4)
	assert.Equal(t, models.Message{ID: "m1", Sender: models.SenderUser, Text: "again", Tool: models.ToolChat}, final[2])
	assert.Equal(t, models.Message{ID: "m2", Sender: models.SenderAI, Text: "Hello", Tool: models.ToolChat}, final[3])
	assert.Equal(t, Idle, c.State())
}

func TestPlaceholderPersistedBeforeGatewayCall(t *testing.T) {
	sessions := newRecording()
	var seen []models.Message
	gen := &stubGen{}
	gen.writer = "done"
	c := New(&peekGen{stubGen: gen, peek: func() { seen = sessions.last() }}, sessions, quiet())

	_, err := c.Submit(context.Background(), Request{Text: "write", Tool: models.ToolWriter})
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Equal(t, models.SenderUser, seen[0].Sender)
	assert.Equal(t, models.SenderAI, seen[1].Sender)
	assert.Empty(t, seen[1].Text)
	assert.Equal(t, models.ToolWriter, seen[1].Tool)
}

type peekGen struct {
	*stubGen
	peek func()
}

func (p *peekGen) RewriteWithTone(ctx context.Context, prompt string, tone models.Tone) string {
	p.peek()
	return p.stubGen.RewriteWithTone(ctx, prompt, tone)
}

func TestCancelMidStream(t *testing.T) {
	gen := &stubGen{frags: []string{"Hel", "lo", " world"}}
	sessions := newRecording()

	var c *Controller
	c = New(gen, sessions, quiet(), OnUpdate(func(u Update) {
		if last := u.Messages[len(u.Messages)-1]; last.Text == "Hel" {
			c.Cancel()
		}
	}))

	res, err := c.Submit(context.Background(), Request{Text: "hi"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCancelled, res.Outcome)
	final := sessions.last()
	assert.Equal(t, "Hel", final[len(final)-1].Text)
	assert.Equal(t, Idle, c.State())

	gen.frags = []string{"ok"}
	res, err = c.Submit(context.Background(), Request{Text: "next"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	final = sessions.last()
	assert.Equal(t, "ok", final[len(final)-1].Text)
}

func TestSubmitWhileStreamingIsBusy(t *testing.T) {
	gen := &stubGen{frags: []string{"a", "b"}, gate: make(chan struct{})}
	sessions := newRecording()
	c := New(gen, sessions, quiet())

	done := make(chan Result, 1)
	go func() {
		res, err := c.Submit(context.Background(), Request{Text: "first"})
		assert.NoError(t, err)
		done <- res
	}()

	require.Eventually(t, func() bool { return c.State() == Streaming }, time.Second, time.Millisecond)
	assert.True(t, c.Busy())

	_, err := c.Submit(context.Background(), Request{Text: "second", Tool: models.ToolWriter})
	assert.ErrorIs(t, err, ErrBusy)

	gen.gate <- struct{}{}
	gen.gate <- struct{}{}
	res := <-done

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.False(t, c.Busy())
	final := sessions.last()
	require.Len(t, final, 2)
	assert.Equal(t, "ab", final[1].Text)
}

func TestEmptyStreamFallsBackToChatFailure(t *testing.T) {
	sessions := newRecording()
	c := New(&stubGen{}, sessions, quiet())

	_, err := c.Submit(context.Background(), Request{Text: "hi"})
	require.NoError(t, err)
	final := sessions.last()
	assert.Equal(t, gateway.MsgChatFailed, final[1].Text)
}

func TestWriterReplacesPlaceholder(t *testing.T) {
	gen := &stubGen{writer: "Dear team,"}
	sessions := newRecording()
	c := New(gen, sessions, quiet())

	_, err := c.Submit(context.Background(), Request{Text: "memo", Tool: models.ToolWriter, Tone: models.ToneProfessional})
	require.NoError(t, err)

	assert.Equal(t, models.ToneProfessional, gen.gotTone)
	assert.Equal(t, []string{"", "Dear team,"}, sessions.replyTexts())
}

func TestOptionDefaults(t *testing.T) {
	gen := &stubGen{writer: "x", code: "y", imageURI: "data:image/png;base64,AA==", imageOK: true}
	c := New(gen, newRecording(), quiet())
	ctx := context.Background()

	_, err := c.Submit(ctx, Request{Text: "a", Tool: models.ToolWriter})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTone, gen.gotTone)

	_, err = c.Submit(ctx, Request{Text: "b", Tool: models.ToolCode})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultLanguage, gen.gotLang)

	_, err = c.Submit(ctx, Request{Text: "c", Tool: models.ToolImage})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultAspect, gen.gotRatio)
}

func TestCodeFillsCodeBlock(t *testing.T) {
	gen := &stubGen{code: "print('hi')"}
	sessions := newRecording()
	c := New(gen, sessions, quiet())

	_, err := c.Submit(context.Background(), Request{Text: "greet", Tool: models.ToolCode, Language: "python"})
	require.NoError(t, err)

	reply := sessions.last()[1]
	require.NotNil(t, reply.Code)
	assert.Equal(t, models.CodeBlock{Language: "python", Content: "print('hi')"}, *reply.Code)
	assert.Empty(t, reply.Text)
	assert.Len(t, sessions.snapshots, 2)
}

func TestImageSuccessAndFailure(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		gen := &stubGen{imageURI: "data:image/png;base64,AA==", imageOK: true}
		sessions := newRecording()
		c := New(gen, sessions, quiet())

		res, err := c.Submit(context.Background(), Request{Text: "cat", Tool: models.ToolImage, AspectRatio: models.AspectPortrait})
		require.NoError(t, err)

		assert.False(t, res.ImageFailed)
		assert.Equal(t, models.AspectPortrait, gen.gotRatio)
		reply := sessions.last()[1]
		assert.Equal(t, "data:image/png;base64,AA==", reply.ImageURL)
		assert.Empty(t, reply.Text)
	})

	t.Run("failure", func(t *testing.T) {
		sessions := newRecording()
		c := New(&stubGen{}, sessions, quiet())

		res, err := c.Submit(context.Background(), Request{Text: "cat", Tool: models.ToolImage})
		require.NoError(t, err)

		assert.True(t, res.ImageFailed)
		assert.Equal(t, OutcomeFailed, res.Outcome)
		reply := sessions.last()[1]
		assert.Empty(t, reply.ImageURL)
		assert.Equal(t, MsgImageFailed, reply.Text)
	})
}

func TestPanicFoldsIntoPlaceholder(t *testing.T) {
	for _, tool := range []models.Tool{models.ToolChat, models.ToolWriter, models.ToolCode, models.ToolImage} {
		t.Run(string(tool), func(t *testing.T) {
			sessions := newRecording()
			var states []State
			c := New(&stubGen{panicOn: tool}, sessions, quiet(), OnUpdate(func(u Update) {
				states = append(states, u.State)
			}))

			res, err := c.Submit(context.Background(), Request{Text: "go", Tool: tool})
			require.NoError(t, err)

			assert.Equal(t, OutcomeFailed, res.Outcome)
			assert.Equal(t, MsgUnexpected, sessions.last()[1].Text)
			assert.False(t, c.Busy())
			require.NotEmpty(t, states)
			assert.Equal(t, Idle, states[len(states)-1])
		})
	}
}

type erroringBackend struct{}

func (erroringBackend) StreamChat(context.Context, string, []gateway.Turn, string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) { yield("", errors.New("connection reset")) }
}

func (erroringBackend) GenerateText(context.Context, string, string) (string, error) {
	return "", errors.New("500")
}

func (erroringBackend) GenerateImage(context.Context, string, string, models.AspectRatio) (gateway.Image, error) {
	return gateway.Image{}, errors.New("500")
}

func TestProviderErrorsThroughGateway(t *testing.T) {
	gw := gateway.New(func(context.Context, string) (gateway.Backend, error) {
		return erroringBackend{}, nil
	}, gateway.Models{}, 0, quiet())
	gw.SetCredential("key")

	for _, tool := range []models.Tool{models.ToolChat, models.ToolWriter, models.ToolImage} {
		t.Run(string(tool), func(t *testing.T) {
			sessions := newRecording()
			c := New(gw, sessions, quiet())

			_, err := c.Submit(context.Background(), Request{Text: "go", Tool: tool})
			require.NoError(t, err)
			assert.NotEmpty(t, sessions.last()[1].Text)
			assert.False(t, c.Busy())
		})
	}

	t.Run(string(models.ToolCode), func(t *testing.T) {
		sessions := newRecording()
		c := New(gw, sessions, quiet())

		_, err := c.Submit(context.Background(), Request{Text: "go", Tool: models.ToolCode, Language: "sql"})
		require.NoError(t, err)
		reply := sessions.last()[1]
		require.NotNil(t, reply.Code)
		assert.Equal(t, gateway.CodeFailure("sql"), reply.Code.Content)
		assert.False(t, c.Busy())
	})
}

func TestStreamPersistsThroughSessionStore(t *testing.T) {
	conn, err := db.Open(filepath.Join(t.TempDir(), "oneverse.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	store := kv.New(conn, quiet())
	sessions := session.NewStore(store, quiet())
	active, ok := sessions.Active()
	require.True(t, ok)

	var persisted []string
	c := New(&stubGen{frags: []string{"Hel", "lo"}}, sessions, quiet(), OnUpdate(func(u Update) {
		stored := kv.Read(store, kv.KeySessions, []models.Session{})
		msgs := stored[0].Messages
		persisted = append(persisted, msgs[len(msgs)-1].Text)
	}))

	_, err = c.Submit(context.Background(), Request{Text: "hi"})
	require.NoError(t, err)

	assert.Equal(t, []string{"", "Hel", "Hello", "Hello"}, persisted)

	reloaded := session.NewStore(store, quiet())
	got, ok := reloaded.Get(active.ID)
	require.True(t, ok)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "Hello", got.Messages[1].Text)
}
