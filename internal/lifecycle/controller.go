// Package lifecycle drives a generation from submit to completion: it echoes
// the user message, appends an AI placeholder, folds the gateway result into
// that placeholder and persists the session at every step.
package lifecycle

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"oneverse/internal/gateway"
	"oneverse/internal/models"
)

var (
	ErrEmptyInput      = errors.New("empty input")
	ErrLocalTool       = errors.New("tool does not generate")
	ErrNoActiveSession = errors.New("no active session")
	ErrBusy            = errors.New("a generation is already in progress")
)

const (
	MsgImageFailed = "Failed to generate image."
	MsgUnexpected  = "An error occurred."
)

type State int

const (
	Idle State = iota
	Requesting
	Streaming
	Completing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Streaming:
		return "streaming"
	case Completing:
		return "completing"
	default:
		return "unknown"
	}
}

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Generator is the subset of the gateway the controller drives
type Generator interface {
	StreamChatTurn(ctx context.Context, history []gateway.Turn, text string) iter.Seq[string]
	RewriteWithTone(ctx context.Context, prompt string, tone models.Tone) string
	GenerateCode(ctx context.Context, prompt, language string) string
	GenerateImage(ctx context.Context, prompt string, ratio models.AspectRatio) (string, bool)
}

// Sessions is where the controller reads history and writes results
type Sessions interface {
	Active() (models.Session, bool)
	ReplaceMessages(sessionID string, messages []models.Message)
}

// Request is one user submission. Zero option fields take the defaults.
type Request struct {
	Text        string
	Tool        models.Tool
	Tone        models.Tone
	Language    string
	AspectRatio models.AspectRatio
}

// Update is emitted after every persisted change to the session
type Update struct {
	SessionID string
	Messages  []models.Message
	State     State
}

type Result struct {
	SessionID   string
	MessageID   string
	Tool        models.Tool
	Outcome     Outcome
	ImageFailed bool
}

type Controller struct {
	mu       sync.Mutex
	gen      Generator
	sessions Sessions
	logger   *slog.Logger
	newID    func() string
	onUpdate func(Update)

	state  State
	cancel context.CancelFunc
}

type Option func(*Controller)

// OnUpdate registers the observer called after every persisted change
func OnUpdate(fn func(Update)) Option {
	return func(c *Controller) { c.onUpdate = fn }
}

// WithIDs overrides message id generation
func WithIDs(newID func() string) Option {
	return func(c *Controller) { c.newID = newID }
}

func New(gen Generator, sessions Sessions, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		gen:      gen,
		sessions: sessions,
		logger:   logger.With("component", "lifecycle"),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Busy() bool {
	return c.State() != Idle
}

// Cancel asks the in-flight stream to stop folding fragments. It has no
// effect on single-shot tools or when nothing is running.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Submit runs one generation to completion on the calling goroutine. Only
// one generation may be in flight at a time across all sessions.
func (c *Controller) Submit(ctx context.Context, req Request) (Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Result{}, ErrEmptyInput
	}
	if req.Tool == "" {
		req.Tool = models.ToolChat
	}
	if !req.Tool.Generative() {
		return Result{}, ErrLocalTool
	}

	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return Result{}, ErrBusy
	}
	sess, ok := c.sessions.Active()
	if !ok {
		c.mu.Unlock()
		return Result{}, ErrNoActiveSession
	}
	streamCtx, cancel := context.WithCancel(ctx)
	c.state = Requesting
	c.cancel = cancel
	c.mu.Unlock()

	g := &generation{
		c:         c,
		sessionID: sess.ID,
		prior:     sess.Messages,
		user: models.Message{
			ID:     c.newID(),
			Sender: models.SenderUser,
			Text:   text,
			Tool:   req.Tool,
		},
		reply: models.Message{
			ID:     c.newID(),
			Sender: models.SenderAI,
			Tool:   req.Tool,
		},
	}
	res := Result{SessionID: sess.ID, MessageID: g.reply.ID, Tool: req.Tool, Outcome: OutcomeCompleted}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("generation panicked", "session_id", sess.ID, "tool", req.Tool, "panic", r)
			g.reply.Text = MsgUnexpected
			res.Outcome = OutcomeFailed
			g.persist()
		}
		cancel()

		c.mu.Lock()
		c.state = Idle
		c.cancel = nil
		c.mu.Unlock()

		c.logger.Info("generation finished",
			"session_id", sess.ID,
			"tool", req.Tool,
			"outcome", res.Outcome,
			"duration", time.Since(start),
		)
		g.notify()
	}()

	g.persist()

	switch req.Tool {
	case models.ToolChat:
		c.setState(Streaming)
		if !g.stream(streamCtx, text) {
			res.Outcome = OutcomeCancelled
		}

	case models.ToolWriter:
		c.setState(Completing)
		tone := req.Tone
		if tone == "" {
			tone = models.DefaultTone
		}
		g.reply.Text = c.gen.RewriteWithTone(ctx, text, tone)
		g.persist()

	case models.ToolCode:
		c.setState(Completing)
		lang := req.Language
		if lang == "" {
			lang = models.DefaultLanguage
		}
		content := c.gen.GenerateCode(ctx, text, lang)
		g.reply.Code = &models.CodeBlock{Language: lang, Content: content}
		g.persist()

	case models.ToolImage:
		c.setState(Completing)
		ratio := req.AspectRatio
		if ratio == "" {
			ratio = models.DefaultAspect
		}
		if uri, ok := c.gen.GenerateImage(ctx, text, ratio); ok {
			g.reply.ImageURL = uri
			g.reply.Text = ""
		} else {
			g.reply.Text = MsgImageFailed
			res.ImageFailed = true
			res.Outcome = OutcomeFailed
		}
		g.persist()
	}

	return res, nil
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// generation is the working copy of one submit: prior history plus the two
// messages it appends
type generation struct {
	c         *Controller
	sessionID string
	prior     []models.Message
	user      models.Message
	reply     models.Message
}

func (g *generation) messages() []models.Message {
	out := make([]models.Message, 0, len(g.prior)+2)
	out = append(out, g.prior...)
	return append(out, g.user, g.reply)
}

func (g *generation) persist() {
	g.c.sessions.ReplaceMessages(g.sessionID, g.messages())
	g.notify()
}

func (g *generation) notify() {
	if g.c.onUpdate == nil {
		return
	}
	g.c.onUpdate(Update{
		SessionID: g.sessionID,
		Messages:  models.CloneMessages(g.messages()),
		State:     g.c.State(),
	})
}

// stream folds chat fragments into the placeholder in emission order. It
// reports false when the token was cancelled before the stream ended.
func (g *generation) stream(ctx context.Context, text string) bool {
	var sb strings.Builder
	for frag := range g.c.gen.StreamChatTurn(ctx, gateway.HistoryFromMessages(g.prior), text) {
		if ctx.Err() != nil {
			return false
		}
		sb.WriteString(frag)
		g.reply.Text = sb.String()
		g.persist()
	}
	if ctx.Err() != nil {
		return false
	}
	if sb.Len() == 0 {
		g.reply.Text = gateway.MsgChatFailed
		g.persist()
	}
	return true
}
