// Package gateway is the only code that talks to the generative-AI provider.
// Every operation has a total result: missing credentials and provider
// failures come back as fallback values, never as errors.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"oneverse/internal/models"
)

var errNoCredential = errors.New("no credential configured")

// Models names the provider model used by each operation
type Models struct {
	Chat   string
	Writer string
	Code   string
	Image  string
}

type Gateway struct {
	mu         sync.Mutex
	factory    BackendFactory
	models     Models
	timeout    time.Duration
	logger     *slog.Logger
	credential string
	backend    Backend
}

// New returns a gateway without a credential. timeout bounds each
// single-shot request; zero means no extra bound.
func New(factory BackendFactory, m Models, timeout time.Duration, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		factory: factory,
		models:  m,
		timeout: timeout,
		logger:  logger.With("component", "gateway"),
	}
}

// SetCredential replaces the credential. The backend is rebuilt lazily on
// the next call; an empty key puts every operation in offline mode.
func (g *Gateway) SetCredential(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key = strings.TrimSpace(key)
	if key == g.credential {
		return
	}
	g.credential = key
	g.backend = nil
}

func (g *Gateway) HasCredential() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.credential != ""
}

// acquire returns the backend for the current credential. The credential
// check happens before anything touches the network.
func (g *Gateway) acquire(ctx context.Context) (Backend, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.credential == "" {
		return nil, errNoCredential
	}
	if g.backend != nil {
		return g.backend, nil
	}
	if g.factory == nil {
		return nil, errors.New("no backend factory configured")
	}
	b, err := g.factory(ctx, g.credential)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}
	g.backend = b
	return b, nil
}

// StreamChatTurn streams one model turn. Fragments arrive in emission
// order; on failure the sequence yields a single explanatory fragment and
// ends.
func (g *Gateway) StreamChatTurn(ctx context.Context, history []Turn, text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		b, err := g.acquire(ctx)
		if errors.Is(err, errNoCredential) {
			yield(MsgNoCredential)
			return
		}
		if err != nil {
			g.logger.Error("chat stream failed", "error", err)
			yield(MsgChatFailed)
			return
		}

		for chunk, err := range b.StreamChat(ctx, g.models.Chat, history, text) {
			if err != nil {
				// a cancelled generation aborts the provider stream; the
				// consumer has already stopped folding
				if ctx.Err() != nil {
					g.logger.Debug("chat stream cancelled", "model", g.models.Chat)
					return
				}
				g.logger.Error("chat stream failed", "model", g.models.Chat, "error", err)
				yield(MsgChatFailed)
				return
			}
			if chunk == "" {
				continue
			}
			if !yield(chunk) {
				return
			}
		}
	}
}

// RewriteWithTone generates content for prompt in the given tone
func (g *Gateway) RewriteWithTone(ctx context.Context, prompt string, tone models.Tone) (out string) {
	defer g.recoverTo("writer", &out, MsgWriterFailed)

	b, err := g.acquire(ctx)
	if errors.Is(err, errNoCredential) {
		return MsgNoCredential
	}
	if err != nil {
		g.logger.Error("writer failed", "error", err)
		return MsgWriterFailed
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	text, err := b.GenerateText(ctx, g.models.Writer, tonePrompt(prompt, tone))
	if err != nil {
		g.logger.Error("writer failed", "model", g.models.Writer, "tone", tone, "error", err)
		return MsgWriterFailed
	}
	if strings.TrimSpace(text) == "" {
		g.logger.Warn("writer returned empty text", "model", g.models.Writer)
		return MsgWriterFailed
	}
	return text
}

// GenerateCode asks for raw code only in the given language
func (g *Gateway) GenerateCode(ctx context.Context, prompt, language string) (out string) {
	defer g.recoverTo("code", &out, CodeFailure(language))

	b, err := g.acquire(ctx)
	if errors.Is(err, errNoCredential) {
		return MsgNoCredential
	}
	if err != nil {
		g.logger.Error("code generation failed", "error", err)
		return CodeFailure(language)
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	code, err := b.GenerateText(ctx, g.models.Code, codePrompt(prompt, language))
	if err != nil {
		g.logger.Error("code generation failed", "model", g.models.Code, "language", language, "error", err)
		return CodeFailure(language)
	}
	code = stripFences(code)
	if strings.TrimSpace(code) == "" {
		g.logger.Warn("code generation returned empty text", "model", g.models.Code)
		return CodeFailure(language)
	}
	return code
}

// GenerateImage produces exactly one image and returns it as a data URI.
// ok is false on any failure, including a missing credential.
func (g *Gateway) GenerateImage(ctx context.Context, prompt string, ratio models.AspectRatio) (uri string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("image generation panicked", "panic", r)
			uri, ok = "", false
		}
	}()

	b, err := g.acquire(ctx)
	if errors.Is(err, errNoCredential) {
		return "", false
	}
	if err != nil {
		g.logger.Error("image generation failed", "error", err)
		return "", false
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	img, err := b.GenerateImage(ctx, g.models.Image, prompt, ratio)
	if err != nil {
		g.logger.Error("image generation failed", "model", g.models.Image, "aspect_ratio", ratio, "error", err)
		return "", false
	}
	if len(img.Bytes) == 0 {
		g.logger.Warn("image generation returned no image", "model", g.models.Image)
		return "", false
	}
	return DataURI(img), true
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.timeout)
}

func (g *Gateway) recoverTo(op string, out *string, fallback string) {
	if r := recover(); r != nil {
		g.logger.Error("provider call panicked", "op", op, "panic", r)
		*out = fallback
	}
}
