package gateway

import (
	"context"
	"iter"

	"oneverse/internal/models"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one entry of the conversation history sent with a chat request
type Turn struct {
	Role Role
	Text string
}

// Image is a decoded generated image
type Image struct {
	Bytes    []byte
	MIMEType string
}

// Backend is the provider boundary. Implementations return raw provider
// errors; the Gateway turns them into user-facing fallbacks.
type Backend interface {
	StreamChat(ctx context.Context, model string, history []Turn, text string) iter.Seq2[string, error]
	GenerateText(ctx context.Context, model, prompt string) (string, error)
	GenerateImage(ctx context.Context, model, prompt string, ratio models.AspectRatio) (Image, error)
}

// BackendFactory builds a backend for a credential. It is only called once a
// credential is configured.
type BackendFactory func(ctx context.Context, apiKey string) (Backend, error)

// HistoryFromMessages maps a session log to provider turns. Code replies are
// sent as their code content; entries with no text (image replies, pending
// placeholders) are dropped since providers reject empty turns.
func HistoryFromMessages(msgs []models.Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		role := RoleUser
		if m.Sender == models.SenderAI {
			role = RoleModel
		}
		text := m.Text
		if text == "" && m.Code != nil {
			text = m.Code.Content
		}
		if text == "" {
			continue
		}
		turns = append(turns, Turn{Role: role, Text: text})
	}
	return turns
}
