// Package export writes generated content out of the app: code to the
// clipboard, images, code and transcripts to files.
package export

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"

	"oneverse/internal/models"
)

var (
	ErrNoCode  = errors.New("message has no code")
	ErrNoImage = errors.New("message has no image")
)

type Exporter struct {
	dir    string
	logger *slog.Logger
	copy   func(string) error
}

func New(dir string, logger *slog.Logger) *Exporter {
	if dir == "" {
		dir = "."
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		dir:    dir,
		logger: logger.With("component", "export"),
		copy:   clipboard.WriteAll,
	}
}

func (e *Exporter) Dir() string { return e.dir }

// CopyCode puts the code content of msg on the system clipboard
func (e *Exporter) CopyCode(msg models.Message) error {
	if msg.Code == nil {
		return ErrNoCode
	}
	if err := e.copy(msg.Code.Content); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}

// SaveImage decodes the image data URI of msg into oneverse-<id>.<ext>
func (e *Exporter) SaveImage(msg models.Message) (string, error) {
	if msg.ImageURL == "" {
		return "", ErrNoImage
	}
	data, mime, err := DecodeDataURI(msg.ImageURL)
	if err != nil {
		return "", err
	}
	return e.write(fmt.Sprintf("oneverse-%s%s", msg.ID, imageExt(mime)), data)
}

// SaveCode writes the code content of msg to oneverse-<id>.<ext>
func (e *Exporter) SaveCode(msg models.Message) (string, error) {
	if msg.Code == nil {
		return "", ErrNoCode
	}
	return e.write(fmt.Sprintf("oneverse-%s%s", msg.ID, CodeExt(msg.Code.Language)), []byte(msg.Code.Content))
}

// SaveTranscript writes the session as markdown to oneverse-<session id>.md
func (e *Exporter) SaveTranscript(sess models.Session) (string, error) {
	return e.write(fmt.Sprintf("oneverse-%s.md", sess.ID), []byte(Transcript(sess)))
}

func (e *Exporter) write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	e.logger.Info("exported", "path", path, "bytes", len(data))
	return path, nil
}

// DecodeDataURI splits a base64 data URI into its payload and MIME type
func DecodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("data URI has no payload")
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, "", fmt.Errorf("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data URI: %w", err)
	}
	return data, mime, nil
}

func imageExt(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// CodeExt maps a code language to a file extension
func CodeExt(language string) string {
	switch strings.ToLower(language) {
	case "javascript":
		return ".js"
	case "typescript":
		return ".ts"
	case "python":
		return ".py"
	case "html":
		return ".html"
	case "css":
		return ".css"
	case "sql":
		return ".sql"
	case "go":
		return ".go"
	default:
		return ".txt"
	}
}

// Transcript renders a session as markdown
func Transcript(sess models.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", sess.Title)
	fmt.Fprintf(&b, "_Created %s_\n", sess.CreatedAt.Format("2006-01-02 15:04"))

	for _, m := range sess.Messages {
		who := "You"
		if m.Sender == models.SenderAI {
			who = "OneVerse"
		}
		fmt.Fprintf(&b, "\n**%s** · %s\n\n", who, m.ToolOrDefault())

		if m.Text != "" {
			b.WriteString(m.Text)
			b.WriteString("\n")
		}
		if m.Code != nil {
			fmt.Fprintf(&b, "```%s\n%s\n```\n", m.Code.Language, strings.TrimRight(m.Code.Content, "\n"))
		}
		if m.ImageURL != "" {
			fmt.Fprintf(&b, "![generated image](oneverse-%s%s)\n", m.ID, imageExt(imageMIME(m.ImageURL)))
		}
	}
	return b.String()
}

func imageMIME(uri string) string {
	meta, _, _ := strings.Cut(strings.TrimPrefix(uri, "data:"), ";")
	return meta
}
