package gateway

import (
	"encoding/base64"
	"fmt"
	"strings"

	"oneverse/internal/models"
)

const (
	MsgNoCredential  = "API key not configured. Please set up your API key."
	MsgChatFailed    = "Sorry, I encountered an error. Please check the logs for details."
	MsgWriterFailed  = "Failed to generate content. Please check your prompt and try again."
	msgCodeFailed    = "Error generating code. Please check the logs."
	defaultImageMIME = "image/png"
)

func tonePrompt(prompt string, tone models.Tone) string {
	return fmt.Sprintf("Please generate content based on the following prompt. The desired tone is %s.\n\nPrompt: \"%s\"", tone, prompt)
}

func codePrompt(prompt, language string) string {
	return fmt.Sprintf("Generate a code snippet in %s for the following task: \"%s\".\n"+
		"IMPORTANT: Only output the raw code for the specified language. "+
		"Do not include any explanations, comments, or markdown formatting like ```%s ... ```.",
		language, prompt, language)
}

// CodeFailure is the code-tool fallback, written as a comment in the
// language's own syntax.
func CodeFailure(language string) string {
	return commentLine(language, msgCodeFailed)
}

func commentLine(language, text string) string {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "python", "ruby", "bash", "sh", "shell", "yaml", "toml", "r", "perl":
		return "# " + text
	case "html", "xml", "markdown", "svg":
		return "<!-- " + text + " -->"
	case "css":
		return "/* " + text + " */"
	case "sql", "lua", "haskell":
		return "-- " + text
	default:
		return "// " + text
	}
}

// stripFences removes a surrounding markdown code fence that a model added
// despite being told not to.
func stripFences(code string) string {
	trimmed := strings.TrimSpace(code)
	if !strings.HasPrefix(trimmed, "```") {
		return code
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return code
	}
	lines = lines[1:]
	if last := strings.TrimSpace(lines[len(lines)-1]); last == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// DataURI wraps image bytes as a base64 data URI
func DataURI(img Image) string {
	mime := img.MIMEType
	if mime == "" {
		mime = defaultImageMIME
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Bytes)
}
