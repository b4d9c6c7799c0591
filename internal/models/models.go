package models

import "time"

// Tool is the mode a submission is interpreted in
type Tool string

const (
	ToolChat    Tool = "AI Chat"
	ToolWriter  Tool = "AI Writer"
	ToolImage   Tool = "AI Image Gen"
	ToolCode    Tool = "AI Coder"
	ToolPlanner Tool = "Planner"
	ToolNotes   Tool = "Notes"
)

// AllTools is the order tools are offered in the selector
var AllTools = []Tool{ToolChat, ToolWriter, ToolCode, ToolImage, ToolPlanner, ToolNotes}

// Local reports whether the tool works without a generation request
func (t Tool) Local() bool {
	return t == ToolPlanner || t == ToolNotes
}

func (t Tool) Generative() bool {
	switch t {
	case ToolChat, ToolWriter, ToolImage, ToolCode:
		return true
	default:
		return false
	}
}

type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

type Tone string

const (
	ToneProfessional  Tone = "Professional"
	ToneCasual        Tone = "Casual"
	ToneEnthusiastic  Tone = "Enthusiastic"
	ToneInformational Tone = "Informational"
	ToneFunny         Tone = "Funny"
)

var AllTones = []Tone{ToneProfessional, ToneCasual, ToneEnthusiastic, ToneInformational, ToneFunny}

type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectPortrait  AspectRatio = "9:16"
	AspectLandscape AspectRatio = "16:9"
)

var AllAspectRatios = []AspectRatio{AspectSquare, AspectPortrait, AspectLandscape}

// CodeLanguages are the languages offered by the Code tool
var CodeLanguages = []string{"javascript", "python", "html", "css", "sql"}

const (
	DefaultTone     = ToneCasual
	DefaultLanguage = "javascript"
	DefaultAspect   = AspectSquare

	DefaultSessionTitle = "New Chat"
)

type CodeBlock struct {
	Language string `json:"language"`
	Content  string `json:"content"`
}

// Message is one entry of a session log. An AI message starts as an empty
// placeholder and is patched in place until its generation completes.
type Message struct {
	ID       string     `json:"id"`
	Sender   Sender     `json:"sender"`
	Text     string     `json:"text"`
	Tool     Tool       `json:"tool,omitempty"`
	ImageURL string     `json:"imageUrl,omitempty"`
	Code     *CodeBlock `json:"code,omitempty"`
}

// ToolOrDefault returns the message tool, Chat when unset
func (m Message) ToolOrDefault() Tool {
	if m.Tool == "" {
		return ToolChat
	}
	return m.Tool
}

// Clone returns a deep copy of the message
func (m Message) Clone() Message {
	if m.Code != nil {
		code := *m.Code
		m.Code = &code
	}
	return m
}

type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
}

// Clone returns a deep copy of the session
func (s Session) Clone() Session {
	s.Messages = CloneMessages(s.Messages)
	return s
}

func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// Task is a planner entry
type Task struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
