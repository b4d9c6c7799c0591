package ui

import (
	"sync/atomic"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"oneverse/internal/app"
	"oneverse/internal/lifecycle"
	"oneverse/internal/models"
)

const (
	MaxModalWidth = 60
	MinModalWidth = 30

	SessionPageSize = 10
)

type overlay int

const (
	overlayNone overlay = iota
	overlaySessions
	overlayTools
	overlayAPIKey
	overlayShortcuts
)

type (
	// StreamUpdateMsg carries a persisted change from the generation controller
	StreamUpdateMsg lifecycle.Update

	GenerationDoneMsg struct {
		Result lifecycle.Result
		Err    error
	}
)

// Notifier forwards controller updates into a running program. It is created
// before the program exists so it can be handed to the controller first.
type Notifier struct {
	p atomic.Pointer[tea.Program]
}

func (n *Notifier) Attach(p *tea.Program) { n.p.Store(p) }

// Forward is a lifecycle observer
func (n *Notifier) Forward(u lifecycle.Update) {
	if p := n.p.Load(); p != nil {
		p.Send(StreamUpdateMsg(u))
	}
}

type Model struct {
	App *app.App

	Viewport   viewport.Model
	TextInput  textarea.Model
	ModalInput textinput.Model // API key and session rename
	Spinner    spinner.Model
	Renderer   *glamour.TermRenderer

	WindowWidth  int
	WindowHeight int
	ModalWidth   int

	Loading   bool
	Banner    string
	BannerErr bool

	// Tool selection and per-tool options
	ActiveTool models.Tool
	Tone       models.Tone
	Language   string
	Aspect     models.AspectRatio

	Overlay overlay

	// Sessions modal
	SessionIdx    int
	RenamingID    string
	ConfirmDelete string

	// Tool selector
	ToolIdx int

	// Planner and Notes panes
	TaskIdx       int
	NoteIdx       int
	EditingNoteID string
}
