package ui

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"oneverse/internal/app"
	"oneverse/internal/models"
	"oneverse/internal/styles"
)

func InitialModel(a *app.App) Model {
	styles.Use(string(a.Prefs.Theme()))

	ti := textarea.New()
	ti.Prompt = "❯ "
	ti.ShowLineNumbers = false
	ti.CharLimit = 0
	ti.MaxHeight = 6
	ti.SetHeight(2)
	ti.SetWidth(80)
	ti.Focus()

	mi := textinput.New()
	mi.CharLimit = 256
	mi.Width = MaxModalWidth - 10

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		App:        a,
		TextInput:  ti,
		ModalInput: mi,
		Viewport:   viewport.New(60, 15),
		Spinner:    sp,
		ModalWidth: MaxModalWidth,
		ActiveTool: a.ActiveTool(),
		Tone:       models.DefaultTone,
		Language:   models.DefaultLanguage,
		Aspect:     models.DefaultAspect,
	}
	m.applyTheme()

	if a.NeedsCredential() {
		m.openAPIKey()
	}
	m.syncPlaceholder()
	return m
}

// applyTheme restyles the bubbles components after a theme change
func (m *Model) applyTheme() {
	t := styles.CurrentTheme
	prompt := lipgloss.NewStyle().Foreground(t.Primary).Bold(true)
	placeholder := lipgloss.NewStyle().Foreground(t.TextMuted)

	m.TextInput.FocusedStyle.Prompt = prompt
	m.TextInput.BlurredStyle.Prompt = prompt
	m.TextInput.FocusedStyle.Placeholder = placeholder
	m.TextInput.BlurredStyle.Placeholder = placeholder
	m.TextInput.FocusedStyle.CursorLine = lipgloss.NewStyle()
	m.TextInput.BlurredStyle.CursorLine = lipgloss.NewStyle()

	m.ModalInput.PromptStyle = prompt
	m.ModalInput.PlaceholderStyle = placeholder
	m.Spinner.Style = lipgloss.NewStyle().Foreground(t.Secondary)

	m.rebuildRenderer()
}

func (m *Model) rebuildRenderer() {
	width := m.Viewport.Width - 6
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(styles.GlamourStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		m.App.Logger.Warn("markdown renderer unavailable", "error", err)
		m.Renderer = nil
		return
	}
	m.Renderer = r
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.Spinner.Tick,
	)
}

// NewProgram builds the program and attaches n so controller updates reach it
func NewProgram(a *app.App, n *Notifier) *tea.Program {
	m := InitialModel(a)
	p := tea.NewProgram(&m, tea.WithAltScreen())
	if n != nil {
		n.Attach(p)
	}
	return p
}
