package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"oneverse/internal/lifecycle"
	"oneverse/internal/models"
	"oneverse/internal/styles"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case spinner.TickMsg:
		m.Spinner, spCmd = m.Spinner.Update(msg)
		if m.Loading {
			m.UpdateViewport()
		}
		return m, spCmd

	case StreamUpdateMsg:
		if msg.SessionID == m.App.Sessions.ActiveID() {
			m.UpdateViewport()
		}
		return m, nil

	case GenerationDoneMsg:
		m.Loading = false
		switch {
		case errors.Is(msg.Err, lifecycle.ErrEmptyInput), errors.Is(msg.Err, lifecycle.ErrLocalTool):
		case msg.Err != nil:
			m.setBanner(msg.Err.Error(), true)
		case msg.Result.ImageFailed:
			m.setBanner(lifecycle.MsgImageFailed, true)
		case msg.Result.Outcome == lifecycle.OutcomeCancelled:
			m.setBanner("Generation stopped", false)
		}
		m.UpdateViewport()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.Overlay {
		case overlaySessions:
			return m, m.updateSessions(msg)
		case overlayTools:
			m.updateTools(msg)
			return m, nil
		case overlayAPIKey:
			return m, m.updateAPIKey(msg)
		case overlayShortcuts:
			switch msg.String() {
			case "esc", "enter", "?", "ctrl+s":
				m.Overlay = overlayNone
			}
			return m, nil
		}

		if isNewlineShortcut(msg) {
			m.TextInput.InsertString("\n")
			m.updateInputLayout()
			return m, nil
		}

		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}

		switch m.ActiveTool {
		case models.ToolPlanner:
			if m.updatePlanner(msg) {
				return m, nil
			}
		case models.ToolNotes:
			if m.updateNotes(msg) {
				return m, nil
			}
		}

		if msg.Type == tea.KeyEnter {
			return m, m.submit()
		}

	case tea.WindowSizeMsg:
		m.WindowWidth = msg.Width
		m.WindowHeight = msg.Height

		m.ModalWidth = min(max(msg.Width-10, MinModalWidth), MaxModalWidth)
		styles.SetContentWidth(m.ModalWidth - 6)
		m.ModalInput.Width = m.ModalWidth - 10

		m.Viewport.Width = msg.Width - 4
		m.updateInputLayout()
		m.rebuildRenderer()
		m.UpdateViewport()
		return m, nil
	}

	before := m.TextInput.Value()
	m.TextInput, tiCmd = m.TextInput.Update(msg)
	m.updateInputLayout()

	// Filter out terminal background color queries that leak into the input
	val := m.TextInput.Value()
	if strings.Contains(val, "]11;rgb:") || strings.Contains(val, "1;rgb:") || strings.Contains(val, "[1;1R") {
		m.TextInput.Reset()
	}
	if m.ActiveTool == models.ToolNotes && m.TextInput.Value() != before {
		m.NoteIdx = 0
		m.UpdateViewport()
	}

	m.Viewport, vpCmd = m.Viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// handleGlobalKey runs the shortcuts available outside of modals
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.Type {
	case tea.KeyEsc:
		if m.Loading {
			m.App.Controller.Cancel()
			return nil, true
		}
		if m.EditingNoteID != "" {
			m.EditingNoteID = ""
			m.TextInput.Reset()
			m.syncPlaceholder()
			return nil, true
		}
		return tea.Quit, true

	case tea.KeyCtrlN:
		m.App.Sessions.Create()
		m.ActiveTool = models.ToolChat
		m.syncPlaceholder()
		m.UpdateViewport()
		return nil, true

	case tea.KeyCtrlH:
		m.openSessions()
		return nil, true

	case tea.KeyCtrlT:
		m.Overlay = overlayTools
		m.ToolIdx = max(0, indexOfTool(m.ActiveTool))
		return nil, true

	case tea.KeyCtrlO:
		m.cycleOption()
		return nil, true

	case tea.KeyCtrlK:
		m.openAPIKey()
		return textinput.Blink, true

	case tea.KeyCtrlS:
		m.Overlay = overlayShortcuts
		return nil, true

	case tea.KeyCtrlL:
		theme := m.App.Prefs.ToggleTheme()
		styles.Use(string(theme))
		m.applyTheme()
		m.UpdateViewport()
		m.setBanner(fmt.Sprintf("Theme: %s", theme), false)
		return nil, true

	case tea.KeyCtrlP:
		if m.App.Prefs.ToggleSpeech() {
			m.setBanner("Speech output on", false)
		} else {
			m.setBanner("Speech output off", false)
		}
		return nil, true

	case tea.KeyCtrlY:
		m.copyLastCode()
		return nil, true

	case tea.KeyCtrlE:
		m.exportLast()
		return nil, true
	}
	return nil, false
}

func isNewlineShortcut(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "shift+enter", "shift+return", "ctrl+j", "ctrl+enter", "alt+enter":
		return true
	default:
		return false
	}
}

// submit hands the input to the generation controller on a command goroutine
func (m *Model) submit() tea.Cmd {
	if m.Loading || m.ActiveTool.Local() {
		return nil
	}
	input := m.TextInput.Value()
	if strings.TrimSpace(input) == "" {
		return nil
	}

	m.App.Sessions.EnsureActive()
	req := lifecycle.Request{
		Text:        input,
		Tool:        m.ActiveTool,
		Tone:        m.Tone,
		Language:    m.Language,
		AspectRatio: m.Aspect,
	}
	ctrl := m.App.Controller

	m.TextInput.Reset()
	m.updateInputLayout()
	m.Loading = true
	m.Banner = ""
	m.UpdateViewport()

	return tea.Batch(func() tea.Msg {
		res, err := ctrl.Submit(context.Background(), req)
		return GenerationDoneMsg{Result: res, Err: err}
	}, m.Spinner.Tick)
}

func (m *Model) setBanner(text string, isErr bool) {
	m.Banner = text
	m.BannerErr = isErr
}

func (m *Model) cycleOption() {
	switch m.ActiveTool {
	case models.ToolWriter:
		m.Tone = next(models.AllTones, m.Tone)
		m.setBanner("Tone: "+string(m.Tone), false)
	case models.ToolCode:
		m.Language = next(models.CodeLanguages, m.Language)
		m.setBanner("Language: "+m.Language, false)
	case models.ToolImage:
		m.Aspect = next(models.AllAspectRatios, m.Aspect)
		m.setBanner("Aspect ratio: "+string(m.Aspect), false)
	}
}

func next[T comparable](options []T, cur T) T {
	for i, o := range options {
		if o == cur {
			return options[(i+1)%len(options)]
		}
	}
	return options[0]
}

func indexOfTool(t models.Tool) int {
	for i, tool := range models.AllTools {
		if tool == t {
			return i
		}
	}
	return -1
}

func (m *Model) syncPlaceholder() {
	switch m.ActiveTool {
	case models.ToolPlanner:
		m.TextInput.Placeholder = "Add a task and press Enter..."
	case models.ToolNotes:
		if m.EditingNoteID != "" {
			m.TextInput.Placeholder = "Edit the note, first line is the title..."
		} else {
			m.TextInput.Placeholder = "Search notes, or type a title and press Enter to save..."
		}
	default:
		m.TextInput.Placeholder = fmt.Sprintf("Ask %s...", m.ActiveTool)
	}
}

// Sessions modal

func (m *Model) openSessions() {
	m.Overlay = overlaySessions
	m.RenamingID = ""
	m.ConfirmDelete = ""
	m.SessionIdx = 0
	active := m.App.Sessions.ActiveID()
	for i, s := range m.App.Sessions.List() {
		if s.ID == active {
			m.SessionIdx = i
		}
	}
}

func (m *Model) updateSessions(msg tea.KeyMsg) tea.Cmd {
	list := m.App.Sessions.List()

	if m.RenamingID != "" {
		switch msg.Type {
		case tea.KeyEsc:
			m.RenamingID = ""
			return nil
		case tea.KeyEnter:
			if title := strings.TrimSpace(m.ModalInput.Value()); title != "" {
				m.App.Sessions.Rename(m.RenamingID, title)
			}
			m.RenamingID = ""
			return nil
		}
		var cmd tea.Cmd
		m.ModalInput, cmd = m.ModalInput.Update(msg)
		return cmd
	}

	if len(list) == 0 {
		m.Overlay = overlayNone
		return nil
	}
	m.SessionIdx = min(m.SessionIdx, len(list)-1)
	selected := list[m.SessionIdx]

	if m.ConfirmDelete != "" {
		if msg.String() == "y" {
			m.App.Sessions.Delete(m.ConfirmDelete)
			m.SessionIdx = max(0, m.SessionIdx-1)
			m.ActiveTool = m.App.ActiveTool()
			m.syncPlaceholder()
			m.UpdateViewport()
		}
		m.ConfirmDelete = ""
		return nil
	}

	switch msg.String() {
	case "esc", "ctrl+h":
		m.Overlay = overlayNone
	case "up", "k":
		m.SessionIdx = (m.SessionIdx - 1 + len(list)) % len(list)
	case "down", "j":
		m.SessionIdx = (m.SessionIdx + 1) % len(list)
	case "enter":
		m.App.Sessions.Select(selected.ID)
		m.ActiveTool = m.App.ActiveTool()
		m.syncPlaceholder()
		m.Overlay = overlayNone
		m.UpdateViewport()
	case "n":
		m.App.Sessions.Create()
		m.ActiveTool = models.ToolChat
		m.syncPlaceholder()
		m.SessionIdx = 0
		m.UpdateViewport()
	case "d", "delete":
		m.ConfirmDelete = selected.ID
	case "r":
		m.RenamingID = selected.ID
		m.ModalInput.Reset()
		m.ModalInput.EchoMode = textinput.EchoNormal
		m.ModalInput.Placeholder = "New title"
		m.ModalInput.SetValue(selected.Title)
		m.ModalInput.CursorEnd()
		m.ModalInput.Focus()
		return textinput.Blink
	}
	return nil
}

// Tool selector

func (m *Model) updateTools(msg tea.KeyMsg) {
	switch msg.String() {
	case "esc", "ctrl+t":
		m.Overlay = overlayNone
	case "up", "k":
		m.ToolIdx = (m.ToolIdx - 1 + len(models.AllTools)) % len(models.AllTools)
	case "down", "j":
		m.ToolIdx = (m.ToolIdx + 1) % len(models.AllTools)
	case "enter":
		m.ActiveTool = models.AllTools[m.ToolIdx]
		m.Overlay = overlayNone
		m.EditingNoteID = ""
		m.TaskIdx, m.NoteIdx = 0, 0
		m.syncPlaceholder()
		m.UpdateViewport()
	}
}

// API key modal

func (m *Model) openAPIKey() {
	m.Overlay = overlayAPIKey
	m.ModalInput.Reset()
	m.ModalInput.EchoMode = textinput.EchoPassword
	m.ModalInput.EchoCharacter = '•'
	m.ModalInput.Placeholder = "Paste your API key"
	m.ModalInput.Focus()
}

func (m *Model) updateAPIKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.Overlay = overlayNone
		m.ModalInput.Blur()
		return nil
	case tea.KeyEnter:
		if !m.App.SubmitCredential(m.ModalInput.Value()) {
			m.setBanner("API key cannot be empty", true)
			return nil
		}
		m.Overlay = overlayNone
		m.ModalInput.Reset()
		m.ModalInput.Blur()
		m.setBanner("API key saved", false)
		return nil
	case tea.KeyCtrlD:
		m.App.Logout()
		m.Overlay = overlayNone
		m.ModalInput.Blur()
		m.setBanner("API key removed", false)
		return nil
	}
	var cmd tea.Cmd
	m.ModalInput, cmd = m.ModalInput.Update(msg)
	return cmd
}

// Planner pane: Enter adds, or toggles the selected task when the input is
// empty.
func (m *Model) updatePlanner(msg tea.KeyMsg) bool {
	tasks := m.App.Planner.List()
	switch msg.String() {
	case "up":
		if len(tasks) > 0 {
			m.TaskIdx = (m.TaskIdx - 1 + len(tasks)) % len(tasks)
		}
	case "down":
		if len(tasks) > 0 {
			m.TaskIdx = (m.TaskIdx + 1) % len(tasks)
		}
	case "enter":
		if text := m.TextInput.Value(); strings.TrimSpace(text) != "" {
			m.App.Planner.Add(text)
			m.TextInput.Reset()
			m.TaskIdx = 0
		} else if m.TaskIdx < len(tasks) {
			m.App.Planner.Toggle(tasks[m.TaskIdx].ID)
		}
	case "ctrl+d":
		if m.TaskIdx < len(tasks) {
			m.App.Planner.Delete(tasks[m.TaskIdx].ID)
			m.TaskIdx = max(0, min(m.TaskIdx, len(tasks)-2))
		}
	case "ctrl+r":
		if n := m.App.Planner.ClearCompleted(); n > 0 {
			m.setBanner(fmt.Sprintf("Cleared %d completed", n), false)
		}
		m.TaskIdx = 0
	default:
		return false
	}
	m.updateInputLayout()
	m.UpdateViewport()
	return true
}

// Notes pane: the input doubles as the search box. Enter saves it as a new
// note (first line is the title) or as the edit of the selected note.
func (m *Model) updateNotes(msg tea.KeyMsg) bool {
	found := m.visibleNotes()
	switch msg.String() {
	case "up":
		if len(found) > 0 {
			m.NoteIdx = (m.NoteIdx - 1 + len(found)) % len(found)
		}
	case "down":
		if len(found) > 0 {
			m.NoteIdx = (m.NoteIdx + 1) % len(found)
		}
	case "enter":
		title, content := splitNote(m.TextInput.Value())
		if title == "" {
			m.setBanner("A note needs a title", true)
			return true
		}
		if m.EditingNoteID != "" {
			note, ok := m.App.Notes.Get(m.EditingNoteID)
			if ok {
				note.Title, note.Content = title, content
				m.App.Notes.Update(note)
			}
			m.EditingNoteID = ""
			m.setBanner("Note updated", false)
		} else {
			m.App.Notes.Create(title, content)
			m.setBanner("Note saved", false)
		}
		m.TextInput.Reset()
		m.NoteIdx = 0
		m.syncPlaceholder()
	case "ctrl+r":
		if m.NoteIdx < len(found) {
			note := found[m.NoteIdx]
			m.EditingNoteID = note.ID
			m.TextInput.SetValue(joinNote(note))
			m.syncPlaceholder()
		}
	case "ctrl+d":
		if m.NoteIdx < len(found) {
			m.App.Notes.Delete(found[m.NoteIdx].ID)
			m.NoteIdx = max(0, m.NoteIdx-1)
		}
	default:
		return false
	}
	m.updateInputLayout()
	m.UpdateViewport()
	return true
}

func (m *Model) visibleNotes() []models.Note {
	if m.EditingNoteID != "" {
		return m.App.Notes.Search("")
	}
	return m.App.Notes.Search(m.TextInput.Value())
}

func splitNote(input string) (title, content string) {
	title, content, _ = strings.Cut(input, "\n")
	return strings.TrimSpace(title), strings.TrimSpace(content)
}

func joinNote(n models.Note) string {
	if n.Content == "" {
		return n.Title
	}
	return n.Title + "\n" + n.Content
}

// Clipboard and export

func (m *Model) lastAIMessage(match func(models.Message) bool) (models.Message, bool) {
	sess, ok := m.App.Sessions.Active()
	if !ok {
		return models.Message{}, false
	}
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		if msg := sess.Messages[i]; msg.Sender == models.SenderAI && match(msg) {
			return msg, true
		}
	}
	return models.Message{}, false
}

func (m *Model) copyLastCode() {
	msg, ok := m.lastAIMessage(func(msg models.Message) bool { return msg.Code != nil })
	if !ok {
		m.setBanner("No code to copy", true)
		return
	}
	if err := m.App.Exporter.CopyCode(msg); err != nil {
		m.App.Logger.Warn("copy failed", "error", err)
		m.setBanner("Copy failed: "+err.Error(), true)
		return
	}
	m.setBanner("Code copied to clipboard", false)
}

// exportLast saves the newest image or code reply, or the whole transcript
// when there is neither.
func (m *Model) exportLast() {
	var (
		path string
		err  error
	)
	msg, ok := m.lastAIMessage(func(msg models.Message) bool { return msg.ImageURL != "" || msg.Code != nil })
	switch {
	case ok && msg.ImageURL != "":
		path, err = m.App.Exporter.SaveImage(msg)
	case ok:
		path, err = m.App.Exporter.SaveCode(msg)
	default:
		sess, active := m.App.Sessions.Active()
		if !active {
			err = errors.New("no active session")
			break
		}
		path, err = m.App.Exporter.SaveTranscript(sess)
	}
	if err != nil {
		m.App.Logger.Warn("export failed", "error", err)
		m.setBanner("Export failed: "+err.Error(), true)
		return
	}
	m.setBanner("Saved "+path, false)
}

func (m *Model) updateInputLayout() {
	if m.WindowWidth == 0 || m.WindowHeight == 0 {
		return
	}

	inputWidth := m.WindowWidth - 6
	if inputWidth < 20 {
		inputWidth = 20
	}
	contentWidth := inputWidth - 2
	if contentWidth < 1 {
		contentWidth = 1
	}

	maxInputHeight := 6
	lineCount := WrappedLineCount(m.TextInput.Value(), contentWidth)
	lineCount = min(max(lineCount, 1), maxInputHeight)

	m.TextInput.MaxHeight = maxInputHeight
	m.TextInput.SetWidth(inputWidth)
	m.TextInput.SetHeight(lineCount)

	inputBoxHeight := m.TextInput.Height() + 2
	reserved := inputBoxHeight + 6
	m.Viewport.Height = max(m.WindowHeight-reserved, 5)
}
