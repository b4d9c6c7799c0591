package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"oneverse/internal/models"
	"oneverse/internal/styles"
)

func (m *Model) RenderSessionSelector() string {
	list := m.App.Sessions.List()
	active := m.App.Sessions.ActiveID()

	page := m.SessionIdx / SessionPageSize
	totalPages := max(1, (len(list)+SessionPageSize-1)/SessionPageSize)
	title := styles.ModalTitleStyle.Render(fmt.Sprintf("Sessions (%d) - Page %d/%d", len(list), page+1, totalPages))

	var body string
	if len(list) == 0 {
		body = styles.ModalItemStyle.Render(lipgloss.NewStyle().Foreground(styles.HintColor).Render("No sessions yet"))
	} else {
		start := page * SessionPageSize
		end := min(start+SessionPageSize, len(list))
		items := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			sess := list[i]
			isSelected := i == m.SessionIdx
			cursor := "  "
			if isSelected {
				cursor = "> "
			}
			marker := " "
			if sess.ID == active {
				marker = "●"
			}
			timeStr := RelativeTime(sess.CreatedAt)
			label := PromptPreview(sess.Title)
			if sess.ID == m.RenamingID {
				label = m.ModalInput.View()
			} else {
				availableWidth := styles.ContentWidth - 4 - len(cursor) - len(timeStr)
				label = TruncateRunes(label, availableWidth)
			}

			itemContent := fmt.Sprintf("%s%s %s %s", cursor, marker, label, lipgloss.NewStyle().Foreground(styles.HintColor).Render(timeStr))
			if isSelected {
				items = append(items, styles.ModalSelectedStyle.Render(itemContent))
			} else {
				items = append(items, styles.ModalItemStyle.Render(itemContent))
			}
		}
		body = lipgloss.JoinVertical(lipgloss.Left, items...)
	}

	hintText := "↑/↓: navigate • Enter: open • n: new • r: rename • d: delete • Esc: close"
	switch {
	case m.ConfirmDelete != "":
		hintText = "Delete this session? y: confirm • any other key: cancel"
	case m.RenamingID != "":
		hintText = "Enter: save title • Esc: cancel"
	}
	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render(hintText)

	return lipgloss.JoinVertical(lipgloss.Left, title, body, hint)
}

func (m *Model) RenderToolSelector() string {
	title := styles.ModalTitleStyle.Render("Select Tool")

	items := make([]string, 0, len(models.AllTools))
	for i, tool := range models.AllTools {
		name := "  " + string(tool)
		if tool == m.ActiveTool {
			name = "● " + string(tool)
		}
		if tool.Local() {
			name += lipgloss.NewStyle().Foreground(styles.HintColor).Render("  offline")
		}
		if i == m.ToolIdx {
			items = append(items, styles.ModalSelectedStyle.Render(name))
			continue
		}
		style := styles.ModalItemStyle.Foreground(styles.ToolColor(string(tool)))
		items = append(items, style.Render(name))
	}

	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("↑/↓: navigate • Enter: select • Esc: close")

	return lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, items...), hint)
}

func (m *Model) RenderAPIKeyModal() string {
	title := styles.ModalTitleStyle.Render("API Key")

	desc := fmt.Sprintf("OneVerse uses the %s backend. The key is stored locally.", m.App.Config.Backend)
	state := styles.ErrorStyle.Render("No key configured")
	if m.App.Gateway.HasCredential() {
		state = styles.SuccessStyle.Render("A key is configured")
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		styles.DescStyle.Width(styles.ContentWidth).Render(desc),
		state,
		"",
		styles.InputBoxStyle.Width(styles.ContentWidth-2).Render(m.ModalInput.View()),
	)

	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("Enter: save • Ctrl+D: remove key • Esc: close")

	return lipgloss.JoinVertical(lipgloss.Left, title, body, hint)
}

func (m *Model) RenderShortcutsModal() string {
	title := styles.ModalTitleStyle.Render("Keyboard Shortcuts")

	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Ctrl+C", "Quit Application"},
		{"Esc", "Stop generation / Quit"},
		{"Ctrl+N", "New Session"},
		{"Ctrl+H", "Sessions"},
		{"Ctrl+T", "Select Tool"},
		{"Ctrl+O", "Cycle tone, language or aspect"},
		{"Ctrl+Y", "Copy last code block"},
		{"Ctrl+E", "Save image, code or transcript"},
		{"Ctrl+K", "API Key"},
		{"Ctrl+L", "Toggle Theme"},
		{"Ctrl+P", "Toggle Speech"},
		{"Ctrl+D", "Delete task or note"},
		{"Ctrl+R", "Clear done tasks / Edit note"},
		{"Ctrl+S", "View Shortcuts (this menu)"},
	}

	var items []string
	for _, s := range shortcuts {
		line := fmt.Sprintf("%s %s", styles.KeyStyle.Render(s.key), styles.DescStyle.Render(s.desc))
		items = append(items, styles.ModalItemStyle.Render(line))
	}

	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("Esc/Enter: close")

	return lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, items...), hint)
}

func (m *Model) RenderBottomBar() string {
	tool := lipgloss.NewStyle().
		Bold(true).
		Foreground(styles.CurrentTheme.TextInverse).
		Background(styles.ToolColor(string(m.ActiveTool))).
		Padding(0, 1).
		Render(strings.ToUpper(string(m.ActiveTool)))

	option := lipgloss.NewStyle().
		Foreground(styles.CurrentTheme.Secondary).
		Render(m.optionLabel())

	sessionTitle := "no session"
	if sess, ok := m.App.Sessions.Active(); ok {
		sessionTitle = sess.Title
	}
	session := lipgloss.NewStyle().
		Foreground(styles.CurrentTheme.TextSecondary).
		Render(TruncateRunes(sessionTitle, 25))

	backend := lipgloss.NewStyle().
		Foreground(styles.CurrentTheme.Accent).
		Render(string(m.App.Config.Backend))

	keyState := styles.SuccessStyle.Render("key ✓")
	if !m.App.Gateway.HasCredential() {
		keyState = styles.ErrorStyle.Render("offline")
	}

	speech := "speech off"
	if m.App.Prefs.SpeechEnabled() {
		speech = "speech on"
	}
	speech = lipgloss.NewStyle().Foreground(styles.HintColor).Render(speech)

	help := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Render("Help: ^S")

	leftSide := lipgloss.JoinHorizontal(lipgloss.Center, tool, "  ", option, "  ", session)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Center, backend, "  ", keyState, "  ", speech, "  ", help)

	availableWidth := max(m.WindowWidth-lipgloss.Width(leftSide)-lipgloss.Width(rightSide)-2, 0)
	bar := lipgloss.JoinHorizontal(lipgloss.Center, leftSide, strings.Repeat(" ", availableWidth), rightSide)

	return lipgloss.NewStyle().
		Width(m.WindowWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.CurrentTheme.Border).
		Padding(0, 1).
		Render(bar)
}

// optionLabel describes the option the active tool sends with a request
func (m *Model) optionLabel() string {
	switch m.ActiveTool {
	case models.ToolWriter:
		return "tone: " + string(m.Tone)
	case models.ToolCode:
		return "lang: " + m.Language
	case models.ToolImage:
		return "aspect: " + string(m.Aspect)
	case models.ToolPlanner:
		done, total := m.App.Planner.Stats()
		return fmt.Sprintf("%d/%d done", done, total)
	case models.ToolNotes:
		return fmt.Sprintf("%d notes", m.App.Notes.Len())
	}
	return ""
}

func GetWelcomeScreen(width, height int) string {
	art := `
 ╭──────────────────────────────────────────────────╮
 │                                                  │
 │    ██████  ███    ██ ███████                     │
 │   ██    ██ ████   ██ ██                          │
 │   ██    ██ ██ ██  ██ █████   V E R S E           │
 │   ██    ██ ██  ██ ██ ██                          │
 │    ██████  ██   ████ ███████                     │
 │                                                  │
 ╰──────────────────────────────────────────────────╯
`
	subtitle := "Chat, write, code and imagine. Plan and note in one place."

	styledArt := styles.WelcomeArtStyle.Render(art)
	styledSubtitle := styles.WelcomeSubtitleStyle.Render(subtitle)
	tip := lipgloss.NewStyle().Foreground(styles.HintColor).Render("Ctrl+T picks a tool • Ctrl+S lists shortcuts")

	content := lipgloss.JoinVertical(lipgloss.Center, styledArt, "", styledSubtitle, tip)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) UpdateViewport() {
	switch m.ActiveTool {
	case models.ToolPlanner:
		m.Viewport.SetContent(m.renderPlanner())
		return
	case models.ToolNotes:
		m.Viewport.SetContent(m.renderNotes())
		return
	}

	sess, ok := m.App.Sessions.Active()
	if !ok || len(sess.Messages) == 0 {
		m.Viewport.SetContent(GetWelcomeScreen(m.Viewport.Width, m.Viewport.Height))
		return
	}

	parts := make([]string, 0, len(sess.Messages))
	for i, msg := range sess.Messages {
		if msg.Sender == models.SenderUser {
			parts = append(parts, FormatUserMessage(msg.Text, m.Viewport.Width, i == 0))
			continue
		}
		inFlight := m.Loading && i == len(sess.Messages)-1
		parts = append(parts, FormatAIMessage(m.renderReply(msg, inFlight), msg.ToolOrDefault()))
	}
	m.Viewport.SetContent(strings.Join(parts, "\n\n"))
	m.Viewport.GotoBottom()
}

// renderReply renders the body of an AI message. An empty reply is either
// still pending or was stopped before anything arrived.
func (m *Model) renderReply(msg models.Message, inFlight bool) string {
	switch {
	case msg.Code != nil:
		header := styles.CodeHeaderStyle.Render(msg.Code.Language)
		return header + "\n" + m.renderMarkdown(fmt.Sprintf("```%s\n%s\n```", strings.ToLower(msg.Code.Language), msg.Code.Content))
	case msg.ImageURL != "":
		size := len(msg.ImageURL) * 3 / 4 / 1024
		line := fmt.Sprintf("  🖼  image (%s, ~%d KB)", imageKind(msg.ImageURL), size)
		hint := lipgloss.NewStyle().Foreground(styles.HintColor).Render("  Ctrl+E to save")
		return line + "\n" + hint
	case msg.Text == "" && inFlight:
		return fmt.Sprintf("  %s Generating...", m.Spinner.View())
	case msg.Text == "":
		return lipgloss.NewStyle().Foreground(styles.HintColor).Italic(true).Render("  (stopped)")
	}
	return m.renderMarkdown(msg.Text)
}

func (m *Model) renderMarkdown(s string) string {
	if m.Renderer == nil {
		return s
	}
	out, err := m.Renderer.Render(s)
	if err != nil {
		return s
	}
	return strings.TrimRight(out, "\n")
}

func imageKind(uri string) string {
	meta, _, _ := strings.Cut(strings.TrimPrefix(uri, "data:"), ";")
	if meta == "" {
		return "unknown"
	}
	return meta
}

func (m *Model) renderPlanner() string {
	tasks := m.App.Planner.List()
	done, total := m.App.Planner.Stats()

	header := styles.TitleStyle.Render(fmt.Sprintf("Planner  %d/%d done", done, total))
	if total == 0 {
		empty := lipgloss.NewStyle().Foreground(styles.HintColor).Render("  No tasks yet. Type one below and press Enter.")
		return lipgloss.JoinVertical(lipgloss.Left, header, "", empty)
	}

	lines := []string{header, ""}
	for i, task := range tasks {
		box := "[ ]"
		text := task.Text
		if task.Completed {
			box = "[x]"
			text = styles.DoneTaskStyle.Render(text)
		}
		cursor := "  "
		if i == m.TaskIdx {
			cursor = "> "
		}
		lines = append(lines, fmt.Sprintf("%s%s %s", cursor, box, text))
	}
	lines = append(lines, "", lipgloss.NewStyle().Foreground(styles.HintColor).Render(
		"  Enter on empty input: toggle • Ctrl+D: delete • Ctrl+R: clear done"))
	return strings.Join(lines, "\n")
}

func (m *Model) renderNotes() string {
	found := m.visibleNotes()
	header := styles.TitleStyle.Render(fmt.Sprintf("Notes  %d/%d", len(found), m.App.Notes.Len()))
	if m.EditingNoteID != "" {
		header += lipgloss.NewStyle().Foreground(styles.CurrentTheme.Warning).Render("  editing")
	}

	if len(found) == 0 {
		msg := "  No notes yet. Type a title and press Enter."
		if m.App.Notes.Len() > 0 {
			msg = "  No notes match."
		}
		return lipgloss.JoinVertical(lipgloss.Left, header, "", lipgloss.NewStyle().Foreground(styles.HintColor).Render(msg))
	}

	lines := []string{header, ""}
	width := max(m.Viewport.Width-6, 10)
	for i, note := range found {
		title := lipgloss.NewStyle().Bold(true).Foreground(styles.ToolColor(string(models.ToolNotes))).Render(note.Title)
		when := lipgloss.NewStyle().Foreground(styles.HintColor).Render(RelativeTime(note.CreatedAt))
		cursor := "  "
		if i == m.NoteIdx {
			cursor = "> "
		}
		lines = append(lines, fmt.Sprintf("%s%s  %s", cursor, title, when))
		if note.Content != "" {
			lines = append(lines, "    "+styles.DescStyle.Render(TruncateRunes(PromptPreview(note.Content), width)))
		}
	}
	lines = append(lines, "", lipgloss.NewStyle().Foreground(styles.HintColor).Render(
		"  Ctrl+R: edit • Ctrl+D: delete • Esc: cancel edit"))
	return strings.Join(lines, "\n")
}

func (m *Model) renderBanner() string {
	if m.Banner == "" {
		return ""
	}
	if m.BannerErr {
		return styles.ErrorStyle.Render(m.Banner)
	}
	return styles.SuccessStyle.Render(m.Banner)
}

func (m *Model) View() string {
	inputWidth := m.WindowWidth - 4
	inputBox := styles.InputBoxStyle.Width(inputWidth).Render(m.TextInput.View())

	parts := []string{
		styles.TitleStyle.Render(strings.ToUpper(m.App.HeaderTitle())),
		"",
		m.Viewport.View(),
	}
	if banner := m.renderBanner(); banner != "" {
		parts = append(parts, banner)
	} else {
		parts = append(parts, "")
	}
	parts = append(parts, inputBox)

	chatArea := lipgloss.PlaceHorizontal(m.WindowWidth, lipgloss.Center, lipgloss.JoinVertical(lipgloss.Center, parts...))
	content := lipgloss.JoinVertical(lipgloss.Left, chatArea, m.RenderBottomBar())

	var modal string
	switch m.Overlay {
	case overlaySessions:
		modal = m.RenderSessionSelector()
	case overlayTools:
		modal = m.RenderToolSelector()
	case overlayAPIKey:
		modal = m.RenderAPIKeyModal()
	case overlayShortcuts:
		modal = m.RenderShortcutsModal()
	default:
		return content
	}

	modal = styles.ModalStyle.Width(m.ModalWidth).Render(modal)
	return lipgloss.Place(
		m.WindowWidth,
		m.WindowHeight,
		lipgloss.Center,
		lipgloss.Center,
		modal,
	)
}
