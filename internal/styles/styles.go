package styles

import "github.com/charmbracelet/lipgloss"

var (
	ContentWidth = 54
)

var (
	TitleStyle           lipgloss.Style
	InfoStyle            lipgloss.Style
	UserLabelStyle       lipgloss.Style
	UserMsgStyle         lipgloss.Style
	AiLabelStyle         lipgloss.Style
	AiMsgStyle           lipgloss.Style
	ErrorStyle           lipgloss.Style
	SuccessStyle         lipgloss.Style
	CodeHeaderStyle      lipgloss.Style
	InputBoxStyle        lipgloss.Style
	WelcomeArtStyle      lipgloss.Style
	WelcomeSubtitleStyle lipgloss.Style
	ModalStyle           lipgloss.Style
	ModalTitleStyle      lipgloss.Style
	ModalItemStyle       lipgloss.Style
	ModalSelectedStyle   lipgloss.Style
	KeyStyle             lipgloss.Style
	DescStyle            lipgloss.Style
	DoneTaskStyle        lipgloss.Style
	HintColor            lipgloss.Color
)

func init() {
	rebuild()
}

func rebuild() {
	t := CurrentTheme

	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		Padding(0, 1)

	InfoStyle = lipgloss.NewStyle().
		Foreground(t.TextMuted)

	UserLabelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(t.User).
		Bold(true).
		Padding(0, 1).
		MarginRight(1)

	UserMsgStyle = lipgloss.NewStyle().
		Foreground(t.TextPrimary).
		PaddingLeft(2).
		BorderLeft(true).
		BorderStyle(lipgloss.ThickBorder()).
		BorderForeground(t.User)

	AiLabelStyle = lipgloss.NewStyle().
		Foreground(t.TextInverse).
		Background(t.AI).
		Bold(true).
		Padding(0, 1).
		MarginRight(1)

	AiMsgStyle = lipgloss.NewStyle().
		Foreground(t.TextPrimary).
		BorderLeft(true).
		BorderStyle(lipgloss.ThickBorder()).
		BorderForeground(t.AI)

	ErrorStyle = lipgloss.NewStyle().
		Foreground(t.Error).
		Bold(true)

	SuccessStyle = lipgloss.NewStyle().
		Foreground(t.Success)

	CodeHeaderStyle = lipgloss.NewStyle().
		Foreground(t.TextSecondary).
		Italic(true).
		PaddingLeft(2)

	InputBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(0, 1)

	WelcomeArtStyle = lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true)

	WelcomeSubtitleStyle = lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Italic(true)

	ModalStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2)

	ModalTitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		Width(ContentWidth).
		MarginBottom(1)

	ModalItemStyle = lipgloss.NewStyle().
		Padding(0, 1).
		Width(ContentWidth).
		Foreground(t.TextPrimary)

	ModalSelectedStyle = lipgloss.NewStyle().
		Padding(0, 1).
		Width(ContentWidth).
		Background(t.Selection).
		Foreground(t.TextPrimary)

	KeyStyle = lipgloss.NewStyle().
		Foreground(t.Warning).
		Bold(true).
		Width(12)

	DescStyle = lipgloss.NewStyle().
		Foreground(t.TextSecondary)

	DoneTaskStyle = lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Strikethrough(true)

	HintColor = t.TextMuted
}

// SetContentWidth resizes the modal content width
func SetContentWidth(w int) {
	ContentWidth = w
	rebuild()
}
