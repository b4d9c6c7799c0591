package styles

import "github.com/charmbracelet/lipgloss"

// Theme defines a complete color scheme for the application
type Theme struct {
	Name string

	// Core colors
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	// Text colors
	TextPrimary   lipgloss.Color
	TextSecondary lipgloss.Color
	TextMuted     lipgloss.Color
	TextInverse   lipgloss.Color

	// Semantic colors
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color

	// UI element colors
	Border    lipgloss.Color
	Selection lipgloss.Color

	// Message labels
	User lipgloss.Color
	AI   lipgloss.Color
}

// DarkTheme is the dark mode color scheme
var DarkTheme = Theme{
	Name:      "dark",
	Primary:   lipgloss.Color("#A78BFA"), // Purple 400
	Secondary: lipgloss.Color("#22D3EE"), // Cyan 400
	Accent:    lipgloss.Color("#F472B6"), // Pink 400

	TextPrimary:   lipgloss.Color("#F1F5F9"),
	TextSecondary: lipgloss.Color("#94A3B8"),
	TextMuted:     lipgloss.Color("#64748B"),
	TextInverse:   lipgloss.Color("#0B0B0F"),

	Success: lipgloss.Color("#34D399"),
	Warning: lipgloss.Color("#FBBF24"),
	Error:   lipgloss.Color("#FB7185"),

	Border:    lipgloss.Color("#27272A"),
	Selection: lipgloss.Color("#3F3F5A"),

	User: lipgloss.Color("#7C3AED"),
	AI:   lipgloss.Color("#22D3EE"),
}

// LightTheme is the light mode color scheme
var LightTheme = Theme{
	Name:      "light",
	Primary:   lipgloss.Color("#6D28D9"), // Purple 700
	Secondary: lipgloss.Color("#0891B2"), // Cyan 600
	Accent:    lipgloss.Color("#DB2777"), // Pink 600

	TextPrimary:   lipgloss.Color("#18181B"),
	TextSecondary: lipgloss.Color("#52525B"),
	TextMuted:     lipgloss.Color("#A1A1AA"),
	TextInverse:   lipgloss.Color("#FFFFFF"),

	Success: lipgloss.Color("#10B981"),
	Warning: lipgloss.Color("#D97706"),
	Error:   lipgloss.Color("#DC2626"),

	Border:    lipgloss.Color("#E4E4E7"),
	Selection: lipgloss.Color("#DDD6FE"),

	User: lipgloss.Color("#6D28D9"),
	AI:   lipgloss.Color("#0891B2"),
}

// CurrentTheme holds the active theme
var CurrentTheme = DarkTheme

// ToolColors maps each tool label to its badge color
var ToolColors = map[string]lipgloss.Color{
	"AI Chat":      lipgloss.Color("#A78BFA"),
	"AI Writer":    lipgloss.Color("#F472B6"),
	"AI Coder":     lipgloss.Color("#34D399"),
	"AI Image Gen": lipgloss.Color("#FBBF24"),
	"Planner":      lipgloss.Color("#60A5FA"),
	"Notes":        lipgloss.Color("#FB923C"),
}

// ToolColor returns the badge color for a tool label
func ToolColor(tool string) lipgloss.Color {
	if c, ok := ToolColors[tool]; ok {
		return c
	}
	return CurrentTheme.Primary
}

// Use switches the active theme by name ("dark" or "light") and rebuilds
// every style. Unknown names select the dark theme.
func Use(name string) {
	if name == LightTheme.Name {
		CurrentTheme = LightTheme
	} else {
		CurrentTheme = DarkTheme
	}
	rebuild()
}

// GlamourStyle is the glamour standard style matching the active theme
func GlamourStyle() string {
	return CurrentTheme.Name
}
