package setup

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	primaryColor = lipgloss.Color("205") // Pink/magenta
	successColor = lipgloss.Color("35")  // Green
	dimColor     = lipgloss.Color("241") // Gray
	accentColor  = lipgloss.Color("39")  // Blue
	borderColor  = lipgloss.Color("62")  // Purple

	// Box style for welcome/complete screens
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(1, 2)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	DimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	// Step indicator (e.g., "Step 1 of 4")
	StepStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // Red

	HelpStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(primaryColor)
)
