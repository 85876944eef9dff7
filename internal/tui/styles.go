package tui

import "github.com/charmbracelet/lipgloss"

const (
	colorPrimary = "#7D56F4"
	colorSuccess = "#04B575"
	colorWarning = "#F2C14E"
	colorError   = "#FF5F5F"
	colorDim     = "#626262"
	colorText    = "#FAFAFA"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary)).
			MarginBottom(1)

	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorDim))

	StatusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorSuccess))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorWarning))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorError))

	segmentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorPrimary))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorSuccess)).Bold(true)
	playheadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarning)).Bold(true)
	trackStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorDim))

	cardStyle = lipgloss.NewStyle().PaddingLeft(2)

	cursorCardStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color(colorPrimary))

	emphasisCardStyle = lipgloss.NewStyle().
				PaddingLeft(1).
				Bold(true).
				Foreground(lipgloss.Color(colorText)).
				Background(lipgloss.Color(colorPrimary))

	summaryStyle = lipgloss.NewStyle().
			PaddingLeft(6).
			Italic(true).
			Foreground(lipgloss.Color(colorDim))
)
