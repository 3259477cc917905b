package style

import (
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/rescp17/sneakvlc/pkg/feed"
	"github.com/rescp17/sneakvlc/pkg/transfer"
)

// --- Reusable Colors ---
var (
	colorPink      = lipgloss.Color("205")
	colorDarkGray  = lipgloss.Color("240")
	colorLightGray = lipgloss.Color("229")
	colorBlue      = lipgloss.Color("57")
	colorCyan      = lipgloss.Color("212")
	colorGreen     = lipgloss.Color("42")
	colorYellow    = lipgloss.Color("214")
	colorRed       = lipgloss.Color("196")
)

// --- General Purpose Styles ---
var (
	ErrorStyle         = lipgloss.NewStyle().Foreground(colorRed)
	SuccessStyle       = lipgloss.NewStyle().Foreground(colorGreen)
	BaseStyle          = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(colorDarkGray)
	HighlightFontStyle = lipgloss.NewStyle().Foreground(colorCyan)
	DocStyle           = lipgloss.NewStyle().Margin(1, 2)
	TitleStyle         = lipgloss.NewStyle().Bold(true).Foreground(colorPink)
	HelpStyle          = lipgloss.NewStyle().Faint(true)
	HeaderStyle        = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	LabelStyle         = lipgloss.NewStyle().Foreground(colorDarkGray)
)

// FeedStateStyle colors the live indicator.
func FeedStateStyle(s feed.State) lipgloss.Style {
	if s == feed.Connected {
		return lipgloss.NewStyle().Foreground(colorGreen)
	}
	return lipgloss.NewStyle().Foreground(colorRed)
}

// SessionStateStyle colors a transfer state label.
func SessionStateStyle(s transfer.State) lipgloss.Style {
	switch s {
	case transfer.StateCompleted:
		return SuccessStyle
	case transfer.StateFailed:
		return ErrorStyle
	case transfer.StateConnecting, transfer.StateConnected:
		return lipgloss.NewStyle().Foreground(colorYellow)
	default:
		return HighlightFontStyle
	}
}

// --- Common Components ---

// NewSpinner creates a spinner with a consistent style.
func NewSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPink)
	return s
}

// NewTableStyles returns the default styles for tables, with our custom selection style.
func NewTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Selected = styles.Selected.Foreground(colorLightGray).Background(colorBlue).Bold(false)
	return styles
}

// NewProgress returns the transfer progress bar.
func NewProgress() progress.Model {
	return progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
}
