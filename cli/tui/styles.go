// Package tui provides the read-only Bubble Tea views behind --tui and the
// lipgloss summary banner printed after a run. Views render the same
// payloads as json/table/yaml output.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/sparring/types"
)

const (
	accent = lipgloss.Color("#2563EB")
	good   = lipgloss.Color("#16A34A")
	bad    = lipgloss.Color("#DC2626")
	even   = lipgloss.Color("#D97706")
	dim    = lipgloss.Color("#9CA3AF")
	bright = lipgloss.Color("#F9FAFB")

	// labelWidth aligns "Label:" columns in the banner and detail panes.
	labelWidth = 18
)

var base = lipgloss.NewStyle()

// Shared styles. Views derive from these rather than building their own.
var (
	TitleStyle    = base.Bold(true).Foreground(accent).MarginBottom(1)
	LabelStyle    = base.Foreground(dim).Width(labelWidth)
	ValueStyle    = base.Foreground(bright)
	SuccessStyle  = base.Foreground(good)
	ErrorStyle    = base.Foreground(bad)
	SelectedStyle = base.Bold(true).Foreground(accent)
	HelpStyle     = base.Foreground(dim).MarginTop(1)
	BoxStyle      = base.Border(lipgloss.RoundedBorder()).BorderForeground(dim).Padding(1, 2)

	// Stat boxes of the dataset view; the border color is set per box.
	StatBoxStyle   = base.Border(lipgloss.RoundedBorder()).Padding(0, 2).Width(16).Align(lipgloss.Center)
	StatLabelStyle = base.Foreground(dim).Align(lipgloss.Center)
	StatValueStyle = base.Bold(true).Foreground(bright).Align(lipgloss.Center)
)

// OutcomeStyle colors a run outcome: green when the run did its job, red
// for anything that maps to a non-zero exit.
func OutcomeStyle(outcome string) lipgloss.Style {
	switch types.OutcomeStatus(outcome) {
	case types.OutcomePass, types.OutcomeCompleted:
		return SuccessStyle
	case types.OutcomeDivergence, types.OutcomeEngineFailure,
		types.OutcomeConfigError, types.OutcomePersistenceFailure:
		return ErrorStyle
	default:
		return ValueStyle
	}
}
