package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// View types that support --tui.
const (
	ViewInspectDivergences = "inspect_divergences"
	ViewStatsDataset       = "stats_dataset"
)

// Run opens the view for viewType in the alternate screen until the user
// quits.
func Run(viewType string, data any) error {
	var model tea.Model
	switch viewType {
	case ViewInspectDivergences:
		model = NewInspectModel(data)
	case ViewStatsDataset:
		model = NewStatsModel(data)
	default:
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// IsTUISupported reports whether viewType has a TUI.
func IsTUISupported(viewType string) bool {
	for _, v := range SupportedTUIViews() {
		if v == viewType {
			return true
		}
	}
	return false
}

// SupportedTUIViews lists the view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewInspectDivergences, ViewStatsDataset}
}

type keyMap struct {
	Quit key.Binding
	Up   key.Binding
	Down key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "previous"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "next"),
	),
}
