package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/sparring/lode"
)

// StatsModel shows a dataset summary as stat boxes.
type StatsModel struct {
	data     any
	width    int
	quitting bool
}

// NewStatsModel creates a stats model over a *lode.Summary.
func NewStatsModel(data any) StatsModel {
	return StatsModel{data: data}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}
	return m.renderSummary() + "\n" + HelpStyle.Render("Press q or Ctrl+C to quit")
}

func (m StatsModel) renderSummary() string {
	s, ok := m.data.(*lode.Summary)
	if !ok {
		return "Invalid data type for stats_dataset"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Dataset Statistics"))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		renderStatBox("Rows", s.Rows, accent),
		renderStatBox("Wins", s.Wins, good),
		renderStatBox("Draws", s.Draws, even),
		renderStatBox("Losses", s.Losses, bad),
	))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Columns:"), ValueStyle.Render(fmt.Sprintf("%d", s.Columns)))
	if s.Ragged > 0 {
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Ragged rows:"), ErrorStyle.Render(fmt.Sprintf("%d", s.Ragged)))
	}
	if len(s.Runs) > 0 {
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render("Runs:"), ValueStyle.Render(strings.Join(s.Runs, ", ")))
	}
	return b.String()
}

func renderStatBox(label string, value int64, color lipgloss.Color) string {
	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, StatLabelStyle.Render(label))
	return StatBoxStyle.BorderForeground(color).Render(content)
}

// RenderStatsStatic renders the stats view without starting a program.
func RenderStatsStatic(data any) string {
	return lipgloss.NewStyle().Padding(1, 2).Render(NewStatsModel(data).View())
}
