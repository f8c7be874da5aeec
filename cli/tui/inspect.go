package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/sparring/diag"
)

// InspectModel browses a divergence archive: a list of entries on the left
// and the selected report on the right.
type InspectModel struct {
	entries  []*diag.Entry
	invalid  bool
	cursor   int
	width    int
	quitting bool
}

// NewInspectModel creates an inspect model over []*diag.Entry.
func NewInspectModel(data any) InspectModel {
	entries, ok := data.([]*diag.Entry)
	return InspectModel{entries: entries, invalid: !ok}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.entries)-1 {
				m.cursor++
			}
		}
	}
	return m, nil
}

// Selected returns the entry under the cursor, or nil.
func (m InspectModel) Selected() *diag.Entry {
	if m.cursor < 0 || m.cursor >= len(m.entries) {
		return nil
	}
	return m.entries[m.cursor]
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}
	help := HelpStyle.Render("↑/↓ select  q quit")
	switch {
	case m.invalid:
		return "Invalid data type for inspect_divergences\n" + help
	case len(m.entries) == 0:
		return TitleStyle.Render("Divergences") + "\n\n(no results)\n" + help
	}

	var list strings.Builder
	list.WriteString(TitleStyle.Render(fmt.Sprintf("Divergences (%d)", len(m.entries))))
	list.WriteString("\n")
	for i, e := range m.entries {
		line := fmt.Sprintf("%s w%d g%d ply %d", e.Report.Kind, e.Report.Worker, e.Report.Game, e.Report.Ply)
		if i == m.cursor {
			list.WriteString(SelectedStyle.Render("> " + line))
		} else {
			list.WriteString(ValueStyle.Render("  " + line))
		}
		list.WriteString("\n")
	}

	var detail strings.Builder
	e := m.Selected()
	fmt.Fprintf(&detail, "%s %s\n", LabelStyle.Render("Run ID:"), ValueStyle.Render(e.RunID))
	fmt.Fprintf(&detail, "%s %s\n", LabelStyle.Render("Recorded:"), ValueStyle.Render(e.Ts))
	if i := e.Report.FirstDifference(); i >= 0 {
		fmt.Fprintf(&detail, "%s %s\n", LabelStyle.Render("First difference:"),
			ErrorStyle.Render(fmt.Sprintf("coefficient %d", i)))
	}
	detail.WriteString("\n")
	_ = diag.FormatEntry(&detail, e, diag.DefaultTail)

	return lipgloss.JoinHorizontal(lipgloss.Top,
		BoxStyle.Render(list.String()),
		BoxStyle.Render(detail.String()),
	) + "\n" + help
}

// RenderInspectStatic renders the inspect view without starting a program.
func RenderInspectStatic(data any) string {
	return lipgloss.NewStyle().Padding(1, 2).Render(NewInspectModel(data).View())
}
