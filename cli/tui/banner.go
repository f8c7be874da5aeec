package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// BannerField is one labelled line of a banner.
type BannerField struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// Banner is the single summary printed when a run ends.
type Banner struct {
	Title   string        `json:"title" yaml:"title"`
	Outcome string        `json:"outcome" yaml:"outcome"`
	Fields  []BannerField `json:"fields" yaml:"fields"`
}

// Render draws the banner in a rounded box. Without color the box keeps
// its border but drops every foreground color.
func (b Banner) Render(color bool) string {
	title, label, value, outcome, box := TitleStyle, LabelStyle, ValueStyle, OutcomeStyle(b.Outcome), BoxStyle
	if !color {
		plain := lipgloss.NewStyle()
		title = plain.Bold(true)
		label = plain.Width(LabelStyle.GetWidth())
		value, outcome = plain, plain
		box = plain.Border(lipgloss.RoundedBorder()).Padding(0, 1)
	}

	var s strings.Builder
	s.WriteString(title.Render(b.Title))
	s.WriteString("\n")
	fmt.Fprintf(&s, "%s %s", label.Render("Outcome:"), outcome.Render(b.Outcome))
	for _, f := range b.Fields {
		fmt.Fprintf(&s, "\n%s %s", label.Render(f.Label+":"), value.Render(f.Value))
	}
	return box.Render(s.String())
}
