package views

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const (
	mainWidth = 70
	sideWidth = 46
)

// Frame is everything the dashboard draws in one refresh.
type Frame struct {
	Title string
	// Badges are short counters shown next to the title, e.g. "cycles: 3".
	Badges      []string
	Main        string
	Side        string
	Status      string
	StatusError bool
	Notice      string
	NoticeLevel string
	Keys        string
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	badgeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	keyHelpText = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func levelStyle(level string) lipgloss.Style {
	switch level {
	case "error":
		return failStyle
	case "warn":
		return warnStyle
	default:
		return okStyle
	}
}

func RenderFrame(f Frame) string {
	header := titleStyle.Render(f.Title)
	if len(f.Badges) > 0 {
		header += "  " + badgeStyle.Render(strings.Join(f.Badges, " | "))
	}

	panes := []string{boxStyle.Width(mainWidth).Render(f.Main)}
	if strings.TrimSpace(f.Side) != "" {
		panes = append(panes, boxStyle.Width(sideWidth).Render(f.Side))
	}

	out := []string{header, lipgloss.JoinHorizontal(lipgloss.Top, panes...)}
	if f.Status != "" {
		if f.StatusError {
			out = append(out, failStyle.Render(f.Status))
		} else {
			out = append(out, okStyle.Render(f.Status))
		}
	}
	if f.Notice != "" {
		out = append(out, boxStyle.BorderForeground(levelStyle(f.NoticeLevel).GetForeground()).Render(f.Notice))
	}
	if f.Keys != "" {
		out = append(out, keyHelpText.Render(f.Keys))
	}
	return strings.Join(out, "\n")
}

// RenderMarkdown renders md for a pane width columns wide. On renderer
// failure the raw markdown is returned.
func RenderMarkdown(md string, width int) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}
