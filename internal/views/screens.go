package views

import (
	"fmt"
	"strings"
	"time"
)

type CyclesPanelData struct {
	TableView string
	Count     int
	Running   bool
	Spinner   string
	Overruns  uint64
}

type UpcomingPanelData struct {
	TableView string
	Count     int
	Error     string
}

type FailureData struct {
	TaskID string
	Kind   string
	Stage  string
	Error  string
}

// ReportData is one cycle report flattened for display.
type ReportData struct {
	CycleID   string
	StartedAt time.Time
	Duration  time.Duration
	Evaluated int
	Skipped   int
	Claimed   int
	Sent      int
	Failed    int
	Stale     int
	Err       string
	Failures  []FailureData
}

type HelpPanelData struct {
	CurrentView string
	Bindings    []string
	HelpView    string
}

func RenderCyclesPanel(data CyclesPanelData) string {
	var b strings.Builder
	b.WriteString("cycles:\n")
	b.WriteString("actions: [r]run now [j/k]move [enter]open report\n")
	if data.Running {
		b.WriteString(fmt.Sprintf("cycle: %s running\n", data.Spinner))
	}
	if data.Overruns > 0 {
		b.WriteString(fmt.Sprintf("overlapping cycles: %d\n", data.Overruns))
	}
	if data.Count == 0 {
		b.WriteString("(no cycles yet)")
		return b.String()
	}
	b.WriteString(data.TableView)
	return strings.TrimSpace(b.String())
}

func RenderUpcomingPanel(data UpcomingPanelData) string {
	var b strings.Builder
	b.WriteString("upcoming:\n")
	b.WriteString("actions: [u]refresh [j/k]move\n")
	if data.Error != "" {
		b.WriteString("error: " + data.Error)
		return b.String()
	}
	if data.Count == 0 {
		b.WriteString("(no open tasks with deadlines)")
		return b.String()
	}
	b.WriteString(data.TableView)
	return strings.TrimSpace(b.String())
}

// ReportMarkdown describes a cycle as a markdown document.
func ReportMarkdown(r ReportData) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# Cycle %s\n\n", shortID(r.CycleID)))
	b.WriteString(fmt.Sprintf("Started **%s**, took **%s**.\n\n", r.StartedAt.UTC().Format(time.DateTime), r.Duration.Round(time.Millisecond)))
	if r.Err != "" {
		b.WriteString(fmt.Sprintf("> cycle error: %s\n\n", r.Err))
	}
	b.WriteString("| evaluated | skipped | claimed | sent | failed | stale |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	b.WriteString(fmt.Sprintf("| %d | %d | %d | %d | %d | %d |\n", r.Evaluated, r.Skipped, r.Claimed, r.Sent, r.Failed, r.Stale))
	if len(r.Failures) > 0 {
		b.WriteString("\n## Failures\n\n")
		for _, f := range r.Failures {
			if f.Kind != "" {
				b.WriteString(fmt.Sprintf("- `%s` %s (%s): %s\n", f.TaskID, f.Kind, f.Stage, f.Error))
			} else {
				b.WriteString(fmt.Sprintf("- `%s` (%s): %s\n", f.TaskID, f.Stage, f.Error))
			}
		}
	}
	return b.String()
}

func RenderCommandPalette(active bool, input string) string {
	if !active {
		return ""
	}
	return fmt.Sprintf("command: %s", input)
}

func RenderNotification(level string, body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return fmt.Sprintf("notification: [%s] %s", strings.ToUpper(level), body)
}

func RenderHelpPanel(data HelpPanelData) string {
	return fmt.Sprintf("help:\n%s view:\n%s\n%s",
		strings.ToLower(data.CurrentView),
		strings.Join(data.Bindings, "\n"),
		data.HelpView,
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}
