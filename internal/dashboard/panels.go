package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/remindd/internal/trigger"
	"github.com/sandeepkv93/remindd/internal/views"
)

func (m Model) View() string {
	status := ""
	if m.Status.Text != "" {
		if m.Status.IsError {
			status = fmt.Sprintf("status: error: %s", m.Status.Text)
		} else {
			status = fmt.Sprintf("status: %s", m.Status.Text)
		}
	}

	leftPane := ""
	switch m.CurrentView {
	case ViewCycles:
		var overruns uint64
		if m.deps.Engine != nil {
			overruns = m.deps.Engine.Overruns()
		}
		leftPane = views.RenderCyclesPanel(views.CyclesPanelData{
			TableView: m.cyclesTable.View(),
			Count:     len(m.Reports),
			Running:   m.Running,
			Spinner:   m.cycleSpinner.View(),
			Overruns:  overruns,
		})
	case ViewUpcoming:
		errText := ""
		if m.UpcomingErr != nil {
			errText = m.UpcomingErr.Error()
		}
		leftPane = views.RenderUpcomingPanel(views.UpcomingPanelData{
			TableView: m.upcomingTable.View(),
			Count:     len(m.Upcoming),
			Error:     errText,
		})
	case ViewReport:
		leftPane = "report:\n" + m.reportPane.View()
	}
	rightPane := strings.TrimSpace(strings.Join([]string{
		views.RenderCommandPalette(m.Palette.Active, m.commandInput.View()),
		m.renderHelpIfVisible(),
	}, "\n"))

	notification, noticeLevel := "", ""
	if len(m.Notifications) > 0 {
		n := m.Notifications[len(m.Notifications)-1]
		notification = views.RenderNotification(n.Level, n.Body)
		noticeLevel = n.Level
	}
	return views.RenderFrame(views.Frame{
		Title:       "remindd",
		Badges:      []string{fmt.Sprintf("view: %s", m.CurrentView), fmt.Sprintf("cycles: %d", len(m.Reports))},
		Main:        leftPane,
		Side:        rightPane,
		Status:      status,
		StatusError: m.Status.IsError,
		Notice:      notification,
		NoticeLevel: noticeLevel,
		Keys: fmt.Sprintf("keys: %s cycles | %s upcoming | %s report | %s run | / cmd | %s help | %s quit",
			m.Keys.Cycles, m.Keys.Upcoming, m.Keys.Report, m.Keys.RunNow, m.Keys.Help, m.Keys.Quit),
	})
}

func (m *Model) notify(title, body, level string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	n := Notification{
		Title: title,
		Body:  body,
		Level: level,
		At:    time.Now().UTC(),
	}
	m.Notifications = append(m.Notifications, n)
	if len(m.Notifications) > maxNotifications {
		m.Notifications = m.Notifications[len(m.Notifications)-maxNotifications:]
	}
	if m.deps.Desktop != nil && level != "info" {
		_ = m.deps.Desktop.Send(context.Background(), "", "remindd: "+n.Title, n.Body)
	}
}

func reportData(res trigger.Result) views.ReportData {
	r := res.Report
	out := views.ReportData{
		CycleID:   r.CycleID,
		StartedAt: r.StartedAt,
		Duration:  r.Duration,
		Evaluated: r.Evaluated,
		Skipped:   r.Skipped,
		Claimed:   r.Claimed,
		Sent:      r.Sent,
		Failed:    r.Failed,
		Stale:     r.Stale,
	}
	if res.Err != nil {
		out.Err = res.Err.Error()
	}
	for _, f := range r.Failures {
		fd := views.FailureData{TaskID: f.TaskID, Kind: string(f.Kind), Stage: string(f.Stage)}
		if f.Err != nil {
			fd.Error = f.Err.Error()
		}
		out.Failures = append(out.Failures, fd)
	}
	return out
}

func levelFromError(isErr bool) string {
	if isErr {
		return "error"
	}
	return "info"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
