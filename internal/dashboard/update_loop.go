package dashboard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/remindd/internal/trigger"
	"github.com/sandeepkv93/remindd/internal/views"
)

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadUpcomingCmd()}
	if m.deps.Engine != nil {
		cmds = append(cmds, waitForResultCmd(m.deps.Engine.C()), m.cycleSpinner.Tick)
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		if m.Palette.Active {
			return m.handlePaletteKey(typed)
		}
		return m.handleKey(typed)
	case spinner.TickMsg:
		if m.Running {
			var cmd tea.Cmd
			m.cycleSpinner, cmd = m.cycleSpinner.Update(typed)
			return m, cmd
		}
		return m, nil
	case CycleResultMsg:
		m.addResult(typed.Result)
		m.syncBubbleData()
		var next tea.Cmd
		if m.deps.Engine != nil {
			next = waitForResultCmd(m.deps.Engine.C())
		}
		return m, tea.Batch(next, m.loadUpcomingCmd())
	case EngineClosedMsg:
		m.Running = false
		m.Status = StatusBar{Text: "trigger stopped"}
		return m, nil
	case UpcomingMsg:
		m.Upcoming = typed.Tasks
		m.UpcomingErr = typed.Err
		m.syncBubbleData()
		return m, nil
	case CommandResultMsg:
		if typed.Err != nil {
			m.LastError = typed.Err
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
			m.notify("Command", typed.Line+": "+typed.Err.Error(), "error")
			return m, nil
		}
		m.Status = StatusBar{Text: typed.Result.Message}
		m.notify("Command", typed.Result.Message, "info")
		return m, m.loadUpcomingCmd()
	case SwitchViewMsg:
		if isKnownView(typed.View) {
			m.CurrentView = typed.View
			m.syncBubbleData()
		}
		return m, nil
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		m.notify("Status", typed.Text, levelFromError(typed.IsError))
		return m, nil
	case ClearStatusMsg:
		m.Status = StatusBar{}
		return m, nil
	case AppErrorMsg:
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
			m.notify("Error", typed.Err.Error(), "error")
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "/":
		m.Palette.Active = true
		m.Palette.Input = ""
		m.commandInput.SetValue("")
		m.commandInput.Focus()
		m.Status = StatusBar{Text: "command palette active"}
		return m, nil
	case m.Keys.Cycles:
		m.CurrentView = ViewCycles
		return m, nil
	case m.Keys.Upcoming:
		m.CurrentView = ViewUpcoming
		return m, m.loadUpcomingCmd()
	case m.Keys.Report:
		m.CurrentView = ViewReport
		m.syncBubbleData()
		return m, nil
	case "enter":
		if m.CurrentView == ViewCycles && len(m.Reports) > 0 {
			m.CurrentView = ViewReport
			m.syncBubbleData()
		}
		return m, nil
	case m.Keys.RunNow:
		if m.deps.Engine == nil {
			m.Status = StatusBar{Text: "no trigger configured", IsError: true}
			return m, nil
		}
		m.deps.Engine.Trigger()
		m.Status = StatusBar{Text: "cycle requested"}
		if m.Running {
			return m, nil
		}
		m.Running = true
		return m, m.cycleSpinner.Tick
	case "u":
		m.Status = StatusBar{Text: "refreshing upcoming tasks"}
		return m, m.loadUpcomingCmd()
	case m.Keys.Help:
		m.HelpVisible = !m.HelpVisible
		if m.HelpVisible {
			m.Status = StatusBar{Text: "help shown"}
		} else {
			m.Status = StatusBar{Text: "help hidden"}
		}
		return m, nil
	case "ctrl+c", m.Keys.Quit:
		m.Quitting = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	switch m.CurrentView {
	case ViewCycles:
		m.cyclesTable, cmd = m.cyclesTable.Update(msg)
		m.Selected = m.cyclesTable.Cursor()
	case ViewUpcoming:
		m.upcomingTable, cmd = m.upcomingTable.Update(msg)
	case ViewReport:
		m.reportPane, cmd = m.reportPane.Update(msg)
	}
	return m, cmd
}

func (m Model) handlePaletteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.Palette = CommandPaletteState{}
		m.commandInput.Blur()
		m.Status = StatusBar{Text: "command palette closed"}
		return m, nil
	case tea.KeyEnter:
		line := strings.TrimSpace(m.commandInput.Value())
		m.Palette = CommandPaletteState{}
		m.commandInput.Blur()
		m.commandInput.SetValue("")
		if line == "" {
			return m, nil
		}
		m.Status = StatusBar{Text: "running: " + line}
		return m, m.execCmd(line)
	}
	var cmd tea.Cmd
	m.commandInput, cmd = m.commandInput.Update(msg)
	m.Palette.Input = m.commandInput.Value()
	return m, cmd
}

func (m *Model) addResult(res trigger.Result) {
	m.Running = false
	m.Reports = append([]trigger.Result{res}, m.Reports...)
	if len(m.Reports) > maxReports {
		m.Reports = m.Reports[:maxReports]
	}
	// Keep the cursor on the report the user was looking at.
	if m.Selected > 0 {
		m.Selected++
	}
	if m.Selected >= len(m.Reports) {
		m.Selected = len(m.Reports) - 1
	}

	r := res.Report
	if res.Err != nil {
		m.Status = StatusBar{Text: fmt.Sprintf("cycle %s error: %v", shortID(r.CycleID), res.Err), IsError: true}
		m.notify("Cycle", m.Status.Text, "error")
		return
	}
	m.Status = StatusBar{Text: fmt.Sprintf("cycle %s: sent %d, failed %d", shortID(r.CycleID), r.Sent, r.Failed)}
	if r.Failed > 0 {
		m.notify("Cycle", fmt.Sprintf("%d reminder(s) failed in cycle %s", r.Failed, shortID(r.CycleID)), "warn")
	}
}

func (m *Model) syncBubbleData() {
	rows := make([]table.Row, 0, len(m.Reports))
	for _, res := range m.Reports {
		r := res.Report
		failed := fmt.Sprintf("%d", r.Failed)
		if res.Err != nil {
			failed = "error"
		}
		rows = append(rows, table.Row{
			r.StartedAt.UTC().Format(time.DateTime),
			shortID(r.CycleID),
			fmt.Sprintf("%d", r.Evaluated),
			fmt.Sprintf("%d", r.Sent),
			failed,
			r.Duration.Round(time.Millisecond).String(),
		})
	}
	m.cyclesTable.SetRows(rows)
	if m.Selected >= 0 && m.Selected < len(rows) {
		m.cyclesTable.SetCursor(m.Selected)
	}

	upcoming := make([]table.Row, 0, len(m.Upcoming))
	for _, task := range m.Upcoming {
		upcoming = append(upcoming, table.Row{
			task.Deadline.UTC().Format("2006-01-02 15:04"),
			task.ID,
			task.OwnerID,
			task.Title,
		})
	}
	m.upcomingTable.SetRows(upcoming)

	if m.CurrentView == ViewReport {
		if res, ok := m.selectedReport(); ok {
			m.reportPane.SetContent(views.RenderMarkdown(views.ReportMarkdown(reportData(res)), m.reportPane.Width))
		} else {
			m.reportPane.SetContent("(no cycle selected)")
		}
	}
}

func (m Model) selectedReport() (trigger.Result, bool) {
	if m.Selected < 0 || m.Selected >= len(m.Reports) {
		return trigger.Result{}, false
	}
	return m.Reports[m.Selected], true
}

func (m Model) loadUpcomingCmd() tea.Cmd {
	if m.deps.Upcoming == nil {
		return nil
	}
	ctx, load := m.ctx, m.deps.Upcoming
	return func() tea.Msg {
		tasks, err := load(ctx, upcomingLimit)
		return UpcomingMsg{Tasks: tasks, Err: err}
	}
}

func (m Model) execCmd(line string) tea.Cmd {
	if m.deps.Exec == nil {
		return func() tea.Msg {
			return CommandResultMsg{Line: line, Err: errors.New("commands are not available")}
		}
	}
	ctx, exec := m.ctx, m.deps.Exec
	return func() tea.Msg {
		res, err := exec(ctx, line)
		return CommandResultMsg{Line: line, Result: res, Err: err}
	}
}

func waitForResultCmd(ch <-chan trigger.Result) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-ch
		if !ok {
			return EngineClosedMsg{}
		}
		return CycleResultMsg{Result: res}
	}
}

func isKnownView(v View) bool {
	switch v {
	case ViewCycles, ViewUpcoming, ViewReport:
		return true
	default:
		return false
	}
}
