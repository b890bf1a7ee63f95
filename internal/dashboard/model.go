// Package dashboard is the terminal UI behind `remindd watch`.
package dashboard

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/sandeepkv93/remindd/internal/commands"
	"github.com/sandeepkv93/remindd/internal/model"
	"github.com/sandeepkv93/remindd/internal/notify"
	"github.com/sandeepkv93/remindd/internal/trigger"
)

type View string

const (
	ViewCycles   View = "Cycles"
	ViewUpcoming View = "Upcoming"
	ViewReport   View = "Report"
)

const (
	maxReports       = 50
	maxNotifications = 40
	upcomingLimit    = 20
)

type StatusBar struct {
	Text    string
	IsError bool
}

type GlobalKeyMap struct {
	Cycles   string
	Upcoming string
	Report   string
	RunNow   string
	Help     string
	Quit     string
}

// Engine is the part of trigger.Engine the dashboard drives.
type Engine interface {
	C() <-chan trigger.Result
	Trigger()
	Overruns() uint64
}

// Deps are the collaborators the dashboard calls out to.
type Deps struct {
	Engine Engine
	// Exec runs one command-palette line.
	Exec func(ctx context.Context, line string) (commands.Result, error)
	// Upcoming lists open tasks ordered by deadline.
	Upcoming func(ctx context.Context, limit int) ([]model.Task, error)
	// Desktop, when set, mirrors dashboard notifications to the desktop.
	Desktop notify.Notifier
}

type Notification struct {
	Title string
	Body  string
	Level string
	At    time.Time
}

type CommandPaletteState struct {
	Active bool
	Input  string
}

type Model struct {
	CurrentView   View
	Reports       []trigger.Result
	Selected      int
	Upcoming      []model.Task
	UpcomingErr   error
	Running       bool
	Palette       CommandPaletteState
	HelpVisible   bool
	Notifications []Notification
	Status        StatusBar
	Keys          GlobalKeyMap
	Quitting      bool
	LastError     error

	deps          Deps
	ctx           context.Context
	cyclesTable   table.Model
	upcomingTable table.Model
	commandInput  textinput.Model
	cycleSpinner  spinner.Model
	helpModel     help.Model
	reportPane    viewport.Model
}

// CycleResultMsg carries one finished cycle from the trigger.
type CycleResultMsg struct {
	Result trigger.Result
}

// EngineClosedMsg is sent when the trigger stops publishing results.
type EngineClosedMsg struct{}

type UpcomingMsg struct {
	Tasks []model.Task
	Err   error
}

type CommandResultMsg struct {
	Line   string
	Result commands.Result
	Err    error
}

type SwitchViewMsg struct {
	View View
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

type AppErrorMsg struct {
	Err error
}

func NewModel(ctx context.Context, deps Deps) Model {
	if ctx == nil {
		ctx = context.Background()
	}
	m := Model{
		CurrentView: ViewCycles,
		Running:     deps.Engine != nil,
		deps:        deps,
		ctx:         ctx,
		Keys: GlobalKeyMap{
			Cycles:   "1",
			Upcoming: "2",
			Report:   "3",
			RunNow:   "r",
			Help:     "?",
			Quit:     "q",
		},
	}
	m.initBubbleComponents()
	m.syncBubbleData()
	return m
}

func (m *Model) initBubbleComponents() {
	m.cyclesTable = table.New(
		table.WithColumns([]table.Column{
			{Title: "Started", Width: 19},
			{Title: "Cycle", Width: 8},
			{Title: "Eval", Width: 5},
			{Title: "Sent", Width: 5},
			{Title: "Failed", Width: 6},
			{Title: "Took", Width: 8},
		}),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	m.upcomingTable = table.New(
		table.WithColumns([]table.Column{
			{Title: "Deadline (UTC)", Width: 16},
			{Title: "Task", Width: 10},
			{Title: "Owner", Width: 10},
			{Title: "Title", Width: 24},
		}),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	m.commandInput = textinput.New()
	m.commandInput.Prompt = "/"
	m.commandInput.CharLimit = 256
	m.commandInput.Width = 48

	m.cycleSpinner = spinner.New()
	m.cycleSpinner.Spinner = spinner.Dot

	m.helpModel = help.New()
	m.reportPane = viewport.New(68, 16)
}
