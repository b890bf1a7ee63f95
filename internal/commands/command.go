package commands

import (
	"fmt"
	"strings"
)

type Type string

const (
	TypeRun           Type = "run"
	TypeServe         Type = "serve"
	TypeWatch         Type = "watch"
	TypeTimezone      Type = "timezone"
	TypeDeadline      Type = "deadline"
	TypeNotifications Type = "notifications"
	TypeStatus        Type = "status"
	TypeMigrate       Type = "migrate"
	TypeUser          Type = "user"
	TypeTask          Type = "task"
	TypeDelete        Type = "delete"
	TypeUpcoming      Type = "upcoming"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type TimezoneArgs struct {
	UserID string
	Zone   string
}

type DeadlineArgs struct {
	TaskID string
	Local  string
}

type NotificationsArgs struct {
	UserID  string
	Enabled bool
}

type StatusArgs struct {
	TaskID string
	Done   bool
}

type MigrateArgs struct {
	Up bool
}

type UserArgs struct {
	ID    string
	Email string
	Zone  string
	Name  string
}

type TaskArgs struct {
	OwnerID string
	Local   string
	Title   string
}

type DeleteArgs struct {
	Kind string
	ID   string
}

type UpcomingArgs struct {
	UserID string
}

type Command struct {
	Type          Type
	Raw           string
	Timezone      *TimezoneArgs
	Deadline      *DeadlineArgs
	Notifications *NotificationsArgs
	Status        *StatusArgs
	Migrate       *MigrateArgs
	User          *UserArgs
	Task          *TaskArgs
	Delete        *DeleteArgs
	Upcoming      *UpcomingArgs
}

// Parse reads a single command line. A leading slash is accepted so the
// dashboard prompt and the shell share one grammar.
func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	return parse(input, strings.Fields(raw))
}

// ParseArgs reads os.Args-style arguments without the program name.
func ParseArgs(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	return parse(strings.Join(args, " "), args)
}

func parse(raw string, parts []string) (Command, error) {
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeRun, TypeServe, TypeWatch:
		if len(args) != 0 {
			return Command{}, invalid("%s takes no arguments", head)
		}
		return Command{Type: Type(head), Raw: raw}, nil
	case TypeTimezone:
		return parseTimezone(raw, args)
	case TypeDeadline:
		return parseDeadline(raw, args)
	case TypeNotifications:
		return parseNotifications(raw, args)
	case TypeStatus:
		return parseStatus(raw, args)
	case TypeMigrate:
		return parseMigrate(raw, args)
	case TypeUser:
		return parseUser(raw, args)
	case TypeTask:
		return parseTask(raw, args)
	case TypeDelete:
		return parseDelete(raw, args)
	case TypeUpcoming:
		if len(args) != 1 {
			return Command{}, invalid("upcoming requires a user")
		}
		return Command{Type: TypeUpcoming, Raw: raw, Upcoming: &UpcomingArgs{UserID: args[0]}}, nil
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func invalid(format string, a ...any) *CommandError {
	return &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf(format, a...)}
}

func parseTimezone(raw string, args []string) (Command, error) {
	if len(args) != 2 {
		return Command{}, invalid("timezone requires user and zone")
	}
	return Command{Type: TypeTimezone, Raw: raw, Timezone: &TimezoneArgs{UserID: args[0], Zone: args[1]}}, nil
}

func parseDeadline(raw string, args []string) (Command, error) {
	if len(args) != 2 {
		return Command{}, invalid("deadline requires task and YYYY-MM-DDTHH:MM")
	}
	return Command{Type: TypeDeadline, Raw: raw, Deadline: &DeadlineArgs{TaskID: args[0], Local: args[1]}}, nil
}

func parseNotifications(raw string, args []string) (Command, error) {
	if len(args) != 2 {
		return Command{}, invalid("notifications requires user and on|off")
	}
	enabled, ok := parseSwitch(args[1])
	if !ok {
		return Command{}, invalid("notifications expects on or off, got %q", args[1])
	}
	return Command{Type: TypeNotifications, Raw: raw, Notifications: &NotificationsArgs{UserID: args[0], Enabled: enabled}}, nil
}

func parseStatus(raw string, args []string) (Command, error) {
	if len(args) != 2 {
		return Command{}, invalid("status requires task and done|open")
	}
	var done bool
	switch strings.ToLower(args[1]) {
	case "done", "complete":
		done = true
	case "open", "in-progress":
		done = false
	default:
		return Command{}, invalid("status expects done or open, got %q", args[1])
	}
	return Command{Type: TypeStatus, Raw: raw, Status: &StatusArgs{TaskID: args[0], Done: done}}, nil
}

func parseMigrate(raw string, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, invalid("migrate requires up or down")
	}
	switch strings.ToLower(args[0]) {
	case "up":
		return Command{Type: TypeMigrate, Raw: raw, Migrate: &MigrateArgs{Up: true}}, nil
	case "down":
		return Command{Type: TypeMigrate, Raw: raw, Migrate: &MigrateArgs{Up: false}}, nil
	default:
		return Command{}, invalid("migrate expects up or down, got %q", args[0])
	}
}

// user <id> <email> [zone] [name...]
func parseUser(raw string, args []string) (Command, error) {
	if len(args) < 2 {
		return Command{}, invalid("user requires id and email")
	}
	if !strings.Contains(args[1], "@") {
		return Command{}, invalid("user email %q is not an address", args[1])
	}
	out := &UserArgs{ID: args[0], Email: args[1]}
	if len(args) > 2 {
		out.Zone = args[2]
	}
	if len(args) > 3 {
		out.Name = strings.Join(args[3:], " ")
	}
	return Command{Type: TypeUser, Raw: raw, User: out}, nil
}

// task <user> <YYYY-MM-DDTHH:MM> <title...>
func parseTask(raw string, args []string) (Command, error) {
	if len(args) < 3 {
		return Command{}, invalid("task requires user, deadline and title")
	}
	title := strings.TrimSpace(strings.Join(args[2:], " "))
	if title == "" {
		return Command{}, invalid("task requires a title")
	}
	return Command{Type: TypeTask, Raw: raw, Task: &TaskArgs{OwnerID: args[0], Local: args[1], Title: title}}, nil
}

func parseDelete(raw string, args []string) (Command, error) {
	if len(args) != 2 {
		return Command{}, invalid("delete requires task|user and id")
	}
	kind := strings.ToLower(args[0])
	if kind != "task" && kind != "user" {
		return Command{}, invalid("delete expects task or user, got %q", args[0])
	}
	return Command{Type: TypeDelete, Raw: raw, Delete: &DeleteArgs{Kind: kind, ID: args[1]}}, nil
}

func parseSwitch(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "on", "true", "yes", "1":
		return true, true
	case "off", "false", "no", "0":
		return false, true
	default:
		return false, false
	}
}
