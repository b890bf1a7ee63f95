// Package notify renders reminder messages and delivers them.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/remindd/internal/model"
)

// Notifier sends one message to one destination address.
type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Message struct {
	Subject string
	Body    string
}

const deadlineLayout = "January 02 2006 @ 03:04 PM MST"

// Render builds the reminder for kind, showing the deadline in loc.
func Render(task model.Task, kind model.ReminderKind, loc *time.Location) Message {
	if loc == nil {
		loc = time.UTC
	}
	local := task.Deadline.In(loc)

	var subject, lead string
	switch kind {
	case model.ReminderDueWithin1h:
		subject = fmt.Sprintf("⏰ Task Reminder: %s Due Within the Hour", task.Title)
		lead = fmt.Sprintf("Your task '%s' is due at %s.", task.Title, local.Format("03:04 PM MST"))
	case model.ReminderDueToday:
		subject = fmt.Sprintf("⏰ Task Reminder: %s Due Today", task.Title)
		lead = fmt.Sprintf("Your task '%s' is due today at %s.", task.Title, local.Format("03:04 PM MST"))
	case model.ReminderDueIn24h:
		subject = fmt.Sprintf("⏰ Task Reminder: %s Due Tomorrow", task.Title)
		lead = fmt.Sprintf("Your task '%s' is due on %s.", task.Title, local.Format(deadlineLayout))
	default:
		subject = fmt.Sprintf("⏰ Task Reminder: %s", task.Title)
		lead = fmt.Sprintf("Your task '%s' is due on %s.", task.Title, local.Format(deadlineLayout))
	}

	body := lead
	if d := strings.TrimSpace(task.Description); d != "" {
		body += "\n\nDescription: " + d
	}
	return Message{Subject: subject, Body: body}
}
