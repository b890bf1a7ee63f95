package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandeepkv93/remindd/internal/model"
)

func TestRenderShowsOwnerLocalDeadline(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	task := model.Task{
		Title:       "Pay rent",
		Description: "Landlord portal",
		Deadline:    time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC),
	}

	msg := Render(task, model.ReminderDueIn24h, ny)
	assert.Equal(t, "⏰ Task Reminder: Pay rent Due Tomorrow", msg.Subject)
	assert.Contains(t, msg.Body, "June 01 2026 @ 09:00 AM EDT")
	assert.Contains(t, msg.Body, "Description: Landlord portal")

	msg = Render(task, model.ReminderDueToday, ny)
	assert.Contains(t, msg.Subject, "Due Today")
	assert.Contains(t, msg.Body, "due today at 09:00 AM EDT")

	task.Description = "  "
	msg = Render(task, model.ReminderDueWithin1h, nil)
	assert.Contains(t, msg.Body, "01:00 PM UTC")
	assert.NotContains(t, msg.Body, "Description")
}

func TestRecorderCapturesAndFails(t *testing.T) {
	boom := errors.New("smtp down")
	rec := &Recorder{Fail: func(to string) error {
		if strings.HasPrefix(to, "bad") {
			return boom
		}
		return nil
	}}
	require.NoError(t, rec.Send(context.Background(), "ok@example.com", "s", "b"))
	assert.ErrorIs(t, rec.Send(context.Background(), "bad@example.com", "s", "b"), boom)
	assert.Len(t, rec.Sent(), 2)
}

func TestLogNotifierWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	n := NewLog(zerolog.New(&buf))
	require.NoError(t, n.Send(context.Background(), "ada@example.com", "subject", "body"))
	assert.Contains(t, buf.String(), `"to":"ada@example.com"`)
	assert.Contains(t, buf.String(), `"message":"dry-run reminder"`)
}

func TestNewSMTPValidatesConfig(t *testing.T) {
	_, err := NewSMTP(SMTPConfig{})
	assert.Error(t, err)
	_, err = NewSMTP(SMTPConfig{Host: "smtp.example.com", Port: 587})
	assert.Error(t, err)

	n, err := NewSMTP(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "bot@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "bot@example.com", n.from)
}
