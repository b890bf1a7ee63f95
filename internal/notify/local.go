package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Log writes reminders to the logger instead of sending them.
type Log struct {
	log zerolog.Logger
}

func NewLog(log zerolog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Send(_ context.Context, to, subject, body string) error {
	l.log.Info().
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("dry-run reminder")
	return nil
}

// Desktop raises a local desktop notification; the destination is ignored.
type Desktop struct{}

func (Desktop) Send(ctx context.Context, _, subject, body string) error {
	switch runtime.GOOS {
	case "linux":
		return exec.CommandContext(ctx, "notify-send", subject, body).Run()
	case "darwin":
		script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeAppleScript(body), escapeAppleScript(subject))
		return exec.CommandContext(ctx, "osascript", "-e", script).Run()
	default:
		return nil
	}
}

func escapeAppleScript(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// Sent is one message captured by Recorder.
type Sent struct {
	To      string
	Subject string
	Body    string
}

// Recorder keeps every message in memory. Fail makes Send return an error
// for matching destinations after recording the attempt.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Fail func(to string) error
}

func (r *Recorder) Send(_ context.Context, to, subject, body string) error {
	r.mu.Lock()
	r.sent = append(r.sent, Sent{To: to, Subject: subject, Body: body})
	fail := r.Fail
	r.mu.Unlock()
	if fail != nil {
		return fail(to)
	}
	return nil
}

func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}
