// Package classify decides which reminder windows a task's deadline falls in.
//
// Every comparison is made between two instants or between two calendar dates
// obtained by projecting both instants into the owner's zone. A naive wall
// clock is never compared against an instant.
package classify

import (
	"errors"
	"time"

	"github.com/sandeepkv93/remindd/internal/model"
	"github.com/sandeepkv93/remindd/internal/tz"
)

var (
	ErrMissingDeadline = errors.New("classify: task has no deadline")
	ErrNilLocation     = errors.New("classify: owner location is nil")
)

// WithinHour is the closed upper bound of the DueWithin1h window.
const WithinHour = time.Hour

// Set is a set of reminder kinds.
type Set uint8

func bit(k model.ReminderKind) Set {
	switch k {
	case model.ReminderDueWithin1h:
		return 1 << 0
	case model.ReminderDueToday:
		return 1 << 1
	case model.ReminderDueIn24h:
		return 1 << 2
	default:
		return 0
	}
}

func SetOf(kinds ...model.ReminderKind) Set {
	var s Set
	for _, k := range kinds {
		s |= bit(k)
	}
	return s
}

func (s Set) Has(k model.ReminderKind) bool {
	b := bit(k)
	return b != 0 && s&b != 0
}

func (s Set) Intersect(o Set) Set { return s & o }

func (s Set) Empty() bool { return s == 0 }

// Kinds lists the members in dispatch order, most urgent first.
func (s Set) Kinds() []model.ReminderKind {
	out := make([]model.ReminderKind, 0, 3)
	for _, k := range model.ReminderKinds() {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Classify returns the kinds whose window contains now for task, as seen by an
// owner living in loc. It ignores the task's reminder state.
func Classify(task model.Task, now time.Time, loc *time.Location) (Set, error) {
	if task.Deadline.IsZero() {
		return 0, ErrMissingDeadline
	}
	if loc == nil {
		return 0, ErrNilLocation
	}

	var out Set
	until := task.Deadline.Sub(now)
	today := tz.DateOf(now, loc)
	due := tz.DateOf(task.Deadline, loc)

	if until >= 0 && until <= WithinHour {
		out |= bit(model.ReminderDueWithin1h)
	}
	if until >= 0 && due == today {
		out |= bit(model.ReminderDueToday)
	}
	if due == today.AddDays(1) {
		out |= bit(model.ReminderDueIn24h)
	}
	return out, nil
}

// Pending returns the set of kinds task has not dispatched yet.
func Pending(task model.Task) Set {
	return SetOf(task.PendingKinds()...)
}
