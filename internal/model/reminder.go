package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidReminderKind   = errors.New("model: invalid reminder kind")
	ErrInvalidReminderStatus = errors.New("model: invalid reminder status")
	// ErrStaleClaim means the task moved to a newer schedule revision after
	// the claim was granted.
	ErrStaleClaim = errors.New("model: claim revision superseded")
)

type ReminderKind string

const (
	ReminderDueWithin1h ReminderKind = "DueWithin1h"
	ReminderDueToday    ReminderKind = "DueToday"
	ReminderDueIn24h    ReminderKind = "DueIn24h"
)

// ReminderKinds returns every kind ordered by urgency, most urgent first.
func ReminderKinds() []ReminderKind {
	return []ReminderKind{ReminderDueWithin1h, ReminderDueToday, ReminderDueIn24h}
}

func (k ReminderKind) IsValid() bool {
	switch k {
	case ReminderDueWithin1h, ReminderDueToday, ReminderDueIn24h:
		return true
	default:
		return false
	}
}

type ReminderStatus string

const (
	ReminderPending ReminderStatus = "Pending"
	ReminderSent    ReminderStatus = "Sent"
)

func (s ReminderStatus) IsValid() bool {
	switch s {
	case ReminderPending, ReminderSent:
		return true
	default:
		return false
	}
}

// ReminderState tracks the one-shot flag of each reminder kind for a task.
type ReminderState map[ReminderKind]ReminderStatus

func NewReminderState() ReminderState {
	state := make(ReminderState, 3)
	for _, k := range ReminderKinds() {
		state[k] = ReminderPending
	}
	return state
}

// Pending reports whether kind has not been sent yet. Kinds missing from the
// map count as pending since every task starts with all kinds pending.
func (s ReminderState) Pending(kind ReminderKind) bool {
	status, ok := s[kind]
	return !ok || status == ReminderPending
}

// PendingKinds returns the pending kinds in urgency order.
func (s ReminderState) PendingKinds() []ReminderKind {
	out := make([]ReminderKind, 0, 3)
	for _, k := range ReminderKinds() {
		if s.Pending(k) {
			out = append(out, k)
		}
	}
	return out
}

func (s ReminderState) Clone() ReminderState {
	out := make(ReminderState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func (s ReminderState) Validate() error {
	for k, v := range s {
		if !k.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidReminderKind, k)
		}
		if !v.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidReminderStatus, v)
		}
	}
	return nil
}

// Claim identifies one (task, schedule revision, kind) dispatch slot.
type Claim struct {
	TaskID   string
	Revision int64
	Kind     ReminderKind
}

func (c Claim) Validate() error {
	if strings.TrimSpace(c.TaskID) == "" {
		return errors.New("model: claim task_id is required")
	}
	if c.Revision <= 0 {
		return errors.New("model: claim revision must be positive")
	}
	if !c.Kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidReminderKind, c.Kind)
	}
	return nil
}
