package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidStatus   = errors.New("model: invalid task status")
	ErrInvalidPriority = errors.New("model: invalid task priority")
)

type TaskStatus string

const (
	TaskInProgress TaskStatus = "In-Progress"
	TaskComplete   TaskStatus = "Complete"
)

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskInProgress, TaskComplete:
		return true
	default:
		return false
	}
}

// Toggle flips between in-progress and complete.
func (s TaskStatus) Toggle() TaskStatus {
	if s == TaskInProgress {
		return TaskComplete
	}
	return TaskInProgress
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Task is a unit of work with an absolute deadline. Deadline is an instant;
// wall-clock meaning is only recovered by projecting it into the owner's zone.
type Task struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Priority    Priority
	Status      TaskStatus
	Deadline    time.Time
	Revision    int64
	Reminders   ReminderState
	CreatedAt   time.Time
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("model: task id is required")
	}
	if strings.TrimSpace(t.OwnerID) == "" {
		return errors.New("model: task owner_id is required")
	}
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("model: task title is required")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, t.Priority)
	}
	if t.CreatedAt.IsZero() {
		return errors.New("model: task created_at is required")
	}
	return t.Reminders.Validate()
}

func (t Task) Active() bool {
	return t.Status == TaskInProgress
}

// PendingKinds returns the kinds of t still eligible for dispatch.
func (t Task) PendingKinds() []ReminderKind {
	return t.Reminders.PendingKinds()
}
