package model

import (
	"errors"
	"testing"
	"time"
)

func TestTaskValidateSuccess(t *testing.T) {
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	task := Task{
		ID:        "task-1",
		OwnerID:   "user-1",
		Title:     "File quarterly report",
		Priority:  PriorityHigh,
		Status:    TaskInProgress,
		Deadline:  now.Add(48 * time.Hour),
		Revision:  1,
		Reminders: NewReminderState(),
		CreatedAt: now,
	}
	if err := task.Validate(); err != nil {
		t.Fatalf("expected valid task, got error: %v", err)
	}
	if !task.Active() {
		t.Fatal("expected in-progress task to be active")
	}
}

func TestTaskValidateRequiresOwner(t *testing.T) {
	task := Task{
		ID:        "task-1",
		Title:     "Orphan",
		Priority:  PriorityLow,
		Status:    TaskInProgress,
		CreatedAt: time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC),
	}
	err := task.Validate()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err.Error() != "model: task owner_id is required" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTaskValidateInvalidEnums(t *testing.T) {
	now := time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)
	task := Task{
		ID:        "task-1",
		OwnerID:   "user-1",
		Title:     "Bad status",
		Status:    TaskStatus("Invalid"),
		Priority:  PriorityLow,
		CreatedAt: now,
	}
	err := task.Validate()
	if err == nil || !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got: %v", err)
	}

	task.Status = TaskInProgress
	task.Priority = Priority("Bad")
	err = task.Validate()
	if err == nil || !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got: %v", err)
	}

	task.Priority = PriorityMedium
	task.Reminders = ReminderState{ReminderKind("Weekly"): ReminderPending}
	err = task.Validate()
	if err == nil || !errors.Is(err, ErrInvalidReminderKind) {
		t.Fatalf("expected ErrInvalidReminderKind, got: %v", err)
	}
}

func TestTaskStatusToggle(t *testing.T) {
	if TaskInProgress.Toggle() != TaskComplete {
		t.Fatal("expected in-progress to toggle to complete")
	}
	if TaskComplete.Toggle() != TaskInProgress {
		t.Fatal("expected complete to toggle to in-progress")
	}
}
