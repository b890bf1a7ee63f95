package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/remindd/internal/model"
)

var (
	ErrNotFound          = errors.New("storage: not found")
	ErrIllegalTransition = errors.New("storage: reminder can only return to Pending through a deadline edit")
	ErrDeadlineChanged   = errors.New("storage: deadline changed since it was read")
)

type Store interface {
	CreateUser(ctx context.Context, in model.User) error
	GetUser(ctx context.Context, id string) (model.User, error)
	SetNotifications(ctx context.Context, userID string, enabled bool) error
	SetTimezone(ctx context.Context, userID, zone string) error
	DeleteUser(ctx context.Context, id string) error

	CreateTask(ctx context.Context, in model.Task) error
	GetTask(ctx context.Context, id string) (model.Task, error)
	SetStatus(ctx context.Context, taskID string, status model.TaskStatus) error
	EditDeadline(ctx context.Context, taskID string, deadline time.Time) error
	UpdateDeadline(ctx context.Context, taskID string, from, to time.Time) error
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, filter TaskListFilter) ([]model.Task, error)
	UpcomingTasks(ctx context.Context, ownerID string, from time.Time, limit int) ([]model.Task, error)

	ActiveTasks(ctx context.Context) ([]model.Task, error)
	TryClaim(ctx context.Context, claim model.Claim) (bool, error)
	CommitReminderState(ctx context.Context, claim model.Claim, status model.ReminderStatus) error
}

var _ Store = (*SQLRepository)(nil)
