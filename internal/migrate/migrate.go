// Package migrate moves a user's task deadlines to a new timezone while
// keeping the wall-clock time the user typed.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sandeepkv93/remindd/internal/model"
	"github.com/sandeepkv93/remindd/internal/storage"
	"github.com/sandeepkv93/remindd/internal/tz"
)

// ErrPartial is returned by ChangeTimezone when some deadlines could not be
// moved. The new zone is stored anyway, so the tasks that did move stay
// consistent with it; pass the report to Retry to move the rest.
var ErrPartial = errors.New("migrate: some tasks failed to migrate")

type Store interface {
	GetUser(ctx context.Context, id string) (model.User, error)
	SetTimezone(ctx context.Context, userID, zone string) error
	ListTasks(ctx context.Context, filter storage.TaskListFilter) ([]model.Task, error)
	UpdateDeadline(ctx context.Context, taskID string, from, to time.Time) error
}

type Report struct {
	UserID   string
	From     string
	To       string
	Migrated []string
	Failed   []string
	Errors   map[string]error
	// Unmoved holds the deadline each failed task had when it was read.
	Unmoved map[string]time.Time
}

type Migrator struct {
	store    Store
	resolver *tz.Resolver
	log      zerolog.Logger
}

func New(store Store, resolver *tz.Resolver, log zerolog.Logger) *Migrator {
	if resolver == nil {
		resolver = tz.NewResolver()
	}
	return &Migrator{store: store, resolver: resolver, log: log}
}

// Migrate rewrites the deadline of every open task owned by userID so that
// its wall clock in newTz matches its former wall clock in oldTz. Reminder
// flags are not touched. A task that fails to update is reported and the
// rest still migrate.
func (m *Migrator) Migrate(ctx context.Context, userID, oldTz, newTz string) (Report, error) {
	return m.migrate(ctx, userID, oldTz, newTz, nil)
}

// Retry migrates only the tasks listed in prev.Failed, using the zones of
// prev. Each write is conditional on the deadline still holding the instant
// recorded in prev.Unmoved, so a task that was edited or already moved since
// fails with storage.ErrDeadlineChanged instead of being shifted twice.
func (m *Migrator) Retry(ctx context.Context, prev Report) (Report, error) {
	only := make(map[string]time.Time, len(prev.Failed))
	for _, id := range prev.Failed {
		if at, ok := prev.Unmoved[id]; ok {
			only[id] = at
		}
	}
	if len(only) == 0 {
		return Report{UserID: prev.UserID, From: prev.From, To: prev.To}, nil
	}
	return m.migrate(ctx, prev.UserID, prev.From, prev.To, only)
}

// migrate moves every open dated task, or only the tasks in only when it is
// non-nil, in which case the recorded instant is the expected current value.
func (m *Migrator) migrate(ctx context.Context, userID, oldTz, newTz string, only map[string]time.Time) (Report, error) {
	report := Report{UserID: userID, From: oldTz, To: newTz}
	from, err := m.resolver.Resolve(oldTz)
	if err != nil {
		return report, err
	}
	to, err := m.resolver.Resolve(newTz)
	if err != nil {
		return report, err
	}

	tasks, err := m.store.ListTasks(ctx, storage.TaskListFilter{OwnerID: userID, Status: model.TaskInProgress})
	if err != nil {
		return report, fmt.Errorf("migrate: list tasks for %s: %w", userID, err)
	}

	for _, task := range tasks {
		if task.Deadline.IsZero() {
			continue
		}
		current := task.Deadline
		if only != nil {
			at, ok := only[task.ID]
			if !ok {
				continue
			}
			current = at
		}
		moved := tz.Reinterpret(current, from, to)
		if err := m.store.UpdateDeadline(ctx, task.ID, current, moved); err != nil {
			if report.Errors == nil {
				report.Errors = make(map[string]error)
				report.Unmoved = make(map[string]time.Time)
			}
			report.Failed = append(report.Failed, task.ID)
			report.Errors[task.ID] = err
			report.Unmoved[task.ID] = current
			m.log.Warn().Err(err).
				Str("user_id", userID).
				Str("task_id", task.ID).
				Msg("failed to migrate task deadline")
			continue
		}
		report.Migrated = append(report.Migrated, task.ID)
	}

	m.log.Info().
		Str("user_id", userID).
		Str("from", oldTz).
		Str("to", newTz).
		Int("migrated", len(report.Migrated)).
		Int("failed", len(report.Failed)).
		Bool("retry", only != nil).
		Msg("timezone migration finished")
	return report, nil
}

// ChangeTimezone migrates the user's deadlines from their stored zone to
// newTz and then stores newTz. The zone is stored even when some tasks fail,
// so calling ChangeTimezone again with the same zone never shifts the tasks
// that already moved; the failed ones are left for Retry.
func (m *Migrator) ChangeTimezone(ctx context.Context, userID, newTz string) (Report, error) {
	if _, err := m.resolver.Resolve(newTz); err != nil {
		return Report{UserID: userID, To: newTz}, err
	}
	user, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return Report{UserID: userID, To: newTz}, fmt.Errorf("migrate: load user %s: %w", userID, err)
	}
	oldTz := user.Timezone
	if oldTz == "" {
		oldTz = model.DefaultTimezone
	}

	report, err := m.Migrate(ctx, userID, oldTz, newTz)
	if err != nil {
		return report, err
	}
	if err := m.store.SetTimezone(ctx, userID, newTz); err != nil {
		return report, fmt.Errorf("migrate: store timezone for %s: %w", userID, err)
	}
	if len(report.Failed) > 0 {
		return report, fmt.Errorf("%w: %v", ErrPartial, report.Failed)
	}
	return report, nil
}
