package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/remindd/internal/commands"
	"github.com/sandeepkv93/remindd/internal/migrate"
	"github.com/sandeepkv93/remindd/internal/model"
	"github.com/sandeepkv93/remindd/internal/runner"
	"github.com/sandeepkv93/remindd/internal/storage"
	"github.com/sandeepkv93/remindd/internal/tz"
)

const upcomingPerUser = 3

// Handlers binds every command to this App. Serve and Watch block until
// shutdown.
func (a *App) Handlers() commands.Handlers {
	return commands.Handlers{
		Run:           a.runOnce,
		Serve:         a.Serve,
		Watch:         a.Watch,
		Timezone:      a.changeTimezone,
		Deadline:      a.editDeadline,
		Notifications: a.setNotifications,
		Status:        a.setStatus,
		Migrate:       a.migrateSchema,
		User:          a.createUser,
		Task:          a.createTask,
		Delete:        a.delete,
		Upcoming:      a.upcoming,
	}
}

// Exec parses and runs a single command line.
func (a *App) Exec(ctx context.Context, line string) (commands.Result, error) {
	cmd, err := commands.Parse(line)
	if err != nil {
		return commands.Result{}, err
	}
	h := a.Handlers()
	// Nested long-running commands are not allowed from a prompt.
	h.Serve, h.Watch = nil, nil
	return commands.Execute(ctx, cmd, h)
}

func (a *App) runOnce(ctx context.Context) (commands.Result, error) {
	report, err := a.Runner.RunCycle(ctx)
	if err != nil {
		return commands.Result{}, err
	}
	return commands.Result{Message: summarize(report)}, nil
}

func summarize(r runner.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "cycle %s: evaluated %d, skipped %d, claimed %d, sent %d, failed %d, stale %d in %s",
		r.CycleID, r.Evaluated, r.Skipped, r.Claimed, r.Sent, r.Failed, r.Stale, r.Duration.Round(time.Millisecond))
	for _, f := range r.Failures {
		fmt.Fprintf(&b, "\n  %s", f.Error())
	}
	return b.String()
}

func (a *App) changeTimezone(ctx context.Context, args commands.TimezoneArgs) (commands.Result, error) {
	report, err := a.Migrator.ChangeTimezone(ctx, args.UserID, args.Zone)
	if errors.Is(err, migrate.ErrPartial) {
		// The zone is stored; one more pass over the failed tasks only.
		retried, rerr := a.Migrator.Retry(ctx, report)
		if rerr != nil {
			return commands.Result{}, fmt.Errorf("%w: retry: %v", err, rerr)
		}
		report.Migrated = append(report.Migrated, retried.Migrated...)
		if len(retried.Failed) > 0 {
			return commands.Result{}, fmt.Errorf("%w: timezone stored, %d migrated, failed %s",
				migrate.ErrPartial, len(report.Migrated), strings.Join(retried.Failed, ", "))
		}
		err = nil
	}
	if err != nil {
		return commands.Result{}, err
	}
	return commands.Result{Message: fmt.Sprintf("timezone for %s changed %s -> %s, %d deadline(s) moved",
		args.UserID, report.From, report.To, len(report.Migrated))}, nil
}

func (a *App) ownerLocation(ctx context.Context, userID string) (model.User, error) {
	user, err := a.Store.GetUser(ctx, userID)
	if err != nil {
		return model.User{}, fmt.Errorf("user %s: %w", userID, err)
	}
	return user, nil
}

func (a *App) editDeadline(ctx context.Context, args commands.DeadlineArgs) (commands.Result, error) {
	task, err := a.Store.GetTask(ctx, args.TaskID)
	if err != nil {
		return commands.Result{}, fmt.Errorf("task %s: %w", args.TaskID, err)
	}
	owner, err := a.ownerLocation(ctx, task.OwnerID)
	if err != nil {
		return commands.Result{}, err
	}
	loc, err := a.Resolver.Resolve(owner.Timezone)
	if err != nil {
		return commands.Result{}, err
	}
	deadline, err := tz.ParseLocal(args.Local, loc)
	if err != nil {
		return commands.Result{}, err
	}
	if err := a.Store.EditDeadline(ctx, task.ID, deadline); err != nil {
		return commands.Result{}, err
	}
	return commands.Result{Message: fmt.Sprintf("deadline for %s set to %s %s",
		task.ID, tz.FormatLocal(deadline, loc), loc)}, nil
}

func (a *App) setNotifications(ctx context.Context, args commands.NotificationsArgs) (commands.Result, error) {
	if err := a.Store.SetNotifications(ctx, args.UserID, args.Enabled); err != nil {
		return commands.Result{}, fmt.Errorf("user %s: %w", args.UserID, err)
	}
	state := "off"
	if args.Enabled {
		state = "on"
	}
	return commands.Result{Message: fmt.Sprintf("email reminders for %s turned %s", args.UserID, state)}, nil
}

func (a *App) setStatus(ctx context.Context, args commands.StatusArgs) (commands.Result, error) {
	status := model.TaskInProgress
	if args.Done {
		status = model.TaskComplete
	}
	if err := a.Store.SetStatus(ctx, args.TaskID, status); err != nil {
		return commands.Result{}, fmt.Errorf("task %s: %w", args.TaskID, err)
	}
	return commands.Result{Message: fmt.Sprintf("task %s is now %s", args.TaskID, status)}, nil
}

func (a *App) migrateSchema(_ context.Context, args commands.MigrateArgs) (commands.Result, error) {
	if err := a.Store.Migrate(args.Up); err != nil {
		return commands.Result{}, err
	}
	if args.Up {
		return commands.Result{Message: "schema migrated up"}, nil
	}
	return commands.Result{Message: "schema migrated down"}, nil
}

func (a *App) createUser(ctx context.Context, args commands.UserArgs) (commands.Result, error) {
	zone := args.Zone
	if zone == "" {
		zone = model.DefaultTimezone
	}
	if _, err := a.Resolver.Resolve(zone); err != nil {
		return commands.Result{}, err
	}
	user := model.User{
		ID:                        args.ID,
		Name:                      args.Name,
		Email:                     args.Email,
		Timezone:                  zone,
		EmailNotificationsEnabled: true,
		CreatedAt:                 a.Clock.Now().UTC(),
	}
	if err := user.Validate(); err != nil {
		return commands.Result{}, err
	}
	if err := a.Store.CreateUser(ctx, user); err != nil {
		return commands.Result{}, err
	}
	return commands.Result{Message: fmt.Sprintf("user %s created in %s", user.ID, user.Timezone)}, nil
}

func (a *App) createTask(ctx context.Context, args commands.TaskArgs) (commands.Result, error) {
	owner, err := a.ownerLocation(ctx, args.OwnerID)
	if err != nil {
		return commands.Result{}, err
	}
	loc, err := a.Resolver.Resolve(owner.Timezone)
	if err != nil {
		return commands.Result{}, err
	}
	deadline, err := tz.ParseLocal(args.Local, loc)
	if err != nil {
		return commands.Result{}, err
	}
	task := model.Task{
		ID:        uuid.NewString(),
		OwnerID:   owner.ID,
		Title:     args.Title,
		Priority:  model.PriorityMedium,
		Status:    model.TaskInProgress,
		Deadline:  deadline,
		Revision:  1,
		CreatedAt: a.Clock.Now().UTC(),
	}
	if err := task.Validate(); err != nil {
		return commands.Result{}, err
	}
	if err := a.Store.CreateTask(ctx, task); err != nil {
		return commands.Result{}, err
	}
	return commands.Result{Message: fmt.Sprintf("task %s created, due %s %s",
		task.ID, tz.FormatLocal(deadline, loc), loc)}, nil
}

func (a *App) delete(ctx context.Context, args commands.DeleteArgs) (commands.Result, error) {
	var err error
	switch args.Kind {
	case "user":
		err = a.Store.DeleteUser(ctx, args.ID)
	default:
		err = a.Store.DeleteTask(ctx, args.ID)
	}
	if err != nil {
		return commands.Result{}, fmt.Errorf("%s %s: %w", args.Kind, args.ID, err)
	}
	return commands.Result{Message: fmt.Sprintf("%s %s deleted", args.Kind, args.ID)}, nil
}

func (a *App) upcoming(ctx context.Context, args commands.UpcomingArgs) (commands.Result, error) {
	owner, err := a.ownerLocation(ctx, args.UserID)
	if err != nil {
		return commands.Result{}, err
	}
	loc, err := a.Resolver.Resolve(owner.Timezone)
	if err != nil {
		return commands.Result{}, err
	}
	tasks, err := a.Store.UpcomingTasks(ctx, owner.ID, a.Clock.Now(), upcomingPerUser)
	if err != nil {
		return commands.Result{}, err
	}
	if len(tasks) == 0 {
		return commands.Result{Message: fmt.Sprintf("no upcoming deadlines for %s", owner.ID)}, nil
	}
	lines := make([]string, 0, len(tasks)+1)
	lines = append(lines, fmt.Sprintf("upcoming for %s (%s):", owner.ID, loc))
	for _, t := range tasks {
		lines = append(lines, fmt.Sprintf("  %s  %s  %s", tz.FormatLocal(t.Deadline, loc), t.ID, t.Title))
	}
	return commands.Result{Message: strings.Join(lines, "\n")}, nil
}

// upcomingAll lists open dated tasks across every owner, soonest first.
func (a *App) upcomingAll(ctx context.Context, limit int) ([]model.Task, error) {
	tasks, err := a.Store.ListTasks(ctx, storage.TaskListFilter{Status: model.TaskInProgress})
	if err != nil {
		return nil, err
	}
	now := a.Clock.Now()
	out := make([]model.Task, 0, limit)
	for _, t := range tasks {
		if t.Deadline.IsZero() || t.Deadline.Before(now) {
			continue
		}
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
