package commands

import (
	"context"
	"fmt"
)

type Result struct {
	Message string
}

type Handlers struct {
	Run           func(context.Context) (Result, error)
	Serve         func(context.Context) (Result, error)
	Watch         func(context.Context) (Result, error)
	Timezone      func(context.Context, TimezoneArgs) (Result, error)
	Deadline      func(context.Context, DeadlineArgs) (Result, error)
	Notifications func(context.Context, NotificationsArgs) (Result, error)
	Status        func(context.Context, StatusArgs) (Result, error)
	Migrate       func(context.Context, MigrateArgs) (Result, error)
	User          func(context.Context, UserArgs) (Result, error)
	Task          func(context.Context, TaskArgs) (Result, error)
	Delete        func(context.Context, DeleteArgs) (Result, error)
	Upcoming      func(context.Context, UpcomingArgs) (Result, error)
}

func missing(t Type) error {
	return &CommandError{Code: ErrCodeHandlerMissing, Message: fmt.Sprintf("%s handler not configured", t)}
}

func Execute(ctx context.Context, cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeRun:
		if handlers.Run == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Run(ctx)
	case TypeServe:
		if handlers.Serve == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Serve(ctx)
	case TypeWatch:
		if handlers.Watch == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Watch(ctx)
	case TypeTimezone:
		if handlers.Timezone == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Timezone(ctx, *cmd.Timezone)
	case TypeDeadline:
		if handlers.Deadline == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Deadline(ctx, *cmd.Deadline)
	case TypeNotifications:
		if handlers.Notifications == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Notifications(ctx, *cmd.Notifications)
	case TypeStatus:
		if handlers.Status == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Status(ctx, *cmd.Status)
	case TypeMigrate:
		if handlers.Migrate == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Migrate(ctx, *cmd.Migrate)
	case TypeUser:
		if handlers.User == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.User(ctx, *cmd.User)
	case TypeTask:
		if handlers.Task == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Task(ctx, *cmd.Task)
	case TypeDelete:
		if handlers.Delete == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Delete(ctx, *cmd.Delete)
	case TypeUpcoming:
		if handlers.Upcoming == nil {
			return Result{}, missing(cmd.Type)
		}
		return handlers.Upcoming(ctx, *cmd.Upcoming)
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}
