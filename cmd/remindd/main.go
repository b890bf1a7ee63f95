package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sandeepkv93/remindd/internal/app"
	"github.com/sandeepkv93/remindd/internal/commands"
	"github.com/sandeepkv93/remindd/internal/config"
	"github.com/sandeepkv93/remindd/internal/logging"
)

const usage = `usage: remindd <command> [args]

  run                                   evaluate every open task once
  serve                                 run reminder cycles until interrupted
  watch                                 run reminder cycles behind the dashboard
  user <id> <email> [zone] [name...]    register a task owner
  task <user> <YYYY-MM-DDTHH:MM> <title> create a task due at a local time
  deadline <task> <YYYY-MM-DDTHH:MM>    move a task's deadline
  status <task> done|open               complete or reopen a task
  timezone <user> <zone>                change a user's zone, keeping wall clocks
  notifications <user> on|off           toggle email reminders
  upcoming <user>                       list the next deadlines
  delete task|user <id>                 remove a task or user
  migrate up|down                       apply or revert the schema`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "remindd: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd, err := commands.ParseArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, usage)
		return err
	}

	cfg, err := config.Read()
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var logOut io.Writer = os.Stdout
	if cmd.Type == commands.TypeWatch {
		// The dashboard owns the terminal.
		f, err := os.OpenFile("remindd.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		logOut = f
	}
	log, err := logging.New(cfg.Env, logOut)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("close connections")
		}
	}()

	res, err := commands.Execute(ctx, cmd, a.Handlers())
	if err != nil {
		return err
	}
	if res.Message != "" {
		fmt.Println(res.Message)
	}
	return nil
}
