// Package app wires configuration into a running reminder service.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sandeepkv93/remindd/internal/clock"
	"github.com/sandeepkv93/remindd/internal/config"
	"github.com/sandeepkv93/remindd/internal/gate"
	"github.com/sandeepkv93/remindd/internal/migrate"
	"github.com/sandeepkv93/remindd/internal/notify"
	"github.com/sandeepkv93/remindd/internal/runner"
	"github.com/sandeepkv93/remindd/internal/storage"
	"github.com/sandeepkv93/remindd/internal/tz"
)

type App struct {
	Config   config.Config
	Log      zerolog.Logger
	Clock    clock.Clock
	Resolver *tz.Resolver
	Store    *storage.SQLRepository
	Gate     runner.Gate
	Notifier notify.Notifier
	Runner   *runner.Runner
	Migrator *migrate.Migrator

	closers []func() error
}

// Option overrides a collaborator New would otherwise build from config.
type Option func(*App)

func WithClock(c clock.Clock) Option {
	return func(a *App) { a.Clock = c }
}

func WithStore(store *storage.SQLRepository) Option {
	return func(a *App) { a.Store = store }
}

func WithNotifier(n notify.Notifier) Option {
	return func(a *App) { a.Notifier = n }
}

func WithGate(g runner.Gate) Option {
	return func(a *App) { a.Gate = g }
}

func New(ctx context.Context, cfg config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	a := &App{
		Config:   cfg,
		Log:      log,
		Clock:    clock.System{},
		Resolver: tz.NewResolver(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.Store == nil {
		store, err := openStore(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		a.Store = store
		a.closers = append(a.closers, store.Close)
	}

	if a.Gate == nil {
		g, err := a.openGate(ctx)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Gate = g
	}

	if a.Notifier == nil {
		n, err := buildNotifier(cfg, log)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Notifier = n
	}

	r, err := runner.New(a.Store, a.Store, a.Gate, a.Notifier,
		runner.WithClock(a.Clock),
		runner.WithResolver(a.Resolver),
		runner.WithLogger(log.With().Str("component", "runner").Logger()),
		runner.WithConcurrency(cfg.Concurrency),
	)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Runner = r
	a.Migrator = migrate.New(a.Store, a.Resolver, log.With().Str("component", "migrate").Logger())
	return a, nil
}

func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (*storage.SQLRepository, error) {
	var (
		store *storage.SQLRepository
		err   error
	)
	switch cfg.Store {
	case config.StorePostgres:
		store, err = storage.OpenPostgres(ctx, storage.PostgresOptions{
			URL:            cfg.Postgres.URL(),
			ConnectTimeout: cfg.Postgres.ConnectTimeout,
			PingTimeout:    cfg.Postgres.PingTimeout,
			MaxConns:       cfg.Postgres.MaxConns,
		})
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("host", cfg.Postgres.Host).
			Int("port", cfg.Postgres.Port).
			Msg("connected to postgres")
	default:
		store, err = storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite store")
	}

	if err := store.Migrate(true); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return store, nil
}

func (a *App) openGate(ctx context.Context) (runner.Gate, error) {
	if a.Config.Gate != config.GateRedis {
		return a.Store, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	a.Log.Info().Str("addr", a.Config.Redis.Addr).Msg("connected to redis")
	return gate.NewRedis(client, gate.WithTTL(a.Config.Redis.ClaimTTL))
}

func buildNotifier(cfg config.Config, log zerolog.Logger) (notify.Notifier, error) {
	switch {
	case cfg.DryRun:
		return notify.NewLog(log.With().Str("component", "notify").Logger()), nil
	case cfg.Desktop:
		return notify.Desktop{}, nil
	default:
		return notify.NewSMTP(notify.SMTPConfig{
			Host:     cfg.Mail.Server,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.DefaultSender,
			Timeout:  cfg.Mail.Timeout,
		})
	}
}

// Close releases every connection New opened, last opened first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
