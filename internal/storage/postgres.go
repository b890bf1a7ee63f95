package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

type PostgresOptions struct {
	URL            string
	ConnectTimeout time.Duration
	PingTimeout    time.Duration
	MaxConns       int32
}

// OpenPostgres connects a pgx pool, verifies it with a ping and exposes it
// through database/sql so the same statements serve both dialects.
func OpenPostgres(ctx context.Context, opts PostgresOptions) (*SQLRepository, error) {
	poolCfg, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if opts.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = opts.ConnectTimeout
	}
	if opts.MaxConns > 0 {
		poolCfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	repo, err := NewPostgresRepository(stdlib.OpenDBFromPool(pool))
	if err != nil {
		pool.Close()
		return nil, err
	}
	repo.closers = append(repo.closers, pool.Close)
	return repo, nil
}

func NewPostgresRepository(db *sql.DB) (*SQLRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	return &SQLRepository{db: db, dialect: DialectPostgres}, nil
}
