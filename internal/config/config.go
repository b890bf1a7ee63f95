package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const (
	EnvDev   = "dev"
	EnvProd  = "prod"
	EnvLocal = "local"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	GateStore = "store"
	GateRedis = "redis"
)

type Config struct {
	Env             string        `env:"REMINDD_ENV" env-default:"local"`
	Store           string        `env:"REMINDD_STORE" env-default:"sqlite"`
	SQLitePath      string        `env:"REMINDD_SQLITE_PATH" env-default:"remindd.db"`
	Gate            string        `env:"REMINDD_GATE" env-default:"store"`
	DryRun          bool          `env:"REMINDD_DRY_RUN" env-default:"false"`
	Desktop         bool          `env:"REMINDD_DESKTOP_NOTIFICATIONS" env-default:"false"`
	Period          time.Duration `env:"REMINDD_PERIOD" env-default:"1m"`
	Concurrency     int           `env:"REMINDD_CONCURRENCY" env-default:"4"`
	ResultBuffer    int           `env:"REMINDD_RESULT_BUFFER" env-default:"64"`
	ShutdownTimeout time.Duration `env:"REMINDD_SHUTDOWN_TIMEOUT" env-default:"30s"`

	Postgres PostgresConfig
	Redis    RedisConfig
	Mail     MailConfig
}

type PostgresConfig struct {
	Host           string        `env:"POSTGRES_HOST" env-default:"localhost"`
	Port           int           `env:"POSTGRES_PORT" env-default:"5432"`
	Username       string        `env:"POSTGRES_USERNAME"`
	Password       string        `env:"POSTGRES_PASSWORD"`
	Database       string        `env:"POSTGRES_DATABASE"`
	SSLMode        string        `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	ConnectTimeout time.Duration `env:"POSTGRES_CONNECT_TIMEOUT" env-default:"10s"`
	PingTimeout    time.Duration `env:"POSTGRES_PING_TIMEOUT" env-default:"10s"`
	MaxConns       int32         `env:"POSTGRES_MAX_CONNS" env-default:"8"`
}

// URL renders the connection string pgx expects.
func (c PostgresConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" env-default:"0"`
	ClaimTTL time.Duration `env:"REDIS_CLAIM_TTL" env-default:"720h"`
}

type MailConfig struct {
	Server        string        `env:"MAIL_SERVER" env-default:"smtp.gmail.com"`
	Port          int           `env:"MAIL_PORT" env-default:"587"`
	Username      string        `env:"MAIL_USERNAME"`
	Password      string        `env:"MAIL_PASSWORD"`
	DefaultSender string        `env:"MAIL_DEFAULT_SENDER"`
	Timeout       time.Duration `env:"MAIL_TIMEOUT" env-default:"15s"`
}

// Validate checks the combinations that struct tags cannot express.
func (c Config) Validate() error {
	switch c.Env {
	case EnvLocal, EnvDev, EnvProd:
	default:
		return fmt.Errorf("config: unknown env %q", c.Env)
	}
	switch c.Store {
	case StoreSQLite:
		if c.SQLitePath == "" {
			return errors.New("config: REMINDD_SQLITE_PATH is required for the sqlite store")
		}
	case StorePostgres:
		if c.Postgres.Username == "" || c.Postgres.Database == "" {
			return errors.New("config: POSTGRES_USERNAME and POSTGRES_DATABASE are required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}
	switch c.Gate {
	case GateStore, GateRedis:
	default:
		return fmt.Errorf("config: unknown gate %q", c.Gate)
	}
	if c.Period <= 0 {
		return errors.New("config: REMINDD_PERIOD must be positive")
	}
	if c.Concurrency <= 0 {
		return errors.New("config: REMINDD_CONCURRENCY must be positive")
	}
	if !c.DryRun && !c.Desktop && c.Mail.DefaultSender == "" {
		return errors.New("config: MAIL_DEFAULT_SENDER is required unless REMINDD_DRY_RUN is set")
	}
	return nil
}
