// Package logging builds the process logger for a deployment env.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/sandeepkv93/remindd/internal/config"
)

// New returns a logger writing to w and sets the global level for env. The
// local env gets a human-readable console writer and trace level; dev logs
// debug and prod logs info as JSON.
func New(env string, w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stdout
	}
	zerolog.TimestampFieldName = "timestamp"

	level := zerolog.InfoLevel
	switch env {
	case config.EnvDev:
		level = zerolog.DebugLevel
	case config.EnvProd:
		level = zerolog.InfoLevel
	case config.EnvLocal:
		level = zerolog.TraceLevel
		consoleWriter := zerolog.NewConsoleWriter()
		consoleWriter.TimeFormat = time.DateTime
		consoleWriter.Out = w
		w = consoleWriter
	default:
		return zerolog.Nop(), fmt.Errorf("logging: unknown env: %s", env)
	}

	zerolog.SetGlobalLevel(level)
	return zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Int("pid", os.Getpid()).
		Str("env", env).
		Logger(), nil
}
