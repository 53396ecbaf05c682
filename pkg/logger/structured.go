package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var zlog zerolog.Logger

// InitStructured configures the process logger. Local and development
// environments get a console writer, everything else JSON on stdout.
// An empty or unknown level means info.
func InitStructured(env, level string) {
	var w io.Writer = os.Stdout
	switch env {
	case "local", "dev", "development":
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zlog = zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("service", "rempla-backend").
		Logger()
}

// GetLogger returns the global zerolog logger
func GetLogger() *zerolog.Logger {
	return &zlog
}

// Component returns a child logger tagged with the emitting subsystem
func Component(name string) *zerolog.Logger {
	l := zlog.With().Str("component", name).Logger()
	return &l
}

// WithRequestID returns a logger with request_id field
func WithRequestID(requestID string) zerolog.Logger {
	return zlog.With().Str("request_id", requestID).Logger()
}
