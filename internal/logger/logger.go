package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var logger zerolog.Logger

const (
	LevelInfo  = "info"
	LevelDebug = "debug"
	LevelWarn  = "warn"
	LevelError = "error"
)

func init() {
	// Silent until a command decides otherwise
	SetSilentMode(true)
}

// SetSilentMode switches the shared logger between io.Discard and a console writer on stderr
func SetSilentMode(silent bool) {
	var output io.Writer = io.Discard
	if !silent {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}
	SetOutput(output)
}

// SetOutput replaces the writer behind the shared logger
func SetOutput(w io.Writer) {
	logger = zerolog.New(w).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// New returns the shared logger. Components keep their own copy so tests can inject another one.
func New() zerolog.Logger {
	return logger
}

// Component returns the shared logger tagged with a component name
func Component(name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// SetLevel sets the global log level
func SetLevel(level string) {
	switch level {
	case LevelDebug:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case LevelWarn:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case LevelError:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
