package infra

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so the rest of the tree depends on the infra
// surface rather than on the third-party module directly.
type Logger = zerolog.Logger

// NewLogger builds the process logger. Development runs get human-readable
// console lines at debug level; everything else emits JSON at info with the
// environment stamped on every line.
func NewLogger(appEnv string) Logger {
	if appEnv == "development" {
		console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(console).
			Level(zerolog.DebugLevel).
			With().
			Timestamp().
			Logger()
	}

	return zerolog.New(os.Stdout).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Str("env", appEnv).
		Logger()
}
