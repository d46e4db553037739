package obs

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	loggerOnce sync.Once
	logger     zerolog.Logger
)

// Init configures the shared logger. A "local" environment gets the
// human-readable console writer, everything else emits JSON lines.
func Init(appEnv string) {
	loggerOnce.Do(func() {
		if appEnv == "local" {
			logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
			return
		}
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	})
}

// Logger returns the shared structured logger used across the service.
func Logger() *zerolog.Logger {
	loggerOnce.Do(func() {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	})
	return &logger
}

// SetLoggerForTests replaces the shared logger. Only intended for test use.
func SetLoggerForTests(l zerolog.Logger) func() {
	Logger() // burn the once so a later call cannot overwrite l
	prev := logger
	logger = l
	return func() { logger = prev }
}
