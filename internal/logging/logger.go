package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// NewLogger creates the structured root logger. Diagnostic output goes to
// stderr so stdout stays clean for command results.
func NewLogger(level string) zerolog.Logger {
	return NewLoggerTo(os.Stderr, level)
}

// NewLoggerTo writes to an explicit sink; tests capture output through it.
func NewLoggerTo(w io.Writer, level string) zerolog.Logger {
	logger := zerolog.New(w).With().Timestamp().Logger()

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	return logger.Level(parsed)
}
