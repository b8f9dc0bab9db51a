package logger

import (
	"log/slog"
	"os"
)

// New creates a structured JSON logger. Level comes from LOG_LEVEL/DEBUG so
// all three services share the same behavior.
func New() *slog.Logger {
	debug := os.Getenv("DEBUG") == "true" || os.Getenv("LOG_LEVEL") == "debug"

	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: debug,
	})

	return slog.New(handler)
}
