package observability

import (
	"log/slog"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// ServiceName tags every log line.
const ServiceName = "weather-etl"

// NewLogger builds the process logger from the shared level and format
// parsing and installs it as the slog default.
func NewLogger(level, format string) *slog.Logger {
	logger := sharedobs.NewLogger(level, format).With("service", ServiceName)
	slog.SetDefault(logger)
	return logger
}
