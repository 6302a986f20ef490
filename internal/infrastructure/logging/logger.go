package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/nerrad567/motioncsv/internal/infrastructure/config"
)

// Logger wraps slog.Logger with motioncsv default fields.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// Streams are the destinations a Logger can be configured to write to.
type Streams struct {
	Stdout io.Writer
	Stderr io.Writer
}

// New creates a new Logger with the specified configuration.
//
// It configures:
//   - Output format (text or JSON)
//   - Log level filtering
//   - Default fields (service name, version)
//   - Output destination, picked from streams by cfg.Output
//
// Parameters:
//   - cfg: Logging configuration
//   - version: Application version for default field
//   - streams: Writers for "stdout" and "stderr"
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string, streams Streams) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = streams.Stdout
	default:
		output = streams.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "motioncsv"),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
//
// Example:
//
//	clientLogger := logger.With("component", "motion")
//	clientLogger.Info("connected") // Includes component=motion
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}
