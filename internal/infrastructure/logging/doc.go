// Package logging provides structured logging for motioncsv.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the application.
//
// # Features
//
//   - Text output for interactive use (human-readable)
//   - JSON output for log shipping (machine-parsable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Output
//
// Logs go to stderr unless configured otherwise. CSV rows are commonly
// written to stdout, so the two streams must stay apart:
//
//	logging:
//	  level: "warn"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0", logging.Streams{Stdout: os.Stdout, Stderr: os.Stderr})
//	logger.Info("connected", "address", "127.0.0.1:32076")
//	logger.Error("stream interrupted", "error", err)
package logging
