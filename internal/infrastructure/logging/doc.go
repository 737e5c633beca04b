// Package logging provides structured logging for the feedback daemon.
//
// It wraps log/slog so every package logs the same way: JSON in production,
// text on a developer console, with service and version attached to every
// entry.
//
// Configuration (config.yaml):
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Packages that log take a small Logger interface (Debug/Info/Warn/Error with
// key-value pairs) through SetLogger. *Logger satisfies all of them, so the
// daemon hands out children made with With:
//
//	logger := logging.New(cfg.Logging, version)
//	strip.SetLogger(logger.With("controller", "teensy"))
package logging
