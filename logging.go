// Package ftlcore provides the module's module-level ambient concerns —
// currently just logging setup, kept at the root the way sop keeps its own
// ConfigureLogging at package sop's root rather than under an internal
// subpackage.
package ftlcore

import (
	"log/slog"
	"os"
)

var logLevel = new(slog.LevelVar)

// ConfigureLogging installs a slog.TextHandler against os.Stdout as the
// default logger, with level selected from FTL_LOG_LEVEL (DEBUG, WARN,
// ERROR; defaults to INFO). Call once at driver-binary startup.
func ConfigureLogging() {
	logLevel.Set(slog.LevelInfo)

	switch os.Getenv("FTL_LOG_LEVEL") {
	case "DEBUG":
		logLevel.Set(slog.LevelDebug)
	case "WARN":
		logLevel.Set(slog.LevelWarn)
	case "ERROR":
		logLevel.Set(slog.LevelError)
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

// SetLogLevel overrides the level set by ConfigureLogging at runtime.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}
