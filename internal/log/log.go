// Package log provides the process-wide structured logger.
//
// Calls take a message followed by alternating key/value pairs:
//
//	log.Info("Template matched", "device_id", id, "reason", reason)
package log

import (
	"io"
	"os"
	"sync"

	"github.com/paularlott/logger"
	logzerolog "github.com/paularlott/logger/zerolog"
)

// Logger is the interface component loggers satisfy.
type Logger = logger.Logger

var (
	mu            sync.RWMutex
	defaultLogger = newLogger(os.Stderr, "info", "console")
)

func newLogger(w io.Writer, level, format string) Logger {
	if format != "json" {
		format = "console"
	}
	return logzerolog.New(logzerolog.Config{
		Level:  level,
		Format: format,
		Writer: w,
	})
}

// Configure sets the level (trace, debug, info, warn, error) and the output
// format (console, json) of the global logger. Unknown levels fall back to info.
func Configure(level, format string) {
	ConfigureWriter(os.Stderr, level, format)
}

// ConfigureWriter is Configure with an explicit destination.
func ConfigureWriter(w io.Writer, level, format string) {
	l := newLogger(w, level, format)
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

// GetLogger returns the global logger.
func GetLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// With returns a logger that adds key=value to every entry.
func With(key string, value any) Logger {
	return GetLogger().With(key, value)
}

// WithError returns a logger that attaches err to every entry.
func WithError(err error) Logger {
	return GetLogger().WithError(err)
}

func Trace(msg string, keysAndValues ...any) { GetLogger().Trace(msg, keysAndValues...) }
func Debug(msg string, keysAndValues ...any) { GetLogger().Debug(msg, keysAndValues...) }
func Info(msg string, keysAndValues ...any)  { GetLogger().Info(msg, keysAndValues...) }
func Warn(msg string, keysAndValues ...any)  { GetLogger().Warn(msg, keysAndValues...) }
func Error(msg string, keysAndValues ...any) { GetLogger().Error(msg, keysAndValues...) }
