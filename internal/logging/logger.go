// Package logging provides structured logging for the LIDAR consolidation
// agent using zerolog.
//
// The logger is safe to use before Initialize is called: init() installs a
// sensible info-level default so early startup code (flag parsing, config
// loading) can log without special-casing package order.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log = zerolog.New(output).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Logger()
}

// Initialize configures the global logger at the given level. Unknown
// levels fall back to info with a warning.
func Initialize(level string) {
	logLevel, ok := parseLevel(level)
	if !ok {
		tempOutput := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		tempLog := zerolog.New(tempOutput).With().Timestamp().Logger()
		tempLog.Warn().Str("level", level).Msg("unknown log level, defaulting to info")
		logLevel = zerolog.InfoLevel
	}

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log = zerolog.New(output).
		Level(logLevel).
		With().
		Timestamp().
		Logger()
}

func parseLevel(level string) (zerolog.Level, bool) {
	switch strings.ToLower(level) {
	case "", "info":
		return zerolog.InfoLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "fatal":
		return zerolog.FatalLevel, true
	case "panic":
		return zerolog.PanicLevel, true
	default:
		return zerolog.InfoLevel, false
	}
}

// Get returns the global logger.
func Get() *zerolog.Logger { return &log }

// Debug starts a debug-level event.
func Debug() *zerolog.Event { return log.Debug() }

// Info starts an info-level event.
func Info() *zerolog.Event { return log.Info() }

// Warn starts a warn-level event.
func Warn() *zerolog.Event { return log.Warn() }

// Error starts an error-level event.
func Error() *zerolog.Event { return log.Error() }

// Fatal starts a fatal-level event. Logging at this level exits the process.
func Fatal() *zerolog.Event { return log.Fatal() }

// With returns a context for building a child logger with preset fields.
func With() zerolog.Context { return log.With() }
