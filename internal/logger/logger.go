// Package logger provides process-wide logging for contextkb.
// Debug output is only emitted in verbose mode (--verbose); informational,
// warning and error messages are always written to stderr.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/phuslu/log"
)

// Fields carries structured context attached to a log line.
type Fields map[string]any

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	base              = build(os.Stderr, false)
)

func build(w io.Writer, debug bool) *log.Logger {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}
	return &log.Logger{
		Level:      level,
		TimeFormat: "15:04:05",
		Writer: &log.ConsoleWriter{
			Writer:      w,
			QuoteString: true,
		},
	}
}

// SetVerbose enables or disables debug logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	base = build(output, verbose)
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	base = build(output, verbose)
}

func current() *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Debug logs a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	current().Debug().Msgf(format, args...)
}

// Section logs a section header if verbose mode is enabled.
func Section(name string) {
	current().Debug().Msgf("=== %s ===", name)
}

// Info logs an informational message.
func Info(format string, args ...any) {
	current().Info().Msgf(format, args...)
}

// Warn logs a warning.
func Warn(format string, args ...any) {
	current().Warn().Msgf(format, args...)
}

// Error logs an error message.
func Error(format string, args ...any) {
	current().Error().Msgf(format, args...)
}

// ErrorFields logs err together with structured context.
// Used at outward boundaries before an error is reduced to a generic message.
func ErrorFields(err error, msg string, fields Fields) {
	e := current().Error().Err(err)
	for k, v := range fields {
		e = e.Any(k, v)
	}
	e.Msg(msg)
}
