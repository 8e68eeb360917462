// Package logging is the process-wide leveled logger for a
// ChromoPainter-MutEM run, built on top of lunny/log the way the rest of
// the pack leans on a single small logging dependency instead of the bare
// standard library logger.
package logging

import (
	"io"
	"os"

	"github.com/lunny/log"
)

// Logger is the leveled logger used across the module. It is a thin
// wrapper so call sites never import lunny/log directly.
type Logger struct {
	l *log.Logger
}

var std = New(os.Stderr)

// New builds a Logger writing to w at Info level.
func New(w io.Writer) *Logger {
	l := log.New(w, "", log.Ldefault)
	l.Level = log.Linfo
	return &Logger{l: l}
}

// SetVerbose raises the global logger to Debug level when -v is passed.
func SetVerbose(verbose bool) {
	if verbose {
		std.l.Level = log.Ldebug
	} else {
		std.l.Level = log.Linfo
	}
}

// Debug logs a verbose diagnostic line (argv echo, dataset dumps, …).
func Debug(format string, args ...interface{}) { std.l.Debugf(format, args...) }

// Info logs a normal progress line (EM iteration summaries, …).
func Info(format string, args ...interface{}) { std.l.Infof(format, args...) }

// Warn logs a recoverable condition (e.g. recombination map mismatch
// downgraded by the jitter flag).
func Warn(format string, args ...interface{}) { std.l.Warnf(format, args...) }

// Fatal logs the single diagnostic line for a fatal error. It does not
// exit the process; callers choose the exit path (§7's --internalerrors
// swaps immediate exit for a blocking prompt).
func Fatal(format string, args ...interface{}) { std.l.Errorf(format, args...) }
