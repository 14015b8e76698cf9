// Package logger provides leveled logging shared by connectors, agents and
// the orchestrator. Debug output is only written when verbose mode is on.
package logger

import (
	"fmt"
	"io"
	"log"
)

// Logger writes [DEBUG], [INFO], [WARN] and [ERROR] lines to a *log.Logger.
type Logger struct {
	out     *log.Logger
	verbose bool
}

// New returns a Logger writing to w with standard date/time flags.
func New(w io.Writer, verbose bool) *Logger {
	return &Logger{
		out:     log.New(w, "", log.LstdFlags),
		verbose: verbose,
	}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, false)
}

// OrDiscard returns l, or a discarding Logger when l is nil.
func OrDiscard(l *Logger) *Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// IsVerbose reports whether debug output is enabled.
func (l *Logger) IsVerbose() bool {
	return l.verbose
}

// Debug prints a message if verbose mode is enabled.
func (l *Logger) Debug(format string, args ...any) {
	if l.verbose {
		l.print("[DEBUG] ", format, args...)
	}
}

// Info prints an informational message.
func (l *Logger) Info(format string, args ...any) {
	l.print("[INFO] ", format, args...)
}

// Warn prints a warning message.
func (l *Logger) Warn(format string, args ...any) {
	l.print("[WARN] ", format, args...)
}

// Error prints an error message.
func (l *Logger) Error(format string, args ...any) {
	l.print("[ERROR] ", format, args...)
}

func (l *Logger) print(level, format string, args ...any) {
	l.out.Print(level + fmt.Sprintf(format, args...))
}
