package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	debugTag = color.New(color.FgCyan).SprintFunc()
	warnTag  = color.New(color.FgYellow).SprintFunc()
	errorTag = color.New(color.FgRed, color.Bold).SprintFunc()
)

// sink is shared by a logger and every component logger derived from it.
type sink struct {
	mu      sync.Mutex
	out     io.Writer
	errOut  io.Writer
	fileLog *os.File
}

// Logger handles leveled logging with optional file output
type Logger struct {
	Verbose bool
	sink    *sink
	prefix  string
}

// New creates a new Logger instance writing to stdout/stderr
func New(verbose bool) *Logger {
	return NewWithWriters(verbose, os.Stdout, os.Stderr)
}

// NewWithWriters creates a Logger with explicit console writers.
func NewWithWriters(verbose bool, out, errOut io.Writer) *Logger {
	return &Logger{
		Verbose: verbose,
		sink:    &sink{out: out, errOut: errOut},
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewWithWriters(false, io.Discard, io.Discard)
}

// Component returns a child logger whose lines are prefixed with name.
// The child shares the parent's writers and file sink.
func (l *Logger) Component(name string) *Logger {
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "/" + name
	}
	return &Logger{Verbose: l.Verbose, sink: l.sink, prefix: prefix}
}

// SetFileLog enables logging to a file
func (l *Logger) SetFileLog(path string) error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.sink.fileLog = f
	return nil
}

// Close closes the log file if open
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.sink.fileLog != nil {
		err := l.sink.fileLog.Close()
		l.sink.fileLog = nil
		return err
	}
	return nil
}

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(l.sink.out, "", "", format, args...)
}

// Debug logs detailed messages only in verbose mode; the file sink always gets them.
func (l *Logger) Debug(format string, args ...interface{}) {
	out := l.sink.out
	if !l.Verbose {
		out = nil
	}
	l.log(out, "DEBUG", debugTag("[DEBUG]"), format, args...)
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(l.sink.out, "WARN", warnTag("[WARN]"), format, args...)
}

// Error logs error messages to stderr
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(l.sink.errOut, "ERROR", errorTag("[ERROR]"), format, args...)
}

// log writes one line to the console writer (if any) and the file sink.
func (l *Logger) log(console io.Writer, level, coloredTag, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		msg = l.prefix + ": " + msg
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if console != nil {
		if coloredTag != "" {
			fmt.Fprintf(console, "%s %s\n", coloredTag, msg)
		} else {
			fmt.Fprintln(console, msg)
		}
	}

	if l.sink.fileLog != nil {
		if level != "" {
			fmt.Fprintf(l.sink.fileLog, "[%s] %s\n", level, msg)
		} else {
			fmt.Fprintln(l.sink.fileLog, msg)
		}
	}
}
