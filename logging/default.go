package logging

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// sink is the output state shared by a logger and every logger derived from
// it with WithFields or WithContext, so SetLevel and color changes reach
// loggers that components captured at construction
type sink struct {
	mu     sync.Mutex
	out    io.Writer // Debug, Info
	errOut io.Writer // Warn, Error, Fatal

	level  atomic.Int32
	colors atomic.Bool
	exit   func(code int)
}

func (s *sink) write(level Level, line string) {
	w := s.out
	if level >= WarnLevel {
		w = s.errOut
	}

	s.mu.Lock()
	fmt.Fprintln(w, line)
	s.mu.Unlock()

	if level == FatalLevel {
		s.exit(1)
	}
}

// DefaultLogger writes one "[LEVEL] msg: err k=v ..." line per entry, fields
// sorted by key. Warn and above go to the error writer, colored yellow, red
// and bold red when colors are on.
type DefaultLogger struct {
	sink   *sink
	fields Fields
}

// NewDefaultLogger logs to stdout/stderr, colored when stdout is a terminal
func NewDefaultLogger() *DefaultLogger {
	l := NewDefaultLoggerWithWriters(os.Stdout, os.Stderr)
	l.sink.colors.Store(isTerminal())
	return l
}

// NewDefaultLoggerNoColor logs to stdout/stderr without colors
func NewDefaultLoggerNoColor() *DefaultLogger {
	return NewDefaultLoggerWithWriters(os.Stdout, os.Stderr)
}

// NewDefaultLoggerWithWriters logs to out and errOut without colors at InfoLevel
func NewDefaultLoggerWithWriters(out, errOut io.Writer) *DefaultLogger {
	s := &sink{out: out, errOut: errOut, exit: os.Exit}
	s.level.Store(int32(InfoLevel))
	return &DefaultLogger{sink: s, fields: Fields{}}
}

func isTerminal() bool {
	info, err := os.Stdout.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func (d *DefaultLogger) format(level Level, err error, msg string, extra []Fields) string {
	fields := Fields{}
	maps.Copy(fields, d.fields)
	for _, f := range extra {
		maps.Copy(fields, f)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", level, msg)
	if err != nil {
		fmt.Fprintf(&sb, ": %v", err)
	}
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		fmt.Fprintf(&sb, " %s=%v", k, fields[k])
	}

	if !d.sink.colors.Load() {
		return sb.String()
	}
	switch level {
	case WarnLevel:
		return ColorYellow + sb.String() + ColorReset
	case ErrorLevel:
		return ColorRed + sb.String() + ColorReset
	case FatalLevel:
		return ColorBold + ColorRed + sb.String() + ColorReset
	default:
		return sb.String()
	}
}

func (d *DefaultLogger) log(level Level, err error, msg string, fields []Fields) {
	if level < Level(d.sink.level.Load()) {
		return
	}
	d.sink.write(level, d.format(level, err, msg, fields))
}

func (d *DefaultLogger) Debug(msg string, fields ...Fields) { d.log(DebugLevel, nil, msg, fields) }
func (d *DefaultLogger) Info(msg string, fields ...Fields)  { d.log(InfoLevel, nil, msg, fields) }
func (d *DefaultLogger) Warn(msg string, fields ...Fields)  { d.log(WarnLevel, nil, msg, fields) }

func (d *DefaultLogger) Error(err error, msg string, fields ...Fields) {
	d.log(ErrorLevel, err, msg, fields)
}

// Fatal logs and exits the process with status 1
func (d *DefaultLogger) Fatal(err error, msg string, fields ...Fields) {
	d.log(FatalLevel, err, msg, fields)
}

// WithFields returns a logger sharing d's output and level with fields added
func (d *DefaultLogger) WithFields(fields Fields) Logger {
	merged := Fields{}
	maps.Copy(merged, d.fields)
	maps.Copy(merged, fields)
	return &DefaultLogger{sink: d.sink, fields: merged}
}

func (d *DefaultLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := fieldsFromContext(ctx); ok {
		return d.WithFields(fields)
	}
	return d
}

// SetLevel changes the level of d and of every logger derived from it
func (d *DefaultLogger) SetLevel(level Level) {
	d.sink.level.Store(int32(level))
}

// NoOpLogger discards everything
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, fields ...Fields)            {}
func (n *NoOpLogger) Info(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Warn(msg string, fields ...Fields)             {}
func (n *NoOpLogger) Error(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) Fatal(err error, msg string, fields ...Fields) {}
func (n *NoOpLogger) WithFields(fields Fields) Logger               { return n }
func (n *NoOpLogger) WithContext(ctx context.Context) Logger        { return n }
func (n *NoOpLogger) SetLevel(level Level)                          {}
