package logging

import (
	"fmt"
	"reflect"

	"callsieve/internal/observability"
)

// Logger defines a minimal, printf-style logging contract.
//
// Detectors, the catalog and the CLI all depend on this interface rather than
// on slog directly so tests can swap in a recorder.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// IsNil reports whether logger is nil or wraps a nil pointer receiver.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	val := reflect.ValueOf(logger)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return logger
}

// NewComponentLogger scopes the process-wide slog logger to one component
// (parser, catalog, assembler, cli).
func NewComponentLogger(component string) Logger {
	return FromObservabilityWithComponent(observability.Default(), component)
}

// slogLogger formats printf-style calls and hands them to slog. The stream
// tag is a structured attribute here instead of a message prefix.
type slogLogger struct {
	component *observability.Logger
	scoped    *observability.Logger
}

// FromObservabilityWithComponent wraps an observability logger, adding a
// component attribute when one is given.
func FromObservabilityWithComponent(logger *observability.Logger, component string) Logger {
	if logger == nil {
		return Nop()
	}
	if component != "" {
		logger = logger.With("component", component)
	}
	return &slogLogger{component: logger, scoped: logger}
}

// WithStreamID derives from the component logger, so tagging twice replaces
// the stream attribute.
func (l *slogLogger) WithStreamID(streamID string) Logger {
	return &slogLogger{component: l.component, scoped: l.component.With("stream", streamID)}
}

func (l *slogLogger) Debug(format string, args ...any) {
	l.scoped.Debug(fmt.Sprintf(format, args...))
}

func (l *slogLogger) Info(format string, args ...any) {
	l.scoped.Info(fmt.Sprintf(format, args...))
}

func (l *slogLogger) Warn(format string, args ...any) {
	l.scoped.Warn(fmt.Sprintf(format, args...))
}

func (l *slogLogger) Error(format string, args ...any) {
	l.scoped.Error(fmt.Sprintf(format, args...))
}
