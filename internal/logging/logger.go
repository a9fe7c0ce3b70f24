// Package logging defines the leveled, printf-style Logger interface used
// throughout the engine, plus helpers (OrNop, IsNil,
// FromObservabilityWithComponent) so
// call sites never need a nil check before logging.
package logging

import (
	"reflect"

	"timeline/internal/observability"
)

// Logger is the leveled logging contract every engine component depends
// on. Concrete implementations are wrappers over internal/observability's
// structured logger.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// nopLogger discards everything; returned by OrNop when given a nil Logger.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// IsNil reports whether logger is a true nil interface, OR an interface
// wrapping a typed nil pointer (the classic `var p *T; var i I = p` gotcha)
// — both cases would panic on most real implementations.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	v := reflect.ValueOf(logger)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// OrNop returns logger unchanged unless it is nil (by IsNil's definition),
// in which case it returns a safe no-op Logger.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return nopLogger{}
	}
	return logger
}

// componentLogger stamps every line with a fixed component name, delegating
// to an observability.Logger for formatting and output.
type componentLogger struct {
	base      *observability.Logger
	component string
}

// FromObservabilityWithComponent wraps base, tagging every call with
// component. A nil base is tolerated and treated like OrNop(nil).
func FromObservabilityWithComponent(base *observability.Logger, component string) Logger {
	if base == nil {
		return nopLogger{}
	}
	return &componentLogger{base: base, component: component}
}

func (c *componentLogger) Debug(format string, args ...any) {
	c.base.Logf(observability.LevelDebug, c.component, format, args...)
}
func (c *componentLogger) Info(format string, args ...any) {
	c.base.Logf(observability.LevelInfo, c.component, format, args...)
}
func (c *componentLogger) Warn(format string, args ...any) {
	c.base.Logf(observability.LevelWarn, c.component, format, args...)
}
func (c *componentLogger) Error(format string, args ...any) {
	c.base.Logf(observability.LevelError, c.component, format, args...)
}
