package logging

import (
	"bytes"
	"testing"

	"timeline/internal/observability"
)

// legacyLogger stands in for a concrete Logger implementation that might be
// passed around as a typed nil pointer — the classic Go gotcha where a nil
// *T wrapped in an interface is not == nil.
type legacyLogger struct{}

func (l *legacyLogger) Debug(string, ...any) {}
func (l *legacyLogger) Info(string, ...any)  {}
func (l *legacyLogger) Warn(string, ...any)  {}
func (l *legacyLogger) Error(string, ...any) {}

func TestOrNopHandlesTypedNilPointers(t *testing.T) {
	var legacy *legacyLogger
	var logger Logger = legacy
	if !IsNil(logger) {
		t.Fatalf("expected typed nil pointer to be detected")
	}
	safe := OrNop(logger)
	if IsNil(safe) {
		t.Fatalf("expected OrNop to return a usable logger")
	}
	safe.Info("hello %s", "world") // should not panic
}

func TestFromObservabilityFormatsMessages(t *testing.T) {
	buf := &bytes.Buffer{}
	base := observability.NewLogger(observability.LogConfig{
		Level:  "info",
		Format: "text",
		Output: buf,
	})

	logger := FromObservabilityWithComponent(base, "test")
	logger.Info("hello %s", "world")

	if got := buf.String(); got == "" {
		t.Fatalf("expected log output")
	}
	if want := "hello world"; !bytes.Contains(buf.Bytes(), []byte(want)) {
		t.Fatalf("expected %q in output, got %q", want, buf.String())
	}
}
