package logging

import (
	"bytes"
	"testing"

	"callsieve/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrNopHandlesTypedNilPointers(t *testing.T) {
	var recorder *Recorder
	var logger Logger = recorder
	require.True(t, IsNil(logger), "expected typed nil pointer to be detected")

	safe := OrNop(logger)
	require.False(t, IsNil(safe))
	safe.Info("hello %s", "world") // should not panic
}

func TestFromObservabilityFormatsMessages(t *testing.T) {
	buf := &bytes.Buffer{}
	base := observability.NewLogger(observability.LogConfig{
		Level:  "info",
		Format: "text",
		Output: buf,
	})

	logger := FromObservabilityWithComponent(base, "parser")
	logger.Info("hello %s", "world")
	logger.Debug("filtered %d", 1)

	assert.Contains(t, buf.String(), "hello world")
	assert.Contains(t, buf.String(), "component=parser")
	assert.NotContains(t, buf.String(), "filtered")
}

func TestWithStreamIDOnSlogIsStructured(t *testing.T) {
	buf := &bytes.Buffer{}
	previous := observability.Default()
	t.Cleanup(func() { observability.SetDefault(previous) })
	observability.SetDefault(observability.NewLogger(observability.LogConfig{
		Level:  "debug",
		Format: "text",
		Output: buf,
	}))

	logger := WithStreamID(NewComponentLogger("parser"), "a.txt")
	WithStreamID(logger, "b.txt").Error("dots streaming step degraded: %s", "boom")

	line := buf.String()
	assert.Contains(t, line, "component=parser")
	assert.Contains(t, line, "stream=b.txt")
	assert.NotContains(t, line, "a.txt")
	assert.Contains(t, line, `msg="dots streaming step degraded: boom"`)
}

func TestWithStreamIDTagsLines(t *testing.T) {
	rec := NewRecorder()
	logger := WithStreamID(rec, "reply.txt")
	logger.Error("malformed call at %d", 12)
	WithStreamID(logger, "other.txt").Warn("undefined function: %s", "f")

	assert.Equal(t, []Entry{
		{Level: "error", Message: "stream=reply.txt malformed call at 12"},
		{Level: "warn", Message: "stream=other.txt undefined function: f"},
	}, rec.Entries())
	assert.Same(t, rec, WithStreamID(rec, ""))
	assert.IsType(t, nopLogger{}, WithStreamID(nil, "x"))
}
