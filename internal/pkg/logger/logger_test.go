package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

// resetLogger resets the global logger state for testing.
func resetLogger() {
	baseLogger = nil
	initBaseLoggerOnce = sync.Once{}
}

// decodeLines parses every JSON entry written to buf.
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}

		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}

	return entries
}

func TestInit(t *testing.T) {
	t.Run("successful initialization with valid level", func(t *testing.T) {
		resetLogger()
		t.Cleanup(resetLogger)

		err := Init(WithLevel("debug"))
		require.NoError(t, err)
		assert.NotNil(t, baseLogger)
	})

	t.Run("error with invalid level", func(t *testing.T) {
		resetLogger()
		t.Cleanup(resetLogger)

		err := Init(WithLevel("invalid"))
		assert.Error(t, err)
		assert.Nil(t, baseLogger)
	})

	t.Run("init only once", func(t *testing.T) {
		resetLogger()
		t.Cleanup(resetLogger)

		require.NoError(t, Init(WithLevel("debug")))
		first := baseLogger

		require.NoError(t, Init(WithLevel("error")))
		assert.Same(t, first, baseLogger)
	})
}

func TestLogging(t *testing.T) {
	t.Run("logging before init does not panic", func(t *testing.T) {
		resetLogger()

		assert.NotPanics(t, func() {
			Info(t.Context(), "ignored", "key", "value")
			assert.NoError(t, Sync())
		})
	})

	t.Run("entries respect the configured level", func(t *testing.T) {
		resetLogger()
		t.Cleanup(resetLogger)

		var buf bytes.Buffer
		require.NoError(t, Init(WithLevel("warn"), WithWriter(&buf)))

		Info(t.Context(), "dropped")
		Warn(t.Context(), "kept", "wallet.address", "0xabc")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "kept", entries[0]["msg"])
		assert.Equal(t, "0xabc", entries[0]["wallet.address"])
	})

	t.Run("context fields are attached", func(t *testing.T) {
		resetLogger()
		t.Cleanup(resetLogger)

		var buf bytes.Buffer
		require.NoError(t, Init(WithWriter(&buf)))

		ctx := With(t.Context(), "stream.address", "0xabc")
		ctx = With(ctx, "stream.attempt", 2)
		Error(ctx, "stream failed")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, "0xabc", entries[0]["stream.address"])
		assert.EqualValues(t, 2, entries[0]["stream.attempt"])
	})

	t.Run("trace identifiers are attached for valid spans", func(t *testing.T) {
		resetLogger()
		t.Cleanup(resetLogger)

		var buf bytes.Buffer
		require.NoError(t, Init(WithWriter(&buf)))

		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: trace.TraceID{1, 2, 3},
			SpanID:  trace.SpanID{4, 5, 6},
		})
		ctx := trace.ContextWithSpanContext(context.Background(), sc)

		Info(ctx, "traced")

		entries := decodeLines(t, &buf)
		require.Len(t, entries, 1)
		assert.Equal(t, sc.TraceID().String(), entries[0]["trace.id"])
		assert.Equal(t, sc.SpanID().String(), entries[0]["span.id"])
	})
}
