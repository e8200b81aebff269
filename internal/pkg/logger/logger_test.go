package logger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

// resetLogger resets the global logger state for testing
func resetLogger() {
	baseLogger = nil
	initBaseLoggerOnce = sync.Once{}
}

func TestInit(t *testing.T) {
	t.Run("initializes with the default level", func(t *testing.T) {
		resetLogger()
		require.NoError(t, Init())
		assert.NotNil(t, baseLogger)
	})

	t.Run("initializes with a custom level", func(t *testing.T) {
		resetLogger()
		require.NoError(t, Init(WithLevel("debug")))
		assert.NotNil(t, baseLogger)
	})

	t.Run("rejects an invalid level", func(t *testing.T) {
		resetLogger()
		err := Init(WithLevel("loud"))
		assert.Error(t, err)
		assert.Nil(t, baseLogger)
	})

	t.Run("only the first call configures the logger", func(t *testing.T) {
		resetLogger()
		require.NoError(t, Init())
		first := baseLogger

		require.NoError(t, Init(WithLevel("error")))
		assert.Same(t, first, baseLogger)
	})
}

func TestFrom(t *testing.T) {
	t.Run("returns a nop logger before Init", func(t *testing.T) {
		resetLogger()
		assert.NotNil(t, from(context.Background()))
	})

	t.Run("attaches trace identifiers when present", func(t *testing.T) {
		resetLogger()
		require.NoError(t, Init())

		sc := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    trace.TraceID{1, 2, 3},
			SpanID:     trace.SpanID{4, 5, 6},
			TraceFlags: trace.FlagsSampled,
		})
		ctx := trace.ContextWithSpanContext(context.Background(), sc)

		assert.NotSame(t, baseLogger, from(ctx))
		assert.Same(t, baseLogger, from(context.Background()))
	})
}

func TestHelpers(t *testing.T) {
	resetLogger()
	require.NoError(t, Init(WithLevel("debug")))
	ctx := context.Background()

	assert.NotPanics(t, func() {
		Debug(ctx, "debug message", "key", "value")
		Info(ctx, "info message", "key", 1)
		Warn(ctx, "warn message")
		Error(ctx, "error message", "error", assert.AnError)
	})
	_ = Sync()
}
