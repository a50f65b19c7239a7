package context_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"

	appctx "invclose/internal/core/context"
)

func TestNewTraceContext(t *testing.T) {
	t.Run("keeps given ids", func(t *testing.T) {
		tc := appctx.NewTraceContext(context.Background(), "trace-1", "req-1")
		assert.Equal(t, "trace-1", tc.TraceID)
		assert.Equal(t, "req-1", tc.RunID)
	})

	t.Run("generates blank ids", func(t *testing.T) {
		tc := appctx.NewTraceContext(context.Background(), "", "")
		assert.Len(t, tc.TraceID, 36)
		assert.Len(t, tc.RunID, 36)
		assert.NotEqual(t, tc.TraceID, tc.RunID)
	})

	t.Run("prefers active span", func(t *testing.T) {
		traceID := trace.TraceID{0x0a, 0x0b, 0x0c, 0x01}
		ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: traceID,
			SpanID:  trace.SpanID{0x01},
		}))

		tc := appctx.NewTraceContext(ctx, "ignored", "run-1")
		assert.Equal(t, traceID.String(), tc.TraceID)
		assert.Equal(t, "run-1", tc.RunID)
	})
}

func TestOperator(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, appctx.SystemOperator, appctx.Operator(ctx))

	assert.Equal(t, "u-7", appctx.Operator(appctx.WithUser(ctx, &appctx.UserContext{UserID: "u-7"})))
	assert.Equal(t, "Sato", appctx.Operator(appctx.WithUser(ctx, &appctx.UserContext{UserID: "u-7", Name: "Sato"})))
	assert.Nil(t, appctx.GetTrace(ctx))
}
