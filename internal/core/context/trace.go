package context

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext tags the log lines of one HTTP request or one batch run.
type TraceContext struct {
	TraceID string
	// RunID is the request id for HTTP calls and the run id for batch commands.
	RunID string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, t *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, t)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// NewTraceContext builds a TraceContext. The trace id is taken from the
// active OpenTelemetry span when ctx has one; blank ids are generated.
func NewTraceContext(ctx context.Context, traceID, runID string) *TraceContext {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	if traceID == "" {
		traceID = uuid.NewString()
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	return &TraceContext{TraceID: traceID, RunID: runID}
}
