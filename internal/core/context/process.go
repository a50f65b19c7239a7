package context

import (
	"context"
	"time"
)

// ProcessContext identifies the batch process a call runs under.
type ProcessContext struct {
	ProcessType  string
	BusinessDate time.Time
}

type processContextKey struct{}

// WithProcess tags ctx with the running process so log lines carry it.
func WithProcess(ctx context.Context, processType string, businessDate time.Time) context.Context {
	return context.WithValue(ctx, processContextKey{}, &ProcessContext{
		ProcessType:  processType,
		BusinessDate: businessDate,
	})
}

// GetProcess returns ProcessContext from context.
func GetProcess(ctx context.Context) *ProcessContext {
	if v, ok := ctx.Value(processContextKey{}).(*ProcessContext); ok {
		return v
	}
	return nil
}
