// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// SystemOperator is reported when no authenticated operator is present.
const SystemOperator = "system"

// UserContext contains the authenticated operator.
type UserContext struct {
	UserID string
	Name   string
	Roles  []string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// Operator returns the name recorded as "executed by" for close and history
// rows: the operator name, then the user ID, then SystemOperator.
func Operator(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		if u.Name != "" {
			return u.Name
		}
		if u.UserID != "" {
			return u.UserID
		}
	}
	return SystemOperator
}
