package ctxutil

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

type correlationIDKey struct{}

// WithCorrelationID attaches an explicit correlation id to the context. Every
// pipeline run and query mints one up front and threads it through function
// boundaries instead of relying on ambient per-request state.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(Default(ctx), correlationIDKey{}, strings.TrimSpace(id))
}

// CorrelationID returns the correlation id on ctx, or "" when absent.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// EnsureCorrelationID returns ctx carrying a correlation id, minting a fresh
// one when none is present.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	ctx = Default(ctx)
	if id := CorrelationID(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithCorrelationID(ctx, id), id
}
