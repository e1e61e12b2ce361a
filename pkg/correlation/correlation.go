// Package correlation carries a per-request identifier through contexts so
// transition records and logs can be joined across layers.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// NewID returns a fresh correlation identifier.
func NewID() string {
	return uuid.NewString()
}

// WithContext attaches id to ctx.
func WithContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the attached id, or a fresh one when absent so callers
// always have something to stamp.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return NewID()
}
