package observability

import (
	"context"

	"github.com/google/uuid"
)

type contextKey int

const (
	correlationIDCtxKey contextKey = iota
	userIDCtxKey
)

// Attribute keys added to every record logged with a tagged context.
const (
	CorrelationIDKey = "correlation_id"
	UserIDKey        = "user_id"
)

// WithCorrelationID tags ctx with id, or a new UUID when id is empty.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, correlationIDCtxKey, id)
}

// CorrelationIDFromContext returns the correlation ID or "".
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationIDCtxKey).(string)
	return id
}

// WithUserID tags ctx with the user an operation runs for.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext returns the tagged user, if any.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(userIDCtxKey).(uuid.UUID)
	return id, ok
}

// WithSyncRun prepares ctx for one sync of userID. A correlation ID set by
// the caller (a CLI command, an MCP request) is kept; scheduled runs get a
// fresh one.
func WithSyncRun(ctx context.Context, userID uuid.UUID) context.Context {
	if CorrelationIDFromContext(ctx) == "" {
		ctx = WithCorrelationID(ctx, "")
	}
	return WithUserID(ctx, userID)
}
