package usercontext

import (
	"context"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/justinhw1987/invoiceflow/internal/observability/context"
)

// UserContextKey is the request context key for the authenticated user ID.
type UserContextKey struct{}

// WithUserID stores the acting user in the context. Every ledger query is
// scoped to this id.
func WithUserID(ctx context.Context, userID snowflake.ID) context.Context {
	ctx = context.WithValue(ctx, UserContextKey{}, userID)
	return obscontext.WithUserID(ctx, userID.String())
}

// UserIDFromContext returns the user ID from context, if set.
func UserIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	switch typed := ctx.Value(UserContextKey{}).(type) {
	case snowflake.ID:
		return typed, typed != 0
	case int64:
		return snowflake.ID(typed), typed != 0
	default:
		return 0, false
	}
}
