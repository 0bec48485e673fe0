package middleware

import "context"

type contextKey string

const (
	ctxSellerID  contextKey = "seller_id"
	ctxSessionID contextKey = "session_id"
)

// SellerIDFromContext returns the authenticated seller, if any.
func SellerIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSellerID).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext returns the session id carried by the bearer token.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}

// WithSeller injects the seller and session identifiers into the context.
func WithSeller(ctx context.Context, sellerID, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxSellerID, sellerID)
	return context.WithValue(ctx, ctxSessionID, sessionID)
}
