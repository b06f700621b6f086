package auth

import "context"

// SessionTokenHeader carries the session token on authenticated requests.
const SessionTokenHeader = "X-STRIDEPT-TOKEN"

type contextKey struct{}

var userIDKey contextKey

// ContextWithUserID attaches the authenticated user id to the request
// context.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}
