package accounts

import "context"

var userCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithUser sets the verified user in the given context
func WithUser(ctx context.Context, user *VerifiedUser) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// UserFromContext finds the verified user in the context.
func UserFromContext(ctx context.Context) (*VerifiedUser, bool) {
	raw, ok := ctx.Value(userCtxKey).(*VerifiedUser)
	return raw, ok && raw != nil
}

// WithClaims sets the session claims in the given context
func WithClaims(ctx context.Context, claims *SessionClaims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, claims)
}

// ClaimsFromContext extracts the session claims from the context
func ClaimsFromContext(ctx context.Context) (*SessionClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*SessionClaims)
	return raw, ok && raw != nil
}
