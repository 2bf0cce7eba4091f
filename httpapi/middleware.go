package httpapi

import (
	"strings"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-router"
)

const (
	// LocalsUserKey holds the *accounts.VerifiedUser of an authenticated request.
	LocalsUserKey = "accounts.user"
	// LocalsClaimsKey holds the *accounts.SessionClaims of an authenticated request.
	LocalsClaimsKey = "accounts.claims"
)

var (
	errMissingToken    = accounts.WithMessage(accounts.ErrInvalidToken, "Access token is required", nil)
	errStaleToken      = accounts.WithMessage(accounts.ErrInvalidToken, "User no longer exists", nil)
	errRoleAssignment  = accounts.WithMessage(accounts.ErrForbidden, "Only administrators can assign roles", nil)
	errRoleRequirement = accounts.WithMessage(accounts.ErrForbidden, "Insufficient permissions", nil)
)

// RequireBearer authenticates requests carrying an access token. The token is
// verified first and the identity it names must still have a profile.
func RequireBearer(tokens TokenVerifier, users Service, logger accounts.Logger) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			user, claims, err := authenticate(ctx, tokens, users, logger)
			if err != nil {
				return respondError(ctx, err)
			}

			ctx.Locals(LocalsClaimsKey, claims)
			ctx.Locals(LocalsUserKey, user)

			stdCtx := accounts.WithClaims(ctx.Context(), claims)
			ctx.SetContext(accounts.WithUser(stdCtx, user))

			return next(ctx)
		}
	}
}

// RequireRole rejects callers whose profile role is below minRole. It must run
// after RequireBearer.
func RequireRole(minRole accounts.UserRole) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if !CurrentUser(ctx).Role.IsAtLeast(minRole) {
				return respondError(ctx, errRoleRequirement)
			}
			return next(ctx)
		}
	}
}

func authenticate(ctx router.Context, tokens TokenVerifier, users Service, logger accounts.Logger) (*accounts.VerifiedUser, *accounts.SessionClaims, error) {
	raw := bearerToken(ctx)
	if raw == "" {
		return nil, nil, errMissingToken
	}

	claims, err := tokens.VerifyAccess(raw)
	if err != nil {
		logger.Debug("bearer token rejected", "path", ctx.Path(), "error", err)
		return nil, nil, accounts.NewError(accounts.ErrInvalidToken, err, nil)
	}

	user, err := users.VerifyUserByID(ctx.Context(), claims.UserID())
	if err != nil {
		if accounts.KindOf(err) == accounts.KindNotFound {
			return nil, nil, errStaleToken
		}
		logger.Error("failed to verify bearer user", "user_id", claims.UserID(), "error", err)
		return nil, nil, err
	}

	return user, claims, nil
}

// CurrentUser returns the user stored by RequireBearer, or an empty user on
// routes that are not protected.
func CurrentUser(ctx router.Context) *accounts.VerifiedUser {
	if user, ok := ctx.Locals(LocalsUserKey).(*accounts.VerifiedUser); ok && user != nil {
		return user
	}
	return &accounts.VerifiedUser{}
}

// CurrentClaims returns the verified token claims, if any.
func CurrentClaims(ctx router.Context) (*accounts.SessionClaims, bool) {
	claims, ok := ctx.Locals(LocalsClaimsKey).(*accounts.SessionClaims)
	return claims, ok && claims != nil
}

func bearerToken(ctx router.Context) string {
	header := strings.TrimSpace(ctx.Header(router.HeaderAuthorization))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
