package accounts

import (
	"context"

	"github.com/goliatone/go-errors"
)

// Login authenticates against the directory and issues a token pair whose
// role comes from the profile store.
func (c *Coordinator) Login(ctx context.Context, email, password string) (result *AuthResult, err error) {
	defer c.finish(ctx, "login", c.now(), &err)

	email = NormalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}

	identity, authErr := c.directory.Authenticate(ctx, email, password)
	if authErr != nil || identity == nil || identity.ID == "" {
		// unknown email and wrong password must look the same to the caller
		c.logger.Debug("login rejected", "error", authErr)
		c.emit(ctx, ActivityEventLoginFailure, "", AccountStateNonExistent, map[string]any{
			"email": email,
		})
		return nil, NewError(ErrInvalidCredentials, nil, nil)
	}

	profile, err := c.profiles.FindByID(ctx, identity.ID)
	if err != nil || profile == nil {
		if err == nil || IsNotFound(err) {
			c.logger.Error("identity without profile", "identity_id", identity.ID, "email", email)
			return nil, NewError(ErrProfileMissing, nil, map[string]any{"identity_id": identity.ID})
		}
		return nil, c.storeFailure("login profile lookup failed", identity.ID, err)
	}

	identityEmail := NormalizeEmail(identity.Email)
	if identityEmail == "" {
		identityEmail = email
	}

	tokens, err := c.tokens.IssuePair(ClaimSet{
		IdentityID: identity.ID,
		Email:      identityEmail,
		Role:       profile.Role,
	})
	if err != nil {
		return nil, NewError(ErrInternal, err, nil)
	}

	c.emit(ctx, ActivityEventLoginSuccess, identity.ID, AccountStateProvisioned, map[string]any{
		"role": string(profile.Role),
	})

	return &AuthResult{
		User: UserView{
			ID:            identity.ID,
			Email:         identityEmail,
			FullName:      profile.FullName,
			Role:          profile.Role,
			EmailVerified: identity.EmailConfirmed(),
		},
		Tokens: tokens,
	}, nil
}

// RefreshToken verifies a refresh token and issues a new access token from
// the current profile. The refresh token itself is not rotated.
func (c *Coordinator) RefreshToken(ctx context.Context, refreshToken string) (result *RefreshResult, err error) {
	defer c.finish(ctx, "refresh_token", c.now(), &err)

	claims, verifyErr := c.tokens.VerifyRefresh(refreshToken)
	if verifyErr != nil {
		c.logger.Debug("refresh token rejected", "error", verifyErr)
		return nil, NewError(ErrInvalidToken, verifyErr, nil)
	}

	userID := claims.UserID()
	profile, err := c.profiles.FindByID(ctx, userID)
	if err != nil || profile == nil {
		if err == nil || IsNotFound(err) {
			return nil, NewError(ErrUserMissing, nil, map[string]any{"identity_id": userID})
		}
		return nil, c.storeFailure("refresh profile lookup failed", userID, err)
	}

	access, err := c.tokens.IssueAccess(ClaimSet{
		IdentityID: profile.ID,
		Email:      profile.Email,
		Role:       profile.Role,
	})
	if err != nil {
		return nil, NewError(ErrInternal, err, nil)
	}

	c.emit(ctx, ActivityEventTokenRefreshed, profile.ID, AccountStateProvisioned, map[string]any{
		"role": string(profile.Role),
	})

	return &RefreshResult{
		AccessToken: access,
		User:        userView(profile),
	}, nil
}

// Logout asks the directory to invalidate the identity's sessions. Failures
// are logged and swallowed.
func (c *Coordinator) Logout(ctx context.Context, identityID string) {
	var err error
	defer c.finish(ctx, "logout", c.now(), &err)
	defer func() {
		if err != nil {
			c.logger.Warn("logout failed", "identity_id", identityID, "error", err)
			err = nil
		}
	}()

	if identityID == "" {
		return
	}

	err = c.directory.InvalidateSessions(ctx, identityID)
	if err == nil {
		c.emit(ctx, ActivityEventLogout, identityID, AccountStateProvisioned, nil)
	}
}

// RequestPasswordReset asks the directory to start recovery for email.
func (c *Coordinator) RequestPasswordReset(ctx context.Context, email string) (err error) {
	defer c.finish(ctx, "request_password_reset", c.now(), &err)

	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	if err := c.directory.RequestReset(ctx, email, c.resetRedirectURL); err != nil {
		return c.directoryFailure("password reset request failed", err)
	}

	c.emit(ctx, ActivityEventPasswordResetRequested, "", AccountStateProvisioned, map[string]any{
		"email": email,
	})
	return nil
}

// ResetPassword applies a new password using a recovery token issued by the
// directory.
func (c *Coordinator) ResetPassword(ctx context.Context, recoveryToken, newPassword string) (err error) {
	defer c.finish(ctx, "reset_password", c.now(), &err)

	if err := validateNewPassword(recoveryToken, newPassword); err != nil {
		return err
	}

	if err := c.directory.ApplyReset(ctx, recoveryToken, newPassword); err != nil {
		return c.directoryFailure("password reset failed", err)
	}

	c.emit(ctx, ActivityEventPasswordReset, "", AccountStateProvisioned, nil)
	return nil
}

// directoryFailure turns a rich directory error into InvalidRequest with the
// directory's message. Anything else is Internal.
func (c *Coordinator) directoryFailure(msg string, err error) error {
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr != nil && !isContextError(err) {
		if KindOf(richErr) != KindInternal {
			return WithMessage(ErrInvalidRequest, richErr.Message, err)
		}
	}

	c.logger.Error(msg, "error", err)
	return NewError(ErrInternal, err, nil)
}

func (c *Coordinator) storeFailure(msg, identityID string, err error) error {
	c.logger.Error(msg, "identity_id", identityID, "error", err)
	return NewError(ErrInternal, err, map[string]any{"identity_id": identityID})
}
