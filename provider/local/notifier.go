package local

import (
	"context"
	"time"

	"github.com/goliatone/go-accounts"
)

// Recovery is handed to a RecoveryNotifier when a reset is requested.
type Recovery struct {
	IdentityID string
	Email      string
	Token      string
	RedirectTo string
	ExpiresAt  time.Time
}

// RecoveryNotifier delivers recovery tokens to their owner.
type RecoveryNotifier interface {
	NotifyRecovery(ctx context.Context, recovery Recovery) error
}

// RecoveryNotifierFunc adapts a function to RecoveryNotifier.
type RecoveryNotifierFunc func(ctx context.Context, recovery Recovery) error

// NotifyRecovery implements RecoveryNotifier.
func (f RecoveryNotifierFunc) NotifyRecovery(ctx context.Context, recovery Recovery) error {
	if f == nil {
		return nil
	}
	return f(ctx, recovery)
}

// logNotifier writes the recovery link to the log. Only meant for
// development.
type logNotifier struct {
	logger accounts.Logger
}

func (n logNotifier) NotifyRecovery(_ context.Context, recovery Recovery) error {
	n.logger.Info("password recovery requested",
		"identity_id", recovery.IdentityID,
		"email", recovery.Email,
		"redirect_to", recovery.RedirectTo,
		"token", recovery.Token,
		"expires_at", recovery.ExpiresAt,
	)
	return nil
}
