package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-logger/glog"
)

// Logger is the structured logger used across the module.
type Logger = glog.Logger

// LoggerProvider resolves named loggers.
type LoggerProvider = glog.LoggerProvider

// IdentityDirectory is the external system of record for credentials.
// Implementations must report duplicates with ErrIdentityExists, validation
// rejections with ErrIdentityRejected and failed authentication with
// ErrBadCredentials so the Coordinator can classify them.
type IdentityDirectory interface {
	CreateUser(ctx context.Context, input NewIdentity) (*Identity, error)
	Authenticate(ctx context.Context, email, password string) (*Identity, error)
	// DeleteUser is only used to compensate a failed registration.
	DeleteUser(ctx context.Context, identityID string) error
	InvalidateSessions(ctx context.Context, identityID string) error
	RequestReset(ctx context.Context, email, redirectTo string) error
	ApplyReset(ctx context.Context, recoveryToken, newPassword string) error
}

// ProfileStore is the external system of record for application attributes.
// Lookups return an error in the ErrRecordNotFound class when the record is
// absent.
type ProfileStore interface {
	FindByEmail(ctx context.Context, email string) (*Profile, error)
	FindByID(ctx context.Context, identityID string) (*Profile, error)
	// Upsert inserts or replaces the profile using the identity ID as the
	// conflict key.
	Upsert(ctx context.Context, profile *Profile) (*Profile, error)
	Update(ctx context.Context, identityID string, update ProfileUpdate) (*Profile, error)
}

// Config holds the options the Coordinator and the TokenService read.
type Config interface {
	GetAccessTokenSecret() string
	GetRefreshTokenSecret() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetIssuer() string
	GetPasswordResetRedirectURL() string
	GetCompensationTimeout() time.Duration
}

// Metrics records coordinator outcomes.
type Metrics interface {
	RecordOperation(operation string, kind ErrorKind, duration time.Duration)
	RecordCompensation(step string, succeeded bool)
	RecordDanglingIdentity()
}

type noopMetrics struct{}

func (noopMetrics) RecordOperation(string, ErrorKind, time.Duration) {}
func (noopMetrics) RecordCompensation(string, bool)                 {}
func (noopMetrics) RecordDanglingIdentity()                         {}
