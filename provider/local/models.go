package local

import (
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// IdentityRecord is a credential held by the local directory.
type IdentityRecord struct {
	bun.BaseModel `bun:"table:identities,alias:idn"`

	ID               uuid.UUID      `bun:"id,pk,type:uuid"`
	Email            string         `bun:"email,notnull,unique"`
	PasswordHash     string         `bun:"password_hash,notnull"`
	EmailConfirmedAt *time.Time     `bun:"email_confirmed_at,nullzero"`
	Metadata         map[string]any `bun:"metadata,type:jsonb"`
	SessionVersion   int            `bun:"session_version,notnull,default:0"`
	SignedOutAt      *time.Time     `bun:"signed_out_at,nullzero"`
	CreatedAt        *time.Time     `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        *time.Time     `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *IdentityRecord) toIdentity() *accounts.Identity {
	return &accounts.Identity{
		ID:               r.ID.String(),
		Email:            r.Email,
		EmailConfirmedAt: r.EmailConfirmedAt,
		Metadata:         r.Metadata,
	}
}

// RecoveryTokenRecord is a single use password recovery token. Only the
// SHA-256 of the token is stored.
type RecoveryTokenRecord struct {
	bun.BaseModel `bun:"table:identity_recovery_tokens,alias:irt"`

	ID         uuid.UUID  `bun:"id,pk,type:uuid"`
	IdentityID uuid.UUID  `bun:"identity_id,notnull,type:uuid"`
	TokenHash  string     `bun:"token_hash,notnull,unique"`
	RedirectTo string     `bun:"redirect_to"`
	ExpiresAt  time.Time  `bun:"expires_at,notnull"`
	UsedAt     *time.Time `bun:"used_at,nullzero"`
	CreatedAt  *time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
