package local

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultResetTokenTTL = time.Hour
	minPasswordLength    = 8
)

// Directory is an IdentityDirectory backed by the local database. It is
// meant for development and single node deployments that do not run a
// hosted identity service.
type Directory struct {
	db       *bun.DB
	cost     int
	resetTTL time.Duration
	notifier RecoveryNotifier
	logger   accounts.Logger
	now      func() time.Time
	decoy    string
}

var _ accounts.IdentityDirectory = (*Directory)(nil)

// Option configures a Directory.
type Option func(*Directory)

// WithBcryptCost sets the bcrypt cost used for new hashes.
func WithBcryptCost(cost int) Option {
	return func(d *Directory) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			d.cost = cost
		}
	}
}

// WithResetTokenTTL sets how long recovery tokens stay valid.
func WithResetTokenTTL(ttl time.Duration) Option {
	return func(d *Directory) {
		if ttl > 0 {
			d.resetTTL = ttl
		}
	}
}

// WithRecoveryNotifier sets the recovery token delivery channel.
func WithRecoveryNotifier(notifier RecoveryNotifier) Option {
	return func(d *Directory) {
		if notifier != nil {
			d.notifier = notifier
		}
	}
}

// WithLoggerProvider resolves the directory logger from provider.
func WithLoggerProvider(provider accounts.LoggerProvider) Option {
	return func(d *Directory) {
		d.logger = accounts.ResolveLogger("accounts.provider.local", provider, d.logger)
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDirectory creates a local directory on db.
func NewDirectory(db *bun.DB, opts ...Option) *Directory {
	d := &Directory{
		db:       db,
		cost:     bcrypt.DefaultCost,
		resetTTL: defaultResetTokenTTL,
		logger:   accounts.ResolveLogger("accounts.provider.local", nil, nil),
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}

	if d.notifier == nil {
		d.notifier = logNotifier{logger: d.logger}
	}
	d.decoy = decoyHash(d.cost)

	return d
}

// CreateUser implements accounts.IdentityDirectory.
func (d *Directory) CreateUser(ctx context.Context, input accounts.NewIdentity) (*accounts.Identity, error) {
	email := accounts.NormalizeEmail(input.Email)
	if email == "" {
		return nil, accounts.WithMessage(accounts.ErrIdentityRejected, "email is required", nil)
	}
	if len(input.Password) < minPasswordLength {
		return nil, accounts.WithMessage(accounts.ErrIdentityRejected, "Password should be at least 8 characters", nil)
	}

	hash, err := HashPassword(input.Password, d.cost)
	if err != nil {
		return nil, accounts.WithMessage(accounts.ErrIdentityRejected, "password could not be hashed", err)
	}

	now := d.now()
	record := &IdentityRecord{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Metadata:     input.Metadata,
		CreatedAt:    &now,
		UpdatedAt:    &now,
	}
	if record.Metadata == nil {
		record.Metadata = map[string]any{}
	}
	if input.Confirmed {
		record.EmailConfirmedAt = &now
	}

	if _, err := d.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if accounts.IsDuplicateKeyError(err) {
			return nil, accounts.NewError(accounts.ErrIdentityExists, err, map[string]any{
				"email": email,
			})
		}
		d.logger.Error("identity insert failed", "email", email, "error", err)
		return nil, err
	}

	return record.toIdentity(), nil
}

// Authenticate implements accounts.IdentityDirectory. Unknown emails and
// wrong passwords return the same error after the same amount of work.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (*accounts.Identity, error) {
	record, err := d.findByEmail(ctx, d.db, accounts.NormalizeEmail(email))
	if err != nil {
		if !accounts.IsNotFound(err) {
			d.logger.Error("identity lookup failed", "error", err)
		}
		_ = ComparePasswordAndHash(password, d.decoy)
		return nil, accounts.NewError(accounts.ErrBadCredentials, nil, nil)
	}

	if err := ComparePasswordAndHash(password, record.PasswordHash); err != nil {
		return nil, accounts.NewError(accounts.ErrBadCredentials, nil, nil)
	}

	return record.toIdentity(), nil
}

// DeleteUser implements accounts.IdentityDirectory. Deleting an absent
// identity succeeds.
func (d *Directory) DeleteUser(ctx context.Context, identityID string) error {
	id, err := uuid.Parse(strings.TrimSpace(identityID))
	if err != nil {
		return nil
	}

	return d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*RecoveryTokenRecord)(nil)).
			Where("identity_id = ?", id).
			Exec(ctx); err != nil {
			return err
		}

		_, err := tx.NewDelete().
			Model((*IdentityRecord)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
}

// InvalidateSessions implements accounts.IdentityDirectory by bumping the
// session version. Issued tokens stay valid until they expire.
func (d *Directory) InvalidateSessions(ctx context.Context, identityID string) error {
	id, err := uuid.Parse(strings.TrimSpace(identityID))
	if err != nil {
		return identityNotFound(identityID)
	}

	now := d.now()
	res, err := d.db.NewUpdate().
		Model((*IdentityRecord)(nil)).
		Set("session_version = session_version + 1").
		Set("signed_out_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return identityNotFound(identityID)
	}
	return nil
}

// SessionVersion returns the current session version of an identity.
func (d *Directory) SessionVersion(ctx context.Context, identityID string) (int, error) {
	id, err := uuid.Parse(strings.TrimSpace(identityID))
	if err != nil {
		return 0, identityNotFound(identityID)
	}

	record := &IdentityRecord{}
	err = d.db.NewSelect().Model(record).Where("?TableAlias.id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, identityNotFound(identityID)
		}
		return 0, err
	}
	return record.SessionVersion, nil
}

// RequestReset implements accounts.IdentityDirectory. Unknown emails are
// accepted silently.
func (d *Directory) RequestReset(ctx context.Context, email, redirectTo string) error {
	email = accounts.NormalizeEmail(email)

	record, err := d.findByEmail(ctx, d.db, email)
	if err != nil {
		if accounts.IsNotFound(err) {
			d.logger.Debug("recovery requested for unknown email")
			return nil
		}
		return err
	}

	token, err := newRecoveryToken()
	if err != nil {
		return err
	}

	now := d.now()
	expiresAt := now.Add(d.resetTTL)
	recovery := &RecoveryTokenRecord{
		ID:         uuid.New(),
		IdentityID: record.ID,
		TokenHash:  hashRecoveryToken(token),
		RedirectTo: redirectTo,
		ExpiresAt:  expiresAt,
		CreatedAt:  &now,
	}

	if _, err := d.db.NewInsert().Model(recovery).Exec(ctx); err != nil {
		return err
	}

	return d.notifier.NotifyRecovery(ctx, Recovery{
		IdentityID: record.ID.String(),
		Email:      record.Email,
		Token:      token,
		RedirectTo: redirectTo,
		ExpiresAt:  expiresAt,
	})
}

// ApplyReset implements accounts.IdentityDirectory. The token is consumed and
// existing sessions are invalidated.
func (d *Directory) ApplyReset(ctx context.Context, recoveryToken, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return accounts.WithMessage(accounts.ErrIdentityRejected, "Password should be at least 8 characters", nil)
	}

	hash, err := HashPassword(newPassword, d.cost)
	if err != nil {
		return accounts.WithMessage(accounts.ErrIdentityRejected, "password could not be hashed", err)
	}

	now := d.now()
	tokenHash := hashRecoveryToken(strings.TrimSpace(recoveryToken))

	return d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		recovery := &RecoveryTokenRecord{}
		err := tx.NewSelect().
			Model(recovery).
			Where("?TableAlias.token_hash = ?", tokenHash).
			Where("?TableAlias.used_at IS NULL").
			Limit(1).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return invalidRecoveryToken()
			}
			return err
		}

		if !now.Before(recovery.ExpiresAt) {
			return invalidRecoveryToken()
		}

		res, err := tx.NewUpdate().
			Model((*IdentityRecord)(nil)).
			Set("password_hash = ?", hash).
			Set("session_version = session_version + 1").
			Set("updated_at = ?", now).
			Where("id = ?", recovery.IdentityID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return invalidRecoveryToken()
		}

		_, err = tx.NewUpdate().
			Model((*RecoveryTokenRecord)(nil)).
			Set("used_at = ?", now).
			Where("id = ?", recovery.ID).
			Exec(ctx)
		return err
	})
}

func (d *Directory) findByEmail(ctx context.Context, db bun.IDB, email string) (*IdentityRecord, error) {
	if email == "" {
		return nil, identityNotFound(email)
	}

	record := &IdentityRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, identityNotFound(email)
		}
		return nil, err
	}
	return record, nil
}

func identityNotFound(identifier string) error {
	return accounts.NewError(accounts.ErrIdentityNotFound, nil, map[string]any{
		"identifier": identifier,
	})
}

func invalidRecoveryToken() error {
	return accounts.WithMessage(accounts.ErrIdentityRejected, "Recovery token is invalid or has expired", nil)
}

func newRecoveryToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashRecoveryToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
