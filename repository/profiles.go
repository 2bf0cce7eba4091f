package repository

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProfileRecord is the bun model for the profiles table.
type ProfileRecord struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`

	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	FullName      string     `bun:"full_name,notnull" json:"full_name"`
	Role          string     `bun:"role,notnull" json:"role"`
	EmailVerified bool       `bun:"email_verified,notnull" json:"email_verified"`
	PhoneNumber   string     `bun:"phone_number,nullzero" json:"phone_number,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at,omitempty"`
}

// ProfileStore implements accounts.ProfileStore on top of bun.
type ProfileStore struct {
	db      *bun.DB
	records repository.Repository[*ProfileRecord]
	logger  accounts.Logger
	now     func() time.Time
}

var _ accounts.ProfileStore = (*ProfileStore)(nil)

// NewProfileStore creates a profile store backed by db.
func NewProfileStore(db *bun.DB) *ProfileStore {
	return &ProfileStore{
		db:      db,
		records: NewProfileRecordsRepository(db),
		logger:  accounts.ResolveLogger("accounts.repository", nil, nil),
		now:     time.Now,
	}
}

// NewProfileRecordsRepository returns the generic repository for profiles.
// Lookups by identifier use the email column.
func NewProfileRecordsRepository(db *bun.DB) repository.Repository[*ProfileRecord] {
	handlers := repository.ModelHandlers[*ProfileRecord]{
		NewRecord: func() *ProfileRecord {
			return &ProfileRecord{}
		},
		GetID: func(record *ProfileRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *ProfileRecord, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	}
	return repository.NewRepository(db, handlers)
}

// WithLoggerProvider resolves the store logger from provider.
func (s *ProfileStore) WithLoggerProvider(provider accounts.LoggerProvider) *ProfileStore {
	s.logger = accounts.ResolveLogger("accounts.repository", provider, s.logger)
	return s
}

// WithClock overrides the time source used to stamp updates.
func (s *ProfileStore) WithClock(now func() time.Time) *ProfileStore {
	if now != nil {
		s.now = now
	}
	return s
}

// FindByEmail implements accounts.ProfileStore.
func (s *ProfileStore) FindByEmail(ctx context.Context, email string) (*accounts.Profile, error) {
	email = accounts.NormalizeEmail(email)
	if email == "" {
		return nil, notFound("email", email, nil)
	}

	record, err := s.records.GetByIdentifier(ctx, email)
	if err != nil {
		return nil, translate(err, "email", email)
	}
	return toProfile(record), nil
}

// FindByID implements accounts.ProfileStore.
func (s *ProfileStore) FindByID(ctx context.Context, identityID string) (*accounts.Profile, error) {
	id, ok := parseID(identityID)
	if !ok {
		return nil, notFound("id", identityID, nil)
	}

	record, err := s.records.GetByID(ctx, id.String())
	if err != nil {
		return nil, translate(err, "id", identityID)
	}
	return toProfile(record), nil
}

// Upsert implements accounts.ProfileStore. The identity ID is the conflict
// key, so replaying a registration rewrites the same row.
func (s *ProfileStore) Upsert(ctx context.Context, profile *accounts.Profile) (*accounts.Profile, error) {
	if profile == nil {
		return nil, accounts.WithMessage(accounts.ErrInvalidRequest, "profile is required", nil)
	}

	record, err := fromProfile(profile)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	record.UpdatedAt = &now

	_, err = s.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("email = EXCLUDED.email").
		Set("full_name = EXCLUDED.full_name").
		Set("role = EXCLUDED.role").
		Set("email_verified = EXCLUDED.email_verified").
		Set("phone_number = EXCLUDED.phone_number").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		s.logger.Error("profile upsert failed", "id", record.ID, "error", err)
		return nil, err
	}

	return s.FindByID(ctx, record.ID.String())
}

// Update implements accounts.ProfileStore. Only the non nil fields of update
// are written.
func (s *ProfileStore) Update(ctx context.Context, identityID string, update accounts.ProfileUpdate) (*accounts.Profile, error) {
	id, ok := parseID(identityID)
	if !ok {
		return nil, notFound("id", identityID, nil)
	}

	now := s.now()
	record := &ProfileRecord{ID: id, UpdatedAt: &now}
	columns := []string{"updated_at"}

	if update.FullName != nil {
		record.FullName = *update.FullName
		columns = append(columns, "full_name")
	}
	if update.PhoneNumber != nil {
		record.PhoneNumber = *update.PhoneNumber
		columns = append(columns, "phone_number")
	}
	if update.Role != nil {
		record.Role = string(*update.Role)
		columns = append(columns, "role")
	}

	res, err := s.db.NewUpdate().
		Model(record).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		s.logger.Error("profile update failed", "id", identityID, "error", err)
		return nil, err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, notFound("id", identityID, nil)
	}

	return s.FindByID(ctx, identityID)
}

func translate(err error, column, value string) error {
	if repository.IsRecordNotFound(err) || accounts.IsNotFound(err) {
		return notFound(column, value, err)
	}
	return err
}

func notFound(column, value string, source error) error {
	return accounts.NewError(accounts.ErrRecordNotFound, source, map[string]any{
		"table":  "profiles",
		"column": column,
		"value":  value,
	})
}

func parseID(identityID string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(identityID))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

func toProfile(record *ProfileRecord) *accounts.Profile {
	if record == nil {
		return nil
	}
	return &accounts.Profile{
		ID:            record.ID.String(),
		Email:         record.Email,
		FullName:      record.FullName,
		Role:          accounts.UserRole(record.Role),
		EmailVerified: record.EmailVerified,
		PhoneNumber:   record.PhoneNumber,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

func fromProfile(profile *accounts.Profile) (*ProfileRecord, error) {
	id, ok := parseID(profile.ID)
	if !ok {
		return nil, accounts.WithMessage(accounts.ErrInvalidRequest, "profile id must be a UUID", nil)
	}

	role := profile.Role
	if role == "" {
		role = accounts.RoleApplicant
	}

	return &ProfileRecord{
		ID:            id,
		Email:         accounts.NormalizeEmail(profile.Email),
		FullName:      profile.FullName,
		Role:          string(role),
		EmailVerified: profile.EmailVerified,
		PhoneNumber:   profile.PhoneNumber,
		CreatedAt:     profile.CreatedAt,
		UpdatedAt:     profile.UpdatedAt,
	}, nil
}
