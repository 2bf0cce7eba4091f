package repository

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupProfileStore(t *testing.T) *ProfileStore {
	t.Helper()

	return NewProfileStore(setupDB(t))
}

func newProfile(email string) *accounts.Profile {
	return &accounts.Profile{
		ID:            uuid.NewString(),
		Email:         email,
		FullName:      "Ada Lovelace",
		Role:          accounts.RoleApplicant,
		EmailVerified: true,
	}
}

func TestProfileStoreUpsertAndFind(t *testing.T) {
	store := setupProfileStore(t)
	ctx := context.Background()

	profile := newProfile("Ada@Example.com")
	stored, err := store.Upsert(ctx, profile)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, stored.ID)
	assert.Equal(t, "ada@example.com", stored.Email)
	assert.Equal(t, accounts.RoleApplicant, stored.Role)
	assert.True(t, stored.EmailVerified)
	require.NotNil(t, stored.CreatedAt)

	byID, err := store.FindByID(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", byID.FullName)

	byEmail, err := store.FindByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, profile.ID, byEmail.ID)
}

func TestProfileStoreUpsertReplacesByID(t *testing.T) {
	store := setupProfileStore(t)
	ctx := context.Background()

	profile := newProfile("ada@example.com")
	_, err := store.Upsert(ctx, profile)
	require.NoError(t, err)

	profile.FullName = "Ada King"
	profile.Role = accounts.RoleReviewer
	stored, err := store.Upsert(ctx, profile)
	require.NoError(t, err)
	assert.Equal(t, "Ada King", stored.FullName)
	assert.Equal(t, accounts.RoleReviewer, stored.Role)

	count, err := store.db.NewSelect().Model((*ProfileRecord)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProfileStoreUpsertRejectsDuplicateEmail(t *testing.T) {
	store := setupProfileStore(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, newProfile("ada@example.com"))
	require.NoError(t, err)

	_, err = store.Upsert(ctx, newProfile("ada@example.com"))
	require.Error(t, err)
	assert.True(t, accounts.IsDuplicateKeyError(err))
}

func TestProfileStoreUpsertRequiresUUID(t *testing.T) {
	store := setupProfileStore(t)

	profile := newProfile("ada@example.com")
	profile.ID = "not-a-uuid"

	_, err := store.Upsert(context.Background(), profile)
	require.Error(t, err)
	assert.Equal(t, accounts.KindInvalidRequest, accounts.KindOf(err))
}

func TestProfileStoreNotFound(t *testing.T) {
	store := setupProfileStore(t)
	ctx := context.Background()

	_, err := store.FindByID(ctx, uuid.NewString())
	require.Error(t, err)
	assert.True(t, accounts.IsNotFound(err))
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeRecordNotFound))

	_, err = store.FindByID(ctx, "garbage")
	assert.True(t, accounts.IsNotFound(err))

	_, err = store.FindByEmail(ctx, "nobody@example.com")
	assert.True(t, accounts.IsNotFound(err))

	name := "Grace"
	_, err = store.Update(ctx, uuid.NewString(), accounts.ProfileUpdate{FullName: &name})
	assert.True(t, accounts.IsNotFound(err))
}

func TestProfileStoreUpdatePartial(t *testing.T) {
	store := setupProfileStore(t)
	ctx := context.Background()

	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.WithClock(func() time.Time { return created })

	profile := newProfile("ada@example.com")
	_, err := store.Upsert(ctx, profile)
	require.NoError(t, err)

	later := created.Add(time.Hour)
	store.WithClock(func() time.Time { return later })

	phone := "+16502530000"
	updated, err := store.Update(ctx, profile.ID, accounts.ProfileUpdate{PhoneNumber: &phone})
	require.NoError(t, err)
	assert.Equal(t, phone, updated.PhoneNumber)
	assert.Equal(t, "Ada Lovelace", updated.FullName)
	assert.Equal(t, accounts.RoleApplicant, updated.Role)
	require.NotNil(t, updated.UpdatedAt)
	assert.WithinDuration(t, later, *updated.UpdatedAt, time.Second)
	require.NotNil(t, updated.CreatedAt)
	assert.WithinDuration(t, created, *updated.CreatedAt, time.Second)

	role := accounts.RoleStaff
	updated, err = store.Update(ctx, profile.ID, accounts.ProfileUpdate{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, accounts.RoleStaff, updated.Role)
	assert.Equal(t, phone, updated.PhoneNumber)
}
