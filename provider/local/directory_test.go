package local

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/config"
	"github.com/goliatone/go-accounts/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

type capturedRecoveries struct {
	mu    sync.Mutex
	items []Recovery
}

func (c *capturedRecoveries) NotifyRecovery(_ context.Context, recovery Recovery) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, recovery)
	return nil
}

func (c *capturedRecoveries) last(t *testing.T) Recovery {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.items)
	return c.items[len(c.items)-1]
}

func setupDirectory(t *testing.T, opts ...Option) (*Directory, *capturedRecoveries) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db, err := repository.Migrate(context.Background(), config.Persistence{
		Driver:      config.DriverSQLite,
		DSN:         "file::memory:",
		PingTimeout: time.Second,
	}, sqldb, sqlitedialect.New(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})

	notifier := &capturedRecoveries{}
	opts = append([]Option{
		WithBcryptCost(bcrypt.MinCost),
		WithRecoveryNotifier(notifier),
	}, opts...)

	return NewDirectory(db, opts...), notifier
}

func createAda(t *testing.T, dir *Directory) *accounts.Identity {
	t.Helper()
	identity, err := dir.CreateUser(context.Background(), accounts.NewIdentity{
		Email:     "Ada@Example.com",
		Password:  "correct-horse",
		Confirmed: true,
		Metadata:  map[string]any{"full_name": "Ada Lovelace", "role": "applicant"},
	})
	require.NoError(t, err)
	return identity
}

func TestDirectoryCreateAndAuthenticate(t *testing.T) {
	dir, _ := setupDirectory(t)
	ctx := context.Background()

	identity := createAda(t, dir)
	assert.NotEmpty(t, identity.ID)
	assert.Equal(t, "ada@example.com", identity.Email)
	assert.True(t, identity.EmailConfirmed())

	authenticated, err := dir.Authenticate(ctx, "ada@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, identity.ID, authenticated.ID)
	assert.Equal(t, "Ada Lovelace", authenticated.Metadata["full_name"])
}

func TestDirectoryCreateDuplicate(t *testing.T) {
	dir, _ := setupDirectory(t)
	createAda(t, dir)

	_, err := dir.CreateUser(context.Background(), accounts.NewIdentity{
		Email:    "ada@example.com",
		Password: "another-password",
	})
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeIdentityExists))
	assert.Equal(t, accounts.KindConflict, accounts.KindOf(err))
}

func TestDirectoryCreateRejectsWeakPassword(t *testing.T) {
	dir, _ := setupDirectory(t)

	_, err := dir.CreateUser(context.Background(), accounts.NewIdentity{
		Email:    "ada@example.com",
		Password: "short",
	})
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeIdentityRejected))
}

func TestDirectoryAuthenticateFailuresMatch(t *testing.T) {
	dir, _ := setupDirectory(t)
	ctx := context.Background()
	createAda(t, dir)

	_, wrongPassword := dir.Authenticate(ctx, "ada@example.com", "wrong-password")
	_, unknownEmail := dir.Authenticate(ctx, "nobody@example.com", "correct-horse")

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	assert.True(t, accounts.HasTextCode(wrongPassword, accounts.TextCodeBadCredentials))
	assert.True(t, accounts.HasTextCode(unknownEmail, accounts.TextCodeBadCredentials))
}

func TestDirectoryDeleteUser(t *testing.T) {
	dir, _ := setupDirectory(t)
	ctx := context.Background()
	identity := createAda(t, dir)

	require.NoError(t, dir.DeleteUser(ctx, identity.ID))
	require.NoError(t, dir.DeleteUser(ctx, identity.ID))

	_, err := dir.Authenticate(ctx, "ada@example.com", "correct-horse")
	assert.Error(t, err)

	again, err := dir.CreateUser(ctx, accounts.NewIdentity{Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEqual(t, identity.ID, again.ID)
	assert.False(t, again.EmailConfirmed())
}

func TestDirectoryInvalidateSessions(t *testing.T) {
	dir, _ := setupDirectory(t)
	ctx := context.Background()
	identity := createAda(t, dir)

	version, err := dir.SessionVersion(ctx, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, version)

	require.NoError(t, dir.InvalidateSessions(ctx, identity.ID))
	require.NoError(t, dir.InvalidateSessions(ctx, identity.ID))

	version, err = dir.SessionVersion(ctx, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	err = dir.InvalidateSessions(ctx, "3f1f4d3a-7d7c-4c59-b7a5-2f9f0d5c1a11")
	assert.True(t, accounts.IsNotFound(err))
}

func TestDirectoryPasswordRecovery(t *testing.T) {
	dir, notifier := setupDirectory(t)
	ctx := context.Background()
	identity := createAda(t, dir)

	require.NoError(t, dir.RequestReset(ctx, "ada@example.com", "http://localhost:3000/reset-password"))
	recovery := notifier.last(t)
	assert.Equal(t, identity.ID, recovery.IdentityID)
	assert.Equal(t, "http://localhost:3000/reset-password", recovery.RedirectTo)
	assert.NotEmpty(t, recovery.Token)

	require.NoError(t, dir.ApplyReset(ctx, recovery.Token, "brand-new-password"))

	_, err := dir.Authenticate(ctx, "ada@example.com", "correct-horse")
	assert.Error(t, err)
	_, err = dir.Authenticate(ctx, "ada@example.com", "brand-new-password")
	assert.NoError(t, err)

	version, err := dir.SessionVersion(ctx, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	// tokens are single use
	err = dir.ApplyReset(ctx, recovery.Token, "yet-another-password")
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeIdentityRejected))
}

func TestDirectoryRecoveryTokenExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	dir, notifier := setupDirectory(t, WithClock(func() time.Time { return clock() }), WithResetTokenTTL(time.Minute))
	ctx := context.Background()
	createAda(t, dir)

	require.NoError(t, dir.RequestReset(ctx, "ada@example.com", ""))
	recovery := notifier.last(t)

	expired := now.Add(time.Minute)
	clock = func() time.Time { return expired }

	err := dir.ApplyReset(ctx, recovery.Token, "brand-new-password")
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeIdentityRejected))
}

func TestDirectoryRequestResetUnknownEmail(t *testing.T) {
	dir, notifier := setupDirectory(t)

	require.NoError(t, dir.RequestReset(context.Background(), "nobody@example.com", ""))
	assert.Empty(t, notifier.items)
}

func TestDirectoryApplyResetRejectsShortPassword(t *testing.T) {
	dir, _ := setupDirectory(t)

	err := dir.ApplyReset(context.Background(), "whatever", "short")
	require.Error(t, err)
	assert.Equal(t, accounts.KindInvalidRequest, accounts.KindOf(err))
}
