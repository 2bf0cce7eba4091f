package accounts_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
)

func TestUserContext(t *testing.T) {
	_, ok := accounts.UserFromContext(context.Background())
	assert.False(t, ok)

	user := &accounts.VerifiedUser{ID: "user-1", Role: accounts.RoleStaff}
	ctx := accounts.WithUser(context.Background(), user)

	got, ok := accounts.UserFromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, user, got)

	_, ok = accounts.UserFromContext(accounts.WithUser(context.Background(), nil))
	assert.False(t, ok)
}

func TestClaimsContext(t *testing.T) {
	_, ok := accounts.ClaimsFromContext(context.Background())
	assert.False(t, ok)

	claims := &accounts.SessionClaims{UID: "user-1"}
	got, ok := accounts.ClaimsFromContext(accounts.WithClaims(context.Background(), claims))
	assert.True(t, ok)
	assert.Equal(t, "user-1", got.UserID())
}
