package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testServiceKey = "service-key"

func newTestDirectory(t *testing.T, handler http.HandlerFunc) *Directory {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL + "/", ServiceKey: testServiceKey})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestCreateUser(t *testing.T) {
	dir := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/users", r.URL.Path)
		assert.Equal(t, testServiceKey, r.Header.Get("apikey"))
		assert.Equal(t, "Bearer "+testServiceKey, r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ada@example.com", body["email"])
		assert.Equal(t, true, body["email_confirm"])
		assert.Equal(t, "Ada Lovelace", body["user_metadata"].(map[string]any)["full_name"])

		writeJSON(w, http.StatusOK, map[string]any{
			"id":                 "3f1f4d3a-7d7c-4c59-b7a5-2f9f0d5c1a11",
			"email":              "ada@example.com",
			"email_confirmed_at": "2024-01-01T12:00:00Z",
		})
	})

	identity, err := dir.CreateUser(context.Background(), accounts.NewIdentity{
		Email:     "ada@example.com",
		Password:  "correct-horse",
		Confirmed: true,
		Metadata:  map[string]any{"full_name": "Ada Lovelace"},
	})
	require.NoError(t, err)
	assert.Equal(t, "3f1f4d3a-7d7c-4c59-b7a5-2f9f0d5c1a11", identity.ID)
	assert.True(t, identity.EmailConfirmed())
}

func TestCreateUserErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     map[string]any
		textCode string
		kind     accounts.ErrorKind
	}{
		{
			name:     "already registered",
			status:   http.StatusUnprocessableEntity,
			body:     map[string]any{"code": 422, "msg": "A user with this email address has already been registered"},
			textCode: accounts.TextCodeIdentityExists,
			kind:     accounts.KindConflict,
		},
		{
			name:     "email exists code",
			status:   http.StatusBadRequest,
			body:     map[string]any{"error_code": "email_exists", "msg": "Email taken"},
			textCode: accounts.TextCodeIdentityExists,
			kind:     accounts.KindConflict,
		},
		{
			name:     "weak password",
			status:   http.StatusUnprocessableEntity,
			body:     map[string]any{"error_code": "weak_password", "msg": "Password should contain a digit"},
			textCode: accounts.TextCodeIdentityRejected,
			kind:     accounts.KindInvalidRequest,
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			body:   map[string]any{"message": "upstream down"},
			kind:   accounts.KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := dir.CreateUser(context.Background(), accounts.NewIdentity{Email: "ada@example.com", Password: "correct-horse"})
			require.Error(t, err)
			assert.Equal(t, tt.kind, accounts.KindOf(err))
			if tt.textCode != "" {
				assert.True(t, accounts.HasTextCode(err, tt.textCode))
			}
		})
	}
}

func TestCreateUserRejectionKeepsRemoteMessage(t *testing.T) {
	dir := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"msg": "Password should contain a digit"})
	})

	_, err := dir.CreateUser(context.Background(), accounts.NewIdentity{Email: "ada@example.com", Password: "x"})
	var richErr *errors.Error
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, "Password should contain a digit", richErr.Message)
}

func TestAuthenticate(t *testing.T) {
	dir := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "correct-horse" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "Invalid login credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "remote-session",
			"user":         map[string]any{"id": "user-1", "email": "ada@example.com"},
		})
	})

	identity, err := dir.Authenticate(context.Background(), "ada@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity.ID)
	assert.False(t, identity.EmailConfirmed())

	_, err = dir.Authenticate(context.Background(), "ada@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, accounts.HasTextCode(err, accounts.TextCodeBadCredentials))
}

func TestDeleteUser(t *testing.T) {
	var paths []string
	dir := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		paths = append(paths, r.URL.Path)
		if r.URL.Path == "/admin/users/gone" {
			writeJSON(w, http.StatusNotFound, map[string]any{"msg": "User not found"})
			return
		}
		if r.URL.Path == "/admin/users/broken" {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"msg": "boom"})
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	ctx := context.Background()
	assert.NoError(t, dir.DeleteUser(ctx, "user-1"))
	assert.NoError(t, dir.DeleteUser(ctx, "gone"))

	err := dir.DeleteUser(ctx, "broken")
	require.Error(t, err)
	assert.Equal(t, accounts.KindInternal, accounts.KindOf(err))
	assert.Equal(t, []string{"/admin/users/user-1", "/admin/users/gone", "/admin/users/broken"}, paths)
}

func TestInvalidateSessionsCustomPath(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	dir := New(Config{
		BaseURL:    server.URL,
		ServiceKey: testServiceKey,
		Paths:      Paths{InvalidateSessions: "/admin/sessions/{id}"},
	})

	require.NoError(t, dir.InvalidateSessions(context.Background(), "user-1"))
	assert.Equal(t, "DELETE /admin/sessions/user-1", got)
}

func TestRequestReset(t *testing.T) {
	dir := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recover", r.URL.Path)
		assert.Equal(t, "http://localhost:3000/reset-password", r.URL.Query().Get("redirect_to"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["email"] == "throttled@example.com" {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"msg": "For security purposes, you can only request this once every 60 seconds"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{})
	})

	ctx := context.Background()
	require.NoError(t, dir.RequestReset(ctx, "ada@example.com", "http://localhost:3000/reset-password"))

	err := dir.RequestReset(ctx, "throttled@example.com", "http://localhost:3000/reset-password")
	require.Error(t, err)
	assert.Equal(t, accounts.KindInvalidRequest, accounts.KindOf(err))
}

func TestApplyReset(t *testing.T) {
	var updatedWith string
	dir := newTestDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/verify":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "recovery", body["type"])
			if body["token"] != "good-token" {
				writeJSON(w, http.StatusForbidden, map[string]any{"msg": "Token has expired or is invalid"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "recovery-session", "user": map[string]any{"id": "user-1"}})
		case "/user":
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "Bearer recovery-session", r.Header.Get("Authorization"))
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			updatedWith = body["password"]
			writeJSON(w, http.StatusOK, map[string]any{"id": "user-1"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	require.NoError(t, dir.ApplyReset(ctx, "good-token", "brand-new-password"))
	assert.Equal(t, "brand-new-password", updatedWith)

	err := dir.ApplyReset(ctx, "bad-token", "brand-new-password")
	require.Error(t, err)
	assert.Equal(t, accounts.KindInvalidRequest, accounts.KindOf(err))

	var richErr *errors.Error
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, "Token has expired or is invalid", richErr.Message)
}

func TestTransportFailureIsInternal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	dir := New(Config{BaseURL: server.URL})
	err := dir.InvalidateSessions(context.Background(), "user-1")
	require.Error(t, err)
	assert.Equal(t, accounts.KindInternal, accounts.KindOf(err))
}
