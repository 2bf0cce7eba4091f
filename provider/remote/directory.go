package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-errors"
)

const idPlaceholder = "{id}"

// Paths lists the admin API endpoints relative to the base URL. "{id}" is
// replaced with the escaped identity ID.
type Paths struct {
	CreateUser         string
	DeleteUser         string
	Token              string
	InvalidateSessions string
	Recover            string
	Verify             string
	UpdateUser         string
}

// DefaultPaths returns the endpoints exposed by a GoTrue compatible server.
func DefaultPaths() Paths {
	return Paths{
		CreateUser:         "/admin/users",
		DeleteUser:         "/admin/users/{id}",
		Token:              "/token?grant_type=password",
		InvalidateSessions: "/admin/users/{id}/sessions",
		Recover:            "/recover",
		Verify:             "/verify",
		UpdateUser:         "/user",
	}
}

// Config holds the remote directory settings.
type Config struct {
	BaseURL    string
	ServiceKey string
	Timeout    time.Duration
	Paths      Paths
	HTTPClient *http.Client
}

// Directory is an IdentityDirectory talking to a hosted identity service over
// its admin REST API.
type Directory struct {
	config     Config
	httpClient *http.Client
	logger     accounts.Logger
}

var _ accounts.IdentityDirectory = (*Directory)(nil)

// New creates a remote directory.
func New(cfg Config) *Directory {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.Paths = mergePaths(cfg.Paths, DefaultPaths())

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Directory{
		config:     cfg,
		httpClient: client,
		logger:     accounts.ResolveLogger("accounts.provider.remote", nil, nil),
	}
}

// WithLoggerProvider resolves the directory logger from provider.
func (d *Directory) WithLoggerProvider(provider accounts.LoggerProvider) *Directory {
	d.logger = accounts.ResolveLogger("accounts.provider.remote", provider, d.logger)
	return d
}

type userPayload struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
}

func (u userPayload) toIdentity() *accounts.Identity {
	return &accounts.Identity{
		ID:               u.ID,
		Email:            u.Email,
		EmailConfirmedAt: u.EmailConfirmedAt,
		Metadata:         u.UserMetadata,
	}
}

type sessionPayload struct {
	AccessToken string      `json:"access_token"`
	User        userPayload `json:"user"`
}

// CreateUser implements accounts.IdentityDirectory.
func (d *Directory) CreateUser(ctx context.Context, input accounts.NewIdentity) (*accounts.Identity, error) {
	body := map[string]any{
		"email":         input.Email,
		"password":      input.Password,
		"email_confirm": input.Confirmed,
		"user_metadata": input.Metadata,
	}

	var user userPayload
	if err := d.do(ctx, "create_user", http.MethodPost, d.config.Paths.CreateUser, "", body, d.config.ServiceKey, &user); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.alreadyRegistered() {
			return nil, accounts.NewError(accounts.ErrIdentityExists, err, apiErr.Metadata())
		}
		return nil, classify(err)
	}

	if user.ID == "" {
		return nil, accounts.WithMessage(accounts.ErrIdentityRejected, "directory returned no user", nil)
	}
	return user.toIdentity(), nil
}

// Authenticate implements accounts.IdentityDirectory using the password
// grant. Every non success response is reported as bad credentials.
func (d *Directory) Authenticate(ctx context.Context, email, password string) (*accounts.Identity, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}

	var session sessionPayload
	if err := d.do(ctx, "authenticate", http.MethodPost, d.config.Paths.Token, "", body, d.config.ServiceKey, &session); err != nil {
		return nil, accounts.NewError(accounts.ErrBadCredentials, err, nil)
	}

	if session.User.ID == "" {
		return nil, accounts.NewError(accounts.ErrBadCredentials, nil, nil)
	}
	return session.User.toIdentity(), nil
}

// DeleteUser implements accounts.IdentityDirectory. A missing user counts as
// deleted.
func (d *Directory) DeleteUser(ctx context.Context, identityID string) error {
	err := d.do(ctx, "delete_user", http.MethodDelete, d.config.Paths.DeleteUser, identityID, nil, d.config.ServiceKey, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	return classify(err)
}

// InvalidateSessions implements accounts.IdentityDirectory.
func (d *Directory) InvalidateSessions(ctx context.Context, identityID string) error {
	err := d.do(ctx, "invalidate_sessions", http.MethodDelete, d.config.Paths.InvalidateSessions, identityID, nil, d.config.ServiceKey, nil)
	return classify(err)
}

// RequestReset implements accounts.IdentityDirectory.
func (d *Directory) RequestReset(ctx context.Context, email, redirectTo string) error {
	path := d.config.Paths.Recover
	if redirectTo != "" {
		path = withQuery(path, "redirect_to", redirectTo)
	}
	err := d.do(ctx, "request_reset", http.MethodPost, path, "", map[string]any{"email": email}, d.config.ServiceKey, nil)
	return classify(err)
}

// ApplyReset implements accounts.IdentityDirectory. The recovery token is
// exchanged for a session which is then used to set the new password.
func (d *Directory) ApplyReset(ctx context.Context, recoveryToken, newPassword string) error {
	var session sessionPayload
	verify := map[string]any{
		"type":  "recovery",
		"token": recoveryToken,
	}
	if err := d.do(ctx, "verify_recovery", http.MethodPost, d.config.Paths.Verify, "", verify, d.config.ServiceKey, &session); err != nil {
		return classify(err)
	}

	if session.AccessToken == "" {
		return accounts.WithMessage(accounts.ErrIdentityRejected, "Recovery token is invalid or has expired", nil)
	}

	err := d.do(ctx, "update_password", http.MethodPut, d.config.Paths.UpdateUser, "", map[string]any{"password": newPassword}, session.AccessToken, nil)
	return classify(err)
}

func (d *Directory) do(ctx context.Context, operation, method, path, identityID string, body any, bearer string, out any) error {
	endpoint := d.config.BaseURL + strings.ReplaceAll(path, idPlaceholder, url.PathEscape(identityID))

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to encode directory request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to build directory request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if d.config.ServiceKey != "" {
		req.Header.Set("apikey", d.config.ServiceKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Error("directory request failed", "operation", operation, "error", err)
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseAPIError(operation, resp.StatusCode, raw)
		d.logger.Debug("directory rejected request", "operation", operation, "status", resp.StatusCode, "code", apiErr.Code)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, fmt.Sprintf("failed to decode %s response", operation))
	}
	return nil
}

// classify maps client errors to ErrIdentityRejected carrying the remote
// message. Server errors stay internal and transport errors pass through.
func classify(err error) error {
	var apiErr *APIError
	if err == nil || !errors.As(err, &apiErr) {
		return err
	}

	if apiErr.Status >= 400 && apiErr.Status < 500 {
		return accounts.WithMessage(accounts.ErrIdentityRejected, apiErr.Message, apiErr).
			WithMetadata(apiErr.Metadata())
	}
	return errors.Wrap(apiErr, errors.CategoryInternal, "identity directory unavailable").
		WithMetadata(apiErr.Metadata())
}

func withQuery(path, key, value string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}

func mergePaths(p, defaults Paths) Paths {
	if p.CreateUser == "" {
		p.CreateUser = defaults.CreateUser
	}
	if p.DeleteUser == "" {
		p.DeleteUser = defaults.DeleteUser
	}
	if p.Token == "" {
		p.Token = defaults.Token
	}
	if p.InvalidateSessions == "" {
		p.InvalidateSessions = defaults.InvalidateSessions
	}
	if p.Recover == "" {
		p.Recover = defaults.Recover
	}
	if p.Verify == "" {
		p.Verify = defaults.Verify
	}
	if p.UpdateUser == "" {
		p.UpdateUser = defaults.UpdateUser
	}
	return p
}
