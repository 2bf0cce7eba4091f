package accounts

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService signs and verifies access and refresh tokens. Each class has
// its own secret and lifetime, so rotating one secret invalidates only tokens
// of that class.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
	logger        Logger
}

// NewTokenService creates a TokenService from cfg
func NewTokenService(cfg Config) *TokenService {
	return &TokenService{
		accessSecret:  []byte(cfg.GetAccessTokenSecret()),
		refreshSecret: []byte(cfg.GetRefreshTokenSecret()),
		accessTTL:     cfg.GetAccessTokenTTL(),
		refreshTTL:    cfg.GetRefreshTokenTTL(),
		issuer:        cfg.GetIssuer(),
		now:           time.Now,
		logger:        defaultLogger(),
	}
}

// WithClock overrides the time source used to stamp and verify tokens.
func (ts *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		ts.now = now
	}
	return ts
}

// WithLogger sets the logger
func (ts *TokenService) WithLogger(logger Logger) *TokenService {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// WithLoggerProvider resolves the token service logger from provider.
func (ts *TokenService) WithLoggerProvider(provider LoggerProvider) *TokenService {
	ts.logger = ResolveLogger("accounts.token_service", provider, ts.logger)
	return ts
}

// AccessTTL returns the configured access token lifetime
func (ts *TokenService) AccessTTL() time.Duration {
	return ts.accessTTL
}

// RefreshTTL returns the configured refresh token lifetime
func (ts *TokenService) RefreshTTL() time.Duration {
	return ts.refreshTTL
}

// IssuePair signs a new access and refresh token for claims.
func (ts *TokenService) IssuePair(claims ClaimSet) (TokenPair, error) {
	access, err := ts.IssueAccess(claims)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := ts.sign(claims, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// IssueAccess signs a new access token for claims.
func (ts *TokenService) IssueAccess(claims ClaimSet) (string, error) {
	return ts.sign(claims, TokenTypeAccess)
}

// VerifyRefresh validates a refresh token and returns its claims.
func (ts *TokenService) VerifyRefresh(token string) (*SessionClaims, error) {
	return ts.verify(token, TokenTypeRefresh)
}

// VerifyAccess validates an access token and returns its claims.
func (ts *TokenService) VerifyAccess(token string) (*SessionClaims, error) {
	return ts.verify(token, TokenTypeAccess)
}

func (ts *TokenService) sign(claims ClaimSet, typ TokenType) (string, error) {
	if claims.IdentityID == "" {
		return "", errors.New("claims must carry an identity id", errors.CategoryBadInput)
	}

	secret, ttl := ts.classConfig(typ)
	now := ts.now()

	payload := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   claims.IdentityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:       claims.IdentityID,
		UserEmail: claims.Email,
		UserRole:  claims.Role,
		Type:      typ,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

func (ts *TokenService) verify(raw string, typ TokenType) (*SessionClaims, error) {
	if raw == "" {
		return nil, ErrTokenMalformed
	}

	secret, _ := ts.classConfig(typ)

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(raw, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, NewError(ErrTokenExpired, err, nil)
		}
		ts.logger.Debug("token verification failed", "type", typ, "error", err)
		return nil, NewError(ErrTokenMalformed, err, nil)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}

	if claims.Type != typ || claims.UserID() == "" {
		ts.logger.Debug("token class mismatch", "expected", typ, "actual", claims.Type)
		return nil, NewError(ErrTokenMalformed, nil, map[string]any{
			"expected_type": typ,
		})
	}

	return claims, nil
}

func (ts *TokenService) classConfig(typ TokenType) ([]byte, time.Duration) {
	if typ == TokenTypeRefresh {
		return ts.refreshSecret, ts.refreshTTL
	}
	return ts.accessSecret, ts.accessTTL
}
