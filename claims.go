package accounts

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType distinguishes access from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// ClaimSet is the identity data embedded in every session token.
type ClaimSet struct {
	IdentityID string
	Email      string
	Role       UserRole
}

// SessionClaims is the signed JWT payload
type SessionClaims struct {
	jwt.RegisteredClaims
	UID       string    `json:"uid,omitempty"`
	UserEmail string    `json:"email,omitempty"`
	UserRole  UserRole  `json:"role,omitempty"`
	Type      TokenType `json:"typ,omitempty"`
}

// UserID returns the identity ID
func (c *SessionClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// Email returns the email claim
func (c *SessionClaims) Email() string {
	return c.UserEmail
}

// Role returns the role claim
func (c *SessionClaims) Role() UserRole {
	return c.UserRole
}

// ClaimSet returns the identity portion of the claims.
func (c *SessionClaims) ClaimSet() ClaimSet {
	return ClaimSet{
		IdentityID: c.UserID(),
		Email:      c.UserEmail,
		Role:       c.UserRole,
	}
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *SessionClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
