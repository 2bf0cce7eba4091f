package accounts

import (
	"strings"
	"time"
)

// Identity is the directory's view of an account. The password hash never
// leaves the directory.
type Identity struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	Metadata         map[string]any `json:"user_metadata,omitempty"`
}

// EmailConfirmed reports whether the directory confirmed the email.
func (i Identity) EmailConfirmed() bool {
	return i.EmailConfirmedAt != nil && !i.EmailConfirmedAt.IsZero()
}

// NewIdentity is the input to IdentityDirectory.CreateUser.
type NewIdentity struct {
	Email     string
	Password  string
	Confirmed bool
	Metadata  map[string]any
}

// Profile is the application level record keyed by the identity ID.
type Profile struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FullName      string     `json:"full_name"`
	Role          UserRole   `json:"role"`
	EmailVerified bool       `json:"email_verified"`
	PhoneNumber   string     `json:"phone_number,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// ProfileUpdate carries the fields a caller may change. Nil pointers are left
// untouched.
type ProfileUpdate struct {
	FullName    *string   `json:"fullName,omitempty"`
	PhoneNumber *string   `json:"phoneNumber,omitempty"`
	Role        *UserRole `json:"role,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (u ProfileUpdate) IsEmpty() bool {
	return u.FullName == nil && u.PhoneNumber == nil && u.Role == nil
}

// RegisterInput is the input to Coordinator.Register.
type RegisterInput struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	FullName string   `json:"fullName"`
	Role     UserRole `json:"role"`
}

// UserView is the composed identity and profile returned to callers.
type UserView struct {
	ID            string   `json:"id"`
	Email         string   `json:"email"`
	FullName      string   `json:"fullName"`
	Role          UserRole `json:"role"`
	EmailVerified bool     `json:"emailVerified"`
}

// TokenPair holds a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User   UserView  `json:"user"`
	Tokens TokenPair `json:"tokens"`
}

// RefreshResult is returned by RefreshToken.
type RefreshResult struct {
	AccessToken string   `json:"accessToken"`
	User        UserView `json:"user"`
}

// ProfileView is the read model of a profile.
type ProfileView struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FullName      string     `json:"fullName"`
	Role          UserRole   `json:"role"`
	EmailVerified bool       `json:"emailVerified"`
	PhoneNumber   string     `json:"phoneNumber,omitempty"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// VerifiedUser is what request authentication needs to trust a claim.
type VerifiedUser struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`
	FullName string   `json:"fullName"`
}

// NormalizeEmail trims and lower cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func profileView(p *Profile) *ProfileView {
	return &ProfileView{
		ID:            p.ID,
		Email:         p.Email,
		FullName:      p.FullName,
		Role:          p.Role,
		EmailVerified: p.EmailVerified,
		PhoneNumber:   p.PhoneNumber,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func userView(p *Profile) UserView {
	return UserView{
		ID:            p.ID,
		Email:         p.Email,
		FullName:      p.FullName,
		Role:          p.Role,
		EmailVerified: p.EmailVerified,
	}
}
