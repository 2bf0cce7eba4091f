package accounts

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/goliatone/go-errors"
)

// ErrorKind is the closed set of failure classes surfaced by the Coordinator.
type ErrorKind string

const (
	KindNone           ErrorKind = ""
	KindConflict       ErrorKind = "conflict"
	KindUnauthorized   ErrorKind = "unauthorized"
	KindForbidden      ErrorKind = "forbidden"
	KindNotFound       ErrorKind = "not_found"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindInternal       ErrorKind = "internal"
)

const (
	TextCodeEmailTaken            = "EMAIL_TAKEN"
	TextCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	TextCodeInvalidToken          = "INVALID_TOKEN"
	TextCodeTokenExpired          = "TOKEN_EXPIRED"
	TextCodeTokenMalformed        = "TOKEN_MALFORMED"
	TextCodeProfileMissing        = "PROFILE_MISSING"
	TextCodeUserMissing           = "USER_MISSING"
	TextCodeProfileCreationFailed = "PROFILE_CREATION_FAILED"
	TextCodeInvalidRequest        = "INVALID_REQUEST"
	TextCodeForbidden             = "FORBIDDEN"
	TextCodeInternal              = "INTERNAL"

	TextCodeIdentityExists   = "IDENTITY_EXISTS"
	TextCodeIdentityRejected = "IDENTITY_REJECTED"
	TextCodeBadCredentials   = "BAD_CREDENTIALS"
	TextCodeIdentityNotFound = "IDENTITY_NOT_FOUND"
	TextCodeRecordNotFound   = "RECORD_NOT_FOUND"
)

// Errors surfaced by the Coordinator.
var (
	ErrEmailTaken = errors.New("User with this email already exists", errors.CategoryConflict).
			WithTextCode(TextCodeEmailTaken).
			WithCode(errors.CodeConflict)

	ErrInvalidCredentials = errors.New("Invalid email or password", errors.CategoryAuth).
				WithTextCode(TextCodeInvalidCredentials).
				WithCode(errors.CodeUnauthorized)

	ErrInvalidToken = errors.New("Invalid or expired token", errors.CategoryAuth).
			WithTextCode(TextCodeInvalidToken).
			WithCode(errors.CodeUnauthorized)

	ErrProfileMissing = errors.New("User profile not found", errors.CategoryNotFound).
				WithTextCode(TextCodeProfileMissing).
				WithCode(errors.CodeNotFound)

	ErrUserMissing = errors.New("User not found", errors.CategoryNotFound).
			WithTextCode(TextCodeUserMissing).
			WithCode(errors.CodeNotFound)

	ErrProfileCreationFailed = errors.New("Profile creation failed", errors.CategoryInternal).
					WithTextCode(TextCodeProfileCreationFailed).
					WithCode(errors.CodeInternal)

	ErrInvalidRequest = errors.New("Invalid request", errors.CategoryBadInput).
				WithTextCode(TextCodeInvalidRequest).
				WithCode(errors.CodeBadRequest)

	// ErrForbidden is raised by transports when an authenticated caller lacks
	// the role an operation requires.
	ErrForbidden = errors.New("Insufficient permissions", errors.CategoryAuthz).
			WithTextCode(TextCodeForbidden).
			WithCode(errors.CodeForbidden)

	ErrInternal = errors.New("An unexpected error occurred", errors.CategoryInternal).
			WithTextCode(TextCodeInternal).
			WithCode(errors.CodeInternal)
)

// Errors produced by the Credential Codec.
var (
	ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
			WithTextCode(TextCodeTokenExpired).
			WithCode(errors.CodeUnauthorized)

	ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
				WithTextCode(TextCodeTokenMalformed).
				WithCode(errors.CodeUnauthorized)
)

// Errors collaborators use to signal well-known conditions.
var (
	ErrIdentityExists = errors.New("identity already registered", errors.CategoryConflict).
				WithTextCode(TextCodeIdentityExists).
				WithCode(errors.CodeConflict)

	ErrIdentityRejected = errors.New("identity rejected by directory", errors.CategoryBadInput).
				WithTextCode(TextCodeIdentityRejected).
				WithCode(errors.CodeBadRequest)

	ErrBadCredentials = errors.New("invalid credentials", errors.CategoryAuth).
				WithTextCode(TextCodeBadCredentials).
				WithCode(errors.CodeUnauthorized)

	ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
				WithTextCode(TextCodeIdentityNotFound).
				WithCode(errors.CodeNotFound)

	ErrRecordNotFound = errors.New("record not found", errors.CategoryNotFound).
				WithTextCode(TextCodeRecordNotFound).
				WithCode(errors.CodeNotFound)
)

// NewError clones base, attaching source and metadata. Callers get a fresh
// value so sentinels are never mutated.
func NewError(base *errors.Error, source error, metadata map[string]any) *errors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if source != nil {
		clone.Source = source
	}
	if len(metadata) > 0 {
		clone.WithMetadata(metadata)
	}
	return clone
}

// WithMessage clones base replacing its message.
func WithMessage(base *errors.Error, message string, source error) *errors.Error {
	clone := NewError(base, source, nil)
	if message != "" {
		clone.Message = message
	}
	return clone
}

// KindOf classifies err into the closed ErrorKind taxonomy. Errors that are
// not rich errors classify as KindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) || richErr == nil {
		return KindInternal
	}

	switch richErr.Category {
	case errors.CategoryConflict:
		return KindConflict
	case errors.CategoryAuth:
		return KindUnauthorized
	case errors.CategoryAuthz:
		return KindForbidden
	case errors.CategoryNotFound:
		return KindNotFound
	case errors.CategoryBadInput, errors.CategoryValidation:
		return KindInvalidRequest
	default:
		return KindInternal
	}
}

// HasTextCode reports whether err is a rich error carrying code.
func HasTextCode(err error, code string) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr != nil {
		return richErr.TextCode == code
	}
	return false
}

// IsNotFound reports whether err signals an absent record.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return true
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr != nil {
		return richErr.Category == errors.CategoryNotFound
	}
	return false
}

// IsDuplicateKeyError matches unique constraint violations reported by the
// postgres and sqlite drivers.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}

func isContextError(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
