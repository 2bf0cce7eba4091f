package accounts

import (
	stderrors "errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes
	maxPasswordLength = 72
)

var (
	errInvalidRole  = stderrors.New("must be a valid role")
	errInvalidPhone = stderrors.New("must be a valid phone number")
)

// DefaultPhoneRegion is used to parse numbers without a country prefix.
var DefaultPhoneRegion = "US"

func validateRegistration(input RegisterInput) error {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&input.Password, validation.Required, validation.Length(minPasswordLength, maxPasswordLength)),
		validation.Field(&input.FullName, validation.Required, validation.Length(1, 200)),
		validation.Field(&input.Role, validation.By(validateRole)),
	)
	return invalidRequest("invalid registration request", err)
}

func validateCredentials(email, password string) error {
	err := validation.Errors{
		"email":    validation.Validate(email, validation.Required, is.Email),
		"password": validation.Validate(password, validation.Required),
	}.Filter()
	return invalidRequest("invalid login request", err)
}

func validateEmail(email string) error {
	err := validation.Errors{
		"email": validation.Validate(email, validation.Required, is.Email),
	}.Filter()
	return invalidRequest("invalid email", err)
}

func validateNewPassword(token, password string) error {
	err := validation.Errors{
		"token":    validation.Validate(token, validation.Required),
		"password": validation.Validate(password, validation.Required, validation.Length(minPasswordLength, maxPasswordLength)),
	}.Filter()
	return invalidRequest("invalid password reset request", err)
}

// normalizeProfileUpdate validates update and returns a copy with the phone
// number in E.164 form and the full name trimmed.
func normalizeProfileUpdate(update ProfileUpdate) (ProfileUpdate, error) {
	if update.IsEmpty() {
		return update, WithMessage(ErrInvalidRequest, "no profile fields to update", nil)
	}

	out := ProfileUpdate{}
	fieldErrs := validation.Errors{}

	if update.FullName != nil {
		name := strings.TrimSpace(*update.FullName)
		fieldErrs["fullName"] = validation.Validate(name, validation.Required, validation.Length(1, 200))
		out.FullName = &name
	}

	if update.PhoneNumber != nil {
		phone, err := NormalizePhoneNumber(*update.PhoneNumber)
		fieldErrs["phoneNumber"] = err
		out.PhoneNumber = &phone
	}

	if update.Role != nil {
		role, ok := ParseRole(string(*update.Role))
		if !ok {
			fieldErrs["role"] = errInvalidRole
		}
		out.Role = &role
	}

	if err := invalidRequest("invalid profile update", fieldErrs.Filter()); err != nil {
		return update, err
	}

	return out, nil
}

// NormalizePhoneNumber parses number and formats it as E.164. Empty input
// clears the number.
func NormalizePhoneNumber(number string) (string, error) {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return "", nil
	}

	parsed, err := phonenumbers.Parse(trimmed, DefaultPhoneRegion)
	if err != nil {
		return "", errInvalidPhone
	}

	if !phonenumbers.IsValidNumber(parsed) {
		return "", errInvalidPhone
	}

	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

func validateRole(value any) error {
	var raw string
	switch v := value.(type) {
	case UserRole:
		raw = string(v)
	case string:
		raw = v
	default:
		return errInvalidRole
	}

	if _, ok := ParseRole(raw); !ok {
		return errInvalidRole
	}
	return nil
}

func invalidRequest(message string, err error) error {
	if err == nil {
		return nil
	}

	meta := map[string]any{}
	if fieldErrs, ok := err.(validation.Errors); ok {
		fields := map[string]string{}
		for field, fieldErr := range fieldErrs {
			if fieldErr != nil {
				fields[field] = fieldErr.Error()
			}
		}
		meta["fields"] = fields
	}

	return errors.Wrap(err, errors.CategoryValidation, message).
		WithTextCode(TextCodeInvalidRequest).
		WithCode(errors.CodeBadRequest).
		WithMetadata(meta)
}
