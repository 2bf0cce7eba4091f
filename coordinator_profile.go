package accounts

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
)

// GetUserProfile returns the profile for identityID.
func (c *Coordinator) GetUserProfile(ctx context.Context, identityID string) (view *ProfileView, err error) {
	defer c.finish(ctx, "get_user_profile", c.now(), &err)

	profile, err := c.findProfile(ctx, identityID, ErrProfileMissing)
	if err != nil {
		return nil, err
	}
	return profileView(profile), nil
}

// UpdateUserProfile applies a partial update. Email is owned by the directory
// and cannot be changed here.
func (c *Coordinator) UpdateUserProfile(ctx context.Context, identityID string, update ProfileUpdate) (view *ProfileView, err error) {
	defer c.finish(ctx, "update_user_profile", c.now(), &err)

	if strings.TrimSpace(identityID) == "" {
		return nil, WithMessage(ErrInvalidRequest, "identity id is required", nil)
	}

	normalized, err := normalizeProfileUpdate(update)
	if err != nil {
		return nil, err
	}

	profile, err := c.profiles.Update(ctx, identityID, normalized)
	if err != nil || profile == nil {
		if err == nil || IsNotFound(err) {
			return nil, NewError(ErrProfileMissing, nil, map[string]any{"identity_id": identityID})
		}
		return nil, c.storeFailure("profile update failed", identityID, err)
	}

	c.emit(ctx, ActivityEventProfileUpdated, identityID, AccountStateProvisioned, map[string]any{
		"fields": updatedFields(normalized),
	})

	return profileView(profile), nil
}

// VerifyUserByID confirms a claimed identity still has a profile and returns
// what request authentication needs.
func (c *Coordinator) VerifyUserByID(ctx context.Context, identityID string) (user *VerifiedUser, err error) {
	defer c.finish(ctx, "verify_user", c.now(), &err)

	profile, err := c.findProfile(ctx, identityID, ErrUserMissing)
	if err != nil {
		return nil, err
	}

	return &VerifiedUser{
		ID:       profile.ID,
		Email:    profile.Email,
		Role:     profile.Role,
		FullName: profile.FullName,
	}, nil
}

func (c *Coordinator) findProfile(ctx context.Context, identityID string, missing *errors.Error) (*Profile, error) {
	if strings.TrimSpace(identityID) == "" {
		return nil, NewError(missing, nil, nil)
	}

	profile, err := c.profiles.FindByID(ctx, identityID)
	if err != nil || profile == nil {
		if err == nil || IsNotFound(err) {
			return nil, NewError(missing, nil, map[string]any{"identity_id": identityID})
		}
		return nil, c.storeFailure("profile lookup failed", identityID, err)
	}
	return profile, nil
}

func updatedFields(update ProfileUpdate) []string {
	fields := make([]string, 0, 3)
	if update.FullName != nil {
		fields = append(fields, "full_name")
	}
	if update.PhoneNumber != nil {
		fields = append(fields, "phone_number")
	}
	if update.Role != nil {
		fields = append(fields, "role")
	}
	return fields
}
