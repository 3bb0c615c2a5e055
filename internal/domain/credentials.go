package domain

import (
	"strings"

	"github.com/felixgeelhaar/devquote/internal/errors"
)

// Credentials are the username and password submitted at login.
// They are never persisted.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks that both fields are present.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return errors.NewInvalidCredentialsError("username is required")
	}
	if c.Password == "" {
		return errors.NewInvalidCredentialsError("password is required")
	}
	return nil
}

// String hides the password so credentials can be formatted safely.
func (c Credentials) String() string {
	return "Credentials{Username: " + c.Username + ", Password: ***}"
}

// PasswordChange is the payload of a password change.
type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// MinPasswordLength is the shortest new password accepted locally.
const MinPasswordLength = 6

// Validate checks the change before it is sent.
func (p PasswordChange) Validate() error {
	if p.CurrentPassword == "" {
		return errors.NewValidationError("current password", "is required")
	}
	if len(p.NewPassword) < MinPasswordLength {
		return errors.NewValidationError("new password", "must be at least 6 characters")
	}
	if p.NewPassword == p.CurrentPassword {
		return errors.NewValidationError("new password", "must differ from the current password")
	}
	return nil
}
