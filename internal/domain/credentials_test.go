package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/devquote/internal/errors"
)

func TestCredentials_Validate(t *testing.T) {
	tests := []struct {
		name    string
		creds   Credentials
		wantErr bool
	}{
		{"valid", Credentials{Username: "alice", Password: "secret123"}, false},
		{"missing username", Credentials{Password: "secret123"}, true},
		{"blank username", Credentials{Username: "   ", Password: "secret123"}, true},
		{"missing password", Credentials{Username: "alice"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidCredentials))
		})
	}
}

func TestCredentials_StringHidesPassword(t *testing.T) {
	s := Credentials{Username: "alice", Password: "secret123"}.String()
	assert.False(t, strings.Contains(s, "secret123"))
	assert.Contains(t, s, "alice")
}

func TestPasswordChange_Validate(t *testing.T) {
	tests := []struct {
		name    string
		change  PasswordChange
		wantErr bool
	}{
		{"valid", PasswordChange{CurrentPassword: "old-pass", NewPassword: "new-pass"}, false},
		{"missing current", PasswordChange{NewPassword: "new-pass"}, true},
		{"too short", PasswordChange{CurrentPassword: "old-pass", NewPassword: "abc"}, true},
		{"unchanged", PasswordChange{CurrentPassword: "same-pass", NewPassword: "same-pass"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.change.Validate()
			if tt.wantErr {
				assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
