package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/devquote/internal/domain"
	"github.com/felixgeelhaar/devquote/internal/errors"
	"github.com/felixgeelhaar/devquote/internal/exitcode"
)

func TestLoginStatusLogout(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("auth", "login", "--username", "alice", "--password", "secret123")
	assert.Equal(t, "Signed in as alice\n", out)
	assert.Equal(t, 1, h.srv.LoginCalls())

	data, err := os.ReadFile(filepath.Join(h.dir, "session.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"A1"`, "tokens are sealed with the passphrase")

	var status statusResult
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("auth", "status", "-o", "json")), &status))
	assert.True(t, status.Authenticated)
	assert.Equal(t, "alice", status.User.Username)
	assert.NotNil(t, status.ExpiresAt)
	assert.Equal(t, h.srv.BaseURL(), status.BaseURL)

	text := h.mustRun("auth", "status")
	assert.Contains(t, text, "signed in")
	assert.Contains(t, text, "USER")

	assert.Equal(t, "Signed out\n", h.mustRun("auth", "logout"))
	assert.Equal(t, 1, h.srv.LogoutCalls())

	require.NoError(t, json.Unmarshal([]byte(h.mustRun("auth", "status", "-o", "json")), &status))
	assert.False(t, status.Authenticated)
	assert.Nil(t, status.User)
}

func TestStatusJSONNeverPrintsTokens(t *testing.T) {
	h := newHarness(t)
	h.login()

	for _, args := range [][]string{
		{"auth", "status", "-o", "json"},
		{"auth", "status", "-o", "yaml"},
		{"auth", "login", "-u", "alice", "-p", "secret123", "-o", "json"},
	} {
		out := h.mustRun(args...)
		assert.NotContains(t, out, "access_token", args)
		assert.NotContains(t, out, "refresh_token", args)
	}
}

func TestLoginPromptsWhenInteractive(t *testing.T) {
	h := newHarness(t)
	interactive = func() bool { return true }
	h.prompts.creds = domain.Credentials{Password: "secret123"}

	out := h.mustRun("auth", "login", "-u", "alice")
	assert.Equal(t, "Signed in as alice\n", out)
	assert.Equal(t, 1, h.prompts.calls)
}

func TestLoginDoesNotPromptWhenComplete(t *testing.T) {
	h := newHarness(t)
	interactive = func() bool { return true }

	h.login()
	assert.Zero(t, h.prompts.calls)
}

func TestLoginWithoutCredentials(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("auth", "login", "-u", "alice")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidCredentials))
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))
	assert.Zero(t, h.srv.LoginCalls())
}

func TestLoginRejected(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("auth", "login", "-u", "alice", "-p", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, exitcode.AuthError, exitcode.DetermineExitCode(err))
	assert.Zero(t, h.srv.RefreshCalls())

	_, _, err = h.run("auth", "token")
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotAuthenticated))
}

func TestStatusRefreshesExpiredSession(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.srv.ExpireAll()

	var status statusResult
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("auth", "status", "-o", "json")), &status))
	assert.True(t, status.Authenticated)
	assert.Equal(t, 1, h.srv.RefreshCalls())
}

func TestStatusDiscardsRevokedSession(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.srv.ExpireAll()
	h.srv.FailRefresh(400, `{"message":"invalid refresh token"}`)

	out := h.mustRun("auth", "status")
	assert.Contains(t, out, "signed out")

	_, _, err := h.run("auth", "token")
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotAuthenticated), "revoked session is removed from the store")
}

func TestAuthRefresh(t *testing.T) {
	h := newHarness(t)
	h.login()
	before := strings.TrimSpace(h.mustRun("auth", "token", "--show"))

	out := h.mustRun("auth", "refresh")
	assert.True(t, strings.HasPrefix(out, "Access token refreshed"), out)
	assert.Equal(t, 1, h.srv.RefreshCalls())

	after := strings.TrimSpace(h.mustRun("auth", "token", "--show"))
	assert.NotEqual(t, before, after)
}

func TestAuthRefreshWithoutSession(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("auth", "refresh")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotAuthenticated))
	assert.Equal(t, exitcode.AuthError, exitcode.DetermineExitCode(err))
	assert.Zero(t, h.srv.RefreshCalls())
}

func TestAuthTokenMasked(t *testing.T) {
	h := newHarness(t)
	h.login()

	shown := strings.TrimSpace(h.mustRun("auth", "token", "--show"))
	masked := strings.TrimSpace(h.mustRun("auth", "token"))
	assert.Equal(t, mask(shown), masked)
}

func TestMask(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"A1", "**"},
		{"12345678", "********"},
		{"eyJhbGciOi.payload.sig", "eyJh**************.sig"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, mask(tt.in), tt.in)
	}
}

func TestProfileCommands(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("profile", "show")
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotAuthenticated))

	h.login()
	out := h.mustRun("profile", "show")
	assert.Contains(t, out, "alice@example.com")
	assert.Contains(t, out, "TASKS")

	out = h.mustRun("profile", "update", "--name", "Alice Doe")
	assert.Contains(t, out, "Alice Doe")

	var user domain.User
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("auth", "status", "-o", "json")), &struct {
		User *domain.User `json:"user"`
	}{&user}))
	assert.Equal(t, "Alice Doe", user.Name, "the cached user is updated")
}

func TestProfileUpdateValidation(t *testing.T) {
	h := newHarness(t)
	h.login()

	_, _, err := h.run("profile", "update")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))

	_, _, err = h.run("profile", "update", "--email", "not-an-email")
	require.Error(t, err)
	assert.Equal(t, exitcode.RequestError, exitcode.DetermineExitCode(err))
}

func TestProfilePassword(t *testing.T) {
	h := newHarness(t)
	h.login()

	_, _, err := h.run("profile", "password", "--current", "secret123", "--new", "abc")
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))

	assert.Equal(t, "Password changed\n", h.mustRun("profile", "password", "--current", "secret123", "--new", "n3w-secret"))

	_, _, err = h.run("auth", "login", "-u", "alice", "-p", "secret123")
	require.Error(t, err)
	h.mustRun("auth", "login", "-u", "alice", "-p", "n3w-secret")
}

func TestProfilePasswordPrompts(t *testing.T) {
	h := newHarness(t)
	h.login()
	interactive = func() bool { return true }
	h.prompts.change = domain.PasswordChange{CurrentPassword: "secret123", NewPassword: "n3w-secret"}

	h.mustRun("profile", "password")
	assert.Equal(t, 1, h.prompts.calls)
}
