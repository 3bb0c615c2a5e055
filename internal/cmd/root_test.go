package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/devquote/internal/errors"
	"github.com/felixgeelhaar/devquote/internal/exitcode"
)

func findCommand(t *testing.T, parent *cobra.Command, name string) *cobra.Command {
	t.Helper()
	for _, c := range parent.Commands() {
		if c.Name() == name {
			return c
		}
	}
	t.Fatalf("subcommand '%s' not found in %s", name, parent.Name())
	return nil
}

// TestRootSubcommands tests that every command group is registered
func TestRootSubcommands(t *testing.T) {
	for _, name := range []string{"auth", "profile", "projects", "tasks", "requesters", "deliveries", "api", "prefs", "config", "doctor", "completion", "version"} {
		findCommand(t, rootCmd, name)
	}
}

func TestSubcommands(t *testing.T) {
	tests := []struct {
		parent *cobra.Command
		names  []string
	}{
		{authCmd, []string{"login", "logout", "status", "refresh", "token"}},
		{profileCmd, []string{"show", "update", "password"}},
		{projectsCmd, []string{"list", "show"}},
		{tasksCmd, []string{"list", "show"}},
		{prefsCmd, []string{"get", "set", "reset"}},
		{configCmd, []string{"view", "edit", "get", "set", "path", "keys"}},
	}

	for _, tt := range tests {
		t.Run(tt.parent.Name(), func(t *testing.T) {
			for _, name := range tt.names {
				findCommand(t, tt.parent, name)
			}
		})
	}
}

func TestFlags(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		flags []string
	}{
		{rootCmd, []string{"config", "log-level", "log-format", "metrics", "output"}},
		{authLoginCmd, []string{"username", "password"}},
		{authTokenCmd, []string{"show"}},
		{profileUpdateCmd, []string{"name", "email"}},
		{profilePasswordCmd, []string{"current", "new"}},
		{projectsListCmd, []string{"page", "size", "sort", "name"}},
		{tasksListCmd, []string{"page", "size", "sort", "priority", "search"}},
		{apiCmd, []string{"data"}},
		{versionCmd, []string{"verbose"}},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.Name(), func(t *testing.T) {
			for _, name := range tt.flags {
				flags := tt.cmd.Flags()
				if tt.cmd == rootCmd {
					flags = tt.cmd.PersistentFlags()
				}
				if flags.Lookup(name) == nil {
					t.Errorf("flag '%s' not found on %s", name, tt.cmd.CommandPath())
				}
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("version")
	assert.True(t, strings.HasPrefix(out, "devquote "), out)

	out = h.mustRun("version", "--verbose")
	assert.Contains(t, out, "built:")
	assert.Contains(t, out, "platform:")

	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("version", "-o", "json")), &info))
	assert.NotEmpty(t, info["version"])
	assert.NotEmpty(t, info["platform"])
}

func TestUnknownOutputFormat(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("version", "-o", "xml")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
	assert.Equal(t, exitcode.UsageError, exitcode.DetermineExitCode(err))
}

func TestInvalidConfigFails(t *testing.T) {
	h := newHarness(t)
	t.Setenv("DEVQUOTE_API_BASE_URL", "ftp://nowhere")

	_, _, err := h.run("auth", "status")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
	assert.Equal(t, exitcode.ConfigError, exitcode.DetermineExitCode(err))
}

func TestMetricsFlagDumpsToStderr(t *testing.T) {
	h := newHarness(t)
	h.login()

	_, stderr, err := h.run("--metrics", "projects", "list")
	require.NoError(t, err)
	assert.Contains(t, stderr, "# TYPE devquote_http_requests_total counter")
	assert.Contains(t, stderr, `devquote_http_requests_total{method="GET",status_class="2xx"} 1`)
}

func TestMetricsDumpedOnFailure(t *testing.T) {
	h := newHarness(t)

	_, stderr, err := h.run("--metrics", "api", "GET", "/status/500")
	require.Error(t, err)
	assert.Contains(t, stderr, `status_class="5xx"`)
}

func TestLogLevelFlag(t *testing.T) {
	h := newHarness(t)
	h.login()

	_, stderr, err := h.run("--log-level", "debug", "--log-format", "json", "projects", "list")
	require.NoError(t, err)
	assert.Contains(t, stderr, `"msg":"api request"`)
	assert.NotContains(t, stderr, "secret123")
}
