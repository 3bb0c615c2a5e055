package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/devquote/internal/api/apitest"
	"github.com/felixgeelhaar/devquote/internal/config"
	"github.com/felixgeelhaar/devquote/internal/domain"
)

var alice = domain.User{
	ID:       1,
	Username: "alice",
	Email:    "alice@example.com",
	Active:   true,
	Profiles: []domain.Profile{{
		ID:          3,
		Name:        "User",
		ProfileType: domain.ProfileUser,
		Permissions: []domain.Permission{{
			Resource:  domain.Reference{Name: "TASKS"},
			Operation: domain.Reference{Name: "READ"},
		}},
	}},
}

// fakePrompter answers prompts from fixed values and counts the calls.
type fakePrompter struct {
	creds  domain.Credentials
	change domain.PasswordChange
	calls  int
}

func (p *fakePrompter) Credentials(_ context.Context, preset domain.Credentials) (domain.Credentials, error) {
	p.calls++
	out := p.creds
	if preset.Username != "" {
		out.Username = preset.Username
	}
	return out, nil
}

func (p *fakePrompter) PasswordChange(context.Context) (domain.PasswordChange, error) {
	p.calls++
	return p.change, nil
}

func (p *fakePrompter) Confirm(_ context.Context, _ string, def bool) (bool, error) {
	p.calls++
	return def, nil
}

type harness struct {
	t       *testing.T
	srv     *apitest.Server
	dir     string
	cfgPath string
	prompts *fakePrompter
}

// newHarness writes a config pointing at a fake backend with the file
// token store in a temp dir.
func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := apitest.New(t)
	srv.AddUser("alice", "secret123", alice)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	cfg.API.BaseURL = srv.BaseURL()
	cfg.Storage.Backend = config.BackendFile
	cfg.Storage.Path = filepath.Join(dir, "session.json")
	cfg.Storage.Passphrase = "correct horse"
	require.NoError(t, config.Save(cfg, cfgPath))

	h := &harness{t: t, srv: srv, dir: dir, cfgPath: cfgPath, prompts: &fakePrompter{}}

	origPrompter, origInteractive := prompter, interactive
	prompter = h.prompts
	interactive = func() bool { return false }
	t.Cleanup(func() {
		prompter, interactive = origPrompter, origInteractive
		appOptions = nil
	})
	return h
}

// run executes the CLI with --config set and returns stdout and stderr.
func (h *harness) run(args ...string) (string, string, error) {
	h.t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--config", h.cfgPath}, args...))
	err := ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// mustRun fails the test when the command fails.
func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, stderr, err := h.run(args...)
	require.NoError(h.t, err, "devquote %v\nstderr: %s", args, stderr)
	return out
}

func (h *harness) login() {
	h.t.Helper()
	h.mustRun("auth", "login", "-u", "alice", "-p", "secret123")
}

// resetFlags restores every flag to its default so package level flag
// variables do not leak between runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
