package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/devquote/internal/app"
	"github.com/felixgeelhaar/devquote/internal/domain"
	"github.com/felixgeelhaar/devquote/internal/errors"
	"github.com/felixgeelhaar/devquote/internal/session"
	"github.com/felixgeelhaar/devquote/internal/tui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the devquote session",
	Long: `Manage the devquote session.

Subcommands:
  login    Sign in with username and password
  logout   Sign out and remove the stored session
  status   Restore the stored session and show it
  refresh  Exchange the refresh token for a new access token
  token    Print the stored access token

Examples:
  devquote auth login --username alice
  devquote auth status
  devquote auth logout`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the backend",
	Long: `Sign in with username and password. Missing values are prompted for
when a terminal is attached.

Examples:
  devquote auth login
  devquote auth login --username alice --password secret123`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the stored session",
	Long: `Sign out. The backend is told about it when a session is stored; the
local session is cleared even when the backend cannot be reached.
Preferences are kept.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	Long: `Restore the stored session, validating the access token and refreshing
it when needed, then print the result. An unusable stored session is
discarded.`,
	Args: cobra.NoArgs,
	RunE: runAuthStatus,
}

var authRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the access token now",
	Args:  cobra.NoArgs,
	RunE:  runAuthRefresh,
}

var authTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the stored access token",
	Long: `Print the stored access token, masked unless --show is given.

Examples:
  curl -H "Authorization: Bearer $(devquote auth token --show)" ...`,
	Args: cobra.NoArgs,
	RunE: runAuthToken,
}

var (
	loginUsername string
	loginPassword string
	tokenShow     bool
)

func init() {
	authLoginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "username")
	authLoginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password (prompted when omitted)")
	authTokenCmd.Flags().BoolVar(&tokenShow, "show", false, "print the token unmasked")

	authCmd.AddCommand(authLoginCmd, authLogoutCmd, authStatusCmd, authRefreshCmd, authTokenCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, _ []string) error {
	creds := domain.Credentials{Username: loginUsername, Password: loginPassword}
	if creds.Validate() != nil && interactive() {
		var err error
		creds, err = prompter.Credentials(cmd.Context(), creds)
		if err != nil {
			return err
		}
	}

	a, err := appFor(cmd)
	if err != nil {
		return err
	}
	if err := a.Session.Login(cmd.Context(), creds); err != nil {
		return err
	}

	state := a.Session.State()
	return emit(cmd, newStatusResult(a, state), fmt.Sprintf("Signed in as %s", state.User.DisplayName()))
}

func runAuthLogout(cmd *cobra.Command, _ []string) error {
	a, err := appFor(cmd)
	if err != nil {
		return err
	}
	if err := a.Session.Logout(cmd.Context()); err != nil {
		return err
	}
	return emit(cmd, newStatusResult(a, a.Session.State()), "Signed out")
}

// statusResult is the structured form of `auth status`.
type statusResult struct {
	Authenticated bool         `json:"authenticated" yaml:"authenticated"`
	User          *domain.User `json:"user,omitempty" yaml:"user,omitempty"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	BaseURL       string       `json:"base_url" yaml:"base_url"`
	Storage       string       `json:"storage" yaml:"storage"`
	Error         string       `json:"error,omitempty" yaml:"error,omitempty"`
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	a, err := appFor(cmd)
	if err != nil {
		return err
	}
	a.Session.LoadStoredAuth(cmd.Context())
	state := a.Session.State()

	if textOutput() {
		view := tui.SessionView{
			State:   state,
			BaseURL: a.Client.BaseURL(),
			Backend: a.Config.Storage.Backend,
			Now:     now(),
			Styles:  styles,
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), view.Render())
		return err
	}

	return format(cmd, newStatusResult(a, state))
}

// newStatusResult never includes the tokens themselves.
func newStatusResult(a *app.App, state session.State) statusResult {
	res := statusResult{
		Authenticated: state.IsAuthenticated,
		User:          state.User,
		BaseURL:       a.Client.BaseURL(),
		Storage:       a.Config.Storage.Backend,
		Error:         state.Error,
	}
	if state.Tokens != nil {
		if at, ok := state.Tokens.ExpiresAt(); ok {
			res.ExpiresAt = &at
		}
	}
	return res
}

func runAuthRefresh(cmd *cobra.Command, _ []string) error {
	a, err := appFor(cmd)
	if err != nil {
		return err
	}
	pair, err := a.Coordinator.Refresh(cmd.Context())
	if err != nil {
		return err
	}

	msg := "Access token refreshed"
	if at, ok := pair.ExpiresAt(); ok {
		msg += fmt.Sprintf(", expires in %s", at.Sub(now()).Round(time.Second))
	}
	return emit(cmd, map[string]any{"refreshed": true, "expires_in": pair.ExpiresIn}, msg)
}

func runAuthToken(cmd *cobra.Command, _ []string) error {
	a, err := appFor(cmd)
	if err != nil {
		return err
	}
	token, err := storedAccessToken(cmd, a)
	if err != nil {
		return err
	}
	if !tokenShow {
		token = mask(token)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}

// storedAccessToken fails with AUTH-003 when no session is stored.
func storedAccessToken(cmd *cobra.Command, a *app.App) (string, error) {
	token, err := a.Store.AccessToken(cmd.Context())
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", errors.NewNotAuthenticatedError("no stored session")
	}
	return token, nil
}

func mask(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

// emit prints msg in text mode and v otherwise.
func emit(cmd *cobra.Command, v any, msg string) error {
	if textOutput() {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), msg)
		return err
	}
	return format(cmd, v)
}

func format(cmd *cobra.Command, v any) error {
	p, err := printer(cmd)
	if err != nil {
		return err
	}
	return p.Print(v)
}
