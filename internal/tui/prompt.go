package tui

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/felixgeelhaar/devquote/internal/domain"
)

// Prompter asks the user for input. Commands hold one so tests can
// replace the terminal forms.
type Prompter interface {
	Credentials(ctx context.Context, preset domain.Credentials) (domain.Credentials, error)
	PasswordChange(ctx context.Context) (domain.PasswordChange, error)
	Confirm(ctx context.Context, message string, defaultValue bool) (bool, error)
}

// FormPrompter implements Prompter with huh forms.
type FormPrompter struct{}

// Credentials fills in whatever preset is missing.
func (FormPrompter) Credentials(ctx context.Context, preset domain.Credentials) (domain.Credentials, error) {
	creds := preset
	var fields []huh.Field
	if strings.TrimSpace(creds.Username) == "" {
		fields = append(fields, huh.NewInput().
			Title("Username").
			Value(&creds.Username).
			Validate(required("username")))
	}
	if creds.Password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&creds.Password).
			Validate(required("password")))
	}
	if len(fields) == 0 {
		return creds, nil
	}
	if err := run(ctx, huh.NewForm(huh.NewGroup(fields...))); err != nil {
		return domain.Credentials{}, err
	}
	return creds, nil
}

// PasswordChange asks for the current password and the new one twice.
func (FormPrompter) PasswordChange(ctx context.Context) (domain.PasswordChange, error) {
	var change domain.PasswordChange
	var confirm string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Current password").
			EchoMode(huh.EchoModePassword).
			Value(&change.CurrentPassword).
			Validate(required("current password")),
		huh.NewInput().
			Title("New password").
			EchoMode(huh.EchoModePassword).
			Value(&change.NewPassword).
			Validate(required("new password")),
		huh.NewInput().
			Title("Repeat new password").
			EchoMode(huh.EchoModePassword).
			Value(&confirm).
			Validate(func(s string) error {
				if s != change.NewPassword {
					return fmt.Errorf("passwords do not match")
				}
				return nil
			}),
	))
	if err := run(ctx, form); err != nil {
		return domain.PasswordChange{}, err
	}
	return change, nil
}

// Confirm displays a yes/no confirmation prompt
func (FormPrompter) Confirm(ctx context.Context, message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(message).
			Value(&confirmed),
	))
	if err := run(ctx, form); err != nil {
		return false, err
	}
	return confirmed, nil
}

// run maps an aborted form to context.Canceled.
func run(ctx context.Context, form *huh.Form) error {
	if err := form.RunWithContext(ctx); err != nil {
		if stderrors.Is(err, huh.ErrUserAborted) {
			return context.Canceled
		}
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ShouldPrompt returns true if prompts should be shown based on environment
// Prompts are disabled in CI environments or when stdin is not a terminal
func ShouldPrompt() bool {
	return !inCI() && IsInteractive()
}

func inCI() bool {
	ciEnvVars := []string{
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"TRAVIS",
		"CIRCLECI",
		"BUILDKITE",
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return true
		}
	}
	return false
}
