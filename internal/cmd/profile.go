package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/devquote/internal/app"
	"github.com/felixgeelhaar/devquote/internal/domain"
	"github.com/felixgeelhaar/devquote/internal/errors"
	"github.com/felixgeelhaar/devquote/internal/tui"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show and edit the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the signed-in user with profiles and permissions",
	Args:  cobra.NoArgs,
	RunE:  runProfileShow,
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update name or email",
	Long: `Update the editable profile fields. At least one flag is required.

Examples:
  devquote profile update --name "Alice Doe"
  devquote profile update --email alice@example.com`,
	Args: cobra.NoArgs,
	RunE: runProfileUpdate,
}

var profilePasswordCmd = &cobra.Command{
	Use:   "password",
	Short: "Change the password",
	Long: `Change the password. Without flags the current and new passwords are
prompted for when a terminal is attached.`,
	Args: cobra.NoArgs,
	RunE: runProfilePassword,
}

var (
	profileName     string
	profileEmail    string
	currentPassword string
	newPassword     string
)

func init() {
	profileUpdateCmd.Flags().StringVar(&profileName, "name", "", "display name")
	profileUpdateCmd.Flags().StringVar(&profileEmail, "email", "", "email address")
	profilePasswordCmd.Flags().StringVar(&currentPassword, "current", "", "current password")
	profilePasswordCmd.Flags().StringVar(&newPassword, "new", "", "new password")

	profileCmd.AddCommand(profileShowCmd, profileUpdateCmd, profilePasswordCmd)
	rootCmd.AddCommand(profileCmd)
}

// restoredApp builds the App and restores the stored session. It fails
// with AUTH-003 when no usable session remains.
func restoredApp(cmd *cobra.Command) (*app.App, error) {
	a, err := appFor(cmd)
	if err != nil {
		return nil, err
	}
	a.Session.LoadStoredAuth(cmd.Context())
	if !a.Session.State().IsAuthenticated {
		return nil, errors.NewNotAuthenticatedError("no usable stored session")
	}
	return a, nil
}

func runProfileShow(cmd *cobra.Command, _ []string) error {
	a, err := restoredApp(cmd)
	if err != nil {
		return err
	}
	user, err := a.Session.RefreshProfile(cmd.Context())
	if err != nil {
		return err
	}
	return showUser(cmd, user)
}

func runProfileUpdate(cmd *cobra.Command, _ []string) error {
	update := domain.ProfileUpdate{Name: profileName, Email: profileEmail}
	if update.Empty() {
		return errors.NewValidationError("profile", "pass --name or --email")
	}

	a, err := restoredApp(cmd)
	if err != nil {
		return err
	}
	user, err := a.Session.UpdateProfile(cmd.Context(), update)
	if err != nil {
		return err
	}
	return showUser(cmd, user)
}

func showUser(cmd *cobra.Command, user *domain.User) error {
	if textOutput() {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), tui.UserView(user, styles))
		return err
	}
	return format(cmd, user)
}

func runProfilePassword(cmd *cobra.Command, _ []string) error {
	change := domain.PasswordChange{CurrentPassword: currentPassword, NewPassword: newPassword}
	if change.CurrentPassword == "" && change.NewPassword == "" && interactive() {
		var err error
		change, err = prompter.PasswordChange(cmd.Context())
		if err != nil {
			return err
		}
	}
	if err := change.Validate(); err != nil {
		return err
	}

	a, err := restoredApp(cmd)
	if err != nil {
		return err
	}
	if err := a.Session.ChangePassword(cmd.Context(), change); err != nil {
		return err
	}
	return emit(cmd, map[string]bool{"changed": true}, "Password changed")
}
