package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/devquote/internal/errors"
	"github.com/felixgeelhaar/devquote/internal/tokenstore"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Read and write preferences kept across sessions",
	Long: `Preferences live in the token store next to the session and survive
logout.

Keys:
  theme       light, dark or system
  language    a language tag such as pt-BR or en
  onboarding  true once onboarding was completed`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var prefsGetCmd = &cobra.Command{
	Use:       "get [key]",
	Short:     "Print one or all preferences",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: prefKeys,
	RunE:      runPrefsGet,
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a preference",
	Args:  cobra.ExactArgs(2),
	RunE:  runPrefsSet,
}

var prefsResetCmd = &cobra.Command{
	Use:       "reset <key>",
	Short:     "Restore a preference to its default",
	Args:      cobra.ExactArgs(1),
	ValidArgs: prefKeys,
	RunE:      runPrefsReset,
}

var prefKeys = []string{"theme", "language", "onboarding"}

func init() {
	prefsSetCmd.ValidArgsFunction = completePref
	prefsCmd.AddCommand(prefsGetCmd, prefsSetCmd, prefsResetCmd)
	rootCmd.AddCommand(prefsCmd)
}

// preferences is the structured form of `prefs get`.
type preferences struct {
	Theme      string `json:"theme" yaml:"theme"`
	Language   string `json:"language" yaml:"language"`
	Onboarding bool   `json:"onboarding" yaml:"onboarding"`
}

func (p preferences) Text() string {
	return fmt.Sprintf("theme       %s\nlanguage    %s\nonboarding  %t", p.Theme, p.Language, p.Onboarding)
}

func (p preferences) get(key string) string {
	switch key {
	case "theme":
		return p.Theme
	case "language":
		return p.Language
	default:
		return strconv.FormatBool(p.Onboarding)
	}
}

func readPreferences(ctx context.Context, store *tokenstore.Store) (preferences, error) {
	theme, err := store.Theme(ctx)
	if err != nil {
		return preferences{}, err
	}
	lang, err := store.Language(ctx)
	if err != nil {
		return preferences{}, err
	}
	done, err := store.OnboardingCompleted(ctx)
	if err != nil {
		return preferences{}, err
	}
	return preferences{Theme: string(theme), Language: lang, Onboarding: done}, nil
}

func prefKey(name string) (tokenstore.Key, error) {
	switch name {
	case "theme":
		return tokenstore.KeyTheme, nil
	case "language":
		return tokenstore.KeyLanguage, nil
	case "onboarding":
		return tokenstore.KeyOnboarding, nil
	}
	return "", errors.NewValidationError("preference", fmt.Sprintf("unknown key %q (theme, language, onboarding)", name))
}

func runPrefsGet(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		if _, err := prefKey(args[0]); err != nil {
			return err
		}
	}
	a, err := appFor(cmd)
	if err != nil {
		return err
	}
	prefs, err := readPreferences(cmd.Context(), a.Store)
	if err != nil {
		return err
	}
	if len(args) == 1 {
		return emit(cmd, map[string]string{args[0]: prefs.get(args[0])}, prefs.get(args[0]))
	}
	return format(cmd, prefs)
}

func runPrefsSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	if _, err := prefKey(key); err != nil {
		return err
	}
	a, err := appFor(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	switch key {
	case "theme":
		theme, perr := tokenstore.ParseTheme(value)
		if perr != nil {
			return perr
		}
		err = a.Store.SetTheme(ctx, theme)
	case "language":
		err = a.Store.SetLanguage(ctx, value)
	case "onboarding":
		done, perr := strconv.ParseBool(value)
		if perr != nil {
			return errors.NewValidationError("onboarding", "must be true or false")
		}
		err = a.Store.SetOnboardingCompleted(ctx, done)
	}
	if err != nil {
		return err
	}
	return emit(cmd, map[string]string{key: value}, fmt.Sprintf("%s set to %s", key, value))
}

func runPrefsReset(cmd *cobra.Command, args []string) error {
	key, err := prefKey(args[0])
	if err != nil {
		return err
	}
	a, err := appFor(cmd)
	if err != nil {
		return err
	}
	if err := a.Store.ResetPreference(cmd.Context(), key); err != nil {
		return err
	}
	return emit(cmd, map[string]bool{args[0]: true}, fmt.Sprintf("%s reset", args[0]))
}
