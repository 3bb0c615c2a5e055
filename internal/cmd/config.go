package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/devquote/internal/config"
	"github.com/felixgeelhaar/devquote/internal/ux"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or edit devquote configuration",
	Long: `Manage devquote configuration stored at ~/.devquote/config.yaml

Configuration includes:
  • Backend URL and request timeouts
  • Token store backend (file, memory, redis)
  • Logging settings
  • Metrics dump on exit

DEVQUOTE_* environment variables override the file, e.g.
DEVQUOTE_API_BASE_URL or DEVQUOTE_STORAGE_BACKEND.

Examples:
  # View effective configuration
  devquote config view

  # Get a specific value
  devquote config get api.base_url

  # Set a specific value
  devquote config set api.timeout 30s

  # Show configuration file path
  devquote config path
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Display the effective configuration",
	Long:  `Display the configuration after defaults, file and environment are merged. The passphrase is redacted.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigView,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration in $EDITOR",
	Long:  `Open the configuration file in your default editor (from $EDITOR environment variable).`,
	Args:  cobra.NoArgs,
	RunE:  runConfigEdit,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  `Retrieve the value of a configuration key in dot notation (e.g., api.base_url).`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a specific configuration value",
	Long: `Set a configuration key in dot notation and save the file. The result
is validated before it is written.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the settable keys",
	Args:  cobra.NoArgs,
	RunE:  runConfigKeys,
}

func init() {
	configGetCmd.ValidArgsFunction = completeConfigKey
	configSetCmd.ValidArgsFunction = completeConfigKey

	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configKeysCmd)

	rootCmd.AddCommand(configCmd)
}

func runConfigView(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	format := outputFormat
	if textOutput() {
		format = ux.FormatYAML
	}
	p, err := ux.NewPrinter(format, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	return p.Print(cfg.Redacted())
}

func runConfigEdit(cmd *cobra.Command, _ []string) error {
	path := configPath()

	// Ensure config exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		if err := config.Save(cfg, path); err != nil {
			return ux.FormatError(err, "creating configuration")
		}
	}

	// Get editor from environment
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi" // Fallback to vi
	}

	editorCmd := exec.CommandContext(cmd.Context(), editor, path)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = cmd.OutOrStdout()
	editorCmd.Stderr = cmd.ErrOrStderr()

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("failed to run editor: %w", err)
	}

	// Validate the edited config
	cfg, err := config.Load(path)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning: the configuration contains errors, please fix the file.")
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration updated successfully")
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	value, err := cfg.Get(args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
	return err
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	path := configPath()
	if _, err := config.Set(path, key, value); err != nil {
		return err
	}
	if key == "storage.passphrase" {
		value = "[REDACTED]"
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "✓ %s = %s (saved to %s)\n", key, value, path)
	return err
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	_, err := fmt.Fprintln(cmd.OutOrStdout(), configPath())
	return err
}

func runConfigKeys(cmd *cobra.Command, _ []string) error {
	_, err := fmt.Fprintln(cmd.OutOrStdout(), strings.Join(config.Keys(), "\n"))
	return err
}
