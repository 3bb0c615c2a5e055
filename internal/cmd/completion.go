package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/devquote/internal/config"
	"github.com/felixgeelhaar/devquote/internal/domain"
	"github.com/felixgeelhaar/devquote/internal/tokenstore"
	"github.com/felixgeelhaar/devquote/internal/ux"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `To load completions:

Bash:
  $ source <(devquote completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ devquote completion bash > /etc/bash_completion.d/devquote
  # macOS:
  $ devquote completion bash > $(brew --prefix)/etc/bash_completion.d/devquote

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it.  You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ devquote completion zsh > "${fpath[1]}/_devquote"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ devquote completion fish | source

  # To load completions for each session, execute once:
  $ devquote completion fish > ~/.config/fish/completions/devquote.fish

PowerShell:
  PS> devquote completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> devquote completion powershell > devquote.ps1
  # and source this file from your PowerShell profile.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE:                  runCompletion,
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

func runCompletion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	switch args[0] {
	case "bash":
		return rootCmd.GenBashCompletionV2(out, true)
	case "zsh":
		return rootCmd.GenZshCompletion(out)
	case "fish":
		return rootCmd.GenFishCompletion(out, true)
	case "powershell":
		return rootCmd.GenPowerShellCompletionWithDesc(out)
	}
	return nil
}

// fixedCompletions completes a flag or argument from a closed set.
func fixedCompletions(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var out []string
		for _, v := range values {
			if strings.HasPrefix(strings.ToLower(v), strings.ToLower(toComplete)) {
				out = append(out, v)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	}
}

// completeConfigKey completes the first argument of `config get|set`.
func completeConfigKey(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return completeConfigValue(cmd, args, toComplete)
	}
	return fixedCompletions(config.Keys()...)(cmd, args, toComplete)
}

// completeConfigValue offers the closed value sets of `config set`.
func completeConfigValue(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if cmd != configSetCmd || len(args) != 1 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	switch args[0] {
	case "storage.backend":
		return fixedCompletions(config.BackendFile, config.BackendMemory, config.BackendRedis)(cmd, nil, toComplete)
	case "logging.level":
		return fixedCompletions(logLevels...)(cmd, nil, toComplete)
	case "logging.format":
		return fixedCompletions(logFormats...)(cmd, nil, toComplete)
	case "metrics.enabled":
		return fixedCompletions("true", "false")(cmd, nil, toComplete)
	case "storage.path":
		return nil, cobra.ShellCompDirectiveDefault
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// completePref completes `prefs set <key> <value>`.
func completePref(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return fixedCompletions(prefKeys...)(cmd, args, toComplete)
	}
	if cmd != prefsSetCmd || len(args) != 1 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	switch args[0] {
	case "theme":
		return fixedCompletions(string(tokenstore.ThemeLight), string(tokenstore.ThemeDark), string(tokenstore.ThemeSystem))(cmd, nil, toComplete)
	case "onboarding":
		return fixedCompletions("true", "false")(cmd, nil, toComplete)
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

var (
	logLevels     = []string{"debug", "info", "warn", "error"}
	logFormats    = []string{"text", "json"}
	outputFormats = []string{ux.FormatText, ux.FormatJSON, ux.FormatYAML}
	priorities    = []string{
		domain.PriorityLow.String(),
		domain.PriorityMedium.String(),
		domain.PriorityHigh.String(),
		domain.PriorityUrgent.String(),
	}
	taskTypes = []string{
		string(domain.TaskTypeBug),
		string(domain.TaskTypeEnhancement),
		string(domain.TaskTypeNewFeature),
	}
	deliveryStatuses = statusNames(domain.DeliveryStatuses)
)

func statusNames(statuses []domain.DeliveryStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = s.String()
	}
	return out
}
