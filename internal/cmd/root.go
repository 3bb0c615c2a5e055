package cmd

import (
	"context"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/devquote/internal/app"
	"github.com/felixgeelhaar/devquote/internal/config"
	"github.com/felixgeelhaar/devquote/internal/log"
	"github.com/felixgeelhaar/devquote/internal/metrics"
	"github.com/felixgeelhaar/devquote/internal/tui"
	"github.com/felixgeelhaar/devquote/internal/ux"
	"github.com/felixgeelhaar/devquote/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "devquote",
	Short: "Command line client for the devquote backend",
	Long: `devquote signs you in to the devquote backend and keeps the session
alive: expired access tokens are refreshed once, and requests that failed
with 401 are replayed with the new token.

Tokens are kept in the token store configured under storage.* (an
encrypted file in ~/.devquote by default).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Global flags
var (
	cfgFile      string
	logLevel     string
	logFormat    string
	dumpMetrics  bool
	outputFormat string
)

// Seams replaced by tests.
var (
	prompter    tui.Prompter     = tui.FormPrompter{}
	interactive func() bool      = tui.ShouldPrompt
	now         func() time.Time = time.Now
	appOptions  func(*app.Options)
)

// Per-invocation state built on first use.
var (
	current  *app.App
	registry *prometheus.Registry
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.devquote/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().BoolVar(&dumpMetrics, "metrics", false, "print collected metrics to stderr on exit")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", ux.FormatText, "output format: text, json, yaml")

	_ = rootCmd.RegisterFlagCompletionFunc("output", fixedCompletions(outputFormats...))
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", fixedCompletions(logLevels...))
	_ = rootCmd.RegisterFlagCompletionFunc("log-format", fixedCompletions(logFormats...))
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// interrupt by the caller. The App is closed whether or not the command
// failed.
func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if cerr := closeApp(rootCmd); err == nil {
		err = cerr
	}
	return err
}

// configPath returns --config or the default location.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

// loadConfig reads the configuration and applies the logging flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if dumpMetrics {
		cfg.Metrics.Enabled = true
	}
	return cfg, nil
}

// appFor builds the App for this invocation.
func appFor(cmd *cobra.Command) (*app.App, error) {
	if current != nil {
		return current, nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logCfg := cfg.LogConfig()
	logCfg.Output = log.NewOutput(cmd.ErrOrStderr())
	logCfg.ServiceVersion = version.GetInfo().Version
	logger := log.New(logCfg)
	log.SetDefaultLogger(logger)

	opts := app.Options{
		Config:    cfg,
		Logger:    logger,
		UserAgent: version.GetInfo().UserAgent(),
	}
	if cfg.Metrics.Enabled {
		registry, opts.Metrics = metrics.NewRegistry()
	}
	if appOptions != nil {
		appOptions(&opts)
	}

	a, err := app.New(cmd.Context(), opts)
	if err != nil {
		return nil, err
	}
	current = a
	return a, nil
}

// closeApp releases the App and dumps metrics when enabled.
func closeApp(cmd *cobra.Command) error {
	if current == nil {
		return nil
	}
	a := current
	current = nil

	if registry != nil {
		if err := metrics.WriteText(cmd.ErrOrStderr(), registry); err != nil {
			a.Logger.WithError(err).Warn("failed to write metrics")
		}
		registry = nil
	}
	return a.Close()
}

// printer returns the printer selected with -o.
func printer(cmd *cobra.Command) (*ux.Printer, error) {
	return ux.NewPrinter(outputFormat, cmd.OutOrStdout())
}

// textOutput reports whether -o selects the human-readable form.
func textOutput() bool {
	return outputFormat == "" || strings.EqualFold(outputFormat, ux.FormatText)
}

var styles = tui.DefaultStyles()
