package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/devquote/internal/app"
	"github.com/felixgeelhaar/devquote/internal/config"
	"github.com/felixgeelhaar/devquote/internal/health"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostics on configuration, storage and backend",
	Long: `Run diagnostics to check that devquote is properly configured.

Checks include:
  • Configuration file and environment overrides
  • Token store backend
  • Backend reachability
  • Stored session

Examples:
  # Run diagnostics
  devquote doctor

  # Output as JSON for scripts
  devquote doctor -o json
`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

// DoctorReport represents the complete health check report
type DoctorReport struct {
	Config    *DoctorCheck `json:"config" yaml:"config"`
	Storage   *DoctorCheck `json:"storage" yaml:"storage"`
	Backend   *DoctorCheck `json:"backend" yaml:"backend"`
	Session   *DoctorCheck `json:"session" yaml:"session"`
	Issues    []string     `json:"issues" yaml:"issues"`
	Warnings  []string     `json:"warnings" yaml:"warnings"`
	NextSteps []string     `json:"next_steps" yaml:"next_steps"`
	Healthy   bool         `json:"healthy" yaml:"healthy"`
}

// DoctorCheck represents a single health check result
type DoctorCheck struct {
	Name    string         `json:"name" yaml:"name"`
	Status  string         `json:"status" yaml:"status"` // "ok", "warning", "error", "skipped"
	Message string         `json:"message" yaml:"message"`
	Details map[string]any `json:"details,omitempty" yaml:"details,omitempty"`
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	report := &DoctorReport{
		Issues:    []string{},
		Warnings:  []string{},
		NextSteps: []string{},
	}

	cfg := checkConfig(report)
	a := checkDependencies(cmd, cfg, report)
	checkSession(cmd, a, report)

	report.Healthy = len(report.Issues) == 0

	if !textOutput() {
		if err := format(cmd, report); err != nil {
			return err
		}
	} else {
		printReport(cmd.OutOrStdout(), report)
	}
	if !report.Healthy {
		return fmt.Errorf("health check failed")
	}
	return nil
}

func checkConfig(report *DoctorReport) *config.Config {
	cfg, err := loadConfig()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		report.Config = &DoctorCheck{Name: "Configuration", Status: "error", Message: err.Error()}
		report.Issues = append(report.Issues, "Configuration is invalid")
		report.NextSteps = append(report.NextSteps, "Fix "+configPath()+" or the DEVQUOTE_* variables")
		return nil
	}
	report.Config = &DoctorCheck{
		Name:    "Configuration",
		Status:  "ok",
		Message: configPath(),
		Details: map[string]any{"base_url": cfg.API.BaseURL, "backend": cfg.Storage.Backend},
	}
	return cfg
}

// checkDependencies runs the token store and backend checks in parallel.
func checkDependencies(cmd *cobra.Command, cfg *config.Config, report *DoctorReport) *app.App {
	if cfg == nil {
		report.Storage = &DoctorCheck{Name: "Token store", Status: "skipped", Message: "configuration is invalid"}
		report.Backend = &DoctorCheck{Name: "Backend", Status: "skipped", Message: "no usable configuration"}
		return nil
	}
	a, err := appFor(cmd)
	if err != nil {
		report.Storage = &DoctorCheck{Name: "Token store", Status: "error", Message: err.Error()}
		report.Backend = &DoctorCheck{Name: "Backend", Status: "skipped", Message: "no usable configuration"}
		report.Issues = append(report.Issues, fmt.Sprintf("The %s token store cannot be opened", cfg.Storage.Backend))
		return nil
	}

	manager := health.NewManager().WithTimeout(cfg.API.Timeout)
	manager.AddChecker(health.NewStoreChecker(a.Store))
	manager.AddChecker(health.NewBackendChecker(a.Client))
	results := manager.Check(cmd.Context())
	store, backend := results[0], results[1]

	report.Backend = doctorCheck("Backend", backend)
	switch backend.Status {
	case health.StatusUnhealthy:
		report.Issues = append(report.Issues, "The backend cannot be reached")
		report.NextSteps = append(report.NextSteps, "Check api.base_url with 'devquote config get api.base_url'")
	case health.StatusDegraded:
		report.Warnings = append(report.Warnings, "The backend answered with an unexpected status")
	}

	report.Storage = doctorCheck("Token store", store)
	if store.Status == health.StatusUnhealthy {
		report.Issues = append(report.Issues, fmt.Sprintf("The %s token store cannot be read", cfg.Storage.Backend))
		return nil
	}
	switch cfg.Storage.Backend {
	case config.BackendFile:
		report.Storage.Message += " " + cfg.Storage.Path
		if cfg.Storage.Passphrase == "" {
			report.Warnings = append(report.Warnings, "storage.passphrase is empty; tokens are stored unencrypted (file mode 0600)")
		}
	case config.BackendRedis:
		report.Storage.Message += " " + cfg.Storage.RedisURL
	case config.BackendMemory:
		report.Warnings = append(report.Warnings, "The memory backend forgets the session when the command exits")
	}

	return a
}

func doctorCheck(name string, r *health.Result) *DoctorCheck {
	status := "ok"
	switch r.Status {
	case health.StatusDegraded:
		status = "warning"
	case health.StatusUnhealthy:
		status = "error"
	}
	check := &DoctorCheck{Name: name, Status: status, Message: r.Message}
	if len(r.Details) > 0 {
		check.Details = r.Details
	}
	return check
}

func checkSession(cmd *cobra.Command, a *app.App, report *DoctorReport) {
	if a == nil || report.Backend == nil || report.Backend.Status == "error" {
		report.Session = &DoctorCheck{Name: "Session", Status: "skipped", Message: "backend unavailable"}
		return
	}
	a.Session.LoadStoredAuth(cmd.Context())
	state := a.Session.State()
	if !state.IsAuthenticated {
		report.Session = &DoctorCheck{Name: "Session", Status: "warning", Message: "not signed in"}
		report.NextSteps = append(report.NextSteps, "Sign in with 'devquote auth login'")
		return
	}
	report.Session = &DoctorCheck{Name: "Session", Status: "ok", Message: "signed in as " + state.User.Username}
}

func printReport(w io.Writer, report *DoctorReport) {
	fmt.Fprintln(w, styles.Title.Render("devquote diagnostics"))
	fmt.Fprintln(w)
	for _, check := range []*DoctorCheck{report.Config, report.Storage, report.Backend, report.Session} {
		printCheck(w, check)
	}
	fmt.Fprintln(w)

	printList(w, "Issues:", report.Issues)
	printList(w, "Warnings:", report.Warnings)
	if len(report.NextSteps) > 0 {
		fmt.Fprintln(w, "Next steps:")
		for i, step := range report.NextSteps {
			fmt.Fprintf(w, "   %d. %s\n", i+1, step)
		}
		fmt.Fprintln(w)
	}

	if report.Healthy {
		fmt.Fprintln(w, styles.Success.Render("✓ devquote is ready to use"))
		return
	}
	fmt.Fprintln(w, styles.Error.Render("✗ devquote has issues that need attention"))
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(w, title)
	for _, item := range items {
		fmt.Fprintf(w, "   • %s\n", item)
	}
	fmt.Fprintln(w)
}

func printCheck(w io.Writer, check *DoctorCheck) {
	if check == nil {
		return
	}
	icon := " "
	switch check.Status {
	case "ok":
		icon = styles.Success.Render("✓")
	case "warning":
		icon = styles.Warning.Render("⚠")
	case "error":
		icon = styles.Error.Render("✗")
	case "skipped":
		icon = styles.Muted.Render("○")
	}

	fmt.Fprintf(w, "  %s %s: %s\n", icon, check.Name, check.Message)
}
