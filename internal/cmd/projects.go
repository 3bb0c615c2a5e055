package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/devquote/internal/api"
	"github.com/felixgeelhaar/devquote/internal/app"
	"github.com/felixgeelhaar/devquote/internal/errors"
	"github.com/felixgeelhaar/devquote/internal/tui"
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"project"},
	Short:   "List, show and edit projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects one page at a time",
	Long: `List projects one page at a time. Pages start at 0.

Examples:
  devquote projects list --size 20
  devquote projects list --sort name,asc --name portal`,
	Args: cobra.NoArgs,
	RunE: runProjectsList,
}

var projectsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsShow,
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project",
	Long: `Create a project.

Examples:
  devquote projects create --name Portal --repository https://git.example.com/portal`,
	Args: cobra.NoArgs,
	RunE: runProjectsCreate,
}

var projectsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a project's name or repository",
	Long: `Change a project's name or repository. Fields without a flag keep
their current value.`,
	Args: cobra.ExactArgs(1),
	RunE: runProjectsUpdate,
}

var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsDelete,
}

// listFlags are the paging flags shared by the list commands.
type listFlags struct {
	page int
	size int
	sort []string
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.page, "page", api.DefaultPage, "page number, starting at 0")
	cmd.Flags().IntVar(&f.size, "size", api.DefaultSize, fmt.Sprintf("page size, at most %d", api.MaxPageSize))
	cmd.Flags().StringArrayVar(&f.sort, "sort", nil, "sort as field[,asc|desc]; repeatable")
}

func (f *listFlags) options(filters map[string]string) (api.ListOptions, error) {
	if f.page < 0 {
		return api.ListOptions{}, errors.NewValidationError("page", "must not be negative")
	}
	opts := api.ListOptions{Page: f.page, Size: f.size, Filters: filters}
	for _, raw := range f.sort {
		s, err := api.ParseSort(raw)
		if err != nil {
			return api.ListOptions{}, errors.Wrap(errors.ErrCodeInvalidInput, "invalid --sort", err)
		}
		opts.Sort = append(opts.Sort, s)
	}
	return opts, nil
}

var (
	projectList listFlags
	projectName string
	projectRepo string
)

func init() {
	projectList.register(projectsListCmd)
	projectsListCmd.Flags().StringVar(&projectName, "name", "", "filter by name")

	for _, c := range []*cobra.Command{projectsCreateCmd, projectsUpdateCmd} {
		c.Flags().StringVar(&projectName, "name", "", "project name")
		c.Flags().StringVar(&projectRepo, "repository", "", "repository URL")
	}
	_ = projectsCreateCmd.MarkFlagRequired("name")
	registerYes(projectsDeleteCmd)

	projectsCmd.AddCommand(projectsListCmd, projectsShowCmd, projectsCreateCmd, projectsUpdateCmd, projectsDeleteCmd)
	rootCmd.AddCommand(projectsCmd)
}

// sessionApp builds the App for commands that only need a stored token.
// Expired tokens are refreshed by the transport.
func sessionApp(cmd *cobra.Command) (*app.App, error) {
	a, err := appFor(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := storedAccessToken(cmd, a); err != nil {
		return nil, err
	}
	return a, nil
}

func runProjectsList(cmd *cobra.Command, _ []string) error {
	opts, err := projectList.options(map[string]string{"name": projectName})
	if err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	page, err := a.Projects.List(cmd.Context(), opts)
	if err != nil {
		return err
	}
	if !textOutput() {
		return format(cmd, page)
	}

	rows := make([][]string, 0, len(page.Content))
	for _, p := range page.Content {
		rows = append(rows, []string{strconv.FormatInt(p.ID, 10), p.Name, p.RepositoryURL})
	}
	return printPage(cmd, []string{"ID", "NAME", "REPOSITORY"}, rows, page.Number, page.TotalPages, page.TotalElements)
}

func runProjectsShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	project, err := a.Projects.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	if !textOutput() {
		return format(cmd, project)
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render(project.Name))
	b.WriteString("\n\n")
	b.WriteString(field("ID", strconv.FormatInt(project.ID, 10)))
	b.WriteString(field("Repository", project.RepositoryURL))
	b.WriteString(field("Created", project.CreatedAt))
	b.WriteString(field("Updated", project.UpdatedAt))
	_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
	return err
}

func runProjectsCreate(cmd *cobra.Command, _ []string) error {
	in := api.ProjectInput{Name: projectName, RepositoryURL: projectRepo}
	if err := in.Validate(); err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	project, err := a.Projects.Create(cmd.Context(), in)
	if err != nil {
		return err
	}
	return emit(cmd, project, fmt.Sprintf("Created project %d %s", project.ID, project.Name))
}

func runProjectsUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	current, err := a.Projects.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	in := api.ProjectInput{Name: current.Name, RepositoryURL: current.RepositoryURL}
	flags := cmd.Flags()
	if flags.Changed("name") {
		in.Name = projectName
	}
	if flags.Changed("repository") {
		in.RepositoryURL = projectRepo
	}
	project, err := a.Projects.Update(cmd.Context(), id, in)
	if err != nil {
		return err
	}
	return emit(cmd, project, fmt.Sprintf("Updated project %d %s", project.ID, project.Name))
}

func runProjectsDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	ok, err := confirmDelete(cmd, fmt.Sprintf("project %d", id))
	if err != nil || !ok {
		return err
	}
	if err := a.Projects.Delete(cmd.Context(), id); err != nil {
		return err
	}
	return emit(cmd, map[string]int64{"deleted": id}, fmt.Sprintf("Deleted project %d", id))
}

func printPage(cmd *cobra.Command, headers []string, rows [][]string, number, totalPages int, total int64) error {
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		_, err := fmt.Fprintln(out, styles.Muted.Render("No results"))
		return err
	}
	if _, err := fmt.Fprintln(out, tui.Table(headers, rows, styles)); err != nil {
		return err
	}
	_, err := fmt.Fprintln(out, styles.Muted.Render(fmt.Sprintf("page %d of %d, %d total", number, totalPages, total)))
	return err
}

func field(label, value string) string {
	if value == "" {
		return ""
	}
	return styles.Label.Render(label) + value + "\n"
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewValidationError("id", fmt.Sprintf("%q is not a positive number", s))
	}
	return id, nil
}

// parseIDs parses every argument as an ID.
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func registerYes(cmd *cobra.Command) {
	cmd.Flags().BoolP("yes", "y", false, "delete without asking")
}

// confirmDelete asks before what is deleted unless --yes is set. Without
// a terminal to ask on, --yes is required. A declined prompt reports
// false with no error.
func confirmDelete(cmd *cobra.Command, what string) (bool, error) {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true, nil
	}
	if !interactive() {
		return false, errors.New(errors.ErrCodeInvalidInput, "refusing to delete "+what+" without confirmation").
			WithSuggestion("Pass --yes to delete without a prompt")
	}
	ok, err := prompter.Confirm(cmd.Context(), fmt.Sprintf("Delete %s?", what), false)
	if err != nil {
		return false, err
	}
	if !ok {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), styles.Muted.Render("Nothing deleted"))
	}
	return ok, err
}
