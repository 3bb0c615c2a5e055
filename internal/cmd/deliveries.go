package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/devquote/internal/api"
	"github.com/felixgeelhaar/devquote/internal/domain"
	"github.com/felixgeelhaar/devquote/internal/errors"
	"github.com/felixgeelhaar/devquote/internal/tui"
)

var deliveriesCmd = &cobra.Command{
	Use:     "deliveries",
	Aliases: []string{"delivery"},
	Short:   "Track task deliveries across projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var deliveriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deliveries grouped by task",
	Long: `List deliveries grouped by task, one page at a time. DONE counts the
items that are delivered, approved or in production.

Examples:
  devquote deliveries list --status HOMOLOGATION
  devquote deliveries list --sort createdAt,desc -o json`,
	Args: cobra.NoArgs,
	RunE: runDeliveriesList,
}

var deliveriesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one delivery with its items",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeliveriesShow,
}

var deliveriesGroupCmd = &cobra.Command{
	Use:   "group <task-id>",
	Short: "Show the delivery of a task with its counters",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeliveriesGroup,
}

var deliveriesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count delivery items per status",
	Args:  cobra.NoArgs,
	RunE:  runDeliveriesStats,
}

var deliveriesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the delivery of a task",
	Long: `Create the delivery of a task with one item per project.

Examples:
  devquote deliveries create --task 4 --project 1 --project 2 --status DEVELOPMENT`,
	Args: cobra.NoArgs,
	RunE: runDeliveriesCreate,
}

var deliveriesDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete one or more deliveries",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDeliveriesDelete,
}

var (
	deliveryList     listFlags
	deliveryStatus   string
	deliveryTask     int64
	deliveryProjects []int64
)

func init() {
	deliveryList.register(deliveriesListCmd)
	for _, c := range []*cobra.Command{deliveriesListCmd, deliveriesCreateCmd} {
		c.Flags().StringVar(&deliveryStatus, "status", "", strings.Join(deliveryStatuses, ", "))
		_ = c.RegisterFlagCompletionFunc("status", fixedCompletions(deliveryStatuses...))
	}
	deliveriesCreateCmd.Flags().Int64Var(&deliveryTask, "task", 0, "task ID")
	deliveriesCreateCmd.Flags().Int64SliceVar(&deliveryProjects, "project", nil, "project ID; repeatable")
	_ = deliveriesCreateCmd.MarkFlagRequired("task")
	registerYes(deliveriesDeleteCmd)

	deliveriesCmd.AddCommand(deliveriesListCmd, deliveriesShowCmd, deliveriesGroupCmd, deliveriesStatsCmd, deliveriesCreateCmd, deliveriesDeleteCmd)
	rootCmd.AddCommand(deliveriesCmd)
}

// statusFlag parses --status. Empty stays empty.
func statusFlag() (domain.DeliveryStatus, error) {
	if deliveryStatus == "" {
		return "", nil
	}
	s, err := domain.NewDeliveryStatus(deliveryStatus)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, "invalid --status", err)
	}
	return s, nil
}

func runDeliveriesList(cmd *cobra.Command, _ []string) error {
	status, err := statusFlag()
	if err != nil {
		return err
	}
	opts, err := deliveryList.options(map[string]string{"status": status.String()})
	if err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	page, err := a.Deliveries.ListGrouped(cmd.Context(), opts)
	if err != nil {
		return err
	}
	if !textOutput() {
		return format(cmd, page)
	}

	rows := make([][]string, 0, len(page.Content))
	for _, g := range page.Content {
		rows = append(rows, []string{
			strconv.FormatInt(g.DeliveryID, 10),
			g.TaskCode.String(),
			g.TaskName,
			g.DeliveryStatus.String(),
			fmt.Sprintf("%d/%d", g.CompletedDeliveries, g.TotalDeliveries),
		})
	}
	return printPage(cmd, []string{"ID", "TASK", "TITLE", "STATUS", "DONE"}, rows, page.Number, page.TotalPages, page.TotalElements)
}

func runDeliveriesShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	d, err := a.Deliveries.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	if !textOutput() {
		return format(cmd, d)
	}

	var b strings.Builder
	title := fmt.Sprintf("Delivery %d", d.ID)
	if d.TaskCode != "" {
		title += "  " + d.TaskCode.String()
	}
	b.WriteString(styles.Title.Render(title))
	b.WriteString("\n\n")
	b.WriteString(field("Task", d.TaskName))
	b.WriteString(field("Status", d.Status.String()))
	b.WriteString(field("Created", d.CreatedAt))
	b.WriteString(field("Updated", d.UpdatedAt))
	writeItems(&b, d.Items)
	_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
	return err
}

func runDeliveriesGroup(cmd *cobra.Command, args []string) error {
	taskID, err := parseID(args[0])
	if err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	g, err := a.Deliveries.Group(cmd.Context(), taskID)
	if err != nil {
		return err
	}
	if !textOutput() {
		return format(cmd, g)
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render(fmt.Sprintf("%s  %s", g.TaskCode, g.TaskName)))
	b.WriteString("\n\n")
	b.WriteString(field("Status", g.DeliveryStatus.String()))
	b.WriteString(field("Done", fmt.Sprintf("%d of %d", g.CompletedDeliveries, g.TotalDeliveries)))
	b.WriteString("\n")
	b.WriteString(countsTable(g.StatusCounts))
	b.WriteString("\n")
	for _, d := range g.Deliveries {
		writeItems(&b, d.Items)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
	return err
}

func runDeliveriesStats(cmd *cobra.Command, _ []string) error {
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	counts, err := a.Deliveries.Statistics(cmd.Context())
	if err != nil {
		return err
	}
	if !textOutput() {
		return format(cmd, counts)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), countsTable(*counts))
	return err
}

func runDeliveriesCreate(cmd *cobra.Command, _ []string) error {
	status, err := statusFlag()
	if err != nil {
		return err
	}
	in := api.DeliveryInput{TaskID: deliveryTask, Status: status}
	for _, projectID := range deliveryProjects {
		in.Items = append(in.Items, api.DeliveryItemInput{ProjectID: projectID, Status: status})
	}
	if err := in.Validate(); err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	d, err := a.Deliveries.Create(cmd.Context(), in)
	if err != nil {
		return err
	}
	return emit(cmd, d, fmt.Sprintf("Created delivery %d for task %d with %d items", d.ID, d.TaskID, len(d.Items)))
}

func runDeliveriesDelete(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	what := fmt.Sprintf("delivery %d", ids[0])
	if len(ids) > 1 {
		what = fmt.Sprintf("%d deliveries", len(ids))
	}
	ok, err := confirmDelete(cmd, what)
	if err != nil || !ok {
		return err
	}
	if len(ids) == 1 {
		err = a.Deliveries.Delete(cmd.Context(), ids[0])
	} else {
		err = a.Deliveries.BulkDelete(cmd.Context(), ids)
	}
	if err != nil {
		return err
	}
	return emit(cmd, map[string][]int64{"deleted": ids}, "Deleted "+what)
}

func writeItems(b *strings.Builder, items []api.DeliveryItem) {
	if len(items) == 0 {
		return
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		project := item.ProjectName
		if project == "" {
			project = strconv.FormatInt(item.ProjectID, 10)
		}
		rows = append(rows, []string{strconv.FormatInt(item.ID, 10), project, item.Status.String(), item.Branch, item.PullRequest})
	}
	b.WriteString("\n")
	b.WriteString(tui.Table([]string{"ITEM", "PROJECT", "STATUS", "BRANCH", "PULL REQUEST"}, rows, styles))
	b.WriteString("\n")
}

func countsTable(c api.DeliveryStatusCount) string {
	rows := make([][]string, 0, len(domain.DeliveryStatuses)+1)
	for _, s := range domain.DeliveryStatuses {
		rows = append(rows, []string{s.String(), strconv.Itoa(c.Of(s))})
	}
	rows = append(rows, []string{"TOTAL", strconv.Itoa(c.Total())})
	return tui.Table([]string{"STATUS", "COUNT"}, rows, styles)
}
