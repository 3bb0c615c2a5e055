package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/devquote/internal/api"
)

var requestersCmd = &cobra.Command{
	Use:     "requesters",
	Aliases: []string{"requester"},
	Short:   "List, show and edit requesters",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var requestersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List requesters one page at a time",
	Args:  cobra.NoArgs,
	RunE:  runRequestersList,
}

var requestersShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one requester",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequestersShow,
}

var requestersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a requester",
	Long: `Create a requester.

Examples:
  devquote requesters create --name "Carla Rossi" --email carla@example.com`,
	Args: cobra.NoArgs,
	RunE: runRequestersCreate,
}

var requestersUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a requester",
	Long: `Change a requester. Fields without a flag keep their current value;
pass an empty value to clear the email or phone.`,
	Args: cobra.ExactArgs(1),
	RunE: runRequestersUpdate,
}

var requestersDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a requester",
	Args:  cobra.ExactArgs(1),
	RunE:  runRequestersDelete,
}

var (
	requesterList  listFlags
	requesterName  string
	requesterEmail string
	requesterPhone string
)

func init() {
	requesterList.register(requestersListCmd)
	requestersListCmd.Flags().StringVar(&requesterName, "name", "", "filter by name")

	for _, c := range []*cobra.Command{requestersCreateCmd, requestersUpdateCmd} {
		c.Flags().StringVar(&requesterName, "name", "", "full name")
		c.Flags().StringVar(&requesterEmail, "email", "", "email address")
		c.Flags().StringVar(&requesterPhone, "phone", "", "phone number")
	}
	_ = requestersCreateCmd.MarkFlagRequired("name")
	registerYes(requestersDeleteCmd)

	requestersCmd.AddCommand(requestersListCmd, requestersShowCmd, requestersCreateCmd, requestersUpdateCmd, requestersDeleteCmd)
	rootCmd.AddCommand(requestersCmd)
}

func runRequestersList(cmd *cobra.Command, _ []string) error {
	opts, err := requesterList.options(map[string]string{"name": requesterName})
	if err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	page, err := a.Requesters.List(cmd.Context(), opts)
	if err != nil {
		return err
	}
	if !textOutput() {
		return format(cmd, page)
	}

	rows := make([][]string, 0, len(page.Content))
	for _, r := range page.Content {
		rows = append(rows, []string{strconv.FormatInt(r.ID, 10), r.Name, r.Email, r.Phone})
	}
	return printPage(cmd, []string{"ID", "NAME", "EMAIL", "PHONE"}, rows, page.Number, page.TotalPages, page.TotalElements)
}

func runRequestersShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	r, err := a.Requesters.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	if !textOutput() {
		return format(cmd, r)
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render(r.Name))
	b.WriteString("\n\n")
	b.WriteString(field("ID", strconv.FormatInt(r.ID, 10)))
	b.WriteString(field("Email", r.Email))
	b.WriteString(field("Phone", r.Phone))
	b.WriteString(field("Created", r.CreatedAt))
	_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
	return err
}

func runRequestersCreate(cmd *cobra.Command, _ []string) error {
	in := api.RequesterInput{Name: requesterName, Email: requesterEmail, Phone: requesterPhone}
	if err := in.Validate(); err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	r, err := a.Requesters.Create(cmd.Context(), in)
	if err != nil {
		return err
	}
	return emit(cmd, r, fmt.Sprintf("Created requester %d %s", r.ID, r.Name))
}

func runRequestersUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	current, err := a.Requesters.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	in := api.RequesterInput{Name: current.Name, Email: current.Email, Phone: current.Phone}
	flags := cmd.Flags()
	if flags.Changed("name") {
		in.Name = requesterName
	}
	if flags.Changed("email") {
		in.Email = requesterEmail
	}
	if flags.Changed("phone") {
		in.Phone = requesterPhone
	}
	r, err := a.Requesters.Update(cmd.Context(), id, in)
	if err != nil {
		return err
	}
	return emit(cmd, r, fmt.Sprintf("Updated requester %d %s", r.ID, r.Name))
}

func runRequestersDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	ok, err := confirmDelete(cmd, fmt.Sprintf("requester %d", id))
	if err != nil || !ok {
		return err
	}
	if err := a.Requesters.Delete(cmd.Context(), id); err != nil {
		return err
	}
	return emit(cmd, map[string]int64{"deleted": id}, fmt.Sprintf("Deleted requester %d", id))
}
