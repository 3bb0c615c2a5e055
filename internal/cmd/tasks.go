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

var tasksCmd = &cobra.Command{
	Use:     "tasks",
	Aliases: []string{"task"},
	Short:   "List, show and edit tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks one page at a time",
	Long: `List tasks one page at a time. Pages start at 0.

Examples:
  devquote tasks list --priority HIGH
  devquote tasks list --search login --sort createdAt,desc`,
	Args: cobra.NoArgs,
	RunE: runTasksList,
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one task with its subtasks",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksShow,
}

var tasksCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a task",
	Long: `Create a task. Subtasks are given as title=amount and may repeat.

Examples:
  devquote tasks create --code DQ-7 --title "Export quotes" --requester 3 \
    --priority HIGH --subtask api=120.5 --subtask ui=80`,
	Args: cobra.NoArgs,
	RunE: runTasksCreate,
}

var tasksUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a task",
	Long: `Change a task. Fields without a flag keep their current value;
--subtask replaces every subtask.`,
	Args: cobra.ExactArgs(1),
	RunE: runTasksUpdate,
}

var tasksDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete one or more tasks",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTasksDelete,
}

var (
	taskList     listFlags
	taskPriority string
	taskSearch   string
	taskEdit     taskFlags
)

// taskFlags are the fields of tasks create and update.
type taskFlags struct {
	code        string
	title       string
	requester   int64
	priority    string
	taskType    string
	description string
	module      string
	link        string
	subTasks    []string
}

func (f *taskFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.code, "code", "", "task code, e.g. DQ-7")
	cmd.Flags().StringVar(&f.title, "title", "", "task title")
	cmd.Flags().Int64Var(&f.requester, "requester", 0, "requester ID")
	cmd.Flags().StringVar(&f.priority, "priority", "", "LOW, MEDIUM, HIGH or URGENT")
	cmd.Flags().StringVar(&f.taskType, "type", "", "BUG, ENHANCEMENT or NEW_FEATURE")
	cmd.Flags().StringVar(&f.description, "description", "", "task description")
	cmd.Flags().StringVar(&f.module, "module", "", "system module")
	cmd.Flags().StringVar(&f.link, "link", "", "ticket or document link")
	cmd.Flags().StringArrayVar(&f.subTasks, "subtask", nil, "subtask as title=amount; repeatable")
	_ = cmd.RegisterFlagCompletionFunc("priority", fixedCompletions(priorities...))
	_ = cmd.RegisterFlagCompletionFunc("type", fixedCompletions(taskTypes...))
}

// apply copies the flags that were set onto in.
func (f *taskFlags) apply(cmd *cobra.Command, in *api.TaskInput) error {
	flags := cmd.Flags()
	if flags.Changed("code") {
		in.Code = domain.TaskCode(strings.TrimSpace(f.code))
	}
	if flags.Changed("title") {
		in.Title = f.title
	}
	if flags.Changed("requester") {
		in.RequesterID = f.requester
	}
	if flags.Changed("priority") {
		p, err := domain.NewTaskPriority(strings.ToUpper(f.priority))
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, "invalid --priority", err)
		}
		in.Priority = p
	}
	if flags.Changed("type") {
		t := domain.TaskType(strings.ToUpper(f.taskType))
		if err := t.Validate(); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, "invalid --type", err)
		}
		in.TaskType = t
	}
	if flags.Changed("description") {
		in.Description = f.description
	}
	if flags.Changed("module") {
		in.SystemModule = f.module
	}
	if flags.Changed("link") {
		in.Link = f.link
	}
	if flags.Changed("subtask") {
		in.SubTasks = nil
		for _, raw := range f.subTasks {
			st, err := parseSubTask(raw)
			if err != nil {
				return err
			}
			in.SubTasks = append(in.SubTasks, st)
		}
	}
	return in.Validate()
}

func parseSubTask(raw string) (api.SubTask, error) {
	title, amount, ok := strings.Cut(raw, "=")
	if !ok {
		return api.SubTask{}, errors.NewValidationError("subtask", fmt.Sprintf("%q is not title=amount", raw))
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil {
		return api.SubTask{}, errors.NewValidationError("subtask", fmt.Sprintf("amount %q is not a number", amount))
	}
	return api.SubTask{Title: strings.TrimSpace(title), Amount: v}, nil
}

func init() {
	taskList.register(tasksListCmd)
	tasksListCmd.Flags().StringVar(&taskPriority, "priority", "", "filter by priority: LOW, MEDIUM, HIGH, URGENT")
	tasksListCmd.Flags().StringVar(&taskSearch, "search", "", "filter by code or title")
	_ = tasksListCmd.RegisterFlagCompletionFunc("priority", fixedCompletions(priorities...))

	taskEdit.register(tasksCreateCmd)
	taskEdit.register(tasksUpdateCmd)
	for _, name := range []string{"code", "title", "requester"} {
		_ = tasksCreateCmd.MarkFlagRequired(name)
	}
	registerYes(tasksDeleteCmd)

	tasksCmd.AddCommand(tasksListCmd, tasksShowCmd, tasksCreateCmd, tasksUpdateCmd, tasksDeleteCmd)
	rootCmd.AddCommand(tasksCmd)
}

func runTasksList(cmd *cobra.Command, _ []string) error {
	filters := map[string]string{"search": taskSearch}
	if taskPriority != "" {
		p, err := domain.NewTaskPriority(strings.ToUpper(taskPriority))
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, "invalid --priority", err)
		}
		filters["priority"] = p.String()
	}
	opts, err := taskList.options(filters)
	if err != nil {
		return err
	}

	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	page, err := a.Tasks.List(cmd.Context(), opts)
	if err != nil {
		return err
	}
	if !textOutput() {
		return format(cmd, page)
	}

	rows := make([][]string, 0, len(page.Content))
	for _, t := range page.Content {
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			t.Code.String(),
			t.Title,
			t.Priority.String(),
			formatAmount(t.Amount()),
		})
	}
	return printPage(cmd, []string{"ID", "CODE", "TITLE", "PRIORITY", "AMOUNT"}, rows, page.Number, page.TotalPages, page.TotalElements)
}

func runTasksShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	task, err := a.Tasks.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	if !textOutput() {
		return format(cmd, task)
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render(fmt.Sprintf("%s  %s", task.Code, task.Title)))
	b.WriteString("\n\n")
	b.WriteString(field("ID", strconv.FormatInt(task.ID, 10)))
	b.WriteString(field("Priority", task.Priority.String()))
	b.WriteString(field("Type", string(task.TaskType)))
	b.WriteString(field("Requester", task.RequesterName))
	b.WriteString(field("Module", task.SystemModule))
	b.WriteString(field("Link", task.Link))
	b.WriteString(field("Description", task.Description))
	b.WriteString(field("Amount", formatAmount(task.Amount())))

	if len(task.SubTasks) > 0 {
		rows := make([][]string, 0, len(task.SubTasks))
		for _, st := range task.SubTasks {
			rows = append(rows, []string{st.Title, formatAmount(st.Amount)})
		}
		b.WriteString("\n")
		b.WriteString(tui.Table([]string{"SUBTASK", "AMOUNT"}, rows, styles))
		b.WriteString("\n")
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
	return err
}

func runTasksCreate(cmd *cobra.Command, _ []string) error {
	var in api.TaskInput
	if err := taskEdit.apply(cmd, &in); err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	task, err := a.Tasks.Create(cmd.Context(), in)
	if err != nil {
		return err
	}
	return emit(cmd, task, fmt.Sprintf("Created task %d %s", task.ID, task.Code))
}

func runTasksUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	current, err := a.Tasks.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	in := api.TaskInput{
		Code:         current.Code,
		Title:        current.Title,
		Description:  current.Description,
		Priority:     current.Priority,
		TaskType:     current.TaskType,
		RequesterID:  current.RequesterID,
		SystemModule: current.SystemModule,
		ServerOrigin: current.ServerOrigin,
		MeetingLink:  current.MeetingLink,
		Link:         current.Link,
		SubTasks:     current.SubTasks,
	}
	if err := taskEdit.apply(cmd, &in); err != nil {
		return err
	}
	task, err := a.Tasks.Update(cmd.Context(), id, in)
	if err != nil {
		return err
	}
	return emit(cmd, task, fmt.Sprintf("Updated task %d %s", task.ID, task.Code))
}

// runTasksDelete deletes one task directly and several in one bulk call.
func runTasksDelete(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	a, err := sessionApp(cmd)
	if err != nil {
		return err
	}
	what := fmt.Sprintf("task %d", ids[0])
	if len(ids) > 1 {
		what = fmt.Sprintf("%d tasks", len(ids))
	}
	ok, err := confirmDelete(cmd, what)
	if err != nil || !ok {
		return err
	}
	if len(ids) == 1 {
		err = a.Tasks.Delete(cmd.Context(), ids[0])
	} else {
		err = a.Tasks.BulkDelete(cmd.Context(), ids)
	}
	if err != nil {
		return err
	}
	return emit(cmd, map[string][]int64{"deleted": ids}, "Deleted "+what)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
