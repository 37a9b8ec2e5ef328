package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fentz26/prodtrack/internal/controlplane"
	"github.com/fentz26/prodtrack/internal/models"
	"github.com/fentz26/prodtrack/internal/workflow"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Args:  cobra.NoArgs,
	RunE:  runTaskList,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a task on an entity",
	Args:  cobra.NoArgs,
	RunE:  runTaskCreate,
}

var taskAssignCmd = &cobra.Command{
	Use:   "assign [task-id] [person-id...]",
	Short: "Replace the assignees of a task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, workflow.OpAssign, args[0], args[1:])
	},
}

var taskUnassignCmd = &cobra.Command{
	Use:   "unassign [task-id] [person-id...]",
	Short: "Remove assignees from a task (all when none are given)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransition(cmd, workflow.OpUnassign, args[0], args[1:])
	},
}

var taskPathCmd = &cobra.Command{
	Use:   "path [task-id]",
	Short: "Resolve the folder and file name of a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskPath,
}

var (
	taskProject   string
	taskEntity    string
	taskTaskType  string
	taskStatus    string
	taskAssignee  string
	taskName      string
	taskPriority  int
	taskDue       string
	taskAssignees []string

	pathContext    string
	pathSeparator  string
	pathVersion    int
	pathComment    string
	pathName       string
	pathSoftware   string
	pathOutputType string
)

// statusCommands are the workflow operations exposed as `task <verb> <id>`.
var statusCommands = []struct {
	use   string
	short string
	op    workflow.Operation
}{
	{"start", "Start work on a task", workflow.OpStart},
	{"review", "Send a task for review", workflow.OpToReview},
	{"approve", "Approve a task under review", workflow.OpApprove},
	{"retake", "Send a task back for a retake", workflow.OpRetake},
}

func init() {
	taskCmd.AddCommand(taskListCmd, taskShowCmd, taskCreateCmd, taskAssignCmd, taskUnassignCmd, taskPathCmd)
	for _, sc := range statusCommands {
		op := sc.op
		taskCmd.AddCommand(&cobra.Command{
			Use:   sc.use + " [task-id]",
			Short: sc.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTransition(cmd, op, args[0], nil)
			},
		})
	}

	taskListCmd.Flags().StringVar(&taskProject, "project", "", "Filter by project ID")
	taskListCmd.Flags().StringVar(&taskEntity, "entity", "", "Filter by entity ID")
	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Filter by status (todo, wip, waiting_approval, done, retake)")
	taskListCmd.Flags().StringVar(&taskAssignee, "assignee", "", "Filter by assigned person ID")

	taskCreateCmd.Flags().StringVar(&taskEntity, "entity", "", "Entity ID (required)")
	taskCreateCmd.Flags().StringVar(&taskTaskType, "task-type", "", "Task type ID (required)")
	taskCreateCmd.Flags().StringVar(&taskName, "name", "", "Task name (default \"main\")")
	taskCreateCmd.Flags().IntVar(&taskPriority, "priority", 0, "Priority")
	taskCreateCmd.Flags().StringVar(&taskDue, "due", "", "Due date (YYYY-MM-DD)")
	taskCreateCmd.Flags().StringSliceVar(&taskAssignees, "assign", nil, "Person IDs to assign")
	taskCreateCmd.MarkFlagRequired("entity")
	taskCreateCmd.MarkFlagRequired("task-type")

	taskPathCmd.Flags().StringVar(&pathContext, "context", "working", "Template context (working, output...)")
	taskPathCmd.Flags().StringVar(&pathSeparator, "sep", "", `Path separator, "/" or "\" (default: host separator of the daemon)`)
	taskPathCmd.Flags().IntVar(&pathVersion, "version", 0, "Version appended as _vNNN")
	taskPathCmd.Flags().StringVar(&pathComment, "comment", "", "Comment appended to the file name")
	taskPathCmd.Flags().StringVar(&pathName, "name", "", "Value of the <Name> tag")
	taskPathCmd.Flags().StringVar(&pathSoftware, "software", "", "Value of the <Software> tag")
	taskPathCmd.Flags().StringVar(&pathOutputType, "output-type", "", "Value of the <OutputType> tag")
}

func runTaskList(cmd *cobra.Command, args []string) error {
	var tasks []controlplane.TaskView
	q := query("project_id", taskProject, "entity_id", taskEntity, "status", taskStatus, "assignee", taskAssignee)
	if err := apiGet("/tasks"+q, &tasks); err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No tasks found.")
		return nil
	}

	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			t.ID,
			t.EntityID,
			t.TaskTypeID,
			t.Name,
			t.StatusLabel,
			strconv.Itoa(len(t.Assignees)),
			strconv.Itoa(t.RetakeCount),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"ID", "Entity", "Task type", "Name", "Status", "Assigned", "Retakes"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	))
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	var t controlplane.TaskView
	if err := apiGet("/tasks/"+url.PathEscape(args[0]), &t); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), keyValueTable([][2]string{
		{"ID", t.ID},
		{"Project", t.ProjectID},
		{"Entity", t.EntityID},
		{"Task type", t.TaskTypeID},
		{"Name", t.Name},
		{"Status", fmt.Sprintf("%s (%s)", t.StatusLabel, t.Status)},
		{"Priority", strconv.Itoa(t.Priority)},
		{"Assignees", strings.Join(t.Assignees, ", ")},
		{"Retakes", strconv.Itoa(t.RetakeCount)},
		{"Due", formatTime(t.DueDate)},
		{"Started", formatTime(t.RealStartDate)},
		{"Submitted", formatTime(t.EndDate)},
		{"Approved", formatTime(t.DoneDate)},
		{"Created", t.CreatedAt.Local().Format(time.RFC3339)},
		{"Updated", t.UpdatedAt.Local().Format(time.RFC3339)},
		{"Version", strconv.FormatInt(t.Version, 10)},
	}))
	return nil
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	in := controlplane.TaskInput{
		EntityID:   taskEntity,
		TaskTypeID: taskTaskType,
		Name:       taskName,
		Priority:   taskPriority,
		Assignees:  taskAssignees,
	}
	if taskDue != "" {
		due, err := time.ParseInLocation(time.DateOnly, taskDue, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --due %q: want YYYY-MM-DD", taskDue)
		}
		due = due.UTC()
		in.DueDate = &due
	}

	var t controlplane.TaskView
	if err := apiPost("/tasks", in, &t); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created task: %s (%s)\n", t.ID, t.StatusLabel)
	return nil
}

func runTransition(cmd *cobra.Command, op workflow.Operation, taskID string, personIDs []string) error {
	var body any
	if len(personIDs) > 0 {
		body = map[string][]string{"person_ids": personIDs}
	}
	var res controlplane.TransitionResponse
	if err := apiPost("/tasks/"+url.PathEscape(taskID)+"/"+string(op), body, &res); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(res.Events) == 0 {
		fmt.Fprintf(out, "Task %s unchanged (%s)\n", taskID, res.Task.StatusLabel)
		return nil
	}
	fmt.Fprintf(out, "Task %s: %s\n", taskID, res.Task.StatusLabel)
	for _, ev := range res.Events {
		fmt.Fprintf(out, "  %s%s\n", ev.Name, eventSuffix(ev))
	}
	return nil
}

func eventSuffix(ev models.Event) string {
	switch {
	case ev.PersonID != "":
		return " " + ev.PersonID
	case ev.PreviousStatus != "":
		return fmt.Sprintf(" %s -> %s", ev.PreviousStatus, ev.Status)
	}
	return ""
}

func runTaskPath(cmd *cobra.Command, args []string) error {
	version := ""
	if pathVersion != 0 {
		version = strconv.Itoa(pathVersion)
	}
	q := query(
		"context", pathContext,
		"sep", pathSeparator,
		"version", version,
		"comment", pathComment,
		"name", pathName,
		"software", pathSoftware,
		"output_type", pathOutputType,
	)
	var res controlplane.PathResult
	if err := apiGet("/tasks/"+url.PathEscape(args[0])+"/path"+q, &res); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), keyValueTable([][2]string{
		{"Folder", res.FolderPath},
		{"File name", res.FileName},
		{"Path", res.FilePath},
	}))
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format(time.RFC3339)
}
