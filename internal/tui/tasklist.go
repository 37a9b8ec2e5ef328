package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/prodtrack/internal/models"
)

var (
	listTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	statusStyles = map[models.TaskStatus]lipgloss.Style{
		models.TaskStatusTodo:            lipgloss.NewStyle().Foreground(lipgloss.Color("245")), // Grey
		models.TaskStatusWIP:             lipgloss.NewStyle().Foreground(lipgloss.Color("4")),   // Blue
		models.TaskStatusWaitingApproval: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),   // Yellow
		models.TaskStatusDone:            lipgloss.NewStyle().Foreground(lipgloss.Color("2")),   // Green
		models.TaskStatusRetake:          lipgloss.NewStyle().Foreground(lipgloss.Color("1")),   // Red
	}
)

// TaskItem implements list.Item for the task list
type TaskItem struct {
	ID          string
	Entity      string
	TaskType    string
	Name        string
	Status      models.TaskStatus
	StatusLabel string
	Assignees   int
}

func (i TaskItem) FilterValue() string { return i.Entity + " " + i.TaskType }

func (i TaskItem) Title() string {
	if i.Name == "" || i.Name == "main" {
		return fmt.Sprintf("%s / %s", i.Entity, i.TaskType)
	}
	return fmt.Sprintf("%s / %s (%s)", i.Entity, i.TaskType, i.Name)
}

func (i TaskItem) Description() string {
	status := formatStatus(i.Status, i.StatusLabel)
	if i.Assignees > 0 {
		return fmt.Sprintf("%s • %d assigned", status, i.Assignees)
	}
	return status
}

func formatStatus(status models.TaskStatus, label string) string {
	if label == "" {
		label = string(status)
	}
	style, ok := statusStyles[status]
	if !ok {
		return label
	}
	return style.Render("● " + label)
}

// filters cycles through "all" then every canonical status.
var filters = append([]models.TaskStatus{""}, models.TaskStatuses...)

func filterLabel(f models.TaskStatus) string {
	if f == "" {
		return "all"
	}
	return string(f)
}

// TaskListModel manages the task list screen
type TaskListModel struct {
	client      *Client
	list        list.Model
	tasks       []TaskItem
	filterIndex int
	width       int
	height      int
	loading     bool
}

// NewTaskListModel creates a new task list model
func NewTaskListModel(client *Client) *TaskListModel {
	delegate := list.NewDefaultDelegate()
	l := list.New([]list.Item{}, delegate, 80, 20)
	l.Title = "Tasks [all]"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = listTitleStyle

	return &TaskListModel{
		client: client,
		list:   l,
	}
}

// Init initializes the task list
func (m *TaskListModel) Init() tea.Cmd {
	return m.Refresh()
}

// SetSize sets the list dimensions
func (m *TaskListModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.list.SetSize(w, h)
}

// Filter returns the active status filter, empty for all.
func (m *TaskListModel) Filter() models.TaskStatus {
	return filters[m.filterIndex]
}

// SelectedTask returns the currently selected task
func (m *TaskListModel) SelectedTask() *TaskItem {
	if item := m.list.SelectedItem(); item != nil {
		task := item.(TaskItem)
		return &task
	}
	return nil
}

// Filtering reports whether the list is capturing keys for its fuzzy filter.
func (m *TaskListModel) Filtering() bool {
	return m.list.FilterState() == list.Filtering
}

// CycleFilter cycles through status filters
func (m *TaskListModel) CycleFilter() tea.Cmd {
	m.filterIndex = (m.filterIndex + 1) % len(filters)
	m.list.Title = fmt.Sprintf("Tasks [%s]", filterLabel(m.Filter()))
	return m.Refresh()
}

// Refresh fetches tasks from the API
func (m *TaskListModel) Refresh() tea.Cmd {
	m.loading = true
	status := m.Filter()
	return func() tea.Msg {
		tasks, err := m.client.ListTasks(status)
		if err != nil {
			return errMsg{err}
		}
		return tasksLoadedMsg{tasks}
	}
}

// Update handles messages
func (m *TaskListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tasksLoadedMsg:
		m.loading = false
		m.tasks = msg.tasks
		items := make([]list.Item, len(m.tasks))
		for i, t := range m.tasks {
			items[i] = t
		}
		return m, m.list.SetItems(items)

	case errMsg:
		m.loading = false
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the task list
func (m *TaskListModel) View() string {
	if m.loading && len(m.tasks) == 0 {
		return "Loading tasks..."
	}
	return m.list.View()
}

type tasksLoadedMsg struct {
	tasks []TaskItem
}

type errMsg struct {
	err error
}
