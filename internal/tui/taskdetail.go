package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/prodtrack/internal/controlplane"
	"github.com/fentz26/prodtrack/internal/workflow"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("240"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1"))
)

// TaskDetail is a task with its resolved working file path.
type TaskDetail struct {
	Task      controlplane.TaskView
	Path      string
	PathError string
}

// TaskDetailModel manages the task detail screen
type TaskDetailModel struct {
	client  *Client
	taskID  string
	title   string
	task    *TaskDetail
	width   int
	height  int
	loading bool
	scroll  int
}

// NewTaskDetailModel creates a new task detail model
func NewTaskDetailModel(client *Client) *TaskDetailModel {
	return &TaskDetailModel{
		client: client,
	}
}

// Init initializes the task detail model
func (m *TaskDetailModel) Init() tea.Cmd {
	return nil
}

// SetTask sets the task to display
func (m *TaskDetailModel) SetTask(item TaskItem) {
	m.taskID = item.ID
	m.title = item.Title()
	m.task = nil
	m.scroll = 0
}

// TaskID returns the displayed task.
func (m *TaskDetailModel) TaskID() string { return m.taskID }

// SetSize sets the dimensions
func (m *TaskDetailModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Refresh fetches task details
func (m *TaskDetailModel) Refresh() tea.Cmd {
	m.loading = true
	id := m.taskID
	return func() tea.Msg {
		task, err := m.client.GetTask(id)
		if err != nil {
			return errMsg{err}
		}
		return taskDetailLoadedMsg{task}
	}
}

// Update handles messages
func (m *TaskDetailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case taskDetailLoadedMsg:
		if msg.task.Task.ID != m.taskID {
			return m, nil
		}
		m.loading = false
		m.task = msg.task
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "j", "down":
			m.scroll++
		case "k", "up":
			if m.scroll > 0 {
				m.scroll--
			}
		}
	}
	return m, nil
}

// View renders the task detail
func (m *TaskDetailModel) View() string {
	if m.loading || m.task == nil {
		return "Loading task details..."
	}
	t := m.task.Task

	var b strings.Builder
	b.WriteString(headerStyle.Render(m.title))
	b.WriteString("\n\n")

	b.WriteString(m.renderField("ID", t.ID))
	b.WriteString(m.renderField("Status", formatStatus(t.Status, t.StatusLabel)))
	b.WriteString(m.renderField("Priority", fmt.Sprintf("%d", t.Priority)))
	b.WriteString(m.renderField("Retakes", fmt.Sprintf("%d", t.RetakeCount)))
	if len(t.Assignees) > 0 {
		b.WriteString(m.renderField("Assignees", strings.Join(t.Assignees, ", ")))
	}
	b.WriteString(m.renderDate("Due", t.DueDate))
	b.WriteString(m.renderDate("Started", t.RealStartDate))
	b.WriteString(m.renderDate("Submitted", t.EndDate))
	b.WriteString(m.renderDate("Approved", t.DoneDate))

	b.WriteString(sectionStyle.Render("Working file"))
	b.WriteString("\n")
	if m.task.PathError != "" {
		b.WriteString("  " + errorStyle.Render(truncate(m.task.PathError, 100)) + "\n")
	} else {
		b.WriteString("  " + m.task.Path + "\n")
	}

	b.WriteString(sectionStyle.Render("Next"))
	b.WriteString("\n")
	var ops []string
	for _, op := range workflow.Available(t.Status) {
		if op == workflow.OpAssign || op == workflow.OpUnassign {
			continue
		}
		ops = append(ops, string(op))
	}
	b.WriteString("  " + strings.Join(ops, ", ") + "\n")

	// Apply scroll
	lines := strings.Split(b.String(), "\n")
	if m.scroll >= len(lines) {
		m.scroll = len(lines) - 1
	}
	if m.scroll < 0 {
		m.scroll = 0
	}
	visible := lines[m.scroll:]
	if m.height > 0 && len(visible) > m.height {
		visible = visible[:m.height]
	}

	return strings.Join(visible, "\n")
}

func (m *TaskDetailModel) renderField(label, value string) string {
	return fmt.Sprintf("%s %s\n", labelStyle.Render(label+":"), valueStyle.Render(value))
}

func (m *TaskDetailModel) renderDate(label string, t *time.Time) string {
	if t == nil {
		return ""
	}
	return m.renderField(label, t.Local().Format("2006-01-02 15:04"))
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

type taskDetailLoadedMsg struct {
	task *TaskDetail
}
