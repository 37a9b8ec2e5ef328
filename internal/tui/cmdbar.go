package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/prodtrack/internal/workflow"
)

var (
	cmdBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)
)

const keyHelp = "s start • v review • a approve • x retake • p assign • tab filter • r refresh • enter details • q quit"

// CmdBarModel is the bottom line: key help, results, or the assign prompt.
type CmdBarModel struct {
	input   textinput.Model
	focused bool
	message string
}

// NewCmdBarModel creates a new command bar
func NewCmdBarModel() *CmdBarModel {
	ti := textinput.New()
	ti.Placeholder = "emails, comma separated (empty unassigns everyone)"
	ti.CharLimit = 256
	return &CmdBarModel{
		input: ti,
	}
}

// Init initializes the command bar
func (m *CmdBarModel) Init() tea.Cmd {
	return nil
}

// Focused reports whether the prompt owns the keyboard.
func (m *CmdBarModel) Focused() bool { return m.focused }

// Focus opens the assign prompt
func (m *CmdBarModel) Focus() tea.Cmd {
	m.focused = true
	m.message = ""
	return m.input.Focus()
}

// Blur closes the prompt
func (m *CmdBarModel) Blur() {
	m.focused = false
	m.input.Blur()
	m.input.SetValue("")
}

// Submit returns the current input and blurs
func (m *CmdBarModel) Submit() string {
	val := m.input.Value()
	m.Blur()
	return val
}

// SetMessage shows a one-line result until the next key.
func (m *CmdBarModel) SetMessage(msg string) { m.message = msg }

// Update handles messages
func (m *CmdBarModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "esc" {
			m.Blur()
			return m, nil
		}
	case cmdResultMsg:
		m.message = msg.message
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command bar
func (m *CmdBarModel) View() string {
	if m.focused {
		prompt := promptStyle.Render("assign: ")
		return cmdBarStyle.Render(prompt + m.input.View())
	}
	if m.message != "" {
		return cmdBarStyle.Render(m.message)
	}
	return cmdBarStyle.Render(keyHelp)
}

// Assign replaces the assignees of taskID with the persons behind input.
func (m *CmdBarModel) Assign(client *Client, taskID, input string) tea.Cmd {
	var emails []string
	for _, part := range strings.Split(input, ",") {
		if e := strings.TrimSpace(part); e != "" {
			emails = append(emails, e)
		}
	}

	return func() tea.Msg {
		if len(emails) == 0 {
			if _, err := client.Transition(taskID, workflow.OpUnassign); err != nil {
				return cmdResultMsg{fmt.Sprintf("Error: %v", err)}
			}
			return cmdResultMsg{"Unassigned everyone"}
		}
		ids, err := client.PersonIDs(emails)
		if err != nil {
			return cmdResultMsg{fmt.Sprintf("Error: %v", err)}
		}
		if _, err := client.Transition(taskID, workflow.OpAssign, ids...); err != nil {
			return cmdResultMsg{fmt.Sprintf("Error: %v", err)}
		}
		return cmdResultMsg{fmt.Sprintf("Assigned %d person(s)", len(ids))}
	}
}

// transition runs op on taskID and reports the new status.
func transition(client *Client, taskID string, op workflow.Operation) tea.Cmd {
	return func() tea.Msg {
		label, err := client.Transition(taskID, op)
		if err != nil {
			return cmdResultMsg{fmt.Sprintf("Error: %v", err)}
		}
		return cmdResultMsg{fmt.Sprintf("%s → %s", op, label)}
	}
}

type cmdResultMsg struct {
	message string
}
