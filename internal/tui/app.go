// Package tui provides the interactive task board for prodtrack.
package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fentz26/prodtrack/internal/workflow"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	onlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))
)

type mode int

const (
	modeList mode = iota
	modeDetail
)

// workflowKeys binds board keys to workflow operations.
var workflowKeys = map[string]workflow.Operation{
	"s": workflow.OpStart,
	"v": workflow.OpToReview,
	"a": workflow.OpApprove,
	"x": workflow.OpRetake,
}

// App is the main TUI application model.
type App struct {
	client       *Client
	list         *TaskListModel
	detail       *TaskDetailModel
	cmdbar       *CmdBarModel
	mode         mode
	width        int
	height       int
	daemonOnline bool
}

// New creates a new TUI application.
func New(apiAddr string) *App {
	client := NewClient(apiAddr)
	return &App{
		client: client,
		list:   NewTaskListModel(client),
		detail: NewTaskDetailModel(client),
		cmdbar: NewCmdBarModel(),
		mode:   modeList,
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.list.Init(), a.checkDaemon())
}

// selectedID is the task the keys act on in the current mode.
func (a *App) selectedID() string {
	if a.mode == modeDetail {
		return a.detail.TaskID()
	}
	if t := a.list.SelectedTask(); t != nil {
		return t.ID
	}
	return ""
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.list.SetSize(msg.Width, msg.Height-3)
		a.detail.SetSize(msg.Width, msg.Height-3)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		if a.cmdbar.Focused() {
			return a.updatePrompt(msg)
		}
		if a.mode == modeList && a.list.Filtering() {
			_, cmd := a.list.Update(msg)
			return a, cmd
		}
		return a.updateKeys(msg)

	case cmdResultMsg:
		a.cmdbar.Update(msg)
		return a, a.refresh()

	case errMsg:
		a.cmdbar.SetMessage("Error: " + msg.err.Error())
		_, cmd := a.list.Update(msg)
		return a, tea.Batch(cmd, a.checkDaemon())

	case daemonStatusMsg:
		a.daemonOnline = msg.online
		return a, nil

	case taskDetailLoadedMsg:
		_, cmd := a.detail.Update(msg)
		return a, cmd
	}

	if a.cmdbar.Focused() {
		_, cmd := a.cmdbar.Update(msg)
		return a, cmd
	}
	_, cmd := a.list.Update(msg)
	return a, cmd
}

func (a *App) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "enter" {
		id := a.selectedID()
		input := a.cmdbar.Submit()
		if id == "" {
			a.cmdbar.SetMessage("No task selected")
			return a, nil
		}
		return a, a.cmdbar.Assign(a.client, id, input)
	}
	_, cmd := a.cmdbar.Update(msg)
	return a, cmd
}

func (a *App) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	a.cmdbar.SetMessage("")

	if op, ok := workflowKeys[key]; ok {
		id := a.selectedID()
		if id == "" {
			return a, nil
		}
		return a, transition(a.client, id, op)
	}

	switch key {
	case "q":
		if a.mode == modeDetail {
			a.mode = modeList
			return a, nil
		}
		return a, tea.Quit
	case "esc":
		if a.mode == modeDetail {
			a.mode = modeList
			return a, a.list.Refresh()
		}
	case "p":
		if a.selectedID() != "" {
			return a, a.cmdbar.Focus()
		}
		return a, nil
	case "r":
		return a, tea.Batch(a.refresh(), a.checkDaemon())
	case "tab":
		if a.mode == modeList {
			return a, a.list.CycleFilter()
		}
		return a, nil
	case "enter":
		if a.mode == modeList {
			if t := a.list.SelectedTask(); t != nil {
				a.detail.SetTask(*t)
				a.mode = modeDetail
				return a, a.detail.Refresh()
			}
		}
		return a, nil
	}

	if a.mode == modeDetail {
		_, cmd := a.detail.Update(msg)
		return a, cmd
	}
	_, cmd := a.list.Update(msg)
	return a, cmd
}

func (a *App) refresh() tea.Cmd {
	if a.mode == modeDetail {
		return tea.Batch(a.list.Refresh(), a.detail.Refresh())
	}
	return a.list.Refresh()
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	status := onlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		status = offlineStyle.Render("○ DAEMON")
	}
	b.WriteString(titleStyle.Render("prodtrack") + " " + status + "\n")

	if a.mode == modeDetail {
		b.WriteString(a.detail.View())
	} else {
		b.WriteString(a.list.View())
	}
	b.WriteString("\n")
	b.WriteString(a.cmdbar.View())
	return b.String()
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		return daemonStatusMsg{online: a.client.Ping() == nil}
	}
}

type daemonStatusMsg struct {
	online bool
}
