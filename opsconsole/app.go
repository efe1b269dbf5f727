package opsconsole

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	defaultStatusRatio = 0.2
	defaultPlanRatio   = 0.3
)

var separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

// App is the root bubbletea model: a read-only dashboard with three
// stacked panels (status, plan, logs). It never emits user input back
// into the system.
type App struct {
	statusPanel Panel
	planPanel   Panel
	logPanel    Panel

	width, height int
}

// NewApp creates the root console model.
func NewApp() *App {
	return &App{
		statusPanel: NewStatusPanel(),
		planPanel:   NewPlanPanel(),
		logPanel:    NewLogPanel(),
	}
}

func (m *App) Init() tea.Cmd {
	return nil
}

func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}

	case refreshMsg:
		sp, cmd := m.statusPanel.Update(msg)
		m.statusPanel = sp
		cmds = append(cmds, cmd)
		pp, cmd := m.planPanel.Update(msg)
		m.planPanel = pp
		cmds = append(cmds, cmd)

	case LogLineMsg:
		lp, cmd := m.logPanel.Update(msg)
		m.logPanel = lp
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *App) View() string {
	if m.width == 0 || m.height == 0 {
		return "initializing..."
	}
	sep := separatorStyle.Render(strings.Repeat("─", m.width))
	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusPanel.View(),
		sep,
		m.planPanel.View(),
		sep,
		m.logPanel.View(),
	)
}

func (m *App) recalcLayout() {
	const sepLines = 2

	usable := max(m.height-sepLines, 3)
	statusH := max(int(float64(usable)*defaultStatusRatio), 1)
	planH := max(int(float64(usable)*defaultPlanRatio), 1)
	logH := max(usable-statusH-planH, 1)

	m.statusPanel.SetSize(m.width, statusH)
	m.planPanel.SetSize(m.width, planH)
	m.logPanel.SetSize(m.width, logH)
}
