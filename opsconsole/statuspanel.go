package opsconsole

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	sleepStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Bold(true)
)

// StatusPanel renders the coordinator's lifecycle state, connected
// adapters, autonomy mode, dispatcher load, and pending-ack count.
type StatusPanel struct {
	width, height int
	snapshot      Snapshot
}

// NewStatusPanel creates a status panel.
func NewStatusPanel() *StatusPanel { return &StatusPanel{} }

func (p *StatusPanel) Update(msg tea.Msg) (Panel, tea.Cmd) {
	if m, ok := msg.(refreshMsg); ok {
		p.snapshot = m.snapshot
	}
	return p, nil
}

func (p *StatusPanel) View() string {
	s := p.snapshot
	var stateRendered string
	switch s.State {
	case "active":
		stateRendered = activeStyle.Render(strings.ToUpper(string(s.State)))
	case "idle":
		stateRendered = idleStyle.Render(strings.ToUpper(string(s.State)))
	default:
		stateRendered = sleepStyle.Render(strings.ToUpper(string(s.State)))
	}

	busy := "idle"
	if s.DispatcherBusy {
		busy = "running a turn"
	}

	lines := []string{
		row("state", stateRendered),
		row("autonomy", valueStyle.Render(string(s.AutonomyMode))),
		row("dispatcher", valueStyle.Render(busy)),
		row("pending acks", valueStyle.Render(fmt.Sprintf("%d", s.PendingAcks))),
		row("connected", valueStyle.Render(strings.Join(s.Connected, ", "))),
		row("last activity", valueStyle.Render(formatAgo(s.LastActivityAt))),
	}
	return lipgloss.NewStyle().Width(p.width).Height(p.height).Render(strings.Join(lines, "\n"))
}

func (p *StatusPanel) SetSize(width, height int) {
	p.width, p.height = width, height
}

func row(label, value string) string {
	return labelStyle.Render(label+":") + " " + value
}

func formatAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return time.Since(t).Round(time.Second).String() + " ago"
}
