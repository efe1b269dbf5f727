package opsconsole

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/linanwx/crawd/autonomy"
)

var (
	stepDoneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	stepNextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
)

// PlanPanel renders the most recent plan's goal and step checklist,
// whatever its status, or a placeholder when no plan has been set.
type PlanPanel struct {
	width, height int
	plan          *autonomy.Plan
}

// NewPlanPanel creates a plan panel.
func NewPlanPanel() *PlanPanel { return &PlanPanel{} }

func (p *PlanPanel) Update(msg tea.Msg) (Panel, tea.Cmd) {
	if m, ok := msg.(refreshMsg); ok {
		p.plan = m.snapshot.Plan
	}
	return p, nil
}

func (p *PlanPanel) View() string {
	if p.plan == nil {
		return lipgloss.NewStyle().Width(p.width).Height(p.height).
			Foreground(lipgloss.Color("8")).Render("no active plan")
	}

	nextIdx := -1
	for i, s := range p.plan.Steps {
		if s.Status == autonomy.StepPending {
			nextIdx = i
			break
		}
	}

	lines := []string{valueStyle.Render("Goal: " + p.plan.Goal)}
	for i, s := range p.plan.Steps {
		mark := "[ ]"
		line := fmt.Sprintf("%s %d. %s", mark, i, s.Description)
		switch {
		case s.Status == autonomy.StepDone:
			lines = append(lines, stepDoneStyle.Render(fmt.Sprintf("[x] %d. %s", i, s.Description)))
		case i == nextIdx:
			lines = append(lines, stepNextStyle.Render(line+"   <-- next"))
		default:
			lines = append(lines, line)
		}
	}
	return lipgloss.NewStyle().Width(p.width).Height(p.height).Render(strings.Join(lines, "\n"))
}

func (p *PlanPanel) SetSize(width, height int) {
	p.width, p.height = width, height
}
