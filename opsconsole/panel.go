// Package opsconsole is a read-only bubbletea operator dashboard: it
// shows coordinator state, plan progress, dispatcher load, and the
// speech gate's pending-ack count, plus a tail of log output. It never
// originates chat traffic or tool calls — that is the overlay's job.
package opsconsole

import tea "github.com/charmbracelet/bubbletea"

// Panel is a composable TUI region with its own state, update logic,
// and view. The root App model orchestrates panels without knowing
// their internals.
type Panel interface {
	Update(tea.Msg) (Panel, tea.Cmd)
	View() string
	SetSize(width, height int)
}

// LogLineMsg carries a single log line from the logger writer.
type LogLineMsg struct{ Line string }

// refreshMsg carries a freshly polled snapshot of coordinator state.
type refreshMsg struct {
	snapshot Snapshot
}
