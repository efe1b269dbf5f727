package opsconsole

import (
	"bytes"
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linanwx/crawd/coordinator"
	"github.com/linanwx/crawd/logger"
)

const pollInterval = 1 * time.Second

// Run starts the console, redirecting logger output into its log
// panel, and blocks until ctx is cancelled or the operator quits.
func Run(ctx context.Context, coord *coordinator.Coordinator) error {
	app := NewApp()
	program := tea.NewProgram(app, tea.WithAltScreen())

	lw := &logWriter{program: program}
	logger.Intercept(lw)
	defer logger.Restore()

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				program.Quit()
				return
			case <-ticker.C:
				program.Send(refreshMsg{snapshot: Poll(coord)})
			}
		}
	}()

	_, err := program.Run()
	<-done
	return err
}

// logWriter implements io.Writer and forwards each write to the
// console's log panel as a LogLineMsg.
type logWriter struct {
	program *tea.Program
}

func (w *logWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(p, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		w.program.Send(LogLineMsg{Line: string(line)})
	}
	return len(p), nil
}
