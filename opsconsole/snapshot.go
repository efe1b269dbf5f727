package opsconsole

import (
	"time"

	"github.com/linanwx/crawd/autonomy"
	"github.com/linanwx/crawd/coordinator"
)

// Snapshot is a point-in-time read of everything the console displays.
type Snapshot struct {
	State          coordinator.State
	LastActivityAt time.Time
	Connected      []string
	DispatcherBusy bool
	AutonomyMode   autonomy.Mode
	Plan           *autonomy.Plan
	PendingAcks    int
}

// Poll reads a fresh Snapshot from coord. Safe to call concurrently
// with the coordinator's own goroutines; every field it reads already
// has its own lock.
func Poll(coord *coordinator.Coordinator) Snapshot {
	status := coord.Status()
	return Snapshot{
		State:          status.State,
		LastActivityAt: status.LastActivityAt,
		Connected:      coord.ChatStatus().Connected,
		DispatcherBusy: coord.Dispatcher.Busy(),
		AutonomyMode:   coord.Engine.Mode(),
		Plan:           coord.Engine.GetPlan(),
		PendingAcks:    coord.Gate.PendingCount(),
	}
}
