package coordinator

import "github.com/linanwx/crawd/logger"

// State is one of the three coordinator lifecycle states (§4.3). The
// machine never transitions sleep→idle. The sleep-check tick only moves
// active→idle→sleep; active→sleep happens directly only on Stop or on
// a vibe quiet ack (NO_REPLY).
type State string

const (
	StateSleep  State = "sleep"
	StateIdle   State = "idle"
	StateActive State = "active"
)

const sleepCheckPeriodMs = 10_000

// stateChange is logged whenever the machine moves between states.
type stateChange struct {
	From State
	To   State
}

func (s stateChange) log() {
	logger.Info("coordinator state change", "from", s.From, "to", s.To)
}
