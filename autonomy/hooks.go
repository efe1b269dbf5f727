package autonomy

import "github.com/linanwx/crawd/gateway"

// Hooks is the engine's one-way port back into the coordinator: every
// side effect that needs the coordinator's state (sleeping?, busy?,
// wake, submit a turn) goes through here instead of a back-reference,
// avoiding the structural cycle the source's class hierarchy had.
type Hooks interface {
	IsSleeping() bool
	DispatcherBusy() bool
	EnterActiveFromIdle()
	WakeIfSleeping()
	RefreshActivity()
	TransitionToSleep()
	Submit(prompt string) (gateway.AgentReply, error)
	EnqueueMisalignmentCorrection(quotes []string)
	EmitPlanEvent(kind string, planID, goal string)
}
