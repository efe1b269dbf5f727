package coordinator

import (
	"context"

	"github.com/google/uuid"

	"github.com/linanwx/crawd/gateway"
)

// The methods below satisfy autonomy.Hooks, giving the engine a narrow
// port back into coordinator state instead of a back-reference.

// IsSleeping reports whether the coordinator is currently asleep.
func (c *Coordinator) IsSleeping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateSleep
}

// DispatcherBusy reports whether a turn is already in flight, so vibe
// and plan-nudge firing can defer to it rather than queue behind it.
func (c *Coordinator) DispatcherBusy() bool {
	return c.Dispatcher.Busy()
}

// EnterActiveFromIdle moves idle->active without touching sleep, used
// by vibe firing which only ever runs while awake.
func (c *Coordinator) EnterActiveFromIdle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateIdle {
		c.transitionToActiveLocked()
	}
}

// WakeIfSleeping moves sleep->active, used when a new plan is set
// while the coordinator is asleep.
func (c *Coordinator) WakeIfSleeping() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSleep {
		c.transitionToActiveLocked()
	}
}

// RefreshActivity stamps lastActivityAt without forcing a transition.
func (c *Coordinator) RefreshActivity() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivityAt = c.clk.Now()
}

// TransitionToSleep is the engine's vibe-mode NO_REPLY path into
// sleep; it compacts, same as the idle->sleep tick (S7).
func (c *Coordinator) TransitionToSleep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitionToSleepLocked(true)
}

// Submit runs prompt through the dispatcher synchronously, blocking
// the caller (the engine's own timer goroutine) until the turn
// resolves.
func (c *Coordinator) Submit(prompt string) (gateway.AgentReply, error) {
	return c.Dispatcher.Submit(context.Background(), func(ctx context.Context) (gateway.AgentReply, error) {
		return c.trigger.Trigger(ctx, prompt, uuid.NewString(), sessionKey)
	})
}
