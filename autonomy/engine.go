package autonomy

import (
	"fmt"
	"sync"
	"time"

	"github.com/linanwx/crawd/clock"
	"github.com/linanwx/crawd/gateway"
	"github.com/linanwx/crawd/logger"
)

// Engine owns the active autonomy policy plus its timers. Its state
// is touched from three independent goroutines in practice — the
// coordinator's tick loop, the engine's own timer goroutines, and
// whichever goroutine delivers an inbound setPlan/markStepDone tool
// call — so every access to mode/plan/timers goes through mu. Hooks is
// the engine's only way back into coordinator-owned state.
type Engine struct {
	clk              clock.Clock
	hooks            Hooks
	vibeIntervalMs   time.Duration
	planNudgeDelayMs time.Duration
	vibePrompt       string

	mu        sync.Mutex
	mode      Mode
	vibeTimer clock.Timer
	planTimer clock.Timer

	plan        *Plan
	planCounter int
}

const defaultVibePrompt = "[CRAWD:VIBE] You are on a livestream … Respond with LIVESTREAM_REPLIED after using a tool, or NO_REPLY"

// Config holds the engine's tunables, all in milliseconds.
type Config struct {
	VibeIntervalMs   int
	PlanNudgeDelayMs int
	VibePrompt       string
}

// New builds an Engine in ModeNone.
func New(clk clock.Clock, hooks Hooks, cfg Config) *Engine {
	vibeMs := cfg.VibeIntervalMs
	if vibeMs <= 0 {
		vibeMs = DefaultVibeIntervalMs
	}
	nudgeMs := cfg.PlanNudgeDelayMs
	if nudgeMs <= 0 {
		nudgeMs = DefaultPlanNudgeDelayMs
	}
	prompt := cfg.VibePrompt
	if prompt == "" {
		prompt = defaultVibePrompt
	}
	return &Engine{
		clk:              clk,
		hooks:            hooks,
		vibeIntervalMs:   time.Duration(vibeMs) * time.Millisecond,
		planNudgeDelayMs: time.Duration(nudgeMs) * time.Millisecond,
		vibePrompt:       prompt,
		mode:             ModeNone,
	}
}

// SetVibePrompt replaces the prompt used for the next vibe fire.
func (e *Engine) SetVibePrompt(prompt string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if prompt != "" {
		e.vibePrompt = prompt
	}
}

// Mode returns the active policy.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SetMode switches the active policy, cancelling all timers of the
// outgoing policy before the new one starts (invariant 7, §8).
func (e *Engine) SetMode(mode Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelVibeTimerLocked()
	e.cancelPlanTimerLocked()
	e.mode = mode
	if mode == ModeVibe && !e.hooks.IsSleeping() {
		e.startVibeTimerLocked()
	}
}

// NotifyWoke is called by the coordinator whenever state transitions
// from sleep to active, so the vibe timer can resume. Only the vibe
// timer restarts here: a plan nudge cancelled by NotifySleeping is not
// rescheduled, and the next one comes from SetPlan or MarkStepDone.
func (e *Engine) NotifyWoke() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModeVibe {
		e.startVibeTimerLocked()
	}
}

// NotifySleeping is called by the coordinator whenever state
// transitions into sleep, cancelling every autonomy timer.
func (e *Engine) NotifySleeping() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelVibeTimerLocked()
	e.cancelPlanTimerLocked()
}

func (e *Engine) startVibeTimerLocked() {
	e.cancelVibeTimerLocked()
	e.vibeTimer = e.clk.NewTimer(e.vibeIntervalMs)
	go e.watchVibeTimer(e.vibeTimer)
}

func (e *Engine) cancelVibeTimerLocked() {
	if e.vibeTimer != nil {
		e.vibeTimer.Stop()
		e.vibeTimer = nil
	}
}

func (e *Engine) watchVibeTimer(t clock.Timer) {
	<-t.Chan()
	e.fireVibe()
}

func (e *Engine) fireVibe() {
	e.mu.Lock()
	if e.mode != ModeVibe {
		e.mu.Unlock()
		return
	}
	if e.hooks.IsSleeping() {
		logger.Debug("vibe skipped", "reason", "sleeping")
		e.mu.Unlock()
		return
	}
	if e.hooks.DispatcherBusy() {
		logger.Debug("vibe skipped", "reason", "busy")
		e.startVibeTimerLocked()
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.hooks.EnterActiveFromIdle()
	e.hooks.RefreshActivity()

	reply, err := e.hooks.Submit(e.vibePrompt)

	if err == nil {
		if hasQuietAck, _ := gateway.ClassifyReply(reply); hasQuietAck {
			// TransitionToSleep calls back into NotifySleeping, which
			// takes mu, so it runs with mu released.
			e.hooks.TransitionToSleep()
			return
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		logger.Error("vibe turn failed", "err", err)
		e.startVibeTimerLocked()
		return
	}

	_, misaligned := gateway.ClassifyReply(reply)
	if len(misaligned) > 0 {
		e.hooks.EnqueueMisalignmentCorrection(misaligned)
	}
	e.startVibeTimerLocked()
}

// SetPlan abandons any currently active plan, starts a new one, wakes
// the coordinator if sleeping, and schedules the first nudge.
func (e *Engine) SetPlan(goal string, steps []string) *Plan {
	e.mu.Lock()

	if e.plan != nil && e.plan.Status == PlanActive {
		e.plan.Status = PlanAbandoned
		e.hooks.EmitPlanEvent("abandoned", e.plan.ID, e.plan.Goal)
	}

	e.planCounter++
	stepRecords := make([]Step, len(steps))
	for i, s := range steps {
		stepRecords[i] = Step{Description: s, Status: StepPending}
	}
	e.plan = &Plan{
		ID:     fmt.Sprintf("plan-%d", e.planCounter),
		Goal:   goal,
		Steps:  stepRecords,
		Status: PlanActive,
	}
	e.hooks.EmitPlanEvent("created", e.plan.ID, e.plan.Goal)
	plan := e.plan
	e.mu.Unlock()

	// WakeIfSleeping calls back into NotifyWoke, which takes mu, so it
	// runs with mu released.
	e.hooks.WakeIfSleeping()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.plan == plan {
		e.scheduleNudgeLocked()
	}
	return plan
}

// MarkStepDone marks step i done; rejects if there is no active plan
// or i is out of range.
func (e *Engine) MarkStepDone(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.plan == nil || e.plan.Status != PlanActive {
		return fmt.Errorf("planNotFound")
	}
	if i < 0 || i >= len(e.plan.Steps) {
		return fmt.Errorf("stepOutOfRange")
	}

	e.plan.Steps[i].Status = StepDone
	if e.plan.isComplete() {
		e.plan.Status = PlanCompleted
		e.cancelPlanTimerLocked()
		e.hooks.EmitPlanEvent("completed", e.plan.ID, e.plan.Goal)
		return nil
	}
	e.scheduleNudgeLocked()
	return nil
}

// AbandonPlan transitions the active plan to abandoned and stops
// further nudges.
func (e *Engine) AbandonPlan() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.plan == nil || e.plan.Status != PlanActive {
		return fmt.Errorf("planNotFound")
	}
	e.plan.Status = PlanAbandoned
	e.cancelPlanTimerLocked()
	e.hooks.EmitPlanEvent("abandoned", e.plan.ID, e.plan.Goal)
	return nil
}

// GetPlan returns a read-only snapshot of the current plan, or nil.
func (e *Engine) GetPlan() *Plan {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.plan == nil {
		return nil
	}
	snapshot := *e.plan
	snapshot.Steps = append([]Step(nil), e.plan.Steps...)
	return &snapshot
}

func (e *Engine) scheduleNudgeLocked() {
	e.cancelPlanTimerLocked()
	e.planTimer = e.clk.NewTimer(e.planNudgeDelayMs)
	go e.watchPlanTimer(e.planTimer)
}

func (e *Engine) cancelPlanTimerLocked() {
	if e.planTimer != nil {
		e.planTimer.Stop()
		e.planTimer = nil
	}
}

func (e *Engine) watchPlanTimer(t clock.Timer) {
	<-t.Chan()
	e.firePlanNudge()
}

func (e *Engine) firePlanNudge() {
	e.mu.Lock()
	if e.plan == nil || e.plan.Status != PlanActive {
		logger.Debug("plan nudge skipped", "reason", "no active plan")
		e.mu.Unlock()
		return
	}
	if e.hooks.IsSleeping() {
		logger.Debug("plan nudge skipped", "reason", "sleeping")
		e.mu.Unlock()
		return
	}
	if e.hooks.DispatcherBusy() {
		logger.Debug("plan nudge skipped", "reason", "busy")
		e.mu.Unlock()
		return
	}
	prompt := e.plan.FormatNudge()
	e.mu.Unlock()

	reply, err := e.hooks.Submit(prompt)
	if err != nil {
		logger.Error("plan nudge failed", "err", err)
		return
	}
	if _, misaligned := gateway.ClassifyReply(reply); len(misaligned) > 0 {
		e.hooks.EnqueueMisalignmentCorrection(misaligned)
	}
}
