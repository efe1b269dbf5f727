package autonomy

import (
	"sync"
	"testing"
	"time"

	"github.com/linanwx/crawd/clock"
	"github.com/linanwx/crawd/gateway"
)

// fakeHooks is a test double for Hooks recording every call so
// assertions can check which side effects fired.
type fakeHooks struct {
	mu sync.Mutex

	sleeping bool
	busy     bool
	submitFn func(prompt string) (gateway.AgentReply, error)

	submits        []string
	planEvents     [][3]string
	wokeSleeping   int
	enteredActive  int
	refreshed      int
	sleptCompacted int
	misaligned     [][]string
}

func (f *fakeHooks) IsSleeping() bool     { f.mu.Lock(); defer f.mu.Unlock(); return f.sleeping }
func (f *fakeHooks) DispatcherBusy() bool { f.mu.Lock(); defer f.mu.Unlock(); return f.busy }
func (f *fakeHooks) EnterActiveFromIdle() { f.mu.Lock(); defer f.mu.Unlock(); f.enteredActive++ }
func (f *fakeHooks) WakeIfSleeping() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wokeSleeping++
	f.sleeping = false
}
func (f *fakeHooks) RefreshActivity() { f.mu.Lock(); defer f.mu.Unlock(); f.refreshed++ }
func (f *fakeHooks) TransitionToSleep() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sleeping = true
	f.sleptCompacted++
}
func (f *fakeHooks) Submit(prompt string) (gateway.AgentReply, error) {
	f.mu.Lock()
	f.submits = append(f.submits, prompt)
	fn := f.submitFn
	f.mu.Unlock()
	if fn != nil {
		return fn(prompt)
	}
	return gateway.AgentReply{"LIVESTREAM_REPLIED"}, nil
}
func (f *fakeHooks) EnqueueMisalignmentCorrection(quotes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.misaligned = append(f.misaligned, quotes)
}
func (f *fakeHooks) EmitPlanEvent(kind string, planID, goal string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.planEvents = append(f.planEvents, [3]string{kind, planID, goal})
}

func (f *fakeHooks) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

func TestSetPlanStartsActiveAndWakesIfSleeping(t *testing.T) {
	fc := clock.NewFake()
	hooks := &fakeHooks{sleeping: true}
	e := New(fc, hooks, Config{PlanNudgeDelayMs: 50})

	plan := e.SetPlan("ship the thing", []string{"write code", "test it"})
	if plan.Status != PlanActive {
		t.Fatalf("expected active plan, got %s", plan.Status)
	}
	if plan.ID != "plan-1" {
		t.Fatalf("unexpected plan id: %s", plan.ID)
	}
	hooks.mu.Lock()
	woke := hooks.wokeSleeping
	hooks.mu.Unlock()
	if woke != 1 {
		t.Fatalf("expected WakeIfSleeping called once, got %d", woke)
	}

	got := e.GetPlan()
	if got == nil || got.Goal != "ship the thing" || len(got.Steps) != 2 {
		t.Fatalf("unexpected plan snapshot: %+v", got)
	}
}

func TestSetPlanAbandonsPriorActivePlan(t *testing.T) {
	fc := clock.NewFake()
	hooks := &fakeHooks{}
	e := New(fc, hooks, Config{PlanNudgeDelayMs: 50})

	first := e.SetPlan("first goal", []string{"a"})
	e.SetPlan("second goal", []string{"b"})

	hooks.mu.Lock()
	events := append([][3]string(nil), hooks.planEvents...)
	hooks.mu.Unlock()

	foundAbandoned := false
	for _, ev := range events {
		if ev[0] == "abandoned" && ev[1] == first.ID {
			foundAbandoned = true
		}
	}
	if !foundAbandoned {
		t.Fatalf("expected first plan to be abandoned, got events %+v", events)
	}
}

func TestMarkStepDoneCompletesPlan(t *testing.T) {
	fc := clock.NewFake()
	hooks := &fakeHooks{}
	e := New(fc, hooks, Config{PlanNudgeDelayMs: 50})

	e.SetPlan("goal", []string{"step one", "step two"})
	if err := e.MarkStepDone(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := e.GetPlan(); got.Status != PlanActive {
		t.Fatalf("expected still active after one step, got %s", got.Status)
	}
	if err := e.MarkStepDone(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := e.GetPlan(); got.Status != PlanCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}

func TestMarkStepDoneRejectsOutOfRange(t *testing.T) {
	fc := clock.NewFake()
	hooks := &fakeHooks{}
	e := New(fc, hooks, Config{PlanNudgeDelayMs: 50})

	e.SetPlan("goal", []string{"only step"})
	if err := e.MarkStepDone(5); err == nil {
		t.Fatal("expected error for out-of-range step")
	}
}

func TestMarkStepDoneRejectsWithNoPlan(t *testing.T) {
	fc := clock.NewFake()
	hooks := &fakeHooks{}
	e := New(fc, hooks, Config{PlanNudgeDelayMs: 50})

	if err := e.MarkStepDone(0); err == nil {
		t.Fatal("expected error with no active plan")
	}
}

func TestAbandonPlanStopsNudges(t *testing.T) {
	fc := clock.NewFake()
	hooks := &fakeHooks{}
	e := New(fc, hooks, Config{PlanNudgeDelayMs: 50})

	e.SetPlan("goal", []string{"a", "b"})
	if err := e.AbandonPlan(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := e.GetPlan(); got.Status != PlanAbandoned {
		t.Fatalf("expected abandoned, got %s", got.Status)
	}
	if e.planTimer != nil {
		t.Fatal("expected the plan nudge timer cancelled after abandon")
	}
}

func TestSetVibePromptIgnoresEmpty(t *testing.T) {
	fc := clock.NewFake()
	hooks := &fakeHooks{}
	e := New(fc, hooks, Config{VibePrompt: "original"})

	e.SetVibePrompt("")
	if e.vibePrompt != "original" {
		t.Fatalf("expected empty prompt to be ignored, got %q", e.vibePrompt)
	}
	e.SetVibePrompt("replacement")

	if e.vibePrompt != "replacement" {
		t.Fatalf("expected prompt to be replaced, got %q", e.vibePrompt)
	}
}

func TestVibeFiresSubmitAndReschedules(t *testing.T) {
	fc := clock.NewFake()
	hooks := &fakeHooks{}
	e := New(fc, hooks, Config{VibeIntervalMs: 100, VibePrompt: "poke"})

	e.SetMode(ModeVibe)
	fc.BlockUntil(1)
	fc.Advance(100 * time.Millisecond)

	deadline := time.After(2 * time.Second)
	for hooks.submitCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("vibe never submitted a turn")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	hooks.mu.Lock()
	prompt := hooks.submits[0]
	hooks.mu.Unlock()
	if prompt != "poke" {
		t.Fatalf("unexpected vibe prompt: %q", prompt)
	}

	deadline = time.After(2 * time.Second)
	for hooks.submitCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("vibe never rescheduled a second turn")
		default:
			fc.Advance(100 * time.Millisecond)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestVibeQuietAckTransitionsToSleep(t *testing.T) {
	fc := clock.NewFake()
	hooks := &fakeHooks{
		submitFn: func(string) (gateway.AgentReply, error) {
			return gateway.AgentReply{"NO_REPLY"}, nil
		},
	}
	e := New(fc, hooks, Config{VibeIntervalMs: 100, VibePrompt: "poke"})

	e.SetMode(ModeVibe)
	fc.BlockUntil(1)
	fc.Advance(100 * time.Millisecond)

	deadline := time.After(2 * time.Second)
	for hooks.submitCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("vibe never fired")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	time.Sleep(10 * time.Millisecond)

	hooks.mu.Lock()
	slept := hooks.sleptCompacted
	hooks.mu.Unlock()
	if slept != 1 {
		t.Fatalf("expected vibe NO_REPLY to transition to sleep once, got %d", slept)
	}
}

func TestSetModeCancelsPriorTimers(t *testing.T) {
	fc := clock.NewFake()
	hooks := &fakeHooks{}
	e := New(fc, hooks, Config{VibeIntervalMs: 100})

	e.SetMode(ModeVibe)
	e.SetMode(ModeNone)

	if e.vibeTimer != nil {
		t.Fatal("expected vibe timer cancelled when leaving vibe mode")
	}
}
