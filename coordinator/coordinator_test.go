package coordinator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linanwx/crawd/autonomy"
	"github.com/linanwx/crawd/chatsource"
	"github.com/linanwx/crawd/clock"
	"github.com/linanwx/crawd/config"
	"github.com/linanwx/crawd/gateway"
)

// fakeTrigger records every Trigger call and replies with a canned
// response, optionally overridden per test.
type fakeTrigger struct {
	mu      sync.Mutex
	calls   []string
	replyFn func(message string) (gateway.AgentReply, error)
}

func (f *fakeTrigger) Trigger(ctx context.Context, message, idempotencyKey, sessionKey string) (gateway.AgentReply, error) {
	f.mu.Lock()
	f.calls = append(f.calls, message)
	fn := f.replyFn
	f.mu.Unlock()
	if fn != nil {
		return fn(message)
	}
	return gateway.AgentReply{"LIVESTREAM_REPLIED"}, nil
}

func (f *fakeTrigger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTrigger) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func testCoordinator(t *testing.T, cfg config.CoordinatorConfig, trigger gateway.TriggerAgent) (*Coordinator, clock.FakeClock) {
	t.Helper()
	fc := clock.NewFake()
	c := New(fc, cfg, trigger, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	return c, fc
}

func TestCoordinatorStartsAsleep(t *testing.T) {
	c, _ := testCoordinator(t, config.CoordinatorConfig{}, &fakeTrigger{})
	if c.State() != StateSleep {
		t.Fatalf("expected initial state sleep, got %s", c.State())
	}
}

func TestChatActivityWakesFromSleep(t *testing.T) {
	c, _ := testCoordinator(t, config.CoordinatorConfig{BatchWindowMs: 1000}, &fakeTrigger{})

	id, shortID := chatsource.NewID()
	c.IngestChat(chatsource.ChatMessage{ID: id, ShortID: shortID, Platform: chatsource.PlatformPumpfun, Username: "chatter", Body: "hi"})

	if c.State() != StateActive {
		t.Fatalf("expected active after chat activity, got %s", c.State())
	}
}

func TestActiveIdleSleepTickProgression(t *testing.T) {
	trigger := &fakeTrigger{}
	c, fc := testCoordinator(t, config.CoordinatorConfig{
		BatchWindowMs:    1000,
		IdleAfterMs:      1000,
		SleepAfterIdleMs: 1000,
	}, trigger)

	id, shortID := chatsource.NewID()
	c.IngestChat(chatsource.ChatMessage{ID: id, ShortID: shortID, Platform: chatsource.PlatformPumpfun, Username: "u", Body: "hi"})
	if c.State() != StateActive {
		t.Fatalf("expected active, got %s", c.State())
	}

	// Drive the idle/sleep transitions directly rather than through the
	// real ticker, since the fake clock has other timers (the batch
	// window) also waiting on it and this keeps the test deterministic.
	fc.Advance(2 * time.Second)
	c.onSleepCheckTick()
	if c.State() != StateIdle {
		t.Fatalf("expected idle after tick past IdleAfterMs, got %s", c.State())
	}

	fc.Advance(2 * time.Second)
	c.onSleepCheckTick()
	if c.State() != StateSleep {
		t.Fatalf("expected sleep after tick past SleepAfterIdleMs, got %s", c.State())
	}

	waitForCall(t, trigger, "/compact")
}

func TestStopTransitionsToSleepWithoutCompact(t *testing.T) {
	trigger := &fakeTrigger{}
	c, _ := testCoordinator(t, config.CoordinatorConfig{BatchWindowMs: 1000}, trigger)

	id, shortID := chatsource.NewID()
	c.IngestChat(chatsource.ChatMessage{ID: id, ShortID: shortID, Platform: chatsource.PlatformPumpfun, Username: "u", Body: "hi"})
	if c.State() != StateActive {
		t.Fatalf("expected active before stop, got %s", c.State())
	}

	c.Stop()
	if c.State() != StateSleep {
		t.Fatalf("expected sleep after stop, got %s", c.State())
	}

	time.Sleep(20 * time.Millisecond)
	for _, call := range trigger.calls {
		if call == "/compact" {
			t.Fatal("expected Stop to not enqueue a compact turn")
		}
	}
}

func TestIngestChatDispatchesBatchedTurn(t *testing.T) {
	trigger := &fakeTrigger{}
	c, _ := testCoordinator(t, config.CoordinatorConfig{BatchWindowMs: 1000}, trigger)

	id, shortID := chatsource.NewID()
	c.IngestChat(chatsource.ChatMessage{ID: id, ShortID: shortID, Platform: chatsource.PlatformPumpfun, Username: "alice", Body: "hello"})

	waitForCallCount(t, trigger, 1)
	if !strings.Contains(trigger.lastCall(), "alice") {
		t.Fatalf("expected dispatched turn to include the chat content, got %q", trigger.lastCall())
	}
}

func TestMisalignedReplyEnqueuesCorrection(t *testing.T) {
	trigger := &fakeTrigger{
		replyFn: func(message string) (gateway.AgentReply, error) {
			if strings.HasPrefix(message, "[CRAWD:MISALIGNED]") {
				return gateway.AgentReply{"LIVESTREAM_REPLIED"}, nil
			}
			return gateway.AgentReply{"this is a free-form reply, not a protocol ack"}, nil
		},
	}
	c, _ := testCoordinator(t, config.CoordinatorConfig{BatchWindowMs: 1000}, trigger)

	id, shortID := chatsource.NewID()
	c.IngestChat(chatsource.ChatMessage{ID: id, ShortID: shortID, Platform: chatsource.PlatformPumpfun, Username: "bob", Body: "hey"})

	waitForCall(t, trigger, "[CRAWD:MISALIGNED]")
}

func TestInjectMockChatFeedsNormalIngestPath(t *testing.T) {
	trigger := &fakeTrigger{}
	c, _ := testCoordinator(t, config.CoordinatorConfig{BatchWindowMs: 1000}, trigger)

	c.InjectMockChat("mockuser", "mock message")

	waitForCallCount(t, trigger, 1)
	if !strings.Contains(trigger.lastCall(), "mockuser") {
		t.Fatalf("expected mock chat content dispatched, got %q", trigger.lastCall())
	}
}

func TestStatusAndChatStatus(t *testing.T) {
	c, _ := testCoordinator(t, config.CoordinatorConfig{BatchWindowMs: 1000, AutonomyMode: "vibe"}, &fakeTrigger{})

	status := c.Status()
	if !status.Enabled {
		t.Fatal("expected coordinator to report enabled before Stop")
	}
	if status.State != StateSleep {
		t.Fatalf("expected sleep, got %s", status.State)
	}

	c.Stop()
	if c.Status().Enabled {
		t.Fatal("expected enabled=false after Stop")
	}

	chatStatus := c.ChatStatus()
	if len(chatStatus.Connected) != 0 {
		t.Fatalf("expected no adapters registered, got %+v", chatStatus.Connected)
	}
}

func TestUpdateConfigPropagatesVibePromptAndMode(t *testing.T) {
	c, _ := testCoordinator(t, config.CoordinatorConfig{BatchWindowMs: 1000}, &fakeTrigger{})

	merged := c.UpdateConfig(config.CoordinatorConfig{
		VibePrompt:   "new vibe prompt",
		AutonomyMode: "vibe",
	})
	if merged.VibePrompt != "new vibe prompt" {
		t.Fatalf("expected merged config to carry new vibe prompt, got %q", merged.VibePrompt)
	}
	if c.Engine.Mode() != autonomy.ModeVibe {
		t.Fatalf("expected engine mode to switch to vibe, got %s", c.Engine.Mode())
	}
}

func waitForCallCount(t *testing.T, trigger *fakeTrigger, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for trigger.callCount() < want {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d trigger calls, got %d", want, trigger.callCount())
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func waitForCall(t *testing.T, trigger *fakeTrigger, substr string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		trigger.mu.Lock()
		for _, call := range trigger.calls {
			if strings.Contains(call, substr) {
				trigger.mu.Unlock()
				return
			}
		}
		trigger.mu.Unlock()
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for a trigger call containing %q", substr)
		default:
			time.Sleep(time.Millisecond)
		}
	}
}
