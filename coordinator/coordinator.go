// Package coordinator wires the chat multiplexer, batcher, dispatcher,
// autonomy engine, and speech gate into the sleep/idle/active state
// machine (§4.3) that is the spine of the whole system. All shared
// state is guarded by one mutex rather than routed through a typed
// intent channel — an explicit-lock realization of the single-writer
// discipline the design calls out as equivalent (§5).
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linanwx/crawd/autonomy"
	"github.com/linanwx/crawd/batch"
	"github.com/linanwx/crawd/chatsource"
	"github.com/linanwx/crawd/clock"
	"github.com/linanwx/crawd/config"
	"github.com/linanwx/crawd/dispatcher"
	"github.com/linanwx/crawd/gateway"
	"github.com/linanwx/crawd/overlay"
	"github.com/linanwx/crawd/speech"
)

const sessionKey = "livestream"

// Coordinator is the core runtime object hosting §4.3-§4.6.
type Coordinator struct {
	clk     clock.Clock
	trigger gateway.TriggerAgent
	bus     *overlay.Bus

	Mux        *chatsource.Multiplexer
	Batcher    *batch.Batcher
	Dispatcher *dispatcher.Dispatcher
	Engine     *autonomy.Engine
	Gate       *speech.Gate

	mu             sync.Mutex
	cfg            config.CoordinatorConfig
	state          State
	running        bool
	lastActivityAt time.Time
	idleSince      time.Time
	startedAt      time.Time
	tickerStop     chan struct{}
}

// New builds a Coordinator and every component it owns. cfg's
// autonomy mode (if any) is applied immediately.
func New(clk clock.Clock, cfg config.CoordinatorConfig, trigger gateway.TriggerAgent, bus *overlay.Bus) *Coordinator {
	c := &Coordinator{
		clk:     clk,
		trigger: trigger,
		bus:     bus,
		cfg:     cfg,
		state:   StateSleep,
		running: true,
	}

	c.Dispatcher = dispatcher.New(cfg.DispatchQueueCap)
	c.Batcher = batch.New(clk, time.Duration(cfg.BatchWindowMs)*time.Millisecond, clk.Now(), cfg.RecentMessagesCap, c.onBatch)
	c.Engine = autonomy.New(clk, c, autonomy.Config{
		VibeIntervalMs:   cfg.VibeIntervalMs,
		PlanNudgeDelayMs: cfg.PlanNudgeDelayMs,
		VibePrompt:       cfg.VibePrompt,
	})
	c.Gate = speech.New(clk, time.Duration(cfg.AckTimeoutMs)*time.Millisecond, c.emitTalk, c.emitReplyTurn, c.touchActivity)
	c.Mux = chatsource.NewMultiplexer(clk, c.IngestChat)

	if bus != nil {
		bus.AckHandler = func(id string) { c.Gate.Ack(id) }
		bus.MockChatHandler = c.InjectMockChat
	}

	switch autonomy.Mode(cfg.AutonomyMode) {
	case autonomy.ModeVibe, autonomy.ModePlan:
		c.Engine.SetMode(autonomy.Mode(cfg.AutonomyMode))
	}

	return c
}

// Start connects every registered chat adapter and starts the
// dispatcher consumer loop. Adapters must be registered on Mux before
// calling Start.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	c.startedAt = c.clk.Now()
	c.mu.Unlock()

	go c.Dispatcher.Run(ctx)
	return c.Mux.ConnectAll(ctx)
}

// Stop transitions to sleep without compacting and stops all timers,
// per the "any -> stop()" row of §4.3.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.running = false
	c.transitionToSleepLocked(false)
}

// IngestChat is the multiplexer's normalized message callback: it
// updates the activity clock per §4.3 and forwards the message to the
// batcher, which owns the throttle/cooldown decision independently.
func (c *Coordinator) IngestChat(msg chatsource.ChatMessage) {
	c.touchActivity()
	if c.bus != nil {
		c.bus.Publish(overlay.ChannelChat, msg)
	}
	c.Batcher.Ingress(msg)
}

// InjectMockChat feeds a synthetic chat message through the normal
// ingress path, used by the crawd:mock-chat overlay frame and the
// POST /mock/chat HTTP fixture.
func (c *Coordinator) InjectMockChat(username, message string) {
	id, shortID := chatsource.NewID()
	c.IngestChat(chatsource.ChatMessage{
		ID:        id,
		ShortID:   shortID,
		Platform:  chatsource.PlatformPumpfun,
		Username:  username,
		Body:      message,
		ArrivalMs: c.clk.Now().UnixMilli(),
	})
}

// onBatch is the batcher's dispatch callback: it formats the batch
// and submits it to the dispatcher asynchronously, classifying the
// reply for misalignment once it returns.
func (c *Coordinator) onBatch(messages []chatsource.ChatMessage, dispatchAt time.Time) {
	text := batch.FormatBatch(messages, dispatchAt)
	c.publishStatus("chatting")

	c.Dispatcher.SubmitAsync(func(ctx context.Context) (gateway.AgentReply, error) {
		defer c.publishStatus(string(c.State()))
		reply, err := c.trigger.Trigger(ctx, text, uuid.NewString(), sessionKey)
		if err != nil {
			return reply, err
		}
		if _, misaligned := gateway.ClassifyReply(reply); len(misaligned) > 0 {
			c.EnqueueMisalignmentCorrection(misaligned)
		}
		return reply, nil
	})
}

// transitionToActiveLocked moves state into active from either sleep
// or idle, starting the sleep-check ticker and waking the autonomy
// engine only on the sleep->active edge. Callers hold mu.
func (c *Coordinator) transitionToActiveLocked() {
	from := c.state
	if from == StateActive {
		return
	}
	c.state = StateActive
	if from == StateSleep {
		c.startSleepCheckTickerLocked()
		c.Engine.NotifyWoke()
	}
	stateChange{From: from, To: c.state}.log()
	c.publishStatusLocked(string(StateActive))
}

// transitionToSleepLocked moves state to sleep, stopping all timers.
// When compact is true (every path except explicit Stop) a /compact
// turn is enqueued before the transition completes.
func (c *Coordinator) transitionToSleepLocked(compact bool) {
	from := c.state
	c.stopSleepCheckTickerLocked()
	c.Engine.NotifySleeping()
	c.state = StateSleep

	if from != StateSleep {
		stateChange{From: from, To: StateSleep}.log()
		c.publishStatusLocked(string(StateSleep))
	}
	if compact && from != StateSleep {
		c.Dispatcher.SubmitAsync(func(ctx context.Context) (gateway.AgentReply, error) {
			return c.trigger.Trigger(ctx, "/compact", uuid.NewString(), sessionKey)
		})
	}
}

// touchActivity is the shared "wake if not active, else refresh"
// operation used by chat ingress and notifySpeech alike.
func (c *Coordinator) touchActivity() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive {
		c.transitionToActiveLocked()
	}
	c.lastActivityAt = c.clk.Now()
}

func (c *Coordinator) startSleepCheckTickerLocked() {
	c.stopSleepCheckTickerLocked()
	ticker := c.clk.NewTicker(sleepCheckPeriodMs * time.Millisecond)
	stop := make(chan struct{})
	c.tickerStop = stop
	go c.watchSleepCheckTicker(ticker, stop)
}

func (c *Coordinator) stopSleepCheckTickerLocked() {
	if c.tickerStop != nil {
		close(c.tickerStop)
		c.tickerStop = nil
	}
}

func (c *Coordinator) watchSleepCheckTicker(ticker clock.Ticker, stop chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			c.onSleepCheckTick()
		}
	}
}

func (c *Coordinator) onSleepCheckTick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.Now()
	switch c.state {
	case StateActive:
		if now.Sub(c.lastActivityAt) >= time.Duration(c.cfg.IdleAfterMs)*time.Millisecond {
			c.state = StateIdle
			c.idleSince = now
			stateChange{From: StateActive, To: StateIdle}.log()
			c.publishStatusLocked(string(StateIdle))
		}
	case StateIdle:
		if now.Sub(c.idleSince) >= time.Duration(c.cfg.SleepAfterIdleMs)*time.Millisecond {
			c.transitionToSleepLocked(true)
		}
	}
}

func (c *Coordinator) publishStatus(status string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(overlay.ChannelStatus, overlay.StatusPayload{Status: status})
}

func (c *Coordinator) publishStatusLocked(status string) {
	c.publishStatus(status)
}

func (c *Coordinator) emitTalk(id, message string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(overlay.ChannelTalk, overlay.TalkPayload{ID: id, Message: message})
}

func (c *Coordinator) emitReplyTurn(id string, turn speech.Turn, botMessage string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(overlay.ChannelReplyTurn, overlay.ReplyTurnPayload{
		ID:         id,
		Chat:       overlay.ChatTurnContext{Username: turn.Username, Message: turn.Message},
		BotMessage: botMessage,
	})
}

// EnqueueMisalignmentCorrection submits a [CRAWD:MISALIGNED] prompt
// quoting the offending replies, per §7's agentMisaligned handling.
func (c *Coordinator) EnqueueMisalignmentCorrection(quotes []string) {
	prompt := "[CRAWD:MISALIGNED] Your last reply did not use talk/reply correctly. You said:\n"
	for _, q := range quotes {
		prompt += fmt.Sprintf("- %q\n", q)
	}
	c.Dispatcher.SubmitAsync(func(ctx context.Context) (gateway.AgentReply, error) {
		return c.trigger.Trigger(ctx, prompt, uuid.NewString(), sessionKey)
	})
}

// PublishMcap forwards an opaque market-cap reading to overlay
// subscribers. The producing collaborator and its transport are
// unspecified; this is the passthrough seam for whatever feeds it.
func (c *Coordinator) PublishMcap(mcap float64) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(overlay.ChannelMcap, overlay.McapPayload{Mcap: mcap})
}

// EmitPlanEvent publishes a crawd:plan event for a plan lifecycle
// change (created/completed/abandoned).
func (c *Coordinator) EmitPlanEvent(kind string, planID, goal string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(overlay.ChannelPlan, overlay.PlanEventPayload{Type: kind, PlanID: planID, Goal: goal})
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
