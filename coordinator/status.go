package coordinator

import (
	"time"

	"github.com/linanwx/crawd/autonomy"
	"github.com/linanwx/crawd/config"
)

// Status is the GET /coordinator/status response shape.
type Status struct {
	Enabled        bool                     `json:"enabled"`
	State          State                    `json:"state"`
	LastActivityAt time.Time                `json:"lastActivityAt"`
	Config         config.CoordinatorConfig `json:"config"`
}

// Status snapshots the coordinator's lifecycle state and live config.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Enabled:        c.running,
		State:          c.state,
		LastActivityAt: c.lastActivityAt,
		Config:         c.cfg,
	}
}

// ChatStatus is the GET /chat/status response shape.
type ChatStatus struct {
	Connected []string `json:"connected"`
}

// ChatStatus reports which chat adapters are currently connected.
func (c *Coordinator) ChatStatus() ChatStatus {
	return ChatStatus{Connected: c.Mux.Connected()}
}

// UpdateConfig merges the non-zero fields of partial into the live
// config (§6's POST /coordinator/config) and returns the merged config.
// IdleAfterMs and SleepAfterIdleMs are read on every sleep-check tick,
// so they apply at once; VibePrompt and AutonomyMode are pushed into
// the running engine. Every other field (batch window, startup grace,
// recent-messages cap, queue depth, vibe interval, plan nudge delay,
// ack timeout) is only stored: the components were built with the old
// values and no running timer is rescheduled.
func (c *Coordinator) UpdateConfig(partial config.CoordinatorConfig) config.CoordinatorConfig {
	c.mu.Lock()

	if partial.BatchWindowMs > 0 {
		c.cfg.BatchWindowMs = partial.BatchWindowMs
	}
	if partial.StartupGraceMs > 0 {
		c.cfg.StartupGraceMs = partial.StartupGraceMs
	}
	if partial.IdleAfterMs > 0 {
		c.cfg.IdleAfterMs = partial.IdleAfterMs
	}
	if partial.SleepAfterIdleMs > 0 {
		c.cfg.SleepAfterIdleMs = partial.SleepAfterIdleMs
	}
	if partial.VibeIntervalMs > 0 {
		c.cfg.VibeIntervalMs = partial.VibeIntervalMs
	}
	if partial.PlanNudgeDelayMs > 0 {
		c.cfg.PlanNudgeDelayMs = partial.PlanNudgeDelayMs
	}
	if partial.AckTimeoutMs > 0 {
		c.cfg.AckTimeoutMs = partial.AckTimeoutMs
	}
	if partial.RecentMessagesCap > 0 {
		c.cfg.RecentMessagesCap = partial.RecentMessagesCap
	}
	if partial.DispatchQueueCap > 0 {
		c.cfg.DispatchQueueCap = partial.DispatchQueueCap
	}
	if partial.VibePrompt != "" {
		c.cfg.VibePrompt = partial.VibePrompt
	}
	if partial.AutonomyMode != "" {
		c.cfg.AutonomyMode = partial.AutonomyMode
	}
	cfg := c.cfg
	c.mu.Unlock()

	if partial.VibePrompt != "" {
		c.Engine.SetVibePrompt(partial.VibePrompt)
	}
	if partial.AutonomyMode != "" {
		c.Engine.SetMode(autonomy.Mode(partial.AutonomyMode))
	}
	return cfg
}
