package httpapi

import "github.com/linanwx/crawd/config"

// configPartial mirrors config.CoordinatorConfig for the POST
// /coordinator/config body: every field is optional; a field with a
// non-zero value overrides the live value, and zero or empty values
// are ignored.
type configPartial struct {
	BatchWindowMs     int    `json:"batchWindowMs"`
	StartupGraceMs    int    `json:"startupGraceMs"`
	IdleAfterMs       int    `json:"idleAfterMs"`
	SleepAfterIdleMs  int    `json:"sleepAfterIdleMs"`
	VibeIntervalMs    int    `json:"vibeIntervalMs"`
	PlanNudgeDelayMs  int    `json:"planNudgeDelayMs"`
	AckTimeoutMs      int    `json:"ackTimeoutMs"`
	RecentMessagesCap int    `json:"recentMessagesCap"`
	DispatchQueueCap  int    `json:"dispatchQueueCap"`
	VibePrompt        string `json:"vibePrompt"`
	AutonomyMode      string `json:"autonomyMode"`
}

func (p configPartial) toConfig() config.CoordinatorConfig {
	return config.CoordinatorConfig{
		BatchWindowMs:     p.BatchWindowMs,
		StartupGraceMs:    p.StartupGraceMs,
		IdleAfterMs:       p.IdleAfterMs,
		SleepAfterIdleMs:  p.SleepAfterIdleMs,
		VibeIntervalMs:    p.VibeIntervalMs,
		PlanNudgeDelayMs:  p.PlanNudgeDelayMs,
		AckTimeoutMs:      p.AckTimeoutMs,
		RecentMessagesCap: p.RecentMessagesCap,
		DispatchQueueCap:  p.DispatchQueueCap,
		VibePrompt:        p.VibePrompt,
		AutonomyMode:      p.AutonomyMode,
	}
}
