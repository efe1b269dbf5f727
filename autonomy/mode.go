// Package autonomy implements the C5 autonomy engine: a pluggable
// policy in {vibe, plan, none} that keeps the agent occupied between
// chat bursts.
package autonomy

// Mode selects which autonomy policy is active.
type Mode string

const (
	ModeVibe Mode = "vibe"
	ModePlan Mode = "plan"
	ModeNone Mode = "none"
)

const (
	DefaultVibeIntervalMs   = 30_000
	DefaultPlanNudgeDelayMs = 100
)
