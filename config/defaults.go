package config

const (
	defaultBatchWindowMs     = 20000
	defaultStartupGraceMs    = 30000
	defaultIdleAfterMs       = 180000
	defaultSleepAfterIdleMs  = 180000
	defaultVibeIntervalMs    = 30000
	defaultPlanNudgeDelayMs  = 100
	defaultAckTimeoutMs      = 60000
	defaultRecentMessagesCap = 200
	defaultDispatchQueueCap  = 64
	defaultAutonomyMode      = "none"

	defaultGatewayMode = "persistent"
	defaultOverlayAddr = "127.0.0.1:8787"
	defaultOverlayPath = "/overlay"
	defaultHTTPAddr    = "127.0.0.1:8080"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Coordinator: CoordinatorConfig{
			BatchWindowMs:     defaultBatchWindowMs,
			StartupGraceMs:    defaultStartupGraceMs,
			IdleAfterMs:       defaultIdleAfterMs,
			SleepAfterIdleMs:  defaultSleepAfterIdleMs,
			VibeIntervalMs:    defaultVibeIntervalMs,
			PlanNudgeDelayMs:  defaultPlanNudgeDelayMs,
			AckTimeoutMs:      defaultAckTimeoutMs,
			RecentMessagesCap: defaultRecentMessagesCap,
			DispatchQueueCap:  defaultDispatchQueueCap,
			AutonomyMode:      defaultAutonomyMode,
		},
		Gateway: GatewayConfig{
			Mode: defaultGatewayMode,
		},
		Overlay: OverlayConfig{
			Addr: defaultOverlayAddr,
			Path: defaultOverlayPath,
		},
		HTTP: HTTPConfig{
			Addr: defaultHTTPAddr,
		},
		Logging: defaultLoggingConfig(),
	}
}

func defaultLoggingConfig() LoggingConfig {
	enabled := true
	return LoggingConfig{
		Enabled: &enabled,
		Level:   "info",
		Stdout:  true,
		File:    "logs/crawd.log",
	}
}

// applyDefaults fills in any zero-valued field with its default,
// leaving values the caller set untouched.
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.Coordinator.BatchWindowMs <= 0 {
		c.Coordinator.BatchWindowMs = def.Coordinator.BatchWindowMs
	}
	if c.Coordinator.StartupGraceMs <= 0 {
		c.Coordinator.StartupGraceMs = def.Coordinator.StartupGraceMs
	}
	if c.Coordinator.IdleAfterMs <= 0 {
		c.Coordinator.IdleAfterMs = def.Coordinator.IdleAfterMs
	}
	if c.Coordinator.SleepAfterIdleMs <= 0 {
		c.Coordinator.SleepAfterIdleMs = def.Coordinator.SleepAfterIdleMs
	}
	if c.Coordinator.VibeIntervalMs <= 0 {
		c.Coordinator.VibeIntervalMs = def.Coordinator.VibeIntervalMs
	}
	if c.Coordinator.PlanNudgeDelayMs <= 0 {
		c.Coordinator.PlanNudgeDelayMs = def.Coordinator.PlanNudgeDelayMs
	}
	if c.Coordinator.AckTimeoutMs <= 0 {
		c.Coordinator.AckTimeoutMs = def.Coordinator.AckTimeoutMs
	}
	if c.Coordinator.RecentMessagesCap <= 0 {
		c.Coordinator.RecentMessagesCap = def.Coordinator.RecentMessagesCap
	}
	if c.Coordinator.DispatchQueueCap <= 0 {
		c.Coordinator.DispatchQueueCap = def.Coordinator.DispatchQueueCap
	}
	if c.Coordinator.AutonomyMode == "" {
		c.Coordinator.AutonomyMode = def.Coordinator.AutonomyMode
	}

	if c.Gateway.Mode == "" {
		c.Gateway.Mode = def.Gateway.Mode
	}
	if c.Overlay.Addr == "" {
		c.Overlay.Addr = def.Overlay.Addr
	}
	if c.Overlay.Path == "" {
		c.Overlay.Path = def.Overlay.Path
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = def.HTTP.Addr
	}

	logDef := defaultLoggingConfig()
	if c.Logging == (LoggingConfig{}) {
		c.Logging = logDef
		return
	}
	if c.Logging.Level == "" {
		c.Logging.Level = logDef.Level
	}
	if c.Logging.File == "" {
		c.Logging.File = logDef.File
	}
	if !c.Logging.Stdout && c.Logging.File == "" {
		c.Logging.Stdout = logDef.Stdout
	}
	if c.Logging.Enabled == nil {
		c.Logging.Enabled = logDef.Enabled
	}
}
