// crawd coordinates an AI agent's livestream presence.
package main

import (
	"fmt"
	"os"

	"github.com/linanwx/crawd/cmd"
	"github.com/linanwx/crawd/config"
	"github.com/linanwx/crawd/logger"
)

func main() {
	dir, err := config.ConfigDir()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config dir error:", err)
		os.Exit(1)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	loggerCfg := logger.Config{Level: "info", Stdout: true}
	if cfg.Logging.Enabled != nil {
		loggerCfg.Enabled = *cfg.Logging.Enabled
	} else {
		loggerCfg.Enabled = true
	}
	if cfg.Logging.Level != "" {
		loggerCfg.Level = cfg.Logging.Level
	}
	loggerCfg.Stdout = cfg.Logging.Stdout
	loggerCfg.File = cfg.Logging.File

	if err := logger.Init(loggerCfg, dir); err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
	}
	cmd.Execute()
}
