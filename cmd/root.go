// Package cmd implements the crawd CLI's subcommands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/linanwx/crawd/config"
)

var configDirFlag string

var rootCmd = &cobra.Command{
	Use:   "crawd",
	Short: "Coordinate an AI agent's livestream presence",
	Long: `crawd drives an AI agent's livestream presence: it ingests chat
from pumpfun/youtube/twitch/twitter, batches and forwards bursts to the
agent gateway, gates its talk/reply tool calls against an overlay ack,
and keeps it occupied between chat bursts with a vibe or plan policy.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "override the config directory (default ~/.crawd)")
	cobra.OnInitialize(func() {
		if configDirFlag != "" {
			config.SetConfigDir(configDirFlag)
		}
	})
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
