package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/linanwx/crawd/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize crawd configuration",
	Long:  `Create the crawd configuration directory and a default config.yaml, walking through gateway and chat source setup interactively.`,
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(_ *cobra.Command, _ []string) error {
	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	path := dir + "/config.yaml"
	if _, err := os.Stat(path); err == nil {
		fmt.Println("Config already exists at:", path)
		fmt.Println("To reconfigure, edit the file directly or delete it first.")
		return nil
	}

	var (
		gatewayMode string
		gatewayURL  string
		platform    string
	)

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose the agent gateway transport").
				Description("persistent keeps one connection alive and receives inbound talk invokes; oneshot dials fresh per turn.").
				Options(
					huh.NewOption("persistent", "persistent"),
					huh.NewOption("oneshot", "oneshot"),
				).
				Value(&gatewayMode),
			huh.NewInput().
				Title("Agent gateway URL").
				Description("The websocket URL of the agent gateway.").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("gateway URL is required")
					}
					return nil
				}).
				Value(&gatewayURL),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Primary chat platform").
				Description("Only this platform's block will be filled in; add the others to config.yaml later.").
				Options(
					huh.NewOption("pumpfun", "pumpfun"),
					huh.NewOption("youtube", "youtube"),
					huh.NewOption("twitch", "twitch"),
					huh.NewOption("twitter", "twitter"),
				).
				Value(&platform),
		),
	).Run()
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	cfg.Gateway.Mode = gatewayMode
	cfg.Gateway.URL = gatewayURL

	switch platform {
	case "pumpfun":
		cfg.ChatSource.Pumpfun.Endpoint = "wss://livechat.pump.fun/ws"
	case "youtube":
		cfg.ChatSource.Youtube.VideoID = "REPLACE_ME"
	case "twitch":
		cfg.ChatSource.Twitch.Channel = "REPLACE_ME"
	case "twitter":
		cfg.ChatSource.Twitter.UserID = "REPLACE_ME"
	}

	if err := config.Save(dir, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Println("crawd initialized.")
	fmt.Println("  Config:", path)
	fmt.Println("  Gateway:", gatewayMode, gatewayURL)
	fmt.Println("  Chat source:", platform)
	fmt.Println()
	fmt.Println("Fill in any remaining credentials in config.yaml, then run 'crawd serve'.")
	return nil
}
