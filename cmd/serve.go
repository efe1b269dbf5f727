package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/linanwx/crawd/chatsource"
	"github.com/linanwx/crawd/clock"
	"github.com/linanwx/crawd/config"
	"github.com/linanwx/crawd/coordinator"
	"github.com/linanwx/crawd/gateway"
	"github.com/linanwx/crawd/httpapi"
	"github.com/linanwx/crawd/logger"
	"github.com/linanwx/crawd/opsconsole"
	"github.com/linanwx/crawd/overlay"
	"github.com/linanwx/crawd/tools"
)

var serveConsole bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordinator, overlay bus, and control-plane HTTP API",
	Long: `serve starts crawd as a long-running service: it connects every
configured chat adapter, dials the agent gateway, hosts the overlay
websocket bus and the control-plane HTTP API, and drives the
sleep/idle/active state machine until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveConsole, "console", false, "show the read-only operator console instead of logging to stdout")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	clk := clock.New()
	bus := overlay.NewBus()

	trigger, invokeGateway, err := buildGateway(cfg, clk)
	if err != nil {
		return err
	}

	coord := coordinator.New(clk, cfg.Coordinator, trigger, bus)
	registerChatAdapters(coord, cfg.ChatSource, clk)

	registry := buildToolRegistry(coord)
	if invokeGateway != nil {
		invokeGateway.SetInvokeHandler(registry.Run)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutdown signal received")
		coord.Stop()
		cancel()
	}()

	if invokeGateway != nil {
		go invokeGateway.Run(ctx)
	}

	overlaySrv := overlay.NewServer(bus)
	overlayMux := http.NewServeMux()
	overlayMux.Handle(cfg.Overlay.Path, overlaySrv)
	overlayHTTP := &http.Server{Addr: cfg.Overlay.Addr, Handler: overlayMux}
	go func() {
		logger.Info("overlay bus listening", "addr", cfg.Overlay.Addr, "path", cfg.Overlay.Path)
		if err := overlayHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("overlay server failed", "err", err)
		}
	}()

	apiSrv := httpapi.New(coord)
	apiHTTP := &http.Server{Addr: cfg.HTTP.Addr, Handler: apiSrv}
	go func() {
		logger.Info("control-plane API listening", "addr", cfg.HTTP.Addr)
		if err := apiHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("httpapi server failed", "err", err)
		}
	}()

	if err := coord.Start(ctx); err != nil {
		logger.Warn("one or more chat adapters failed to connect", "err", err)
	}

	logger.Info("crawd coordinator started")

	if serveConsole {
		if err := opsconsole.Run(ctx, coord); err != nil {
			logger.Error("opsconsole exited with error", "err", err)
		}
	} else {
		<-ctx.Done()
	}

	_ = overlayHTTP.Close()
	_ = apiHTTP.Close()
	_ = coord.Mux.DisconnectAll()
	logger.Info("crawd coordinator stopped")
	return nil
}

// buildGateway selects the transport named by cfg.Gateway.Mode. For
// the persistent transport it also returns the concrete gateway so its
// invoke handler and Run loop can be wired up; the one-shot transport
// has neither.
func buildGateway(cfg *config.Config, clk clock.Clock) (gateway.TriggerAgent, *gateway.PersistentGateway, error) {
	gw := cfg.Gateway
	switch gw.Mode {
	case "", "persistent":
		commands := []string{"talk"}
		pg := gateway.NewPersistentGateway(gw.URL, gw.ClientID, gw.AuthToken, commands, clk)
		return pg, pg, nil
	case "oneshot":
		return gateway.NewOneShotGateway(gw.URL, gw.ClientID, gw.AuthToken), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown gateway mode %q", gw.Mode)
	}
}

// registerChatAdapters registers one adapter per platform block that
// has been configured (a zero-valued block is left unregistered).
func registerChatAdapters(coord *coordinator.Coordinator, cs config.ChatSourceConfig, clk clock.Clock) {
	if cs.Pumpfun.Endpoint != "" {
		coord.Mux.RegisterAdapter("pumpfun", chatsource.NewPumpfunAdapter(cs.Pumpfun.Endpoint, cs.Pumpfun.RoomID))
	}
	if cs.Youtube.APIKey != "" && cs.Youtube.VideoID != "" {
		coord.Mux.RegisterAdapter("youtube", chatsource.NewYoutubeAdapter("https://www.googleapis.com/youtube/v3", cs.Youtube.VideoID, cs.Youtube.APIKey, clk))
	}
	if cs.Twitch.Channel != "" {
		coord.Mux.RegisterAdapter("twitch", chatsource.NewTwitchAdapter(cs.Twitch.Channel, cs.Twitch.Username, cs.Twitch.Token))
	}
	if cs.Twitter.BearerToken != "" && cs.Twitter.UserID != "" {
		coord.Mux.RegisterAdapter("twitter", chatsource.NewTwitterAdapter("https://api.twitter.com", cs.Twitter.UserID, cs.Twitter.BearerToken, clk))
	}
}

func buildToolRegistry(coord *coordinator.Coordinator) *tools.Registry {
	registry := tools.NewRegistry()
	registry.Register(tools.NewTalkTool(coord.Gate))
	registry.Register(tools.NewReplyTool(coord.Gate))
	registry.Register(tools.NewSetPlanTool(coord.Engine))
	registry.Register(tools.NewMarkStepDoneTool(coord.Engine))
	registry.Register(tools.NewAbandonPlanTool(coord.Engine))
	registry.Register(tools.NewGetPlanTool(coord.Engine))
	return registry
}
