package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/standardbeagle/clovis/internal/config"
	"github.com/standardbeagle/clovis/internal/draw"
	"github.com/standardbeagle/clovis/internal/overlay"
	"github.com/standardbeagle/clovis/internal/process"
	"github.com/standardbeagle/clovis/internal/tools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run as MCP server",
	Long: `Run as an MCP (Model Context Protocol) server over stdio.

Exposes background process management and, when the orchestrator is
running, overlay drawing tools that render on the user's screen.`,
	Run: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) {
	log := newLogger(cmd)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	procs := process.NewManager(log)
	defer procs.Shutdown()

	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    appName,
			Version: appVersion,
		},
		&mcp.ServerOptions{
			HasTools: true,
			Instructions: `On-screen assistant tool server.

Available tools:
- proc: Run and manage background processes (run, list, stop, stop_all)
- draw_text: Draw text on the screen overlay
- draw_box: Draw a bounding box on the screen overlay
- clear_overlay: Remove all overlay annotations

Overlay tools require the orchestrator ('clovis serve') to be running.`,
		},
	)

	tools.RegisterProcessTools(server, procs)

	// Overlay tools ride the running orchestrator's transport. Without
	// it only process tools are served.
	settingsPath, _ := cmd.Flags().GetString("settings")
	if cfg, err := config.Load(settingsPath); err != nil {
		log.Warn().Err(err).Msg("settings unreadable, overlay tools disabled")
	} else if client, err := overlay.Dial(cfg.Host, cfg.Port, log); err != nil {
		log.Warn().Err(err).Msg("orchestrator not reachable, overlay tools disabled")
	} else {
		defer client.Close()
		queue := draw.NewQueue(client,
			func() (int, int) { return cfg.ScreenWidth, cfg.ScreenHeight },
			func() (int, int) { return cfg.ViewportWidth, cfg.ViewportHeight },
			log)
		defer queue.Close()
		tools.RegisterOverlayTools(server, queue)
	}

	log.Info().Str("version", appVersion).Msg("MCP server starting on stdio")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		if ctx.Err() == nil {
			log.Fatal().Err(err).Msg("MCP server error")
		}
	}

	// Give queued overlay actions a moment to flush before the
	// connection drops.
	time.Sleep(100 * time.Millisecond)
	log.Info().Msg("MCP server shutdown complete")
}
