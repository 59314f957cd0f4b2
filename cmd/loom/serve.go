package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/njmorgan/loom/internal/assistant"
	"github.com/njmorgan/loom/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Serve exposes the assistant over HTTP:

  POST /api/ask      process a request
  GET  /api/events   WebSocket stream of plan and tool events
  GET  /api/metrics  engine and tool execution counters`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := assistant.Build(cfg)
			if err != nil {
				return err
			}
			defer sys.Close()

			srv := server.New(sys.Assistant, sys.Bus,
				server.WithEngineStats(sys.Coordinator.Stats),
				server.WithToolStats(sys.Executor.Stats),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
			return srv.Start(ctx, addr)
		},
	}
}
