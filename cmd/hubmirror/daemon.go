package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mirrorkit/hubmirror/internal/daemon"
	"github.com/mirrorkit/hubmirror/internal/dashboard"
	"github.com/mirrorkit/hubmirror/internal/logging"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run scheduled syncs with a live dashboard",
	Long: `Run hubmirror as a long-lived process.

The daemon syncs once on startup, then again at every configured
interval. Touching the trigger file forces an immediate run. A
dashboard server exposes run status over HTTP and broadcasts sync
lifecycle events to WebSocket clients.

Endpoints:
  /status   current or last run (JSON)
  /health   liveness and last-sync totals (JSON)
  /ws       sync_started, sync_completed, sync_failed events

Example usage:
  hubmirror daemon
  touch .hubmirror/sync.trigger    # force a sync from another shell`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fail("%v", err)
		}

		logger := logging.NewRotating(cfg.Log.File, "[hubmirror] ")

		db, err := openStore(cfg)
		if err != nil {
			fail("%v", err)
		}
		defer db.Close()

		server := dashboard.NewServer(&dashboard.Config{
			Port:   cfg.Dashboard.Port,
			Logger: logger,
		})

		orch, err := newOrchestrator(cfg, db, dashboard.NewNotifier(server), logger)
		if err != nil {
			fail("%v", err)
		}
		server.SetStatusSource(orch)

		if err := server.Start(); err != nil {
			fail("failed to start dashboard: %v", err)
		}
		defer server.Stop()

		d, err := daemon.New(orch, &daemon.Config{
			Interval:    cfg.Daemon.Interval,
			TriggerFile: cfg.Daemon.TriggerFile,
			Logger:      logger,
		})
		if err != nil {
			fail("failed to create daemon: %v", err)
		}

		fmt.Printf("Dashboard: http://localhost:%d (ws://localhost:%d/ws)\n", cfg.Dashboard.Port, cfg.Dashboard.Port)
		fmt.Printf("Sync interval: %s\n", cfg.Daemon.Interval)
		fmt.Println("Press Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := d.Start(ctx); err != nil {
			fail("daemon error: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
