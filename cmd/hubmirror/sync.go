package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mirrorkit/hubmirror/internal/logging"
	"github.com/mirrorkit/hubmirror/internal/pipeline"
	"github.com/mirrorkit/hubmirror/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Run a single sync against the CRM",
	Long: `Fetch all companies and contacts from the CRM and upsert them into
the local mirror database.

Companies are synced before contacts so contact-to-company references
resolve against rows that already exist. Individual records that fail
to convert or store are reported and skipped; the run continues.

Example usage:
  hubmirror sync
  hubmirror sync --config /etc/hubmirror.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fail("%v", err)
		}

		db, err := openStore(cfg)
		if err != nil {
			fail("%v", err)
		}
		defer db.Close()

		logger := logging.New("[sync] ")
		orch, err := newOrchestrator(cfg, db, nil, logger)
		if err != nil {
			fail("%v", err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("Syncing from %s...\n", cfg.CRM.BaseURL)
		start := time.Now()

		summary, err := orch.Run(ctx)
		if err != nil {
			switch {
			case errors.Is(err, pipeline.ErrSyncInProgress):
				fail("a sync is already running")
			case errors.Is(err, pipeline.ErrUpstreamUnavailable):
				fail("CRM is unreachable, nothing was synced")
			default:
				fail("sync failed: %v", err)
			}
		}

		status := orch.Status()
		fmt.Println(ui.RenderPass(fmt.Sprintf("✓ Sync complete in %s", time.Since(start).Round(time.Millisecond))))
		fmt.Printf("  Companies synced: %s\n", ui.RenderAccent(fmt.Sprintf("%d", summary.CompaniesSynced)))
		fmt.Printf("  Contacts synced:  %s\n", ui.RenderAccent(fmt.Sprintf("%d", summary.ContactsSynced)))
		if status.ContactsSkipped > 0 {
			fmt.Printf("  Contacts skipped: %s\n", ui.RenderWarn(fmt.Sprintf("%d (no email)", status.ContactsSkipped)))
		}
		if status.AssociationsDropped > 0 {
			fmt.Printf("  Associations dropped: %s\n", ui.RenderWarn(fmt.Sprintf("%d (company not found)", status.AssociationsDropped)))
		}
		if len(status.Errors) > 0 {
			fmt.Println(ui.RenderWarn(fmt.Sprintf("  %d records failed:", len(status.Errors))))
			for _, msg := range status.Errors {
				fmt.Printf("    %s\n", ui.RenderDim(msg))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
