package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/mirrorkit/hubmirror/internal/pipeline"
	"github.com/mirrorkit/hubmirror/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show sync status and mirror totals",
	Long: `Show the state of the last sync run and the mirror's row counts.

Run status lives in the daemon process, so this command queries the
dashboard's /status endpoint. When no daemon is running it falls back
to the local database counts.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadDataConfig()
		if err != nil {
			fail("%v", err)
		}

		if status, ok := fetchDaemonStatus(cfg.Dashboard.Port); ok {
			printRunStatus(status)
		} else {
			fmt.Println(ui.RenderDim("Daemon not running, showing local mirror counts only."))
		}

		db, err := openStore(cfg)
		if err != nil {
			fail("%v", err)
		}
		defer db.Close()

		companies, err := db.CountCompanies()
		if err != nil {
			fail("failed to count companies: %v", err)
		}
		contacts, err := db.CountContacts()
		if err != nil {
			fail("failed to count contacts: %v", err)
		}

		fmt.Printf("Mirror: %s companies, %s contacts (%s)\n",
			ui.RenderAccent(fmt.Sprintf("%d", companies)),
			ui.RenderAccent(fmt.Sprintf("%d", contacts)),
			ui.RenderDim(cfg.DB.Path))
	},
}

// fetchDaemonStatus queries a local daemon's dashboard. A connection error
// just means no daemon is running.
func fetchDaemonStatus(port int) (*pipeline.Status, bool) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/status", port))
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	var status pipeline.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, false
	}
	return &status, true
}

func printRunStatus(status *pipeline.Status) {
	var state string
	switch status.State {
	case pipeline.StateRunning:
		state = ui.RenderAccent("running")
	case pipeline.StateCompleted:
		state = ui.RenderPass("completed")
	case pipeline.StateFailed:
		state = ui.RenderFail("failed")
	default:
		state = ui.RenderDim(string(status.State))
	}
	fmt.Printf("Last sync: %s\n", state)

	if status.StartedAt != nil {
		fmt.Printf("  Started:   %s\n", status.StartedAt.Local().Format(time.RFC1123))
	}
	if status.CompletedAt != nil {
		fmt.Printf("  Finished:  %s\n", status.CompletedAt.Local().Format(time.RFC1123))
	}
	fmt.Printf("  Companies synced: %d\n", status.CompaniesSynced)
	fmt.Printf("  Contacts synced:  %d\n", status.ContactsSynced)
	if status.ContactsSkipped > 0 {
		fmt.Printf("  Contacts skipped: %d\n", status.ContactsSkipped)
	}
	if status.AssociationsDropped > 0 {
		fmt.Printf("  Associations dropped: %d\n", status.AssociationsDropped)
	}
	for _, msg := range status.Errors {
		fmt.Printf("  %s\n", ui.RenderWarn(msg))
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
