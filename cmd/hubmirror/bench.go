package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mirrorkit/hubmirror/internal/loadtest"
	"github.com/mirrorkit/hubmirror/internal/ui"
)

var benchCmd = &cobra.Command{
	Use:     "bench",
	GroupID: "maint",
	Short:   "Load-test the mirror database",
	Long: `Populate a throwaway mirror database and hammer it with concurrent
readers, reporting query latency percentiles.

Useful for sizing: the dashboard and CLI read the mirror while the
daemon writes to it, so read latency under concurrency is what an
operator actually experiences.

Example usage:
  hubmirror bench
  hubmirror bench --companies 1000 --readers 100`,
	Run: func(cmd *cobra.Command, args []string) {
		companies, _ := cmd.Flags().GetInt("companies")
		contacts, _ := cmd.Flags().GetInt("contacts-per-company")
		readers, _ := cmd.Flags().GetInt("readers")
		queries, _ := cmd.Flags().GetInt("queries")

		tmpDir, err := os.MkdirTemp("", "hubmirror-bench-")
		if err != nil {
			fail("failed to create temp dir: %v", err)
		}
		defer os.RemoveAll(tmpDir)

		fmt.Printf("Populating %d companies x %d contacts...\n", companies, contacts)
		tm, err := loadtest.CreateTestMirror(filepath.Join(tmpDir, "bench.db"), companies, contacts)
		if err != nil {
			fail("failed to populate mirror: %v", err)
		}
		defer tm.Close()

		fmt.Printf("Running %d readers x %d queries...\n", readers, queries)
		stats, err := tm.RunConcurrentReaders(readers, queries)
		if err != nil {
			fail("load test failed: %v", err)
		}

		stats.PrintStats()
		if stats.Errors == 0 {
			fmt.Println(ui.RenderPass("✓ No query errors"))
		} else {
			fmt.Println(ui.RenderFail(fmt.Sprintf("✗ %d query errors", stats.Errors)))
			os.Exit(1)
		}
	},
}

func init() {
	benchCmd.Flags().Int("companies", 200, "Companies to seed")
	benchCmd.Flags().Int("contacts-per-company", 5, "Contacts per company")
	benchCmd.Flags().Int("readers", 50, "Concurrent readers")
	benchCmd.Flags().Int("queries", 20, "Queries per reader")

	rootCmd.AddCommand(benchCmd)
}
