package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/mirrorkit/hubmirror/internal/config"
	"github.com/mirrorkit/hubmirror/internal/crm"
	"github.com/mirrorkit/hubmirror/internal/pipeline"
	"github.com/mirrorkit/hubmirror/internal/store"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "hubmirror",
	Short: "Mirror CRM companies and contacts into a local SQLite database",
	Long: `hubmirror keeps a local, queryable mirror of an external CRM.

It fetches companies and contacts page by page, normalizes them, and
upserts them into a SQLite database keyed by their CRM ids, so repeated
syncs converge instead of duplicating records.

Run 'hubmirror init' to create a config file, then 'hubmirror sync'
for a one-shot sync or 'hubmirror daemon' for scheduled syncs with a
live dashboard.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "data", Title: "Mirror Data Commands:"},
		&cobra.Group{ID: "setup", Title: "Setup Commands:"},
		&cobra.Group{ID: "maint", Title: "Maintenance Commands:"},
	)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: hubmirror.yaml in . or $HOME/.hubmirror)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads and validates configuration for commands that talk to
// the CRM or the store.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDataConfig loads configuration for commands that only touch the
// local mirror; no CRM credentials are required.
func loadDataConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if cfg.DB.Path == "" {
		return nil, fmt.Errorf("db.path is required")
	}
	return cfg, nil
}

// openStore opens the mirror database and ensures its schema exists.
func openStore(cfg *config.Config) (*store.DB, error) {
	db, err := store.Open(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mirror database: %w", err)
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// newOrchestrator wires the CRM client, store, and pipeline together.
func newOrchestrator(cfg *config.Config, db *store.DB, notifier pipeline.Notifier, logger *log.Logger) (*pipeline.Orchestrator, error) {
	client, err := crm.NewClient(&crm.Config{
		BaseURL:   cfg.CRM.BaseURL,
		Token:     cfg.CRM.Token,
		PageSize:  cfg.CRM.PageSize,
		PageDelay: cfg.CRM.PageDelay,
		Timeout:   cfg.CRM.Timeout,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create CRM client: %w", err)
	}

	return pipeline.New(client, db, &pipeline.Config{
		Notifier: notifier,
		Logger:   logger,
	}), nil
}

// fail prints a styled error and exits.
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
