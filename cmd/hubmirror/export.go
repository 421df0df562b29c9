package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mirrorkit/hubmirror/internal/export"
	"github.com/mirrorkit/hubmirror/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export [file]",
	GroupID: "data",
	Short:   "Export the mirror to JSONL",
	Long: `Write every mirrored company and contact as JSONL.

Companies come first so the file can be imported into an empty mirror
in one pass. With no file argument the export goes to stdout.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadDataConfig()
		if err != nil {
			fail("%v", err)
		}
		db, err := openStore(cfg)
		if err != nil {
			fail("%v", err)
		}
		defer db.Close()

		ctx := context.Background()
		if len(args) == 0 {
			if _, err := export.ToJSONL(ctx, db, os.Stdout); err != nil {
				fail("export failed: %v", err)
			}
			return
		}

		result, err := export.ToFile(ctx, db, args[0])
		if err != nil {
			fail("export failed: %v", err)
		}
		fmt.Println(ui.RenderPass(fmt.Sprintf("✓ Exported %d companies and %d contacts to %s",
			result.Companies, result.Contacts, args[0])))
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "data",
	Short:   "Import a JSONL export into the mirror",
	Long: `Load companies and contacts from a JSONL export.

Records are upserted by CRM id, so importing over an existing mirror
converges the same way a sync does. Bad lines are reported and
skipped.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadDataConfig()
		if err != nil {
			fail("%v", err)
		}
		db, err := openStore(cfg)
		if err != nil {
			fail("%v", err)
		}
		defer db.Close()

		result, err := export.FromFile(context.Background(), db, args[0])
		if err != nil {
			fail("import failed: %v", err)
		}

		fmt.Println(ui.RenderPass(fmt.Sprintf("✓ Imported %d companies and %d contacts",
			result.Companies, result.Contacts)))
		if len(result.Errors) > 0 {
			fmt.Println(ui.RenderWarn(fmt.Sprintf("%d lines skipped:", len(result.Errors))))
			for _, msg := range result.Errors {
				fmt.Printf("  %s\n", ui.RenderDim(msg))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)
}
