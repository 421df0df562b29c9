package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mirrorkit/hubmirror/internal/store"
	"github.com/mirrorkit/hubmirror/internal/ui"
)

var companyCmd = &cobra.Command{
	Use:     "company",
	GroupID: "data",
	Short:   "Inspect mirrored companies",
}

var companyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mirrored companies",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		cfg, err := loadDataConfig()
		if err != nil {
			fail("%v", err)
		}
		db, err := openStore(cfg)
		if err != nil {
			fail("%v", err)
		}
		defer db.Close()

		companies, err := db.ListCompanies(limit, offset)
		if err != nil {
			fail("failed to list companies: %v", err)
		}

		if len(companies) == 0 {
			fmt.Println(ui.RenderDim("No companies mirrored yet. Run 'hubmirror sync'."))
			return
		}

		for _, c := range companies {
			fmt.Printf("%s  %s  %s\n",
				ui.RenderAccent(c.ID),
				c.Name,
				ui.RenderDim(fmt.Sprintf("%s (crm:%s)", c.Domain, c.ExternalID)))
		}
	},
}

var companyGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one company by local id or CRM id",
	Args:  cobra.ExactArgs(1),
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

		company, err := db.GetCompany(args[0])
		if errors.Is(err, store.ErrNotFound) {
			// Fall back to the CRM id.
			company, err = db.FindCompanyByExternalID(args[0])
			if err == nil && company == nil {
				fail("no company with id %s", args[0])
			}
		}
		if err != nil {
			fail("failed to load company: %v", err)
		}

		fmt.Printf("ID:        %s\n", company.ID)
		fmt.Printf("CRM ID:    %s\n", company.ExternalID)
		fmt.Printf("Name:      %s\n", company.Name)
		fmt.Printf("Domain:    %s\n", company.Domain)
		fmt.Printf("Mirrored:  %s\n", company.CreatedAt.Local())
	},
}

var companyRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a company from the mirror",
	Long: `Remove a company row by local id.

Contacts that referenced it keep their other fields; the reference is
cleared. The company reappears on the next sync if it still exists in
the CRM.`,
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

		if err := db.DeleteCompany(args[0]); err != nil {
			fail("failed to delete company: %v", err)
		}
		fmt.Println(ui.RenderPass("✓ Deleted " + args[0]))
	},
}

func init() {
	companyListCmd.Flags().Int("limit", 50, "Maximum rows to show")
	companyListCmd.Flags().Int("offset", 0, "Rows to skip")

	companyCmd.AddCommand(companyListCmd, companyGetCmd, companyRmCmd)
	rootCmd.AddCommand(companyCmd)
}
