package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mirrorkit/hubmirror/internal/store"
	"github.com/mirrorkit/hubmirror/internal/ui"
)

var contactCmd = &cobra.Command{
	Use:     "contact",
	GroupID: "data",
	Short:   "Inspect mirrored contacts",
}

var contactListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mirrored contacts",
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

		contacts, err := db.ListContacts(limit, offset)
		if err != nil {
			fail("failed to list contacts: %v", err)
		}

		if len(contacts) == 0 {
			fmt.Println(ui.RenderDim("No contacts mirrored yet. Run 'hubmirror sync'."))
			return
		}

		for _, c := range contacts {
			name := strings.TrimSpace(c.FirstName + " " + c.LastName)
			if name == "" {
				name = ui.RenderDim("(no name)")
			}
			fmt.Printf("%s  %s  %s\n",
				ui.RenderAccent(c.ID),
				name,
				ui.RenderDim(fmt.Sprintf("%s (crm:%s)", c.Email, c.ExternalID)))
		}
	},
}

var contactGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one contact by local id or CRM id",
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

		contact, err := db.GetContact(args[0])
		if errors.Is(err, store.ErrNotFound) {
			contact, err = db.FindContactByExternalID(args[0])
			if err == nil && contact == nil {
				fail("no contact with id %s", args[0])
			}
		}
		if err != nil {
			fail("failed to load contact: %v", err)
		}

		fmt.Printf("ID:        %s\n", contact.ID)
		fmt.Printf("CRM ID:    %s\n", contact.ExternalID)
		fmt.Printf("Name:      %s\n", strings.TrimSpace(contact.FirstName+" "+contact.LastName))
		fmt.Printf("Email:     %s\n", contact.Email)
		fmt.Printf("Mirrored:  %s\n", contact.CreatedAt.Local())

		if contact.CompanyID == "" {
			fmt.Printf("Company:   %s\n", ui.RenderDim("(none)"))
			return
		}
		company, err := db.GetCompany(contact.CompanyID)
		if err != nil {
			fmt.Printf("Company:   %s\n", contact.CompanyID)
			return
		}
		fmt.Printf("Company:   %s (%s)\n", company.Name, company.ID)
	},
}

var contactRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove a contact from the mirror",
	Long: `Remove a contact row by local id.

The contact reappears on the next sync if it still exists in the CRM
and has an email address.`,
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

		if err := db.DeleteContact(args[0]); err != nil {
			fail("failed to delete contact: %v", err)
		}
		fmt.Println(ui.RenderPass("✓ Deleted " + args[0]))
	},
}

func init() {
	contactListCmd.Flags().Int("limit", 50, "Maximum rows to show")
	contactListCmd.Flags().Int("offset", 0, "Rows to skip")

	contactCmd.AddCommand(contactListCmd, contactGetCmd, contactRmCmd)
	rootCmd.AddCommand(contactCmd)
}
