package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mirrorkit/hubmirror/internal/config"
	"github.com/mirrorkit/hubmirror/internal/ui"
)

// fileConfig mirrors config.Config with string durations so the written
// YAML stays human-editable ("15m" instead of nanoseconds).
type fileConfig struct {
	CRM struct {
		BaseURL   string `yaml:"base_url"`
		Token     string `yaml:"token"`
		PageSize  int    `yaml:"page_size"`
		PageDelay string `yaml:"page_delay"`
		Timeout   string `yaml:"timeout"`
	} `yaml:"crm"`
	DB struct {
		Path string `yaml:"path"`
	} `yaml:"db"`
	Daemon struct {
		Interval    string `yaml:"interval"`
		TriggerFile string `yaml:"trigger_file"`
	} `yaml:"daemon"`
	Dashboard struct {
		Port int `yaml:"port"`
	} `yaml:"dashboard"`
	Log struct {
		File string `yaml:"file"`
	} `yaml:"log"`
}

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "setup",
	Short:   "Create a hubmirror config file interactively",
	Long: `Create a ` + config.DefaultConfigFile + ` in the current directory.

Prompts for the CRM connection settings and writes everything else
with defaults that can be edited later. The token can also be left
empty here and supplied via HUBMIRROR_CRM_TOKEN instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := os.Stat(config.DefaultConfigFile); err == nil {
			fail("%s already exists, edit it directly or remove it first", config.DefaultConfigFile)
		}

		baseURL := "https://api.hubapi.com"
		token := ""
		dbPath := ".hubmirror/mirror.db"

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("CRM base URL").
					Description("Root of the CRM API").
					Value(&baseURL),
				huh.NewInput().
					Title("API token").
					Description("Bearer token, leave empty to use HUBMIRROR_CRM_TOKEN").
					EchoMode(huh.EchoModePassword).
					Value(&token),
				huh.NewInput().
					Title("Database path").
					Description("Where the mirror SQLite file lives").
					Value(&dbPath),
			),
		)

		if err := form.Run(); err != nil {
			fail("init cancelled: %v", err)
		}

		var fc fileConfig
		fc.CRM.BaseURL = baseURL
		fc.CRM.Token = token
		fc.CRM.PageSize = 100
		fc.CRM.PageDelay = "200ms"
		fc.CRM.Timeout = "30s"
		fc.DB.Path = dbPath
		fc.Daemon.Interval = "15m"
		fc.Daemon.TriggerFile = ".hubmirror/sync.trigger"
		fc.Dashboard.Port = 8080
		fc.Log.File = ""

		data, err := yaml.Marshal(&fc)
		if err != nil {
			fail("failed to render config: %v", err)
		}

		if err := os.WriteFile(config.DefaultConfigFile, data, 0600); err != nil {
			fail("failed to write %s: %v", config.DefaultConfigFile, err)
		}

		fmt.Println(ui.RenderPass("✓ Wrote " + config.DefaultConfigFile))
		fmt.Println("Run 'hubmirror sync' to populate the mirror.")
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
