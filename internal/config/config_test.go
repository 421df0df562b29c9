package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	// Run from an empty directory so no stray config file is picked up.
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.CRM.BaseURL != "https://api.hubapi.com" {
		t.Errorf("expected default base URL, got %q", cfg.CRM.BaseURL)
	}
	if cfg.CRM.PageSize != 100 {
		t.Errorf("expected default page size 100, got %d", cfg.CRM.PageSize)
	}
	if cfg.CRM.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", cfg.CRM.Timeout)
	}
	if cfg.Daemon.Interval != 15*time.Minute {
		t.Errorf("expected default interval 15m, got %v", cfg.Daemon.Interval)
	}
	if cfg.Dashboard.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Dashboard.Port)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hubmirror.yaml")

	content := `
crm:
  base_url: https://crm.example.com
  token: secret-token
  page_size: 25
  page_delay: 500ms
db:
  path: /tmp/mirror.db
dashboard:
  port: 9000
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.CRM.BaseURL != "https://crm.example.com" {
		t.Errorf("expected file base URL, got %q", cfg.CRM.BaseURL)
	}
	if cfg.CRM.Token != "secret-token" {
		t.Errorf("expected file token, got %q", cfg.CRM.Token)
	}
	if cfg.CRM.PageSize != 25 {
		t.Errorf("expected page size 25, got %d", cfg.CRM.PageSize)
	}
	if cfg.CRM.PageDelay != 500*time.Millisecond {
		t.Errorf("expected page delay 500ms, got %v", cfg.CRM.PageDelay)
	}
	if cfg.Dashboard.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Dashboard.Port)
	}
	// Unset fields keep their defaults.
	if cfg.Daemon.Interval != 15*time.Minute {
		t.Errorf("expected default interval, got %v", cfg.Daemon.Interval)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HUBMIRROR_CRM_TOKEN", "env-token")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.CRM.Token != "env-token" {
		t.Errorf("expected env token, got %q", cfg.CRM.Token)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		CRM: CRMConfig{BaseURL: "https://api.hubapi.com", Token: "t"},
		DB:  DBConfig{Path: "x.db"},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	cfg.CRM.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing token")
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
