// Package config loads hubmirror configuration from file, environment and
// defaults.
//
// Precedence follows viper's usual order: explicit file values override
// environment variables override built-in defaults. Environment variables
// use the HUBMIRROR_ prefix with underscores, e.g. HUBMIRROR_CRM_TOKEN.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full hubmirror configuration.
type Config struct {
	CRM       CRMConfig       `mapstructure:"crm" yaml:"crm"`
	DB        DBConfig        `mapstructure:"db" yaml:"db"`
	Daemon    DaemonConfig    `mapstructure:"daemon" yaml:"daemon"`
	Dashboard DashboardConfig `mapstructure:"dashboard" yaml:"dashboard"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// CRMConfig configures the external CRM client.
type CRMConfig struct {
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	Token     string        `mapstructure:"token" yaml:"token"`
	PageSize  int           `mapstructure:"page_size" yaml:"page_size"`
	PageDelay time.Duration `mapstructure:"page_delay" yaml:"page_delay"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DBConfig configures the local store.
type DBConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// DaemonConfig configures the background sync scheduler.
type DaemonConfig struct {
	Interval    time.Duration `mapstructure:"interval" yaml:"interval"`
	TriggerFile string        `mapstructure:"trigger_file" yaml:"trigger_file"`
}

// DashboardConfig configures the WebSocket dashboard server.
type DashboardConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
}

// LogConfig configures log output.
type LogConfig struct {
	// File is the rotating log file path used in daemon mode.
	// Empty means stderr only.
	File string `mapstructure:"file" yaml:"file"`
}

// DefaultConfigFile is the config file name searched for in the working
// directory and $HOME/.hubmirror.
const DefaultConfigFile = "hubmirror.yaml"

// Load reads configuration. path may name an explicit config file; when
// empty, the default locations are searched and a missing file is fine
// (env and defaults still apply).
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("crm.base_url", "https://api.hubapi.com")
	// An empty default registers the key so AutomaticEnv can fill it.
	v.SetDefault("crm.token", "")
	v.SetDefault("crm.page_size", 100)
	v.SetDefault("crm.page_delay", 200*time.Millisecond)
	v.SetDefault("crm.timeout", 30*time.Second)
	v.SetDefault("db.path", ".hubmirror/mirror.db")
	v.SetDefault("daemon.interval", 15*time.Minute)
	v.SetDefault("daemon.trigger_file", ".hubmirror/sync.trigger")
	v.SetDefault("dashboard.port", 8080)
	v.SetDefault("log.file", "")

	v.SetEnvPrefix("HUBMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultConfigFile, ".yaml"))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.hubmirror")

		if err := v.ReadInConfig(); err != nil {
			// A missing config file is fine; anything else is not.
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the fields a sync run cannot do without.
func (c *Config) Validate() error {
	if c.CRM.Token == "" {
		return fmt.Errorf("crm.token is required (set HUBMIRROR_CRM_TOKEN or run 'hubmirror init')")
	}
	if c.CRM.BaseURL == "" {
		return fmt.Errorf("crm.base_url is required")
	}
	if c.DB.Path == "" {
		return fmt.Errorf("db.path is required")
	}
	return nil
}
