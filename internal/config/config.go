// Package config provides YAML-based configuration loading for podlens.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level podlens configuration, loaded from podlens.yaml.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Jibble    JibbleConfig    `yaml:"jibble"`
	Sync      SyncConfig      `yaml:"sync"`
	HTTP      HTTPConfig      `yaml:"http"`
	Notify    NotifyConfig    `yaml:"notify"`
}

// StoreConfig holds connection settings for the MySQL reporting store.
type StoreConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// WarehouseConfig holds connection settings for the analytical warehouse.
type WarehouseConfig struct {
	DSN            string        `yaml:"dsn"`
	QueryTimeout   time.Duration `yaml:"query_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// JibbleConfig holds OAuth2 client credentials for the time-tracking API.
// Optional; when ClientID is empty the jibble source is disabled and time
// entries come from the warehouse only.
type JibbleConfig struct {
	BaseURL      string `yaml:"base_url"`
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// SyncConfig controls the periodic reconciliation schedule.
type SyncConfig struct {
	// Schedule is a 5-field cron expression. Default: hourly on the hour.
	Schedule string `yaml:"schedule"`
	// Tables restricts which tables the scheduled pass syncs. Empty means
	// all tables.
	Tables []string `yaml:"tables"`
	// StartupSync runs one pass when serve starts.
	StartupSync bool `yaml:"startup_sync"`
	// CacheTTL bounds how long cached aggregation responses may be served
	// if no sync completes.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// HTTPConfig holds settings for the JSON API server.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// NotifyConfig holds optional sync-failure notification targets.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack bot credentials for sync digests.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds Discord bot credentials for sync digests.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Store.Host == "" {
		c.Store.Host = "127.0.0.1"
	}
	if c.Store.Port == 0 {
		c.Store.Port = 3306
	}
	if c.Store.User == "" {
		c.Store.User = "root"
	}
	if c.Store.Database == "" {
		c.Store.Database = "podlens"
	}
	if c.Warehouse.QueryTimeout == 0 {
		c.Warehouse.QueryTimeout = 5 * time.Minute
	}
	if c.Warehouse.ConnectTimeout == 0 {
		c.Warehouse.ConnectTimeout = 15 * time.Second
	}
	if c.Sync.Schedule == "" {
		c.Sync.Schedule = "0 * * * *"
	}
	if c.Sync.CacheTTL == 0 {
		c.Sync.CacheTTL = 2 * time.Hour
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Warehouse.DSN == "" {
		errs = append(errs, "warehouse.dsn is required")
	}
	if c.Jibble.ClientID != "" {
		if c.Jibble.ClientSecret == "" {
			errs = append(errs, "jibble.client_secret is required when jibble.client_id is set")
		}
		if c.Jibble.TokenURL == "" {
			errs = append(errs, "jibble.token_url is required when jibble.client_id is set")
		}
		if c.Jibble.BaseURL == "" {
			errs = append(errs, "jibble.base_url is required when jibble.client_id is set")
		}
	}
	if c.Notify.Slack.BotToken != "" && c.Notify.Slack.ChannelID == "" {
		errs = append(errs, "notify.slack.channel_id is required when notify.slack.bot_token is set")
	}
	if c.Notify.Discord.BotToken != "" && c.Notify.Discord.ChannelID == "" {
		errs = append(errs, "notify.discord.channel_id is required when notify.discord.bot_token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
