// Package config provides YAML-based configuration loading for ticketd.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level ticketd configuration, loaded from ticketd.yaml.
// It is read once at startup and treated as immutable afterwards.
type Config struct {
	Discord      DiscordConfig      `yaml:"discord"`
	Presence     PresenceConfig     `yaml:"presence"`
	Duty         DutyConfig         `yaml:"duty"`
	DB           DBConfig           `yaml:"db"`
	Dashboard    DashboardConfig    `yaml:"dashboard"`
	Slack        SlackConfig        `yaml:"slack"`
	Housekeeping HousekeepingConfig `yaml:"housekeeping"`
}

// DiscordConfig holds the gateway token and the channel/role identifiers the
// ticket lifecycle operates on. The per-operation IDs (staff role, category,
// panel, archive) are validated lazily by the operations that need them, so
// a partially configured bot still serves what it can.
type DiscordConfig struct {
	Token            string `yaml:"token"`
	GuildID          string `yaml:"guild_id"`
	StaffRoleID      string `yaml:"staff_role_id"`
	TicketCategoryID string `yaml:"ticket_category_id"`
	PanelChannelID   string `yaml:"panel_channel_id"`
	ArchiveChannelID string `yaml:"archive_channel_id"`
	TicketPrefix     string `yaml:"ticket_prefix"`
	GraceDelaySec    int    `yaml:"grace_delay_sec"`
}

// PresenceConfig controls the rotating status and the optional voice
// keepalive.
type PresenceConfig struct {
	RotateIntervalSec int              `yaml:"rotate_interval_sec"`
	Statuses          []PresenceStatus `yaml:"statuses"`
	VoiceChannelID    string           `yaml:"voice_channel_id"`
}

// PresenceStatus is one entry in the presence rotation.
type PresenceStatus struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// DutyConfig holds the role pair swapped by the on/off duty buttons.
// Both IDs must be set for the duty buttons to be handled.
type DutyConfig struct {
	OnRoleID  string `yaml:"on_role_id"`
	OffRoleID string `yaml:"off_role_id"`
}

// DBConfig selects the ticket-record database backend.
type DBConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" (default) or "mysql"
	Path     string `yaml:"path"`   // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// DashboardConfig controls the HTTP status server. Port 0 disables it.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// SlackConfig holds the optional ops-channel closure notifier settings.
type SlackConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

// HousekeepingConfig controls pruning of closed ticket records.
type HousekeepingConfig struct {
	Cron          string `yaml:"cron"`
	RetentionDays int    `yaml:"retention_days"`
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
	if c.Discord.TicketPrefix == "" {
		c.Discord.TicketPrefix = "ticket-"
	}
	if c.Discord.GraceDelaySec == 0 {
		c.Discord.GraceDelaySec = 5
	}
	if c.Presence.RotateIntervalSec == 0 {
		c.Presence.RotateIntervalSec = 10
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Driver == "sqlite" && c.DB.Path == "" {
		c.DB.Path = "ticketd.db"
	}
	if c.DB.Driver == "mysql" {
		if c.DB.Host == "" {
			c.DB.Host = "127.0.0.1"
		}
		if c.DB.Port == 0 {
			c.DB.Port = 3306
		}
		if c.DB.Database == "" {
			c.DB.Database = "ticketd"
		}
	}
	if c.Housekeeping.Cron == "" {
		c.Housekeeping.Cron = "0 3 * * *"
	}
	if c.Housekeeping.RetentionDays == 0 {
		c.Housekeeping.RetentionDays = 90
	}
}

// validate checks that all required fields are present and consistent.
// Per-operation IDs (category, staff role, archive, panel) are deliberately
// not required here: their absence disables the affected operation at
// runtime instead of preventing startup.
func (c *Config) validate() error {
	var errs []string
	if c.Discord.Token == "" {
		errs = append(errs, "discord.token is required")
	}
	if c.Discord.GuildID == "" {
		errs = append(errs, "discord.guild_id is required")
	}
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("db.driver %q is not supported (sqlite, mysql)", c.DB.Driver))
	}
	if c.Discord.GraceDelaySec < 0 {
		errs = append(errs, "discord.grace_delay_sec must not be negative")
	}
	if (c.Slack.Token == "") != (c.Slack.ChannelID == "") {
		errs = append(errs, "slack.token and slack.channel_id must be set together")
	}
	if (c.Duty.OnRoleID == "") != (c.Duty.OffRoleID == "") {
		errs = append(errs, "duty.on_role_id and duty.off_role_id must be set together")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
