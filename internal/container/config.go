// Package container provides dependency wiring and lifecycle management
// for the justification service.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/justifi/internal/infrastructure/export"
	"github.com/garyjia/justifi/internal/infrastructure/notify"
)

// Config holds all configuration for the Container.
type Config struct {
	Database     DatabaseConfig
	Notification NotificationConfig
	Export       export.SheetNames

	// Version is reported as justifi_build_info
	Version string
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is "sqlite" or "memory"
	Driver string

	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string
}

// NotificationConfig holds outbox delivery settings.
type NotificationConfig struct {
	// Channel is "log", "lark" or "nats"
	Channel string

	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	SendTimeout  time.Duration

	Lark notify.LarkConfig
	NATS notify.NATSConfig
}

// DefaultConfig returns a Config with an in-memory store and log delivery.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: DriverMemory,
		},
		Notification: NotificationConfig{
			Channel:      notify.ChannelLog,
			PollInterval: 5 * time.Second,
			BatchSize:    20,
			MaxAttempts:  5,
			SendTimeout:  30 * time.Second,
		},
		Export:  export.DefaultSheetNames(),
		Version: "dev",
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.Notification.Channel {
	case notify.ChannelLog:
	case notify.ChannelLark:
		if c.Notification.Lark.AppID == "" || c.Notification.Lark.AppSecret == "" {
			return fmt.Errorf("lark app id and secret are required")
		}
	case notify.ChannelNATS:
		if c.Notification.NATS.URL == "" {
			return fmt.Errorf("nats url is required")
		}
	default:
		return fmt.Errorf("unknown notification channel %q", c.Notification.Channel)
	}
	return nil
}
