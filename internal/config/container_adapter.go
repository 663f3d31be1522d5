package config

import (
	"github.com/garyjia/justifi/internal/container"
	"github.com/garyjia/justifi/internal/infrastructure/export"
	"github.com/garyjia/justifi/internal/infrastructure/notify"
)

// ToContainerConfig converts the file-based configuration into the
// container's configuration.
func (c *Config) ToContainerConfig(version string) *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Notification: container.NotificationConfig{
			Channel:      c.Notification.Channel,
			PollInterval: c.Notification.PollInterval,
			BatchSize:    c.Notification.BatchSize,
			MaxAttempts:  c.Notification.MaxAttempts,
			SendTimeout:  c.Notification.SendTimeout,
			Lark: notify.LarkConfig{
				AppID:     c.Notification.Lark.AppID,
				AppSecret: c.Notification.Lark.AppSecret,
			},
			NATS: notify.NATSConfig{
				URL:     c.Notification.NATS.URL,
				Subject: c.Notification.NATS.Subject,
			},
		},
		Export: export.SheetNames{
			Summary:  c.Export.SummarySheet,
			Tasks:    c.Export.TasksSheet,
			Comments: c.Export.CommentsSheet,
			Audit:    c.Export.AuditSheet,
		},
		Version: version,
	}
}
