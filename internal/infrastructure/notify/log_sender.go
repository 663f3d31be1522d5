// Package notify holds the delivery channels the outbox worker hands
// notifications to.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
)

// Channel names accepted by notification.channel
const (
	ChannelLog  = "log"
	ChannelLark = "lark"
	ChannelNATS = "nats"
)

// LogSender writes notifications to the application log. It is the default
// channel for local runs.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a log-only sender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Name implements port.Sender
func (s *LogSender) Name() string { return ChannelLog }

// Send implements port.Sender
func (s *LogSender) Send(ctx context.Context, n *entity.Notification) error {
	s.logger.Info("Notification",
		zap.String("notification_id", n.ID.String()),
		zap.Strings("recipients", n.Recipients),
		zap.String("subject", n.Subject),
		zap.String("body", n.Body))
	return nil
}

var _ port.Sender = (*LogSender)(nil)
