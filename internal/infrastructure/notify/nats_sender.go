package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
)

// Publisher is satisfied by *nats.Conn
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NotificationEvent is the JSON document published for each notification
type NotificationEvent struct {
	EventType  string    `json:"event_type"`
	ID         string    `json:"id"`
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}

// NATSSender publishes notifications to <subject>.<event_type> for an
// external delivery service to consume.
type NATSSender struct {
	conn    Publisher
	subject string
	logger  *zap.Logger
}

// NATSConfig holds the broker connection settings
type NATSConfig struct {
	URL     string
	Subject string
}

// ConnectNATS dials the broker with reconnect logging
func ConnectNATS(cfg NATSConfig, logger *zap.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name("justifi"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	return conn, nil
}

// NewNATSSender creates a sender publishing under subject
func NewNATSSender(conn Publisher, subject string, logger *zap.Logger) *NATSSender {
	return &NATSSender{conn: conn, subject: subject, logger: logger}
}

// Name implements port.Sender
func (s *NATSSender) Name() string { return ChannelNATS }

// Send implements port.Sender
func (s *NATSSender) Send(ctx context.Context, n *entity.Notification) error {
	event := NotificationEvent{
		EventType:  "notification",
		ID:         n.ID.String(),
		Recipients: n.Recipients,
		Subject:    n.Subject,
		Body:       n.Body,
		CreatedAt:  n.CreatedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification event: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", s.subject, event.EventType)
	if err := s.conn.Publish(subject, data); err != nil {
		s.logger.Warn("Failed to publish notification",
			zap.String("subject", subject),
			zap.String("notification_id", event.ID),
			zap.Error(err))
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	s.logger.Debug("Notification published",
		zap.String("subject", subject),
		zap.String("notification_id", event.ID),
		zap.Int("recipients", len(n.Recipients)))
	return nil
}

var _ port.Sender = (*NATSSender)(nil)
