package service

import (
	"context"
	"strings"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/pkg/ids"
)

// NotificationService queues outbound messages in the outbox. Delivery is
// done by the outbox worker.
type NotificationService interface {
	port.Notifier
}

type notificationServiceImpl struct {
	repo      port.NotificationRepository
	templates port.EmailTemplateRepository
	logger    Logger
}

var _ NotificationService = (*notificationServiceImpl)(nil)

// NewNotificationService creates a new NotificationService. templates may be
// nil, in which case every message keeps its built-in text.
func NewNotificationService(repo port.NotificationRepository, templates port.EmailTemplateRepository, logger Logger) NotificationService {
	return &notificationServiceImpl{
		repo:      repo,
		templates: templates,
		logger:    orNop(logger),
	}
}

// Notify enqueues one message for all non-blank recipients. Enqueue errors
// are logged and dropped.
func (s *notificationServiceImpl) Notify(ctx context.Context, recipients []string, msg port.Message) {
	to := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			to = append(to, r)
		}
	}
	if len(to) == 0 {
		s.logger.Info("Notification without recipients dropped", "subject", msg.Subject)
		return
	}

	subject, body := s.render(ctx, msg)
	n := &entity.Notification{
		ID:         entity.NotificationID(ids.New()),
		Recipients: to,
		Subject:    subject,
		Body:       body,
		Status:     entity.NotificationStatusPending,
		CreatedAt:  utcNow(),
	}

	if err := s.repo.Enqueue(ctx, n); err != nil {
		s.logger.Error("Failed to enqueue notification", "error", err, "subject", subject, "recipients", to)
		return
	}

	s.logger.Info("Notification queued",
		"notification_id", n.ID,
		"template", msg.Template,
		"subject", subject,
		"recipient_count", len(to),
	)
}

// render applies the template stored under msg.Template. Any lookup or
// execution failure keeps the built-in subject and body.
func (s *notificationServiceImpl) render(ctx context.Context, msg port.Message) (string, string) {
	if s.templates == nil || msg.Template == "" {
		return msg.Subject, msg.Body
	}

	t, err := s.templates.Get(ctx, msg.Template)
	if err != nil {
		s.logger.Error("Failed to load email template", "error", err, "template", msg.Template)
		return msg.Subject, msg.Body
	}
	if t == nil {
		return msg.Subject, msg.Body
	}

	subject, err := renderTemplate(t.Subject, msg.Data)
	if err != nil {
		s.logger.Error("Failed to render email template", "error", err, "template", msg.Template)
		return msg.Subject, msg.Body
	}
	body, err := renderTemplate(t.HTML, msg.Data)
	if err != nil {
		s.logger.Error("Failed to render email template", "error", err, "template", msg.Template)
		return msg.Subject, msg.Body
	}
	return subject, body
}
