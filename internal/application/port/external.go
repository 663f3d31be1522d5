package port

import (
	"context"
	"errors"
	"io"

	"github.com/garyjia/justifi/internal/domain/entity"
)

// MessageData is the value a notification template is executed against
type MessageData struct {
	JustificationID string
	Title           string
	RequesterEmail  string
	Reason          string
}

// Message is one workflow notification. When a template is stored under
// Template it replaces Subject and Body.
type Message struct {
	Template string
	Subject  string
	Body     string
	Data     MessageData
}

// Notifier queues a message for recipients. Failures are logged by the
// implementation and never returned.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, msg Message)
}

// AuditLogger appends an audit entry. Failures are logged by the
// implementation and never returned.
type AuditLogger interface {
	Record(ctx context.Context, entityType, entityID, action, actor string, details map[string]any)
}

// Sender delivers one outbox message over a concrete channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, n *entity.Notification) error
}

// PartialDeliveryError is returned by a Sender that reached some recipients
// before failing. Delivered recipients are skipped on retry.
type PartialDeliveryError struct {
	Delivered []string
	Err       error
}

func (e *PartialDeliveryError) Error() string { return e.Err.Error() }

func (e *PartialDeliveryError) Unwrap() error { return e.Err }

// DeliveredRecipients returns the recipients reached before err, if any
func DeliveredRecipients(err error) []string {
	var pe *PartialDeliveryError
	if errors.As(err, &pe) {
		return pe.Delivered
	}
	return nil
}

// Exporter renders a justification with its history to w.
type Exporter interface {
	ContentType() string
	FileExtension() string
	Export(ctx context.Context, detail *entity.JustificationDetail, w io.Writer) error
}
