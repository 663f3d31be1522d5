package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/internal/infrastructure/persistence/sqlite"
)

// NotificationRepository implements port.NotificationRepository on the notifications outbox table
type NotificationRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sqlite.DB) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: db.Logger(),
	}
}

// Enqueue inserts a pending message
func (r *NotificationRepository) Enqueue(ctx context.Context, n *entity.Notification) error {
	recipients, err := marshalJSON(nonNilStrings(n.Recipients))
	if err != nil {
		return err
	}
	delivered, err := marshalJSON(nonNilStrings(n.Delivered))
	if err != nil {
		return err
	}
	if n.Status == "" {
		n.Status = entity.NotificationStatusPending
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO notifications (id, recipients, delivered, subject, body, status, attempts, last_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		n.ID,
		recipients,
		delivered,
		n.Subject,
		n.Body,
		n.Status,
		n.Attempts,
		n.LastError,
		n.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to enqueue notification",
			zap.String("notification_id", n.ID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// ListPending returns up to limit PENDING messages, oldest first
func (r *NotificationRepository) ListPending(ctx context.Context, limit int) ([]*entity.Notification, error) {
	query := `
		SELECT id, recipients, delivered, subject, body, status, attempts, last_error, created_at, sent_at
		FROM notifications
		WHERE status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, entity.NotificationStatusPending, limit)
	if err != nil {
		r.logger.Error("Failed to list pending notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	defer rows.Close()

	var out []*entity.Notification
	for rows.Next() {
		var (
			n          entity.Notification
			recipients string
			delivered  string
			sentAt     sql.NullTime
		)
		if err := rows.Scan(&n.ID, &recipients, &delivered, &n.Subject, &n.Body, &n.Status, &n.Attempts, &n.LastError, &n.CreatedAt, &sentAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if err := unmarshalJSON(recipients, &n.Recipients); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(delivered, &n.Delivered); err != nil {
			return nil, err
		}
		if sentAt.Valid {
			n.SentAt = &sentAt.Time
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}
	return out, nil
}

// MarkSent marks the message delivered
func (r *NotificationRepository) MarkSent(ctx context.Context, id entity.NotificationID) error {
	query := `UPDATE notifications SET status = ?, sent_at = ?, last_error = '' WHERE id = ?`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query, entity.NotificationStatusSent, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to mark notification as sent",
			zap.String("notification_id", id.String()),
			zap.Error(err))
		return fmt.Errorf("failed to mark sent: %w", err)
	}
	return nil
}

// MarkDelivered merges recipients into the delivered set of the message
func (r *NotificationRepository) MarkDelivered(ctx context.Context, id entity.NotificationID, recipients []string) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		var raw string
		err := r.db.Executor(ctx).QueryRowContext(ctx,
			`SELECT delivered FROM notifications WHERE id = ?`, id).Scan(&raw)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load delivered recipients: %w", err)
		}

		var delivered []string
		if err := unmarshalJSON(raw, &delivered); err != nil {
			return err
		}
		for _, rcpt := range recipients {
			if !slices.Contains(delivered, rcpt) {
				delivered = append(delivered, rcpt)
			}
		}
		encoded, err := marshalJSON(nonNilStrings(delivered))
		if err != nil {
			return err
		}

		_, err = r.db.Executor(ctx).ExecContext(ctx,
			`UPDATE notifications SET delivered = ? WHERE id = ?`, encoded, id)
		if err != nil {
			r.logger.Error("Failed to record delivered recipients",
				zap.String("notification_id", id.String()),
				zap.Error(err))
			return fmt.Errorf("failed to mark delivered: %w", err)
		}
		return nil
	})
}

// RecordFailure bumps attempts and gives up once maxAttempts is reached
func (r *NotificationRepository) RecordFailure(ctx context.Context, id entity.NotificationID, errMsg string, maxAttempts int) error {
	query := `
		UPDATE notifications
		SET attempts = attempts + 1,
			last_error = ?,
			status = CASE WHEN attempts + 1 >= ? THEN ? ELSE status END
		WHERE id = ?
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query, errMsg, maxAttempts, entity.NotificationStatusFailed, id)
	if err != nil {
		r.logger.Error("Failed to record notification failure",
			zap.String("notification_id", id.String()),
			zap.Error(err))
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return nil
}

var _ port.NotificationRepository = (*NotificationRepository)(nil)
