package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/internal/infrastructure/persistence/sqlite"
)

// EmailTemplateRepository implements port.EmailTemplateRepository
type EmailTemplateRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewEmailTemplateRepository creates a new email template repository
func NewEmailTemplateRepository(db *sqlite.DB) port.EmailTemplateRepository {
	return &EmailTemplateRepository{
		db:     db,
		logger: db.Logger(),
	}
}

// Get returns the template or (nil, nil) when absent
func (r *EmailTemplateRepository) Get(ctx context.Context, key string) (*entity.EmailTemplate, error) {
	query := `SELECT key, subject, html, updated_at FROM email_templates WHERE key = ?`

	var t entity.EmailTemplate
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, key).Scan(&t.Key, &t.Subject, &t.HTML, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get email template", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to get email template: %w", err)
	}
	return &t, nil
}

// List returns every template ordered by key
func (r *EmailTemplateRepository) List(ctx context.Context) ([]*entity.EmailTemplate, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `SELECT key, subject, html, updated_at FROM email_templates ORDER BY key ASC`)
	if err != nil {
		r.logger.Error("Failed to list email templates", zap.Error(err))
		return nil, fmt.Errorf("failed to list email templates: %w", err)
	}
	defer rows.Close()

	var out []*entity.EmailTemplate
	for rows.Next() {
		var t entity.EmailTemplate
		if err := rows.Scan(&t.Key, &t.Subject, &t.HTML, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan email template: %w", err)
		}
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate email templates: %w", err)
	}
	return out, nil
}

// Upsert inserts or replaces the template stored under t.Key
func (r *EmailTemplateRepository) Upsert(ctx context.Context, t *entity.EmailTemplate) error {
	query := `
		INSERT INTO email_templates (key, subject, html, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			subject = excluded.subject,
			html = excluded.html,
			updated_at = excluded.updated_at
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query, t.Key, t.Subject, t.HTML, t.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to save email template", zap.String("key", t.Key), zap.Error(err))
		return fmt.Errorf("failed to save email template: %w", err)
	}
	return nil
}

// Delete removes the template stored under key
func (r *EmailTemplateRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM email_templates WHERE key = ?`, key)
	if err != nil {
		r.logger.Error("Failed to delete email template", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to delete email template: %w", err)
	}
	return nil
}

var _ port.EmailTemplateRepository = (*EmailTemplateRepository)(nil)
