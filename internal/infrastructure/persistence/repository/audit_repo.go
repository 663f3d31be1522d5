package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/internal/infrastructure/persistence/sqlite"
)

// AuditRepository implements port.AuditRepository. The table rejects
// UPDATE and DELETE through triggers.
type AuditRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sqlite.DB) port.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: db.Logger(),
	}
}

// Append inserts one entry
func (r *AuditRepository) Append(ctx context.Context, entry *entity.AuditLog) error {
	details, err := marshalJSON(entry.Details)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_logs (id, entity, entity_id, action, actor_email, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		entry.ID,
		entry.EntityType,
		entry.EntityID,
		entry.Action,
		entry.ActorEmail,
		details,
		entry.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("entity", entry.EntityType),
			zap.String("entity_id", entry.EntityID),
			zap.String("action", entry.Action),
			zap.Error(err))
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListByEntity returns entries ordered by timestamp then id
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.AuditLog, error) {
	query := `
		SELECT id, entity, entity_id, action, actor_email, details, timestamp
		FROM audit_logs
		WHERE entity = ? AND entity_id = ?
		ORDER BY timestamp ASC, id ASC
	`
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		r.logger.Error("Failed to list audit entries",
			zap.String("entity", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var out []*entity.AuditLog
	for rows.Next() {
		var (
			entry   entity.AuditLog
			details string
		)
		if err := rows.Scan(&entry.ID, &entry.EntityType, &entry.EntityID, &entry.Action, &entry.ActorEmail, &details, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Details = map[string]any{}
		if err := unmarshalJSON(details, &entry.Details); err != nil {
			return nil, err
		}
		out = append(out, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return out, nil
}

var _ port.AuditRepository = (*AuditRepository)(nil)
