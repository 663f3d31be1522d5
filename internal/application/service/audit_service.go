package service

import (
	"context"
	"strings"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/apperr"
	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/pkg/ids"
)

// AuditService appends to and reads the audit trail
type AuditService interface {
	port.AuditLogger

	// List returns the entity's entries ordered by timestamp then id
	List(ctx context.Context, entityType, entityID string) ([]*entity.AuditLog, error)
}

type auditServiceImpl struct {
	repo   port.AuditRepository
	logger Logger
}

var _ AuditService = (*auditServiceImpl)(nil)

// NewAuditService creates a new AuditService
func NewAuditService(repo port.AuditRepository, logger Logger) AuditService {
	return &auditServiceImpl{
		repo:   repo,
		logger: orNop(logger),
	}
}

// Record appends one entry stamped with the current UTC time. A failed append
// is logged and dropped so the caller's committed change stands.
func (s *auditServiceImpl) Record(ctx context.Context, entityType, entityID, action, actor string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	entry := &entity.AuditLog{
		ID:         entity.AuditID(ids.New()),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ActorEmail: strings.TrimSpace(actor),
		Details:    details,
		Timestamp:  utcNow(),
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to append audit entry",
			"error", err,
			"entity", entityType,
			"entity_id", entityID,
			"action", action,
		)
	}
}

// List returns the audit trail of one entity
func (s *auditServiceImpl) List(ctx context.Context, entityType, entityID string) ([]*entity.AuditLog, error) {
	entries, err := s.repo.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		s.logger.Error("Failed to list audit entries", "error", err, "entity", entityType, "entity_id", entityID)
		return nil, apperr.Internal(err, "failed to list audit entries")
	}
	return entries, nil
}
