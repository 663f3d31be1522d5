package service

import (
	"context"
	"strings"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/apperr"
	"github.com/garyjia/justifi/internal/domain/entity"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// QueryService serves read-only views of justifications
type QueryService interface {
	// ListJustifications returns matching justifications, newest first
	ListJustifications(ctx context.Context, filter port.JustificationFilter) ([]*entity.Justification, error)

	// GetJustification returns a justification with its tasks, comments and audit trail
	GetJustification(ctx context.Context, id entity.JustificationID) (*entity.JustificationDetail, error)

	// Inbox returns the approver's next actionable task per open justification
	Inbox(ctx context.Context, approverEmail string) ([]*entity.InboxItem, error)
}

type queryServiceImpl struct {
	justifications port.JustificationRepository
	tasks          port.ApprovalTaskRepository
	comments       port.CommentRepository
	audit          port.AuditRepository
	logger         Logger
}

var _ QueryService = (*queryServiceImpl)(nil)

// NewQueryService creates a new QueryService
func NewQueryService(
	justifications port.JustificationRepository,
	tasks port.ApprovalTaskRepository,
	comments port.CommentRepository,
	audit port.AuditRepository,
	logger Logger,
) QueryService {
	return &queryServiceImpl{
		justifications: justifications,
		tasks:          tasks,
		comments:       comments,
		audit:          audit,
		logger:         orNop(logger),
	}
}

// ListJustifications lists justifications. Limit defaults to 50 and is capped at 200.
func (s *queryServiceImpl) ListJustifications(ctx context.Context, filter port.JustificationFilter) ([]*entity.Justification, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, apperr.InvalidArgument("unknown status %q", filter.Status)
	}
	if filter.Offset < 0 {
		return nil, apperr.InvalidArgument("offset must not be negative")
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	filter.RequesterEmail = strings.TrimSpace(filter.RequesterEmail)

	list, err := s.justifications.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list justifications", "error", err)
		return nil, apperr.Internal(err, "failed to list justifications")
	}
	if list == nil {
		list = []*entity.Justification{}
	}
	return list, nil
}

// GetJustification assembles the detail view
func (s *queryServiceImpl) GetJustification(ctx context.Context, id entity.JustificationID) (*entity.JustificationDetail, error) {
	j, err := s.justifications.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get justification", "error", err, "justification_id", id)
		return nil, apperr.Internal(err, "failed to get justification %s", id)
	}
	if j == nil {
		return nil, apperr.NotFound("justification", id)
	}

	tasks, err := s.tasks.ListByJustification(ctx, id)
	if err != nil {
		s.logger.Error("Failed to list tasks", "error", err, "justification_id", id)
		return nil, apperr.Internal(err, "failed to list tasks of %s", id)
	}
	comments, err := s.comments.ListByJustification(ctx, id)
	if err != nil {
		s.logger.Error("Failed to list comments", "error", err, "justification_id", id)
		return nil, apperr.Internal(err, "failed to list comments of %s", id)
	}
	audit, err := s.audit.ListByEntity(ctx, entity.EntityJustification, id.String())
	if err != nil {
		s.logger.Error("Failed to list audit entries", "error", err, "justification_id", id)
		return nil, apperr.Internal(err, "failed to list audit entries of %s", id)
	}

	if tasks == nil {
		tasks = []*entity.ApprovalTask{}
	}
	if comments == nil {
		comments = []*entity.Comment{}
	}
	if audit == nil {
		audit = []*entity.AuditLog{}
	}

	return &entity.JustificationDetail{
		Justification: j,
		Tasks:         tasks,
		Comments:      comments,
		Audit:         audit,
	}, nil
}

// Inbox groups the approver's open tasks by justification and keeps the
// lowest step of each. Items follow the newest-first order of the tasks.
// Justifications that are already closed are left out.
func (s *queryServiceImpl) Inbox(ctx context.Context, approverEmail string) ([]*entity.InboxItem, error) {
	approverEmail = strings.TrimSpace(approverEmail)
	if approverEmail == "" {
		return nil, apperr.InvalidArgument("approver_email is required")
	}

	tasks, err := s.tasks.ListByApprover(ctx, approverEmail, []entity.TaskStatus{entity.TaskPending, entity.TaskNeedsMoreInfo})
	if err != nil {
		s.logger.Error("Failed to list approver tasks", "error", err, "approver", approverEmail)
		return nil, apperr.Internal(err, "failed to list tasks for %s", approverEmail)
	}

	order := make([]entity.JustificationID, 0, len(tasks))
	lowest := make(map[entity.JustificationID]*entity.ApprovalTask, len(tasks))
	for _, t := range tasks {
		current, seen := lowest[t.JustificationID]
		if !seen {
			order = append(order, t.JustificationID)
			lowest[t.JustificationID] = t
			continue
		}
		if t.StepIndex < current.StepIndex {
			lowest[t.JustificationID] = t
		}
	}

	items := make([]*entity.InboxItem, 0, len(order))
	for _, id := range order {
		j, err := s.justifications.GetByID(ctx, id)
		if err != nil {
			s.logger.Error("Failed to get justification", "error", err, "justification_id", id)
			return nil, apperr.Internal(err, "failed to get justification %s", id)
		}
		if j == nil || j.Status.IsClosed() {
			continue
		}
		items = append(items, &entity.InboxItem{Task: lowest[id], Justification: j})
	}

	return items, nil
}
