package port

import (
	"context"
	"errors"

	"github.com/garyjia/justifi/internal/domain/entity"
)

// ErrVersionConflict is returned by compare-and-set updates when the stored
// record no longer matches the expected state.
var ErrVersionConflict = errors.New("record changed concurrently")

// ErrDuplicate is returned when an insert collides with a unique key.
var ErrDuplicate = errors.New("record already exists")

// JustificationFilter narrows a justification listing. Zero values do not filter.
type JustificationFilter struct {
	RequesterEmail string
	Status         entity.JustificationStatus
	Limit          int
	Offset         int
}

// JustificationRepository defines persistence operations for Justification.
// GetByID returns (nil, nil) when the record does not exist.
type JustificationRepository interface {
	Create(ctx context.Context, j *entity.Justification) error
	GetByID(ctx context.Context, id entity.JustificationID) (*entity.Justification, error)

	// List returns matching justifications, newest first
	List(ctx context.Context, filter JustificationFilter) ([]*entity.Justification, error)

	// UpdateStatus sets status only if the stored version equals expectedVersion,
	// and increments the version. Returns ErrVersionConflict otherwise.
	UpdateStatus(ctx context.Context, id entity.JustificationID, expectedVersion int64, status entity.JustificationStatus) error
}

// TaskChange is the set of fields written when a task transitions.
// Nil pointers leave the stored value untouched.
type TaskChange struct {
	Status          entity.TaskStatus
	MoreInfoReason  *string
	DecisionComment *string
	ActedBy         string
}

// ApprovalTaskRepository defines persistence operations for ApprovalTask
type ApprovalTaskRepository interface {
	// CreateBatch inserts all tasks of one submission
	CreateBatch(ctx context.Context, tasks []*entity.ApprovalTask) error

	GetByID(ctx context.Context, id entity.TaskID) (*entity.ApprovalTask, error)

	// ListByJustification returns tasks ordered by step index
	ListByJustification(ctx context.Context, id entity.JustificationID) ([]*entity.ApprovalTask, error)

	// ListByApprover returns the approver's tasks in any of statuses, newest first
	ListByApprover(ctx context.Context, approverEmail string, statuses []entity.TaskStatus) ([]*entity.ApprovalTask, error)

	// Transition applies change only while the task is still in status from.
	// Returns ErrVersionConflict when the task has moved on.
	Transition(ctx context.Context, id entity.TaskID, from entity.TaskStatus, change TaskChange) error

	// TransitionWhere moves every task of the justification in status from to status to
	TransitionWhere(ctx context.Context, id entity.JustificationID, from, to entity.TaskStatus) (int64, error)

	// CountNotInStatus counts the justification's tasks whose status differs from status
	CountNotInStatus(ctx context.Context, id entity.JustificationID, status entity.TaskStatus) (int, error)
}

// RuleFilter selects routing rules by equality. Nil fields match any rule.
type RuleFilter struct {
	Department *string
	TypeCode   *string
}

// RoutingRuleRepository defines persistence operations for RoutingRule
type RoutingRuleRepository interface {
	Create(ctx context.Context, rule *entity.RoutingRule) error
	GetByID(ctx context.Context, id entity.RuleID) (*entity.RoutingRule, error)
	Update(ctx context.Context, rule *entity.RoutingRule) error

	// Find returns matching rules in creation order
	Find(ctx context.Context, filter RuleFilter) ([]*entity.RoutingRule, error)

	// ListByName returns every rule sorted by name
	ListByName(ctx context.Context) ([]*entity.RoutingRule, error)
}

// CommentRepository defines persistence operations for Comment
type CommentRepository interface {
	Create(ctx context.Context, c *entity.Comment) error

	// ListByJustification returns comments oldest first
	ListByJustification(ctx context.Context, id entity.JustificationID) ([]*entity.Comment, error)
}

// AuditRepository is append-only.
type AuditRepository interface {
	Append(ctx context.Context, entry *entity.AuditLog) error

	// ListByEntity returns entries ordered by timestamp then id
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.AuditLog, error)
}

// NotificationRepository defines the notification outbox
type NotificationRepository interface {
	Enqueue(ctx context.Context, n *entity.Notification) error

	// ListPending returns up to limit undelivered messages, oldest first
	ListPending(ctx context.Context, limit int) ([]*entity.Notification, error)

	MarkSent(ctx context.Context, id entity.NotificationID) error

	// MarkDelivered adds recipients to the message's delivered set
	MarkDelivered(ctx context.Context, id entity.NotificationID, recipients []string) error

	// RecordFailure increments attempts and marks the message FAILED once
	// attempts reach maxAttempts
	RecordFailure(ctx context.Context, id entity.NotificationID, errMsg string, maxAttempts int) error
}

// JustificationTypeRepository defines persistence operations for JustificationType
type JustificationTypeRepository interface {
	// Create returns ErrDuplicate when the code is taken
	Create(ctx context.Context, t *entity.JustificationType) error
	GetByCode(ctx context.Context, code string) (*entity.JustificationType, error)
	List(ctx context.Context) ([]*entity.JustificationType, error)
}

// EmailTemplateRepository stores notification template overrides
type EmailTemplateRepository interface {
	// Get returns nil, nil when no template is stored under key
	Get(ctx context.Context, key string) (*entity.EmailTemplate, error)

	// List returns every stored template ordered by key
	List(ctx context.Context) ([]*entity.EmailTemplate, error)

	// Upsert inserts the template or replaces the one stored under its key
	Upsert(ctx context.Context, t *entity.EmailTemplate) error

	// Delete removes the template; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}

// UserRepository defines the user directory
type UserRepository interface {
	// Upsert inserts the user or replaces the one stored under its email
	Upsert(ctx context.Context, u *entity.User) error

	// GetByEmail returns nil, nil when the email is unknown
	GetByEmail(ctx context.Context, email string) (*entity.User, error)

	// List returns every user ordered by email
	List(ctx context.Context) ([]*entity.User, error)

	Delete(ctx context.Context, email string) error
	Count(ctx context.Context) (int, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
