// Package memory keeps every table in process memory. It backs the
// "memory" database driver and is safe for concurrent use.
package memory

import (
	"context"
	"sync"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
)

type contextKey string

const txKey contextKey = "memory-tx"

// tx collects the undo steps of the writes made inside one transaction
type tx struct {
	undo []func()
}

// Store holds all tables. Transactions are serialised and rolled back by
// replaying undo steps in reverse.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	justifications map[entity.JustificationID]*entity.Justification
	tasks          map[entity.TaskID]*entity.ApprovalTask
	rules          []*entity.RoutingRule
	comments       []*entity.Comment
	audit          []*entity.AuditLog
	notifications  []*entity.Notification
	types          map[string]*entity.JustificationType
	templates      map[string]*entity.EmailTemplate
	users          map[string]*entity.User
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		justifications: make(map[entity.JustificationID]*entity.Justification),
		tasks:          make(map[entity.TaskID]*entity.ApprovalTask),
		types:          make(map[string]*entity.JustificationType),
		templates:      make(map[string]*entity.EmailTemplate),
		users:          make(map[string]*entity.User),
	}
}

// WithTransaction implements port.TransactionManager
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey).(*tx); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	t := &tx{}
	txCtx := context.WithValue(ctx, txKey, t)

	defer func() {
		if p := recover(); p != nil {
			s.rollback(t)
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		s.rollback(t)
		return err
	}
	return nil
}

func (s *Store) rollback(t *tx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// onRollback registers an undo step when ctx carries a transaction.
// Callers hold s.mu.
func onRollback(ctx context.Context, undo func()) {
	if t, ok := ctx.Value(txKey).(*tx); ok {
		t.undo = append(t.undo, undo)
	}
}

// Justifications returns the justification repository view
func (s *Store) Justifications() port.JustificationRepository { return &justificationRepo{s} }

// Tasks returns the approval task repository view
func (s *Store) Tasks() port.ApprovalTaskRepository { return &taskRepo{s} }

// Rules returns the routing rule repository view
func (s *Store) Rules() port.RoutingRuleRepository { return &ruleRepo{s} }

// Comments returns the comment repository view
func (s *Store) Comments() port.CommentRepository { return &commentRepo{s} }

// Audit returns the audit repository view
func (s *Store) Audit() port.AuditRepository { return &auditRepo{s} }

// Notifications returns the outbox repository view
func (s *Store) Notifications() port.NotificationRepository { return &notificationRepo{s} }

// Types returns the justification type repository view
func (s *Store) Types() port.JustificationTypeRepository { return &typeRepo{s} }

// Templates returns the email template repository view
func (s *Store) Templates() port.EmailTemplateRepository { return &templateRepo{s} }

// Users returns the user directory view
func (s *Store) Users() port.UserRepository { return &userRepo{s} }

var _ port.TransactionManager = (*Store)(nil)
