package service

import (
	"context"
	"sync"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
)

type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

type mockAuditRepo struct {
	appendFunc       func(ctx context.Context, entry *entity.AuditLog) error
	listByEntityFunc func(ctx context.Context, entityType, entityID string) ([]*entity.AuditLog, error)
	appended         []*entity.AuditLog
}

func (m *mockAuditRepo) Append(ctx context.Context, entry *entity.AuditLog) error {
	if m.appendFunc != nil {
		return m.appendFunc(ctx, entry)
	}
	m.appended = append(m.appended, entry)
	return nil
}

func (m *mockAuditRepo) ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.AuditLog, error) {
	if m.listByEntityFunc != nil {
		return m.listByEntityFunc(ctx, entityType, entityID)
	}
	return nil, nil
}

type mockNotificationRepo struct {
	enqueueFunc func(ctx context.Context, n *entity.Notification) error
	enqueued    []*entity.Notification
}

func (m *mockNotificationRepo) Enqueue(ctx context.Context, n *entity.Notification) error {
	if m.enqueueFunc != nil {
		return m.enqueueFunc(ctx, n)
	}
	m.enqueued = append(m.enqueued, n)
	return nil
}

func (m *mockNotificationRepo) ListPending(ctx context.Context, limit int) ([]*entity.Notification, error) {
	return nil, nil
}

func (m *mockNotificationRepo) MarkSent(ctx context.Context, id entity.NotificationID) error {
	return nil
}

func (m *mockNotificationRepo) MarkDelivered(ctx context.Context, id entity.NotificationID, recipients []string) error {
	return nil
}

func (m *mockNotificationRepo) RecordFailure(ctx context.Context, id entity.NotificationID, errMsg string, maxAttempts int) error {
	return nil
}

type mockJustificationRepo struct {
	getByIDFunc func(ctx context.Context, id entity.JustificationID) (*entity.Justification, error)
	listFunc    func(ctx context.Context, filter port.JustificationFilter) ([]*entity.Justification, error)
}

func (m *mockJustificationRepo) Create(ctx context.Context, j *entity.Justification) error {
	return nil
}

func (m *mockJustificationRepo) GetByID(ctx context.Context, id entity.JustificationID) (*entity.Justification, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockJustificationRepo) List(ctx context.Context, filter port.JustificationFilter) ([]*entity.Justification, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return nil, nil
}

func (m *mockJustificationRepo) UpdateStatus(ctx context.Context, id entity.JustificationID, expectedVersion int64, status entity.JustificationStatus) error {
	return nil
}

type mockTaskRepo struct {
	listByJustificationFunc func(ctx context.Context, id entity.JustificationID) ([]*entity.ApprovalTask, error)
	listByApproverFunc      func(ctx context.Context, approverEmail string, statuses []entity.TaskStatus) ([]*entity.ApprovalTask, error)
}

func (m *mockTaskRepo) CreateBatch(ctx context.Context, tasks []*entity.ApprovalTask) error {
	return nil
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id entity.TaskID) (*entity.ApprovalTask, error) {
	return nil, nil
}

func (m *mockTaskRepo) ListByJustification(ctx context.Context, id entity.JustificationID) ([]*entity.ApprovalTask, error) {
	if m.listByJustificationFunc != nil {
		return m.listByJustificationFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockTaskRepo) ListByApprover(ctx context.Context, approverEmail string, statuses []entity.TaskStatus) ([]*entity.ApprovalTask, error) {
	if m.listByApproverFunc != nil {
		return m.listByApproverFunc(ctx, approverEmail, statuses)
	}
	return nil, nil
}

func (m *mockTaskRepo) Transition(ctx context.Context, id entity.TaskID, from entity.TaskStatus, change port.TaskChange) error {
	return nil
}

func (m *mockTaskRepo) TransitionWhere(ctx context.Context, id entity.JustificationID, from, to entity.TaskStatus) (int64, error) {
	return 0, nil
}

func (m *mockTaskRepo) CountNotInStatus(ctx context.Context, id entity.JustificationID, status entity.TaskStatus) (int, error) {
	return 0, nil
}

type mockCommentRepo struct {
	listByJustificationFunc func(ctx context.Context, id entity.JustificationID) ([]*entity.Comment, error)
}

func (m *mockCommentRepo) Create(ctx context.Context, c *entity.Comment) error {
	return nil
}

func (m *mockCommentRepo) ListByJustification(ctx context.Context, id entity.JustificationID) ([]*entity.Comment, error) {
	if m.listByJustificationFunc != nil {
		return m.listByJustificationFunc(ctx, id)
	}
	return nil, nil
}

type mockRuleRepo struct {
	rules      map[entity.RuleID]*entity.RoutingRule
	createErr  error
	listByName func(ctx context.Context) ([]*entity.RoutingRule, error)
}

func newMockRuleRepo() *mockRuleRepo {
	return &mockRuleRepo{rules: make(map[entity.RuleID]*entity.RoutingRule)}
}

func (m *mockRuleRepo) Create(ctx context.Context, rule *entity.RoutingRule) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.rules[rule.ID] = rule
	return nil
}

func (m *mockRuleRepo) GetByID(ctx context.Context, id entity.RuleID) (*entity.RoutingRule, error) {
	rule, ok := m.rules[id]
	if !ok {
		return nil, nil
	}
	cp := *rule
	return &cp, nil
}

func (m *mockRuleRepo) Update(ctx context.Context, rule *entity.RoutingRule) error {
	m.rules[rule.ID] = rule
	return nil
}

func (m *mockRuleRepo) Find(ctx context.Context, filter port.RuleFilter) ([]*entity.RoutingRule, error) {
	return nil, nil
}

func (m *mockRuleRepo) ListByName(ctx context.Context) ([]*entity.RoutingRule, error) {
	if m.listByName != nil {
		return m.listByName(ctx)
	}
	return nil, nil
}

type mockTypeRepo struct {
	types map[string]*entity.JustificationType
}

func newMockTypeRepo() *mockTypeRepo {
	return &mockTypeRepo{types: make(map[string]*entity.JustificationType)}
}

func (m *mockTypeRepo) Create(ctx context.Context, t *entity.JustificationType) error {
	if _, ok := m.types[t.Code]; ok {
		return port.ErrDuplicate
	}
	m.types[t.Code] = t
	return nil
}

func (m *mockTypeRepo) GetByCode(ctx context.Context, code string) (*entity.JustificationType, error) {
	return m.types[code], nil
}

func (m *mockTypeRepo) List(ctx context.Context) ([]*entity.JustificationType, error) {
	var out []*entity.JustificationType
	for _, t := range m.types {
		out = append(out, t)
	}
	return out, nil
}

type mockTemplateRepo struct {
	stored map[string]*entity.EmailTemplate
	getErr error
}

func (m *mockTemplateRepo) Get(ctx context.Context, key string) (*entity.EmailTemplate, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.stored[key], nil
}

func (m *mockTemplateRepo) List(ctx context.Context) ([]*entity.EmailTemplate, error) {
	var out []*entity.EmailTemplate
	for _, t := range m.stored {
		out = append(out, t)
	}
	return out, nil
}

func (m *mockTemplateRepo) Upsert(ctx context.Context, t *entity.EmailTemplate) error {
	if m.stored == nil {
		m.stored = map[string]*entity.EmailTemplate{}
	}
	m.stored[t.Key] = t
	return nil
}

func (m *mockTemplateRepo) Delete(ctx context.Context, key string) error {
	delete(m.stored, key)
	return nil
}

type mockUserRepo struct {
	users    map[string]*entity.User
	countErr error
}

func newMockUserRepo(users ...*entity.User) *mockUserRepo {
	m := &mockUserRepo{users: map[string]*entity.User{}}
	for _, u := range users {
		m.users[u.Email] = u
	}
	return m
}

func (m *mockUserRepo) Upsert(ctx context.Context, u *entity.User) error {
	m.users[u.Email] = u
	return nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return m.users[email], nil
}

func (m *mockUserRepo) List(ctx context.Context) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockUserRepo) Delete(ctx context.Context, email string) error {
	delete(m.users, email)
	return nil
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.users), nil
}
