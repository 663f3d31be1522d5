package workflow

import (
	"context"
	"sort"
	"sync"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/internal/domain/event"
)

// fakeStore keeps justifications, tasks and comments in memory and hands out copies.
type fakeStore struct {
	mu             sync.Mutex
	justifications map[entity.JustificationID]*entity.Justification
	tasks          map[entity.TaskID]*entity.ApprovalTask
	comments       []*entity.Comment
	types          map[string]*entity.JustificationType

	createBatchErr  error
	updateStatusErr error
	statusWrites    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		justifications: make(map[entity.JustificationID]*entity.Justification),
		tasks:          make(map[entity.TaskID]*entity.ApprovalTask),
		types:          make(map[string]*entity.JustificationType),
	}
}

func (s *fakeStore) justification(id entity.JustificationID) *entity.Justification {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := *s.justifications[id]
	return &j
}

func (s *fakeStore) tasksOf(id entity.JustificationID) []*entity.ApprovalTask {
	out, _ := (&fakeTaskRepo{s}).ListByJustification(context.Background(), id)
	return out
}

type fakeJustificationRepo struct{ s *fakeStore }

func (r *fakeJustificationRepo) Create(ctx context.Context, j *entity.Justification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *j
	r.s.justifications[j.ID] = &cp
	return nil
}

func (r *fakeJustificationRepo) GetByID(ctx context.Context, id entity.JustificationID) (*entity.Justification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.justifications[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (r *fakeJustificationRepo) List(ctx context.Context, filter port.JustificationFilter) ([]*entity.Justification, error) {
	return nil, nil
}

func (r *fakeJustificationRepo) UpdateStatus(ctx context.Context, id entity.JustificationID, expectedVersion int64, status entity.JustificationStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.updateStatusErr != nil {
		return r.s.updateStatusErr
	}
	j, ok := r.s.justifications[id]
	if !ok || j.Version != expectedVersion {
		return port.ErrVersionConflict
	}
	j.Status = status
	j.Version++
	r.s.statusWrites++
	return nil
}

type fakeTaskRepo struct{ s *fakeStore }

func (r *fakeTaskRepo) CreateBatch(ctx context.Context, tasks []*entity.ApprovalTask) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.createBatchErr != nil {
		return r.s.createBatchErr
	}
	for _, t := range tasks {
		cp := *t
		r.s.tasks[t.ID] = &cp
	}
	return nil
}

func (r *fakeTaskRepo) GetByID(ctx context.Context, id entity.TaskID) (*entity.ApprovalTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTaskRepo) ListByJustification(ctx context.Context, id entity.JustificationID) ([]*entity.ApprovalTask, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.ApprovalTask
	for _, t := range r.s.tasks {
		if t.JustificationID == id {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepIndex < out[j].StepIndex })
	return out, nil
}

func (r *fakeTaskRepo) ListByApprover(ctx context.Context, approverEmail string, statuses []entity.TaskStatus) ([]*entity.ApprovalTask, error) {
	return nil, nil
}

func (r *fakeTaskRepo) Transition(ctx context.Context, id entity.TaskID, from entity.TaskStatus, change port.TaskChange) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok || t.Status != from {
		return port.ErrVersionConflict
	}
	t.Status = change.Status
	if change.MoreInfoReason != nil {
		t.MoreInfoReason = *change.MoreInfoReason
	}
	if change.DecisionComment != nil {
		t.DecisionComment = *change.DecisionComment
	}
	t.ActedBy = change.ActedBy
	return nil
}

func (r *fakeTaskRepo) TransitionWhere(ctx context.Context, id entity.JustificationID, from, to entity.TaskStatus) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, t := range r.s.tasks {
		if t.JustificationID == id && t.Status == from {
			t.Status = to
			n++
		}
	}
	return n, nil
}

func (r *fakeTaskRepo) CountNotInStatus(ctx context.Context, id entity.JustificationID, status entity.TaskStatus) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, t := range r.s.tasks {
		if t.JustificationID == id && t.Status != status {
			n++
		}
	}
	return n, nil
}

type fakeCommentRepo struct{ s *fakeStore }

func (r *fakeCommentRepo) Create(ctx context.Context, c *entity.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *c
	r.s.comments = append(r.s.comments, &cp)
	return nil
}

func (r *fakeCommentRepo) ListByJustification(ctx context.Context, id entity.JustificationID) ([]*entity.Comment, error) {
	return nil, nil
}

type fakeTypeRepo struct{ s *fakeStore }

func (r *fakeTypeRepo) Create(ctx context.Context, t *entity.JustificationType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.types[t.Code] = t
	return nil
}

func (r *fakeTypeRepo) GetByCode(ctx context.Context, code string) (*entity.JustificationType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.types[code], nil
}

func (r *fakeTypeRepo) List(ctx context.Context) ([]*entity.JustificationType, error) {
	return nil, nil
}

// fakeRuleRepo filters rules by equality on the set filter fields, in slice order.
type fakeRuleRepo struct {
	rules []*entity.RoutingRule
}

func (r *fakeRuleRepo) Create(ctx context.Context, rule *entity.RoutingRule) error {
	r.rules = append(r.rules, rule)
	return nil
}

func (r *fakeRuleRepo) GetByID(ctx context.Context, id entity.RuleID) (*entity.RoutingRule, error) {
	return nil, nil
}

func (r *fakeRuleRepo) Update(ctx context.Context, rule *entity.RoutingRule) error { return nil }

func (r *fakeRuleRepo) ListByName(ctx context.Context) ([]*entity.RoutingRule, error) {
	return r.rules, nil
}

func (r *fakeRuleRepo) Find(ctx context.Context, filter port.RuleFilter) ([]*entity.RoutingRule, error) {
	var out []*entity.RoutingRule
	for _, rule := range r.rules {
		if filter.Department != nil && (rule.Department == nil || *rule.Department != *filter.Department) {
			continue
		}
		if filter.TypeCode != nil && (rule.TypeCode == nil || *rule.TypeCode != *filter.TypeCode) {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

type mockTxManager struct {
	commitErr error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	return fn(ctx)
}

type sentNotification struct {
	recipients []string
	template   string
	subject    string
	body       string
	data       port.MessageData
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(ctx context.Context, recipients []string, msg port.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{
		recipients: recipients,
		template:   msg.Template,
		subject:    msg.Subject,
		body:       msg.Body,
		data:       msg.Data,
	})
}

func (n *recordingNotifier) withSubject(subject string) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotification
	for _, s := range n.sent {
		if s.subject == subject {
			out = append(out, s)
		}
	}
	return out
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type auditEntry struct {
	entityType string
	entityID   string
	action     string
	actor      string
	details    map[string]any
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *recordingAudit) Record(ctx context.Context, entityType, entityID, action, actor string, details map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{entityType, entityID, action, actor, details})
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.action)
	}
	return out
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Publish(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ofType(t event.Type) []*event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*event.Event
	for _, e := range m.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
