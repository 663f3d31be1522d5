package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
)

type justificationRepo struct{ s *Store }

func (r *justificationRepo) Create(ctx context.Context, j *entity.Justification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.justifications[j.ID]; ok {
		return port.ErrDuplicate
	}
	r.s.justifications[j.ID] = cloneJustification(j)
	onRollback(ctx, func() { delete(r.s.justifications, j.ID) })
	return nil
}

func (r *justificationRepo) GetByID(ctx context.Context, id entity.JustificationID) (*entity.Justification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	j, ok := r.s.justifications[id]
	if !ok {
		return nil, nil
	}
	return cloneJustification(j), nil
}

func (r *justificationRepo) List(ctx context.Context, filter port.JustificationFilter) ([]*entity.Justification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.Justification
	for _, j := range r.s.justifications {
		if filter.RequesterEmail != "" && j.RequesterEmail != filter.RequesterEmail {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		out = append(out, cloneJustification(j))
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return out[a].ID > out[b].ID
	})
	return page(out, filter.Offset, filter.Limit), nil
}

func (r *justificationRepo) UpdateStatus(ctx context.Context, id entity.JustificationID, expectedVersion int64, status entity.JustificationStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.justifications[id]
	if !ok || j.Version != expectedVersion {
		return port.ErrVersionConflict
	}
	prev := *j
	j.Status = status
	j.Version++
	j.UpdatedAt = time.Now().UTC()
	onRollback(ctx, func() { *j = prev })
	return nil
}

// without drops row from rows by identity
func without[T any](rows []*T, row *T) []*T {
	return slices.DeleteFunc(rows, func(r *T) bool { return r == row })
}

func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type taskRepo struct{ s *Store }

func (r *taskRepo) CreateBatch(ctx context.Context, tasks []*entity.ApprovalTask) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range tasks {
		if _, ok := r.s.tasks[t.ID]; ok {
			return port.ErrDuplicate
		}
	}
	for _, t := range tasks {
		r.s.tasks[t.ID] = cloneTask(t)
		id := t.ID
		onRollback(ctx, func() { delete(r.s.tasks, id) })
	}
	return nil
}

func (r *taskRepo) GetByID(ctx context.Context, id entity.TaskID) (*entity.ApprovalTask, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, nil
	}
	return cloneTask(t), nil
}

func (r *taskRepo) ListByJustification(ctx context.Context, id entity.JustificationID) ([]*entity.ApprovalTask, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.ApprovalTask
	for _, t := range r.s.tasks {
		if t.JustificationID == id {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].StepIndex < out[b].StepIndex })
	return out, nil
}

func (r *taskRepo) ListByApprover(ctx context.Context, approverEmail string, statuses []entity.TaskStatus) ([]*entity.ApprovalTask, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.ApprovalTask
	for _, t := range r.s.tasks {
		if t.ApproverEmail != approverEmail {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, t.Status) {
			continue
		}
		out = append(out, cloneTask(t))
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return out[a].ID > out[b].ID
	})
	return out, nil
}

func (r *taskRepo) Transition(ctx context.Context, id entity.TaskID, from entity.TaskStatus, change port.TaskChange) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok || t.Status != from {
		return port.ErrVersionConflict
	}
	prev := *t
	t.Status = change.Status
	if change.MoreInfoReason != nil {
		t.MoreInfoReason = *change.MoreInfoReason
	}
	if change.DecisionComment != nil {
		t.DecisionComment = *change.DecisionComment
	}
	t.ActedBy = change.ActedBy
	t.UpdatedAt = time.Now().UTC()
	onRollback(ctx, func() { *t = prev })
	return nil
}

func (r *taskRepo) TransitionWhere(ctx context.Context, id entity.JustificationID, from, to entity.TaskStatus) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for _, t := range r.s.tasks {
		if t.JustificationID != id || t.Status != from {
			continue
		}
		task, prev := t, *t
		t.Status = to
		t.UpdatedAt = now
		onRollback(ctx, func() { *task = prev })
		n++
	}
	return n, nil
}

func (r *taskRepo) CountNotInStatus(ctx context.Context, id entity.JustificationID, status entity.TaskStatus) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, t := range r.s.tasks {
		if t.JustificationID == id && t.Status != status {
			n++
		}
	}
	return n, nil
}

type ruleRepo struct{ s *Store }

func (r *ruleRepo) Create(ctx context.Context, rule *entity.RoutingRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row := cloneRule(rule)
	r.s.rules = append(r.s.rules, row)
	onRollback(ctx, func() { r.s.rules = without(r.s.rules, row) })
	return nil
}

func (r *ruleRepo) GetByID(ctx context.Context, id entity.RuleID) (*entity.RoutingRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, rule := range r.s.rules {
		if rule.ID == id {
			return cloneRule(rule), nil
		}
	}
	return nil, nil
}

func (r *ruleRepo) Update(ctx context.Context, rule *entity.RoutingRule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.rules {
		if existing.ID == rule.ID {
			prev := *existing
			*existing = *cloneRule(rule)
			onRollback(ctx, func() { *existing = prev })
			return nil
		}
	}
	return nil
}

func (r *ruleRepo) Find(ctx context.Context, filter port.RuleFilter) ([]*entity.RoutingRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.RoutingRule
	for _, rule := range r.s.rules {
		if filter.Department != nil && (rule.Department == nil || *rule.Department != *filter.Department) {
			continue
		}
		if filter.TypeCode != nil && (rule.TypeCode == nil || *rule.TypeCode != *filter.TypeCode) {
			continue
		}
		out = append(out, cloneRule(rule))
	}
	return out, nil
}

func (r *ruleRepo) ListByName(ctx context.Context) ([]*entity.RoutingRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.RoutingRule, 0, len(r.s.rules))
	for _, rule := range r.s.rules {
		out = append(out, cloneRule(rule))
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out, nil
}

type commentRepo struct{ s *Store }

func (r *commentRepo) Create(ctx context.Context, c *entity.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row := cloneComment(c)
	r.s.comments = append(r.s.comments, row)
	onRollback(ctx, func() { r.s.comments = without(r.s.comments, row) })
	return nil
}

func (r *commentRepo) ListByJustification(ctx context.Context, id entity.JustificationID) ([]*entity.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Comment
	for _, c := range r.s.comments {
		if c.JustificationID == id {
			out = append(out, cloneComment(c))
		}
	}
	return out, nil
}

type auditRepo struct{ s *Store }

func (r *auditRepo) Append(ctx context.Context, entry *entity.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row := cloneAudit(entry)
	r.s.audit = append(r.s.audit, row)
	onRollback(ctx, func() { r.s.audit = without(r.s.audit, row) })
	return nil
}

func (r *auditRepo) ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.AuditLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.AuditLog
	for _, a := range r.s.audit {
		if a.EntityType == entityType && a.EntityID == entityID {
			out = append(out, cloneAudit(a))
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if !out[a].Timestamp.Equal(out[b].Timestamp) {
			return out[a].Timestamp.Before(out[b].Timestamp)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

type notificationRepo struct{ s *Store }

func (r *notificationRepo) Enqueue(ctx context.Context, n *entity.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := cloneNotification(n)
	if cp.Status == "" {
		cp.Status = entity.NotificationStatusPending
	}
	r.s.notifications = append(r.s.notifications, cp)
	onRollback(ctx, func() { r.s.notifications = without(r.s.notifications, cp) })
	return nil
}

func (r *notificationRepo) ListPending(ctx context.Context, limit int) ([]*entity.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*entity.Notification
	for _, n := range r.s.notifications {
		if n.Status != entity.NotificationStatusPending {
			continue
		}
		out = append(out, cloneNotification(n))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *notificationRepo) MarkSent(ctx context.Context, id entity.NotificationID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n := r.s.findNotification(id); n != nil {
		prev := *n
		onRollback(ctx, func() { *n = prev })
		now := time.Now().UTC()
		n.Status = entity.NotificationStatusSent
		n.SentAt = &now
		n.LastError = ""
	}
	return nil
}

func (r *notificationRepo) MarkDelivered(ctx context.Context, id entity.NotificationID, recipients []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n := r.s.findNotification(id); n != nil {
		prev := slices.Clone(n.Delivered)
		onRollback(ctx, func() { n.Delivered = prev })
		for _, rcpt := range recipients {
			if !slices.Contains(n.Delivered, rcpt) {
				n.Delivered = append(n.Delivered, rcpt)
			}
		}
	}
	return nil
}

func (r *notificationRepo) RecordFailure(ctx context.Context, id entity.NotificationID, errMsg string, maxAttempts int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n := r.s.findNotification(id); n != nil {
		prev := *n
		onRollback(ctx, func() { *n = prev })
		n.Attempts++
		n.LastError = errMsg
		if n.Attempts >= maxAttempts {
			n.Status = entity.NotificationStatusFailed
		}
	}
	return nil
}

// findNotification returns the stored row. Callers hold s.mu.
func (s *Store) findNotification(id entity.NotificationID) *entity.Notification {
	for _, n := range s.notifications {
		if n.ID == id {
			return n
		}
	}
	return nil
}

type typeRepo struct{ s *Store }

func (r *typeRepo) Create(ctx context.Context, t *entity.JustificationType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.types[t.Code]; ok {
		return port.ErrDuplicate
	}
	r.s.types[t.Code] = cloneType(t)
	onRollback(ctx, func() { delete(r.s.types, t.Code) })
	return nil
}

func (r *typeRepo) GetByCode(ctx context.Context, code string) (*entity.JustificationType, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.types[code]
	if !ok {
		return nil, nil
	}
	return cloneType(t), nil
}

func (r *typeRepo) List(ctx context.Context) ([]*entity.JustificationType, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.JustificationType, 0, len(r.s.types))
	for _, t := range r.s.types {
		out = append(out, cloneType(t))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Code < out[b].Code })
	return out, nil
}

type templateRepo struct{ s *Store }

func (r *templateRepo) Get(ctx context.Context, key string) (*entity.EmailTemplate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.templates[key]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *templateRepo) List(ctx context.Context) ([]*entity.EmailTemplate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.EmailTemplate, 0, len(r.s.templates))
	for _, t := range r.s.templates {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Key < out[b].Key })
	return out, nil
}

func (r *templateRepo) Upsert(ctx context.Context, t *entity.EmailTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prev, existed := r.s.templates[t.Key]
	cp := *t
	r.s.templates[t.Key] = &cp
	onRollback(ctx, func() {
		if existed {
			r.s.templates[t.Key] = prev
		} else {
			delete(r.s.templates, t.Key)
		}
	})
	return nil
}

func (r *templateRepo) Delete(ctx context.Context, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if prev, ok := r.s.templates[key]; ok {
		delete(r.s.templates, key)
		onRollback(ctx, func() { r.s.templates[key] = prev })
	}
	return nil
}

type userRepo struct{ s *Store }

func (r *userRepo) Upsert(ctx context.Context, u *entity.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prev, existed := r.s.users[u.Email]
	cp := cloneUser(u)
	if existed {
		cp.CreatedAt = prev.CreatedAt
	}
	r.s.users[u.Email] = cp
	onRollback(ctx, func() {
		if existed {
			r.s.users[u.Email] = prev
		} else {
			delete(r.s.users, u.Email)
		}
	})
	return nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[email]
	if !ok {
		return nil, nil
	}
	return cloneUser(u), nil
}

func (r *userRepo) List(ctx context.Context) ([]*entity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*entity.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Email < out[b].Email })
	return out, nil
}

func (r *userRepo) Delete(ctx context.Context, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if prev, ok := r.s.users[email]; ok {
		delete(r.s.users, email)
		onRollback(ctx, func() { r.s.users[email] = prev })
	}
	return nil
}

func (r *userRepo) Count(ctx context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.users), nil
}

var (
	_ port.EmailTemplateRepository     = (*templateRepo)(nil)
	_ port.UserRepository              = (*userRepo)(nil)
	_ port.JustificationRepository     = (*justificationRepo)(nil)
	_ port.ApprovalTaskRepository      = (*taskRepo)(nil)
	_ port.RoutingRuleRepository       = (*ruleRepo)(nil)
	_ port.CommentRepository           = (*commentRepo)(nil)
	_ port.AuditRepository             = (*auditRepo)(nil)
	_ port.NotificationRepository      = (*notificationRepo)(nil)
	_ port.JustificationTypeRepository = (*typeRepo)(nil)
)
