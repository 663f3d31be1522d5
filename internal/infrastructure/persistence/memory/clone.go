package memory

import (
	"maps"

	"github.com/garyjia/justifi/internal/domain/entity"
)

func cloneJustification(j *entity.Justification) *entity.Justification {
	cp := *j
	if j.CostEstimate != nil {
		v := *j.CostEstimate
		cp.CostEstimate = &v
	}
	cp.DynamicValues = maps.Clone(j.DynamicValues)
	if cp.DynamicValues == nil {
		cp.DynamicValues = map[string]any{}
	}
	cp.Attachments = append([]entity.Attachment{}, j.Attachments...)
	return &cp
}

func cloneTask(t *entity.ApprovalTask) *entity.ApprovalTask {
	cp := *t
	return &cp
}

func cloneRule(r *entity.RoutingRule) *entity.RoutingRule {
	cp := *r
	cp.Department = cloneString(r.Department)
	cp.TypeCode = cloneString(r.TypeCode)
	if r.SpendThreshold != nil {
		v := *r.SpendThreshold
		cp.SpendThreshold = &v
	}
	cp.ApproverEmails = append([]string{}, r.ApproverEmails...)
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneComment(c *entity.Comment) *entity.Comment {
	cp := *c
	return &cp
}

func cloneAudit(a *entity.AuditLog) *entity.AuditLog {
	cp := *a
	cp.Details = maps.Clone(a.Details)
	if cp.Details == nil {
		cp.Details = map[string]any{}
	}
	return &cp
}

func cloneNotification(n *entity.Notification) *entity.Notification {
	cp := *n
	cp.Recipients = append([]string{}, n.Recipients...)
	cp.Delivered = append([]string(nil), n.Delivered...)
	if n.SentAt != nil {
		v := *n.SentAt
		cp.SentAt = &v
	}
	return &cp
}

func cloneType(t *entity.JustificationType) *entity.JustificationType {
	cp := *t
	cp.DynamicFields = make([]entity.DynamicField, len(t.DynamicFields))
	for i, f := range t.DynamicFields {
		f.Options = append([]string(nil), f.Options...)
		cp.DynamicFields[i] = f
	}
	return &cp
}

func cloneUser(u *entity.User) *entity.User {
	cp := *u
	if u.Department != nil {
		v := *u.Department
		cp.Department = &v
	}
	return &cp
}
