package entity

import "time"

// RoutingRule maps a department/type/spend combination to an ordered approver chain.
// Nil Department or TypeCode means the rule does not constrain that field.
type RoutingRule struct {
	ID             RuleID    `json:"id"`
	Name           string    `json:"name"`
	Department     *string   `json:"department,omitempty"`
	TypeCode       *string   `json:"type_code,omitempty"`
	SpendThreshold *float64  `json:"spend_threshold,omitempty"`
	ApproverEmails []string  `json:"approver_emails"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AcceptsSpend reports whether spend clears the rule's threshold.
// A rule without a threshold accepts any amount.
func (r *RoutingRule) AcceptsSpend(spend float64) bool {
	if r.SpendThreshold == nil {
		return true
	}
	return spend >= *r.SpendThreshold
}
