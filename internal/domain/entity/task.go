package entity

import "time"

// ApprovalTask is one approver's step for a justification.
// Tasks are created in one batch at submission with step indices 0..N-1.
type ApprovalTask struct {
	ID              TaskID          `json:"id"`
	JustificationID JustificationID `json:"justification_id"`
	ApproverEmail   string          `json:"approver_email"`
	StepIndex       int             `json:"step_index"`
	Status          TaskStatus      `json:"status"`

	// MoreInfoReason holds the approver's most recent request for information.
	MoreInfoReason string `json:"requested_more_info,omitempty"`

	DecisionComment string `json:"decision_comment,omitempty"`
	ActedBy         string `json:"acted_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
