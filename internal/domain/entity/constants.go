package entity

// JustificationStatus is the overall state of a justification.
type JustificationStatus string

// Justification status constants
const (
	JustificationPendingApproval JustificationStatus = "PendingApproval"
	JustificationNeedsMoreInfo   JustificationStatus = "NeedsMoreInfo"
	JustificationApproved        JustificationStatus = "Approved"
	JustificationRejected        JustificationStatus = "Rejected"
	JustificationCancelled       JustificationStatus = "Cancelled"
)

// IsValid reports whether s is a known justification status.
func (s JustificationStatus) IsValid() bool {
	switch s {
	case JustificationPendingApproval, JustificationNeedsMoreInfo,
		JustificationApproved, JustificationRejected, JustificationCancelled:
		return true
	}
	return false
}

// IsClosed reports whether no further approver action is possible.
func (s JustificationStatus) IsClosed() bool {
	return s == JustificationApproved || s == JustificationRejected || s == JustificationCancelled
}

// TaskStatus is the state of a single approval step.
type TaskStatus string

// Task status constants
const (
	TaskPending       TaskStatus = "Pending"
	TaskApproved      TaskStatus = "Approved"
	TaskRejected      TaskStatus = "Rejected"
	TaskNeedsMoreInfo TaskStatus = "NeedsMoreInfo"
	TaskCancelled     TaskStatus = "Cancelled"
)

// IsOpen reports whether the task still awaits its approver.
func (s TaskStatus) IsOpen() bool {
	return s == TaskPending || s == TaskNeedsMoreInfo
}

// Audit action tags
const (
	ActionCreate      = "CREATE"
	ActionApprove     = "APPROVE"
	ActionReject      = "REJECT"
	ActionRequestInfo = "REQUEST_INFO"
	ActionResubmit    = "RESUBMIT"
	ActionComment     = "COMMENT"
	ActionCancel      = "CANCEL"
)

// EntityJustification is the audit entity type for justification records.
const EntityJustification = "justification"

// Notification status constants
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)
