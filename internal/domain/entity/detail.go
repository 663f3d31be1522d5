package entity

// JustificationDetail is a justification with its tasks, comments and audit trail.
type JustificationDetail struct {
	Justification *Justification  `json:"justification"`
	Tasks         []*ApprovalTask `json:"approval_tasks"`
	Comments      []*Comment      `json:"comments"`
	Audit         []*AuditLog     `json:"audit"`
}

// InboxItem pairs an approver's next actionable task with its justification.
type InboxItem struct {
	Task          *ApprovalTask  `json:"task"`
	Justification *Justification `json:"justification"`
}
