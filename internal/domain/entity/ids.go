package entity

// Typed identifiers keep a task id from being passed where a justification id is expected.
type (
	JustificationID string
	TaskID          string
	RuleID          string
	CommentID       string
	AuditID         string
	NotificationID  string
)

func (id JustificationID) String() string { return string(id) }
func (id TaskID) String() string          { return string(id) }
func (id RuleID) String() string          { return string(id) }
func (id CommentID) String() string       { return string(id) }
func (id AuditID) String() string         { return string(id) }
func (id NotificationID) String() string  { return string(id) }
