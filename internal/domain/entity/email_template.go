package entity

import (
	"slices"
	"time"
)

// Email template keys, one per workflow notification
const (
	TemplateApprovalRequest = "approval_request"
	TemplateSubmitted       = "submitted"
	TemplateFinalApproval   = "final_approval"
	TemplateRejected        = "rejected"
	TemplateMoreInfo        = "more_info"
	TemplateResubmitted     = "resubmitted"
	TemplateCancelled       = "cancelled"
)

var templateKeys = []string{
	TemplateApprovalRequest,
	TemplateSubmitted,
	TemplateFinalApproval,
	TemplateRejected,
	TemplateMoreInfo,
	TemplateResubmitted,
	TemplateCancelled,
}

// TemplateKeys returns every template key in workflow order
func TemplateKeys() []string {
	return slices.Clone(templateKeys)
}

// IsValidTemplateKey reports whether key names a workflow notification
func IsValidTemplateKey(key string) bool {
	return slices.Contains(templateKeys, key)
}

// EmailTemplate overrides the subject and body of one workflow notification.
// Subject and HTML are text/template sources executed against the
// notification's fields (Title, Reason, JustificationID).
type EmailTemplate struct {
	Key       string    `json:"key"`
	Subject   string    `json:"subject"`
	HTML      string    `json:"html"`
	UpdatedAt time.Time `json:"updated_at"`
}
