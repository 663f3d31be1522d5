package workflow

import (
	"fmt"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
)

// Notification subjects used when no template override is stored
const (
	SubjectApprovalRequest = "New approval request"
	SubjectSubmitted       = "Submission received"
	SubjectFinalApproval   = "Final approval"
	SubjectRejected        = "Rejected"
	SubjectMoreInfo        = "More information requested"
	SubjectResubmitted     = "Resubmitted"
	SubjectCancelled       = "Justification cancelled"
)

func message(key, subject, body string, j *entity.Justification, reason string) port.Message {
	return port.Message{
		Template: key,
		Subject:  subject,
		Body:     body,
		Data: port.MessageData{
			JustificationID: j.ID.String(),
			Title:           j.Title,
			RequesterEmail:  j.RequesterEmail,
			Reason:          reason,
		},
	}
}

func approvalRequestMessage(j *entity.Justification) port.Message {
	return message(entity.TemplateApprovalRequest, SubjectApprovalRequest,
		fmt.Sprintf("Justification %s requires your approval.", j.Title), j, "")
}

func submittedMessage(j *entity.Justification) port.Message {
	return message(entity.TemplateSubmitted, SubjectSubmitted,
		fmt.Sprintf("Your justification '%s' has been submitted.", j.Title), j, "")
}

func finalApprovalMessage(j *entity.Justification) port.Message {
	return message(entity.TemplateFinalApproval, SubjectFinalApproval,
		fmt.Sprintf("Your justification '%s' is approved.", j.Title), j, "")
}

func rejectedMessage(j *entity.Justification, reason string) port.Message {
	return message(entity.TemplateRejected, SubjectRejected,
		fmt.Sprintf("Your justification '%s' was rejected. Reason: %s", j.Title, reason), j, reason)
}

func moreInfoMessage(j *entity.Justification, reason string) port.Message {
	return message(entity.TemplateMoreInfo, SubjectMoreInfo,
		fmt.Sprintf("Approver requested more info: %s", reason), j, reason)
}

func resubmittedMessage(j *entity.Justification) port.Message {
	return message(entity.TemplateResubmitted, SubjectResubmitted,
		"Your justification was resubmitted.", j, "")
}

func cancelledMessage(j *entity.Justification, reason string) port.Message {
	body := fmt.Sprintf("Justification %s was withdrawn by the requester.", j.Title)
	if reason != "" {
		body = fmt.Sprintf("Justification %s was withdrawn by the requester. Reason: %s", j.Title, reason)
	}
	return message(entity.TemplateCancelled, SubjectCancelled, body, j, reason)
}
