package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/justifi/internal/domain/apperr"
	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/internal/domain/event"
	"github.com/garyjia/justifi/pkg/ids"
	"github.com/garyjia/justifi/pkg/utils"
)

// Submit creates the justification and its tasks in one transaction, then
// notifies approvers and requester and records the CREATE entry.
func (e *engineImpl) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	in = normalizeSubmission(in)
	if err := e.validateSubmission(ctx, in); err != nil {
		return nil, err
	}

	route, err := e.resolver.Resolve(ctx, in.Department, in.TypeCode, in.CostEstimate)
	if err != nil {
		e.logger.Error("Failed to resolve approvers", "error", err, "department", in.Department, "type_code", in.TypeCode)
		return nil, apperr.Internal(err, "failed to resolve approvers")
	}

	now := e.now()
	j := &entity.Justification{
		ID:             entity.JustificationID(ids.New()),
		Title:          in.Title,
		TypeCode:       in.TypeCode,
		Department:     in.Department,
		CostCentre:     in.CostCentre,
		RequesterEmail: in.RequesterEmail,
		Urgency:        in.Urgency,
		Description:    in.Description,
		BusinessImpact: in.BusinessImpact,
		Alternatives:   in.Alternatives,
		CostEstimate:   in.CostEstimate,
		RequiredDate:   in.RequiredDate,
		DynamicValues:  in.DynamicValues,
		Attachments:    in.Attachments,
		Status:         entity.JustificationPendingApproval,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	tasks := make([]*entity.ApprovalTask, 0, len(route.Approvers))
	for i, approver := range route.Approvers {
		tasks = append(tasks, &entity.ApprovalTask{
			ID:              entity.TaskID(ids.New()),
			JustificationID: j.ID,
			ApproverEmail:   approver,
			StepIndex:       i,
			Status:          entity.TaskPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.justifications.Create(txCtx, j); err != nil {
			return fmt.Errorf("failed to create justification: %w", err)
		}
		if len(tasks) == 0 {
			return nil
		}
		if err := e.tasks.CreateBatch(txCtx, tasks); err != nil {
			return fmt.Errorf("failed to create approval tasks: %w", err)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("Failed to submit justification", "error", err, "requester", in.RequesterEmail)
		return nil, apperr.Internal(err, "failed to submit justification")
	}

	side := sideEffects(ctx)

	details := map[string]any{
		"title":          j.Title,
		"approver_count": len(tasks),
	}
	if route.Rule != nil {
		details["rule_id"] = route.Rule.ID.String()
		details["rule_name"] = route.Rule.Name
		details["tier"] = route.Tier
	}

	if len(tasks) > 0 {
		e.notifier.Notify(side, route.Approvers, approvalRequestMessage(j))
	} else {
		e.logger.Info("Justification submitted without approvers", "justification_id", j.ID, "department", j.Department, "type_code", j.TypeCode)
	}
	e.notifier.Notify(side, []string{j.RequesterEmail}, submittedMessage(j))
	e.record(side, j.ID, entity.ActionCreate, j.RequesterEmail, details)
	e.emit(side, event.TypeJustificationSubmitted, j.ID, map[string]interface{}{
		"approver_count":   len(tasks),
		event.PayloadActor: j.RequesterEmail,
	})

	e.logger.Info("Justification submitted",
		"justification_id", j.ID,
		"approver_count", len(tasks),
	)

	return &SubmitResult{Justification: j, Tasks: tasks, Rule: route.Rule}, nil
}

func normalizeSubmission(in SubmitInput) SubmitInput {
	in.Title = strings.TrimSpace(utils.SanitizeString(in.Title))
	in.TypeCode = strings.TrimSpace(in.TypeCode)
	in.Department = strings.TrimSpace(in.Department)
	in.CostCentre = strings.TrimSpace(in.CostCentre)
	in.RequesterEmail = strings.TrimSpace(in.RequesterEmail)
	in.Urgency = strings.TrimSpace(in.Urgency)
	in.Description = utils.SanitizeString(in.Description)
	if in.DynamicValues == nil {
		in.DynamicValues = map[string]any{}
	}
	if in.Attachments == nil {
		in.Attachments = []entity.Attachment{}
	}
	return in
}

func (e *engineImpl) validateSubmission(ctx context.Context, in SubmitInput) error {
	required := []struct {
		field, value string
	}{
		{"title", in.Title},
		{"type_code", in.TypeCode},
		{"department", in.Department},
		{"cost_centre", in.CostCentre},
		{"requester_email", in.RequesterEmail},
		{"urgency", in.Urgency},
		{"description", strings.TrimSpace(in.Description)},
	}
	for _, r := range required {
		if r.value == "" {
			return apperr.InvalidArgument("%s is required", r.field)
		}
	}

	if err := utils.ValidateEmail(in.RequesterEmail); err != nil {
		return apperr.InvalidArgument("requester_email: %v", err)
	}
	if in.CostEstimate != nil {
		if err := utils.ValidateAmount(*in.CostEstimate); err != nil {
			return apperr.InvalidArgument("cost_estimate: %v", err)
		}
	}
	for i, a := range in.Attachments {
		if strings.TrimSpace(a.URL) == "" {
			return apperr.InvalidArgument("attachments[%d].url is required", i)
		}
	}

	if e.types == nil {
		return nil
	}
	jt, err := e.types.GetByCode(ctx, in.TypeCode)
	if err != nil {
		return apperr.Internal(err, "failed to load justification type %s", in.TypeCode)
	}
	if jt == nil {
		return nil
	}
	if err := jt.ValidateValues(in.DynamicValues); err != nil {
		return apperr.InvalidArgument("%v", err)
	}
	return nil
}
