package workflow

import (
	"context"

	"github.com/garyjia/justifi/internal/domain/entity"
)

// Engine owns the justification and approval-task lifecycles.
// Every mutating call writes exactly one audit entry, except the idempotent
// re-approve and re-reject of a task which write nothing.
type Engine interface {
	// Submit creates a justification, routes it and materialises its approval tasks
	Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error)

	// Approve marks a task approved and completes the justification once no task is left unapproved
	Approve(ctx context.Context, taskID entity.TaskID, actor, comment string) error

	// Reject rejects a task and with it the whole justification. reason is required.
	Reject(ctx context.Context, taskID entity.TaskID, actor, reason string) error

	// RequestInfo parks a task and its justification in NeedsMoreInfo. reason is required.
	RequestInfo(ctx context.Context, taskID entity.TaskID, actor, reason string) error

	// Resubmit returns a NeedsMoreInfo justification and its parked tasks to pending
	Resubmit(ctx context.Context, id entity.JustificationID, actor, message string) error

	// Cancel withdraws an open justification. Only the requester may cancel.
	Cancel(ctx context.Context, id entity.JustificationID, actor, reason string) error

	// AddComment appends a comment to an existing justification
	AddComment(ctx context.Context, id entity.JustificationID, author, message string, internal bool) (*entity.Comment, error)
}

// SubmitInput carries the requester's form.
type SubmitInput struct {
	Title          string
	TypeCode       string
	Department     string
	CostCentre     string
	RequesterEmail string
	Urgency        string
	Description    string
	BusinessImpact string
	Alternatives   string
	CostEstimate   *float64
	RequiredDate   string
	DynamicValues  map[string]any
	Attachments    []entity.Attachment
}

// SubmitResult is the stored justification, its tasks and the rule that routed it.
type SubmitResult struct {
	Justification *entity.Justification
	Tasks         []*entity.ApprovalTask
	Rule          *entity.RoutingRule
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
