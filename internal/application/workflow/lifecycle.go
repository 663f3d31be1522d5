package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/justifi/internal/domain/apperr"
	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/internal/domain/event"
	domainwf "github.com/garyjia/justifi/internal/domain/workflow"
	"github.com/garyjia/justifi/pkg/ids"
	"github.com/garyjia/justifi/pkg/utils"
)

// lockedJustification takes the justification's lock and loads it under the lock.
func (e *engineImpl) lockedJustification(ctx context.Context, id entity.JustificationID) (*entity.Justification, func(), error) {
	unlock := e.locks.Lock(id.String())
	j, err := e.loadJustification(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return j, unlock, nil
}

// Resubmit moves a NeedsMoreInfo justification back to PendingApproval and
// reopens only the tasks that were waiting on more information.
func (e *engineImpl) Resubmit(ctx context.Context, id entity.JustificationID, actor, message string) error {
	actor = strings.TrimSpace(actor)
	message = strings.TrimSpace(message)
	if actor == "" {
		return apperr.InvalidArgument("actor_email is required")
	}

	j, unlock, err := e.lockedJustification(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	next, err := domainwf.NextJustificationStatus(j.Status, domainwf.TriggerResubmit)
	if err != nil {
		return transitionError(err, "cannot resubmit justification %s in status %s", j.ID, j.Status)
	}

	var reopened int64
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.justifications.UpdateStatus(txCtx, j.ID, j.Version, next); err != nil {
			return fmt.Errorf("failed to update justification: %w", err)
		}
		n, err := e.tasks.TransitionWhere(txCtx, j.ID, entity.TaskNeedsMoreInfo, entity.TaskPending)
		if err != nil {
			return fmt.Errorf("failed to reopen tasks: %w", err)
		}
		reopened = n
		return nil
	})
	if err != nil {
		e.logger.Error("Failed to resubmit justification", "error", err, "justification_id", j.ID)
		return storeError(err, "failed to resubmit justification %s", j.ID)
	}

	side := sideEffects(ctx)
	e.record(side, j.ID, entity.ActionResubmit, actor, map[string]any{
		"message":        message,
		"reopened_tasks": reopened,
	})
	e.notifier.Notify(side, []string{actor}, resubmittedMessage(j))
	e.emitStatusChange(side, j.ID, j.Status, next, actor)

	return nil
}

// Cancel withdraws an open justification and cancels its open tasks.
func (e *engineImpl) Cancel(ctx context.Context, id entity.JustificationID, actor, reason string) error {
	actor = strings.TrimSpace(actor)
	reason = strings.TrimSpace(reason)
	if actor == "" {
		return apperr.InvalidArgument("actor_email is required")
	}

	j, unlock, err := e.lockedJustification(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if !strings.EqualFold(actor, j.RequesterEmail) {
		return apperr.Conflict(nil, "only the requester can cancel justification %s", j.ID)
	}

	next, err := domainwf.NextJustificationStatus(j.Status, domainwf.TriggerCancel)
	if err != nil {
		return transitionError(err, "cannot cancel justification %s in status %s", j.ID, j.Status)
	}

	tasks, err := e.tasks.ListByJustification(ctx, j.ID)
	if err != nil {
		return apperr.Internal(err, "failed to load tasks of justification %s", j.ID)
	}
	var waiting []string
	for _, t := range tasks {
		if t.Status.IsOpen() {
			waiting = append(waiting, t.ApproverEmail)
		}
	}

	var cancelled int64
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.justifications.UpdateStatus(txCtx, j.ID, j.Version, next); err != nil {
			return fmt.Errorf("failed to cancel justification: %w", err)
		}
		for _, from := range []entity.TaskStatus{entity.TaskPending, entity.TaskNeedsMoreInfo} {
			n, err := e.tasks.TransitionWhere(txCtx, j.ID, from, entity.TaskCancelled)
			if err != nil {
				return fmt.Errorf("failed to cancel %s tasks: %w", from, err)
			}
			cancelled += n
		}
		return nil
	})
	if err != nil {
		e.logger.Error("Failed to cancel justification", "error", err, "justification_id", j.ID)
		return storeError(err, "failed to cancel justification %s", j.ID)
	}

	side := sideEffects(ctx)
	e.record(side, j.ID, entity.ActionCancel, actor, map[string]any{
		"reason":          reason,
		"cancelled_tasks": cancelled,
	})
	if len(waiting) > 0 {
		e.notifier.Notify(side, waiting, cancelledMessage(j, reason))
	}
	e.emitStatusChange(side, j.ID, j.Status, next, actor)

	return nil
}

// AddComment appends a comment. Comments are allowed in every status.
func (e *engineImpl) AddComment(ctx context.Context, id entity.JustificationID, author, message string, internal bool) (*entity.Comment, error) {
	author = strings.TrimSpace(author)
	message = strings.TrimSpace(utils.SanitizeString(message))
	if author == "" {
		return nil, apperr.InvalidArgument("author_email is required")
	}
	if message == "" {
		return nil, apperr.InvalidArgument("message is required")
	}

	j, err := e.loadJustification(ctx, id)
	if err != nil {
		return nil, err
	}

	c := &entity.Comment{
		ID:              entity.CommentID(ids.New()),
		JustificationID: j.ID,
		AuthorEmail:     author,
		Message:         message,
		IsInternal:      internal,
		CreatedAt:       e.now(),
	}
	if err := e.comments.Create(ctx, c); err != nil {
		e.logger.Error("Failed to add comment", "error", err, "justification_id", j.ID)
		return nil, apperr.Internal(err, "failed to add comment")
	}

	side := sideEffects(ctx)
	e.record(side, j.ID, entity.ActionComment, author, map[string]any{
		"comment_id":  c.ID.String(),
		"is_internal": internal,
	})
	e.emit(side, event.TypeCommentAdded, j.ID, map[string]interface{}{
		"comment_id":       c.ID.String(),
		event.PayloadActor: author,
	})

	return c, nil
}
