package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/apperr"
	"github.com/garyjia/justifi/internal/domain/entity"
	domainwf "github.com/garyjia/justifi/internal/domain/workflow"
)

// lockedTask loads a task, takes its justification's lock and reloads the task
// under it. The caller must invoke the returned unlock func.
func (e *engineImpl) lockedTask(ctx context.Context, id entity.TaskID) (*entity.ApprovalTask, func(), error) {
	task, err := e.loadTask(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	unlock := e.locks.Lock(task.JustificationID.String())

	task, err = e.loadTask(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return task, unlock, nil
}

// openJustification loads the task's justification and refuses closed ones.
func (e *engineImpl) openJustification(ctx context.Context, task *entity.ApprovalTask) (*entity.Justification, error) {
	j, err := e.loadJustification(ctx, task.JustificationID)
	if err != nil {
		return nil, err
	}
	if j.Status.IsClosed() {
		return nil, apperr.Conflict(nil, "justification %s is already %s", j.ID, j.Status)
	}
	return j, nil
}

// Approve approves one task. When no task of the justification remains
// unapproved the justification moves to Approved with a compare-and-set, so
// the final transition and its notification happen at most once.
func (e *engineImpl) Approve(ctx context.Context, taskID entity.TaskID, actor, comment string) error {
	actor = strings.TrimSpace(actor)
	comment = strings.TrimSpace(comment)
	if actor == "" {
		return apperr.InvalidArgument("actor_email is required")
	}

	task, unlock, err := e.lockedTask(ctx, taskID)
	if err != nil {
		return err
	}
	defer unlock()

	if task.Status == entity.TaskApproved {
		e.logger.Info("Task already approved", "task_id", task.ID, "actor", actor)
		return nil
	}

	j, err := e.openJustification(ctx, task)
	if err != nil {
		return err
	}

	next, err := domainwf.NextTaskStatus(task.Status, domainwf.TriggerApprove)
	if err != nil {
		return transitionError(err, "cannot approve task %s in status %s", task.ID, task.Status)
	}

	completed := false
	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		change := port.TaskChange{Status: next, DecisionComment: &comment, ActedBy: actor}
		if err := e.tasks.Transition(txCtx, task.ID, task.Status, change); err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}

		remaining, err := e.tasks.CountNotInStatus(txCtx, j.ID, entity.TaskApproved)
		if err != nil {
			return fmt.Errorf("failed to count open tasks: %w", err)
		}
		if remaining > 0 {
			return nil
		}

		final, err := domainwf.NextJustificationStatus(j.Status, domainwf.TriggerComplete)
		if err != nil {
			return transitionError(err, "cannot complete justification %s in status %s", j.ID, j.Status)
		}
		if err := e.justifications.UpdateStatus(txCtx, j.ID, j.Version, final); err != nil {
			return fmt.Errorf("failed to complete justification: %w", err)
		}
		completed = true
		return nil
	})
	if err != nil {
		e.logger.Error("Failed to approve task", "error", err, "task_id", task.ID, "justification_id", j.ID)
		return storeError(err, "failed to approve task %s", task.ID)
	}

	side := sideEffects(ctx)
	e.record(side, j.ID, entity.ActionApprove, actor, map[string]any{
		"task_id":    task.ID.String(),
		"comment":    comment,
		"step_index": task.StepIndex,
	})
	e.emitTaskChange(side, task, next, actor)

	if completed {
		e.notifier.Notify(side, []string{j.RequesterEmail}, finalApprovalMessage(j))
		e.emitStatusChange(side, j.ID, j.Status, entity.JustificationApproved, actor)
		e.logger.Info("Justification approved", "justification_id", j.ID, "final_actor", actor)
	}

	return nil
}

// Reject rejects the task and the whole justification regardless of other tasks.
func (e *engineImpl) Reject(ctx context.Context, taskID entity.TaskID, actor, reason string) error {
	actor = strings.TrimSpace(actor)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperr.InvalidArgument("rejection requires a reason")
	}
	if actor == "" {
		return apperr.InvalidArgument("actor_email is required")
	}

	task, unlock, err := e.lockedTask(ctx, taskID)
	if err != nil {
		return err
	}
	defer unlock()

	if task.Status == entity.TaskRejected {
		e.logger.Info("Task already rejected", "task_id", task.ID, "actor", actor)
		return nil
	}

	j, err := e.openJustification(ctx, task)
	if err != nil {
		return err
	}

	nextTask, err := domainwf.NextTaskStatus(task.Status, domainwf.TriggerReject)
	if err != nil {
		return transitionError(err, "cannot reject task %s in status %s", task.ID, task.Status)
	}
	nextJ, err := domainwf.NextJustificationStatus(j.Status, domainwf.TriggerReject)
	if err != nil {
		return transitionError(err, "cannot reject justification %s in status %s", j.ID, j.Status)
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		change := port.TaskChange{Status: nextTask, DecisionComment: &reason, ActedBy: actor}
		if err := e.tasks.Transition(txCtx, task.ID, task.Status, change); err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		if err := e.justifications.UpdateStatus(txCtx, j.ID, j.Version, nextJ); err != nil {
			return fmt.Errorf("failed to reject justification: %w", err)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("Failed to reject task", "error", err, "task_id", task.ID, "justification_id", j.ID)
		return storeError(err, "failed to reject task %s", task.ID)
	}

	side := sideEffects(ctx)
	e.record(side, j.ID, entity.ActionReject, actor, map[string]any{
		"task_id": task.ID.String(),
		"comment": reason,
	})
	e.notifier.Notify(side, []string{j.RequesterEmail}, rejectedMessage(j, reason))
	e.emitTaskChange(side, task, nextTask, actor)
	e.emitStatusChange(side, j.ID, j.Status, nextJ, actor)

	return nil
}

// RequestInfo parks the task and its justification until the requester resubmits.
// Other tasks keep their status.
func (e *engineImpl) RequestInfo(ctx context.Context, taskID entity.TaskID, actor, reason string) error {
	actor = strings.TrimSpace(actor)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperr.InvalidArgument("reason is required")
	}
	if actor == "" {
		return apperr.InvalidArgument("actor_email is required")
	}

	task, unlock, err := e.lockedTask(ctx, taskID)
	if err != nil {
		return err
	}
	defer unlock()

	j, err := e.openJustification(ctx, task)
	if err != nil {
		return err
	}

	nextTask, err := domainwf.NextTaskStatus(task.Status, domainwf.TriggerRequestInfo)
	if err != nil {
		return transitionError(err, "cannot request info on task %s in status %s", task.ID, task.Status)
	}
	nextJ, err := domainwf.NextJustificationStatus(j.Status, domainwf.TriggerRequestInfo)
	if err != nil {
		return transitionError(err, "cannot request info on justification %s in status %s", j.ID, j.Status)
	}

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		change := port.TaskChange{Status: nextTask, MoreInfoReason: &reason, ActedBy: actor}
		if err := e.tasks.Transition(txCtx, task.ID, task.Status, change); err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}
		if err := e.justifications.UpdateStatus(txCtx, j.ID, j.Version, nextJ); err != nil {
			return fmt.Errorf("failed to update justification: %w", err)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("Failed to request info", "error", err, "task_id", task.ID, "justification_id", j.ID)
		return storeError(err, "failed to request info on task %s", task.ID)
	}

	side := sideEffects(ctx)
	e.notifier.Notify(side, []string{j.RequesterEmail}, moreInfoMessage(j, reason))
	e.record(side, j.ID, entity.ActionRequestInfo, actor, map[string]any{
		"task_id": task.ID.String(),
		"reason":  reason,
	})
	e.emitTaskChange(side, task, nextTask, actor)
	if nextJ != j.Status {
		e.emitStatusChange(side, j.ID, j.Status, nextJ, actor)
	}

	return nil
}
