package workflow

import (
	"github.com/garyjia/justifi/internal/domain/entity"
)

// Justification states
const (
	StatePendingApproval = State(entity.JustificationPendingApproval)
	StateNeedsMoreInfo   = State(entity.JustificationNeedsMoreInfo)
	StateApproved        = State(entity.JustificationApproved)
	StateRejected        = State(entity.JustificationRejected)
	StateCancelled       = State(entity.JustificationCancelled)
)

// Task states. NeedsMoreInfo, Approved, Rejected and Cancelled share their
// string values with the justification states above.
const (
	StateTaskPending       = State(entity.TaskPending)
	StateTaskApproved      = State(entity.TaskApproved)
	StateTaskRejected      = State(entity.TaskRejected)
	StateTaskNeedsMoreInfo = State(entity.TaskNeedsMoreInfo)
	StateTaskCancelled     = State(entity.TaskCancelled)
)

var (
	// Justifications reach Approved only through COMPLETE, fired by the
	// engine once the last task is approved.
	Justifications = newJustificationTable()
	Tasks          = newTaskTable()
)

func newJustificationTable() *Table {
	t := NewTable("justification",
		StatePendingApproval, StateNeedsMoreInfo, StateApproved, StateRejected, StateCancelled)

	t.From(StatePendingApproval).
		Permit(TriggerComplete, StateApproved).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerRequestInfo, StateNeedsMoreInfo).
		Permit(TriggerCancel, StateCancelled)

	t.From(StateNeedsMoreInfo).
		Permit(TriggerRequestInfo, StateNeedsMoreInfo).
		Permit(TriggerResubmit, StatePendingApproval).
		Permit(TriggerReject, StateRejected).
		Permit(TriggerComplete, StateApproved).
		Permit(TriggerCancel, StateCancelled)

	return t
}

func newTaskTable() *Table {
	t := NewTable("task",
		StateTaskPending, StateTaskApproved, StateTaskRejected, StateTaskNeedsMoreInfo, StateTaskCancelled)

	t.From(StateTaskPending).
		Permit(TriggerApprove, StateTaskApproved).
		Permit(TriggerReject, StateTaskRejected).
		Permit(TriggerRequestInfo, StateTaskNeedsMoreInfo).
		Permit(TriggerCancel, StateTaskCancelled)

	t.From(StateTaskNeedsMoreInfo).
		Permit(TriggerApprove, StateTaskApproved).
		Permit(TriggerReject, StateTaskRejected).
		Permit(TriggerRequestInfo, StateTaskNeedsMoreInfo).
		Permit(TriggerResubmit, StateTaskPending).
		Permit(TriggerCancel, StateTaskCancelled)

	return t
}

// NextJustificationStatus applies trigger to from. On error from is returned unchanged.
func NextJustificationStatus(from entity.JustificationStatus, trigger Trigger) (entity.JustificationStatus, error) {
	next, err := Justifications.Next(State(from), trigger)
	return entity.JustificationStatus(next), err
}

// NextTaskStatus applies trigger to from. On error from is returned unchanged.
func NextTaskStatus(from entity.TaskStatus, trigger Trigger) (entity.TaskStatus, error) {
	next, err := Tasks.Next(State(from), trigger)
	return entity.TaskStatus(next), err
}
