package workflow

// Trigger is an action fired against a state.
type Trigger string

const (
	TriggerApprove     Trigger = "APPROVE"
	TriggerReject      Trigger = "REJECT"
	TriggerRequestInfo Trigger = "REQUEST_INFO"
	TriggerResubmit    Trigger = "RESUBMIT"
	TriggerCancel      Trigger = "CANCEL"

	// TriggerComplete fires on a justification once every task is approved.
	TriggerComplete Trigger = "COMPLETE"
)

func (t Trigger) String() string {
	return string(t)
}
