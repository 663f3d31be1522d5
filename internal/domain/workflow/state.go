// Package workflow holds the justification and approval-task transition
// tables. It has no storage or clock of its own.
package workflow

// State is a node in a transition table.
type State string

func (s State) String() string {
	return string(s)
}
