package workflow

import "errors"

// ErrInvalidTransition means the trigger has no edge out of the current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrInvalidState means a stored status is not part of the table.
var ErrInvalidState = errors.New("invalid state")
