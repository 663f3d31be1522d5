package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("version mismatch")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("task", "t-1"), KindNotFound},
		{"invalid argument", InvalidArgument("reason is required"), KindInvalidArgument},
		{"conflict", Conflict(cause, "justification changed"), KindConflict},
		{"wrapped conflict", fmt.Errorf("approve: %w", Conflict(nil, "closed")), KindConflict},
		{"plain error", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError_MessageAndUnwrap(t *testing.T) {
	cause := errors.New("version mismatch")
	err := Conflict(cause, "justification %s changed", "j-1")

	assert.Equal(t, "justification j-1 changed: version mismatch", err.Error())
	assert.True(t, errors.Is(err, cause))

	assert.Equal(t, "task t-9 not found", NotFound("task", "t-9").Error())
}

func TestIsHelpers(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("rule", "r")))
	assert.False(t, IsNotFound(nil))
	assert.True(t, IsInvalidArgument(InvalidArgument("x")))
	assert.True(t, IsConflict(Conflict(nil, "x")))
	assert.False(t, IsConflict(errors.New("x")))
}
