package rerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := Validation("execute_tool", "missing required field %q", "path")
	assert.True(t, Is(err, KindValidation))
	assert.False(t, Is(err, KindTool))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Cache("set", cause, "could not write entry")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestIsAcrossWrappedErrors(t *testing.T) {
	err := Tool("execute_tool", Validation("schema", "bad type"), "tool reported failure")
	assert.True(t, Is(err, KindTool))
}
