package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTransition(t *testing.T) {
	assert.NoError(t, ValidateTransition(StateInitializing, StateRunning))
	assert.NoError(t, ValidateTransition(StateRunning, StateStopping))
	assert.NoError(t, ValidateTransition(StateStopping, StateStopped))
	assert.NoError(t, ValidateTransition(StateError, StateStopping))

	assert.Error(t, ValidateTransition(StateStopped, StateRunning))
	assert.Error(t, ValidateTransition(StateRunning, StateInitializing))
	assert.Error(t, ValidateTransition(SystemState(42), StateRunning))
}

func TestSystemState_String(t *testing.T) {
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "UNKNOWN", SystemState(42).String())
}
