package system

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidTransitions(t *testing.T) {
	valid := []struct{ from, to SystemState }{
		{StateInitializing, StateRunning},
		{StateInitializing, StateError},
		{StateRunning, StateStopping},
		{StateRunning, StateError},
		{StateStopping, StateStopped},
		{StateStopped, StateInitializing},
		{StateError, StateInitializing},
		{StateError, StateStopped},
	}
	for _, tc := range valid {
		require.NoError(t, ValidateTransition(tc.from, tc.to),
			"%s -> %s should be valid", tc.from, tc.to)
	}
}

func TestInvalidTransitions(t *testing.T) {
	invalid := []struct{ from, to SystemState }{
		{StateInitializing, StateStopped},
		{StateRunning, StateInitializing},
		{StateStopping, StateRunning},
		{StateStopped, StateRunning},
	}
	for _, tc := range invalid {
		require.Error(t, ValidateTransition(tc.from, tc.to),
			"%s -> %s should be rejected", tc.from, tc.to)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "RUNNING", StateRunning.String())
	assert.Equal(t, "UNKNOWN", SystemState(99).String())
}
