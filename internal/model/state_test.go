package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateFromPlatform(t *testing.T) {
	cases := map[string]State{
		"Pending":    PendingState,
		"InProgress": InProgressState,
		"Completed":  CompletedState,
		"Failed":     FailedState,
		"Stopping":   StoppingState,
		"Stopped":    StoppedState,
	}
	for status, expected := range cases {
		state, err := StateFromPlatform(status)
		require.NoError(t, err)
		assert.Equal(t, expected, state)
	}

	_, err := StateFromPlatform("Exploded")
	assert.Error(t, err)
}

func TestTerminal(t *testing.T) {
	assert.True(t, CompletedState.Terminal())
	assert.True(t, FailedState.Terminal())
	assert.True(t, StoppedState.Terminal())
	assert.False(t, InProgressState.Terminal())
	assert.False(t, StoppingState.Terminal())
	assert.False(t, PendingState.Terminal())
}
