package runstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchops/runcore/internal/model"
)

func TestValidateTransition_SameStateAlwaysAllowed(t *testing.T) {
	for _, s := range []model.RunStatus{
		model.RunStatusCreated, model.RunStatusQueued, model.RunStatusRunning,
		model.RunStatusBlocked, model.RunStatusFailed, model.RunStatusSucceeded,
		model.RunStatusCanceled,
	} {
		assert.NoError(t, ValidateTransition(s, s))
	}
}

func TestValidateTransition_AllowedPaths(t *testing.T) {
	cases := []struct{ from, to model.RunStatus }{
		{model.RunStatusCreated, model.RunStatusQueued},
		{model.RunStatusCreated, model.RunStatusCanceled},
		{model.RunStatusQueued, model.RunStatusRunning},
		{model.RunStatusQueued, model.RunStatusCanceled},
		{model.RunStatusRunning, model.RunStatusBlocked},
		{model.RunStatusRunning, model.RunStatusFailed},
		{model.RunStatusRunning, model.RunStatusSucceeded},
		{model.RunStatusRunning, model.RunStatusCanceled},
		{model.RunStatusBlocked, model.RunStatusRunning},
		{model.RunStatusBlocked, model.RunStatusFailed},
		{model.RunStatusBlocked, model.RunStatusCanceled},
		{model.RunStatusFailed, model.RunStatusQueued},
	}
	for _, c := range cases {
		assert.NoError(t, ValidateTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestValidateTransition_IllegalPaths(t *testing.T) {
	cases := []struct{ from, to model.RunStatus }{
		{model.RunStatusCreated, model.RunStatusRunning},
		{model.RunStatusCreated, model.RunStatusFailed},
		{model.RunStatusQueued, model.RunStatusBlocked},
		{model.RunStatusRunning, model.RunStatusQueued},
		{model.RunStatusBlocked, model.RunStatusQueued},
		{model.RunStatusFailed, model.RunStatusRunning},
		{model.RunStatusFailed, model.RunStatusCanceled},
		{model.RunStatusSucceeded, model.RunStatusQueued},
		{model.RunStatusCanceled, model.RunStatusQueued},
	}
	for _, c := range cases {
		err := ValidateTransition(c.from, c.to)
		require.Error(t, err, "%s -> %s should be illegal", c.from, c.to)
		var illegal *IllegalTransitionError
		assert.ErrorAs(t, err, &illegal)
	}
}

func TestTerminalStates_FailedIsNotTerminal(t *testing.T) {
	// failed is retryable via an explicit transition, so it must not be in
	// TerminalStates even though it has no other outgoing transitions.
	assert.False(t, TerminalStates[model.RunStatusFailed])
	assert.True(t, TerminalStates[model.RunStatusSucceeded])
	assert.True(t, TerminalStates[model.RunStatusCanceled])
}
