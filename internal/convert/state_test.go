package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionValidPath(t *testing.T) {
	t.Parallel()

	state := StatePlanned
	steps := []struct {
		event Event
		want  ConversionState
	}{
		{EventStage, StateStaged},
		{EventEncode, StateEncoded},
		{EventVerify, StateVerified},
		{EventPublish, StatePublished},
		{EventReconcile, StateReconciled},
	}

	for _, step := range steps {
		next, err := state.Transition(step.event)
		require.NoError(t, err)
		assert.Equal(t, step.want, next)
		state = next
	}
}

func TestTransitionSkipVerifyGoesStraightToPublished(t *testing.T) {
	t.Parallel()

	next, err := StateEncoded.Transition(EventSkipVerify)
	require.NoError(t, err)
	assert.Equal(t, StatePublished, next)
}

func TestTransitionFailReachableFromEveryNonTerminalState(t *testing.T) {
	t.Parallel()

	for _, s := range []ConversionState{StatePlanned, StateStaged, StateEncoded, StateVerified, StatePublished} {
		next, err := s.Transition(EventFail)
		require.NoError(t, err, "state %s should accept fail", s)
		assert.Equal(t, StateFailed, next)
	}
}

func TestTransitionTerminalStatesRejectEverything(t *testing.T) {
	t.Parallel()

	for _, s := range []ConversionState{StateFailed, StateReconciled} {
		for _, e := range []Event{EventStage, EventEncode, EventVerify, EventSkipVerify, EventPublish, EventReconcile, EventFail} {
			_, err := s.Transition(e)
			assert.Error(t, err, "state %s should reject %s", s, e)
		}
	}
}

func TestTransitionRejectsOutOfOrderEvent(t *testing.T) {
	t.Parallel()

	_, err := StatePlanned.Transition(EventEncode)
	assert.Error(t, err)
}
