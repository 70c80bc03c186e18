package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mharbulous/StoryTree2/internal/model"
	"github.com/Mharbulous/StoryTree2/internal/testutil"
)

func TestBeat_TerminalNodeIsNoop(t *testing.T) {
	e := newTestEngine(t)
	n := atState("1", model.StagePlanning, model.HoldReady)
	n.Terminus = model.TerminusRejected
	insertNode(t, e, "", n)

	res, err := e.Beat(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, res.Action)
	assert.Empty(t, res.To)

	got, _ := e.Store().GetNode(context.Background(), "1")
	assert.Equal(t, model.StagePlanning, got.Stage, "terminal stage must stay frozen")
}

func TestBeat_EpicAndShippedAreNoops(t *testing.T) {
	e := newTestEngine(t)
	insertNode(t, e, "", atState("1", model.StageEpic, model.HoldReady))
	insertNode(t, e, "", atState("2", model.StageShipped, model.HoldReady))

	for _, id := range []string{"1", "2"} {
		res, err := e.Beat(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, ActionNoop, res.Action, "node %s", id)
	}
}

func TestBeat_ParkedNodesWait(t *testing.T) {
	e := newTestEngine(t, WithContentGenerator(testutil.NewScriptedGenerator(model.OutcomeCompleted)))
	insertNode(t, e, "", atState("1", model.StageConcept, model.HoldPaused))
	insertNode(t, e, "", atState("2", model.StageConcept, model.HoldWishlisted))

	for _, id := range []string{"1", "2"} {
		res, err := e.Beat(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, ActionNoop, res.Action, "node %s", id)
	}
}

func TestBeat_UnknownNode(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Beat(context.Background(), "42")
	assert.True(t, model.IsNotFound(err))
}

func TestBeat_ConceptCompletedEscalates(t *testing.T) {
	gen := testutil.NewScriptedGenerator(model.OutcomeCompleted)
	e := newTestEngine(t, WithContentGenerator(gen))
	insertNode(t, e, "", atState("1", model.StageConcept, model.HoldReady))

	res, err := e.Beat(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, ActionTransition, res.Action)
	assert.Equal(t, "concept:ready", res.From)
	assert.Equal(t, "concept:escalated", res.To)
	assert.True(t, res.Escalated)

	got, _ := e.Store().GetNode(context.Background(), "1")
	assert.True(t, got.HumanReview)
}

func TestBeat_InProgressOutcomeHoldsPosition(t *testing.T) {
	gen := testutil.NewScriptedGenerator(model.OutcomeProceed)
	e := newTestEngine(t, WithContentGenerator(gen))
	insertNode(t, e, "", atState("1", model.StageConcept, model.HoldReady))

	res, err := e.Beat(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, res.Action)
	assert.Equal(t, "proceed", res.Note)
}

func TestBeat_ImplementingOutcomes(t *testing.T) {
	t.Run("completed advances to testing", func(t *testing.T) {
		e := newTestEngine(t, WithContentGenerator(testutil.NewScriptedGenerator(model.OutcomeCompleted)))
		insertNode(t, e, "", atState("1", model.StageImplementing, model.HoldReady))

		res, err := e.Beat(context.Background(), "1")
		require.NoError(t, err)
		assert.Equal(t, "testing:ready", res.To)
	})

	t.Run("failed breaks", func(t *testing.T) {
		e := newTestEngine(t, WithContentGenerator(testutil.NewScriptedGenerator(model.OutcomeFailed)))
		insertNode(t, e, "", atState("1", model.StageImplementing, model.HoldReady))

		res, err := e.Beat(context.Background(), "1")
		require.NoError(t, err)
		assert.Equal(t, "implementing:broken", res.To)

		got, _ := e.Store().GetNode(context.Background(), "1")
		require.NotNil(t, got.Saved)
		assert.Equal(t, model.StageImplementing, got.Saved.Stage)
		assert.Equal(t, model.HoldReady, got.Saved.Hold)
	})
}

func TestBeat_TestingCycle(t *testing.T) {
	gen := testutil.NewScriptedGenerator(
		model.OutcomeFailed,    // testing:ready -> queued (corrections found)
		model.OutcomeCompleted, // testing:queued -> ready (corrections done)
		model.OutcomeVerified,  // testing:ready -> escalated
	)
	e := newTestEngine(t, WithContentGenerator(gen))
	insertNode(t, e, "", atState("1", model.StageTesting, model.HoldReady))
	ctx := context.Background()

	res, err := e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "testing:queued", res.To)

	res, err = e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "testing:ready", res.To)

	res, err = e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "testing:escalated", res.To)
	assert.True(t, res.Escalated)
}

func TestBeat_PauseOutcomeHonoredMidStage(t *testing.T) {
	e := newTestEngine(t, WithContentGenerator(testutil.NewScriptedGenerator(model.OutcomePause)))
	insertNode(t, e, "", atState("1", model.StageReleasing, model.HoldReady))

	res, err := e.Beat(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "releasing:paused", res.To)
}

func TestBeat_EscalatedWithoutDeciderWaits(t *testing.T) {
	e := newTestEngine(t)
	insertNode(t, e, "", atState("1", model.StageConcept, model.HoldEscalated))

	res, err := e.Beat(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, ActionNoop, res.Action)
	assert.Equal(t, "awaiting human decision", res.Note)
}

func TestBeat_EscalatedWithDecider(t *testing.T) {
	e := newTestEngine(t, WithHumanDecider(testutil.NewScriptedDecider(model.DecisionApprove)))
	insertNode(t, e, "", atState("1", model.StageConcept, model.HoldEscalated))

	res, err := e.Beat(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "planning:ready", res.To)
}

func TestDecide_Approvals(t *testing.T) {
	cases := []struct {
		stage model.Stage
		want  string
	}{
		{model.StageConcept, "planning:ready"},
		{model.StagePlanning, "planning:queued"},
		{model.StageImplementing, "testing:ready"},
		{model.StageTesting, "releasing:queued"},
		{model.StageReleasing, "shipped:ready"},
	}
	for _, tc := range cases {
		t.Run(string(tc.stage), func(t *testing.T) {
			e := newTestEngine(t)
			insertNode(t, e, "", atState("1", tc.stage, model.HoldEscalated))

			res, err := e.Decide(context.Background(), "1", model.DecisionApprove)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.To)
		})
	}
}

func TestDecide_Reject(t *testing.T) {
	e := newTestEngine(t)
	insertNode(t, e, "", atState("1", model.StagePlanning, model.HoldEscalated))

	_, err := e.Decide(context.Background(), "1", model.DecisionReject)
	require.NoError(t, err)

	got, _ := e.Store().GetNode(context.Background(), "1")
	assert.Equal(t, model.TerminusRejected, got.Terminus)
	assert.Equal(t, model.HoldReady, got.Hold)
	assert.Equal(t, model.StagePlanning, got.Stage, "terminus freezes the stage reached")
	assert.False(t, got.HumanReview)
}

func TestDecide_ParkAndResume(t *testing.T) {
	e := newTestEngine(t)
	insertNode(t, e, "", atState("1", model.StageConcept, model.HoldEscalated))
	ctx := context.Background()

	_, err := e.Decide(ctx, "1", model.DecisionWishlist)
	require.NoError(t, err)
	got, _ := e.Store().GetNode(ctx, "1")
	assert.True(t, got.Parked())

	res, err := e.Decide(ctx, "1", model.DecisionResume)
	require.NoError(t, err)
	assert.Equal(t, "concept:ready", res.To)
}

func TestDecide_RequiresEscalatedOrParked(t *testing.T) {
	e := newTestEngine(t)
	insertNode(t, e, "", atState("1", model.StageConcept, model.HoldReady))

	_, err := e.Decide(context.Background(), "1", model.DecisionApprove)
	assert.True(t, model.IsValidation(err, model.ErrCodeDecisionUnavailable))
}

func TestBeatBatch_LimitAndSkip(t *testing.T) {
	// No generator configured: content beats error and must be skipped,
	// never aborting the batch.
	e := newTestEngine(t)
	insertNode(t, e, "", atState("1", model.StageConcept, model.HoldReady))
	insertNode(t, e, "", atState("2", model.StageConcept, model.HoldPaused))
	insertNode(t, e, "", atState("3", model.StageConcept, model.HoldReady))

	batch, err := e.BeatBatch(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, batch.Skipped, 2, "both generator-less content beats skip")
	assert.Len(t, batch.Results, 1)
	assert.Equal(t, "2", batch.Results[0].NodeID)

	limited, err := e.BeatBatch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, len(limited.Results)+len(limited.Skipped))
}

func TestBeatBatch_ExcludesTerminal(t *testing.T) {
	e := newTestEngine(t, WithContentGenerator(testutil.NewScriptedGenerator(model.OutcomeProceed)))
	n := atState("1", model.StagePlanning, model.HoldReady)
	n.Terminus = model.TerminusArchived
	insertNode(t, e, "", n)
	insertNode(t, e, "", atState("2", model.StageConcept, model.HoldReady))

	batch, err := e.BeatBatch(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, batch.Results, 1)
	assert.Equal(t, "2", batch.Results[0].NodeID)
}
