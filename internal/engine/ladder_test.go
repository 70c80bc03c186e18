package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mharbulous/StoryTree2/internal/model"
	"github.com/Mharbulous/StoryTree2/internal/testutil"
)

// breakNode inserts an implementing:ready node and fails it into broken via
// a content beat, so the pre-fault snapshot is recorded the normal way.
func breakNode(t *testing.T, e *Engine, id string) {
	t.Helper()
	insertNode(t, e, "", atState(id, model.StageImplementing, model.HoldReady))
	res, err := e.Beat(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "implementing:broken", res.To)
}

func TestLadder_ClimbsOneRungPerBeat(t *testing.T) {
	rem := testutil.NewScriptedRemediator(false, false)
	e := newTestEngine(t,
		WithContentGenerator(testutil.NewScriptedGenerator(model.OutcomeFailed)),
		WithRemediator(rem),
	)
	breakNode(t, e, "1")
	ctx := context.Background()

	res, err := e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "rerun", res.Strategy)
	got, _ := e.Store().GetNode(ctx, "1")
	assert.Equal(t, 1, got.DebugAttempts)
	assert.Equal(t, model.HoldBroken, got.Hold)

	res, err = e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "targeted-patch", res.Strategy)
	got, _ = e.Store().GetNode(ctx, "1")
	assert.Equal(t, 2, got.DebugAttempts)
}

func TestLadder_SuccessRestoresSavedContext(t *testing.T) {
	rem := testutil.NewScriptedRemediator(false, true)
	e := newTestEngine(t,
		WithContentGenerator(testutil.NewScriptedGenerator(model.OutcomeFailed)),
		WithRemediator(rem),
	)
	breakNode(t, e, "1")
	ctx := context.Background()

	// Rung 1 fails, rung 2 fixes.
	_, err := e.Beat(ctx, "1")
	require.NoError(t, err)
	res, err := e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "implementing:ready", res.To)

	got, _ := e.Store().GetNode(ctx, "1")
	assert.Nil(t, got.Saved, "restore must discard the snapshot")
	assert.Zero(t, got.DebugAttempts)
	assert.Equal(t, []string{"rerun", "targeted-patch"}, rem.Strategies())
}

func TestLadder_FiveFailuresEscalate(t *testing.T) {
	rem := testutil.NewScriptedRemediator(false, false, false, false, false)
	e := newTestEngine(t,
		WithContentGenerator(testutil.NewScriptedGenerator(model.OutcomeFailed)),
		WithRemediator(rem),
	)
	breakNode(t, e, "1")
	ctx := context.Background()

	for i := 1; i <= model.MaxDebugAttempts; i++ {
		res, err := e.Beat(ctx, "1")
		require.NoError(t, err, "rung %d", i)
		if i < model.MaxDebugAttempts {
			assert.Equal(t, "implementing:broken", res.To, "rung %d stays broken", i)
		} else {
			assert.Equal(t, "implementing:escalated", res.To)
			assert.True(t, res.Escalated)
		}
	}

	got, _ := e.Store().GetNode(ctx, "1")
	assert.Equal(t, model.MaxDebugAttempts, got.DebugAttempts)
	assert.True(t, got.HumanReview)
	// Every strategy ran exactly once, in ladder order.
	assert.Equal(t, []string{
		"rerun", "targeted-patch", "revert-last-change",
		"rebuild-dependencies", "rewrite-from-plan",
	}, rem.Strategies())
}

func TestLadder_FreshCycleStartsAtRungOne(t *testing.T) {
	// Fail out the whole ladder, resume, break again: the new cycle starts
	// with a fresh snapshot, a zeroed counter, and the first strategy.
	rem := testutil.NewScriptedRemediator(false, false, false, false, false, true)
	e := newTestEngine(t,
		WithContentGenerator(testutil.NewScriptedGenerator(model.OutcomeFailed)),
		WithRemediator(rem),
	)
	breakNode(t, e, "1")
	ctx := context.Background()

	for i := 0; i < model.MaxDebugAttempts; i++ {
		_, err := e.Beat(ctx, "1")
		require.NoError(t, err)
	}

	// Human sends it back to work.
	_, err := e.Decide(ctx, "1", model.DecisionResume)
	require.NoError(t, err)

	// Next content beat fails it into broken again: fresh ladder.
	res, err := e.Beat(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "implementing:broken", res.To)
	got, _ := e.Store().GetNode(ctx, "1")
	assert.Zero(t, got.DebugAttempts, "fresh broken entry rewinds the counter")
	require.NotNil(t, got.Saved)

	// Rung 1 of the new cycle runs the first strategy and fixes.
	res, err = e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "implementing:ready", res.To)
	strategies := rem.Strategies()
	assert.Equal(t, "rerun", strategies[len(strategies)-1], "new cycle restarts the ladder")
}

func TestLadder_RemediatorErrorCommitsNothing(t *testing.T) {
	e := newTestEngine(t,
		WithContentGenerator(testutil.NewScriptedGenerator(model.OutcomeFailed)),
	)
	breakNode(t, e, "1")

	// No remediator configured: the beat errors and the node is untouched.
	_, err := e.Beat(context.Background(), "1")
	require.Error(t, err)

	got, _ := e.Store().GetNode(context.Background(), "1")
	assert.Equal(t, model.HoldBroken, got.Hold)
	assert.Zero(t, got.DebugAttempts)
}
