package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mharbulous/StoryTree2/internal/model"
)

func TestStageEntry_HoldFromLists(t *testing.T) {
	cases := []struct {
		name string
		deps []string
		want string
	}{
		{name: "unencumbered starts ready", want: "implementing:ready"},
		{name: "dependencies block", deps: []string{"Session API"}, want: "implementing:blocked"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(t)
			n := atState("1", model.StagePlanning, model.HoldQueued)
			n.Dependencies = tc.deps
			insertNode(t, e, "", n)

			res, err := e.Beat(context.Background(), "1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.To)
		})
	}
}

func TestDependency_NoListsResolvesToReady(t *testing.T) {
	e := newTestEngine(t)
	insertNode(t, e, "", atState("1", model.StageImplementing, model.HoldBlocked))

	res, err := e.Beat(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "implementing:ready", res.To)
}

// Full walkthrough: a node with two dependencies spawns two prerequisite
// children, waits for them to reach planning, unblocks, waits for them to
// reach the completion threshold, and goes ready.
func TestDependency_TwoDependencyWalkthrough(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	parent := atState("1", model.StageImplementing, model.HoldBlocked)
	parent.Dependencies = []string{"Session API", "Token store"}
	insertNode(t, e, "", parent)

	// Beat 1: spawn one child per dependency, nothing else.
	res, err := e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, ActionSpawned, res.Action)
	assert.Equal(t, []string{"1.1", "1.2"}, res.Spawned)

	children, err := e.Store().ChildrenOf(ctx, "1")
	require.NoError(t, err)
	require.Len(t, children, 2)
	for _, c := range children {
		assert.Equal(t, model.StageConcept, c.Stage)
		assert.Equal(t, model.HoldQueued, c.Hold)
	}
	got, _ := e.Store().GetNode(ctx, "1")
	assert.Equal(t, []string{"1.1", "1.2"}, got.Prerequisites)
	assert.Equal(t, model.HoldBlocked, got.Hold, "spawning is the whole beat")

	// Beat 2: children still at concept, the gate holds.
	res, err = e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, ActionWaiting, res.Action)

	// One child reaching planning is not enough.
	forceState(t, e, "1.1", func(n *model.StoryNode) { n.Stage = model.StagePlanning })
	res, err = e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, ActionWaiting, res.Action)

	// Both at planning: blocked -> queued.
	forceState(t, e, "1.2", func(n *model.StoryNode) { n.Stage = model.StagePlanning })
	res, err = e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "implementing:queued", res.To)

	// Queued gates on the policy threshold (testing by default).
	res, err = e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, ActionWaiting, res.Action)

	forceState(t, e, "1.1", func(n *model.StoryNode) { n.Stage = model.StageTesting })
	forceState(t, e, "1.2", func(n *model.StoryNode) { n.Stage = model.StageTesting })
	res, err = e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "implementing:ready", res.To)
}

func TestDependency_SpawnIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	parent := atState("1", model.StageImplementing, model.HoldBlocked)
	parent.Dependencies = []string{"Session API"}
	insertNode(t, e, "", parent)

	res, err := e.Beat(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, []string{"1.1"}, res.Spawned)

	// Repeat beats never spawn a duplicate for a represented dependency.
	for i := 0; i < 3; i++ {
		res, err = e.Beat(ctx, "1")
		require.NoError(t, err)
		assert.Empty(t, res.Spawned)
	}
	children, err := e.Store().ChildrenOf(ctx, "1")
	require.NoError(t, err)
	assert.Len(t, children, 1)
}

func TestDependency_UnrelatedChildDoesNotHoldGate(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	parent := atState("1", model.StageImplementing, model.HoldBlocked)
	parent.Dependencies = []string{"Session API"}
	insertNode(t, e, "", parent)
	// A pre-existing ordinary child, parked at concept. It is not a
	// prerequisite and must not wedge the parent.
	insertNode(t, e, "1", atState("1.1", model.StageConcept, model.HoldPaused))

	res, err := e.Beat(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, []string{"1.2"}, res.Spawned)

	forceState(t, e, "1.2", func(n *model.StoryNode) { n.Stage = model.StagePlanning })
	res, err = e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "implementing:queued", res.To)
}

func TestDependency_UnrelatedTitleDoesNotSuppressSpawn(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	parent := atState("1", model.StageImplementing, model.HoldBlocked)
	parent.Dependencies = []string{"Session API"}
	insertNode(t, e, "", parent)

	// An ordinary child that happens to share the dependency's name.
	impostor := atState("1.1", model.StageConcept, model.HoldReady)
	impostor.Title = "Session API"
	insertNode(t, e, "1", impostor)

	res, err := e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, ActionSpawned, res.Action)
	assert.Equal(t, []string{"1.2"}, res.Spawned)

	got, err := e.Store().GetNode(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.2"}, got.Prerequisites)
}

func TestDependency_TerminalChildHoldsGate(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	parent := atState("1", model.StageImplementing, model.HoldBlocked)
	parent.Dependencies = []string{"Session API"}
	insertNode(t, e, "", parent)

	_, err := e.Beat(ctx, "1")
	require.NoError(t, err)

	// The spawned child gets rejected: the dependency is unsatisfiable by
	// this child, and the parent stays blocked for human attention.
	forceState(t, e, "1.1", func(n *model.StoryNode) {
		n.Stage = model.StagePlanning
		n.Hold = model.HoldReady
		n.Terminus = model.TerminusRejected
	})
	res, err := e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, ActionWaiting, res.Action)
	assert.Contains(t, res.Note, "terminal")
}

func TestPrereqGate_TerminalPrerequisiteNeverCompletes(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	parent := atState("1", model.StageImplementing, model.HoldBlocked)
	parent.Dependencies = []string{"Session API"}
	insertNode(t, e, "", parent)

	// Spawn the prerequisite, then let it ship and get deprecated.
	_, err := e.Beat(ctx, "1")
	require.NoError(t, err)
	forceState(t, e, "1.1", func(n *model.StoryNode) {
		n.Stage = model.StageShipped
		n.Hold = model.HoldReady
		n.Terminus = model.TerminusDeprecated
	})
	forceState(t, e, "1", func(n *model.StoryNode) { n.Hold = model.HoldQueued })

	res, err := e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, ActionWaiting, res.Action)
}

func TestReleaseGate_WaitsForChildren(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	insertNode(t, e, "", atState("1", model.StageReleasing, model.HoldQueued))
	insertNode(t, e, "1", atState("1.1", model.StageTesting, model.HoldReady))

	res, err := e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, ActionWaiting, res.Action)

	// A shipped child satisfies the gate; so does a terminal one.
	forceState(t, e, "1.1", func(n *model.StoryNode) { n.Stage = model.StageShipped })
	res, err = e.Beat(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "releasing:ready", res.To)
}

func TestNextPathID(t *testing.T) {
	siblings := []model.StoryNode{{ID: "1.1"}, {ID: "1.3"}}
	assert.Equal(t, "1.4", nextPathID("1", siblings), "ordinals are never reused")
	assert.Equal(t, "1", nextPathID("", nil))
	assert.Equal(t, "2.5.1", nextPathID("2.5", nil))
}
