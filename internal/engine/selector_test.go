package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mharbulous/StoryTree2/internal/model"
)

func capNode(id string, capacity int) model.StoryNode {
	n := atState(id, model.StageConcept, model.HoldReady)
	n.Capacity = &capacity
	return n
}

func TestSelectGrowth_EmptyTree(t *testing.T) {
	e := newTestEngine(t)

	c, err := e.SelectGrowth(context.Background())
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestSelectGrowth_DepthBeforeFill(t *testing.T) {
	e := newTestEngine(t)

	// Candidates at depths 2, 1, 1, 3 with fills 0.50, 0.90, 0.10, 0.00.
	// Depth wins first, then the lower fill: the depth-1 node at 0.10.
	root := atState("1", model.StageEpic, model.HoldQueued) // not a candidate
	insertNode(t, e, "", root)

	crowded := capNode("1.1", 10) // depth 1, fill 0.9
	insertNode(t, e, "1", crowded)
	for i := 1; i <= 9; i++ {
		id := fmt.Sprintf("1.1.%d", i)
		insertNode(t, e, "1.1", atState(id, model.StageConcept, model.HoldQueued))
	}

	spare := capNode("1.2", 10) // depth 1, fill 0.1
	insertNode(t, e, "1", spare)
	halfway := capNode("1.2.1", 2) // depth 2, fill 0.5
	insertNode(t, e, "1.2", halfway)
	insertNode(t, e, "1.2.1", atState("1.2.1.1", model.StageConcept, model.HoldQueued))

	// A queued branch holding the depth-3 candidate.
	insertNode(t, e, "1.1.1", capNode("1.1.1.1", 3)) // depth 3, fill 0.0

	winner, err := e.SelectGrowth(context.Background())
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, "1.2", winner.Node.ID)
	assert.Equal(t, 1, winner.Depth)
	assert.InDelta(t, 0.1, winner.FillRate, 0.001)

	// Full order: both depth-1 nodes, then depth 2, then depth 3.
	all, err := e.GrowthCandidates(context.Background())
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, c := range all {
		ids[i] = c.Node.ID
	}
	assert.Equal(t, []string{"1.2", "1.1", "1.2.1", "1.1.1.1"}, ids)
}

func TestSelectGrowth_ExcludesFullAndZeroCapacity(t *testing.T) {
	e := newTestEngine(t)

	full := capNode("1", 1)
	insertNode(t, e, "", full)
	insertNode(t, e, "1", atState("1.1", model.StageConcept, model.HoldQueued))

	closed := capNode("2", 0) // capacity 0: never grows
	insertNode(t, e, "", closed)

	c, err := e.SelectGrowth(context.Background())
	require.NoError(t, err)
	assert.Nil(t, c, "full and zero-capacity nodes are ineligible")
}

func TestSelectGrowth_ShippedChildrenWidenDynamicCapacity(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	// Dynamic capacity, base 3. Three active children fill it; once one
	// child ships, the effective capacity grows to 4 and a slot opens.
	parent := atState("1", model.StageConcept, model.HoldReady)
	insertNode(t, e, "", parent)
	for _, id := range []string{"1.1", "1.2", "1.3"} {
		insertNode(t, e, "1", atState(id, model.StageConcept, model.HoldQueued))
	}

	c, err := e.SelectGrowth(ctx)
	require.NoError(t, err)
	require.Nil(t, c, "base capacity is exhausted")

	forceState(t, e, "1.1", func(n *model.StoryNode) { n.Stage = model.StageShipped })
	c, err = e.SelectGrowth(ctx)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "1", c.Node.ID)
	assert.InDelta(t, 0.75, c.FillRate, 0.001)
}

func TestCreateNode_AssignsPathIDs(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	root, err := e.CreateNode(ctx, "", model.StageEpic, "Platform", "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "1", root.ID)
	assert.Equal(t, "test-key-1", root.Key)
	assert.Equal(t, model.HoldReady, root.Hold)

	second, err := e.CreateNode(ctx, "", "", "Another root", "", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "2", second.ID)
	assert.Equal(t, model.StageConcept, second.Stage, "empty stage defaults to concept")

	child, err := e.CreateNode(ctx, "1", model.StageConcept, "Accounts", "sign-up and login", nil, []string{"Session API"})
	require.NoError(t, err)
	assert.Equal(t, "1.1", child.ID)
	assert.Equal(t, []string{"Session API"}, child.Dependencies)

	_, err = e.CreateNode(ctx, "9", model.StageConcept, "orphan", "", nil, nil)
	assert.True(t, model.IsNotFound(err))
}
