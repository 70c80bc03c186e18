package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Mharbulous/StoryTree2/internal/lifecycle"
	"github.com/Mharbulous/StoryTree2/internal/model"
)

// dependencyStep resolves an implementing:blocked node.
//
// First it spawns one prerequisite child per unrepresented dependency name,
// each at concept:queued. Spawning is idempotent: a dependency already
// represented by a prerequisite child is never spawned again, so a crashed
// or retried beat performs no duplicate inserts. A beat that spawned
// anything stops there - inserts are this beat's bounded work.
//
// Once every dependency is represented, the beat gates blocked → queued:
// it fires only when every dependency child has reached planning or beyond.
func (e *Engine) dependencyStep(ctx context.Context, n *model.StoryNode, res *BeatResult) (*lifecycle.Change, error) {
	if len(n.Dependencies) == 0 && len(n.Prerequisites) == 0 {
		// Nothing to wait for; resolve straight to ready.
		return &lifecycle.Change{Hold: holdPtr(model.HoldReady)}, nil
	}

	children, err := e.store.ChildrenOf(ctx, n.ID)
	if err != nil {
		return nil, err
	}
	// Only children recorded in Prerequisites count. An unrelated child
	// whose title happens to match a dependency name neither represents
	// it nor holds the gate.
	prereqIDs := make(map[string]bool, len(n.Prerequisites))
	for _, id := range n.Prerequisites {
		prereqIDs[id] = true
	}
	represented := make(map[string]bool, len(n.Prerequisites))
	var prereqChildren []model.StoryNode
	for _, c := range children {
		if !prereqIDs[c.ID] {
			continue
		}
		represented[c.Title] = true
		prereqChildren = append(prereqChildren, c)
	}

	parent := *n
	siblings := children
	for _, dep := range n.Dependencies {
		if represented[dep] {
			continue
		}
		child := model.StoryNode{
			ID:          nextPathID(parent.ID, siblings),
			Key:         e.keys.Generate(),
			Title:       dep,
			Description: fmt.Sprintf("Prerequisite work for %q", parent.Title),
			Stage:       model.StageConcept,
			Hold:        model.HoldQueued,
		}
		if err := e.store.SpawnPrerequisite(ctx, parent, child); err != nil {
			return nil, fmt.Errorf("spawn prerequisite %q under %s: %w", dep, parent.ID, err)
		}
		e.log.Info("prerequisite spawned", "parent", parent.ID, "child", child.ID, "dependency", dep)
		res.Spawned = append(res.Spawned, child.ID)
		parent.Prerequisites = append(parent.Prerequisites, child.ID)
		siblings = append(siblings, child)
		represented[dep] = true
	}
	if len(res.Spawned) > 0 {
		res.Action = ActionSpawned
		return nil, nil
	}

	// Gate: every dependency child at planning or beyond.
	for _, c := range prereqChildren {
		if c.Terminal() {
			return nil, &model.DependencyUnmet{
				NodeID: n.ID,
				Reason: fmt.Sprintf("dependency child %s is terminal (%s)", c.ID, c.Terminus),
			}
		}
		if !c.Stage.AtLeast(model.StagePlanning) {
			return nil, &model.DependencyUnmet{
				NodeID: n.ID,
				Reason: fmt.Sprintf("dependency child %s still at %s", c.ID, c.Stage),
			}
		}
	}
	return &lifecycle.Change{Hold: holdPtr(model.HoldQueued)}, nil
}

// prereqGateStep gates implementing:queued → ready: it fires only when
// every prerequisite has reached the policy completion threshold.
func (e *Engine) prereqGateStep(ctx context.Context, n *model.StoryNode, res *BeatResult) (*lifecycle.Change, error) {
	for _, id := range n.Prerequisites {
		p, err := e.store.GetNode(ctx, id)
		if err != nil {
			return nil, err
		}
		if !e.policy.PrereqComplete(&p) {
			return nil, &model.DependencyUnmet{
				NodeID: n.ID,
				Reason: fmt.Sprintf("prerequisite %s still at %s (threshold %s)", p.ID, p.Stage, e.policy.PrereqThreshold),
			}
		}
	}
	return &lifecycle.Change{Hold: holdPtr(model.HoldReady)}, nil
}

// stageEntryChange enters implementing from planning:queued. The entry
// hold is chosen from the node's lists: external dependencies block until
// children are spawned, prerequisites queue, and an unencumbered node
// starts ready.
func (e *Engine) stageEntryChange(n *model.StoryNode) *lifecycle.Change {
	hold := model.HoldReady
	switch {
	case len(n.Dependencies) > 0:
		hold = model.HoldBlocked
	case len(n.Prerequisites) > 0:
		hold = model.HoldQueued
	}
	return &lifecycle.Change{
		Stage: stagePtr(model.StageImplementing),
		Hold:  holdPtr(hold),
	}
}

// releaseGateStep gates releasing:queued → ready: every direct child must
// be finished (shipped or terminal) before release work starts.
func (e *Engine) releaseGateStep(ctx context.Context, n *model.StoryNode, res *BeatResult) (*lifecycle.Change, error) {
	children, err := e.store.ChildrenOf(ctx, n.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		if c.Terminal() || c.Stage == model.StageShipped {
			continue
		}
		return nil, &model.DependencyUnmet{
			NodeID: n.ID,
			Reason: fmt.Sprintf("child %s still at %s", c.ID, stateLabel(c.Stage, c.Hold)),
		}
	}
	return &lifecycle.Change{Hold: holdPtr(model.HoldReady)}, nil
}

// nextPathID computes the next hierarchical child id under a parent: the
// parent path plus one more ordinal segment past the highest existing one.
// Ordinals are never reused after deletions.
func nextPathID(parentID string, siblings []model.StoryNode) string {
	max := 0
	for _, s := range siblings {
		seg := s.ID
		if idx := strings.LastIndex(seg, "."); idx >= 0 {
			seg = seg[idx+1:]
		}
		if ord, err := strconv.Atoi(seg); err == nil && ord > max {
			max = ord
		}
	}
	if parentID == "" {
		return strconv.Itoa(max + 1)
	}
	return parentID + "." + strconv.Itoa(max+1)
}
