package engine

import (
	"context"
	"fmt"

	"github.com/Mharbulous/StoryTree2/internal/lifecycle"
	"github.com/Mharbulous/StoryTree2/internal/model"
)

// ladderStep runs one rung of the debug ladder for a broken node.
//
// The ladder is a small finite automaton, not recursive retry logic: an
// explicit attempt counter walks an ordered list of five increasingly
// powerful strategies. Each beat attempts exactly one rung:
//
//   - fixed: clear the hold and restore the exact (stage, hold) snapshot
//     taken when the node broke (history-state resume), resetting the
//     counter. Stage order alone could not reconstruct the hold that was
//     active, which is why the snapshot is persisted.
//   - still broken: advance one rung. The fifth failure escalates to human
//     review instead - escalation is a designed outcome and is never
//     silently dropped.
func (e *Engine) ladderStep(ctx context.Context, n *model.StoryNode, res *BeatResult) (*lifecycle.Change, error) {
	if e.remediator == nil {
		return nil, fmt.Errorf("node %s is broken but no remediator is configured", n.ID)
	}

	rung := n.DebugAttempts + 1
	strategy, err := e.policy.StrategyForRung(rung)
	if err != nil {
		return nil, fmt.Errorf("debug ladder for %s: %w", n.ID, err)
	}
	res.Strategy = strategy

	fixed, err := e.remediator.Attempt(ctx, n.Snapshot(), strategy)
	if err != nil {
		// Collaborator failure: nothing committed, same rung next beat.
		return nil, fmt.Errorf("remediation %q for %s: %w", strategy, n.ID, err)
	}

	if fixed {
		saved := n.Saved
		if saved == nil {
			// Defensive default for pre-snapshot rows: stay put, just clear.
			saved = &model.SavedContext{Stage: n.Stage, Hold: model.HoldReady}
		}
		e.log.Info("debug ladder fixed node",
			"node", n.ID, "rung", rung, "strategy", strategy,
			"restored", stateLabel(saved.Stage, saved.Hold))
		return &lifecycle.Change{
			Stage:      stagePtr(saved.Stage),
			Hold:       holdPtr(saved.Hold),
			Restore:    true,
			ResetDebug: true,
		}, nil
	}

	if rung >= model.MaxDebugAttempts {
		e.log.Warn("debug ladder exhausted, escalating", "node", n.ID, "attempts", rung)
		return &lifecycle.Change{
			Hold:      holdPtr(model.HoldEscalated),
			BumpDebug: true,
		}, nil
	}

	e.log.Debug("debug ladder rung failed",
		"node", n.ID, "rung", rung, "strategy", strategy)
	return &lifecycle.Change{BumpDebug: true}, nil
}
