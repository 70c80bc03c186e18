package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mharbulous/StoryTree2/internal/lifecycle"
	"github.com/Mharbulous/StoryTree2/internal/model"
)

// Beat actions.
const (
	// ActionNoop: nothing to do in this state (terminal, epic, parked,
	// or a missing optional collaborator).
	ActionNoop = "noop"
	// ActionWaiting: a gating condition is still false; no state change.
	ActionWaiting = "waiting"
	// ActionTransition: exactly one state transition committed.
	ActionTransition = "transition"
	// ActionSpawned: prerequisite children inserted; no state transition.
	ActionSpawned = "spawned"
)

// BeatResult reports what one heartbeat did.
type BeatResult struct {
	NodeID  string
	Handler string
	Action  string
	From    string // "stage:hold" before the beat
	To      string // "stage:hold" after a committed transition
	Note    string

	// Escalated is set when this beat raised the node to human review.
	// Escalation is a designed outcome, not an error; it must reach the
	// human-decision queue, so it is carried explicitly here.
	Escalated bool

	// Spawned lists prerequisite child ids inserted by this beat.
	Spawned []string

	// Strategy is the debug ladder strategy attempted, if any.
	Strategy string

	// Artifacts carries opaque references returned by the content
	// generator. The engine never dereferences them.
	Artifacts []model.ArtifactRef
}

// Beat runs one heartbeat for one node: read state, dispatch to the single
// applicable handler, commit at most one validated transition, return.
//
// Collaborator errors surface to the caller with nothing committed; the
// node stays at its last committed state and the next heartbeat retries.
func (e *Engine) Beat(ctx context.Context, id string) (BeatResult, error) {
	n, err := e.store.GetNode(ctx, id)
	if err != nil {
		return BeatResult{NodeID: id}, err
	}

	res := BeatResult{NodeID: id, From: stateLabel(n.Stage, n.Hold)}
	kind := handlerFor(&n)
	res.Handler = kind.String()

	var change *lifecycle.Change
	switch kind {
	case handleNone:
		res.Action = ActionNoop
		res.Note = noopNote(&n)
		return res, nil
	case handleContent:
		change, err = e.contentStep(ctx, &n, &res)
	case handleHuman:
		change, err = e.humanStep(ctx, &n, &res)
	case handleLadder:
		change, err = e.ladderStep(ctx, &n, &res)
	case handleDependency:
		change, err = e.dependencyStep(ctx, &n, &res)
	case handlePrereqGate:
		change, err = e.prereqGateStep(ctx, &n, &res)
	case handleStageEntry:
		change = e.stageEntryChange(&n)
	case handleReleaseGate:
		change, err = e.releaseGateStep(ctx, &n, &res)
	default:
		return res, fmt.Errorf("no handler for %s at %s", id, res.From)
	}

	if err != nil {
		var unmet *model.DependencyUnmet
		if errors.As(err, &unmet) {
			// Premature advance: a no-op beat, not a failure.
			res.Action = ActionWaiting
			res.Note = unmet.Reason
			return res, nil
		}
		return res, err
	}

	if change == nil {
		if res.Action == "" {
			res.Action = ActionNoop
		}
		return res, nil
	}

	updated, err := lifecycle.Apply(n, *change)
	if err != nil {
		return res, err
	}
	if err := e.store.CommitState(ctx, n, updated); err != nil {
		return res, err
	}

	res.Action = ActionTransition
	res.To = stateLabel(updated.Stage, updated.Hold)
	res.Escalated = updated.Hold == model.HoldEscalated && n.Hold != model.HoldEscalated
	e.log.Debug("heartbeat transition",
		"node", n.ID, "from", res.From, "to", res.To, "handler", res.Handler)
	return res, nil
}

// SkippedNode records a node a batch passed over because its beat errored.
type SkippedNode struct {
	NodeID string
	Err    error
}

// BatchResult reports one batch run.
type BatchResult struct {
	Results []BeatResult
	Skipped []SkippedNode
}

// BeatBatch heartbeats up to limit active nodes. Nodes are grouped by
// (stage, hold) and processed oldest-created first within each group.
// A failing node is skipped and recorded, never aborting the batch.
// limit <= 0 means no limit.
func (e *Engine) BeatBatch(ctx context.Context, limit int) (BatchResult, error) {
	nodes, err := e.store.ListActive(ctx)
	if err != nil {
		return BatchResult{}, err
	}

	var batch BatchResult
	processed := 0
	for _, n := range nodes {
		if limit > 0 && processed >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		processed++

		res, err := e.Beat(ctx, n.ID)
		if err != nil {
			e.log.Warn("batch heartbeat skipped node", "node", n.ID, "error", err)
			batch.Skipped = append(batch.Skipped, SkippedNode{NodeID: n.ID, Err: err})
			continue
		}
		batch.Results = append(batch.Results, res)
	}
	return batch, nil
}

func stateLabel(stage model.Stage, hold model.Hold) string {
	return string(stage) + ":" + string(hold)
}

func noopNote(n *model.StoryNode) string {
	switch {
	case n.Terminal():
		return fmt.Sprintf("terminal (%s)", n.Terminus)
	case n.Stage == model.StageEpic:
		return "epic container"
	case n.Stage == model.StageShipped:
		return "shipped"
	case n.Parked():
		return fmt.Sprintf("parked (%s)", n.Hold)
	}
	return ""
}
