package engine

import (
	"context"
	"fmt"

	"github.com/Mharbulous/StoryTree2/internal/lifecycle"
	"github.com/Mharbulous/StoryTree2/internal/model"
)

func stagePtr(s model.Stage) *model.Stage       { return &s }
func holdPtr(h model.Hold) *model.Hold          { return &h }
func terminusPtr(t model.Terminus) *model.Terminus { return &t }

// contentStep calls the content generator and maps its outcome signal onto
// the node's next transition. Unmapped outcomes (proceed, partial, failed
// drafts) leave the node untouched for the next heartbeat.
func (e *Engine) contentStep(ctx context.Context, n *model.StoryNode, res *BeatResult) (*lifecycle.Change, error) {
	if e.generator == nil {
		return nil, fmt.Errorf("node %s needs content generation but no generator is configured", n.ID)
	}
	outcome, artifacts, err := e.generator.Generate(ctx, n.Snapshot(), nil)
	if err != nil {
		return nil, fmt.Errorf("content generation for %s: %w", n.ID, err)
	}
	res.Artifacts = artifacts
	res.Note = string(outcome)
	return outcomeChange(n, outcome), nil
}

// outcomeChange is the per-state outcome vocabulary. A nil return keeps the
// node where it is.
func outcomeChange(n *model.StoryNode, outcome model.Outcome) *lifecycle.Change {
	// Pausing is honored at every content step.
	if outcome == model.OutcomePause {
		return &lifecycle.Change{Hold: holdPtr(model.HoldPaused)}
	}

	switch n.Stage {
	case model.StageConcept, model.StagePlanning:
		// Drafting and design work; a finished draft goes to human review.
		if outcome == model.OutcomeCompleted {
			return &lifecycle.Change{Hold: holdPtr(model.HoldEscalated)}
		}

	case model.StageImplementing:
		switch outcome {
		case model.OutcomeCompleted:
			return &lifecycle.Change{Stage: stagePtr(model.StageTesting)}
		case model.OutcomeFailed:
			return &lifecycle.Change{Hold: holdPtr(model.HoldBroken)}
		}

	case model.StageTesting:
		switch n.Hold {
		case model.HoldReady:
			switch outcome {
			case model.OutcomeVerified:
				return &lifecycle.Change{Hold: holdPtr(model.HoldEscalated)}
			case model.OutcomeFailed:
				// Corrections queued; the next beats work them off.
				return &lifecycle.Change{Hold: holdPtr(model.HoldQueued)}
			}
		case model.HoldQueued:
			if outcome == model.OutcomeCompleted {
				return &lifecycle.Change{Hold: holdPtr(model.HoldReady)}
			}
		case model.HoldPolish:
			if outcome == model.OutcomeCompleted {
				return &lifecycle.Change{Hold: holdPtr(model.HoldEscalated)}
			}
		}

	case model.StageReleasing:
		switch outcome {
		case model.OutcomeCompleted:
			return &lifecycle.Change{Hold: holdPtr(model.HoldEscalated)}
		case model.OutcomeFailed:
			return &lifecycle.Change{Hold: holdPtr(model.HoldBroken)}
		}
	}
	return nil
}

// humanStep consults the human decider for an escalated node. Without a
// configured decider the beat is a no-op: the node waits in the review
// queue for an explicit Decide call.
func (e *Engine) humanStep(ctx context.Context, n *model.StoryNode, res *BeatResult) (*lifecycle.Change, error) {
	if e.decider == nil {
		res.Action = ActionNoop
		res.Note = "awaiting human decision"
		return nil, nil
	}
	decision, err := e.decider.Decide(ctx, n.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("human decision for %s: %w", n.ID, err)
	}
	res.Note = string(decision)
	return decisionChange(n, decision)
}

// Decide applies one human decision to a node. It is the intake path for
// the human-decision collaborator's verdicts and for the CLI. Valid only on
// escalated or parked nodes - ordinary progress belongs to heartbeats.
func (e *Engine) Decide(ctx context.Context, id string, decision model.Decision) (BeatResult, error) {
	n, err := e.store.GetNode(ctx, id)
	if err != nil {
		return BeatResult{NodeID: id}, err
	}
	res := BeatResult{NodeID: id, Handler: handleHuman.String(), From: stateLabel(n.Stage, n.Hold)}

	if n.Hold != model.HoldEscalated && !n.Parked() {
		return res, &model.ValidationError{
			Code:    model.ErrCodeDecisionUnavailable,
			NodeID:  n.ID,
			Message: fmt.Sprintf("decision %q needs an escalated or parked node, hold is %q", decision, n.Hold),
		}
	}

	change, err := decisionChange(&n, decision)
	if err != nil {
		return res, err
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
	res.Note = string(decision)
	e.log.Info("decision applied", "node", n.ID, "decision", decision, "to", res.To)
	return res, nil
}

// decisionChange is the per-stage decision vocabulary for escalated and
// parked nodes.
func decisionChange(n *model.StoryNode, decision model.Decision) (*lifecycle.Change, error) {
	switch decision {
	case model.DecisionApprove:
		return approveChange(n)
	case model.DecisionReject:
		return &lifecycle.Change{
			Terminus: terminusPtr(model.TerminusRejected),
			Hold:     holdPtr(model.HoldReady),
		}, nil
	case model.DecisionRequestPolish:
		return &lifecycle.Change{Hold: holdPtr(model.HoldPolish)}, nil
	case model.DecisionWishlist:
		return &lifecycle.Change{Hold: holdPtr(model.HoldWishlisted)}, nil
	case model.DecisionPause:
		return &lifecycle.Change{Hold: holdPtr(model.HoldPaused)}, nil
	case model.DecisionResume:
		return &lifecycle.Change{Hold: holdPtr(model.HoldReady)}, nil
	}
	return nil, fmt.Errorf("unknown decision %q for node %s", decision, n.ID)
}

// approveChange advances an approved node. The landing hold depends on the
// stage being left: approval out of planning queues the node for stage
// entry, approval out of testing queues the release gate.
func approveChange(n *model.StoryNode) (*lifecycle.Change, error) {
	switch n.Stage {
	case model.StageConcept:
		return &lifecycle.Change{
			Stage: stagePtr(model.StagePlanning),
			Hold:  holdPtr(model.HoldReady),
		}, nil
	case model.StagePlanning:
		return &lifecycle.Change{Hold: holdPtr(model.HoldQueued)}, nil
	case model.StageImplementing:
		return &lifecycle.Change{
			Stage: stagePtr(model.StageTesting),
			Hold:  holdPtr(model.HoldReady),
		}, nil
	case model.StageTesting:
		return &lifecycle.Change{
			Stage: stagePtr(model.StageReleasing),
			Hold:  holdPtr(model.HoldQueued),
		}, nil
	case model.StageReleasing:
		return &lifecycle.Change{
			Stage: stagePtr(model.StageShipped),
			Hold:  holdPtr(model.HoldReady),
		}, nil
	}
	return nil, fmt.Errorf("approve has no effect at stage %q (node %s)", n.Stage, n.ID)
}
