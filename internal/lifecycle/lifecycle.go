// Package lifecycle validates transitions across the three orthogonal state
// fields of a story node: stage, hold, and terminus.
//
// The three fields are kept independent and validated jointly by Apply,
// rather than collapsed into one N×M combined enum. Stage moves forward only,
// one step at a time; the single sanctioned exception is the debug ladder's
// history-state restore, which a Change marks explicitly.
package lifecycle

import (
	"fmt"

	"github.com/Mharbulous/StoryTree2/internal/model"
)

// Change describes one requested field-set change. nil fields are left
// untouched. A successful Apply commits exactly this change and nothing
// else, so a heartbeat can never chain transitions through the validator.
type Change struct {
	Stage    *model.Stage
	Hold     *model.Hold
	Terminus *model.Terminus

	// Restore marks the debug ladder's history-state resume. It is the only
	// way a stage may move backward or skip levels.
	Restore bool

	// ResetDebug zeroes the attempt counter (set on successful restore).
	ResetDebug bool
	// BumpDebug increments the attempt counter (set on a failed rung).
	BumpDebug bool
}

// Apply validates change against the node's current state and returns the
// resulting node. The input is taken by value; on error the caller's node is
// untouched and nothing may be committed.
//
// Rules, in rejection order:
//  1. Terminal nodes accept no transitions at all.
//  2. Stage moves must be exactly one step forward (unless Restore).
//  3. A non-ready hold and a terminus are mutually exclusive.
//  4. HumanReview is set when the hold becomes escalated and cleared when
//     the hold clears to ready.
//  5. Entering broken from another hold records the pre-broken snapshot;
//     a Restore change re-applies and discards it.
func Apply(n model.StoryNode, c Change) (model.StoryNode, error) {
	if n.Terminal() {
		return n, &model.ValidationError{
			Code:    model.ErrCodeTerminalConflict,
			NodeID:  n.ID,
			Message: fmt.Sprintf("node is terminal (%s); stage %s is frozen", n.Terminus, n.Stage),
		}
	}

	if c.Stage != nil {
		if err := validateStageMove(&n, *c.Stage, c.Restore); err != nil {
			return n, err
		}
	}
	if c.Hold != nil && !model.ValidHold(*c.Hold) {
		return n, &model.ValidationError{
			Code:    model.ErrCodeUnknownValue,
			NodeID:  n.ID,
			Message: fmt.Sprintf("unknown hold %q", *c.Hold),
		}
	}
	if c.Terminus != nil && *c.Terminus != model.TerminusNone && !model.ValidTerminus(*c.Terminus) {
		return n, &model.ValidationError{
			Code:    model.ErrCodeUnknownValue,
			NodeID:  n.ID,
			Message: fmt.Sprintf("unknown terminus %q", *c.Terminus),
		}
	}

	// Joint invariant: hold != ready and terminus != none never coexist.
	resultHold := n.Hold
	if c.Hold != nil {
		resultHold = *c.Hold
	}
	resultTerminus := n.Terminus
	if c.Terminus != nil {
		resultTerminus = *c.Terminus
	}
	if resultTerminus != model.TerminusNone && resultHold != model.HoldReady {
		return n, &model.ValidationError{
			Code:    model.ErrCodeHoldTerminusClash,
			NodeID:  n.ID,
			Message: fmt.Sprintf("terminus %q requires a ready hold, have %q", resultTerminus, resultHold),
		}
	}

	prevHold := n.Hold

	if c.Hold != nil {
		n.Hold = *c.Hold
		switch {
		case n.Hold == model.HoldEscalated:
			n.HumanReview = true
		case prevHold == model.HoldEscalated || n.Hold == model.HoldReady:
			// The review flag clears as soon as the hold moves on.
			n.HumanReview = false
		}
		// First entry into broken snapshots the pre-fault state. A fresh
		// entry after a completed or escalated cycle starts a new ladder:
		// the snapshot is overwritten and the attempt counter rewinds.
		if n.Hold == model.HoldBroken && prevHold != model.HoldBroken {
			n.Saved = &model.SavedContext{Stage: n.Stage, Hold: prevHold}
			n.DebugAttempts = 0
		}
	}
	if c.Stage != nil {
		n.Stage = *c.Stage
	}
	if c.Terminus != nil {
		n.Terminus = *c.Terminus
	}
	if c.Restore {
		n.Saved = nil
	}
	if c.ResetDebug {
		n.DebugAttempts = 0
	}
	if c.BumpDebug {
		n.DebugAttempts++
	}

	return n, nil
}

// validateStageMove enforces the forward-only, no-skip stage discipline.
func validateStageMove(n *model.StoryNode, target model.Stage, restore bool) error {
	if restore {
		// History-state resume: the target is whatever snapshot was taken
		// when the node broke. It is trusted as-is, since stage order alone
		// cannot reconstruct the state that was active.
		if !model.ValidStage(target) {
			return &model.ValidationError{
				Code:    model.ErrCodeUnknownValue,
				NodeID:  n.ID,
				Message: fmt.Sprintf("unknown stage %q in saved context", target),
			}
		}
		return nil
	}

	cur, curOK := n.Stage.Order()
	next, nextOK := target.Order()
	if !curOK || !nextOK {
		return &model.ValidationError{
			Code:    model.ErrCodeUnknownValue,
			NodeID:  n.ID,
			Message: fmt.Sprintf("stage %q cannot advance to %q", n.Stage, target),
		}
	}
	if next < cur {
		return &model.ValidationError{
			Code:    model.ErrCodeStageReversed,
			NodeID:  n.ID,
			Message: fmt.Sprintf("stage cannot move backward from %q to %q", n.Stage, target),
		}
	}
	if next != cur+1 {
		return &model.ValidationError{
			Code:    model.ErrCodeStageSkipped,
			NodeID:  n.ID,
			Message: fmt.Sprintf("stage must advance one step; %q to %q skips", n.Stage, target),
		}
	}
	return nil
}
