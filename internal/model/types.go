package model

import "time"

// Stage is the forward-only workflow position of a story node.
//
// Progressing nodes move concept → planning → implementing → testing →
// releasing → shipped, one step at a time. StageEpic is a container-only
// stage that never progresses; epics exist to hold children.
type Stage string

const (
	StageEpic         Stage = "epic"
	StageConcept      Stage = "concept"
	StagePlanning     Stage = "planning"
	StageImplementing Stage = "implementing"
	StageTesting      Stage = "testing"
	StageReleasing    Stage = "releasing"
	StageShipped      Stage = "shipped"
)

// stageSequence is the forward order of progressing stages. StageEpic is
// deliberately absent: it has no position and never advances.
var stageSequence = []Stage{
	StageConcept,
	StagePlanning,
	StageImplementing,
	StageTesting,
	StageReleasing,
	StageShipped,
}

var stageOrder = func() map[Stage]int {
	m := make(map[Stage]int, len(stageSequence))
	for i, s := range stageSequence {
		m[s] = i
	}
	return m
}()

// Order returns the stage's position in the progressing sequence.
// The second return is false for StageEpic and unknown values.
func (s Stage) Order() (int, bool) {
	n, ok := stageOrder[s]
	return n, ok
}

// Progressing reports whether the stage participates in the forward sequence.
func (s Stage) Progressing() bool {
	_, ok := stageOrder[s]
	return ok
}

// Next returns the stage that directly follows s.
// Returns false for StageShipped, StageEpic, and unknown values.
func (s Stage) Next() (Stage, bool) {
	n, ok := stageOrder[s]
	if !ok || n == len(stageSequence)-1 {
		return "", false
	}
	return stageSequence[n+1], true
}

// AtLeast reports whether s has reached other in the progressing sequence.
// Non-progressing stages never satisfy any threshold.
func (s Stage) AtLeast(other Stage) bool {
	a, okA := stageOrder[s]
	b, okB := stageOrder[other]
	return okA && okB && a >= b
}

// ValidStage reports whether s is a known stage value.
func ValidStage(s Stage) bool {
	return s == StageEpic || s.Progressing()
}

// Hold is the cross-cutting reason a node's progress is currently stopped.
// HoldReady means progress is not stopped.
type Hold string

const (
	HoldReady      Hold = "ready"
	HoldQueued     Hold = "queued"
	HoldEscalated  Hold = "escalated"
	HoldPaused     Hold = "paused"
	HoldBlocked    Hold = "blocked"
	HoldBroken     Hold = "broken"
	HoldPolish     Hold = "polish"
	HoldConflicted Hold = "conflicted"
	HoldWishlisted Hold = "wishlisted"
)

var validHolds = map[Hold]bool{
	HoldReady: true, HoldQueued: true, HoldEscalated: true,
	HoldPaused: true, HoldBlocked: true, HoldBroken: true,
	HoldPolish: true, HoldConflicted: true, HoldWishlisted: true,
}

// ValidHold reports whether h is a known hold value.
func ValidHold(h Hold) bool { return validHolds[h] }

// MergeableHolds lists the holds a vetting "merge" action may target.
// The remaining non-ready holds (blocked, broken, escalated, queued,
// conflicted) are blocking: conflict resolution must wait them out.
var MergeableHolds = map[Hold]bool{
	HoldPaused:     true,
	HoldWishlisted: true,
	HoldPolish:     true,
}

// Terminus is a permanent exit from the workflow. Once set it never changes
// and the stage reached is frozen. TerminusNone means the node is still in
// the pipeline.
type Terminus string

const (
	TerminusNone        Terminus = ""
	TerminusRejected    Terminus = "rejected"
	TerminusInfeasible  Terminus = "infeasible"
	TerminusDuplicative Terminus = "duplicative"
	TerminusLegacy      Terminus = "legacy"
	TerminusDeprecated  Terminus = "deprecated"
	TerminusArchived    Terminus = "archived"
)

var validTermini = map[Terminus]bool{
	TerminusRejected: true, TerminusInfeasible: true, TerminusDuplicative: true,
	TerminusLegacy: true, TerminusDeprecated: true, TerminusArchived: true,
}

// ValidTerminus reports whether t is a known terminus value (not including
// TerminusNone).
func ValidTerminus(t Terminus) bool { return validTermini[t] }

// MaxDebugAttempts is the number of debug ladder rungs before escalation.
const MaxDebugAttempts = 5

// SavedContext is the (stage, hold) snapshot taken when a node first enters
// the broken hold. A successful debug cycle restores exactly this state.
type SavedContext struct {
	Stage Stage
	Hold  Hold
}

// StoryNode is a unit of work in the hierarchy. A node may hold direct work
// and have children simultaneously.
type StoryNode struct {
	// ID is the hierarchical path identifier, e.g. "1.4.2".
	ID string
	// Key is a stable opaque identifier independent of tree position.
	Key string

	Title       string
	Description string

	// Capacity is the explicit child capacity. nil means dynamic capacity:
	// a policy base plus one per shipped child.
	Capacity *int

	Stage       Stage
	Hold        Hold
	Terminus    Terminus
	HumanReview bool

	// Dependencies names external or prerequisite work this node needs
	// before implementation can start. Order is preserved.
	Dependencies []string
	// Prerequisites lists the ids of child nodes spawned to satisfy
	// Dependencies, in spawn order.
	Prerequisites []string

	// DebugAttempts counts consecutive failed debug ladder rungs, 0..5.
	DebugAttempts int

	// Version increases monotonically on any content edit. State
	// transitions do not bump it; vetting decisions are keyed to it.
	Version int64

	// Saved is the pre-broken snapshot, nil unless a debug cycle is active.
	Saved *SavedContext

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the node has permanently exited the workflow.
func (n *StoryNode) Terminal() bool { return n.Terminus != TerminusNone }

// Parked reports whether the node sits in a hold that only a human decision
// or vetting action can clear. Heartbeats on parked nodes are no-ops.
func (n *StoryNode) Parked() bool {
	switch n.Hold {
	case HoldPaused, HoldWishlisted, HoldConflicted:
		return true
	}
	return false
}

// Snapshot returns the read-only view handed to external collaborators.
func (n *StoryNode) Snapshot() NodeSnapshot {
	return NodeSnapshot{
		ID:            n.ID,
		Key:           n.Key,
		Title:         n.Title,
		Description:   n.Description,
		Stage:         n.Stage,
		Hold:          n.Hold,
		Terminus:      n.Terminus,
		DebugAttempts: n.DebugAttempts,
		Version:       n.Version,
	}
}

// NodeSnapshot is the immutable node view passed to collaborators. It never
// carries artifact bodies, only the node's own fields.
type NodeSnapshot struct {
	ID            string
	Key           string
	Title         string
	Description   string
	Stage         Stage
	Hold          Hold
	Terminus      Terminus
	DebugAttempts int
	Version       int64
}

// EffectiveCapacity resolves a node's child capacity: the explicit value if
// set, otherwise base plus one slot per shipped child.
func EffectiveCapacity(capacity *int, base, shippedChildren int) int {
	if capacity != nil {
		return *capacity
	}
	return base + shippedChildren
}

// Outcome is the per-stage signal returned by the content-generation
// collaborator. The engine consumes only this signal; any produced artifacts
// are referenced by opaque pointers.
type Outcome string

const (
	OutcomeProceed   Outcome = "proceed"
	OutcomePause     Outcome = "pause"
	OutcomeVerified  Outcome = "verified"
	OutcomeCompleted Outcome = "completed"
	OutcomePartial   Outcome = "partial"
	OutcomeFailed    Outcome = "failed"
)

// ArtifactRef is an opaque pointer (path or id) into the external artifact
// store. The engine never dereferences it.
type ArtifactRef string

// Decision is a human verdict on an escalated or parked node.
type Decision string

const (
	DecisionApprove       Decision = "approve"
	DecisionReject        Decision = "reject"
	DecisionRequestPolish Decision = "request-polish"
	DecisionWishlist      Decision = "wishlist"
	DecisionPause         Decision = "pause"
	DecisionResume        Decision = "resume"
)

// Classification is the pairwise conflict verdict produced by vetting.
type Classification string

const (
	ClassDistinct      Classification = "distinct"
	ClassDuplicate     Classification = "duplicate"
	ClassConflict      Classification = "conflict"
	ClassComplementary Classification = "complementary"
)

// VettingDecision memoizes one pairwise conflict classification, keyed to
// the exact content versions it was computed against.
type VettingDecision struct {
	PairKey        string
	NodeA          string
	NodeB          string
	VersionA       int64
	VersionB       int64
	Classification Classification
	Action         string
	DecidedAt      time.Time
}
