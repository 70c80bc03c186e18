package engine

import "github.com/Mharbulous/StoryTree2/internal/model"

// handlerKind identifies the single handler a heartbeat dispatches to.
type handlerKind int

const (
	// handleNone: terminal, epic, parked, or unrecognized state. No-op.
	handleNone handlerKind = iota

	// handleContent: call the content generator and map its outcome.
	handleContent

	// handleHuman: consult the human decider for an escalated node.
	handleHuman

	// handleLadder: run one debug ladder rung.
	handleLadder

	// handleDependency: spawn prerequisite children, then gate
	// blocked → queued at the implementing stage.
	handleDependency

	// handlePrereqGate: gate queued → ready on the prerequisite
	// completion threshold.
	handlePrereqGate

	// handleStageEntry: enter implementing from planning:queued, picking
	// the entry hold from the dependency and prerequisite lists.
	handleStageEntry

	// handleReleaseGate: gate releasing:queued → ready on every child
	// being finished.
	handleReleaseGate
)

var handlerNames = map[handlerKind]string{
	handleNone:        "none",
	handleContent:     "content",
	handleHuman:       "human",
	handleLadder:      "ladder",
	handleDependency:  "dependency",
	handlePrereqGate:  "prereq-gate",
	handleStageEntry:  "stage-entry",
	handleReleaseGate: "release-gate",
}

func (k handlerKind) String() string { return handlerNames[k] }

// stateKey is the dispatch tuple.
type stateKey struct {
	stage model.Stage
	hold  model.Hold
}

// dispatchTable maps every workable (stage, hold) pair to its handler.
// States absent from the table are no-ops; adding a hold or stage therefore
// fails loud in tests (the new state does nothing) instead of falling into
// a mismatched conditional branch.
var dispatchTable = map[stateKey]handlerKind{
	{model.StageConcept, model.HoldReady}:  handleContent,
	{model.StageConcept, model.HoldPolish}: handleContent,

	{model.StagePlanning, model.HoldReady}:  handleContent,
	{model.StagePlanning, model.HoldPolish}: handleContent,
	{model.StagePlanning, model.HoldQueued}: handleStageEntry,

	{model.StageImplementing, model.HoldReady}:   handleContent,
	{model.StageImplementing, model.HoldBlocked}: handleDependency,
	{model.StageImplementing, model.HoldQueued}:  handlePrereqGate,
	{model.StageImplementing, model.HoldBroken}:  handleLadder,

	{model.StageTesting, model.HoldReady}:  handleContent,
	{model.StageTesting, model.HoldQueued}: handleContent,
	{model.StageTesting, model.HoldPolish}: handleContent,

	{model.StageReleasing, model.HoldReady}:  handleContent,
	{model.StageReleasing, model.HoldQueued}: handleReleaseGate,
	{model.StageReleasing, model.HoldBroken}: handleLadder,
	{model.StageReleasing, model.HoldPolish}: handleContent,
}

// handlerFor resolves a node's handler. Cross-cutting rules come first:
// terminal nodes, epics, and parked holds never dispatch; escalation is
// handled uniformly at every stage.
func handlerFor(n *model.StoryNode) handlerKind {
	if n.Terminal() || n.Stage == model.StageEpic || n.Stage == model.StageShipped {
		return handleNone
	}
	if n.Parked() {
		return handleNone
	}
	if n.Hold == model.HoldEscalated {
		return handleHuman
	}
	return dispatchTable[stateKey{n.Stage, n.Hold}]
}
