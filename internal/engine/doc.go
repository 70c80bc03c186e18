// Package engine implements the heartbeat workflow engine for story trees.
//
// The engine is the top-level driver: given one node, it inspects the
// three-axis state (stage, hold, terminus), dispatches to exactly one
// handler, and commits at most one validated transition before returning.
// It never chains transitions in a single call - a node moves through the
// workflow one heartbeat at a time, which is what makes incremental,
// concurrent execution safe.
//
// ARCHITECTURE:
//
// Dispatch-by-tuple:
// The (stage, hold) pair maps to a handler through an explicit lookup table
// rather than a chain of conditionals, so an unhandled state is a visible
// table gap rather than a silently missed branch.
//
// Handlers:
//   - content step: calls the external content-generation collaborator and
//     maps its outcome signal onto the next transition
//   - human step: consults the human-decision collaborator for escalated
//     nodes
//   - debug ladder: bounded-retry fault recovery with history-state resume
//   - dependency resolver: spawns prerequisite children and gates the
//     blocked → queued → ready sequence at the implementing stage
//   - gates: mechanical checks (prerequisite threshold, children shipped)
//     that need no collaborator at all
//
// Concurrency model:
// Heartbeats on different nodes may run concurrently; there is no global
// lock. Each commit is guarded by the exact state the heartbeat read, so a
// racing heartbeat on the same node loses with a ConcurrencyConflict and is
// simply retried. A collaborator failure or cancellation commits nothing:
// the node stays at its last committed state and the next heartbeat retries
// the same step. That is the system's entire retry mechanism.
package engine
