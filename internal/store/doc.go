// Package store provides SQLite-backed durable storage for the story tree.
//
// The store holds three kinds of rows:
//   - Story nodes: one row per work item, with the three orthogonal state
//     fields (stage, hold, terminus) CHECK-constrained in the schema
//   - Closure paths: every (ancestor, descendant, depth) pair including the
//     depth-0 self pair, so ancestor and descendant queries are single
//     indexed reads with no recursive traversal
//   - Vetting decisions: pairwise conflict classifications keyed to the
//     content versions they were computed against
//
// # Consistency rules
//
// Tree-structural mutations (insert, subtree delete) run in one transaction
// covering the node row and its complete closure-row set: a node is never
// observable without its self row, and deletion never leaves dangling paths.
//
// State commits are guarded by the state the caller read: the UPDATE matches
// on the old (stage, hold, terminus, debug_attempts) as well as the version,
// so two concurrent heartbeats on one node can never both win. The loser
// gets a ConcurrencyConflict and retries.
//
// The version column only moves on content edits (title, description,
// capacity, dependency list). Vetting cache hits compare against it, so any
// edit implicitly invalidates every cached decision involving the node.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: closure rows cascade with their nodes
package store
