package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Mharbulous/StoryTree2/internal/model"
)

// PathEntry pairs a node with its closure depth relative to the queried node.
type PathEntry struct {
	Node  model.StoryNode
	Depth int
}

// NodeStats aggregates the per-node numbers the priority selector and the
// dynamic capacity rule need: tree depth, direct child count, and how many
// direct children have shipped.
type NodeStats struct {
	Depth           int
	ChildCount      int
	ShippedChildren int
}

// InsertNode atomically inserts a node under parentID: the node row, a copy
// of every ancestor closure row of the parent at depth+1, and the depth-0
// self row. An empty parentID inserts a root.
//
// Returns NotFoundError if the parent does not exist. On any failure the
// transaction rolls back whole - a node can never exist without its self
// closure row.
func (s *Store) InsertNode(ctx context.Context, parentID string, n model.StoryNode) error {
	n, err := prepareNode(n)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertNodeTx(ctx, tx, parentID, n)
	})
}

// prepareNode validates the three state fields and fills insert defaults.
func prepareNode(n model.StoryNode) (model.StoryNode, error) {
	if !model.ValidStage(n.Stage) {
		return n, &model.ValidationError{
			Code: model.ErrCodeUnknownValue, NodeID: n.ID,
			Message: fmt.Sprintf("unknown stage %q", n.Stage),
		}
	}
	if n.Hold == "" {
		n.Hold = model.HoldReady
	}
	if !model.ValidHold(n.Hold) {
		return n, &model.ValidationError{
			Code: model.ErrCodeUnknownValue, NodeID: n.ID,
			Message: fmt.Sprintf("unknown hold %q", n.Hold),
		}
	}
	if n.Terminus != model.TerminusNone && !model.ValidTerminus(n.Terminus) {
		return n, &model.ValidationError{
			Code: model.ErrCodeUnknownValue, NodeID: n.ID,
			Message: fmt.Sprintf("unknown terminus %q", n.Terminus),
		}
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = now
	}
	if n.Version == 0 {
		n.Version = 1
	}
	return n, nil
}

// insertNodeTx performs the three-part closure insert inside an open
// transaction: node row, copied ancestor paths, self path.
func insertNodeTx(ctx context.Context, tx *sql.Tx, parentID string, n model.StoryNode) error {
	if parentID != "" {
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM story_nodes WHERE id = ?`, parentID,
		).Scan(&one)
		if err == sql.ErrNoRows {
			return &model.NotFoundError{Kind: "parent", ID: parentID}
		}
		if err != nil {
			return fmt.Errorf("check parent: %w", err)
		}
	}

	depsJSON, err := marshalList(n.Dependencies)
	if err != nil {
		return err
	}
	prereqJSON, err := marshalList(n.Prerequisites)
	if err != nil {
		return err
	}

	savedStage, savedHold := savedValues(n.Saved)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO story_nodes
		(id, node_key, title, description, capacity, stage, hold, terminus,
		 human_review, dependencies, prerequisites, debug_attempts, version,
		 saved_stage, saved_hold, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		n.ID, n.Key, n.Title, n.Description, capacityValue(n.Capacity),
		string(n.Stage), string(n.Hold), terminusValue(n.Terminus),
		boolValue(n.HumanReview), depsJSON, prereqJSON, n.DebugAttempts,
		n.Version, savedStage, savedHold,
		formatTime(n.CreatedAt), formatTime(n.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert node %s: %w", n.ID, err)
	}

	if parentID != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO story_paths (ancestor_id, descendant_id, depth)
			SELECT ancestor_id, ?, depth + 1
			FROM story_paths
			WHERE descendant_id = ?
		`, n.ID, parentID)
		if err != nil {
			return fmt.Errorf("copy ancestor paths for %s: %w", n.ID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO story_paths (ancestor_id, descendant_id, depth)
		VALUES (?, ?, 0)
	`, n.ID, n.ID)
	if err != nil {
		return fmt.Errorf("insert self path for %s: %w", n.ID, err)
	}

	return nil
}

// DeleteSubtree removes the node, every descendant, and every closure row
// referencing any of them, in one transaction. Removing only the one node
// would orphan its descendants and break the closure invariant.
func (s *Store) DeleteSubtree(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM story_nodes WHERE id = ?`, id,
		).Scan(&one)
		if err == sql.ErrNoRows {
			return &model.NotFoundError{Kind: "node", ID: id}
		}
		if err != nil {
			return fmt.Errorf("check node: %w", err)
		}

		// Closure rows cascade via ON DELETE CASCADE on both columns.
		_, err = tx.ExecContext(ctx, `
			DELETE FROM story_nodes
			WHERE id IN (
				SELECT descendant_id FROM story_paths WHERE ancestor_id = ?
			)
		`, id)
		if err != nil {
			return fmt.Errorf("delete subtree of %s: %w", id, err)
		}
		return nil
	})
}

// AncestorsOf returns the root-to-node chain including the node itself.
// Entries are ordered root first; Depth is the distance from the node, so
// the node itself carries depth 0 and the root the largest depth.
func (s *Store) AncestorsOf(ctx context.Context, id string) ([]PathEntry, error) {
	entries, err := s.queryPath(ctx, `
		SELECT `+nodeColumns+`, p.depth
		FROM story_paths p
		JOIN story_nodes ON story_nodes.id = p.ancestor_id
		WHERE p.descendant_id = ?
		ORDER BY p.depth DESC
	`, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &model.NotFoundError{Kind: "node", ID: id}
	}
	return entries, nil
}

// DescendantsOf returns the node's subtree including the node itself,
// ordered shallow to deep. Depth is the distance below the queried node.
func (s *Store) DescendantsOf(ctx context.Context, id string) ([]PathEntry, error) {
	entries, err := s.queryPath(ctx, `
		SELECT `+nodeColumns+`, p.depth
		FROM story_paths p
		JOIN story_nodes ON story_nodes.id = p.descendant_id
		WHERE p.ancestor_id = ?
		ORDER BY p.depth ASC, story_nodes.created_at ASC, story_nodes.id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &model.NotFoundError{Kind: "node", ID: id}
	}
	return entries, nil
}

// ChildrenOf returns the node's direct children, oldest-created first.
func (s *Store) ChildrenOf(ctx context.Context, id string) ([]model.StoryNode, error) {
	entries, err := s.queryPath(ctx, `
		SELECT `+nodeColumns+`, p.depth
		FROM story_paths p
		JOIN story_nodes ON story_nodes.id = p.descendant_id
		WHERE p.ancestor_id = ? AND p.depth = 1
		ORDER BY story_nodes.created_at ASC, story_nodes.id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	nodes := make([]model.StoryNode, len(entries))
	for i, e := range entries {
		nodes[i] = e.Node
	}
	return nodes, nil
}

// Roots returns every node with no parent, oldest-created first.
func (s *Store) Roots(ctx context.Context) ([]model.StoryNode, error) {
	return s.queryNodes(ctx, `
		SELECT `+nodeColumns+` FROM story_nodes
		WHERE (SELECT MAX(depth) FROM story_paths WHERE descendant_id = story_nodes.id) = 0
		ORDER BY created_at ASC, id ASC
	`)
}

// DepthOf returns the node's distance from its root (root = 0).
func (s *Store) DepthOf(ctx context.Context, id string) (int, error) {
	var depth sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(depth) FROM story_paths WHERE descendant_id = ?
	`, id).Scan(&depth)
	if err != nil {
		return 0, fmt.Errorf("depth of %s: %w", id, err)
	}
	if !depth.Valid {
		return 0, &model.NotFoundError{Kind: "node", ID: id}
	}
	return int(depth.Int64), nil
}

// StatsOf returns depth, child count and shipped-child count for one node.
// Shipped children are direct children at stage "shipped" with no terminus;
// terminal children are not finished work and do not widen dynamic capacity.
func (s *Store) StatsOf(ctx context.Context, id string) (NodeStats, error) {
	var stats NodeStats
	var depth sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT MAX(depth) FROM story_paths WHERE descendant_id = ?),
			(SELECT COUNT(*) FROM story_paths WHERE ancestor_id = ? AND depth = 1),
			(SELECT COUNT(*)
			 FROM story_paths p
			 JOIN story_nodes c ON c.id = p.descendant_id
			 WHERE p.ancestor_id = ? AND p.depth = 1
			   AND c.stage = 'shipped' AND c.terminus IS NULL)
	`, id, id, id).Scan(&depth, &stats.ChildCount, &stats.ShippedChildren)
	if err != nil {
		return NodeStats{}, fmt.Errorf("stats of %s: %w", id, err)
	}
	if !depth.Valid {
		return NodeStats{}, &model.NotFoundError{Kind: "node", ID: id}
	}
	stats.Depth = int(depth.Int64)
	return stats, nil
}

// queryPath runs a closure query whose select list is nodeColumns plus the
// path depth.
func (s *Store) queryPath(ctx context.Context, query string, args ...any) ([]PathEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query paths: %w", err)
	}
	defer rows.Close()

	var entries []PathEntry
	for rows.Next() {
		var r nodeRow
		var e PathEntry
		if err := rows.Scan(r.dests(&e.Depth)...); err != nil {
			return nil, fmt.Errorf("scan path row: %w", err)
		}
		if e.Node, err = r.toModel(); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paths: %w", err)
	}
	return entries, nil
}
