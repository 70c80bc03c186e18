package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Mharbulous/StoryTree2/internal/model"
)

// GetNode fetches one node by id.
func (s *Store) GetNode(ctx context.Context, id string) (model.StoryNode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+nodeColumns+` FROM story_nodes WHERE id = ?
	`, id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return model.StoryNode{}, &model.NotFoundError{Kind: "node", ID: id}
	}
	if err != nil {
		return model.StoryNode{}, fmt.Errorf("get node %s: %w", id, err)
	}
	return n, nil
}

// GetNodeByKey fetches one node by its stable opaque key.
func (s *Store) GetNodeByKey(ctx context.Context, key string) (model.StoryNode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+nodeColumns+` FROM story_nodes WHERE node_key = ?
	`, key)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return model.StoryNode{}, &model.NotFoundError{Kind: "node", ID: key}
	}
	if err != nil {
		return model.StoryNode{}, fmt.Errorf("get node by key %s: %w", key, err)
	}
	return n, nil
}

// ListByState returns all nodes at one (stage, hold) pair, oldest-created
// first. Empty stage or hold matches every value of that field.
func (s *Store) ListByState(ctx context.Context, stage model.Stage, hold model.Hold) ([]model.StoryNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM story_nodes WHERE 1=1`
	var args []any
	if stage != "" {
		query += ` AND stage = ?`
		args = append(args, string(stage))
	}
	if hold != "" {
		query += ` AND hold = ?`
		args = append(args, string(hold))
	}
	query += ` ORDER BY created_at ASC, id ASC`
	return s.queryNodes(ctx, query, args...)
}

// ListActive returns all non-terminal nodes grouped for batch heartbeats:
// ordered by (stage, hold), then oldest-created first within each group.
func (s *Store) ListActive(ctx context.Context) ([]model.StoryNode, error) {
	return s.queryNodes(ctx, `
		SELECT `+nodeColumns+`
		FROM story_nodes
		WHERE terminus IS NULL
		ORDER BY stage ASC, hold ASC, created_at ASC, id ASC
	`)
}

// GrowthCandidate pairs a ready node with the stats the priority selector
// ranks on.
type GrowthCandidate struct {
	Node  model.StoryNode
	Stats NodeStats
}

// ListGrowthCandidates returns every non-terminal node with a ready hold,
// each with its depth and child counts. Capacity filtering and ranking stay
// with the caller, since dynamic capacity depends on policy.
func (s *Store) ListGrowthCandidates(ctx context.Context) ([]GrowthCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+nodeColumns+`,
			(SELECT MAX(depth) FROM story_paths WHERE descendant_id = story_nodes.id),
			(SELECT COUNT(*) FROM story_paths WHERE ancestor_id = story_nodes.id AND depth = 1),
			(SELECT COUNT(*)
			 FROM story_paths p
			 JOIN story_nodes c ON c.id = p.descendant_id
			 WHERE p.ancestor_id = story_nodes.id AND p.depth = 1
			   AND c.stage = 'shipped' AND c.terminus IS NULL)
		FROM story_nodes
		WHERE terminus IS NULL AND hold = 'ready'
		ORDER BY created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query growth candidates: %w", err)
	}
	defer rows.Close()

	var candidates []GrowthCandidate
	for rows.Next() {
		var r nodeRow
		var c GrowthCandidate
		if err := rows.Scan(r.dests(&c.Stats.Depth, &c.Stats.ChildCount, &c.Stats.ShippedChildren)...); err != nil {
			return nil, fmt.Errorf("scan growth candidate: %w", err)
		}
		if c.Node, err = r.toModel(); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate growth candidates: %w", err)
	}
	return candidates, nil
}

// CommitState writes the state fields of updated, guarded by the exact
// state the caller read in prev. The guard covers version AND the old
// (stage, hold, terminus, debug_attempts): state transitions do not bump
// the version, so matching the version alone could let two concurrent
// heartbeats both win.
//
// Returns ConcurrencyConflict if the guard misses on an existing node.
func (s *Store) CommitState(ctx context.Context, prev, updated model.StoryNode) error {
	savedStage, savedHold := savedValues(updated.Saved)
	res, err := s.db.ExecContext(ctx, `
		UPDATE story_nodes
		SET stage = ?, hold = ?, terminus = ?, human_review = ?,
		    debug_attempts = ?, saved_stage = ?, saved_hold = ?, updated_at = ?
		WHERE id = ? AND version = ?
		  AND stage = ? AND hold = ?
		  AND COALESCE(terminus, '') = ?
		  AND debug_attempts = ?
	`,
		string(updated.Stage), string(updated.Hold), terminusValue(updated.Terminus),
		boolValue(updated.HumanReview), updated.DebugAttempts,
		savedStage, savedHold, formatTime(time.Now()),
		prev.ID, prev.Version,
		string(prev.Stage), string(prev.Hold), string(prev.Terminus),
		prev.DebugAttempts,
	)
	if err != nil {
		return fmt.Errorf("commit state for %s: %w", prev.ID, err)
	}
	return s.checkGuard(ctx, res, prev.ID, prev.Version)
}

// UpdateContent writes the content fields (title, description, capacity,
// dependencies) and bumps the version, invalidating cached vetting
// decisions that reference the node.
func (s *Store) UpdateContent(ctx context.Context, n model.StoryNode) error {
	depsJSON, err := marshalList(n.Dependencies)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE story_nodes
		SET title = ?, description = ?, capacity = ?, dependencies = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		n.Title, n.Description, capacityValue(n.Capacity), depsJSON,
		formatTime(time.Now()),
		n.ID, n.Version,
	)
	if err != nil {
		return fmt.Errorf("update content for %s: %w", n.ID, err)
	}
	return s.checkGuard(ctx, res, n.ID, n.Version)
}

// SpawnPrerequisite atomically inserts a dependency child under the parent
// and appends the child's id to the parent's prerequisite list. The parent
// update is guarded by the state the resolver read, so a racing heartbeat
// cannot interleave a duplicate spawn.
func (s *Store) SpawnPrerequisite(ctx context.Context, parent model.StoryNode, child model.StoryNode) error {
	child, err := prepareNode(child)
	if err != nil {
		return err
	}
	prereqs := append(append([]string{}, parent.Prerequisites...), child.ID)
	prereqJSON, err := marshalList(prereqs)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertNodeTx(ctx, tx, parent.ID, child); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE story_nodes
			SET prerequisites = ?, updated_at = ?
			WHERE id = ? AND version = ? AND stage = ? AND hold = ?
		`,
			prereqJSON, formatTime(time.Now()),
			parent.ID, parent.Version, string(parent.Stage), string(parent.Hold),
		)
		if err != nil {
			return fmt.Errorf("append prerequisite on %s: %w", parent.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("append prerequisite on %s: %w", parent.ID, err)
		}
		if affected == 0 {
			return &model.ConcurrencyConflict{NodeID: parent.ID, ExpectedVersion: parent.Version}
		}
		return nil
	})
}

// checkGuard turns a zero-row UPDATE into the right error: NotFound if the
// node is gone, ConcurrencyConflict if it moved under the caller.
func (s *Store) checkGuard(ctx context.Context, res sql.Result, id string, version int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", id, err)
	}
	if affected > 0 {
		return nil
	}
	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM story_nodes WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return &model.NotFoundError{Kind: "node", ID: id}
	}
	if err != nil {
		return fmt.Errorf("check node %s: %w", id, err)
	}
	return &model.ConcurrencyConflict{NodeID: id, ExpectedVersion: version}
}

// queryNodes runs a query whose select list is exactly nodeColumns.
func (s *Store) queryNodes(ctx context.Context, query string, args ...any) ([]model.StoryNode, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []model.StoryNode
	for rows.Next() {
		var r nodeRow
		if err := rows.Scan(r.dests()...); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		n, err := r.toModel()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	if nodes == nil {
		nodes = []model.StoryNode{}
	}
	return nodes, nil
}
