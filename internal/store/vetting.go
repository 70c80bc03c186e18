package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Mharbulous/StoryTree2/internal/model"
)

// StoreVetting upserts a vetting decision keyed by the canonical ordered
// pair key. A re-vet of the same pair simply replaces the previous row.
func (s *Store) StoreVetting(ctx context.Context, d model.VettingDecision) error {
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vetting_decisions
		(pair_key, node_a, node_b, version_a, version_b, classification, action, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pair_key) DO UPDATE SET
			node_a = excluded.node_a,
			node_b = excluded.node_b,
			version_a = excluded.version_a,
			version_b = excluded.version_b,
			classification = excluded.classification,
			action = excluded.action,
			decided_at = excluded.decided_at
	`,
		d.PairKey, d.NodeA, d.NodeB, d.VersionA, d.VersionB,
		string(d.Classification), d.Action, formatTime(d.DecidedAt),
	)
	if err != nil {
		return fmt.Errorf("store vetting %s: %w", d.PairKey, err)
	}
	return nil
}

// LookupVetting returns the cached decision for a pair, but only when both
// recorded versions still match the nodes' current versions. Any mismatch
// is a miss: there is no active eviction, stale rows just stop matching.
func (s *Store) LookupVetting(ctx context.Context, pairKey string) (model.VettingDecision, bool, error) {
	var (
		d          model.VettingDecision
		class      string
		decidedAt  string
		curA, curB sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT v.pair_key, v.node_a, v.node_b, v.version_a, v.version_b,
		       v.classification, v.action, v.decided_at,
		       (SELECT version FROM story_nodes WHERE id = v.node_a),
		       (SELECT version FROM story_nodes WHERE id = v.node_b)
		FROM vetting_decisions v
		WHERE v.pair_key = ?
	`, pairKey).Scan(
		&d.PairKey, &d.NodeA, &d.NodeB, &d.VersionA, &d.VersionB,
		&class, &d.Action, &decidedAt, &curA, &curB,
	)
	if err == sql.ErrNoRows {
		return model.VettingDecision{}, false, nil
	}
	if err != nil {
		return model.VettingDecision{}, false, fmt.Errorf("lookup vetting %s: %w", pairKey, err)
	}

	// Hit requires both nodes to still exist at the recorded versions.
	if !curA.Valid || !curB.Valid || curA.Int64 != d.VersionA || curB.Int64 != d.VersionB {
		return model.VettingDecision{}, false, nil
	}

	d.Classification = model.Classification(class)
	if d.DecidedAt, err = parseTime(decidedAt); err != nil {
		return model.VettingDecision{}, false, fmt.Errorf("lookup vetting %s: %w", pairKey, err)
	}
	return d, true, nil
}
