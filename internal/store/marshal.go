package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Mharbulous/StoryTree2/internal/model"
)

// timeLayout is the canonical timestamp encoding for all TEXT time columns.
const timeLayout = time.RFC3339Nano

// nodeColumns is the canonical column list for story_nodes reads. Keep in
// sync with scanNode.
const nodeColumns = `id, node_key, title, description, capacity, stage, hold,
	terminus, human_review, dependencies, prerequisites, debug_attempts,
	version, saved_stage, saved_hold, created_at, updated_at`

// rowScanner abstracts *sql.Row and *sql.Rows for scanNode.
type rowScanner interface {
	Scan(dest ...any) error
}

// nodeRow holds a story_nodes row in its raw column encoding.
type nodeRow struct {
	id, key, title, description string
	capacity                    sql.NullInt64
	stage, hold                 string
	terminus                    sql.NullString
	review                      int
	depsJSON, prereqJSON        string
	debugAttempts               int
	version                     int64
	savedStage, savedHold       sql.NullString
	createdAt, updatedAt        string
}

// dests returns scan destinations in nodeColumns order, optionally followed
// by extra destinations for additional select-list columns.
func (r *nodeRow) dests(extra ...any) []any {
	d := []any{
		&r.id, &r.key, &r.title, &r.description, &r.capacity,
		&r.stage, &r.hold, &r.terminus, &r.review,
		&r.depsJSON, &r.prereqJSON, &r.debugAttempts, &r.version,
		&r.savedStage, &r.savedHold, &r.createdAt, &r.updatedAt,
	}
	return append(d, extra...)
}

// toModel decodes the raw row into a StoryNode.
func (r *nodeRow) toModel() (model.StoryNode, error) {
	n := model.StoryNode{
		ID:            r.id,
		Key:           r.key,
		Title:         r.title,
		Description:   r.description,
		Stage:         model.Stage(r.stage),
		Hold:          model.Hold(r.hold),
		DebugAttempts: r.debugAttempts,
		Version:       r.version,
	}

	if r.capacity.Valid {
		c := int(r.capacity.Int64)
		n.Capacity = &c
	}
	if r.terminus.Valid {
		n.Terminus = model.Terminus(r.terminus.String)
	}
	n.HumanReview = r.review != 0

	var err error
	if n.Dependencies, err = unmarshalList(r.depsJSON); err != nil {
		return model.StoryNode{}, fmt.Errorf("node %s dependencies: %w", n.ID, err)
	}
	if n.Prerequisites, err = unmarshalList(r.prereqJSON); err != nil {
		return model.StoryNode{}, fmt.Errorf("node %s prerequisites: %w", n.ID, err)
	}

	if r.savedStage.Valid && r.savedHold.Valid {
		n.Saved = &model.SavedContext{
			Stage: model.Stage(r.savedStage.String),
			Hold:  model.Hold(r.savedHold.String),
		}
	}

	if n.CreatedAt, err = parseTime(r.createdAt); err != nil {
		return model.StoryNode{}, fmt.Errorf("node %s created_at: %w", n.ID, err)
	}
	if n.UpdatedAt, err = parseTime(r.updatedAt); err != nil {
		return model.StoryNode{}, fmt.Errorf("node %s updated_at: %w", n.ID, err)
	}

	return n, nil
}

// scanNode reads one story_nodes row in nodeColumns order.
func scanNode(row rowScanner) (model.StoryNode, error) {
	var r nodeRow
	if err := row.Scan(r.dests()...); err != nil {
		return model.StoryNode{}, err
	}
	return r.toModel()
}

// marshalList encodes an ordered string list as JSON. nil encodes as "[]" so
// the column is never NULL and round-trips to an empty list.
func marshalList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal list: %w", err)
	}
	return string(b), nil
}

func unmarshalList(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("unmarshal list: %w", err)
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// nullable helpers for write paths.

func terminusValue(t model.Terminus) any {
	if t == model.TerminusNone {
		return nil
	}
	return string(t)
}

func capacityValue(c *int) any {
	if c == nil {
		return nil
	}
	return int64(*c)
}

func savedValues(s *model.SavedContext) (any, any) {
	if s == nil {
		return nil, nil
	}
	return string(s.Stage), string(s.Hold)
}

func boolValue(b bool) int {
	if b {
		return 1
	}
	return 0
}
