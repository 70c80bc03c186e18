package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/Mharbulous/StoryTree2/internal/model"
	"github.com/Mharbulous/StoryTree2/internal/policy"
	"github.com/Mharbulous/StoryTree2/internal/store"
	"github.com/Mharbulous/StoryTree2/internal/testutil"
)

// newTestEngine creates an engine over a fresh store, default policy,
// sequential test keys, and a silent logger.
func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	base := []Option{
		WithKeyGenerator(testutil.NewSequentialKeyGenerator("")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New(st, policy.Default(), append(base, opts...)...)
}

// insertNode inserts a node and returns its committed form.
func insertNode(t *testing.T, e *Engine, parentID string, n model.StoryNode) model.StoryNode {
	t.Helper()
	ctx := context.Background()
	if n.Key == "" {
		n.Key = "key-" + n.ID
	}
	if err := e.store.InsertNode(ctx, parentID, n); err != nil {
		t.Fatalf("insert %s: %v", n.ID, err)
	}
	got, err := e.store.GetNode(ctx, n.ID)
	if err != nil {
		t.Fatalf("read back %s: %v", n.ID, err)
	}
	return got
}

// forceState commits a raw state change, bypassing lifecycle validation.
// Tests use it to park a node in a mid-workflow state directly.
func forceState(t *testing.T, e *Engine, id string, mutate func(*model.StoryNode)) model.StoryNode {
	t.Helper()
	ctx := context.Background()
	prev, err := e.store.GetNode(ctx, id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	updated := prev
	mutate(&updated)
	if err := e.store.CommitState(ctx, prev, updated); err != nil {
		t.Fatalf("force state on %s: %v", id, err)
	}
	got, err := e.store.GetNode(ctx, id)
	if err != nil {
		t.Fatalf("read back %s: %v", id, err)
	}
	return got
}

func atState(id string, stage model.Stage, hold model.Hold) model.StoryNode {
	return model.StoryNode{ID: id, Title: "node " + id, Stage: stage, Hold: hold}
}
