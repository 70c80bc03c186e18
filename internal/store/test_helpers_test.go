package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Mharbulous/StoryTree2/internal/model"
)

// createTestStore creates a fresh on-disk store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testNode creates a node with minimal required fields.
func testNode(id, title string) model.StoryNode {
	return model.StoryNode{
		ID:    id,
		Key:   "key-" + id,
		Title: title,
		Stage: model.StageConcept,
		Hold:  model.HoldReady,
	}
}

// insertChain inserts a root and a linear chain of descendants beneath it,
// returning the ids in insertion order.
func insertChain(t *testing.T, s *Store, depth int) []string {
	t.Helper()
	ctx := context.Background()
	ids := make([]string, 0, depth)

	id := "1"
	if err := s.InsertNode(ctx, "", testNode(id, "root")); err != nil {
		t.Fatalf("insert root: %v", err)
	}
	ids = append(ids, id)
	for i := 1; i < depth; i++ {
		child := id + ".1"
		if err := s.InsertNode(ctx, id, testNode(child, "node "+child)); err != nil {
			t.Fatalf("insert %s: %v", child, err)
		}
		ids = append(ids, child)
		id = child
	}
	return ids
}
