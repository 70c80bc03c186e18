package testutil

import (
	"fmt"
	"sync"
)

// SequentialKeyGenerator generates predictable node keys in sequence.
//
// This enables deterministic tests: the same scenario produces the same
// node keys every run, so assertions can name keys literally.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SequentialKeyGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialKeyGenerator creates a generator producing "<prefix>-1",
// "<prefix>-2", ... If prefix is empty, "test-key" is used.
func NewSequentialKeyGenerator(prefix string) *SequentialKeyGenerator {
	if prefix == "" {
		prefix = "test-key"
	}
	return &SequentialKeyGenerator{prefix: prefix}
}

// Generate returns the next key in sequence.
//
// Implements engine.KeyGenerator.
func (g *SequentialKeyGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Reset restarts the sequence. After Reset(), the next Generate() returns
// "<prefix>-1" again.
func (g *SequentialKeyGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n = 0
}
