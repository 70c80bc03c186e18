package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Mharbulous/StoryTree2/internal/model"
	"github.com/Mharbulous/StoryTree2/internal/policy"
	"github.com/Mharbulous/StoryTree2/internal/store"
)

// ContentGenerator is the external collaborator that produces drafts,
// plans, code and documentation. The engine consumes only the outcome
// signal and opaque artifact references, never content bodies.
type ContentGenerator interface {
	Generate(ctx context.Context, snapshot model.NodeSnapshot, docs []model.ArtifactRef) (model.Outcome, []model.ArtifactRef, error)
}

// HumanDecider is the external collaborator consulted for escalated nodes.
type HumanDecider interface {
	Decide(ctx context.Context, snapshot model.NodeSnapshot) (model.Decision, error)
}

// Remediator executes one debug ladder strategy against a broken node and
// re-verifies via the stage's associated check. It reports whether the node
// is fixed.
type Remediator interface {
	Attempt(ctx context.Context, snapshot model.NodeSnapshot, strategy string) (bool, error)
}

// ConflictClassifier performs pairwise conflict classification for vetting.
// Results are cached keyed to content versions; the classifier is only
// called on a miss.
type ConflictClassifier interface {
	Classify(ctx context.Context, a, b model.NodeSnapshot) (model.Classification, string, error)
}

// KeyGenerator produces stable opaque node keys.
// Implemented by UUIDv7Generator (production) and fixed generators (tests).
type KeyGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 node keys.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Engine drives heartbeats over one store with one policy.
//
// Thread-safety: Engine holds no mutable state of its own; all mutation
// goes through the store's guarded commits, so one Engine may serve
// concurrent heartbeats.
type Engine struct {
	store      *store.Store
	policy     *policy.Policy
	generator  ContentGenerator
	decider    HumanDecider
	remediator Remediator
	classifier ConflictClassifier
	keys       KeyGenerator
	log        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithContentGenerator sets the content-generation collaborator.
func WithContentGenerator(g ContentGenerator) Option {
	return func(e *Engine) { e.generator = g }
}

// WithHumanDecider sets the human-decision collaborator. Without one,
// heartbeats on escalated nodes are no-ops that wait for an explicit
// Decide call.
func WithHumanDecider(d HumanDecider) Option {
	return func(e *Engine) { e.decider = d }
}

// WithRemediator sets the debug ladder collaborator.
func WithRemediator(r Remediator) Option {
	return func(e *Engine) { e.remediator = r }
}

// WithClassifier sets the vetting collaborator.
func WithClassifier(c ConflictClassifier) Option {
	return func(e *Engine) { e.classifier = c }
}

// WithKeyGenerator overrides the node key generator (for testing).
func WithKeyGenerator(g KeyGenerator) Option {
	return func(e *Engine) { e.keys = g }
}

// WithLogger overrides the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an Engine over the given store and policy.
func New(st *store.Store, pol *policy.Policy, opts ...Option) *Engine {
	e := &Engine{
		store:  st,
		policy: pol,
		keys:   UUIDv7Generator{},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store exposes the underlying store's read API for external schedulers.
func (e *Engine) Store() *store.Store { return e.store }

// Policy returns the active workflow policy.
func (e *Engine) Policy() *policy.Policy { return e.policy }
