package testutil

import (
	"context"
	"sync"

	"github.com/Mharbulous/StoryTree2/internal/model"
)

// ScriptedGenerator replays a fixed sequence of content outcomes.
//
// Each Generate call consumes the next outcome in the script; once the
// script is exhausted, the last outcome repeats. An empty script reports
// model.OutcomeCompleted forever.
//
// Thread-safety: safe for concurrent use via internal mutex.
type ScriptedGenerator struct {
	mu        sync.Mutex
	outcomes  []model.Outcome
	artifacts []model.ArtifactRef
	calls     int
}

// NewScriptedGenerator creates a generator that replays outcomes in order.
func NewScriptedGenerator(outcomes ...model.Outcome) *ScriptedGenerator {
	return &ScriptedGenerator{outcomes: outcomes}
}

// WithArtifacts sets artifact references returned with every outcome.
func (g *ScriptedGenerator) WithArtifacts(refs ...model.ArtifactRef) *ScriptedGenerator {
	g.artifacts = refs
	return g
}

// Generate implements engine.ContentGenerator.
func (g *ScriptedGenerator) Generate(context.Context, model.NodeSnapshot, []model.ArtifactRef) (model.Outcome, []model.ArtifactRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	outcome := model.OutcomeCompleted
	if len(g.outcomes) > 0 {
		i := g.calls
		if i >= len(g.outcomes) {
			i = len(g.outcomes) - 1
		}
		outcome = g.outcomes[i]
	}
	g.calls++
	return outcome, g.artifacts, nil
}

// Calls returns how many times Generate ran.
func (g *ScriptedGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// ScriptedDecider replays a fixed sequence of human decisions, repeating
// the final one once exhausted.
type ScriptedDecider struct {
	mu        sync.Mutex
	decisions []model.Decision
	calls     int
}

// NewScriptedDecider creates a decider that replays decisions in order.
func NewScriptedDecider(decisions ...model.Decision) *ScriptedDecider {
	return &ScriptedDecider{decisions: decisions}
}

// Decide implements engine.HumanDecider.
func (d *ScriptedDecider) Decide(context.Context, model.NodeSnapshot) (model.Decision, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	decision := model.DecisionApprove
	if len(d.decisions) > 0 {
		i := d.calls
		if i >= len(d.decisions) {
			i = len(d.decisions) - 1
		}
		decision = d.decisions[i]
	}
	d.calls++
	return decision, nil
}

// ScriptedRemediator replays a fixed sequence of debug rung results and
// records the strategies it was asked to run.
type ScriptedRemediator struct {
	mu         sync.Mutex
	results    []bool
	calls      int
	strategies []string
}

// NewScriptedRemediator creates a remediator whose nth Attempt reports
// results[n]; once exhausted it reports false.
func NewScriptedRemediator(results ...bool) *ScriptedRemediator {
	return &ScriptedRemediator{results: results}
}

// Attempt implements engine.Remediator.
func (r *ScriptedRemediator) Attempt(_ context.Context, _ model.NodeSnapshot, strategy string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fixed := false
	if r.calls < len(r.results) {
		fixed = r.results[r.calls]
	}
	r.calls++
	r.strategies = append(r.strategies, strategy)
	return fixed, nil
}

// Strategies returns the strategies attempted, in order.
func (r *ScriptedRemediator) Strategies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.strategies...)
}

// FixedClassifier always reports the same classification and action, and
// counts its calls so cache behavior can be asserted.
type FixedClassifier struct {
	mu     sync.Mutex
	class  model.Classification
	action string
	calls  int
}

// NewFixedClassifier creates a classifier with a constant verdict.
func NewFixedClassifier(class model.Classification, action string) *FixedClassifier {
	return &FixedClassifier{class: class, action: action}
}

// Classify implements engine.ConflictClassifier.
func (c *FixedClassifier) Classify(context.Context, model.NodeSnapshot, model.NodeSnapshot) (model.Classification, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.class, c.action, nil
}

// Calls returns how many times Classify ran.
func (c *FixedClassifier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
