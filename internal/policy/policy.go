// Package policy loads and validates the workflow policy document.
//
// The policy is the small set of tunables the heartbeat engine consults:
// the debug ladder's ordered strategy list, the prerequisite completion
// threshold, and the dynamic capacity base. Policies are written in CUE and
// unified against the embedded schema, so a malformed file fails at load
// time with a position, never mid-heartbeat.
package policy

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/Mharbulous/StoryTree2/internal/model"
)

//go:embed schema.cue
var schemaCUE string

// Policy holds the validated workflow tunables.
type Policy struct {
	// DebugStrategies is the ordered, five-deep remediation ladder.
	DebugStrategies []string `json:"debug_strategies"`

	// PrereqThreshold is the stage a prerequisite must reach (or pass)
	// before it counts as complete for the queued-to-ready gate.
	PrereqThreshold model.Stage `json:"prereq_threshold"`

	// CapacityBase is the dynamic capacity base for nodes without an
	// explicit capacity.
	CapacityBase int `json:"capacity_base"`
}

// LoadError is a policy file problem, with a CUE position when available.
type LoadError struct {
	Path    string
	Message string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("policy %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("policy: %s", e.Message)
}

// Default returns the policy produced by the embedded schema defaults.
// Panics only if the embedded schema itself is broken, which the package
// tests guard against.
func Default() *Policy {
	p, err := decode("", "{}")
	if err != nil {
		panic(fmt.Sprintf("embedded policy schema is invalid: %v", err))
	}
	return p
}

// Load reads a CUE policy file, unifies it against the schema, applies
// defaults for omitted fields, and validates the result.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: err.Error()}
	}
	return decode(path, string(data))
}

func decode(path, src string) (*Policy, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("schema: %v", err)}
	}
	def := schema.LookupPath(cue.ParsePath("#Policy"))
	if err := def.Err(); err != nil {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("schema #Policy: %v", err)}
	}

	val := ctx.CompileString(src, cue.Filename(path))
	if err := val.Err(); err != nil {
		return nil, &LoadError{Path: path, Message: err.Error()}
	}

	unified := def.Unify(val)
	if err := unified.Validate(cue.Final(), cue.Concrete(true)); err != nil {
		return nil, &LoadError{Path: path, Message: err.Error()}
	}

	var p Policy
	if err := unified.Decode(&p); err != nil {
		return nil, &LoadError{Path: path, Message: err.Error()}
	}
	if err := p.validate(); err != nil {
		return nil, &LoadError{Path: path, Message: err.Error()}
	}
	return &p, nil
}

// validate enforces the constraints CUE cannot express cheaply: strategy
// distinctness and a progressing threshold stage.
func (p *Policy) validate() error {
	if len(p.DebugStrategies) != model.MaxDebugAttempts {
		return fmt.Errorf("need exactly %d debug strategies, have %d",
			model.MaxDebugAttempts, len(p.DebugStrategies))
	}
	seen := make(map[string]bool, len(p.DebugStrategies))
	for _, s := range p.DebugStrategies {
		if s == "" {
			return fmt.Errorf("debug strategies must be non-empty")
		}
		if seen[s] {
			return fmt.Errorf("duplicate debug strategy %q", s)
		}
		seen[s] = true
	}
	if !p.PrereqThreshold.Progressing() {
		return fmt.Errorf("prereq_threshold %q is not a progressing stage", p.PrereqThreshold)
	}
	if p.CapacityBase < 1 {
		return fmt.Errorf("capacity_base must be at least 1, have %d", p.CapacityBase)
	}
	return nil
}

// StrategyForRung returns the remediation strategy for a 1-based rung.
func (p *Policy) StrategyForRung(rung int) (string, error) {
	if rung < 1 || rung > len(p.DebugStrategies) {
		return "", fmt.Errorf("rung %d out of range 1..%d", rung, len(p.DebugStrategies))
	}
	return p.DebugStrategies[rung-1], nil
}

// PrereqComplete reports whether a prerequisite node satisfies the
// completion threshold. Terminal prerequisites never count: a rejected
// child is not finished work.
func (p *Policy) PrereqComplete(n *model.StoryNode) bool {
	if n.Terminal() {
		return false
	}
	return n.Stage.AtLeast(p.PrereqThreshold)
}
