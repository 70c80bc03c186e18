package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Mharbulous/StoryTree2/internal/lifecycle"
	"github.com/Mharbulous/StoryTree2/internal/model"
)

// VetResult reports the classification for a node pair and whether it came
// from the cache or a fresh classifier call. A fresh conflict or duplicate
// verdict also transitions the newer node of the pair; MarkedNode/MarkedTo
// record that transition ("" when none fired).
type VetResult struct {
	Decision   model.VettingDecision
	Cached     bool
	MarkedNode string
	MarkedTo   string
}

// Vet classifies a pair of nodes as duplicate, conflicting, complementary or
// distinct. Decisions are cached against the content versions of both nodes:
// while neither node's content changes, a repeat Vet returns the cached
// decision without consulting the classifier. Editing either node makes the
// cached row stop matching, so the next Vet re-classifies.
func (e *Engine) Vet(ctx context.Context, aID, bID string) (VetResult, error) {
	if aID == bID {
		return VetResult{}, fmt.Errorf("vet: cannot vet node %s against itself", aID)
	}

	a, err := e.store.GetNode(ctx, aID)
	if err != nil {
		return VetResult{}, err
	}
	b, err := e.store.GetNode(ctx, bID)
	if err != nil {
		return VetResult{}, err
	}

	// Canonical ordering keeps (a, b) and (b, a) on the same cache row.
	firstID, _ := model.OrderedPair(a.ID, b.ID)
	if firstID == b.ID {
		a, b = b, a
	}
	key := model.PairKey(a.ID, b.ID)

	cached, hit, err := e.store.LookupVetting(ctx, key)
	if err != nil {
		return VetResult{}, err
	}
	if hit {
		e.log.Debug("vetting cache hit", "pair", key, "classification", cached.Classification)
		return VetResult{Decision: cached, Cached: true}, nil
	}

	if e.classifier == nil {
		return VetResult{}, fmt.Errorf("vet: no conflict classifier configured")
	}
	class, action, err := e.classifier.Classify(ctx, a.Snapshot(), b.Snapshot())
	if err != nil {
		return VetResult{}, fmt.Errorf("classify pair %s: %w", key, err)
	}

	d := model.VettingDecision{
		PairKey:        key,
		NodeA:          a.ID,
		NodeB:          b.ID,
		VersionA:       a.Version,
		VersionB:       b.Version,
		Classification: class,
		Action:         action,
		DecidedAt:      time.Now().UTC(),
	}
	if err := e.store.StoreVetting(ctx, d); err != nil {
		return VetResult{}, err
	}
	e.log.Info("pair vetted", "pair", key, "classification", class)

	res := VetResult{Decision: d}
	if change := verdictChange(class); change != nil {
		newer := b
		if a.CreatedAt.After(b.CreatedAt) {
			newer = a
		}
		if err := e.markVetted(ctx, newer, *change, &res); err != nil {
			return VetResult{}, err
		}
	}
	return res, nil
}

// verdictChange maps a fresh verdict onto a transition for the newer node:
// a conflict marks it conflicted, a duplicate ends it duplicative. The
// older node keeps moving. Distinct and complementary verdicts change
// nothing.
func verdictChange(class model.Classification) *lifecycle.Change {
	switch class {
	case model.ClassConflict:
		return &lifecycle.Change{Hold: holdPtr(model.HoldConflicted)}
	case model.ClassDuplicate:
		return &lifecycle.Change{
			Terminus: terminusPtr(model.TerminusDuplicative),
			Hold:     holdPtr(model.HoldReady),
		}
	}
	return nil
}

// markVetted commits a verdict transition on n. Only a node sitting at a
// ready or polish hold is marked; a busy or terminal node keeps its state
// and the recorded decision alone stands.
func (e *Engine) markVetted(ctx context.Context, n model.StoryNode, change lifecycle.Change, res *VetResult) error {
	if n.Terminal() || (n.Hold != model.HoldReady && n.Hold != model.HoldPolish) {
		e.log.Debug("vet verdict not applied", "node", n.ID, "hold", n.Hold)
		return nil
	}
	updated, err := lifecycle.Apply(n, change)
	if err != nil {
		return err
	}
	if err := e.store.CommitState(ctx, n, updated); err != nil {
		return err
	}
	res.MarkedNode = n.ID
	res.MarkedTo = stateLabel(updated.Stage, updated.Hold)
	e.log.Info("vet verdict applied", "node", n.ID, "to", res.MarkedTo)
	return nil
}
