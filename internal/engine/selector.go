package engine

import (
	"context"
	"sort"

	"github.com/Mharbulous/StoryTree2/internal/model"
)

// Candidate is one priority-eligible node with its ranking inputs.
type Candidate struct {
	Node     model.StoryNode
	Depth    int
	FillRate float64
}

// SelectGrowth picks the single best node for organic tree growth: not
// terminal, hold ready, and under effective capacity. Shallower nodes win;
// equal depths tie-break on the lower fill rate. Returns nil when nothing
// is eligible.
func (e *Engine) SelectGrowth(ctx context.Context) (*Candidate, error) {
	candidates, err := e.GrowthCandidates(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
}

// GrowthCandidates returns every priority-eligible node in selection order.
// This is the read API external schedulers page through.
func (e *Engine) GrowthCandidates(ctx context.Context) ([]Candidate, error) {
	rows, err := e.store.ListGrowthCandidates(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, r := range rows {
		capacity := model.EffectiveCapacity(r.Node.Capacity, e.policy.CapacityBase, r.Stats.ShippedChildren)
		if capacity <= 0 || r.Stats.ChildCount >= capacity {
			continue
		}
		candidates = append(candidates, Candidate{
			Node:     r.Node,
			Depth:    r.Stats.Depth,
			FillRate: float64(r.Stats.ChildCount) / float64(capacity),
		})
	}

	// Stable sort keeps the store's oldest-first order among exact ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Depth != candidates[j].Depth {
			return candidates[i].Depth < candidates[j].Depth
		}
		return candidates[i].FillRate < candidates[j].FillRate
	})
	return candidates, nil
}

// CreateNode inserts a new node under parentID at the earliest stage with a
// ready hold, assigning the next hierarchical path id and a fresh opaque
// key. An empty parentID creates a root. epic creates a container node.
func (e *Engine) CreateNode(ctx context.Context, parentID string, stage model.Stage, title, description string, capacity *int, dependencies []string) (model.StoryNode, error) {
	var siblings []model.StoryNode
	var err error
	if parentID == "" {
		siblings, err = e.store.Roots(ctx)
	} else {
		siblings, err = e.store.ChildrenOf(ctx, parentID)
	}
	if err != nil {
		return model.StoryNode{}, err
	}

	n := model.StoryNode{
		ID:           nextPathID(parentID, siblings),
		Key:          e.keys.Generate(),
		Title:        title,
		Description:  description,
		Capacity:     capacity,
		Stage:        stage,
		Hold:         model.HoldReady,
		Dependencies: dependencies,
	}
	if n.Stage == "" {
		n.Stage = model.StageConcept
	}
	if err := e.store.InsertNode(ctx, parentID, n); err != nil {
		return model.StoryNode{}, err
	}
	e.log.Info("node created", "node", n.ID, "parent", parentID, "stage", n.Stage)
	return e.store.GetNode(ctx, n.ID)
}
