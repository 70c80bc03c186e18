package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mharbulous/StoryTree2/internal/engine"
	"github.com/Mharbulous/StoryTree2/internal/model"
)

// NewTreeCommand creates the tree command.
func NewTreeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree [id]",
		Short: "Render the story tree",
		Long: `Render the story tree as indented text, one node per line with its
stage and hold. With an id, renders only that subtree.

Example:
  storytree tree
  storytree tree 1.2`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rootID := ""
			if len(args) == 1 {
				rootID = args[0]
			}
			return runTree(rootOpts, rootID, cmd)
		},
	}
	return cmd
}

func runTree(opts *RootOptions, rootID string, cmd *cobra.Command) error {
	eng, st, err := openEngine(opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	lines, err := collectTree(cmd.Context(), eng, rootID)
	if err != nil {
		return commandError("failed to render tree", err)
	}

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(lines)
	}
	if len(lines) == 0 {
		return formatter.Success("(empty tree)")
	}
	rendered := make([]string, len(lines))
	for i, l := range lines {
		rendered[i] = l.String()
	}
	return formatter.Success(strings.Join(rendered, "\n"))
}

// TreeLine is one rendered node: its depth relative to the rendered root
// plus the state summary.
type TreeLine struct {
	ID    string         `json:"id"`
	Title string         `json:"title"`
	Depth int            `json:"depth"`
	Stage model.Stage    `json:"stage"`
	Hold  model.Hold     `json:"hold"`
	End   model.Terminus `json:"terminus,omitempty"`
}

func (l TreeLine) String() string {
	indent := strings.Repeat("  ", l.Depth)
	state := fmt.Sprintf("%s:%s", l.Stage, l.Hold)
	if l.End != "" {
		state = fmt.Sprintf("%s (%s)", state, l.End)
	}
	return fmt.Sprintf("%s%s  %s  [%s]", indent, l.ID, l.Title, state)
}

// collectTree gathers the subtree (or all roots) in depth-first order.
// Hierarchical path ids sort children numerically, so DFS order is just the
// path-segment order of the ids.
func collectTree(ctx context.Context, eng *engine.Engine, rootID string) ([]TreeLine, error) {
	var entries []TreeLine
	if rootID == "" {
		roots, err := eng.Store().Roots(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range roots {
			sub, err := subtreeLines(ctx, eng, r.ID)
			if err != nil {
				return nil, err
			}
			entries = append(entries, sub...)
		}
		return entries, nil
	}
	return subtreeLines(ctx, eng, rootID)
}

func subtreeLines(ctx context.Context, eng *engine.Engine, rootID string) ([]TreeLine, error) {
	nodes, err := eng.Store().DescendantsOf(ctx, rootID)
	if err != nil {
		return nil, err
	}
	lines := make([]TreeLine, len(nodes))
	for i, e := range nodes {
		lines[i] = TreeLine{
			ID:    e.Node.ID,
			Title: e.Node.Title,
			Depth: e.Depth,
			Stage: e.Node.Stage,
			Hold:  e.Node.Hold,
			End:   e.Node.Terminus,
		}
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return pathLess(lines[i].ID, lines[j].ID)
	})
	return lines, nil
}

// pathLess orders hierarchical ids segment by segment, numerically where
// both segments are ordinals.
func pathLess(a, b string) bool {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] == bs[i] {
			continue
		}
		an, aerr := strconv.Atoi(as[i])
		bn, berr := strconv.Atoi(bs[i])
		if aerr == nil && berr == nil {
			return an < bn
		}
		return as[i] < bs[i]
	}
	return len(as) < len(bs)
}
