package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mharbulous/StoryTree2/internal/engine"
	"github.com/Mharbulous/StoryTree2/internal/model"
)

// BeatOptions holds flags for the beat command.
type BeatOptions struct {
	*RootOptions
	Batch   int
	Outcome string
	Fixed   bool
}

// NewBeatCommand creates the beat command.
func NewBeatCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BeatOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "beat [id]",
		Short: "Advance nodes one heartbeat",
		Long: `Advance one node (or a batch of active nodes) a single step. Each
heartbeat dispatches on the node's (stage, hold) pair: content work
reports the outcome passed via --outcome, dependency and gate checks
run on their own, and broken nodes climb one debug rung whose result
comes from --fixed.

Example:
  storytree beat 1.2 --outcome completed
  storytree beat 1.3 --fixed
  storytree beat --batch 10`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !cmd.Flags().Changed("batch") {
				return NewExitError(ExitCommandError, "either a node id or --batch is required")
			}
			if len(args) == 1 && cmd.Flags().Changed("batch") {
				return NewExitError(ExitCommandError, "a node id and --batch are mutually exclusive")
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runBeat(opts, id, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Batch, "batch", 0, "beat up to N active nodes (0 = all)")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "reported outcome for content work (proceed|pause|verified|completed|partial|failed)")
	cmd.Flags().BoolVar(&opts.Fixed, "fixed", false, "report the debug strategy as having fixed the node")

	return cmd
}

// reportedOutcome feeds a flag-supplied outcome into the engine as the
// content-generation result.
type reportedOutcome struct {
	outcome model.Outcome
}

func (g reportedOutcome) Generate(context.Context, model.NodeSnapshot, []model.ArtifactRef) (model.Outcome, []model.ArtifactRef, error) {
	return g.outcome, nil, nil
}

// reportedFix feeds the --fixed flag into the engine as the debug rung result.
type reportedFix struct {
	fixed bool
}

func (r reportedFix) Attempt(context.Context, model.NodeSnapshot, string) (bool, error) {
	return r.fixed, nil
}

func runBeat(opts *BeatOptions, id string, cmd *cobra.Command) error {
	var engineOpts []engine.Option
	if opts.Outcome != "" {
		outcome := model.Outcome(opts.Outcome)
		if !validOutcome(outcome) {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid outcome %q", opts.Outcome))
		}
		engineOpts = append(engineOpts, engine.WithContentGenerator(reportedOutcome{outcome}))
	}
	engineOpts = append(engineOpts, engine.WithRemediator(reportedFix{opts.Fixed}))

	eng, st, err := openEngine(opts.RootOptions, engineOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}

	if id != "" {
		res, err := eng.Beat(cmd.Context(), id)
		if err != nil {
			return commandError("heartbeat failed", err)
		}
		if opts.Format == "json" {
			return formatter.Success(res)
		}
		return formatter.Success(renderBeat(res))
	}

	batch, err := eng.BeatBatch(cmd.Context(), opts.Batch)
	if err != nil {
		return commandError("batch heartbeat failed", err)
	}
	if opts.Format == "json" {
		return formatter.Success(batch)
	}
	var b strings.Builder
	for i, res := range batch.Results {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderBeat(res))
	}
	for _, skipped := range batch.Skipped {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s  skipped: %v", skipped.NodeID, skipped.Err)
	}
	if b.Len() == 0 {
		return formatter.Success("No active nodes.")
	}
	return formatter.Success(b.String())
}

func renderBeat(res engine.BeatResult) string {
	switch res.Action {
	case engine.ActionTransition:
		s := fmt.Sprintf("%s  %s -> %s", res.NodeID, res.From, res.To)
		if res.Escalated {
			s += "  (escalated)"
		}
		return s
	case engine.ActionSpawned:
		return fmt.Sprintf("%s  spawned %s", res.NodeID, strings.Join(res.Spawned, ", "))
	case engine.ActionWaiting:
		return fmt.Sprintf("%s  waiting: %s", res.NodeID, res.Note)
	default:
		return fmt.Sprintf("%s  no-op: %s", res.NodeID, res.Note)
	}
}

func validOutcome(o model.Outcome) bool {
	switch o {
	case model.OutcomeProceed, model.OutcomePause, model.OutcomeVerified,
		model.OutcomeCompleted, model.OutcomePartial, model.OutcomeFailed:
		return true
	}
	return false
}
