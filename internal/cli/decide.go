package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Mharbulous/StoryTree2/internal/model"
)

// NewDecideCommand creates the decide command.
func NewDecideCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decide <id> <decision>",
		Short: "File a human decision on a node",
		Long: `File a human decision on an escalated or parked node. Decisions:
approve, reject, request-polish, wishlist, pause, resume.

Example:
  storytree decide 1.2 approve
  storytree decide 1.3 wishlist`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecide(rootOpts, args[0], model.Decision(args[1]), cmd)
		},
	}
	return cmd
}

func runDecide(opts *RootOptions, id string, decision model.Decision, cmd *cobra.Command) error {
	if !validDecision(decision) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid decision %q", decision))
	}

	eng, st, err := openEngine(opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	res, err := eng.Decide(cmd.Context(), id, decision)
	if err != nil {
		return commandError("failed to apply decision", err)
	}

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(res)
	}
	return formatter.Success(fmt.Sprintf("%s  %s -> %s", res.NodeID, res.From, res.To))
}

func validDecision(d model.Decision) bool {
	switch d {
	case model.DecisionApprove, model.DecisionReject, model.DecisionRequestPolish,
		model.DecisionWishlist, model.DecisionPause, model.DecisionResume:
		return true
	}
	return false
}
