package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mharbulous/StoryTree2/internal/model"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Stage string
	Hold  string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List nodes by state",
		Long: `List story nodes filtered by stage and hold, oldest-created first.
Without filters, lists every node.

Example:
  storytree list --stage implementing --hold broken
  storytree list --hold escalated`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Stage, "stage", "", "filter by stage")
	cmd.Flags().StringVar(&opts.Hold, "hold", "", "filter by hold")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	stage := model.Stage(opts.Stage)
	if opts.Stage != "" && !model.ValidStage(stage) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid stage %q", opts.Stage))
	}
	hold := model.Hold(opts.Hold)
	if opts.Hold != "" && !model.ValidHold(hold) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid hold %q", opts.Hold))
	}

	eng, st, err := openEngine(opts.RootOptions)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	nodes, err := eng.Store().ListByState(cmd.Context(), stage, hold)
	if err != nil {
		return commandError("failed to list nodes", err)
	}

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(nodes)
	}
	if len(nodes) == 0 {
		return formatter.Success("No matching nodes.")
	}
	var b strings.Builder
	for i, n := range nodes {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s  %s  [%s:%s]", n.ID, n.Title, n.Stage, n.Hold)
	}
	return formatter.Success(b.String())
}
