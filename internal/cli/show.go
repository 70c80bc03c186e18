package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mharbulous/StoryTree2/internal/model"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one story node",
		Long: `Show a single story node with its full state: stage, hold, terminus,
dependencies, prerequisites and debug progress.

Example:
  storytree show 1.2.3
  storytree show 1.2.3 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runShow(opts *RootOptions, id string, cmd *cobra.Command) error {
	eng, st, err := openEngine(opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	n, err := eng.Store().GetNode(cmd.Context(), id)
	if err != nil {
		return commandError("failed to fetch node", err)
	}

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(n)
	}
	return formatter.Success(renderNode(n))
}

// renderNode produces the multi-line text rendering for show.
func renderNode(n model.StoryNode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s\n", n.ID, n.Title)
	fmt.Fprintf(&b, "  stage: %s  hold: %s", n.Stage, n.Hold)
	if n.Terminus != "" {
		fmt.Fprintf(&b, "  terminus: %s", n.Terminus)
	}
	b.WriteString("\n")
	if n.Description != "" {
		fmt.Fprintf(&b, "  description: %s\n", n.Description)
	}
	if n.Capacity != nil {
		fmt.Fprintf(&b, "  capacity: %d\n", *n.Capacity)
	}
	if len(n.Dependencies) > 0 {
		fmt.Fprintf(&b, "  dependencies: %s\n", strings.Join(n.Dependencies, ", "))
	}
	if len(n.Prerequisites) > 0 {
		fmt.Fprintf(&b, "  prerequisites: %s\n", strings.Join(n.Prerequisites, ", "))
	}
	if n.Hold == model.HoldBroken || n.DebugAttempts > 0 {
		fmt.Fprintf(&b, "  debug attempts: %d/%d\n", n.DebugAttempts, model.MaxDebugAttempts)
	}
	if n.HumanReview {
		b.WriteString("  awaiting human review\n")
	}
	fmt.Fprintf(&b, "  version: %d", n.Version)
	return b.String()
}
