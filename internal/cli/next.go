package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// NewNextCommand creates the next command.
func NewNextCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Pick the best node for new growth",
		Long: `Pick the single best node to grow under: ready, not terminal, and
with spare child capacity. Shallower nodes win; ties break on the
lower fill rate.

Example:
  storytree next`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNext(rootOpts, cmd)
		},
	}
	return cmd
}

func runNext(opts *RootOptions, cmd *cobra.Command) error {
	eng, st, err := openEngine(opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	candidate, err := eng.SelectGrowth(cmd.Context())
	if err != nil {
		return commandError("failed to select growth node", err)
	}

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
	if candidate == nil {
		if opts.Format == "json" {
			return formatter.Success(nil)
		}
		return formatter.Success("No eligible node.")
	}
	if opts.Format == "json" {
		return formatter.Success(candidate)
	}
	return formatter.Success(fmt.Sprintf("%s  %s  (depth %d, fill %.2f)",
		candidate.Node.ID, candidate.Node.Title, candidate.Depth, candidate.FillRate))
}
