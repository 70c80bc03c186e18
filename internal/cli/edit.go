package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

// EditOptions holds flags for the edit command.
type EditOptions struct {
	*RootOptions
	Title       string
	Description string
	Capacity    int
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a story node's content",
		Long: `Edit a node's title, description or capacity. Content edits bump the
node's version, which invalidates any cached vetting decisions
involving it.

Example:
  storytree edit 1.2 --title "Session tokens"
  storytree edit 1.2 --desc "Rotate on refresh" --capacity 5
  storytree edit 1.2 --capacity 0`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "new title")
	cmd.Flags().StringVar(&opts.Description, "desc", "", "new description")
	cmd.Flags().IntVar(&opts.Capacity, "capacity", 0, "new explicit child capacity (0 = dynamic)")

	return cmd
}

func runEdit(opts *EditOptions, id string, cmd *cobra.Command) error {
	flags := cmd.Flags()
	if !flags.Changed("title") && !flags.Changed("desc") && !flags.Changed("capacity") {
		return NewExitError(ExitCommandError, "nothing to edit: pass --title, --desc or --capacity")
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

	n, err := eng.Store().GetNode(cmd.Context(), id)
	if err != nil {
		return commandError("failed to fetch node", err)
	}
	if flags.Changed("title") {
		n.Title = opts.Title
	}
	if flags.Changed("desc") {
		n.Description = opts.Description
	}
	if flags.Changed("capacity") {
		if opts.Capacity > 0 {
			n.Capacity = &opts.Capacity
		} else {
			n.Capacity = nil
		}
	}

	if err := eng.Store().UpdateContent(cmd.Context(), n); err != nil {
		return commandError("failed to edit node", err)
	}

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
	if opts.Format == "json" {
		updated, err := eng.Store().GetNode(cmd.Context(), id)
		if err != nil {
			return commandError("failed to fetch node", err)
		}
		return formatter.Success(updated)
	}
	return formatter.Success(fmt.Sprintf("Updated node %s: %s", n.ID, n.Title))
}
