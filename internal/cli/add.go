package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Mharbulous/StoryTree2/internal/model"
)

// AddOptions holds flags for the add command.
type AddOptions struct {
	*RootOptions
	Parent       string
	Stage        string
	Description  string
	Capacity     int
	Dependencies []string
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AddOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a story node",
		Long: `Add a story node to the tree. Without --parent the node becomes a
new root. New nodes start at the given stage (default concept) with a
ready hold.

Example:
  storytree add "User accounts"
  storytree add --parent 1 --stage epic "Authentication" --capacity 5
  storytree add --parent 1.2 "Login form" --depends "Session API"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Parent, "parent", "", "parent node id (empty for a new root)")
	cmd.Flags().StringVar(&opts.Stage, "stage", string(model.StageConcept), "initial stage")
	cmd.Flags().StringVar(&opts.Description, "desc", "", "node description")
	cmd.Flags().IntVar(&opts.Capacity, "capacity", 0, "explicit child capacity (0 = dynamic)")
	cmd.Flags().StringSliceVar(&opts.Dependencies, "depends", nil, "named dependencies this node needs first")

	return cmd
}

func runAdd(opts *AddOptions, title string, cmd *cobra.Command) error {
	stage := model.Stage(opts.Stage)
	if !model.ValidStage(stage) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid stage %q", opts.Stage))
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

	var capacity *int
	if opts.Capacity > 0 {
		capacity = &opts.Capacity
	}

	n, err := eng.CreateNode(cmd.Context(), opts.Parent, stage, title, opts.Description, capacity, opts.Dependencies)
	if err != nil {
		return commandError("failed to add node", err)
	}

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(n)
	}
	return formatter.Success(fmt.Sprintf("Added node %s: %s", n.ID, n.Title))
}
