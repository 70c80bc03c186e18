package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Mharbulous/StoryTree2/internal/store"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the story database",
		Long: `Create the data directory and initialize the story database,
applying the schema and any pending migrations. Safe to run on an
existing database.

Example:
  storytree init
  storytree init --db ./story-tree.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}
	return cmd
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	dbPath, err := resolveDBPath(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to resolve database path", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return WrapExitError(ExitCommandError, "failed to create data directory", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize database", err)
	}
	if err := st.Close(); err != nil {
		return WrapExitError(ExitCommandError, "failed to close database", err)
	}

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
	return formatter.Success(fmt.Sprintf("Initialized story database at %s", dbPath))
}
