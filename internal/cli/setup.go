package cli

import (
	"fmt"
	"os"

	"github.com/Mharbulous/StoryTree2/internal/config"
	"github.com/Mharbulous/StoryTree2/internal/engine"
	"github.com/Mharbulous/StoryTree2/internal/model"
	"github.com/Mharbulous/StoryTree2/internal/policy"
	"github.com/Mharbulous/StoryTree2/internal/store"
)

// commandError classifies an engine/store error into an exit code: domain
// rejections (not found, validation, conflict, unmet dependency) are
// operation failures, anything else is a command error.
func commandError(message string, err error) error {
	if model.IsNotFound(err) || model.IsValidation(err, "") ||
		model.IsConcurrencyConflict(err) || model.IsDependencyUnmet(err) {
		return WrapExitError(ExitFailure, message, err)
	}
	return WrapExitError(ExitCommandError, message, err)
}

// resolveDBPath returns the database path from the --db flag, falling back
// to storytree.yml and data-dir discovery under the working directory.
func resolveDBPath(opts *RootOptions) (string, error) {
	if opts.Database != "" {
		return opts.Database, nil
	}
	root, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	cfg, err := config.LoadOptional(root)
	if err != nil {
		return "", err
	}
	return cfg.DBPath(root), nil
}

// loadPolicy returns the policy from --policy, or the built-in defaults.
func loadPolicy(opts *RootOptions) (*policy.Policy, error) {
	if opts.Policy == "" {
		return policy.Default(), nil
	}
	return policy.Load(opts.Policy)
}

// openEngine opens the store and assembles an engine for one command
// invocation. The caller must Close the returned store.
func openEngine(opts *RootOptions, engineOpts ...engine.Option) (*engine.Engine, *store.Store, error) {
	dbPath, err := resolveDBPath(opts)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to resolve database path", err)
	}
	pol, err := loadPolicy(opts)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load policy", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return engine.New(st, pol, engineOpts...), st, nil
}
