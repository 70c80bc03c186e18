package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Mharbulous/StoryTree2/internal/engine"
	"github.com/Mharbulous/StoryTree2/internal/model"
)

// VetOptions holds flags for the vet command.
type VetOptions struct {
	*RootOptions
	Classification string
	Action         string
}

// NewVetCommand creates the vet command.
func NewVetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "vet <a> <b>",
		Short: "Classify a pair of nodes",
		Long: `Classify a node pair as distinct, duplicate, conflict or
complementary. A fresh conflict verdict marks the newer node
conflicted; a fresh duplicate verdict ends it duplicative. Decisions
are cached against both nodes' content versions; a repeat vet of
unchanged nodes returns the cached decision and ignores the flags.

Example:
  storytree vet 1.2 1.3 --class distinct
  storytree vet 1.2 1.3`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVet(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Classification, "class", "", "reported classification (distinct|duplicate|conflict|complementary)")
	cmd.Flags().StringVar(&opts.Action, "action", "", "recommended action to record with the classification")

	return cmd
}

// reportedClassification feeds a flag-supplied classification into the
// engine as the classifier result.
type reportedClassification struct {
	class  model.Classification
	action string
}

func (c reportedClassification) Classify(context.Context, model.NodeSnapshot, model.NodeSnapshot) (model.Classification, string, error) {
	return c.class, c.action, nil
}

func runVet(opts *VetOptions, aID, bID string, cmd *cobra.Command) error {
	var engineOpts []engine.Option
	if opts.Classification != "" {
		class := model.Classification(opts.Classification)
		if !validClassification(class) {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid classification %q", opts.Classification))
		}
		engineOpts = append(engineOpts, engine.WithClassifier(reportedClassification{class, opts.Action}))
	}

	eng, st, err := openEngine(opts.RootOptions, engineOpts...)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	res, err := eng.Vet(cmd.Context(), aID, bID)
	if err != nil {
		return commandError("failed to vet pair", err)
	}

	formatter := &OutputFormatter{
		Format:  opts.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: opts.Verbose,
	}
	if opts.Format == "json" {
		return formatter.Success(res)
	}
	source := "classified"
	if res.Cached {
		source = "cached"
	}
	text := fmt.Sprintf("%s | %s: %s (%s)",
		res.Decision.NodeA, res.Decision.NodeB, res.Decision.Classification, source)
	if res.Decision.Action != "" {
		text += fmt.Sprintf("\n  action: %s", res.Decision.Action)
	}
	if res.MarkedNode != "" {
		text += fmt.Sprintf("\n  %s -> %s", res.MarkedNode, res.MarkedTo)
	}
	return formatter.Success(text)
}

func validClassification(c model.Classification) bool {
	switch c {
	case model.ClassDistinct, model.ClassDuplicate, model.ClassConflict, model.ClassComplementary:
		return true
	}
	return false
}
