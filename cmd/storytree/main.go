// Command storytree is the CLI entry point for the story workflow engine.
package main

import (
	"fmt"
	"os"

	"github.com/Mharbulous/StoryTree2/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
