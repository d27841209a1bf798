package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iomega/spec2vec-gnps/internal/config"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new spectral library repository",
	Long: `Initialize a new spectral library repository in the current directory.

Creates:
  .gnps/
  ├── spectra.jsonl   # Empty file
  ├── config.json     # Default analysis settings
  └── cache/          # Empty directory (gitignored)`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	root, exitCode := getStartingDirectory()
	if exitCode != 0 {
		os.Exit(exitCode)
	}

	if config.IsRepository(root) {
		exitWithError(ExitError, "directory already contains a gnps repository")
	}

	if err := os.MkdirAll(config.CachePath(root), 0755); err != nil {
		exitWithError(ExitError, "creating cache directory: %v", err)
	}

	f, err := os.Create(config.SpectraPath(root))
	if err != nil {
		exitWithError(ExitError, "creating %s: %v", config.SpectraFile, err)
	}
	f.Close()

	if err := config.Default().Save(root); err != nil {
		exitWithError(ExitError, "creating %s: %v", config.ConfigFile, err)
	}

	if humanOutput {
		fmt.Printf("Initialized gnps repository in %s\n", root)
	} else {
		outputJSON(StatusResponse{
			Status: "initialized",
			Path:   root,
		})
	}
	return nil
}
