package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iomega/spec2vec-gnps/internal/config"
)

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the query layer from source data",
	Long: `Rebuild the SQLite query database from the JSONL source files.

Use this after pulling changes from git or if the database becomes corrupted.`,
	RunE: runRebuild,
}

// RebuildResult is the response for the rebuild command.
type RebuildResult struct {
	Status  string `json:"status"`
	Spectra int    `json:"spectra"`
	Matches int    `json:"matches"`
}

func runRebuild(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	spectraCount, err := db.RebuildFromJSONL(config.SpectraPath(repoRoot))
	if err != nil {
		exitWithError(ExitDataError, "rebuilding spectra database: %v", err)
	}

	matchesCount, err := db.RebuildMatchesFromJSONL(config.MatchesPath(repoRoot))
	if err != nil {
		exitWithError(ExitDataError, "rebuilding matches database: %v", err)
	}

	if humanOutput {
		fmt.Printf("Rebuilt database with %d spectra and %d matches\n", spectraCount, matchesCount)
	} else {
		outputJSON(RebuildResult{
			Status:  "rebuilt",
			Spectra: spectraCount,
			Matches: matchesCount,
		})
	}
	return nil
}
