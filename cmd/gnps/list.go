package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listLimit int

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", DefaultListLimit, "Maximum number of results (0 for all)")
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List spectra in the library",
	Long: `List spectra in the library ordered by ID.

Usage:
  gnps list
  gnps list --limit 0`,
	Args: cobra.NoArgs,
	RunE: runList,
}

// ListResponse is the response for the list command.
type ListResponse struct {
	Spectra   []SpectrumSummary `json:"spectra"`
	Total     int               `json:"total"`
	Annotated int               `json:"annotated"`
	Matches   int               `json:"saved_matches"`
}

func runList(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	spectra, err := db.ListAll(listLimit)
	if err != nil {
		exitWithError(ExitError, "listing spectra: %v", err)
	}
	total, err := db.Count()
	if err != nil {
		exitWithError(ExitError, "counting spectra: %v", err)
	}
	annotated, err := db.CountAnnotated()
	if err != nil {
		exitWithError(ExitError, "counting spectra: %v", err)
	}

	matches, err := db.CountMatches()
	if err != nil {
		exitWithError(ExitError, "counting matches: %v", err)
	}

	resp := ListResponse{Spectra: summarizeAll(spectra), Total: total, Annotated: annotated, Matches: matches}
	if humanOutput {
		printSummariesHuman(resp.Spectra)
		fmt.Printf("\nShowing %d of %d spectra (%d annotated, %d saved match candidates)\n", len(resp.Spectra), total, annotated, matches)
	} else {
		outputJSON(resp)
	}
	return nil
}
