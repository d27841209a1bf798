package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iomega/spec2vec-gnps/internal/similarity"
	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

var (
	searchLimit         int
	searchPrecursor     float64
	searchTolerance     float64
	searchToleranceType string
	searchInChIKey      string
)

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", DefaultListLimit, "Maximum results to return (name search)")
	searchCmd.Flags().Float64Var(&searchPrecursor, "precursor", 0, "Find spectra with a matching precursor m/z")
	searchCmd.Flags().Float64Var(&searchTolerance, "tolerance", 0.01, "Precursor tolerance")
	searchCmd.Flags().StringVar(&searchToleranceType, "tolerance-type", "Dalton", "Precursor tolerance type: Dalton or ppm")
	searchCmd.Flags().StringVar(&searchInChIKey, "inchikey", "", "Find spectra sharing an InChIKey first block")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search [name]",
	Short: "Search spectra by compound name, precursor mass or InChIKey",
	Long: `Search the library by compound name (substring, case-insensitive), by
precursor m/z, or by the first block of an InChIKey.

Examples:
  gnps search cholesterol
  gnps search --precursor 369.35 --tolerance 0.02
  gnps search --precursor 369.3516 --tolerance 10 --tolerance-type ppm
  gnps search --inchikey HVYWMOMLDIMFJA`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

// SearchResponse is the response for the search command.
type SearchResponse struct {
	Query   string            `json:"query"`
	Spectra []SpectrumSummary `json:"spectra"`
	Total   int               `json:"total"`
}

func runSearch(cmd *cobra.Command, args []string) error {
	modes := 0
	if len(args) == 1 {
		modes++
	}
	if cmd.Flags().Changed("precursor") {
		modes++
	}
	if searchInChIKey != "" {
		modes++
	}
	if modes != 1 {
		exitWithError(ExitError, "give exactly one of: a name, --precursor, --inchikey")
	}

	repoRoot := mustFindRepository()
	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	var (
		query   string
		results []*spectrum.Spectrum
		err     error
	)
	switch {
	case len(args) == 1:
		query = args[0]
		results, err = db.SearchByName(query, searchLimit)
	case searchInChIKey != "":
		block := spectrum.InChIKeyFirstBlock(searchInChIKey)
		query = "inchikey:" + block
		results, err = db.ByInChIKeyBlock(block)
	default:
		tolType, perr := similarity.ParseToleranceType(searchToleranceType)
		if perr != nil {
			exitWithError(ExitError, "%v", perr)
		}
		if searchTolerance <= 0 {
			exitWithError(ExitError, "--tolerance must be positive")
		}
		match := similarity.PrecursorMZMatch{Tolerance: searchTolerance, Type: tolType}
		lo, hi := match.Window(searchPrecursor)
		query = fmt.Sprintf("precursor:%g+/-%g %s", searchPrecursor, searchTolerance, tolType)
		results, err = db.ByPrecursorRange(lo, hi)
	}
	if err != nil {
		exitWithError(ExitError, "searching: %v", err)
	}

	resp := SearchResponse{Query: query, Spectra: summarizeAll(results), Total: len(results)}
	if humanOutput {
		if len(results) == 0 {
			fmt.Println("No spectra found")
			return nil
		}
		printSummariesHuman(resp.Spectra)
		fmt.Printf("\nFound %d spectra\n", len(results))
	} else {
		outputJSON(resp)
	}
	return nil
}
