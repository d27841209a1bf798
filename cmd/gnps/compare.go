package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iomega/spec2vec-gnps/internal/config"
	"github.com/iomega/spec2vec-gnps/internal/similarity"
	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

var (
	compareScore     string
	compareIDs       string
	compareTolerance float64
	compareFormat    string
	compareRaw       bool
)

func init() {
	compareCmd.Flags().StringVar(&compareScore, "score", similarity.NameCosine, "Score: cosine, modcosine or precursor_mz")
	compareCmd.Flags().StringVar(&compareIDs, "ids", "", "Library spectra to compare against (comma-separated, required)")
	compareCmd.Flags().Float64Var(&compareTolerance, "tolerance", 0, "Peak or precursor tolerance (default: from config)")
	compareCmd.Flags().StringVar(&compareFormat, "format", "", "Format of the query file: json or mgf (default: from extension)")
	compareCmd.Flags().BoolVar(&compareRaw, "raw", false, "Skip default peak filtering of query spectra")
	compareCmd.MarkFlagRequired("ids")
	rootCmd.AddCommand(compareCmd)
}

var compareCmd = &cobra.Command{
	Use:   "compare <query-file>",
	Short: "Score query spectra against selected library spectra",
	Long: `Score every spectrum of a query file against the given library spectra.

Rows of the result are library spectra, columns are queries. No presearch is
done; use 'gnps match' for library-wide matching.

Examples:
  gnps compare queries.mgf --ids CCMSLIB00000001547,CCMSLIB00000001548
  gnps compare queries.mgf --ids CCMSLIB00000001547 --score precursor_mz --tolerance 10`,
	Args: cobra.ExactArgs(1),
	RunE: runCompare,
}

// CompareResponse is the response for the compare command.
type CompareResponse struct {
	Score      string               `json:"score"`
	References []string             `json:"references"`
	Queries    []string             `json:"queries"`
	Scores     [][]similarity.Score `json:"scores"` // [reference][query]
}

// compareScorer builds the scorer for name. A tolerance <= 0 falls back to
// cosine_tolerance or mass_tolerance from cfg.
func compareScorer(name string, tolerance float64, cfg *config.Config) (similarity.Scorer, error) {
	switch name {
	case similarity.NameCosine, similarity.NameModCosine:
		if tolerance <= 0 {
			tolerance = cfg.CosineTolerance
		}
		if name == similarity.NameCosine {
			return similarity.NewCosineGreedy(tolerance), nil
		}
		return similarity.NewModifiedCosine(tolerance), nil
	case similarity.NamePrecursorMZ:
		tt, err := similarity.ParseToleranceType(cfg.MassToleranceType)
		if err != nil {
			return nil, err
		}
		if tolerance <= 0 {
			tolerance = cfg.MassTolerance
		}
		return similarity.PrecursorMZMatch{Tolerance: tolerance, Type: tt}, nil
	}
	return nil, fmt.Errorf("unknown score %q (valid: cosine, modcosine, precursor_mz)", name)
}

// selectByIDs returns the spectra with the given ids in id order, and the ids
// that were not found.
func selectByIDs(spectra []*spectrum.Spectrum, ids []string) ([]*spectrum.Spectrum, []string) {
	byID := make(map[string]*spectrum.Spectrum, len(spectra))
	for _, s := range spectra {
		byID[s.ID] = s
	}
	var selected []*spectrum.Spectrum
	var missing []string
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			selected = append(selected, s)
		} else {
			missing = append(missing, id)
		}
	}
	return selected, missing
}

func runCompare(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	cfg := mustLoadConfig(repoRoot)

	scorer, err := compareScorer(compareScore, compareTolerance, cfg)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	refs, missing := selectByIDs(mustReadSpectra(repoRoot), config.ParseList(compareIDs))
	if len(missing) > 0 {
		exitWithError(ExitError, "unknown spectrum: %s", missing[0])
	}

	parsed, _ := readSpectraFile(args[0], compareFormat)
	queries, _ := processSpectra(parsed, compareRaw)
	if len(queries) == 0 {
		exitWithError(ExitDataError, "no query spectra left after filtering")
	}

	scores, err := similarity.Matrix(context.Background(), refs, queries, scorer)
	if errors.Is(err, similarity.ErrMissingPrecursor) {
		exitWithError(ExitDataError, "%v", err)
	}
	if err != nil {
		exitWithError(ExitError, "comparing spectra: %v", err)
	}

	resp := CompareResponse{Score: scorer.Name(), Scores: scores}
	for _, r := range refs {
		resp.References = append(resp.References, r.ID)
	}
	for _, q := range queries {
		resp.Queries = append(resp.Queries, q.ID)
	}

	if humanOutput {
		fmt.Printf("%s scores (rows: library, columns: queries)\n\n", resp.Score)
		fmt.Printf("%-24s", "")
		for _, id := range resp.Queries {
			fmt.Printf(" %12s", truncateString(id, 12))
		}
		fmt.Println()
		for i, id := range resp.References {
			fmt.Printf("%-24s", truncateString(id, 24))
			for _, s := range scores[i] {
				fmt.Printf(" %7.4f (%2d)", s.Value, s.Matches)
			}
			fmt.Println()
		}
	} else {
		outputJSON(resp)
	}
	return nil
}
