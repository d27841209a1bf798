package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iomega/spec2vec-gnps/internal/config"
	"github.com/iomega/spec2vec-gnps/internal/evaluate"
	"github.com/iomega/spec2vec-gnps/internal/library"
	"github.com/iomega/spec2vec-gnps/internal/spectrum"
	"github.com/iomega/spec2vec-gnps/internal/storage"
)

var (
	evalOpts         matchFlags
	evalScore        string
	evalMinScore     float64
	evalMinMatches   int
	evalRequireMass  bool
	evalSaved        bool
	evalThresholds   string
	evalShowOutcomes bool
)

func init() {
	evalOpts.register(evaluateCmd)
	d := evaluate.DefaultCriterion()
	f := evaluateCmd.Flags()
	f.StringVar(&evalScore, "score", d.Score, "Score used to pick the best candidate: spec2vec, cosine, modcosine")
	f.Float64Var(&evalMinScore, "min-score", d.MinScore, "Minimum score of an accepted candidate")
	f.IntVar(&evalMinMatches, "min-matches", 0, "Minimum matched peaks of an accepted candidate (cosine scores)")
	f.BoolVar(&evalRequireMass, "require-mass-match", false, "Only accept candidates whose precursor matched")
	f.BoolVar(&evalSaved, "saved", false, "Evaluate saved matches instead of matching again")
	f.StringVar(&evalThresholds, "thresholds", "", "Sweep min-score as lo:hi:n, e.g. 0.5:0.95:10")
	f.BoolVar(&evalShowOutcomes, "outcomes", false, "Include per-query outcomes")
	rootCmd.AddCommand(evaluateCmd)
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <query-file>",
	Short: "Measure identification precision and recall on annotated queries",
	Long: `Match annotated query spectra against the library and check whether the
best accepted candidate has the same InChIKey first block as the query.

Queries without an InChIKey are skipped. Precision is TP/(TP+FP); recall is
TP over the evaluated queries.

Examples:
  gnps evaluate test_queries.mgf
  gnps evaluate test_queries.mgf --score modcosine --min-score 0.7 --min-matches 6
  gnps evaluate test_queries.mgf --saved --thresholds 0.5:0.95:10`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

// EvaluateResponse is the response for the evaluate command.
type EvaluateResponse struct {
	*evaluate.Report
	Curve []evaluate.CurvePoint `json:"curve,omitempty"`
}

// parseThresholds parses "lo:hi:n".
func parseThresholds(s string) ([]float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid thresholds %q (want lo:hi:n)", s)
	}
	lo, err1 := strconv.ParseFloat(parts[0], 64)
	hi, err2 := strconv.ParseFloat(parts[1], 64)
	n, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil || n < 1 || hi < lo {
		return nil, fmt.Errorf("invalid thresholds %q (want lo:hi:n with lo <= hi, n >= 1)", s)
	}
	return evaluate.Thresholds(lo, hi, n), nil
}

// savedResults groups saved candidates of the given queries into results.
func savedResults(repoRoot string, queries []*spectrum.Spectrum) []library.Result {
	saved, err := storage.ReadAllMatches(config.MatchesPath(repoRoot))
	if err != nil {
		exitWithError(ExitDataError, "reading saved matches: %v", err)
	}
	if len(saved) == 0 {
		exitWithError(ExitDataError, "no saved matches\n\nRun 'gnps match <query-file> --save' first.")
	}
	grouped := storage.GroupMatches(saved)
	results := make([]library.Result, len(queries))
	for i, q := range queries {
		results[i] = library.Result{QueryID: q.ID, Candidates: grouped[q.ID]}
	}
	return results
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	criterion := evaluate.Criterion{
		Score:            evalScore,
		MinScore:         evalMinScore,
		MinMatches:       evalMinMatches,
		RequireMassMatch: evalRequireMass,
	}
	if err := criterion.Validate(); err != nil {
		exitWithError(ExitError, "%v", err)
	}
	var thresholds []float64
	if evalThresholds != "" {
		var err error
		if thresholds, err = parseThresholds(evalThresholds); err != nil {
			exitWithError(ExitError, "%v", err)
		}
	}

	ctx := context.Background()
	repoRoot := mustFindRepository()

	var (
		queries, lib []*spectrum.Spectrum
		results      []library.Result
	)
	if evalSaved {
		parsed, _ := readSpectraFile(args[0], evalOpts.format)
		queries, _ = processSpectra(parsed, evalOpts.raw)
		lib = mustReadSpectra(repoRoot)
		results = savedResults(repoRoot, queries)
	} else {
		queries, lib, results, _ = evalOpts.runMatching(ctx, cmd, repoRoot, args[0])
	}

	report, err := evaluate.Evaluate(queries, lib, results, criterion)
	if err != nil {
		exitWithError(ExitError, "evaluating: %v", err)
	}
	resp := EvaluateResponse{Report: report}
	if thresholds != nil {
		if resp.Curve, err = evaluate.Curve(queries, lib, results, criterion, thresholds); err != nil {
			exitWithError(ExitError, "evaluating: %v", err)
		}
	}
	if !evalShowOutcomes {
		report.Outcomes = nil
	}

	if humanOutput {
		printEvaluationHuman(resp)
	} else {
		outputJSON(resp)
	}
	return nil
}

func printEvaluationHuman(resp EvaluateResponse) {
	r := resp.Report
	c := r.Criterion
	fmt.Printf("Criterion: best %s >= %g", c.Score, c.MinScore)
	if c.MinMatches > 0 {
		fmt.Printf(", >= %d matched peaks", c.MinMatches)
	}
	if c.RequireMassMatch {
		fmt.Print(", mass match required")
	}
	fmt.Println()
	fmt.Printf("\nQueries evaluated: %d (%d skipped without InChIKey)\n", r.Queries, r.Skipped)
	fmt.Printf("  True positives:  %d\n", r.TruePositives)
	fmt.Printf("  False positives: %d\n", r.FalsePositives)
	fmt.Printf("  No hit:          %d\n", r.NoHits)
	fmt.Printf("  Precision:       %.3f\n", r.Precision)
	fmt.Printf("  Recall:          %.3f\n", r.Recall)

	if len(resp.Curve) > 0 {
		fmt.Printf("\n%-10s %6s %6s %7s %9s %7s\n", "MIN_SCORE", "TP", "FP", "NO_HIT", "PRECISION", "RECALL")
		for _, p := range resp.Curve {
			fmt.Printf("%-10.3f %6d %6d %7d %9.3f %7.3f\n", p.MinScore, p.TruePositives, p.FalsePositives, p.NoHits, p.Precision, p.Recall)
		}
	}

	if len(r.Outcomes) > 0 {
		fmt.Println()
		for _, o := range r.Outcomes {
			fmt.Printf("  %-24s %-15s %-24s %.3f\n", o.QueryID, o.Status, o.LibraryID, o.Score)
		}
	}
}
