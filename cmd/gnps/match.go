package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/iomega/spec2vec-gnps/internal/config"
	"github.com/iomega/spec2vec-gnps/internal/library"
	"github.com/iomega/spec2vec-gnps/internal/similarity"
	"github.com/iomega/spec2vec-gnps/internal/spectrum"
	"github.com/iomega/spec2vec-gnps/internal/storage"
)

// matchFlags are the matching overrides shared by match and evaluate.
type matchFlags struct {
	format              string
	presearch           string
	scores              string
	massTolerance       float64
	massToleranceType   string
	cosineTolerance     float64
	allowedMissing      float64
	includeNonAnnotated bool
	model               string
	workers             int
	raw                 bool
}

func (f *matchFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.format, "format", "", "Query file format: json or mgf (default: from extension)")
	fl.StringVar(&f.presearch, "presearch", "", "Comma-separated presearch: precursor_mz, spec2vec-topN")
	fl.StringVar(&f.scores, "scores", "", "Comma-separated scores: spec2vec, cosine, modcosine")
	fl.Float64Var(&f.massTolerance, "mass-tolerance", 0, "Precursor tolerance for the mass presearch")
	fl.StringVar(&f.massToleranceType, "mass-tolerance-type", "", "Precursor tolerance type: Dalton or ppm")
	fl.Float64Var(&f.cosineTolerance, "cosine-tolerance", 0, "Peak matching tolerance in Da")
	fl.Float64Var(&f.allowedMissing, "allowed-missing", 0, "Uncovered intensity percentage tolerated by spec2vec")
	fl.BoolVar(&f.includeNonAnnotated, "include-non-annotated", false, "Also match against spectra without SMILES")
	fl.StringVar(&f.model, "model", "", "word2vec model (default: model_path from config)")
	fl.IntVar(&f.workers, "workers", 0, "Queries scored concurrently (default: number of CPUs)")
	fl.BoolVar(&f.raw, "raw", false, "Match queries as parsed, without peak filtering")
}

// options merges config defaults with the flags the user set and loads the
// model when a spec2vec score or presearch needs it.
func (f *matchFlags) options(cmd *cobra.Command, cfg *config.Config) library.Options {
	opts, err := cfg.MatchOptions()
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	changed := cmd.Flags().Changed
	if changed("presearch") {
		opts.Presearch = config.ParseList(f.presearch)
	}
	if changed("scores") {
		opts.IncludeScores = config.ParseList(f.scores)
	}
	if changed("mass-tolerance") {
		opts.MassTolerance = f.massTolerance
	}
	if changed("mass-tolerance-type") {
		if opts.MassToleranceType, err = similarity.ParseToleranceType(f.massToleranceType); err != nil {
			exitWithError(ExitError, "%v", err)
		}
	}
	if changed("cosine-tolerance") {
		opts.CosineTolerance = f.cosineTolerance
	}
	if changed("allowed-missing") {
		opts.AllowedMissingPercentage = f.allowedMissing
	}
	if f.includeNonAnnotated {
		opts.IgnoreNonAnnotated = false
	}
	opts.Workers = f.workers

	_, topN, err := library.ParsePresearch(opts.Presearch)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if err := library.ValidateScoreNames(opts.IncludeScores); err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if topN > 0 || containsString(opts.IncludeScores, similarity.NameSpec2Vec) {
		opts.Model = mustLoadModel(cfg, f.model)
	}
	return opts
}

// runMatching reads and processes the query file, then matches it against
// the repository spectra.
func (f *matchFlags) runMatching(ctx context.Context, cmd *cobra.Command, repoRoot, path string) (queries, lib []*spectrum.Spectrum, results []library.Result, skipped int) {
	cfg := mustLoadConfig(repoRoot)
	opts := f.options(cmd, cfg)

	parsed, _ := readSpectraFile(path, f.format)
	queries, skipped = processSpectra(parsed, f.raw)
	if skipped > 0 {
		log.Info().Int("skipped", skipped).Msg("Queries removed by peak filtering")
	}

	lib = mustReadSpectra(repoRoot)
	if len(lib) == 0 {
		exitWithError(ExitDataError, "library is empty\n\nImport spectra with 'gnps import <file>' first.")
	}

	results, err := library.Match(ctx, queries, lib, opts)
	if err != nil {
		exitWithError(ExitError, "matching: %v", err)
	}
	return queries, lib, results, skipped
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var (
	matchOpts   matchFlags
	matchSave   bool
	matchSortBy string
	matchTop    int
)

func init() {
	matchOpts.register(matchCmd)
	matchCmd.Flags().BoolVar(&matchSave, "save", false, "Save candidates to matches.jsonl, replacing earlier results for the same queries")
	matchCmd.Flags().StringVar(&matchSortBy, "sort-by", similarity.NameSpec2Vec, "Order candidates by score: spec2vec, cosine, modcosine")
	matchCmd.Flags().IntVar(&matchTop, "top", 0, "Show at most N candidates per query (0 for all)")
	rootCmd.AddCommand(matchCmd)
}

var matchCmd = &cobra.Command{
	Use:   "match <query-file>",
	Short: "Match query spectra against the library",
	Long: `Find library candidates for every spectrum in a query file.

Candidates are pre-selected by precursor mass and/or spec2vec top N, then
scored with the configured similarity scores. Settings come from the
repository config; flags override them for this run.

Examples:
  gnps match unknowns.mgf
  gnps match unknowns.mgf --presearch precursor_mz --scores cosine,modcosine
  gnps match unknowns.mgf --save --human --top 5`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

// CandidateView is a candidate with the library spectrum's identity.
type CandidateView struct {
	library.Candidate
	LibraryName     string `json:"library_name,omitempty"`
	LibraryInChIKey string `json:"library_inchikey,omitempty"`
}

// QueryMatches holds the displayed candidates of one query.
type QueryMatches struct {
	QueryID    string          `json:"query_id"`
	QueryName  string          `json:"query_name,omitempty"`
	Candidates []CandidateView `json:"candidates"`
}

// MatchResponse is the response for the match command.
type MatchResponse struct {
	Queries        int            `json:"queries"`
	SkippedQueries int            `json:"skipped_queries"`
	Candidates     int            `json:"candidates"`
	Saved          bool           `json:"saved"`
	Results        []QueryMatches `json:"results"`
}

// sortCandidates orders candidates by the named score, highest first. Ties
// keep library order.
func sortCandidates(cands []library.Candidate, score string) []library.Candidate {
	out := append([]library.Candidate(nil), cands...)
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := out[i].Score(score)
		b, _ := out[j].Score(score)
		return a > b
	})
	return out
}

// candidateViews joins candidates with library metadata, limited to top when positive.
func candidateViews(cands []library.Candidate, lib []*spectrum.Spectrum, sortBy string, top int) []CandidateView {
	cands = sortCandidates(cands, sortBy)
	if top > 0 && len(cands) > top {
		cands = cands[:top]
	}
	out := make([]CandidateView, len(cands))
	for i, c := range cands {
		out[i] = CandidateView{Candidate: c}
		if c.LibraryIndex >= 0 && c.LibraryIndex < len(lib) {
			out[i].LibraryName = lib[c.LibraryIndex].Metadata.CompoundName
			out[i].LibraryInChIKey = lib[c.LibraryIndex].Metadata.InChIKey
		}
	}
	return out
}

func runMatch(cmd *cobra.Command, args []string) error {
	if err := library.ValidateScoreNames([]string{matchSortBy}); err != nil {
		exitWithError(ExitError, "--sort-by: %v", err)
	}

	ctx := context.Background()
	repoRoot := mustFindRepository()
	queries, lib, results, skipped := matchOpts.runMatching(ctx, cmd, repoRoot, args[0])

	if matchSave {
		saveMatches(repoRoot, results)
	}

	names := make(map[string]string, len(queries))
	for _, q := range queries {
		names[q.ID] = q.Metadata.CompoundName
	}
	resp := MatchResponse{
		Queries:        len(queries),
		SkippedQueries: skipped,
		Saved:          matchSave,
		Results:        make([]QueryMatches, len(results)),
	}
	for i, r := range results {
		resp.Candidates += len(r.Candidates)
		resp.Results[i] = QueryMatches{
			QueryID:    r.QueryID,
			QueryName:  names[r.QueryID],
			Candidates: candidateViews(r.Candidates, lib, matchSortBy, matchTop),
		}
	}

	if humanOutput {
		printMatchesHuman(resp)
	} else {
		outputJSON(resp)
	}
	return nil
}

// saveMatches replaces the saved candidates of the matched queries and
// refreshes the matches table.
func saveMatches(repoRoot string, results []library.Result) {
	path := config.MatchesPath(repoRoot)
	existing, err := storage.ReadAllMatches(path)
	if err != nil {
		exitWithError(ExitDataError, "reading saved matches: %v", err)
	}
	if err := storage.WriteAllMatches(path, storage.ReplaceMatchesForQueries(existing, results)); err != nil {
		exitWithError(ExitError, "writing matches: %v", err)
	}

	db := mustOpenDatabase(repoRoot)
	defer db.Close()
	if _, err := db.RebuildMatchesFromJSONL(path); err != nil {
		exitWithError(ExitDataError, "rebuilding matches database: %v", err)
	}
}

func formatScore(s *similarity.Score) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f/%d", s.Value, s.Matches)
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}

func printCandidatesHuman(cands []CandidateView) {
	fmt.Printf("  %-24s %-9s %-11s %-11s %-5s %s\n", "LIBRARY", "SPEC2VEC", "COSINE", "MODCOSINE", "MASS", "NAME")
	for _, c := range cands {
		mass := "-"
		if c.MassMatch != nil {
			mass = "no"
			if *c.MassMatch {
				mass = "yes"
			}
		}
		fmt.Printf("  %-24s %-9s %-11s %-11s %-5s %s\n",
			c.LibraryID, formatOptional(c.Spec2Vec), formatScore(c.Cosine), formatScore(c.ModCosine),
			mass, truncateString(c.LibraryName, MatchNameMaxLen))
	}
}

func printMatchesHuman(resp MatchResponse) {
	for _, r := range resp.Results {
		title := r.QueryID
		if r.QueryName != "" {
			title += " (" + truncateString(r.QueryName, MatchNameMaxLen) + ")"
		}
		fmt.Println(title)
		fmt.Println(strings.Repeat("-", len(title)))
		if len(r.Candidates) == 0 {
			fmt.Println("  no candidates")
		} else {
			printCandidatesHuman(r.Candidates)
		}
		fmt.Println()
	}
	fmt.Printf("%d queries, %d candidates", resp.Queries, resp.Candidates)
	if resp.SkippedQueries > 0 {
		fmt.Printf(", %d queries skipped by peak filtering", resp.SkippedQueries)
	}
	if resp.Saved {
		fmt.Print(", saved")
	}
	fmt.Println()
}
