package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iomega/spec2vec-gnps/internal/library"
	"github.com/iomega/spec2vec-gnps/internal/similarity"
	"github.com/iomega/spec2vec-gnps/internal/storage"
)

var (
	matchesByLibrary bool
	matchesSortBy    string
	matchesTop       int
)

func init() {
	matchesCmd.Flags().BoolVar(&matchesByLibrary, "library", false, "Treat the ID as a library spectrum and list the queries it matched")
	matchesCmd.Flags().StringVar(&matchesSortBy, "sort-by", similarity.NameSpec2Vec, "Order candidates by score: spec2vec, cosine, modcosine")
	matchesCmd.Flags().IntVar(&matchesTop, "top", 0, "Show at most N candidates (0 for all)")
	rootCmd.AddCommand(matchesCmd)
}

var matchesCmd = &cobra.Command{
	Use:   "matches <id>",
	Short: "Show saved match candidates",
	Long: `Show candidates saved with 'gnps match --save'.

Examples:
  gnps matches query-17
  gnps matches --library CCMSLIB00000001547`,
	Args: cobra.ExactArgs(1),
	RunE: runMatches,
}

// MatchesResponse is the response for the matches command.
type MatchesResponse struct {
	ID         string          `json:"id"`
	By         string          `json:"by"` // query or library
	Candidates []CandidateView `json:"candidates"`
	Total      int             `json:"total"`
}

// savedCandidateViews joins saved candidates with library metadata from the database.
func savedCandidateViews(db *storage.DB, cands []library.Candidate) []CandidateView {
	cands = sortCandidates(cands, matchesSortBy)
	if matchesTop > 0 && len(cands) > matchesTop {
		cands = cands[:matchesTop]
	}
	out := make([]CandidateView, len(cands))
	for i, c := range cands {
		out[i] = CandidateView{Candidate: c}
		if s, err := db.GetByID(c.LibraryID); err == nil && s != nil {
			out[i].LibraryName = s.Metadata.CompoundName
			out[i].LibraryInChIKey = s.Metadata.InChIKey
		}
	}
	return out
}

func runMatches(cmd *cobra.Command, args []string) error {
	if err := library.ValidateScoreNames([]string{matchesSortBy}); err != nil {
		exitWithError(ExitError, "--sort-by: %v", err)
	}

	id := args[0]
	repoRoot := mustFindRepository()
	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	by := "query"
	get := db.GetMatchesByQuery
	if matchesByLibrary {
		by = "library"
		get = db.GetMatchesByLibrary
	}
	cands, err := get(id)
	if err != nil {
		exitWithError(ExitError, "reading matches: %v", err)
	}

	resp := MatchesResponse{ID: id, By: by, Candidates: savedCandidateViews(db, cands), Total: len(cands)}
	if humanOutput {
		if len(cands) == 0 {
			fmt.Printf("No saved matches for %s %s\n", by, id)
			return nil
		}
		if matchesByLibrary {
			for _, c := range resp.Candidates {
				fmt.Printf("  %-24s spec2vec %s  cosine %s  modcosine %s\n",
					c.QueryID, formatOptional(c.Spec2Vec), formatScore(c.Cosine), formatScore(c.ModCosine))
			}
		} else {
			printCandidatesHuman(resp.Candidates)
		}
		fmt.Printf("\n%d saved candidates\n", len(cands))
	} else {
		outputJSON(resp)
	}
	return nil
}
