package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/iomega/spec2vec-gnps/internal/document"
	"github.com/iomega/spec2vec-gnps/internal/embedding"
	"github.com/iomega/spec2vec-gnps/internal/semantic"
	"github.com/iomega/spec2vec-gnps/internal/storage"
)

var (
	similarLimit     int
	similarThreshold float64
	similarFile      string
	similarModel     string
	similarRaw       bool
)

func init() {
	rootCmd.AddCommand(similarCmd)

	similarCmd.Flags().IntVarP(&similarLimit, "limit", "l", 10, "Maximum number of results")
	similarCmd.Flags().Float64Var(&similarThreshold, "threshold", 0, "Minimum spec2vec similarity")
	similarCmd.Flags().StringVar(&similarFile, "file", "", "Search with the spectra of a GNPS JSON or MGF file instead of a library spectrum")
	similarCmd.Flags().StringVar(&similarModel, "model", "", "Word2Vec model for --file (default: config model_path)")
	similarCmd.Flags().BoolVar(&similarRaw, "raw", false, "Skip default peak filtering of --file spectra")
}

// SimilarResult is one spectrum in a similar spectra response.
type SimilarResult struct {
	SpectrumSummary
	Similarity float64 `json:"similarity"`
}

// SimilarResponse is the response for the similar command.
type SimilarResponse struct {
	Source  SpectrumSummary `json:"source"`
	Similar []SimilarResult `json:"similar"`
	Total   int             `json:"total"`
	Model   string          `json:"model"`
}

// SimilarQuery holds the neighbours of one spectrum read with --file.
type SimilarQuery struct {
	Query   SpectrumSummary `json:"query"`
	Similar []SimilarResult `json:"similar"`
	Error   string          `json:"error,omitempty"`
}

// SimilarFileResponse is the response for similar --file.
type SimilarFileResponse struct {
	Queries []SimilarQuery `json:"queries"`
	Total   int            `json:"total"`
	Model   string         `json:"model"`
}

var similarCmd = &cobra.Command{
	Use:   "similar [spectrum-id]",
	Short: "Find library spectra similar to a spectrum",
	Long: `Find the library spectra closest to a given spectrum by spec2vec similarity.
The source spectrum is excluded from results.

With --file, every spectrum of the file is embedded with the model and
searched against the index instead.

Requires the spec2vec index to be built first with 'gnps index build'.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if similarFile != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runSimilar,
}

// buildSimilarResults joins index hits with library metadata. Hits no longer
// in the database are skipped.
func buildSimilarResults(hits []semantic.SearchResult, db *storage.DB, threshold float64) []SimilarResult {
	out := make([]SimilarResult, 0, len(hits))
	for _, h := range hits {
		if h.Similarity < threshold {
			continue
		}
		s, err := db.GetByID(h.SpectrumID)
		if err != nil || s == nil {
			continue
		}
		out = append(out, SimilarResult{SpectrumSummary: summarize(s), Similarity: h.Similarity})
	}
	return out
}

func runSimilar(cmd *cobra.Command, args []string) error {
	if similarFile != "" {
		return runSimilarFile(context.Background())
	}

	id := args[0]
	repoRoot := mustFindRepository()
	idx := mustLoadSemanticIndex(repoRoot)

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	source, err := db.GetByID(id)
	if err != nil {
		exitWithError(ExitError, "looking up spectrum: %v", err)
	}
	if source == nil {
		exitWithError(ExitError, "spectrum '%s' not found", id)
	}

	hits, err := idx.FindSimilar(id, similarLimit)
	if errors.Is(err, semantic.ErrSpectrumNotIndexed) {
		exitWithError(ExitDataError, "spectrum '%s' is not in the spec2vec index\n\nIts peaks may not be covered by the model, or it was added after the last 'gnps index build'.", id)
	}
	if err != nil {
		exitWithError(ExitError, "finding similar spectra: %v", err)
	}

	results := buildSimilarResults(hits, db, similarThreshold)
	if humanOutput {
		fmt.Printf("Spectra similar to %s (%s):\n\n", id, truncateString(source.Metadata.CompoundName, ListNameMaxLen))
		for i, r := range results {
			fmt.Printf("%2d. [%.3f] %-24s %10.4f  %s\n", i+1, r.Similarity, r.ID, r.PrecursorMZ, truncateString(r.Name, ListNameMaxLen))
		}
	} else {
		outputJSON(SimilarResponse{
			Source:  summarize(source),
			Similar: results,
			Total:   len(results),
			Model:   idx.ModelName,
		})
	}
	return nil
}

// runSimilarFile embeds external spectra with the settings the index was
// built with and searches the index for each.
func runSimilarFile(ctx context.Context) error {
	repoRoot := mustFindRepository()
	cfg := mustLoadConfig(repoRoot)
	idx := mustLoadSemanticIndex(repoRoot)

	model := mustLoadModel(cfg, similarModel)
	if model.Name != idx.ModelName {
		log.Warn().Str("model", model.Name).Str("index", idx.ModelName).Msg("Model differs from the one the index was built with")
	}
	provider := embedding.NewSpec2Vec(model,
		embedding.WithIntensityWeightingPower(idx.IntensityWeightingPower),
		embedding.WithAllowedMissingPercentage(cfg.AllowedMissingPercentage))

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	parsed, _ := readSpectraFile(similarFile, "")
	queries, filtered := processSpectra(parsed, similarRaw)
	if filtered > 0 {
		log.Info().Int("filtered", filtered).Msg("Spectra dropped by peak filters")
	}

	resp := SimilarFileResponse{Model: idx.ModelName, Queries: make([]SimilarQuery, 0, len(queries))}
	for i, doc := range document.FromSpectra(queries, idx.NDecimals) {
		q := SimilarQuery{Query: summarize(queries[i]), Similar: []SimilarResult{}}
		emb, err := provider.Embed(ctx, doc)
		if err != nil {
			if !errors.Is(err, embedding.ErrModelCoverage) {
				exitWithError(ExitError, "embedding %s: %v", doc.ID, err)
			}
			q.Error = err.Error()
		} else {
			hits := idx.Search(emb.Vector, similarLimit, similarThreshold)
			q.Similar = buildSimilarResults(hits, db, similarThreshold)
		}
		resp.Queries = append(resp.Queries, q)
	}
	resp.Total = len(resp.Queries)

	if humanOutput {
		for _, q := range resp.Queries {
			fmt.Printf("%s (%s):\n", q.Query.ID, truncateString(q.Query.Name, ListNameMaxLen))
			if q.Error != "" {
				fmt.Printf("  %s\n\n", q.Error)
				continue
			}
			for i, r := range q.Similar {
				fmt.Printf("%2d. [%.3f] %-24s %10.4f  %s\n", i+1, r.Similarity, r.ID, r.PrecursorMZ, truncateString(r.Name, ListNameMaxLen))
			}
			fmt.Println()
		}
	} else {
		outputJSON(resp)
	}
	return nil
}
