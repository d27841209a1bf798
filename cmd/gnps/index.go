package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iomega/spec2vec-gnps/internal/config"
	"github.com/iomega/spec2vec-gnps/internal/embedding"
	"github.com/iomega/spec2vec-gnps/internal/semantic"
)

var (
	noProgress   bool
	indexModel   string
	indexWorkers int
)

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexCheckCmd)

	indexBuildCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Suppress progress output")
	indexBuildCmd.Flags().StringVar(&indexModel, "model", "", "word2vec model (default: model_path from config)")
	indexBuildCmd.Flags().IntVar(&indexWorkers, "workers", 0, "Spectra embedded concurrently (default: number of CPUs)")
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the spec2vec index",
	Long:  `Commands for building and checking the spec2vec embedding index.`,
}

// IndexBuildResult is the response for index build command.
type IndexBuildResult struct {
	Status          string  `json:"status"`
	SpectraIndexed  int     `json:"spectra_indexed"`
	SpectraSkipped  int     `json:"spectra_skipped"`
	SkippedReason   string  `json:"skipped_reason"`
	DurationSeconds float64 `json:"duration_seconds"`
	Model           string  `json:"model"`
	IndexSizeBytes  int64   `json:"index_size_bytes"`
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build or rebuild the spec2vec index",
	Long: `Build or rebuild the spec2vec index from the library spectra.

Every spectrum is converted to a document of peak and loss words and embedded
with the configured word2vec model. Spectra whose words are not sufficiently
covered by the model (see allowed_missing_percentage) are skipped.`,
	Args: cobra.NoArgs,
	RunE: runIndexBuild,
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	repoRoot := mustFindRepository()
	cfg := mustLoadConfig(repoRoot)
	model := mustLoadModel(cfg, indexModel)

	provider := embedding.NewSpec2Vec(model,
		embedding.WithIntensityWeightingPower(cfg.IntensityWeightingPower),
		embedding.WithAllowedMissingPercentage(cfg.AllowedMissingPercentage))

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	spectra := mustReadSpectra(repoRoot)

	builder := semantic.NewBuilder(provider, db, cfg.NDecimals)
	builder.SetIntensityWeightingPower(cfg.IntensityWeightingPower)
	builder.SetWorkers(indexWorkers)
	if !noProgress && humanOutput {
		builder.SetProgressReporter(semantic.ProgressFunc(printProgress))
		fmt.Fprintf(os.Stderr, "Building spec2vec index...\n")
	}

	idx, stats, err := builder.Build(ctx, spectra)
	if err != nil {
		exitWithError(ExitError, "building index: %v", err)
	}

	if err := builder.Save(repoRoot, idx); err != nil {
		exitWithError(ExitError, "saving index: %v", err)
	}

	// Get index size (non-fatal if it fails)
	if indexSize, err := semantic.IndexSize(repoRoot); err == nil {
		stats.IndexSizeBytes = indexSize
	} else if humanOutput {
		fmt.Fprintf(os.Stderr, "Warning: could not determine index size: %v\n", err)
	}

	if humanOutput && !noProgress {
		clearProgress()
	}

	if humanOutput {
		fmt.Printf("\nBuild complete:\n")
		fmt.Printf("  Spectra indexed: %d\n", stats.SpectraIndexed)
		fmt.Printf("  Spectra skipped: %d (insufficient model coverage)\n", stats.SpectraSkipped)
		fmt.Printf("  Time elapsed: %s\n", formatDuration(stats.Duration))
		fmt.Printf("  Index size: %s\n", formatBytes(stats.IndexSizeBytes))
		fmt.Printf("  Model: %s\n", provider.ModelName())
	} else {
		outputJSON(IndexBuildResult{
			Status:          "complete",
			SpectraIndexed:  stats.SpectraIndexed,
			SpectraSkipped:  stats.SpectraSkipped,
			SkippedReason:   stats.SkippedReason,
			DurationSeconds: stats.Duration.Seconds(),
			Model:           provider.ModelName(),
			IndexSizeBytes:  stats.IndexSizeBytes,
		})
	}
	return nil
}

// IndexCheckResult is the response for index check command.
type IndexCheckResult struct {
	Status         string   `json:"status"`
	SpectraTotal   int      `json:"spectra_total"`
	SpectraIndexed int      `json:"spectra_indexed"`
	SpectraSkipped int      `json:"spectra_skipped"`
	PeakHashes     int      `json:"peak_hashes"`
	Missing        []string `json:"missing,omitempty"`
	Changed        []string `json:"changed,omitempty"`
	Orphaned       []string `json:"orphaned,omitempty"`
	SettingsDrift  []string `json:"settings_drift,omitempty"`
	Model          string   `json:"model"`
	IndexCreated   string   `json:"index_created"`
	IndexSizeBytes int64    `json:"index_size_bytes"`
	Recommendation string   `json:"recommendation,omitempty"`
}

var indexCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check spec2vec index health",
	Long: `Check whether the spec2vec index still matches the library.

The index is stale when spectra changed or were removed since it was built,
or when n_decimals or intensity_weighting_power changed in the config.
Spectra added since the build are reported as missing. Exits with code 6
when the index is stale.`,
	Args: cobra.NoArgs,
	RunE: runIndexCheck,
}

// settingsDrift lists index settings that differ from the current config.
func settingsDrift(idx *semantic.SemanticIndex, cfg *config.Config) []string {
	var drift []string
	if idx.NDecimals != cfg.NDecimals {
		drift = append(drift, fmt.Sprintf("n_decimals: index %d, config %d", idx.NDecimals, cfg.NDecimals))
	}
	if idx.IntensityWeightingPower != cfg.IntensityWeightingPower {
		drift = append(drift, fmt.Sprintf("intensity_weighting_power: index %g, config %g",
			idx.IntensityWeightingPower, cfg.IntensityWeightingPower))
	}
	return drift
}

func runIndexCheck(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	cfg := mustLoadConfig(repoRoot)
	idx := mustLoadSemanticIndex(repoRoot)

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	spectra := mustReadSpectra(repoRoot)
	report, err := semantic.CheckStaleness(idx, spectra, db)
	if err != nil {
		exitWithError(ExitError, "checking index: %v", err)
	}

	hashes, err := db.CountEmbeddingMetadata()
	if err != nil {
		exitWithError(ExitError, "counting peak hashes: %v", err)
	}

	indexSize, _ := semantic.IndexSize(repoRoot)
	result := IndexCheckResult{
		Status:         "healthy",
		SpectraTotal:   len(spectra),
		SpectraIndexed: len(idx.Embeddings),
		SpectraSkipped: idx.SkippedCount,
		PeakHashes:     hashes,
		Missing:        report.Missing,
		Changed:        report.Changed,
		Orphaned:       report.Orphaned,
		SettingsDrift:  settingsDrift(idx, cfg),
		Model:          idx.ModelName,
		IndexCreated:   idx.CreatedAt.Format(time.RFC3339),
		IndexSizeBytes: indexSize,
	}

	exitCode := ExitSuccess
	switch {
	case report.IsStale() || len(result.SettingsDrift) > 0:
		result.Status = "stale"
		result.Recommendation = "Run 'gnps index build' to rebuild the index."
		exitCode = ExitIndexStale
	case len(report.Missing) > idx.SkippedCount:
		result.Status = "incomplete"
		result.Recommendation = "New spectra are not indexed. Run 'gnps index build' to include them."
	}

	if humanOutput {
		fmt.Printf("spec2vec Index Status: %s\n\n", result.Status)
		fmt.Printf("Spectra:\n")
		fmt.Printf("  Total in library: %d\n", result.SpectraTotal)
		fmt.Printf("  In index: %d\n", result.SpectraIndexed)
		fmt.Printf("  Skipped at build: %d\n", result.SpectraSkipped)
		fmt.Printf("  Peak hashes recorded: %d\n", result.PeakHashes)
		fmt.Printf("  Not indexed: %d\n", len(result.Missing))
		fmt.Printf("  Changed since build: %d\n", len(result.Changed))
		fmt.Printf("  Removed since build: %d\n", len(result.Orphaned))
		for _, d := range result.SettingsDrift {
			fmt.Printf("  Settings changed: %s\n", d)
		}
		fmt.Printf("\nIndex Info:\n")
		fmt.Printf("  Model: %s\n", result.Model)
		fmt.Printf("  Created: %s\n", result.IndexCreated)
		fmt.Printf("  Size: %s\n", formatBytes(result.IndexSizeBytes))
		if result.Recommendation != "" {
			fmt.Printf("\n%s\n", result.Recommendation)
		}
	} else {
		outputJSON(result)
	}

	if exitCode != ExitSuccess {
		os.Exit(exitCode)
	}
	return nil
}
