package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/iomega/spec2vec-gnps/internal/embedding"
	"github.com/iomega/spec2vec-gnps/internal/matrix"
	"github.com/iomega/spec2vec-gnps/internal/semantic"
	"github.com/iomega/spec2vec-gnps/internal/similarity"
	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

var (
	matrixScore         string
	matrixOut           string
	matrixSafetyPoints  int
	matrixTolerance     float64
	matrixWorkers       int
	matrixModel         string
	matrixFile          string
	matrixFormat        string
	matrixRaw           bool
	matrixAnnotatedOnly bool
	matrixNoProgress    bool
	matrixNeighborLimit int
)

func init() {
	f := matrixCmd.Flags()
	f.StringVar(&matrixScore, "score", similarity.NameCosine, "Score: cosine, modcosine or spec2vec")
	f.StringVarP(&matrixOut, "out", "o", "", "Output file (.mtx.zst)")
	f.IntVar(&matrixSafetyPoints, "safety-points", 0, "Save this many checkpoints while computing")
	f.Float64Var(&matrixTolerance, "tolerance", 0, "Peak matching tolerance in Da (default: cosine_tolerance from config)")
	f.IntVar(&matrixWorkers, "workers", 0, "Rows computed concurrently (default: number of CPUs)")
	f.StringVar(&matrixModel, "model", "", "word2vec model for spec2vec (default: use the index, then model_path)")
	f.StringVar(&matrixFile, "file", "", "Compute over the spectra of a file instead of the library")
	f.StringVar(&matrixFormat, "format", "", "Format of --file: json or mgf (default: from extension)")
	f.BoolVar(&matrixRaw, "raw", false, "Skip default peak filtering of --file spectra")
	f.BoolVar(&matrixAnnotatedOnly, "annotated-only", false, "Only include spectra with a SMILES annotation")
	f.BoolVar(&matrixNoProgress, "no-progress", false, "Suppress progress output")
	matrixCmd.MarkFlagRequired("out")

	matrixNeighborsCmd.Flags().IntVarP(&matrixNeighborLimit, "limit", "l", 10, "Maximum number of neighbours")

	matrixCmd.AddCommand(matrixNeighborsCmd)
	rootCmd.AddCommand(matrixCmd)
}

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Compute an all-vs-all similarity matrix",
	Long: `Score every library spectrum against every other and save the matrix.

Only the upper triangle is computed. With --safety-points N the partial matrix
is saved N times along the way to <name>_safety.mtx.zst.

spec2vec scores use the vectors of the spec2vec index when it exists and no
--model is given; otherwise spectra are embedded with the model.

Examples:
  gnps matrix --score cosine --out cosine.mtx.zst --safety-points 10
  gnps matrix --score spec2vec --out s2v.mtx.zst
  gnps matrix --score modcosine --file queries.mgf --out queries.mtx.zst
  gnps matrix neighbors cosine.mtx.zst CCMSLIB00000001547`,
	Args: cobra.NoArgs,
	RunE: runMatrix,
}

// MatrixResult is the response for the matrix command.
type MatrixResult struct {
	Status          string   `json:"status"`
	Score           string   `json:"score"`
	Spectra         int      `json:"spectra"`
	Pairs           int      `json:"pairs"`
	Skipped         []string `json:"skipped,omitempty"` // spectra without a spec2vec vector
	Path            string   `json:"path"`
	DurationSeconds float64  `json:"duration_seconds"`
}

// matrixSpectra returns the spectra to score: a processed input file or the library.
func matrixSpectra(repoRoot string) []*spectrum.Spectrum {
	var spectra []*spectrum.Spectrum
	if matrixFile != "" {
		parsed, _ := readSpectraFile(matrixFile, matrixFormat)
		spectra, _ = processSpectra(parsed, matrixRaw)
	} else {
		spectra = mustReadSpectra(repoRoot)
	}
	if !matrixAnnotatedOnly {
		return spectra
	}
	out := spectra[:0:0]
	for _, s := range spectra {
		if s.IsAnnotated() {
			out = append(out, s)
		}
	}
	return out
}

// spec2vecScorer prefers index vectors for library spectra and embeds otherwise.
func spec2vecScorer(ctx context.Context, repoRoot string, spectra []*spectrum.Spectrum) (similarity.Scorer, []string) {
	cfg := mustLoadConfig(repoRoot)
	if matrixModel == "" && matrixFile == "" && semantic.Exists(repoRoot) {
		idx := mustLoadSemanticIndex(repoRoot)
		var missing []string
		for _, s := range spectra {
			if !idx.HasSpectrum(s.ID) {
				missing = append(missing, s.ID)
			}
		}
		return matrix.NewVectorScorer(idx.Embeddings), missing
	}

	model := mustLoadModel(cfg, matrixModel)
	provider := embedding.NewSpec2Vec(model,
		embedding.WithIntensityWeightingPower(cfg.IntensityWeightingPower),
		embedding.WithAllowedMissingPercentage(cfg.AllowedMissingPercentage))
	scorer, skipped, err := matrix.EmbedSpectra(ctx, provider, spectra, cfg.NDecimals)
	if err != nil {
		exitWithError(ExitError, "embedding spectra: %v", err)
	}
	return scorer, skipped
}

func runMatrix(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	repoRoot := mustFindRepository()
	spectra := matrixSpectra(repoRoot)
	if len(spectra) == 0 {
		exitWithError(ExitDataError, "no spectra to compare")
	}

	tolerance := matrixTolerance
	if tolerance <= 0 {
		tolerance = mustLoadConfig(repoRoot).CosineTolerance
	}

	var (
		scorer  similarity.Scorer
		skipped []string
	)
	switch matrixScore {
	case similarity.NameCosine:
		scorer = similarity.NewCosineGreedy(tolerance)
	case similarity.NameModCosine:
		scorer = similarity.NewModifiedCosine(tolerance)
	case similarity.NameSpec2Vec:
		scorer, skipped = spec2vecScorer(ctx, repoRoot, spectra)
	default:
		exitWithError(ExitError, "unknown score %q (valid: cosine, modcosine, spec2vec)", matrixScore)
	}

	opts := matrix.Options{
		Workers:      matrixWorkers,
		Filename:     matrixOut,
		SafetyPoints: matrixSafetyPoints,
	}
	showProgress := humanOutput && !matrixNoProgress
	if showProgress {
		opts.Progress = matrix.ProgressFunc(printProgress)
		fmt.Fprintf(os.Stderr, "Computing %s matrix for %d spectra...\n", matrixScore, len(spectra))
	}

	start := time.Now()
	m, err := matrix.Compute(ctx, spectra, scorer, opts)
	if showProgress {
		clearProgress()
	}
	if err != nil {
		exitWithError(ExitError, "computing matrix: %v", err)
	}

	result := MatrixResult{
		Status:          "complete",
		Score:           m.Scorer,
		Spectra:         m.Size(),
		Pairs:           matrix.Total(m.Size()),
		Skipped:         skipped,
		Path:            matrixOut,
		DurationSeconds: time.Since(start).Seconds(),
	}
	if humanOutput {
		fmt.Printf("Computed %s matrix: %d spectra, %d pairs in %s\n",
			result.Score, result.Spectra, result.Pairs, formatDuration(time.Since(start)))
		if len(skipped) > 0 {
			fmt.Printf("  %d spectra without spec2vec vector (scored 0)\n", len(skipped))
		}
		fmt.Printf("  Saved to %s\n", matrixOut)
	} else {
		outputJSON(result)
	}
	return nil
}

var matrixNeighborsCmd = &cobra.Command{
	Use:   "neighbors <matrix-file> <spectrum-id>",
	Short: "Show the highest scoring neighbours of a spectrum in a saved matrix",
	Args:  cobra.ExactArgs(2),
	RunE:  runMatrixNeighbors,
}

// MatrixNeighborsResponse is the response for the matrix neighbors command.
type MatrixNeighborsResponse struct {
	ID        string            `json:"id"`
	Score     string            `json:"score"`
	Complete  bool              `json:"complete"`
	Neighbors []matrix.Neighbor `json:"neighbors"`
}

func runMatrixNeighbors(cmd *cobra.Command, args []string) error {
	m, err := matrix.Load(args[0])
	if err != nil {
		exitWithError(ExitDataError, "loading matrix: %v", err)
	}
	i := m.Index(args[1])
	if i < 0 {
		exitWithError(ExitError, "spectrum '%s' not in matrix", args[1])
	}

	resp := MatrixNeighborsResponse{
		ID:        args[1],
		Score:     m.Scorer,
		Complete:  m.Complete,
		Neighbors: m.Neighbors(i, matrixNeighborLimit),
	}
	if humanOutput {
		if !m.Complete {
			fmt.Println("Warning: matrix is a checkpoint of an unfinished computation")
		}
		for k, nb := range resp.Neighbors {
			fmt.Printf("%2d. [%.3f] %-24s %d matched peaks\n", k+1, nb.Score, nb.ID, nb.Matches)
		}
	} else {
		outputJSON(resp)
	}
	return nil
}
