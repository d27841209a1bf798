package semantic

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/iomega/spec2vec-gnps/internal/document"
	"github.com/iomega/spec2vec-gnps/internal/embedding"
	"github.com/iomega/spec2vec-gnps/internal/spectrum"
	"github.com/iomega/spec2vec-gnps/internal/storage"
)

// ProgressReporter receives progress updates during index building.
type ProgressReporter interface {
	// OnProgress is called with the current progress.
	OnProgress(current, total int)
}

// ProgressFunc is a function adapter for ProgressReporter.
type ProgressFunc func(current, total int)

// OnProgress implements ProgressReporter.
func (f ProgressFunc) OnProgress(current, total int) {
	f(current, total)
}

// Builder constructs a spec2vec index from repository spectra.
type Builder struct {
	provider embedding.Provider
	db       *storage.DB
	progress ProgressReporter
	decimals int
	power    float64
	workers  int
	pending  []storage.EmbeddingMetadata
}

// NewBuilder creates a new index builder. db may be nil.
func NewBuilder(provider embedding.Provider, db *storage.DB, decimals int) *Builder {
	return &Builder{
		provider: provider,
		db:       db,
		decimals: decimals,
		workers:  runtime.GOMAXPROCS(0),
	}
}

// SetProgressReporter sets the progress reporter for the builder.
func (b *Builder) SetProgressReporter(reporter ProgressReporter) {
	b.progress = reporter
}

// SetWorkers bounds the number of spectra embedded concurrently.
func (b *Builder) SetWorkers(n int) {
	if n > 0 {
		b.workers = n
	}
}

// SetIntensityWeightingPower records the weighting exponent in built indexes.
func (b *Builder) SetIntensityWeightingPower(power float64) {
	b.power = power
}

type built struct {
	id  string
	vec []float32
	err error
}

// Build embeds every spectrum. Spectra the model does not cover are skipped
// and counted; any other error aborts the build. The database is not touched;
// peak hashes are written by Save.
func (b *Builder) Build(ctx context.Context, spectra []*spectrum.Spectrum) (*SemanticIndex, *BuildStats, error) {
	startTime := time.Now()

	idx := NewSemanticIndex(b.provider.ModelName(), b.provider.Dimensions())
	idx.NDecimals = b.decimals
	idx.IntensityWeightingPower = b.power
	stats := &BuildStats{SkippedReason: "model_coverage"}

	total := len(spectra)
	out := make([]built, total)
	var mu sync.Mutex
	processed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, s := range spectra {
		g.Go(func() error {
			doc := document.New(s, b.decimals)
			emb, err := b.provider.Embed(gctx, doc)
			switch {
			case errors.Is(err, embedding.ErrModelCoverage):
				out[i] = built{id: s.ID, err: err}
			case err != nil:
				return fmt.Errorf("embedding spectrum %s: %w", s.ID, err)
			default:
				out[i] = built{id: s.ID, vec: emb.Vector}
			}

			if b.progress != nil {
				mu.Lock()
				processed++
				b.progress.OnProgress(processed, total)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	now := time.Now().Unix()
	pending := make([]storage.EmbeddingMetadata, 0, total)
	for i, r := range out {
		if r.err != nil {
			log.Debug().Err(r.err).Msg("Skipping spectrum")
			stats.SpectraSkipped++
			stats.SkippedIDs = append(stats.SkippedIDs, r.id)
			continue
		}
		if err := idx.AddEmbedding(r.id, r.vec); err != nil {
			return nil, nil, fmt.Errorf("adding embedding for %s: %w", r.id, err)
		}
		stats.SpectraIndexed++
		pending = append(pending, storage.EmbeddingMetadata{
			SpectrumID: r.id,
			ModelName:  b.provider.ModelName(),
			IndexedAt:  now,
			PeaksHash:  HashPeaks(spectra[i]),
		})
	}
	b.pending = pending

	idx.SkippedCount = stats.SpectraSkipped
	idx.BuildDurationMs = time.Since(startTime).Milliseconds()
	stats.Duration = time.Since(startTime)

	log.Info().Int("indexed", stats.SpectraIndexed).Int("skipped", stats.SpectraSkipped).
		Dur("took", stats.Duration).Msg("Built spec2vec index")
	return idx, stats, nil
}

// Save writes idx to repoRoot and then replaces the stored peak hashes with
// those of the last Build. Metadata is left unchanged when the index write fails.
func (b *Builder) Save(repoRoot string, idx *SemanticIndex) error {
	if err := idx.Save(repoRoot); err != nil {
		return err
	}
	if b.db == nil {
		return nil
	}
	if err := b.db.ReplaceEmbeddingMetadata(b.pending); err != nil {
		return fmt.Errorf("saving embedding metadata: %w", err)
	}
	b.pending = nil
	return nil
}

// HashPeaks computes a SHA256 over everything that feeds a spectrum's document:
// peaks, losses and precursor m/z.
func HashPeaks(s *spectrum.Spectrum) string {
	h := sha256.New()
	buf := make([]byte, 0, 64)
	write := func(prefix byte, peaks []spectrum.Peak) {
		for _, p := range peaks {
			buf = append(buf[:0], prefix)
			buf = strconv.AppendFloat(buf, p.MZ, 'g', -1, 64)
			buf = append(buf, ':')
			buf = strconv.AppendFloat(buf, p.Intensity, 'g', -1, 64)
			buf = append(buf, ';')
			h.Write(buf)
		}
	}
	write('p', s.Peaks)
	write('l', s.Losses)
	h.Write(strconv.AppendFloat(buf[:0], s.Metadata.PrecursorMZ, 'g', -1, 64))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// CheckStaleness compares the index with the current spectra using the stored
// peak hashes.
func CheckStaleness(idx *SemanticIndex, spectra []*spectrum.Spectrum, db *storage.DB) (StaleReport, error) {
	var report StaleReport
	present := make(map[string]bool, len(spectra))
	for _, s := range spectra {
		present[s.ID] = true
		if !idx.HasSpectrum(s.ID) {
			report.Missing = append(report.Missing, s.ID)
			continue
		}
		if db == nil {
			continue
		}
		meta, err := db.GetEmbeddingMetadata(s.ID)
		if err != nil {
			return StaleReport{}, fmt.Errorf("reading metadata for %s: %w", s.ID, err)
		}
		if meta == nil || meta.PeaksHash != HashPeaks(s) {
			report.Changed = append(report.Changed, s.ID)
		}
	}
	for id := range idx.Embeddings {
		if !present[id] {
			report.Orphaned = append(report.Orphaned, id)
		}
	}
	sort.Strings(report.Orphaned)
	return report, nil
}
