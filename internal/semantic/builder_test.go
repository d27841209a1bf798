package semantic

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/iomega/spec2vec-gnps/internal/document"
	"github.com/iomega/spec2vec-gnps/internal/embedding"
	"github.com/iomega/spec2vec-gnps/internal/spectrum"
	"github.com/iomega/spec2vec-gnps/internal/storage"
	"github.com/iomega/spec2vec-gnps/internal/word2vec"
)

func builderSpectra(t *testing.T) []*spectrum.Spectrum {
	t.Helper()
	mk := func(id string, mz ...float64) *spectrum.Spectrum {
		ints := make([]float64, len(mz))
		for i := range ints {
			ints[i] = 1
		}
		s, err := spectrum.New(id, mz, ints, spectrum.Metadata{PrecursorMZ: 300})
		if err != nil {
			t.Fatalf("spectrum.New() error = %v", err)
		}
		return s
	}
	return []*spectrum.Spectrum{
		mk("s1", 100),
		mk("s2", 150),
		mk("s3", 100, 999), // half of its weight is unknown to the model
	}
}

func builderProvider() *embedding.Spec2Vec {
	m := word2vec.NewModel("test.bin", 2)
	m.Add("peak@100.00", []float32{1, 0})
	m.Add("peak@150.00", []float32{0, 1})
	return embedding.NewSpec2Vec(m)
}

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBuilder_Build(t *testing.T) {
	db := openTestDB(t)
	spectra := builderSpectra(t)

	b := NewBuilder(builderProvider(), db, document.DefaultDecimals)
	b.SetWorkers(2)
	b.SetIntensityWeightingPower(0.5)
	var calls atomic.Int32
	var last atomic.Int32
	b.SetProgressReporter(ProgressFunc(func(current, total int) {
		calls.Add(1)
		last.Store(int32(current))
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
	}))

	idx, stats, err := b.Build(context.Background(), spectra)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if stats.SpectraIndexed != 2 || stats.SpectraSkipped != 1 || stats.SkippedIDs[0] != "s3" {
		t.Errorf("stats = %+v", stats)
	}
	if idx.SpectrumCount != 2 || idx.SkippedCount != 1 || idx.ModelName != "test.bin" || idx.NDecimals != 2 {
		t.Errorf("index = %+v", idx)
	}
	if v := idx.Embeddings["s2"]; v[0] != 0 || v[1] != 1 {
		t.Errorf("s2 embedding = %v", v)
	}
	if calls.Load() != 3 || last.Load() != 3 {
		t.Errorf("progress calls = %d, last = %d", calls.Load(), last.Load())
	}

	if n, _ := db.CountEmbeddingMetadata(); n != 0 {
		t.Errorf("CountEmbeddingMetadata() before Save = %d, want 0", n)
	}
	if err := b.Save(t.TempDir(), idx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	meta, err := db.GetEmbeddingMetadata("s1")
	if err != nil || meta == nil {
		t.Fatalf("GetEmbeddingMetadata() = %v, %v", meta, err)
	}
	if meta.PeaksHash != HashPeaks(spectra[0]) || meta.ModelName != "test.bin" {
		t.Errorf("metadata = %+v", meta)
	}
	if n, _ := db.CountEmbeddingMetadata(); n != 2 {
		t.Errorf("CountEmbeddingMetadata() = %d, want 2", n)
	}
}

type failingProvider struct{ *embedding.Spec2Vec }

func (failingProvider) Embed(context.Context, *document.SpectrumDocument) (embedding.Embedding, error) {
	return embedding.Embedding{}, errors.New("boom")
}

func TestBuilder_BuildError(t *testing.T) {
	b := NewBuilder(failingProvider{builderProvider()}, nil, 2)
	if _, _, err := b.Build(context.Background(), builderSpectra(t)); err == nil {
		t.Error("Build() expected error")
	}
}

func TestBuilder_KeepsMetadataOnFailure(t *testing.T) {
	prior := storage.EmbeddingMetadata{SpectrumID: "s1", ModelName: "old.bin", IndexedAt: 1, PeaksHash: "prior"}

	tests := []struct {
		name string
		run  func(t *testing.T, db *storage.DB)
	}{
		{
			name: "embedding error",
			run: func(t *testing.T, db *storage.DB) {
				b := NewBuilder(failingProvider{builderProvider()}, db, 2)
				if _, _, err := b.Build(context.Background(), builderSpectra(t)); err == nil {
					t.Error("Build() expected error")
				}
			},
		},
		{
			name: "cancelled",
			run: func(t *testing.T, db *storage.DB) {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				b := NewBuilder(builderProvider(), db, 2)
				if _, _, err := b.Build(ctx, builderSpectra(t)); !errors.Is(err, context.Canceled) {
					t.Errorf("Build() error = %v, want context.Canceled", err)
				}
			},
		},
		{
			name: "index write fails",
			run: func(t *testing.T, db *storage.DB) {
				b := NewBuilder(builderProvider(), db, 2)
				idx, _, err := b.Build(context.Background(), builderSpectra(t))
				if err != nil {
					t.Fatalf("Build() error = %v", err)
				}
				root := filepath.Join(t.TempDir(), "root")
				if err := os.WriteFile(root, []byte("not a directory"), 0o644); err != nil {
					t.Fatal(err)
				}
				if err := b.Save(root, idx); err == nil {
					t.Error("Save() expected error")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTestDB(t)
			if err := db.SaveEmbeddingMetadata(prior); err != nil {
				t.Fatalf("SaveEmbeddingMetadata() error = %v", err)
			}
			tt.run(t, db)

			got, err := db.GetEmbeddingMetadata("s1")
			if err != nil || got == nil || got.PeaksHash != "prior" {
				t.Errorf("metadata after failure = %+v, %v", got, err)
			}
			if n, _ := db.CountEmbeddingMetadata(); n != 1 {
				t.Errorf("CountEmbeddingMetadata() = %d, want 1", n)
			}
		})
	}
}

func TestHashPeaks(t *testing.T) {
	spectra := builderSpectra(t)
	a, b := spectra[0], spectra[0].Clone()
	if HashPeaks(a) != HashPeaks(b) {
		t.Error("HashPeaks() differs for identical spectra")
	}
	b.Peaks[0].Intensity = 0.5
	if HashPeaks(a) == HashPeaks(b) {
		t.Error("HashPeaks() should change with intensities")
	}
	c := spectra[0].Clone()
	c.Metadata.PrecursorMZ = 301
	if HashPeaks(a) == HashPeaks(c) {
		t.Error("HashPeaks() should change with precursor m/z")
	}
}

func TestCheckStaleness(t *testing.T) {
	db := openTestDB(t)
	spectra := builderSpectra(t)[:2]

	b := NewBuilder(builderProvider(), db, 2)
	idx, _, err := b.Build(context.Background(), spectra)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if err := b.Save(t.TempDir(), idx); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	idx.AddEmbedding("gone", []float32{1, 1})

	changed := spectra[1].Clone()
	changed.Peaks[0].Intensity = 0.1
	current := []*spectrum.Spectrum{spectra[0], changed, builderSpectra(t)[2]}

	report, err := CheckStaleness(idx, current, db)
	if err != nil {
		t.Fatalf("CheckStaleness() error = %v", err)
	}
	if len(report.Missing) != 1 || report.Missing[0] != "s3" {
		t.Errorf("Missing = %v", report.Missing)
	}
	if len(report.Changed) != 1 || report.Changed[0] != "s2" {
		t.Errorf("Changed = %v", report.Changed)
	}
	if len(report.Orphaned) != 1 || report.Orphaned[0] != "gone" {
		t.Errorf("Orphaned = %v", report.Orphaned)
	}
	if !report.IsStale() {
		t.Error("IsStale() = false")
	}
}
