package storage

import (
	"path/filepath"
	"testing"

	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

// setupTestDB creates a test database rebuilt from a JSONL file with test data.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	tmpDir := t.TempDir()
	jsonlPath := filepath.Join(tmpDir, "spectra.jsonl")

	annotated := testSpectrum(t, "CCMSLIB003", 180.0634, "Glucose")
	annotated.Metadata.Smiles = "OCC1OC(O)C(O)C(O)C1O"
	annotated.Metadata.InChIKey = "WQZGKKKJIJFFOK-GASJEMHNSA-N"

	spectra := []*spectrum.Spectrum{
		testSpectrum(t, "CCMSLIB001", 181.07, "Caffeine"),
		testSpectrum(t, "CCMSLIB002", 195.0877, "caffeine_M+H"),
		annotated,
		testSpectrum(t, "CCMSLIB004", 0, "100%_unknown"),
	}
	if err := WriteAll(jsonlPath, spectra); err != nil {
		t.Fatalf("Failed to write test JSONL: %v", err)
	}

	db, err := OpenDB(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	count, err := db.RebuildFromJSONL(jsonlPath)
	if err != nil {
		t.Fatalf("Failed to rebuild DB: %v", err)
	}
	if count != 4 {
		t.Fatalf("RebuildFromJSONL() = %d, want 4", count)
	}
	return db
}

func TestDB_GetByID(t *testing.T) {
	db := setupTestDB(t)

	s, err := db.GetByID("CCMSLIB003")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if s == nil {
		t.Fatal("GetByID() returned nil")
	}
	if s.Metadata.CompoundName != "Glucose" || len(s.Peaks) != 2 || s.Peaks[0].MZ != 100 {
		t.Errorf("GetByID() = %+v", s)
	}

	missing, err := db.GetByID("nope")
	if err != nil || missing != nil {
		t.Errorf("GetByID(nope) = %v, %v; want nil, nil", missing, err)
	}
}

func TestDB_ListAndCount(t *testing.T) {
	db := setupTestDB(t)

	all, err := db.ListAll(0)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(all) != 4 || all[0].ID != "CCMSLIB001" {
		t.Errorf("ListAll() returned %d spectra", len(all))
	}

	limited, _ := db.ListAll(2)
	if len(limited) != 2 {
		t.Errorf("ListAll(2) returned %d", len(limited))
	}

	if n, _ := db.Count(); n != 4 {
		t.Errorf("Count() = %d, want 4", n)
	}
	if n, _ := db.CountAnnotated(); n != 1 {
		t.Errorf("CountAnnotated() = %d, want 1", n)
	}
}

func TestDB_SearchByName(t *testing.T) {
	db := setupTestDB(t)

	tests := []struct {
		query string
		want  int
	}{
		{"caffeine", 2},
		{"CAFF", 2},
		{"glucose", 1},
		{"100%", 1},
		{"_", 2}, // literal underscore, not a wildcard
		{"", 0},
		{"xyz", 0},
	}
	for _, tt := range tests {
		got, err := db.SearchByName(tt.query, 10)
		if err != nil {
			t.Fatalf("SearchByName(%q) error = %v", tt.query, err)
		}
		if len(got) != tt.want {
			t.Errorf("SearchByName(%q) returned %d, want %d", tt.query, len(got), tt.want)
		}
	}
}

func TestDB_ByPrecursorRange(t *testing.T) {
	db := setupTestDB(t)

	got, err := db.ByPrecursorRange(180, 182)
	if err != nil {
		t.Fatalf("ByPrecursorRange() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "CCMSLIB003" || got[1].ID != "CCMSLIB001" {
		t.Errorf("ByPrecursorRange() = %d spectra", len(got))
	}

	// Spectra without precursor never match.
	none, _ := db.ByPrecursorRange(-1, 1)
	if len(none) != 0 {
		t.Errorf("ByPrecursorRange(-1, 1) returned %d", len(none))
	}
}

func TestDB_ByInChIKeyBlock(t *testing.T) {
	db := setupTestDB(t)

	got, err := db.ByInChIKeyBlock("WQZGKKKJIJFFOK")
	if err != nil {
		t.Fatalf("ByInChIKeyBlock() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "CCMSLIB003" {
		t.Errorf("ByInChIKeyBlock() returned %d", len(got))
	}
}

func TestDB_RebuildReplacesContent(t *testing.T) {
	db := setupTestDB(t)

	path := filepath.Join(t.TempDir(), "other.jsonl")
	WriteAll(path, []*spectrum.Spectrum{testSpectrum(t, "X", 1, "x")})
	if _, err := db.RebuildFromJSONL(path); err != nil {
		t.Fatalf("RebuildFromJSONL() error = %v", err)
	}
	if n, _ := db.Count(); n != 1 {
		t.Errorf("Count() after rebuild = %d, want 1", n)
	}
}

func TestDB_EmbeddingMetadata(t *testing.T) {
	db := setupTestDB(t)

	meta := EmbeddingMetadata{SpectrumID: "CCMSLIB001", ModelName: "m.bin", IndexedAt: 100, PeaksHash: "abc"}
	if err := db.SaveEmbeddingMetadata(meta); err != nil {
		t.Fatalf("SaveEmbeddingMetadata() error = %v", err)
	}
	meta.PeaksHash = "def"
	db.SaveEmbeddingMetadata(meta)

	got, err := db.GetEmbeddingMetadata("CCMSLIB001")
	if err != nil || got == nil {
		t.Fatalf("GetEmbeddingMetadata() = %v, %v", got, err)
	}
	if got.PeaksHash != "def" {
		t.Errorf("PeaksHash = %q, want def", got.PeaksHash)
	}
	if n, _ := db.CountEmbeddingMetadata(); n != 1 {
		t.Errorf("CountEmbeddingMetadata() = %d, want 1", n)
	}

}

func TestDB_ReplaceEmbeddingMetadata(t *testing.T) {
	db := setupTestDB(t)
	db.SaveEmbeddingMetadata(EmbeddingMetadata{SpectrumID: "old", ModelName: "m.bin", PeaksHash: "x"})

	metas := []EmbeddingMetadata{
		{SpectrumID: "a", ModelName: "n.bin", IndexedAt: 1, PeaksHash: "ha"},
		{SpectrumID: "b", ModelName: "n.bin", IndexedAt: 1, PeaksHash: "hb"},
	}
	if err := db.ReplaceEmbeddingMetadata(metas); err != nil {
		t.Fatalf("ReplaceEmbeddingMetadata() error = %v", err)
	}
	if got, _ := db.GetEmbeddingMetadata("old"); got != nil {
		t.Error("previous metadata should be replaced")
	}
	if got, _ := db.GetEmbeddingMetadata("b"); got == nil || got.PeaksHash != "hb" {
		t.Errorf("GetEmbeddingMetadata(b) = %+v", got)
	}
	if n, _ := db.CountEmbeddingMetadata(); n != 2 {
		t.Errorf("CountEmbeddingMetadata() = %d, want 2", n)
	}

	if err := db.ReplaceEmbeddingMetadata(nil); err != nil {
		t.Fatalf("ReplaceEmbeddingMetadata(nil) error = %v", err)
	}
	if n, _ := db.CountEmbeddingMetadata(); n != 0 {
		t.Errorf("CountEmbeddingMetadata() after empty replace = %d, want 0", n)
	}
}
