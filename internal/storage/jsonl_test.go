package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

func testSpectrum(t *testing.T, id string, precursor float64, name string) *spectrum.Spectrum {
	t.Helper()
	s, err := spectrum.New(id, []float64{150, 100}, []float64{0.5, 1}, spectrum.Metadata{
		PrecursorMZ:  precursor,
		CompoundName: name,
	})
	if err != nil {
		t.Fatalf("spectrum.New() error = %v", err)
	}
	return s
}

func TestReadAll_NonExistentFile(t *testing.T) {
	spectra, err := ReadAll("/nonexistent/path/spectra.jsonl")
	if err != nil {
		t.Fatalf("ReadAll() error = %v (should return nil for nonexistent file)", err)
	}
	if len(spectra) != 0 {
		t.Errorf("ReadAll() returned %d spectra, want 0", len(spectra))
	}
}

func TestReadAll_SingleSpectrum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spectra.jsonl")
	content := `{"id":"CCMSLIB1","peaks":[[200,0.1],[100,1]],"metadata":{"precursor_mz":301.5,"smiles":"CCO"}}`
	if err := os.WriteFile(path, []byte(content+"\n\n"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	spectra, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(spectra) != 1 {
		t.Fatalf("ReadAll() returned %d spectra, want 1", len(spectra))
	}
	s := spectra[0]
	if s.ID != "CCMSLIB1" || s.Metadata.PrecursorMZ != 301.5 || s.Metadata.Smiles != "CCO" {
		t.Errorf("ReadAll() = %+v", s)
	}
	if s.Peaks[0].MZ != 100 {
		t.Errorf("peaks not sorted: %v", s.Peaks)
	}
}

func TestReadAll_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"id": "x", "peaks": [`},
		{"missing id", `{"peaks": [[100, 1]]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "spectra.jsonl")
			os.WriteFile(path, []byte(tt.content+"\n"), 0644)
			if _, err := ReadAll(path); err == nil {
				t.Error("ReadAll() expected error")
			}
		})
	}
}

func TestWriteAllAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spectra.jsonl")

	if err := WriteAll(path, []*spectrum.Spectrum{testSpectrum(t, "a", 100, "Alpha")}); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	if err := Append(path, testSpectrum(t, "b", 200, "Beta"), testSpectrum(t, "c", 300, "Gamma")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	spectra, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(spectra) != 3 {
		t.Fatalf("got %d spectra, want 3", len(spectra))
	}
	if idx, found := FindByID(spectra, "c"); !found || idx != 2 {
		t.Errorf("FindByID(c) = %d, %v", idx, found)
	}
	if _, found := FindByID(spectra, "zzz"); found {
		t.Error("FindByID(zzz) should not be found")
	}

	// Overwrite
	if err := WriteAll(path, spectra[:1]); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	spectra, _ = ReadAll(path)
	if len(spectra) != 1 || spectra[0].ID != "a" {
		t.Errorf("after overwrite got %d spectra", len(spectra))
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestMergeImport(t *testing.T) {
	existing := []*spectrum.Spectrum{
		testSpectrum(t, "a", 100, "Alpha"),
		testSpectrum(t, "b", 200, "Beta"),
	}
	imported := []*spectrum.Spectrum{
		testSpectrum(t, "b", 201, "Beta v2"),
		testSpectrum(t, "c", 300, "Gamma"),
		testSpectrum(t, "c", 301, "Gamma v2"),
	}

	t.Run("skip existing", func(t *testing.T) {
		actions := MergeImport(existing, imported, false)
		if len(actions) != 2 {
			t.Fatalf("got %d actions, want 2", len(actions))
		}
		if actions[0].Action != ActionSkip || actions[0].ExistingIdx != 1 {
			t.Errorf("actions[0] = %s/%d, want skip/1", actions[0].Action, actions[0].ExistingIdx)
		}
		if actions[1].Action != ActionNew || actions[1].Spectrum.Metadata.PrecursorMZ != 301 {
			t.Errorf("actions[1] = %s, want new with last duplicate", actions[1].Action)
		}

		merged := ApplyImport(existing, actions)
		if len(merged) != 3 || merged[1].Metadata.CompoundName != "Beta" {
			t.Errorf("ApplyImport() = %d spectra, b name %q", len(merged), merged[1].Metadata.CompoundName)
		}
	})

	t.Run("update existing", func(t *testing.T) {
		actions := MergeImport(existing, imported, true)
		if actions[0].Action != ActionUpdate {
			t.Errorf("actions[0].Action = %s, want update", actions[0].Action)
		}
		merged := ApplyImport(existing, actions)
		if merged[1].Metadata.CompoundName != "Beta v2" {
			t.Errorf("updated name = %q, want Beta v2", merged[1].Metadata.CompoundName)
		}
		if existing[1].Metadata.CompoundName != "Beta" {
			t.Error("ApplyImport() modified the input slice")
		}
	})
}

func TestAppend_NewSpectraMatchesRewrite(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		imported []string
		wantIDs  []string
	}{
		{"into missing file", nil, []string{"a", "b"}, []string{"a", "b"}},
		{"after existing", []string{"a"}, []string{"b", "c"}, []string{"a", "b", "c"}},
		{"duplicates skipped", []string{"a", "b"}, []string{"b", "c", "c"}, []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "spectra.jsonl")
			var existing []*spectrum.Spectrum
			for i, id := range tt.existing {
				existing = append(existing, testSpectrum(t, id, float64(100+i), id))
			}
			if len(existing) > 0 {
				if err := WriteAll(path, existing); err != nil {
					t.Fatalf("WriteAll() error = %v", err)
				}
			}
			var imported []*spectrum.Spectrum
			for i, id := range tt.imported {
				imported = append(imported, testSpectrum(t, id, float64(200+i), id))
			}

			all := ApplyImport(existing, MergeImport(existing, imported, false))
			if err := Append(path, all[len(existing):]...); err != nil {
				t.Fatalf("Append() error = %v", err)
			}

			got, err := ReadAll(path)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d spectra, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("spectrum %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}
