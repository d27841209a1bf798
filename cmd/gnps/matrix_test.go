package main

import (
	"os"
	"path/filepath"
	"testing"
)

const matrixTestMGF = `BEGIN IONS
PEPMASS=195.0877
SPECTRUMID=CCMSLIB001
SMILES=CN1C=NC2=C1C(=O)N(C(=O)N2C)C
138.06 100
110.07 20
END IONS

BEGIN IONS
PEPMASS=181.07
SPECTRUMID=CCMSLIB002
80.0 5
90.0 10
END IONS
`

func TestMatrixSpectra_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.mgf")
	if err := os.WriteFile(path, []byte(matrixTestMGF), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name          string
		raw           bool
		annotatedOnly bool
		want          int
	}{
		{"filtered", false, false, 0}, // too few peaks for the default filters
		{"raw", true, false, 2},
		{"raw annotated only", true, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matrixFile, matrixFormat = path, ""
			matrixRaw, matrixAnnotatedOnly = tt.raw, tt.annotatedOnly
			t.Cleanup(func() {
				matrixFile, matrixRaw, matrixAnnotatedOnly = "", false, false
			})

			got := matrixSpectra(t.TempDir())
			if len(got) != tt.want {
				t.Errorf("matrixSpectra() returned %d spectra, want %d", len(got), tt.want)
			}
		})
	}
}
