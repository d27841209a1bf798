package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/iomega/spec2vec-gnps/internal/importer"
	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

func testSpectrum(t *testing.T) *spectrum.Spectrum {
	t.Helper()
	s, err := spectrum.New("CCMSLIB001", []float64{138.06, 110.07}, []float64{100, 12.5}, spectrum.Metadata{
		PrecursorMZ:  195.0877,
		Charge:       1,
		IonMode:      "positive",
		CompoundName: "Caffeine",
		Smiles:       "CN1C=NC2=C1C(=O)N(C(=O)N2C)C",
		InChIKey:     "RYYVLZVUVIJVGH-UHFFFAOYSA-N",
		Extra:        map[string]string{"adduct": "M+H", "title": "scan\n1"},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestToMGF(t *testing.T) {
	got := ToMGF(testSpectrum(t))

	for _, want := range []string{
		"BEGIN IONS\n",
		"SPECTRUMID=CCMSLIB001\n",
		"PEPMASS=195.0877\n",
		"CHARGE=1+\n",
		"NAME=Caffeine\n",
		"ADDUCT=M+H\n",
		"TITLE=scan 1\n",
		"110.07 12.5\n138.06 100\n",
		"END IONS\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("ToMGF() missing %q in:\n%s", want, got)
		}
	}
	if strings.Contains(got, "FORMULA=") {
		t.Error("ToMGF() should omit empty fields")
	}
}

func TestFormatCharge(t *testing.T) {
	tests := []struct {
		charge int
		want   string
	}{
		{1, "1+"},
		{2, "2+"},
		{-1, "1-"},
	}
	for _, tt := range tests {
		if got := formatCharge(tt.charge); got != tt.want {
			t.Errorf("formatCharge(%d) = %q, want %q", tt.charge, got, tt.want)
		}
	}
}

func TestWriteMGF_RoundTrip(t *testing.T) {
	orig := testSpectrum(t)
	other, _ := spectrum.New("CCMSLIB002", []float64{80}, []float64{5}, spectrum.Metadata{Charge: -2})

	var buf bytes.Buffer
	if err := WriteMGF(&buf, []*spectrum.Spectrum{orig, other}); err != nil {
		t.Fatalf("WriteMGF() error = %v", err)
	}

	got, errs := importer.ParseMGF(&buf)
	if len(errs) > 0 {
		t.Fatalf("ParseMGF() errors = %v", errs)
	}
	if len(got) != 2 {
		t.Fatalf("ParseMGF() returned %d spectra, want 2", len(got))
	}

	s := got[0]
	if s.ID != orig.ID || s.Metadata.PrecursorMZ != orig.Metadata.PrecursorMZ {
		t.Errorf("got %s @ %v, want %s @ %v", s.ID, s.Metadata.PrecursorMZ, orig.ID, orig.Metadata.PrecursorMZ)
	}
	if s.Metadata.Smiles != orig.Metadata.Smiles || s.Metadata.InChIKey != orig.Metadata.InChIKey {
		t.Errorf("structure fields changed: %+v", s.Metadata)
	}
	if s.Metadata.Charge != 1 || got[1].Metadata.Charge != -2 {
		t.Errorf("charges = %d, %d; want 1, -2", s.Metadata.Charge, got[1].Metadata.Charge)
	}
	if s.Metadata.Extra["adduct"] != "M+H" {
		t.Errorf("Extra = %v", s.Metadata.Extra)
	}
	if len(s.Peaks) != 2 || s.Peaks[1] != orig.Peaks[1] {
		t.Errorf("Peaks = %v, want %v", s.Peaks, orig.Peaks)
	}
}

func TestWriteJSON_RoundTrip(t *testing.T) {
	orig := testSpectrum(t)

	var buf bytes.Buffer
	if err := WriteJSON(&buf, []*spectrum.Spectrum{orig}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	var raw []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("output is not a JSON array: %v", err)
	}
	if raw[0]["Precursor_MZ"] != "195.0877" || raw[0]["Adduct"] != "M+H" {
		t.Errorf("record = %v", raw[0])
	}
	if _, ok := raw[0]["Formula"]; ok {
		t.Error("empty Formula should be omitted")
	}

	got, errs := importer.ParseGNPSJSON(bytes.NewReader(buf.Bytes()))
	if len(errs) > 0 {
		t.Fatalf("ParseGNPSJSON() errors = %v", errs)
	}
	s := got[0]
	if s.ID != orig.ID || s.Metadata.Charge != 1 || s.Metadata.CompoundName != "Caffeine" {
		t.Errorf("got %+v", s)
	}
	if len(s.Peaks) != 2 || s.Peaks[0] != orig.Peaks[0] {
		t.Errorf("Peaks = %v, want %v", s.Peaks, orig.Peaks)
	}
}

func TestWriteJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, nil); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("WriteJSON(nil) = %q, want []", buf.String())
	}
}
