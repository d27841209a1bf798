package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

// GNPSEntry represents a single spectrum from a GNPS library JSON export.
type GNPSEntry struct {
	SpectrumID     FlexibleString  `json:"spectrum_id"`
	SpectrumIDAlt  FlexibleString  `json:"SpectrumID"`
	PeaksJSON      json.RawMessage `json:"peaks_json"`
	PrecursorMZ    FlexibleString  `json:"Precursor_MZ"`
	ExactMass      FlexibleString  `json:"ExactMass"`
	Charge         FlexibleString  `json:"Charge"`
	IonMode        FlexibleString  `json:"Ion_Mode"`
	CompoundName   FlexibleString  `json:"Compound_Name"`
	Smiles         FlexibleString  `json:"Smiles"`
	InChI          FlexibleString  `json:"INCHI"`
	InChIKey       FlexibleString  `json:"InChIKey"`
	InChIKeySmiles FlexibleString  `json:"InChIKey_smiles"`
	InChIKeyInChI  FlexibleString  `json:"InChIKey_inchi"`
	Formula        FlexibleString  `json:"Formula"`
	Library        FlexibleString  `json:"library_membership"`
	Adduct         FlexibleString  `json:"Adduct"`
	Instrument     FlexibleString  `json:"Instrument"`
	PI             FlexibleString  `json:"PI"`
	DataCollector  FlexibleString  `json:"Data_Collector"`
	PubmedID       FlexibleString  `json:"Pubmed_ID"`
}

// ErrNoPeaks is returned for entries without any peaks.
var ErrNoPeaks = errors.New("no peaks")

// ParseGNPSJSON streams a GNPS library JSON array. Entries that fail to
// convert are reported in the error slice and skipped. A malformed document
// stops parsing and is reported as the last error.
func ParseGNPSJSON(r io.Reader) ([]*spectrum.Spectrum, []error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, []error{fmt.Errorf("parsing GNPS JSON: %w", err)}
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, []error{fmt.Errorf("parsing GNPS JSON: expected array, got %v", tok)}
	}

	var spectra []*spectrum.Spectrum
	var errs []error
	for i := 1; dec.More(); i++ {
		var entry GNPSEntry
		if err := dec.Decode(&entry); err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
			return spectra, errs
		}
		s, err := gnpsEntryToSpectrum(entry, i)
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d (%s): %w", i, entry.id(), err))
			continue
		}
		spectra = append(spectra, s)
	}

	return spectra, errs
}

func (e GNPSEntry) id() string {
	if id := e.SpectrumID.String(); id != "" {
		return id
	}
	return e.SpectrumIDAlt.String()
}

// parsePeaks accepts peaks_json both as a JSON-encoded string and as a raw array.
func parsePeaks(raw json.RawMessage) ([]spectrum.Peak, error) {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrNoPeaks
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		raw = json.RawMessage(s)
	}
	var peaks []spectrum.Peak
	if err := json.Unmarshal(raw, &peaks); err != nil {
		return nil, fmt.Errorf("parsing peaks_json: %w", err)
	}
	if len(peaks) == 0 {
		return nil, ErrNoPeaks
	}
	return peaks, nil
}

// gnpsEntryToSpectrum converts a GNPS entry to a Spectrum.
func gnpsEntryToSpectrum(entry GNPSEntry, n int) (*spectrum.Spectrum, error) {
	peaks, err := parsePeaks(entry.PeaksJSON)
	if err != nil {
		return nil, err
	}
	for _, p := range peaks {
		if p.Intensity < 0 {
			return nil, fmt.Errorf("%w at m/z %.4f", spectrum.ErrNegativeIntensity, p.MZ)
		}
	}

	id := entry.id()
	if id == "" {
		id = fmt.Sprintf("gnps-%d", n)
	}

	s := &spectrum.Spectrum{ID: id, Peaks: peaks}
	s.Sort()

	set := func(key, value string) error {
		if value == "" {
			return nil
		}
		return s.Set(key, value)
	}
	inchikey := entry.InChIKey.String()
	if inchikey == "" {
		inchikey = entry.InChIKeySmiles.String()
	}
	if inchikey == "" {
		inchikey = entry.InChIKeyInChI.String()
	}

	fields := []struct{ key, value string }{
		{"precursor_mz", entry.PrecursorMZ.String()},
		{"charge", entry.Charge.String()},
		{"ionmode", entry.IonMode.String()},
		{"compound_name", entry.CompoundName.String()},
		{"smiles", entry.Smiles.String()},
		{"inchi", strings.Trim(entry.InChI.String(), `"`)},
		{"inchikey", inchikey},
		{"formula", entry.Formula.String()},
		{"library", entry.Library.String()},
		{"exact_mass", entry.ExactMass.String()},
		{"adduct", entry.Adduct.String()},
		{"instrument", entry.Instrument.String()},
		{"pi", entry.PI.String()},
		{"data_collector", entry.DataCollector.String()},
		{"pubmed_id", entry.PubmedID.String()},
	}
	for _, f := range fields {
		if err := set(f.key, f.value); err != nil {
			if f.key == "charge" {
				continue // GNPS charges are often free text
			}
			return nil, err
		}
	}
	return s, nil
}
