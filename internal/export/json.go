package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

// GNPSRecord mirrors the fields of a GNPS library JSON entry. Values are
// written as strings the way GNPS exports them.
type GNPSRecord struct {
	SpectrumID    string `json:"spectrum_id"`
	PeaksJSON     string `json:"peaks_json"`
	PrecursorMZ   string `json:"Precursor_MZ,omitempty"`
	ExactMass     string `json:"ExactMass,omitempty"`
	Charge        string `json:"Charge,omitempty"`
	IonMode       string `json:"Ion_Mode,omitempty"`
	CompoundName  string `json:"Compound_Name,omitempty"`
	Smiles        string `json:"Smiles,omitempty"`
	InChI         string `json:"INCHI,omitempty"`
	InChIKey      string `json:"InChIKey,omitempty"`
	Formula       string `json:"Formula,omitempty"`
	Library       string `json:"library_membership,omitempty"`
	Adduct        string `json:"Adduct,omitempty"`
	Instrument    string `json:"Instrument,omitempty"`
	PI            string `json:"PI,omitempty"`
	DataCollector string `json:"Data_Collector,omitempty"`
	PubmedID      string `json:"Pubmed_ID,omitempty"`
}

// ToGNPSRecord converts a spectrum to a GNPS library record.
func ToGNPSRecord(s *spectrum.Spectrum) (GNPSRecord, error) {
	peaks := make([][2]float64, len(s.Peaks))
	for i, p := range s.Peaks {
		peaks[i] = [2]float64{p.MZ, p.Intensity}
	}
	peaksJSON, err := json.Marshal(peaks)
	if err != nil {
		return GNPSRecord{}, fmt.Errorf("encoding peaks of %s: %w", s.ID, err)
	}

	m := s.Metadata
	rec := GNPSRecord{
		SpectrumID:    s.ID,
		PeaksJSON:     string(peaksJSON),
		IonMode:       m.IonMode,
		CompoundName:  m.CompoundName,
		Smiles:        m.Smiles,
		InChI:         m.InChI,
		InChIKey:      m.InChIKey,
		Formula:       m.Formula,
		Library:       m.Library,
		ExactMass:     m.Extra["exact_mass"],
		Adduct:        m.Extra["adduct"],
		Instrument:    m.Extra["instrument"],
		PI:            m.Extra["pi"],
		DataCollector: m.Extra["data_collector"],
		PubmedID:      m.Extra["pubmed_id"],
	}
	if m.PrecursorMZ > 0 {
		rec.PrecursorMZ = formatFloat(m.PrecursorMZ)
	}
	if m.Charge != 0 {
		rec.Charge = strconv.Itoa(m.Charge)
	}
	return rec, nil
}

// WriteJSON writes spectra as an indented GNPS library JSON array.
func WriteJSON(w io.Writer, spectra []*spectrum.Spectrum) error {
	records := make([]GNPSRecord, 0, len(spectra))
	for _, s := range spectra {
		rec, err := ToGNPSRecord(s)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
