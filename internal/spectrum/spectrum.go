// Package spectrum defines MS/MS spectra and the filters applied to them before scoring.
package spectrum

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ProtonMass is the mass of a proton in Dalton.
const ProtonMass = 1.00727646677

// Errors returned by spectrum construction and metadata access.
var (
	ErrLengthMismatch     = errors.New("m/z and intensity arrays differ in length")
	ErrNegativeIntensity  = errors.New("negative peak intensity")
	ErrMissingPrecursorMZ = errors.New("spectrum has no precursor m/z")
	ErrUnknownKey         = errors.New("unknown metadata key")
)

// Peak is a single fragment peak.
type Peak struct {
	MZ        float64 `json:"mz"`
	Intensity float64 `json:"intensity"`
}

// Metadata holds the annotation fields used by matching and lookup.
// Anything not covered by a typed field goes to Extra.
type Metadata struct {
	PrecursorMZ  float64           `json:"precursor_mz,omitempty"`
	ParentMass   float64           `json:"parent_mass,omitempty"`
	Charge       int               `json:"charge,omitempty"`
	IonMode      string            `json:"ionmode,omitempty"`
	CompoundName string            `json:"compound_name,omitempty"`
	Smiles       string            `json:"smiles,omitempty"`
	InChI        string            `json:"inchi,omitempty"`
	InChIKey     string            `json:"inchikey,omitempty"`
	Formula      string            `json:"formula,omitempty"`
	Library      string            `json:"library,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Spectrum is a centroided MS/MS spectrum. Peaks are kept sorted by m/z.
type Spectrum struct {
	ID       string   `json:"id"`
	Peaks    []Peak   `json:"peaks"`
	Losses   []Peak   `json:"losses,omitempty"`
	Metadata Metadata `json:"metadata"`
}

// New builds a spectrum from parallel m/z and intensity arrays.
func New(id string, mz, intensities []float64, meta Metadata) (*Spectrum, error) {
	if len(mz) != len(intensities) {
		return nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(mz), len(intensities))
	}

	peaks := make([]Peak, len(mz))
	for i := range mz {
		if intensities[i] < 0 {
			return nil, fmt.Errorf("%w at m/z %.4f", ErrNegativeIntensity, mz[i])
		}
		peaks[i] = Peak{MZ: mz[i], Intensity: intensities[i]}
	}
	sortPeaks(peaks)

	return &Spectrum{ID: id, Peaks: peaks, Metadata: meta}, nil
}

func sortPeaks(peaks []Peak) {
	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].MZ < peaks[j].MZ
	})
}

// Sort restores m/z ordering after peaks were set directly (e.g. after decoding).
func (s *Spectrum) Sort() {
	sortPeaks(s.Peaks)
	sortPeaks(s.Losses)
}

// Clone returns a deep copy.
func (s *Spectrum) Clone() *Spectrum {
	if s == nil {
		return nil
	}
	c := &Spectrum{
		ID:       s.ID,
		Peaks:    append([]Peak(nil), s.Peaks...),
		Metadata: s.Metadata,
	}
	if s.Losses != nil {
		c.Losses = append([]Peak(nil), s.Losses...)
	}
	if s.Metadata.Extra != nil {
		c.Metadata.Extra = make(map[string]string, len(s.Metadata.Extra))
		for k, v := range s.Metadata.Extra {
			c.Metadata.Extra[k] = v
		}
	}
	return c
}

// MZ returns the peak m/z values.
func (s *Spectrum) MZ() []float64 {
	out := make([]float64, len(s.Peaks))
	for i, p := range s.Peaks {
		out[i] = p.MZ
	}
	return out
}

// Intensities returns the peak intensities.
func (s *Spectrum) Intensities() []float64 {
	out := make([]float64, len(s.Peaks))
	for i, p := range s.Peaks {
		out[i] = p.Intensity
	}
	return out
}

// PrecursorMZ returns the precursor m/z or ErrMissingPrecursorMZ.
func (s *Spectrum) PrecursorMZ() (float64, error) {
	if s.Metadata.PrecursorMZ <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrMissingPrecursorMZ, s.ID)
	}
	return s.Metadata.PrecursorMZ, nil
}

// IsAnnotated reports whether the spectrum carries a structure (SMILES).
func (s *Spectrum) IsAnnotated() bool {
	return strings.TrimSpace(s.Metadata.Smiles) != ""
}

// Get returns a metadata value by its key name.
func (s *Spectrum) Get(key string) string {
	m := &s.Metadata
	switch normalizeKey(key) {
	case "precursor_mz":
		return formatFloat(m.PrecursorMZ)
	case "parent_mass":
		return formatFloat(m.ParentMass)
	case "charge":
		if m.Charge == 0 {
			return ""
		}
		return strconv.Itoa(m.Charge)
	case "ionmode":
		return m.IonMode
	case "compound_name":
		return m.CompoundName
	case "smiles":
		return m.Smiles
	case "inchi":
		return m.InChI
	case "inchikey":
		return m.InChIKey
	case "formula":
		return m.Formula
	case "library":
		return m.Library
	default:
		return m.Extra[key]
	}
}

// Set assigns a metadata value by key name. Unknown keys are stored in Extra.
func (s *Spectrum) Set(key, value string) error {
	m := &s.Metadata
	switch normalizeKey(key) {
	case "precursor_mz":
		v, err := parseFloat(value)
		if err != nil {
			return fmt.Errorf("precursor_mz: %w", err)
		}
		m.PrecursorMZ = v
	case "parent_mass":
		v, err := parseFloat(value)
		if err != nil {
			return fmt.Errorf("parent_mass: %w", err)
		}
		m.ParentMass = v
	case "charge":
		v, err := ParseCharge(value)
		if err != nil {
			return err
		}
		m.Charge = v
	case "ionmode":
		m.IonMode = strings.ToLower(value)
	case "compound_name":
		m.CompoundName = value
	case "smiles":
		m.Smiles = value
	case "inchi":
		m.InChI = value
	case "inchikey":
		m.InChIKey = value
	case "formula":
		m.Formula = value
	case "library":
		m.Library = value
	default:
		if key == "" {
			return ErrUnknownKey
		}
		if m.Extra == nil {
			m.Extra = make(map[string]string)
		}
		m.Extra[key] = value
	}
	return nil
}

// normalizeKey maps common spellings (Precursor_MZ, precursor-mz, pepmass) onto field names.
func normalizeKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.ReplaceAll(k, "-", "_")
	switch k {
	case "pepmass", "precursormz":
		return "precursor_mz"
	case "ion_mode":
		return "ionmode"
	case "name", "compoundname":
		return "compound_name"
	case "inchi_key":
		return "inchikey"
	}
	return k
}

// ParseCharge parses charges written as "1", "+1", "1+", "2-".
func ParseCharge(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	sign := 1
	switch {
	case strings.HasSuffix(s, "-"):
		sign = -1
		s = strings.TrimSuffix(s, "-")
	case strings.HasSuffix(s, "+"):
		s = strings.TrimSuffix(s, "+")
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid charge %q", s)
	}
	return sign * v, nil
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatFloat(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var inchikeyPattern = regexp.MustCompile(`^[A-Z]{14}-[A-Z]{10}-[A-Z]$`)

// IsValidInChIKey reports whether s looks like a standard InChIKey.
func IsValidInChIKey(s string) bool {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	return inchikeyPattern.MatchString(s)
}

// InChIKeyFirstBlock returns the 14-character connectivity block of an InChIKey.
func InChIKeyFirstBlock(s string) string {
	s = strings.ToUpper(strings.Trim(strings.TrimSpace(s), `"`))
	if len(s) < 14 {
		return s
	}
	return s[:14]
}
