package similarity

import (
	"fmt"
	"math"
	"strings"

	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

// ToleranceType selects absolute or relative mass tolerance.
type ToleranceType string

const (
	Dalton ToleranceType = "Dalton"
	PPM    ToleranceType = "ppm"
)

// ParseToleranceType accepts "Dalton"/"Da" and "ppm" in any case.
func ParseToleranceType(s string) (ToleranceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dalton", "da":
		return Dalton, nil
	case "ppm":
		return PPM, nil
	}
	return "", fmt.Errorf("invalid mass tolerance type %q (valid: Dalton, ppm)", s)
}

// PrecursorMZMatch scores 1 when two precursor m/z values agree within tolerance.
type PrecursorMZMatch struct {
	Tolerance float64
	Type      ToleranceType
}

// Name implements Scorer.
func (p PrecursorMZMatch) Name() string { return NamePrecursorMZ }

// Pair implements Scorer.
func (p PrecursorMZMatch) Pair(a, b *spectrum.Spectrum) (Score, error) {
	pa, err := a.PrecursorMZ()
	if err != nil {
		return Score{}, fmt.Errorf("%w: %v", ErrMissingPrecursor, err)
	}
	pb, err := b.PrecursorMZ()
	if err != nil {
		return Score{}, fmt.Errorf("%w: %v", ErrMissingPrecursor, err)
	}
	if p.Within(pa, pb) {
		return Score{Value: 1}, nil
	}
	return Score{}, nil
}

// Within reports whether two masses agree within the tolerance.
func (p PrecursorMZMatch) Within(a, b float64) bool {
	diff := math.Abs(a - b)
	if p.Type == PPM {
		mean := (a + b) / 2
		if mean == 0 {
			return diff == 0
		}
		return diff/mean*1e6 <= p.Tolerance
	}
	return diff <= p.Tolerance
}

// Window returns the inclusive mass range around m that can match under this tolerance.
// For ppm the bound is solved from |m - x| / ((m + x) / 2) * 1e6 <= tol.
func (p PrecursorMZMatch) Window(m float64) (lo, hi float64) {
	if p.Type == PPM {
		r := p.Tolerance / 1e6 / 2
		return m * (1 - r) / (1 + r), m * (1 + r) / (1 - r)
	}
	return m - p.Tolerance, m + p.Tolerance
}
