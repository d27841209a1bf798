package similarity

import (
	"fmt"

	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

// DefaultTolerance is the default peak m/z tolerance for the cosine scores.
const DefaultTolerance = 0.1

// CosineGreedy is the cosine score with greedy peak assignment.
type CosineGreedy struct {
	Tolerance      float64
	MZPower        float64
	IntensityPower float64
}

// NewCosineGreedy returns a CosineGreedy with the given tolerance and default powers.
func NewCosineGreedy(tolerance float64) CosineGreedy {
	return CosineGreedy{Tolerance: tolerance, MZPower: 0, IntensityPower: 1}
}

// Name implements Scorer.
func (c CosineGreedy) Name() string { return NameCosine }

// Pair implements Scorer.
func (c CosineGreedy) Pair(a, b *spectrum.Spectrum) (Score, error) {
	matches := FindMatches(a.MZ(), b.MZ(), c.Tolerance, 0)
	return greedyScore(a, b, matches, c.MZPower, c.IntensityPower), nil
}

// ModifiedCosine also matches peaks shifted by the precursor m/z difference.
type ModifiedCosine struct {
	Tolerance      float64
	MZPower        float64
	IntensityPower float64
}

// NewModifiedCosine returns a ModifiedCosine with the given tolerance and default powers.
func NewModifiedCosine(tolerance float64) ModifiedCosine {
	return ModifiedCosine{Tolerance: tolerance, MZPower: 0, IntensityPower: 1}
}

// Name implements Scorer.
func (c ModifiedCosine) Name() string { return NameModCosine }

// Pair implements Scorer.
func (c ModifiedCosine) Pair(a, b *spectrum.Spectrum) (Score, error) {
	pa, err := a.PrecursorMZ()
	if err != nil {
		return Score{}, fmt.Errorf("%w: %v", ErrMissingPrecursor, err)
	}
	pb, err := b.PrecursorMZ()
	if err != nil {
		return Score{}, fmt.Errorf("%w: %v", ErrMissingPrecursor, err)
	}

	mzA, mzB := a.MZ(), b.MZ()
	matches := FindMatches(mzA, mzB, c.Tolerance, 0)
	matches = append(matches, FindMatches(mzA, mzB, c.Tolerance, pa-pb)...)
	return greedyScore(a, b, matches, c.MZPower, c.IntensityPower), nil
}
