// Package similarity implements peak-based spectral similarity scores.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

// Names used to select scores on the command line and in configuration.
const (
	NameCosine      = "cosine"
	NameModCosine   = "modcosine"
	NamePrecursorMZ = "precursor_mz"
	NameSpec2Vec    = "spec2vec"
)

// ErrMissingPrecursor is returned by scores that need a precursor m/z.
var ErrMissingPrecursor = errors.New("precursor m/z required")

// Score is a similarity value with the number of matched peaks that produced it.
type Score struct {
	Value   float64 `json:"score"`
	Matches int     `json:"matches"`
}

// Scorer computes the similarity between two spectra.
type Scorer interface {
	Pair(a, b *spectrum.Spectrum) (Score, error)
	Name() string
}

// Matrix scores every reference against every query. Rows are references.
func Matrix(ctx context.Context, refs, queries []*spectrum.Spectrum, scorer Scorer) ([][]Score, error) {
	out := make([][]Score, len(refs))
	for i, r := range refs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		out[i] = make([]Score, len(queries))
		for j, q := range queries {
			s, err := scorer.Pair(r, q)
			if err != nil {
				return nil, fmt.Errorf("%s(%s, %s): %w", scorer.Name(), r.ID, q.ID, err)
			}
			out[i][j] = s
		}
	}
	return out, nil
}

// peakPair is a candidate match between peak I of the first spectrum and J of the second.
type peakPair struct {
	I, J  int
	Score float64
}

// FindMatches returns every (i, j) with |mz1[i] - (mz2[j] + shift)| <= tolerance.
// Both slices must be sorted ascending.
func FindMatches(mz1, mz2 []float64, tolerance, shift float64) [][2]int {
	var matches [][2]int
	lowest := 0
	for i, mz := range mz1 {
		low := mz - tolerance
		high := mz + tolerance
		for j := lowest; j < len(mz2); j++ {
			shifted := mz2[j] + shift
			if shifted > high {
				break
			}
			if shifted < low {
				lowest = j
			} else {
				matches = append(matches, [2]int{i, j})
			}
		}
	}
	return matches
}

// peakProducts returns mz^mzPower * intensity^intensityPower for each peak.
func peakProducts(peaks []spectrum.Peak, mzPower, intensityPower float64) []float64 {
	out := make([]float64, len(peaks))
	for i, p := range peaks {
		out[i] = math.Pow(p.MZ, mzPower) * math.Pow(p.Intensity, intensityPower)
	}
	return out
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// greedyScore accepts candidate pairs from highest to lowest product, never
// reusing a peak, and normalises the summed products.
func greedyScore(a, b *spectrum.Spectrum, matches [][2]int, mzPower, intensityPower float64) Score {
	if len(matches) == 0 {
		return Score{}
	}

	prodA := peakProducts(a.Peaks, mzPower, intensityPower)
	prodB := peakProducts(b.Peaks, mzPower, intensityPower)
	denom := norm(prodA) * norm(prodB)
	if denom == 0 {
		return Score{}
	}

	pairs := make([]peakPair, 0, len(matches))
	seen := make(map[[2]int]bool, len(matches))
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		pairs = append(pairs, peakPair{I: m[0], J: m[1], Score: prodA[m[0]] * prodB[m[1]]})
	}
	// Ascending stable sort then reverse: equal products are taken last-found first.
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Score < pairs[j].Score
	})
	slices.Reverse(pairs)

	usedA := make(map[int]bool)
	usedB := make(map[int]bool)
	var total float64
	var count int
	for _, p := range pairs {
		if usedA[p.I] || usedB[p.J] {
			continue
		}
		usedA[p.I] = true
		usedB[p.J] = true
		total += p.Score
		count++
	}

	return Score{Value: total / denom, Matches: count}
}
