package library

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/iomega/spec2vec-gnps/internal/document"
	"github.com/iomega/spec2vec-gnps/internal/similarity"
	"github.com/iomega/spec2vec-gnps/internal/word2vec"
)

// Presearch entries.
const (
	PresearchPrecursorMZ    = "precursor_mz"
	PresearchSpec2VecPrefix = "spec2vec-top"
)

// ErrNoPresearch is returned when neither a mass nor a spec2vec presearch is requested.
var ErrNoPresearch = errors.New("presearch must include 'precursor_mz' and/or 'spec2vec-topN'")

// ErrModelRequired is returned when spec2vec is requested without a model.
var ErrModelRequired = errors.New("spec2vec scoring requires a word2vec model")

// Options controls candidate selection and scoring.
type Options struct {
	Presearch                []string
	IncludeScores            []string
	IgnoreNonAnnotated       bool
	IntensityWeightingPower  float64
	AllowedMissingPercentage float64
	CosineTolerance          float64
	MassTolerance            float64
	MassToleranceType        similarity.ToleranceType
	Decimals                 int
	Model                    *word2vec.Model

	// Workers bounds the number of queries scored concurrently. Zero means GOMAXPROCS.
	Workers int
}

// DefaultOptions returns the standard library matching settings.
func DefaultOptions() Options {
	return Options{
		Presearch:                []string{PresearchPrecursorMZ, "spec2vec-top10"},
		IncludeScores:            []string{similarity.NameSpec2Vec, similarity.NameCosine, similarity.NameModCosine},
		IgnoreNonAnnotated:       true,
		IntensityWeightingPower:  0.5,
		AllowedMissingPercentage: 0,
		CosineTolerance:          0.005,
		MassTolerance:            2.0,
		MassToleranceType:        similarity.PPM,
		Decimals:                 document.DefaultDecimals,
	}
}

// presearch is the parsed form of Options.Presearch.
type presearch struct {
	precursor bool
	topN      int // 0 when spec2vec presearch is off
}

// ParsePresearch validates presearch entries and returns whether a mass
// presearch runs and the spec2vec top N (0 if none).
func ParsePresearch(entries []string) (precursor bool, topN int, err error) {
	for _, e := range entries {
		e = strings.TrimSpace(e)
		switch {
		case e == PresearchPrecursorMZ:
			precursor = true
		case strings.HasPrefix(e, PresearchSpec2VecPrefix):
			n, convErr := strconv.Atoi(strings.TrimPrefix(e, PresearchSpec2VecPrefix))
			if convErr != nil || n <= 0 {
				return false, 0, fmt.Errorf("invalid presearch %q: top N must be a positive integer", e)
			}
			if topN == 0 {
				topN = n
			}
		default:
			return false, 0, fmt.Errorf("unknown presearch %q", e)
		}
	}
	if !precursor && topN == 0 {
		return false, 0, ErrNoPresearch
	}
	return precursor, topN, nil
}

// ValidateScoreNames checks include_scores entries.
func ValidateScoreNames(names []string) error {
	for _, n := range names {
		switch n {
		case similarity.NameSpec2Vec, similarity.NameCosine, similarity.NameModCosine:
		default:
			return fmt.Errorf("unknown score %q (valid: spec2vec, cosine, modcosine)", n)
		}
	}
	return nil
}

func (o Options) includes(name string) bool {
	for _, n := range o.IncludeScores {
		if n == name {
			return true
		}
	}
	return false
}

func (o Options) parse() (presearch, error) {
	precursor, topN, err := ParsePresearch(o.Presearch)
	if err != nil {
		return presearch{}, err
	}
	if err := ValidateScoreNames(o.IncludeScores); err != nil {
		return presearch{}, err
	}
	if (topN > 0 || o.includes(similarity.NameSpec2Vec)) && o.Model == nil {
		return presearch{}, ErrModelRequired
	}
	return presearch{precursor: precursor, topN: topN}, nil
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}
