// Package document turns spectra into weighted word lists for Word2Vec models.
package document

import (
	"fmt"
	"strconv"

	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

// DefaultDecimals is the m/z rounding used for peak and loss words.
const DefaultDecimals = 2

// Word prefixes.
const (
	PeakPrefix = "peak@"
	LossPrefix = "loss@"
)

// SpectrumDocument is a spectrum expressed as words ("peak@100.00") with
// intensity weights, in the same order.
type SpectrumDocument struct {
	ID      string
	Words   []string
	Weights []float64
}

// New builds a document from peaks followed by losses.
func New(s *spectrum.Spectrum, decimals int) *SpectrumDocument {
	if decimals < 0 {
		decimals = DefaultDecimals
	}
	doc := &SpectrumDocument{
		ID:      s.ID,
		Words:   make([]string, 0, len(s.Peaks)+len(s.Losses)),
		Weights: make([]float64, 0, len(s.Peaks)+len(s.Losses)),
	}
	for _, p := range s.Peaks {
		doc.Words = append(doc.Words, Word(PeakPrefix, p.MZ, decimals))
		doc.Weights = append(doc.Weights, p.Intensity)
	}
	for _, l := range s.Losses {
		doc.Words = append(doc.Words, Word(LossPrefix, l.MZ, decimals))
		doc.Weights = append(doc.Weights, l.Intensity)
	}
	return doc
}

// FromSpectra builds one document per spectrum.
func FromSpectra(spectra []*spectrum.Spectrum, decimals int) []*SpectrumDocument {
	docs := make([]*SpectrumDocument, len(spectra))
	for i, s := range spectra {
		docs[i] = New(s, decimals)
	}
	return docs
}

// Word formats a value as prefix + fixed-decimal number.
func Word(prefix string, mz float64, decimals int) string {
	return prefix + strconv.FormatFloat(mz, 'f', decimals, 64)
}

// Len returns the number of words.
func (d *SpectrumDocument) Len() int {
	return len(d.Words)
}

func (d *SpectrumDocument) String() string {
	return fmt.Sprintf("SpectrumDocument(%s, %d words)", d.ID, len(d.Words))
}
