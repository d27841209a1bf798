package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/iomega/spec2vec-gnps/internal/document"
	"github.com/iomega/spec2vec-gnps/internal/word2vec"
)

const (
	// DefaultIntensityWeightingPower is the exponent applied to peak intensities.
	DefaultIntensityWeightingPower = 0.5

	// DefaultAllowedMissingPercentage is the share of intensity-weighted words
	// that may be absent from the model vocabulary.
	DefaultAllowedMissingPercentage = 0.0
)

// ErrModelCoverage is returned when too much of a document is unknown to the model.
var ErrModelCoverage = errors.New("document not sufficiently covered by model")

// Spec2Vec embeds spectrum documents as the intensity-weighted sum of their
// word vectors.
type Spec2Vec struct {
	model                    *word2vec.Model
	intensityWeightingPower  float64
	allowedMissingPercentage float64
}

// Spec2VecOption configures a Spec2Vec provider.
type Spec2VecOption func(*Spec2Vec)

// WithIntensityWeightingPower sets the exponent applied to word weights.
func WithIntensityWeightingPower(power float64) Spec2VecOption {
	return func(s *Spec2Vec) {
		s.intensityWeightingPower = power
	}
}

// WithAllowedMissingPercentage sets the tolerated uncovered weight share (0-100).
func WithAllowedMissingPercentage(pct float64) Spec2VecOption {
	return func(s *Spec2Vec) {
		s.allowedMissingPercentage = pct
	}
}

// NewSpec2Vec creates a Spec2Vec provider backed by a Word2Vec model.
func NewSpec2Vec(model *word2vec.Model, opts ...Spec2VecOption) *Spec2Vec {
	s := &Spec2Vec{
		model:                    model,
		intensityWeightingPower:  DefaultIntensityWeightingPower,
		allowedMissingPercentage: DefaultAllowedMissingPercentage,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ModelName returns the name of the underlying Word2Vec model.
func (s *Spec2Vec) ModelName() string {
	return s.model.Name
}

// Dimensions returns the model vector size.
func (s *Spec2Vec) Dimensions() int {
	return s.model.VectorSize
}

// MissingPercentage returns the weighted share (0-100) of document words not in the model.
func (s *Spec2Vec) MissingPercentage(doc *document.SpectrumDocument) float64 {
	var total, missing float64
	for i, w := range doc.Words {
		total += doc.Weights[i]
		if !s.model.Has(w) {
			missing += doc.Weights[i]
		}
	}
	if total == 0 {
		if len(doc.Words) == 0 {
			return 0
		}
		return 100
	}
	return 100 * missing / total
}

// Embed implements Provider.
func (s *Spec2Vec) Embed(ctx context.Context, doc *document.SpectrumDocument) (Embedding, error) {
	if err := ctx.Err(); err != nil {
		return Embedding{}, err
	}

	if missing := s.MissingPercentage(doc); missing > s.allowedMissingPercentage {
		return Embedding{}, fmt.Errorf("%w: %s has %.2f%% missing (allowed %.2f%%)",
			ErrModelCoverage, doc.ID, missing, s.allowedMissingPercentage)
	}

	sum := make([]float64, s.model.VectorSize)
	for i, w := range doc.Words {
		vec := s.model.Vector(w)
		if vec == nil {
			continue
		}
		weight := math.Pow(doc.Weights[i], s.intensityWeightingPower)
		for j, v := range vec {
			sum[j] += weight * float64(v)
		}
	}

	out := make([]float32, len(sum))
	for i, v := range sum {
		out[i] = float32(v)
	}
	return Embedding{Vector: out}, nil
}

// Pair returns the spec2vec similarity between two documents.
func (s *Spec2Vec) Pair(ctx context.Context, a, b *document.SpectrumDocument) (float64, error) {
	ea, err := s.Embed(ctx, a)
	if err != nil {
		return 0, err
	}
	eb, err := s.Embed(ctx, b)
	if err != nil {
		return 0, err
	}
	return CosineSimilarity(ea.Vector, eb.Vector), nil
}

// EmbedAll embeds every document, stopping at the first failure.
func (s *Spec2Vec) EmbedAll(ctx context.Context, docs []*document.SpectrumDocument) ([]Embedding, error) {
	out := make([]Embedding, len(docs))
	for i, d := range docs {
		e, err := s.Embed(ctx, d)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// Matrix returns spec2vec similarities with references as rows and queries as
// columns. Each document is embedded once.
func (s *Spec2Vec) Matrix(ctx context.Context, refs, queries []*document.SpectrumDocument) ([][]float64, error) {
	refVecs, err := s.EmbedAll(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("embedding references: %w", err)
	}
	queryVecs, err := s.EmbedAll(ctx, queries)
	if err != nil {
		return nil, fmt.Errorf("embedding queries: %w", err)
	}

	out := make([][]float64, len(refVecs))
	for i, r := range refVecs {
		out[i] = make([]float64, len(queryVecs))
		for j, q := range queryVecs {
			out[i][j] = CosineSimilarity(r.Vector, q.Vector)
		}
	}
	return out, nil
}
