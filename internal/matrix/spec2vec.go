package matrix

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/iomega/spec2vec-gnps/internal/document"
	"github.com/iomega/spec2vec-gnps/internal/embedding"
	"github.com/iomega/spec2vec-gnps/internal/similarity"
	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

// VectorScorer scores spectrum pairs by the cosine of precomputed vectors,
// looked up by spectrum id. Spectra without a vector score 0.
type VectorScorer struct {
	vectors map[string][]float32
}

// NewVectorScorer wraps existing vectors, e.g. those of a spec2vec index.
func NewVectorScorer(vectors map[string][]float32) *VectorScorer {
	return &VectorScorer{vectors: vectors}
}

// EmbedSpectra embeds each spectrum once with provider. Spectra the model does
// not sufficiently cover are left out and returned as skipped.
func EmbedSpectra(ctx context.Context, provider embedding.Provider, spectra []*spectrum.Spectrum, decimals int) (*VectorScorer, []string, error) {
	vectors := make(map[string][]float32, len(spectra))
	var skipped []string
	for _, s := range spectra {
		emb, err := provider.Embed(ctx, document.New(s, decimals))
		if errors.Is(err, embedding.ErrModelCoverage) {
			log.Debug().Err(err).Msg("Spectrum not embedded")
			skipped = append(skipped, s.ID)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("embedding spectrum %s: %w", s.ID, err)
		}
		vectors[s.ID] = emb.Vector
	}
	return NewVectorScorer(vectors), skipped, nil
}

// Name implements similarity.Scorer.
func (v *VectorScorer) Name() string { return similarity.NameSpec2Vec }

// Pair implements similarity.Scorer.
func (v *VectorScorer) Pair(a, b *spectrum.Spectrum) (similarity.Score, error) {
	va, okA := v.vectors[a.ID]
	vb, okB := v.vectors[b.ID]
	if !okA || !okB {
		return similarity.Score{}, nil
	}
	return similarity.Score{Value: embedding.CosineSimilarity(va, vb)}, nil
}
