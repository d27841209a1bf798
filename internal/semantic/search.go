package semantic

import (
	"sort"

	"github.com/iomega/spec2vec-gnps/internal/embedding"
)

func sortResults(results []SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].SpectrumID < results[j].SpectrumID
	})
}

// Search finds spectra similar to a query embedding.
// Results are sorted by similarity (highest first) and filtered by threshold.
func (idx *SemanticIndex) Search(query []float32, limit int, threshold float64) []SearchResult {
	if idx.Embeddings == nil || len(query) != idx.Dimensions {
		return nil
	}

	results := make([]SearchResult, 0, len(idx.Embeddings))
	for id, emb := range idx.Embeddings {
		sim := embedding.CosineSimilarity(query, emb)
		if sim >= threshold {
			results = append(results, SearchResult{SpectrumID: id, Similarity: sim})
		}
	}

	sortResults(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// FindSimilar finds spectra similar to an indexed spectrum.
// The source spectrum is excluded from results.
func (idx *SemanticIndex) FindSimilar(spectrumID string, limit int) ([]SearchResult, error) {
	source, err := idx.Vector(spectrumID)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(idx.Embeddings))
	for id, emb := range idx.Embeddings {
		if id == spectrumID {
			continue
		}
		results = append(results, SearchResult{
			SpectrumID: id,
			Similarity: embedding.CosineSimilarity(source, emb),
		})
	}

	sortResults(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// TopN returns the n most similar entries among candidateIDs. Candidates that
// are not indexed are ignored.
func (idx *SemanticIndex) TopN(query []float32, candidateIDs []string, n int) []SearchResult {
	results := make([]SearchResult, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		emb, ok := idx.Embeddings[id]
		if !ok {
			continue
		}
		results = append(results, SearchResult{SpectrumID: id, Similarity: embedding.CosineSimilarity(query, emb)})
	}
	sortResults(results)
	if n > 0 && len(results) > n {
		results = results[:n]
	}
	return results
}

// HasSpectrum checks if a spectrum is in the index.
func (idx *SemanticIndex) HasSpectrum(spectrumID string) bool {
	_, exists := idx.Embeddings[spectrumID]
	return exists
}
