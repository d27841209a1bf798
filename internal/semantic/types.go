// Package semantic provides spec2vec similarity search over a repository's spectra.
package semantic

import "time"

// SemanticIndex holds spec2vec embeddings for all indexed spectra.
type SemanticIndex struct {
	// Version is the format version for compatibility checking.
	// Check against CurrentIndexVersion when loading.
	Version int `json:"version"`

	// Metadata about the index
	ModelName               string    `json:"model_name"`                // word2vec model file name
	Dimensions              int       `json:"dimensions"`                // model vector size
	NDecimals               int       `json:"n_decimals"`                // peak word precision used to build
	IntensityWeightingPower float64   `json:"intensity_weighting_power"` // weight exponent used to build
	CreatedAt               time.Time `json:"created_at"`
	SpectrumCount           int       `json:"spectrum_count"`
	SkippedCount            int       `json:"skipped_count"` // spectra not covered by the model
	BuildDurationMs         int64     `json:"build_duration_ms"`

	// Embeddings map spectrum IDs to their spec2vec vectors
	Embeddings map[string][]float32 `json:"-"` // Not included in JSON output
}

// SearchResult represents a spectrum found by spec2vec search.
type SearchResult struct {
	SpectrumID string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

// BuildStats contains statistics from index building.
type BuildStats struct {
	SpectraIndexed int           `json:"spectra_indexed"`
	SpectraSkipped int           `json:"spectra_skipped"`
	SkippedReason  string        `json:"skipped_reason"`
	SkippedIDs     []string      `json:"skipped_ids,omitempty"`
	Duration       time.Duration `json:"duration"`
	IndexSizeBytes int64         `json:"index_size_bytes"`
}

// StaleReport lists spectra whose index entries no longer match the repository.
type StaleReport struct {
	Missing  []string `json:"missing"`  // in repository, not indexed
	Changed  []string `json:"changed"`  // peaks changed since indexing
	Orphaned []string `json:"orphaned"` // indexed, no longer in repository
}

// IsStale reports whether any entry needs rebuilding.
func (r StaleReport) IsStale() bool {
	return len(r.Changed) > 0 || len(r.Orphaned) > 0
}
