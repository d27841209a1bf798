package library

import "github.com/iomega/spec2vec-gnps/internal/similarity"

// Candidate is a library spectrum selected for a query. Scores that were not
// calculated are nil and read as zero through the accessors.
type Candidate struct {
	QueryID      string            `json:"query_id"`
	LibraryIndex int               `json:"library_index"`
	LibraryID    string            `json:"library_id"`
	Cosine       *similarity.Score `json:"cosine,omitempty"`
	ModCosine    *similarity.Score `json:"mod_cosine,omitempty"`
	MassMatch    *bool             `json:"mass_match,omitempty"`
	Spec2Vec     *float64          `json:"s2v_score,omitempty"`
}

// Key identifies a candidate within a set of saved matches.
type Key struct {
	QueryID   string
	LibraryID string
}

// Key returns the candidate's identity.
func (c Candidate) Key() Key {
	return Key{QueryID: c.QueryID, LibraryID: c.LibraryID}
}

// CosineScore returns the cosine score, or 0.
func (c Candidate) CosineScore() similarity.Score {
	if c.Cosine == nil {
		return similarity.Score{}
	}
	return *c.Cosine
}

// ModCosineScore returns the modified cosine score, or 0.
func (c Candidate) ModCosineScore() similarity.Score {
	if c.ModCosine == nil {
		return similarity.Score{}
	}
	return *c.ModCosine
}

// Spec2VecScore returns the spec2vec score, or 0.
func (c Candidate) Spec2VecScore() float64 {
	if c.Spec2Vec == nil {
		return 0
	}
	return *c.Spec2Vec
}

// IsMassMatch reports whether the precursor masses matched.
func (c Candidate) IsMassMatch() bool {
	return c.MassMatch != nil && *c.MassMatch
}

// Score returns the named score and its matched peak count (0 for spec2vec).
func (c Candidate) Score(name string) (float64, int) {
	switch name {
	case similarity.NameCosine:
		s := c.CosineScore()
		return s.Value, s.Matches
	case similarity.NameModCosine:
		s := c.ModCosineScore()
		return s.Value, s.Matches
	case similarity.NameSpec2Vec:
		return c.Spec2VecScore(), 0
	}
	return 0, 0
}

// Result holds the candidates found for one query, ordered by library index.
type Result struct {
	QueryID    string      `json:"query_id"`
	Candidates []Candidate `json:"candidates"`
}
