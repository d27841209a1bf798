// Package evaluate measures how well library matching identifies query
// spectra, judged by agreement of the InChIKey connectivity block.
package evaluate

import (
	"errors"
	"fmt"

	"github.com/iomega/spec2vec-gnps/internal/library"
	"github.com/iomega/spec2vec-gnps/internal/similarity"
	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

// ErrUnknownScore is returned for criteria naming a score that candidates do not carry.
var ErrUnknownScore = errors.New("unknown score")

// Criterion decides which candidate, if any, is accepted as the hit for a query.
type Criterion struct {
	Score            string  `json:"score"`
	MinScore         float64 `json:"min_score"`
	MinMatches       int     `json:"min_matches,omitempty"`
	RequireMassMatch bool    `json:"require_mass_match,omitempty"`
}

// DefaultCriterion accepts the best spec2vec candidate scoring at least 0.6.
func DefaultCriterion() Criterion {
	return Criterion{Score: similarity.NameSpec2Vec, MinScore: 0.6}
}

// Validate checks that the criterion names a known score.
func (c Criterion) Validate() error {
	switch c.Score {
	case similarity.NameSpec2Vec, similarity.NameCosine, similarity.NameModCosine:
		return nil
	}
	return fmt.Errorf("%w: %q (want spec2vec, cosine or modcosine)", ErrUnknownScore, c.Score)
}

// Accepts reports whether a single candidate passes the criterion.
func (c Criterion) Accepts(cand library.Candidate) bool {
	score, matches := cand.Score(c.Score)
	if score < c.MinScore || matches < c.MinMatches {
		return false
	}
	return !c.RequireMassMatch || cand.IsMassMatch()
}

// SelectBest returns the highest-scoring candidate that passes the criterion.
// Ties keep the earlier candidate.
func SelectBest(candidates []library.Candidate, c Criterion) (library.Candidate, bool) {
	var best library.Candidate
	bestScore := 0.0
	found := false
	for _, cand := range candidates {
		if !c.Accepts(cand) {
			continue
		}
		score, _ := cand.Score(c.Score)
		if !found || score > bestScore {
			best, bestScore, found = cand, score, true
		}
	}
	return best, found
}

// Outcome statuses.
const (
	StatusTruePositive  = "true_positive"
	StatusFalsePositive = "false_positive"
	StatusNoHit         = "no_hit"
	StatusSkipped       = "skipped"
)

// Outcome is the evaluation of one query.
type Outcome struct {
	QueryID   string  `json:"query_id"`
	Status    string  `json:"status"`
	LibraryID string  `json:"library_id,omitempty"`
	Score     float64 `json:"score,omitempty"`
	Matches   int     `json:"matches,omitempty"`
}

// Report summarises an evaluation run.
type Report struct {
	Criterion      Criterion `json:"criterion"`
	Queries        int       `json:"queries"`
	Skipped        int       `json:"skipped"`
	TruePositives  int       `json:"true_positives"`
	FalsePositives int       `json:"false_positives"`
	NoHits         int       `json:"no_hits"`
	Precision      float64   `json:"precision"`
	Recall         float64   `json:"recall"`
	Outcomes       []Outcome `json:"outcomes,omitempty"`
}

// Evaluate selects a hit for every query and compares the first InChIKey
// block of query and hit. Queries without an InChIKey are skipped and do not
// count towards recall.
func Evaluate(queries, lib []*spectrum.Spectrum, results []library.Result, c Criterion) (*Report, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	libByID := make(map[string]*spectrum.Spectrum, len(lib))
	for _, s := range lib {
		libByID[s.ID] = s
	}
	byQuery := make(map[string][]library.Candidate, len(results))
	for _, r := range results {
		byQuery[r.QueryID] = append(byQuery[r.QueryID], r.Candidates...)
	}

	rep := &Report{Criterion: c}
	for _, q := range queries {
		out := Outcome{QueryID: q.ID}
		key := connectivity(q.Metadata.InChIKey)
		if key == "" {
			out.Status = StatusSkipped
			rep.Skipped++
			rep.Outcomes = append(rep.Outcomes, out)
			continue
		}
		rep.Queries++

		best, ok := SelectBest(byQuery[q.ID], c)
		if !ok {
			out.Status = StatusNoHit
			rep.NoHits++
			rep.Outcomes = append(rep.Outcomes, out)
			continue
		}
		out.LibraryID = best.LibraryID
		out.Score, out.Matches = best.Score(c.Score)

		hit, found := libByID[best.LibraryID]
		if found && connectivity(hit.Metadata.InChIKey) == key {
			out.Status = StatusTruePositive
			rep.TruePositives++
		} else {
			out.Status = StatusFalsePositive
			rep.FalsePositives++
		}
		rep.Outcomes = append(rep.Outcomes, out)
	}

	if hits := rep.TruePositives + rep.FalsePositives; hits > 0 {
		rep.Precision = float64(rep.TruePositives) / float64(hits)
	}
	if rep.Queries > 0 {
		rep.Recall = float64(rep.TruePositives) / float64(rep.Queries)
	}
	return rep, nil
}

// connectivity returns the 14-character first InChIKey block, or "" if the
// key is too short to have one.
func connectivity(inchikey string) string {
	block := spectrum.InChIKeyFirstBlock(inchikey)
	if len(block) < 14 {
		return ""
	}
	return block
}

// CurvePoint is one threshold of a precision/recall sweep.
type CurvePoint struct {
	MinScore       float64 `json:"min_score"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	NoHits         int     `json:"no_hits"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
}

// Curve evaluates the criterion once per threshold, replacing its MinScore.
func Curve(queries, lib []*spectrum.Spectrum, results []library.Result, c Criterion, thresholds []float64) ([]CurvePoint, error) {
	points := make([]CurvePoint, 0, len(thresholds))
	for _, th := range thresholds {
		c.MinScore = th
		rep, err := Evaluate(queries, lib, results, c)
		if err != nil {
			return nil, err
		}
		points = append(points, CurvePoint{
			MinScore:       th,
			TruePositives:  rep.TruePositives,
			FalsePositives: rep.FalsePositives,
			NoHits:         rep.NoHits,
			Precision:      rep.Precision,
			Recall:         rep.Recall,
		})
	}
	return points, nil
}

// Thresholds returns n evenly spaced thresholds from lo to hi inclusive.
func Thresholds(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}
