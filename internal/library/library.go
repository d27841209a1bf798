// Package library selects and scores library candidates for query spectra.
//
// Candidates come from a presearch on precursor mass, on spec2vec top N, or
// both. Every candidate is then scored with the requested cosine-type scores.
package library

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/iomega/spec2vec-gnps/internal/document"
	"github.com/iomega/spec2vec-gnps/internal/embedding"
	"github.com/iomega/spec2vec-gnps/internal/similarity"
	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

// matcher holds state shared by all queries of one Match call.
type matcher struct {
	opts    Options
	pre     presearch
	library []*spectrum.Spectrum
	subset  []int // indices into library eligible for matching

	s2v     *embedding.Spec2Vec
	libDocs []*document.SpectrumDocument // parallel to subset
	libVecs []embedding.Embedding        // parallel to subset, nil without spec2vec presearch

	mass      similarity.PrecursorMZMatch
	byMass    []massEntry // subset entries with a precursor, sorted by mass
	cosine    similarity.CosineGreedy
	modCosine similarity.ModifiedCosine
}

type massEntry struct {
	mz  float64
	pos int // position in subset
}

// Match finds library candidates for every query. Results are in query order.
func Match(ctx context.Context, queries, library []*spectrum.Spectrum, opts Options) ([]Result, error) {
	pre, err := opts.parse()
	if err != nil {
		return nil, err
	}

	m := &matcher{
		opts:      opts,
		pre:       pre,
		library:   library,
		mass:      similarity.PrecursorMZMatch{Tolerance: opts.MassTolerance, Type: opts.MassToleranceType},
		cosine:    similarity.NewCosineGreedy(opts.CosineTolerance),
		modCosine: similarity.NewModifiedCosine(opts.CosineTolerance),
	}
	for i, s := range library {
		if !opts.IgnoreNonAnnotated || s.IsAnnotated() {
			m.subset = append(m.subset, i)
		}
	}
	log.Debug().Int("library", len(library)).Int("eligible", len(m.subset)).Msg("Library subset selected")

	if opts.Model != nil {
		m.s2v = embedding.NewSpec2Vec(opts.Model,
			embedding.WithIntensityWeightingPower(opts.IntensityWeightingPower),
			embedding.WithAllowedMissingPercentage(opts.AllowedMissingPercentage))
		m.libDocs = make([]*document.SpectrumDocument, len(m.subset))
		for k, idx := range m.subset {
			m.libDocs[k] = document.New(library[idx], opts.Decimals)
		}
	}

	if pre.topN > 0 {
		log.Info().Msgf("Pre-selection includes spec2vec top %d.", pre.topN)
		m.libVecs, err = m.s2v.EmbedAll(ctx, m.libDocs)
		if err != nil {
			return nil, fmt.Errorf("embedding library: %w", err)
		}
	}
	if pre.precursor {
		log.Info().Msgf("Pre-selection includes mass matches within %g %s.", opts.MassTolerance, opts.MassToleranceType)
		m.indexMasses()
	}

	results := make([]Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for i, q := range queries {
		g.Go(func() error {
			cands, err := m.matchQuery(gctx, q)
			if err != nil {
				return fmt.Errorf("query %s: %w", q.ID, err)
			}
			results[i] = Result{QueryID: q.ID, Candidates: cands}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (m *matcher) indexMasses() {
	for pos, idx := range m.subset {
		mz, err := m.library[idx].PrecursorMZ()
		if err != nil {
			continue
		}
		m.byMass = append(m.byMass, massEntry{mz: mz, pos: pos})
	}
	sort.Slice(m.byMass, func(i, j int) bool { return m.byMass[i].mz < m.byMass[j].mz })
}

// massMatches returns the set of subset positions whose precursor matches q.
// A query without precursor matches nothing.
func (m *matcher) massMatches(q *spectrum.Spectrum) map[int]bool {
	out := make(map[int]bool)
	qmz, err := q.PrecursorMZ()
	if err != nil {
		log.Debug().Str("query", q.ID).Msg("No precursor m/z, skipping mass presearch")
		return out
	}
	lo, hi := m.mass.Window(qmz)
	start := sort.Search(len(m.byMass), func(i int) bool { return m.byMass[i].mz >= lo })
	for _, e := range m.byMass[start:] {
		if e.mz > hi {
			break
		}
		if m.mass.Within(e.mz, qmz) {
			out[e.pos] = true
		}
	}
	return out
}

// topN returns the subset positions of the n highest scores. Ties keep the
// lower position first.
func topN(scores []float64, n int) []int {
	pos := make([]int, len(scores))
	for i := range pos {
		pos[i] = i
	}
	sort.SliceStable(pos, func(a, b int) bool { return scores[pos[a]] > scores[pos[b]] })
	if n > len(pos) {
		n = len(pos)
	}
	return pos[:n]
}

func (m *matcher) matchQuery(ctx context.Context, q *spectrum.Spectrum) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var queryDoc *document.SpectrumDocument
	if m.s2v != nil {
		queryDoc = document.New(q, m.opts.Decimals)
	}

	selected := make(map[int]bool)
	var s2vScores []float64
	if m.pre.topN > 0 {
		qv, err := m.s2v.Embed(ctx, queryDoc)
		if err != nil {
			return nil, err
		}
		s2vScores = make([]float64, len(m.libVecs))
		for k, lv := range m.libVecs {
			s2vScores[k] = embedding.CosineSimilarity(lv.Vector, qv.Vector)
		}
		for _, pos := range topN(s2vScores, m.pre.topN) {
			selected[pos] = true
		}
	}

	var massHits map[int]bool
	if m.pre.precursor {
		massHits = m.massMatches(q)
		for pos := range massHits {
			selected[pos] = true
		}
	}

	positions := make([]int, 0, len(selected))
	for pos := range selected {
		positions = append(positions, pos)
	}
	sort.Ints(positions)

	cands := make([]Candidate, 0, len(positions))
	for _, pos := range positions {
		lib := m.library[m.subset[pos]]
		c := Candidate{QueryID: q.ID, LibraryIndex: m.subset[pos], LibraryID: lib.ID}

		if m.opts.includes(similarity.NameCosine) {
			s, err := m.cosine.Pair(lib, q)
			if err != nil {
				return nil, err
			}
			c.Cosine = &s
		}
		if m.opts.includes(similarity.NameModCosine) {
			s, err := m.modCosine.Pair(lib, q)
			switch {
			case errors.Is(err, similarity.ErrMissingPrecursor):
				// Left nil: not calculated.
				log.Debug().Str("query", q.ID).Str("library", lib.ID).Msg("No precursor m/z, skipping modified cosine")
			case err != nil:
				return nil, fmt.Errorf("modified cosine with %s: %w", lib.ID, err)
			default:
				c.ModCosine = &s
			}
		}
		if massHits != nil {
			hit := massHits[pos]
			c.MassMatch = &hit
		}
		switch {
		case s2vScores != nil:
			v := s2vScores[pos]
			c.Spec2Vec = &v
		case m.opts.includes(similarity.NameSpec2Vec):
			v, err := m.s2v.Pair(ctx, m.libDocs[pos], queryDoc)
			if err != nil {
				return nil, err
			}
			c.Spec2Vec = &v
		}
		cands = append(cands, c)
	}
	return cands, nil
}
