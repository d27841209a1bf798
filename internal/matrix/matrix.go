// Package matrix computes all-vs-all similarity matrices with optional
// checkpointing to disk.
package matrix

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/iomega/spec2vec-gnps/internal/similarity"
	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

// ProgressReporter receives progress updates while a matrix is computed.
type ProgressReporter interface {
	OnProgress(done, total int)
}

// ProgressFunc is a function adapter for ProgressReporter.
type ProgressFunc func(done, total int)

// OnProgress implements ProgressReporter.
func (f ProgressFunc) OnProgress(done, total int) {
	f(done, total)
}

// Options controls a matrix computation.
type Options struct {
	// Workers bounds the number of rows scored concurrently. Zero means GOMAXPROCS.
	Workers int

	// Filename enables checkpoints next to it when SafetyPoints > 0.
	Filename     string
	SafetyPoints int

	Progress ProgressReporter
}

// Matrix is a symmetric all-vs-all similarity matrix.
type Matrix struct {
	Scorer  string
	IDs     []string
	Scores  [][]float64
	Matches [][]int

	// Complete is false for checkpoints of an unfinished computation.
	Complete bool
}

// New allocates an n×n matrix for the given spectra.
func New(scorer string, ids []string) *Matrix {
	n := len(ids)
	m := &Matrix{
		Scorer:  scorer,
		IDs:     append([]string(nil), ids...),
		Scores:  make([][]float64, n),
		Matches: make([][]int, n),
	}
	for i := range n {
		m.Scores[i] = make([]float64, n)
		m.Matches[i] = make([]int, n)
	}
	return m
}

// Size returns the number of spectra in the matrix.
func (m *Matrix) Size() int {
	return len(m.IDs)
}

// Index returns the row of the spectrum with the given id, or -1.
func (m *Matrix) Index(id string) int {
	for i, v := range m.IDs {
		if v == id {
			return i
		}
	}
	return -1
}

// Total returns the number of pair computations for n spectra: the upper
// triangle including the diagonal.
func Total(n int) int {
	return n * (n + 1) / 2
}

// SafetyPath returns the checkpoint path for filename: everything after the
// first dot of the base name is replaced by "_safety.mtx.zst".
func SafetyPath(filename string) string {
	dir, name := filepath.Split(filename)
	name, _, _ = strings.Cut(name, ".")
	return filepath.Join(dir, name+"_safety"+Extension)
}

// Compute scores every spectrum against every other. Only the upper triangle
// (including the diagonal) is computed; the lower triangle is mirrored.
func Compute(ctx context.Context, spectra []*spectrum.Spectrum, scorer similarity.Scorer, opts Options) (*Matrix, error) {
	ids := make([]string, len(spectra))
	for i, s := range spectra {
		ids[i] = s.ID
	}
	m := New(scorer.Name(), ids)

	n := len(spectra)
	total := Total(n)
	interval := 0
	if opts.Filename != "" && opts.SafetyPoints > 0 {
		interval = max(total/opts.SafetyPoints, 1)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	start := time.Now()
	var mu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range n {
		g.Go(func() error {
			scores := make([]float64, n-i)
			matches := make([]int, n-i)
			for j := i; j < n; j++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				s, err := scorer.Pair(spectra[i], spectra[j])
				if err != nil {
					return fmt.Errorf("%s(%s, %s): %w", scorer.Name(), spectra[i].ID, spectra[j].ID, err)
				}
				scores[j-i] = s.Value
				matches[j-i] = s.Matches
			}

			mu.Lock()
			defer mu.Unlock()
			copy(m.Scores[i][i:], scores)
			copy(m.Matches[i][i:], matches)
			before := done
			done += n - i
			if opts.Progress != nil {
				opts.Progress.OnProgress(done, total)
			}
			if interval > 0 && done/interval > before/interval && done < total {
				path := SafetyPath(opts.Filename)
				if err := m.Save(path); err != nil {
					return fmt.Errorf("saving checkpoint: %w", err)
				}
				log.Debug().Str("path", path).Int("done", done).Int("total", total).Msg("Saved matrix checkpoint")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m.mirror()
	m.Complete = true

	log.Info().
		Str("scorer", m.Scorer).
		Int("spectra", n).
		Int("pairs", total).
		Dur("took", time.Since(start)).
		Msg("Similarity matrix computed")

	if opts.Filename != "" {
		if err := m.Save(opts.Filename); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Matrix) mirror() {
	for i := 1; i < len(m.IDs); i++ {
		for j := range i {
			m.Scores[i][j] = m.Scores[j][i]
			m.Matches[i][j] = m.Matches[j][i]
		}
	}
}

// Neighbor is one entry of a matrix row.
type Neighbor struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Matches int     `json:"matches"`
}

// Neighbors returns up to n entries of row i with the highest scores,
// excluding i itself. Ties keep column order.
func (m *Matrix) Neighbors(i, n int) []Neighbor {
	if i < 0 || i >= len(m.IDs) {
		return nil
	}
	out := make([]Neighbor, 0, len(m.IDs)-1)
	for j, id := range m.IDs {
		if j == i {
			continue
		}
		out = append(out, Neighbor{ID: id, Score: m.Scores[i][j], Matches: m.Matches[i][j]})
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Score > out[b].Score
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
