package similarity

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

func mustSpectrum(t *testing.T, id string, mz, intensities []float64, precursor float64) *spectrum.Spectrum {
	t.Helper()
	s, err := spectrum.New(id, mz, intensities, spectrum.Metadata{PrecursorMZ: precursor})
	if err != nil {
		t.Fatalf("spectrum.New() error = %v", err)
	}
	return s
}

// librarySet mirrors a small library with one query whose expected scores are known.
func librarySet(t *testing.T) ([]*spectrum.Spectrum, *spectrum.Spectrum) {
	lib := []*spectrum.Spectrum{
		mustSpectrum(t, "s1", []float64{100, 150, 200}, []float64{0.7, 0.2, 0.1}, 500.5),
		mustSpectrum(t, "s2", []float64{100, 140, 190}, []float64{0.4, 0.2, 0.1}, 500.11),
		mustSpectrum(t, "s3", []float64{100, 140, 190}, []float64{0.3, 0.5, 0.2}, 501.1),
	}
	query := mustSpectrum(t, "q", []float64{97.5, 137.5, 200}, []float64{0.8, 0.5, 0.4}, 500.1)
	return lib, query
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-6*math.Max(1, math.Abs(b))
}

func TestFindMatches(t *testing.T) {
	tests := []struct {
		name  string
		mz1   []float64
		mz2   []float64
		tol   float64
		shift float64
		want  [][2]int
	}{
		{"exact", []float64{100, 200}, []float64{100, 200}, 0.1, 0, [][2]int{{0, 0}, {1, 1}}},
		{"none", []float64{100}, []float64{110}, 0.1, 0, nil},
		{"shifted", []float64{100, 140}, []float64{97.5, 137.5}, 2, 1, [][2]int{{0, 0}, {1, 1}}},
		{"multiple within tolerance", []float64{100}, []float64{99.95, 100.05}, 0.1, 0, [][2]int{{0, 0}, {0, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindMatches(tt.mz1, tt.mz2, tt.tol, tt.shift)
			if len(got) != len(tt.want) {
				t.Fatalf("FindMatches() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("match %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCosineGreedy_KnownScores(t *testing.T) {
	lib, query := librarySet(t)
	cos := NewCosineGreedy(2.0)

	want := []Score{{0.05312127152597306, 1}, {0, 0}, {0, 0}}
	for i, ref := range lib {
		got, err := cos.Pair(ref, query)
		if err != nil {
			t.Fatalf("Pair() error = %v", err)
		}
		if !approx(got.Value, want[i].Value) || got.Matches != want[i].Matches {
			t.Errorf("cosine(%s, q) = %+v, want %+v", ref.ID, got, want[i])
		}
	}
}

func TestModifiedCosine_KnownScores(t *testing.T) {
	lib, query := librarySet(t)
	mod := NewModifiedCosine(2.0)

	want := []Score{{0.05312127152597306, 1}, {0, 0}, {0.7757282939050968, 2}}
	for i, ref := range lib {
		got, err := mod.Pair(ref, query)
		if err != nil {
			t.Fatalf("Pair() error = %v", err)
		}
		if !approx(got.Value, want[i].Value) || got.Matches != want[i].Matches {
			t.Errorf("modcosine(%s, q) = %+v, want %+v", ref.ID, got, want[i])
		}
	}
}

func TestCosineGreedy_Identical(t *testing.T) {
	s := mustSpectrum(t, "a", []float64{100, 200, 300}, []float64{0.1, 1, 0.5}, 0)
	got, _ := NewCosineGreedy(0.1).Pair(s, s)
	if !approx(got.Value, 1) || got.Matches != 3 {
		t.Errorf("self score = %+v, want {1 3}", got)
	}
}

func TestCosineGreedy_GreedyAssignment(t *testing.T) {
	// Both peaks of b fall within tolerance of the single peak of a; only one may be used.
	a := mustSpectrum(t, "a", []float64{100}, []float64{1}, 0)
	b := mustSpectrum(t, "b", []float64{99.95, 100.05}, []float64{0.2, 1}, 0)
	got, _ := NewCosineGreedy(0.1).Pair(a, b)
	if got.Matches != 1 {
		t.Errorf("Matches = %d, want 1", got.Matches)
	}
	want := 1.0 / math.Sqrt(0.04+1)
	if !approx(got.Value, want) {
		t.Errorf("Value = %v, want %v", got.Value, want)
	}
}

func TestCosineGreedy_TiedProducts(t *testing.T) {
	// a[0]-b[0] and a[1]-b[0] tie on product 1. Taking the later pair first
	// leaves a[1]-b[1] unusable.
	a := mustSpectrum(t, "a", []float64{100, 100.1}, []float64{1, 1}, 0)
	b := mustSpectrum(t, "b", []float64{100.05, 100.18}, []float64{1, 0.5}, 0)
	got, _ := NewCosineGreedy(0.1).Pair(a, b)
	if got.Matches != 1 {
		t.Errorf("Matches = %d, want 1", got.Matches)
	}
	want := 1 / math.Sqrt(2*1.25)
	if !approx(got.Value, want) {
		t.Errorf("Value = %v, want %v", got.Value, want)
	}
}

func TestCosineGreedy_EmptySpectrum(t *testing.T) {
	a := mustSpectrum(t, "a", nil, nil, 0)
	b := mustSpectrum(t, "b", []float64{100}, []float64{1}, 0)
	got, err := NewCosineGreedy(0.1).Pair(a, b)
	if err != nil {
		t.Fatalf("Pair() error = %v", err)
	}
	if got != (Score{}) {
		t.Errorf("Pair() = %+v, want zero score", got)
	}
}

func TestModifiedCosine_MissingPrecursor(t *testing.T) {
	a := mustSpectrum(t, "a", []float64{100}, []float64{1}, 0)
	b := mustSpectrum(t, "b", []float64{100}, []float64{1}, 200)
	if _, err := NewModifiedCosine(0.1).Pair(a, b); !errors.Is(err, ErrMissingPrecursor) {
		t.Errorf("Pair() error = %v, want ErrMissingPrecursor", err)
	}
}

func TestPrecursorMZMatch(t *testing.T) {
	a := mustSpectrum(t, "a", nil, nil, 500.0)
	b := mustSpectrum(t, "b", nil, nil, 500.001)

	tests := []struct {
		name  string
		match PrecursorMZMatch
		want  float64
	}{
		{"dalton within", PrecursorMZMatch{Tolerance: 0.01, Type: Dalton}, 1},
		{"dalton outside", PrecursorMZMatch{Tolerance: 0.0001, Type: Dalton}, 0},
		{"ppm within", PrecursorMZMatch{Tolerance: 2.5, Type: PPM}, 1},
		{"ppm outside", PrecursorMZMatch{Tolerance: 1.5, Type: PPM}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.match.Pair(a, b)
			if err != nil {
				t.Fatalf("Pair() error = %v", err)
			}
			if got.Value != tt.want {
				t.Errorf("Pair() = %v, want %v", got.Value, tt.want)
			}
		})
	}
}

func TestPrecursorMZMatch_Window(t *testing.T) {
	for _, m := range []PrecursorMZMatch{{Tolerance: 2, Type: Dalton}, {Tolerance: 10, Type: PPM}} {
		lo, hi := m.Window(500)
		if !m.Within(500, lo+1e-7) || !m.Within(500, hi-1e-7) {
			t.Errorf("%v: window bounds (%v, %v) should match 500", m.Type, lo, hi)
		}
		if m.Within(500, lo-0.01) || m.Within(500, hi+0.01) {
			t.Errorf("%v: values outside window (%v, %v) should not match", m.Type, lo, hi)
		}
	}
}

func TestParseToleranceType(t *testing.T) {
	for in, want := range map[string]ToleranceType{"Dalton": Dalton, "da": Dalton, "PPM": PPM} {
		got, err := ParseToleranceType(in)
		if err != nil || got != want {
			t.Errorf("ParseToleranceType(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseToleranceType("mmu"); err == nil {
		t.Error("ParseToleranceType(mmu) expected error")
	}
}

func TestMatrix(t *testing.T) {
	lib, query := librarySet(t)
	m, err := Matrix(context.Background(), lib, []*spectrum.Spectrum{query}, PrecursorMZMatch{Tolerance: 2, Type: Dalton})
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}
	if len(m) != 3 || len(m[0]) != 1 {
		t.Fatalf("Matrix() shape = %dx%d, want 3x1", len(m), len(m[0]))
	}
	for i := range m {
		if m[i][0].Value != 1 {
			t.Errorf("row %d = %v, want mass match", i, m[i][0].Value)
		}
	}
}

// precursorDiff scores a minus b on precursor m/z so row/column order shows.
type precursorDiff struct{}

func (precursorDiff) Name() string { return "precursor_diff" }

func (precursorDiff) Pair(a, b *spectrum.Spectrum) (Score, error) {
	return Score{Value: a.Metadata.PrecursorMZ - b.Metadata.PrecursorMZ, Matches: len(a.Peaks)}, nil
}

func TestMatrix_Orientation(t *testing.T) {
	refs := []*spectrum.Spectrum{
		mustSpectrum(t, "r1", []float64{100}, []float64{1}, 100),
		mustSpectrum(t, "r2", []float64{100, 200}, []float64{1, 1}, 200),
	}
	queries := []*spectrum.Spectrum{
		mustSpectrum(t, "q1", []float64{100}, []float64{1}, 10),
		mustSpectrum(t, "q2", []float64{100}, []float64{1}, 20),
		mustSpectrum(t, "q3", []float64{100}, []float64{1}, 30),
	}

	m, err := Matrix(context.Background(), refs, queries, precursorDiff{})
	if err != nil {
		t.Fatalf("Matrix() error = %v", err)
	}
	if len(m) != 2 || len(m[0]) != 3 || len(m[1]) != 3 {
		t.Fatalf("Matrix() shape = %dx%d, want 2x3", len(m), len(m[0]))
	}

	tests := []struct {
		row, col    int
		wantValue   float64
		wantMatches int
	}{
		{0, 0, 90, 1},
		{0, 2, 70, 1},
		{1, 0, 190, 2},
		{1, 1, 180, 2},
		{1, 2, 170, 2},
	}
	for _, tt := range tests {
		got := m[tt.row][tt.col]
		if got.Value != tt.wantValue || got.Matches != tt.wantMatches {
			t.Errorf("m[%d][%d] = %+v, want {%v %d}", tt.row, tt.col, got, tt.wantValue, tt.wantMatches)
		}
	}
}

func TestMatrix_Errors(t *testing.T) {
	withPrec := mustSpectrum(t, "a", []float64{100}, []float64{1}, 200)
	noPrec := mustSpectrum(t, "b", []float64{100}, []float64{1}, 0)

	_, err := Matrix(context.Background(), []*spectrum.Spectrum{withPrec}, []*spectrum.Spectrum{noPrec}, NewModifiedCosine(0.1))
	if !errors.Is(err, ErrMissingPrecursor) {
		t.Errorf("Matrix() error = %v, want ErrMissingPrecursor", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Matrix(ctx, []*spectrum.Spectrum{withPrec}, []*spectrum.Spectrum{withPrec}, NewCosineGreedy(0.1)); !errors.Is(err, context.Canceled) {
		t.Errorf("Matrix() error = %v, want context.Canceled", err)
	}
}
