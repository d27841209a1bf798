package pubchem

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

const caffeineInChI = "InChI=1S/C8H10N4O2/c1-10-4-9-6-5(10)7(13)12(3)8(14)11(6)2/h4H,1-3H3"

const caffeineJSON = `{"PropertyTable": {"Properties": [
	{"CID": 2519, "MolecularFormula": "C8H10N4O2", "InChI": "` + caffeineInChI + `",
	 "InChIKey": "RYYVLZVUVIJVGH-UHFFFAOYSA-N", "CanonicalSMILES": "CN1C=NC2=C1C(=O)N(C(=O)N2C)C",
	 "ExactMass": "194.08037556"}
]}}`

func TestClient_SearchByName(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, caffeineJSON)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	results, err := c.SearchByName(context.Background(), "caffeine", 10)
	if err != nil {
		t.Fatalf("SearchByName() error = %v", err)
	}
	if !strings.HasPrefix(gotPath, "/compound/name/caffeine/property/") {
		t.Errorf("path = %q", gotPath)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.CID != 2519 || float64(r.ExactMass) != 194.08037556 {
		t.Errorf("result = %+v", r)
	}
	if r.BestSMILES() != "CN1C=NC2=C1C(=O)N(C(=O)N2C)C" {
		t.Errorf("BestSMILES() = %q, want canonical fallback", r.BestSMILES())
	}
}

func TestClient_SearchByFormula(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("MaxRecords")
		if !strings.HasPrefix(r.URL.Path, "/compound/fastformula/C8H10N4O2/") {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"PropertyTable": {"Properties": [{"CID": 1}, {"CID": 2}, {"CID": 3}]}}`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	results, err := c.SearchByFormula(context.Background(), "C8H10N4O2", 2)
	if err != nil {
		t.Fatalf("SearchByFormula() error = %v", err)
	}
	if gotQuery != "2" {
		t.Errorf("MaxRecords = %q, want 2", gotQuery)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want depth-limited 2", len(results))
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantEmpty   bool
		rateLimited bool
	}{
		{"not found is empty", 404, `{"Fault": {"Code": "PUGREST.NotFound", "Message": "No CID found"}}`, true, false},
		{"rate limited", 429, ``, false, true},
		{"server busy", 503, `{"Fault": {"Code": "PUGREST.ServerBusy", "Message": "Too many requests"}}`, false, true},
		{"server error", 500, `oops`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
			results, err := c.SearchByName(context.Background(), "nothing", 5)
			if tt.wantEmpty {
				if err != nil || len(results) != 0 {
					t.Errorf("got %v, %v; want empty result", results, err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if IsRateLimited(err) != tt.rateLimited {
				t.Errorf("IsRateLimited(%v) = %v, want %v", err, !tt.rateLimited, tt.rateLimited)
			}
		})
	}
}

func TestClient_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	if _, err := c.SearchByName(context.Background(), "x", 1); !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("error = %v, want ErrInvalidResponse", err)
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(&APIError{StatusCode: 404}) {
		t.Error("IsNotFound(404) = false")
	}
	if IsNotFound(errors.New("other")) {
		t.Error("IsNotFound(other) = true")
	}
}

func TestLikelyHasInChI(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{caffeineInChI, true},
		{`"` + caffeineInChI + `"`, true},
		{"1S/C8H10N4O2/c1-10-4", true},
		{"", false},
		{"N/A", false},
		{"InChI=1S/C8H10N4O2", false},
	}
	for _, tt := range tests {
		if got := LikelyHasInChI(tt.in); got != tt.want {
			t.Errorf("LikelyHasInChI(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLikelyInChIMatch(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  int
		want bool
	}{
		{"identical", caffeineInChI, caffeineInChI, 3, true},
		{"missing dashes", "InChI=1S/C8H10N4O2/c110-4-9-6-5(10)7(13)12(3)8(14)11(6)2/h4H", caffeineInChI, 3, true},
		{"quoted", `"` + caffeineInChI + `"`, caffeineInChI, 3, true},
		{"different formula", "InChI=1S/C6H12O6/c7-1-2", caffeineInChI, 3, false},
		{"too few layers", "InChI=1S/C8H10N4O2", caffeineInChI, 3, false},
		{"two layers enough", "InChI=1S/C8H10N4O2", caffeineInChI, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LikelyInChIMatch(tt.a, tt.b, tt.min); got != tt.want {
				t.Errorf("LikelyInChIMatch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLikelyInChIKeyMatch(t *testing.T) {
	tests := []struct {
		a, b string
		min  int
		want bool
	}{
		{"RYYVLZVUVIJVGH-UHFFFAOYSA-N", "ryyvlzvuvijvgh-xxxxxxxxxx-n", 1, true},
		{"RYYVLZVUVIJVGH-UHFFFAOYSA-N", "RYYVLZVUVIJVGH-XXXXXXXXXX-N", 2, false},
		{`"RYYVLZVUVIJVGH-UHFFFAOYSA-N"`, "RYYVLZVUVIJVGH-UHFFFAOYSA-N", 3, true},
		{"WQZGKKKJIJFFOK-GASJEMHNSA-N", "RYYVLZVUVIJVGH-UHFFFAOYSA-N", 1, false},
	}
	for _, tt := range tests {
		if got := LikelyInChIKeyMatch(tt.a, tt.b, tt.min); got != tt.want {
			t.Errorf("LikelyInChIKeyMatch(%q, %q, %d) = %v, want %v", tt.a, tt.b, tt.min, got, tt.want)
		}
	}
}

func TestFindMassMatch_UsesEachResultsMass(t *testing.T) {
	results := []Compound{
		{CID: 1, ExactMass: 300},
		{CID: 2, ExactMass: 194.08},
		{CID: 3, ExactMass: 195},
	}
	if got := FindMassMatch(results, 194.5, 2.0); got == nil || got.CID != 2 {
		t.Errorf("FindMassMatch() = %+v, want CID 2", got)
	}
	if got := FindMassMatch(results, 100, 2.0); got != nil {
		t.Errorf("FindMassMatch() = %+v, want nil", got)
	}
	if got := FindMassMatch(results, 0, 2.0); got != nil {
		t.Error("FindMassMatch() without parent mass should be nil")
	}
}

func TestFindInChIMatch(t *testing.T) {
	results := []Compound{
		{CID: 1, InChI: "InChI=1S/C6H12O6/c7-1-2-3"},
		{CID: 2519, InChI: caffeineInChI},
	}
	if got := FindInChIMatch(results, caffeineInChI, 3); got == nil || got.CID != 2519 {
		t.Errorf("FindInChIMatch() = %+v, want CID 2519", got)
	}
	if got := FindInChIMatch(results, "InChI=1S/C2H6O/c1-2-3", 3); got != nil {
		t.Errorf("FindInChIMatch() = %+v, want nil", got)
	}
}

// fakeSearcher serves canned results and counts calls.
type fakeSearcher struct {
	byName    []Compound
	byFormula []Compound
	err       error
	nameCalls int
	formCalls int
}

func (f *fakeSearcher) SearchByName(ctx context.Context, name string, depth int) ([]Compound, error) {
	f.nameCalls++
	return f.byName, f.err
}

func (f *fakeSearcher) SearchByFormula(ctx context.Context, formula string, depth int) ([]Compound, error) {
	f.formCalls++
	return f.byFormula, f.err
}

var caffeine = Compound{
	CID:             2519,
	InChI:           caffeineInChI,
	InChIKey:        "RYYVLZVUVIJVGH-UHFFFAOYSA-N",
	IsomericSMILES:  "CN1C=NC2=C1C(=O)N(C(=O)N2C)C",
	CanonicalSMILES: "canonical",
	ExactMass:       194.08037556,
}

func lookupSpectrum(t *testing.T, meta spectrum.Metadata) *spectrum.Spectrum {
	t.Helper()
	s, err := spectrum.New("s1", []float64{100}, []float64{1}, meta)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestLookup(t *testing.T) {
	ctx := context.Background()
	opts := DefaultLookupOptions()

	t.Run("nil spectrum", func(t *testing.T) {
		res, err := Lookup(ctx, &fakeSearcher{}, nil, opts)
		if res != nil || err != nil {
			t.Errorf("Lookup(nil) = %v, %v", res, err)
		}
	})

	t.Run("valid inchikey is left alone", func(t *testing.T) {
		f := &fakeSearcher{byName: []Compound{caffeine}}
		in := lookupSpectrum(t, spectrum.Metadata{CompoundName: "Caffeine", InChIKey: "WQZGKKKJIJFFOK-GASJEMHNSA-N"})
		res, _ := Lookup(ctx, f, in, opts)
		if res.Matched() || f.nameCalls != 0 {
			t.Errorf("Matched = %v, name calls = %d", res.Matched(), f.nameCalls)
		}
		if res.Spectrum == in {
			t.Error("Lookup() should return a copy")
		}
	})

	t.Run("implausible name", func(t *testing.T) {
		f := &fakeSearcher{byName: []Compound{caffeine}}
		res, _ := Lookup(ctx, f, lookupSpectrum(t, spectrum.Metadata{CompoundName: "caff"}), opts)
		if res.Matched() || f.nameCalls != 0 {
			t.Error("names of 4 characters or less should not be searched")
		}
	})

	t.Run("name and inchi", func(t *testing.T) {
		f := &fakeSearcher{byName: []Compound{{CID: 1, InChI: "InChI=1S/X/c1", InChIKey: "A"}, caffeine}}
		in := lookupSpectrum(t, spectrum.Metadata{CompoundName: "Caffeine", InChI: `"` + caffeineInChI + `"`})
		res, err := Lookup(ctx, f, in, opts)
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		if !res.Matched() || res.Source != SourceNameInChI {
			t.Fatalf("Matched/Source = %v/%s", res.Matched(), res.Source)
		}
		md := res.Spectrum.Metadata
		if md.InChIKey != caffeine.InChIKey || md.InChI != caffeineInChI || md.Smiles != caffeine.IsomericSMILES {
			t.Errorf("metadata = %+v", md)
		}
		if in.Metadata.InChIKey != "" {
			t.Error("input spectrum was modified")
		}
	})

	t.Run("name and mass from precursor", func(t *testing.T) {
		f := &fakeSearcher{byName: []Compound{{CID: 1, ExactMass: 500, InChI: "x", InChIKey: "y"}, caffeine}}
		in := lookupSpectrum(t, spectrum.Metadata{CompoundName: "Caffeine", PrecursorMZ: 195.0877})
		res, _ := Lookup(ctx, f, in, opts)
		if !res.Matched() || res.Compound.CID != 2519 || res.Source != SourceNameMass {
			t.Errorf("result = %+v", res)
		}
		if res.Spectrum.Metadata.ParentMass != 0 {
			t.Error("derived parent mass should not be stored")
		}
	})

	t.Run("formula search", func(t *testing.T) {
		f := &fakeSearcher{byFormula: []Compound{caffeine}}
		in := lookupSpectrum(t, spectrum.Metadata{CompoundName: "unknown thing", Formula: "C8H10N4O2", ParentMass: 194.08})

		res, _ := Lookup(ctx, f, in, opts)
		if res.Matched() || f.formCalls != 0 {
			t.Error("formula search should be off by default")
		}

		withFormula := opts
		withFormula.FormulaSearch = true
		res, _ = Lookup(ctx, f, in, withFormula)
		if !res.Matched() || res.Source != SourceFormulaMass {
			t.Errorf("result = %+v", res)
		}

		short := lookupSpectrum(t, spectrum.Metadata{CompoundName: "unknown thing", Formula: "CH4", ParentMass: 16})
		f.formCalls = 0
		Lookup(ctx, f, short, withFormula)
		if f.formCalls != 0 {
			t.Error("short formulas should not be searched")
		}
	})

	t.Run("search error", func(t *testing.T) {
		f := &fakeSearcher{err: ErrRateLimited}
		res, err := Lookup(ctx, f, lookupSpectrum(t, spectrum.Metadata{CompoundName: "Caffeine"}), opts)
		if !errors.Is(err, ErrRateLimited) {
			t.Errorf("error = %v, want ErrRateLimited", err)
		}
		if res == nil || res.Matched() {
			t.Error("Lookup() should return the unchanged copy on error")
		}
	})
}
