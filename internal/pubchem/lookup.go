package pubchem

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

// Searcher is the part of Client used by Lookup.
type Searcher interface {
	SearchByName(ctx context.Context, name string, depth int) ([]Compound, error)
	SearchByFormula(ctx context.Context, formula string, depth int) ([]Compound, error)
}

// LookupOptions controls how hard Lookup searches.
type LookupOptions struct {
	NameSearchDepth    int
	FormulaSearch      bool
	MinFormulaLength   int
	FormulaSearchDepth int
	MinInChIAgreement  int
	MassTolerance      float64
}

// DefaultLookupOptions returns the standard lookup settings.
func DefaultLookupOptions() LookupOptions {
	return LookupOptions{
		NameSearchDepth:    DefaultNameSearchDepth,
		FormulaSearch:      false,
		MinFormulaLength:   6,
		FormulaSearchDepth: DefaultFormulaSearchDepth,
		MinInChIAgreement:  DefaultMinInChIAgreement,
		MassTolerance:      DefaultMassTolerance,
	}
}

// Match sources reported in LookupResult.
const (
	SourceNameInChI    = "name+inchi"
	SourceNameMass     = "name+mass"
	SourceFormulaInChI = "formula+inchi"
	SourceFormulaMass  = "formula+mass"
)

// LookupResult is the outcome of a lookup. Spectrum is always a copy of the
// input; Compound and Source are set only when annotations were added.
type LookupResult struct {
	Spectrum *spectrum.Spectrum
	Compound *Compound
	Source   string
}

// Matched reports whether PubChem annotations were applied.
func (r *LookupResult) Matched() bool {
	return r != nil && r.Compound != nil
}

// plausibleName rejects names too short to search for.
func plausibleName(name string) bool {
	return utf8.RuneCountInString(name) > 4
}

// Lookup tries to fill in the InChIKey, InChI and SMILES of a spectrum from
// PubChem. Spectra that already have a valid InChIKey or lack a plausible
// compound name are returned unchanged. A nil spectrum yields a nil result.
func Lookup(ctx context.Context, s Searcher, in *spectrum.Spectrum, opts LookupOptions) (*LookupResult, error) {
	if in == nil {
		return nil, nil
	}

	res := &LookupResult{Spectrum: in.Clone()}
	m := res.Spectrum.Metadata
	// Mass matching needs a parent mass even for unprocessed spectra.
	m.ParentMass = spectrum.AddParentMass(in).Metadata.ParentMass
	if spectrum.IsValidInChIKey(m.InChIKey) {
		return res, nil
	}
	if !plausibleName(m.CompoundName) {
		return res, nil
	}

	results, err := s.SearchByName(ctx, m.CompoundName, opts.NameSearchDepth)
	if err != nil {
		return res, fmt.Errorf("name search for %q: %w", m.CompoundName, err)
	}
	if c, src := match(results, m, opts, SourceNameInChI, SourceNameMass); c != nil {
		log.Info().Str("id", in.ID).Str("name", m.CompoundName).Int("cid", c.CID).Msg("Matching compound name")
		apply(res, c, src)
		return res, nil
	}
	log.Debug().Str("id", in.ID).Str("name", m.CompoundName).Int("results", len(results)).Msg("No matches found for compound name")

	if opts.FormulaSearch && m.Formula != "" && len(m.Formula) >= opts.MinFormulaLength {
		results, err := s.SearchByFormula(ctx, m.Formula, opts.FormulaSearchDepth)
		if err != nil {
			return res, fmt.Errorf("formula search for %q: %w", m.Formula, err)
		}
		if c, src := match(results, m, opts, SourceFormulaInChI, SourceFormulaMass); c != nil {
			log.Info().Str("id", in.ID).Str("formula", m.Formula).Int("cid", c.CID).Msg("Matching formula")
			apply(res, c, src)
			return res, nil
		}
		log.Debug().Str("id", in.ID).Str("formula", m.Formula).Msg("No matches found for formula")
	}

	return res, nil
}

// match prefers an InChI match when the spectrum likely has an InChI, and
// falls back to matching the parent mass.
func match(results []Compound, m spectrum.Metadata, opts LookupOptions, inchiSrc, massSrc string) (*Compound, string) {
	if len(results) == 0 {
		return nil, ""
	}
	var c *Compound
	src := inchiSrc
	if LikelyHasInChI(m.InChI) {
		c = FindInChIMatch(results, m.InChI, opts.MinInChIAgreement)
	}
	if c == nil {
		c = FindMassMatch(results, m.ParentMass, opts.MassTolerance)
		src = massSrc
	}
	if c == nil || c.InChIKey == "" || c.InChI == "" {
		return nil, ""
	}
	return c, src
}

func apply(res *LookupResult, c *Compound, src string) {
	md := &res.Spectrum.Metadata
	md.InChIKey = c.InChIKey
	md.InChI = c.InChI
	md.Smiles = c.BestSMILES()
	res.Compound = c
	res.Source = src
}
