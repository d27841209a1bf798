package spectrum

import (
	"math"
	"sort"
)

// Default bounds used by DefaultFilters and AddLosses.
const (
	DefaultMinMZ       = 0.0
	DefaultMaxMZ       = 1000.0
	DefaultLossFrom    = 5.0
	DefaultLossTo      = 200.0
	DefaultMinPeaks    = 10
	DefaultMaxPeaks    = 500
	DefaultMinRelative = 0.01
)

// Filter transforms a spectrum. A nil result drops the spectrum.
type Filter func(*Spectrum) *Spectrum

// NormalizeIntensities scales peak intensities so the highest peak is 1.
// Losses are scaled by the same factor.
func NormalizeIntensities(s *Spectrum) *Spectrum {
	if s == nil {
		return nil
	}
	out := s.Clone()
	var max float64
	for _, p := range out.Peaks {
		if p.Intensity > max {
			max = p.Intensity
		}
	}
	if max == 0 {
		return out
	}
	for i := range out.Peaks {
		out.Peaks[i].Intensity /= max
	}
	for i := range out.Losses {
		out.Losses[i].Intensity /= max
	}
	return out
}

// SelectByMZ keeps peaks with lo <= m/z <= hi.
func SelectByMZ(lo, hi float64) Filter {
	return func(s *Spectrum) *Spectrum {
		if s == nil {
			return nil
		}
		out := s.Clone()
		out.Peaks = keepPeaks(out.Peaks, func(p Peak) bool {
			return p.MZ >= lo && p.MZ <= hi
		})
		return out
	}
}

// SelectByRelativeIntensity keeps peaks whose intensity relative to the base peak is within [lo, hi].
func SelectByRelativeIntensity(lo, hi float64) Filter {
	return func(s *Spectrum) *Spectrum {
		if s == nil {
			return nil
		}
		out := s.Clone()
		var max float64
		for _, p := range out.Peaks {
			max = math.Max(max, p.Intensity)
		}
		if max == 0 {
			return out
		}
		out.Peaks = keepPeaks(out.Peaks, func(p Peak) bool {
			rel := p.Intensity / max
			return rel >= lo && rel <= hi
		})
		return out
	}
}

// RequireMinimumNumberOfPeaks drops spectra with fewer than n peaks.
func RequireMinimumNumberOfPeaks(n int) Filter {
	return func(s *Spectrum) *Spectrum {
		if s == nil || len(s.Peaks) < n {
			return nil
		}
		return s
	}
}

// ReduceToNumberOfPeaks drops spectra below minPeaks and keeps only the
// maxPeaks most intense peaks.
func ReduceToNumberOfPeaks(minPeaks, maxPeaks int) Filter {
	return func(s *Spectrum) *Spectrum {
		if s == nil || len(s.Peaks) < minPeaks {
			return nil
		}
		if maxPeaks <= 0 || len(s.Peaks) <= maxPeaks {
			return s
		}
		out := s.Clone()
		byIntensity := append([]Peak(nil), out.Peaks...)
		sort.SliceStable(byIntensity, func(i, j int) bool {
			return byIntensity[i].Intensity > byIntensity[j].Intensity
		})
		out.Peaks = byIntensity[:maxPeaks]
		sortPeaks(out.Peaks)
		return out
	}
}

// AddParentMass derives the neutral parent mass from precursor m/z and charge.
// A missing charge is treated as singly charged in the spectrum's ion mode.
func AddParentMass(s *Spectrum) *Spectrum {
	if s == nil {
		return nil
	}
	out := s.Clone()
	if out.Metadata.PrecursorMZ <= 0 || out.Metadata.ParentMass > 0 {
		return out
	}
	charge := out.Metadata.Charge
	if charge == 0 {
		charge = 1
		if out.Metadata.IonMode == "negative" {
			charge = -1
		}
	}
	abs := math.Abs(float64(charge))
	protons := ProtonMass * float64(charge)
	out.Metadata.ParentMass = out.Metadata.PrecursorMZ*abs - protons
	return out
}

// AddLosses computes neutral losses (precursor m/z minus peak m/z) within [from, to].
func AddLosses(from, to float64) Filter {
	return func(s *Spectrum) *Spectrum {
		if s == nil {
			return nil
		}
		out := s.Clone()
		if out.Metadata.PrecursorMZ <= 0 {
			out.Losses = nil
			return out
		}
		losses := make([]Peak, 0, len(out.Peaks))
		for _, p := range out.Peaks {
			loss := out.Metadata.PrecursorMZ - p.MZ
			if loss >= from && loss <= to {
				losses = append(losses, Peak{MZ: loss, Intensity: p.Intensity})
			}
		}
		sortPeaks(losses)
		out.Losses = losses
		return out
	}
}

// DefaultFilters is the processing chain applied to library spectra before
// building documents: normalisation, m/z window, relative-intensity floor,
// peak count limits and losses.
func DefaultFilters() []Filter {
	return []Filter{
		NormalizeIntensities,
		AddParentMass,
		SelectByMZ(DefaultMinMZ, DefaultMaxMZ),
		SelectByRelativeIntensity(DefaultMinRelative, 1),
		ReduceToNumberOfPeaks(DefaultMinPeaks, DefaultMaxPeaks),
		AddLosses(DefaultLossFrom, DefaultLossTo),
	}
}

// Process runs filters in order, stopping as soon as one drops the spectrum.
func Process(s *Spectrum, filters ...Filter) *Spectrum {
	for _, f := range filters {
		if s == nil {
			return nil
		}
		s = f(s)
	}
	return s
}

// ProcessAll applies filters to each spectrum and returns the survivors.
func ProcessAll(spectra []*Spectrum, filters ...Filter) []*Spectrum {
	out := make([]*Spectrum, 0, len(spectra))
	for _, s := range spectra {
		if p := Process(s, filters...); p != nil {
			out = append(out, p)
		}
	}
	return out
}

func keepPeaks(peaks []Peak, keep func(Peak) bool) []Peak {
	out := peaks[:0]
	for _, p := range peaks {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}
