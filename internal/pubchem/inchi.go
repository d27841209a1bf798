package pubchem

import (
	"math"
	"regexp"
	"strings"
)

// Default agreement thresholds for structure matching.
const (
	DefaultMinInChIAgreement    = 3
	DefaultMinInChIKeyAgreement = 1
	DefaultMassTolerance        = 2.0
)

var inchiPattern = regexp.MustCompile(`(InChI=1|1)(S/|/)[0-9, A-Za-z,.]{2,}/(c|h)[0-9]`)

// LikelyHasInChI is a quick plausibility test that avoids deeper comparison
// of values that cannot be an InChI.
func LikelyHasInChI(inchi string) bool {
	inchi = strings.Trim(inchi, `"`)
	return inchiPattern.MatchString(inchi)
}

var inchiNoise = strings.NewReplacer(`"`, "", " ", "", "-", "", "+", "", "?", "")

// LikelyInChIMatch compares the first minAgreement "/"-separated layers of two
// InChIs. Quotes, spaces and charge/stereo markers ('-', '+', '?') are ignored,
// which tolerates the most common defects in library annotations.
func LikelyInChIMatch(a, b string, minAgreement int) bool {
	pa := strings.Split(inchiNoise.Replace(a), "/")
	pb := strings.Split(inchiNoise.Replace(b), "/")
	return prefixAgreement(pa, pb, minAgreement)
}

// LikelyInChIKeyMatch compares the first minAgreement "-"-separated blocks of
// two InChIKeys, case-insensitively.
func LikelyInChIKeyMatch(a, b string, minAgreement int) bool {
	clean := strings.NewReplacer(`"`, "", " ", "")
	pa := strings.Split(strings.ToUpper(clean.Replace(a)), "-")
	pb := strings.Split(strings.ToUpper(clean.Replace(b)), "-")
	return prefixAgreement(pa, pb, minAgreement)
}

func prefixAgreement(a, b []string, n int) bool {
	if len(a) < n || len(b) < n {
		return false
	}
	for i := range n {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FindInChIMatch returns the first result whose InChI likely matches inchi, or nil.
func FindInChIMatch(results []Compound, inchi string, minAgreement int) *Compound {
	for i := range results {
		if LikelyInChIMatch(inchi, results[i].InChI, minAgreement) {
			return &results[i]
		}
	}
	return nil
}

// FindMassMatch returns the first result whose exact mass lies within
// tolerance of parentMass, or nil. Each result is judged by its own mass.
func FindMassMatch(results []Compound, parentMass, tolerance float64) *Compound {
	if parentMass <= 0 {
		return nil
	}
	for i := range results {
		m := float64(results[i].ExactMass)
		if m > 0 && math.Abs(m-parentMass) <= tolerance {
			return &results[i]
		}
	}
	return nil
}
