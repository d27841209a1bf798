// Package export writes spectra to MGF and GNPS-style JSON.
package export

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

// ToMGF converts a spectrum to an MGF block.
func ToMGF(s *spectrum.Spectrum) string {
	var b strings.Builder
	m := s.Metadata

	b.WriteString("BEGIN IONS\n")
	writeField(&b, "SPECTRUMID", s.ID)
	if m.PrecursorMZ > 0 {
		writeField(&b, "PEPMASS", formatFloat(m.PrecursorMZ))
	}
	if m.Charge != 0 {
		writeField(&b, "CHARGE", formatCharge(m.Charge))
	}
	if m.ParentMass > 0 {
		writeField(&b, "PARENT_MASS", formatFloat(m.ParentMass))
	}
	writeField(&b, "IONMODE", m.IonMode)
	writeField(&b, "NAME", m.CompoundName)
	writeField(&b, "SMILES", m.Smiles)
	writeField(&b, "INCHI", m.InChI)
	writeField(&b, "INCHIKEY", m.InChIKey)
	writeField(&b, "FORMULA", m.Formula)
	writeField(&b, "LIBRARY", m.Library)

	keys := make([]string, 0, len(m.Extra))
	for k := range m.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeField(&b, strings.ToUpper(k), m.Extra[k])
	}

	for _, p := range s.Peaks {
		b.WriteString(formatFloat(p.MZ))
		b.WriteByte(' ')
		b.WriteString(formatFloat(p.Intensity))
		b.WriteByte('\n')
	}
	b.WriteString("END IONS\n")
	return b.String()
}

// WriteMGF writes spectra as consecutive MGF blocks separated by blank lines.
func WriteMGF(w io.Writer, spectra []*spectrum.Spectrum) error {
	for i, s := range spectra {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, ToMGF(s)); err != nil {
			return fmt.Errorf("writing %s: %w", s.ID, err)
		}
	}
	return nil
}

func writeField(b *strings.Builder, key, value string) {
	value = strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(value))
	if value == "" {
		return
	}
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteByte('\n')
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatCharge(c int) string {
	if c < 0 {
		return strconv.Itoa(-c) + "-"
	}
	return strconv.Itoa(c) + "+"
}
