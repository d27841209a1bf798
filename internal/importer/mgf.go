package importer

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

// ParseMGF reads BEGIN IONS/END IONS blocks. Header lines are KEY=value;
// PEPMASS contributes its first token as precursor m/z. Peak lines are
// "mz intensity". Blocks that fail to parse are reported and skipped.
func ParseMGF(r io.Reader) ([]*spectrum.Spectrum, []error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var spectra []*spectrum.Spectrum
	var errs []error

	var cur *mgfBlock
	lineNum, blockNum := 0, 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		switch {
		case strings.EqualFold(line, "BEGIN IONS"):
			if cur != nil {
				errs = append(errs, fmt.Errorf("line %d: BEGIN IONS inside block starting at line %d", lineNum, cur.start))
			}
			blockNum++
			cur = &mgfBlock{start: lineNum, n: blockNum}
		case strings.EqualFold(line, "END IONS"):
			if cur == nil {
				errs = append(errs, fmt.Errorf("line %d: END IONS without BEGIN IONS", lineNum))
				continue
			}
			s, err := cur.spectrum()
			if err != nil {
				errs = append(errs, fmt.Errorf("block at line %d: %w", cur.start, err))
			} else {
				spectra = append(spectra, s)
			}
			cur = nil
		case cur == nil:
			// Global parameters outside blocks are ignored.
		case cur.err != nil:
			// Skip the rest of a broken block.
		default:
			if err := cur.addLine(line); err != nil {
				cur.err = fmt.Errorf("line %d: %w", lineNum, err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, fmt.Errorf("reading MGF: %w", err))
	}
	if cur != nil {
		errs = append(errs, fmt.Errorf("block at line %d: missing END IONS", cur.start))
	}

	return spectra, errs
}

type mgfBlock struct {
	start   int
	n       int
	headers [][2]string
	mz      []float64
	ints    []float64
	err     error
}

func (b *mgfBlock) addLine(line string) error {
	if k, v, ok := strings.Cut(line, "="); ok && !startsWithDigit(line) {
		b.headers = append(b.headers, [2]string{strings.TrimSpace(k), strings.TrimSpace(v)})
		return nil
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return fmt.Errorf("invalid peak line %q", line)
	}
	mz, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return fmt.Errorf("invalid m/z %q", fields[0])
	}
	intensity, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return fmt.Errorf("invalid intensity %q", fields[1])
	}
	b.mz = append(b.mz, mz)
	b.ints = append(b.ints, intensity)
	return nil
}

func startsWithDigit(s string) bool {
	return s != "" && (s[0] >= '0' && s[0] <= '9' || s[0] == '.')
}

// idKeys are header keys that can name a spectrum, in order of preference.
var idKeys = []string{"SPECTRUMID", "SPECTRUM_ID", "SCANS", "TITLE"}

func (b *mgfBlock) spectrum() (*spectrum.Spectrum, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.mz) == 0 {
		return nil, ErrNoPeaks
	}

	s, err := spectrum.New("", b.mz, b.ints, spectrum.Metadata{})
	if err != nil {
		return nil, err
	}

	ids := make(map[string]string)
	for _, h := range b.headers {
		key, value := h[0], Clean(h[1])
		upper := strings.ToUpper(key)
		ids[upper] = value
		if value == "" {
			continue
		}
		switch upper {
		case "SPECTRUMID", "SPECTRUM_ID":
			continue
		case "PEPMASS":
			value = strings.Fields(value)[0]
		}
		if err := s.Set(strings.ToLower(key), value); err != nil {
			if upper == "CHARGE" {
				continue
			}
			return nil, err
		}
	}

	for _, k := range idKeys {
		if v := ids[k]; v != "" {
			s.ID = v
			break
		}
	}
	if s.ID == "" {
		s.ID = fmt.Sprintf("mgf-%d", b.n)
	}
	return s, nil
}
