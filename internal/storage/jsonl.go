// Package storage handles data persistence in JSONL and SQLite formats.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (4MB per line).
// Spectra with many peaks make long lines.
const MaxJSONLLineCapacity = 4 * 1024 * 1024

// Import actions.
const (
	ActionNew    = "new"
	ActionUpdate = "update"
	ActionSkip   = "skip"
)

// SpectrumWithAction pairs an imported spectrum with what MergeImport did with it.
type SpectrumWithAction struct {
	Spectrum    *spectrum.Spectrum
	Action      string // new, update, skip
	ExistingIdx int    // Index in existing spectra (for updates and skips)
}

// ReadAll reads all spectra from a JSONL file.
func ReadAll(path string) ([]*spectrum.Spectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Empty file returns empty slice
		}
		return nil, fmt.Errorf("opening spectra file: %w", err)
	}
	defer f.Close()

	var spectra []*spectrum.Spectrum
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var s spectrum.Spectrum
		if err := json.Unmarshal(line, &s); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		if s.ID == "" {
			return nil, fmt.Errorf("line %d: spectrum without id", lineNum)
		}
		s.Sort()
		spectra = append(spectra, &s)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading spectra file: %w", err)
	}

	return spectra, nil
}

func writeJSONLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing: %w", err)
	}
	return nil
}

// Append adds spectra to the end of a JSONL file.
func Append(path string, spectra ...*spectrum.Spectrum) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening spectra file for append: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, s := range spectra {
		if err := writeJSONLine(w, s); err != nil {
			return fmt.Errorf("spectrum %s: %w", s.ID, err)
		}
	}
	return w.Flush()
}

// WriteAll writes all spectra to a JSONL file, replacing existing content.
// The file is written to a temporary path and renamed into place.
func WriteAll(path string, spectra []*spectrum.Spectrum) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating spectra file: %w", err)
	}

	w := bufio.NewWriter(f)
	for i, s := range spectra {
		if err := writeJSONLine(w, s); err != nil {
			f.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("spectrum %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flushing spectra file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing spectra file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming spectra file: %w", err)
	}
	return nil
}

// FindByID searches for a spectrum by ID.
func FindByID(spectra []*spectrum.Spectrum, id string) (int, bool) {
	for i, s := range spectra {
		if s.ID == id {
			return i, true
		}
	}
	return -1, false
}

// MergeImport plans how imported spectra join the existing ones. Unknown IDs
// are new. Known IDs are updated when update is true and skipped otherwise.
// Duplicate IDs within the import keep the last occurrence.
func MergeImport(existing, imported []*spectrum.Spectrum, update bool) []SpectrumWithAction {
	index := make(map[string]int, len(existing))
	for i, s := range existing {
		index[s.ID] = i
	}

	pos := make(map[string]int, len(imported))
	var out []SpectrumWithAction
	for _, s := range imported {
		action := SpectrumWithAction{Spectrum: s, Action: ActionNew, ExistingIdx: -1}
		if idx, ok := index[s.ID]; ok {
			action.ExistingIdx = idx
			action.Action = ActionSkip
			if update {
				action.Action = ActionUpdate
			}
		}
		if p, dup := pos[s.ID]; dup {
			out[p] = action
			continue
		}
		pos[s.ID] = len(out)
		out = append(out, action)
	}
	return out
}

// ApplyImport returns existing spectra with the planned actions applied.
func ApplyImport(existing []*spectrum.Spectrum, actions []SpectrumWithAction) []*spectrum.Spectrum {
	out := append([]*spectrum.Spectrum(nil), existing...)
	for _, a := range actions {
		switch a.Action {
		case ActionNew:
			out = append(out, a.Spectrum)
		case ActionUpdate:
			out[a.ExistingIdx] = a.Spectrum
		}
	}
	return out
}
