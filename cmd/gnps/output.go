package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

// Constants for output formatting.
const (
	DefaultListLimit = 50 // Default limit for search/list commands

	// Name truncation lengths by context
	ListNameMaxLen   = 50 // Used in list and search output
	MatchNameMaxLen  = 40 // Used in match tables
	DetailTextMaxLen = 70 // Used in get command detail view

	// maxReportedErrors bounds the parse errors echoed back by import.
	maxReportedErrors = 20
)

const (
	// progressBarWidth is the width in characters for terminal progress display.
	progressBarWidth = 30
	// progressLineClearWidth is the width needed to clear the entire progress line.
	progressLineClearWidth = 50
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError writes an error message to stderr and returns the exit code.
func outputError(code int, format string, args ...interface{}) int {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	return code
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

// UpdateResponse is the response for config set commands.
type UpdateResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SpectrumSummary is the compact form of a spectrum used in listings.
type SpectrumSummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"compound_name,omitempty"`
	PrecursorMZ float64 `json:"precursor_mz,omitempty"`
	InChIKey    string  `json:"inchikey,omitempty"`
	Peaks       int     `json:"num_peaks"`
}

func summarize(s *spectrum.Spectrum) SpectrumSummary {
	return SpectrumSummary{
		ID:          s.ID,
		Name:        s.Metadata.CompoundName,
		PrecursorMZ: s.Metadata.PrecursorMZ,
		InChIKey:    s.Metadata.InChIKey,
		Peaks:       len(s.Peaks),
	}
}

func summarizeAll(spectra []*spectrum.Spectrum) []SpectrumSummary {
	out := make([]SpectrumSummary, len(spectra))
	for i, s := range spectra {
		out[i] = summarize(s)
	}
	return out
}

// printSummariesHuman prints one line per spectrum.
func printSummariesHuman(spectra []SpectrumSummary) {
	for _, s := range spectra {
		fmt.Printf("%-24s %10.4f  %-27s %s\n", s.ID, s.PrecursorMZ, s.InChIKey, truncateString(s.Name, ListNameMaxLen))
	}
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

// formatBytes formats bytes in a human-readable way.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatErrors renders at most limit errors as strings.
func formatErrors(errs []error, limit int) []string {
	if len(errs) > limit {
		errs = errs[:limit]
	}
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}

// buildProgressBar creates a progress bar string of the given width.
// Returns a string like "[=====>    ]" showing progress.
func buildProgressBar(current, total, width int) string {
	if total == 0 {
		return strings.Repeat(" ", width)
	}
	filled := (width * current) / total
	if filled >= width {
		return strings.Repeat("=", width)
	}
	return strings.Repeat("=", filled) + ">" + strings.Repeat(" ", width-filled-1)
}

// printProgress prints a progress bar to stderr.
func printProgress(current, total int) {
	if total == 0 {
		return
	}
	pct := float64(current) / float64(total) * 100
	bar := buildProgressBar(current, total, progressBarWidth)
	fmt.Fprintf(os.Stderr, "\r[%s] %d/%d (%.0f%%)", bar, current, total, pct)
}

// clearProgress erases the progress line.
func clearProgress() {
	fmt.Fprintf(os.Stderr, "\r%*s\r", progressLineClearWidth, "")
}
