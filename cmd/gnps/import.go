package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/iomega/spec2vec-gnps/internal/config"
	"github.com/iomega/spec2vec-gnps/internal/importer"
	"github.com/iomega/spec2vec-gnps/internal/spectrum"
	"github.com/iomega/spec2vec-gnps/internal/storage"
)

var (
	importFormat string
	importDryRun bool
	importUpdate bool
	importRaw    bool
)

func init() {
	importCmd.Flags().StringVar(&importFormat, "format", "", "Input format: json (GNPS library) or mgf (default: from extension)")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Show what would be imported without writing")
	importCmd.Flags().BoolVar(&importUpdate, "update", false, "Replace spectra whose ID already exists")
	importCmd.Flags().BoolVar(&importRaw, "raw", false, "Store spectra as parsed, without peak filtering")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import spectra into the library",
	Long: `Import spectra from a GNPS library JSON export or an MGF file.

Spectra are cleaned with the standard peak filters before storing: intensities
are normalized, peaks outside 0-1000 m/z or below 1% relative intensity are
dropped, at most 500 peaks are kept, and losses between 5 and 200 Da are
added. Spectra left with fewer than 10 peaks are not imported.

Usage:
  gnps import ALL_GNPS.json
  gnps import --format mgf spectra.txt --dry-run
  gnps import --update ALL_GNPS.json`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

// ImportResult represents the result of an import operation.
type ImportResult struct {
	New      int      `json:"new"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Filtered int      `json:"filtered"`
	Errors   []string `json:"errors"`
	Total    int      `json:"total"`
}

// DryRunResult represents the result of a dry-run import.
type DryRunResult struct {
	WouldAdd    int            `json:"would_add"`
	WouldUpdate int            `json:"would_update"`
	WouldSkip   int            `json:"would_skip"`
	Filtered    int            `json:"filtered"`
	Errors      []string       `json:"errors"`
	Details     []ImportDetail `json:"details,omitempty"`
}

// ImportDetail describes a single import action.
type ImportDetail struct {
	ID     string `json:"id"`
	Action string `json:"action"` // new, update, skip
	Name   string `json:"compound_name,omitempty"`
}

// readSpectraFile parses an input file in the given format, or by extension
// when format is empty.
func readSpectraFile(path, format string) ([]*spectrum.Spectrum, []error) {
	var (
		spectra []*spectrum.Spectrum
		errs    []error
	)
	if format == "" {
		spectra, errs = importer.ReadFile(path)
	} else {
		f, err := os.Open(path)
		if err != nil {
			exitWithError(ExitError, "reading file: %v", err)
		}
		defer f.Close()
		spectra, errs = importer.Parse(f, format)
	}

	if len(errs) > 0 && len(spectra) == 0 {
		var pathErr *fs.PathError
		switch {
		case errors.Is(errs[0], importer.ErrUnknownFormat):
			exitWithError(ExitError, "%v (use --format)", errs[0])
		case errors.As(errs[0], &pathErr):
			exitWithError(ExitError, "reading file: %v", errs[0])
		}
		exitWithError(ExitDataError, "failed to parse any spectra: %v", errs[0])
	}
	for _, e := range errs {
		log.Warn().Err(e).Str("file", path).Msg("Skipping spectrum")
	}
	return spectra, errs
}

// processSpectra applies the default filters unless raw is set. Spectra the
// filters reject are dropped and counted.
func processSpectra(in []*spectrum.Spectrum, raw bool) ([]*spectrum.Spectrum, int) {
	if raw {
		return in, 0
	}
	out := spectrum.ProcessAll(in, spectrum.DefaultFilters()...)
	return out, len(in) - len(out)
}

func runImport(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()

	parsed, parseErrors := readSpectraFile(args[0], importFormat)
	imported, filtered := processSpectra(parsed, importRaw)
	if filtered > 0 {
		log.Info().Int("filtered", filtered).Msg("Spectra removed by peak filtering")
	}

	spectraPath := config.SpectraPath(repoRoot)
	existing, err := storage.ReadAll(spectraPath)
	if err != nil {
		exitWithError(ExitDataError, "reading existing spectra: %v", err)
	}

	actions := storage.MergeImport(existing, imported, importUpdate)
	var added, updated, skipped int
	details := make([]ImportDetail, 0, len(actions))
	for _, a := range actions {
		switch a.Action {
		case storage.ActionNew:
			added++
		case storage.ActionUpdate:
			updated++
		case storage.ActionSkip:
			skipped++
		}
		details = append(details, ImportDetail{
			ID:     a.Spectrum.ID,
			Action: a.Action,
			Name:   truncateString(a.Spectrum.Metadata.CompoundName, ListNameMaxLen),
		})
	}
	errStrs := formatErrors(parseErrors, maxReportedErrors)

	if importDryRun {
		if humanOutput {
			fmt.Printf("Dry run - would import from %s...\n", args[0])
			fmt.Printf("  Would add:    %d new spectra\n", added)
			fmt.Printf("  Would update: %d existing spectra\n", updated)
			fmt.Printf("  Would skip:   %d (already present)\n", skipped)
			fmt.Printf("  Filtered:     %d (too few peaks after processing)\n", filtered)
			printParseErrors(errStrs, len(parseErrors))
		} else {
			outputJSON(DryRunResult{
				WouldAdd:    added,
				WouldUpdate: updated,
				WouldSkip:   skipped,
				Filtered:    filtered,
				Errors:      errStrs,
				Details:     details,
			})
		}
		return nil
	}

	all := storage.ApplyImport(existing, actions)
	switch {
	case updated > 0:
		if err := storage.WriteAll(spectraPath, all); err != nil {
			exitWithError(ExitError, "writing spectra: %v", err)
		}
	case added > 0:
		// New spectra only: the existing lines stay as they are.
		if err := storage.Append(spectraPath, all[len(existing):]...); err != nil {
			exitWithError(ExitError, "appending spectra: %v", err)
		}
	}

	db := mustOpenDatabase(repoRoot)
	defer db.Close()
	if _, err := db.RebuildFromJSONL(spectraPath); err != nil {
		exitWithError(ExitDataError, "rebuilding database: %v", err)
	}

	if humanOutput {
		fmt.Printf("Imported %d new, updated %d, skipped %d, filtered %d\n", added, updated, skipped, filtered)
		fmt.Printf("Library now holds %d spectra\n", len(all))
		printParseErrors(errStrs, len(parseErrors))
	} else {
		outputJSON(ImportResult{
			New:      added,
			Updated:  updated,
			Skipped:  skipped,
			Filtered: filtered,
			Errors:   errStrs,
			Total:    len(all),
		})
	}
	return nil
}

func printParseErrors(errs []string, total int) {
	if total == 0 {
		return
	}
	fmt.Printf("\nParse errors (%d):\n", total)
	for _, e := range errs {
		fmt.Printf("  - %s\n", e)
	}
	if total > len(errs) {
		fmt.Printf("  ... and %d more\n", total-len(errs))
	}
}
