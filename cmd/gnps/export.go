package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/iomega/spec2vec-gnps/internal/config"
	"github.com/iomega/spec2vec-gnps/internal/export"
	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

var (
	exportFormat string
	exportOut    string
	exportIDs    string
)

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "mgf", "Output format: mgf or json")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to file instead of stdout")
	exportCmd.Flags().StringVar(&exportIDs, "ids", "", "Export only specified IDs (comma-separated)")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export spectra to MGF or GNPS JSON",
	Long: `Export library spectra to MGF or GNPS library JSON.

Examples:
  gnps export > library.mgf
  gnps export --format json --out library.json
  gnps export --ids CCMSLIB00000001547,CCMSLIB00000001548`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	var write func(io.Writer, []*spectrum.Spectrum) error
	switch exportFormat {
	case "mgf":
		write = export.WriteMGF
	case "json":
		write = export.WriteJSON
	default:
		exitWithError(ExitError, "unknown format: %s (valid: mgf, json)", exportFormat)
	}

	repoRoot := mustFindRepository()
	spectra := mustReadSpectra(repoRoot)

	if exportIDs != "" {
		selected, missing := selectByIDs(spectra, config.ParseList(exportIDs))
		if len(missing) > 0 {
			exitWithError(ExitError, "unknown spectrum: %s", missing[0])
		}
		spectra = selected
	}

	var w io.Writer = os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			exitWithError(ExitError, "creating output: %v", err)
		}
		defer f.Close()
		w = f
	}

	bw := bufio.NewWriter(w)
	if err := write(bw, spectra); err != nil {
		exitWithError(ExitError, "exporting: %v", err)
	}
	if err := bw.Flush(); err != nil {
		exitWithError(ExitError, "writing output: %v", err)
	}

	if exportOut != "" {
		if humanOutput {
			fmt.Printf("Exported %d spectra to %s\n", len(spectra), exportOut)
		} else {
			outputJSON(ExportResult{Status: "exported", Path: exportOut, Spectra: len(spectra)})
		}
	}
	return nil
}

// ExportResult is the response when exporting to a file.
type ExportResult struct {
	Status  string `json:"status"`
	Path    string `json:"path"`
	Spectra int    `json:"spectra"`
}
