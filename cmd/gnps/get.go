package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iomega/spec2vec-gnps/internal/spectrum"
)

var getPeaks bool

func init() {
	getCmd.Flags().BoolVar(&getPeaks, "peaks", false, "Include the peak list in human output")
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a single spectrum by ID",
	Long: `Get a single spectrum by its ID.

Example:
  gnps get CCMSLIB00000001547`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	id := args[0]
	s, err := db.GetByID(id)
	if err != nil {
		exitWithError(ExitError, "getting spectrum: %v", err)
	}
	if s == nil {
		exitWithError(ExitError, "spectrum not found: %s", id)
	}

	if humanOutput {
		printSpectrumDetail(s)
	} else {
		outputJSON(s)
	}
	return nil
}

func printSpectrumDetail(s *spectrum.Spectrum) {
	fmt.Println(s.ID)
	fmt.Println(strings.Repeat("=", DetailTextMaxLen))

	m := s.Metadata
	field := func(label, value string) {
		if value != "" {
			fmt.Printf("%-14s %s\n", label+":", truncateString(value, DetailTextMaxLen))
		}
	}
	field("Name", m.CompoundName)
	if m.PrecursorMZ > 0 {
		field("Precursor m/z", fmt.Sprintf("%.4f", m.PrecursorMZ))
	}
	if m.ParentMass > 0 {
		field("Parent mass", fmt.Sprintf("%.4f", m.ParentMass))
	}
	if m.Charge != 0 {
		field("Charge", fmt.Sprintf("%d", m.Charge))
	}
	field("Ion mode", m.IonMode)
	field("SMILES", m.Smiles)
	field("InChI", m.InChI)
	field("InChIKey", m.InChIKey)
	field("Formula", m.Formula)
	field("Library", m.Library)

	keys := make([]string, 0, len(m.Extra))
	for k := range m.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		field(k, m.Extra[k])
	}

	fmt.Printf("\nPeaks: %d  Losses: %d\n", len(s.Peaks), len(s.Losses))
	if getPeaks {
		for _, p := range s.Peaks {
			fmt.Printf("  %10.4f  %.4f\n", p.MZ, p.Intensity)
		}
	}
}
