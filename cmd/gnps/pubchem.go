package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/iomega/spec2vec-gnps/internal/config"
	"github.com/iomega/spec2vec-gnps/internal/pubchem"
	"github.com/iomega/spec2vec-gnps/internal/spectrum"
	"github.com/iomega/spec2vec-gnps/internal/storage"
)

var (
	pubchemFormulaSearch bool
	pubchemDryRun        bool
	pubchemNameDepth     int
	pubchemFormulaDepth  int
	pubchemMassTolerance float64
	pubchemLimit         int
	pubchemIDs           string
	pubchemSearchFormula bool
)

var pubchemCmd = &cobra.Command{
	Use:   "pubchem",
	Short: "Look up compound annotations on PubChem",
	Long: `Commands for completing spectrum annotations from PubChem PUG REST.

The base URL can be overridden with PUBCHEM_URL (also read from a .env file)
or pubchem_url in the global config.`,
}

func init() {
	// Load .env file if present (for PUBCHEM_URL)
	_ = godotenv.Load()

	f := pubchemLookupCmd.Flags()
	f.BoolVar(&pubchemFormulaSearch, "formula-search", false, "Also search by molecular formula when the name search finds nothing")
	f.BoolVar(&pubchemDryRun, "dry-run", false, "Show what would be annotated without writing")
	f.IntVar(&pubchemNameDepth, "name-depth", pubchem.DefaultNameSearchDepth, "Compounds considered per name search")
	f.IntVar(&pubchemFormulaDepth, "formula-depth", pubchem.DefaultFormulaSearchDepth, "Compounds considered per formula search")
	f.Float64Var(&pubchemMassTolerance, "mass-tolerance", pubchem.DefaultMassTolerance, "Parent mass tolerance in Da")
	f.IntVar(&pubchemLimit, "limit", 0, "Look up at most N spectra (0 for all)")
	f.StringVar(&pubchemIDs, "ids", "", "Only look up the specified IDs (comma-separated)")

	pubchemSearchCmd.Flags().BoolVar(&pubchemSearchFormula, "formula", false, "Treat the query as a molecular formula")
	pubchemSearchCmd.Flags().IntVar(&pubchemNameDepth, "depth", pubchem.DefaultNameSearchDepth, "Maximum number of compounds")

	pubchemCmd.AddCommand(pubchemLookupCmd)
	pubchemCmd.AddCommand(pubchemSearchCmd)
	rootCmd.AddCommand(pubchemCmd)
}

// newPubChemClient creates a client honouring PUBCHEM_URL and the global config.
func newPubChemClient() *pubchem.Client {
	var opts []pubchem.ClientOption
	if u := config.GetPubChemURL(); u != "" {
		opts = append(opts, pubchem.WithBaseURL(u))
	}
	if rps := config.GetPubChemRateLimit(); rps > 0 {
		opts = append(opts, pubchem.WithRateLimit(rps))
	}
	return pubchem.NewClient(opts...)
}

// exitOnPubChemError maps client errors to exit codes.
func exitOnPubChemError(err error) {
	switch {
	case pubchem.IsRateLimited(err):
		exitWithError(ExitAPIError, "PubChem rate limit exceeded, try again later")
	case errors.Is(err, pubchem.ErrNetworkError):
		exitWithError(ExitAPIError, "%v", err)
	default:
		var apiErr *pubchem.APIError
		if errors.As(err, &apiErr) {
			exitWithError(ExitAPIError, "%v", err)
		}
		exitWithError(ExitError, "%v", err)
	}
}

var pubchemLookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Annotate spectra without an InChIKey",
	Long: `Search PubChem for every repository spectrum that lacks a valid InChIKey.

Compounds are found by name (and optionally formula) and accepted when their
InChI agrees with the spectrum's InChI or, failing that, their exact mass is
within --mass-tolerance of the spectrum's parent mass. Accepted compounds set
the InChIKey, InChI and SMILES.

Examples:
  gnps pubchem lookup --dry-run
  gnps pubchem lookup --formula-search --limit 100`,
	Args: cobra.NoArgs,
	RunE: runPubChemLookup,
}

// LookupDetail describes the outcome for one spectrum.
type LookupDetail struct {
	ID       string `json:"id"`
	Name     string `json:"compound_name"`
	Source   string `json:"source,omitempty"`
	CID      int    `json:"cid,omitempty"`
	InChIKey string `json:"inchikey,omitempty"`
	Error    string `json:"error,omitempty"`
}

// LookupResponse is the response for the pubchem lookup command.
type LookupResponse struct {
	Checked   int            `json:"checked"`
	Annotated int            `json:"annotated"`
	Failed    int            `json:"failed"`
	DryRun    bool           `json:"dry_run"`
	Details   []LookupDetail `json:"details"`
}

// lookupTargets returns the indexes of spectra that need a lookup.
func lookupTargets(spectra []*spectrum.Spectrum) []int {
	wanted := make(map[string]bool)
	for _, id := range config.ParseList(pubchemIDs) {
		wanted[id] = true
	}
	var out []int
	for i, s := range spectra {
		if len(wanted) > 0 && !wanted[s.ID] {
			continue
		}
		if spectrum.IsValidInChIKey(s.Metadata.InChIKey) {
			continue
		}
		out = append(out, i)
		if pubchemLimit > 0 && len(out) == pubchemLimit {
			break
		}
	}
	return out
}

func runPubChemLookup(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	repoRoot := mustFindRepository()
	spectraPath := config.SpectraPath(repoRoot)
	spectra := mustReadSpectra(repoRoot)

	opts := pubchem.DefaultLookupOptions()
	opts.FormulaSearch = pubchemFormulaSearch
	opts.NameSearchDepth = pubchemNameDepth
	opts.FormulaSearchDepth = pubchemFormulaDepth
	opts.MassTolerance = pubchemMassTolerance

	client := newPubChemClient()
	targets := lookupTargets(spectra)
	log.Info().Int("spectra", len(targets)).Msg("Looking up spectra on PubChem")

	resp := LookupResponse{DryRun: pubchemDryRun, Details: []LookupDetail{}}
	var fatal error
	for _, i := range targets {
		s := spectra[i]
		res, err := pubchem.Lookup(ctx, client, s, opts)
		resp.Checked++
		detail := LookupDetail{ID: s.ID, Name: s.Metadata.CompoundName}
		if err != nil {
			var apiErr *pubchem.APIError
			if pubchem.IsRateLimited(err) || errors.Is(err, pubchem.ErrNetworkError) || errors.As(err, &apiErr) {
				fatal = err
				break
			}
			log.Warn().Err(err).Str("id", s.ID).Msg("PubChem lookup failed")
			detail.Error = err.Error()
			resp.Failed++
			resp.Details = append(resp.Details, detail)
			continue
		}
		if !res.Matched() {
			continue
		}
		detail.Source = res.Source
		detail.CID = res.Compound.CID
		detail.InChIKey = res.Spectrum.Metadata.InChIKey
		resp.Details = append(resp.Details, detail)
		resp.Annotated++
		spectra[i] = res.Spectrum
	}

	if !pubchemDryRun && resp.Annotated > 0 {
		if err := storage.WriteAll(spectraPath, spectra); err != nil {
			exitWithError(ExitError, "writing spectra: %v", err)
		}
		db := mustOpenDatabase(repoRoot)
		if _, err := db.RebuildFromJSONL(spectraPath); err != nil {
			db.Close()
			exitWithError(ExitDataError, "rebuilding database: %v", err)
		}
		db.Close()
	}

	if humanOutput {
		for _, d := range resp.Details {
			if d.Error != "" {
				fmt.Printf("  %-24s error: %s\n", d.ID, d.Error)
				continue
			}
			fmt.Printf("  %-24s %-27s %-13s %s\n", d.ID, d.InChIKey, d.Source, truncateString(d.Name, ListNameMaxLen))
		}
		verb := "Annotated"
		if pubchemDryRun {
			verb = "Would annotate"
		}
		fmt.Printf("\n%s %d of %d spectra (%d failed)\n", verb, resp.Annotated, resp.Checked, resp.Failed)
	} else if fatal == nil {
		outputJSON(resp)
	}

	if fatal != nil {
		if !pubchemDryRun && resp.Annotated > 0 {
			log.Warn().Int("annotated", resp.Annotated).Msg("Saved annotations found before the error")
		}
		exitOnPubChemError(fatal)
	}
	return nil
}

var pubchemSearchCmd = &cobra.Command{
	Use:   "search <name>",
	Short: "Search PubChem compounds by name or formula",
	Long: `Search PubChem directly and print the matching compounds.

Examples:
  gnps pubchem search caffeine
  gnps pubchem search --formula C8H10N4O2`,
	Args: cobra.ExactArgs(1),
	RunE: runPubChemSearch,
}

func runPubChemSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client := newPubChemClient()

	var (
		compounds []pubchem.Compound
		err       error
	)
	if pubchemSearchFormula {
		compounds, err = client.SearchByFormula(ctx, args[0], pubchemNameDepth)
	} else {
		compounds, err = client.SearchByName(ctx, args[0], pubchemNameDepth)
	}
	if err != nil {
		exitOnPubChemError(err)
	}

	if humanOutput {
		if len(compounds) == 0 {
			fmt.Println("No compounds found")
			return nil
		}
		for _, c := range compounds {
			fmt.Printf("%-10d %-27s %10.4f  %-16s %s\n", c.CID, c.InChIKey, float64(c.ExactMass), c.MolecularFormula, truncateString(c.BestSMILES(), ListNameMaxLen))
		}
	} else {
		outputJSON(compounds)
	}
	return nil
}
