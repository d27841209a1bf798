package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iomega/spec2vec-gnps/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get or set configuration values",
	Long: `Get or set repository configuration values.

Usage:
  gnps config                               # Show all config
  gnps config model_path                    # Get specific value
  gnps config model_path ~/models/s2v.bin   # Set value
  gnps config presearch precursor_mz,spec2vec-top10

Keys:
  model_path                  word2vec model (.bin binary, otherwise text)
  n_decimals                  Decimals of peak words (default 2)
  intensity_weighting_power   Exponent on peak intensities (default 0.5)
  allowed_missing_percentage  Uncovered intensity share tolerated by spec2vec (0-100)
  cosine_tolerance            Peak matching tolerance in Da (default 0.005)
  mass_tolerance              Precursor tolerance (default 2.0)
  mass_tolerance_type         ppm or Dalton
  presearch                   Comma-separated: precursor_mz, spec2vec-topN
  include_scores              Comma-separated: spec2vec, cosine, modcosine
  ignore_non_annotated        Restrict library to annotated spectra (true/false)`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

// configValue returns the string form of a key, and false if the key is unknown.
func configValue(cfg *config.Config, key string) (string, bool) {
	switch key {
	case "model_path":
		return cfg.ModelPath, true
	case "n_decimals":
		return strconv.Itoa(cfg.NDecimals), true
	case "intensity_weighting_power":
		return strconv.FormatFloat(cfg.IntensityWeightingPower, 'g', -1, 64), true
	case "allowed_missing_percentage":
		return strconv.FormatFloat(cfg.AllowedMissingPercentage, 'g', -1, 64), true
	case "cosine_tolerance":
		return strconv.FormatFloat(cfg.CosineTolerance, 'g', -1, 64), true
	case "mass_tolerance":
		return strconv.FormatFloat(cfg.MassTolerance, 'g', -1, 64), true
	case "mass_tolerance_type":
		return cfg.MassToleranceType, true
	case "presearch":
		return strings.Join(cfg.Presearch, ","), true
	case "include_scores":
		return strings.Join(cfg.IncludeScores, ","), true
	case "ignore_non_annotated":
		return strconv.FormatBool(cfg.IgnoreNonAnnotated), true
	}
	return "", false
}

// setConfigValue parses value into the field named by key.
func setConfigValue(cfg *config.Config, key, value string) error {
	var err error
	switch key {
	case "model_path":
		cfg.ModelPath = config.ExpandPath(value)
	case "n_decimals":
		cfg.NDecimals, err = strconv.Atoi(value)
	case "intensity_weighting_power":
		cfg.IntensityWeightingPower, err = strconv.ParseFloat(value, 64)
	case "allowed_missing_percentage":
		cfg.AllowedMissingPercentage, err = strconv.ParseFloat(value, 64)
	case "cosine_tolerance":
		cfg.CosineTolerance, err = strconv.ParseFloat(value, 64)
	case "mass_tolerance":
		cfg.MassTolerance, err = strconv.ParseFloat(value, 64)
	case "mass_tolerance_type":
		cfg.MassToleranceType = value
	case "presearch":
		cfg.Presearch = config.ParseList(value)
	case "include_scores":
		cfg.IncludeScores = config.ParseList(value)
	case "ignore_non_annotated":
		cfg.IgnoreNonAnnotated, err = strconv.ParseBool(value)
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q", key, value)
	}
	return nil
}

func runConfig(cmd *cobra.Command, args []string) error {
	repoRoot := mustFindRepository()
	cfg := mustLoadConfig(repoRoot)

	// No args: show all config
	if len(args) == 0 {
		if humanOutput {
			for _, key := range configKeys {
				v, _ := configValue(cfg, key)
				fmt.Printf("%-28s %s\n", key+":", v)
			}
		} else {
			outputJSON(cfg)
		}
		return nil
	}

	// Accept dashed keys (model-path) as well
	key := strings.ReplaceAll(args[0], "-", "_")

	if len(args) == 1 {
		v, ok := configValue(cfg, key)
		if !ok {
			exitWithError(ExitError, "unknown configuration key: %s", args[0])
		}
		if humanOutput {
			fmt.Println(v)
		} else {
			outputJSON(map[string]string{key: v})
		}
		return nil
	}

	if err := setConfigValue(cfg, key, args[1]); err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if err := cfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	if err := cfg.Save(repoRoot); err != nil {
		exitWithError(ExitError, "saving config: %v", err)
	}

	v, _ := configValue(cfg, key)
	if humanOutput {
		fmt.Printf("Set %s = %s\n", key, v)
	} else {
		outputJSON(UpdateResponse{
			Status: "updated",
			Key:    key,
			Value:  v,
		})
	}
	return nil
}

var configKeys = []string{
	"model_path",
	"n_decimals",
	"intensity_weighting_power",
	"allowed_missing_percentage",
	"cosine_tolerance",
	"mass_tolerance",
	"mass_tolerance_type",
	"presearch",
	"include_scores",
	"ignore_non_annotated",
}
