// Package config handles repository configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iomega/spec2vec-gnps/internal/library"
	"github.com/iomega/spec2vec-gnps/internal/similarity"
)

// Config represents repository configuration stored in .gnps/config.json.
// It holds the analysis defaults used when command flags are not given.
type Config struct {
	ModelPath                string   `json:"model_path"` // word2vec model (.bin binary, otherwise text)
	NDecimals                int      `json:"n_decimals"`
	IntensityWeightingPower  float64  `json:"intensity_weighting_power"`
	AllowedMissingPercentage float64  `json:"allowed_missing_percentage"`
	CosineTolerance          float64  `json:"cosine_tolerance"`
	MassTolerance            float64  `json:"mass_tolerance"`
	MassToleranceType        string   `json:"mass_tolerance_type"`
	Presearch                []string `json:"presearch"`
	IncludeScores            []string `json:"include_scores"`
	IgnoreNonAnnotated       bool     `json:"ignore_non_annotated"`
}

const (
	RepoDir     = ".gnps"
	ConfigFile  = "config.json"
	SpectraFile = "spectra.jsonl"
	MatchesFile = "matches.jsonl"
	CacheDir    = "cache"
	DBFile      = "spectra.db"

	// EnvRoot overrides the directory used to search for a repository.
	EnvRoot = "GNPS_ROOT"
)

// Default returns a configuration with the standard analysis settings.
func Default() *Config {
	d := library.DefaultOptions()
	return &Config{
		NDecimals:                d.Decimals,
		IntensityWeightingPower:  d.IntensityWeightingPower,
		AllowedMissingPercentage: d.AllowedMissingPercentage,
		CosineTolerance:          d.CosineTolerance,
		MassTolerance:            d.MassTolerance,
		MassToleranceType:        string(d.MassToleranceType),
		Presearch:                d.Presearch,
		IncludeScores:            d.IncludeScores,
		IgnoreNonAnnotated:       d.IgnoreNonAnnotated,
	}
}

// RepoPath returns the path to the .gnps directory from a root path.
func RepoPath(root string) string {
	return filepath.Join(root, RepoDir)
}

// ConfigPath returns the path to config.json from a root path.
func ConfigPath(root string) string {
	return filepath.Join(root, RepoDir, ConfigFile)
}

// SpectraPath returns the path to spectra.jsonl from a root path.
func SpectraPath(root string) string {
	return filepath.Join(root, RepoDir, SpectraFile)
}

// MatchesPath returns the path to matches.jsonl from a root path.
func MatchesPath(root string) string {
	return filepath.Join(root, RepoDir, MatchesFile)
}

// CachePath returns the path to the cache directory from a root path.
func CachePath(root string) string {
	return filepath.Join(root, RepoDir, CacheDir)
}

// DBPath returns the path to spectra.db from a root path.
func DBPath(root string) string {
	return filepath.Join(root, RepoDir, CacheDir, DBFile)
}

// IsRepository checks if the given path contains a gnps repository.
func IsRepository(root string) bool {
	info, err := os.Stat(RepoPath(root))
	return err == nil && info.IsDir()
}

// FindRepository walks up from the given path to find a gnps repository.
// Returns the repository root path or an error if not found.
func FindRepository(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsRepository(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("not in a gnps repository (no %s directory found)", RepoDir)
		}
		abs = parent
	}
}

// Load reads configuration from the repository at the given root.
// Fields missing from the file keep their defaults.
func Load(root string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(root))
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes configuration to the repository at the given root.
func (c *Config) Save(root string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(root), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Validate checks every analysis setting.
func (c *Config) Validate() error {
	if _, err := similarity.ParseToleranceType(c.MassToleranceType); err != nil {
		return err
	}
	if _, _, err := library.ParsePresearch(c.Presearch); err != nil {
		return err
	}
	if err := library.ValidateScoreNames(c.IncludeScores); err != nil {
		return err
	}
	if c.NDecimals < 0 {
		return fmt.Errorf("invalid n_decimals: %d (must be >= 0)", c.NDecimals)
	}
	if c.CosineTolerance <= 0 || c.MassTolerance <= 0 {
		return fmt.Errorf("tolerances must be positive")
	}
	if c.AllowedMissingPercentage < 0 || c.AllowedMissingPercentage > 100 {
		return fmt.Errorf("invalid allowed_missing_percentage: %g (must be 0-100)", c.AllowedMissingPercentage)
	}
	return ValidateModelPath(c.ModelPath)
}

// MatchOptions converts the configuration to library matching options.
// The model is not loaded here.
func (c *Config) MatchOptions() (library.Options, error) {
	tolType, err := similarity.ParseToleranceType(c.MassToleranceType)
	if err != nil {
		return library.Options{}, err
	}
	return library.Options{
		Presearch:                c.Presearch,
		IncludeScores:            c.IncludeScores,
		IgnoreNonAnnotated:       c.IgnoreNonAnnotated,
		IntensityWeightingPower:  c.IntensityWeightingPower,
		AllowedMissingPercentage: c.AllowedMissingPercentage,
		CosineTolerance:          c.CosineTolerance,
		MassTolerance:            c.MassTolerance,
		MassToleranceType:        tolType,
		Decimals:                 c.NDecimals,
	}, nil
}

// ValidateModelPath checks that the model path exists and is a regular file.
func ValidateModelPath(path string) error {
	if path == "" {
		return nil // Empty is allowed (not yet configured)
	}

	expandedPath := ExpandPath(path)
	info, err := os.Stat(expandedPath)
	if err != nil {
		return fmt.Errorf("model does not exist: %s", expandedPath)
	}
	if info.IsDir() {
		return fmt.Errorf("model path is a directory: %s", expandedPath)
	}
	return nil
}

// ParseList splits a comma-separated config value, dropping blanks.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
