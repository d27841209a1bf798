// Package main provides the gnps CLI entry point.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/iomega/spec2vec-gnps/internal/config"
	"github.com/iomega/spec2vec-gnps/internal/logging"
	"github.com/iomega/spec2vec-gnps/internal/semantic"
	"github.com/iomega/spec2vec-gnps/internal/spectrum"
	"github.com/iomega/spec2vec-gnps/internal/storage"
	"github.com/iomega/spec2vec-gnps/internal/word2vec"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

// logLevel overrides the log level from the global config
var logLevel string

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gnps",
	Short: "Spectral library matching for GNPS mass spectrometry data",
	Long: `gnps manages a local library of MS/MS spectra and matches unknown
spectra against it using spec2vec, cosine and modified cosine similarity.

Spectra are stored in git-versionable JSONL with an ephemeral SQLite
database for queries. All commands output JSON by default.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logLevel
		if level == "" {
			level = config.GetLogLevel()
		}
		logging.Init(level)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (LOG_LEVEL takes precedence)")
	rootCmd.Version = Version
}

// getStartingDirectory returns the directory to start searching for a repository.
// Checks GNPS_ROOT first, then the current working directory.
func getStartingDirectory() (string, int) {
	if root := os.Getenv(config.EnvRoot); root != "" {
		return root, 0
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", outputError(ExitError, "getting current directory: %v", err)
	}
	return cwd, 0
}

// mustFindRepository finds and validates the repository, exits on error.
// Falls back to default_repo from the global config.
func mustFindRepository() string {
	start, exitCode := getStartingDirectory()
	if exitCode != 0 {
		os.Exit(exitCode)
	}

	repoRoot, err := config.FindRepository(start)
	if err == nil {
		return repoRoot
	}
	if def := config.GetDefaultRepo(); def != "" && config.IsRepository(def) {
		return def
	}
	fmt.Fprintln(os.Stderr, config.HelpfulConfigMessage())
	os.Exit(ExitConfigError)
	return ""
}

// mustOpenDatabase opens the SQLite database, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenDatabase(repoRoot string) *storage.DB {
	if err := os.MkdirAll(config.CachePath(repoRoot), 0755); err != nil {
		exitWithError(ExitError, "creating cache directory: %v", err)
	}
	db, err := storage.OpenDB(config.DBPath(repoRoot))
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return db
}

// mustLoadConfig loads configuration, exits on error.
func mustLoadConfig(repoRoot string) *config.Config {
	cfg, err := config.Load(repoRoot)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// mustReadSpectra reads the repository's spectra from JSONL, exits on error.
func mustReadSpectra(repoRoot string) []*spectrum.Spectrum {
	spectra, err := storage.ReadAll(config.SpectraPath(repoRoot))
	if err != nil {
		exitWithError(ExitDataError, "reading spectra: %v", err)
	}
	return spectra
}

// mustLoadSemanticIndex loads the spec2vec index, exits on error.
func mustLoadSemanticIndex(repoRoot string) *semantic.SemanticIndex {
	idx, err := semantic.Load(repoRoot)
	if err != nil {
		if errors.Is(err, semantic.ErrIndexNotFound) {
			exitWithError(ExitConfigError, "spec2vec index not found\n\nRun 'gnps index build' to create the index.")
		}
		exitWithError(ExitError, "loading index: %v", err)
	}
	return idx
}

// mustLoadModel loads the word2vec model from override or the configured path.
func mustLoadModel(cfg *config.Config, override string) *word2vec.Model {
	path := override
	if path == "" {
		path = cfg.ModelPath
	}
	if path == "" {
		exitWithError(ExitModelNotFound, "no word2vec model configured\n\nSet one with 'gnps config model_path /path/to/model.bin' or pass --model.")
	}
	path = config.ExpandPath(path)
	if err := config.ValidateModelPath(path); err != nil {
		exitWithError(ExitModelNotFound, "%v", err)
	}
	model, err := word2vec.Load(path)
	if err != nil {
		exitWithError(ExitModelNotFound, "loading model: %v", err)
	}
	return model
}
