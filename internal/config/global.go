package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GlobalConfig represents configuration stored in ~/.config/gnps/config.yml.
type GlobalConfig struct {
	PubChemURL       string  `yaml:"pubchem_url,omitempty"`
	PubChemRateLimit float64 `yaml:"pubchem_rate_limit,omitempty"` // requests per second
	LogLevel         string  `yaml:"log_level,omitempty"`
	DefaultRepo      string  `yaml:"default_repo,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "gnps"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/gnps/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	path := GlobalConfigPath()
	if path == "" {
		return &GlobalConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, nil
		}
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}
	if cfg.PubChemRateLimit < 0 {
		return nil, fmt.Errorf("invalid pubchem_rate_limit: %g", cfg.PubChemRateLimit)
	}

	if cfg.DefaultRepo != "" {
		cfg.DefaultRepo = ExpandPath(cfg.DefaultRepo)
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// GetPubChemURL returns the PubChem base URL: PUBCHEM_URL, then global config.
// Empty means the client default.
func GetPubChemURL() string {
	if v := os.Getenv("PUBCHEM_URL"); v != "" {
		return v
	}
	cfg, err := LoadGlobalConfig()
	if err != nil {
		return ""
	}
	return cfg.PubChemURL
}

// GetPubChemRateLimit returns the configured request rate, or 0 for the client default.
func GetPubChemRateLimit() float64 {
	cfg, err := LoadGlobalConfig()
	if err != nil {
		return 0
	}
	return cfg.PubChemRateLimit
}

// GetLogLevel returns the configured log level.
func GetLogLevel() string {
	cfg, err := LoadGlobalConfig()
	if err != nil {
		return ""
	}
	return cfg.LogLevel
}

// GetDefaultRepo returns the repository used when none is found from the working directory.
func GetDefaultRepo() string {
	cfg, err := LoadGlobalConfig()
	if err != nil {
		return ""
	}
	return cfg.DefaultRepo
}

// HelpfulConfigMessage returns a hint for when no repository can be found.
func HelpfulConfigMessage() string {
	configPath := GlobalConfigPath()
	return fmt.Sprintf(`No gnps repository found.

Run 'gnps init' in a directory, or create %s to set a default:
  mkdir -p %s
  echo 'default_repo: /path/to/your/repo' > %s`,
		configPath,
		filepath.Dir(configPath),
		configPath)
}
