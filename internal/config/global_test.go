package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGlobalConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := GlobalConfigPath(); got != "/custom/config/gnps/config.yml" {
		t.Errorf("GlobalConfigPath() = %q", got)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}
	want := filepath.Join(home, ".config", "gnps", "config.yml")
	if got := GlobalConfigPath(); got != want {
		t.Errorf("GlobalConfigPath() = %q, want %q", got, want)
	}
}

func TestLoadGlobalConfig_NotFound(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := LoadGlobalConfig()
	if err != nil {
		t.Fatalf("LoadGlobalConfig() error = %v", err)
	}
	if cfg.PubChemURL != "" || cfg.PubChemRateLimit != 0 {
		t.Errorf("LoadGlobalConfig() = %+v, want empty", cfg)
	}
}

func writeGlobalConfig(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	os.MkdirAll(filepath.Join(dir, GlobalConfigDir), 0755)
	if err := os.WriteFile(filepath.Join(dir, GlobalConfigDir, GlobalConfigFile), []byte(content), 0644); err != nil {
		t.Fatalf("writing global config: %v", err)
	}
}

func TestLoadGlobalConfig_Values(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()
	t.Setenv("PUBCHEM_URL", "")
	writeGlobalConfig(t, "pubchem_url: http://localhost:8080\npubchem_rate_limit: 2.5\nlog_level: debug\ndefault_repo: /data/gnps\n")

	if got := GetPubChemURL(); got != "http://localhost:8080" {
		t.Errorf("GetPubChemURL() = %q", got)
	}
	if got := GetPubChemRateLimit(); got != 2.5 {
		t.Errorf("GetPubChemRateLimit() = %v", got)
	}
	if got := GetLogLevel(); got != "debug" {
		t.Errorf("GetLogLevel() = %q", got)
	}
	if got := GetDefaultRepo(); got != "/data/gnps" {
		t.Errorf("GetDefaultRepo() = %q", got)
	}

	t.Setenv("PUBCHEM_URL", "http://env")
	if got := GetPubChemURL(); got != "http://env" {
		t.Errorf("GetPubChemURL() with env = %q", got)
	}
}

func TestLoadGlobalConfig_Invalid(t *testing.T) {
	ResetGlobalConfigCache()
	defer ResetGlobalConfigCache()

	writeGlobalConfig(t, "pubchem_rate_limit: -1\n")
	if _, err := LoadGlobalConfig(); err == nil {
		t.Error("LoadGlobalConfig() expected error for negative rate")
	}

	writeGlobalConfig(t, "pubchem_url: [unclosed\n")
	if _, err := LoadGlobalConfig(); err == nil {
		t.Error("LoadGlobalConfig() expected error for bad YAML")
	}
}
