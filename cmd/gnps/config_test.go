package main

import (
	"testing"

	"github.com/iomega/spec2vec-gnps/internal/config"
)

func TestSetConfigValue(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"n_decimals", "3", "3"},
		{"intensity_weighting_power", "1", "1"},
		{"cosine_tolerance", "0.01", "0.01"},
		{"mass_tolerance_type", "Dalton", "Dalton"},
		{"presearch", "precursor_mz, spec2vec-top5", "precursor_mz,spec2vec-top5"},
		{"include_scores", "cosine,,modcosine", "cosine,modcosine"},
		{"ignore_non_annotated", "false", "false"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := config.Default()
			if err := setConfigValue(cfg, tt.key, tt.value); err != nil {
				t.Fatalf("setConfigValue() error = %v", err)
			}
			got, ok := configValue(cfg, tt.key)
			if !ok || got != tt.want {
				t.Errorf("configValue() = %q, %v; want %q", got, ok, tt.want)
			}
		})
	}
}

func TestSetConfigValue_Errors(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown key", "pdf_root", "/tmp"},
		{"bad int", "n_decimals", "two"},
		{"bad float", "mass_tolerance", "x"},
		{"bad bool", "ignore_non_annotated", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := setConfigValue(config.Default(), tt.key, tt.value); err == nil {
				t.Error("setConfigValue() expected error")
			}
		})
	}
}

func TestConfigKeys_AllReadable(t *testing.T) {
	cfg := config.Default()
	for _, key := range configKeys {
		if _, ok := configValue(cfg, key); !ok {
			t.Errorf("configValue(%q) not handled", key)
		}
	}
}
