package main

import (
	"testing"

	"github.com/iomega/spec2vec-gnps/internal/config"
	"github.com/iomega/spec2vec-gnps/internal/semantic"
)

func TestSettingsDrift(t *testing.T) {
	cfg := config.Default()
	idx := semantic.NewSemanticIndex("model.bin", 2)
	idx.NDecimals = cfg.NDecimals
	idx.IntensityWeightingPower = cfg.IntensityWeightingPower

	if drift := settingsDrift(idx, cfg); len(drift) != 0 {
		t.Errorf("settingsDrift() = %v, want none", drift)
	}

	idx.NDecimals = cfg.NDecimals + 1
	idx.IntensityWeightingPower = cfg.IntensityWeightingPower + 0.5
	if drift := settingsDrift(idx, cfg); len(drift) != 2 {
		t.Errorf("settingsDrift() = %v, want 2 entries", drift)
	}
}
