package config

import (
	"github.com/MewKitBit/Solaris/internal/farm"
	"github.com/MewKitBit/Solaris/internal/panel"
)

// DefaultScenario mirrors the farm and panel runtime defaults so a
// minimal scenario file stays valid. Keys a file does name replace these
// verbatim, including explicit zeros such as failure_rate = 0.
func DefaultScenario() ScenarioConfig {
	fc := farm.DefaultConfig()
	return ScenarioConfig{
		Name: "solaris",
		Farm: FarmConfig{
			UnitCount:       fc.UnitCount,
			SoilingMu:       fc.SoilingMu,
			SoilingSigma:    fc.SoilingSigma,
			ReplacementDays: fc.ReplacementDays,
			RandPolicy:      string(fc.RandPolicy),
			Seed:            fc.Seed,
		},
		Unit:   unitConfig(fc.Unit),
		Series: SeriesConfig{Hours: 24, PeakWatts: 1000},
	}
}

func unitConfig(p panel.Params) UnitConfig {
	return UnitConfig{
		MaxOutputWatts:         p.MaxOutput,
		Fluctuation:            p.Fluctuation,
		FailureRate:            p.FailureRate,
		FailureProgressionRate: p.FailureProgressionRate,
		FirstYearDegradation:   p.FirstYearDegradation,
		AnnualDegradation:      p.AnnualDegradation,
		MinCleanliness:         p.MinCleanliness,
		OutputLaw:              string(p.OutputLaw),
		RainLaw:                string(p.RainLaw),
	}
}

// FarmFromScenario maps a resolved scenario onto the farm runtime config.
func FarmFromScenario(cfg ScenarioConfig) farm.Config {
	return farm.Config{
		UnitCount:       cfg.Farm.UnitCount,
		SoilingMu:       cfg.Farm.SoilingMu,
		SoilingSigma:    cfg.Farm.SoilingSigma,
		ReplacementDays: cfg.Farm.ReplacementDays,
		RandPolicy:      farm.RandPolicy(cfg.Farm.RandPolicy),
		Seed:            cfg.Farm.Seed,
		Unit:            unitParams(cfg.Unit),
	}
}

func unitParams(cfg UnitConfig) panel.Params {
	return panel.Params{
		MaxOutput:              cfg.MaxOutputWatts,
		Fluctuation:            cfg.Fluctuation,
		FailureRate:            cfg.FailureRate,
		FailureProgressionRate: cfg.FailureProgressionRate,
		FirstYearDegradation:   cfg.FirstYearDegradation,
		AnnualDegradation:      cfg.AnnualDegradation,
		MinCleanliness:         cfg.MinCleanliness,
		OutputLaw:              panel.OutputLaw(cfg.OutputLaw),
		RainLaw:                panel.RainLaw(cfg.RainLaw),
	}
}
