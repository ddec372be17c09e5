package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ScenarioConfig is the resolved description of one simulated farm run.
// Every field carries a concrete value; LoadScenario overlays the on-disk
// file onto DefaultScenario so absent keys keep their defaults while
// explicit zero values survive.
type ScenarioConfig struct {
	Name   string
	Farm   FarmConfig
	Unit   UnitConfig
	Series SeriesConfig
}

type FarmConfig struct {
	UnitCount       int
	SoilingMu       float64
	SoilingSigma    float64
	ReplacementDays int
	RandPolicy      string
	Seed            int64
}

type UnitConfig struct {
	MaxOutputWatts         float64
	Fluctuation            float64
	FailureRate            float64
	FailureProgressionRate float64
	FirstYearDegradation   float64
	AnnualDegradation      float64
	MinCleanliness         float64
	OutputLaw              string
	RainLaw                string
}

// SeriesConfig selects the ideal-power input. Path points at a
// timestamp,ideal_watts CSV; when empty a synthetic clear-sky series of
// Hours length with PeakWatts amplitude is generated instead.
type SeriesConfig struct {
	Path      string
	Hours     int
	PeakWatts float64
}

// scenarioFile is the raw on-disk shape. Pointer fields distinguish an
// absent key from an explicit zero, so "failure_rate = 0" means what it
// says instead of falling back to the default.
type scenarioFile struct {
	Name   string     `toml:"name"`
	Farm   farmFile   `toml:"farm"`
	Unit   unitFile   `toml:"unit"`
	Series seriesFile `toml:"series"`
}

type farmFile struct {
	UnitCount       *int     `toml:"unit_count"`
	SoilingMu       *float64 `toml:"soiling_mu"`
	SoilingSigma    *float64 `toml:"soiling_sigma"`
	ReplacementDays *int     `toml:"replacement_days"`
	RandPolicy      *string  `toml:"rand_policy"`
	Seed            *int64   `toml:"seed"`
}

type unitFile struct {
	MaxOutputWatts         *float64 `toml:"max_output_watts"`
	Fluctuation            *float64 `toml:"fluctuation"`
	FailureRate            *float64 `toml:"failure_rate"`
	FailureProgressionRate *float64 `toml:"failure_progression_rate"`
	FirstYearDegradation   *float64 `toml:"first_year_degradation"`
	AnnualDegradation      *float64 `toml:"annual_degradation"`
	MinCleanliness         *float64 `toml:"min_cleanliness"`
	OutputLaw              *string  `toml:"output_law"`
	RainLaw                *string  `toml:"rain_law"`
}

type seriesFile struct {
	Path      *string  `toml:"path"`
	Hours     *int     `toml:"hours"`
	PeakWatts *float64 `toml:"peak_watts"`
}

func LoadScenario(path string) (ScenarioConfig, error) {
	var raw scenarioFile
	if err := loadToml(path, &raw); err != nil {
		return ScenarioConfig{}, err
	}
	cfg := overlayScenario(DefaultScenario(), raw)
	if err := ValidateScenario(cfg); err != nil {
		return ScenarioConfig{}, err
	}
	return cfg, nil
}

func overlayScenario(cfg ScenarioConfig, raw scenarioFile) ScenarioConfig {
	if raw.Name != "" {
		cfg.Name = raw.Name
	}

	setInt(&cfg.Farm.UnitCount, raw.Farm.UnitCount)
	setFloat(&cfg.Farm.SoilingMu, raw.Farm.SoilingMu)
	setFloat(&cfg.Farm.SoilingSigma, raw.Farm.SoilingSigma)
	setInt(&cfg.Farm.ReplacementDays, raw.Farm.ReplacementDays)
	setString(&cfg.Farm.RandPolicy, raw.Farm.RandPolicy)
	if raw.Farm.Seed != nil {
		cfg.Farm.Seed = *raw.Farm.Seed
	}

	setFloat(&cfg.Unit.MaxOutputWatts, raw.Unit.MaxOutputWatts)
	setFloat(&cfg.Unit.Fluctuation, raw.Unit.Fluctuation)
	setFloat(&cfg.Unit.FailureRate, raw.Unit.FailureRate)
	setFloat(&cfg.Unit.FailureProgressionRate, raw.Unit.FailureProgressionRate)
	setFloat(&cfg.Unit.FirstYearDegradation, raw.Unit.FirstYearDegradation)
	setFloat(&cfg.Unit.AnnualDegradation, raw.Unit.AnnualDegradation)
	setFloat(&cfg.Unit.MinCleanliness, raw.Unit.MinCleanliness)
	setString(&cfg.Unit.OutputLaw, raw.Unit.OutputLaw)
	setString(&cfg.Unit.RainLaw, raw.Unit.RainLaw)

	setString(&cfg.Series.Path, raw.Series.Path)
	setInt(&cfg.Series.Hours, raw.Series.Hours)
	setFloat(&cfg.Series.PeakWatts, raw.Series.PeakWatts)

	return cfg
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("scenario load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("scenario parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateScenario(cfg ScenarioConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("scenario missing name")
	}
	if err := FarmFromScenario(cfg).Validate(); err != nil {
		return fmt.Errorf("scenario invalid: %w", err)
	}
	if err := ValidateSeries(cfg.Series); err != nil {
		return fmt.Errorf("series invalid: %w", err)
	}
	return nil
}

func ValidateSeries(cfg SeriesConfig) error {
	if strings.TrimSpace(cfg.Path) != "" {
		return nil
	}
	if cfg.Hours <= 0 {
		return fmt.Errorf("hours must be positive for a synthetic series")
	}
	if cfg.PeakWatts <= 0 {
		return fmt.Errorf("peak_watts must be positive for a synthetic series")
	}
	return nil
}
