package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "scenario":
		return scenarioTemplate, nil
	case "stress":
		return stressTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const scenarioTemplate = `name = "desert-south-40"

[farm]
unit_count = 40
soiling_mu = 0.001
soiling_sigma = 0.0015
replacement_days = 3
rand_policy = "owned"
seed = 1

[unit]
max_output_watts = 300.0
fluctuation = 0.05
failure_rate = 0.00001
failure_progression_rate = 0.0001
first_year_degradation = 0.02
annual_degradation = 0.005
min_cleanliness = 0.8
output_law = "complement"
rain_law = "saturating"

[series]
path = ""
hours = 168
peak_watts = 1000.0
`

const stressTemplate = `name = "stress-high-failure"

[farm]
unit_count = 200
soiling_mu = 0.004
soiling_sigma = 0.003
replacement_days = 1
rand_policy = "shared"
seed = 7

[unit]
max_output_watts = 300.0
fluctuation = 0.10
failure_rate = 0.0005
failure_progression_rate = 0.001
first_year_degradation = 0.03
annual_degradation = 0.008
min_cleanliness = 0.8
output_law = "complement"
rain_law = "saturating"

[series]
path = ""
hours = 720
peak_watts = 1000.0
`
