package sim

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// OutputStats summarizes per-unit realized outputs for one step.
type OutputStats struct {
	MeanWatts float64 `json:"mean_watts"`
	MinWatts  float64 `json:"min_watts"`
	MaxWatts  float64 `json:"max_watts"`
	StdWatts  float64 `json:"std_watts"`
	SumWatts  float64 `json:"sum_watts"`
}

// ComputeOutputStats reduces the per-unit outputs of one step. An empty
// slice yields the zero value.
func ComputeOutputStats(outputs []float64) OutputStats {
	if len(outputs) == 0 {
		return OutputStats{}
	}
	s := OutputStats{
		MeanWatts: stat.Mean(outputs, nil),
		MinWatts:  floats.Min(outputs),
		MaxWatts:  floats.Max(outputs),
		SumWatts:  floats.Sum(outputs),
	}
	if len(outputs) > 1 {
		s.StdWatts = stat.StdDev(outputs, nil)
	}
	return s
}
