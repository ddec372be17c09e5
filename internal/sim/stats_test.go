package sim

import (
	"math"
	"testing"

	"github.com/MewKitBit/Solaris/internal/testutil/testlog"
)

func TestComputeOutputStats(t *testing.T) {
	testlog.Start(t)

	outputs := []float64{120, 80, 100, 60, 140}
	got := ComputeOutputStats(outputs)

	// Hand-computed: mean 100, sample std sqrt(1000).
	want := OutputStats{
		MeanWatts: 100,
		MinWatts:  60,
		MaxWatts:  140,
		StdWatts:  math.Sqrt(1000),
		SumWatts:  500,
	}
	check := func(name string, got, want float64) {
		if math.Abs(got-want) > 1e-9 {
			t.Fatalf("%s got=%v want=%v", name, got, want)
		}
	}
	check("mean", got.MeanWatts, want.MeanWatts)
	check("min", got.MinWatts, want.MinWatts)
	check("max", got.MaxWatts, want.MaxWatts)
	check("std", got.StdWatts, want.StdWatts)
	check("sum", got.SumWatts, want.SumWatts)
}

func TestComputeOutputStatsDegenerate(t *testing.T) {
	testlog.Start(t)

	if got := ComputeOutputStats(nil); got != (OutputStats{}) {
		t.Fatalf("empty stats=%+v, want zero value", got)
	}

	got := ComputeOutputStats([]float64{42})
	if got.MeanWatts != 42 || got.MinWatts != 42 || got.MaxWatts != 42 ||
		got.SumWatts != 42 || got.StdWatts != 0 {
		t.Fatalf("single stats=%+v", got)
	}
}
