package chart

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/beaconradar/internal/history"
)

// Summary describes a window of samples. Signal statistics cover only the
// samples where the device was active.
type Summary struct {
	Samples int     `json:"samples"`
	Active  int     `json:"active"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"stddev"`
	Median  float64 `json:"median"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Summarize computes a Summary of samples.
func Summarize(samples []int) Summary {
	s := Summary{Samples: len(samples)}
	active := make([]float64, 0, len(samples))
	for _, v := range samples {
		if v > history.InactiveSample {
			active = append(active, float64(v))
		}
	}
	s.Active = len(active)
	if len(active) == 0 {
		return s
	}

	s.Min = floats.Min(active)
	s.Max = floats.Max(active)
	if len(active) == 1 {
		s.Mean = active[0]
		s.Median = active[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(active, nil)

	sorted := append([]float64(nil), active...)
	floats.Argsort(sorted, make([]int, len(sorted)))
	s.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	return s
}
