package util

import (
	"math"
	"slices"

	"github.com/rcrowley/go-metrics"
)

// Stats summarizes a series of values
type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes the population statistics of values, zero for no values
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	s := Stats{Min: slices.Min(values), Max: slices.Max(values), MinMaxRatio: 1}
	for _, v := range values {
		s.Mean += v
	}
	s.Mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - s.Mean) * (v - s.Mean)
	}
	s.StdDeviation = math.Sqrt(variance / float64(len(values)))

	if s.Max > 0 {
		s.MinMaxRatio = s.Min / s.Max
	}
	return s
}

// DistributionStats rates how evenly sizes are spread over buckets such as pebble levels
type DistributionStats struct {
	Stats
	// DistributionQuality is 1 for equal buckets and approaches 0 for a single full bucket
	DistributionQuality float64 `json:"distribution_quality"`
}

func NewDistributionStats(sizes []float64) DistributionStats {
	stats := NewStats(sizes)

	var cv float64 // coefficient of variation
	if stats.Mean > 0 {
		cv = stats.StdDeviation / stats.Mean
	}

	return DistributionStats{
		Stats:               stats,
		DistributionQuality: (1-math.Min(1, cv))/2 + stats.MinMaxRatio/2,
	}
}

// ----------------------------------------------------------------------------
// Size sampling
// ----------------------------------------------------------------------------

// sizeReservoir bounds the memory of a SizeSample, later samples replace random earlier ones
const sizeReservoir = 1028

// SizeSample estimates the typical size of database entries from a sample of them.
// It is safe for concurrent use.
type SizeSample struct {
	h metrics.Histogram
}

func NewSizeSample() *SizeSample {
	return &SizeSample{h: metrics.NewHistogram(metrics.NewUniformSample(sizeReservoir))}
}

func (s *SizeSample) Add(size int) {
	s.h.Update(int64(size))
}

// Count returns the number of sizes added, including those dropped from the reservoir
func (s *SizeSample) Count() int64 {
	return s.h.Count()
}

func (s *SizeSample) Mean() int {
	return int(s.h.Mean())
}

func (s *SizeSample) Median() int {
	return int(s.h.Percentile(0.5))
}

// EstimateEntrySize weighs median and mean 60/40, which damps a few huge values,
// and adds the fixed per entry overhead of the engine
func (s *SizeSample) EstimateEntrySize(overhead int) int {
	if s.Count() == 0 {
		return overhead
	}
	return (s.Median()*60+s.Mean()*40)/100 + overhead
}
