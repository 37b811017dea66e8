package replication

import (
	"io"

	"github.com/rcrowley/go-metrics"
)

// driverStats counts the records handled by one driver
type driverStats struct {
	applied metrics.Meter
	skipped metrics.Meter
	failed  metrics.Meter
	latency metrics.Timer
}

func newDriverStats(r metrics.Registry, prefix string) *driverStats {
	return &driverStats{
		applied: metrics.GetOrRegisterMeter(prefix+".applied", r),
		skipped: metrics.GetOrRegisterMeter(prefix+".skipped", r),
		failed:  metrics.GetOrRegisterMeter(prefix+".failed", r),
		latency: metrics.GetOrRegisterTimer(prefix+".apply", r),
	}
}

// Stats is a snapshot of the counters of a driver
type Stats struct {
	Applied     int64   `json:"applied"`
	Skipped     int64   `json:"skipped"`
	Failed      int64   `json:"failed"`
	Rate1       float64 `json:"rate_1m"`
	MeanApplyMs float64 `json:"mean_apply_ms"`
}

func (s *driverStats) snapshot() Stats {
	return Stats{
		Applied:     s.applied.Count(),
		Skipped:     s.skipped.Count(),
		Failed:      s.failed.Count(),
		Rate1:       s.applied.Rate1(),
		MeanApplyMs: s.latency.Mean() / 1e6,
	}
}

// writeRegistry dumps all metrics of r in the go-metrics text format
func writeRegistry(r metrics.Registry, w io.Writer) {
	metrics.WriteOnce(r, w)
}
