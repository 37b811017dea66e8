package binlog

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// queueMetrics is the Prometheus view of one queue. Every queue owns its own set
// so several stores can live in one process.
type queueMetrics struct {
	set           *metrics.Set
	commits       *metrics.Counter
	failedCommits *metrics.Counter
	records       *metrics.Counter
	cleaned       *metrics.Counter
}

func newQueueMetrics(q *Queue) *queueMetrics {
	s := metrics.NewSet()
	m := &queueMetrics{
		set:           s,
		commits:       s.NewCounter("lvdb_binlog_commits_total"),
		failedCommits: s.NewCounter("lvdb_binlog_commit_failures_total"),
		records:       s.NewCounter("lvdb_binlog_records_total"),
		cleaned:       s.NewCounter("lvdb_binlog_cleaned_records_total"),
	}
	s.NewGauge("lvdb_binlog_min_seq", func() float64 {
		return float64(q.MinSeq())
	})
	s.NewGauge("lvdb_binlog_max_seq", func() float64 {
		return float64(q.MaxSeq())
	})
	s.NewGauge("lvdb_binlog_size", func() float64 {
		return float64(q.Len())
	})
	s.NewGauge("lvdb_binlog_capacity", func() float64 {
		return float64(q.capacity)
	})
	return m
}

// WriteMetrics writes the queue metrics in Prometheus text format
func (q *Queue) WriteMetrics(w io.Writer) {
	q.metrics.set.WritePrometheus(w)
}
