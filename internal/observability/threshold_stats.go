// Package observability provides logging, tracing and usage statistics for
// the dashboard.
package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// ThresholdStats tracks which metrics are queried and at which thresholds.
type ThresholdStats struct {
	mu      sync.RWMutex
	metrics map[string]*MetricStats
	window  time.Duration
	now     func() time.Time
}

// MetricStats holds usage statistics for one metric.
type MetricStats struct {
	Metric     string           `json:"metric"`
	Frequency  int64            `json:"frequency"`
	LastSeen   time.Time        `json:"last_seen"`
	Min        float64          `json:"min"`
	Max        float64          `json:"max"`
	Thresholds map[string]int64 `json:"thresholds"` // formatted threshold → count
}

// ThresholdCount is how often one threshold value was requested.
type ThresholdCount struct {
	Threshold string `json:"threshold"`
	Count     int64  `json:"count"`
}

// NewThresholdStats creates a tracker whose entries expire after window
// without use.
func NewThresholdStats(window time.Duration) *ThresholdStats {
	return &ThresholdStats{
		metrics: make(map[string]*MetricStats),
		window:  window,
		now:     time.Now,
	}
}

// Record counts one query of metric at threshold. Safe for concurrent use.
func (s *ThresholdStats) Record(metric string, threshold float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, exists := s.metrics[metric]
	if !exists {
		stats = &MetricStats{
			Metric:     metric,
			Min:        threshold,
			Max:        threshold,
			Thresholds: make(map[string]int64),
		}
		s.metrics[metric] = stats
	}

	stats.Frequency++
	stats.LastSeen = s.now()
	if threshold < stats.Min {
		stats.Min = threshold
	}
	if threshold > stats.Max {
		stats.Max = threshold
	}
	stats.Thresholds[strconv.FormatFloat(threshold, 'f', -1, 64)]++
}

// TopMetrics returns copies of the n most queried metrics, most frequent
// first. Ties are ordered by metric name.
func (s *ThresholdStats) TopMetrics(n int) []MetricStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || len(s.metrics) == 0 {
		return []MetricStats{}
	}

	out := make([]MetricStats, 0, len(s.metrics))
	for _, m := range s.metrics {
		cp := *m
		cp.Thresholds = make(map[string]int64, len(m.Thresholds))
		for k, v := range m.Thresholds {
			cp.Thresholds[k] = v
		}
		out = append(out, cp)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Metric < out[j].Metric
	})

	if n > len(out) {
		n = len(out)
	}
	return out[:n]
}

// TopThresholds returns the n most requested thresholds for metric.
func (s *ThresholdStats) TopThresholds(metric string, n int) []ThresholdCount {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats, ok := s.metrics[metric]
	if !ok || n <= 0 {
		return []ThresholdCount{}
	}

	out := make([]ThresholdCount, 0, len(stats.Thresholds))
	for k, v := range stats.Thresholds {
		out = append(out, ThresholdCount{Threshold: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Threshold < out[j].Threshold
	})

	if n > len(out) {
		n = len(out)
	}
	return out[:n]
}

// Prune removes metrics not queried within the window.
func (s *ThresholdStats) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.window)
	for metric, stats := range s.metrics {
		if stats.LastSeen.Before(cutoff) {
			delete(s.metrics, metric)
		}
	}
}
