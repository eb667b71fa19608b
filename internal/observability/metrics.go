// Package observability turns the executor's StepEvent stream into
// per-step-kind metrics and threshold alerts (spec §4.5), grounded on the
// teacher's explain.PerformanceEvaluation (explain/analyzer.go): a
// duration-threshold classifier generalized here from one query plan to
// aggregate counters across an entire run.
package observability

import (
	"sync"
	"time"

	"github.com/sqlflow/sqlflow/internal/plan"
)

// KindMetrics aggregates every event observed for one step kind.
type KindMetrics struct {
	CallCount     int64
	FailureCount  int64
	TotalDuration time.Duration
	TotalRows     int64
}

// SuccessRate returns the fraction of calls that did not fail, or 1 when no
// calls have been observed yet.
func (m KindMetrics) SuccessRate() float64 {
	if m.CallCount == 0 {
		return 1
	}

	return float64(m.CallCount-m.FailureCount) / float64(m.CallCount)
}

// AvgDuration returns the mean step duration, or 0 when no calls have
// completed.
func (m KindMetrics) AvgDuration() time.Duration {
	if m.CallCount == 0 {
		return 0
	}

	return m.TotalDuration / time.Duration(m.CallCount)
}

// ThroughputRowsPerSecond returns TotalRows / TotalDuration, or 0 when no
// time has elapsed.
func (m KindMetrics) ThroughputRowsPerSecond() float64 {
	if m.TotalDuration <= 0 {
		return 0
	}

	return float64(m.TotalRows) / m.TotalDuration.Seconds()
}

// MetricsRegistry aggregates StepEvents per plan.StepType under a single
// lock (spec §5 "Metrics: guarded by a dedicated lock").
type MetricsRegistry struct {
	mu      sync.Mutex
	byKind  map[plan.StepType]*KindMetrics
	overall KindMetrics
}

// NewMetricsRegistry returns an empty MetricsRegistry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{byKind: map[plan.StepType]*KindMetrics{}}
}

// Record folds one completed (success or failure) event into the registry.
// Start events carry no duration/rows and are not recorded.
func (r *MetricsRegistry) Record(kind plan.StepType, failed bool, duration time.Duration, rows int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.byKind[kind]
	if !ok {
		m = &KindMetrics{}
		r.byKind[kind] = m
	}

	m.CallCount++
	r.overall.CallCount++

	if failed {
		m.FailureCount++
		r.overall.FailureCount++
	}

	m.TotalDuration += duration
	r.overall.TotalDuration += duration
	m.TotalRows += rows
	r.overall.TotalRows += rows
}

// Snapshot returns a copy of the metrics for kind, or the zero value if
// nothing has been recorded for it yet.
func (r *MetricsRegistry) Snapshot(kind plan.StepType) KindMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.byKind[kind]; ok {
		return *m
	}

	return KindMetrics{}
}

// Overall returns the metrics aggregated across every step kind.
func (r *MetricsRegistry) Overall() KindMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.overall
}
