package observability

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/sqlflow/sqlflow/internal/plan"
)

func TestMetricsRegistryAggregatesPerKind(t *testing.T) {
	r := NewMetricsRegistry()
	r.Record(plan.TypeLoad, false, 2*time.Second, 100)
	r.Record(plan.TypeLoad, false, 2*time.Second, 50)
	r.Record(plan.TypeLoad, true, 1*time.Second, 0)

	m := r.Snapshot(plan.TypeLoad)
	assert.Equal(t, int64(3), m.CallCount)
	assert.Equal(t, int64(1), m.FailureCount)
	assert.Equal(t, int64(150), m.TotalRows)
	assert.Equal(t, float64(2)/3, m.SuccessRate())
	assert.Equal(t, (5*time.Second)/3, m.AvgDuration())
}

func TestMetricsRegistrySeparatesKinds(t *testing.T) {
	r := NewMetricsRegistry()
	r.Record(plan.TypeLoad, false, time.Second, 10)
	r.Record(plan.TypeTransform, false, time.Second, 20)

	assert.Equal(t, int64(1), r.Snapshot(plan.TypeLoad).CallCount)
	assert.Equal(t, int64(1), r.Snapshot(plan.TypeTransform).CallCount)
	assert.Equal(t, int64(2), r.Overall().CallCount)
}

func TestKindMetricsThroughput(t *testing.T) {
	m := KindMetrics{TotalRows: 100, TotalDuration: 2 * time.Second}
	assert.Equal(t, float64(50), m.ThroughputRowsPerSecond())
}

func TestKindMetricsZeroValueDefaults(t *testing.T) {
	m := KindMetrics{}
	assert.Equal(t, float64(1), m.SuccessRate())
	assert.Equal(t, time.Duration(0), m.AvgDuration())
	assert.Equal(t, float64(0), m.ThroughputRowsPerSecond())
}
