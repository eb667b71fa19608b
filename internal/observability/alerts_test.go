package observability

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/sqlflow/sqlflow/internal/plan"
)

func TestAlerterCheckStepFiresAboveThreshold(t *testing.T) {
	metrics := NewMetricsRegistry()
	a := NewAlerter(metrics, AlertThresholds{SlowStepDuration: time.Second})

	alert := a.CheckStep("load_users", 2*time.Second, time.Now())
	assert.NotZero(t, alert)
	assert.Equal(t, "slow_execution", alert.Kind)
	assert.Equal(t, SeverityWarning, alert.Severity)
}

func TestAlerterCheckStepSilentBelowThreshold(t *testing.T) {
	metrics := NewMetricsRegistry()
	a := NewAlerter(metrics, AlertThresholds{SlowStepDuration: time.Minute})

	alert := a.CheckStep("load_users", time.Second, time.Now())
	assert.Zero(t, alert)
}

func TestAlerterFailureRateRequiresMinimumCalls(t *testing.T) {
	metrics := NewMetricsRegistry()
	a := NewAlerter(metrics, AlertThresholds{CriticalFailureRate: 0.5, MinCallsForRate: 5})

	metrics.Record(plan.TypeLoad, true, time.Second, 0)
	assert.Zero(t, a.CheckOverallFailureRate(time.Now()))
}

func TestAlerterFailureRateFiresOnceThresholdCrossed(t *testing.T) {
	metrics := NewMetricsRegistry()
	a := NewAlerter(metrics, AlertThresholds{CriticalFailureRate: 0.5, MinCallsForRate: 2})

	metrics.Record(plan.TypeLoad, true, time.Second, 0)
	metrics.Record(plan.TypeLoad, true, time.Second, 0)

	alert := a.CheckOverallFailureRate(time.Now())
	assert.NotZero(t, alert)
	assert.Equal(t, "failure_rate_critical", alert.Kind)
	assert.Equal(t, SeverityCritical, alert.Severity)
}
