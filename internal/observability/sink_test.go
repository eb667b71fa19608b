package observability

import (
	"sync"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/rs/zerolog"

	"github.com/sqlflow/sqlflow/internal/executor"
	"github.com/sqlflow/sqlflow/internal/plan"
)

type recordingAlertSink struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recordingAlertSink) Notify(a Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.alerts = append(r.alerts, a)
}

func (r *recordingAlertSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.alerts)
}

func TestSinkRecordsMetricsOnSuccessAndFailure(t *testing.T) {
	sink := NewSink(zerolog.Nop(), nil)

	sink.Emit(executor.StepEvent{Kind: "start", StepKind: plan.TypeLoad, StepID: "load_users"})
	sink.Emit(executor.StepEvent{Kind: "success", StepKind: plan.TypeLoad, StepID: "load_users", Duration: time.Second, RowsAffected: 10})
	sink.Emit(executor.StepEvent{Kind: "failure", StepKind: plan.TypeLoad, StepID: "load_users", Duration: time.Second, Message: "boom"})

	m := sink.Metrics().Snapshot(plan.TypeLoad)
	assert.Equal(t, int64(2), m.CallCount)
	assert.Equal(t, int64(1), m.FailureCount)
	assert.Equal(t, int64(10), m.TotalRows)
}

func TestSinkFiresSlowExecutionAlert(t *testing.T) {
	alerts := &recordingAlertSink{}
	sink := NewSink(zerolog.Nop(), alerts)
	sink.alerter = NewAlerter(sink.metrics, AlertThresholds{SlowStepDuration: time.Millisecond})

	sink.Emit(executor.StepEvent{Kind: "success", StepKind: plan.TypeTransform, StepID: "transform_adults", Duration: time.Second, Timestamp: time.Now()})

	assert.Equal(t, 1, alerts.count())
	assert.Equal(t, "slow_execution", alerts.alerts[0].Kind)
}

func TestSinkFiresFailureRateAlertOnce(t *testing.T) {
	alerts := &recordingAlertSink{}
	sink := NewSink(zerolog.Nop(), alerts)
	sink.alerter = NewAlerter(sink.metrics, AlertThresholds{CriticalFailureRate: 0.1, MinCallsForRate: 1, SlowStepDuration: time.Hour})

	sink.Emit(executor.StepEvent{Kind: "failure", StepKind: plan.TypeLoad, StepID: "a", Message: "boom", Timestamp: time.Now()})
	sink.Emit(executor.StepEvent{Kind: "failure", StepKind: plan.TypeLoad, StepID: "b", Message: "boom", Timestamp: time.Now()})

	assert.Equal(t, 1, alerts.count())
	assert.Equal(t, "failure_rate_critical", alerts.alerts[0].Kind)
}

func TestSinkIgnoresStartEventsForMetrics(t *testing.T) {
	sink := NewSink(zerolog.Nop(), nil)
	sink.Emit(executor.StepEvent{Kind: "start", StepKind: plan.TypeLoad, StepID: "load_users"})

	assert.Equal(t, int64(0), sink.Metrics().Snapshot(plan.TypeLoad).CallCount)
}
