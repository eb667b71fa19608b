package observability

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sqlflow/sqlflow/internal/executor"
)

// Sink implements executor.EventSink: it logs every event via zerolog,
// folds success/failure events into a MetricsRegistry, and raises Alerts
// through AlertSink when thresholds are crossed. All mutation is serialized
// by MetricsRegistry's own lock plus mu below for alert de-duplication
// bookkeeping.
type Sink struct {
	mu              sync.Mutex
	criticalAlerted bool
	log             zerolog.Logger
	metrics         *MetricsRegistry
	alerter         *Alerter
	alerts          AlertSink
}

// AlertSink receives Alerts as they fire. A nil AlertSink silently drops
// them (metrics/logging still happen).
type AlertSink interface {
	Notify(Alert)
}

// AlertSinkFunc adapts a function to an AlertSink.
type AlertSinkFunc func(Alert)

func (f AlertSinkFunc) Notify(a Alert) { f(a) }

// NewSink wires a zerolog logger to a fresh MetricsRegistry and Alerter
// using DefaultThresholds. Pass alerts=nil to discard alerts.
func NewSink(log zerolog.Logger, alerts AlertSink) *Sink {
	metrics := NewMetricsRegistry()

	return &Sink{
		log:     log,
		metrics: metrics,
		alerter: NewAlerter(metrics, DefaultThresholds()),
		alerts:  alerts,
	}
}

// Metrics returns the MetricsRegistry this Sink feeds, so callers can
// inspect it after a run completes (e.g. for a summary report).
func (s *Sink) Metrics() *MetricsRegistry { return s.metrics }

// Emit implements executor.EventSink.
func (s *Sink) Emit(ev executor.StepEvent) {
	event := s.log.Info()
	if ev.Kind == "failure" {
		event = s.log.Error()
	}

	event.
		Str("event", ev.Kind).
		Str("step_id", ev.StepID).
		Str("step_kind", string(ev.StepKind)).
		Dur("duration", ev.Duration).
		Int64("rows_affected", ev.RowsAffected).
		Int64("bytes_processed", ev.BytesProcessed).
		Str("error_kind", ev.ErrorKind).
		Msg(s.message(ev))

	if ev.Kind == "start" {
		return
	}

	s.metrics.Record(ev.StepKind, ev.Kind == "failure", ev.Duration, ev.RowsAffected)

	s.checkAlerts(ev)
}

func (s *Sink) message(ev executor.StepEvent) string {
	if ev.Message != "" {
		return ev.Message
	}

	return "step " + ev.Kind
}

func (s *Sink) checkAlerts(ev executor.StepEvent) {
	if s.alerts == nil {
		return
	}

	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	if alert := s.alerter.CheckStep(ev.StepID, ev.Duration, now); alert != nil {
		s.alerts.Notify(*alert)
	}

	if alert := s.alerter.CheckOverallFailureRate(now); alert != nil {
		s.mu.Lock()
		alreadyFired := s.criticalAlerted
		s.criticalAlerted = true
		s.mu.Unlock()

		// Only the first crossing is notified; the rate rarely improves
		// mid-run and repeating it on every subsequent failure would spam
		// the alert sink.
		if !alreadyFired {
			s.alerts.Notify(*alert)
		}
	}
}
