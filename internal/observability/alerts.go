package observability

import (
	"fmt"
	"time"
)

// Severity is an alert's urgency (spec §4.5).
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Alert is a threshold-triggered notice surfaced alongside metrics.
type Alert struct {
	Kind             string
	Severity         Severity
	Component        string
	Message          string
	Timestamp        time.Time
	SuggestedActions []string
}

// AlertThresholds configures the Alerter (spec §4.5 "configurable duration
// budget" / "failure rate threshold").
type AlertThresholds struct {
	SlowStepDuration    time.Duration
	CriticalFailureRate float64 // e.g. 0.5 == 50%
	MinCallsForRate     int64   // suppress failure-rate alerts until this many calls
}

// DefaultThresholds mirrors the teacher's explain analyzer defaults: a
// generous duration budget and a failure rate that only fires once it is
// unambiguous (at least a handful of calls observed).
func DefaultThresholds() AlertThresholds {
	return AlertThresholds{
		SlowStepDuration:    30 * time.Second,
		CriticalFailureRate: 0.5,
		MinCallsForRate:     3,
	}
}

// Alerter evaluates StepEvents and the running MetricsRegistry against
// AlertThresholds and emits Alert values.
type Alerter struct {
	thresholds AlertThresholds
	metrics    *MetricsRegistry
}

// NewAlerter returns an Alerter reading from metrics.
func NewAlerter(metrics *MetricsRegistry, thresholds AlertThresholds) *Alerter {
	return &Alerter{thresholds: thresholds, metrics: metrics}
}

// CheckStep returns a slow_execution Alert if duration exceeds the
// configured budget for a completed (non-start) step, or nil.
func (a *Alerter) CheckStep(component string, duration time.Duration, now time.Time) *Alert {
	if a.thresholds.SlowStepDuration <= 0 || duration <= a.thresholds.SlowStepDuration {
		return nil
	}

	return &Alert{
		Kind:      "slow_execution",
		Severity:  SeverityWarning,
		Component: component,
		Message:   fmt.Sprintf("%s took %s, exceeding the %s budget", component, duration, a.thresholds.SlowStepDuration),
		Timestamp: now,
		SuggestedActions: []string{
			"check upstream source latency",
			"consider raising the step timeout or splitting the step",
		},
	}
}

// CheckOverallFailureRate returns a failure_rate_critical Alert once enough
// calls have been observed and the overall failure rate exceeds the
// configured threshold, or nil.
func (a *Alerter) CheckOverallFailureRate(now time.Time) *Alert {
	overall := a.metrics.Overall()
	if overall.CallCount < a.thresholds.MinCallsForRate {
		return nil
	}

	rate := 1 - overall.SuccessRate()
	if rate <= a.thresholds.CriticalFailureRate {
		return nil
	}

	return &Alert{
		Kind:      "failure_rate_critical",
		Severity:  SeverityCritical,
		Component: "pipeline",
		Message:   fmt.Sprintf("failure rate %.0f%% exceeds the %.0f%% critical threshold", rate*100, a.thresholds.CriticalFailureRate*100),
		Timestamp: now,
		SuggestedActions: []string{
			"inspect the failed steps' error messages",
			"consider switching to fail_fast to stop further damage",
		},
	}
}
