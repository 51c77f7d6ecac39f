package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
const (
	attrOperation = "operation"
	attrResult    = "result"
)

// Metrics records call-governor activity. The zero value is a no-op
// recorder, so callers never need nil checks.
type Metrics struct {
	apiCallsTotal        metric.Int64Counter
	quotaRejectionsTotal metric.Int64Counter
	callDuration         metric.Float64Histogram
}

// NewMetrics creates a Metrics instance with all instruments registered on
// the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.apiCallsTotal, err = meter.Int64Counter(
		"gmail_api_calls_total",
		metric.WithDescription("Total number of governed Gmail API calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_calls_total counter: %w", err)
	}

	m.quotaRejectionsTotal, err = meter.Int64Counter(
		"gmail_quota_rejections_total",
		metric.WithDescription("Invocations rejected because the call budget was exhausted"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_quota_rejections_total counter: %w", err)
	}

	m.callDuration, err = meter.Float64Histogram(
		"gmail_api_call_duration_seconds",
		metric.WithDescription("Gmail API call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail_api_call_duration_seconds histogram: %w", err)
	}

	return m, nil
}

// RecordAPICall records one governed remote call and its duration.
func (m *Metrics) RecordAPICall(ctx context.Context, operation string, duration time.Duration, success bool) {
	if m.apiCallsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(attrOperation, operation),
		resultAttr(success),
	)
	m.apiCallsTotal.Add(ctx, 1, attrs)
	m.callDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordQuotaRejection records an invocation refused before reaching the
// transport.
func (m *Metrics) RecordQuotaRejection(ctx context.Context, operation string) {
	if m.quotaRejectionsTotal == nil {
		return
	}
	m.quotaRejectionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOperation, operation),
	))
}
