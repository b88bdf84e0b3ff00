package license

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const MeterName = "flux-keyauth/license"

// Metrics holds the license-specific OpenTelemetry instruments. All
// recording methods are nil-receiver safe so the engine can run without
// metrics in tests.
type Metrics struct {
	ValidationAttempts metric.Int64Counter
	ValidationSuccess  metric.Int64Counter
	ValidationFailures metric.Int64Counter
	ValidationDuration metric.Float64Histogram
	ActivationsCreated metric.Int64Counter
	StorageFaults      metric.Int64Counter
}

// NewMetrics creates the license instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.ValidationAttempts, err = meter.Int64Counter("license_validation_attempts_total",
		metric.WithDescription("Total license validation requests")); err != nil {
		return nil, fmt.Errorf("license: creating validation attempts counter: %w", err)
	}
	if m.ValidationSuccess, err = meter.Int64Counter("license_validation_success_total",
		metric.WithDescription("Validation requests that returned a success verdict")); err != nil {
		return nil, fmt.Errorf("license: creating validation success counter: %w", err)
	}
	if m.ValidationFailures, err = meter.Int64Counter("license_validation_failures_total",
		metric.WithDescription("Validation requests rejected by policy, labeled by reason")); err != nil {
		return nil, fmt.Errorf("license: creating validation failures counter: %w", err)
	}
	if m.ValidationDuration, err = meter.Float64Histogram("license_validation_duration_seconds",
		metric.WithDescription("Validation decision latency in seconds")); err != nil {
		return nil, fmt.Errorf("license: creating validation duration histogram: %w", err)
	}
	if m.ActivationsCreated, err = meter.Int64Counter("license_activations_created_total",
		metric.WithDescription("New machine bindings created")); err != nil {
		return nil, fmt.Errorf("license: creating activations counter: %w", err)
	}
	if m.StorageFaults, err = meter.Int64Counter("license_storage_faults_total",
		metric.WithDescription("Validation requests aborted by storage errors")); err != nil {
		return nil, fmt.Errorf("license: creating storage faults counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) recordVerdict(ctx context.Context, v *Verdict, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ValidationAttempts.Add(ctx, 1)
	m.ValidationDuration.Record(ctx, elapsed.Seconds())
	if v.Valid {
		m.ValidationSuccess.Add(ctx, 1)
		return
	}
	m.ValidationFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", string(v.Reason))))
}

func (m *Metrics) recordActivation(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActivationsCreated.Add(ctx, 1)
}

func (m *Metrics) recordFault(ctx context.Context) {
	if m == nil {
		return
	}
	m.ValidationAttempts.Add(ctx, 1)
	m.StorageFaults.Add(ctx, 1)
}
