package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
)

const (
	ServiceName    = "flux-keyauth"
	ServiceVersion = "1.0.0"
	MeterName      = "flux-keyauth"
)

// OTelProviders holds the OpenTelemetry meter provider and the Prometheus
// scrape handler it exports through. Tracing is not wired — there is no
// trace backend in this deployment, metrics are the observability surface.
type OTelProviders struct {
	MeterProvider  *sdkmetric.MeterProvider
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel sets up the metric pipeline: a Prometheus exporter feeding
// the process-wide meter provider. The returned PrometheusHTTP handler is
// mounted at /metrics.
func InitializeOTel(logger *slog.Logger) (*OTelProviders, error) {
	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(ServiceVersion),
		))
	if err != nil {
		return nil, fmt.Errorf("infrastructure: creating otel resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("infrastructure: creating prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)

	logger.Info("opentelemetry metrics initialized",
		slog.String("exporter", "prometheus"),
		slog.String("service", ServiceName))

	return &OTelProviders{
		MeterProvider:  mp,
		Meter:          mp.Meter(MeterName, metric.WithInstrumentationVersion(ServiceVersion)),
		PrometheusHTTP: promhttp.Handler(),
		Logger:         logger,
	}, nil
}

// Shutdown flushes and stops the meter provider.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	if p == nil || p.MeterProvider == nil {
		return nil
	}
	if err := p.MeterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("infrastructure: shutting down meter provider: %w", err)
	}
	return nil
}
