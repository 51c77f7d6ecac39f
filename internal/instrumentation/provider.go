package instrumentation

import (
	"context"
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config holds instrumentation settings.
type Config struct {
	// Enabled turns metric collection on. When false the provider and its
	// Metrics are no-ops.
	Enabled bool

	// ServiceName identifies this client in exported metrics.
	ServiceName string

	// ServiceVersion is the build version attached to the resource.
	ServiceVersion string
}

// Provider wires an OpenTelemetry meter provider to a Prometheus registry.
type Provider struct {
	config        Config
	meterProvider *metric.MeterProvider
	registry      *prom.Registry
	metrics       *Metrics
	enabled       bool
}

// NewProvider creates the provider. With config.Enabled false it returns a
// no-op provider whose Metrics silently discard every recording.
func NewProvider(ctx context.Context, config Config) (*Provider, error) {
	if !config.Enabled {
		return &Provider{config: config, metrics: &Metrics{}}, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(exporter),
	)

	metrics, err := NewMetrics(mp.Meter(config.ServiceName))
	if err != nil {
		if shutdownErr := mp.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("%w (meter provider shutdown also failed: %v)", err, shutdownErr)
		}
		return nil, err
	}

	return &Provider{
		config:        config,
		meterProvider: mp,
		registry:      registry,
		metrics:       metrics,
		enabled:       true,
	}, nil
}

// Enabled reports whether metrics are being collected.
func (p *Provider) Enabled() bool {
	return p.enabled
}

// Metrics returns the metrics recorder. Never nil.
func (p *Provider) Metrics() *Metrics {
	return p.metrics
}

// Handler returns an HTTP handler exposing the Prometheus registry, or nil
// when the provider is disabled.
func (p *Provider) Handler() http.Handler {
	if !p.enabled {
		return nil
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}

// resultAttr builds a low-cardinality result attribute.
func resultAttr(success bool) attribute.KeyValue {
	if success {
		return attribute.String(attrResult, "success")
	}
	return attribute.String(attrResult, "error")
}
