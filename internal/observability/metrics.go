package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "callsieve"

// MetricsCollector records parser activity. A zero collector is a no-op, so
// callers never need to nil-check before recording.
type MetricsCollector struct {
	provider *sdkmetric.MeterProvider
	registry *promclient.Registry

	steps       metric.Int64Counter
	calls       metric.Int64Counter
	degraded    metric.Int64Counter
	bufferBytes metric.Int64Histogram

	server *http.Server
}

// MetricsConfig configures the metrics collector
type MetricsConfig struct {
	Enabled bool
	// Addr is where the Prometheus scrape endpoint listens; empty disables it.
	Addr string
}

// NewMetricsCollector creates a collector exporting to a private Prometheus
// registry.
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	collector, err := NewMetricsCollectorWithReader(exporter)
	if err != nil {
		return nil, err
	}
	collector.registry = registry

	if config.Addr != "" {
		if err := collector.StartPrometheusServer(config.Addr); err != nil {
			return nil, fmt.Errorf("failed to start prometheus server: %w", err)
		}
	}
	return collector, nil
}

// NewMetricsCollectorWithReader wires the instruments to an arbitrary reader.
func NewMetricsCollectorWithReader(reader sdkmetric.Reader) (*MetricsCollector, error) {
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter(meterName)

	steps, err := meter.Int64Counter(
		"callsieve.parser.steps",
		metric.WithDescription("Incremental extraction steps"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create steps counter: %w", err)
	}

	calls, err := meter.Int64Counter(
		"callsieve.parser.calls",
		metric.WithDescription("Tool calls extracted"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create calls counter: %w", err)
	}

	degraded, err := meter.Int64Counter(
		"callsieve.parser.degraded",
		metric.WithDescription("Streaming steps that fell back to plain text"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create degraded counter: %w", err)
	}

	bufferBytes, err := meter.Int64Histogram(
		"callsieve.parser.buffer_bytes",
		metric.WithDescription("Pending buffer size after each step"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(0, 64, 256, 1024, 4096, 16384, 65536),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer histogram: %w", err)
	}

	return &MetricsCollector{
		provider:    provider,
		steps:       steps,
		calls:       calls,
		degraded:    degraded,
		bufferBytes: bufferBytes,
	}, nil
}

// ObserveStep records one streaming step and the bytes left buffered.
func (m *MetricsCollector) ObserveStep(format string, bufferedBytes int) {
	if m == nil || m.steps == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("format", format))
	ctx := context.Background()
	m.steps.Add(ctx, 1, attrs)
	m.bufferBytes.Record(ctx, int64(bufferedBytes), attrs)
}

// ObserveCall records one extracted call.
func (m *MetricsCollector) ObserveCall(format string, streamed bool) {
	if m == nil || m.calls == nil {
		return
	}
	mode := "oneshot"
	if streamed {
		mode = "stream"
	}
	m.calls.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("format", format),
		attribute.String("mode", mode),
	))
}

// ObserveDegraded records a streaming step that degraded to plain text.
func (m *MetricsCollector) ObserveDegraded(format string) {
	if m == nil || m.degraded == nil {
		return
	}
	m.degraded.Add(context.Background(), 1, metric.WithAttributes(attribute.String("format", format)))
}

// Handler serves the collector's registry in the Prometheus text format.
func (m *MetricsCollector) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartPrometheusServer starts the Prometheus metrics server
func (m *MetricsCollector) StartPrometheusServer(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	m.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger := Default()
	go func() {
		logger.Info("Prometheus metrics server listening", "addr", listener.Addr().String())
		if err := m.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Prometheus server error", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the scrape endpoint and flushes the meter provider.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	var errs []error
	if m.server != nil {
		errs = append(errs, m.server.Shutdown(ctx))
	}
	if m.provider != nil {
		errs = append(errs, m.provider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
