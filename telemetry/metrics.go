// Package telemetry exposes OpenTelemetry metrics for transfer
// operations. Metrics are optional: until Init is called every Record
// helper is a no-op, so library code can instrument unconditionally.
package telemetry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

const meterName = "github.com/wolfeidau/dvcfs"

// Config configures the metrics system.
type Config struct {
	// ServiceName is the name of the service for resource attributes.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g., "localhost:4317").
	// If empty, OTLP export is disabled.
	OTLPEndpoint string

	// EnablePrometheus enables the Prometheus exporter; scrape it via
	// PrometheusHandler.
	EnablePrometheus bool

	// FlushInterval is how often to export metrics (default: 10s).
	FlushInterval time.Duration
}

// Metrics holds the metric instruments.
type Metrics struct {
	transfersTotal     metric.Int64Counter
	transferBytesTotal metric.Int64Counter
	transferDuration   metric.Float64Histogram
	cloneDuration      metric.Float64Histogram

	meterProvider *sdkmetric.MeterProvider
	promHandler   http.Handler
}

var (
	globalMetrics *Metrics
	initOnce      sync.Once
	initErr       error
)

// Init initializes the metrics system. Returns a shutdown function to
// call on process exit. Uses sync.Once to ensure single initialisation.
func Init(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	initOnce.Do(func() {
		initErr = doInit(ctx, cfg)
	})
	if initErr != nil {
		return nil, initErr
	}
	return shutdownMetrics, nil
}

func doInit(ctx context.Context, cfg Config) error {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "dvcfs"
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 10 * time.Second
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return err
	}

	var readers []sdkmetric.Reader
	var promHandler http.Handler

	if cfg.OTLPEndpoint != "" {
		otlpExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(), // Use WithTLSCredentials for production
		)
		if err != nil {
			return err
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(otlpExporter,
			sdkmetric.WithInterval(cfg.FlushInterval),
		))
	}

	if cfg.EnablePrometheus {
		promExp, err := promexporter.New()
		if err != nil {
			return err
		}
		readers = append(readers, promExp)
		promHandler = promhttp.Handler()
	}

	// Still collect when no exporter is configured.
	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewPeriodicReader(noopExporter{},
			sdkmetric.WithInterval(cfg.FlushInterval),
		))
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	meter := mp.Meter(meterName)

	transfersTotal, err := meter.Int64Counter(
		"dvcfs_transfers_total",
		metric.WithDescription("Total number of batch transfer operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return err
	}

	transferBytesTotal, err := meter.Int64Counter(
		"dvcfs_transfer_bytes_total",
		metric.WithDescription("Total payload bytes moved by transfer operations"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	transferDuration, err := meter.Float64Histogram(
		"dvcfs_transfer_duration_seconds",
		metric.WithDescription("Duration of batch transfer operations"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return err
	}

	cloneDuration, err := meter.Float64Histogram(
		"dvcfs_clone_duration_seconds",
		metric.WithDescription("Duration of working copy materialization"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return err
	}

	globalMetrics = &Metrics{
		transfersTotal:     transfersTotal,
		transferBytesTotal: transferBytesTotal,
		transferDuration:   transferDuration,
		cloneDuration:      cloneDuration,
		meterProvider:      mp,
		promHandler:        promHandler,
	}
	return nil
}

// shutdownMetrics shuts down the meter provider and clears global state.
func shutdownMetrics(ctx context.Context) error {
	if globalMetrics == nil {
		return nil
	}
	err := globalMetrics.meterProvider.Shutdown(ctx)
	globalMetrics = nil
	return err
}

// RecordTransfer records one batch transfer. op is "download" or
// "update"; outcome is "ok" or "error".
func RecordTransfer(ctx context.Context, op string, bytes int64, duration time.Duration, outcome string) {
	if globalMetrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	}
	globalMetrics.transfersTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	globalMetrics.transferDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	if bytes > 0 {
		globalMetrics.transferBytesTotal.Add(ctx, bytes, metric.WithAttributes(attrs...))
	}
}

// RecordClone records one working-copy materialization.
func RecordClone(ctx context.Context, duration time.Duration, outcome string) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.cloneDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

// PrometheusHandler returns the Prometheus metrics HTTP handler.
// Returns 404 when Prometheus export is not enabled, allowing safe
// registration regardless of initialization order.
func PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if globalMetrics == nil || globalMetrics.promHandler == nil {
			http.NotFound(w, r)
			return
		}
		globalMetrics.promHandler.ServeHTTP(w, r)
	})
}

// noopExporter is a no-op metrics exporter for when no exporters are configured.
type noopExporter struct{}

func (noopExporter) Temporality(_ sdkmetric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

func (noopExporter) Aggregation(_ sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return nil
}

func (noopExporter) Export(_ context.Context, _ *metricdata.ResourceMetrics) error {
	return nil
}

func (noopExporter) ForceFlush(_ context.Context) error {
	return nil
}

func (noopExporter) Shutdown(_ context.Context) error {
	return nil
}
