package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resumeguard/internal/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ObservabilityConfig holds configuration for observability
type ObservabilityConfig struct {
	ServiceName     string
	ServiceVersion  string
	ServiceInstance string
	Enabled         bool
	ConsoleOutput   bool
	PrettyPrint     bool
	SampleRate      float64
	Prometheus      PrometheusConfig
}

// Metrics holds all custom metrics for resumeguard
type Metrics struct {
	// Scan metrics
	ScanDuration metric.Float64Histogram
	ScanCount    metric.Int64Counter
	RiskScore    metric.Float64Histogram

	// Detector metrics
	DetectorDuration metric.Float64Histogram
	DetectorFailures metric.Int64Counter
	SignalsDetected  metric.Int64Counter

	// Extraction metrics
	ExtractionErrors metric.Int64Counter

	// Rate limiting metrics
	RateLimitHits metric.Int64Counter
}

// ObservabilityManager manages OpenTelemetry setup
type ObservabilityManager struct {
	config           ObservabilityConfig
	fullConfig       *config.Config
	resource         *resource.Resource
	tracerProvider   *trace.TracerProvider
	meterProvider    *sdkmetric.MeterProvider
	metrics          *Metrics
	shutdownFuncs    []func(context.Context) error
	prometheusServer *http.ServeMux
}

// NewObservabilityManager creates a new observability manager
func NewObservabilityManager(obsConfig ObservabilityConfig, fullConfig *config.Config) (*ObservabilityManager, error) {
	if !obsConfig.Enabled {
		return &ObservabilityManager{config: obsConfig, fullConfig: fullConfig}, nil
	}

	om := &ObservabilityManager{
		config:        obsConfig,
		fullConfig:    fullConfig,
		shutdownFuncs: make([]func(context.Context) error, 0),
	}

	if err := om.initResource(); err != nil {
		return nil, fmt.Errorf("failed to initialize resource: %w", err)
	}

	if err := om.initTracing(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := om.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return om, nil
}

// NewManualObservabilityManager wires metrics to a caller-owned reader and
// installs no global providers. Tests use it with sdkmetric.NewManualReader.
func NewManualObservabilityManager(obsConfig ObservabilityConfig, reader sdkmetric.Reader) (*ObservabilityManager, error) {
	obsConfig.Enabled = true
	om := &ObservabilityManager{config: obsConfig}
	om.tracerProvider = trace.NewTracerProvider()
	om.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	om.shutdownFuncs = []func(context.Context) error{om.tracerProvider.Shutdown, om.meterProvider.Shutdown}
	if err := om.initCustomMetrics(); err != nil {
		return nil, err
	}
	return om, nil
}

// initResource creates the OpenTelemetry resource shared by traces and metrics
func (om *ObservabilityManager) initResource() error {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(om.config.ServiceName),
			semconv.ServiceVersion(om.config.ServiceVersion),
			attribute.String("service.instance.id", om.getServiceInstanceID()),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}
	om.resource = res
	return nil
}

// initTracing sets up OpenTelemetry tracing
func (om *ObservabilityManager) initTracing() error {
	var exporter trace.SpanExporter
	var err error

	switch {
	case om.config.ConsoleOutput:
		opts := []stdouttrace.Option{}
		if om.config.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		exporter, err = stdouttrace.New(opts...)
	case om.fullConfig != nil && om.fullConfig.Observability.OTLP.Enabled:
		exporter, err = om.createOTLPExporter()
	default:
		exporter = &noOpSpanExporter{}
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(om.resource),
		trace.WithSampler(trace.TraceIDRatioBased(om.config.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	om.tracerProvider = tp
	om.shutdownFuncs = append(om.shutdownFuncs, tp.Shutdown)

	return nil
}

// initMetrics sets up OpenTelemetry metrics
func (om *ObservabilityManager) initMetrics() error {
	readers, err := om.setupMetricReaders()
	if err != nil {
		return err
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(om.resource)}
	for _, reader := range readers {
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(opts...)

	otel.SetMeterProvider(mp)
	om.meterProvider = mp
	om.shutdownFuncs = append(om.shutdownFuncs, mp.Shutdown)

	return om.initCustomMetrics()
}

// setupMetricReaders sets up all metric readers based on configuration
func (om *ObservabilityManager) setupMetricReaders() ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader

	if om.config.ConsoleOutput {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(om.getMetricsCollectionInterval())))
	}

	if om.fullConfig != nil && om.fullConfig.Observability.OTLP.Enabled {
		reader, err := om.createOTLPMetricsReader()
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics reader: %w", err)
		}
		readers = append(readers, reader)
	}

	if om.config.Prometheus.Enabled {
		reader, mux, err := SetupPrometheusExporter(om.config.Prometheus)
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		if reader != nil {
			readers = append(readers, reader)
			om.prometheusServer = mux
			shutdown, err := StartPrometheusServer(mux, om.config.Prometheus.Port)
			if err != nil {
				return nil, fmt.Errorf("failed to start Prometheus server: %w", err)
			}
			om.shutdownFuncs = append(om.shutdownFuncs, shutdown)
		}
	}

	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}

	return readers, nil
}

// initCustomMetrics creates all custom metrics for resumeguard
func (om *ObservabilityManager) initCustomMetrics() error {
	meter := om.meterProvider.Meter(om.config.ServiceName)
	om.metrics = &Metrics{}
	m := om.metrics

	var err error
	if m.ScanDuration, err = meter.Float64Histogram(
		"resumeguard_scan_duration_seconds",
		metric.WithDescription("Time spent extracting and analyzing one document"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create scan duration metric: %w", err)
	}

	if m.ScanCount, err = meter.Int64Counter(
		"resumeguard_scans_total",
		metric.WithDescription("Total number of documents scanned"),
	); err != nil {
		return fmt.Errorf("failed to create scan count metric: %w", err)
	}

	if m.RiskScore, err = meter.Float64Histogram(
		"resumeguard_risk_score",
		metric.WithDescription("Overall risk score of scanned documents"),
		metric.WithExplicitBucketBoundaries(0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1),
	); err != nil {
		return fmt.Errorf("failed to create risk score metric: %w", err)
	}

	if m.DetectorDuration, err = meter.Float64Histogram(
		"resumeguard_detector_duration_seconds",
		metric.WithDescription("Time spent in a single detector"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create detector duration metric: %w", err)
	}

	if m.DetectorFailures, err = meter.Int64Counter(
		"resumeguard_detector_failures_total",
		metric.WithDescription("Detector runs that failed, panicked or timed out"),
	); err != nil {
		return fmt.Errorf("failed to create detector failures metric: %w", err)
	}

	if m.SignalsDetected, err = meter.Int64Counter(
		"resumeguard_signals_detected_total",
		metric.WithDescription("Signals that reported a detection"),
	); err != nil {
		return fmt.Errorf("failed to create signals detected metric: %w", err)
	}

	if m.ExtractionErrors, err = meter.Int64Counter(
		"resumeguard_extraction_errors_total",
		metric.WithDescription("Documents that could not be fully extracted"),
	); err != nil {
		return fmt.Errorf("failed to create extraction errors metric: %w", err)
	}

	if m.RateLimitHits, err = meter.Int64Counter(
		"resumeguard_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	); err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	return nil
}

// GetMetrics returns the metrics instance
func (om *ObservabilityManager) GetMetrics() *Metrics {
	if om == nil || om.metrics == nil {
		return noopMetrics()
	}
	return om.metrics
}

// noopMetrics returns instruments that discard every measurement
func noopMetrics() *Metrics {
	meter := metricnoop.NewMeterProvider().Meter("resumeguard")
	m := &Metrics{}
	m.ScanDuration, _ = meter.Float64Histogram("scan_duration")
	m.ScanCount, _ = meter.Int64Counter("scans")
	m.RiskScore, _ = meter.Float64Histogram("risk_score")
	m.DetectorDuration, _ = meter.Float64Histogram("detector_duration")
	m.DetectorFailures, _ = meter.Int64Counter("detector_failures")
	m.SignalsDetected, _ = meter.Int64Counter("signals_detected")
	m.ExtractionErrors, _ = meter.Int64Counter("extraction_errors")
	m.RateLimitHits, _ = meter.Int64Counter("rate_limit_hits")
	return m
}

// HTTPMiddleware returns HTTP middleware with OpenTelemetry instrumentation
func (om *ObservabilityManager) HTTPMiddleware() func(http.Handler) http.Handler {
	if om == nil || !om.config.Enabled || om.tracerProvider == nil {
		return func(h http.Handler) http.Handler { return h }
	}

	return otelhttp.NewMiddleware(
		om.config.ServiceName,
		otelhttp.WithTracerProvider(om.tracerProvider),
		otelhttp.WithMeterProvider(om.meterProvider),
	)
}

// Tracer returns a tracer for the service
func (om *ObservabilityManager) Tracer(name string) oteltrace.Tracer {
	if om == nil || !om.config.Enabled || om.tracerProvider == nil {
		return noop.NewTracerProvider().Tracer(name)
	}
	return om.tracerProvider.Tracer(name)
}

// Shutdown gracefully shuts down all observability components
func (om *ObservabilityManager) Shutdown(ctx context.Context) error {
	if om == nil {
		return nil
	}
	for _, shutdown := range om.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// No-op exporter for when neither console nor OTLP output is configured
type noOpSpanExporter struct{}

func (n *noOpSpanExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	return nil
}

func (n *noOpSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}

// createOTLPExporter creates an OTLP HTTP trace exporter
func (om *ObservabilityManager) createOTLPExporter() (trace.SpanExporter, error) {
	otlpConfig := om.fullConfig.Observability.OTLP

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(otlpConfig.Endpoint),
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	return exporter, nil
}

// createOTLPMetricsReader creates an OTLP HTTP metrics reader
func (om *ObservabilityManager) createOTLPMetricsReader() (sdkmetric.Reader, error) {
	otlpConfig := om.fullConfig.Observability.OTLP

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpointURL(otlpConfig.Endpoint),
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	return sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(om.getMetricsCollectionInterval())), nil
}

// getServiceInstanceID returns the service instance ID from config or a default
func (om *ObservabilityManager) getServiceInstanceID() string {
	if om.config.ServiceInstance != "" {
		return om.config.ServiceInstance
	}
	return om.config.ServiceName + "-1"
}

// getMetricsCollectionInterval returns the configured metrics collection interval
func (om *ObservabilityManager) getMetricsCollectionInterval() time.Duration {
	if om.fullConfig != nil && om.fullConfig.Observability.Metrics.CollectionInterval > 0 {
		return om.fullConfig.Observability.Metrics.CollectionInterval
	}
	return 15 * time.Second
}
