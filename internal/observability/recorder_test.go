package observability

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"resumeguard/internal/config"
	"resumeguard/internal/errors"
	"resumeguard/internal/types"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestManager(t *testing.T) (*ObservabilityManager, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	om, err := NewManualObservabilityManager(ObservabilityConfig{ServiceName: "resumeguard-test"}, reader)
	if err != nil {
		t.Fatalf("NewManualObservabilityManager: %v", err)
	}
	t.Cleanup(func() { _ = om.Shutdown(context.Background()) })
	return om, reader
}

// sumOf returns the total of an Int64 sum metric, or -1 when it was not exported
func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s has data %T", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return -1
}

func TestObserveDetector(t *testing.T) {
	om, reader := newTestManager(t)
	ctx := context.Background()

	om.ObserveDetector(ctx, types.SignalWhiteText, time.Millisecond,
		types.NewSignal(types.SignalWhiteText, true, 0.3, []string{"x"}, nil), nil)
	om.ObserveDetector(ctx, types.SignalKeywordStuffing, time.Millisecond,
		types.FailedSignal(types.SignalKeywordStuffing, "boom"), stderrors.New("boom"))
	om.ObserveDetector(ctx, types.SignalInvisibleCharacters, time.Millisecond,
		types.NewSignal(types.SignalInvisibleCharacters, false, 0, nil, nil), nil)

	if got := sumOf(t, reader, "resumeguard_signals_detected_total"); got != 1 {
		t.Errorf("signals detected = %d, want 1", got)
	}
	if got := sumOf(t, reader, "resumeguard_detector_failures_total"); got != 1 {
		t.Errorf("detector failures = %d, want 1", got)
	}
}

func TestRecordExtractionFailureAndScan(t *testing.T) {
	om, reader := newTestManager(t)
	ctx := context.Background()

	om.RecordExtractionFailure(ctx, types.DocumentTypePDF,
		errors.NewExtractionError(errors.ErrCodeExtractionFailed, "bad", nil))
	om.RecordExtractionFailure(ctx, types.DocumentTypeDOCX, stderrors.New("plain"))
	om.RecordScan(ctx, types.DocumentTypePDF, types.FraudReport{OverallRiskScore: 0.5, RiskLevel: types.RiskLevelMedium}, time.Second)
	om.RecordRateLimitHit(ctx, "ip")

	tests := []struct {
		metric string
		want   int64
	}{
		{"resumeguard_extraction_errors_total", 2},
		{"resumeguard_scans_total", 1},
		{"resumeguard_rate_limit_hits_total", 1},
	}
	for _, tt := range tests {
		t.Run(tt.metric, func(t *testing.T) {
			if got := sumOf(t, reader, tt.metric); got != tt.want {
				t.Errorf("%s = %d, want %d", tt.metric, got, tt.want)
			}
		})
	}
}

func TestDisabledManagerIsSafe(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	om.ObserveDetector(ctx, types.SignalWhiteText, time.Millisecond, types.Signal{}, nil)
	om.RecordExtractionFailure(ctx, types.DocumentTypePDF, stderrors.New("x"))
	om.RecordScan(ctx, types.DocumentTypePDF, types.FraudReport{}, time.Millisecond)
	om.RecordRateLimitHit(ctx, "ip")

	_, span := om.Tracer("test").Start(ctx, "noop")
	span.End()
	if err := om.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}

	var nilManager *ObservabilityManager
	nilManager.RecordScan(ctx, types.DocumentTypeDOCX, types.FraudReport{}, time.Millisecond)
}

func TestGetObservabilityConfig(t *testing.T) {
	tests := []struct {
		name           string
		cfg            *config.Config
		wantVersion    string
		wantSample     float64
		wantPrometheus bool
	}{
		{
			name:           "nil config falls back to defaults",
			wantVersion:    "1.2.3",
			wantSample:     1,
			wantPrometheus: true,
		},
		{
			name: "tracing sample rate wins",
			cfg: &config.Config{Observability: config.ObservabilityConfig{
				ServiceName: "resumeguard",
				SampleRate:  1,
				Tracing:     config.TracingConfig{Enabled: true, SampleRate: 0.25},
				Metrics:     config.MetricsConfig{Enabled: true},
				Prometheus:  config.PrometheusConfig{Enabled: true, Endpoint: "/metrics", Port: "9090"},
			}},
			wantVersion:    "1.2.3",
			wantSample:     0.25,
			wantPrometheus: true,
		},
		{
			name: "disabled tracing and metrics",
			cfg: &config.Config{Observability: config.ObservabilityConfig{
				ServiceVersion: "9.9.9",
				SampleRate:     1,
				Prometheus:     config.PrometheusConfig{Enabled: true},
			}},
			wantVersion: "9.9.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetObservabilityConfig(tt.cfg, "1.2.3")
			if got.ServiceVersion != tt.wantVersion {
				t.Errorf("ServiceVersion = %q, want %q", got.ServiceVersion, tt.wantVersion)
			}
			if got.SampleRate != tt.wantSample {
				t.Errorf("SampleRate = %v, want %v", got.SampleRate, tt.wantSample)
			}
			if got.Prometheus.Enabled != tt.wantPrometheus {
				t.Errorf("Prometheus.Enabled = %v, want %v", got.Prometheus.Enabled, tt.wantPrometheus)
			}
		})
	}
}
