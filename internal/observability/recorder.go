package observability

import (
	"context"
	stderrors "errors"
	"time"

	"resumeguard/internal/errors"
	"resumeguard/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// ObserveDetector records the duration and outcome of one detector run and
// annotates the active span. It satisfies fraud.Observer.
func (om *ObservabilityManager) ObserveDetector(ctx context.Context, name string, elapsed time.Duration, sig types.Signal, err error) {
	m := om.GetMetrics()
	attrs := metric.WithAttributes(
		attribute.String("detector", name),
		attribute.Bool("success", err == nil),
	)

	m.DetectorDuration.Record(ctx, elapsed.Seconds(), attrs)
	if err != nil {
		m.DetectorFailures.Add(ctx, 1, attrs)
	}
	if sig.Detected {
		m.SignalsDetected.Add(ctx, 1, metric.WithAttributes(attribute.String("detector", name)))
	}

	span := oteltrace.SpanFromContext(ctx)
	span.AddEvent("detector."+name, oteltrace.WithAttributes(
		attribute.Bool("detected", sig.Detected),
		attribute.Float64("risk_score", sig.RiskScore),
		attribute.Int64("elapsed_us", elapsed.Microseconds()),
	))
	if err != nil {
		span.RecordError(err, oteltrace.WithAttributes(attribute.String("detector", name)))
	}
}

// RecordExtractionFailure counts a document that was only partially decoded.
func (om *ObservabilityManager) RecordExtractionFailure(ctx context.Context, docType types.DocumentType, err error) {
	code := "UNKNOWN"
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		code = appErr.Code
	}
	om.GetMetrics().ExtractionErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("document_type", string(docType)),
		attribute.String("code", code),
	))

	span := oteltrace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetAttributes(attribute.Bool("extraction.degraded", true))
}

// RecordScan records the end-to-end outcome of one scan.
func (om *ObservabilityManager) RecordScan(ctx context.Context, docType types.DocumentType, report types.FraudReport, elapsed time.Duration) {
	m := om.GetMetrics()
	attrs := metric.WithAttributes(
		attribute.String("document_type", string(docType)),
		attribute.String("risk_level", string(report.RiskLevel)),
	)
	m.ScanDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.ScanCount.Add(ctx, 1, attrs)
	m.RiskScore.Record(ctx, report.OverallRiskScore,
		metric.WithAttributes(attribute.String("document_type", string(docType))))

	span := oteltrace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Float64("scan.overall_risk_score", report.OverallRiskScore),
		attribute.String("scan.risk_level", string(report.RiskLevel)),
		attribute.Int("scan.issues", len(report.DetectedIssues)),
	)
}

// RecordRateLimitHit counts a request rejected by the rate limiter.
func (om *ObservabilityManager) RecordRateLimitHit(ctx context.Context, limitedBy string) {
	if om != nil && om.fullConfig != nil && !om.fullConfig.Observability.Metrics.Enabled {
		return
	}
	om.GetMetrics().RateLimitHits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("limited_by", limitedBy),
	))
}
