package scan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"resumeguard/internal/config"
	"resumeguard/internal/errors"
	"resumeguard/internal/extract"
	"resumeguard/internal/fraud"
	"resumeguard/internal/observability"
	"resumeguard/internal/types"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "resumeguard.scan"

// Service turns document bytes into a FraudReport. The analyzer is an
// immutable snapshot swapped atomically when the rules change.
type Service struct {
	registry *extract.Registry
	analyzer atomic.Pointer[fraud.Analyzer]
	obs      *observability.ObservabilityManager
	logger   *errors.Logger

	// detection config the rules file is merged onto
	base config.DetectionConfig

	reloadMu  sync.Mutex
	watcher   *RulesWatcher
	scans     atomic.Int64
	reloads   atomic.Int64
	rulesTime atomic.Pointer[time.Time]
}

// NewService compiles the detection rules and wires extraction, analysis and metrics.
// obs may be nil.
func NewService(cfg *config.Config, obs *observability.ObservabilityManager, logger *errors.Logger) (*Service, error) {
	if logger == nil {
		logger = errors.Discard()
	}

	s := &Service{
		registry: extract.NewRegistry(cfg.Extraction, logger),
		obs:      obs,
		logger:   logger,
		base:     cfg.Detection,
	}
	if obs != nil {
		s.registry.OnFailure(obs.RecordExtractionFailure)
	}

	if err := s.ReloadRules(cfg.Detection); err != nil {
		return nil, err
	}
	return s, nil
}

// ReloadRules compiles detection and swaps it in. On error the running rules stay.
func (s *Service) ReloadRules(detection config.DetectionConfig) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	rules, err := fraud.NewRules(detection)
	if err != nil {
		return fmt.Errorf("failed to compile detection rules: %w", err)
	}

	opts := []fraud.Option{fraud.WithLogger(s.logger)}
	if s.obs != nil {
		opts = append(opts, fraud.WithObserver(s.obs))
	}
	s.analyzer.Store(fraud.NewAnalyzer(rules, opts...))

	now := time.Now()
	s.rulesTime.Store(&now)
	s.reloads.Add(1)
	return nil
}

// ReloadRulesFile re-reads a rules overlay and applies it on top of the base configuration.
func (s *Service) ReloadRulesFile(path string) error {
	overlay, err := config.LoadRulesFile(path)
	if err != nil {
		return err
	}
	detection := s.base.Merge(overlay)
	if err := detection.Validate(); err != nil {
		return err
	}
	return s.ReloadRules(detection)
}

// Scan extracts data as docType and analyzes it. Corrupt input yields a low-risk
// report built from whatever could be decoded; the only error is a context that
// is already done.
func (s *Service) Scan(ctx context.Context, data []byte, docType types.DocumentType, profile *types.Profile) (types.FraudReport, error) {
	if err := ctx.Err(); err != nil {
		return types.FraudReport{}, err
	}

	tracer := s.obs.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "scan", oteltrace.WithAttributes(
		attribute.String("document.type", string(docType)),
		attribute.Int("document.size", len(data)),
		attribute.Bool("profile.present", profile != nil),
	))
	defer span.End()

	start := time.Now()

	extractCtx, extractSpan := tracer.Start(ctx, "extract")
	doc := s.registry.Extract(extractCtx, data, docType)
	extractSpan.SetAttributes(
		attribute.Int("document.pages", len(doc.Pages)),
		attribute.Int("document.glyphs", len(doc.Glyphs)),
		attribute.Int("document.operators", len(doc.Operators)),
	)
	extractSpan.End()

	analyzeCtx, analyzeSpan := tracer.Start(ctx, "analyze")
	report := s.analyzer.Load().Analyze(analyzeCtx, &fraud.Input{Document: doc, Profile: profile})
	analyzeSpan.End()

	elapsed := time.Since(start)
	s.scans.Add(1)
	if s.obs != nil {
		s.obs.RecordScan(ctx, docType, report, elapsed)
	}

	s.logger.Info("Document scanned",
		"document_type", string(docType),
		"overall_risk_score", report.OverallRiskScore,
		"risk_level", string(report.RiskLevel),
		"issues", len(report.DetectedIssues),
		"duration_ms", elapsed.Milliseconds())

	return report, nil
}

// WatchRules starts reloading the rules file whenever it changes.
// It is a no-op when no rules file is configured.
func (s *Service) WatchRules(path string, debounce time.Duration) error {
	if path == "" {
		return nil
	}

	watcher := NewRulesWatcher(path, debounce, func() {
		if err := s.ReloadRulesFile(path); err != nil {
			s.logger.LogError(err, "Failed to reload detection rules, keeping previous rules", "file", path)
			return
		}
		s.logger.Info("Detection rules reloaded", "file", path)
	}, s.logger)

	if err := watcher.Start(); err != nil {
		return err
	}
	s.watcher = watcher
	return nil
}

// Close stops the rules watcher.
func (s *Service) Close() error {
	if s.watcher != nil {
		return s.watcher.Stop()
	}
	return nil
}

// IsHealthy reports whether extraction is accepting documents
func (s *Service) IsHealthy() bool {
	return s.registry.IsHealthy()
}

// Stats returns scan and extraction statistics
func (s *Service) Stats() map[string]any {
	stats := map[string]any{
		"scans_total":    s.scans.Load(),
		"rules_reloads":  s.reloads.Load(),
		"extraction":     s.registry.Stats(),
		"rules_watching": s.watcher != nil && s.watcher.IsRunning(),
	}
	if t := s.rulesTime.Load(); t != nil {
		stats["rules_loaded_at"] = t.UTC().Format(time.RFC3339)
	}
	return stats
}
