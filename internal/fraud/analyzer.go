package fraud

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"time"

	"resumeguard/internal/errors"
	"resumeguard/internal/types"
)

// Messages recorded as the single issue of a detector that did not finish
const (
	TimedOutIssue  = "analysis timed out"
	CancelledIssue = "analysis cancelled"
)

// Observer is told how every detector run ended
type Observer interface {
	ObserveDetector(ctx context.Context, name string, elapsed time.Duration, sig types.Signal, err error)
}

// Analyzer runs the detectors concurrently and fuses their signals into a FraudReport.
// It is safe for concurrent use.
type Analyzer struct {
	detectors []Detector
	timeout   time.Duration
	logger    *errors.Logger
	observer  Observer
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithLogger sets the logger used for detector failures.
func WithLogger(logger *errors.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// WithTimeout overrides the per-document deadline. Zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(a *Analyzer) { a.timeout = timeout }
}

// WithDetectors replaces the detector set.
func WithDetectors(detectors ...Detector) Option {
	return func(a *Analyzer) { a.detectors = detectors }
}

// WithObserver registers a callback for detector outcomes.
func WithObserver(observer Observer) Option {
	return func(a *Analyzer) { a.observer = observer }
}

// NewAnalyzer creates an Analyzer over the six standard detectors.
func NewAnalyzer(rules *Rules, opts ...Option) *Analyzer {
	a := &Analyzer{
		detectors: NewDetectors(rules),
		timeout:   rules.Timeout(),
		logger:    errors.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type outcome struct {
	signal  types.Signal
	err     error
	elapsed time.Duration
}

// Analyze always returns a complete report. Detectors that fail, panic or
// miss the deadline contribute a zero score and a single explanatory issue.
func (a *Analyzer) Analyze(ctx context.Context, in *Input) types.FraudReport {
	if in == nil {
		in = &Input{}
	}
	if in.Document == nil {
		in = &Input{Document: &types.Document{}, Profile: in.Profile}
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	slots := make([]chan outcome, len(a.detectors))
	for i, det := range a.detectors {
		slot := make(chan outcome, 1)
		slots[i] = slot
		go func() {
			slot <- runDetector(ctx, det, in)
		}()
	}

	var analysis types.DetailedAnalysis
	for _, name := range types.SignalOrder {
		analysis.Set(types.NewSignal(name, false, 0, nil, nil))
	}

	for i, det := range a.detectors {
		var res outcome
		select {
		case res = <-slots[i]:
		case <-ctx.Done():
			select {
			case res = <-slots[i]:
			default:
				res = outcome{err: ctx.Err()}
			}
		}
		analysis.Set(a.settle(ctx, det.Name(), res))
	}

	return fuse(analysis)
}

// settle turns a detector outcome into the signal that goes into the report
func (a *Analyzer) settle(ctx context.Context, name string, res outcome) types.Signal {
	sig := res.signal
	if res.err != nil {
		sig = types.FailedSignal(name, failureReason(res.err))
		code := errors.ErrCodeDetectorFailed
		if stderrors.Is(res.err, context.DeadlineExceeded) {
			code = errors.ErrCodeDetectorTimeout
		}
		a.logger.LogError(errors.NewDetectionError(code, "detector did not produce a signal", res.err),
			"Detector failed", "detector", name)
	}
	sig.Name = name

	if a.observer != nil {
		a.observer.ObserveDetector(ctx, name, res.elapsed, sig, res.err)
	}
	return sig
}

func failureReason(err error) string {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return TimedOutIssue
	case stderrors.Is(err, context.Canceled):
		return CancelledIssue
	default:
		return err.Error()
	}
}

func runDetector(ctx context.Context, det Detector, in *Input) (res outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = outcome{err: errors.NewDetectionError(errors.ErrCodeDetectorFailed,
				fmt.Sprintf("detector panicked: %v", r), nil)}
		}
		res.elapsed = time.Since(start)
	}()

	sig, err := det.Detect(ctx, in)
	return outcome{signal: sig, err: err}
}

// fuse averages the six scores and collects issues in reporting order
func fuse(analysis types.DetailedAnalysis) types.FraudReport {
	signals := analysis.Signals()

	sum := 0.0
	issues := []string{}
	for _, sig := range signals {
		sum += sig.RiskScore
		if sig.Detected {
			issues = append(issues, sig.Issues...)
		}
	}

	overall := round2(types.ClampScore(sum / float64(len(signals))))
	return types.FraudReport{
		OverallRiskScore: overall,
		RiskLevel:        types.RiskLevelFor(overall),
		DetectedIssues:   issues,
		DetailedAnalysis: analysis,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
