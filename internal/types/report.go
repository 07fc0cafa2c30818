package types

import (
	"math"
)

// Signal names, in the order they are reported
const (
	SignalWhiteText            = "white_text"
	SignalKeywordStuffing      = "keyword_stuffing"
	SignalInvisibleCharacters  = "invisible_characters"
	SignalSuspiciousFormatting = "suspicious_formatting"
	SignalContentAuthenticity  = "content_authenticity"
	SignalPDFStreamAnalysis    = "pdf_stream_analysis"
)

// SignalOrder is the fixed declaration order used for detected_issues and rendering.
var SignalOrder = []string{
	SignalWhiteText,
	SignalKeywordStuffing,
	SignalInvisibleCharacters,
	SignalSuspiciousFormatting,
	SignalContentAuthenticity,
	SignalPDFStreamAnalysis,
}

// Signal is the verdict of a single detector
type Signal struct {
	Name      string         `json:"-"`
	Detected  bool           `json:"detected"`
	RiskScore float64        `json:"risk_score"`
	Issues    []string       `json:"issues"`
	Details   map[string]any `json:"details"`
}

// NewSignal builds a Signal with the score clamped into [0,1].
// Nil issues or details are replaced by empty values.
func NewSignal(name string, detected bool, score float64, issues []string, details map[string]any) Signal {
	if issues == nil {
		issues = []string{}
	}
	if details == nil {
		details = map[string]any{}
	}
	return Signal{
		Name:      name,
		Detected:  detected,
		RiskScore: ClampScore(score),
		Issues:    issues,
		Details:   details,
	}
}

// FailedSignal is the neutral verdict recorded when a detector errors or times out.
func FailedSignal(name, reason string) Signal {
	return NewSignal(name, false, 0, []string{reason}, map[string]any{"error": reason})
}

// ClampScore maps any value into [0,1]; NaN becomes 0.
func ClampScore(score float64) float64 {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

// RiskLevel is the three-bucket classification of the overall score
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// Level thresholds for the overall score
const (
	HighRiskThreshold   = 0.70
	MediumRiskThreshold = 0.40
)

// RiskLevelFor classifies an overall score.
func RiskLevelFor(score float64) RiskLevel {
	switch {
	case score >= HighRiskThreshold:
		return RiskLevelHigh
	case score >= MediumRiskThreshold:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// DetailedAnalysis holds one Signal per detector under its fixed key
type DetailedAnalysis struct {
	WhiteText            Signal `json:"white_text"`
	KeywordStuffing      Signal `json:"keyword_stuffing"`
	InvisibleCharacters  Signal `json:"invisible_characters"`
	SuspiciousFormatting Signal `json:"suspicious_formatting"`
	ContentAuthenticity  Signal `json:"content_authenticity"`
	PDFStreamAnalysis    Signal `json:"pdf_stream_analysis"`
}

// Set stores sig in the slot named by sig.Name. Unknown names are ignored.
func (d *DetailedAnalysis) Set(sig Signal) {
	if slot := d.slot(sig.Name); slot != nil {
		*slot = sig
	}
}

// Get returns the signal stored under name.
func (d *DetailedAnalysis) Get(name string) (Signal, bool) {
	if slot := d.slot(name); slot != nil {
		return *slot, true
	}
	return Signal{}, false
}

// Signals returns all six signals in reporting order.
func (d *DetailedAnalysis) Signals() []Signal {
	return []Signal{
		d.WhiteText,
		d.KeywordStuffing,
		d.InvisibleCharacters,
		d.SuspiciousFormatting,
		d.ContentAuthenticity,
		d.PDFStreamAnalysis,
	}
}

func (d *DetailedAnalysis) slot(name string) *Signal {
	switch name {
	case SignalWhiteText:
		return &d.WhiteText
	case SignalKeywordStuffing:
		return &d.KeywordStuffing
	case SignalInvisibleCharacters:
		return &d.InvisibleCharacters
	case SignalSuspiciousFormatting:
		return &d.SuspiciousFormatting
	case SignalContentAuthenticity:
		return &d.ContentAuthenticity
	case SignalPDFStreamAnalysis:
		return &d.PDFStreamAnalysis
	}
	return nil
}

// FraudReport is the fused output of all detectors
type FraudReport struct {
	OverallRiskScore float64          `json:"overall_risk_score"`
	RiskLevel        RiskLevel        `json:"risk_level"`
	DetectedIssues   []string         `json:"detected_issues"`
	DetailedAnalysis DetailedAnalysis `json:"detailed_analysis"`
}
