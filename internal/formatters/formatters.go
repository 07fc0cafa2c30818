package formatters

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"resumeguard/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "FraudReport", &ReportTextFormatter{})
	registry.RegisterFormatter("markdown", "FraudReport", &ReportMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	return slices.Sorted(maps.Keys(fr.formatters))
}

func getDataType(data any) string {
	switch data.(type) {
	case types.FraudReport, *types.FraudReport:
		return "FraudReport"
	default:
		return "any"
	}
}

func asReport(data any) (types.FraudReport, error) {
	switch r := data.(type) {
	case types.FraudReport:
		return r, nil
	case *types.FraudReport:
		if r != nil {
			return *r, nil
		}
	}
	return types.FraudReport{}, fmt.Errorf("expected FraudReport, got %T", data)
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// ReportTextFormatter renders a fraud report for a terminal
type ReportTextFormatter struct{}

func (rtf *ReportTextFormatter) Format(data any) (string, error) {
	report, err := asReport(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("=== FRAUD RISK ASSESSMENT ===\n\n")
	fmt.Fprintf(&output, "Overall Risk Score: %.2f\n", report.OverallRiskScore)
	fmt.Fprintf(&output, "Risk Level: %s\n\n", strings.ToUpper(string(report.RiskLevel)))

	output.WriteString("=== DETECTED ISSUES ===\n")
	if len(report.DetectedIssues) == 0 {
		output.WriteString("No manipulation detected.\n")
	}
	for _, issue := range report.DetectedIssues {
		fmt.Fprintf(&output, "- %s\n", issue)
	}
	output.WriteString("\n")

	output.WriteString("=== SIGNALS ===\n")
	for _, sig := range report.DetailedAnalysis.Signals() {
		status := "clear"
		if sig.Detected {
			status = "DETECTED"
		}
		fmt.Fprintf(&output, "%s: %s (score %.2f)\n", sig.Name, status, sig.RiskScore)
		for _, key := range slices.Sorted(maps.Keys(sig.Details)) {
			fmt.Fprintf(&output, "    %s: %s\n", key, detailValue(sig.Details[key]))
		}
	}

	return output.String(), nil
}

func (rtf *ReportTextFormatter) SupportedType() string {
	return "FraudReport"
}

// ReportMarkdownFormatter renders a fraud report as a markdown document
type ReportMarkdownFormatter struct{}

func (rmf *ReportMarkdownFormatter) Format(data any) (string, error) {
	report, err := asReport(data)
	if err != nil {
		return "", err
	}

	var output strings.Builder

	output.WriteString("# Fraud Risk Assessment\n\n")
	fmt.Fprintf(&output, "**Overall Risk Score:** %.2f  \n", report.OverallRiskScore)
	fmt.Fprintf(&output, "**Risk Level:** %s\n\n", report.RiskLevel)

	output.WriteString("## Detected Issues\n\n")
	if len(report.DetectedIssues) == 0 {
		output.WriteString("No manipulation detected.\n\n")
	} else {
		for _, issue := range report.DetectedIssues {
			fmt.Fprintf(&output, "- %s\n", issue)
		}
		output.WriteString("\n")
	}

	output.WriteString("## Signals\n\n")
	output.WriteString("| Signal | Detected | Score | Issues |\n")
	output.WriteString("|---|---|---|---|\n")
	for _, sig := range report.DetailedAnalysis.Signals() {
		fmt.Fprintf(&output, "| %s | %t | %.2f | %s |\n",
			sig.Name, sig.Detected, sig.RiskScore, escapeCell(strings.Join(sig.Issues, "; ")))
	}

	return output.String(), nil
}

func (rmf *ReportMarkdownFormatter) SupportedType() string {
	return "FraudReport"
}

// detailValue prints scalars plainly and everything else as compact JSON
func detailValue(v any) string {
	switch v.(type) {
	case nil:
		return "n/a"
	case string, bool, int, int64, float64:
		return fmt.Sprint(v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// GlobalRegistry is the default formatter registry
var GlobalRegistry = NewFormatterRegistry()
