package cli

import (
	"context"
	"fmt"

	"resumeguard/internal/common"
	"resumeguard/internal/errors"
	"resumeguard/internal/scan"
	"resumeguard/internal/types"
	"resumeguard/internal/utils"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan [resume-file]",
	Short: "Scan a resume for hidden-text manipulation",
	Long: `Scan a PDF or DOCX resume and report how likely it is to contain content
aimed at applicant tracking systems rather than human readers.

Six signals are combined into the overall score:
- white_text: text colored like its background, off the page, or stacked on other text
- keyword_stuffing: watchlist terms repeated far beyond natural frequency
- invisible_characters: zero-width and bidi control characters
- suspicious_formatting: unreadably small or erratically sized fonts
- content_authenticity: a profile that is implausible for the stated experience
- pdf_stream_analysis: invisible rendering modes and white fills in PDF content streams

The document type is sniffed from the content unless --type is given.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfigFromContext(cmd.Context())
		if err != nil {
			return err
		}
		if scanOptions.OutputFormat == "" {
			scanOptions.OutputFormat = cfg.App.DefaultFormat
		}
		if _, err := parseFailOn(scanFailOn); err != nil {
			return err
		}
		return scanOptions.Validate(cfg.App.SupportedFormats)
	},
	RunE: runScan,
}

var (
	scanOptions    common.ScanOptions
	scanOutputFile string
	scanFailOn     string
)

func init() {
	scanCmd.Flags().StringVarP(&scanOutputFile, "output", "o", "", "Output file path (default: stdout)")
	scanCmd.Flags().StringVar(&scanOptions.OutputFormat, "format", "", "Output format: json, text, or markdown")
	scanCmd.Flags().StringVar(&scanOptions.DocumentType, "type", "", "Document type: pdf or docx (default: detect)")
	scanCmd.Flags().StringVar(&scanOptions.ProfileFile, "profile", "", "Structured resume data (json or yaml) for the authenticity check")
	scanCmd.Flags().StringVar(&scanFailOn, "fail-on", "", "Exit non-zero when the risk level is at least this: low, medium, or high")

	_ = scanCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return common.NewOutputHandler(nil).GetSupportedFormats(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = scanCmd.RegisterFlagCompletionFunc("type", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		names := make([]string, 0, len(utils.SupportedDocumentTypes))
		for _, t := range utils.SupportedDocumentTypes {
			names = append(names, string(t))
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	profile, err := common.LoadProfile(scanOptions.ProfileFile)
	if err != nil {
		return err
	}

	service, err := scan.NewService(cfg, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to create scan service: %w", err)
	}
	defer func() { _ = service.Close() }()

	var report types.FraudReport
	scanOperation := func(ctx context.Context, filename string, data []byte) (types.FraudReport, error) {
		docType, err := resolveDocumentType(scanOptions.DocumentType, filename, data)
		if err != nil {
			return types.FraudReport{}, err
		}
		report, err = service.Scan(ctx, data, docType, profile)
		return report, err
	}

	logDetails := func(filename string, size int, cmdConfig common.CommandConfig) {
		logger.Info("Starting resume scan",
			"file", filename,
			"size", utils.FormatFileSize(int64(size)),
			"profile", scanOptions.ProfileFile != "",
			"output_format", cmdConfig.OutputFormat)
	}

	cmdConfig := common.CommandConfig{OutputFile: scanOutputFile, OutputFormat: scanOptions.OutputFormat}
	if err := common.RunDocumentCommand(cmd.Context(), logger, cmdConfig, cfg.App.MaxFileSize,
		args[0], scanOperation, logDetails); err != nil {
		return fmt.Errorf("failed to scan resume: %w", err)
	}

	logger.Info("Resume scan completed successfully",
		"risk_level", string(report.RiskLevel),
		"overall_risk_score", report.OverallRiskScore)

	threshold, _ := parseFailOn(scanFailOn)
	if threshold != "" && riskRank(report.RiskLevel) >= riskRank(threshold) {
		return fmt.Errorf("risk level %s meets --fail-on %s", report.RiskLevel, threshold)
	}
	return nil
}

// resolveDocumentType honours an explicit type, otherwise sniffs the content
func resolveDocumentType(explicit, filename string, data []byte) (types.DocumentType, error) {
	if explicit != "" {
		return utils.ParseDocumentType(explicit)
	}
	if docType := utils.DetectDocumentType(filename, data); docType != "" {
		return docType, nil
	}
	return "", errors.NewValidationError(errors.ErrCodeUnsupportedDocument,
		fmt.Sprintf("cannot determine the type of %s; pass --type pdf or --type docx", filename), nil)
}

func parseFailOn(level string) (types.RiskLevel, error) {
	switch l := types.RiskLevel(level); l {
	case "", types.RiskLevelLow, types.RiskLevelMedium, types.RiskLevelHigh:
		return l, nil
	default:
		return "", fmt.Errorf("invalid --fail-on level '%s' (must be low, medium, or high)", level)
	}
}

func riskRank(level types.RiskLevel) int {
	switch level {
	case types.RiskLevelHigh:
		return 2
	case types.RiskLevelMedium:
		return 1
	default:
		return 0
	}
}
