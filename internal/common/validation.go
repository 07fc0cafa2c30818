package common

import (
	stderrors "errors"
	"fmt"
	"slices"

	"resumeguard/internal/errors"
	"resumeguard/internal/utils"
)

// ScanOptions are the user supplied settings of one scan
type ScanOptions struct {
	DocumentType string // empty means sniff from content
	OutputFormat string
	ProfileFile  string
}

// Validate checks the options against the configured output formats
func (o ScanOptions) Validate(supportedFormats []string) error {
	var errs []error
	if err := ValidateOutputFormat(o.OutputFormat, supportedFormats); err != nil {
		errs = append(errs, err)
	}
	if o.DocumentType != "" {
		if _, err := utils.ParseDocumentType(o.DocumentType); err != nil {
			errs = append(errs, err)
		}
	}
	if o.ProfileFile != "" {
		if err := utils.ValidateInputFile(o.ProfileFile); err != nil {
			errs = append(errs, fmt.Errorf("profile: %w", err))
		}
	}
	if len(errs) > 0 {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "invalid scan options", stderrors.Join(errs...))
	}
	return nil
}

// ValidateOutputFormat validates format against configured supported formats
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 {
		return nil // No restrictions configured
	}

	if slices.Contains(supportedFormats, format) {
		return nil
	}

	return fmt.Errorf("unsupported output format '%s'. Supported formats: %v",
		format, supportedFormats)
}
